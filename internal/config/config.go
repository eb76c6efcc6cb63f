// Package config loads process configuration for the example programs.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config is the process configuration shared by the example programs.
type Config struct {
	Model      ModelConfig      `toml:"model"`
	Email      EmailConfig      `toml:"email"`
	Checkpoint CheckpointConfig `toml:"checkpoint"`
	Artifacts  ArtifactConfig   `toml:"artifacts"`
	Log        LogConfig        `toml:"log"`
	Agent      AgentConfig      `toml:"agent"`
}

type ModelConfig struct {
	Provider        string  `toml:"provider"`
	Name            string  `toml:"name"`
	Temperature     float64 `toml:"temperature"`
	GoogleAPIKey    string  `toml:"google_api_key"`
	OpenAIAPIKey    string  `toml:"openai_api_key"`
	AnthropicAPIKey string  `toml:"anthropic_api_key"`
}

// APIKey returns the key configured for the selected provider.
func (c ModelConfig) APIKey() string {
	switch c.Provider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	default:
		return c.GoogleAPIKey
	}
}

type EmailConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
	IMAPAddr string `toml:"imap_addr"`
	SMTPAddr string `toml:"smtp_addr"`
	Mailbox  string `toml:"mailbox"`
}

type CheckpointConfig struct {
	Path string `toml:"path"`
}

type ArtifactConfig struct {
	Dir string `toml:"dir"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // text or json
}

type AgentConfig struct {
	MaxModelCalls  int `toml:"max_model_calls"`
	MaxToolCalls   int `toml:"max_tool_calls"`
	HistoryWindow  int `toml:"history_window"`
	// RecursionLimit of 0 lets the agent derive it from MaxModelCalls.
	RecursionLimit int `toml:"recursion_limit"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Model:      ModelConfig{Provider: "gemini", Name: "gemini-2.5-flash", Temperature: 0.2},
		Email:      EmailConfig{IMAPAddr: "imap.gmail.com:993", SMTPAddr: "smtp.gmail.com:587", Mailbox: "INBOX"},
		Checkpoint: CheckpointConfig{Path: "agentgraph.db"},
		Artifacts:  ArtifactConfig{Dir: "."},
		Log:        LogConfig{Level: "info", Format: "text"},
		Agent:      AgentConfig{MaxModelCalls: 10, HistoryWindow: 20},
	}
}

// Load reads config: defaults -> TOML file -> .env files -> env vars (env wins).
// A missing TOML file or .env file is not an error. Without envFiles the
// .env in the working directory is tried.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("AGENTGRAPH_CONFIG")
	}
	if path == "" {
		path = "agentgraph.toml"
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv never overrides variables already present in the environment
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	applyEnv(&cfg)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString(&cfg.Model.Provider, "AGENTGRAPH_PROVIDER")
	if cfg.Model.Provider == "gemini" {
		setString(&cfg.Model.Name, "GOOGLE_MODEL")
	}
	setString(&cfg.Model.Name, "AGENTGRAPH_MODEL")
	setString(&cfg.Model.GoogleAPIKey, "GOOGLE_API_KEY")
	setString(&cfg.Model.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&cfg.Model.AnthropicAPIKey, "ANTHROPIC_API_KEY")

	setString(&cfg.Email.Username, "EMAIL_USERNAME")
	setString(&cfg.Email.Password, "EMAIL_PASSWORD")
	setString(&cfg.Email.IMAPAddr, "AGENTGRAPH_IMAP_ADDR")
	setString(&cfg.Email.SMTPAddr, "AGENTGRAPH_SMTP_ADDR")

	setString(&cfg.Checkpoint.Path, "AGENTGRAPH_CHECKPOINT_PATH")
	setString(&cfg.Artifacts.Dir, "AGENTGRAPH_ARTIFACT_DIR")
	setString(&cfg.Log.Level, "AGENTGRAPH_LOG_LEVEL")
	setString(&cfg.Log.Format, "AGENTGRAPH_LOG_FORMAT")
}
