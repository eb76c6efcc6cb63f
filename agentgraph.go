// Package agentgraph wires the building blocks of this module into a ready to
// use runtime for command line agents. Most programs interact with it by:
//  1. Creating a Runtime via New, which loads configuration from defaults, an
//     optional TOML file, .env files and the environment
//  2. Building agents with the Runtime's model, logger and limits
//  3. Opening the stores they need (checkpoints, artifacts, mail)
//
// Everything the Runtime hands out can also be constructed directly from the
// agent, checkpoint, artifact and tools packages.
package agentgraph

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hupe1980/agentgraph/agent"
	"github.com/hupe1980/agentgraph/artifact"
	"github.com/hupe1980/agentgraph/checkpoint/sqlite"
	"github.com/hupe1980/agentgraph/internal/config"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/model/resolve"
	"github.com/hupe1980/agentgraph/tools/mail"
)

// Options configures the Runtime.
type Options struct {
	// ConfigPath is the TOML file to read. Empty means $AGENTGRAPH_CONFIG or
	// agentgraph.toml; a missing file is fine.
	ConfigPath string
	// EnvFiles are loaded into the environment before it is read. Defaults
	// to .env in the working directory.
	EnvFiles []string
	// Model overrides the configured provider, e.g. with a scripted model.
	Model model.Model
	// Logger overrides the configured logger.
	Logger logging.Logger
	// LogOutput receives logs of the configured logger. Defaults to stderr so
	// they do not interleave with the conversation.
	LogOutput io.Writer
}

// Runtime bundles the model, logger and settings shared by the agents of a
// process.
type Runtime struct {
	model  model.Model
	logger logging.Logger
	cfg    config.Config
}

// New loads configuration and constructs the model and logger.
func New(ctx context.Context, optFns ...func(o *Options)) (*Runtime, error) {
	opts := Options{LogOutput: os.Stderr}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg, err := config.Load(opts.ConfigPath, opts.EnvFiles...)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger(&logging.LoggerConfig{
			Level:     logging.ParseLevel(cfg.Log.Level),
			Format:    cfg.Log.Format,
			Output:    opts.LogOutput,
			Component: "agentgraph",
		})
	}

	m := opts.Model
	if m == nil {
		m, err = resolve.New(ctx, resolve.Options{
			Provider:    cfg.Model.Provider,
			Name:        cfg.Model.Name,
			Temperature: cfg.Model.Temperature,
			APIKey:      cfg.Model.APIKey(),
		})
		if err != nil {
			return nil, fmt.Errorf("agentgraph: %w", err)
		}
	}

	info := m.Info()
	logger.Debug("runtime.ready", "provider", info.Provider, "model", info.Name)

	return &Runtime{model: m, logger: logger, cfg: cfg}, nil
}

// Model returns the configured model.
func (r *Runtime) Model() model.Model { return r.model }

// Logger returns the configured logger.
func (r *Runtime) Logger() logging.Logger { return r.logger }

// ToolAgentDefaults applies the configured limits and logger to a ToolAgent.
// Pass it before agent specific options so those win.
func (r *Runtime) ToolAgentDefaults(o *agent.ToolAgentOptions) {
	a := r.cfg.Agent
	o.MaxModelCalls = a.MaxModelCalls
	o.MaxToolCalls = a.MaxToolCalls
	o.HistoryWindow = a.HistoryWindow
	if a.RecursionLimit > 0 {
		o.RecursionLimit = a.RecursionLimit
	}
	o.Logger = r.logger
}

// StructuredAgentDefaults applies the configured history window and logger
// to a StructuredAgent.
func (r *Runtime) StructuredAgentDefaults(o *agent.StructuredAgentOptions) {
	o.HistoryWindow = r.cfg.Agent.HistoryWindow
	o.Logger = r.logger
}

// OpenCheckpointer opens the configured SQLite checkpoint database. The
// caller closes it.
func (r *Runtime) OpenCheckpointer(ctx context.Context) (*sqlite.Saver, error) {
	return sqlite.New(ctx, r.cfg.Checkpoint.Path, func(o *sqlite.Options) {
		o.Logger = r.logger
	})
}

// ArtifactStore returns a file store rooted at the configured directory.
func (r *Runtime) ArtifactStore() *artifact.FileStore {
	return artifact.NewFileStore(r.cfg.Artifacts.Dir)
}

// Mailbox returns an IMAP mailbox for the configured account.
func (r *Runtime) Mailbox() *mail.IMAPMailbox {
	e := r.cfg.Email
	return mail.NewIMAPMailbox(mail.Credentials{Username: e.Username, Password: e.Password}, func(o *mail.IMAPOptions) {
		o.Addr = e.IMAPAddr
		o.Mailbox = e.Mailbox
	})
}

// MailSender returns an SMTP sender for the configured account.
func (r *Runtime) MailSender() *mail.SMTPSender {
	e := r.cfg.Email
	return mail.NewSMTPSender(mail.Credentials{Username: e.Username, Password: e.Password}, func(o *mail.SMTPOptions) {
		o.Addr = e.SMTPAddr
	})
}
