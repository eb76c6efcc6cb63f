// Package model defines the provider‑agnostic abstractions for talking to
// hosted language models.
//
// Core goals:
//   - Unify streaming + non‑streaming generation behind a single interface
//   - Carry the conversation as core.Message values so tool calls and
//     results keep their ids across providers
//   - Deterministic replay for tests and offline demos (ScriptedModel)
//   - Strict parsing of structured replies (ParseJSON)
//
// Providers (gemini, openai, anthropic) live in subpackages; resolve picks
// one from configuration.
package model
