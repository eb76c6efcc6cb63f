// Package core provides the foundational domain types shared by every agent
// graph. It defines:
//
//   - Messages (role tagged turns made of text, data, tool call and tool
//     result parts)
//   - State (the append-only conversation log plus request-scoped values and
//     loop counters that flow through graph nodes)
//   - Limits (call-count ceilings used by continuation policies)
//   - ToolContext (the constrained surface a tool sees while it runs)
//
// The package keeps orchestration (graph), model access (model) and concrete
// tools out of scope. State is a value: every step receives one and returns
// a new one, so nodes stay pure and easy to test.
package core
