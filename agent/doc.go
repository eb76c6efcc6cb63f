// Package agent contains prebuilt agents assembled from the flow steps on top
// of a graph.StateGraph[core.State]:
//
//  1. ToolAgent, the ReAct loop model -> tools -> model that ends when the
//     model stops requesting tools, a call ceiling is reached or a tool
//     reports completion. With an input source it becomes a conversational
//     agent that hands every final reply back to a human.
//  2. StructuredAgent, a single model call whose reply is parsed strictly
//     into a Go value.
//
// Instructions are static text or provider functions, rendered as templates
// over the state values before every model call.
package agent
