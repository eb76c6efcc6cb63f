// Package graph implements a small directed state graph runtime.
//
// A StateGraph is assembled from named nodes (functions from state to state)
// joined by plain edges or conditional edges whose router inspects the state
// and picks the next node. Compile validates the wiring and returns a Graph
// that can be invoked, streamed step by step, checkpointed after every node
// and resumed from the last checkpoint of a thread.
//
//	b := graph.New[core.State]()
//	b.AddNode("agent", callModel)
//	b.AddNode("tools", runTools)
//	b.SetEntryPoint("agent")
//	b.AddConditionalEdges("agent", route, map[string]string{"continue": "tools", "end": graph.End})
//	b.AddEdge("tools", "agent")
//	g, err := b.Compile()
//
// Node executions are bounded by a recursion limit so a graph whose routers
// never reach End still terminates.
package graph
