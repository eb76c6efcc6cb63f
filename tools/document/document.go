// Package document implements a drafting workflow: the model stages the
// document text into the run state and saves it to an artifact store once
// the user is satisfied.
package document

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentgraph/artifact"
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/tool"
)

// StateKey holds the current draft in core.State values.
const StateKey = "document"

// Instruction is the drafting system prompt. It renders the current draft
// from the state.
const Instruction = `You are a helpful AI assistant called Drafter AI.
Your job is to help users write clear and well-structured content such as notes, emails, blog posts, or reports.
Follow the user's instructions carefully and try to make the writing easy to understand.
Use correct grammar, organize ideas clearly, and keep the tone friendly and professional.
If the user doesn't give enough detail, ask questions before starting.
If they ask for improvements, edit the content without changing the original meaning too much.
Keep your answers short and focused unless the user asks for a long response.
Use the update_tool tool to change the document and the save_content tool when the user asks to save it.
The current document content is: {{ default "" .document }}`

// Prompt is shown to the user before every turn.
const Prompt = "\nWhat would you like to do with the document?\n> "

// UpdateArgs are the arguments of update_tool.
type UpdateArgs struct {
	Content string `json:"content" description:"The complete new document content"`
}

// SaveArgs are the arguments of save_content.
type SaveArgs struct {
	Filename string `json:"filename" description:"Name for the text file"`
}

// Draft returns the draft stored in s.
func Draft(s core.State) string { return s.String(StateKey) }

// Update returns update_tool, which replaces the draft.
func Update() tool.Tool {
	return tool.NewTypedTool("update_tool", "Updates the document with the provided content.", func(tc *core.ToolContext, args UpdateArgs) (any, error) {
		tc.SetState(StateKey, args.Content)
		return "Document content updated successfully.\n" + args.Content, nil
	})
}

// Options configures save_content.
type Options struct {
	// Namespace is the artifact namespace documents are saved under.
	Namespace string
}

// Save returns save_content, which writes the draft to store as
// <filename>.txt and completes the run.
func Save(store artifact.Store, optFns ...func(o *Options)) tool.Tool {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	return tool.NewTypedTool("save_content", "Save the current document to a text file and finish the process.", func(tc *core.ToolContext, args SaveArgs) (any, error) {
		filename := strings.TrimSpace(args.Filename)
		if !strings.HasSuffix(filename, ".txt") {
			filename += ".txt"
		}

		var draft string
		if v, ok := tc.GetState(StateKey); ok {
			draft, _ = v.(string)
		}

		if err := store.Save(opts.Namespace, filename, []byte(draft)); err != nil {
			tc.Logger().Warn("document.save.failed", "filename", filename, "error", err)
			return nil, fmt.Errorf("failed to save document: %w", err)
		}
		tc.Logger().Info("document.saved", "filename", filename, "bytes", len(draft))
		return tool.Done("Document saved successfully as " + filename), nil
	})
}

// Tools returns update_tool and save_content.
func Tools(store artifact.Store, optFns ...func(o *Options)) []tool.Tool {
	return []tool.Tool{Update(), Save(store, optFns...)}
}
