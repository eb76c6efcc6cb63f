package core

import (
	"encoding/json"
	"fmt"
)

// Part represents a polymorphic segment of role-based message content.
// Concrete part types implement the unexported isPart marker enabling a
// closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text string // Plain UTF-8 text
}

// isPart implements the Part interface for TextPart.
func (TextPart) isPart() {}

// DataPart is a structured data segment (e.g., a parsed JSON object).
type DataPart struct {
	Data map[string]any // Structured key/value payload
}

// isPart implements the Part interface for DataPart.
func (DataPart) isPart() {}

// FunctionCall describes a tool/function invocation request.
type FunctionCall struct {
	ID        string `json:"id,omitempty"`        // Provider supplied or generated call id
	Name      string `json:"name"`                // Tool / function name
	Arguments string `json:"arguments,omitempty"` // Serialized argument payload (JSON object)
}

// FunctionCallPart wraps a FunctionCall as a content part.
type FunctionCallPart struct {
	FunctionCall FunctionCall
}

// isPart implements the Part interface for FunctionCallPart.
func (FunctionCallPart) isPart() {}

// FunctionResponse describes the outcome of a function call.
type FunctionResponse struct {
	ID        string `json:"id,omitempty"`        // Matches originating FunctionCall ID
	Name      string `json:"name"`                // Function name
	Response  any    `json:"response,omitempty"`  // Successful result (any shape)
	Error     string `json:"error,omitempty"`     // Populated on failure
	Completed bool   `json:"completed,omitempty"` // Tool reported the overall task as done
}

// Text renders the response as the string handed back to a model.
func (fr FunctionResponse) Text() string {
	if fr.Error != "" {
		return "Error: " + fr.Error
	}

	switch v := fr.Response.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

// FunctionResponsePart wraps a FunctionResponse as a content part.
type FunctionResponsePart struct {
	FunctionResponse FunctionResponse
}

// isPart implements the Part interface for FunctionResponsePart.
func (FunctionResponsePart) isPart() {}

// partJSON is the tagged wire shape used to (de)serialize the Part union.
type partJSON struct {
	Type             string            `json:"type"`
	Text             string            `json:"text,omitempty"`
	Data             map[string]any    `json:"data,omitempty"`
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
}

const (
	partTypeText             = "text"
	partTypeData             = "data"
	partTypeFunctionCall     = "function_call"
	partTypeFunctionResponse = "function_response"
)

func marshalPart(p Part) (partJSON, error) {
	switch v := p.(type) {
	case TextPart:
		return partJSON{Type: partTypeText, Text: v.Text}, nil
	case DataPart:
		return partJSON{Type: partTypeData, Data: v.Data}, nil
	case FunctionCallPart:
		fc := v.FunctionCall
		return partJSON{Type: partTypeFunctionCall, FunctionCall: &fc}, nil
	case FunctionResponsePart:
		fr := v.FunctionResponse
		return partJSON{Type: partTypeFunctionResponse, FunctionResponse: &fr}, nil
	default:
		return partJSON{}, fmt.Errorf("unsupported part type %T", p)
	}
}

func unmarshalPart(pj partJSON) (Part, error) {
	switch pj.Type {
	case partTypeText:
		return TextPart{Text: pj.Text}, nil
	case partTypeData:
		return DataPart{Data: pj.Data}, nil
	case partTypeFunctionCall:
		if pj.FunctionCall == nil {
			return nil, fmt.Errorf("function_call part without payload")
		}
		return FunctionCallPart{FunctionCall: *pj.FunctionCall}, nil
	case partTypeFunctionResponse:
		if pj.FunctionResponse == nil {
			return nil, fmt.Errorf("function_response part without payload")
		}
		return FunctionResponsePart{FunctionResponse: *pj.FunctionResponse}, nil
	default:
		return nil, fmt.Errorf("unknown part type %q", pj.Type)
	}
}
