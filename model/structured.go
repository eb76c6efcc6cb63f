package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MalformedOutputError reports a reply that does not match the requested
// structured output.
type MalformedOutputError struct {
	Output string
	Err    error
}

// Error implements the error interface.
func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed structured output: %v", e.Err)
}

// Unwrap returns the underlying decode or validation error.
func (e *MalformedOutputError) Unwrap() error { return e.Err }

// Validator is implemented by structured output types that check their own
// required fields after decoding.
type Validator interface {
	Validate() error
}

// ParseJSON decodes a structured model reply into v. The reply must be a
// single JSON value, optionally wrapped in one fenced code block (```json or
// ```). Unknown fields, trailing data and failed validation are errors.
func ParseJSON(text string, v any) error {
	body, err := unfence(text)
	if err != nil {
		return &MalformedOutputError{Output: text, Err: err}
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &MalformedOutputError{Output: text, Err: err}
	}
	if dec.More() {
		return &MalformedOutputError{Output: text, Err: errors.New("trailing data after JSON value")}
	}
	if val, ok := v.(Validator); ok {
		if err := val.Validate(); err != nil {
			return &MalformedOutputError{Output: text, Err: err}
		}
	}
	return nil
}

func unfence(text string) (string, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", errors.New("empty output")
	}
	if !strings.HasPrefix(s, "```") {
		return s, nil
	}

	header, rest, ok := strings.Cut(s, "\n")
	if !ok {
		return "", errors.New("unterminated code fence")
	}
	lang := strings.TrimSpace(strings.TrimPrefix(header, "```"))
	if lang != "" && !strings.EqualFold(lang, "json") {
		return "", fmt.Errorf("unexpected code fence language %q", lang)
	}

	body, ok := strings.CutSuffix(rest, "```")
	if !ok {
		return "", errors.New("unterminated code fence")
	}
	if strings.Contains(body, "```") {
		return "", errors.New("more than one code fence")
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return "", errors.New("empty code fence")
	}
	return body, nil
}
