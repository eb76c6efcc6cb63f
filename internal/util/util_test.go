package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type divideArgs struct {
	A    float64 `json:"a" description:"Dividend"`
	B    float64 `json:"b" description:"Divisor"`
	Note string  `json:"note,omitempty"`
}

func TestCreateSchema(t *testing.T) {
	schema := CreateSchema(divideArgs{})

	assert.Equal(t, "object", schema["type"])
	props := schema["properties"].(map[string]any)
	assert.Equal(t, "number", props["a"].(map[string]any)["type"])
	assert.Equal(t, "Divisor", props["b"].(map[string]any)["description"])
	assert.Equal(t, []string{"a", "b"}, schema["required"])
}

func TestValidateParameters(t *testing.T) {
	schema := CreateSchema(divideArgs{})

	require.NoError(t, ValidateParameters(map[string]any{"a": 1.0, "b": 2.0}, schema))

	err := ValidateParameters(map[string]any{"a": 1.0}, schema)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "b", verr.Field)

	err = ValidateParameters(map[string]any{"a": "one", "b": 2.0}, schema)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "a", verr.Field)
}

func TestValidateParameters_DecodedSchema(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"op": map[string]any{"type": "string", "enum": []any{"+", "-"}},
		},
		"required": []any{"op"},
	}

	assert.NoError(t, ValidateParameters(map[string]any{"op": "+"}, schema))
	assert.Error(t, ValidateParameters(map[string]any{"op": "*"}, schema))
	assert.Error(t, ValidateParameters(map[string]any{}, schema))
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("plain text", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)

	out, err = RenderTemplate("Draft: {{.document}} by {{upper .name}}", map[string]any{"document": "hello", "name": "bob"})
	require.NoError(t, err)
	assert.Equal(t, "Draft: hello by BOB", out)

	out, err = RenderTemplate(`{{default "empty" .document}}`, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "empty", out)

	_, err = RenderTemplate("{{.broken", nil)
	assert.Error(t, err)
}
