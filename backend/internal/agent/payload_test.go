package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sysdesign-assistant/backend/internal/assistant"
	apperrors "sysdesign-assistant/backend/pkg/errors"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    map[string]interface{}
		wantErr bool
	}{
		{name: "plain object", text: `{"diagram": "A-->B"}`, want: map[string]interface{}{"diagram": "A-->B"}},
		{name: "fenced with tag", text: "```json\n{\"diagram\": \"A-->B\"}\n```", want: map[string]interface{}{"diagram": "A-->B"}},
		{name: "fenced without tag", text: "```\n{\"a\": 1}\n```", want: map[string]interface{}{"a": float64(1)}},
		{name: "one line fence with tag", text: "```json {\"requirements\":\"x\"}```", want: map[string]interface{}{"requirements": "x"}},
		{name: "surrounding whitespace", text: "\n  {\"a\": \"b\"}  \n", want: map[string]interface{}{"a": "b"}},
		{name: "prose", text: "Here is the design.", wantErr: true},
		{name: "array", text: `["a"]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePayload(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFieldValue(t *testing.T) {
	obj := map[string]interface{}{
		"text":   "hello",
		"empty":  "",
		"nested": map[string]interface{}{"a": float64(1)},
		"null":   nil,
	}

	v, ok := fieldValue(obj, "text")
	assert.True(t, ok)
	assert.Equal(t, "hello", v)

	v, ok = fieldValue(obj, "nested")
	assert.True(t, ok)
	assert.JSONEq(t, `{"a": 1}`, v)

	for _, field := range []string{"empty", "null", "missing"} {
		_, ok = fieldValue(obj, field)
		assert.False(t, ok, field)
	}
}

func TestSchemaViolations(t *testing.T) {
	params := DefaultStages()[0].Definition.Function.Parameters

	assert.Empty(t, schemaViolations(params, map[string]interface{}{"requirements": "x"}))
	assert.NotEmpty(t, schemaViolations(params, map[string]interface{}{"other": "x"}))
	assert.NotEmpty(t, schemaViolations(params, map[string]interface{}{"requirements": 42}))
}

func TestValidateFunctionSchema(t *testing.T) {
	for _, stage := range DefaultStages() {
		assert.NoError(t, validateFunctionSchema(stage.Definition.Function), stage.Definition.Role)
	}

	tests := map[string]*assistant.FunctionSchema{
		"no name":       {Parameters: map[string]interface{}{"type": "object"}},
		"no parameters": {Name: "system_design"},
		"bad type":      {Name: "system_design", Parameters: map[string]interface{}{"type": 5}},
	}
	for name, fn := range tests {
		err := validateFunctionSchema(fn)
		require.Error(t, err, name)
		assert.True(t, apperrors.IsConfigurationError(err), name)
	}
}
