package agent

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"sysdesign-assistant/backend/internal/assistant"
	"sysdesign-assistant/backend/internal/markdown"
	apperrors "sysdesign-assistant/backend/pkg/errors"
)

// validateFunctionSchema rejects parameter schemas the service would refuse
func validateFunctionSchema(fn *assistant.FunctionSchema) error {
	if fn.Name == "" {
		return apperrors.NewConfigValidationFailed("function.name", "declared function needs a name")
	}
	if fn.Parameters == nil {
		return apperrors.NewConfigValidationFailed("function.parameters", fmt.Sprintf("%s has no parameter schema", fn.Name))
	}
	if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(fn.Parameters)); err != nil {
		return apperrors.NewConfigValidationFailed("function.parameters", fmt.Sprintf("%s: %v", fn.Name, err))
	}
	return nil
}

// parsePayload decodes a model reply into a JSON object. Models sometimes wrap
// the object in a markdown fence despite being told not to.
func parsePayload(text string) (map[string]interface{}, error) {
	trimmed := markdown.StripFence(text)
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// fieldValue returns obj[field] as text. Non-string values are re-encoded as JSON.
func fieldValue(obj map[string]interface{}, field string) (string, bool) {
	v, ok := obj[field]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, s != ""
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

// schemaViolations lists where obj departs from the declared parameters
func schemaViolations(params map[string]interface{}, obj map[string]interface{}) []string {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(params), gojsonschema.NewGoLoader(obj))
	if err != nil {
		return []string{err.Error()}
	}
	if result.Valid() {
		return nil
	}
	violations := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		violations = append(violations, e.String())
	}
	return violations
}
