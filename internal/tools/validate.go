package tools

import (
	"fmt"
	"math"
)

// ValidateArgs checks an argument bag against a tool's JSON schema before
// execution: required fields must be present and values must match the
// declared primitive type. Unknown arguments pass through untouched.
func ValidateArgs(schema map[string]any, args map[string]any) error {
	if schema == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}

	for _, field := range requiredFields(schema) {
		if _, exists := args[field]; !exists {
			return fmt.Errorf("missing required argument %q", field)
		}
	}

	props, ok := schema["properties"].(map[string]any)
	if !ok || len(props) == 0 {
		return nil
	}

	for key, value := range args {
		propDef, ok := props[key].(map[string]any)
		if !ok {
			continue
		}
		expected, ok := propDef["type"].(string)
		if !ok || expected == "" {
			continue
		}
		if err := validateType(value, expected); err != nil {
			return fmt.Errorf("argument %q: %w", key, err)
		}
	}

	return nil
}

func requiredFields(schema map[string]any) []string {
	switch v := schema["required"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func validateType(value any, expected string) error {
	switch expected {
	case "string":
		if _, ok := value.(string); ok {
			return nil
		}
	case "number":
		if isNumber(value) {
			return nil
		}
	case "integer":
		if isInteger(value) {
			return nil
		}
	case "boolean":
		if _, ok := value.(bool); ok {
			return nil
		}
	case "object":
		if _, ok := value.(map[string]any); ok {
			return nil
		}
	case "array":
		if _, ok := value.([]any); ok {
			return nil
		}
		if _, ok := value.([]string); ok {
			return nil
		}
	default:
		// Unknown schema type, accept the value rather than reject it.
		return nil
	}
	return fmt.Errorf("expected %s, got %T", expected, value)
}

func isNumber(value any) bool {
	switch value.(type) {
	case float64, float32, int, int32, int64:
		return true
	}
	return false
}

func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int32, int64:
		return true
	case float64:
		return v == math.Trunc(v)
	case float32:
		return float64(v) == math.Trunc(float64(v))
	}
	return false
}
