package tools

import (
	"strings"
	"testing"
)

func TestValidateArgs(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to":          map[string]any{"type": "string"},
			"max_results": map[string]any{"type": "integer"},
			"ratio":       map[string]any{"type": "number"},
			"urgent":      map[string]any{"type": "boolean"},
			"attendees":   map[string]any{"type": "array"},
			"meta":        map[string]any{"type": "object"},
		},
		"required": []string{"to"},
	}

	tests := []struct {
		name    string
		args    map[string]any
		wantErr string
	}{
		{
			name: "valid full set",
			args: map[string]any{
				"to":          "a@example.com",
				"max_results": float64(5), // JSON numbers decode as float64
				"ratio":       1.5,
				"urgent":      true,
				"attendees":   []any{"b@example.com"},
				"meta":        map[string]any{"k": "v"},
			},
		},
		{
			name: "required only",
			args: map[string]any{"to": "a@example.com"},
		},
		{
			name:    "missing required",
			args:    map[string]any{"subject": "hi"},
			wantErr: `missing required argument "to"`,
		},
		{
			name:    "wrong string type",
			args:    map[string]any{"to": 42},
			wantErr: "expected string",
		},
		{
			name:    "fractional integer",
			args:    map[string]any{"to": "a@example.com", "max_results": 2.5},
			wantErr: "expected integer",
		},
		{
			name:    "wrong boolean type",
			args:    map[string]any{"to": "a@example.com", "urgent": "yes"},
			wantErr: "expected boolean",
		},
		{
			name: "whole float accepted as integer",
			args: map[string]any{"to": "a@example.com", "max_results": float64(3)},
		},
		{
			name: "unknown argument passes through",
			args: map[string]any{"to": "a@example.com", "extra": struct{}{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateArgs(schema, tt.args)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateArgsNilSchemaAndArgs(t *testing.T) {
	if err := ValidateArgs(nil, map[string]any{"x": 1}); err != nil {
		t.Fatalf("nil schema must accept anything: %v", err)
	}
	schema := map[string]any{"type": "object", "properties": map[string]any{}}
	if err := ValidateArgs(schema, nil); err != nil {
		t.Fatalf("nil args with no required fields must pass: %v", err)
	}
}

func TestValidateArgsRequiredFromJSONDecodedSchema(t *testing.T) {
	// Schemas round-tripped through JSON carry []any, not []string.
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"query": map[string]any{"type": "string"}},
		"required":   []any{"query"},
	}
	if err := ValidateArgs(schema, map[string]any{}); err == nil {
		t.Fatal("expected missing required error")
	}
	if err := ValidateArgs(schema, map[string]any{"query": "is:unread"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
