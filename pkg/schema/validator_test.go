package schema

import (
	"strings"
	"testing"
)

func TestValidateDefaultValue(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		wantError bool
		errorMsg  string
	}{
		{name: "valid CURRENT_TIMESTAMP", value: "CURRENT_TIMESTAMP"},
		{name: "valid NOW()", value: "NOW()"},
		{name: "valid number", value: "0"},
		{name: "valid string literal", value: "'draft'"},
		{name: "space in CURRENT TIMESTAMP", value: "CURRENT TIMESTAMP", wantError: true, errorMsg: "CURRENT_TIMESTAMP"},
		{name: "NOW without parentheses", value: "now", wantError: true, errorMsg: "NOW()"},
		{name: "empty", value: "  ", wantError: true, errorMsg: "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDefaultValue(tt.value)
			if tt.wantError {
				if err == nil {
					t.Fatalf("expected error for %q", tt.value)
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("expected error containing %q, got %q", tt.errorMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestIsCurrentTimestamp(t *testing.T) {
	for _, v := range []string{"CURRENT_TIMESTAMP", "now()", " NOW() "} {
		if !IsCurrentTimestamp(v) {
			t.Errorf("expected %q to be a timestamp default", v)
		}
	}
	if IsCurrentTimestamp("'2020-01-01'") {
		t.Error("literal should not be treated as current timestamp")
	}
}
