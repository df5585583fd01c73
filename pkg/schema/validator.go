package schema

import (
	"fmt"
	"strings"
)

// ValidateDefaultValue checks if a default value expression is likely valid SQL.
// Returns an error with a suggested fix for common mistakes.
func ValidateDefaultValue(defaultVal string) error {
	trimmed := strings.TrimSpace(defaultVal)
	if trimmed == "" {
		return fmt.Errorf("invalid DEFAULT value: empty expression")
	}

	commonMistakes := map[string]string{
		"CURRENT TIMESTAMP": "CURRENT_TIMESTAMP",
		"CURRENT TIME":      "CURRENT_TIME",
		"CURRENT DATE":      "CURRENT_DATE",
		"NOW ()":            "NOW()",
	}
	upperVal := strings.ToUpper(trimmed)
	for mistake, correct := range commonMistakes {
		if strings.Contains(upperVal, mistake) {
			return fmt.Errorf("invalid DEFAULT value: '%s' contains '%s' which should be '%s'",
				defaultVal, mistake, correct)
		}
	}

	if upperVal == "NOW" {
		return fmt.Errorf("invalid DEFAULT value: '%s' is missing parentheses, use NOW()", defaultVal)
	}
	return nil
}

// IsCurrentTimestamp reports whether a default expression evaluates to the
// transaction timestamp.
func IsCurrentTimestamp(defaultVal string) bool {
	switch strings.ToUpper(strings.TrimSpace(defaultVal)) {
	case "CURRENT_TIMESTAMP", "NOW()", "LOCALTIMESTAMP", "CURRENT_DATE", "TRANSACTION_TIMESTAMP()":
		return true
	}
	return false
}
