package errors

import (
	"fmt"
	"strings"
)

// FormatForCLI formats an error for terminal display: message, first
// suggestion as a hint, and the stable code for reference.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	e := AsError(err, CodeValidation)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", e.Message))
	if len(e.Suggestions) > 0 {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", e.Suggestions[0]))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", e.Code))
	return sb.String()
}

// FormatForLog returns key-value pairs suitable for slog attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	e, ok := err.(*Error)
	if !ok {
		return map[string]any{"error": err.Error()}
	}

	result := map[string]any{
		"error_code": e.Code,
		"message":    e.Message,
		"retryable":  e.Retryable,
	}
	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}
	for k, v := range e.Details {
		result["detail_"+k] = v
	}
	return result
}
