package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// FilterError represents a validation error for a specific field.
type FilterError struct {
	Field   string
	Message string
}

func (e FilterError) Error() string {
	return e.Field + ": " + e.Message
}

const maxSymbolLength = 12

// symbolParam extracts and validates the symbol path parameter. Symbols
// are matched case-insensitively; normalization happens in the domain.
func symbolParam(r *http.Request) (string, error) {
	symbol := strings.TrimSpace(pathParam(r, "symbol"))
	if symbol == "" {
		return "", FilterError{Field: "symbol", Message: "missing"}
	}
	if len(symbol) > maxSymbolLength {
		return "", FilterError{Field: "symbol", Message: "too long"}
	}
	return symbol, nil
}

// uploadIDParam extracts and validates the uploadID path parameter, which
// is always a UUID.
func uploadIDParam(r *http.Request) (string, error) {
	raw := strings.TrimSpace(pathParam(r, "uploadID"))
	if raw == "" {
		return "", FilterError{Field: "uploadID", Message: "missing"}
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return "", FilterError{Field: "uploadID", Message: "invalid UUID"}
	}
	return parsed.String(), nil
}
