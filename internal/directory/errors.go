package directory

import "errors"

var (
	ErrNotFound     = errors.New("directory: not found")
	ErrForbidden    = errors.New("directory: forbidden")
	ErrInvalidInput = errors.New("directory: invalid input")
	ErrConflict     = errors.New("directory: resource conflict")
)

// FieldError names one invalid field in a rejected payload.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates per-field failures. Handlers map it to a 400
// response carrying the field list; nothing from the payload is persisted.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	return "directory: validation failed"
}
