package domain

import (
	"errors"
	"fmt"
)

// Validation kinds carried by ValidationError.
const (
	ValidationEmpty    = "empty"
	ValidationTooLong  = "too-long"
	ValidationBadEnum  = "bad-enum"
	ValidationBadColor = "bad-color"
	ValidationBadType  = "bad-type"
)

// ValidationError reports a rejected entity field. Field names the offending
// attribute, Kind is one of the Validation* constants.
type ValidationError struct {
	Field string
	Kind  string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func errEmpty(field string) error {
	return &ValidationError{Field: field, Kind: ValidationEmpty, Msg: "must not be empty"}
}

func errTooLong(field string, max int) error {
	return &ValidationError{Field: field, Kind: ValidationTooLong, Msg: fmt.Sprintf("must be at most %d characters", max)}
}

func errBadEnum(field string, value any) error {
	return &ValidationError{Field: field, Kind: ValidationBadEnum, Msg: fmt.Sprintf("invalid value %q", value)}
}

func errBadColor(field, value string) error {
	return &ValidationError{Field: field, Kind: ValidationBadColor, Msg: fmt.Sprintf("invalid hex color %q", value)}
}

func errBadType(field, want string) error {
	return &ValidationError{Field: field, Kind: ValidationBadType, Msg: fmt.Sprintf("must be a %s", want)}
}

var (
	// ErrBoardNotFound is returned when an operation names an unknown board.
	ErrBoardNotFound = errors.New("board not found")
	// ErrBoardExists is returned when a board id is already taken.
	ErrBoardExists = errors.New("board already exists")
	// ErrTaskNotFound is returned when an operation names an unknown task.
	ErrTaskNotFound = errors.New("task not found")
)
