package bot

import "errors"

var (
	// ErrNotFound is returned when a bot does not exist.
	ErrNotFound = errors.New("botrelay: bot not found")

	// ErrUsernameTaken is returned when another bot already uses the username.
	ErrUsernameTaken = errors.New("botrelay: username already taken")

	// ErrStoreClosed is returned by stores after Close.
	ErrStoreClosed = errors.New("botrelay: store is closed")
)

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "bot validation: " + e.Field + ": " + e.Message
}
