package tools

import "errors"

// Tool registry errors.
var (
	// ErrToolNotFound is returned when a tool is not registered.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolNameEmpty is returned when a tool has no name.
	ErrToolNameEmpty = errors.New("tool name cannot be empty")

	// ErrToolExecuteNil is returned when a tool has no execute function.
	ErrToolExecuteNil = errors.New("tool execute function cannot be nil")

	// ErrToolAlreadyRegistered is returned when registering a duplicate.
	ErrToolAlreadyRegistered = errors.New("tool already registered")

	// ErrMissingRequiredArg is returned when a required argument is missing.
	ErrMissingRequiredArg = errors.New("missing required argument")

	// ErrInvalidArgType is returned when an argument has the wrong type.
	ErrInvalidArgType = errors.New("invalid argument type")
)

// Tool execution errors shared by the executors.
var (
	// ErrUnsupportedLanguage is returned for code in a language no
	// runner entry covers.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrNotFound is returned when a file operation targets a path that
	// does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrWrite is returned when a file write fails.
	ErrWrite = errors.New("file write failed")
)
