package reason

import (
	"errors"
)

// ErrorKind categorizes the closed set of failures this package can produce.
type ErrorKind string

const (
	// ErrorKindRequest indicates a transport or HTTP failure.
	ErrorKindRequest ErrorKind = "request_failed"
	// ErrorKindIO indicates a local I/O failure, such as reading executor output.
	ErrorKindIO ErrorKind = "io_failed"
	// ErrorKindDocker indicates a fatal container creation or launch failure.
	ErrorKindDocker ErrorKind = "docker_failed"
	// ErrorKindExecutor indicates post-launch executor misbehavior.
	ErrorKindExecutor ErrorKind = "executor_failed"
	// ErrorKindSerde indicates malformed JSON where strict parsing is required.
	ErrorKindSerde ErrorKind = "serde_failed"
	// ErrorKindJoin indicates a background task could not be awaited. Part
	// of the closed taxonomy; no operation currently produces it, since
	// background failures surface through an operation's resolution.
	ErrorKindJoin ErrorKind = "join_failed"
	// ErrorKindNoExecutor indicates neither a local binary nor a container
	// runtime was usable.
	ErrorKindNoExecutor ErrorKind = "no_executor_available"
)

// Error is the package-wide error type. All failures surfaced by boot,
// connect, and completion operations are of this type.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error // underlying error, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a reason error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Kind == kind
	}
	return false
}

func newRequestError(message string, err error) *Error {
	return &Error{Kind: ErrorKindRequest, Message: message, Err: err}
}

func newIOError(message string, err error) *Error {
	return &Error{Kind: ErrorKindIO, Message: message, Err: err}
}

func newDockerError(message string) *Error {
	return &Error{Kind: ErrorKindDocker, Message: message}
}

func newExecutorError(message string) *Error {
	return &Error{Kind: ErrorKindExecutor, Message: message}
}

func newSerdeError(message string, err error) *Error {
	return &Error{Kind: ErrorKindSerde, Message: message, Err: err}
}

func newNoExecutorError() *Error {
	return &Error{
		Kind:    ErrorKindNoExecutor,
		Message: "no suitable executor was found: neither llama-server nor docker are installed",
	}
}
