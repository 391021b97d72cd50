package errs

// ErrorKind identifies a kind of internal error.
// fully support for errors.Is and errors.As.
type ErrorKind string

const (
	// NotFound is returned when a requested item is not found.
	NotFound = ErrorKind("Not Found")

	// InvalidArgument is returned when the given argument or stored value is malformed.
	InvalidArgument = ErrorKind("Invalid Argument")

	// InternalError is returned when something unexpected happened inside the service.
	InternalError = ErrorKind("Internal Error")

	// Unsupported is returned when the requested feature or configuration is not supported.
	Unsupported = ErrorKind("Unsupported")

	// ConflictSetting is returned when persisted state conflicts with the running configuration.
	ConflictSetting = ErrorKind("Conflict Setting")

	// Duplicate is returned when an item is registered or inserted twice.
	Duplicate = ErrorKind("Duplicate")

	// Timeout is returned when an operation exceeded its deadline.
	Timeout = ErrorKind("Timeout")

	// Unhandled is returned when a query has no registered handler.
	Unhandled = ErrorKind("Unhandled")

	SomethingWentWrong = ErrorKind("Something Went Wrong")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}
