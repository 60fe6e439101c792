package types

import "errors"

// ErrorKind classifies an operation failure, or a success that carries a caveat.
type ErrorKind string

// Error kinds.
const (
	KindNone             ErrorKind = ""
	KindNotFound         ErrorKind = "NotFound"
	KindPermissionDenied ErrorKind = "PermissionDenied"
	KindInvalidArgument  ErrorKind = "InvalidArgument"
	KindUnsupported      ErrorKind = "Unsupported"
	KindRestartRequired  ErrorKind = "RestartRequired"
	KindUnknown          ErrorKind = "Unknown"
)

// Sentinel errors returned by platform backends. Classify maps them to kinds.
var (
	// ErrNotFound means the target adapter, service, value or plan does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied means the process lacks the privilege for the call.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidArgument means an unknown enumeration value was supplied.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupported means the platform lacks a required feature.
	ErrUnsupported = errors.New("not supported on this platform")
)

// Classify maps err to an ErrorKind. Nil maps to KindNone.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrUnsupported):
		return KindUnsupported
	default:
		return KindUnknown
	}
}
