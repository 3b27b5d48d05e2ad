// Package kerr defines the error-kind vocabulary shared by every layer of
// kvsfs: kvs, dsal, nsal, cfs, and fh all return errors built from Kind so
// that the outermost caller can map them to POSIX errno values without
// knowing which layer produced them.
package kerr

import "fmt"

// Kind is one of the error kinds enumerated in the spec's error handling
// design. It carries no payload and is not itself an error; use New/Wrap
// below to attach it, with context, to an error.
type Kind int

const (
	_ Kind = iota
	Invalid
	NotFound
	Exists
	NotDir
	NotEmpty
	PermissionDenied
	NoSpace
	NoMemory
	BufferTooSmall
	CrossDevice
	NameTooLong
	BackendTransient
	BackendFatal
)

func (k Kind) String() string {
	switch k {
	case Invalid:
		return "invalid"
	case NotFound:
		return "not_found"
	case Exists:
		return "exists"
	case NotDir:
		return "not_dir"
	case NotEmpty:
		return "not_empty"
	case PermissionDenied:
		return "permission_denied"
	case NoSpace:
		return "no_space"
	case NoMemory:
		return "no_memory"
	case BufferTooSmall:
		return "buffer_too_small"
	case CrossDevice:
		return "cross_device"
	case NameTooLong:
		return "name_too_long"
	case BackendTransient:
		return "backend_transient"
	case BackendFatal:
		return "backend_fatal"
	default:
		return "unknown"
	}
}

// Error is a Kind annotated with a human-readable message and, optionally,
// the error it wraps.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an *Error with the given kind and formatted message.
func New(k Kind, format string, args ...any) error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a kind and message, preserving err for Unwrap.
func Wrap(k Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind carried by err, or BackendFatal if err was not
// produced by this package (an unclassified error is treated as the most
// severe kind so that callers fail closed rather than open).
func KindOf(err error) Kind {
	if err == nil {
		return 0
	}
	var e *Error
	for {
		if ke, ok := err.(*Error); ok {
			e = ke
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
		if err == nil {
			break
		}
	}
	if e == nil {
		return BackendFatal
	}
	return e.Kind
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, k Kind) bool {
	return KindOf(err) == k
}
