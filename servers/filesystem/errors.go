package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
)

// ErrorKind classifies every failure a filesystem operation can report. The dispatcher
// boundary switches over the kind once to render a message; nothing below it returns raw
// system errors.
type ErrorKind int

// Error kinds reported by the filesystem operations.
const (
	KindUnexpected ErrorKind = iota
	KindSecurity
	KindNotFound
	KindPermissionDenied
	KindNotADirectory
	KindNotAFile
	KindAlreadyExists
	KindInvalidParameter
)

// Error is the tagged error returned by every public operation of this package.
type Error struct {
	Kind ErrorKind
	Path string
	Msg  string
	Err  error
}

func (k ErrorKind) String() string {
	switch k {
	case KindSecurity:
		return "security"
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindNotADirectory:
		return "not_a_directory"
	case KindNotAFile:
		return "not_a_file"
	case KindAlreadyExists:
		return "already_exists"
	case KindInvalidParameter:
		return "invalid_parameter"
	default:
		return "unexpected"
	}
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Path != "" && msg != "" {
		return fmt.Sprintf("%s: %s", e.Path, msg)
	}
	if e.Path != "" {
		return e.Path
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, path, format string, args ...any) *Error {
	return &Error{Kind: kind, Path: path, Msg: fmt.Sprintf(format, args...)}
}

// KindOf reports the kind of err. Tagged errors report their own kind, raw filesystem errors
// are classified by their cause and anything else is KindUnexpected.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnexpected
	}
	var fsErr *Error
	if errors.As(err, &fsErr) {
		return fsErr.Kind
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case errors.Is(err, fs.ErrPermission):
		return KindPermissionDenied
	case errors.Is(err, fs.ErrExist):
		return KindAlreadyExists
	case errors.Is(err, syscall.ENOTDIR):
		return KindNotADirectory
	case errors.Is(err, syscall.EISDIR):
		return KindNotAFile
	default:
		return KindUnexpected
	}
}

// wrapFSError converts an error from the os layer into a tagged Error, keeping tagged errors
// untouched.
func wrapFSError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var fsErr *Error
	if errors.As(err, &fsErr) {
		return err
	}
	return &Error{
		Kind: KindOf(err),
		Path: path,
		Msg:  fmt.Sprintf("failed to %s: %v", op, unwrapPathError(err)),
		Err:  err,
	}
}

// unwrapPathError drops the *fs.PathError wrapper so messages do not repeat the path.
func unwrapPathError(err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	var le *os.LinkError
	if errors.As(err, &le) {
		return le.Err
	}
	return err
}
