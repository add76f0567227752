// Package status is the error currency of the storage engine that embeds
// the block cache: a coded outcome (OK, NotFound, Corruption, NotSupported,
// InvalidArgument, IOError) with a human-readable message.
//
// The cache itself never produces a Status; block loaders passed to
// cache.GetOrLoad typically do, and their errors are returned unchanged.
package status

import (
	"errors"
	"strconv"
)

// Code classifies a Status.
type Code uint8

const (
	CodeOK Code = iota
	CodeNotFound
	CodeCorruption
	CodeNotSupported
	CodeInvalidArgument
	CodeIOError
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeNotFound:
		return "NotFound"
	case CodeCorruption:
		return "Corruption"
	case CodeNotSupported:
		return "Not implemented"
	case CodeInvalidArgument:
		return "Invalid argument"
	case CodeIOError:
		return "IO error"
	default:
		return "Unknown code(" + strconv.Itoa(int(c)) + ")"
	}
}

// Code sentinels for errors.Is. A *Status matches the sentinel of its code.
var (
	ErrNotFound        = errors.New("status: not found")
	ErrCorruption      = errors.New("status: corruption")
	ErrNotSupported    = errors.New("status: not supported")
	ErrInvalidArgument = errors.New("status: invalid argument")
	ErrIOError         = errors.New("status: io error")
)

// Status is a coded outcome. The zero value and a nil *Status are OK.
type Status struct {
	code Code
	msg  string
}

// OK returns a successful Status.
func OK() *Status { return &Status{} }

// NotFound returns a NotFound status. msg2, when non-empty, is appended
// after ": ".
func NotFound(msg string, msg2 ...string) *Status { return newStatus(CodeNotFound, msg, msg2) }

// Corruption reports data that failed an integrity check.
func Corruption(msg string, msg2 ...string) *Status { return newStatus(CodeCorruption, msg, msg2) }

// NotSupported reports an operation the engine does not implement.
func NotSupported(msg string, msg2 ...string) *Status {
	return newStatus(CodeNotSupported, msg, msg2)
}

// InvalidArgument reports a bad caller-supplied argument.
func InvalidArgument(msg string, msg2 ...string) *Status {
	return newStatus(CodeInvalidArgument, msg, msg2)
}

// IOError reports a failed read or write.
func IOError(msg string, msg2 ...string) *Status { return newStatus(CodeIOError, msg, msg2) }

func newStatus(code Code, msg string, msg2 []string) *Status {
	if len(msg2) > 0 && msg2[0] != "" {
		msg = msg + ": " + msg2[0]
	}
	return &Status{code: code, msg: msg}
}

// Code returns the status code; a nil Status is CodeOK.
func (s *Status) Code() Code {
	if s == nil {
		return CodeOK
	}
	return s.code
}

// Message returns the message without the code prefix.
func (s *Status) Message() string {
	if s == nil {
		return ""
	}
	return s.msg
}

func (s *Status) IsOK() bool              { return s.Code() == CodeOK }
func (s *Status) IsNotFound() bool        { return s.Code() == CodeNotFound }
func (s *Status) IsCorruption() bool      { return s.Code() == CodeCorruption }
func (s *Status) IsNotSupported() bool    { return s.Code() == CodeNotSupported }
func (s *Status) IsInvalidArgument() bool { return s.Code() == CodeInvalidArgument }
func (s *Status) IsIOError() bool         { return s.Code() == CodeIOError }

// String renders "OK" or "<code>: <message>".
func (s *Status) String() string {
	if s.IsOK() {
		return "OK"
	}
	return s.code.String() + ": " + s.msg
}

func (s *Status) Error() string { return s.String() }

// Is lets errors.Is match a *Status against the code sentinels.
func (s *Status) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return s.IsNotFound()
	case ErrCorruption:
		return s.IsCorruption()
	case ErrNotSupported:
		return s.IsNotSupported()
	case ErrInvalidArgument:
		return s.IsInvalidArgument()
	case ErrIOError:
		return s.IsIOError()
	}
	return false
}

// FromError converts err to a Status. nil maps to OK; a wrapped *Status is
// unwrapped; any other error becomes an IOError carrying err's text.
func FromError(err error) *Status {
	if err == nil {
		return OK()
	}
	var s *Status
	if errors.As(err, &s) {
		return s
	}
	return IOError(err.Error())
}
