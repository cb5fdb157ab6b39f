package mpd

import (
	"errors"
	"fmt"

	"github.com/austinkregel/local-media/mpdd/internal/backend"
	"github.com/austinkregel/local-media/mpdd/internal/core"
)

// AckCode is the numeric error class of an ACK response
type AckCode int

const (
	AckNotList       AckCode = 1
	AckArg           AckCode = 2
	AckPassword      AckCode = 3
	AckPermission    AckCode = 4
	AckUnknown       AckCode = 5
	AckNoExist       AckCode = 50
	AckPlaylistMax   AckCode = 51
	AckSystem        AckCode = 52
	AckPlaylistLoad  AckCode = 53
	AckUpdateAlready AckCode = 54
	AckPlayerSync    AckCode = 55
	AckExist         AckCode = 56
)

// AckError is a protocol failure reported to the client as one ACK line
type AckError struct {
	Code    AckCode
	Index   int
	Command string
	Message string

	unscoped bool // never attributed to a command
}

func (e *AckError) Error() string {
	return e.Message
}

// Line renders the error in wire format
func (e *AckError) Line() string {
	return fmt.Sprintf("ACK [%d@%d] {%s} %s", e.Code, e.Index, e.Command, e.Message)
}

func newAck(code AckCode, format string, args ...any) *AckError {
	return &AckError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ArgError reports a malformed or out of range argument
func ArgError(format string, args ...any) *AckError {
	return newAck(AckArg, format, args...)
}

// NoExistError reports a missing song, playlist or directory
func NoExistError(format string, args ...any) *AckError {
	return newAck(AckNoExist, format, args...)
}

// ExistError reports a name that is already taken
func ExistError(format string, args ...any) *AckError {
	return newAck(AckExist, format, args...)
}

// SystemError reports an internal failure
func SystemError(format string, args ...any) *AckError {
	return newAck(AckSystem, format, args...)
}

// UnknownCommandError reports a command name that is not in the table
func UnknownCommandError(name string) *AckError {
	ack := newAck(AckUnknown, "unknown command %q", name)
	ack.unscoped = true
	return ack
}

// PermissionError reports a command the client may not run
func PermissionError(command string) *AckError {
	return newAck(AckPermission, "you don't have permission for %q", command)
}

// NotImplemented is returned by commands that are recognised but unsupported
func NotImplemented() *AckError {
	return newAck(AckUnknown, "Not implemented")
}

// ackFromError converts any handler error into an AckError
func ackFromError(err error) *AckError {
	var ack *AckError
	if errors.As(err, &ack) {
		return ack
	}
	switch {
	case errors.Is(err, core.ErrTracklistFull):
		return newAck(AckPlaylistMax, "%s", err)
	case errors.Is(err, core.ErrInvalidRange):
		return ArgError("Bad song index")
	case errors.Is(err, core.ErrNotFound), errors.Is(err, backend.ErrNotFound):
		return NoExistError("No such song")
	case errors.Is(err, core.ErrNoBackend):
		return NoExistError("No such song")
	case errors.Is(err, backend.ErrNotSupported):
		return NotImplemented()
	}
	return SystemError("%s", err)
}
