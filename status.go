package wsftp

import (
	"fmt"
	"io"
	"os"
)

// errno values surfaced alongside the SFTP status codes
const (
	errnoEOF       = 1
	errnoEACCES    = 3
	errnoENOTCONN  = 31
	errnoENOENT    = 34
	errnoENOSYS    = 35
	errnoESHUTDOWN = 46
	errnoEIO       = 55
	errnoEFAILURE  = -2
	errnoEUNKNOWN  = -1
)

// statusSymbol maps an SFTP status code to its symbolic name and errno.
func statusSymbol(code uint32) (symbol string, errno int) {
	switch code {
	case sshFxEOF:
		return "EOF", errnoEOF
	case sshFxNoSuchFile:
		return "ENOENT", errnoENOENT
	case sshFxPermissionDenied:
		return "EACCES", errnoEACCES
	case sshFxNoConnection:
		return "ENOTCONN", errnoENOTCONN
	case sshFxConnectionLost:
		return "ESHUTDOWN", errnoESHUTDOWN
	case sshFxOPUnsupported:
		return "ENOSYS", errnoENOSYS
	case sshFxOk, sshFxFailure, sshFxBadMessage:
		return "EFAILURE", errnoEFAILURE
	default:
		return "UNKNOWN", errnoEUNKNOWN
	}
}

// CommandInfo identifies the operation a request was performing, for error
// enrichment.  Only the fields relevant to the operation are set.
type CommandInfo struct {
	Command  string
	Path     string
	Handle   string
	FromPath string
	ToPath   string
}

func (ci *CommandInfo) context() string {
	switch {
	case 0 != len(ci.FromPath):
		return fmt.Sprintf("%s %s -> %s", ci.Command, ci.FromPath, ci.ToPath)
	case 0 != len(ci.Path):
		return fmt.Sprintf("%s %s", ci.Command, ci.Path)
	case 0 != len(ci.Handle):
		return fmt.Sprintf("%s handle %x", ci.Command, ci.Handle)
	default:
		return ci.Command
	}
}

// A StatusError is an SSH_FXP_STATUS (or a client-generated status) carrying
// the native code, its symbolic name and errno, the server's message, and
// the command info of the request it answered.
type StatusError struct {
	Code  uint32
	Errno int
	Cmd   CommandInfo
	msg   string
	lang  string
}

func (e *StatusError) Error() string {
	symbol, _ := statusSymbol(e.Code)
	msg := e.msg
	if 0 == len(msg) {
		msg = fxerr(e.Code).Error()
	}
	return fmt.Sprintf("sftp %s: %s (%s, code %d)",
		e.Cmd.context(), msg, symbol, e.Code)
}

// Message returns the server supplied error text, if any.
func (e *StatusError) Message() string { return e.msg }

// Symbol returns the symbolic error kind ("ENOENT", "EACCES", ...).
func (e *StatusError) Symbol() string {
	symbol, _ := statusSymbol(e.Code)
	return symbol
}

func statusError(code uint32, msg string, cmd CommandInfo) *StatusError {
	_, errno := statusSymbol(code)
	return &StatusError{
		Code:  code,
		Errno: errno,
		Cmd:   cmd,
		msg:   msg,
	}
}

func noConnError(cmd CommandInfo) *StatusError {
	return statusError(sshFxNoConnection, "not connected", cmd)
}

func connLostError(cmd CommandInfo) *StatusError {
	return statusError(sshFxConnectionLost, "connection lost", cmd)
}

func opUnsupportedError(cmd CommandInfo) *StatusError {
	return statusError(sshFxOPUnsupported, "not supported by server", cmd)
}

func badMessageError(msg string, cmd CommandInfo) *StatusError {
	return statusError(sshFxBadMessage, msg, cmd)
}

// the server kept answering a read with empty data
func newEioError(cmd CommandInfo) *StatusError {
	e := statusError(sshFxFailure, "read returned no data", cmd)
	e.Errno = errnoEIO
	return e
}

// maybeStatus unmarshals a status response and converts it into a stdlib
// error, a StatusError, or nil for SSH_FX_OK.
func maybeStatus(r *packetReader, cmd CommandInfo) error {
	code, err := r.readUint32()
	if err != nil {
		return badMessageError(err.Error(), cmd)
	}
	msg, _ := r.readString()
	lang, _ := r.readString()
	switch code {
	case sshFxOk:
		return nil
	case sshFxEOF:
		return io.EOF
	case sshFxNoSuchFile:
		return os.ErrNotExist
	case sshFxPermissionDenied:
		return os.ErrPermission
	}
	se := statusError(code, msg, cmd)
	se.lang = lang
	return se
}

type unexpectedPacketErr struct {
	want, got uint8
}

func (e *unexpectedPacketErr) Error() string {
	return fmt.Sprintf("sftp: expected packet type %d, got %d", e.want, e.got)
}

type unexpectedVersionErr struct {
	want, got uint32
}

func (e *unexpectedVersionErr) Error() string {
	return fmt.Sprintf("sftp: expected server version %d, got %d", e.want, e.got)
}

func unexpectedCount(want, got uint32) error {
	return fmt.Errorf("sftp: expected %d name entries, got %d", want, got)
}

type fxerr uint32

// Error values that match the SFTP status codes, for use with errors.Is.
const (
	ErrSSHFxOk               = fxerr(sshFxOk)
	ErrSSHFxEOF              = fxerr(sshFxEOF)
	ErrSSHFxNoSuchFile       = fxerr(sshFxNoSuchFile)
	ErrSSHFxPermissionDenied = fxerr(sshFxPermissionDenied)
	ErrSSHFxFailure          = fxerr(sshFxFailure)
	ErrSSHFxBadMessage       = fxerr(sshFxBadMessage)
	ErrSSHFxNoConnection     = fxerr(sshFxNoConnection)
	ErrSSHFxConnectionLost   = fxerr(sshFxConnectionLost)
	ErrSSHFxOpUnsupported    = fxerr(sshFxOPUnsupported)
)

func (e fxerr) Error() string {
	switch e {
	case ErrSSHFxOk:
		return "OK"
	case ErrSSHFxEOF:
		return "EOF"
	case ErrSSHFxNoSuchFile:
		return "no such file"
	case ErrSSHFxPermissionDenied:
		return "permission denied"
	case ErrSSHFxBadMessage:
		return "bad message"
	case ErrSSHFxNoConnection:
		return "no connection"
	case ErrSSHFxConnectionLost:
		return "connection lost"
	case ErrSSHFxOpUnsupported:
		return "operation unsupported"
	default:
		return "failure"
	}
}

// Is allows a StatusError to match the corresponding fxerr sentinel.
func (e *StatusError) Is(target error) bool {
	if fx, ok := target.(fxerr); ok {
		return uint32(fx) == e.Code
	}
	return false
}
