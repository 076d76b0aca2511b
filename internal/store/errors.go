package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrMalformedRecord    = errors.New("malformed record")
	ErrInvalidAccessLevel = errors.New("invalid access level")
	ErrChannelNotFound    = errors.New("channel not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrNotAMember         = errors.New("not a member")
	ErrConflict           = errors.New("conflict")
	ErrForbidden          = errors.New("forbidden")
	ErrSessionClosed      = errors.New("session closed")
)

// Error wraps a sentinel with a code, a message and the ids the failed
// operation referred to.
type Error struct {
	Err     error
	Code    string
	Message string
	IDs     []int64
}

func (e *Error) Error() string {
	if len(e.IDs) == 0 {
		return e.Message
	}
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	return e.Message + " (" + strings.Join(ids, ", ") + ")"
}

func (e *Error) Unwrap() error { return e.Err }

func newError(sentinel error, code, message string, ids ...int64) *Error {
	return &Error{Err: sentinel, Code: code, Message: message, IDs: ids}
}

func malformed(format string, args ...any) *Error {
	return newError(ErrMalformedRecord, "MALFORMED_RECORD", fmt.Sprintf(format, args...))
}

func channelNotFound(channelID int64) *Error {
	return newError(ErrChannelNotFound, "CHANNEL_NOT_FOUND", "channel not found", channelID)
}

func userNotFound(userID int64) *Error {
	return newError(ErrUserNotFound, "USER_NOT_FOUND", "user not found", userID)
}

func notAMember(userID, channelID int64) *Error {
	return newError(ErrNotAMember, "NOT_A_MEMBER", "user is not a member of the channel", userID, channelID)
}

func conflict(code, message string, ids ...int64) *Error {
	return newError(ErrConflict, code, message, ids...)
}

func forbidden(code, message string, ids ...int64) *Error {
	return newError(ErrForbidden, code, message, ids...)
}
