// Package apperr defines the error taxonomy shared by the store, the mutation
// gateway, the HTTP layer and sessions.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindValidation
	KindStoreUnavailable
	KindChannelDisconnected
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindStoreUnavailable:
		return "STORE_UNAVAILABLE"
	case KindChannelDisconnected:
		return "CHANNEL_DISCONNECTED"
	default:
		return "INTERNAL"
	}
}

// Sentinels for errors.Is.
var (
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrConflict            = &Error{Kind: KindConflict}
	ErrValidation          = &Error{Kind: KindValidation}
	ErrStoreUnavailable    = &Error{Kind: KindStoreUnavailable}
	ErrChannelDisconnected = &Error{Kind: KindChannelDisconnected}
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so callers can test against the
// sentinels regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func StoreUnavailable(err error) error {
	return &Error{Kind: KindStoreUnavailable, Message: "store unavailable", Err: err}
}

func ChannelDisconnected(err error) error {
	return &Error{Kind: KindChannelDisconnected, Message: "sync channel disconnected", Err: err}
}

// KindOf reports the taxonomy kind of err, KindUnknown if it carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ParseKind is the inverse of Kind.String, used by clients to rebuild errors
// from an HTTP error body.
func ParseKind(code string) Kind {
	for k := KindNotFound; k <= KindChannelDisconnected; k++ {
		if k.String() == code {
			return k
		}
	}
	return KindUnknown
}
