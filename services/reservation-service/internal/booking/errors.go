package booking

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation            Kind = "validation"
	KindSlotContention        Kind = "slot_contention"
	KindSlotNoLongerAvailable Kind = "slot_no_longer_available"
	KindCalendarUnavailable   Kind = "calendar_unavailable"
	KindCalendarWriteFailed   Kind = "calendar_write_failed"
	KindNotificationFailed    Kind = "notification_failed"
)

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrValidation            = &Error{Kind: KindValidation}
	ErrSlotContention        = &Error{Kind: KindSlotContention}
	ErrSlotNoLongerAvailable = &Error{Kind: KindSlotNoLongerAvailable}
	ErrCalendarUnavailable   = &Error{Kind: KindCalendarUnavailable}
	ErrCalendarWriteFailed   = &Error{Kind: KindCalendarWriteFailed}
	ErrNotificationFailed    = &Error{Kind: KindNotificationFailed}
)

// Error is a recoverable booking failure. Msg is safe to show to the user.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

// KindOf returns the kind of a booking error, or "" for anything else.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}
