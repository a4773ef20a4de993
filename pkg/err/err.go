package errprocess

import (
	"errors"

	"chat_core_service/pkg/logger"
)

// Kind closed error taxonomy, the HTTP layer maps each kind to a status code
type Kind int

const (
	// KindInternal unexpected storage or infra failure, passes through untouched
	KindInternal Kind = iota
	// KindNotFound entity id does not resolve
	KindNotFound
	// KindForbidden caller lacks membership or role
	KindForbidden
	// KindConflict duplicate request
	KindConflict
	// KindInvalidState action not valid for the current status
	KindInvalidState
	// KindGone edit window elapsed
	KindGone
	// KindValidation malformed input reached the core
	KindValidation
)

// Error taxonomy error with a kind attached
type Error struct {
	kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Kind which taxonomy bucket this error belongs to
func (e *Error) Kind() Kind { return e.kind }

// Set set err info
func Set(errMsg string) error {
	logger.Log.Error(errMsg)
	return errors.New(errMsg)
}

// SetKind build a taxonomy error, logged once at creation
func SetKind(kind Kind, msg string) error {
	logger.Log.Debug(msg)
	return &Error{kind: kind, msg: msg}
}

// NotFound entity id does not resolve
func NotFound(msg string) error { return SetKind(KindNotFound, msg) }

// Forbidden caller lacks membership or role for the action
func Forbidden(msg string) error { return SetKind(KindForbidden, msg) }

// Conflict duplicate request
func Conflict(msg string) error { return SetKind(KindConflict, msg) }

// InvalidState action not valid for current status
func InvalidState(msg string) error { return SetKind(KindInvalidState, msg) }

// Gone the window for the action elapsed
func Gone(msg string) error { return SetKind(KindGone, msg) }

// Validation malformed input reached the core
func Validation(msg string) error { return SetKind(KindValidation, msg) }

// KindOf recover the kind, anything untagged is internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind()
	}
	return KindInternal
}

// IsKind check err carries the given kind
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind() == kind
}
