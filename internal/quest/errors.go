package quest

import (
	"errors"
	"fmt"
)

// ErrorKind категория ошибки движка.
type ErrorKind string

const (
	KindInput        ErrorKind = "input"
	KindPrecondition ErrorKind = "precondition"
	KindSettlement   ErrorKind = "settlement"
	KindNarration    ErrorKind = "narration"
	KindInternal     ErrorKind = "internal"
)

// Error ошибка операции движка с сообщением для пользователя.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Причины отказа.
var (
	ErrReferralRequired = errors.New("referral not verified")
	ErrEmptyCode        = errors.New("empty invite code")
	ErrEmptyChoice      = errors.New("empty choice id")
	ErrChoiceInFlight   = errors.New("choice already in progress")
	ErrChoiceNotFound   = errors.New("selection not found")
	ErrWrongNetwork     = errors.New("wrong network")
	ErrNoActivePuzzle   = errors.New("no active puzzle")
	ErrPuzzleNotFound   = errors.New("puzzle not found")
	ErrNotEnoughForHint = errors.New("not enough balance for hint")
	ErrHintLimit        = errors.New("hint limit reached")
	ErrNotInitialized   = errors.New("session not initialized")
	ErrSessionClosed    = errors.New("session closed")
	ErrPanic            = errors.New("internal engine failure")
)

// KindOf возвращает категорию ошибки; ошибки вне движка считаются внутренними.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// UserMessage возвращает текст ошибки для пользователя.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "An error occurred. Please try again."
}
