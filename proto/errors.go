package proto

import "errors"

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownAction    = errors.New("unknown action")
	ErrPersistence      = errors.New("persistence failure")
)

var (
	ErrMissingParams = &Error{Kind: ErrInvalidInput, Msg: "missing params"}
	ErrMissingID     = &Error{Kind: ErrInvalidInput, Msg: "missing id"}
	ErrNoAction      = &Error{Kind: ErrUnknownAction, Msg: "no action"}
	ErrBadAction     = &Error{Kind: ErrUnknownAction, Msg: "unknown action"}
)

// Error pairs a taxonomy sentinel with the message reported to clients.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// PersistenceError wraps a storage failure.
func PersistenceError(err error) error {
	return &Error{Kind: ErrPersistence, Msg: "storage failure", Err: err}
}

// Message returns the text a client should see for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "internal error"
}
