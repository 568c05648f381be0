package macro

import "errors"

var (
	// ErrConfiguration is returned before any goroutine starts when a session
	// cannot begin: bad loop count, empty log, recorder active, no window.
	ErrConfiguration = errors.New("configuration error")
	// ErrOutOfOrder rejects an event timestamp that is negative or earlier
	// than the previous one.
	ErrOutOfOrder = errors.New("event out of order")
	// ErrInvalidLog reports a log that breaks the press/release pairing or
	// fails schema validation.
	ErrInvalidLog = errors.New("invalid macro log")
)
