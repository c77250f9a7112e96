package session

import "errors"

var (
	// ErrRegistryClosed is returned by Connect after Close.
	ErrRegistryClosed = errors.New("session registry closed")
	// ErrMissingConsumer is returned by Connect for an empty consumer id.
	ErrMissingConsumer = errors.New("consumer id is required")
	// ErrSessionClosed is returned by Handle for a disconnected session.
	ErrSessionClosed = errors.New("session closed")
)

// msgStreamActive is sent to a consumer that starts a second stream.
const msgStreamActive = "stream already in progress"

// unknownCommandError reports a command type the registry does not handle.
type unknownCommandError struct{ typ string }

func (e unknownCommandError) Error() string { return "unknown command: " + e.typ }

// IsUnknownCommand reports whether err was caused by an unsupported command.
func IsUnknownCommand(err error) bool {
	var uc unknownCommandError
	return errors.As(err, &uc)
}
