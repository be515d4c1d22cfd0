package parser

import "fmt"

// InvariantError is raised (via panic) when per-message state is inconsistent,
// e.g. an open action without an open artifact. It means the scanner or the
// caller's chunk sequencing is broken and parsing for that message cannot continue.
type InvariantError struct {
	MessageID string
	Reason    string
}

// Error implements the error interface
func (e *InvariantError) Error() string {
	return fmt.Sprintf("parser invariant violated for message %q: %s", e.MessageID, e.Reason)
}

func unreachable(messageID, reason string) {
	panic(&InvariantError{MessageID: messageID, Reason: reason})
}
