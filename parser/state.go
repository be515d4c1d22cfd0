package parser

import "sync"

// scanState is where the scanner currently is relative to the markup
type scanState int

const (
	stateOutside        scanState = iota // plain text, no open artifact
	stateAwaitingAction                  // inside an artifact, between actions
	stateInsideAction                    // inside an action body
)

// String returns the string representation of the scanState
func (s scanState) String() string {
	switch s {
	case stateOutside:
		return "outside"
	case stateAwaitingAction:
		return "awaiting_action"
	case stateInsideAction:
		return "inside_action"
	default:
		return "unknown"
	}
}

// messageState is the resumable parse state of one message. position indexes
// the cumulative normalized input and only ever moves forward.
type messageState struct {
	mu sync.Mutex

	position                      int
	insideArtifact                bool
	insideAction                  bool
	currentArtifact               *Artifact
	currentAction                 *Action
	currentActionID               int
	actionIDCounter               int
	hasCreatedArtifactPlaceholder bool
}

func newMessageState() *messageState {
	return &messageState{}
}

// state derives the scanner state, enforcing the nesting invariants
func (s *messageState) state(messageID string) scanState {
	switch {
	case s.insideAction:
		if !s.insideArtifact {
			unreachable(messageID, "action open outside of an artifact")
		}
		if s.currentArtifact == nil {
			unreachable(messageID, "artifact not initialized")
		}
		if s.currentAction == nil {
			unreachable(messageID, "action not initialized")
		}
		return stateInsideAction
	case s.insideArtifact:
		if s.currentArtifact == nil {
			unreachable(messageID, "artifact not initialized")
		}
		if s.currentAction != nil {
			unreachable(messageID, "action set while no action is open")
		}
		return stateAwaitingAction
	default:
		if s.currentArtifact != nil || s.currentAction != nil {
			unreachable(messageID, "artifact or action set outside of an artifact")
		}
		return stateOutside
	}
}
