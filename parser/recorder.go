package parser

import "sync"

// EventKind names a lifecycle event
type EventKind string

const (
	EventArtifactOpen  EventKind = "artifact_open"
	EventArtifactClose EventKind = "artifact_close"
	EventActionOpen    EventKind = "action_open"
	EventActionStream  EventKind = "action_stream"
	EventActionClose   EventKind = "action_close"
)

// Event is one recorded callback invocation
type Event struct {
	Kind       EventKind `json:"kind"`
	MessageID  string    `json:"message_id"`
	ArtifactID string    `json:"artifact_id,omitempty"`
	ActionID   *int      `json:"action_id,omitempty"`
	Artifact   *Artifact `json:"artifact,omitempty"`
	Action     *Action   `json:"action,omitempty"`
}

// EventRecorder turns callbacks into an ordered event list that can be drained
// and serialized
type EventRecorder struct {
	mu     sync.Mutex
	events []Event
}

// NewEventRecorder creates an empty EventRecorder
func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

// Callbacks returns a callback set that records into r
func (r *EventRecorder) Callbacks() Callbacks {
	artifact := func(kind EventKind) ArtifactCallback {
		return func(data ArtifactCallbackData) {
			a := data.Artifact
			r.record(Event{Kind: kind, MessageID: data.MessageID, ArtifactID: a.ID, Artifact: &a})
		}
	}
	action := func(kind EventKind) ActionCallback {
		return func(data ActionCallbackData) {
			a, id := data.Action, data.ActionID
			r.record(Event{Kind: kind, MessageID: data.MessageID, ArtifactID: data.ArtifactID, ActionID: &id, Action: &a})
		}
	}

	return Callbacks{
		OnArtifactOpen:  artifact(EventArtifactOpen),
		OnArtifactClose: artifact(EventArtifactClose),
		OnActionOpen:    action(EventActionOpen),
		OnActionStream:  action(EventActionStream),
		OnActionClose:   action(EventActionClose),
	}
}

func (r *EventRecorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of everything recorded so far
func (r *EventRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Drain returns everything recorded so far and clears the recorder
func (r *EventRecorder) Drain() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}
