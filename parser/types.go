// Package parser extracts boltArtifact/boltAction markup from model output as it streams in.
// Text outside artifacts passes through unchanged; artifacts are replaced by a single
// placeholder per message and reported through lifecycle callbacks.
package parser

// ActionType identifies what an action inside an artifact does
type ActionType string

const (
	// ActionTypeFile writes Content to FilePath
	ActionTypeFile ActionType = "file"
)

// String returns the string representation of the ActionType
func (t ActionType) String() string {
	return string(t)
}

// Artifact is the container described by a <boltArtifact> tag
type Artifact struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// Action is a single operation described by a <boltAction> tag.
// FilePath and Content are only meaningful for file actions; any other type is
// opened and closed with empty content.
type Action struct {
	Type     ActionType `json:"type"`
	FilePath string     `json:"file_path,omitempty"`
	Content  string     `json:"content"`
}

// IsFile returns true if this action writes a file
func (a Action) IsFile() bool {
	return a.Type == ActionTypeFile
}

// ArtifactCallbackData is delivered when an artifact opens or closes
type ArtifactCallbackData struct {
	MessageID string
	Artifact  Artifact
}

// ActionCallbackData is delivered when an action opens, streams or closes
type ActionCallbackData struct {
	ArtifactID string
	MessageID  string
	ActionID   int
	Action     Action
}

// ArtifactCallback receives artifact lifecycle events
type ArtifactCallback func(data ArtifactCallbackData)

// ActionCallback receives action lifecycle events
type ActionCallback func(data ActionCallbackData)

// Callbacks groups the optional lifecycle hooks. Nil hooks are skipped.
//
// OnActionStream always carries the full partial body seen so far, never a delta.
type Callbacks struct {
	OnArtifactOpen  ArtifactCallback
	OnArtifactClose ArtifactCallback
	OnActionOpen    ActionCallback
	OnActionStream  ActionCallback
	OnActionClose   ActionCallback
}

func (c Callbacks) artifactOpen(data ArtifactCallbackData) {
	if c.OnArtifactOpen != nil {
		c.OnArtifactOpen(data)
	}
}

func (c Callbacks) artifactClose(data ArtifactCallbackData) {
	if c.OnArtifactClose != nil {
		c.OnArtifactClose(data)
	}
}

func (c Callbacks) actionOpen(data ActionCallbackData) {
	if c.OnActionOpen != nil {
		c.OnActionOpen(data)
	}
}

func (c Callbacks) actionStream(data ActionCallbackData) {
	if c.OnActionStream != nil {
		c.OnActionStream(data)
	}
}

func (c Callbacks) actionClose(data ActionCallbackData) {
	if c.OnActionClose != nil {
		c.OnActionClose(data)
	}
}

// Merge fans every event out to each of the given callback sets, in argument order
func Merge(sets ...Callbacks) Callbacks {
	return Callbacks{
		OnArtifactOpen: func(data ArtifactCallbackData) {
			for _, s := range sets {
				s.artifactOpen(data)
			}
		},
		OnArtifactClose: func(data ArtifactCallbackData) {
			for _, s := range sets {
				s.artifactClose(data)
			}
		},
		OnActionOpen: func(data ActionCallbackData) {
			for _, s := range sets {
				s.actionOpen(data)
			}
		},
		OnActionStream: func(data ActionCallbackData) {
			for _, s := range sets {
				s.actionStream(data)
			}
		},
		OnActionClose: func(data ActionCallbackData) {
			for _, s := range sets {
				s.actionClose(data)
			}
		},
	}
}
