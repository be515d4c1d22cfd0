// Package types holds the wire formats of the HTTP API and of upstream providers.
package types

import "artifact-proxy/parser"

// ParseRequest feeds one chunk of a message into a session's parser
type ParseRequest struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	Chunk     string `json:"chunk"`
	// Final ends the message: held-back text is released and its parser state forgotten
	Final bool `json:"final,omitempty"`
}

// ParseResponse carries the output produced by one chunk
type ParseResponse struct {
	SessionID string         `json:"session_id"`
	MessageID string         `json:"message_id"`
	Output    string         `json:"output"`
	Events    []parser.Event `json:"events"`
}

// StripRequest asks for every artifact to be removed from content
type StripRequest struct {
	Content string `json:"content"`
}

// StripResponse is content with artifacts removed
type StripResponse struct {
	Content string `json:"content"`
}

// ResetRequest drops all parser state of a session
type ResetRequest struct {
	SessionID string `json:"session_id"`
}

// ResetResponse reports how much state was dropped
type ResetResponse struct {
	SessionID string `json:"session_id"`
	Messages  int    `json:"messages"`
}

// ChatRequest is an OpenAI-style chat request whose streamed answer is run
// through the parser
type ChatRequest struct {
	SessionID   string          `json:"session_id,omitempty"`
	MessageID   string          `json:"message_id,omitempty"`
	Model       string          `json:"model,omitempty"`
	Messages    []OpenAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

// StreamLine is one NDJSON line of a chat response. Exactly one of Output,
// Event, Done or Error is set.
type StreamLine struct {
	SessionID string        `json:"session_id,omitempty"`
	MessageID string        `json:"message_id,omitempty"`
	Output    string        `json:"output,omitempty"`
	Event     *parser.Event `json:"event,omitempty"`
	Done      bool          `json:"done,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// ErrorResponse is the JSON body of every non-2xx answer
type ErrorResponse struct {
	Error string `json:"error"`
}
