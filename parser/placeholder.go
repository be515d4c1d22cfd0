package parser

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Placeholder element used when NewElementFactory is given an empty tag or class
const (
	// DefaultPlaceholderTag is the HTML element name of the placeholder
	DefaultPlaceholderTag = "div"
	// DefaultPlaceholderClass is the class the client UI looks for to mount the artifact view
	DefaultPlaceholderClass = "__boltArtifact__"
)

// ElementProps is what a placeholder factory knows about the message
type ElementProps struct {
	MessageID string
}

// ElementFactory renders the placeholder written into the output where the
// rendering layer should mount its artifact view
type ElementFactory func(props ElementProps) string

// NewElementFactory renders `<tag class="class" data-message-id="ID"></tag>`
// with the ID JSON-quoted. Empty arguments fall back to the defaults.
func NewElementFactory(tag, class string) ElementFactory {
	if tag == "" {
		tag = DefaultPlaceholderTag
	}
	if class == "" {
		class = DefaultPlaceholderClass
	}
	return func(props ElementProps) string {
		var b strings.Builder
		b.WriteString("<" + tag + ` class="` + class + `" data-message-id=`)
		b.WriteString(jsonQuote(props.MessageID))
		b.WriteString("></" + tag + ">")
		return b.String()
	}
}

var defaultElementFactory = NewElementFactory("", "")

// jsonQuote quotes s as a JSON string without HTML escaping
func jsonQuote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return `""`
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
