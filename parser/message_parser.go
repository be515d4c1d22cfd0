package parser

import (
	"sync"

	"artifact-proxy/logger"
	"artifact-proxy/workdir"
)

// Options configures a StreamingParser. The zero value is usable.
type Options struct {
	Callbacks Callbacks

	// ArtifactElement renders the placeholder emitted for a message's first artifact
	ArtifactElement ElementFactory

	// WorkDir is the root that absolute file paths are made relative to
	WorkDir string

	Logger logger.Logger

	// DisableFunctionCallNormalization turns off the <function=...> dialect rewrite
	DisableFunctionCallNormalization bool
}

// StreamingParser turns cumulative model output into display text plus
// artifact/action callbacks, one resumable state per message.
//
// Calls for the same message must be serialized by the caller; different
// messages may be parsed concurrently.
type StreamingParser struct {
	callbacks  Callbacks
	element    ElementFactory
	workDir    string
	log        logger.Logger
	normalizer *Normalizer

	mu       sync.Mutex
	messages map[string]*messageState
}

// New creates a StreamingParser
func New(opts Options) *StreamingParser {
	log := logger.OrNop(opts.Logger).WithComponent(logger.ComponentParser)

	p := &StreamingParser{
		callbacks: opts.Callbacks,
		element:   opts.ArtifactElement,
		workDir:   opts.WorkDir,
		log:       log,
		messages:  make(map[string]*messageState),
	}
	if p.element == nil {
		p.element = defaultElementFactory
	}
	if p.workDir == "" {
		p.workDir = workdir.Default
	}
	if !opts.DisableFunctionCallNormalization {
		p.normalizer = NewNormalizer(log.WithComponent(logger.ComponentNormalizer))
	}
	return p
}

// Parse consumes the full text received so far for messageID and returns only
// the output produced since the previous call for that message. Incomplete
// markup at the end of input is held back until a later call completes it.
//
// Parse panics with *InvariantError if the message state is inconsistent.
func (p *StreamingParser) Parse(messageID, input string) string {
	return p.parse(messageID, input, false)
}

// Finish parses the last input of messageID and forgets the message. Text held
// back outside an artifact, such as a marker prefix or function-call markup that
// never completed, is released as literal output. An artifact left open by
// truncated input is not closed.
func (p *StreamingParser) Finish(messageID, input string) string {
	defer p.Forget(messageID)
	return p.parse(messageID, input, true)
}

func (p *StreamingParser) parse(messageID, input string, final bool) string {
	if p.normalizer != nil {
		input = p.normalizer.Convert(input)
	}

	st := p.stateFor(messageID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.position > len(input) {
		p.log.Warn("input for message %s shrank from %d to %d bytes, skipping", messageID, st.position, len(input))
		return ""
	}

	return p.scan(messageID, st, input, final)
}

func (p *StreamingParser) stateFor(messageID string) *messageState {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.messages[messageID]
	if !ok {
		st = newMessageState()
		p.messages[messageID] = st
	}
	return st
}

// Reset discards the state of every message
func (p *StreamingParser) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = make(map[string]*messageState)
}

// Forget discards the state of one message, so the next Parse for it starts over
func (p *StreamingParser) Forget(messageID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.messages, messageID)
}

// MessageCount returns the number of messages with live state
func (p *StreamingParser) MessageCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}
