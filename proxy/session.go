package proxy

import (
	"errors"
	"strings"
	"sync"
	"time"

	"artifact-proxy/internal"
	"artifact-proxy/logger"
	"artifact-proxy/metrics"
	"artifact-proxy/parser"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Session is one client's parser plus the cumulative text of each message it
// is streaming. All calls on a session are serialized.
type Session struct {
	ID string

	mu       sync.Mutex
	parser   *parser.StreamingParser
	recorder *parser.EventRecorder
	buffers  map[string]*strings.Builder
	log      logger.Logger
	metrics  *metrics.Collector
}

// SessionOptions configures every session created by a SessionStore
type SessionOptions struct {
	Size int
	TTL  time.Duration

	WorkDir         string
	ArtifactElement parser.ElementFactory
	Normalize       bool
}

func newSession(id string, opts SessionOptions, collector *metrics.Collector, log logger.Logger) *Session {
	log = log.WithField("session_id", id)
	recorder := parser.NewEventRecorder()

	return &Session{
		ID:       id,
		recorder: recorder,
		buffers:  make(map[string]*strings.Builder),
		log:      log,
		metrics:  collector,
		parser: parser.New(parser.Options{
			Callbacks:                        parser.Merge(recorder.Callbacks(), collector.Callbacks(), loggingCallbacks(log)),
			ArtifactElement:                  opts.ArtifactElement,
			WorkDir:                          opts.WorkDir,
			Logger:                           log,
			DisableFunctionCallNormalization: !opts.Normalize,
		}),
	}
}

func loggingCallbacks(log logger.Logger) parser.Callbacks {
	return parser.Callbacks{
		OnArtifactOpen: func(data parser.ArtifactCallbackData) {
			logger.LogArtifactOpened(log, data.MessageID, data.Artifact.ID, data.Artifact.Title)
		},
		OnArtifactClose: func(data parser.ArtifactCallbackData) {
			logger.LogArtifactClosed(log, data.MessageID, data.Artifact.ID)
		},
		OnActionClose: func(data parser.ActionCallbackData) {
			logger.LogActionClosed(log, data.MessageID, data.ActionID, data.Action.Type.String(), data.Action.FilePath, len(data.Action.Content))
		},
	}
}

// Feed appends chunk to the message's text and parses it, returning the new
// output and the events it triggered. A final chunk ends the message: held-back
// text is released and the message is forgotten. If the parser state turns out
// to be inconsistent the message is forgotten and an *parser.InvariantError returned.
func (s *Session) Feed(messageID, chunk string, final bool) (string, []parser.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf, ok := s.buffers[messageID]
	if !ok {
		buf = &strings.Builder{}
		s.buffers[messageID] = buf
	}
	buf.WriteString(chunk)
	logger.LogParseRequest(s.log, s.ID, messageID, len(chunk), buf.Len())

	start := time.Now()
	output, err := s.parse(messageID, buf.String(), final)
	s.metrics.ObserveParse(time.Since(start))
	if final {
		delete(s.buffers, messageID)
	}

	events := s.recorder.Drain()
	if events == nil {
		events = []parser.Event{}
	}
	return output, events, err
}

func (s *Session) parse(messageID, input string, final bool) (output string, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		var invariantErr *parser.InvariantError
		e, isErr := r.(error)
		if !isErr || !errors.As(e, &invariantErr) {
			panic(r)
		}
		logger.LogInvariantViolation(s.log, messageID, invariantErr)
		s.parser.Forget(messageID)
		delete(s.buffers, messageID)
		err = invariantErr
	}()

	if final {
		return s.parser.Finish(messageID, input), nil
	}
	return s.parser.Parse(messageID, input), nil
}

// Abandon drops the state of a message without releasing held-back text
func (s *Session) Abandon(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parser.Forget(messageID)
	delete(s.buffers, messageID)
}

// Reset drops the state of every message and returns how many there were
func (s *Session) Reset() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.parser.MessageCount()
	s.parser.Reset()
	s.buffers = make(map[string]*strings.Builder)
	s.recorder.Drain()
	logger.LogParserReset(s.log, s.ID, n)
	return n
}

// SessionStore keeps sessions in a size- and TTL-bounded LRU. Any access
// refreshes a session's TTL.
type SessionStore struct {
	mu      sync.Mutex
	cache   *expirable.LRU[string, *Session]
	opts    SessionOptions
	metrics *metrics.Collector
	log     logger.Logger
}

// NewSessionStore creates a SessionStore
func NewSessionStore(opts SessionOptions, collector *metrics.Collector, log logger.Logger) *SessionStore {
	if opts.Size <= 0 {
		opts.Size = 1024
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	log = logger.OrNop(log).WithComponent(logger.ComponentSession)

	return &SessionStore{
		cache: expirable.NewLRU[string, *Session](opts.Size, func(id string, _ *Session) {
			log.Debug("Session %s evicted", id)
		}, opts.TTL),
		opts:    opts,
		metrics: collector,
		log:     log,
	}
}

// Get returns the session with the given id, creating it if needed. An empty id
// gets a freshly generated one.
func (s *SessionStore) Get(id string) *Session {
	if id == "" {
		id = internal.NewID("sess")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.cache.Get(id)
	if !ok {
		session = newSession(id, s.opts, s.metrics, s.log)
		s.log.Debug("Session %s created", id)
	}
	s.cache.Add(id, session)
	s.metrics.SetSessions(s.cache.Len())
	return session
}

// Lookup returns an existing session without creating one
func (s *SessionStore) Lookup(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.cache.Get(id)
	if ok {
		s.cache.Add(id, session)
	}
	return session, ok
}

// Remove drops a session
func (s *SessionStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.cache.Remove(id)
	s.metrics.SetSessions(s.cache.Len())
	return removed
}

// Len returns the number of live sessions
func (s *SessionStore) Len() int {
	return s.cache.Len()
}
