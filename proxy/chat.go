package proxy

import (
	"artifact-proxy/internal"
	"artifact-proxy/logger"
	"artifact-proxy/metrics"
	"artifact-proxy/parser"
	"artifact-proxy/types"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// errClientWrite marks a failure to write to the downstream client
var errClientWrite = errors.New("client write failed")

// HandleChat forwards a chat request upstream with streaming enabled and runs
// the streamed answer through the session's parser, writing NDJSON lines
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages are required")
		return
	}

	ctx := internal.WithSessionID(r.Context(), req.SessionID)
	log := h.requestLogger(r.WithContext(ctx)).WithComponent(logger.ComponentUpstream)

	endpoint, err := h.selectEndpoint()
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	model := req.Model
	if model == "" {
		model = h.config.UpstreamModel
	}
	upstreamReq := types.OpenAIRequest{
		Model:       model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      true,
	}

	logger.LogProxyRequest(log, endpoint, model)
	resp, err := h.proxyToProviderEndpoint(ctx, upstreamReq, endpoint, h.config.UpstreamAPIKey)
	if err != nil {
		h.upstreamFailed(ctx, endpoint, err)
		writeError(w, statusForError(err), err.Error())
		return
	}
	defer resp.Body.Close()

	session := h.sessions.Get(req.SessionID)
	messageID := req.MessageID
	if messageID == "" {
		messageID = internal.NewID("msg")
	}
	finished := false
	defer func() {
		if !finished {
			session.Abandon(messageID)
		}
	}()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	out := &lineWriter{w: w, sessionID: session.ID, messageID: messageID}
	if f, ok := w.(http.Flusher); ok {
		out.flusher = f
	}

	outputBytes, eventCount := 0, 0
	feed := func(delta string, final bool) error {
		output, events, err := session.Feed(messageID, delta, final)
		if err != nil {
			return err
		}
		outputBytes += len(output)
		eventCount += len(events)

		if output != "" {
			if err := out.write(types.StreamLine{Output: output}); err != nil {
				return err
			}
		}
		for i := range events {
			if err := out.write(types.StreamLine{Event: &events[i]}); err != nil {
				return err
			}
		}
		return nil
	}

	summary, err := ProcessStreamingResponse(ctx, resp.Body, log, func(delta string) error {
		return feed(delta, false)
	})
	if err == nil {
		finished = true
		err = feed("", true)
	}
	if err != nil {
		var invariantErr *parser.InvariantError
		if !errors.As(err, &invariantErr) && !errors.Is(err, errClientWrite) {
			h.upstreamFailed(ctx, endpoint, err)
		}
		_ = out.write(types.StreamLine{Error: err.Error()})
		return
	}

	h.upstreamSucceeded(endpoint)
	logger.LogStreamSummary(log, summary.Deltas, outputBytes, eventCount, summary.FinishReason)
	_ = out.write(types.StreamLine{Done: true})
}

// proxyToProviderEndpoint sends the OpenAI request to a specific provider
// endpoint and returns the open streaming response
func (h *Handler) proxyToProviderEndpoint(ctx context.Context, req types.OpenAIRequest, endpoint, apiKey string) (*http.Response, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}
	if requestID := GetRequestID(ctx); requestID != "" {
		httpReq.Header.Set(requestIDHeader, requestID)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return resp, nil
}

func (h *Handler) upstreamFailed(ctx context.Context, endpoint string, err error) {
	h.metrics.UpstreamRequest(metrics.OutcomeFailure)
	if h.health != nil {
		h.health.RecordFailure(endpoint)
	}
	if h.obsLogger != nil {
		h.obsLogger.Error(logger.ComponentUpstream, logger.CategoryFailover, GetRequestID(ctx), "Upstream request failed", map[string]interface{}{
			"endpoint": endpoint,
			"error":    err.Error(),
		})
	}
}

func (h *Handler) upstreamSucceeded(endpoint string) {
	h.metrics.UpstreamRequest(metrics.OutcomeSuccess)
	if h.health != nil {
		h.health.RecordSuccess(endpoint)
	}
}

// lineWriter writes NDJSON stream lines and flushes after each
type lineWriter struct {
	w         io.Writer
	flusher   http.Flusher
	sessionID string
	messageID string
}

func (l *lineWriter) write(line types.StreamLine) error {
	line.SessionID = l.sessionID
	line.MessageID = l.messageID
	if err := json.NewEncoder(l.w).Encode(line); err != nil {
		return fmt.Errorf("%w: %v", errClientWrite, err)
	}
	if l.flusher != nil {
		l.flusher.Flush()
	}
	return nil
}
