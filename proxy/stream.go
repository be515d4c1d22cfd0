package proxy

import (
	"artifact-proxy/logger"
	"artifact-proxy/types"
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrEmptyStream is returned when the upstream stream carried no chunks
	ErrEmptyStream = errors.New("upstream stream ended without any chunks")
	// ErrNoUpstream is returned when no upstream endpoint is configured
	ErrNoUpstream = errors.New("no upstream endpoint configured")
)

// StreamSummary describes a fully read upstream stream
type StreamSummary struct {
	ID           string
	Model        string
	Chunks       int
	Deltas       int
	FinishReason string
}

// ProcessStreamingResponse reads OpenAI-style SSE chunks from body until a
// finish_reason or [DONE] arrives, handing each content delta to onDelta.
// An error from onDelta stops the stream and is returned as is.
func ProcessStreamingResponse(ctx context.Context, body io.Reader, log logger.Logger, onDelta func(string) error) (*StreamSummary, error) {
	log = logger.OrNop(log)
	logger.LogStreamingResponse(log)

	scanner := bufio.NewScanner(body)
	// Tool calls and long file bodies arrive in large chunks
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	summary := &StreamSummary{}
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		line := scanner.Text()
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}

		jsonStr := strings.TrimPrefix(line, "data: ")
		if jsonStr == "[DONE]" {
			break
		}

		var chunk types.OpenAIStreamChunk
		if err := json.Unmarshal([]byte(jsonStr), &chunk); err != nil {
			log.Warn("Failed to parse streaming chunk: %v", err)
			continue
		}

		summary.Chunks++
		if summary.ID == "" {
			summary.ID = chunk.ID
			summary.Model = chunk.Model
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			summary.Deltas++
			if err := onDelta(choice.Delta.Content); err != nil {
				return summary, err
			}
		}
		if choice.FinishReason != nil {
			summary.FinishReason = *choice.FinishReason
			log.Debug("Found final chunk with finish_reason: %s", summary.FinishReason)
			break
		}
	}

	if err := scanner.Err(); err != nil {
		log.Error("Streaming error: %v", err)
		return summary, fmt.Errorf("error reading stream: %w", err)
	}
	if summary.Chunks == 0 {
		return summary, ErrEmptyStream
	}

	return summary, nil
}
