package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// LokiHook is a logrus hook that pushes every entry to Loki over HTTP
type LokiHook struct {
	pushURL string
	client  *http.Client
	levels  []logrus.Level

	wg sync.WaitGroup
}

// LokiLogEntry represents a Loki push payload
type LokiLogEntry struct {
	Streams []LokiStream `json:"streams"`
}

type LokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

// NewLokiHook creates a hook pushing entries at minLevel or above to lokiURL
func NewLokiHook(lokiURL string, minLevel Level) *LokiHook {
	if lokiURL == "" {
		lokiURL = "http://localhost:3100"
	}

	var levels []logrus.Level
	for _, level := range logrus.AllLevels {
		if level <= minLevel.logrusLevel() {
			levels = append(levels, level)
		}
	}

	return &LokiHook{
		pushURL: strings.TrimSuffix(lokiURL, "/") + "/loki/api/v1/push",
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		levels: levels,
	}
}

// Levels implements logrus.Hook
func (h *LokiHook) Levels() []logrus.Level {
	return h.levels
}

// Fire implements logrus.Hook; the push happens in the background
func (h *LokiHook) Fire(entry *logrus.Entry) error {
	payload := h.buildPayload(entry)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.send(payload)
	}()
	return nil
}

// Close waits for in-flight pushes
func (h *LokiHook) Close() error {
	h.wg.Wait()
	h.client.CloseIdleConnections()
	return nil
}

func (h *LokiHook) buildPayload(entry *logrus.Entry) LokiLogEntry {
	// Labels stay low cardinality; everything else goes into the JSON line
	labels := map[string]string{
		"service": serviceName,
		"job":     serviceName,
		"level":   entry.Level.String(),
	}
	if component, ok := entry.Data["component"].(string); ok && component != "" {
		labels["component"] = component
	}

	structuredData := make(map[string]interface{}, len(entry.Data)+1)
	for k, v := range entry.Data {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		structuredData[k] = v
	}
	structuredData["timestamp"] = entry.Time.Format(time.RFC3339Nano)

	return LokiLogEntry{
		Streams: []LokiStream{
			{
				Stream: labels,
				Values: [][]string{
					{fmt.Sprintf("%d", entry.Time.UnixNano()), formatReadableLogLine(entry, structuredData)},
				},
			},
		},
	}
}

// formatReadableLogLine creates a readable log line with embedded structured data
func formatReadableLogLine(entry *logrus.Entry, structuredData map[string]interface{}) string {
	parts := []string{
		fmt.Sprintf("[%s]", entry.Time.Format("15:04:05.000")),
		fmt.Sprintf("[%s]", strings.ToUpper(entry.Level.String())),
	}

	if component, ok := structuredData["component"].(string); ok && component != "" {
		parts = append(parts, fmt.Sprintf("[%s]", component))
	}
	if requestID, ok := structuredData["request_id"].(string); ok && requestID != "" {
		parts = append(parts, fmt.Sprintf("[req:%s]", requestID))
	}
	parts = append(parts, entry.Message)

	var keyFields []string
	for _, key := range []string{"endpoint", "message_id", "artifact_id", "error"} {
		if value, ok := structuredData[key]; ok {
			keyFields = append(keyFields, fmt.Sprintf("%s=%v", key, value))
		}
	}
	sort.Strings(keyFields)
	if len(keyFields) > 0 {
		parts = append(parts, "| "+strings.Join(keyFields, " "))
	}

	humanLine := strings.Join(parts, " ")

	jsonData, err := json.Marshal(structuredData)
	if err != nil {
		return humanLine
	}
	return humanLine + "\n" + string(jsonData)
}

func (h *LokiHook) send(entry LokiLogEntry) {
	jsonData, err := json.Marshal(entry)
	if err != nil {
		fmt.Printf("Failed to marshal log: %v\n", err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, h.pushURL, bytes.NewReader(jsonData))
	if err != nil {
		fmt.Printf("Failed to create request: %v\n", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		fmt.Printf("Loki unavailable (%v), logging to stdout: %s\n", err, string(jsonData))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		fmt.Printf("Loki returned %d, logging to stdout: %s\n", resp.StatusCode, string(jsonData))
	}
}
