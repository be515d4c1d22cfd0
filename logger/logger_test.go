package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"artifact-proxy/internal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLoggerConfig struct {
	minLevel Level
	mask     bool
}

func (c *testLoggerConfig) GetMinLogLevel() Level   { return c.minLevel }
func (c *testLoggerConfig) ShouldMaskAPIKeys() bool { return c.mask }

func newBufferLogger(t *testing.T, cfg LoggerConfig) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	obs, err := NewObservabilityLogger(ObservabilityOptions{Output: &buf, Level: DEBUG})
	require.NoError(t, err)

	ctx := internal.WithRequestID(context.Background(), "req-42")
	return New(ctx, cfg, obs.Logrus()), &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestContextLogger_FieldsAndLevels(t *testing.T) {
	log, buf := newBufferLogger(t, &testLoggerConfig{minLevel: INFO})

	log.WithComponent(ComponentParser).WithField("message_id", "m1").Warn("artifact %s missing title", "a1")
	log.Debug("dropped below min level")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "warning", lines[0]["level"])
	assert.Equal(t, "⚠️ artifact a1 missing title", lines[0]["message"])
	assert.Equal(t, ComponentParser, lines[0]["component"])
	assert.Equal(t, "m1", lines[0]["message_id"])
	assert.Equal(t, "req-42", lines[0]["request_id"])
}

func TestContextLogger_MasksAPIKeys(t *testing.T) {
	log, buf := newBufferLogger(t, &testLoggerConfig{minLevel: DEBUG, mask: true})

	log.Info("calling upstream with sk-abcdef123456 and Bearer token-value")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "ℹ️ calling upstream with sk-*** and Bearer ***", lines[0]["message"])
}

func TestContextLogger_WithFieldDoesNotMutateParent(t *testing.T) {
	log, buf := newBufferLogger(t, nil)

	child := log.WithField("k", "v")
	log.Info("parent")
	child.Info("child")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "k")
	assert.Equal(t, "v", lines[1]["k"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DEBUG,
		" INFO ":  INFO,
		"warning": WARN,
		"WARN":    WARN,
		"error":   ERROR,
		"bogus":   INFO,
	}
	for input, want := range tests {
		assert.Equal(t, want, ParseLevel(input), input)
	}
}

func TestOrNop(t *testing.T) {
	assert.Equal(t, Nop(), OrNop(nil))

	log := Default()
	assert.Same(t, log, OrNop(log))
	assert.NotPanics(t, func() { Nop().WithComponent("x").WithField("a", "b").Error("ignored") })
}

func TestObservabilityLogger_FileAndText(t *testing.T) {
	dir := t.TempDir()
	obs, err := NewObservabilityLogger(ObservabilityOptions{LogDir: dir, Level: INFO})
	require.NoError(t, err)

	obs.ArtifactEvent("req-1", "m1", "a1", "artifact opened", map[string]interface{}{"title": "App"})
	obs.Debug(ComponentParser, CategoryDebug, "", "below level", nil)
	require.NoError(t, obs.Close())

	raw, err := os.ReadFile(filepath.Join(dir, "artifact-proxy.jsonl"))
	require.NoError(t, err)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(raw), &line))
	assert.Equal(t, "artifact opened", line["message"])
	assert.Equal(t, ComponentParser, line["component"])
	assert.Equal(t, CategoryArtifact, line["category"])
	assert.Equal(t, "artifact-proxy", line["service"])
	assert.Equal(t, "m1", line["message_id"])
	assert.Equal(t, "App", line["title"])

	var buf bytes.Buffer
	text, err := NewObservabilityLogger(ObservabilityOptions{Output: &buf, Format: "text"})
	require.NoError(t, err)
	text.CircuitBreakerEvent("", "http://u1", "circuit opened", nil)
	assert.Contains(t, buf.String(), `msg="circuit opened"`)
	assert.Contains(t, buf.String(), "endpoint=\"http://u1\"")
}
