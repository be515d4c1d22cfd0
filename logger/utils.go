package logger

// Emoji prefixes used across the service logs
const (
	EmojiReceived = "📨"
	EmojiArtifact = "📦"
	EmojiAction   = "🔧"
	EmojiTarget   = "🎯"
	EmojiStream   = "🌊"
	EmojiSuccess  = "✅"
	EmojiLaunch   = "🚀"
	EmojiReset    = "🔄"
	EmojiAlert    = "🚨"
	EmojiStats    = "📊"
)

// LogParseRequest logs an incoming chunk for a message
func LogParseRequest(logger Logger, sessionID, messageID string, chunkLen, totalLen int) {
	logger.Debug("%s Parse chunk for %s/%s: %d bytes (cumulative %d)", EmojiReceived, sessionID, messageID, chunkLen, totalLen)
}

// LogArtifactOpened logs the start of an artifact
func LogArtifactOpened(logger Logger, messageID, artifactID, title string) {
	logger.Info("%s Artifact opened: %s (%q) in message %s", EmojiArtifact, artifactID, title, messageID)
}

// LogArtifactClosed logs the end of an artifact
func LogArtifactClosed(logger Logger, messageID, artifactID string) {
	logger.Debug("%s Artifact closed: %s in message %s", EmojiSuccess, artifactID, messageID)
}

// LogActionClosed logs a finished action with the size of its content
func LogActionClosed(logger Logger, messageID string, actionID int, actionType, filePath string, contentLen int) {
	if filePath == "" {
		logger.Info("%s Action %d (%s) closed in message %s", EmojiAction, actionID, actionType, messageID)
		return
	}
	logger.Info("%s Action %d (%s) closed in message %s: %s, %d bytes", EmojiAction, actionID, actionType, messageID, filePath, contentLen)
}

// LogParserReset logs a session reset
func LogParserReset(logger Logger, sessionID string, messages int) {
	logger.Info("%s Reset session %s (%d messages dropped)", EmojiReset, sessionID, messages)
}

// LogInvariantViolation logs a recovered parser panic
func LogInvariantViolation(logger Logger, messageID string, err error) {
	logger.Error("%s Parser state for message %s discarded: %v", EmojiAlert, messageID, err)
}

// LogProxyRequest logs outgoing upstream requests
func LogProxyRequest(logger Logger, endpoint, model string) {
	logger.Info("%s Proxying to: %s (model: %s)", EmojiLaunch, endpoint, model)
}

// LogStreamingResponse logs when processing streaming responses
func LogStreamingResponse(logger Logger) {
	logger.Info("%s Processing streaming response...", EmojiStream)
}

// LogStreamSummary logs the totals of a finished streamed response
func LogStreamSummary(logger Logger, deltas, outputBytes, events int, finishReason string) {
	logger.Info("%s Stream summary: %d deltas, %d output bytes, %d events, finish_reason=%s",
		EmojiStats, deltas, outputBytes, events, finishReason)
}
