package parser

import (
	"strings"

	"artifact-proxy/workdir"
)

const (
	artifactTagOpen  = "<boltArtifact"
	artifactTagClose = "</boltArtifact>"
	actionTagOpen    = "<boltAction"
	actionTagClose   = "</boltAction>"

	functionTagOpen    = "<function="
	functionCallsOpen  = "<function_calls>"
	functionCallsClose = "</function_calls>"
	pathParamOpen      = "<parameter=path>"
	contentParamOpen   = "<parameter=content>"
	parameterClose     = "</parameter>"
)

// scan walks input from the saved position until it runs out of input or has to
// wait for more, returning the text produced on the way. On final input nothing
// outside an artifact is held back.
func (p *StreamingParser) scan(messageID string, st *messageState, input string, final bool) string {
	var out strings.Builder

	for st.position < len(input) {
		var progressed bool
		switch st.state(messageID) {
		case stateOutside:
			progressed = p.scanOutside(messageID, st, input, final, &out)
		case stateAwaitingAction:
			progressed = p.scanArtifactBody(messageID, st, input)
		case stateInsideAction:
			progressed = p.scanActionBody(messageID, st, input)
		}
		if !progressed {
			break
		}
	}

	return out.String()
}

func (p *StreamingParser) scanOutside(messageID string, st *messageState, input string, final bool, out *strings.Builder) bool {
	rest := input[st.position:]

	lt := strings.IndexByte(rest, '<')
	switch {
	case lt < 0:
		out.WriteString(rest)
		st.position = len(input)
		return true
	case lt > 0:
		out.WriteString(rest[:lt])
		st.position += lt
		return true
	}

	if strings.HasPrefix(rest, artifactTagOpen) {
		after := rest[len(artifactTagOpen):]
		if after == "" {
			return wait(st, out, final)
		}
		if after[0] != ' ' && after[0] != '>' {
			out.WriteString(artifactTagOpen)
			st.position += len(artifactTagOpen)
			return true
		}
		end := strings.IndexByte(rest, '>')
		if end < 0 {
			return wait(st, out, final)
		}
		p.openArtifact(messageID, st, rest[:end+1], out)
		st.position += end + 1
		return true
	}

	if p.normalizer != nil {
		if handled, progressed := scanDialect(st, input, out); handled {
			return progressed || wait(st, out, final)
		}
	}

	if p.isPartialMarker(rest) {
		return wait(st, out, final)
	}

	out.WriteByte('<')
	st.position++
	return true
}

// wait holds the scanner at a '<' that may still start a marker. On final input
// it is emitted as text instead.
func wait(st *messageState, out *strings.Builder, final bool) bool {
	if !final {
		return false
	}
	out.WriteByte('<')
	st.position++
	return true
}

// isPartialMarker reports whether rest could still grow into a marker the
// outside scanner acts on
func (p *StreamingParser) isPartialMarker(rest string) bool {
	if strings.HasPrefix(artifactTagOpen, rest) {
		return true
	}
	if p.normalizer == nil {
		return false
	}
	return strings.HasPrefix(functionCallsOpen, rest) || strings.HasPrefix(functionTagOpen, rest)
}

func (p *StreamingParser) openArtifact(messageID string, st *messageState, tag string, out *strings.Builder) {
	attrs := parseTagAttributes(tag)

	id, _ := attrs.get("id")
	title, _ := attrs.get("title")
	artifactType, _ := attrs.get("type")
	if id == "" {
		p.log.Warn("artifact id missing in message %s", messageID)
	}
	if title == "" {
		p.log.Warn("artifact title missing in message %s", messageID)
	}

	st.insideArtifact = true
	st.currentArtifact = &Artifact{ID: id, Title: title, Type: artifactType}

	p.callbacks.artifactOpen(ArtifactCallbackData{
		MessageID: messageID,
		Artifact:  *st.currentArtifact,
	})

	if !st.hasCreatedArtifactPlaceholder {
		out.WriteString(p.element(ElementProps{MessageID: messageID}))
		st.hasCreatedArtifactPlaceholder = true
	}
}

// scanArtifactBody looks for the next action or the end of the artifact. Text
// between them is not part of the output.
func (p *StreamingParser) scanArtifactBody(messageID string, st *messageState, input string) bool {
	rest := input[st.position:]
	closeIdx := strings.Index(rest, artifactTagClose)
	actionIdx := strings.Index(rest, actionTagOpen)

	if actionIdx >= 0 && (closeIdx < 0 || actionIdx < closeIdx) {
		end := strings.IndexByte(rest[actionIdx:], '>')
		if end < 0 {
			return false
		}
		tagEnd := actionIdx + end + 1

		st.currentAction = p.parseActionTag(messageID, rest[actionIdx:tagEnd])
		st.insideAction = true
		st.currentActionID = st.actionIDCounter
		st.actionIDCounter++

		p.callbacks.actionOpen(p.actionData(messageID, st, *st.currentAction))
		st.position += tagEnd
		return true
	}

	if closeIdx >= 0 {
		p.callbacks.artifactClose(ArtifactCallbackData{
			MessageID: messageID,
			Artifact:  *st.currentArtifact,
		})
		st.insideArtifact = false
		st.currentArtifact = nil
		st.position += closeIdx + len(artifactTagClose)
		return true
	}

	return false
}

// scanActionBody closes the current action once its end tag is present, and
// otherwise streams the partial body of a file action. Position stays at the
// start of the body until the action closes.
func (p *StreamingParser) scanActionBody(messageID string, st *messageState, input string) bool {
	rest := input[st.position:]
	action := *st.currentAction

	closeIdx := strings.Index(rest, actionTagClose)
	if closeIdx < 0 {
		if action.IsFile() {
			action.Content = CleanFileContent(action.FilePath, rest)
			p.callbacks.actionStream(p.actionData(messageID, st, action))
		}
		return false
	}

	if action.IsFile() {
		action.Content = finalizeFileContent(action.FilePath, rest[:closeIdx])
	}
	p.callbacks.actionClose(p.actionData(messageID, st, action))

	st.insideAction = false
	st.currentAction = nil
	st.position += closeIdx + len(actionTagClose)
	return true
}

func (p *StreamingParser) actionData(messageID string, st *messageState, action Action) ActionCallbackData {
	return ActionCallbackData{
		ArtifactID: st.currentArtifact.ID,
		MessageID:  messageID,
		ActionID:   st.currentActionID,
		Action:     action,
	}
}

func (p *StreamingParser) parseActionTag(messageID, tag string) *Action {
	attrs := parseTagAttributes(tag)
	actionType, _ := attrs.get("type")

	action := &Action{Type: ActionType(actionType)}
	if !action.IsFile() {
		p.log.Warn("unknown action type %q in message %s", actionType, messageID)
		return action
	}

	filePath, _ := attrs.get("filePath")
	if filePath == "" {
		p.log.Debug("file path not specified in message %s", messageID)
	}
	action.FilePath = workdir.RelativePath(p.workDir, filePath)
	return action
}

// finalizeFileContent trims the complete body, cleans it and terminates it with a newline
func finalizeFileContent(filePath, body string) string {
	return CleanFileContent(filePath, strings.TrimSpace(body)) + "\n"
}
