package main

import (
	"fmt"
	"io"

	"artifact-proxy/parser"
	"artifact-proxy/types"

	"github.com/fatih/color"
)

var (
	green      = color.New(color.FgGreen).SprintFunc()
	yellow     = color.New(color.FgYellow).SprintFunc()
	cyan       = color.New(color.FgCyan).SprintFunc()
	gray       = color.New(color.FgHiBlack).SprintFunc()
	errorStyle = color.New(color.FgRed).SprintFunc()
)

// eventPrinter writes parser output to stdout and events to stderr, or
// everything as NDJSON stream lines to stdout
type eventPrinter struct {
	stdout     io.Writer
	stderr     io.Writer
	jsonOutput bool
}

func newEventPrinter(stdout, stderr io.Writer, jsonOutput bool) *eventPrinter {
	return &eventPrinter{stdout: stdout, stderr: stderr, jsonOutput: jsonOutput}
}

func (p *eventPrinter) output(messageID, text string) error {
	if text == "" {
		return nil
	}
	if p.jsonOutput {
		return encodeLine(p.stdout, types.StreamLine{MessageID: messageID, Output: text})
	}
	_, err := io.WriteString(p.stdout, text)
	return err
}

func (p *eventPrinter) event(event parser.Event) error {
	if p.jsonOutput {
		return encodeLine(p.stdout, types.StreamLine{MessageID: event.MessageID, Event: &event})
	}

	var line string
	switch event.Kind {
	case parser.EventArtifactOpen:
		line = green("▶ artifact ") + fmt.Sprintf("%s %q", event.Artifact.ID, event.Artifact.Title)
	case parser.EventArtifactClose:
		line = green("■ artifact ") + event.Artifact.ID
	case parser.EventActionOpen:
		line = cyan(fmt.Sprintf("  ▶ action %d ", *event.ActionID)) + describeAction(event.Action)
	case parser.EventActionStream:
		line = gray(fmt.Sprintf("  … action %d %d bytes", *event.ActionID, len(event.Action.Content)))
	case parser.EventActionClose:
		line = cyan(fmt.Sprintf("  ■ action %d ", *event.ActionID)) + describeAction(event.Action) +
			gray(fmt.Sprintf(" (%d bytes)", len(event.Action.Content)))
	default:
		line = yellow(string(event.Kind))
	}
	_, err := fmt.Fprintln(p.stderr, line)
	return err
}

func (p *eventPrinter) done(messageID string) error {
	if p.jsonOutput {
		return encodeLine(p.stdout, types.StreamLine{MessageID: messageID, Done: true})
	}
	return nil
}

func describeAction(action *parser.Action) string {
	if action.IsFile() {
		return fmt.Sprintf("%s %s", action.Type, action.FilePath)
	}
	return action.Type.String()
}
