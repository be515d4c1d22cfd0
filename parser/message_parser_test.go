package parser

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fileArtifactInput = `Before <boltArtifact id="a1" title="App" type="bundled">
  <boltAction type="file" filePath="/home/project/src/app.js">console.log(1)</boltAction>
</boltArtifact> after`

func placeholderFor(messageID string) string {
	return `<div class="__boltArtifact__" data-message-id="` + messageID + `"></div>`
}

func newRecordingParser() (*StreamingParser, *EventRecorder) {
	recorder := NewEventRecorder()
	return New(Options{Callbacks: recorder.Callbacks()}), recorder
}

func withoutStreams(events []Event) []Event {
	var out []Event
	for _, e := range events {
		if e.Kind != EventActionStream {
			out = append(out, e)
		}
	}
	return out
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

// parseCharByChar feeds input one byte at a time as a growing cumulative buffer
func parseCharByChar(p *StreamingParser, messageID, input string) string {
	var out strings.Builder
	for i := 1; i <= len(input); i++ {
		out.WriteString(p.Parse(messageID, input[:i]))
	}
	return out.String()
}

func TestParse_PlainText(t *testing.T) {
	p, recorder := newRecordingParser()

	assert.Equal(t, "Hello, world!", p.Parse("m1", "Hello, world!"))
	assert.Equal(t, " More.", p.Parse("m1", "Hello, world! More."))
	assert.Empty(t, recorder.Events())
}

func TestParse_FileArtifact(t *testing.T) {
	p, recorder := newRecordingParser()

	out := p.Parse("m1", fileArtifactInput)
	assert.Equal(t, "Before "+placeholderFor("m1")+" after", out)

	events := recorder.Events()
	require.Equal(t, []EventKind{EventArtifactOpen, EventActionOpen, EventActionClose, EventArtifactClose}, kinds(events))

	assert.Equal(t, &Artifact{ID: "a1", Title: "App", Type: "bundled"}, events[0].Artifact)

	open := events[1]
	assert.Equal(t, "a1", open.ArtifactID)
	require.NotNil(t, open.ActionID)
	assert.Equal(t, 0, *open.ActionID)
	assert.Equal(t, &Action{Type: ActionTypeFile, FilePath: "src/app.js"}, open.Action)

	closed := events[2]
	assert.Equal(t, 0, *closed.ActionID)
	assert.Equal(t, "console.log(1)\n", closed.Action.Content)
	assert.Equal(t, "src/app.js", closed.Action.FilePath)

	assert.Equal(t, "a1", events[3].ArtifactID)
}

func TestParse_ReplayAtEverySplitPoint(t *testing.T) {
	inputs := map[string]string{
		"artifact": fileArtifactInput,
		"fenced": "Intro\n<boltArtifact id=\"x\" title=\"X\">\n<boltAction type=\"file\" filePath=\"main.go\">\n```go\npackage main\n```\n</boltAction>\n" +
			"<boltAction type=\"shell\">go run .</boltAction>\n</boltArtifact>\nDone <b>bold</b> < 3",
		"wrapped dialect": "Hi <function_calls><function=write><parameter=path>a/b.txt</parameter><parameter=content>hello</parameter></function_calls> bye",
		"direct dialect":  "x <function=edit>\n<parameter=path>a.txt</parameter>\n<parameter=content>hi</parameter> y",
		"other function":  "keep <function_calls><function=delete><parameter=path>a.txt</parameter></function_calls> this",
		"near misses":     "<bolt <boltArtifactX> <<boltArtifact id=\"n\" title=\"N\"></boltArtifact> <function <fun",
		"prose mentions":  "Wrap tool use in <function_calls> tags. Call <function=write> to save files. Rest of answer.",
		"path stays inside its parameter": "<function=write><parameter=path>a</parameter>X<parameter=content>c</parameter>" +
			" tail</parameter><parameter=content>d</parameter> end",
		"unclosed wrapped block": "<function_calls>\n<function=write><parameter=path>a</parameter><parameter=content>c</parameter> and no close",
		"truncated call":         "text <function_calls><function=write><parameter=path>a.txt",
		"truncated artifact tag": `a <boltArtifact id="x" title`,
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			reference, referenceRecorder := newRecordingParser()
			want := reference.Finish("m", input)
			wantEvents := referenceRecorder.Events()

			for split := 0; split <= len(input); split++ {
				p, recorder := newRecordingParser()
				got := p.Parse("m", input[:split]) + p.Finish("m", input)
				require.Equal(t, want, got, "split at %d", split)
				require.Equal(t, wantEvents, withoutStreams(recorder.Events()), "split at %d", split)
			}

			p, recorder := newRecordingParser()
			assert.Equal(t, want, parseCharByChar(p, "m", input)+p.Finish("m", input))
			assert.Equal(t, wantEvents, withoutStreams(recorder.Events()))
		})
	}
}

func TestParse_NearMissesPassThrough(t *testing.T) {
	p := New(Options{})

	out := p.Parse("m", "<bolt <boltArtifactX> <<boltArtifact id=\"n\" title=\"N\"></boltArtifact> a < b")
	assert.Equal(t, "<bolt <boltArtifactX> <"+placeholderFor("m")+" a < b", out)
}

func TestParse_PositionIsMonotonic(t *testing.T) {
	p := New(Options{})
	input := fileArtifactInput + " <function_calls><function=write><parameter=path>f.txt</parameter><parameter=content>x</parameter></function_calls>"

	last := 0
	for i := 1; i <= len(input); i++ {
		p.Parse("m", input[:i])
		position := p.stateFor("m").position
		require.GreaterOrEqual(t, position, last, "after %d bytes", i)
		last = position
	}
}

func TestParse_IncompleteArtifactTagWaits(t *testing.T) {
	p, recorder := newRecordingParser()

	assert.Equal(t, "a ", p.Parse("m", `a <boltArtifact id="x" title`))
	assert.Equal(t, 2, p.stateFor("m").position)
	assert.Empty(t, recorder.Events())

	assert.Equal(t, placeholderFor("m"), p.Parse("m", `a <boltArtifact id="x" title="T">`))
	assert.Equal(t, []EventKind{EventArtifactOpen}, kinds(recorder.Events()))
}

func TestParse_BalancedLifecycleAcrossArtifacts(t *testing.T) {
	p, recorder := newRecordingParser()
	input := `one <boltArtifact id="first" title="First">
<boltAction type="file" filePath="a.txt">A</boltAction>
<boltAction type="shell">npm install</boltAction>
</boltArtifact> two <boltArtifact id="second" title="Second">
<boltAction type="file" filePath="b.txt">B</boltAction>
</boltArtifact> three`

	out := parseCharByChar(p, "m", input)

	assert.Equal(t, 1, strings.Count(out, placeholderFor("m")), "placeholder is emitted once per message")
	assert.Equal(t, "one "+placeholderFor("m")+" two  three", out)

	events := withoutStreams(recorder.Events())
	require.Equal(t, []EventKind{
		EventArtifactOpen,
		EventActionOpen, EventActionClose,
		EventActionOpen, EventActionClose,
		EventArtifactClose,
		EventArtifactOpen,
		EventActionOpen, EventActionClose,
		EventArtifactClose,
	}, kinds(events))

	openArtifacts := map[string]int{}
	openActions := map[int]bool{}
	lastActionID := -1
	for _, e := range events {
		switch e.Kind {
		case EventArtifactOpen:
			openArtifacts[e.ArtifactID]++
		case EventArtifactClose:
			openArtifacts[e.ArtifactID]--
		case EventActionOpen:
			assert.Greater(t, *e.ActionID, lastActionID)
			lastActionID = *e.ActionID
			openActions[*e.ActionID] = true
		case EventActionClose:
			assert.True(t, openActions[*e.ActionID])
			delete(openActions, *e.ActionID)
		}
	}
	assert.Equal(t, map[string]int{"first": 0, "second": 0}, openArtifacts)
	assert.Empty(t, openActions)
	assert.Equal(t, 2, lastActionID)
}

func TestParse_ActionContent(t *testing.T) {
	tests := []struct {
		name     string
		action   string
		wantPath string
		want     string
	}{
		{
			name:     "fence stripped for code",
			action:   "<boltAction type=\"file\" filePath=\"app.js\">\n```js\nconsole.log(1)\n```\n</boltAction>",
			wantPath: "app.js",
			want:     "console.log(1)\n",
		},
		{
			name:     "fence kept for markdown",
			action:   "<boltAction type=\"file\" filePath=\"notes.md\">\n```js\nconsole.log(1)\n```\n</boltAction>",
			wantPath: "notes.md",
			want:     "```js\nconsole.log(1)\n```\n",
		},
		{
			name:     "escaped tags restored",
			action:   `<boltAction type="file" filePath="index.html">&lt;div&gt;</boltAction>`,
			wantPath: "index.html",
			want:     "<div>\n",
		},
		{
			name:     "escaped tags kept for markdown",
			action:   `<boltAction type="file" filePath="README.md">&lt;div&gt;</boltAction>`,
			wantPath: "README.md",
			want:     "&lt;div&gt;\n",
		},
		{
			name:     "absolute path under work dir",
			action:   `<boltAction type="file" filePath="/home/project/./lib/util.ts">export {}</boltAction>`,
			wantPath: "lib/util.ts",
			want:     "export {}\n",
		},
		{
			name:   "other action types close empty",
			action: `<boltAction type="shell">npm run dev</boltAction>`,
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, recorder := newRecordingParser()
			p.Parse("m", `<boltArtifact id="a" title="A">`+tt.action+`</boltArtifact>`)

			events := recorder.Events()
			require.Equal(t, []EventKind{EventArtifactOpen, EventActionOpen, EventActionClose, EventArtifactClose}, kinds(events))
			assert.Equal(t, tt.wantPath, events[2].Action.FilePath)
			assert.Equal(t, tt.want, events[2].Action.Content)
		})
	}
}

func TestParse_StreamsFullPartialBody(t *testing.T) {
	p, recorder := newRecordingParser()
	head := `<boltArtifact id="a" title="A"><boltAction type="file" filePath="x.html">`

	p.Parse("m", head+"one &lt;b&gt;")
	p.Parse("m", head+"one &lt;b&gt; two")
	p.Parse("m", head+"one &lt;b&gt; two</boltAction>")

	events := recorder.Events()
	require.Equal(t, []EventKind{EventArtifactOpen, EventActionOpen, EventActionStream, EventActionStream, EventActionClose}, kinds(events))
	assert.Equal(t, "one <b>", events[2].Action.Content)
	assert.Equal(t, "one <b> two", events[3].Action.Content)
	assert.Equal(t, "one <b> two\n", events[4].Action.Content)
	for _, e := range events[1:] {
		assert.Equal(t, 0, *e.ActionID)
	}
}

func TestParse_OtherActionsDoNotStream(t *testing.T) {
	p, recorder := newRecordingParser()

	p.Parse("m", `<boltArtifact id="a" title="A"><boltAction type="shell">npm i`)
	p.Parse("m", `<boltArtifact id="a" title="A"><boltAction type="shell">npm install`)

	assert.Equal(t, []EventKind{EventArtifactOpen, EventActionOpen}, kinds(recorder.Events()))
}

func TestParse_Normalization(t *testing.T) {
	p, recorder := newRecordingParser()
	input := "<function_calls><function=write><parameter=path>a/b.txt</parameter><parameter=content>hello</parameter></function_calls>"

	out := p.Parse("m", input)
	assert.Equal(t, placeholderFor("m"), out)

	events := recorder.Events()
	require.Equal(t, []EventKind{EventArtifactOpen, EventActionOpen, EventActionClose, EventArtifactClose}, kinds(events))
	assert.Equal(t, &Artifact{ID: "a-b-txt", Title: "File: a/b.txt", Type: fileArtifactType}, events[0].Artifact)
	assert.Equal(t, &Action{Type: ActionTypeFile, FilePath: "a/b.txt", Content: "hello\n"}, events[2].Action)
}

func TestParse_NonWriteFunctionPassesThrough(t *testing.T) {
	p, recorder := newRecordingParser()
	input := "<function_calls><function=delete><parameter=path>a.txt</parameter></function_calls>"

	assert.Equal(t, input, parseCharByChar(p, "m", input))
	assert.Empty(t, recorder.Events())
}

func TestParse_UnfinishedDialectIsHeld(t *testing.T) {
	p := New(Options{})

	assert.Equal(t, "text ", p.Parse("m", "text <function_calls><function=write><parameter=path>a.txt"))
	assert.Equal(t, "text ", p.Parse("n", "text <function=write><parameter=path>a.txt</parameter><parameter=content>partial"))

	assert.Equal(t, "<function_calls><function=write><parameter=path>a.txt",
		p.Finish("m", "text <function_calls><function=write><parameter=path>a.txt"))
	assert.Equal(t, "<function=write><parameter=path>a.txt</parameter><parameter=content>partial",
		p.Finish("n", "text <function=write><parameter=path>a.txt</parameter><parameter=content>partial"))
	assert.Zero(t, p.MessageCount())
}

func TestParse_ProseAboutFunctionCallsIsNotHeld(t *testing.T) {
	tests := []string{
		"Wrap tool use in <function_calls> tags. Here is the rest of the answer.",
		"Call <function=write> to save files. Rest of answer.",
		"Use <function=read> or <function_calls> <function=list> as needed.",
		"<function=write><parameter=path>a</parameter> then prose",
		"<function=edit>\n<parameter=name>a</parameter>",
	}

	for _, input := range tests {
		p := New(Options{})
		assert.Equal(t, input, p.Parse("m", input), input)
	}
}

func TestParse_PathParameterDoesNotSpanParameters(t *testing.T) {
	first := "<function=write><parameter=path>a</parameter>X<parameter=content>c</parameter>"
	full := first + " tail</parameter><parameter=content>d</parameter> end"

	oneShot, oneShotRecorder := newRecordingParser()
	want := oneShot.Parse("m", full)
	assert.Equal(t, full, want)
	assert.Empty(t, oneShotRecorder.Events())

	chunked, chunkedRecorder := newRecordingParser()
	assert.Equal(t, want, chunked.Parse("m", first)+chunked.Parse("m", full))
	assert.Empty(t, chunkedRecorder.Events())
}

func TestFinish_ReleasesHeldMarkers(t *testing.T) {
	p, recorder := newRecordingParser()

	assert.Equal(t, "a ", p.Parse("m", `a <boltArtifact id="x" title`))
	assert.Equal(t, `<boltArtifact id="x" title`, p.Finish("m", `a <boltArtifact id="x" title`))
	assert.Empty(t, recorder.Events())

	assert.Equal(t, "tail <boltArt", p.Finish("n", "tail <boltArt"))
	assert.Zero(t, p.MessageCount())
}

func TestFinish_LeavesTruncatedArtifactOpen(t *testing.T) {
	p, recorder := newRecordingParser()
	input := `Hi <boltArtifact id="a" title="A"><boltAction type="file" filePath="x.txt">par`

	assert.Equal(t, "Hi "+placeholderFor("m"), p.Finish("m", input))
	assert.Equal(t, []EventKind{EventArtifactOpen, EventActionOpen}, kinds(withoutStreams(recorder.Events())))
	assert.Zero(t, p.MessageCount())
}

func TestFinish_ConvertsCompletedCall(t *testing.T) {
	p, recorder := newRecordingParser()
	input := "ok <function=write><parameter=path>a.txt</parameter><parameter=content>hi</parameter>"

	assert.Equal(t, "ok ", p.Parse("m", input[:len(input)-3]))
	assert.Equal(t, placeholderFor("m"), p.Finish("m", input))
	assert.Equal(t, []EventKind{EventArtifactOpen, EventActionOpen, EventActionClose, EventArtifactClose},
		kinds(withoutStreams(recorder.Events())))
}

func TestParse_NormalizationDisabled(t *testing.T) {
	recorder := NewEventRecorder()
	p := New(Options{Callbacks: recorder.Callbacks(), DisableFunctionCallNormalization: true})
	input := "<function_calls><function=write><parameter=path>a/b.txt</parameter><parameter=content>hello</parameter></function_calls>"

	head := "<function_calls><function=write>"
	assert.Equal(t, head, p.Parse("m", input[:len(head)]))
	assert.Equal(t, input, head+p.Parse("m", input))
	assert.Empty(t, recorder.Events())
}

func TestParse_CustomElementAndWorkDir(t *testing.T) {
	recorder := NewEventRecorder()
	p := New(Options{
		Callbacks:       recorder.Callbacks(),
		ArtifactElement: NewElementFactory("span", "artifact"),
		WorkDir:         "/srv/app",
	})

	out := p.Parse("m", `<boltArtifact id="a" title="A"><boltAction type="file" filePath="/srv/app/main.py">pass</boltAction></boltArtifact>`)
	assert.Equal(t, `<span class="artifact" data-message-id="m"></span>`, out)
	assert.Equal(t, "main.py", recorder.Events()[2].Action.FilePath)
}

func TestParse_ShrunkInputIsIgnored(t *testing.T) {
	p := New(Options{})

	assert.Equal(t, "hello world", p.Parse("m", "hello world"))
	assert.Equal(t, "", p.Parse("m", "hello"))
	assert.Equal(t, "!", p.Parse("m", "hello world!"))
}

func TestParse_ResetClearsState(t *testing.T) {
	p, recorder := newRecordingParser()

	p.Parse("m", `<boltArtifact id="a" title="A"><boltAction type="file" filePath="a.txt">abc`)
	require.Equal(t, 1, p.MessageCount())

	p.Reset()
	assert.Equal(t, 0, p.MessageCount())

	recorder.Drain()
	assert.Equal(t, "plain", p.Parse("m", "plain"))
	assert.Empty(t, recorder.Events())

	st := p.stateFor("m")
	assert.False(t, st.insideArtifact)
	assert.False(t, st.insideAction)
	assert.False(t, st.hasCreatedArtifactPlaceholder)
}

func TestParse_ForgetDropsOneMessage(t *testing.T) {
	p := New(Options{})

	p.Parse("m1", "one")
	p.Parse("m2", "two")
	p.Forget("m1")

	assert.Equal(t, 1, p.MessageCount())
	assert.Equal(t, "one", p.Parse("m1", "one"))
	assert.Equal(t, "", p.Parse("m2", "two"))
}

func TestParse_InconsistentStatePanics(t *testing.T) {
	p := New(Options{})
	p.stateFor("m").insideAction = true

	want := &InvariantError{MessageID: "m", Reason: "action open outside of an artifact"}
	assert.PanicsWithError(t, want.Error(), func() {
		p.Parse("m", "anything")
	})

	// the message lock must have been released by the panic
	p.Forget("m")
	assert.Equal(t, "ok", p.Parse("m", "ok"))
}

func TestParse_ConcurrentMessages(t *testing.T) {
	p := New(Options{})

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			messageID := fmt.Sprintf("m%d", i)
			results[i] = parseCharByChar(p, messageID, fileArtifactInput)
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		assert.Equal(t, "Before "+placeholderFor(fmt.Sprintf("m%d", i))+" after", got)
	}
	assert.Equal(t, len(results), p.MessageCount())
}
