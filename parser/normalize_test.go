package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvertFunctionCalls(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "no function calls",
			input: "just text <b>with tags</b>",
			want:  "just text <b>with tags</b>",
		},
		{
			name:  "wrapped write",
			input: "<function_calls><function=write><parameter=path> a/b.txt </parameter><parameter=content>\nhello\n</parameter></function_calls>",
			want: `<boltArtifact id="a-b-txt" title="File: a/b.txt" type="application/vnd.bolt.file">` + "\n  " +
				`<boltAction type="file" filePath="a/b.txt">hello</boltAction>` + "\n</boltArtifact>",
		},
		{
			name:  "wrapped edit with surrounding text",
			input: "before <function_calls>\n<function=edit>\n<parameter=path>src/main.go</parameter>\n<parameter=content>package main</parameter>\n</function_calls> after",
			want: `before <boltArtifact id="src-main-go" title="File: src/main.go" type="application/vnd.bolt.file">` + "\n  " +
				`<boltAction type="file" filePath="src/main.go">package main</boltAction>` + "\n</boltArtifact> after",
		},
		{
			name:  "direct write",
			input: "<function=write>\n<parameter=path>x.js</parameter>\n<parameter=content>let x</parameter>",
			want: `<boltArtifact id="x-js" title="File: x.js" type="application/vnd.bolt.file">` + "\n  " +
				`<boltAction type="file" filePath="x.js">let x</boltAction>` + "\n</boltArtifact>",
		},
		{
			name:  "other function untouched",
			input: "<function_calls><function=delete><parameter=path>a.txt</parameter></function_calls>",
			want:  "<function_calls><function=delete><parameter=path>a.txt</parameter></function_calls>",
		},
		{
			name:  "missing content untouched",
			input: "<function_calls><function=write><parameter=path>a.txt</parameter></function_calls>",
			want:  "<function_calls><function=write><parameter=path>a.txt</parameter></function_calls>",
		},
		{
			name:  "incomplete block untouched",
			input: "<function_calls><function=write><parameter=path>a.txt</parameter><parameter=content>hel",
			want:  "<function_calls><function=write><parameter=path>a.txt</parameter><parameter=content>hel",
		},
		{
			name:  "prose mention untouched",
			input: "Wrap tool use in <function_calls> tags, e.g. <function=write>.",
			want:  "Wrap tool use in <function_calls> tags, e.g. <function=write>.",
		},
		{
			name:  "direct call inside unclosed block untouched",
			input: "<function_calls>\n<function=write><parameter=path>a.txt</parameter><parameter=content>hi</parameter>",
			want:  "<function_calls>\n<function=write><parameter=path>a.txt</parameter><parameter=content>hi</parameter>",
		},
		{
			name:  "path does not span parameters",
			input: "<function=write><parameter=path>a</parameter>X<parameter=content>c</parameter> tail</parameter><parameter=content>d</parameter>",
			want:  "<function=write><parameter=path>a</parameter>X<parameter=content>c</parameter> tail</parameter><parameter=content>d</parameter>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConvertFunctionCalls(tt.input))
		})
	}
}

func TestArtifactIDForPath(t *testing.T) {
	assert.Equal(t, "a-b-txt", artifactIDForPath("a/b.txt"))
	assert.Equal(t, "-home-project-my-file-ts", artifactIDForPath("/home/project/my_file.ts"))
}
