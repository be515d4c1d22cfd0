package parser

import (
	"regexp"
	"strings"
)

// One fenced block spanning the whole content, optional language tag
var reMarkdownCodeBlock = regexp.MustCompile("(?s)^\\s*```\\w*\\n(.*?)\\n\\s*```\\s*$")

var escapedTagReplacer = strings.NewReplacer("&lt;", "<", "&gt;", ">")

// CleanFileContent prepares file action content for writing. Markdown files are
// returned untouched; everything else loses a wrapping code fence and gets its
// HTML-escaped angle brackets restored.
func CleanFileContent(filePath, content string) string {
	if isMarkdownPath(filePath) {
		return content
	}
	content = cleanoutMarkdownSyntax(content)
	return cleanEscapedTags(content)
}

func isMarkdownPath(filePath string) bool {
	return strings.HasSuffix(filePath, ".md")
}

func cleanoutMarkdownSyntax(content string) string {
	if match := reMarkdownCodeBlock.FindStringSubmatch(content); match != nil {
		return match[1]
	}
	return content
}

func cleanEscapedTags(content string) string {
	return escapedTagReplacer.Replace(content)
}
