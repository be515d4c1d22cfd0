package parser

import "strings"

// StripArtifacts removes every complete <boltArtifact>...</boltArtifact> block
// from content. An artifact that is opened but never closed takes the rest of
// the content with it.
func StripArtifacts(content string) string {
	var b strings.Builder
	b.Grow(len(content))

	for {
		start := strings.Index(content, artifactTagOpen)
		if start < 0 {
			b.WriteString(content)
			return b.String()
		}
		b.WriteString(content[:start])

		end := strings.Index(content[start:], artifactTagClose)
		if end < 0 {
			return b.String()
		}
		content = content[start+end+len(artifactTagClose):]
	}
}
