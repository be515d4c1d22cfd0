package parser

import (
	"regexp"
	"strings"
)

var reTagAttribute = regexp.MustCompile(`([A-Za-z_:][-A-Za-z0-9_:.]*)\s*=\s*"([^"]*)"`)

// tagAttributes holds the double-quoted attributes of a single tag, keyed by lower-cased name
type tagAttributes map[string]string

// parseTagAttributes collects name="value" pairs from a raw tag such as
// `<boltAction type="file" filePath="a.js">`. The first occurrence of a name wins.
func parseTagAttributes(tag string) tagAttributes {
	attrs := make(tagAttributes)
	for _, match := range reTagAttribute.FindAllStringSubmatch(tag, -1) {
		key := strings.ToLower(match[1])
		if _, exists := attrs[key]; !exists {
			attrs[key] = match[2]
		}
	}
	return attrs
}

// get looks up an attribute case-insensitively
func (a tagAttributes) get(name string) (string, bool) {
	value, ok := a[strings.ToLower(name)]
	return value, ok
}
