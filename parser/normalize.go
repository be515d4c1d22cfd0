package parser

import (
	"regexp"
	"strings"

	"artifact-proxy/logger"
)

// Function-call dialect emitted by some local models (e.g. via Ollama) instead of boltArtifact markup
var (
	reFunctionCallsBlock = regexp.MustCompile(`(?s)<function_calls>(\s*<function=.*?)</function_calls>`)
	reFunctionName       = regexp.MustCompile(`<function=([^>]+)>`)
	rePathParameter      = regexp.MustCompile(`(?s)<parameter=path>(.*?)</parameter>`)
	reContentParameter   = regexp.MustCompile(`(?s)<parameter=content>(.*?)</parameter>`)
	reDirectFunctionCall = regexp.MustCompile(`(?s)<function=(write|edit)>\s*<parameter=path>([^<]*)</parameter>\s*<parameter=content>(.*?)</parameter>`)
	reNonAlphanumeric    = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

const fileArtifactType = "application/vnd.bolt.file"

// Normalizer rewrites write/edit function calls into boltArtifact markup
type Normalizer struct {
	log logger.Logger
}

// NewNormalizer creates a Normalizer reporting diagnostics to log
func NewNormalizer(log logger.Logger) *Normalizer {
	return &Normalizer{log: logger.OrNop(log)}
}

var defaultNormalizer = NewNormalizer(nil)

// ConvertFunctionCalls rewrites every complete write/edit function call in content
// into a single-action boltArtifact. Anything else is returned unchanged.
func ConvertFunctionCalls(content string) string {
	return defaultNormalizer.Convert(content)
}

// Convert rewrites both the <function_calls> wrapped form and the bare
// <function=write> form. Only complete calls are touched, so a call that is still
// streaming in is left as-is until its closing tags arrive.
func (n *Normalizer) Convert(content string) string {
	if !strings.Contains(content, functionTagOpen) {
		return content
	}

	content = replaceAllSubmatchFunc(reFunctionCallsBlock, content, func(_ string, groups []string) string {
		block, inner := groups[0], groups[1]

		functionMatch := reFunctionName.FindStringSubmatch(inner)
		if functionMatch == nil {
			n.log.Debug("function_calls block without a function tag")
			return block
		}

		name := functionMatch[1]
		if !isFileWriteFunction(name) {
			return block
		}

		pathMatch := rePathParameter.FindStringSubmatch(inner)
		contentMatch := reContentParameter.FindStringSubmatch(inner)
		if pathMatch == nil || contentMatch == nil {
			n.log.Debug("function %s is missing its path or content parameter", name)
			return block
		}

		filePath := strings.TrimSpace(pathMatch[1])
		n.log.Debug("converting %s function call for %s", name, filePath)
		return renderFileArtifact(filePath, strings.TrimSpace(contentMatch[1]))
	})

	return replaceAllSubmatchFunc(reDirectFunctionCall, content, func(before string, groups []string) string {
		if opensWrappedBlock(before) {
			return groups[0]
		}
		filePath := strings.TrimSpace(groups[2])
		n.log.Debug("converting direct %s function call for %s", groups[1], filePath)
		return renderFileArtifact(filePath, strings.TrimSpace(groups[3]))
	})
}

func isFileWriteFunction(name string) bool {
	return name == "write" || name == "edit"
}

// artifactIDForPath maps every character outside [A-Za-z0-9] to '-'
func artifactIDForPath(filePath string) string {
	return reNonAlphanumeric.ReplaceAllString(filePath, "-")
}

func renderFileArtifact(filePath, content string) string {
	var b strings.Builder
	b.WriteString(`<boltArtifact id="`)
	b.WriteString(artifactIDForPath(filePath))
	b.WriteString(`" title="File: `)
	b.WriteString(filePath)
	b.WriteString(`" type="` + fileArtifactType + `">`)
	b.WriteString("\n  ")
	b.WriteString(`<boltAction type="file" filePath="`)
	b.WriteString(filePath)
	b.WriteString(`">`)
	b.WriteString(content)
	b.WriteString("</boltAction>\n</boltArtifact>")
	return b.String()
}

// replaceAllSubmatchFunc is ReplaceAllStringFunc with access to capture groups and
// to the text before the match. Unmatched optional groups are passed as "".
func replaceAllSubmatchFunc(re *regexp.Regexp, s string, fn func(before string, groups []string) string) string {
	matches := re.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for _, m := range matches {
		groups := make([]string, len(m)/2)
		for g := range groups {
			if m[2*g] >= 0 {
				groups[g] = s[m[2*g]:m[2*g+1]]
			}
		}
		b.WriteString(s[last:m[0]])
		b.WriteString(fn(s[:m[0]], groups))
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String()
}
