// Package workdir maps paths emitted by the model onto paths relative to the
// sandbox work directory.
package workdir

import (
	"path"
	"strings"
)

// Default is the root the model is told it is working in
const Default = "/home/project"

// RelativePath returns p relative to root. Absolute paths under root lose the
// root prefix, other absolute paths lose their leading slash, and "./" segments
// are cleaned away. An empty path stays empty.
func RelativePath(root, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if root == "" {
		root = Default
	}
	root = path.Clean("/" + strings.TrimPrefix(root, "/"))

	cleaned := path.Clean(p)
	switch {
	case cleaned == "." || cleaned == root:
		return ""
	case strings.HasPrefix(cleaned, root+"/"):
		return cleaned[len(root)+1:]
	default:
		return strings.TrimLeft(cleaned, "/")
	}
}
