package audit

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	forwardPathSeparatorConstant  = "/"
	backwardPathSeparatorConstant = "\\"
)

// ShouldAudit decides whether a build warrants an audit. Full builds always do.
// Otherwise an audit runs only when the changed files include the manifest or
// the resource file, compared by exact final path segment. A nil changedFiles
// means no change information is available and never triggers.
func ShouldAudit(kind BuildKind, changedFiles []string) bool {
	if kind == BuildKindFull {
		return true
	}
	if changedFiles == nil {
		return false
	}
	for _, changedFile := range changedFiles {
		switch finalPathSegment(changedFile) {
		case ManifestFileName, ResourceFileName:
			return true
		}
	}
	return false
}

func finalPathSegment(name string) string {
	normalized := norm.NFC.String(strings.ReplaceAll(name, backwardPathSeparatorConstant, forwardPathSeparatorConstant))
	normalized = strings.TrimSuffix(normalized, forwardPathSeparatorConstant)
	separatorIndex := strings.LastIndex(normalized, forwardPathSeparatorConstant)
	if separatorIndex < 0 {
		return normalized
	}
	return normalized[separatorIndex+1:]
}
