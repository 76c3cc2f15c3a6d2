package keyscan

import "strings"

const (
	resourceAssignmentCharacter = '='
	resourceCommentPrefix       = "#"
	resourceAssignmentString    = "="
)

// ScanResources collects the key of every key=value entry in the resource content.
// Blank candidates, comment lines, and fragments that contain another '=' are skipped.
func ScanResources(content string, reference FileReference) KeyMap {
	keys := make(KeyMap)
	lines := newLineIndex(content)

	for assignmentOffset := 0; assignmentOffset < len(content); assignmentOffset++ {
		if content[assignmentOffset] != resourceAssignmentCharacter {
			continue
		}

		lineStart := assignmentOffset - 1
		for lineStart >= 0 {
			character := content[lineStart]
			if character == '\r' || character == '\n' {
				break
			}
			lineStart--
		}
		lineStart++

		candidate := strings.TrimSpace(content[lineStart:assignmentOffset])
		if len(candidate) == 0 || strings.HasPrefix(candidate, resourceCommentPrefix) || strings.Contains(candidate, resourceAssignmentString) {
			continue
		}

		keys[candidate] = KeyLocation{
			Key:       candidate,
			File:      reference,
			CharStart: lineStart,
			CharEnd:   assignmentOffset,
			Line:      lines.lineAt(lineStart),
			Column:    lines.columnAt(lineStart),
		}
	}

	return keys
}
