package keyscan

import "strings"

const (
	manifestKeyMarkerConstant = "\"%"
	manifestQuoteConstant     = "\""
)

// ScanManifest collects every "%key" reference in the manifest content.
// An opening marker without a closing quote ends the scan. When a key occurs
// more than once the last occurrence is kept.
func ScanManifest(content string, reference FileReference) KeyMap {
	keys := make(KeyMap)
	lines := newLineIndex(content)

	searchOffset := 0
	for searchOffset < len(content) {
		relativeStart := strings.Index(content[searchOffset:], manifestKeyMarkerConstant)
		if relativeStart < 0 {
			break
		}
		markerStart := searchOffset + relativeStart
		keyStart := markerStart + len(manifestKeyMarkerConstant)

		relativeEnd := strings.Index(content[keyStart:], manifestQuoteConstant)
		if relativeEnd < 0 {
			break
		}
		keyEnd := keyStart + relativeEnd

		keys[content[keyStart:keyEnd]] = KeyLocation{
			Key:       content[keyStart:keyEnd],
			File:      reference,
			CharStart: markerStart + 1,
			CharEnd:   keyEnd,
			Line:      lines.lineAt(markerStart + 1),
			Column:    lines.columnAt(markerStart + 1),
		}

		searchOffset = keyEnd + 1
	}

	return keys
}
