package keyscan

import (
	"path/filepath"
	"sort"
	"strings"
)

const (
	referenceSeparatorConstant = "/"
	schemeSeparatorConstant    = "://"
)

// FileReference identifies a file by the project location that contains it and its name.
type FileReference struct {
	Root string
	Name string
}

// String joins the root and name into a single location string.
func (reference FileReference) String() string {
	if len(reference.Root) == 0 {
		return reference.Name
	}
	if strings.Contains(reference.Root, schemeSeparatorConstant) {
		return strings.TrimSuffix(reference.Root, referenceSeparatorConstant) + referenceSeparatorConstant + reference.Name
	}
	return filepath.Join(reference.Root, reference.Name)
}

// KeyLocation records a single key occurrence and its byte span within a file.
// Line and Column are 1-based and locate CharStart.
type KeyLocation struct {
	Key       string
	File      FileReference
	CharStart int
	CharEnd   int
	Line      int
	Column    int
}

// KeyMap maps key strings to the location where each key was last seen.
type KeyMap map[string]KeyLocation

// Keys returns the map keys in ascending order.
func (keyMap KeyMap) Keys() []string {
	keys := make([]string, 0, len(keyMap))
	for key := range keyMap {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Contains reports whether the key is present.
func (keyMap KeyMap) Contains(key string) bool {
	_, present := keyMap[key]
	return present
}

// lineIndex resolves byte offsets to 1-based line numbers.
type lineIndex struct {
	lineStarts []int
}

func newLineIndex(content string) lineIndex {
	lineStarts := []int{0}
	for offset := 0; offset < len(content); offset++ {
		switch content[offset] {
		case '\n':
			lineStarts = append(lineStarts, offset+1)
		case '\r':
			if offset+1 < len(content) && content[offset+1] == '\n' {
				continue
			}
			lineStarts = append(lineStarts, offset+1)
		}
	}
	return lineIndex{lineStarts: lineStarts}
}

func (index lineIndex) lineAt(offset int) int {
	return sort.Search(len(index.lineStarts), func(position int) bool {
		return index.lineStarts[position] > offset
	})
}

func (index lineIndex) columnAt(offset int) int {
	line := index.lineAt(offset)
	return offset - index.lineStarts[line-1] + 1
}
