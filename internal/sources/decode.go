package sources

import (
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decodeText converts raw bytes into UTF-8 text. A leading byte order mark
// selects UTF-8 or UTF-16 and is stripped; without one the content is read as
// UTF-8. Invalid sequences become U+FFFD.
func decodeText(raw []byte) (string, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	decoded, _, decodeError := transform.Bytes(decoder, raw)
	if decodeError != nil {
		return "", decodeError
	}
	return string(decoded), nil
}
