// Package speech decides when to transcribe and talks to speech recognition backends
package speech

import (
	"strings"

	"github.com/teslashibe/go-foa/internal/classify"
)

// Gate parameters. Fixed for every request.
const (
	Keyword   = "speech"
	Threshold = 0.7
)

// ShouldTranscribe reports whether any entry is labelled as speech (case-insensitive
// substring) with a score strictly above Threshold
func ShouldTranscribe(entries []classify.Entry) bool {
	for _, e := range entries {
		if e.Score > Threshold && strings.Contains(strings.ToLower(e.Label), Keyword) {
			return true
		}
	}
	return false
}
