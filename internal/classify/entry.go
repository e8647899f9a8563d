// Package classify ranks sound-event classes reported by the scene classifier
package classify

import (
	"cmp"
	"context"
	"slices"
)

// Report filtering defaults
const (
	MinScore   = 0.1 // entries must score strictly above this
	MaxEntries = 10
)

// Entry is a single (label, score) classification result
type Entry struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classifier assigns sound-event labels to an audio file.
// An empty result is a valid "nothing recognized" answer.
type Classifier interface {
	Classify(ctx context.Context, audioPath string) ([]Entry, error)
}

// Rank keeps entries scoring above minScore, sorts them by descending score and
// truncates to limit (limit <= 0 means no limit). Equal scores keep their input order.
// The result is never nil.
func Rank(entries []Entry, minScore float64, limit int) []Entry {
	ranked := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Score > minScore {
			ranked = append(ranked, e)
		}
	}

	slices.SortStableFunc(ranked, func(a, b Entry) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
