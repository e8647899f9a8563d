package classify

import (
	"fmt"
	"testing"
)

func TestRank_FiltersLowScores(t *testing.T) {
	entries := []Entry{
		{Label: "Speech", Score: 0.95},
		{Label: "Hum", Score: 0.1},
		{Label: "Silence", Score: 0.05},
		{Label: "Music", Score: 0.4},
		{Label: "Wind", Score: 0.100001},
	}

	got := Rank(entries, MinScore, MaxEntries)

	want := []string{"Speech", "Music", "Wind"}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d: %+v", len(want), len(got), got)
	}
	for i, label := range want {
		if got[i].Label != label {
			t.Errorf("entry %d = %s, want %s", i, got[i].Label, label)
		}
	}
	for _, e := range got {
		if e.Score <= MinScore {
			t.Errorf("entry %s with score %f should have been filtered", e.Label, e.Score)
		}
	}
}

func TestRank_TruncatesAtLimit(t *testing.T) {
	entries := make([]Entry, 0, 15)
	for i := 0; i < 15; i++ {
		entries = append(entries, Entry{
			Label: fmt.Sprintf("class-%02d", i),
			Score: 0.2 + float64(i)*0.05,
		})
	}

	got := Rank(entries, MinScore, MaxEntries)

	if len(got) != MaxEntries {
		t.Fatalf("expected %d entries, got %d", MaxEntries, len(got))
	}
	if got[0].Label != "class-14" {
		t.Errorf("expected highest score first, got %s", got[0].Label)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score >= got[i-1].Score {
			t.Errorf("entries not strictly descending at %d: %f >= %f", i, got[i].Score, got[i-1].Score)
		}
	}
}

func TestRank_StableForEqualScores(t *testing.T) {
	entries := []Entry{
		{Label: "a", Score: 0.5},
		{Label: "b", Score: 0.9},
		{Label: "c", Score: 0.5},
	}

	got := Rank(entries, MinScore, 0)

	want := []string{"b", "a", "c"}
	for i, label := range want {
		if got[i].Label != label {
			t.Errorf("entry %d = %s, want %s", i, got[i].Label, label)
		}
	}
}

func TestRank_NeverNil(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
	}{
		{name: "nil input", entries: nil},
		{name: "all filtered", entries: []Entry{{Label: "noise", Score: 0.01}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rank(tt.entries, MinScore, MaxEntries)
			if got == nil {
				t.Fatal("expected non-nil slice")
			}
			if len(got) != 0 {
				t.Errorf("expected empty result, got %+v", got)
			}
		})
	}
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	entries := []Entry{
		{Label: "low", Score: 0.2},
		{Label: "high", Score: 0.8},
	}

	Rank(entries, MinScore, MaxEntries)

	if entries[0].Label != "low" || entries[1].Label != "high" {
		t.Errorf("input was reordered: %+v", entries)
	}
}
