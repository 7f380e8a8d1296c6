package extract

import (
	"sort"

	"github.com/getentag/entag/pkg/models"
)

// Dedupe resolves overlapping candidates. Candidates are ranked longest
// span first, earlier span on equal length, then source and type to keep
// the outcome deterministic, and accepted greedily: a candidate is dropped
// the moment it overlaps anything already accepted. Survivors come back
// sorted by position and are pairwise non-overlapping.
func Dedupe(matches []models.RawMatch) []models.RawMatch {
	if len(matches) == 0 {
		return nil
	}

	candidates := make([]models.RawMatch, len(matches))
	copy(candidates, matches)
	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := candidates[i].Span, candidates[j].Span
		if si.Len() != sj.Len() {
			return si.Len() > sj.Len()
		}
		if si.Start != sj.Start {
			return si.Start < sj.Start
		}
		if candidates[i].Source != candidates[j].Source {
			return candidates[i].Source < candidates[j].Source
		}
		return candidates[i].Type < candidates[j].Type
	})

	kept := make([]models.RawMatch, 0, len(candidates))
	for _, c := range candidates {
		if overlapsAny(kept, c.Span) {
			continue
		}
		kept = append(kept, c)
	}

	sort.Slice(kept, func(i, j int) bool {
		return kept[i].Span.Start < kept[j].Span.Start
	})
	return kept
}

func overlapsAny(matches []models.RawMatch, span models.Span) bool {
	for i := range matches {
		if matches[i].Span.Overlaps(span) {
			return true
		}
	}
	return false
}
