package extract

import (
	"strings"

	"github.com/getentag/entag/pkg/lexicon"
	"github.com/getentag/entag/pkg/models"
)

const (
	// DefaultMaxGap is the widest gap, in bytes, between two numeric
	// mentions that a range indicator can bridge.
	DefaultMaxGap = 24
	// betweenLookback is how far back to look for the word "between" ahead
	// of an "X and Y" pair.
	betweenLookback = 16
)

// ConsolidateRanges merges adjacent numeric mentions joined by a range
// indicator into single range mentions, so "30-37 inches" becomes one
// mention instead of "30" plus "37 inches". Merging chains left to right
// while consecutive pairs keep bridging. Input must be position-sorted and
// non-overlapping. Returns the rewritten slice and the number of merges.
func ConsolidateRanges(text string, matches []models.RawMatch, units *lexicon.UnitTable, maxGap int) ([]models.RawMatch, int) {
	if maxGap <= 0 {
		maxGap = DefaultMaxGap
	}
	if len(matches) < 2 {
		return matches, 0
	}

	merged := 0
	out := make([]models.RawMatch, 0, len(matches))
	i := 0
	for i < len(matches) {
		current := matches[i]
		j := i + 1
		if isNumericKind(current.Type) {
			for j < len(matches) && isNumericKind(matches[j].Type) {
				next := matches[j]
				if !bridgeable(text, current, next, units, maxGap) {
					break
				}
				current = models.RawMatch{
					Text:   text[current.Span.Start:next.Span.End],
					Span:   models.Span{Start: current.Span.Start, End: next.Span.End},
					Type:   models.MatchTypeRange,
					Source: current.Source,
				}
				merged++
				j++
			}
		}
		out = append(out, current)
		i = j
	}
	return out, merged
}

func isNumericKind(matchType string) bool {
	switch matchType {
	case models.MatchTypeNumber, models.MatchTypeMeasurement, models.MatchTypeRange:
		return true
	}
	return false
}

// bridgeable decides whether the text between two numeric mentions is a
// range indicator. Hyphens are ambiguous ("555-1234", "2024-10-01"), so a
// hyphen only bridges when at least one side carries a unit; the words
// "to" and "between X and Y" stand alone. When both sides carry units the
// dimensions must agree, "5 feet to 3 kg" is not a range.
func bridgeable(text string, left, right models.RawMatch, units *lexicon.UnitTable, maxGap int) bool {
	gap := text[left.Span.End:right.Span.Start]
	if len(gap) > maxGap {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(gap)) {
	case "-", "–", "—":
		if !hasUnit(left, units) && !hasUnit(right, units) {
			return false
		}
	case "to":
	case "and":
		if !precededByBetween(text, left.Span.Start) {
			return false
		}
	default:
		return false
	}

	lu, lok := matchUnit(left, units)
	ru, rok := matchUnit(right, units)
	if lok && rok && lu.Dimension != ru.Dimension {
		return false
	}
	return true
}

func precededByBetween(text string, start int) bool {
	from := start - betweenLookback
	if from < 0 {
		from = 0
	}
	window := strings.ToLower(strings.TrimRight(text[from:start], " \t"))
	return strings.HasSuffix(window, "between")
}

// matchUnit returns the unit a mention carries, parsed from the trailing
// word of measurement or range text.
func matchUnit(m models.RawMatch, units *lexicon.UnitTable) (*lexicon.Unit, bool) {
	if m.Type != models.MatchTypeMeasurement && m.Type != models.MatchTypeRange {
		return nil, false
	}
	return units.Resolve(trailingUnitWord(m.Text))
}

func hasUnit(m models.RawMatch, units *lexicon.UnitTable) bool {
	_, ok := matchUnit(m, units)
	return ok
}

// trailingUnitWord pulls the trailing unit surface form off measurement
// text: the "%" sign or the final run of letters and periods.
func trailingUnitWord(text string) string {
	text = strings.TrimRight(text, " \t")
	if strings.HasSuffix(text, "%") {
		return "%"
	}
	i := len(text)
	for i > 0 {
		c := text[i-1]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '.' {
			i--
			continue
		}
		break
	}
	return text[i:]
}
