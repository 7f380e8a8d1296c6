package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/getentag/entag/pkg/lexicon"
	"github.com/getentag/entag/pkg/models"
)

// numberValue is the numeric part shared by all pattern matchers. Thousands
// separators fold into the match so "1,200" is one number, not two.
const numberValue = `\b\d+(?:,\d{3})*(?:\.\d+)?`

var (
	numberPattern  = regexp.MustCompile(numberValue + `\b`)
	percentPattern = regexp.MustCompile(numberValue + `[ \t]*%`)
)

// PatternSource matches numbers, measurements and percentages with plain
// regular expressions. A measurement is a value directly followed by a unit
// surface form, so "30-37 inches" comes out as "30" plus "37 inches"; range
// consolidation reassembles the pieces downstream.
type PatternSource struct {
	patterns []sourcePattern
}

type sourcePattern struct {
	matchType string
	re        *regexp.Regexp
}

func NewPatternSource(units *lexicon.UnitTable) *PatternSource {
	s := &PatternSource{}
	if re := measurementPattern(units); re != nil {
		s.patterns = append(s.patterns, sourcePattern{models.MatchTypeMeasurement, re})
	}
	s.patterns = append(s.patterns,
		sourcePattern{models.MatchTypeMeasurement, percentPattern},
		sourcePattern{models.MatchTypeNumber, numberPattern},
	)
	return s
}

func (s *PatternSource) Name() string {
	return models.MatchSourcePattern
}

func (s *PatternSource) Extract(_ context.Context, text string) ([]models.RawMatch, error) {
	var matches []models.RawMatch
	for _, p := range s.patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			matches = append(matches, models.RawMatch{
				Text:   text[loc[0]:loc[1]],
				Span:   models.Span{Start: loc[0], End: loc[1]},
				Type:   p.matchType,
				Source: models.MatchSourcePattern,
			})
		}
	}
	return matches, nil
}

// measurementPattern builds the value-unit regex from the known unit surface
// forms, longest first. Word-ending variants take a trailing \b. Variants
// ending in a period cannot: there is no word boundary between "." and the
// space after it.
func measurementPattern(units *lexicon.UnitTable) *regexp.Regexp {
	variants := units.Variants()
	if len(variants) == 0 {
		return nil
	}
	alts := make([]string, len(variants))
	for i, v := range variants {
		if strings.HasSuffix(v, ".") {
			alts[i] = regexp.QuoteMeta(v)
		} else {
			alts[i] = regexp.QuoteMeta(v) + `\b`
		}
	}
	return regexp.MustCompile(`(?i)` + numberValue + `[ \t]*(?:` + strings.Join(alts, "|") + `)`)
}
