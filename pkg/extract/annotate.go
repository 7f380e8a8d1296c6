package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/getentag/entag/pkg/models"
)

var (
	inlineCodePattern = regexp.MustCompile("`[^`\n]*`")
	linkTargetPattern = regexp.MustCompile(`\]\([^)\n]*\)`)
	linkDefPattern    = regexp.MustCompile(`(?m)^ {0,3}\[[^\]\n]+\]:[^\n]*`)
	autolinkPattern   = regexp.MustCompile(`<[a-zA-Z][a-zA-Z0-9+.-]*://[^>\s]*>`)
	bareURLPattern    = regexp.MustCompile(`\bhttps?://[^\s<>()\[\]]+`)
	commentPattern    = regexp.MustCompile(`(?s)<!--.*?-->`)
	tagPattern        = regexp.MustCompile(`\|\|[^|\n]+\|\|[0-9a-f]{8}\|\|`)
)

// MaskRegions returns the byte spans of content that tagging must leave
// alone: fenced and inline code, link targets and URLs, HTML comments,
// table rows (a tag's pipes would read as extra cells) and tags from an
// earlier run. Regions come back merged and position-sorted.
func MaskRegions(content string) []models.Span {
	var spans []models.Span
	spans = append(spans, fenceSpans(content)...)
	spans = append(spans, tableRowSpans(content)...)
	for _, re := range []*regexp.Regexp{
		inlineCodePattern,
		linkTargetPattern,
		linkDefPattern,
		autolinkPattern,
		bareURLPattern,
		commentPattern,
		tagPattern,
	} {
		for _, loc := range re.FindAllStringIndex(content, -1) {
			spans = append(spans, models.Span{Start: loc[0], End: loc[1]})
		}
	}
	return mergeSpans(spans)
}

// DropMasked removes matches that touch any masked region.
func DropMasked(matches []models.RawMatch, masked []models.Span) []models.RawMatch {
	if len(matches) == 0 || len(masked) == 0 {
		return matches
	}
	kept := make([]models.RawMatch, 0, len(matches))
	for _, m := range matches {
		if spanMasked(m.Span, masked) {
			continue
		}
		kept = append(kept, m)
	}
	return kept
}

func spanMasked(span models.Span, masked []models.Span) bool {
	for _, region := range masked {
		if region.Overlaps(span) {
			return true
		}
	}
	return false
}

// fenceSpans masks fenced code blocks, fence markers included. An unclosed
// fence runs to the end of content.
func fenceSpans(content string) []models.Span {
	var spans []models.Span
	offset := 0
	fenceStart := -1
	fenceMarker := ""
	for _, line := range strings.SplitAfter(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if fenceStart < 0 {
			if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
				fenceStart = offset
				fenceMarker = trimmed[:3]
			}
		} else if strings.HasPrefix(trimmed, fenceMarker) {
			spans = append(spans, models.Span{Start: fenceStart, End: offset + len(line)})
			fenceStart = -1
		}
		offset += len(line)
	}
	if fenceStart >= 0 {
		spans = append(spans, models.Span{Start: fenceStart, End: len(content)})
	}
	return spans
}

// tableRowSpans masks lines whose first non-space byte is a pipe.
func tableRowSpans(content string) []models.Span {
	var spans []models.Span
	offset := 0
	for _, line := range strings.SplitAfter(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "|") {
			spans = append(spans, models.Span{Start: offset, End: offset + len(line)})
		}
		offset += len(line)
	}
	return spans
}

func mergeSpans(spans []models.Span) []models.Span {
	if len(spans) < 2 {
		return spans
	}
	sort.Slice(spans, func(i, j int) bool {
		return spans[i].Start < spans[j].Start
	})
	out := spans[:1]
	for _, s := range spans[1:] {
		last := &out[len(out)-1]
		if s.Start <= last.End {
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

// Tag renders the annotation for one canonical value.
func Tag(normalized, id string) string {
	return "||" + normalized + "||" + id + "||"
}

// Annotate rewrites content with every mention replaced by its entity tag.
// Mention spans must be in bounds and pairwise non-overlapping; on any
// violation Annotate returns an error instead of corrupted content.
func Annotate(content string, entities []models.CanonicalEntity) (string, error) {
	type replacement struct {
		span models.Span
		tag  string
	}
	var replacements []replacement
	for i := range entities {
		e := &entities[i]
		for _, m := range e.Mentions {
			if m.Span.Start < 0 || m.Span.End > len(content) || m.Span.Start >= m.Span.End {
				return "", fmt.Errorf(
					"entity %s mention span [%d,%d) out of bounds for content of %d bytes",
					e.ID, m.Span.Start, m.Span.End, len(content),
				)
			}
			replacements = append(replacements, replacement{m.Span, Tag(e.Normalized, e.ID)})
		}
	}

	sort.Slice(replacements, func(i, j int) bool {
		return replacements[i].span.Start < replacements[j].span.Start
	})

	var b strings.Builder
	prev := 0
	for i, r := range replacements {
		if r.span.Start < prev {
			return "", fmt.Errorf(
				"overlapping mention spans [%d,%d) and [%d,%d)",
				replacements[i-1].span.Start, replacements[i-1].span.End,
				r.span.Start, r.span.End,
			)
		}
		b.WriteString(content[prev:r.span.Start])
		b.WriteString(r.tag)
		prev = r.span.End
	}
	b.WriteString(content[prev:])
	return b.String(), nil
}
