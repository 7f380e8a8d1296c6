package models

// Match types produced by the extraction sources. Gazetteer matches carry
// the entry type from their lexicon pack instead.
const (
	MatchTypeNumber      = "number"
	MatchTypeMeasurement = "measurement"
	MatchTypeRange       = "range"
)

// Source names for raw matches.
const (
	MatchSourcePattern   = "pattern"
	MatchSourceGazetteer = "gazetteer"
	MatchSourceNER       = "ner"
)

// Span locates a mention in document content as half-open byte offsets
// [Start, End).
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the span width in bytes.
func (s Span) Len() int {
	return s.End - s.Start
}

// Overlaps reports whether two spans share at least one byte.
func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End && other.Start < s.End
}

// RawMatch is a single candidate mention emitted by one source, before
// candidates are deduplicated and consolidated.
type RawMatch struct {
	Text string `json:"text"`
	Span Span   `json:"span"`
	Type string `json:"type"`
	// Source identifies the producing source: pattern, gazetteer or ner.
	Source string `json:"source"`
	// Canonical is the lexicon canonical form for gazetteer matches.
	// Empty for pattern matches.
	Canonical string `json:"canonical,omitempty"`
}

// Mention is one surviving occurrence of a canonical entity.
type Mention struct {
	Text string `json:"text"`
	Span Span   `json:"span"`
	// Source identifies the producing source: pattern, gazetteer or ner.
	Source string `json:"source,omitempty"`
}

// CanonicalEntity is the deduplicated, normalized representation of one or
// more raw mentions. ID is the stable tag id used in annotated output.
type CanonicalEntity struct {
	ID         string    `json:"id"`
	Normalized string    `json:"normalized"`
	Type       string    `json:"type"`
	Mentions   []Mention `json:"mentions"`
}

// ExtractionResult is the output of a full pipeline run over one document.
type ExtractionResult struct {
	Entities []CanonicalEntity `json:"entities"`
	// RawCount is the number of candidate matches before dedup.
	RawCount int `json:"raw_count"`
	// DroppedOverlaps is the number of candidates rejected by dedup.
	DroppedOverlaps int `json:"dropped_overlaps"`
	// ConsolidatedRanges is the number of range merges performed.
	ConsolidatedRanges int `json:"consolidated_ranges"`
}

// MentionCount returns the total number of mentions across all entities.
func (r *ExtractionResult) MentionCount() int {
	var n int
	for i := range r.Entities {
		n += len(r.Entities[i].Mentions)
	}
	return n
}
