package models

// TagRequest is a synchronous tagging preview: content in, entities and
// annotated markdown out. Nothing is persisted.
type TagRequest struct {
	Content string `json:"content" validate:"required"`
}

type TagResponse struct {
	Entities []CanonicalEntity `json:"entities"`
	// Annotated is the content with every mention replaced by its
	// ||value||id|| tag.
	Annotated          string `json:"annotated"`
	RawCount           int    `json:"raw_count"`
	DroppedOverlaps    int    `json:"dropped_overlaps"`
	ConsolidatedRanges int    `json:"consolidated_ranges"`
}
