package models

import (
	"context"
)

// Extractor runs the extraction pipeline over document content and rewrites
// content with mention tags. Implementations are pure with respect to the
// store; persistence happens in the callers.
type Extractor interface {
	Extract(ctx context.Context, content string) (*ExtractionResult, error)
	Annotate(content string, entities []CanonicalEntity) (string, error)
}
