package models

import (
	"time"

	"github.com/google/uuid"
)

// Document states. A document is pending from ingest until annotation has
// completed, then tagged. Extraction or annotation failures park it in
// failed; a retag run picks it up again.
const (
	DocumentStatePending = "pending"
	DocumentStateTagged  = "tagged"
	DocumentStateFailed  = "failed"
)

type Document struct {
	UUID      uuid.UUID `json:"uuid"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// Developer-provided arbitrary string identifier for the document
	DocumentID     string    `json:"document_id"`
	CollectionUUID uuid.UUID `json:"collection_uuid"`
	Content        string    `json:"content"`
	// AnnotatedContent is the content with mentions replaced by
	// ||value||id|| tags. Empty until annotation has run.
	AnnotatedContent string                 `json:"annotated_content,omitempty"`
	State            string                 `json:"state"`
	TokenCount       int                    `json:"token_count"`
	LastRunID        string                 `json:"last_run_id,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	// Entities is populated on single-document gets.
	Entities []CanonicalEntity `json:"entities,omitempty"`
}

type CreateDocumentRequest struct {
	DocumentID string                 `json:"document_id" validate:"omitempty,printascii,max=100"`
	Content    string                 `json:"content" validate:"required"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

type UpdateDocumentRequest struct {
	UUID       uuid.UUID              `json:"uuid" validate:"required"`
	DocumentID string                 `json:"document_id" validate:"omitempty,printascii,max=100"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

type DocumentListResponse struct {
	Documents  []Document `json:"documents"`
	TotalCount int        `json:"total_count"`
	RowCount   int        `json:"row_count"`
}
