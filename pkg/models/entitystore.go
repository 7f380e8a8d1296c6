package models

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entity is a stored canonical entity, scoped to a collection. TagID is
// the stable id that appears in annotated content.
type Entity struct {
	UUID uuid.UUID `json:"uuid"`
	// ID doubles as the pagination cursor for entity listings.
	ID             int64     `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	CollectionUUID uuid.UUID `json:"collection_uuid"`
	TagID          string    `json:"tag_id"`
	Type           string    `json:"type"`
	Normalized     string    `json:"normalized"`
	MentionCount   int       `json:"mention_count"`
	// Mentions is populated on single-entity gets.
	Mentions []DocumentMention `json:"mentions,omitempty"`
}

// DocumentMention is one occurrence of an entity in a specific document.
type DocumentMention struct {
	DocumentUUID uuid.UUID `json:"document_uuid"`
	DocumentID   string    `json:"document_id,omitempty"`
	Text         string    `json:"text"`
	Span         Span      `json:"span"`
	Source       string    `json:"source,omitempty"`
}

// EntityFilter narrows an entity listing.
type EntityFilter struct {
	// Type filters on the entity type, exact match.
	Type string `json:"type"`
	// Query is a case-insensitive substring match on the normalized value.
	Query string `json:"query"`
	// MinMentions drops entities with fewer mentions.
	MinMentions int `json:"min_mentions"`
	Limit       int `json:"limit"`
	Cursor      int `json:"cursor"`
}

type EntityListResponse struct {
	Entities   []Entity `json:"entities"`
	TotalCount int      `json:"total_count"`
	RowCount   int      `json:"row_count"`
}

// EntityStore persists collections, their documents and the entities
// extracted from them. T is the underlying client type.
type EntityStore[T any] interface {
	CollectionStorer
	DocumentStorer
	EntityStorer
	// PurgeDeleted hard deletes all soft-deleted rows.
	PurgeDeleted(ctx context.Context) error
	// OnStart is called when the application starts. Migrations and schema
	// setup belong here.
	OnStart(ctx context.Context) error
	// GetClient returns the underlying datastore client.
	GetClient() T
	// Close is called when the application is shutting down.
	Close() error
}

type CollectionStorer interface {
	CreateCollection(ctx context.Context, request *CreateCollectionRequest) (*Collection, error)
	GetCollection(ctx context.Context, name string) (*Collection, error)
	ListCollections(ctx context.Context) ([]*Collection, error)
	// UpdateCollection updates the description and merges metadata.
	UpdateCollection(
		ctx context.Context,
		name string,
		request *UpdateCollectionRequest,
	) (*Collection, error)
	// DeleteCollection soft deletes a collection and all of its documents,
	// entities and mentions.
	DeleteCollection(ctx context.Context, name string) error
}

type DocumentStorer interface {
	// CreateDocuments stores a batch of documents in state pending and
	// returns them with UUIDs assigned. Extraction tasks are published for
	// each created document.
	CreateDocuments(
		ctx context.Context,
		collectionName string,
		requests []CreateDocumentRequest,
	) ([]Document, error)
	// GetDocument returns a document with its entities.
	GetDocument(
		ctx context.Context,
		collectionName string,
		documentUUID uuid.UUID,
	) (*Document, error)
	// GetDocuments returns a batch of documents by UUID, without entities.
	// Used by tasks working through a published batch.
	GetDocuments(
		ctx context.Context,
		collectionName string,
		uuids []uuid.UUID,
	) ([]Document, error)
	ListDocuments(
		ctx context.Context,
		collectionName string,
		currentPage int,
		pageSize int,
	) (*DocumentListResponse, error)
	// ListDocumentUUIDs returns the UUIDs of all live documents in a
	// collection. Used by retag runs.
	ListDocumentUUIDs(ctx context.Context, collectionName string) ([]uuid.UUID, error)
	DeleteDocument(
		ctx context.Context,
		collectionName string,
		documentUUID uuid.UUID,
	) error
	// SetDocumentAnnotation stores annotated content and advances the
	// document state.
	SetDocumentAnnotation(
		ctx context.Context,
		collectionName string,
		documentUUID uuid.UUID,
		annotated string,
		state string,
		runID string,
	) error
	SetDocumentTokenCount(
		ctx context.Context,
		collectionName string,
		documentUUID uuid.UUID,
		tokenCount int,
	) error
	// SetDocumentState moves a document between states. Used by tasks to
	// park documents in the failed state.
	SetDocumentState(
		ctx context.Context,
		collectionName string,
		documentUUID uuid.UUID,
		state string,
	) error
}

type EntityStorer interface {
	// ReplaceDocumentEntities replaces the mention set of a document with
	// the given extraction output, upserting canonical entities on tag id
	// and recounting mentions.
	ReplaceDocumentEntities(
		ctx context.Context,
		collectionName string,
		documentUUID uuid.UUID,
		entities []CanonicalEntity,
	) error
	// DocumentEntities returns the entities of a single document with only
	// that document's mentions attached.
	DocumentEntities(
		ctx context.Context,
		collectionName string,
		documentUUID uuid.UUID,
	) ([]CanonicalEntity, error)
	GetEntity(ctx context.Context, collectionName string, tagID string) (*Entity, error)
	ListEntities(
		ctx context.Context,
		collectionName string,
		filter *EntityFilter,
	) (*EntityListResponse, error)
}
