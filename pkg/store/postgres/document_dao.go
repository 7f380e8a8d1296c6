package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/getentag/entag/pkg/models"
	"github.com/getentag/entag/pkg/store"
)

type DocumentDAO struct {
	db             *bun.DB
	collectionUUID uuid.UUID
}

func NewDocumentDAO(db *bun.DB, collectionUUID uuid.UUID) (*DocumentDAO, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if collectionUUID == uuid.Nil {
		return nil, errors.New("collectionUUID cannot be nil")
	}
	return &DocumentDAO{db: db, collectionUUID: collectionUUID}, nil
}

// CreateMany stores a batch of documents in state pending and returns them
// with UUIDs assigned.
func (dao *DocumentDAO) CreateMany(
	ctx context.Context,
	requests []models.CreateDocumentRequest,
) ([]models.Document, error) {
	if len(requests) == 0 {
		return nil, nil
	}

	documents := make([]DocumentSchema, len(requests))
	for i, request := range requests {
		documents[i] = DocumentSchema{
			CollectionUUID: dao.collectionUUID,
			DocumentID:     request.DocumentID,
			Content:        request.Content,
			State:          models.DocumentStatePending,
			Metadata:       request.Metadata,
		}
	}

	_, err := dao.db.NewInsert().
		Model(&documents).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create documents %w", err)
	}

	return documentsFromSchema(documents), nil
}

// Get retrieves a document by its UUID.
func (dao *DocumentDAO) Get(
	ctx context.Context,
	documentUUID uuid.UUID,
) (*models.Document, error) {
	document := DocumentSchema{}
	err := dao.db.NewSelect().
		Model(&document).
		Where("collection_uuid = ?", dao.collectionUUID).
		Where("uuid = ?", documentUUID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NewNotFoundError(fmt.Sprintf("document %s", documentUUID))
		}
		return nil, fmt.Errorf("unable to retrieve document %w", err)
	}

	retDocument := documentFromSchema(&document)

	return &retDocument, nil
}

// GetListByUUID retrieves a list of documents by their UUIDs.
func (dao *DocumentDAO) GetListByUUID(
	ctx context.Context,
	uuids []uuid.UUID,
) ([]models.Document, error) {
	if len(uuids) == 0 {
		return nil, nil
	}

	var documents []DocumentSchema
	err := dao.db.NewSelect().
		Model(&documents).
		Where("collection_uuid = ?", dao.collectionUUID).
		Where("uuid IN (?)", bun.In(uuids)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve documents %w", err)
	}

	return documentsFromSchema(documents), nil
}

// List retrieves a page of documents for the collection, ordered by insert
// order.
func (dao *DocumentDAO) List(
	ctx context.Context,
	currentPage int,
	pageSize int,
) (*models.DocumentListResponse, error) {
	if pageSize < 1 {
		return nil, store.NewStorageError("pageSize must be greater than 0", nil)
	}

	var wg sync.WaitGroup
	var countErr error
	var count int

	wg.Add(1)
	go func() {
		defer wg.Done()
		// Get count of all documents in this collection
		count, countErr = dao.db.NewSelect().
			Model(&DocumentSchema{}).
			Where("collection_uuid = ?", dao.collectionUUID).
			Count(ctx)
	}()

	var documents []DocumentSchema
	err := dao.db.NewSelect().
		Model(&documents).
		Where("collection_uuid = ?", dao.collectionUUID).
		OrderExpr("id ASC").
		Limit(pageSize).
		Offset((currentPage - 1) * pageSize).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents %w", err)
	}

	wg.Wait()
	if countErr != nil {
		return nil, fmt.Errorf("failed to get document count %w", countErr)
	}

	return &models.DocumentListResponse{
		Documents:  documentsFromSchema(documents),
		TotalCount: count,
		RowCount:   len(documents),
	}, nil
}

// ListUUIDs retrieves the UUIDs of all live documents in the collection.
func (dao *DocumentDAO) ListUUIDs(ctx context.Context) ([]uuid.UUID, error) {
	var uuids []uuid.UUID
	err := dao.db.NewSelect().
		Model((*DocumentSchema)(nil)).
		Column("uuid").
		Where("collection_uuid = ?", dao.collectionUUID).
		OrderExpr("id ASC").
		Scan(ctx, &uuids)
	if err != nil {
		return nil, fmt.Errorf("failed to list document uuids %w", err)
	}

	return uuids, nil
}

// SetAnnotation stores annotated content and advances the document state.
func (dao *DocumentDAO) SetAnnotation(
	ctx context.Context,
	documentUUID uuid.UUID,
	annotated string,
	state string,
	runID string,
) error {
	document := DocumentSchema{AnnotatedContent: annotated, State: state, LastRunID: runID}
	r, err := dao.db.NewUpdate().
		Model(&document).
		Column("annotated_content", "state", "last_run_id", "updated_at").
		Where("collection_uuid = ?", dao.collectionUUID).
		Where("uuid = ?", documentUUID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update document annotation: %w", err)
	}

	rows, err := r.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return models.NewNotFoundError(fmt.Sprintf("document %s", documentUUID))
	}

	return nil
}

// SetState moves a document between states.
func (dao *DocumentDAO) SetState(
	ctx context.Context,
	documentUUID uuid.UUID,
	state string,
) error {
	document := DocumentSchema{State: state}
	r, err := dao.db.NewUpdate().
		Model(&document).
		Column("state", "updated_at").
		Where("collection_uuid = ?", dao.collectionUUID).
		Where("uuid = ?", documentUUID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update document state: %w", err)
	}

	rows, err := r.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return models.NewNotFoundError(fmt.Sprintf("document %s", documentUUID))
	}

	return nil
}

// SetTokenCount stores the token count for a document.
func (dao *DocumentDAO) SetTokenCount(
	ctx context.Context,
	documentUUID uuid.UUID,
	tokenCount int,
) error {
	document := DocumentSchema{TokenCount: tokenCount}
	r, err := dao.db.NewUpdate().
		Model(&document).
		Column("token_count", "updated_at").
		Where("collection_uuid = ?", dao.collectionUUID).
		Where("uuid = ?", documentUUID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update document token count: %w", err)
	}

	rows, err := r.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return models.NewNotFoundError(fmt.Sprintf("document %s", documentUUID))
	}

	return nil
}

// Delete soft deletes a document and its mentions, recounting mentions on
// the entities that referenced it.
func (dao *DocumentDAO) Delete(ctx context.Context, documentUUID uuid.UUID) error {
	document := DocumentSchema{}
	err := dao.db.NewSelect().
		Model(&document).
		Column("uuid").
		Where("collection_uuid = ?", dao.collectionUUID).
		Where("uuid = ?", documentUUID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.NewNotFoundError(fmt.Sprintf("document %s", documentUUID))
		}
		return fmt.Errorf("unable to retrieve document %w", err)
	}

	tx, err := dao.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackOnError(tx)

	entityUUIDs, err := documentEntityUUIDs(ctx, tx, documentUUID)
	if err != nil {
		return err
	}

	_, err = tx.NewDelete().
		Model((*MentionSchema)(nil)).
		Where("document_uuid = ?", documentUUID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete mentions: %w", err)
	}

	if err := recountMentions(ctx, tx, entityUUIDs); err != nil {
		return err
	}

	_, err = tx.NewDelete().
		Model((*DocumentSchema)(nil)).
		Where("collection_uuid = ?", dao.collectionUUID).
		Where("uuid = ?", documentUUID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func documentFromSchema(document *DocumentSchema) models.Document {
	return models.Document{
		UUID:             document.UUID,
		CreatedAt:        document.CreatedAt,
		UpdatedAt:        document.UpdatedAt,
		DocumentID:       document.DocumentID,
		CollectionUUID:   document.CollectionUUID,
		Content:          document.Content,
		AnnotatedContent: document.AnnotatedContent,
		State:            document.State,
		TokenCount:       document.TokenCount,
		LastRunID:        document.LastRunID,
		Metadata:         document.Metadata,
	}
}

func documentsFromSchema(documents []DocumentSchema) []models.Document {
	retDocuments := make([]models.Document, len(documents))
	for i := range documents {
		retDocuments[i] = documentFromSchema(&documents[i])
	}

	return retDocuments
}
