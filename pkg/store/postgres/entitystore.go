package postgres

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/getentag/entag/internal"
	"github.com/getentag/entag/pkg/models"
	"github.com/getentag/entag/pkg/store"
)

var log = internal.GetLogger()

// NewPostgresEntityStore returns a new PostgresEntityStore. Use this to
// correctly initialize the store.
func NewPostgresEntityStore(
	appState *models.AppState,
	client *bun.DB,
) (*PostgresEntityStore, error) {
	if appState == nil {
		return nil, store.NewStorageError("nil appState received", nil)
	}

	pes := &PostgresEntityStore{
		BaseEntityStore: store.BaseEntityStore[*bun.DB]{Client: client},
		CollectionStore: NewCollectionDAO(client),
		appState:        appState,
	}

	err := pes.OnStart(context.Background())
	if err != nil {
		return nil, store.NewStorageError("failed to run OnInit", err)
	}
	return pes, nil
}

// Force compiler to validate that PostgresEntityStore implements the EntityStore interface.
var _ models.EntityStore[*bun.DB] = &PostgresEntityStore{}

type PostgresEntityStore struct {
	store.BaseEntityStore[*bun.DB]
	CollectionStore *CollectionDAO
	appState        *models.AppState
}

func (pes *PostgresEntityStore) OnStart(
	ctx context.Context,
) error {
	err := CreateSchema(ctx, pes.Client)
	if err != nil {
		return store.NewStorageError("failed to ensure postgres schema setup", err)
	}

	return nil
}

func (pes *PostgresEntityStore) GetClient() *bun.DB {
	return pes.Client
}

// CreateCollection creates a collection or undeletes a deleted one.
func (pes *PostgresEntityStore) CreateCollection(
	ctx context.Context,
	request *models.CreateCollectionRequest,
) (*models.Collection, error) {
	return pes.CollectionStore.Create(ctx, request)
}

// GetCollection retrieves a collection by name.
func (pes *PostgresEntityStore) GetCollection(
	ctx context.Context,
	name string,
) (*models.Collection, error) {
	return pes.CollectionStore.Get(ctx, name)
}

// ListCollections returns a list of all collections.
func (pes *PostgresEntityStore) ListCollections(
	ctx context.Context,
) ([]*models.Collection, error) {
	return pes.CollectionStore.List(ctx)
}

// UpdateCollection updates a collection's description and merges metadata.
func (pes *PostgresEntityStore) UpdateCollection(
	ctx context.Context,
	name string,
	request *models.UpdateCollectionRequest,
) (*models.Collection, error) {
	return pes.CollectionStore.Update(ctx, name, request, false)
}

// DeleteCollection deletes a collection and everything in it. This is a soft
// Delete.
func (pes *PostgresEntityStore) DeleteCollection(ctx context.Context, name string) error {
	return pes.CollectionStore.Delete(ctx, name)
}

// CreateDocuments stores a batch of documents in state pending and publishes
// an extraction task for each.
func (pes *PostgresEntityStore) CreateDocuments(
	ctx context.Context,
	collectionName string,
	requests []models.CreateDocumentRequest,
) ([]models.Document, error) {
	documentDAO, err := pes.documentDAO(ctx, collectionName)
	if err != nil {
		return nil, err
	}

	documents, err := documentDAO.CreateMany(ctx, requests)
	if err != nil {
		return nil, fmt.Errorf("failed to put documents: %w", err)
	}
	if len(documents) == 0 {
		return nil, nil
	}

	dt := make([]models.DocumentTask, len(documents))
	for i, document := range documents {
		dt[i] = models.DocumentTask{UUID: document.UUID}
	}

	// Send new documents to the task router
	err = pes.appState.TaskPublisher.PublishDocuments(
		map[string]string{"collection_name": collectionName},
		dt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to publish new documents %w", err)
	}

	return documents, nil
}

// GetDocument retrieves a document with its entities.
func (pes *PostgresEntityStore) GetDocument(
	ctx context.Context,
	collectionName string,
	documentUUID uuid.UUID,
) (*models.Document, error) {
	documentDAO, err := pes.documentDAO(ctx, collectionName)
	if err != nil {
		return nil, err
	}

	document, err := documentDAO.Get(ctx, documentUUID)
	if err != nil {
		return nil, err
	}

	entityDAO, err := NewEntityDAO(pes.Client, document.CollectionUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to create entityDAO: %w", err)
	}

	entities, err := entityDAO.DocumentEntities(ctx, documentUUID)
	if err != nil {
		return nil, err
	}
	document.Entities = entities

	return document, nil
}

// GetDocuments retrieves a batch of documents by UUID, without entities.
func (pes *PostgresEntityStore) GetDocuments(
	ctx context.Context,
	collectionName string,
	uuids []uuid.UUID,
) ([]models.Document, error) {
	documentDAO, err := pes.documentDAO(ctx, collectionName)
	if err != nil {
		return nil, err
	}

	return documentDAO.GetListByUUID(ctx, uuids)
}

// ListDocuments returns a paginated list of documents in a collection.
func (pes *PostgresEntityStore) ListDocuments(
	ctx context.Context,
	collectionName string,
	currentPage int,
	pageSize int,
) (*models.DocumentListResponse, error) {
	documentDAO, err := pes.documentDAO(ctx, collectionName)
	if err != nil {
		return nil, err
	}

	return documentDAO.List(ctx, currentPage, pageSize)
}

// ListDocumentUUIDs returns the UUIDs of all live documents in a collection.
func (pes *PostgresEntityStore) ListDocumentUUIDs(
	ctx context.Context,
	collectionName string,
) ([]uuid.UUID, error) {
	documentDAO, err := pes.documentDAO(ctx, collectionName)
	if err != nil {
		return nil, err
	}

	return documentDAO.ListUUIDs(ctx)
}

// DeleteDocument deletes a document and its mentions. This is a soft Delete.
func (pes *PostgresEntityStore) DeleteDocument(
	ctx context.Context,
	collectionName string,
	documentUUID uuid.UUID,
) error {
	documentDAO, err := pes.documentDAO(ctx, collectionName)
	if err != nil {
		return err
	}

	return documentDAO.Delete(ctx, documentUUID)
}

// SetDocumentAnnotation stores annotated content and advances the document
// state.
func (pes *PostgresEntityStore) SetDocumentAnnotation(
	ctx context.Context,
	collectionName string,
	documentUUID uuid.UUID,
	annotated string,
	state string,
	runID string,
) error {
	documentDAO, err := pes.documentDAO(ctx, collectionName)
	if err != nil {
		return err
	}

	return documentDAO.SetAnnotation(ctx, documentUUID, annotated, state, runID)
}

// SetDocumentTokenCount stores the token count for a document.
func (pes *PostgresEntityStore) SetDocumentTokenCount(
	ctx context.Context,
	collectionName string,
	documentUUID uuid.UUID,
	tokenCount int,
) error {
	documentDAO, err := pes.documentDAO(ctx, collectionName)
	if err != nil {
		return err
	}

	return documentDAO.SetTokenCount(ctx, documentUUID, tokenCount)
}

// SetDocumentState moves a document between states.
func (pes *PostgresEntityStore) SetDocumentState(
	ctx context.Context,
	collectionName string,
	documentUUID uuid.UUID,
	state string,
) error {
	documentDAO, err := pes.documentDAO(ctx, collectionName)
	if err != nil {
		return err
	}

	return documentDAO.SetState(ctx, documentUUID, state)
}

// ReplaceDocumentEntities replaces the mention set of a document with the
// given extraction output.
func (pes *PostgresEntityStore) ReplaceDocumentEntities(
	ctx context.Context,
	collectionName string,
	documentUUID uuid.UUID,
	entities []models.CanonicalEntity,
) error {
	entityDAO, err := pes.entityDAO(ctx, collectionName)
	if err != nil {
		return err
	}

	return entityDAO.ReplaceDocumentEntities(ctx, documentUUID, entities)
}

// DocumentEntities returns the entities of a single document with only that
// document's mentions attached.
func (pes *PostgresEntityStore) DocumentEntities(
	ctx context.Context,
	collectionName string,
	documentUUID uuid.UUID,
) ([]models.CanonicalEntity, error) {
	entityDAO, err := pes.entityDAO(ctx, collectionName)
	if err != nil {
		return nil, err
	}

	return entityDAO.DocumentEntities(ctx, documentUUID)
}

// GetEntity retrieves an entity by its tag id, with its mentions attached.
func (pes *PostgresEntityStore) GetEntity(
	ctx context.Context,
	collectionName string,
	tagID string,
) (*models.Entity, error) {
	entityDAO, err := pes.entityDAO(ctx, collectionName)
	if err != nil {
		return nil, err
	}

	return entityDAO.Get(ctx, tagID)
}

// ListEntities returns a filtered, cursored list of entities in a
// collection.
func (pes *PostgresEntityStore) ListEntities(
	ctx context.Context,
	collectionName string,
	filter *models.EntityFilter,
) (*models.EntityListResponse, error) {
	entityDAO, err := pes.entityDAO(ctx, collectionName)
	if err != nil {
		return nil, err
	}

	return entityDAO.List(ctx, filter)
}

// PurgeDeleted hard deletes all soft deleted records.
func (pes *PostgresEntityStore) PurgeDeleted(ctx context.Context) error {
	err := purgeDeleted(ctx, pes.Client)
	if err != nil {
		return store.NewStorageError("failed to purge deleted", err)
	}

	return nil
}

func (pes *PostgresEntityStore) Close() error {
	if pes.Client != nil {
		return pes.Client.Close()
	}
	return nil
}

func (pes *PostgresEntityStore) documentDAO(
	ctx context.Context,
	collectionName string,
) (*DocumentDAO, error) {
	collection, err := pes.CollectionStore.Get(ctx, collectionName)
	if err != nil {
		return nil, err
	}

	documentDAO, err := NewDocumentDAO(pes.Client, collection.UUID)
	if err != nil {
		return nil, fmt.Errorf("failed to create documentDAO: %w", err)
	}

	return documentDAO, nil
}

func (pes *PostgresEntityStore) entityDAO(
	ctx context.Context,
	collectionName string,
) (*EntityDAO, error) {
	collection, err := pes.CollectionStore.Get(ctx, collectionName)
	if err != nil {
		return nil, err
	}

	entityDAO, err := NewEntityDAO(pes.Client, collection.UUID)
	if err != nil {
		return nil, fmt.Errorf("failed to create entityDAO: %w", err)
	}

	return entityDAO, nil
}

func generateLockID(key string) uint64 {
	hasher := sha256.New()
	hasher.Write([]byte(key))
	hash := hasher.Sum(nil)
	return binary.BigEndian.Uint64(hash[:8])
}

// acquireAdvisoryLock acquires a PostgreSQL advisory lock for the given key.
// Accepts a bun.IDB, which can be either a *bun.DB or *bun.Tx.
func acquireAdvisoryLock(ctx context.Context, db bun.IDB, key string) (uint64, error) {
	lockID := generateLockID(key)

	if _, err := db.ExecContext(ctx, "SELECT pg_advisory_lock(?)", lockID); err != nil {
		return 0, store.NewStorageError("failed to acquire advisory lock", err)
	}

	return lockID, nil
}

// releaseAdvisoryLock releases a PostgreSQL advisory lock for the given key.
// Accepts a bun.IDB, which can be either a *bun.DB or *bun.Tx.
func releaseAdvisoryLock(ctx context.Context, db bun.IDB, lockID uint64) error {
	if _, err := db.ExecContext(ctx, "SELECT pg_advisory_unlock(?)", lockID); err != nil {
		return store.NewStorageError("failed to release advisory lock", err)
	}

	return nil
}

// rollbackOnError rolls back the transaction if an error is encountered.
// If the error is sql.ErrTxDone, the transaction has already been committed
// or rolled back and we ignore the error.
func rollbackOnError(tx bun.Tx) {
	if rollBackErr := tx.Rollback(); rollBackErr != nil && !errors.Is(rollBackErr, sql.ErrTxDone) {
		log.Error("failed to rollback transaction", rollBackErr)
	}
}
