package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dario.cat/mergo"
	"github.com/jinzhu/copier"
	"github.com/uptrace/bun"

	"github.com/getentag/entag/pkg/models"
	"github.com/getentag/entag/pkg/store"
)

type CollectionDAO struct {
	db *bun.DB
}

func NewCollectionDAO(db *bun.DB) *CollectionDAO {
	return &CollectionDAO{db: db}
}

// Create stores a new collection or undeletes an existing one with the same
// name. The description is overwritten on recreate and metadata is merged
// into whatever the prior collection carried.
func (dao *CollectionDAO) Create(
	ctx context.Context,
	request *models.CreateCollectionRequest,
) (*models.Collection, error) {
	if request.Name == "" {
		return nil, store.NewStorageError("collection name cannot be empty", nil)
	}

	collection := CollectionSchema{Name: request.Name, Description: request.Description}
	_, err := dao.db.NewInsert().
		Model(&collection).
		// intentionally overwrite the deleted_at field, undeleting the
		// collection if it exists and is deleted
		Column("name", "description", "deleted_at").
		On("CONFLICT (name) DO UPDATE").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, store.NewStorageError("failed to create collection", err)
	}

	if len(request.Metadata) == 0 {
		return dao.Get(ctx, request.Name)
	}

	return dao.putMetadata(ctx, request.Name, request.Metadata, false)
}

// Get retrieves a collection by name. Document and entity counts are
// populated on the returned collection.
func (dao *CollectionDAO) Get(
	ctx context.Context,
	name string,
) (*models.Collection, error) {
	if name == "" {
		return nil, store.NewStorageError("collection name cannot be empty", nil)
	}

	collection := CollectionSchema{}
	err := dao.db.NewSelect().
		Model(&collection).
		ColumnExpr("c.*").
		ColumnExpr(
			"(SELECT count(*) FROM document d WHERE d.collection_uuid = c.uuid AND d.deleted_at IS NULL) AS document_count",
		).
		ColumnExpr(
			"(SELECT count(*) FROM entity e WHERE e.collection_uuid = c.uuid AND e.deleted_at IS NULL) AS entity_count",
		).
		Where("name = ?", name).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NewNotFoundError("collection " + name)
		}
		return nil, store.NewStorageError("failed to get collection", err)
	}

	return collectionFromSchema(&collection)
}

// List retrieves all collections, ordered by name.
func (dao *CollectionDAO) List(ctx context.Context) ([]*models.Collection, error) {
	var collections []CollectionSchema
	err := dao.db.NewSelect().
		Model(&collections).
		ColumnExpr("c.*").
		ColumnExpr(
			"(SELECT count(*) FROM document d WHERE d.collection_uuid = c.uuid AND d.deleted_at IS NULL) AS document_count",
		).
		ColumnExpr(
			"(SELECT count(*) FROM entity e WHERE e.collection_uuid = c.uuid AND e.deleted_at IS NULL) AS entity_count",
		).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, store.NewStorageError("failed to list collections", err)
	}

	retCollections := make([]*models.Collection, len(collections))
	for i := range collections {
		retCollection, err := collectionFromSchema(&collections[i])
		if err != nil {
			return nil, err
		}
		retCollections[i] = retCollection
	}

	return retCollections, nil
}

// Update updates a collection's description and merges metadata.
func (dao *CollectionDAO) Update(
	ctx context.Context,
	name string,
	request *models.UpdateCollectionRequest,
	isPrivileged bool,
) (*models.Collection, error) {
	if name == "" {
		return nil, store.NewStorageError("collection name cannot be empty", nil)
	}

	collection := CollectionSchema{Description: request.Description}
	r, err := dao.db.NewUpdate().
		Model(&collection).
		Column("description", "updated_at").
		Where("name = ?", name).
		Exec(ctx)
	if err != nil {
		return nil, store.NewStorageError("failed to update collection", err)
	}

	rows, err := r.RowsAffected()
	if err != nil {
		return nil, store.NewStorageError("failed to get affected rows", err)
	}
	if rows == 0 {
		return nil, models.NewNotFoundError("collection " + name)
	}

	if len(request.Metadata) == 0 {
		return dao.Get(ctx, name)
	}

	return dao.putMetadata(ctx, name, request.Metadata, isPrivileged)
}

// putMetadata merges the given metadata into the collection's metadata and
// returns the updated collection.
func (dao *CollectionDAO) putMetadata(
	ctx context.Context,
	name string,
	metadata map[string]interface{},
	isPrivileged bool,
) (*models.Collection, error) {
	// Acquire a lock for this collection name. This is to prevent concurrent
	// updates to the collection metadata.
	lockID, err := acquireAdvisoryLock(ctx, dao.db, name)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	defer func(ctx context.Context, db bun.IDB, lockID uint64) {
		err := releaseAdvisoryLock(ctx, db, lockID)
		if err != nil {
			log.Errorf("failed to release advisory lock: %v", err)
		}
	}(ctx, dao.db, lockID)

	// remove the top-level `system` key from the metadata if the caller is
	// not privileged
	if !isPrivileged {
		delete(metadata, "system")
	}

	dbCollection := &CollectionSchema{}
	err = dao.db.NewSelect().
		Model(dbCollection).
		Where("name = ?", name).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NewNotFoundError("collection " + name)
		}
		return nil, store.NewStorageError("failed to get collection", err)
	}

	dbMetadata := dbCollection.Metadata
	if err := mergo.Merge(&dbMetadata, metadata, mergo.WithOverride); err != nil {
		return nil, store.NewStorageError("failed to merge metadata", err)
	}

	_, err = dao.db.NewUpdate().
		Model(dbCollection).
		Set("metadata = ?", dbMetadata).
		Where("name = ?", name).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, store.NewStorageError("failed to update collection metadata", err)
	}

	return collectionFromSchema(dbCollection)
}

// Delete soft deletes a collection and all of its documents, entities and
// mentions.
func (dao *CollectionDAO) Delete(ctx context.Context, name string) error {
	collection, err := dao.Get(ctx, name)
	if err != nil {
		return err
	}

	return deleteCollection(ctx, dao.db, collection.UUID)
}

func collectionFromSchema(collection *CollectionSchema) (*models.Collection, error) {
	retCollection := &models.Collection{}
	err := copier.Copy(retCollection, collection)
	if err != nil {
		return nil, store.NewStorageError("failed to copy collection", err)
	}

	return retCollection, nil
}
