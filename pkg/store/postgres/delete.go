package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// deleteCollection deletes a collection and all of its documents, entities
// and mentions. This is a soft Delete.
// Note: soft_deletes don't trigger cascade deletes, so we need to Delete all
// related records manually.
func deleteCollection(ctx context.Context, db *bun.DB, collectionUUID uuid.UUID) error {
	log.Debugf("deleting from entity store for collection %s", collectionUUID)

	// all tables except the last are scoped by collection_uuid. The
	// collection row itself is deleted by uuid below.
	for _, schema := range tableList[:len(tableList)-1] {
		log.Debugf("deleting collection %s from schema %T", collectionUUID, schema)
		_, err := db.NewDelete().
			Model(schema).
			Where("collection_uuid = ?", collectionUUID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("error deleting rows from %T: %w", schema, err)
		}
	}

	_, err := db.NewDelete().
		Model((*CollectionSchema)(nil)).
		Where("uuid = ?", collectionUUID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("error deleting collection: %w", err)
	}

	log.Debugf("completed deleting collection %s", collectionUUID)

	return nil
}
