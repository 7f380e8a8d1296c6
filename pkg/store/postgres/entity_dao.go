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
)

const defaultEntityPageSize = 50

type EntityDAO struct {
	db             *bun.DB
	collectionUUID uuid.UUID
}

func NewEntityDAO(db *bun.DB, collectionUUID uuid.UUID) (*EntityDAO, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if collectionUUID == uuid.Nil {
		return nil, errors.New("collectionUUID cannot be nil")
	}
	return &EntityDAO{db: db, collectionUUID: collectionUUID}, nil
}

// ReplaceDocumentEntities replaces the mention set of a document with the
// given extraction output. Canonical entities are upserted on tag id, mention
// counts are recomputed for every touched entity, and entities left without
// mentions are soft deleted.
func (dao *EntityDAO) ReplaceDocumentEntities(
	ctx context.Context,
	documentUUID uuid.UUID,
	entities []models.CanonicalEntity,
) error {
	if documentUUID == uuid.Nil {
		return errors.New("documentUUID cannot be nil")
	}

	// Acquire a lock for this document UUID. This is to prevent concurrent
	// extraction runs from interleaving mention writes for the same document.
	lockID, err := acquireAdvisoryLock(ctx, dao.db, documentUUID.String())
	if err != nil {
		return fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	defer func(ctx context.Context, db bun.IDB, lockID uint64) {
		err := releaseAdvisoryLock(ctx, db, lockID)
		if err != nil {
			log.Errorf("failed to release advisory lock: %v", err)
		}
	}(ctx, dao.db, lockID)

	tx, err := dao.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackOnError(tx)

	// entities that currently mention this document need a recount after
	// their old mentions are dropped
	staleEntityUUIDs, err := documentEntityUUIDs(ctx, tx, documentUUID)
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

	affected := staleEntityUUIDs

	if len(entities) > 0 {
		entityRows := make([]EntitySchema, len(entities))
		for i, entity := range entities {
			entityRows[i] = EntitySchema{
				CollectionUUID: dao.collectionUUID,
				TagID:          entity.ID,
				Type:           entity.Type,
				Normalized:     entity.Normalized,
			}
		}

		_, err = tx.NewInsert().
			Model(&entityRows).
			// intentionally overwrite the deleted_at field, undeleting the
			// entity if it reappears after its mentions were purged
			Column("collection_uuid", "tag_id", "type", "normalized", "deleted_at").
			On("CONFLICT (collection_uuid, tag_id) DO UPDATE").
			Returning("*").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to upsert entities: %w", err)
		}

		var mentions []MentionSchema
		for i, entity := range entities {
			for _, mention := range entity.Mentions {
				mentions = append(mentions, MentionSchema{
					EntityUUID:     entityRows[i].UUID,
					DocumentUUID:   documentUUID,
					CollectionUUID: dao.collectionUUID,
					Text:           mention.Text,
					SpanStart:      mention.Span.Start,
					SpanEnd:        mention.Span.End,
					Source:         mention.Source,
				})
			}
			affected = append(affected, entityRows[i].UUID)
		}

		if len(mentions) > 0 {
			_, err = tx.NewInsert().
				Model(&mentions).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create mentions: %w", err)
			}
		}
	}

	affected = uniqueUUIDs(affected)

	if err := recountMentions(ctx, tx, affected); err != nil {
		return err
	}

	if len(affected) > 0 {
		// entities whose last mention just disappeared are dropped from
		// the registry
		_, err = tx.NewDelete().
			Model((*EntitySchema)(nil)).
			Where("collection_uuid = ?", dao.collectionUUID).
			Where("mention_count = 0").
			Where("uuid IN (?)", bun.In(affected)).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete orphaned entities: %w", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// DocumentEntities returns the entities mentioned in a single document with
// only that document's mentions attached, ordered by first mention.
func (dao *EntityDAO) DocumentEntities(
	ctx context.Context,
	documentUUID uuid.UUID,
) ([]models.CanonicalEntity, error) {
	var mentions []MentionSchema
	err := dao.db.NewSelect().
		Model(&mentions).
		Relation("Entity").
		Where("mn.document_uuid = ?", documentUUID).
		OrderExpr("mn.span_start ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get document mentions %w", err)
	}

	index := make(map[uuid.UUID]int)
	entities := make([]models.CanonicalEntity, 0, len(mentions))
	for i := range mentions {
		entity := mentions[i].Entity
		if entity == nil {
			continue
		}
		idx, ok := index[entity.UUID]
		if !ok {
			entities = append(entities, models.CanonicalEntity{
				ID:         entity.TagID,
				Normalized: entity.Normalized,
				Type:       entity.Type,
			})
			idx = len(entities) - 1
			index[entity.UUID] = idx
		}
		entities[idx].Mentions = append(entities[idx].Mentions, models.Mention{
			Text: mentions[i].Text,
			Span: models.Span{
				Start: mentions[i].SpanStart,
				End:   mentions[i].SpanEnd,
			},
			Source: mentions[i].Source,
		})
	}

	return entities, nil
}

// Get retrieves an entity by its tag id, with all of its mentions attached.
func (dao *EntityDAO) Get(ctx context.Context, tagID string) (*models.Entity, error) {
	if tagID == "" {
		return nil, errors.New("tagID cannot be empty")
	}

	entity := EntitySchema{}
	err := dao.db.NewSelect().
		Model(&entity).
		Where("collection_uuid = ?", dao.collectionUUID).
		Where("tag_id = ?", tagID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NewNotFoundError(fmt.Sprintf("entity %s", tagID))
		}
		return nil, fmt.Errorf("unable to retrieve entity %w", err)
	}

	var mentions []MentionSchema
	err = dao.db.NewSelect().
		Model(&mentions).
		Relation("Document").
		Where("mn.entity_uuid = ?", entity.UUID).
		OrderExpr("mn.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get entity mentions %w", err)
	}

	retEntity := entityFromSchema(&entity)
	retEntity.Mentions = make([]models.DocumentMention, len(mentions))
	for i := range mentions {
		documentMention := models.DocumentMention{
			DocumentUUID: mentions[i].DocumentUUID,
			Text:         mentions[i].Text,
			Span: models.Span{
				Start: mentions[i].SpanStart,
				End:   mentions[i].SpanEnd,
			},
			Source: mentions[i].Source,
		}
		if mentions[i].Document != nil {
			documentMention.DocumentID = mentions[i].Document.DocumentID
		}
		retEntity.Mentions[i] = documentMention
	}

	return &retEntity, nil
}

// List retrieves a filtered page of entities for the collection. The cursor
// is the last seen entity row id.
func (dao *EntityDAO) List(
	ctx context.Context,
	filter *models.EntityFilter,
) (*models.EntityListResponse, error) {
	if filter == nil {
		filter = &models.EntityFilter{}
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultEntityPageSize
	}

	var wg sync.WaitGroup
	var countErr error
	var count int

	wg.Add(1)
	go func() {
		defer wg.Done()
		// Get count of all entities matching the filter
		count, countErr = applyEntityFilter(
			dao.db.NewSelect().
				Model(&EntitySchema{}).
				Where("collection_uuid = ?", dao.collectionUUID),
			filter,
		).Count(ctx)
	}()

	var entities []EntitySchema
	q := applyEntityFilter(
		dao.db.NewSelect().
			Model(&entities).
			Where("collection_uuid = ?", dao.collectionUUID),
		filter,
	)
	if filter.Cursor > 0 {
		q = q.Where("id > ?", filter.Cursor)
	}
	err := q.OrderExpr("id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get entities %w", err)
	}

	entityList := make([]models.Entity, len(entities))
	for i := range entities {
		entityList[i] = entityFromSchema(&entities[i])
	}

	wg.Wait()
	if countErr != nil {
		return nil, fmt.Errorf("failed to get entity count %w", countErr)
	}

	return &models.EntityListResponse{
		Entities:   entityList,
		TotalCount: count,
		RowCount:   len(entities),
	}, nil
}

func applyEntityFilter(q *bun.SelectQuery, filter *models.EntityFilter) *bun.SelectQuery {
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Query != "" {
		q = q.Where("normalized ILIKE ?", "%"+filter.Query+"%")
	}
	if filter.MinMentions > 0 {
		q = q.Where("mention_count >= ?", filter.MinMentions)
	}
	return q
}

// documentEntityUUIDs returns the distinct entities with live mentions in
// the given document.
func documentEntityUUIDs(
	ctx context.Context,
	db bun.IDB,
	documentUUID uuid.UUID,
) ([]uuid.UUID, error) {
	var entityUUIDs []uuid.UUID
	err := db.NewSelect().
		Model((*MentionSchema)(nil)).
		ColumnExpr("DISTINCT entity_uuid").
		Where("document_uuid = ?", documentUUID).
		Scan(ctx, &entityUUIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get document entity uuids %w", err)
	}

	return entityUUIDs, nil
}

// recountMentions recomputes the live mention count for the given entities.
func recountMentions(ctx context.Context, db bun.IDB, entityUUIDs []uuid.UUID) error {
	if len(entityUUIDs) == 0 {
		return nil
	}

	_, err := db.NewUpdate().
		Model((*EntitySchema)(nil)).
		Set(
			"mention_count = (SELECT count(*) FROM mention mn WHERE mn.entity_uuid = e.uuid AND mn.deleted_at IS NULL)",
		).
		Where("uuid IN (?)", bun.In(entityUUIDs)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to recount mentions: %w", err)
	}

	return nil
}

func uniqueUUIDs(uuids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(uuids))
	unique := make([]uuid.UUID, 0, len(uuids))
	for _, id := range uuids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	return unique
}

func entityFromSchema(entity *EntitySchema) models.Entity {
	return models.Entity{
		UUID:           entity.UUID,
		ID:             entity.ID,
		CreatedAt:      entity.CreatedAt,
		UpdatedAt:      entity.UpdatedAt,
		CollectionUUID: entity.CollectionUUID,
		TagID:          entity.TagID,
		Type:           entity.Type,
		Normalized:     entity.Normalized,
		MentionCount:   entity.MentionCount,
	}
}
