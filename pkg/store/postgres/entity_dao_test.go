package postgres

import (
	"testing"

	"github.com/getentag/entag/pkg/extract"
	"github.com/getentag/entag/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntityDAO(t *testing.T) {
	t.Run("nil db should fail", func(t *testing.T) {
		_, err := NewEntityDAO(nil, uuid.New())
		assert.Error(t, err)
	})

	t.Run("nil collection UUID should fail", func(t *testing.T) {
		_, err := NewEntityDAO(testDB, uuid.Nil)
		assert.Error(t, err)
	})
}

func texasEntity() models.CanonicalEntity {
	return models.CanonicalEntity{
		ID:         extract.TagID("location", "Texas"),
		Type:       "location",
		Normalized: "Texas",
		Mentions: []models.Mention{
			{Text: "Texas", Span: models.Span{Start: 0, End: 5}, Source: models.MatchSourceGazetteer},
		},
	}
}

func rangeEntity() models.CanonicalEntity {
	return models.CanonicalEntity{
		ID:         extract.TagID("range", "30-37 in"),
		Type:       "range",
		Normalized: "30-37 in",
		Mentions: []models.Mention{
			{Text: "30 to 37 inches", Span: models.Span{Start: 20, End: 35}, Source: models.MatchSourcePattern},
		},
	}
}

func TestEntityDAO_ReplaceDocumentEntities(t *testing.T) {
	t.Run("nil document UUID should fail", func(t *testing.T) {
		collection := createTestCollection(t)
		entityDAO, err := NewEntityDAO(testDB, collection.UUID)
		require.NoError(t, err)

		err = entityDAO.ReplaceDocumentEntities(testCtx, uuid.Nil, nil)
		assert.Error(t, err)
	})

	t.Run("initial extraction", func(t *testing.T) {
		collection := createTestCollection(t)
		documents := createTestDocuments(
			t,
			collection.UUID,
			[]string{"Texas waistlines run 30 to 37 inches."},
		)
		entityDAO, err := NewEntityDAO(testDB, collection.UUID)
		require.NoError(t, err)

		texas := texasEntity()
		span := rangeEntity()
		err = entityDAO.ReplaceDocumentEntities(
			testCtx,
			documents[0].UUID,
			[]models.CanonicalEntity{texas, span},
		)
		assert.NoError(t, err, "ReplaceDocumentEntities should not return an error")

		entities, err := entityDAO.DocumentEntities(testCtx, documents[0].UUID)
		assert.NoError(t, err)
		require.Equal(t, 2, len(entities))
		// Ordered by first mention position
		assert.Equal(t, texas.ID, entities[0].ID)
		assert.Equal(t, span.ID, entities[1].ID)
		assert.Equal(t, "Texas", entities[0].Normalized)
		require.Equal(t, 1, len(entities[1].Mentions))
		assert.Equal(t, models.Span{Start: 20, End: 35}, entities[1].Mentions[0].Span)
		assert.Equal(t, models.MatchSourcePattern, entities[1].Mentions[0].Source)
	})

	t.Run("re-extraction replaces the mention set", func(t *testing.T) {
		collection := createTestCollection(t)
		documents := createTestDocuments(
			t,
			collection.UUID,
			[]string{"Texas, Texas and 30 to 37 inches."},
		)
		entityDAO, err := NewEntityDAO(testDB, collection.UUID)
		require.NoError(t, err)

		texas := texasEntity()
		texas.Mentions = append(texas.Mentions, models.Mention{
			Text: "Texas", Span: models.Span{Start: 7, End: 12}, Source: models.MatchSourceGazetteer,
		})
		span := rangeEntity()
		err = entityDAO.ReplaceDocumentEntities(
			testCtx,
			documents[0].UUID,
			[]models.CanonicalEntity{texas, span},
		)
		require.NoError(t, err)

		texasStored, err := entityDAO.Get(testCtx, texas.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, texasStored.MentionCount)

		// Second run: one Texas mention, the range dropped, a number found
		number := models.CanonicalEntity{
			ID:         extract.TagID("number", "42"),
			Type:       "number",
			Normalized: "42",
			Mentions: []models.Mention{
				{Text: "42", Span: models.Span{Start: 30, End: 32}, Source: models.MatchSourcePattern},
			},
		}
		rerun := texasEntity()
		err = entityDAO.ReplaceDocumentEntities(
			testCtx,
			documents[0].UUID,
			[]models.CanonicalEntity{rerun, number},
		)
		assert.NoError(t, err)

		texasAfter, err := entityDAO.Get(testCtx, texas.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, texasAfter.MentionCount)
		assert.Equal(t, texasStored.UUID, texasAfter.UUID)

		// The range entity lost its only mention and is gone
		_, err = entityDAO.Get(testCtx, span.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)

		numberStored, err := entityDAO.Get(testCtx, number.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, numberStored.MentionCount)
	})

	t.Run("reappearing entity keeps its UUID", func(t *testing.T) {
		collection := createTestCollection(t)
		documents := createTestDocuments(t, collection.UUID, []string{"Texas. More Texas."})
		entityDAO, err := NewEntityDAO(testDB, collection.UUID)
		require.NoError(t, err)

		texas := texasEntity()
		err = entityDAO.ReplaceDocumentEntities(
			testCtx,
			documents[0].UUID,
			[]models.CanonicalEntity{texas},
		)
		require.NoError(t, err)
		before, err := entityDAO.Get(testCtx, texas.ID)
		require.NoError(t, err)

		err = entityDAO.ReplaceDocumentEntities(testCtx, documents[0].UUID, nil)
		require.NoError(t, err)
		_, err = entityDAO.Get(testCtx, texas.ID)
		require.ErrorIs(t, err, models.ErrNotFound)

		err = entityDAO.ReplaceDocumentEntities(
			testCtx,
			documents[0].UUID,
			[]models.CanonicalEntity{texas},
		)
		require.NoError(t, err)
		after, err := entityDAO.Get(testCtx, texas.ID)
		require.NoError(t, err)
		assert.Equal(t, before.UUID, after.UUID)
		assert.Equal(t, 1, after.MentionCount)
	})

	t.Run("entity mentioned elsewhere survives", func(t *testing.T) {
		collection := createTestCollection(t)
		documents := createTestDocuments(
			t,
			collection.UUID,
			[]string{"Texas here.", "Texas there."},
		)
		entityDAO, err := NewEntityDAO(testDB, collection.UUID)
		require.NoError(t, err)

		texas := texasEntity()
		for _, document := range documents {
			err = entityDAO.ReplaceDocumentEntities(
				testCtx,
				document.UUID,
				[]models.CanonicalEntity{texas},
			)
			require.NoError(t, err)
		}

		err = entityDAO.ReplaceDocumentEntities(testCtx, documents[0].UUID, nil)
		assert.NoError(t, err)

		entities, err := entityDAO.DocumentEntities(testCtx, documents[0].UUID)
		assert.NoError(t, err)
		assert.Empty(t, entities)

		stored, err := entityDAO.Get(testCtx, texas.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.MentionCount)
	})
}

func TestEntityDAO_Get(t *testing.T) {
	collection := createTestCollection(t)
	documents := createTestDocuments(t, collection.UUID, []string{"Texas borders New Mexico."})
	entityDAO, err := NewEntityDAO(testDB, collection.UUID)
	require.NoError(t, err)

	texas := texasEntity()
	err = entityDAO.ReplaceDocumentEntities(
		testCtx,
		documents[0].UUID,
		[]models.CanonicalEntity{texas},
	)
	require.NoError(t, err)

	t.Run("found with mentions", func(t *testing.T) {
		entity, err := entityDAO.Get(testCtx, texas.ID)
		assert.NoError(t, err, "Get should not return an error")
		assert.Equal(t, texas.ID, entity.TagID)
		assert.Equal(t, "location", entity.Type)
		assert.Equal(t, "Texas", entity.Normalized)
		assert.Equal(t, 1, entity.MentionCount)
		require.Equal(t, 1, len(entity.Mentions))
		assert.Equal(t, documents[0].UUID, entity.Mentions[0].DocumentUUID)
		assert.Equal(t, documents[0].DocumentID, entity.Mentions[0].DocumentID)
		assert.Equal(t, "Texas", entity.Mentions[0].Text)
		assert.Equal(t, models.MatchSourceGazetteer, entity.Mentions[0].Source)
	})

	t.Run("empty tag id should fail", func(t *testing.T) {
		_, err := entityDAO.Get(testCtx, "")
		assert.Error(t, err)
	})

	t.Run("unknown tag id", func(t *testing.T) {
		_, err := entityDAO.Get(testCtx, "ffffffff")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestEntityDAO_List(t *testing.T) {
	collection := createTestCollection(t)
	documents := createTestDocuments(
		t,
		collection.UUID,
		[]string{"Texas and Austin, Austin again, 42 and 30 in."},
	)
	entityDAO, err := NewEntityDAO(testDB, collection.UUID)
	require.NoError(t, err)

	austin := models.CanonicalEntity{
		ID:         extract.TagID("location", "Austin"),
		Type:       "location",
		Normalized: "Austin",
		Mentions: []models.Mention{
			{Text: "Austin", Span: models.Span{Start: 10, End: 16}},
			{Text: "Austin", Span: models.Span{Start: 18, End: 24}},
		},
	}
	number := models.CanonicalEntity{
		ID:         extract.TagID("number", "42"),
		Type:       "number",
		Normalized: "42",
		Mentions: []models.Mention{
			{Text: "42", Span: models.Span{Start: 32, End: 34}},
		},
	}
	measurement := models.CanonicalEntity{
		ID:         extract.TagID("measurement", "30 in"),
		Type:       "measurement",
		Normalized: "30 in",
		Mentions: []models.Mention{
			{Text: "30 in", Span: models.Span{Start: 39, End: 44}},
		},
	}
	err = entityDAO.ReplaceDocumentEntities(
		testCtx,
		documents[0].UUID,
		[]models.CanonicalEntity{texasEntity(), austin, number, measurement},
	)
	require.NoError(t, err)

	t.Run("no filter", func(t *testing.T) {
		response, err := entityDAO.List(testCtx, nil)
		assert.NoError(t, err, "List should not return an error")
		assert.Equal(t, 4, response.TotalCount)
		assert.Equal(t, 4, response.RowCount)
		assert.Equal(t, len(response.Entities), response.RowCount)
	})

	t.Run("type filter", func(t *testing.T) {
		response, err := entityDAO.List(testCtx, &models.EntityFilter{Type: "location"})
		assert.NoError(t, err)
		assert.Equal(t, 2, response.TotalCount)
		for _, entity := range response.Entities {
			assert.Equal(t, "location", entity.Type)
		}
	})

	t.Run("query matches normalized value case-insensitively", func(t *testing.T) {
		response, err := entityDAO.List(testCtx, &models.EntityFilter{Query: "tex"})
		assert.NoError(t, err)
		require.Equal(t, 1, response.RowCount)
		assert.Equal(t, "Texas", response.Entities[0].Normalized)
	})

	t.Run("min mentions", func(t *testing.T) {
		response, err := entityDAO.List(testCtx, &models.EntityFilter{MinMentions: 2})
		assert.NoError(t, err)
		require.Equal(t, 1, response.RowCount)
		assert.Equal(t, "Austin", response.Entities[0].Normalized)
		assert.Equal(t, 2, response.Entities[0].MentionCount)
	})

	t.Run("cursor pagination", func(t *testing.T) {
		firstPage, err := entityDAO.List(testCtx, &models.EntityFilter{Limit: 2})
		assert.NoError(t, err)
		assert.Equal(t, 4, firstPage.TotalCount)
		require.Equal(t, 2, firstPage.RowCount)

		cursor := int(firstPage.Entities[1].ID)
		secondPage, err := entityDAO.List(testCtx, &models.EntityFilter{Limit: 2, Cursor: cursor})
		assert.NoError(t, err)
		assert.Equal(t, 4, secondPage.TotalCount)
		require.Equal(t, 2, secondPage.RowCount)

		seen := make(map[string]bool)
		for _, entity := range append(firstPage.Entities, secondPage.Entities...) {
			assert.False(t, seen[entity.TagID], "pages should not overlap")
			seen[entity.TagID] = true
		}
		assert.Equal(t, 4, len(seen))
	})
}
