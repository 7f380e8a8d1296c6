package postgres

import (
	"fmt"
	"testing"

	"github.com/getentag/entag/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocumentDAO(t *testing.T) {
	t.Run("nil db should fail", func(t *testing.T) {
		_, err := NewDocumentDAO(nil, uuid.New())
		assert.Error(t, err)
	})

	t.Run("nil collection UUID should fail", func(t *testing.T) {
		_, err := NewDocumentDAO(testDB, uuid.Nil)
		assert.Error(t, err)
	})
}

func TestDocumentDAO_CreateMany(t *testing.T) {
	collection := createTestCollection(t)
	documentDAO, err := NewDocumentDAO(testDB, collection.UUID)
	require.NoError(t, err)

	t.Run("empty batch returns nothing", func(t *testing.T) {
		documents, err := documentDAO.CreateMany(testCtx, nil)
		assert.NoError(t, err)
		assert.Nil(t, documents)
	})

	t.Run("batch insert", func(t *testing.T) {
		requests := []models.CreateDocumentRequest{
			{
				DocumentID: "guide-1",
				Content:    "Waist sizes run from 30 to 37 inches.",
				Metadata:   map[string]interface{}{"lang": "en"},
			},
			{Content: "no document id on this one"},
		}
		documents, err := documentDAO.CreateMany(testCtx, requests)
		assert.NoError(t, err, "CreateMany should not return an error")
		require.Equal(t, 2, len(documents))

		assert.Equal(t, "guide-1", documents[0].DocumentID)
		assert.Equal(t, requests[0].Content, documents[0].Content)
		assert.Equal(t, "en", documents[0].Metadata["lang"])
		assert.Equal(t, models.DocumentStatePending, documents[0].State)
		assert.NotEqual(t, uuid.Nil, documents[0].UUID)
		assert.Equal(t, collection.UUID, documents[0].CollectionUUID)
		assert.Empty(t, documents[1].DocumentID)
	})
}

func TestDocumentDAO_Get(t *testing.T) {
	collection := createTestCollection(t)
	documents := createTestDocuments(t, collection.UUID, []string{"lone document"})

	documentDAO, err := NewDocumentDAO(testDB, collection.UUID)
	require.NoError(t, err)

	t.Run("found", func(t *testing.T) {
		document, err := documentDAO.Get(testCtx, documents[0].UUID)
		assert.NoError(t, err, "Get should not return an error")
		assert.Equal(t, documents[0].UUID, document.UUID)
		assert.Equal(t, "lone document", document.Content)
	})

	t.Run("unknown UUID", func(t *testing.T) {
		_, err := documentDAO.Get(testCtx, uuid.New())
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("document from another collection is invisible", func(t *testing.T) {
		other := createTestCollection(t)
		otherDAO, err := NewDocumentDAO(testDB, other.UUID)
		require.NoError(t, err)

		_, err = otherDAO.Get(testCtx, documents[0].UUID)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestDocumentDAO_List(t *testing.T) {
	collection := createTestCollection(t)
	contents := make([]string, 5)
	for i := range contents {
		contents[i] = fmt.Sprintf("document number %d", i)
	}
	createTestDocuments(t, collection.UUID, contents)

	documentDAO, err := NewDocumentDAO(testDB, collection.UUID)
	require.NoError(t, err)

	t.Run("invalid page size", func(t *testing.T) {
		_, err := documentDAO.List(testCtx, 1, 0)
		assert.Error(t, err)
	})

	t.Run("first page", func(t *testing.T) {
		response, err := documentDAO.List(testCtx, 1, 2)
		assert.NoError(t, err, "List should not return an error")
		assert.Equal(t, 5, response.TotalCount)
		assert.Equal(t, 2, response.RowCount)
		require.Equal(t, 2, len(response.Documents))
		assert.Equal(t, "document number 0", response.Documents[0].Content)
		assert.Equal(t, "document number 1", response.Documents[1].Content)
	})

	t.Run("last page is short", func(t *testing.T) {
		response, err := documentDAO.List(testCtx, 3, 2)
		assert.NoError(t, err)
		assert.Equal(t, 5, response.TotalCount)
		assert.Equal(t, 1, response.RowCount)
		require.Equal(t, 1, len(response.Documents))
		assert.Equal(t, "document number 4", response.Documents[0].Content)
	})

	t.Run("page past the end is empty", func(t *testing.T) {
		response, err := documentDAO.List(testCtx, 4, 2)
		assert.NoError(t, err)
		assert.Equal(t, 5, response.TotalCount)
		assert.Equal(t, 0, response.RowCount)
		assert.Empty(t, response.Documents)
	})
}

func TestDocumentDAO_ListUUIDs(t *testing.T) {
	collection := createTestCollection(t)
	documents := createTestDocuments(t, collection.UUID, []string{"one", "two", "three"})

	documentDAO, err := NewDocumentDAO(testDB, collection.UUID)
	require.NoError(t, err)

	uuids, err := documentDAO.ListUUIDs(testCtx)
	assert.NoError(t, err, "ListUUIDs should not return an error")
	require.Equal(t, 3, len(uuids))
	for i, document := range documents {
		assert.Equal(t, document.UUID, uuids[i])
	}
}

func TestDocumentDAO_GetListByUUID(t *testing.T) {
	collection := createTestCollection(t)
	documents := createTestDocuments(t, collection.UUID, []string{"first", "second", "third"})

	documentDAO, err := NewDocumentDAO(testDB, collection.UUID)
	require.NoError(t, err)

	t.Run("empty uuid list", func(t *testing.T) {
		result, err := documentDAO.GetListByUUID(testCtx, nil)
		assert.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("subset", func(t *testing.T) {
		result, err := documentDAO.GetListByUUID(
			testCtx,
			[]uuid.UUID{documents[0].UUID, documents[2].UUID},
		)
		assert.NoError(t, err, "GetListByUUID should not return an error")
		assert.Equal(t, 2, len(result))
	})

	t.Run("unknown uuids are skipped", func(t *testing.T) {
		result, err := documentDAO.GetListByUUID(
			testCtx,
			[]uuid.UUID{documents[1].UUID, uuid.New()},
		)
		assert.NoError(t, err)
		require.Equal(t, 1, len(result))
		assert.Equal(t, documents[1].UUID, result[0].UUID)
	})
}

func TestDocumentDAO_SetAnnotation(t *testing.T) {
	collection := createTestCollection(t)
	documents := createTestDocuments(t, collection.UUID, []string{"Texas has wide plains."})

	documentDAO, err := NewDocumentDAO(testDB, collection.UUID)
	require.NoError(t, err)

	annotated := "||Texas||1a2b3c4d|| has wide plains."
	err = documentDAO.SetAnnotation(
		testCtx,
		documents[0].UUID,
		annotated,
		models.DocumentStateTagged,
		"run-01",
	)
	assert.NoError(t, err, "SetAnnotation should not return an error")

	document, err := documentDAO.Get(testCtx, documents[0].UUID)
	require.NoError(t, err)
	assert.Equal(t, annotated, document.AnnotatedContent)
	assert.Equal(t, models.DocumentStateTagged, document.State)
	assert.Equal(t, "run-01", document.LastRunID)
	// Original content is untouched
	assert.Equal(t, "Texas has wide plains.", document.Content)

	t.Run("unknown document", func(t *testing.T) {
		err := documentDAO.SetAnnotation(
			testCtx,
			uuid.New(),
			annotated,
			models.DocumentStateTagged,
			"run-01",
		)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestDocumentDAO_SetState(t *testing.T) {
	collection := createTestCollection(t)
	documents := createTestDocuments(t, collection.UUID, []string{"will fail"})

	documentDAO, err := NewDocumentDAO(testDB, collection.UUID)
	require.NoError(t, err)

	err = documentDAO.SetState(testCtx, documents[0].UUID, models.DocumentStateFailed)
	assert.NoError(t, err, "SetState should not return an error")

	document, err := documentDAO.Get(testCtx, documents[0].UUID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStateFailed, document.State)

	t.Run("unknown document", func(t *testing.T) {
		err := documentDAO.SetState(testCtx, uuid.New(), models.DocumentStateFailed)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestDocumentDAO_SetTokenCount(t *testing.T) {
	collection := createTestCollection(t)
	documents := createTestDocuments(t, collection.UUID, []string{"count my tokens"})

	documentDAO, err := NewDocumentDAO(testDB, collection.UUID)
	require.NoError(t, err)

	err = documentDAO.SetTokenCount(testCtx, documents[0].UUID, 42)
	assert.NoError(t, err, "SetTokenCount should not return an error")

	document, err := documentDAO.Get(testCtx, documents[0].UUID)
	require.NoError(t, err)
	assert.Equal(t, 42, document.TokenCount)
}

func TestDocumentDAO_Delete(t *testing.T) {
	collection := createTestCollection(t)
	documents := createTestDocuments(
		t,
		collection.UUID,
		[]string{"Texas and 30 inches here.", "Texas again over here."},
	)

	entityDAO, err := NewEntityDAO(testDB, collection.UUID)
	require.NoError(t, err)

	shared := models.CanonicalEntity{
		ID:         "cccc3333",
		Type:       "location",
		Normalized: "Texas",
		Mentions:   []models.Mention{{Text: "Texas", Span: models.Span{Start: 0, End: 5}}},
	}
	only := models.CanonicalEntity{
		ID:         "dddd4444",
		Type:       "measurement",
		Normalized: "30 in",
		Mentions:   []models.Mention{{Text: "30 inches", Span: models.Span{Start: 10, End: 19}}},
	}

	err = entityDAO.ReplaceDocumentEntities(
		testCtx,
		documents[0].UUID,
		[]models.CanonicalEntity{shared, only},
	)
	require.NoError(t, err)
	err = entityDAO.ReplaceDocumentEntities(
		testCtx,
		documents[1].UUID,
		[]models.CanonicalEntity{shared},
	)
	require.NoError(t, err)

	sharedEntity, err := entityDAO.Get(testCtx, shared.ID)
	require.NoError(t, err)
	require.Equal(t, 2, sharedEntity.MentionCount)

	documentDAO, err := NewDocumentDAO(testDB, collection.UUID)
	require.NoError(t, err)
	err = documentDAO.Delete(testCtx, documents[0].UUID)
	assert.NoError(t, err, "Delete should not return an error")

	_, err = documentDAO.Get(testCtx, documents[0].UUID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	// Mention counts are recomputed from the surviving documents
	sharedEntity, err = entityDAO.Get(testCtx, shared.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sharedEntity.MentionCount)

	// Entities orphaned by a document delete stay in the registry with a
	// zero count until the next extraction run or purge touches them
	onlyEntity, err := entityDAO.Get(testCtx, only.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, onlyEntity.MentionCount)
	assert.Empty(t, onlyEntity.Mentions)

	t.Run("unknown document", func(t *testing.T) {
		err := documentDAO.Delete(testCtx, uuid.New())
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}
