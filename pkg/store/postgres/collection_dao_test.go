package postgres

import (
	"strings"
	"testing"

	"github.com/getentag/entag/pkg/models"
	"github.com/getentag/entag/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionDAO_Create(t *testing.T) {
	collectionDAO := NewCollectionDAO(testDB)

	t.Run("empty name should fail", func(t *testing.T) {
		_, err := collectionDAO.Create(testCtx, &models.CreateCollectionRequest{})
		assert.Error(t, err)
	})

	t.Run("create with metadata", func(t *testing.T) {
		name := strings.ToLower(testutils.GenerateRandomString(16))
		collection, err := collectionDAO.Create(testCtx, &models.CreateCollectionRequest{
			Name:        name,
			Description: "sizing charts",
			Metadata:    map[string]interface{}{"source": "crawler"},
		})
		assert.NoError(t, err, "Create should not return an error")
		require.NotNil(t, collection)
		assert.Equal(t, name, collection.Name)
		assert.Equal(t, "sizing charts", collection.Description)
		assert.Equal(t, "crawler", collection.Metadata["source"])
		assert.NotEmpty(t, collection.UUID)
	})

	t.Run("system metadata key is stripped", func(t *testing.T) {
		name := strings.ToLower(testutils.GenerateRandomString(16))
		collection, err := collectionDAO.Create(testCtx, &models.CreateCollectionRequest{
			Name: name,
			Metadata: map[string]interface{}{
				"visible": "yes",
				"system":  map[string]interface{}{"origin": "smuggled"},
			},
		})
		assert.NoError(t, err)
		require.NotNil(t, collection)
		assert.Equal(t, "yes", collection.Metadata["visible"])
		assert.NotContains(t, collection.Metadata, "system")
	})

	t.Run("recreate updates description and keeps the UUID", func(t *testing.T) {
		name := strings.ToLower(testutils.GenerateRandomString(16))
		created, err := collectionDAO.Create(testCtx, &models.CreateCollectionRequest{
			Name:        name,
			Description: "first",
		})
		require.NoError(t, err)

		recreated, err := collectionDAO.Create(testCtx, &models.CreateCollectionRequest{
			Name:        name,
			Description: "second",
		})
		assert.NoError(t, err)
		assert.Equal(t, created.UUID, recreated.UUID)
		assert.Equal(t, "second", recreated.Description)
	})

	t.Run("recreate undeletes a deleted collection", func(t *testing.T) {
		name := strings.ToLower(testutils.GenerateRandomString(16))
		created, err := collectionDAO.Create(testCtx, &models.CreateCollectionRequest{
			Name: name,
		})
		require.NoError(t, err)
		createTestDocuments(t, created.UUID, []string{"short lived"})

		err = collectionDAO.Delete(testCtx, name)
		require.NoError(t, err)
		_, err = collectionDAO.Get(testCtx, name)
		require.ErrorIs(t, err, models.ErrNotFound)

		recreated, err := collectionDAO.Create(testCtx, &models.CreateCollectionRequest{
			Name: name,
		})
		assert.NoError(t, err)
		assert.Equal(t, created.UUID, recreated.UUID)
		// Documents deleted alongside the collection stay deleted
		assert.Equal(t, 0, recreated.DocumentCount)
	})
}

func TestCollectionDAO_GetCounts(t *testing.T) {
	collection := createTestCollection(t)
	documents := createTestDocuments(
		t,
		collection.UUID,
		[]string{"Texas is 268,596 square miles.", "New Mexico borders Texas."},
	)

	entityDAO, err := NewEntityDAO(testDB, collection.UUID)
	require.NoError(t, err)
	err = entityDAO.ReplaceDocumentEntities(testCtx, documents[0].UUID, []models.CanonicalEntity{
		{
			ID:         "aaaa1111",
			Type:       "location",
			Normalized: "Texas",
			Mentions:   []models.Mention{{Text: "Texas", Span: models.Span{Start: 0, End: 5}}},
		},
		{
			ID:         "bbbb2222",
			Type:       "measurement",
			Normalized: "268596 mi2",
			Mentions: []models.Mention{
				{Text: "268,596 square miles", Span: models.Span{Start: 9, End: 29}},
			},
		},
	})
	require.NoError(t, err)

	collection, err = NewCollectionDAO(testDB).Get(testCtx, collection.Name)
	assert.NoError(t, err, "Get should not return an error")
	assert.Equal(t, 2, collection.DocumentCount)
	assert.Equal(t, 2, collection.EntityCount)
}

func TestCollectionDAO_GetNotFound(t *testing.T) {
	_, err := NewCollectionDAO(testDB).Get(testCtx, "nosuchcollection")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCollectionDAO_List(t *testing.T) {
	first := createTestCollection(t)
	second := createTestCollection(t)

	collections, err := NewCollectionDAO(testDB).List(testCtx)
	assert.NoError(t, err, "List should not return an error")

	names := make(map[string]bool, len(collections))
	for i := range collections {
		names[collections[i].Name] = true
	}
	assert.True(t, names[first.Name])
	assert.True(t, names[second.Name])

	// Ordered by name
	for i := 1; i < len(collections); i++ {
		assert.LessOrEqual(t, collections[i-1].Name, collections[i].Name)
	}
}

func TestCollectionDAO_Update(t *testing.T) {
	collectionDAO := NewCollectionDAO(testDB)

	t.Run("update description and merge metadata", func(t *testing.T) {
		name := strings.ToLower(testutils.GenerateRandomString(16))
		_, err := collectionDAO.Create(testCtx, &models.CreateCollectionRequest{
			Name:     name,
			Metadata: map[string]interface{}{"a": "1", "b": "2"},
		})
		require.NoError(t, err)

		updated, err := collectionDAO.Update(testCtx, name, &models.UpdateCollectionRequest{
			Description: "updated",
			Metadata:    map[string]interface{}{"b": "3", "c": "4"},
		}, false)
		assert.NoError(t, err, "Update should not return an error")
		assert.Equal(t, "updated", updated.Description)
		assert.Equal(t, "1", updated.Metadata["a"])
		assert.Equal(t, "3", updated.Metadata["b"])
		assert.Equal(t, "4", updated.Metadata["c"])
	})

	t.Run("unprivileged update cannot touch system metadata", func(t *testing.T) {
		name := strings.ToLower(testutils.GenerateRandomString(16))
		_, err := collectionDAO.Create(testCtx, &models.CreateCollectionRequest{Name: name})
		require.NoError(t, err)

		seeded, err := collectionDAO.putMetadata(testCtx, name, map[string]interface{}{
			"system": map[string]interface{}{"origin": "sync"},
		}, true)
		require.NoError(t, err)
		require.Contains(t, seeded.Metadata, "system")

		updated, err := collectionDAO.Update(testCtx, name, &models.UpdateCollectionRequest{
			Metadata: map[string]interface{}{
				"system":  map[string]interface{}{"origin": "hijacked"},
				"visible": "yes",
			},
		}, false)
		assert.NoError(t, err)
		assert.Equal(t, "yes", updated.Metadata["visible"])
		system, ok := updated.Metadata["system"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "sync", system["origin"])
	})

	t.Run("unknown collection should fail", func(t *testing.T) {
		_, err := collectionDAO.Update(
			testCtx,
			"nosuchcollection",
			&models.UpdateCollectionRequest{Description: "x"},
			false,
		)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}
