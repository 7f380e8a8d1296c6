package tasks

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getentag/entag/pkg/models"
)

func TestRetagProcessor_Run(t *testing.T) {
	collectionName := createTaskTestCollection(t)
	contents := make([]string, 5)
	for i := range contents {
		contents[i] = fmt.Sprintf("Texas document number %d.", i)
	}
	documents := seedTaskDocuments(t, collectionName, contents)
	testPub.Reset()

	rp := NewRetagProcessor(appState)
	rp.ChunkSize = 2

	response, err := rp.Run(testCtx, collectionName)
	require.NoError(t, err, "Run should not return an error")
	assert.Equal(t, 26, len(response.RunID), "expected a ULID run id")
	assert.Equal(t, 5, response.DocumentCount)

	published := testPub.ForTopic(models.DocumentExtractTopic)
	require.Equal(t, 3, len(published), "five documents in chunks of two")

	republished := make(map[uuid.UUID]bool)
	for _, pt := range published {
		assert.Equal(t, collectionName, pt.metadata["collection_name"])
		assert.Equal(t, response.RunID, pt.metadata["run_id"])
		for _, task := range pt.tasks {
			republished[task.UUID] = true
		}
	}
	assert.Equal(t, len(documents), len(republished), "every document should be republished once")
	for _, document := range documents {
		assert.True(t, republished[document.UUID], "document %s missing from run", document.UUID)
	}
}

func TestRetagProcessor_RunEmptyCollection(t *testing.T) {
	collectionName := createTaskTestCollection(t)
	testPub.Reset()

	rp := NewRetagProcessor(appState)
	response, err := rp.Run(testCtx, collectionName)
	require.NoError(t, err)
	assert.Equal(t, 0, response.DocumentCount)
	assert.NotEmpty(t, response.RunID)
	assert.Empty(t, testPub.ForTopic(models.DocumentExtractTopic))
}

func TestRetagProcessor_RunUnknownCollection(t *testing.T) {
	rp := NewRetagProcessor(appState)
	_, err := rp.Run(testCtx, "nosuchcollection")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
