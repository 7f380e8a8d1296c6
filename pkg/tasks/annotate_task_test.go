package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getentag/entag/pkg/extract"
	"github.com/getentag/entag/pkg/models"
)

func TestDocumentAnnotateTask_Execute(t *testing.T) {
	collectionName := createTaskTestCollection(t)
	documents := seedTaskDocuments(t, collectionName, []string{
		"Texas waistlines run 30 to 37 inches.",
	})

	texasID := extract.TagID("location", "Texas")
	err := appState.EntityStore.ReplaceDocumentEntities(
		testCtx,
		collectionName,
		documents[0].UUID,
		[]models.CanonicalEntity{
			{
				ID:         texasID,
				Normalized: "Texas",
				Type:       "location",
				Mentions: []models.Mention{
					{Text: "Texas", Span: models.Span{Start: 0, End: 5}, Source: "gazetteer"},
				},
			},
		},
	)
	require.NoError(t, err)
	testPub.Reset()

	task := NewDocumentAnnotateTask(appState)
	msg := newTaskMessage(t, collectionName, "run-annotate-01", documents)

	err = task.Execute(testCtx, msg)
	require.NoError(t, err, "Execute should not return an error")

	document, err := appState.EntityStore.GetDocument(testCtx, collectionName, documents[0].UUID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStateTagged, document.State)
	assert.Equal(t, "run-annotate-01", document.LastRunID)
	assert.Equal(
		t,
		"||Texas||"+texasID+"|| waistlines run 30 to 37 inches.",
		document.AnnotatedContent,
	)
	// Original content is untouched by annotation.
	assert.Equal(t, "Texas waistlines run 30 to 37 inches.", document.Content)

	// Token counting follows annotation; no callback is configured.
	published := testPub.ForTopic(models.DocumentTokenCountTopic)
	require.Equal(t, 1, len(published), "expected one token count batch")
	assert.Equal(t, "run-annotate-01", published[0].metadata["run_id"])
	assert.Empty(t, testPub.ForTopic(models.DocumentCallbackTopic))
}

func TestDocumentAnnotateTask_ExecuteGeneratesRunID(t *testing.T) {
	collectionName := createTaskTestCollection(t)
	documents := seedTaskDocuments(t, collectionName, []string{"Nothing to tag here."})
	testPub.Reset()

	task := NewDocumentAnnotateTask(appState)
	msg := newTaskMessage(t, collectionName, "", documents)

	err := task.Execute(testCtx, msg)
	require.NoError(t, err)

	document, err := appState.EntityStore.GetDocument(testCtx, collectionName, documents[0].UUID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStateTagged, document.State)
	assert.Equal(t, document.Content, document.AnnotatedContent)
	assert.Equal(t, 26, len(document.LastRunID), "expected a ULID run id")

	published := testPub.ForTopic(models.DocumentTokenCountTopic)
	require.Equal(t, 1, len(published))
	assert.Equal(t, document.LastRunID, published[0].metadata["run_id"])
}

func TestDocumentAnnotateTask_ExecuteParksFailedDocument(t *testing.T) {
	collectionName := createTaskTestCollection(t)
	documents := seedTaskDocuments(t, collectionName, []string{"Short."})

	// A mention span beyond the content makes annotation fail for this
	// document on every attempt.
	err := appState.EntityStore.ReplaceDocumentEntities(
		testCtx,
		collectionName,
		documents[0].UUID,
		[]models.CanonicalEntity{
			{
				ID:         extract.TagID("location", "Texas"),
				Normalized: "Texas",
				Type:       "location",
				Mentions: []models.Mention{
					{Text: "Texas", Span: models.Span{Start: 0, End: 500}, Source: "pattern"},
				},
			},
		},
	)
	require.NoError(t, err)
	testPub.Reset()

	task := NewDocumentAnnotateTask(appState)
	msg := newTaskMessage(t, collectionName, "run-annotate-02", documents)

	err = task.Execute(testCtx, msg)
	require.NoError(t, err, "a parked document should not fail the batch")

	document, err := appState.EntityStore.GetDocument(testCtx, collectionName, documents[0].UUID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStateFailed, document.State)
	assert.Empty(t, document.AnnotatedContent)

	// Nothing downstream for an empty annotated batch.
	assert.Empty(t, testPub.ForTopic(models.DocumentTokenCountTopic))
	assert.Empty(t, testPub.ForTopic(models.DocumentCallbackTopic))
}

func TestDocumentAnnotateTask_ExecutePublishesCallback(t *testing.T) {
	callbackURL := appState.Config.Callback.URL
	appState.Config.Callback.URL = "http://localhost:8999/callback"
	defer func() { appState.Config.Callback.URL = callbackURL }()

	collectionName := createTaskTestCollection(t)
	documents := seedTaskDocuments(t, collectionName, []string{"Texas again."})
	testPub.Reset()

	task := NewDocumentAnnotateTask(appState)
	msg := newTaskMessage(t, collectionName, "run-annotate-03", documents)

	err := task.Execute(testCtx, msg)
	require.NoError(t, err)

	published := testPub.ForTopic(models.DocumentCallbackTopic)
	require.Equal(t, 1, len(published), "expected one callback batch")
	assert.Equal(t, collectionName, published[0].metadata["collection_name"])
	assert.Equal(t, "run-annotate-03", published[0].metadata["run_id"])
	assert.Equal(t, documents[0].UUID, published[0].tasks[0].UUID)
}
