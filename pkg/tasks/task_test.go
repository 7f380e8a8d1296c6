package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/getentag/entag/internal"
	"github.com/getentag/entag/pkg/extract"
	"github.com/getentag/entag/pkg/lexicon"
	"github.com/getentag/entag/pkg/models"
	"github.com/getentag/entag/pkg/store/postgres"
	"github.com/getentag/entag/pkg/testutils"
)

var testDB *bun.DB
var testCtx context.Context
var appState *models.AppState
var testPub *recordingPublisher
var terminateTestDB func()

func TestMain(m *testing.M) {
	setup()
	exitCode := m.Run()
	tearDown()

	os.Exit(exitCode)
}

func setup() {
	// Initialize the test context
	testCtx = context.Background()

	logger := internal.GetLogger()
	internal.SetLogLevel(logrus.DebugLevel)

	appState = &models.AppState{}
	cfg := testutils.NewTestConfig()
	appState.Config = cfg

	library, err := lexicon.LoadDefault()
	if err != nil {
		panic(err)
	}
	extractor, err := extract.NewPipeline(cfg, library)
	if err != nil {
		panic(err)
	}
	appState.Extractor = extractor

	dsn, terminate, err := testutils.BootstrapDSN(testCtx)
	if err != nil {
		panic(err)
	}
	terminateTestDB = terminate
	appState.Config.Store.Postgres.DSN = dsn

	// Initialize the database connection
	testDB = postgres.NewPostgresConn(dsn)
	testutils.SetUpDBLogging(testDB, logger)

	testPub = &recordingPublisher{}
	appState.TaskPublisher = testPub

	entityStore, err := postgres.NewPostgresEntityStore(appState, testDB)
	if err != nil {
		panic(err)
	}
	appState.EntityStore = entityStore
}

func tearDown() {
	// Close the database connection
	if err := testDB.Close(); err != nil {
		panic(err)
	}
	if terminateTestDB != nil {
		terminateTestDB()
	}
	internal.SetLogLevel(logrus.InfoLevel)
}

type publishedTask struct {
	topic    models.TaskTopic
	metadata map[string]string
	tasks    []models.DocumentTask
}

// recordingPublisher captures published tasks instead of writing them to
// the queue.
type recordingPublisher struct {
	mu        sync.Mutex
	published []publishedTask
}

func (p *recordingPublisher) Publish(
	taskType models.TaskTopic,
	metadata map[string]string,
	payload any,
) error {
	tasks, _ := payload.([]models.DocumentTask)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, publishedTask{
		topic:    taskType,
		metadata: metadata,
		tasks:    tasks,
	})
	return nil
}

func (p *recordingPublisher) PublishDocuments(
	metadata map[string]string,
	payload []models.DocumentTask,
) error {
	return p.Publish(models.DocumentExtractTopic, metadata, payload)
}

func (p *recordingPublisher) Close() error {
	return nil
}

func (p *recordingPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = nil
}

func (p *recordingPublisher) ForTopic(topic models.TaskTopic) []publishedTask {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedTask
	for _, pt := range p.published {
		if pt.topic == topic {
			out = append(out, pt)
		}
	}
	return out
}

// createTaskTestCollection creates a collection with a random name.
func createTaskTestCollection(t *testing.T) string {
	t.Helper()
	name := strings.ToLower(testutils.GenerateRandomString(16))
	_, err := appState.EntityStore.CreateCollection(testCtx, &models.CreateCollectionRequest{
		Name:        name,
		Description: "task test collection",
	})
	require.NoError(t, err, "CreateCollection should not return an error")
	return name
}

// seedTaskDocuments stores documents with the given contents and returns
// them in insert order.
func seedTaskDocuments(t *testing.T, collectionName string, contents []string) []models.Document {
	t.Helper()
	requests := make([]models.CreateDocumentRequest, len(contents))
	for i, content := range contents {
		requests[i] = models.CreateDocumentRequest{
			DocumentID: fmt.Sprintf("task-doc-%d", i),
			Content:    content,
		}
	}
	documents, err := appState.EntityStore.CreateDocuments(testCtx, collectionName, requests)
	require.NoError(t, err, "CreateDocuments should not return an error")
	require.Equal(t, len(contents), len(documents))
	return documents
}

// newTaskMessage builds a queue message carrying the given documents as a
// task batch.
func newTaskMessage(
	t *testing.T,
	collectionName string,
	runID string,
	documents []models.Document,
) *message.Message {
	t.Helper()
	tasks := make([]models.DocumentTask, len(documents))
	for i, document := range documents {
		tasks[i] = models.DocumentTask{UUID: document.UUID}
	}
	payload, err := json.Marshal(tasks)
	require.NoError(t, err)

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata = message.Metadata{
		"collection_name": collectionName,
	}
	if runID != "" {
		msg.Metadata.Set("run_id", runID)
	}
	msg.SetContext(testCtx)
	return msg
}

func TestDocumentTaskPayloadToDocuments(t *testing.T) {
	collectionName := createTaskTestCollection(t)
	documents := seedTaskDocuments(t, collectionName, []string{
		"Texas is home to Austin.",
		"The typical waistline runs 30 to 37 inches.",
	})

	t.Run("returns the stored documents", func(t *testing.T) {
		msg := newTaskMessage(t, collectionName, "", documents)
		got, err := documentTaskPayloadToDocuments(testCtx, appState, msg)
		assert.NoError(t, err)
		assert.Equal(t, 2, len(got))
		assert.Equal(t, documents[0].UUID, got[0].UUID)
		assert.Equal(t, documents[0].Content, got[0].Content)
	})

	t.Run("missing collection_name metadata should fail", func(t *testing.T) {
		msg := newTaskMessage(t, collectionName, "", documents)
		msg.Metadata = message.Metadata{}
		_, err := documentTaskPayloadToDocuments(testCtx, appState, msg)
		assert.ErrorContains(t, err, "collection_name")
	})

	t.Run("malformed payload should fail", func(t *testing.T) {
		msg := message.NewMessage(watermill.NewUUID(), []byte("not json"))
		msg.Metadata = message.Metadata{"collection_name": collectionName}
		_, err := documentTaskPayloadToDocuments(testCtx, appState, msg)
		assert.ErrorContains(t, err, "unmarshal")
	})

	t.Run("deleted documents are skipped", func(t *testing.T) {
		err := appState.EntityStore.DeleteDocument(testCtx, collectionName, documents[1].UUID)
		require.NoError(t, err)

		msg := newTaskMessage(t, collectionName, "", documents)
		got, err := documentTaskPayloadToDocuments(testCtx, appState, msg)
		assert.NoError(t, err)
		assert.Equal(t, 1, len(got))
		assert.Equal(t, documents[0].UUID, got[0].UUID)
	})
}
