package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/alitto/pond"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/getentag/entag/pkg/models"
)

const DefaultRetagPoolSize = 2
const DefaultRetagChunkSize = 100

// NewRetagProcessor creates a new RetagProcessor
func NewRetagProcessor(appState *models.AppState) *RetagProcessor {
	return &RetagProcessor{
		appState:  appState,
		PoolSize:  DefaultRetagPoolSize,
		ChunkSize: DefaultRetagChunkSize,
	}
}

// RetagProcessor republishes extract tasks for every live document in a
// collection. All documents of a run share one ULID run id, carried in task
// metadata and stamped on each document when its annotation lands.
type RetagProcessor struct {
	appState  *models.AppState
	PoolSize  int
	ChunkSize int
}

// Run publishes extract tasks for all documents in the collection in chunks
// and returns once every chunk has been published. Extraction itself
// proceeds in the background.
func (rp *RetagProcessor) Run(
	ctx context.Context,
	collectionName string,
) (*models.RetagResponse, error) {
	uuids, err := rp.appState.EntityStore.ListDocumentUUIDs(ctx, collectionName)
	if err != nil {
		return nil, fmt.Errorf("retag failed to list documents: %w", err)
	}

	runID := ulid.Make().String()
	if len(uuids) == 0 {
		return &models.RetagResponse{RunID: runID, DocumentCount: 0}, nil
	}

	metadata := map[string]string{
		"collection_name": collectionName,
		"run_id":          runID,
	}
	chunks := chunkDocumentTasks(uuids, rp.ChunkSize)

	var mu sync.Mutex
	var publishErr error
	pool := pond.New(rp.PoolSize, len(chunks))
	for _, chunk := range chunks {
		// Capture range variable
		chunk := chunk
		pool.Submit(func() {
			err := rp.appState.TaskPublisher.Publish(models.DocumentExtractTopic, metadata, chunk)
			if err != nil {
				mu.Lock()
				if publishErr == nil {
					publishErr = err
				}
				mu.Unlock()
			}
		})
	}
	pool.StopAndWait()

	if publishErr != nil {
		return nil, fmt.Errorf("retag failed to publish extract tasks: %w", publishErr)
	}

	log.Infof(
		"retag run %s published %d documents in %d chunks for collection %s",
		runID, len(uuids), len(chunks), collectionName,
	)

	return &models.RetagResponse{RunID: runID, DocumentCount: len(uuids)}, nil
}

// chunkDocumentTasks splits the document list into task batches of the given size.
func chunkDocumentTasks(uuids []uuid.UUID, chunkSize int) [][]models.DocumentTask {
	tasks := make([]models.DocumentTask, len(uuids))
	for i := range uuids {
		tasks[i] = models.DocumentTask{UUID: uuids[i]}
	}
	var chunks [][]models.DocumentTask
	for i := 0; i < len(tasks); i += chunkSize {
		end := i + chunkSize
		if end > len(tasks) {
			end = len(tasks)
		}
		chunks = append(chunks, tasks[i:end])
	}
	return chunks
}
