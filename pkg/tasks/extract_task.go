package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/getentag/entag/pkg/models"
)

var _ models.Task = &DocumentExtractTask{}

func NewDocumentExtractTask(appState *models.AppState) *DocumentExtractTask {
	return &DocumentExtractTask{
		BaseTask{
			appState: appState,
		},
	}
}

// DocumentExtractTask runs the extraction pipeline over a batch of documents
// and replaces each document's entity set with the result. Successfully
// extracted documents are published as a batch to the annotate topic.
type DocumentExtractTask struct {
	BaseTask
}

func (det *DocumentExtractTask) Execute(
	ctx context.Context,
	msg *message.Message,
) error {
	ctx, done := context.WithTimeout(ctx, TaskTimeout*time.Second)
	defer done()

	collectionName := msg.Metadata.Get("collection_name")
	if collectionName == "" {
		return errors.New("DocumentExtractTask collection_name is empty")
	}

	log.Debugf("DocumentExtractTask called for collection %s", collectionName)

	documents, err := documentTaskPayloadToDocuments(ctx, det.appState, msg)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			log.Warnf("DocumentExtractTask collection %s not found. Was it deleted?", collectionName)
			msg.Ack()
			return nil
		}
		return fmt.Errorf("DocumentExtractTask get documents failed: %w", err)
	}

	if len(documents) == 0 {
		log.Warnf("DocumentExtractTask no documents found. Were the records deleted?")
		msg.Ack()
		return nil
	}

	extracted := make([]models.DocumentTask, 0, len(documents))
	for i := range documents {
		result, err := det.appState.Extractor.Extract(ctx, documents[i].Content)
		if err != nil {
			return fmt.Errorf("DocumentExtractTask extract failed: %w", err)
		}

		err = det.appState.EntityStore.ReplaceDocumentEntities(
			ctx,
			collectionName,
			documents[i].UUID,
			result.Entities,
		)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				log.Warnf(
					"DocumentExtractTask document %s not found. Was it deleted?",
					documents[i].UUID,
				)
				continue
			}
			return fmt.Errorf("DocumentExtractTask replace entities failed: %w", err)
		}

		extracted = append(extracted, models.DocumentTask{UUID: documents[i].UUID})
	}

	if len(extracted) > 0 {
		err = det.appState.TaskPublisher.Publish(
			models.DocumentAnnotateTopic,
			map[string]string{
				"collection_name": collectionName,
				"run_id":          msg.Metadata.Get("run_id"),
			},
			extracted,
		)
		if err != nil {
			return fmt.Errorf("DocumentExtractTask publish annotate task failed: %w", err)
		}
	}

	msg.Ack()

	return nil
}

func (det *DocumentExtractTask) HandleError(err error) {
	log.Errorf("DocumentExtractTask failed: %v", err)
}
