package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/oklog/ulid/v2"

	"github.com/getentag/entag/pkg/models"
)

var _ models.Task = &DocumentAnnotateTask{}

func NewDocumentAnnotateTask(appState *models.AppState) *DocumentAnnotateTask {
	return &DocumentAnnotateTask{
		BaseTask{
			appState: appState,
		},
	}
}

// DocumentAnnotateTask rewrites the content of extracted documents with
// mention tags and advances them to the tagged state. A document whose
// stored mentions can't produce valid output is parked in the failed state
// rather than retried; the rest of the batch proceeds.
type DocumentAnnotateTask struct {
	BaseTask
}

func (dat *DocumentAnnotateTask) Execute(
	ctx context.Context,
	msg *message.Message,
) error {
	ctx, done := context.WithTimeout(ctx, TaskTimeout*time.Second)
	defer done()

	collectionName := msg.Metadata.Get("collection_name")
	if collectionName == "" {
		return errors.New("DocumentAnnotateTask collection_name is empty")
	}

	runID := msg.Metadata.Get("run_id")
	if runID == "" {
		runID = ulid.Make().String()
	}

	log.Debugf("DocumentAnnotateTask called for collection %s run %s", collectionName, runID)

	documents, err := documentTaskPayloadToDocuments(ctx, dat.appState, msg)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			log.Warnf("DocumentAnnotateTask collection %s not found. Was it deleted?", collectionName)
			msg.Ack()
			return nil
		}
		return fmt.Errorf("DocumentAnnotateTask get documents failed: %w", err)
	}

	if len(documents) == 0 {
		log.Warnf("DocumentAnnotateTask no documents found. Were the records deleted?")
		msg.Ack()
		return nil
	}

	annotated := make([]models.DocumentTask, 0, len(documents))
	for i := range documents {
		entities, err := dat.appState.EntityStore.DocumentEntities(
			ctx,
			collectionName,
			documents[i].UUID,
		)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				log.Warnf(
					"DocumentAnnotateTask document %s not found. Was it deleted?",
					documents[i].UUID,
				)
				continue
			}
			return fmt.Errorf("DocumentAnnotateTask get entities failed: %w", err)
		}

		content, err := dat.appState.Extractor.Annotate(documents[i].Content, entities)
		if err != nil {
			// Not transient. Park the document instead of retrying the batch.
			log.Errorf(
				"DocumentAnnotateTask annotate document %s failed: %v",
				documents[i].UUID, err,
			)
			stateErr := dat.appState.EntityStore.SetDocumentState(
				ctx,
				collectionName,
				documents[i].UUID,
				models.DocumentStateFailed,
			)
			if stateErr != nil && !errors.Is(stateErr, models.ErrNotFound) {
				return fmt.Errorf("DocumentAnnotateTask set failed state failed: %w", stateErr)
			}
			continue
		}

		err = dat.appState.EntityStore.SetDocumentAnnotation(
			ctx,
			collectionName,
			documents[i].UUID,
			content,
			models.DocumentStateTagged,
			runID,
		)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				log.Warnf(
					"DocumentAnnotateTask document %s not found. Was it deleted?",
					documents[i].UUID,
				)
				continue
			}
			return fmt.Errorf("DocumentAnnotateTask set annotation failed: %w", err)
		}

		annotated = append(annotated, models.DocumentTask{UUID: documents[i].UUID})
	}

	if len(annotated) > 0 {
		metadata := map[string]string{
			"collection_name": collectionName,
			"run_id":          runID,
		}
		if dat.appState.Config.Extract.TokenCount.Enabled {
			err = dat.appState.TaskPublisher.Publish(
				models.DocumentTokenCountTopic,
				metadata,
				annotated,
			)
			if err != nil {
				return fmt.Errorf("DocumentAnnotateTask publish token count task failed: %w", err)
			}
		}
		if dat.appState.Config.Callback.URL != "" {
			err = dat.appState.TaskPublisher.Publish(
				models.DocumentCallbackTopic,
				metadata,
				annotated,
			)
			if err != nil {
				return fmt.Errorf("DocumentAnnotateTask publish callback task failed: %w", err)
			}
		}
	}

	msg.Ack()

	return nil
}

func (dat *DocumentAnnotateTask) HandleError(err error) {
	log.Errorf("DocumentAnnotateTask failed: %v", err)
}
