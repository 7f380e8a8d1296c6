package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkoukk/tiktoken-go"

	"github.com/getentag/entag/pkg/models"
)

const DefaultTokenEncoding = "cl100k_base"

var _ models.Task = &DocumentTokenCountTask{}

func NewDocumentTokenCountTask(appState *models.AppState) *DocumentTokenCountTask {
	encodingName := appState.Config.Extract.TokenCount.Encoding
	if encodingName == "" {
		encodingName = DefaultTokenEncoding
	}
	tkm, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		log.Fatalf("Failed to get token encoding %s: %v", encodingName, err)
	}
	return &DocumentTokenCountTask{
		BaseTask: BaseTask{
			appState: appState,
		},
		tkm: tkm,
	}
}

// DocumentTokenCountTask stores token counts for a batch of documents.
// Counts run over annotated content when present so tag overhead shows up
// in the stored count.
type DocumentTokenCountTask struct {
	BaseTask
	tkm *tiktoken.Tiktoken
}

func (dtt *DocumentTokenCountTask) Execute(
	ctx context.Context,
	msg *message.Message,
) error {
	ctx, done := context.WithTimeout(ctx, TaskTimeout*time.Second)
	defer done()

	collectionName := msg.Metadata.Get("collection_name")
	if collectionName == "" {
		return errors.New("DocumentTokenCountTask collection_name is empty")
	}

	log.Debugf("DocumentTokenCountTask called for collection %s", collectionName)

	documents, err := documentTaskPayloadToDocuments(ctx, dtt.appState, msg)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			log.Warnf("DocumentTokenCountTask collection %s not found. Was it deleted?", collectionName)
			msg.Ack()
			return nil
		}
		return fmt.Errorf("DocumentTokenCountTask get documents failed: %w", err)
	}

	if len(documents) == 0 {
		log.Warnf("DocumentTokenCountTask no documents found. Were the records deleted?")
		msg.Ack()
		return nil
	}

	for i := range documents {
		content := documents[i].AnnotatedContent
		if content == "" {
			content = documents[i].Content
		}
		tokenCount := len(dtt.tkm.Encode(content, nil, nil))

		err = dtt.appState.EntityStore.SetDocumentTokenCount(
			ctx,
			collectionName,
			documents[i].UUID,
			tokenCount,
		)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				log.Warnf(
					"DocumentTokenCountTask document %s not found. Was it deleted?",
					documents[i].UUID,
				)
				continue
			}
			return fmt.Errorf("DocumentTokenCountTask set token count failed: %w", err)
		}
	}

	msg.Ack()

	return nil
}

func (dtt *DocumentTokenCountTask) HandleError(err error) {
	log.Errorf("DocumentTokenCountTask failed: %v", err)
}
