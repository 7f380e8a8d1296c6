package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/getentag/entag/pkg/models"
)

const CallbackRetryMax = 3
const DefaultCallbackTimeout = 10 // seconds

var _ models.Task = &DocumentCallbackTask{}

func NewDocumentCallbackTask(appState *models.AppState) *DocumentCallbackTask {
	timeout := DefaultCallbackTimeout
	if appState.Config.Callback.Timeout > 0 {
		timeout = appState.Config.Callback.Timeout
	}
	return &DocumentCallbackTask{
		BaseTask: BaseTask{
			appState: appState,
		},
		client: NewRetryableHTTPClient(CallbackRetryMax, time.Duration(timeout)*time.Second),
	}
}

// DocumentCallbackTask posts tagged documents to the configured endpoint.
// The batch is delivered in one request carrying the full documents, so
// consumers get annotated content without a round trip. Delivery is
// retried on transport and 5xx failures.
type DocumentCallbackTask struct {
	BaseTask
	client *http.Client
}

// CallbackPayload is the body POSTed to the callback URL.
type CallbackPayload struct {
	CollectionName string            `json:"collection_name"`
	RunID          string            `json:"run_id,omitempty"`
	Documents      []models.Document `json:"documents"`
}

func (dct *DocumentCallbackTask) Execute(
	ctx context.Context,
	msg *message.Message,
) error {
	ctx, done := context.WithTimeout(ctx, TaskTimeout*time.Second)
	defer done()

	collectionName := msg.Metadata.Get("collection_name")
	if collectionName == "" {
		return errors.New("DocumentCallbackTask collection_name is empty")
	}

	log.Debugf("DocumentCallbackTask called for collection %s", collectionName)

	documents, err := documentTaskPayloadToDocuments(ctx, dct.appState, msg)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			log.Warnf("DocumentCallbackTask collection %s not found. Was it deleted?", collectionName)
			msg.Ack()
			return nil
		}
		return fmt.Errorf("DocumentCallbackTask get documents failed: %w", err)
	}

	if len(documents) == 0 {
		log.Warnf("DocumentCallbackTask no documents found. Were the records deleted?")
		msg.Ack()
		return nil
	}

	payload := CallbackPayload{
		CollectionName: collectionName,
		RunID:          msg.Metadata.Get("run_id"),
		Documents:      documents,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("DocumentCallbackTask marshal payload failed: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		dct.appState.Config.Callback.URL,
		bytes.NewReader(body),
	)
	if err != nil {
		return fmt.Errorf("DocumentCallbackTask create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if dct.appState.Config.Callback.APIKey != "" {
		req.Header.Set("X-Api-Key", dct.appState.Config.Callback.APIKey)
	}

	resp, err := dct.client.Do(req)
	if err != nil {
		return fmt.Errorf("DocumentCallbackTask post failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("DocumentCallbackTask callback returned status %d", resp.StatusCode)
	}

	msg.Ack()

	return nil
}

func (dct *DocumentCallbackTask) HandleError(err error) {
	log.Errorf("DocumentCallbackTask failed: %v", err)
}
