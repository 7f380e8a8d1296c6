package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/getentag/entag/internal"
	"github.com/getentag/entag/pkg/models"
)

var log = internal.GetLogger()

type BaseTask struct {
	appState *models.AppState // nolint: unused
}

func (b *BaseTask) Execute(
	ctx context.Context, // nolint: revive
	msg *message.Message, // nolint: revive
) error {
	return nil
}

func (b *BaseTask) HandleError(err error) {
	log.Errorf("Task HandleError error: %s", err)
}

func Initialize(ctx context.Context, appState *models.AppState, router models.TaskRouter) {
	log.Info("Initializing tasks")

	addTask := func(ctx context.Context, taskType models.TaskTopic, enabled bool, newTask func() models.Task) {
		if enabled {
			task := newTask()
			router.AddTask(ctx, string(taskType), taskType, task)
			log.Infof("%s task added to task router", taskType)
		}
	}

	addTask(
		ctx,
		models.DocumentExtractTopic,
		true, // Always enabled
		func() models.Task { return NewDocumentExtractTask(appState) },
	)

	addTask(
		ctx,
		models.DocumentAnnotateTopic,
		true, // Always enabled
		func() models.Task { return NewDocumentAnnotateTask(appState) },
	)

	addTask(
		ctx,
		models.DocumentTokenCountTopic,
		appState.Config.Extract.TokenCount.Enabled,
		func() models.Task { return NewDocumentTokenCountTask(appState) },
	)

	addTask(
		ctx,
		models.DocumentCallbackTopic,
		appState.Config.Callback.URL != "",
		func() models.Task { return NewDocumentCallbackTask(appState) },
	)
}

func documentTaskPayloadToDocuments(
	ctx context.Context,
	appState *models.AppState,
	msg *message.Message,
) ([]models.Document, error) {
	collectionName := msg.Metadata["collection_name"]
	if collectionName == "" {
		return nil, fmt.Errorf("document task missing collection_name metadata: %s", msg.UUID)
	}

	var documentTasks []models.DocumentTask
	err := json.Unmarshal(msg.Payload, &documentTasks)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal document task payload: %w", err)
	}

	uuids := make([]uuid.UUID, len(documentTasks))
	for i, d := range documentTasks {
		uuids[i] = d.UUID
	}

	documents, err := appState.EntityStore.GetDocuments(ctx, collectionName, uuids)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents by uuid: %w", err)
	}

	return documents, err
}
