package models

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

type TaskTopic string

const (
	DocumentExtractTopic    TaskTopic = "document_extract"
	DocumentAnnotateTopic   TaskTopic = "document_annotate"
	DocumentTokenCountTopic TaskTopic = "document_token_count"
	DocumentCallbackTopic   TaskTopic = "document_callback"
)

type Task interface {
	Execute(ctx context.Context, event *message.Message) error
	HandleError(err error)
}

type TaskRouter interface {
	Run(ctx context.Context) error
	AddTask(ctx context.Context, name string, taskType TaskTopic, task Task)
	RunHandlers(ctx context.Context) error
	IsRunning() bool
	Close() error
}

type TaskPublisher interface {
	Publish(taskType TaskTopic, metadata map[string]string, payload any) error
	PublishDocuments(metadata map[string]string, payload []DocumentTask) error
	Close() error
}

// DocumentTask is the payload for all document-scoped topics. The owning
// collection travels in message metadata.
type DocumentTask struct {
	UUID uuid.UUID `json:"uuid"`
}

// RetagResponse reports an accepted bulk re-extraction run.
type RetagResponse struct {
	RunID         string `json:"run_id"`
	DocumentCount int    `json:"document_count"`
}
