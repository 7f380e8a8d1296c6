package models

import (
	"time"

	"github.com/google/uuid"
)

type Collection struct {
	UUID        uuid.UUID              `json:"uuid"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	// Counts are populated on reads, not stored.
	DocumentCount int `json:"document_count"`
	EntityCount   int `json:"entity_count"`
}

type CreateCollectionRequest struct {
	Name        string                 `json:"name" validate:"required,alphanum,min=3,max=40"`
	Description string                 `json:"description" validate:"omitempty,max=1000"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type UpdateCollectionRequest struct {
	Description string                 `json:"description" validate:"omitempty,max=1000"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}
