package models

import (
	"github.com/uptrace/bun"

	"github.com/getentag/entag/config"
)

// AppState is a struct that holds the state of the application
// Use cmd.NewAppState to create a new instance
type AppState struct {
	EntityStore   EntityStore[*bun.DB]
	Extractor     Extractor
	TaskRouter    TaskRouter
	TaskPublisher TaskPublisher
	Config        *config.Config
}
