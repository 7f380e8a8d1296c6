package models

import (
	wsql "github.com/ThreeDotsLabs/watermill-sql/v2/pkg/sql"
)

// Queue pairs the SQL-backed subscriber and publisher for one task topic.
type Queue struct {
	Name         string
	Subscriber   *wsql.Subscriber
	ConsumeTopic string
	Publisher    *wsql.Publisher
	PublishTopic string
}
