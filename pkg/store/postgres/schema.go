package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	// database/sql driver for the task queue connection.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/getentag/entag/pkg/store/postgres/migrations"
)

type CollectionSchema struct {
	bun.BaseModel `bun:"table:collection,alias:c" yaml:"-"`

	UUID        uuid.UUID              `bun:",pk,type:uuid,default:gen_random_uuid()" yaml:"uuid,omitempty"`
	ID          int64                  `bun:",autoincrement" yaml:"id,omitempty"` // used as a cursor for pagination
	Name        string                 `bun:",unique,notnull" yaml:"name,omitempty"`
	Description string                 `bun:",nullzero" yaml:"description,omitempty"`
	CreatedAt   time.Time              `bun:"type:timestamptz,nullzero,notnull,default:current_timestamp" yaml:"created_at,omitempty"`
	UpdatedAt   time.Time              `bun:"type:timestamptz,nullzero,notnull,default:current_timestamp" yaml:"updated_at,omitempty"`
	DeletedAt   time.Time              `bun:"type:timestamptz,soft_delete,nullzero" yaml:"deleted_at,omitempty"`
	Metadata    map[string]interface{} `bun:"type:jsonb,nullzero,json_use_number" yaml:"metadata,omitempty"`
	// Counts are populated on reads via subselects, not stored.
	DocumentCount int `bun:"document_count,scanonly" yaml:"-"`
	EntityCount   int `bun:"entity_count,scanonly" yaml:"-"`
}

var _ bun.BeforeAppendModelHook = (*CollectionSchema)(nil)

func (s *CollectionSchema) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.UpdateQuery); ok {
		s.UpdatedAt = time.Now()
	}
	return nil
}

// BeforeCreateTable is a marker method to ensure uniform interface across all table models - used in table creation iterator
func (s *CollectionSchema) BeforeCreateTable(
	_ context.Context,
	_ *bun.CreateTableQuery,
) error {
	return nil
}

type DocumentSchema struct {
	bun.BaseModel `bun:"table:document,alias:d" yaml:"-"`

	UUID uuid.UUID `bun:",pk,type:uuid,default:gen_random_uuid()" yaml:"uuid,omitempty"`
	// ID is used only as a pagination cursor as we can't sort by CreatedAt for documents created simultaneously
	ID               int64                  `bun:",autoincrement" yaml:"id,omitempty"`
	CreatedAt        time.Time              `bun:"type:timestamptz,notnull,default:current_timestamp" yaml:"created_at,omitempty"`
	UpdatedAt        time.Time              `bun:"type:timestamptz,nullzero,default:current_timestamp" yaml:"updated_at,omitempty"`
	DeletedAt        time.Time              `bun:"type:timestamptz,soft_delete,nullzero" yaml:"deleted_at,omitempty"`
	CollectionUUID   uuid.UUID              `bun:"type:uuid,notnull" yaml:"collection_uuid,omitempty"`
	DocumentID       string                 `bun:",nullzero" yaml:"document_id,omitempty"`
	Content          string                 `bun:",notnull" yaml:"content,omitempty"`
	AnnotatedContent string                 `bun:",nullzero" yaml:"annotated_content,omitempty"`
	State            string                 `bun:",notnull,default:'pending'" yaml:"state,omitempty"`
	TokenCount       int                    `bun:",nullzero" yaml:"token_count,omitempty"`
	LastRunID        string                 `bun:",nullzero" yaml:"last_run_id,omitempty"`
	Metadata         map[string]interface{} `bun:"type:jsonb,nullzero,json_use_number" yaml:"metadata,omitempty"`
	Collection       *CollectionSchema      `bun:"rel:belongs-to,join:collection_uuid=uuid,on_delete:cascade" yaml:"-"`
}

var _ bun.BeforeAppendModelHook = (*DocumentSchema)(nil)

func (s *DocumentSchema) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.UpdateQuery); ok {
		s.UpdatedAt = time.Now()
	}
	return nil
}

func (s *DocumentSchema) BeforeCreateTable(
	_ context.Context,
	_ *bun.CreateTableQuery,
) error {
	return nil
}

type EntitySchema struct {
	bun.BaseModel `bun:"table:entity,alias:e" yaml:"-"`

	UUID           uuid.UUID         `bun:",pk,type:uuid,default:gen_random_uuid()" yaml:"uuid,omitempty"`
	ID             int64             `bun:",autoincrement" yaml:"id,omitempty"` // used as a cursor for pagination
	CreatedAt      time.Time         `bun:"type:timestamptz,notnull,default:current_timestamp" yaml:"created_at,omitempty"`
	UpdatedAt      time.Time         `bun:"type:timestamptz,nullzero,default:current_timestamp" yaml:"updated_at,omitempty"`
	DeletedAt      time.Time         `bun:"type:timestamptz,soft_delete,nullzero" yaml:"deleted_at,omitempty"`
	CollectionUUID uuid.UUID         `bun:"type:uuid,notnull,unique:entity_collection_tag_uq" yaml:"collection_uuid,omitempty"`
	TagID          string            `bun:",notnull,unique:entity_collection_tag_uq" yaml:"tag_id,omitempty"`
	Type           string            `bun:",notnull" yaml:"type,omitempty"`
	Normalized     string            `bun:",notnull" yaml:"normalized,omitempty"`
	MentionCount   int               `bun:",notnull,default:0" yaml:"mention_count,omitempty"`
	Collection     *CollectionSchema `bun:"rel:belongs-to,join:collection_uuid=uuid,on_delete:cascade" yaml:"-"`
}

var _ bun.BeforeAppendModelHook = (*EntitySchema)(nil)

func (s *EntitySchema) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.UpdateQuery); ok {
		s.UpdatedAt = time.Now()
	}
	return nil
}

func (s *EntitySchema) BeforeCreateTable(
	_ context.Context,
	_ *bun.CreateTableQuery,
) error {
	return nil
}

type MentionSchema struct {
	bun.BaseModel `bun:"table:mention,alias:mn" yaml:"-"`

	UUID           uuid.UUID       `bun:",pk,type:uuid,default:gen_random_uuid()" yaml:"uuid,omitempty"`
	ID             int64           `bun:",autoincrement" yaml:"id,omitempty"`
	CreatedAt      time.Time       `bun:"type:timestamptz,notnull,default:current_timestamp" yaml:"created_at,omitempty"`
	UpdatedAt      time.Time       `bun:"type:timestamptz,nullzero,default:current_timestamp" yaml:"updated_at,omitempty"`
	DeletedAt      time.Time       `bun:"type:timestamptz,soft_delete,nullzero" yaml:"deleted_at,omitempty"`
	EntityUUID     uuid.UUID       `bun:"type:uuid,notnull" yaml:"entity_uuid,omitempty"`
	DocumentUUID   uuid.UUID       `bun:"type:uuid,notnull" yaml:"document_uuid,omitempty"`
	CollectionUUID uuid.UUID       `bun:"type:uuid,notnull" yaml:"collection_uuid,omitempty"`
	Text           string          `bun:",notnull" yaml:"text,omitempty"`
	SpanStart      int             `bun:",notnull" yaml:"span_start,omitempty"`
	SpanEnd        int             `bun:",notnull" yaml:"span_end,omitempty"`
	Source         string          `bun:",nullzero" yaml:"source,omitempty"`
	Entity         *EntitySchema   `bun:"rel:belongs-to,join:entity_uuid=uuid,on_delete:cascade" yaml:"-"`
	Document       *DocumentSchema `bun:"rel:belongs-to,join:document_uuid=uuid,on_delete:cascade" yaml:"-"`
}

var _ bun.BeforeAppendModelHook = (*MentionSchema)(nil)

func (s *MentionSchema) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.UpdateQuery); ok {
		s.UpdatedAt = time.Now()
	}
	return nil
}

func (s *MentionSchema) BeforeCreateTable(
	_ context.Context,
	_ *bun.CreateTableQuery,
) error {
	return nil
}

var _ bun.AfterCreateTableHook = (*CollectionSchema)(nil)
var _ bun.AfterCreateTableHook = (*DocumentSchema)(nil)
var _ bun.AfterCreateTableHook = (*EntitySchema)(nil)
var _ bun.AfterCreateTableHook = (*MentionSchema)(nil)

func (*CollectionSchema) AfterCreateTable(
	ctx context.Context,
	query *bun.CreateTableQuery,
) error {
	_, err := query.DB().NewCreateIndex().
		Model((*CollectionSchema)(nil)).
		Index("collection_name_idx").
		Column("name").
		IfNotExists().
		Exec(ctx)
	return err
}

func (*DocumentSchema) AfterCreateTable(
	ctx context.Context,
	query *bun.CreateTableQuery,
) error {
	colsToIndex := []string{"collection_uuid", "document_id", "state", "id"}
	for _, col := range colsToIndex {
		_, err := query.DB().NewCreateIndex().
			Model((*DocumentSchema)(nil)).
			Index(fmt.Sprintf("document_%s_idx", col)).
			Column(col).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

func (*EntitySchema) AfterCreateTable(
	ctx context.Context,
	query *bun.CreateTableQuery,
) error {
	colsToIndex := []string{"collection_uuid", "tag_id", "type", "id"}
	for _, col := range colsToIndex {
		_, err := query.DB().NewCreateIndex().
			Model((*EntitySchema)(nil)).
			Index(fmt.Sprintf("entity_%s_idx", col)).
			Column(col).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

func (*MentionSchema) AfterCreateTable(
	ctx context.Context,
	query *bun.CreateTableQuery,
) error {
	colsToIndex := []string{"entity_uuid", "document_uuid", "collection_uuid"}
	for _, col := range colsToIndex {
		_, err := query.DB().NewCreateIndex().
			Model((*MentionSchema)(nil)).
			Index(fmt.Sprintf("mention_%s_idx", col)).
			Column(col).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

// tableList holds the most dependent tables first. Iterated in reverse for
// table creation so referenced tables exist before their dependents, and in
// order for deletes.
var tableList = []bun.BeforeCreateTableHook{
	&MentionSchema{},
	&EntitySchema{},
	&DocumentSchema{},
	&CollectionSchema{},
}

// CreateSchema creates the db schema if it does not exist.
func CreateSchema(
	ctx context.Context,
	db *bun.DB,
) error {
	// iterate through tableList in reverse order to create referenced tables first
	for i := len(tableList) - 1; i >= 0; i-- {
		schema := tableList[i]
		_, err := db.NewCreateTable().
			Model(schema).
			IfNotExists().
			WithForeignKeys().
			Exec(ctx)
		if err != nil {
			// bun still trying to create indexes despite IfNotExists flag
			if strings.Contains(err.Error(), "already exists") {
				continue
			}
			return fmt.Errorf("error creating table for schema %T: %w", schema, err)
		}
	}

	// apply migrations
	if err := migrations.Migrate(ctx, db); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// NewPostgresConn creates a new bun.DB connection to the Postgres instance
// at the given DSN.
func NewPostgresConn(dsn string) *bun.DB {
	maxOpenConns := 4 * runtime.GOMAXPROCS(0)

	// Read timeout is generous so retag runs over large collections don't
	// drop the connection mid-query.
	sqldb := sql.OpenDB(
		pgdriver.NewConnector(
			pgdriver.WithDSN(dsn),
			pgdriver.WithReadTimeout(10*time.Minute),
		),
	)
	sqldb.SetMaxOpenConns(maxOpenConns)
	sqldb.SetMaxIdleConns(maxOpenConns)

	return bun.NewDB(sqldb, pgdialect.New())
}

// NewPostgresConnForQueue creates a database/sql connection for the task
// queue. This must not share the bun connection pool as bun runs at an
// isolation level that is incompatible with watermill's SQLQueueSubscriber.
func NewPostgresConnForQueue(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	return db, nil
}
