package postgres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/uptrace/bun/extra/bundebug"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dbfixture"
	"gopkg.in/yaml.v3"

	"github.com/getentag/entag/pkg/extract"
	"github.com/getentag/entag/pkg/models"
)

type Row interface {
	CollectionSchema | DocumentSchema | EntitySchema | MentionSchema
}

type FixtureModel[T Row] struct {
	Model string `yaml:"model"`
	Rows  []T    `yaml:"rows"`
}

type Fixtures[T Row] []FixtureModel[T]

func generateTimeLastNDays(nDays int) time.Time {
	now := time.Now()
	windowStart := now.Add(time.Duration(-nDays) * 24 * time.Hour)
	return gofakeit.DateRange(windowStart, now)
}

var fixtureEntityTypes = []string{"location", "number", "measurement", "range"}

func fixtureNormalized(entityType string) string {
	switch entityType {
	case "location":
		return gofakeit.City()
	case "number":
		return fmt.Sprintf("%d", gofakeit.Number(1, 5000))
	case "measurement":
		return fmt.Sprintf("%d in", gofakeit.Number(1, 120))
	default:
		lo := gofakeit.Number(1, 50)
		return fmt.Sprintf("%d-%d in", lo, lo+gofakeit.Number(1, 50))
	}
}

// GenerateFixtureData generates fixtureCount collections with documents,
// entities and mentions, and writes them to YAML fixture files.
func GenerateFixtureData(fixtureCount int, outputDir string) {
	fakerGlobal := gofakeit.NewUnlocked(0)
	gofakeit.SetGlobalFaker(fakerGlobal)

	collections := make([]CollectionSchema, fixtureCount)
	var documents []DocumentSchema
	var entities []EntitySchema
	var mentions []MentionSchema

	for i := 0; i < fixtureCount; i++ {
		dateCreated := generateTimeLastNDays(14)
		collections[i] = CollectionSchema{
			UUID:        uuid.New(),
			CreatedAt:   dateCreated,
			UpdatedAt:   dateCreated,
			Name:        strings.ToLower(gofakeit.Color() + gofakeit.AchAccount()),
			Description: gofakeit.BookTitle(),
			Metadata:    map[string]interface{}{"key": gofakeit.Word()},
		}

		collectionEntities := make([]EntitySchema, gofakeit.Number(3, 10))
		for j := range collectionEntities {
			entityType := fixtureEntityTypes[j%len(fixtureEntityTypes)]
			normalized := fixtureNormalized(entityType)
			collectionEntities[j] = EntitySchema{
				UUID:           uuid.New(),
				CreatedAt:      dateCreated,
				UpdatedAt:      dateCreated,
				CollectionUUID: collections[i].UUID,
				TagID:          extract.TagID(entityType, normalized),
				Type:           entityType,
				Normalized:     normalized,
			}
		}

		documentCount := gofakeit.Number(5, 20)
		for j := 0; j < documentCount; j++ {
			dateCreated := generateTimeLastNDays(14)
			content := gofakeit.Paragraph(2, 4, gofakeit.Number(5, 15), "\n\n")
			document := DocumentSchema{
				UUID:           uuid.New(),
				CreatedAt:      dateCreated,
				UpdatedAt:      dateCreated,
				CollectionUUID: collections[i].UUID,
				DocumentID:     gofakeit.Adjective() + gofakeit.Color() + gofakeit.Animal(),
				Content:        content,
				State:          models.DocumentStatePending,
				Metadata:       map[string]interface{}{"key": gofakeit.Word()},
			}

			// most documents are tagged; their mentions point at words that
			// actually occur in the content so spans are valid
			if gofakeit.Number(0, 9) > 0 {
				document.State = models.DocumentStateTagged
				document.AnnotatedContent = content
				document.LastRunID = gofakeit.UUID()

				words := strings.Fields(content)
				mentionCount := gofakeit.Number(1, 3)
				for k := 0; k < mentionCount; k++ {
					word := words[gofakeit.Number(0, len(words)-1)]
					start := strings.Index(content, word)
					entity := &collectionEntities[gofakeit.Number(0, len(collectionEntities)-1)]
					mentions = append(mentions, MentionSchema{
						UUID:           uuid.New(),
						CreatedAt:      dateCreated,
						UpdatedAt:      dateCreated,
						EntityUUID:     entity.UUID,
						DocumentUUID:   document.UUID,
						CollectionUUID: collections[i].UUID,
						Text:           word,
						SpanStart:      start,
						SpanEnd:        start + len(word),
						Source:         models.MatchSourcePattern,
					})
					entity.MentionCount++
				}
			}

			documents = append(documents, document)
		}

		entities = append(entities, collectionEntities...)
	}

	collectionFixture := Fixtures[CollectionSchema]{
		{
			Model: "CollectionSchema",
			Rows:  collections,
		},
	}

	documentFixture := Fixtures[DocumentSchema]{
		{
			Model: "DocumentSchema",
			Rows:  documents,
		},
	}

	entityFixture := Fixtures[EntitySchema]{
		{
			Model: "EntitySchema",
			Rows:  entities,
		},
	}

	mentionFixture := Fixtures[MentionSchema]{
		{
			Model: "MentionSchema",
			Rows:  mentions,
		},
	}

	if outputDir == "" {
		outputDir = "./"
	} else {
		// Create output directory if it doesn't exist
		if _, err := os.Stat(outputDir); os.IsNotExist(err) {
			err = os.Mkdir(outputDir, 0755)
			if err != nil {
				fmt.Printf("unable to create %s: %v", outputDir, err)
				return
			}
		}
	}

	// Write fixtures to YAML files
	writeFixtureToYAML(collectionFixture, outputDir, "collection_fixtures.yaml")
	writeFixtureToYAML(documentFixture, outputDir, "document_fixtures.yaml")
	writeFixtureToYAML(entityFixture, outputDir, "entity_fixtures.yaml")
	writeFixtureToYAML(mentionFixture, outputDir, "mention_fixtures.yaml")
}

func writeFixtureToYAML[T Row](fixtures Fixtures[T], outputDir, filename string) {
	// Marshal the fixture into YAML
	data, err := yaml.Marshal(&fixtures)
	if err != nil {
		fmt.Printf("error: %v", err)
		return
	}

	// Write the YAML data to a file
	file, err := os.Create(filepath.Join(outputDir, filename))
	if err != nil {
		fmt.Printf("error: %v", err)
		return
	}
	defer func(file *os.File) {
		err := file.Close()
		if err != nil {
			fmt.Printf("error: %v", err)
			return
		}
	}(file)

	_, err = file.Write(data)
	if err != nil {
		fmt.Printf("error: %v", err)
		return
	}

	fmt.Printf("Fixtures generated successfully in %s!\n", filename)
}

// LoadFixtures drops the public schema and loads the YAML fixture files in
// fixturePath into a fresh schema.
func LoadFixtures(
	ctx context.Context,
	db *bun.DB,
	fixturePath string,
) error {
	db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))

	dropSchemaQuery := `DROP SCHEMA public CASCADE;
CREATE SCHEMA public;
GRANT ALL ON SCHEMA public TO postgres;
GRANT ALL ON SCHEMA public TO public;`

	_, err := db.ExecContext(ctx, dropSchemaQuery)
	if err != nil {
		return fmt.Errorf("failed to drop schema: %w", err)
	}

	err = CreateSchema(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	db.RegisterModel(
		(*CollectionSchema)(nil),
		(*DocumentSchema)(nil),
		(*EntitySchema)(nil),
		(*MentionSchema)(nil),
	)

	fixture := dbfixture.New(db, dbfixture.WithRecreateTables())

	files, err := os.ReadDir(fixturePath)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, file := range files {
		if !file.IsDir() {
			switch filepath.Ext(file.Name()) {
			case ".yaml", ".yml":
				err := fixture.Load(ctx, os.DirFS(fixturePath), file.Name())
				if err != nil {
					return fmt.Errorf("failed to load fixture %s: %w", file.Name(), err)
				}
			}
		}
	}

	return nil
}
