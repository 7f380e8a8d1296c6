package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getentag/entag/pkg/auth"

	"github.com/dustin/go-humanize"
	"github.com/oiime/logrusbun"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/getentag/entag/config"
	"github.com/getentag/entag/pkg/extract"
	"github.com/getentag/entag/pkg/lexicon"
	"github.com/getentag/entag/pkg/models"
	"github.com/getentag/entag/pkg/server"
	"github.com/getentag/entag/pkg/store/postgres"
	"github.com/getentag/entag/pkg/tasks"
)

const (
	ErrEntityStoreTypeNotSet = "store.type must be set"
	ErrPostgresDSNNotSet     = "store.postgres.dsn must be set"
	EntityStoreTypePostgres  = "postgres"
)

// run is the entrypoint for the entag server
func run() {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		log.Fatalf("Error configuring entag: %s", err)
	}

	handleCLIOptions(cfg)

	log.Infof("Starting entag server version %s", config.VersionString)

	config.SetLogLevel(cfg)
	appState := NewAppState(cfg)

	srv := server.Create(appState)

	log.Infof("Listening on: %s", srv.Addr)
	err = srv.ListenAndServe()
	if err != nil {
		log.Fatal(err)
	}
}

// NewAppState creates an AppState struct from the config file / ENV, builds the
// extraction pipeline, initializes the entity store and starts the task router
func NewAppState(cfg *config.Config) *models.AppState {
	ctx := context.Background()

	appState := &models.AppState{
		Config: cfg,
	}

	// The task router consumes as soon as it starts, so the extractor and
	// store must be in place first.
	initializeExtractor(appState)
	initializeEntityStore(appState)
	initializeTaskRouter(ctx, appState)

	setupSignalHandler(appState)
	setupPurgeProcessor(ctx, appState)

	return appState
}

// handleCLIOptions handles CLI options that don't require the server to run
func handleCLIOptions(cfg *config.Config) {
	if showVersion {
		fmt.Println(config.VersionString)
		os.Exit(0)
	}
	if generateKey {
		fmt.Println(auth.GenerateJWT(cfg))
		os.Exit(0)
	}
}

// initializeExtractor loads the lexicon library and assembles the extraction
// pipeline based on the config file / ENV
func initializeExtractor(appState *models.AppState) {
	library, err := lexicon.LoadDefault()
	if err != nil {
		log.Fatalf("Failed to load embedded lexicons: %v", err)
	}

	if paths := appState.Config.Lexicon.Paths; len(paths) > 0 {
		if err := library.LoadPaths(paths); err != nil {
			log.Fatalf("Failed to load lexicon paths: %v", err)
		}
	}

	if url := appState.Config.Lexicon.URL; url != "" {
		pack, err := lexicon.NewFetcher().Fetch(context.Background(), url)
		if err != nil {
			log.Fatalf("Failed to fetch lexicon pack from %s: %v", url, err)
		}
		if err := library.AddPack(pack); err != nil {
			log.Fatalf("Failed to add fetched lexicon pack: %v", err)
		}
	}

	extractor, err := extract.NewPipeline(appState.Config, library)
	if err != nil {
		log.Fatal(err)
	}
	appState.Extractor = extractor

	log.Infof(
		"Extraction pipeline ready. %s lexicon entries loaded",
		humanize.Comma(int64(library.EntryCount())),
	)
}

// initializeEntityStore initializes the entity store based on the config file / ENV
func initializeEntityStore(appState *models.AppState) {
	if appState.Config.Store.Type == "" {
		log.Fatal(ErrEntityStoreTypeNotSet)
	}

	switch appState.Config.Store.Type {
	case EntityStoreTypePostgres:
		if appState.Config.Store.Postgres.DSN == "" {
			log.Fatal(ErrPostgresDSNNotSet)
		}
		db := postgres.NewPostgresConn(appState.Config.Store.Postgres.DSN)
		if appState.Config.Log.Level == "debug" {
			pgDebugLogging(db)
		}
		entityStore, err := postgres.NewPostgresEntityStore(appState, db)
		if err != nil {
			log.Fatal(err)
		}
		appState.EntityStore = entityStore
	default:
		log.Fatal(
			fmt.Sprintf(
				"store.type (%s) is not supported",
				appState.Config.Store.Type,
			),
		)
	}

	log.Info("Using entity store: ", appState.Config.Store.Type)
}

// initializeTaskRouter starts the task router on its own database connection
func initializeTaskRouter(ctx context.Context, appState *models.AppState) {
	db, err := postgres.NewPostgresConnForQueue(appState.Config.Store.Postgres.DSN)
	if err != nil {
		log.Fatalf("Failed to create task queue connection: %v", err)
	}
	tasks.RunTaskRouter(ctx, appState, db)
}

func pgDebugLogging(db *bun.DB) {
	db.AddQueryHook(logrusbun.NewQueryHook(logrusbun.QueryHookOptions{
		LogSlow:         time.Second,
		Logger:          log,
		QueryLevel:      logrus.DebugLevel,
		ErrorLevel:      logrus.ErrorLevel,
		SlowLevel:       logrus.WarnLevel,
		MessageTemplate: "{{.Operation}}[{{.Duration}}]: {{.Query}}",
		ErrorTemplate:   "{{.Operation}}[{{.Duration}}]: {{.Query}}: {{.Error}}",
	}))
}

// setupSignalHandler sets up a signal handler to close the task router and the
// entity store connection on termination
func setupSignalHandler(appState *models.AppState) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalCh
		if appState.TaskRouter != nil {
			if err := appState.TaskRouter.Close(); err != nil {
				log.Errorf("Error closing task router: %v", err)
			}
		}
		if err := appState.EntityStore.Close(); err != nil {
			log.Errorf("Error closing entity store connection: %v", err)
		}
		os.Exit(0)
	}()
}

// setupPurgeProcessor sets up a go routine to purge deleted records from the
// entity store at a regular interval. It's cancellable via the passed context.
// If Config.Data.PurgeEvery is 0, this function does nothing.
func setupPurgeProcessor(ctx context.Context, appState *models.AppState) {
	interval := time.Duration(appState.Config.Data.PurgeEvery) * time.Minute
	if interval == 0 {
		log.Debug("purge delete processor disabled")
		return
	}

	log.Infof("Starting purge delete processor. Purging every %v", interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				log.Info("Stopping purge delete processor")
				return
			default:
				err := appState.EntityStore.PurgeDeleted(ctx)
				if err != nil {
					log.Errorf("error purging deleted records: %v", err)
				}
			}
			time.Sleep(interval)
		}
	}()
}
