package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"

	"github.com/getentag/entag/internal"
	"github.com/getentag/entag/pkg/auth"
	"github.com/getentag/entag/pkg/server/apihandlers"

	httpLogger "github.com/chi-middleware/logrus-logger"
	"github.com/getentag/entag/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

var log = internal.GetLogger()

const ReadHeaderTimeout = 5 * time.Second

// ServerContextTimeout bounds request handling. Long-running work belongs on
// the task queue, not in a handler.
const ServerContextTimeout = 30 * time.Second

// Create creates a new HTTP server with the given app state
func Create(appState *models.AppState) *http.Server {
	router := setupRouter(appState)
	return &http.Server{
		Addr: fmt.Sprintf(
			"%s:%d",
			appState.Config.Server.Host,
			appState.Config.Server.Port,
		),
		Handler:           router,
		ReadHeaderTimeout: ReadHeaderTimeout,
	}
}

// @title						Entag REST API
// @version					0.x
// @license.name				Apache 2.0
// @license.url				http://www.apache.org/licenses/LICENSE-2.0.html
// @BasePath					/api/v1
// @schemes					http https
// @securityDefinitions.apikey	Bearer
// @in							header
// @name						Authorization
// @description				Type "Bearer" followed by a space and JWT token.
func setupRouter(appState *models.AppState) *chi.Mux {
	router := chi.NewRouter()
	router.Use(httpLogger.Logger("router", log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(SendVersion)
	router.Use(middleware.Heartbeat("/healthz"))
	router.Use(middleware.Timeout(ServerContextTimeout))

	if appState.Config.Server.MaxRequestSize > 0 {
		router.Use(middleware.RequestSize(appState.Config.Server.MaxRequestSize))
	}

	if appState.Config.Auth.Required {
		log.Info("JWT authentication required")
		router.Use(auth.JWTVerifier(appState.Config))
		router.Use(jwtauth.Authenticator)
	}

	router.Route("/api/v1", func(r chi.Router) {
		// Synchronous tagging preview. Nothing is persisted.
		r.Post("/tag", apihandlers.TagPreviewHandler(appState))

		// Collection-related routes
		r.Get("/collection", apihandlers.GetCollectionListHandler(appState))
		r.Route("/collection/{collectionName}", func(r chi.Router) {
			r.Post("/", apihandlers.CreateCollectionHandler(appState))
			r.Get("/", apihandlers.GetCollectionHandler(appState))
			r.Delete("/", apihandlers.DeleteCollectionHandler(appState))
			r.Patch("/", apihandlers.UpdateCollectionHandler(appState))

			// Retag runs re-extract every document in the collection
			r.Post("/retag", apihandlers.RetagCollectionHandler(appState))

			// Document-related routes
			r.Route("/document", func(r chi.Router) {
				r.Post("/", apihandlers.CreateDocumentsHandler(appState))
				r.Get("/", apihandlers.GetDocumentListHandler(appState))
				// Single document routes (by UUID)
				r.Route("/{documentUUID}", func(r chi.Router) {
					r.Get("/", apihandlers.GetDocumentHandler(appState))
					r.Delete("/", apihandlers.DeleteDocumentHandler(appState))
				})
			})

			// Entity-related routes
			r.Route("/entity", func(r chi.Router) {
				r.Get("/", apihandlers.GetEntityListHandler(appState))
				r.Get("/{tagID}", apihandlers.GetEntityHandler(appState))
			})
		})
	})

	return router
}
