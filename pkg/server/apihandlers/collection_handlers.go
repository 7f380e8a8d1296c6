package apihandlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/getentag/entag/pkg/server/handlertools"

	"github.com/go-playground/validator/v10"

	"github.com/getentag/entag/pkg/models"
	"github.com/go-chi/chi/v5"
)

const OKResponse = "OK"

var validate = validator.New()

// CreateCollectionHandler godoc
//
//	@Summary		Creates a new Collection
//	@Description	If a collection with the same name already exists, it is undeleted and updated.
//	@Tags			collection
//	@Accept			json
//	@Produce		json
//	@Param			collectionName	path		string							true	"Name of the Collection"
//	@Param			collection		body		models.CreateCollectionRequest	true	"Collection"
//	@Success		200				{object}	string							"OK"
//	@Failure		400				{object}	APIError						"Bad Request"
//	@Failure		401				{object}	APIError						"Unauthorized"
//	@Failure		500				{object}	APIError						"Internal Server Error"
//
//	@Security		Bearer
//
//	@Router			/api/v1/collection/{collectionName} [post]
func CreateCollectionHandler(appState *models.AppState) http.HandlerFunc {
	store := appState.EntityStore
	return func(w http.ResponseWriter, r *http.Request) {
		collectionName := strings.ToLower(chi.URLParam(r, "collectionName"))
		if collectionName == "" {
			handlertools.RenderError(
				w,
				errors.New("collectionName is required"),
				http.StatusBadRequest,
			)
			return
		}

		var collectionRequest models.CreateCollectionRequest
		if err := json.NewDecoder(r.Body).Decode(&collectionRequest); err != nil {
			handlertools.RenderError(w, err, http.StatusBadRequest)
			return
		}

		// The URL is authoritative for the collection name.
		collectionRequest.Name = collectionName

		if err := validate.Struct(collectionRequest); err != nil {
			handlertools.RenderError(w, err, http.StatusBadRequest)
			return
		}

		_, err := store.CreateCollection(r.Context(), &collectionRequest)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				handlertools.RenderError(w, err, http.StatusNotFound)
				return
			}
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, err = w.Write([]byte(OKResponse))
		if err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// UpdateCollectionHandler godoc
//
//	@Summary	Updates a Collection's description and merges metadata
//	@Tags		collection
//	@Accept		json
//	@Produce	json
//	@Param		collectionName	path		string							true	"Name of the Collection"
//	@Param		collection		body		models.UpdateCollectionRequest	true	"Collection"
//	@Success	200				{object}	models.Collection				"OK"
//	@Failure	400				{object}	APIError						"Bad Request"
//	@Failure	401				{object}	APIError						"Unauthorized"
//	@Failure	404				{object}	APIError						"Not Found"
//	@Failure	500				{object}	APIError						"Internal Server Error"
//
//	@Security	Bearer
//
//	@Router		/api/v1/collection/{collectionName} [patch]
func UpdateCollectionHandler(appState *models.AppState) http.HandlerFunc {
	store := appState.EntityStore
	return func(w http.ResponseWriter, r *http.Request) {
		collectionName := strings.ToLower(chi.URLParam(r, "collectionName"))
		if collectionName == "" {
			handlertools.RenderError(
				w,
				errors.New("collectionName is required"),
				http.StatusBadRequest,
			)
			return
		}

		var collectionRequest models.UpdateCollectionRequest
		if err := json.NewDecoder(r.Body).Decode(&collectionRequest); err != nil {
			handlertools.RenderError(w, err, http.StatusBadRequest)
			return
		}

		if err := validate.Struct(collectionRequest); err != nil {
			handlertools.RenderError(w, err, http.StatusBadRequest)
			return
		}

		collection, err := store.UpdateCollection(r.Context(), collectionName, &collectionRequest)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				handlertools.RenderError(w, err, http.StatusNotFound)
				return
			}
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}

		if err := handlertools.EncodeJSON(w, collection); err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// GetCollectionListHandler godoc
//
//	@Summary		Gets a list of Collections
//	@Description	Returns a list of all Collections with document and entity counts.
//	@Tags			collection
//	@Accept			json
//	@Produce		json
//	@Success		200	{array}		[]models.Collection	"OK"
//	@Failure		401	{object}	APIError			"Unauthorized"
//	@Failure		500	{object}	APIError			"Internal Server Error"
//
//	@Security		Bearer
//
//	@Router			/api/v1/collection [get]
func GetCollectionListHandler(appState *models.AppState) http.HandlerFunc {
	store := appState.EntityStore
	return func(w http.ResponseWriter, r *http.Request) {
		collections, err := store.ListCollections(r.Context())
		if err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}

		if err := handlertools.EncodeJSON(w, collections); err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// GetCollectionHandler godoc
//
//	@Summary		Gets a Collection
//	@Description	Returns a Collection by name, with document and entity counts.
//	@Tags			collection
//	@Accept			json
//	@Produce		json
//	@Param			collectionName	path		string				true	"Name of the Collection"
//	@Success		200				{object}	models.Collection	"OK"
//	@Failure		400				{object}	APIError			"Bad Request"
//	@Failure		401				{object}	APIError			"Unauthorized"
//	@Failure		404				{object}	APIError			"Not Found"
//	@Failure		500				{object}	APIError			"Internal Server Error"
//
//	@Security		Bearer
//
//	@Router			/api/v1/collection/{collectionName} [get]
func GetCollectionHandler(appState *models.AppState) http.HandlerFunc {
	store := appState.EntityStore
	return func(w http.ResponseWriter, r *http.Request) {
		collectionName := strings.ToLower(chi.URLParam(r, "collectionName"))
		if collectionName == "" {
			handlertools.RenderError(
				w,
				errors.New("collectionName is required"),
				http.StatusBadRequest,
			)
			return
		}

		collection, err := store.GetCollection(r.Context(), collectionName)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				handlertools.RenderError(w, err, http.StatusNotFound)
				return
			}
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}

		if err := handlertools.EncodeJSON(w, collection); err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// DeleteCollectionHandler godoc
//
//	@Summary		Deletes a Collection
//	@Description	Deletes a Collection by name, along with its documents, entities and mentions.
//	@Tags			collection
//	@Accept			json
//	@Produce		json
//	@Param			collectionName	path		string		true	"Name of the Collection"
//	@Success		200				{object}	string		"OK"
//	@Failure		400				{object}	APIError	"Bad Request"
//	@Failure		401				{object}	APIError	"Unauthorized"
//	@Failure		404				{object}	APIError	"Not Found"
//	@Failure		500				{object}	APIError	"Internal Server Error"
//
//	@Security		Bearer
//
//	@Router			/api/v1/collection/{collectionName} [delete]
func DeleteCollectionHandler(appState *models.AppState) http.HandlerFunc {
	store := appState.EntityStore
	return func(w http.ResponseWriter, r *http.Request) {
		collectionName := strings.ToLower(chi.URLParam(r, "collectionName"))
		if collectionName == "" {
			handlertools.RenderError(
				w,
				errors.New("collectionName is required"),
				http.StatusBadRequest,
			)
			return
		}
		err := store.DeleteCollection(r.Context(), collectionName)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				handlertools.RenderError(w, err, http.StatusNotFound)
				return
			}
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, err = w.Write([]byte(OKResponse))
		if err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}
