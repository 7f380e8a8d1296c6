package apihandlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/getentag/entag/pkg/server/handlertools"
	"github.com/getentag/entag/pkg/tasks"

	"github.com/getentag/entag/pkg/models"
	"github.com/go-chi/chi/v5"
)

// GetEntityListHandler godoc
//
//	@Summary		Gets a list of Entities in a Collection
//	@Description	Returns a page of entities filtered by the query parameters. The cursor is the last seen entity row id.
//	@Tags			entity
//	@Accept			json
//	@Produce		json
//	@Param			collectionName	path		string						true	"Name of the Collection"
//	@Param			type			query		string						false	"Filter on the entity type"
//	@Param			q				query		string						false	"Substring match on the normalized value"
//	@Param			min_mentions	query		integer						false	"Drop entities with fewer mentions"
//	@Param			limit			query		integer						false	"Limit the number of returned entities"
//	@Param			cursor			query		integer						false	"Cursor for pagination"
//	@Success		200				{object}	models.EntityListResponse	"OK"
//	@Failure		400				{object}	APIError					"Bad Request"
//	@Failure		401				{object}	APIError					"Unauthorized"
//	@Failure		404				{object}	APIError					"Not Found"
//	@Failure		500				{object}	APIError					"Internal Server Error"
//
//	@Security		Bearer
//
//	@Router			/api/v1/collection/{collectionName}/entity [get]
func GetEntityListHandler(appState *models.AppState) http.HandlerFunc {
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

		minMentions, err := handlertools.IntFromQuery[int](r, "min_mentions")
		if err != nil {
			handlertools.RenderError(w, err, http.StatusBadRequest)
			return
		}
		limit, err := handlertools.IntFromQuery[int](r, "limit")
		if err != nil {
			handlertools.RenderError(w, err, http.StatusBadRequest)
			return
		}
		cursor, err := handlertools.IntFromQuery[int](r, "cursor")
		if err != nil {
			handlertools.RenderError(w, err, http.StatusBadRequest)
			return
		}

		filter := &models.EntityFilter{
			Type:        r.URL.Query().Get("type"),
			Query:       r.URL.Query().Get("q"),
			MinMentions: minMentions,
			Limit:       limit,
			Cursor:      cursor,
		}

		entityList, err := store.ListEntities(r.Context(), collectionName, filter)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				handlertools.RenderError(w, err, http.StatusNotFound)
				return
			}
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}

		if err := handlertools.EncodeJSON(w, entityList); err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// GetEntityHandler godoc
//
//	@Summary		Gets an Entity from a Collection by tag id
//	@Description	Returns the entity with all of its mentions across the collection.
//	@Tags			entity
//	@Accept			json
//	@Produce		json
//	@Param			collectionName	path		string			true	"Name of the Collection"
//	@Param			tagID			path		string			true	"Tag id of the Entity"
//	@Success		200				{object}	models.Entity	"OK"
//	@Failure		400				{object}	APIError		"Bad Request"
//	@Failure		401				{object}	APIError		"Unauthorized"
//	@Failure		404				{object}	APIError		"Not Found"
//	@Failure		500				{object}	APIError		"Internal Server Error"
//
//	@Security		Bearer
//
//	@Router			/api/v1/collection/{collectionName}/entity/{tagID} [get]
func GetEntityHandler(appState *models.AppState) http.HandlerFunc {
	store := appState.EntityStore
	return func(w http.ResponseWriter, r *http.Request) {
		collectionName := strings.ToLower(chi.URLParam(r, "collectionName"))
		tagID := chi.URLParam(r, "tagID")

		if collectionName == "" {
			handlertools.RenderError(
				w,
				errors.New("collectionName is required"),
				http.StatusBadRequest,
			)
			return
		}
		if tagID == "" {
			handlertools.RenderError(
				w,
				errors.New("tagID is required"),
				http.StatusBadRequest,
			)
			return
		}

		entity, err := store.GetEntity(r.Context(), collectionName, tagID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				handlertools.RenderError(w, err, http.StatusNotFound)
				return
			}
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}

		if err := handlertools.EncodeJSON(w, entity); err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// RetagCollectionHandler godoc
//
//	@Summary		Re-extracts every Document in a Collection
//	@Description	Publishes extraction tasks for all documents and returns the run id without waiting for them.
//	@Tags			entity
//	@Accept			json
//	@Produce		json
//	@Param			collectionName	path		string					true	"Name of the Collection"
//	@Success		202				{object}	models.RetagResponse	"Accepted"
//	@Failure		400				{object}	APIError				"Bad Request"
//	@Failure		401				{object}	APIError				"Unauthorized"
//	@Failure		404				{object}	APIError				"Not Found"
//	@Failure		500				{object}	APIError				"Internal Server Error"
//
//	@Security		Bearer
//
//	@Router			/api/v1/collection/{collectionName}/retag [post]
func RetagCollectionHandler(appState *models.AppState) http.HandlerFunc {
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

		retagResponse, err := tasks.NewRetagProcessor(appState).Run(r.Context(), collectionName)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				handlertools.RenderError(w, err, http.StatusNotFound)
				return
			}
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusAccepted)
		if err := handlertools.EncodeJSON(w, retagResponse); err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// TagPreviewHandler godoc
//
//	@Summary		Runs the extraction pipeline over content without persisting anything
//	@Description	Returns the extracted entities and the annotated content for the posted text.
//	@Tags			tag
//	@Accept			json
//	@Produce		json
//	@Param			tagRequest	body		models.TagRequest	true	"Content to tag"
//	@Success		200			{object}	models.TagResponse	"OK"
//	@Failure		400			{object}	APIError			"Bad Request"
//	@Failure		401			{object}	APIError			"Unauthorized"
//	@Failure		500			{object}	APIError			"Internal Server Error"
//
//	@Security		Bearer
//
//	@Router			/api/v1/tag [post]
func TagPreviewHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var tagRequest models.TagRequest
		if err := json.NewDecoder(r.Body).Decode(&tagRequest); err != nil {
			handlertools.RenderError(w, err, http.StatusBadRequest)
			return
		}

		if err := validate.Struct(tagRequest); err != nil {
			handlertools.RenderError(w, err, http.StatusBadRequest)
			return
		}

		result, err := appState.Extractor.Extract(r.Context(), tagRequest.Content)
		if err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}

		annotated, err := appState.Extractor.Annotate(tagRequest.Content, result.Entities)
		if err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}

		tagResponse := models.TagResponse{
			Entities:           result.Entities,
			Annotated:          annotated,
			RawCount:           result.RawCount,
			DroppedOverlaps:    result.DroppedOverlaps,
			ConsolidatedRanges: result.ConsolidatedRanges,
		}

		if err := handlertools.EncodeJSON(w, tagResponse); err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}
