package apihandlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/getentag/entag/pkg/server/handlertools"

	"github.com/google/uuid"

	"github.com/getentag/entag/pkg/models"
	"github.com/go-chi/chi/v5"
)

// DefaultDocumentPageSize is used when a document listing does not carry a
// page_size query parameter.
const DefaultDocumentPageSize = 100

// CreateDocumentsHandler godoc
//
//	@Summary		Creates a batch of Documents in a Collection
//	@Description	Stores the documents in state pending and publishes an extraction task for the batch.
//	@Tags			document
//	@Accept			json
//	@Produce		json
//	@Param			collectionName	path		string							true	"Name of the Collection"
//	@Param			documents		body		[]models.CreateDocumentRequest	true	"Array of documents to be created"
//	@Success		200				{array}		uuid.UUID						"OK"
//	@Failure		400				{object}	APIError						"Bad Request"
//	@Failure		401				{object}	APIError						"Unauthorized"
//	@Failure		404				{object}	APIError						"Not Found"
//	@Failure		500				{object}	APIError						"Internal Server Error"
//
//	@Security		Bearer
//
//	@Router			/api/v1/collection/{collectionName}/document [post]
func CreateDocumentsHandler(appState *models.AppState) http.HandlerFunc {
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

		var documentRequests []models.CreateDocumentRequest
		if err := json.NewDecoder(r.Body).Decode(&documentRequests); err != nil {
			handlertools.RenderError(w, err, http.StatusBadRequest)
			return
		}

		if err := validateDocumentRequests(documentRequests); err != nil {
			handlertools.RenderError(w, err, http.StatusBadRequest)
			return
		}

		documents, err := store.CreateDocuments(r.Context(), collectionName, documentRequests)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				handlertools.RenderError(w, err, http.StatusNotFound)
				return
			}
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}

		uuids := make([]uuid.UUID, len(documents))
		for i := range documents {
			uuids[i] = documents[i].UUID
		}

		if err := handlertools.EncodeJSON(w, uuids); err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// GetDocumentListHandler godoc
//
//	@Summary		Gets a paginated list of Documents in a Collection
//	@Description	Returns a page of documents ordered by insertion order.
//	@Tags			document
//	@Accept			json
//	@Produce		json
//	@Param			collectionName	path		string						true	"Name of the Collection"
//	@Param			page			query		integer						false	"Page number, starting at 1"
//	@Param			page_size		query		integer						false	"Number of documents per page"
//	@Success		200				{object}	models.DocumentListResponse	"OK"
//	@Failure		400				{object}	APIError					"Bad Request"
//	@Failure		401				{object}	APIError					"Unauthorized"
//	@Failure		404				{object}	APIError					"Not Found"
//	@Failure		500				{object}	APIError					"Internal Server Error"
//
//	@Security		Bearer
//
//	@Router			/api/v1/collection/{collectionName}/document [get]
func GetDocumentListHandler(appState *models.AppState) http.HandlerFunc {
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

		page, err := handlertools.IntFromQuery[int](r, "page")
		if err != nil {
			handlertools.RenderError(w, err, http.StatusBadRequest)
			return
		}
		if page < 1 {
			page = 1
		}

		pageSize, err := handlertools.IntFromQuery[int](r, "page_size")
		if err != nil {
			handlertools.RenderError(w, err, http.StatusBadRequest)
			return
		}
		if pageSize < 1 {
			pageSize = DefaultDocumentPageSize
		}

		documentList, err := store.ListDocuments(r.Context(), collectionName, page, pageSize)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				handlertools.RenderError(w, err, http.StatusNotFound)
				return
			}
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}

		if err := handlertools.EncodeJSON(w, documentList); err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// GetDocumentHandler godoc
//
//	@Summary		Gets a Document from a Collection by UUID
//	@Description	Returns the document with its content, annotated content, state and entities.
//	@Tags			document
//	@Accept			json
//	@Produce		json
//	@Param			collectionName	path		string			true	"Name of the Collection"
//	@Param			documentUUID	path		string			true	"UUID of the Document to be fetched"
//	@Success		200				{object}	models.Document	"OK"
//	@Failure		400				{object}	APIError		"Bad Request"
//	@Failure		401				{object}	APIError		"Unauthorized"
//	@Failure		404				{object}	APIError		"Not Found"
//	@Failure		500				{object}	APIError		"Internal Server Error"
//
//	@Security		Bearer
//
//	@Router			/api/v1/collection/{collectionName}/document/{documentUUID} [get]
func GetDocumentHandler(appState *models.AppState) http.HandlerFunc {
	store := appState.EntityStore
	return func(w http.ResponseWriter, r *http.Request) {
		collectionName := strings.ToLower(chi.URLParam(r, "collectionName"))
		documentUUID := handlertools.UUIDFromURL(r, w, "documentUUID")

		if collectionName == "" {
			handlertools.RenderError(
				w,
				errors.New("collectionName is required"),
				http.StatusBadRequest,
			)
			return
		}
		if documentUUID == uuid.Nil {
			handlertools.RenderError(
				w,
				errors.New("documentUUID is required"),
				http.StatusBadRequest,
			)
			return
		}

		document, err := store.GetDocument(r.Context(), collectionName, documentUUID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				handlertools.RenderError(w, err, http.StatusNotFound)
				return
			}
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}

		if err := handlertools.EncodeJSON(w, document); err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// DeleteDocumentHandler godoc
//
//	@Summary		Deletes a Document from a Collection by UUID
//	@Description	Deletes the document along with its mentions. Entity mention counts are updated.
//
//	@Tags			document
//
//	@Accept			json
//	@Produce		json
//	@Param			collectionName	path		string		true	"Name of the Collection"
//	@Param			documentUUID	path		string		true	"UUID of the Document to be deleted"
//	@Success		200				{object}	string		"OK"
//	@Failure		400				{object}	APIError	"Bad Request"
//	@Failure		401				{object}	APIError	"Unauthorized"
//	@Failure		404				{object}	APIError	"Document Not Found"
//	@Failure		500				{object}	APIError	"Internal Server Error"
//
//	@Security		Bearer
//
//	@Router			/api/v1/collection/{collectionName}/document/{documentUUID} [delete]
func DeleteDocumentHandler(appState *models.AppState) http.HandlerFunc {
	store := appState.EntityStore
	return func(w http.ResponseWriter, r *http.Request) {
		collectionName := strings.ToLower(chi.URLParam(r, "collectionName"))
		documentUUID := handlertools.UUIDFromURL(r, w, "documentUUID")

		if collectionName == "" {
			handlertools.RenderError(
				w,
				errors.New("collectionName is required"),
				http.StatusBadRequest,
			)
			return
		}
		if documentUUID == uuid.Nil {
			handlertools.RenderError(
				w,
				errors.New("documentUUID is required"),
				http.StatusBadRequest,
			)
			return
		}

		err := store.DeleteDocument(r.Context(), collectionName, documentUUID)
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

// validateDocumentRequests validates a batch of CreateDocumentRequests. If
// any of the requests are invalid, an error is returned.
func validateDocumentRequests(requests []models.CreateDocumentRequest) error {
	if len(requests) == 0 {
		return errors.New("at least one document is required")
	}
	for i := range requests {
		if err := validate.Struct(requests[i]); err != nil {
			return err
		}
	}
	return nil
}
