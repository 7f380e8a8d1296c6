package handlertools

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/getentag/entag/pkg/models"

	"github.com/stretchr/testify/assert"
)

func TestIntFromQuery(t *testing.T) {
	req := httptest.NewRequest("GET", "/?param=123", nil)
	got, err := IntFromQuery[int](req, "param")
	assert.NoError(t, err, "IntFromQuery() error = %v", err)
	assert.Equal(t, 123, got, "IntFromQuery() = %v, want %v", got, 123)

	// Missing params default to zero
	got, err = IntFromQuery[int](req, "missing")
	assert.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestUUIDFromURL(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/{uuid}", func(w http.ResponseWriter, r *http.Request) {
		urlUUID := UUIDFromURL(r, w, "uuid")
		assert.NotNil(t, urlUUID)
	})

	ts := httptest.NewServer(r)
	defer ts.Close()

	// Test with valid UUID
	validUUID := uuid.New()
	res, err := http.Get(ts.URL + "/" + validUUID.String())
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	// Test with invalid UUID
	res, err = http.Get(ts.URL + "/invalid_uuid")
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestRenderErrorNotFound(t *testing.T) {
	w := httptest.NewRecorder()
	RenderError(w, fmt.Errorf("lookup failed: %w", models.ErrNotFound), http.StatusInternalServerError)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRenderErrorOversizedBody(t *testing.T) {
	w := httptest.NewRecorder()
	RenderError(w, errors.New("http: request body too large"), http.StatusInternalServerError)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRenderErrorBadRequest(t *testing.T) {
	w := httptest.NewRecorder()
	RenderError(w, models.NewBadRequestError("page_size must be positive"), http.StatusInternalServerError)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
