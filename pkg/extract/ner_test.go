package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getentag/entag/config"
	"github.com/getentag/entag/pkg/models"
)

func TestNERSourceExtract(t *testing.T) {
	text := "Zelensky visited Kyiv"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/entities", r.URL.Path)

		var request models.NerRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		require.Len(t, request.Texts, 1)
		assert.Equal(t, text, request.Texts[0].Text)
		assert.Equal(t, "en", request.Texts[0].Language)

		response := models.NerResponse{
			Texts: []models.NerResponseRecord{{
				UUID: request.Texts[0].UUID,
				Entities: []models.NerEntity{
					{
						Name:    "Zelensky",
						Label:   "PERSON",
						Matches: []models.NerMatch{{Start: 0, End: 8, Text: "Zelensky"}},
					},
					{
						Name:    "Kyiv",
						Label:   "GPE",
						Matches: []models.NerMatch{{Start: 17, End: 21, Text: "Kyiv"}},
					},
					{
						Name:    "Bogus",
						Label:   "GPE",
						Matches: []models.NerMatch{{Start: 90, End: 99, Text: "Bogus"}},
					},
				},
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(response))
	}))
	defer server.Close()

	source := NewNERSource(config.NERSourceConfig{ServerURL: server.URL, Timeout: 5})
	matches, err := source.Extract(context.Background(), text)
	assert.NoError(t, err)

	// The out-of-bounds match is dropped, not clamped.
	require.Len(t, matches, 2)
	assert.Equal(t, "Zelensky", matches[0].Text)
	assert.Equal(t, "person", matches[0].Type)
	assert.Equal(t, models.Span{Start: 0, End: 8}, matches[0].Span)
	assert.Equal(t, models.MatchSourceNER, matches[0].Source)
	assert.Equal(t, "Kyiv", matches[1].Canonical)
	assert.Equal(t, "gpe", matches[1].Type)
}

func TestNERSourceRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(models.NerResponse{})
	}))
	defer server.Close()

	// Trailing slash on the configured URL is tolerated.
	source := NewNERSource(config.NERSourceConfig{ServerURL: server.URL + "/", Timeout: 5})
	matches, err := source.Extract(context.Background(), "some text")
	assert.NoError(t, err)
	assert.Empty(t, matches)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNERSourceServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	source := NewNERSource(config.NERSourceConfig{ServerURL: server.URL, Timeout: 5})
	_, err := source.Extract(context.Background(), "some text")
	assert.ErrorContains(t, err, "status 404")
}
