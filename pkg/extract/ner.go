package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/getentag/entag/config"
	"github.com/getentag/entag/pkg/models"
)

const nerLanguage = "en"

// NERSource sends content to the external NER server and maps its labeled
// matches back onto byte spans. The server is authoritative for offsets;
// matches outside the content are dropped, not clamped.
type NERSource struct {
	url    string
	client *http.Client
}

func NewNERSource(cfg config.NERSourceConfig) *NERSource {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if cfg.Timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &NERSource{
		url:    strings.TrimSuffix(cfg.ServerURL, "/") + "/entities",
		client: &http.Client{Timeout: timeout},
	}
}

func (s *NERSource) Name() string {
	return models.MatchSourceNER
}

func (s *NERSource) Extract(ctx context.Context, text string) ([]models.RawMatch, error) {
	response, err := s.call(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("ner extract entities call failed: %w", err)
	}

	var matches []models.RawMatch
	for _, record := range response.Texts {
		for _, entity := range record.Entities {
			for _, m := range entity.Matches {
				if m.Start < 0 || m.End > len(text) || m.Start >= m.End {
					log.Warnf(
						"ner match %q span [%d,%d) out of bounds, dropping",
						entity.Name, m.Start, m.End,
					)
					continue
				}
				matches = append(matches, models.RawMatch{
					Text:      text[m.Start:m.End],
					Span:      models.Span{Start: m.Start, End: m.End},
					Type:      strings.ToLower(entity.Label),
					Source:    models.MatchSourceNER,
					Canonical: entity.Name,
				})
			}
		}
	}
	return matches, nil
}

func (s *NERSource) call(ctx context.Context, text string) (models.NerResponse, error) {
	requestBody := models.NerRequest{
		Texts: []models.NerRequestRecord{
			{UUID: uuid.New().String(), Text: text, Language: nerLanguage},
		},
	}
	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return models.NerResponse{}, fmt.Errorf("error marshaling ner request: %w", err)
	}

	var response models.NerResponse

	// Retry POST request to the NER server 3 times with 1 second delay.
	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewBuffer(jsonBody))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := s.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("ner server returned status %d", resp.StatusCode)
			}

			bodyBytes, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			return json.Unmarshal(bodyBytes, &response)
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.Context(ctx),
	)
	if err != nil {
		return models.NerResponse{}, err
	}
	return response, nil
}
