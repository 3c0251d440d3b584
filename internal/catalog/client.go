// Package catalog is a thin client for the external media catalog service.
// The catalog owns titles, imagery, and its own recommendation ranking; this
// core treats it as opaque.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/reelist/engine/internal/config"
	"github.com/reelist/engine/pkg/models"
)

type Client struct {
	baseURL string
	http    *http.Client
	logger  *logrus.Logger
}

// candidate is the catalog service's wire shape for one recommendation.
type candidate struct {
	ContentID int64    `json:"content_id"`
	Score     *float64 `json:"score,omitempty"`
	Rationale *string  `json:"rationale,omitempty"`
}

func New(cfg *config.CatalogConfig, logger *logrus.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Enabled reports whether a catalog endpoint is configured. A disabled
// client returns empty candidate lists instead of errors.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// Recommendations fetches catalog-ranked candidates filtered by the user's
// favorite genres and any sanitized request filters.
func (c *Client) Recommendations(ctx context.Context, genres []string, filters map[string]string, limit int) ([]models.Recommendation, error) {
	if !c.Enabled() {
		return nil, nil
	}

	params := url.Values{}
	if len(genres) > 0 {
		params.Set("genres", strings.Join(genres, ","))
	}
	for key, value := range filters {
		params.Set(key, value)
	}
	params.Set("limit", strconv.Itoa(limit))

	endpoint := c.baseURL + "/recommendations?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog responded with status %d", resp.StatusCode)
	}

	var candidates []candidate
	if err := json.NewDecoder(resp.Body).Decode(&candidates); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}

	recommendations := make([]models.Recommendation, 0, len(candidates))
	for _, cand := range candidates {
		recommendations = append(recommendations, models.Recommendation{
			ContentID: cand.ContentID,
			Score:     cand.Score,
			Rationale: cand.Rationale,
		})
	}

	c.logger.WithField("count", len(recommendations)).Debug("Fetched catalog candidates")
	return recommendations, nil
}
