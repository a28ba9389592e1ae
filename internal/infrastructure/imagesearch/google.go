package imagesearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"NewsAlerts/internal/config"
	"NewsAlerts/internal/domain"
	"NewsAlerts/internal/ports"
)

const defaultEndpoint = "https://www.googleapis.com/customsearch/v1"

// GoogleSearcher queries the Google Custom Search JSON API for images.
type GoogleSearcher struct {
	endpoint string
	apiKey   string
	engineID string
	http     *http.Client
}

var _ ports.ImageSearcher = (*GoogleSearcher)(nil)

// NewGoogleSearcher creates a reusable HTTP client.
func NewGoogleSearcher(cfg config.ImageSearchConfig) (*GoogleSearcher, error) {
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.EngineID) == "" {
		return nil, fmt.Errorf("image search: %w", config.ErrMissingCredentials)
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GoogleSearcher{
		endpoint: endpoint,
		apiKey:   strings.TrimSpace(cfg.APIKey),
		engineID: strings.TrimSpace(cfg.EngineID),
		http:     &http.Client{Timeout: timeout},
	}, nil
}

type searchResponse struct {
	Items []struct {
		Link        string `json:"link"`
		DisplayLink string `json:"displayLink"`
		Image       struct {
			ContextLink   string `json:"contextLink"`
			ThumbnailLink string `json:"thumbnailLink"`
		} `json:"image"`
	} `json:"items"`
}

// Search returns the first image hit, or nil when nothing matched.
func (c *GoogleSearcher) Search(ctx context.Context, query string, opts ports.ImageSearchOptions) (*domain.Image, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.engineID)
	params.Set("q", RestrictToSites(query, opts.Sites))
	params.Set("searchType", "image")
	params.Set("num", "1")
	params.Set("safe", "active")

	var resp searchResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}
	for _, item := range resp.Items {
		if strings.TrimSpace(item.Link) == "" {
			continue
		}
		source := item.DisplayLink
		if source == "" {
			source = item.Image.ContextLink
		}
		return &domain.Image{URL: item.Link, Thumbnail: item.Image.ThumbnailLink, Source: source}, nil
	}
	return nil, nil
}

// RestrictToSites appends a site: OR-clause to the query.
func RestrictToSites(query string, sites []string) string {
	clauses := make([]string, 0, len(sites))
	for _, site := range sites {
		if site = strings.TrimSpace(site); site != "" {
			clauses = append(clauses, "site:"+site)
		}
	}
	if len(clauses) == 0 {
		return query
	}
	return fmt.Sprintf("%s (%s)", query, strings.Join(clauses, " OR "))
}

func (c *GoogleSearcher) get(ctx context.Context, params url.Values, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("image search: unexpected status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
