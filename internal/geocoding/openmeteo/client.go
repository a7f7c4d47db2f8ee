// Package openmeteo is a client for the Open-Meteo geocoding search API.
package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/weatherdeck/weatherdeck/internal/geocoding"
	"github.com/weatherdeck/weatherdeck/internal/provider/resilience"
)

const (
	// ProviderName identifies this upstream.
	ProviderName = "open-meteo-geocoding"

	// DefaultBaseURL is the Open-Meteo geocoding search endpoint.
	DefaultBaseURL = "https://geocoding-api.open-meteo.com/v1/search"
)

// ErrUnexpectedStatus is returned for non-200 responses.
var ErrUnexpectedStatus = errors.New("unexpected geocoding status")

// ClientConfig holds configuration for the geocoding client.
type ClientConfig struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// Language of returned names. Defaults to "es".
	Language string

	HTTPClient *resilience.Client
	Logger     zerolog.Logger
}

// Client searches places by name.
type Client struct {
	baseURL    string
	language   string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a geocoding client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	language := cfg.Language
	if language == "" {
		language = "es"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}
	return &Client{
		baseURL:    baseURL,
		language:   language,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the upstream name.
func (c *Client) Name() string {
	return ProviderName
}

// Search sends the literal query and returns matches in upstream order.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]geocoding.Result, error) {
	q := url.Values{}
	q.Set("name", query)
	q.Set("count", strconv.Itoa(limit))
	q.Set("language", c.language)
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	results := make([]geocoding.Result, 0, len(body.Results))
	for _, r := range body.Results {
		if r.Latitude == nil || r.Longitude == nil {
			c.logger.Debug().Str("name", r.Name).Msg("skipping geocoding result without coordinates")
			continue
		}
		res := geocoding.Result{
			Name:      r.Name,
			Region:    r.Admin1,
			Country:   r.Country,
			Latitude:  *r.Latitude,
			Longitude: *r.Longitude,
		}
		if r.ID != 0 {
			res.ID = strconv.FormatInt(r.ID, 10)
		}
		results = append(results, res)
	}
	return results, nil
}

type searchResponse struct {
	Results []struct {
		ID        int64    `json:"id"`
		Name      string   `json:"name"`
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		Country   string   `json:"country"`
		Admin1    string   `json:"admin1"`
	} `json:"results"`
}
