// Package nominatim is a reverse-geocoding client for OpenStreetMap Nominatim.
package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/weatherdeck/weatherdeck/internal/geolocation"
	"github.com/weatherdeck/weatherdeck/internal/provider/resilience"
)

const (
	// ProviderName identifies this upstream.
	ProviderName = "nominatim"

	// DefaultBaseURL is the public Nominatim instance.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// cityZoom asks for city-level detail.
	cityZoom = 10
)

// ErrUnexpectedStatus is returned for non-200 responses.
var ErrUnexpectedStatus = errors.New("unexpected nominatim status")

// ClientConfig holds configuration for the Nominatim client.
type ClientConfig struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// Language is sent as accept-language. Defaults to "es".
	Language string

	// HTTPClient should carry a User-Agent; the public instance rejects anonymous traffic.
	HTTPClient *resilience.Client

	Logger zerolog.Logger
}

// Client reverse-geocodes coordinates.
type Client struct {
	baseURL    string
	language   string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a Nominatim client.
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
		httpCfg := resilience.DefaultClientConfig(ProviderName)
		httpCfg.UserAgent = "weatherdeck"
		httpClient = resilience.NewClient(httpCfg)
	}
	return &Client{
		baseURL:    baseURL,
		language:   language,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Reverse returns at most one place for the coordinates. An "Unable to
// geocode" answer is an empty result, not an error.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) ([]geolocation.Place, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	q.Set("zoom", strconv.Itoa(cityZoom))
	q.Set("addressdetails", "1")
	q.Set("accept-language", c.language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+q.Encode(), http.NoBody)
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

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if body.Error != "" {
		c.logger.Debug().Str("reason", body.Error).Msg("nominatim found no place")
		return nil, nil
	}

	a := body.Address
	return []geolocation.Place{{
		City:    firstNonEmpty(a.City, a.Town, a.Village, a.Municipality),
		Region:  firstNonEmpty(a.State, a.Region, a.County),
		Country: a.Country,
	}}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

type reverseResponse struct {
	Error       string `json:"error"`
	DisplayName string `json:"display_name"`
	Address     struct {
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		Municipality string `json:"municipality"`
		County       string `json:"county"`
		State        string `json:"state"`
		Region       string `json:"region"`
		Country      string `json:"country"`
	} `json:"address"`
}
