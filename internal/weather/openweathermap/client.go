// Package openweathermap adapts the OpenWeatherMap One Call 3.0 API to
// weather.Provider. It is the alternate upstream, selected by configuration.
package openweathermap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/weatherdeck/weatherdeck/internal/provider/resilience"
	"github.com/weatherdeck/weatherdeck/internal/weather"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "openweathermap"

	// DefaultOneCallURL is the OpenWeatherMap One Call API 3.0 endpoint.
	DefaultOneCallURL = "https://api.openweathermap.org/data/3.0/onecall"

	// One Call reports metric wind in m/s; snapshots use km/h like Open-Meteo.
	msToKmh = 3.6
)

// ClientConfig holds configuration for the OpenWeatherMap client.
type ClientConfig struct {
	// APIKey is the OpenWeatherMap API key (required).
	APIKey string

	// OneCallURL defaults to DefaultOneCallURL.
	OneCallURL string

	// Language is passed as lang= for descriptions. Defaults to "es".
	Language string

	// HTTPClient defaults to a resilient client with default settings.
	HTTPClient *resilience.Client

	Logger zerolog.Logger
}

// Client is an OpenWeatherMap API client.
type Client struct {
	apiKey     string
	oneCallURL string
	language   string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new OpenWeatherMap client.
func NewClient(cfg ClientConfig) *Client {
	oneCallURL := cfg.OneCallURL
	if oneCallURL == "" {
		oneCallURL = DefaultOneCallURL
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
		apiKey:     cfg.APIKey,
		oneCallURL: oneCallURL,
		language:   language,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Forecast fetches current, hourly (48h) and daily (8d) data in one call.
func (c *Client) Forecast(ctx context.Context, lat, lon float64) (*weather.Forecast, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	q.Set("lang", c.language)
	q.Set("exclude", "minutely,alerts")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.oneCallURL+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", weather.ErrUnexpectedStatus, resp.StatusCode)
	}

	var owmResp oneCallResponse
	if err := json.NewDecoder(resp.Body).Decode(&owmResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	c.logger.Debug().
		Str("timezone", owmResp.Timezone).
		Int("hours", len(owmResp.Hourly)).
		Int("days", len(owmResp.Daily)).
		Msg("openweathermap forecast received")

	return owmResp.toForecast(), nil
}

func (r *oneCallResponse) toForecast() *weather.Forecast {
	zone := time.FixedZone(r.Timezone, r.TimezoneOffset)

	out := &weather.Forecast{
		Zone:   zone,
		Hourly: make([]weather.Reading, 0, len(r.Hourly)),
		Daily:  make([]weather.DailyReading, 0, len(r.Daily)),
	}

	if r.Current != nil {
		cur := r.Current.toReading(zone)
		out.Current = &cur
	}
	for _, h := range r.Hourly {
		out.Hourly = append(out.Hourly, h.toReading(zone))
	}

	for _, d := range r.Daily {
		day := weather.DailyReading{
			Date:           time.Unix(d.Dt, 0).In(zone),
			TemperatureMax: d.Temp.Max,
			TemperatureMin: d.Temp.Min,
			WindSpeedMax:   kmh(d.WindSpeed),
			UVIndexMax:     d.UVI,
			Condition:      weatherCondition(d.Weather),
		}
		if d.Pop != nil {
			pct := *d.Pop * 100
			day.PrecipitationProbability = &pct
		}
		if d.Rain != nil || d.Snow != nil {
			sum := deref(d.Rain) + deref(d.Snow)
			day.PrecipitationSum = &sum
		}
		if d.Sunrise != 0 {
			t := time.Unix(d.Sunrise, 0).In(zone)
			day.Sunrise = &t
		}
		if d.Sunset != 0 {
			t := time.Unix(d.Sunset, 0).In(zone)
			day.Sunset = &t
		}
		out.Daily = append(out.Daily, day)
	}

	return out
}

func (p *point) toReading(zone *time.Location) weather.Reading {
	reading := weather.Reading{
		Time:          time.Unix(p.Dt, 0).In(zone),
		Temperature:   p.Temp,
		FeelsLike:     p.FeelsLike,
		Humidity:      p.Humidity,
		WindSpeed:     kmh(p.WindSpeed),
		WindDirection: p.WindDeg,
		Pressure:      p.Pressure,
		CloudCover:    p.Clouds,
		Condition:     weatherCondition(p.Weather),
	}
	if p.Rain != nil || p.Snow != nil {
		sum := deref(p.Rain.oneHour()) + deref(p.Snow.oneHour())
		reading.Precipitation = &sum
	}
	if len(p.Weather) > 0 && p.Weather[0].Icon != "" {
		day := strings.HasSuffix(p.Weather[0].Icon, "d")
		reading.IsDay = &day
	}
	return reading
}

// ConditionFromID maps an OpenWeatherMap condition id.
func ConditionFromID(id int) weather.Condition {
	switch {
	case id >= 200 && id < 300:
		if id == 202 || id == 212 || id == 232 {
			return weather.ConditionThunderstormHail
		}
		return weather.ConditionThunderstorm
	case id >= 300 && id < 400:
		return weather.ConditionDrizzle
	case id == 511:
		return weather.ConditionFreezingRain
	case id >= 520 && id < 600:
		return weather.ConditionRainShowers
	case id >= 500 && id < 520:
		return weather.ConditionRain
	case id >= 611 && id <= 616:
		return weather.ConditionSnowGrains
	case id >= 620 && id < 700:
		return weather.ConditionSnowShowers
	case id >= 600 && id < 700:
		return weather.ConditionSnow
	case id == 701 || id == 721 || id == 741:
		return weather.ConditionFog
	case id == 800:
		return weather.ConditionClear
	case id == 801:
		return weather.ConditionMainlyClear
	case id == 802:
		return weather.ConditionPartlyCloudy
	case id == 803 || id == 804:
		return weather.ConditionOvercast
	default:
		return weather.ConditionUnknown
	}
}

func weatherCondition(w []condition) weather.Condition {
	if len(w) == 0 {
		return weather.ConditionUnknown
	}
	return ConditionFromID(w[0].ID)
}

func kmh(ms *float64) *float64 {
	if ms == nil {
		return nil
	}
	v := *ms * msToKmh
	return &v
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// OpenWeatherMap One Call response structures.

type oneCallResponse struct {
	Lat            float64    `json:"lat"`
	Lon            float64    `json:"lon"`
	Timezone       string     `json:"timezone"`
	TimezoneOffset int        `json:"timezone_offset"`
	Current        *point     `json:"current"`
	Hourly         []point    `json:"hourly"`
	Daily          []dayPoint `json:"daily"`
}

type condition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type volume struct {
	OneHour *float64 `json:"1h"`
}

func (v *volume) oneHour() *float64 {
	if v == nil {
		return nil
	}
	return v.OneHour
}

type point struct {
	Dt        int64       `json:"dt"`
	Temp      *float64    `json:"temp"`
	FeelsLike *float64    `json:"feels_like"`
	Pressure  *float64    `json:"pressure"`
	Humidity  *float64    `json:"humidity"`
	Clouds    *float64    `json:"clouds"`
	WindSpeed *float64    `json:"wind_speed"`
	WindDeg   *float64    `json:"wind_deg"`
	Rain      *volume     `json:"rain"`
	Snow      *volume     `json:"snow"`
	Weather   []condition `json:"weather"`
}

type dayPoint struct {
	Dt      int64 `json:"dt"`
	Sunrise int64 `json:"sunrise"`
	Sunset  int64 `json:"sunset"`
	Temp    struct {
		Min *float64 `json:"min"`
		Max *float64 `json:"max"`
	} `json:"temp"`
	WindSpeed *float64    `json:"wind_speed"`
	Pop       *float64    `json:"pop"`
	Rain      *float64    `json:"rain"`
	Snow      *float64    `json:"snow"`
	UVI       *float64    `json:"uvi"`
	Weather   []condition `json:"weather"`
}
