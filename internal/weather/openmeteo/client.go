// Package openmeteo adapts the Open-Meteo forecast API to weather.Provider.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/weatherdeck/weatherdeck/internal/provider/resilience"
	"github.com/weatherdeck/weatherdeck/internal/weather"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "open-meteo"

	// DefaultBaseURL is the Open-Meteo forecast endpoint.
	DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

	forecastDays = 7
)

const (
	currentFields = "temperature_2m,relative_humidity_2m,apparent_temperature,is_day,precipitation," +
		"weather_code,cloud_cover,pressure_msl,wind_speed_10m,wind_direction_10m"
	hourlyFields = "temperature_2m,relative_humidity_2m,apparent_temperature,is_day,precipitation," +
		"weather_code,cloud_cover,pressure_msl,wind_speed_10m,wind_direction_10m"
	dailyFields = "weather_code,temperature_2m_max,temperature_2m_min,sunrise,sunset,precipitation_sum," +
		"precipitation_probability_max,wind_speed_10m_max,uv_index_max"
)

// ClientConfig holds configuration for the Open-Meteo client.
type ClientConfig struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// HTTPClient defaults to a resilient client with default settings.
	HTTPClient *resilience.Client

	Logger zerolog.Logger
}

// Client is an Open-Meteo forecast client.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new Open-Meteo client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Forecast fetches current conditions, hourly and daily series in metric units.
func (c *Client) Forecast(ctx context.Context, lat, lon float64) (*weather.Forecast, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("current", currentFields)
	q.Set("hourly", hourlyFields)
	q.Set("daily", dailyFields)
	q.Set("timezone", "auto")
	q.Set("timeformat", "unixtime")
	q.Set("forecast_days", strconv.Itoa(forecastDays))

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
		return nil, statusError(resp)
	}

	var body forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	c.logger.Debug().
		Str("timezone", body.Timezone).
		Int("hours", len(body.Hourly.Time)).
		Int("days", len(body.Daily.Time)).
		Msg("open-meteo forecast received")

	return body.toForecast(), nil
}

// statusError reads Open-Meteo's {"error":true,"reason":...} body when present.
func statusError(resp *http.Response) error {
	var body struct {
		Reason string `json:"reason"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(raw, &body) == nil && body.Reason != "" {
		return fmt.Errorf("%w: HTTP %d: %s", weather.ErrUnexpectedStatus, resp.StatusCode, body.Reason)
	}
	return fmt.Errorf("%w: HTTP %d", weather.ErrUnexpectedStatus, resp.StatusCode)
}

// ConditionFromCode maps a WMO weather interpretation code.
func ConditionFromCode(code int) weather.Condition {
	switch code {
	case 0:
		return weather.ConditionClear
	case 1:
		return weather.ConditionMainlyClear
	case 2:
		return weather.ConditionPartlyCloudy
	case 3:
		return weather.ConditionOvercast
	case 45, 48:
		return weather.ConditionFog
	case 51, 53, 55:
		return weather.ConditionDrizzle
	case 56, 57:
		return weather.ConditionFreezingDrizzle
	case 61, 63, 65:
		return weather.ConditionRain
	case 66, 67:
		return weather.ConditionFreezingRain
	case 71, 73, 75:
		return weather.ConditionSnow
	case 77:
		return weather.ConditionSnowGrains
	case 80, 81, 82:
		return weather.ConditionRainShowers
	case 85, 86:
		return weather.ConditionSnowShowers
	case 95:
		return weather.ConditionThunderstorm
	case 96, 99:
		return weather.ConditionThunderstormHail
	default:
		return weather.ConditionUnknown
	}
}

// Open-Meteo response structures. Series values are nullable.

type forecastResponse struct {
	Latitude             float64 `json:"latitude"`
	Longitude            float64 `json:"longitude"`
	UTCOffsetSeconds     int     `json:"utc_offset_seconds"`
	Timezone             string  `json:"timezone"`
	TimezoneAbbreviation string  `json:"timezone_abbreviation"`

	Current *struct {
		Time          int64    `json:"time"`
		Temperature   *float64 `json:"temperature_2m"`
		Humidity      *float64 `json:"relative_humidity_2m"`
		FeelsLike     *float64 `json:"apparent_temperature"`
		IsDay         *int     `json:"is_day"`
		Precipitation *float64 `json:"precipitation"`
		WeatherCode   *int     `json:"weather_code"`
		CloudCover    *float64 `json:"cloud_cover"`
		Pressure      *float64 `json:"pressure_msl"`
		WindSpeed     *float64 `json:"wind_speed_10m"`
		WindDirection *float64 `json:"wind_direction_10m"`
	} `json:"current"`

	Hourly struct {
		Time          []int64    `json:"time"`
		Temperature   []*float64 `json:"temperature_2m"`
		Humidity      []*float64 `json:"relative_humidity_2m"`
		FeelsLike     []*float64 `json:"apparent_temperature"`
		IsDay         []*int     `json:"is_day"`
		Precipitation []*float64 `json:"precipitation"`
		WeatherCode   []*int     `json:"weather_code"`
		CloudCover    []*float64 `json:"cloud_cover"`
		Pressure      []*float64 `json:"pressure_msl"`
		WindSpeed     []*float64 `json:"wind_speed_10m"`
		WindDirection []*float64 `json:"wind_direction_10m"`
	} `json:"hourly"`

	Daily struct {
		Time                     []int64    `json:"time"`
		WeatherCode              []*int     `json:"weather_code"`
		TemperatureMax           []*float64 `json:"temperature_2m_max"`
		TemperatureMin           []*float64 `json:"temperature_2m_min"`
		Sunrise                  []*int64   `json:"sunrise"`
		Sunset                   []*int64   `json:"sunset"`
		PrecipitationSum         []*float64 `json:"precipitation_sum"`
		PrecipitationProbability []*float64 `json:"precipitation_probability_max"`
		WindSpeedMax             []*float64 `json:"wind_speed_10m_max"`
		UVIndexMax               []*float64 `json:"uv_index_max"`
	} `json:"daily"`
}

func (r *forecastResponse) toForecast() *weather.Forecast {
	zone := time.FixedZone(r.TimezoneAbbreviation, r.UTCOffsetSeconds)

	out := &weather.Forecast{
		Zone:   zone,
		Hourly: make([]weather.Reading, 0, len(r.Hourly.Time)),
		Daily:  make([]weather.DailyReading, 0, len(r.Daily.Time)),
	}

	if cur := r.Current; cur != nil {
		out.Current = &weather.Reading{
			Time:          time.Unix(cur.Time, 0).In(zone),
			Temperature:   cur.Temperature,
			FeelsLike:     cur.FeelsLike,
			Humidity:      cur.Humidity,
			WindSpeed:     cur.WindSpeed,
			WindDirection: cur.WindDirection,
			Pressure:      cur.Pressure,
			Precipitation: cur.Precipitation,
			CloudCover:    cur.CloudCover,
			IsDay:         flag(cur.IsDay),
			Condition:     condition(cur.WeatherCode),
		}
	}

	h := r.Hourly
	for i, ts := range h.Time {
		out.Hourly = append(out.Hourly, weather.Reading{
			Time:          time.Unix(ts, 0).In(zone),
			Temperature:   at(h.Temperature, i),
			FeelsLike:     at(h.FeelsLike, i),
			Humidity:      at(h.Humidity, i),
			WindSpeed:     at(h.WindSpeed, i),
			WindDirection: at(h.WindDirection, i),
			Pressure:      at(h.Pressure, i),
			Precipitation: at(h.Precipitation, i),
			CloudCover:    at(h.CloudCover, i),
			IsDay:         flag(at(h.IsDay, i)),
			Condition:     condition(at(h.WeatherCode, i)),
		})
	}

	d := r.Daily
	for i, ts := range d.Time {
		out.Daily = append(out.Daily, weather.DailyReading{
			Date:                     time.Unix(ts, 0).In(zone),
			TemperatureMax:           at(d.TemperatureMax, i),
			TemperatureMin:           at(d.TemperatureMin, i),
			PrecipitationSum:         at(d.PrecipitationSum, i),
			PrecipitationProbability: at(d.PrecipitationProbability, i),
			WindSpeedMax:             at(d.WindSpeedMax, i),
			UVIndexMax:               at(d.UVIndexMax, i),
			Sunrise:                  unix(at(d.Sunrise, i), zone),
			Sunset:                   unix(at(d.Sunset, i), zone),
			Condition:                condition(at(d.WeatherCode, i)),
		})
	}

	return out
}

// at tolerates series shorter than the time axis.
func at[T any](series []*T, i int) *T {
	if i < len(series) {
		return series[i]
	}
	return nil
}

func flag(v *int) *bool {
	if v == nil {
		return nil
	}
	b := *v == 1
	return &b
}

func condition(code *int) weather.Condition {
	if code == nil {
		return weather.ConditionUnknown
	}
	return ConditionFromCode(*code)
}

func unix(ts *int64, zone *time.Location) *time.Time {
	if ts == nil {
		return nil
	}
	t := time.Unix(*ts, 0).In(zone)
	return &t
}
