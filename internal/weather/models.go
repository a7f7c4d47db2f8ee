package weather

import (
	"errors"
	"time"
)

// Weather errors.
var (
	ErrMissingCoordinates  = errors.New("location has no coordinates")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
	ErrNoCurrentConditions = errors.New("upstream returned neither current conditions nor hourly data")
	ErrUnexpectedStatus    = errors.New("unexpected upstream status")
)

// Condition is the internal weather vocabulary every upstream code is mapped into.
type Condition string

const (
	ConditionClear            Condition = "clear"
	ConditionMainlyClear      Condition = "mainly_clear"
	ConditionPartlyCloudy     Condition = "partly_cloudy"
	ConditionOvercast         Condition = "overcast"
	ConditionFog              Condition = "fog"
	ConditionDrizzle          Condition = "drizzle"
	ConditionFreezingDrizzle  Condition = "freezing_drizzle"
	ConditionRain             Condition = "rain"
	ConditionFreezingRain     Condition = "freezing_rain"
	ConditionSnow             Condition = "snow"
	ConditionSnowGrains       Condition = "snow_grains"
	ConditionRainShowers      Condition = "rain_showers"
	ConditionSnowShowers      Condition = "snow_showers"
	ConditionThunderstorm     Condition = "thunderstorm"
	ConditionThunderstormHail Condition = "thunderstorm_hail"
	ConditionUnknown          Condition = "unknown"
)

var conditionText = map[Condition]string{
	ConditionClear:            "Despejado",
	ConditionMainlyClear:      "Principalmente despejado",
	ConditionPartlyCloudy:     "Parcialmente nublado",
	ConditionOvercast:         "Nublado",
	ConditionFog:              "Niebla",
	ConditionDrizzle:          "Llovizna",
	ConditionFreezingDrizzle:  "Llovizna helada",
	ConditionRain:             "Lluvia",
	ConditionFreezingRain:     "Lluvia helada",
	ConditionSnow:             "Nieve",
	ConditionSnowGrains:       "Granizo",
	ConditionRainShowers:      "Chubascos",
	ConditionSnowShowers:      "Chubascos de nieve",
	ConditionThunderstorm:     "Tormenta",
	ConditionThunderstormHail: "Tormenta con granizo",
	ConditionUnknown:          "Desconocido",
}

// Text returns the display description for c.
func (c Condition) Text() string {
	if t, ok := conditionText[c]; ok {
		return t
	}
	return conditionText[ConditionUnknown]
}

// Known reports whether c belongs to the internal vocabulary.
func (c Condition) Known() bool {
	_, ok := conditionText[c]
	return ok && c != ConditionUnknown
}

// Snapshot is one normalised bundle of current, hourly and daily weather for a location.
// Weather values are never persisted; a Snapshot only lives in the response cache.
type Snapshot struct {
	Current   CurrentConditions `json:"current"`
	Hourly    []HourPoint       `json:"hourly"`
	Daily     []DayPoint        `json:"daily"`
	FetchedAt time.Time         `json:"fetchedAt"`
}

// CurrentConditions holds rounded current values. Absent upstream values are 0.
type CurrentConditions struct {
	Temperature   int       `json:"temperature"`
	FeelsLike     int       `json:"feelsLike"`
	Humidity      int       `json:"humidity"`
	WindSpeed     int       `json:"windSpeed"`
	WindDirection int       `json:"windDirection"`
	Pressure      int       `json:"pressure"`
	Precipitation int       `json:"precipitation"`
	CloudCover    int       `json:"cloudCover"`
	UVIndex       int       `json:"uvIndex"`
	ConditionCode Condition `json:"conditionCode"`
	ConditionText string    `json:"conditionText"`
	IsDay         bool      `json:"isDay"`
	Timestamp     time.Time `json:"timestamp"`
}

// HourPoint is one hour of the current local day.
type HourPoint struct {
	TimeOfDay     string    `json:"timeOfDay"` // HH:mm, location-local
	Temperature   int       `json:"temperature"`
	ConditionCode Condition `json:"conditionCode"`
}

// DayPoint is one forecast day.
type DayPoint struct {
	Date                     string    `json:"date"` // YYYY-MM-DD, location-local
	TemperatureMax           int       `json:"temperatureMax"`
	TemperatureMin           int       `json:"temperatureMin"`
	ConditionCode            Condition `json:"conditionCode"`
	PrecipitationAmount      float64   `json:"precipitationAmount"`
	PrecipitationProbability *int      `json:"precipitationProbability,omitempty"`
	WindSpeedMax             *int      `json:"windSpeedMax,omitempty"`
	UVIndexMax               *float64  `json:"uvIndexMax,omitempty"`
	Sunrise                  string    `json:"sunrise,omitempty"` // HH:mm
	Sunset                   string    `json:"sunset,omitempty"`  // HH:mm
}

// Forecast is the upstream-neutral payload an adapter hands to the Service.
// Values are raw (unrounded); nil means the upstream did not provide the field.
type Forecast struct {
	// Zone is the location's local time zone, used for HH:mm and date formatting.
	Zone *time.Location

	// Current is nil when the upstream has no distinct current-conditions block.
	Current *Reading

	Hourly []Reading
	Daily  []DailyReading
}

// Reading is a point-in-time observation or hourly forecast value.
type Reading struct {
	Time          time.Time
	Temperature   *float64
	FeelsLike     *float64
	Humidity      *float64
	WindSpeed     *float64
	WindDirection *float64
	Pressure      *float64
	Precipitation *float64
	CloudCover    *float64
	IsDay         *bool
	Condition     Condition
}

// DailyReading is one upstream forecast day.
type DailyReading struct {
	Date                     time.Time
	TemperatureMax           *float64
	TemperatureMin           *float64
	PrecipitationSum         *float64
	PrecipitationProbability *float64
	WindSpeedMax             *float64
	UVIndexMax               *float64
	Sunrise                  *time.Time
	Sunset                   *time.Time
	Condition                Condition
}
