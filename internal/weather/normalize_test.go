package weather_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weatherdeck/weatherdeck/internal/weather"
)

func f(v float64) *float64 { return &v }

func TestRound(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{21.4, 21},
		{21.5, 22},
		{21.6, 22},
		{-21.4, -21},
		{-21.5, -22},
		{0.49, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, weather.Round(tt.in), "Round(%v)", tt.in)
	}
}

func TestClosestHour(t *testing.T) {
	readings := []weather.Reading{
		{Time: time.Unix(100, 0)},
		{Time: time.Unix(200, 0)},
		{Time: time.Unix(310, 0)},
	}
	assert.Equal(t, 2, weather.ClosestHour(readings, time.Unix(305, 0)))
	assert.Equal(t, 0, weather.ClosestHour(readings, time.Unix(0, 0)))
}

func TestClosestHour_TieKeepsFirst(t *testing.T) {
	readings := []weather.Reading{
		{Time: time.Unix(100, 0)},
		{Time: time.Unix(200, 0)},
	}
	assert.Equal(t, 0, weather.ClosestHour(readings, time.Unix(150, 0)))
}

func TestClosestHour_Empty(t *testing.T) {
	assert.Equal(t, -1, weather.ClosestHour(nil, time.Now()))
}

func limaZone() *time.Location {
	return time.FixedZone("PET", -5*3600)
}

func TestNormalize_DerivesCurrentFromClosestHour(t *testing.T) {
	zone := limaZone()
	now := time.Date(2024, 5, 1, 14, 20, 0, 0, zone)

	forecast := &weather.Forecast{
		Zone: zone,
		Hourly: []weather.Reading{
			{Time: time.Date(2024, 5, 1, 13, 0, 0, 0, zone), Temperature: f(20.2), Condition: weather.ConditionOvercast},
			{Time: time.Date(2024, 5, 1, 14, 0, 0, 0, zone), Temperature: f(21.5), Humidity: f(71.6), Condition: weather.ConditionDrizzle},
			{Time: time.Date(2024, 5, 1, 15, 0, 0, 0, zone), Temperature: f(22.4), Condition: weather.ConditionRain},
		},
	}

	snap, err := weather.Normalize(forecast, now)
	require.NoError(t, err)

	assert.Equal(t, 22, snap.Current.Temperature)
	assert.Equal(t, 72, snap.Current.Humidity)
	assert.Equal(t, 0, snap.Current.Pressure, "absent pressure defaults to 0")
	assert.Equal(t, 0, snap.Current.UVIndex)
	assert.Equal(t, weather.ConditionDrizzle, snap.Current.ConditionCode)
	assert.Equal(t, "Llovizna", snap.Current.ConditionText)
	assert.True(t, snap.Current.IsDay)
	assert.Equal(t, now, snap.FetchedAt)
}

func TestNormalize_AugmentsDistinctCurrentBlock(t *testing.T) {
	zone := limaZone()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, zone)
	day := false

	forecast := &weather.Forecast{
		Zone: zone,
		Current: &weather.Reading{
			Time:        now,
			Temperature: f(17.5),
			FeelsLike:   f(16.4),
			IsDay:       &day,
			Condition:   weather.ConditionUnknown,
		},
		Hourly: []weather.Reading{
			{Time: now, Temperature: f(30), Pressure: f(1012.7), WindSpeed: f(11.5), Condition: weather.ConditionPartlyCloudy},
		},
		Daily: []weather.DailyReading{
			{Date: time.Date(2024, 5, 1, 0, 0, 0, 0, zone), UVIndexMax: f(6.55)},
		},
	}

	snap, err := weather.Normalize(forecast, now)
	require.NoError(t, err)

	assert.Equal(t, 18, snap.Current.Temperature, "current block wins over the hour")
	assert.Equal(t, 16, snap.Current.FeelsLike)
	assert.Equal(t, 1013, snap.Current.Pressure, "gap filled from closest hour")
	assert.Equal(t, 12, snap.Current.WindSpeed)
	assert.Equal(t, 7, snap.Current.UVIndex)
	assert.Equal(t, weather.ConditionPartlyCloudy, snap.Current.ConditionCode)
	assert.False(t, snap.Current.IsDay, "upstream flag is respected")
}

func TestNormalize_HourlyIsTodayOnly(t *testing.T) {
	zone := limaZone()
	now := time.Date(2024, 5, 1, 22, 0, 0, 0, zone)

	var hourly []weather.Reading
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, zone)
	for i := 0; i < 48; i++ {
		hourly = append(hourly, weather.Reading{Time: start.Add(time.Duration(i) * time.Hour), Temperature: f(float64(i))})
	}

	snap, err := weather.Normalize(&weather.Forecast{Zone: zone, Hourly: hourly}, now)
	require.NoError(t, err)

	require.Len(t, snap.Hourly, 24)
	assert.Equal(t, "00:00", snap.Hourly[0].TimeOfDay)
	assert.Equal(t, "23:00", snap.Hourly[23].TimeOfDay)
	assert.Equal(t, weather.ConditionUnknown, snap.Hourly[0].ConditionCode)
}

func TestNormalize_DailyCappedAtSeven(t *testing.T) {
	zone := limaZone()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, zone)

	var daily []weather.DailyReading
	for i := 0; i < 10; i++ {
		date := time.Date(2024, 5, 1+i, 0, 0, 0, 0, zone)
		sunrise := date.Add(6*time.Hour + 12*time.Minute)
		daily = append(daily, weather.DailyReading{
			Date:                     date,
			TemperatureMax:           f(24.5),
			TemperatureMin:           f(16.4),
			PrecipitationSum:         f(1.3),
			PrecipitationProbability: f(40),
			Sunrise:                  &sunrise,
			Condition:                weather.ConditionRainShowers,
		})
	}

	snap, err := weather.Normalize(&weather.Forecast{
		Zone:   zone,
		Hourly: []weather.Reading{{Time: now, Temperature: f(20)}},
		Daily:  daily,
	}, now)
	require.NoError(t, err)

	require.Len(t, snap.Daily, weather.MaxDailyPoints)
	first := snap.Daily[0]
	assert.Equal(t, "2024-05-01", first.Date)
	assert.Equal(t, 25, first.TemperatureMax)
	assert.Equal(t, 16, first.TemperatureMin)
	assert.InDelta(t, 1.3, first.PrecipitationAmount, 1e-9)
	require.NotNil(t, first.PrecipitationProbability)
	assert.Equal(t, 40, *first.PrecipitationProbability)
	assert.Nil(t, first.WindSpeedMax)
	assert.Equal(t, "06:12", first.Sunrise)
	assert.Empty(t, first.Sunset)
	assert.Equal(t, "2024-05-07", snap.Daily[6].Date)
}

func TestNormalize_FewerDaysKept(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	snap, err := weather.Normalize(&weather.Forecast{
		Hourly: []weather.Reading{{Time: now}},
		Daily:  []weather.DailyReading{{Date: now}, {Date: now.AddDate(0, 0, 1)}},
	}, now)
	require.NoError(t, err)
	assert.Len(t, snap.Daily, 2)
}

func TestNormalize_NoCurrentData(t *testing.T) {
	_, err := weather.Normalize(&weather.Forecast{}, time.Now())
	assert.ErrorIs(t, err, weather.ErrNoCurrentConditions)
}

func TestNormalize_IsDayFromSunriseSunset(t *testing.T) {
	zone := limaZone()
	sunrise := time.Date(2024, 5, 1, 6, 10, 0, 0, zone)
	sunset := time.Date(2024, 5, 1, 17, 50, 0, 0, zone)
	daily := []weather.DailyReading{{Date: time.Date(2024, 5, 1, 0, 0, 0, 0, zone), Sunrise: &sunrise, Sunset: &sunset}}

	at := func(h, m int) bool {
		now := time.Date(2024, 5, 1, h, m, 0, 0, zone)
		snap, err := weather.Normalize(&weather.Forecast{
			Zone:   zone,
			Hourly: []weather.Reading{{Time: now}},
			Daily:  daily,
		}, now)
		require.NoError(t, err)
		return snap.Current.IsDay
	}

	assert.False(t, at(6, 0))
	assert.True(t, at(6, 10))
	assert.True(t, at(17, 49))
	assert.False(t, at(17, 50))
}

func TestCondition_Text(t *testing.T) {
	assert.Equal(t, "Despejado", weather.ConditionClear.Text())
	assert.Equal(t, "Desconocido", weather.Condition("volcanic_ash").Text())
	assert.False(t, weather.Condition("volcanic_ash").Known())
	assert.False(t, weather.ConditionUnknown.Known())
	assert.True(t, weather.ConditionThunderstormHail.Known())
}
