package weather

import (
	"math"
	"time"
)

// MaxDailyPoints is the number of forecast days kept in a snapshot.
const MaxDailyPoints = 7

// Round rounds half away from zero: 21.4 -> 21, 21.5 -> 22, -21.5 -> -22.
func Round(v float64) int {
	return int(math.Round(v))
}

func roundOrZero(v *float64) int {
	if v == nil {
		return 0
	}
	return Round(*v)
}

func roundPtr(v *float64) *int {
	if v == nil {
		return nil
	}
	r := Round(*v)
	return &r
}

// ClosestHour returns the index of the reading nearest to now, or -1 when
// readings is empty. Ties keep the earlier reading.
func ClosestHour(readings []Reading, now time.Time) int {
	best := -1
	var bestDiff time.Duration
	for i, r := range readings {
		diff := r.Time.Sub(now)
		if diff < 0 {
			diff = -diff
		}
		if best == -1 || diff < bestDiff {
			best = i
			bestDiff = diff
		}
	}
	return best
}

// Normalize turns an upstream forecast into a Snapshot as of now.
func Normalize(f *Forecast, now time.Time) (*Snapshot, error) {
	zone := f.Zone
	if zone == nil {
		zone = time.UTC
	}
	localNow := now.In(zone)

	var closest *Reading
	if i := ClosestHour(f.Hourly, now); i >= 0 {
		closest = &f.Hourly[i]
	}

	current, err := mergeCurrent(f.Current, closest)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Current: CurrentConditions{
			Temperature:   roundOrZero(current.Temperature),
			FeelsLike:     roundOrZero(current.FeelsLike),
			Humidity:      roundOrZero(current.Humidity),
			WindSpeed:     roundOrZero(current.WindSpeed),
			WindDirection: roundOrZero(current.WindDirection),
			Pressure:      roundOrZero(current.Pressure),
			Precipitation: roundOrZero(current.Precipitation),
			CloudCover:    roundOrZero(current.CloudCover),
			ConditionCode: knownOrUnknown(current.Condition),
			Timestamp:     current.Time,
		},
		Hourly:    todaysHours(f.Hourly, localNow, zone),
		Daily:     days(f.Daily, zone),
		FetchedAt: now,
	}
	snap.Current.ConditionText = snap.Current.ConditionCode.Text()
	if len(f.Daily) > 0 {
		snap.Current.UVIndex = roundOrZero(f.Daily[0].UVIndexMax)
	}
	snap.Current.IsDay = isDay(current, f.Daily, localNow)

	return snap, nil
}

// mergeCurrent picks the distinct current block when present and fills its
// gaps from the closest hour, or falls back to the closest hour entirely.
func mergeCurrent(current, closest *Reading) (Reading, error) {
	switch {
	case current == nil && closest == nil:
		return Reading{}, ErrNoCurrentConditions
	case current == nil:
		return *closest, nil
	case closest == nil:
		return *current, nil
	}

	merged := *current
	fill(&merged.Temperature, closest.Temperature)
	fill(&merged.FeelsLike, closest.FeelsLike)
	fill(&merged.Humidity, closest.Humidity)
	fill(&merged.WindSpeed, closest.WindSpeed)
	fill(&merged.WindDirection, closest.WindDirection)
	fill(&merged.Pressure, closest.Pressure)
	fill(&merged.Precipitation, closest.Precipitation)
	fill(&merged.CloudCover, closest.CloudCover)
	if merged.IsDay == nil {
		merged.IsDay = closest.IsDay
	}
	if !merged.Condition.Known() && closest.Condition.Known() {
		merged.Condition = closest.Condition
	}
	if merged.Time.IsZero() {
		merged.Time = closest.Time
	}
	return merged, nil
}

func fill(dst **float64, src *float64) {
	if *dst == nil {
		*dst = src
	}
}

func knownOrUnknown(c Condition) Condition {
	if c.Known() {
		return c
	}
	return ConditionUnknown
}

// isDay prefers the upstream flag, then today's sunrise/sunset, then 06:00-18:00.
func isDay(current Reading, daily []DailyReading, localNow time.Time) bool {
	if current.IsDay != nil {
		return *current.IsDay
	}
	at := current.Time
	if at.IsZero() {
		at = localNow
	}
	if len(daily) > 0 && daily[0].Sunrise != nil && daily[0].Sunset != nil {
		return !at.Before(*daily[0].Sunrise) && at.Before(*daily[0].Sunset)
	}
	hour := at.In(localNow.Location()).Hour()
	return hour >= 6 && hour < 18
}

func todaysHours(hourly []Reading, localNow time.Time, zone *time.Location) []HourPoint {
	y, m, d := localNow.Date()
	points := make([]HourPoint, 0, 24)
	for _, h := range hourly {
		local := h.Time.In(zone)
		hy, hm, hd := local.Date()
		if hy != y || hm != m || hd != d {
			continue
		}
		points = append(points, HourPoint{
			TimeOfDay:     local.Format("15:04"),
			Temperature:   roundOrZero(h.Temperature),
			ConditionCode: knownOrUnknown(h.Condition),
		})
	}
	return points
}

func days(daily []DailyReading, zone *time.Location) []DayPoint {
	n := len(daily)
	if n > MaxDailyPoints {
		n = MaxDailyPoints
	}
	points := make([]DayPoint, 0, n)
	for _, d := range daily[:n] {
		p := DayPoint{
			Date:                     d.Date.In(zone).Format("2006-01-02"),
			TemperatureMax:           roundOrZero(d.TemperatureMax),
			TemperatureMin:           roundOrZero(d.TemperatureMin),
			ConditionCode:            knownOrUnknown(d.Condition),
			PrecipitationProbability: roundPtr(d.PrecipitationProbability),
			WindSpeedMax:             roundPtr(d.WindSpeedMax),
			UVIndexMax:               d.UVIndexMax,
		}
		if d.PrecipitationSum != nil {
			p.PrecipitationAmount = *d.PrecipitationSum
		}
		if d.Sunrise != nil {
			p.Sunrise = d.Sunrise.In(zone).Format("15:04")
		}
		if d.Sunset != nil {
			p.Sunset = d.Sunset.In(zone).Format("15:04")
		}
		points = append(points, p)
	}
	return points
}
