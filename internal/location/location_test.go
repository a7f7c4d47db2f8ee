package location_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weatherdeck/weatherdeck/internal/location"
)

func TestIsDuplicate_NameIgnoresCase(t *testing.T) {
	a := location.New("1", "Lima", -12.0464, -77.0428)
	b := location.New("2", "LIMA", 40.0, 3.0)

	assert.True(t, location.IsDuplicate(a, b))
	assert.True(t, location.IsDuplicate(location.Placeholder("3", "lima"), a))
}

func TestIsDuplicate_NearbyCoordinates(t *testing.T) {
	a := location.New("1", "Miraflores", -12.1211, -77.0297)
	b := location.New("2", "Barranco", -12.1161, -77.0247)

	assert.True(t, location.IsDuplicate(a, b))
}

func TestIsDuplicate_FarCoordinates(t *testing.T) {
	a := location.New("1", "A", 10.00, 20.00)

	tests := []struct {
		name string
		b    location.Location
	}{
		{"latitude 0.02 apart", location.New("2", "B", 10.02, 20.00)},
		{"longitude 0.02 apart", location.New("2", "B", 10.00, 20.02)},
		{"both 0.02 apart", location.New("2", "B", 10.02, 20.02)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, location.IsDuplicate(a, tt.b))
		})
	}
}

func TestIsDuplicate_ExactlyAtThreshold(t *testing.T) {
	tests := []struct {
		name string
		a, b location.Location
	}{
		{"small magnitudes", location.New("1", "A", 0.1, 0.2), location.New("2", "B", 0.11, 0.21)},
		{"northern hemisphere", location.New("1", "A", 10.00, 20.00), location.New("2", "B", 10.01, 20.01)},
		{"lima", location.New("1", "A", -12.04, -77.04), location.New("2", "B", -12.05, -77.05)},
		{"turin", location.New("1", "A", 45.12, 7.68), location.New("2", "B", 45.13, 7.69)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, location.IsDuplicate(tt.a, tt.b))
			assert.True(t, location.IsDuplicate(tt.b, tt.a))
		})
	}
}

func TestIsDuplicate_JustOverThreshold(t *testing.T) {
	a := location.New("1", "A", -12.04, -77.04)
	b := location.New("2", "B", -12.0501, -77.04)

	assert.False(t, location.IsDuplicate(a, b))
}

func TestIsDuplicate_MissingCoordinates(t *testing.T) {
	a := location.New("1", "Quito", -0.2299, -78.5249)
	b := location.Placeholder("2", "Somewhere")

	assert.False(t, location.IsDuplicate(a, b))
	assert.False(t, location.IsDuplicate(b, a))
}

func TestIsDuplicate_Antimeridian(t *testing.T) {
	a := location.New("1", "East", 0, 179.998)
	b := location.New("2", "West", 0, -179.998)

	assert.True(t, location.IsDuplicate(a, b))
}

func TestDuplicateRule_CustomThreshold(t *testing.T) {
	rule := location.DuplicateRule{Threshold: 0.05}
	a := location.New("1", "A", 10.00, 20.00)
	b := location.New("2", "B", 10.03, 20.03)

	assert.True(t, rule.IsDuplicate(a, b))
	assert.False(t, location.IsDuplicate(a, b))
}

func TestIndexByName(t *testing.T) {
	list := []location.Location{
		location.Placeholder("1", "Lima"),
		location.Placeholder("2", "Bogotá"),
		location.Placeholder("3", "Quito"),
	}

	assert.Equal(t, 1, location.IndexByName(list, "bogotá"))
	assert.Equal(t, 2, location.IndexByName(list, " Quito "))
	assert.Equal(t, -1, location.IndexByName(list, "Caracas"))
	assert.Equal(t, -1, location.IndexByName(list, ""))
}

func TestLocation_Coordinates(t *testing.T) {
	lat, lon, ok := location.New("1", "A", 1.5, 2.5).Coordinates()
	assert.True(t, ok)
	assert.Equal(t, 1.5, lat)
	assert.Equal(t, 2.5, lon)

	_, _, ok = location.Placeholder("1", "A").Coordinates()
	assert.False(t, ok)
}

func TestDistanceKm(t *testing.T) {
	lima := location.New("1", "Lima", -12.0464, -77.0428)
	quito := location.New("2", "Quito", -0.2299, -78.5249)

	km, ok := location.DistanceKm(lima, quito)
	require.True(t, ok)
	assert.InDelta(t, 1325, km, 25)

	_, ok = location.DistanceKm(lima, location.Placeholder("3", "Bogotá"))
	assert.False(t, ok)
}
