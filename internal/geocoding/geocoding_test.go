package geocoding_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weatherdeck/weatherdeck/internal/failure"
	"github.com/weatherdeck/weatherdeck/internal/geocoding"
)

type fakeSearcher struct {
	mu        sync.Mutex
	results   []geocoding.Result
	err       error
	lastQuery string
	lastLimit int
}

func (f *fakeSearcher) Name() string { return "fake" }

func (f *fakeSearcher) Search(_ context.Context, query string, limit int) ([]geocoding.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = query
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.results) {
		return f.results[:limit], nil
	}
	return f.results, nil
}

func newService(s geocoding.Searcher) *geocoding.Service {
	return geocoding.NewService(geocoding.ServiceConfig{
		Searcher: s,
		Logger:   zerolog.Nop(),
		NewID:    func() string { return "generated" },
	})
}

func TestResolveCityName_FirstResultWins(t *testing.T) {
	searcher := &fakeSearcher{results: []geocoding.Result{
		{ID: "3936456", Name: "Lima", Region: "Lima", Country: "Perú", Latitude: -12.04318, Longitude: -77.02824},
		{ID: "4517009", Name: "Lima", Region: "Ohio", Country: "Estados Unidos", Latitude: 40.74255, Longitude: -84.10523},
	}}

	loc, err := newService(searcher).ResolveCityName(context.Background(), "  Lima ")
	require.NoError(t, err)

	assert.Equal(t, "3936456", loc.ID)
	assert.Equal(t, "Lima", loc.Name)
	assert.Equal(t, "Perú", loc.Country)
	lat, _, ok := loc.Coordinates()
	require.True(t, ok)
	assert.Equal(t, -12.04318, lat)
	assert.Equal(t, "Lima", searcher.lastQuery, "query is trimmed")
	assert.Equal(t, 1, searcher.lastLimit)
}

func TestResolveCityName_GeneratesMissingID(t *testing.T) {
	searcher := &fakeSearcher{results: []geocoding.Result{{Name: "Cusco", Latitude: -13.5, Longitude: -71.9}}}

	loc, err := newService(searcher).ResolveCityName(context.Background(), "Cusco")
	require.NoError(t, err)
	assert.Equal(t, "generated", loc.ID)
}

func TestResolveCityName_DefaultIDIsUUID(t *testing.T) {
	svc := geocoding.NewService(geocoding.ServiceConfig{
		Searcher: &fakeSearcher{results: []geocoding.Result{{Name: "Cusco"}}},
		Logger:   zerolog.Nop(),
	})
	loc, err := svc.ResolveCityName(context.Background(), "Cusco")
	require.NoError(t, err)
	assert.Len(t, loc.ID, 36)
}

func TestResolveCityName_NotFound(t *testing.T) {
	_, err := newService(&fakeSearcher{}).ResolveCityName(context.Background(), "Xyzzyville")

	assert.Equal(t, failure.KindLocationNotFound, failure.Classify(err))
	assert.ErrorIs(t, err, geocoding.ErrNoResults)
}

func TestResolveCityName_EmptyQuery(t *testing.T) {
	searcher := &fakeSearcher{}
	_, err := newService(searcher).ResolveCityName(context.Background(), "   ")

	assert.ErrorIs(t, err, geocoding.ErrEmptyQuery)
	assert.Equal(t, failure.KindLocationNotFound, failure.Classify(err))
	assert.Empty(t, searcher.lastQuery, "upstream is not called")
}

func TestResolveCityName_TransportFailure(t *testing.T) {
	cause := errors.New("connection refused")
	_, err := newService(&fakeSearcher{err: cause}).ResolveCityName(context.Background(), "Lima")

	assert.Equal(t, failure.KindGeocoding, failure.Classify(err))
	assert.ErrorIs(t, err, cause)
}

func TestSuggest(t *testing.T) {
	var results []geocoding.Result
	for _, name := range []string{"Santa Cruz", "Santa Marta", "Santa Fe", "Santander", "Santa Ana", "Santarém"} {
		results = append(results, geocoding.Result{ID: name, Name: name})
	}
	searcher := &fakeSearcher{results: results}
	svc := newService(searcher)

	got, err := svc.Suggest(context.Background(), "Santa", 0)
	require.NoError(t, err)
	assert.Len(t, got, geocoding.DefaultSuggestionLimit)
	assert.Equal(t, "Santa Cruz", got[0].Name)

	_, err = svc.Suggest(context.Background(), "Santa", 500)
	require.NoError(t, err)
	assert.Equal(t, geocoding.MaxSuggestionLimit, searcher.lastLimit)
}

func TestSuggest_EmptyResultIsNotAnError(t *testing.T) {
	got, err := newService(&fakeSearcher{}).Suggest(context.Background(), "Qwerty", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSuggest_Failure(t *testing.T) {
	_, err := newService(&fakeSearcher{err: errors.New("HTTP 500")}).Suggest(context.Background(), "Lim", 5)
	assert.Equal(t, failure.KindGeocoding, failure.Classify(err))
}
