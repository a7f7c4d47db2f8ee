package aggregator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var (
	// ErrNoResult is returned when nothing has been committed yet.
	ErrNoResult = errors.New("no aggregation result committed")

	// ErrIndexOutOfRange is returned by Activate for an invalid index.
	ErrIndexOutOfRange = errors.New("entry index out of range")

	// ErrSuperseded is returned by Activate when a newer cycle committed
	// while the entry's weather was loading.
	ErrSuperseded = errors.New("result superseded by a newer cycle")
)

// Session serialises aggregation cycles for one view. Every Load takes a new
// generation number; a result is committed only when its generation is newer
// than the committed one, so a slow cycle can never overwrite a later one.
type Session struct {
	agg      *Aggregator
	defaults Options
	logger   zerolog.Logger

	next atomic.Uint64

	mu        sync.RWMutex
	committed *Result
	lastOpts  *Options
}

// NewSession creates a Session. defaults are used by Refresh until the first
// Load supplies options.
func NewSession(agg *Aggregator, defaults Options, logger zerolog.Logger) *Session {
	return &Session{agg: agg, defaults: defaults, logger: logger}
}

// Load runs a cycle and commits it if still current. The returned bool
// reports whether the result was committed.
func (s *Session) Load(ctx context.Context, opts Options) (*Result, bool) {
	gen := s.next.Add(1)

	s.mu.Lock()
	o := opts
	s.lastOpts = &o
	s.mu.Unlock()

	result := s.agg.LoadAll(ctx, opts)
	result.Generation = gen

	return result, s.commit(result)
}

// Refresh re-runs the most recent Load's options with cache reads bypassed.
func (s *Session) Refresh(ctx context.Context) (*Result, bool) {
	s.mu.RLock()
	opts := s.defaults
	if s.lastOpts != nil {
		opts = *s.lastOpts
	}
	latest := s.committed
	s.mu.RUnlock()

	// Keep the user on the same place across refreshes.
	if latest != nil && latest.Active >= 0 {
		active := latest.Entries[latest.Active].Location
		opts.Selected = &active
	}
	opts.Refresh = true

	gen := s.next.Add(1)
	result := s.agg.LoadAll(ctx, opts)
	result.Generation = gen

	return result, s.commit(result)
}

// Latest returns a copy of the committed result.
func (s *Session) Latest() (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.committed == nil {
		return nil, ErrNoResult
	}
	return clone(s.committed), nil
}

// Activate makes entry index the active one, loading its weather first when
// it was deferred.
func (s *Session) Activate(ctx context.Context, index int) (*Result, error) {
	s.mu.RLock()
	base := s.committed
	s.mu.RUnlock()

	if base == nil {
		return nil, ErrNoResult
	}
	if index < 0 || index >= len(base.Entries) {
		return nil, ErrIndexOutOfRange
	}

	fetched := clone(base)
	s.agg.FetchEntry(ctx, fetched.Entries, index, false)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.committed.Generation != base.Generation {
		return nil, ErrSuperseded
	}

	// Merge into what is committed now; a concurrent activation of the same
	// generation may already have loaded other entries, or this one.
	merged := clone(s.committed)
	merged.Active = index
	if merged.Entries[index].Weather == nil {
		merged.Entries[index] = fetched.Entries[index]
	}
	s.committed = merged
	return clone(merged), nil
}

func (s *Session) commit(result *Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.committed != nil && result.Generation <= s.committed.Generation {
		s.logger.Debug().
			Uint64("generation", result.Generation).
			Uint64("committed", s.committed.Generation).
			Msg("stale aggregation result discarded")
		return false
	}
	s.committed = result
	return true
}

func clone(r *Result) *Result {
	out := *r
	out.Entries = append([]Entry(nil), r.Entries...)
	return &out
}
