// Package cities persists the user's saved city list and manages additions
// and removals.
package cities

import (
	"context"
	"encoding/json"
	"fmt"
)

// StorageKey is the single key the saved list is serialised under.
const StorageKey = "savedCityNames"

// Record is the only city data ever persisted. Weather values are always
// re-fetched so a relaunch never shows stale readings.
type Record struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Store reads and writes the saved list as one JSON document.
type Store struct {
	kv KV
}

// NewStore creates a Store over kv.
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// List returns the saved records in stored order. A missing key is an empty list.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	raw, ok, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		return nil, fmt.Errorf("reading saved cities: %w", err)
	}
	if !ok || raw == "" {
		return []Record{}, nil
	}

	var records []Record
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("decoding saved cities: %w", err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Save replaces the saved list.
func (s *Store) Save(ctx context.Context, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding saved cities: %w", err)
	}
	if err := s.kv.Set(ctx, StorageKey, string(raw)); err != nil {
		return fmt.Errorf("writing saved cities: %w", err)
	}
	return nil
}
