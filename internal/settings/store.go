package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// StorageKey is the single versioned key the record is persisted under.
const StorageKey = "roteiro_settings_v2"

var ErrNotFound = errors.New("key not found")

// KV is opaque key/value storage for serialized records.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

type Store struct {
	kv       KV
	fallback map[Provider]string
}

type StoreOption func(*Store)

// WithFallbackKeys backfills empty credentials on load, typically from
// environment variables or a secret manager. Backfilled values are never
// written back, so a rotated fallback key takes effect on the next load.
func WithFallbackKeys(keys map[Provider]string) StoreOption {
	return func(s *Store) {
		s.fallback = keys
	}
}

func NewStore(kv KV, opts ...StoreOption) *Store {
	s := &Store{kv: kv}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the persisted record merged over the defaults. A missing or
// unreadable record yields the defaults.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	raw, err := s.kv.Get(ctx, StorageKey)
	switch {
	case errors.Is(err, ErrNotFound):
		raw = nil
	case err != nil:
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	loaded, err := Merge(raw)
	if err != nil {
		slog.Warn("Stored settings are corrupt, using defaults", "key", StorageKey, "error", err)
	}

	loaded.FillKeys(s.fallback)
	loaded.Normalize()

	return loaded, nil
}

func (s *Store) Save(ctx context.Context, settings Settings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("validate settings: %w", err)
	}

	data, err := json.Marshal(s.persisted(settings))
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	if err := s.kv.Put(ctx, StorageKey, data); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	slog.Debug("Settings saved", "key", StorageKey)
	return nil
}

// persisted returns the record as written to the KV: credentials equal to
// their fallback value are left empty.
func (s *Store) persisted(settings Settings) Settings {
	out := settings.Clone()
	for p, v := range s.fallback {
		if v != "" && out.Keys[p] == v {
			out.Keys[p] = ""
		}
	}
	return out
}
