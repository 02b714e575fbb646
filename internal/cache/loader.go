package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// LoaderConfig holds configuration for a Loader.
type LoaderConfig struct {
	// Store holds encoded payloads. Required.
	Store Store

	// TTL is how long a payload is served without refetching.
	// Default: 10 minutes
	TTL time.Duration

	// StaleIfError keeps payloads this long past TTL to serve when the
	// upstream call fails.
	// Default: 1 hour
	StaleIfError time.Duration

	// Logger for cache operations.
	Logger zerolog.Logger
}

// Loader fronts provider calls with a Store. Concurrent misses for the same
// key share one upstream call.
type Loader struct {
	store        Store
	ttl          time.Duration
	staleIfError time.Duration
	group        singleflight.Group
	logger       zerolog.Logger
	now          func() time.Time
}

// NewLoader creates a Loader.
func NewLoader(cfg LoaderConfig) *Loader {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.StaleIfError <= 0 {
		cfg.StaleIfError = time.Hour
	}
	return &Loader{
		store:        cfg.Store,
		ttl:          cfg.TTL,
		staleIfError: cfg.StaleIfError,
		logger:       cfg.Logger,
		now:          time.Now,
	}
}

type envelope struct {
	StoredAt time.Time       `json:"stored_at"`
	Value    json.RawMessage `json:"value"`
}

// Load returns the cached value for key, or calls fetch and caches its
// result. If fetch fails and a stale value is still held, the stale value is
// returned. Store errors are logged and otherwise ignored.
func Load[T any](ctx context.Context, l *Loader, key string, fetch func(context.Context) (T, error)) (T, error) {
	var zero T

	stale, fresh := l.lookup(ctx, key)
	if fresh {
		var v T
		if err := json.Unmarshal(stale.Value, &v); err == nil {
			return v, nil
		}
	}

	raw, err, _ := l.group.Do(key, func() (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		l.save(ctx, key, b)
		return b, nil
	})
	if err != nil {
		if stale != nil {
			var v T
			if json.Unmarshal(stale.Value, &v) == nil {
				l.logger.Warn().
					Str("key", key).
					Time("stored_at", stale.StoredAt).
					Err(err).
					Msg("serving stale payload due to provider error")
				return v, nil
			}
		}
		return zero, err
	}

	var v T
	if err := json.Unmarshal(raw.([]byte), &v); err != nil {
		return zero, err
	}
	return v, nil
}

// lookup returns the stored envelope, if any, and whether it is within TTL.
func (l *Loader) lookup(ctx context.Context, key string) (*envelope, bool) {
	b, err := l.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			l.logger.Warn().Str("key", key).Err(err).Msg("cache read failed")
		}
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		l.logger.Warn().Str("key", key).Err(err).Msg("discarding corrupt cache entry")
		return nil, false
	}
	return &env, l.now().Sub(env.StoredAt) < l.ttl
}

func (l *Loader) save(ctx context.Context, key string, value []byte) {
	b, err := json.Marshal(envelope{StoredAt: l.now().UTC(), Value: value})
	if err != nil {
		return
	}
	if err := l.store.Set(ctx, key, b, l.ttl+l.staleIfError); err != nil {
		l.logger.Warn().Str("key", key).Err(err).Msg("cache write failed")
	}
}
