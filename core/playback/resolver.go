// Package playback turns stored audio keys into short-lived URLs a browser can play.
package playback

import (
	"context"
	"time"

	"minisite/storage"

	"go.uber.org/zap"
)

// URLCache remembers resolved URLs. A miss is an empty string with a nil error.
type URLCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, url string, ttl time.Duration) error
}

// Resolver presigns storage keys and caches the result for part of the URL lifetime.
type Resolver struct {
	presigner storage.Presigner
	cache     URLCache
	ttl       time.Duration
	log       *zap.Logger
}

// NewResolver creates a Resolver. cache may be nil.
func NewResolver(presigner storage.Presigner, cache URLCache, ttl time.Duration, log *zap.Logger) *Resolver {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{presigner: presigner, cache: cache, ttl: ttl, log: log}
}

// cacheTTL keeps cached URLs well inside their signed lifetime.
func (r *Resolver) cacheTTL() time.Duration {
	return r.ttl * 4 / 5
}

// Resolve returns a playable URL for key. Cache failures are logged and bypassed.
func (r *Resolver) Resolve(ctx context.Context, key string) (string, error) {
	key, err := storage.CleanKey(key)
	if err != nil {
		return "", err
	}
	if r.presigner == nil {
		return "", storage.ErrPresignUnsupported
	}

	if r.cache != nil {
		url, err := r.cache.Get(ctx, key)
		if err != nil {
			r.log.Warn("playback cache read failed", zap.String("key", key), zap.Error(err))
		} else if url != "" {
			return url, nil
		}
	}

	url, err := r.presigner.PresignGet(ctx, key, r.ttl)
	if err != nil {
		return "", err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, url, r.cacheTTL()); err != nil {
			r.log.Warn("playback cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return url, nil
}
