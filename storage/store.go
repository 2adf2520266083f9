package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/zeebo/errs"
)

// ErrUnavailable classifies failures to reach or use the backing store.
var ErrUnavailable = errs.Class("storage unavailable")

// ErrNotExist is returned by Get when no object is stored under the key.
var ErrNotExist = errors.New("object does not exist")

// ErrInvalidKey is returned for keys that are empty or escape the key space.
var ErrInvalidKey = errors.New("invalid object key")

// ErrPresignUnsupported is returned by stores that cannot mint signed URLs.
var ErrPresignUnsupported = errors.New("presigned urls not supported by this store")

const (
	ContentTypeJSON = "application/json"
	ContentTypeHTML = "text/html; charset=utf-8"
)

// PutOptions describes how an object is written.
type PutOptions struct {
	ContentType  string
	CacheControl string
	Public       bool
}

// ObjectInfo is what a store reports after a write or during a listing.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
}

// ObjectStore is the whole-object key/value contract the protocol needs.
// Keys use "/" as a separator. Writes replace the full object.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// Lister is implemented by stores that can enumerate keys. Only tooling uses it.
type Lister interface {
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// Presigner is implemented by stores that can mint time-boxed read URLs.
type Presigner interface {
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// PutJSON encodes value and writes it under key.
func PutJSON(ctx context.Context, s ObjectStore, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = s.Put(ctx, key, data, PutOptions{ContentType: ContentTypeJSON})
	return err
}

// GetJSON reads key into dst. A missing object is reported as found=false with a nil error.
func GetJSON(ctx context.Context, s ObjectStore, key string, dst interface{}) (found bool, err error) {
	data, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// PutBinary writes raw bytes and returns the store's etag for them.
func PutBinary(ctx context.Context, s ObjectStore, key string, data []byte, contentType string) (string, error) {
	info, err := s.Put(ctx, key, data, PutOptions{ContentType: contentType})
	if err != nil {
		return "", err
	}
	return info.ETag, nil
}

// CleanKey validates a key and returns it without leading slashes.
func CleanKey(key string) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" || strings.HasSuffix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	if path.Clean(key) != key {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return key, nil
}
