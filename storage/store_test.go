package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]ObjectStore {
	fsStore, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	return map[string]ObjectStore{
		"memory": NewMemoryStore(),
		"fs":     fsStore,
	}
}

func TestGetJSONAbsentIsNotAnError(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var dst map[string]interface{}
			found, err := GetJSON(context.Background(), s, "storage/projects/x/latest.json", &dst)
			require.NoError(t, err)
			assert.False(t, found)
			assert.Nil(t, dst)
		})
	}
}

func TestPutGetJSONRoundTrip(t *testing.T) {
	type pointer struct {
		Key string `json:"key"`
	}
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, PutJSON(ctx, s, "a/b/c.json", pointer{Key: "v1"}))
			require.NoError(t, PutJSON(ctx, s, "a/b/c.json", pointer{Key: "v2"}))

			var got pointer
			found, err := GetJSON(ctx, s, "a/b/c.json", &got)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "v2", got.Key)

			raw, err := s.Get(ctx, "a/b/c.json")
			require.NoError(t, err)
			assert.JSONEq(t, `{"key":"v2"}`, string(raw))
		})
	}
}

func TestPutBinaryReturnsContentETag(t *testing.T) {
	data := []byte("RIFF....WAVE")
	sum := md5.Sum(data)
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			etag, err := PutBinary(context.Background(), s, "audio/1.wav", data, "audio/wav")
			require.NoError(t, err)
			assert.Equal(t, hex.EncodeToString(sum[:]), etag)
		})
	}
}

func TestGetJSONUndecodableIsAnError(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Put(ctx, "broken.json", []byte("{not json"), PutOptions{})
			require.NoError(t, err)

			var dst map[string]interface{}
			found, err := GetJSON(ctx, s, "broken.json", &dst)
			assert.True(t, found)
			assert.Error(t, err)
			assert.False(t, ErrUnavailable.Has(err))
		})
	}
}

func TestCancelledContextIsUnavailable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Put(ctx, "a.json", []byte("{}"), PutOptions{})
			assert.True(t, ErrUnavailable.Has(err))
			_, err = s.Get(ctx, "a.json")
			assert.True(t, ErrUnavailable.Has(err))
		})
	}
}

func TestCleanKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"storage/projects/1/latest.json", "storage/projects/1/latest.json", true},
		{"/public/players/ab/index.html", "public/players/ab/index.html", true},
		{"", "", false},
		{"dir/", "", false},
		{"a//b", "", false},
		{"a/../b", "", false},
		{"./a", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CleanKey(tt.in)
			if !tt.ok {
				assert.True(t, errors.Is(err, ErrInvalidKey))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListIsSortedByKey(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"p/b.json", "p/a.json", "q/c.json"} {
				_, err := s.Put(ctx, k, []byte("{}"), PutOptions{})
				require.NoError(t, err)
			}
			objects, err := s.(Lister).List(ctx, "p/")
			require.NoError(t, err)
			require.Len(t, objects, 2)
			assert.Equal(t, "p/a.json", objects[0].Key)
			assert.Equal(t, "p/b.json", objects[1].Key)
			assert.Equal(t, int64(2), Stats(objects).TotalObjects)
		})
	}
}

func TestFSStoreWatchPrefix(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan string, 8)
	done := make(chan error, 1)
	go func() {
		done <- s.WatchPrefix(ctx, "storage/projects/1/producer_returns", func(key string) {
			select {
			case changes <- key:
			default:
			}
		})
	}()

	// Keep writing until the watcher is armed and reports the pointer.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case key := <-changes:
			assert.Equal(t, "storage/projects/1/producer_returns/latest.json", key)
			cancel()
			require.NoError(t, <-done)
			return
		case <-tick.C:
			_, err := s.Put(context.Background(), "storage/projects/1/producer_returns/latest.json", []byte("{}"), PutOptions{})
			require.NoError(t, err)
		case <-deadline:
			t.Fatal("no change reported")
		}
	}
}
