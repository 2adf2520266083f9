package snapshot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"minisite/model"
	"minisite/storage"
)

// stepClock advances one second per reading.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// faultStore fails writes to keys with the given suffix while failing is set.
type faultStore struct {
	*storage.MemoryStore
	mu      sync.Mutex
	suffix  string
	failing bool
}

func (f *faultStore) failPuts(suffix string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suffix, f.failing = suffix, true
}

func (f *faultStore) Put(ctx context.Context, key string, data []byte, opts storage.PutOptions) (storage.ObjectInfo, error) {
	f.mu.Lock()
	fail := f.failing && strings.HasSuffix(key, f.suffix)
	f.mu.Unlock()
	if fail {
		return storage.ObjectInfo{}, storage.ErrUnavailable.Wrap(errors.New("injected put failure"))
	}
	return f.MemoryStore.Put(ctx, key, data, opts)
}

type recordingNotifier struct {
	mu       sync.Mutex
	pointers []model.LatestPointer
	sections []model.Section
}

func (n *recordingNotifier) SnapshotSaved(ctx context.Context, pointer model.LatestPointer, section model.Section) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pointers = append(n.pointers, pointer)
	n.sections = append(n.sections, section)
}

func newTestService(store storage.ObjectStore, opts ...Option) *Service {
	clock := newStepClock()
	return NewService(store, append([]Option{WithClock(clock.Now)}, opts...)...)
}

func songDoc(titles ...string) *model.Project {
	p := &model.Project{}
	for i, title := range titles {
		p.Catalog.Songs = append(p.Catalog.Songs, model.Song{Slot: i + 1, Title: title})
	}
	return p
}
