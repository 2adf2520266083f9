package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// FSStore maps object keys onto files below a root directory.
// Each Put writes a temporary file and renames it into place, so readers never see a partial object.
type FSStore struct {
	root string
}

// NewFSStore creates the root directory if needed.
func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, ErrUnavailable.New("create root %s: %v", root, err)
	}
	return &FSStore{root: root}, nil
}

// Root returns the directory the store writes below.
func (s *FSStore) Root() string {
	return s.root
}

func (s *FSStore) path(key string) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Put writes data under key.
func (s *FSStore) Put(ctx context.Context, key string, data []byte, opts PutOptions) (ObjectInfo, error) {
	p, err := s.path(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, ErrUnavailable.Wrap(err)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return ObjectInfo{}, ErrUnavailable.Wrap(err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".put-*")
	if err != nil {
		return ObjectInfo{}, ErrUnavailable.Wrap(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return ObjectInfo{}, ErrUnavailable.Wrap(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return ObjectInfo{}, ErrUnavailable.Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return ObjectInfo{}, ErrUnavailable.Wrap(err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return ObjectInfo{}, ErrUnavailable.Wrap(err)
	}

	sum := md5.Sum(data)
	return ObjectInfo{
		Key:         strings.TrimLeft(key, "/"),
		Size:        int64(len(data)),
		ETag:        hex.EncodeToString(sum[:]),
		ContentType: opts.ContentType,
	}, nil
}

// Get reads the object stored under key.
func (s *FSStore) Get(ctx context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, ErrUnavailable.Wrap(err)
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, ErrUnavailable.Wrap(err)
	}
	return data, nil
}

// List walks the directory tree under prefix.
func (s *FSStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".put-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, ObjectInfo{Key: key, Size: fi.Size(), LastModified: fi.ModTime()})
		return nil
	})
	if err != nil {
		return nil, ErrUnavailable.Wrap(err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// WatchPrefix calls onChange with the key of every object written directly below dirKey
// until ctx is cancelled. The directory is created if it does not exist yet.
func (s *FSStore) WatchPrefix(ctx context.Context, dirKey string, onChange func(key string)) error {
	dirKey = strings.Trim(dirKey, "/")
	dir := filepath.Join(s.root, filepath.FromSlash(dirKey))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ErrUnavailable.Wrap(err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(event.Name)
			if strings.HasPrefix(name, ".put-") {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			onChange(dirKey + "/" + name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
}
