// Package publish exposes a saved snapshot under an unguessable public share id.
package publish

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"strings"
	"time"

	"minisite/core/snapshot"
	"minisite/model"
	"minisite/storage"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

var (
	// ErrTargetMissing means no snapshot key was given.
	ErrTargetMissing = errs.Class("publish target missing")
	// ErrSnapshotNotFound means the snapshot to publish does not exist or belongs to another project.
	ErrSnapshotNotFound = errs.Class("snapshot not found")
)

const (
	// PlayersPrefix is the public key prefix of published players.
	PlayersPrefix = "public/players/"
	// ManifestVersion is written into every manifest.
	ManifestVersion = 1

	shareIDBytes = 8
)

// SnapshotReader looks up snapshots by key; the master-save service satisfies it.
type SnapshotReader interface {
	GetSnapshot(ctx context.Context, key string) (*model.Snapshot, error)
}

// Recorder keeps a history of publications.
type Recorder interface {
	RecordPublication(ctx context.Context, rec *model.PublicationRecord) error
}

// Result is what a publish returns to the caller.
type Result struct {
	ShareID     string
	PublicURL   string
	ManifestKey string
	PageKey     string
	PublishedAt string
	Manifest    model.Manifest
}

// Publisher writes public manifests and player pages.
type Publisher struct {
	store     storage.ObjectStore
	baseURL   string
	verifier  SnapshotReader
	recorders []Recorder
	clock     func() time.Time
	random    io.Reader
	log       *zap.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithBaseURL sets the public base URL joined with object keys.
func WithBaseURL(u string) Option {
	return func(p *Publisher) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithVerifier makes Publish reject snapshot keys that do not exist.
func WithVerifier(r SnapshotReader) Option {
	return func(p *Publisher) { p.verifier = r }
}

// WithRecorder records every publication with r. Recorders run in the order they were added.
func WithRecorder(r Recorder) Option {
	return func(p *Publisher) { p.recorders = append(p.recorders, r) }
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(p *Publisher) { p.clock = clock }
}

// WithRandom overrides the entropy source for share ids.
func WithRandom(r io.Reader) Option {
	return func(p *Publisher) { p.random = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.log = l
		}
	}
}

// NewPublisher creates a Publisher writing to store.
func NewPublisher(store storage.ObjectStore, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		clock:  time.Now,
		random: rand.Reader,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish writes manifest.json and index.html for snapshotKey under a fresh share id.
// Nothing is copied from the snapshot itself; the manifest only points at it.
func (p *Publisher) Publish(ctx context.Context, projectID, snapshotKey string) (*Result, error) {
	if err := snapshot.ValidateProjectID(projectID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(snapshotKey) == "" {
		return nil, ErrTargetMissing.New("snapshotKey is required")
	}

	if p.verifier != nil {
		snap, err := p.verifier.GetSnapshot(ctx, snapshotKey)
		if err != nil {
			return nil, err
		}
		if snap == nil {
			return nil, ErrSnapshotNotFound.New("%s", snapshotKey)
		}
		if snap.ProjectID != projectID {
			return nil, ErrSnapshotNotFound.New("%s does not belong to project %s", snapshotKey, projectID)
		}
	}

	shareID, err := p.newShareID()
	if err != nil {
		return nil, err
	}

	prefix := PlayersPrefix + shareID + "/"
	res := &Result{
		ShareID:     shareID,
		ManifestKey: prefix + "manifest.json",
		PageKey:     prefix + "index.html",
		PublishedAt: model.FormatTime(p.clock()),
	}
	res.Manifest = model.Manifest{
		OK:          true,
		ProjectID:   projectID,
		SnapshotKey: snapshotKey,
		ShareID:     shareID,
		PublishedAt: res.PublishedAt,
		Version:     ManifestVersion,
	}
	res.PublicURL = p.PublicURL(res.PageKey)

	manifest, err := json.Marshal(res.Manifest)
	if err != nil {
		return nil, err
	}
	if _, err := p.store.Put(ctx, res.ManifestKey, manifest, storage.PutOptions{
		ContentType:  storage.ContentTypeJSON,
		CacheControl: "no-cache",
		Public:       true,
	}); err != nil {
		return nil, err
	}

	page, err := renderPage(shareID)
	if err != nil {
		return nil, err
	}
	if _, err := p.store.Put(ctx, res.PageKey, page, storage.PutOptions{
		ContentType:  storage.ContentTypeHTML,
		CacheControl: "public, max-age=300",
		Public:       true,
	}); err != nil {
		return nil, err
	}

	p.log.Info("published minisite",
		zap.String("projectId", projectID),
		zap.String("shareId", shareID),
		zap.String("snapshotKey", snapshotKey),
		zap.String("publicUrl", res.PublicURL))

	if len(p.recorders) > 0 {
		publishedAt, _ := time.Parse(model.TimeLayout, res.PublishedAt)
		rec := &model.PublicationRecord{
			ShareID:     shareID,
			ProjectID:   projectID,
			SnapshotKey: snapshotKey,
			ManifestKey: res.ManifestKey,
			PublicURL:   res.PublicURL,
			PublishedAt: publishedAt,
		}
		// 记录失败不影响发布结果
		for _, r := range p.recorders {
			if err := r.RecordPublication(ctx, rec); err != nil {
				p.log.Warn("failed to record publication", zap.String("shareId", shareID), zap.Error(err))
			}
		}
	}
	return res, nil
}

// PublicURL joins the base URL with key, or returns a root-relative path without one.
func (p *Publisher) PublicURL(key string) string {
	if p.baseURL == "" {
		return "/" + key
	}
	return p.baseURL + "/" + key
}

func (p *Publisher) newShareID() (string, error) {
	buf := make([]byte, shareIDBytes)
	if _, err := io.ReadFull(p.random, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
