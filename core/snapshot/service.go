// Package snapshot implements the master-save protocol: building snapshots, writing them
// append-only with a latest pointer, reading the latest state back and patching one section.
package snapshot

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"minisite/core/project"
	"minisite/model"
	"minisite/storage"

	"go.uber.org/zap"
)

// Notifier is told about every snapshot that became the latest one.
type Notifier interface {
	SnapshotSaved(ctx context.Context, pointer model.LatestPointer, section model.Section)
}

// SaveResult describes a completed (or half-completed) master save.
type SaveResult struct {
	SnapshotKey string
	LatestKey   string
	Snapshot    *model.Snapshot
	// IgnoredLocked lists the locked paths the save was not allowed to change.
	IgnoredLocked []string
}

// Latest is the resolved latest state of a project.
type Latest struct {
	LatestKey string
	Pointer   model.LatestPointer
	Snapshot  *model.Snapshot
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithNotifier registers a listener for successful saves.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithSongCount sets the number of catalog slots.
func WithSongCount(n int) Option {
	return func(s *Service) { s.builder = NewBuilder(n) }
}

// Service is the master-save service. It holds no per-project state: concurrent saves for one
// project race on the latest pointer and the last pointer write wins.
type Service struct {
	store    storage.ObjectStore
	builder  *Builder
	clock    func() time.Time
	log      *zap.Logger
	notifier Notifier

	stampMu   sync.Mutex
	lastStamp time.Time
}

// NewService creates a Service on top of store.
func NewService(store storage.ObjectStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		builder: NewBuilder(model.DefaultSongCount),
		clock:   time.Now,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SongCount returns the configured slot count.
func (s *Service) SongCount() int {
	return s.builder.SongCount()
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time {
	return s.clock()
}

// nextStamp returns a millisecond timestamp strictly after the previous one handed out,
// so two saves in this process never share a snapshot key.
func (s *Service) nextStamp() time.Time {
	s.stampMu.Lock()
	defer s.stampMu.Unlock()
	now := s.clock().UTC().Truncate(time.Millisecond)
	if !now.After(s.lastStamp) {
		now = s.lastStamp.Add(time.Millisecond)
	}
	s.lastStamp = now
	return now
}

// MasterSave builds a snapshot of doc, writes it, then points the project's latest pointer at it.
//
// Locked connections, glues and album fields of the current latest snapshot are kept: doc's
// changes to them are dropped and reported in SaveResult.IgnoredLocked.
//
// The snapshot write completes before the pointer write starts. If the snapshot write fails the
// pointer is not touched and an ErrSnapshotWrite error is returned. If only the pointer write
// fails, the result still carries the snapshot key together with an ErrPointerWrite error.
func (s *Service) MasterSave(ctx context.Context, projectID string, doc *model.Project, section model.Section) (*SaveResult, error) {
	if err := ValidateProjectID(projectID); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, project.ErrInvalidDocument.New("missing project document")
	}

	next, err := doc.Clone()
	if err != nil {
		return nil, project.ErrInvalidDocument.Wrap(err)
	}
	if err := project.Normalize(next, s.SongCount()); err != nil {
		return nil, err
	}

	prev, err := s.previous(ctx, projectID)
	if err != nil {
		return nil, err
	}
	var ignored []string
	if prev != nil {
		ignored = project.EnforceLocks(prev, next)
	}
	if len(ignored) > 0 {
		s.log.Warn("save touched locked values",
			zap.String("projectId", projectID),
			zap.String("section", string(section)),
			zap.Strings("ignored", ignored))
	}

	res, err := s.write(ctx, projectID, next, section, true)
	if res != nil {
		res.IgnoredLocked = ignored
	}
	return res, err
}

// Initialize writes doc as the first snapshot of a new project without marking any section saved.
func (s *Service) Initialize(ctx context.Context, projectID string, doc *model.Project) (*SaveResult, error) {
	if err := ValidateProjectID(projectID); err != nil {
		return nil, err
	}
	return s.write(ctx, projectID, doc, "", false)
}

// RecordPublication stores the publish info of rec on the project's latest snapshot.
// The write is not a master save: section stamps and lastMasterSaveAt are left as they are.
func (s *Service) RecordPublication(ctx context.Context, rec *model.PublicationRecord) error {
	latest, err := s.GetLatest(ctx, rec.ProjectID)
	if err != nil {
		return err
	}
	if latest == nil {
		return ErrInvalidRequest.New("project %s has no snapshot to publish", rec.ProjectID)
	}

	p, err := latest.Snapshot.Project.Clone()
	if err != nil {
		return project.ErrInvalidDocument.Wrap(err)
	}
	p.Publish = model.PublishInfo{
		LastShareID:   rec.ShareID,
		LastPublicURL: rec.PublicURL,
		ManifestKey:   rec.ManifestKey,
		PublishedAt:   model.FormatTime(rec.PublishedAt),
		SnapshotKey:   rec.SnapshotKey,
	}
	_, err = s.write(ctx, rec.ProjectID, p, "", false)
	return err
}

// previous returns the project of the latest snapshot, or nil when there is none to hold locks.
// An unreadable latest state is logged and treated as absent so a full save can repair it.
func (s *Service) previous(ctx context.Context, projectID string) (*model.Project, error) {
	latest, err := s.GetLatest(ctx, projectID)
	switch {
	case ErrDanglingPointer.Has(err), project.ErrInvalidDocument.Has(err):
		s.log.Warn("ignoring unreadable latest snapshot",
			zap.String("projectId", projectID),
			zap.Error(err))
		return nil, nil
	case err != nil:
		return nil, err
	case latest == nil:
		return nil, nil
	}
	return latest.Snapshot.Project, nil
}

// write builds doc, writes the snapshot and then the latest pointer. stamp marks the save as a
// master save of section.
func (s *Service) write(ctx context.Context, projectID string, doc *model.Project, section model.Section, stamp bool) (*SaveResult, error) {
	now := s.nextStamp()
	built, err := s.builder.build(projectID, doc, section, now, stamp)
	if err != nil {
		return nil, err
	}

	ts := model.FormatTime(now)
	snapshotKey := SnapshotKey(projectID, now)
	latestKey := LatestKey(projectID)
	built.Master.LastSnapshotKey = snapshotKey

	snap := &model.Snapshot{
		ProjectID:     projectID,
		SnapshotKey:   snapshotKey,
		MasterSavedAt: ts,
		Section:       section,
		Project:       built,
	}
	if err := storage.PutJSON(ctx, s.store, snapshotKey, snap); err != nil {
		s.log.Error("snapshot write failed",
			zap.String("projectId", projectID),
			zap.String("snapshotKey", snapshotKey),
			zap.Error(err))
		return nil, ErrSnapshotWrite.Wrap(err)
	}

	pointer := model.LatestPointer{
		ProjectID:         projectID,
		LatestSnapshotKey: snapshotKey,
		LastMasterSaveAt:  built.MasterSave.LastMasterSaveAt,
	}
	result := &SaveResult{SnapshotKey: snapshotKey, LatestKey: latestKey, Snapshot: snap}
	if err := storage.PutJSON(ctx, s.store, latestKey, pointer); err != nil {
		s.log.Error("latest pointer write failed",
			zap.String("projectId", projectID),
			zap.String("snapshotKey", snapshotKey),
			zap.Error(err))
		return result, ErrPointerWrite.Wrap(err)
	}

	s.log.Info("snapshot written",
		zap.String("projectId", projectID),
		zap.String("section", string(section)),
		zap.Bool("masterSave", stamp),
		zap.String("snapshotKey", snapshotKey))

	if s.notifier != nil {
		s.notifier.SnapshotSaved(ctx, pointer, section)
	}
	return result, nil
}

// GetLatest resolves the latest pointer and the snapshot it names.
// It returns (nil, nil) when the project has no latest snapshot yet.
func (s *Service) GetLatest(ctx context.Context, projectID string) (*Latest, error) {
	if err := ValidateProjectID(projectID); err != nil {
		return nil, err
	}

	latestKey := LatestKey(projectID)
	var pointer model.LatestPointer
	found, err := s.readJSON(ctx, latestKey, &pointer)
	if err != nil {
		return nil, err
	}
	if !found || pointer.LatestSnapshotKey == "" {
		return nil, nil
	}

	snap, err := s.GetSnapshot(ctx, pointer.LatestSnapshotKey)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, ErrDanglingPointer.New("%s names missing snapshot %s", latestKey, pointer.LatestSnapshotKey)
	}
	return &Latest{LatestKey: latestKey, Pointer: pointer, Snapshot: snap}, nil
}

// GetSnapshot reads one snapshot by key. It returns (nil, nil) when the key does not exist.
func (s *Service) GetSnapshot(ctx context.Context, key string) (*model.Snapshot, error) {
	if !IsSnapshotKey(key) {
		return nil, ErrInvalidRequest.New("not a snapshot key: %q", key)
	}

	var raw struct {
		model.Snapshot
		Project json.RawMessage `json:"project"`
	}
	found, err := s.readJSON(ctx, key, &raw)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	snap := raw.Snapshot
	if len(raw.Project) == 0 || string(raw.Project) == "null" {
		snap.Project = project.NewSkeleton(snap.ProjectID, s.SongCount(), s.clock())
		return &snap, nil
	}
	doc, err := project.Decode(raw.Project)
	if err != nil {
		return nil, err
	}
	if err := project.Normalize(doc, s.SongCount()); err != nil {
		return nil, err
	}
	snap.Project = doc
	return &snap, nil
}

// readJSON reads key into dst, classifying undecodable objects as invalid documents.
func (s *Service) readJSON(ctx context.Context, key string, dst interface{}) (bool, error) {
	found, err := storage.GetJSON(ctx, s.store, key, dst)
	if err != nil && !storage.ErrUnavailable.Has(err) {
		return found, project.ErrInvalidDocument.Wrap(err)
	}
	return found, err
}
