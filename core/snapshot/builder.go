package snapshot

import (
	"time"

	"minisite/core/project"
	"minisite/model"
)

// titleSource marks titleJson records generated from the catalog.
const titleSource = "catalog"

// Builder turns an edited document into the normalized form that is stored in a snapshot.
// It is deterministic: the same inputs always produce the same output.
type Builder struct {
	songCount int
}

// NewBuilder creates a builder for projects with songCount slots.
func NewBuilder(songCount int) *Builder {
	if songCount <= 0 {
		songCount = model.DefaultSongCount
	}
	return &Builder{songCount: songCount}
}

// SongCount returns the configured slot count.
func (b *Builder) SongCount() int {
	return b.songCount
}

// Build normalizes doc for projectID and stamps it as saved by section at now.
// An empty section stamps every section, as a full master save does. doc is not modified.
func (b *Builder) Build(projectID string, doc *model.Project, section model.Section, now time.Time) (*model.Project, error) {
	return b.build(projectID, doc, section, now, true)
}

// build is Build with optional stamping. Without stamp only completeness is recomputed.
func (b *Builder) build(projectID string, doc *model.Project, section model.Section, now time.Time, stamp bool) (*model.Project, error) {
	if doc == nil {
		return nil, project.ErrInvalidDocument.New("missing project document")
	}
	if doc.ProjectID != "" && doc.ProjectID != projectID {
		return nil, project.ErrInvalidDocument.New("document projectId %q does not match %q", doc.ProjectID, projectID)
	}

	p, err := doc.Clone()
	if err != nil {
		return nil, project.ErrInvalidDocument.Wrap(err)
	}
	if err := project.Normalize(p, b.songCount); err != nil {
		return nil, err
	}

	ts := model.FormatTime(now)
	p.ProjectID = projectID
	if p.CreatedAt == "" {
		p.CreatedAt = ts
	}
	p.UpdatedAt = ts

	refreshTitleJSON(p, ts)
	seedAlbumTitles(p)
	if stamp {
		stampSections(p, section, ts)
	} else {
		refreshCompleteness(p)
	}
	return p, nil
}

// refreshTitleJSON regenerates the title mirror of every song from its title.
// A mirror that already matches keeps its timestamp so rebuilding is stable.
func refreshTitleJSON(p *model.Project, ts string) {
	for i := range p.Catalog.Songs {
		s := &p.Catalog.Songs[i]
		if s.Title == "" {
			s.TitleJSON = nil
			continue
		}
		if tj := s.TitleJSON; tj != nil && tj.Slot == s.Slot && tj.Title == s.Title && tj.Source == titleSource && tj.UpdatedAt != "" {
			continue
		}
		s.TitleJSON = &model.TitleJSON{
			Slot:      s.Slot,
			Title:     s.Title,
			UpdatedAt: ts,
			Source:    titleSource,
		}
	}
}

// seedAlbumTitles copies catalog titles into an empty album title list.
// Titles flow catalog -> album only on first population.
func seedAlbumTitles(p *model.Project) {
	if len(p.Album.SongTitles) > 0 {
		return
	}
	for _, s := range p.Catalog.Songs {
		if s.Title == "" {
			continue
		}
		t := model.SongTitle{Slot: s.Slot, Title: s.Title}
		if s.TitleJSON != nil {
			tj := *s.TitleJSON
			t.TitleJSON = &tj
		}
		p.Album.SongTitles = append(p.Album.SongTitles, t)
	}
}

func stampSections(p *model.Project, section model.Section, ts string) {
	for _, s := range model.AllSections {
		if section == "" || s == section {
			st := p.MasterSave.Sections[s]
			st.MasterSavedAt = ts
			p.MasterSave.Sections[s] = st
		}
	}
	refreshCompleteness(p)
	p.MasterSave.LastMasterSaveAt = ts

	p.Master.IsMasterSaved = true
	p.Master.MasterSavedAt = ts
}

func refreshCompleteness(p *model.Project) {
	complete := project.Completeness(p)
	allComplete := true
	for _, s := range model.AllSections {
		st := p.MasterSave.Sections[s]
		st.Complete = complete[s]
		p.MasterSave.Sections[s] = st
		allComplete = allComplete && st.Complete
	}
	p.Master.ProducerReturnReady = allComplete
}
