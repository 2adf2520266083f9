// Package project holds the rules for the project document: defaults, normalization,
// derived completeness, lock enforcement and the section merge used by page patches.
package project

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"minisite/model"

	"github.com/zeebo/errs"
)

// ErrInvalidDocument classifies documents that cannot be coerced into the required shape.
var ErrInvalidDocument = errs.Class("invalid project document")

// NewSkeleton returns the minimal document used when a project has no snapshot yet.
func NewSkeleton(projectID string, songCount int, now time.Time) *model.Project {
	ts := model.FormatTime(now)
	p := &model.Project{
		ProjectID: projectID,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	// A fresh skeleton has no slots to collide, so normalization cannot fail.
	_ = Normalize(p, songCount)
	return p
}

// Decode parses a stored or submitted document.
func Decode(data []byte) (*model.Project, error) {
	var p model.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, ErrInvalidDocument.Wrap(err)
	}
	return &p, nil
}

// ToMap converts a document into its generic JSON form for merging.
func ToMap(p *model.Project) (map[string]interface{}, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// FromMap converts the generic JSON form back into a typed document.
func FromMap(m map[string]interface{}) (*model.Project, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, ErrInvalidDocument.Wrap(err)
	}
	return Decode(data)
}

// Normalize fills missing sections with empty values and validates slot structure in place.
// Historical documents are tolerated as long as their slots are coherent.
func Normalize(p *model.Project, songCount int) error {
	if songCount <= 0 {
		songCount = model.DefaultSongCount
	}

	songs, err := padSlots(p.Catalog.Songs, songCount, "catalog.songs",
		func(s model.Song) int { return s.Slot },
		func(s model.Song, slot int) model.Song { s.Slot = slot; return s },
		func(slot int) model.Song { return model.Song{Slot: slot} })
	if err != nil {
		return err
	}
	p.Catalog.Songs = songs

	metas, err := padSlots(p.Meta.Songs, songCount, "meta.songs",
		func(m model.SongMeta) int { return m.Slot },
		func(m model.SongMeta, slot int) model.SongMeta { m.Slot = slot; return m },
		func(slot int) model.SongMeta { return model.SongMeta{Slot: slot} })
	if err != nil {
		return err
	}
	for i := range metas {
		normalizeCredits(&metas[i].Credits)
	}
	p.Meta.Songs = metas

	if err := normalizeAlbum(&p.Album, songCount); err != nil {
		return err
	}

	if p.Songs.Connections, err = normalizeConnections(p.Songs.Connections, songCount, "songs.connections"); err != nil {
		return err
	}
	if p.NFTMix.Glues, err = normalizeConnections(p.NFTMix.Glues, songCount, "nftMix.glues"); err != nil {
		return err
	}

	if p.MasterSave.Sections == nil {
		p.MasterSave.Sections = make(map[model.Section]model.SaveStatus, len(model.AllSections))
	}
	for _, s := range model.AllSections {
		if _, ok := p.MasterSave.Sections[s]; !ok {
			p.MasterSave.Sections[s] = model.SaveStatus{}
		}
	}
	return nil
}

// padSlots returns exactly n entries for slots 1..n. Explicit slots are placed first; an entry
// without a slot then takes its position if that is free, otherwise the first free slot.
// Entries beyond n or without room are dropped and duplicate explicit slots are rejected.
func padSlots[T any](items []T, n int, field string, slotOf func(T) int, withSlot func(T, int) T, empty func(int) T) ([]T, error) {
	bySlot := make(map[int]T, len(items))
	var slotless []int
	for i, item := range items {
		slot := slotOf(item)
		switch {
		case slot == 0:
			slotless = append(slotless, i)
			continue
		case slot < 0:
			return nil, ErrInvalidDocument.New("%s[%d]: slot %d out of range", field, i, slot)
		case slot > n:
			continue
		}
		if _, dup := bySlot[slot]; dup {
			return nil, ErrInvalidDocument.New("%s: duplicate slot %d", field, slot)
		}
		bySlot[slot] = withSlot(item, slot)
	}

	free := 1
	for _, i := range slotless {
		slot := i + 1
		if _, taken := bySlot[slot]; taken || slot > n {
			for ; free <= n; free++ {
				if _, taken := bySlot[free]; !taken {
					break
				}
			}
			if free > n {
				break
			}
			slot = free
		}
		bySlot[slot] = withSlot(items[i], slot)
	}

	out := make([]T, n)
	for i := range out {
		slot := i + 1
		if item, ok := bySlot[slot]; ok {
			out[i] = item
		} else {
			out[i] = empty(slot)
		}
	}
	return out, nil
}

func normalizeCredits(c *model.Credits) {
	for _, list := range []*[]string{&c.Songwriter, &c.Performer, &c.Engineer, &c.Producer} {
		if *list == nil {
			*list = []string{}
		}
	}
}

func normalizeAlbum(a *model.Album, songCount int) error {
	if a.SongTitles == nil {
		a.SongTitles = []model.SongTitle{}
	}
	seen := make(map[int]bool, len(a.SongTitles))
	for i, t := range a.SongTitles {
		if t.Slot < 1 || t.Slot > songCount {
			return ErrInvalidDocument.New("album.songTitles[%d]: slot %d out of range", i, t.Slot)
		}
		if seen[t.Slot] {
			return ErrInvalidDocument.New("album.songTitles: duplicate slot %d", t.Slot)
		}
		seen[t.Slot] = true
	}
	sort.SliceStable(a.SongTitles, func(i, j int) bool { return a.SongTitles[i].Slot < a.SongTitles[j].Slot })

	if a.PlaylistOrder == nil {
		a.PlaylistOrder = []int{}
	}
	inOrder := make(map[int]bool, len(a.PlaylistOrder))
	for i, slot := range a.PlaylistOrder {
		if slot < 1 || slot > songCount {
			return ErrInvalidDocument.New("album.playlistOrder[%d]: slot %d out of range", i, slot)
		}
		if inOrder[slot] {
			return ErrInvalidDocument.New("album.playlistOrder: duplicate slot %d", slot)
		}
		inOrder[slot] = true
	}
	return nil
}

func normalizeConnections(in map[string]model.Connection, songCount int, field string) (map[string]model.Connection, error) {
	out := make(map[string]model.Connection, len(in))

	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		c := in[key]
		if c.FromSlot == 0 && c.ToSlot == 0 {
			from, to, err := model.ParseConnectionKey(key)
			if err != nil {
				return nil, ErrInvalidDocument.New("%s: %v", field, err)
			}
			c.FromSlot, c.ToSlot = from, to
		}
		if c.FromSlot == c.ToSlot {
			return nil, ErrInvalidDocument.New("%s[%s]: fromSlot equals toSlot", field, key)
		}
		if c.FromSlot < 1 || c.FromSlot > songCount || c.ToSlot < 1 || c.ToSlot > songCount {
			return nil, ErrInvalidDocument.New("%s[%s]: slot out of range", field, key)
		}

		c.ToListenChoice = model.ListenChoice(strings.ToUpper(string(c.ToListenChoice)))
		switch c.ToListenChoice {
		case "", model.ListenA, model.ListenB:
		default:
			return nil, ErrInvalidDocument.New("%s[%s]: toListenChoice %q", field, key, c.ToListenChoice)
		}

		canonical := model.ConnectionKey(c.FromSlot, c.ToSlot)
		if _, dup := out[canonical]; dup {
			return nil, ErrInvalidDocument.New("%s: duplicate pair %s", field, canonical)
		}
		out[canonical] = c
	}
	return out, nil
}
