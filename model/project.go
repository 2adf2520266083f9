package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultSongCount is the number of catalog slots a project carries unless configured otherwise.
const DefaultSongCount = 9

// TimeLayout is the ISO-8601 layout used for every timestamp stored in a project document.
// It matches the millisecond precision browsers produce with Date.toISOString.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// FormatTime renders t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Section names a top-level subtree of the project document that a page edits on its own.
type Section string

const (
	SectionCatalog Section = "catalog"
	SectionAlbum   Section = "album"
	SectionSongs   Section = "songs"
	SectionMeta    Section = "meta"
	SectionNFTMix  Section = "nftMix"
)

// AllSections lists the editable sections in document order.
var AllSections = []Section{SectionCatalog, SectionAlbum, SectionSongs, SectionMeta, SectionNFTMix}

// ParseSection validates a section name coming from a request.
func ParseSection(name string) (Section, error) {
	for _, s := range AllSections {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown section %q", name)
}

// Project is the root aggregate for one release.
type Project struct {
	ProjectID  string      `json:"projectId"`
	CreatedAt  string      `json:"createdAt"`
	UpdatedAt  string      `json:"updatedAt"`
	Catalog    Catalog     `json:"catalog"`
	Album      Album       `json:"album"`
	NFTMix     NFTMix      `json:"nftMix"`
	Songs      Worksheet   `json:"songs"`
	Meta       Meta        `json:"meta"`
	MasterSave MasterSave  `json:"masterSave"`
	Master     Master      `json:"master"`
	Publish    PublishInfo `json:"publish"`
}

// Catalog holds the fixed song slots.
type Catalog struct {
	Songs []Song `json:"songs"`
}

// Meta holds per-slot credits and lyrics.
type Meta struct {
	Songs []SongMeta `json:"songs"`
}

// SongMeta is the metadata page's view of one slot.
type SongMeta struct {
	Slot    int     `json:"slot"`
	Credits Credits `json:"credits"`
	Lyrics  string  `json:"lyrics"`
}

// Credits lists the people credited per role.
type Credits struct {
	Songwriter []string `json:"songwriter"`
	Performer  []string `json:"performer"`
	Engineer   []string `json:"engineer"`
	Producer   []string `json:"producer"`
}

// SaveStatus is the canonical per-section bookkeeping value.
// Complete is always recomputed from the section data when a snapshot is built.
type SaveStatus struct {
	Complete      bool   `json:"complete"`
	MasterSavedAt string `json:"masterSavedAt,omitempty"`
}

// MasterSave is the canonical save bookkeeping block.
type MasterSave struct {
	LastMasterSaveAt string                 `json:"lastMasterSaveAt,omitempty"`
	Sections         map[Section]SaveStatus `json:"sections"`
}

// Master is a read-only view derived from MasterSave at snapshot time.
// It exists for wire compatibility with older pages that read it.
type Master struct {
	IsMasterSaved       bool   `json:"isMasterSaved"`
	MasterSavedAt       string `json:"masterSavedAt,omitempty"`
	LastSnapshotKey     string `json:"lastSnapshotKey,omitempty"`
	ProducerReturnReady bool   `json:"producerReturnReady"`
}

// PublishInfo records the last publish result for the project.
type PublishInfo struct {
	LastShareID   string `json:"lastShareId,omitempty"`
	LastPublicURL string `json:"lastPublicUrl,omitempty"`
	ManifestKey   string `json:"manifestKey,omitempty"`
	PublishedAt   string `json:"publishedAt,omitempty"`
	SnapshotKey   string `json:"snapshotKey,omitempty"`
}

// Clone returns a deep copy of the project by round-tripping it through JSON.
func (p *Project) Clone() (*Project, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var out Project
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
