package model

// Album is the producer-authored release metadata.
type Album struct {
	Title         string      `json:"title"`
	Artist        string      `json:"artist"`
	ReleaseDate   string      `json:"releaseDate"`
	SongTitles    []SongTitle `json:"songTitles"`
	PlaylistOrder []int       `json:"playlistOrder"`
	Locks         AlbumLocks  `json:"locks"`
}

// SongTitle mirrors a catalog title inside the album section.
// Once populated it belongs to the album page and is not overwritten from the catalog.
type SongTitle struct {
	Slot      int        `json:"slot"`
	Title     string     `json:"title"`
	TitleJSON *TitleJSON `json:"titleJson,omitempty"`
}

// AlbumLocks freezes parts of the album section until unlocked.
type AlbumLocks struct {
	Metadata bool `json:"metadata"`
	Playlist bool `json:"playlist"`
}
