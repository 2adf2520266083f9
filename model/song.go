package model

// Song is one catalog slot.
type Song struct {
	Slot      int        `json:"slot"`
	Title     string     `json:"title"`
	TitleJSON *TitleJSON `json:"titleJson,omitempty"`
	Files     SongFiles  `json:"files"`
}

// TitleJSON is the denormalized title record other sections read without loading the song.
// Title on the Song is authoritative; this is regenerated on every snapshot.
type TitleJSON struct {
	Slot      int    `json:"slot"`
	Title     string `json:"title"`
	UpdatedAt string `json:"updatedAt"`
	Source    string `json:"source"`
}

// SongFiles holds the uploaded audio for a slot: the album master plus the A and B versions.
type SongFiles struct {
	Album *FileRef `json:"album,omitempty"`
	A     *FileRef `json:"a,omitempty"`
	B     *FileRef `json:"b,omitempty"`
}

// FileRef points at a stored object. Signed playback URLs are never part of it;
// they are resolved on demand from S3Key.
type FileRef struct {
	FileName string `json:"fileName"`
	S3Key    string `json:"s3Key"`
}

// Empty reports whether the slot carries no title and no files.
func (s Song) Empty() bool {
	return s.Title == "" && s.Files.Album == nil && s.Files.A == nil && s.Files.B == nil
}
