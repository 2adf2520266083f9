package model

// Snapshot is the write-once object stored on every master save.
type Snapshot struct {
	ProjectID     string   `json:"projectId"`
	SnapshotKey   string   `json:"snapshotKey"`
	MasterSavedAt string   `json:"masterSavedAt"`
	Section       Section  `json:"section,omitempty"`
	Project       *Project `json:"project"`
}

// LatestPointer is the single mutable object per project. It names the newest snapshot.
type LatestPointer struct {
	ProjectID         string `json:"projectId"`
	LatestSnapshotKey string `json:"latestSnapshotKey"`
	LastMasterSaveAt  string `json:"lastMasterSaveAt"`
}

// Manifest is the public description written next to a published player page.
type Manifest struct {
	OK          bool   `json:"ok"`
	ProjectID   string `json:"projectId"`
	SnapshotKey string `json:"snapshotKey"`
	ShareID     string `json:"shareId"`
	PublishedAt string `json:"publishedAt"`
	Version     int    `json:"version"`
}
