package model

import "time"

// ProjectRecord is the registry row created with a project.
type ProjectRecord struct {
	ID               uint       `json:"-" gorm:"primaryKey"`
	ProjectID        string     `json:"projectId" gorm:"size:32;uniqueIndex;not null"`
	Title            string     `json:"title" gorm:"size:255"`
	LastSnapshotKey  string     `json:"lastSnapshotKey,omitempty" gorm:"size:512"`
	LastMasterSaveAt *time.Time `json:"lastMasterSaveAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// TableName overrides the table name for ProjectRecord.
func (ProjectRecord) TableName() string {
	return "minisite_projects"
}

// PublicationRecord is one publish of a snapshot under a share id.
type PublicationRecord struct {
	ID          uint      `json:"-" gorm:"primaryKey"`
	ShareID     string    `json:"shareId" gorm:"size:64;uniqueIndex;not null"`
	ProjectID   string    `json:"projectId" gorm:"size:32;index;not null"`
	SnapshotKey string    `json:"snapshotKey" gorm:"size:512"`
	ManifestKey string    `json:"manifestKey" gorm:"size:512"`
	PublicURL   string    `json:"publicUrl" gorm:"size:1024"`
	PublishedAt time.Time `json:"publishedAt"`
}

// TableName overrides the table name for PublicationRecord.
func (PublicationRecord) TableName() string {
	return "minisite_publications"
}
