package repository

import (
	"context"
	"time"

	"minisite/model"

	"gorm.io/gorm"
)

// ProjectRepository 项目注册表数据访问接口
type ProjectRepository interface {
	CreateProject(ctx context.Context, rec *model.ProjectRecord) error
	GetProject(ctx context.Context, projectID string) (*model.ProjectRecord, error)
	Exists(ctx context.Context, projectID string) (bool, error)
	TouchMasterSave(ctx context.Context, projectID, snapshotKey string, at time.Time) error

	RecordPublication(ctx context.Context, rec *model.PublicationRecord) error
	ListPublications(ctx context.Context, projectID string, limit int) ([]*model.PublicationRecord, error)
}

// gormProjectRepository GORM 实现
type gormProjectRepository struct {
	db *gorm.DB
}

// NewGormProjectRepository 创建 GORM 项目仓库
func NewGormProjectRepository(db *gorm.DB) ProjectRepository {
	return &gormProjectRepository{db: db}
}

// CreateProject 创建项目记录
func (r *gormProjectRepository) CreateProject(ctx context.Context, rec *model.ProjectRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// GetProject 获取项目记录，不存在时返回 nil, nil
func (r *gormProjectRepository) GetProject(ctx context.Context, projectID string) (*model.ProjectRecord, error) {
	var rec model.ProjectRecord
	err := r.db.WithContext(ctx).Where("project_id = ?", projectID).First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// Exists 检查项目ID是否已被占用
func (r *gormProjectRepository) Exists(ctx context.Context, projectID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ProjectRecord{}).
		Where("project_id = ?", projectID).
		Count(&count).Error
	return count > 0, err
}

// TouchMasterSave 记录最近一次 master-save，项目未登记时补建记录
func (r *gormProjectRepository) TouchMasterSave(ctx context.Context, projectID, snapshotKey string, at time.Time) error {
	at = at.UTC()
	res := r.db.WithContext(ctx).Model(&model.ProjectRecord{}).
		Where("project_id = ?", projectID).
		Updates(map[string]interface{}{
			"last_snapshot_key":   snapshotKey,
			"last_master_save_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&model.ProjectRecord{
		ProjectID:        projectID,
		LastSnapshotKey:  snapshotKey,
		LastMasterSaveAt: &at,
	}).Error
}

// RecordPublication 记录一次发布
func (r *gormProjectRepository) RecordPublication(ctx context.Context, rec *model.PublicationRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// ListPublications 按发布时间倒序列出项目的发布记录
func (r *gormProjectRepository) ListPublications(ctx context.Context, projectID string, limit int) ([]*model.PublicationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []*model.PublicationRecord
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("published_at DESC, id DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}
