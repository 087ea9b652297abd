package media

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Longt00/company-sub000/internal/domain/media"
	"github.com/Longt00/company-sub000/internal/platform/dbctx"
	"github.com/Longt00/company-sub000/internal/platform/logger"
)

type CategoryCount struct {
	Category string
	Count    int64
}

type MediaAssetRepo interface {
	Create(dbc dbctx.Context, asset *media.MediaAsset) (*media.MediaAsset, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*media.MediaAsset, error)

	// FindAllByURL returns every historical row for a public URL, deleted
	// rows included.
	FindAllByURL(dbc dbctx.Context, url string) ([]*media.MediaAsset, error)
	FindLiveByURL(dbc dbctx.Context, url string) (*media.MediaAsset, error)
	FindByStoragePath(dbc dbctx.Context, path string) ([]*media.MediaAsset, error)
	FindLiveByStoragePath(dbc dbctx.Context, path string) (*media.MediaAsset, error)

	ListByCategory(dbc dbctx.Context, category string, status media.AssetStatus) ([]*media.MediaAsset, error)
	ListPublicCompleted(dbc dbctx.Context, category string) ([]*media.MediaAsset, error)
	LatestByCategory(dbc dbctx.Context, category string) (*media.MediaAsset, error)
	CountPublicCompletedByCategory(dbc dbctx.Context) ([]CategoryCount, error)

	// SoftDeleteByURL flips every live row for the URL to deleted and returns
	// the number of rows affected. Rows are never physically removed.
	SoftDeleteByURL(dbc dbctx.Context, url string) (int64, error)

	IncrementViewCount(dbc dbctx.Context, id uuid.UUID) error
	IncrementDownloadCount(dbc dbctx.Context, id uuid.UUID) error
	TouchLastAccessed(dbc dbctx.Context, id uuid.UUID) error
}

type mediaAssetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMediaAssetRepo(db *gorm.DB, baseLog *logger.Logger) MediaAssetRepo {
	repoLog := baseLog.With("repo", "MediaAssetRepo")
	return &mediaAssetRepo{db: db, log: repoLog}
}

func (r *mediaAssetRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *mediaAssetRepo) Create(dbc dbctx.Context, asset *media.MediaAsset) (*media.MediaAsset, error) {
	if asset == nil {
		return nil, errors.New("nil media asset")
	}
	if asset.ID == uuid.Nil {
		asset.ID = uuid.New()
	}
	if err := r.conn(dbc).WithContext(dbc.Ctx).Create(asset).Error; err != nil {
		return nil, err
	}
	return asset, nil
}

func (r *mediaAssetRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*media.MediaAsset, error) {
	var result media.MediaAsset
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("id = ?", id).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *mediaAssetRepo) FindAllByURL(dbc dbctx.Context, url string) ([]*media.MediaAsset, error) {
	var results []*media.MediaAsset
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("public_url = ?", url).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *mediaAssetRepo) FindLiveByURL(dbc dbctx.Context, url string) (*media.MediaAsset, error) {
	var result media.MediaAsset
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("public_url = ? AND status = ?", url, media.AssetStatusCompleted).
		Order("created_at DESC").
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *mediaAssetRepo) FindByStoragePath(dbc dbctx.Context, path string) ([]*media.MediaAsset, error) {
	var results []*media.MediaAsset
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("storage_path = ?", path).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *mediaAssetRepo) FindLiveByStoragePath(dbc dbctx.Context, path string) (*media.MediaAsset, error) {
	var result media.MediaAsset
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("storage_path = ? AND status = ?", path, media.AssetStatusCompleted).
		Order("created_at DESC").
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *mediaAssetRepo) ListByCategory(dbc dbctx.Context, category string, status media.AssetStatus) ([]*media.MediaAsset, error) {
	var results []*media.MediaAsset
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("category = ? AND status = ?", category, status).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *mediaAssetRepo) ListPublicCompleted(dbc dbctx.Context, category string) ([]*media.MediaAsset, error) {
	var results []*media.MediaAsset
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("category = ? AND status = ? AND is_public = ?", category, media.AssetStatusCompleted, true).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *mediaAssetRepo) LatestByCategory(dbc dbctx.Context, category string) (*media.MediaAsset, error) {
	var result media.MediaAsset
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("category = ? AND status = ?", category, media.AssetStatusCompleted).
		Order("created_at DESC").
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *mediaAssetRepo) CountPublicCompletedByCategory(dbc dbctx.Context) ([]CategoryCount, error) {
	var results []CategoryCount
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Model(&media.MediaAsset{}).
		Select("category, COUNT(*) AS count").
		Where("status = ? AND is_public = ? AND category <> ''", media.AssetStatusCompleted, true).
		Group("category").
		Order("category").
		Scan(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *mediaAssetRepo) SoftDeleteByURL(dbc dbctx.Context, url string) (int64, error) {
	res := r.conn(dbc).WithContext(dbc.Ctx).
		Model(&media.MediaAsset{}).
		Where("public_url = ? AND status = ?", url, media.AssetStatusCompleted).
		Updates(map[string]interface{}{
			"status":     media.AssetStatusDeleted,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// Counter updates are deliberately lossy: a plain "+1" expression with no
// row locking. Lost increments under race are accepted.
func (r *mediaAssetRepo) IncrementViewCount(dbc dbctx.Context, id uuid.UUID) error {
	return r.conn(dbc).WithContext(dbc.Ctx).
		Model(&media.MediaAsset{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
}

func (r *mediaAssetRepo) IncrementDownloadCount(dbc dbctx.Context, id uuid.UUID) error {
	return r.conn(dbc).WithContext(dbc.Ctx).
		Model(&media.MediaAsset{}).
		Where("id = ?", id).
		UpdateColumn("download_count", gorm.Expr("download_count + 1")).Error
}

func (r *mediaAssetRepo) TouchLastAccessed(dbc dbctx.Context, id uuid.UUID) error {
	now := time.Now()
	return r.conn(dbc).WithContext(dbc.Ctx).
		Model(&media.MediaAsset{}).
		Where("id = ?", id).
		UpdateColumn("last_accessed_at", now).Error
}
