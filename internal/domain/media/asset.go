package media

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AssetStatus is the lifecycle state of a MediaAsset. There is no externally
// visible "uploading" state: ingestion either commits a Completed row or
// nothing at all.
type AssetStatus string

const (
	AssetStatusCompleted AssetStatus = "completed"
	AssetStatusDeleted   AssetStatus = "deleted"
)

// FileType is the coarse kind derived once at ingestion from MIME/extension.
type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypeVideo FileType = "video"
	FileTypeOther FileType = "other"
)

// MediaAsset is one row per logical upload. A given public URL may have more
// than one historical row (overwrite/retry); at most one of them is live.
// Rows are never physically removed: deletion flips Status to deleted.
type MediaAsset struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	OriginalName string `gorm:"column:original_name;not null" json:"original_name"`
	// StoragePath is the collision-resistant key under which the bytes live in
	// the blob store. Immutable once set; never derived from OriginalName for
	// addressing.
	StoragePath string `gorm:"column:storage_path;not null;uniqueIndex" json:"storage_path"`
	PublicURL   string `gorm:"column:public_url;not null;index" json:"public_url"`

	Category  string   `gorm:"column:category;index" json:"category"`
	FileType  FileType `gorm:"column:file_type;not null" json:"file_type"`
	MimeType  string   `gorm:"column:mime_type" json:"mime_type"`
	SizeBytes int64    `gorm:"column:size_bytes" json:"size_bytes"`
	Extension string   `gorm:"column:extension" json:"extension"`

	Width           int   `gorm:"column:width" json:"width,omitempty"`
	Height          int   `gorm:"column:height" json:"height,omitempty"`
	DurationSeconds int64 `gorm:"column:duration_seconds" json:"duration_seconds,omitempty"`

	ThumbnailURL string `gorm:"column:thumbnail_url" json:"thumbnail_url,omitempty"`

	Description string         `gorm:"column:description" json:"description,omitempty"`
	Tags        datatypes.JSON `gorm:"column:tags;type:jsonb" json:"tags,omitempty"`

	RelatedID   *uuid.UUID `gorm:"column:related_id;type:uuid" json:"related_id,omitempty"`
	RelatedType string     `gorm:"column:related_type" json:"related_type,omitempty"`

	Status   AssetStatus `gorm:"column:status;not null;index" json:"status"`
	IsPublic bool        `gorm:"column:is_public;not null;default:true" json:"is_public"`

	UploadedBy *uuid.UUID `gorm:"column:uploaded_by;type:uuid;index" json:"uploaded_by,omitempty"`

	ViewCount     int64      `gorm:"column:view_count;not null;default:0" json:"view_count"`
	DownloadCount int64      `gorm:"column:download_count;not null;default:0" json:"download_count"`
	LastAccessed  *time.Time `gorm:"column:last_accessed_at" json:"last_accessed_at,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (MediaAsset) TableName() string { return "media_asset" }

// Live reports whether the asset is serving-eligible.
func (a *MediaAsset) Live() bool { return a != nil && a.Status == AssetStatusCompleted }
