package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	mediarepo "github.com/Longt00/company-sub000/internal/data/repos/media"
	"github.com/Longt00/company-sub000/internal/domain/media"
	"github.com/Longt00/company-sub000/internal/imaging"
	"github.com/Longt00/company-sub000/internal/platform/dbctx"
	"github.com/Longt00/company-sub000/internal/platform/ffprobe"
	"github.com/Longt00/company-sub000/internal/platform/logger"
	"github.com/Longt00/company-sub000/internal/storage"
)

const batchConcurrency = 4

// UploadOptions is the recognized option bag for one ingestion.
type UploadOptions struct {
	// Width and Height cap the compressed image dimensions. Zero means
	// size-derived bounds only.
	Width  int
	Height int
	// MaxSizeBytes tightens the post-transform size ceiling below the
	// category rule. Zero means no extra bound.
	MaxSizeBytes int64
	// Thumbnail defaults to on; set SkipThumbnail to disable.
	SkipThumbnail bool
	// Watermark stamps the configured text into the image.
	Watermark bool

	Description string
	Tags        []string
	RelatedID   *uuid.UUID
	RelatedType string
	UploadedBy  *uuid.UUID
	Private     bool
}

type UploadResult struct {
	ID               uuid.UUID `json:"id"`
	URL              string    `json:"url"`
	ThumbnailURL     string    `json:"thumbnail_url,omitempty"`
	Width            int       `json:"width,omitempty"`
	Height           int       `json:"height,omitempty"`
	DurationSeconds  int64     `json:"duration_seconds,omitempty"`
	SizeBytes        int64     `json:"size_bytes"`
	Compressed       bool      `json:"compressed"`
	CompressionRatio float64   `json:"compression_ratio,omitempty"`
}

type BatchItem struct {
	Data         []byte
	OriginalName string
	MimeType     string
}

type BatchResult struct {
	OriginalName string        `json:"original_name"`
	Result       *UploadResult `json:"result,omitempty"`
	Error        string        `json:"error,omitempty"`
}

type UploadService interface {
	UploadFile(dbc dbctx.Context, data []byte, originalName, category, mimeType string, opts UploadOptions) (*UploadResult, error)
	// UploadBatch ingests every item independently. One bad file never blocks
	// the rest; the batch is never atomic.
	UploadBatch(dbc dbctx.Context, items []BatchItem, category string, opts UploadOptions) []BatchResult

	FileInfo(dbc dbctx.Context, url string) (*media.MediaAsset, error)
	PublicFileInfo(dbc dbctx.Context, url string) (*media.MediaAsset, error)
	FileExists(dbc dbctx.Context, url string) (bool, error)
	OriginalFileName(dbc dbctx.Context, url string) (string, error)

	FilesByCategory(dbc dbctx.Context, category string) ([]*media.MediaAsset, error)
	LatestByCategory(dbc dbctx.Context, category string) (*media.MediaAsset, error)
	// ActiveCategories maps category name to its count of completed, public
	// assets.
	ActiveCategories(dbc dbctx.Context) (map[string]int64, error)

	CopyFile(dbc dbctx.Context, url, targetCategory string, actorID *uuid.UUID) (*UploadResult, error)
	MoveFile(dbc dbctx.Context, url, targetCategory string, actorID *uuid.UUID) (*UploadResult, error)
}

type uploadService struct {
	log           *logger.Logger
	repo          mediarepo.MediaAssetRepo
	store         storage.BlobStore
	rules         *RuleSet
	prober        ffprobe.Prober
	audit         AuditService
	accessPrefix  string
	watermarkText string
}

func NewUploadService(
	baseLog *logger.Logger,
	repo mediarepo.MediaAssetRepo,
	store storage.BlobStore,
	rules *RuleSet,
	prober ffprobe.Prober,
	auditSvc AuditService,
	accessPrefix string,
) UploadService {
	if accessPrefix == "" {
		accessPrefix = DefaultAccessPrefix
	}
	watermark := strings.TrimSpace(os.Getenv("MEDIA_WATERMARK_TEXT"))
	if watermark == "" {
		watermark = "© company"
	}
	return &uploadService{
		log:           baseLog.With("service", "UploadService"),
		repo:          repo,
		store:         store,
		rules:         rules,
		prober:        prober,
		audit:         auditSvc,
		accessPrefix:  accessPrefix,
		watermarkText: watermark,
	}
}

func fileTypeFor(class CategoryClass) media.FileType {
	switch class {
	case ClassImage:
		return media.FileTypeImage
	case ClassVideo:
		return media.FileTypeVideo
	default:
		return media.FileTypeOther
	}
}

func (s *uploadService) UploadFile(dbc dbctx.Context, data []byte, originalName, category, mimeType string, opts UploadOptions) (*UploadResult, error) {
	if err := s.rules.Validate(category, originalName, mimeType, int64(len(data))); err != nil {
		return nil, err
	}

	class := ClassOf(category)
	fileType := fileTypeFor(class)

	var (
		width, height int
		duration      int64
		compressed    bool
		ratio         float64
		thumbData     []byte
	)

	switch fileType {
	case media.FileTypeImage:
		res, err := imaging.SmartCompress(data, opts.Width, opts.Height)
		if err != nil {
			// An allow-listed extension with an undecodable body is a caller
			// problem, not an I/O one.
			return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
		}
		data = res.Data
		width, height = res.Width, res.Height
		compressed = res.Compressed
		ratio = res.Ratio
		if compressed {
			mimeType = "image/jpeg"
		}
		if opts.Watermark {
			stamped, err := imaging.Watermark(data, s.watermarkText)
			if err != nil {
				s.log.Warn("Watermark failed", "name", originalName, "error", err)
			} else {
				data = stamped
				mimeType = "image/jpeg"
			}
		}
		if !opts.SkipThumbnail {
			thumb, err := imaging.Thumbnail(res.Data)
			if err != nil {
				s.log.Warn("Thumbnail generation failed", "name", originalName, "error", err)
			} else {
				thumbData = thumb.Data
			}
		}
	case media.FileTypeVideo:
		if s.prober != nil && s.prober.Available() {
			d, err := s.prober.DurationSeconds(dbc.Ctx, data, ExtensionOf(originalName))
			if err != nil {
				s.log.Warn("Video duration probe failed", "name", originalName, "error", err)
			} else {
				duration = d
			}
		}
	}

	// Class ceiling applies post-transform: compression may have brought an
	// oversized image back under it.
	if limit := s.rules.EffectiveLimit(category, opts.MaxSizeBytes); int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d for category %q",
			ErrValidationFailed, len(data), limit, category)
	}

	key := DeriveStorageKey(originalName, category)
	if _, err := s.store.Write(dbc.Ctx, key, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}

	thumbnailURL := ""
	if len(thumbData) > 0 {
		thumbKey := ThumbnailKey(key)
		if _, err := s.store.Write(dbc.Ctx, thumbKey, bytes.NewReader(thumbData)); err != nil {
			s.log.Warn("Thumbnail write failed", "key", thumbKey, "error", err)
		} else {
			thumbnailURL = PublicURL(s.accessPrefix, thumbKey)
		}
	}

	asset := &media.MediaAsset{
		ID:              uuid.New(),
		OriginalName:    originalName,
		StoragePath:     key,
		PublicURL:       PublicURL(s.accessPrefix, key),
		Category:        strings.Trim(strings.TrimSpace(category), "/"),
		FileType:        fileType,
		MimeType:        mimeType,
		SizeBytes:       int64(len(data)),
		Extension:       ExtensionOf(originalName),
		Width:           width,
		Height:          height,
		DurationSeconds: duration,
		ThumbnailURL:    thumbnailURL,
		Description:     opts.Description,
		RelatedID:       opts.RelatedID,
		RelatedType:     opts.RelatedType,
		Status:          media.AssetStatusCompleted,
		IsPublic:        !opts.Private,
		UploadedBy:      opts.UploadedBy,
	}
	if len(opts.Tags) > 0 {
		if raw, err := json.Marshal(opts.Tags); err == nil {
			asset.Tags = datatypes.JSON(raw)
		}
	}

	if _, err := s.repo.Create(dbc, asset); err != nil {
		// The blob is orphaned. Accepted: reconciled out-of-band, never
		// rolled back synchronously. The caller must treat this as failure.
		s.log.Error("Metadata commit failed, blob orphaned", "key", key, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrMetadataWrite, err)
	}

	if s.audit != nil {
		s.audit.Record("media.upload", asset.PublicURL, opts.UploadedBy, map[string]interface{}{
			"category":   asset.Category,
			"size_bytes": asset.SizeBytes,
			"compressed": compressed,
		})
	}

	return &UploadResult{
		ID:               asset.ID,
		URL:              asset.PublicURL,
		ThumbnailURL:     thumbnailURL,
		Width:            width,
		Height:           height,
		DurationSeconds:  duration,
		SizeBytes:        asset.SizeBytes,
		Compressed:       compressed,
		CompressionRatio: ratio,
	}, nil
}

func (s *uploadService) UploadBatch(dbc dbctx.Context, items []BatchItem, category string, opts UploadOptions) []BatchResult {
	results := make([]BatchResult, len(items))

	g, ctx := errgroup.WithContext(dbc.Ctx)
	g.SetLimit(batchConcurrency)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			itemDBC := dbctx.Context{Ctx: ctx, Tx: dbc.Tx}
			res, err := s.UploadFile(itemDBC, item.Data, item.OriginalName, category, item.MimeType, opts)
			results[i] = BatchResult{OriginalName: item.OriginalName}
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}
			results[i].Result = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *uploadService) FileInfo(dbc dbctx.Context, url string) (*media.MediaAsset, error) {
	asset, err := s.repo.FindLiveByURL(dbc, url)
	if err != nil {
		return nil, fmt.Errorf("lookup by url: %w", err)
	}
	if asset == nil {
		return nil, ErrNotFound
	}
	return asset, nil
}

func (s *uploadService) PublicFileInfo(dbc dbctx.Context, url string) (*media.MediaAsset, error) {
	asset, err := s.FileInfo(dbc, url)
	if err != nil {
		return nil, err
	}
	if !asset.IsPublic {
		return nil, ErrNotFound
	}
	return asset, nil
}

// FileExists reports whether the URL is serving-eligible: a live metadata
// row whose bytes are actually present. A live row with a missing blob is
// reported as absent, not as an error.
func (s *uploadService) FileExists(dbc dbctx.Context, url string) (bool, error) {
	asset, err := s.repo.FindLiveByURL(dbc, url)
	if err != nil {
		return false, err
	}
	if asset == nil {
		return false, nil
	}
	ok, err := s.store.Exists(dbc.Ctx, asset.StoragePath)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorageRead, err)
	}
	if !ok {
		s.log.Warn("Live record without blob", "url", url, "key", asset.StoragePath)
	}
	return ok, nil
}

func (s *uploadService) OriginalFileName(dbc dbctx.Context, url string) (string, error) {
	asset, err := s.FileInfo(dbc, url)
	if err != nil {
		return "", err
	}
	return asset.OriginalName, nil
}

func (s *uploadService) FilesByCategory(dbc dbctx.Context, category string) ([]*media.MediaAsset, error) {
	return s.repo.ListByCategory(dbc, category, media.AssetStatusCompleted)
}

func (s *uploadService) LatestByCategory(dbc dbctx.Context, category string) (*media.MediaAsset, error) {
	asset, err := s.repo.LatestByCategory(dbc, category)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, ErrNotFound
	}
	return asset, nil
}

func (s *uploadService) ActiveCategories(dbc dbctx.Context) (map[string]int64, error) {
	counts, err := s.repo.CountPublicCompletedByCategory(dbc)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(counts))
	for _, c := range counts {
		out[c.Category] = c.Count
	}
	return out, nil
}

// CopyFile duplicates an asset's bytes under a fresh storage key in the
// target category and commits a new metadata row. The source is untouched.
func (s *uploadService) CopyFile(dbc dbctx.Context, url, targetCategory string, actorID *uuid.UUID) (*UploadResult, error) {
	src, err := s.FileInfo(dbc, url)
	if err != nil {
		return nil, err
	}
	if targetCategory == "" {
		targetCategory = src.Category
	}

	dstKey := DeriveStorageKey(src.OriginalName, targetCategory)
	if err := s.store.Copy(dbc.Ctx, src.StoragePath, dstKey); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}

	thumbnailURL := ""
	if src.ThumbnailURL != "" {
		srcThumb := KeyFromURL(src.ThumbnailURL, s.accessPrefix)
		dstThumb := ThumbnailKey(dstKey)
		if err := s.store.Copy(dbc.Ctx, srcThumb, dstThumb); err != nil {
			s.log.Warn("Thumbnail copy failed", "src", srcThumb, "error", err)
		} else {
			thumbnailURL = PublicURL(s.accessPrefix, dstThumb)
		}
	}

	dup := *src
	dup.ID = uuid.New()
	dup.StoragePath = dstKey
	dup.PublicURL = PublicURL(s.accessPrefix, dstKey)
	dup.Category = strings.Trim(strings.TrimSpace(targetCategory), "/")
	dup.ThumbnailURL = thumbnailURL
	dup.ViewCount = 0
	dup.DownloadCount = 0
	dup.LastAccessed = nil
	if _, err := s.repo.Create(dbc, &dup); err != nil {
		s.log.Error("Metadata commit failed for copy, blob orphaned", "key", dstKey, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrMetadataWrite, err)
	}

	if s.audit != nil {
		s.audit.Record("media.copy", dup.PublicURL, actorID, map[string]interface{}{
			"source": url, "category": dup.Category,
		})
	}
	return &UploadResult{
		ID:           dup.ID,
		URL:          dup.PublicURL,
		ThumbnailURL: thumbnailURL,
		Width:        dup.Width,
		Height:       dup.Height,
		SizeBytes:    dup.SizeBytes,
	}, nil
}

// MoveFile is copy-then-soft-delete. Once the copy's metadata commits the
// source is flipped to deleted; removal of the source bytes is best-effort.
func (s *uploadService) MoveFile(dbc dbctx.Context, url, targetCategory string, actorID *uuid.UUID) (*UploadResult, error) {
	src, err := s.FileInfo(dbc, url)
	if err != nil {
		return nil, err
	}
	res, err := s.CopyFile(dbc, url, targetCategory, actorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.SoftDeleteByURL(dbc, url); err != nil {
		return nil, fmt.Errorf("flip source after move: %w", err)
	}
	if err := s.store.Delete(dbc.Ctx, src.StoragePath); err != nil && !isStorageNotExist(err) {
		s.log.Warn("Source blob removal after move failed", "key", src.StoragePath, "error", err)
	}
	if src.ThumbnailURL != "" {
		thumbKey := KeyFromURL(src.ThumbnailURL, s.accessPrefix)
		if err := s.store.Delete(dbc.Ctx, thumbKey); err != nil && !isStorageNotExist(err) {
			s.log.Warn("Source thumbnail removal after move failed", "key", thumbKey, "error", err)
		}
	}
	if s.audit != nil {
		s.audit.Record("media.move", res.URL, actorID, map[string]interface{}{
			"source": url, "category": targetCategory,
		})
	}
	return res, nil
}

func isStorageNotExist(err error) bool {
	return errors.Is(err, storage.ErrNotExist)
}
