package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	mediarepo "github.com/Longt00/company-sub000/internal/data/repos/media"
	"github.com/Longt00/company-sub000/internal/domain/media"
	"github.com/Longt00/company-sub000/internal/platform/dbctx"
	"github.com/Longt00/company-sub000/internal/platform/logger"
	"github.com/Longt00/company-sub000/internal/storage"
)

// CacheControl is sent on every successful delivery. Storage keys are
// immutable once written, so aggressive caching is safe.
const CacheControl = "public, max-age=31536000"

// ServeResult describes one delivery response. Body is nil on 416. The
// caller owns Body and must close it; the underlying handle is opened
// lazily on first read.
type ServeResult struct {
	Status      int
	ContentType string
	FileName    string
	Body        io.ReadCloser

	// Start/End are the served window (inclusive) when Status is 206.
	Start int64
	End   int64
	// Length is the number of body bytes; Total the full object size.
	Length int64
	Total  int64
}

type DeliveryService interface {
	// Serve resolves a storage key and negotiates full vs partial delivery.
	// On ErrRangeNotSatisfiable the result still carries Total so the
	// handler can emit "Content-Range: bytes */<size>".
	Serve(dbc dbctx.Context, key, rangeHeader string) (*ServeResult, error)

	// Download serves the full object by public URL for attachment download,
	// bumping downloadCount instead of viewCount.
	Download(dbc dbctx.Context, url string) (*ServeResult, error)
}

type deliveryService struct {
	log   *logger.Logger
	repo  mediarepo.MediaAssetRepo
	store storage.BlobStore
}

func NewDeliveryService(baseLog *logger.Logger, repo mediarepo.MediaAssetRepo, store storage.BlobStore) DeliveryService {
	return &deliveryService{
		log:   baseLog.With("service", "DeliveryService"),
		repo:  repo,
		store: store,
	}
}

// resolve applies the visibility gate: metadata status is authoritative. A
// key whose every row is deleted is refused even if the bytes still exist
// (physical delete may be pending). A key with no rows at all, such as a
// generated icon, is served straight from the blob store.
func (s *deliveryService) resolve(dbc dbctx.Context, key string) (*media.MediaAsset, error) {
	rows, err := s.repo.FindByStoragePath(dbc, key)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", key, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	for _, row := range rows {
		if row.Live() {
			return row, nil
		}
	}
	return nil, ErrNotFound
}

func (s *deliveryService) Serve(dbc dbctx.Context, key, rangeHeader string) (*ServeResult, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return nil, ErrNotFound
	}

	asset, err := s.resolve(dbc, key)
	if err != nil {
		return nil, err
	}

	info, err := s.store.Stat(dbc.Ctx, key)
	if errors.Is(err, storage.ErrNotExist) {
		if asset != nil {
			// A delete raced us, or the blob was lost. Metadata stays
			// authoritative; the reader just gets a 404.
			s.log.Warn("Completed record but blob missing", "key", key, "error", ErrMetadataInconsistent)
		}
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageRead, err)
	}

	contentType := info.ContentType
	fileName := path.Base(key)
	if asset != nil {
		if asset.MimeType != "" {
			contentType = asset.MimeType
		}
		if asset.OriginalName != "" {
			fileName = asset.OriginalName
		}
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	total := info.Size
	if rangeHeader == "" {
		body, err := s.store.OpenRange(dbc.Ctx, key, 0, -1)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageRead, err)
		}
		s.touch(asset, false)
		return &ServeResult{
			Status:      http.StatusOK,
			ContentType: contentType,
			FileName:    fileName,
			Body:        body,
			Length:      total,
			Total:       total,
		}, nil
	}

	start, end, err := ParseByteRange(rangeHeader, total)
	if err != nil {
		return &ServeResult{Status: http.StatusRequestedRangeNotSatisfiable, Total: total},
			fmt.Errorf("%w: %v", ErrRangeNotSatisfiable, err)
	}

	body, err := s.store.OpenRange(dbc.Ctx, key, start, end-start+1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageRead, err)
	}
	s.touch(asset, false)
	return &ServeResult{
		Status:      http.StatusPartialContent,
		ContentType: contentType,
		FileName:    fileName,
		Body:        body,
		Start:       start,
		End:         end,
		Length:      end - start + 1,
		Total:       total,
	}, nil
}

func (s *deliveryService) Download(dbc dbctx.Context, url string) (*ServeResult, error) {
	asset, err := s.repo.FindLiveByURL(dbc, url)
	if err != nil {
		return nil, fmt.Errorf("lookup by url: %w", err)
	}
	if asset == nil {
		return nil, ErrNotFound
	}

	info, err := s.store.Stat(dbc.Ctx, asset.StoragePath)
	if errors.Is(err, storage.ErrNotExist) {
		s.log.Warn("Completed record but blob missing", "key", asset.StoragePath, "error", ErrMetadataInconsistent)
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageRead, err)
	}

	body, err := s.store.OpenRange(dbc.Ctx, asset.StoragePath, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageRead, err)
	}
	s.touch(asset, true)

	contentType := asset.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &ServeResult{
		Status:      http.StatusOK,
		ContentType: contentType,
		FileName:    asset.OriginalName,
		Body:        body,
		Length:      info.Size,
		Total:       info.Size,
	}, nil
}

// touch bumps the access counters off the request path. Lost increments
// under race are accepted.
func (s *deliveryService) touch(asset *media.MediaAsset, download bool) {
	if asset == nil {
		return
	}
	id := asset.ID
	go func() {
		dbc := dbctx.Context{Ctx: context.Background()}
		var err error
		if download {
			err = s.repo.IncrementDownloadCount(dbc, id)
		} else {
			err = s.repo.IncrementViewCount(dbc, id)
		}
		if err != nil {
			s.log.Debug("Counter update failed", "id", id, "error", err)
		}
		if err := s.repo.TouchLastAccessed(dbc, id); err != nil {
			s.log.Debug("Last-accessed update failed", "id", id, "error", err)
		}
	}()
}

// ParseByteRange parses a single-range "bytes=<start>-<end>" header against
// an object of the given size and returns the inclusive window. Supported
// forms: "start-end", "start-" (through EOF) and "-suffix" (last N bytes).
// Multi-range requests, parse failures and out-of-bounds windows are all
// unsatisfiable.
func ParseByteRange(header string, size int64) (start, end int64, err error) {
	if size <= 0 {
		return 0, 0, fmt.Errorf("no satisfiable range for empty object")
	}
	spec := strings.TrimSpace(header)
	const prefix = "bytes="
	if !strings.HasPrefix(strings.ToLower(spec), prefix) {
		return 0, 0, fmt.Errorf("malformed range %q", header)
	}
	spec = strings.TrimSpace(spec[len(prefix):])
	if spec == "" || strings.Contains(spec, ",") {
		return 0, 0, fmt.Errorf("unsupported range %q", header)
	}
	dash := strings.Index(spec, "-")
	if dash < 0 {
		return 0, 0, fmt.Errorf("malformed range %q", header)
	}
	startPart := strings.TrimSpace(spec[:dash])
	endPart := strings.TrimSpace(spec[dash+1:])

	if startPart == "" {
		// Suffix form: last N bytes.
		n, perr := strconv.ParseInt(endPart, 10, 64)
		if perr != nil || n <= 0 {
			return 0, 0, fmt.Errorf("malformed suffix range %q", header)
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, nil
	}

	start, perr := strconv.ParseInt(startPart, 10, 64)
	if perr != nil || start < 0 {
		return 0, 0, fmt.Errorf("malformed range start %q", header)
	}
	if start >= size {
		return 0, 0, fmt.Errorf("range start %d beyond size %d", start, size)
	}
	if endPart == "" {
		return start, size - 1, nil
	}
	end, perr = strconv.ParseInt(endPart, 10, 64)
	if perr != nil {
		return 0, 0, fmt.Errorf("malformed range end %q", header)
	}
	if end < start || end >= size {
		return 0, 0, fmt.Errorf("range %d-%d out of bounds for size %d", start, end, size)
	}
	return start, end, nil
}
