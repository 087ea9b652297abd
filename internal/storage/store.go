package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Longt00/company-sub000/internal/platform/logger"
)

// ErrNotExist is returned by Open/OpenRange/Stat when no object lives under
// the requested key. Callers that treat absence as a normal condition should
// check with errors.Is rather than string matching.
var ErrNotExist = errors.New("object does not exist")

func isNotExist(err error) bool { return errors.Is(err, ErrNotExist) }

type ObjectInfo struct {
	Size        int64
	ContentType string
	Updated     time.Time
}

// BlobStore is the byte-persistence boundary. Keys are opaque relative paths
// ("category/yyyy/MM/dd/<hex>.ext"); the store never interprets them beyond
// directory separators. Writes are atomic per key: a failed Write leaves no
// partially visible object.
type BlobStore interface {
	Write(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// OpenRange returns a reader over [offset, offset+length). length < 0
	// means "to the end of the object". The underlying handle may be opened
	// lazily on first Read; Close always releases it.
	OpenRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error)

	Stat(ctx context.Context, key string) (*ObjectInfo, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	Copy(ctx context.Context, srcKey, dstKey string) error
}

// NewFromEnv selects the blob store backend from STORAGE_MODE: "local"
// (default) or "gcs".
func NewFromEnv(log *logger.Logger) (BlobStore, error) {
	mode := strings.ToLower(strings.TrimSpace(getenv("STORAGE_MODE", "local")))
	switch mode {
	case "", "local":
		return NewLocalStoreFromEnv(log)
	case "gcs":
		return NewGCSStoreFromEnv(log)
	default:
		return nil, fmt.Errorf("unknown STORAGE_MODE %q (want local or gcs)", mode)
	}
}

// ContentTypeForKey maps a storage key's extension to a MIME type. Empty
// string means unknown; callers fall back to application/octet-stream.
func ContentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	if s == "" {
		return ""
	}
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	switch {
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".webp"):
		return "image/webp"
	case strings.HasSuffix(s, ".gif"):
		return "image/gif"
	case strings.HasSuffix(s, ".bmp"):
		return "image/bmp"
	case strings.HasSuffix(s, ".svg"):
		return "image/svg+xml"
	case strings.HasSuffix(s, ".mp4"), strings.HasSuffix(s, ".m4v"):
		return "video/mp4"
	case strings.HasSuffix(s, ".webm"):
		return "video/webm"
	case strings.HasSuffix(s, ".mov"):
		return "video/quicktime"
	case strings.HasSuffix(s, ".avi"):
		return "video/x-msvideo"
	case strings.HasSuffix(s, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(s, ".json"):
		return "application/json"
	case strings.HasSuffix(s, ".txt"):
		return "text/plain"
	case strings.HasSuffix(s, ".zip"):
		return "application/zip"
	default:
		return ""
	}
}
