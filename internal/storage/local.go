package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Longt00/company-sub000/internal/platform/logger"
)

type localStore struct {
	log     *logger.Logger
	baseDir string
}

// NewLocalStoreFromEnv builds a filesystem-backed store rooted at
// MEDIA_STORAGE_DIR (default ./data/media). The root is created eagerly so a
// misconfigured or unwritable path fails at startup, not on first upload.
func NewLocalStoreFromEnv(log *logger.Logger) (BlobStore, error) {
	dir := getenv("MEDIA_STORAGE_DIR", filepath.Join("data", "media"))
	return NewLocalStore(log, dir)
}

func NewLocalStore(log *logger.Logger, baseDir string) (BlobStore, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir %q: %w", abs, err)
	}
	storeLog := log.With("service", "LocalStore")
	storeLog.Info("Local blob store initialized", "base_dir", abs)
	return &localStore{log: storeLog, baseDir: abs}, nil
}

// resolve maps a key to an absolute path under baseDir and rejects anything
// that would escape it.
func (s *localStore) resolve(key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", fmt.Errorf("empty storage key")
	}
	p := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if !strings.HasPrefix(p, s.baseDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage key %q escapes base dir", key)
	}
	return p, nil
}

func (s *localStore) Write(ctx context.Context, key string, r io.Reader) (int64, error) {
	p, err := s.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return 0, fmt.Errorf("create key dir: %w", err)
	}

	// Write to a sibling temp file and rename so readers never observe a
	// half-written object.
	tmp := p + ".tmp-" + uuid.NewString()[:8]
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create temp object: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("write object %q: %w", key, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("commit object %q: %w", key, err)
	}
	return n, nil
}

func (s *localStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("open %q: %w", key, ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", key, err)
	}
	return f, nil
}

func (s *localStore) OpenRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	p, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	// Existence is checked now; the handle itself is opened on first Read so
	// a response that is never consumed never pins a descriptor.
	if _, err := os.Stat(p); os.IsNotExist(err) {
		return nil, fmt.Errorf("open range %q: %w", key, ErrNotExist)
	} else if err != nil {
		return nil, fmt.Errorf("stat %q: %w", key, err)
	}
	return &lazyFileRangeReader{path: p, key: key, offset: offset, length: length}, nil
}

// lazyFileRangeReader serves a byte window of a file, opening the handle on
// first Read. Close is idempotent and safe before any Read.
type lazyFileRangeReader struct {
	path   string
	key    string
	offset int64
	length int64 // < 0 means to EOF

	mu        sync.Mutex
	f         *os.File
	remaining int64
	closed    bool
}

func (r *lazyFileRangeReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, os.ErrClosed
	}
	if r.f == nil {
		f, err := os.Open(r.path)
		if err != nil {
			return 0, fmt.Errorf("open %q: %w", r.key, err)
		}
		if r.offset > 0 {
			if _, err := f.Seek(r.offset, io.SeekStart); err != nil {
				_ = f.Close()
				return 0, fmt.Errorf("seek %q to %d: %w", r.key, r.offset, err)
			}
		}
		r.f = f
		r.remaining = r.length
	}
	if r.remaining == 0 {
		return 0, io.EOF
	}
	if r.remaining > 0 && int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	n, err := r.f.Read(p)
	if r.remaining > 0 {
		r.remaining -= int64(n)
		if r.remaining == 0 && err == nil {
			err = io.EOF
		}
	}
	return n, err
}

func (r *lazyFileRangeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.f != nil {
		return r.f.Close()
	}
	return nil
}

func (s *localStore) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	p, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(p)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("stat %q: %w", key, ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("stat %q: %w", key, err)
	}
	return &ObjectInfo{
		Size:        fi.Size(),
		ContentType: ContentTypeForKey(key),
		Updated:     fi.ModTime(),
	}, nil
}

func (s *localStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Stat(ctx, key)
	if err == nil {
		return true, nil
	}
	if isNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *localStore) Delete(ctx context.Context, key string) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("delete %q: %w", key, ErrNotExist)
		}
		return fmt.Errorf("delete %q: %w", key, err)
	}
	// Best effort: prune now-empty date directories so the tree does not
	// accumulate husks. Stops at the first non-empty parent.
	dir := filepath.Dir(p)
	for dir != s.baseDir {
		if rmErr := os.Remove(dir); rmErr != nil {
			break
		}
		dir = filepath.Dir(dir)
	}
	return nil
}

func (s *localStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	src, err := s.Open(ctx, srcKey)
	if err != nil {
		return err
	}
	defer src.Close()
	if _, err := s.Write(ctx, dstKey, src); err != nil {
		return fmt.Errorf("copy %s -> %s: %w", srcKey, dstKey, err)
	}
	return nil
}

func getenv(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}
