package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	mediarepo "github.com/Longt00/company-sub000/internal/data/repos/media"
	"github.com/Longt00/company-sub000/internal/platform/dbctx"
	"github.com/Longt00/company-sub000/internal/platform/logger"
	"github.com/Longt00/company-sub000/internal/storage"
)

const (
	deleteAttempts = 3
	deleteBackoff  = 100 * time.Millisecond
)

// LifecycleService drives soft deletion. The metadata flip is the
// authoritative outcome; physical blob removal is best-effort behind it.
type LifecycleService interface {
	// Delete soft-deletes every live record for the URL. It reports true
	// whenever the logical delete holds afterwards, including the
	// already-deleted and never-existed cases (idempotence).
	Delete(dbc dbctx.Context, url string, actorID *uuid.UUID) (bool, error)

	// DeleteBatch applies Delete per URL; one failure never blocks the rest.
	DeleteBatch(dbc dbctx.Context, urls []string, actorID *uuid.UUID) map[string]bool

	// Shutdown drains the deferred-cleanup queue of blobs whose removal kept
	// failing during requests.
	Shutdown(ctx context.Context)
}

type lifecycleService struct {
	log          *logger.Logger
	repo         mediarepo.MediaAssetRepo
	store        storage.BlobStore
	audit        AuditService
	accessPrefix string

	mu       sync.Mutex
	deferred []string
}

func NewLifecycleService(
	baseLog *logger.Logger,
	repo mediarepo.MediaAssetRepo,
	store storage.BlobStore,
	auditSvc AuditService,
	accessPrefix string,
) LifecycleService {
	if accessPrefix == "" {
		accessPrefix = DefaultAccessPrefix
	}
	return &lifecycleService{
		log:          baseLog.With("service", "LifecycleService"),
		repo:         repo,
		store:        store,
		audit:        auditSvc,
		accessPrefix: accessPrefix,
	}
}

func (s *lifecycleService) Delete(dbc dbctx.Context, url string, actorID *uuid.UUID) (bool, error) {
	key := KeyFromURL(url, s.accessPrefix)
	if key == "" {
		return false, fmt.Errorf("%w: empty url", ErrValidationFailed)
	}

	// Snapshot the affected records first; after the flip they are no longer
	// "live" and the thumbnail URLs would be awkward to recover.
	records, err := s.repo.FindAllByURL(dbc, url)
	if err != nil {
		return false, fmt.Errorf("lookup records for delete: %w", err)
	}

	// Step 1, authoritative: flip every live row. Zero rows affected is a
	// soft success, covering both "already deleted" and "never existed".
	// That conflation is intended idempotence; the audit record still
	// captures the call.
	flipped, err := s.repo.SoftDeleteByURL(dbc, url)
	if err != nil {
		return false, fmt.Errorf("soft delete %q: %w", url, err)
	}

	// Step 2, best-effort: physical removal with bounded retry.
	s.removeBlob(dbc.Ctx, key)

	// Step 3: thumbnails, independently, never blocking the outcome.
	seen := map[string]bool{}
	for _, rec := range records {
		if rec.ThumbnailURL == "" {
			continue
		}
		thumbKey := KeyFromURL(rec.ThumbnailURL, s.accessPrefix)
		if thumbKey == "" || seen[thumbKey] {
			continue
		}
		seen[thumbKey] = true
		s.removeBlob(dbc.Ctx, thumbKey)
	}

	if s.audit != nil {
		s.audit.Record("media.delete", url, actorID, map[string]interface{}{
			"records_flipped": flipped,
		})
	}
	s.log.Info("Asset deleted", "url", url, "records_flipped", flipped)
	return true, nil
}

func (s *lifecycleService) DeleteBatch(dbc dbctx.Context, urls []string, actorID *uuid.UUID) map[string]bool {
	out := make(map[string]bool, len(urls))
	for _, url := range urls {
		ok, err := s.Delete(dbc, url, actorID)
		if err != nil {
			s.log.Warn("Batch delete item failed", "url", url, "error", err)
			out[url] = false
			continue
		}
		out[url] = ok
	}
	return out
}

// removeBlob tries the physical delete a bounded number of times. On
// exhaustion the key is queued for one last attempt at shutdown. A missing
// blob counts as success.
func (s *lifecycleService) removeBlob(ctx context.Context, key string) {
	var lastErr error
	for attempt := 1; attempt <= deleteAttempts; attempt++ {
		err := s.store.Delete(ctx, key)
		if err == nil || errors.Is(err, storage.ErrNotExist) {
			return
		}
		lastErr = err
		if attempt < deleteAttempts {
			time.Sleep(deleteBackoff)
		}
	}
	s.log.Warn("Physical delete exhausted retries, deferring",
		"key", key, "attempts", deleteAttempts, "error", lastErr)
	s.mu.Lock()
	s.deferred = append(s.deferred, key)
	s.mu.Unlock()
}

func (s *lifecycleService) Shutdown(ctx context.Context) {
	s.mu.Lock()
	pending := s.deferred
	s.deferred = nil
	s.mu.Unlock()

	if len(pending) == 0 {
		return
	}
	s.log.Info("Draining deferred blob deletions", "count", len(pending))
	for _, key := range pending {
		if ctx.Err() != nil {
			s.log.Warn("Shutdown cleanup cut short", "remaining", key)
			return
		}
		if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotExist) {
			s.log.Warn("Deferred blob deletion failed", "key", key, "error", err)
		}
	}
}
