package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Longt00/company-sub000/internal/domain/audit"
	"github.com/Longt00/company-sub000/internal/platform/logger"
)

// AuditService records operation events asynchronously. Records are
// fire-and-forget: a full queue or a failed insert drops the record with a
// log line and never fails the operation that produced it.
type AuditService interface {
	Record(action, target string, actorID *uuid.UUID, detail map[string]interface{})
	Close()
}

type auditService struct {
	log   *logger.Logger
	db    *gorm.DB
	queue chan *audit.OperationLog

	closeOnce sync.Once
	done      chan struct{}
}

func NewAuditService(db *gorm.DB, baseLog *logger.Logger) AuditService {
	s := &auditService{
		log:   baseLog.With("service", "AuditService"),
		db:    db,
		queue: make(chan *audit.OperationLog, 256),
		done:  make(chan struct{}),
	}
	go s.drain()
	return s
}

func (s *auditService) Record(action, target string, actorID *uuid.UUID, detail map[string]interface{}) {
	rec := &audit.OperationLog{
		ID:        uuid.New(),
		Action:    action,
		Target:    target,
		ActorID:   actorID,
		CreatedAt: time.Now(),
	}
	if len(detail) > 0 {
		if raw, err := json.Marshal(detail); err == nil {
			rec.Detail = datatypes.JSON(raw)
		}
	}
	select {
	case s.queue <- rec:
	default:
		s.log.Warn("Audit queue full, dropping record", "action", action, "target", target)
	}
}

func (s *auditService) drain() {
	for rec := range s.queue {
		if err := s.db.Create(rec).Error; err != nil {
			s.log.Warn("Failed to write audit record", "action", rec.Action, "error", err)
		}
	}
	close(s.done)
}

// Close stops accepting records and waits for the queue to flush.
func (s *auditService) Close() {
	s.closeOnce.Do(func() {
		close(s.queue)
		<-s.done
	})
}
