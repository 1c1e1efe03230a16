package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/course-workflow-api/internal/models"
	"github.com/noah-isme/course-workflow-api/pkg/jobs"
)

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditConfig sizes the background audit writer.
type AuditConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// AuditService writes audit entries off the request path.
type AuditService struct {
	repo   auditWriter
	queue  *jobs.Queue[models.AuditLog]
	logger *zap.Logger
}

// NewAuditService constructs an audit service. Call Start before recording.
func NewAuditService(repo auditWriter, logger *zap.Logger, config AuditConfig) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	svc := &AuditService{repo: repo, logger: logger}
	svc.queue = jobs.NewQueue("audit", svc.write, jobs.QueueConfig{
		Workers:    config.Workers,
		BufferSize: config.BufferSize,
		MaxRetries: config.MaxRetries,
		RetryDelay: config.RetryDelay,
		Logger:     logger,
	})
	return svc
}

// Start launches the writer workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop flushes buffered entries and stops the workers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// CreateAuditLog stamps the entry and queues it. The request context is not
// retained since the write outlives the request.
func (s *AuditService) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	entry := *log
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return s.queue.TryEnqueue(jobs.Job[models.AuditLog]{ID: entry.ID, Payload: entry})
}

func (s *AuditService) write(ctx context.Context, job jobs.Job[models.AuditLog]) error {
	entry := job.Payload
	if err := s.repo.CreateAuditLog(ctx, &entry); err != nil {
		return err
	}
	s.logger.Debug("audit log written", zap.String("action", entry.Action), zap.String("audit_id", entry.ID))
	return nil
}
