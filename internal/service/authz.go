package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kadirbelkuyu/dbforge/internal/config"
	"github.com/kadirbelkuyu/dbforge/pkg/logger"
)

// Authorizer is the permission oracle consulted before every mutating or
// sensitive read operation.
type Authorizer interface {
	Allowed(ctx context.Context, actor, action string, logicalID int64) (bool, error)
}

// ConfigAuthorizer grants actions from the permissions block of the config.
type ConfigAuthorizer struct {
	cfg *config.Config
}

func NewConfigAuthorizer(cfg *config.Config) *ConfigAuthorizer {
	return &ConfigAuthorizer{cfg: cfg}
}

func (a *ConfigAuthorizer) Allowed(_ context.Context, actor, action string, _ int64) (bool, error) {
	return a.cfg.Allowed(actor, action), nil
}

const (
	EventDatabaseCreated = "database_created"
	EventDatabaseDeleted = "database_deleted"
	EventNotAuthorized   = "not_authorized"
)

type AuditEvent struct {
	Actor     string    `json:"actor"`
	LogicalID int64     `json:"logical_id"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail"`
	Time      time.Time `json:"time"`
}

// AuditSink receives audit events. Delivery is fire-and-forget: a failing
// sink never fails the operation that produced the event.
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent) error
}

// LogAuditSink writes audit events to the structured log.
type LogAuditSink struct {
	logger *logger.Logger
}

func NewLogAuditSink(logger *logger.Logger) *LogAuditSink {
	return &LogAuditSink{logger: logger}
}

func (l *LogAuditSink) Record(_ context.Context, event AuditEvent) error {
	l.logger.WithFields(logrus.Fields{
		"audit":      event.Kind,
		"actor":      event.Actor,
		"logical_id": event.LogicalID,
		"at":         event.Time.Format(time.RFC3339),
	}).Info(event.Detail)
	return nil
}

func (s *Service) emit(event AuditEvent) {
	if s.audit == nil {
		return
	}
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.audit.Record(context.Background(), event); err != nil {
			s.logger.WithError(err).WithField("audit", event.Kind).Warn("failed to record audit event")
		}
	}()
}
