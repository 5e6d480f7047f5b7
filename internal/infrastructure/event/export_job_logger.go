package event

import (
	"context"

	"github.com/storefront/backend/internal/domain/export"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// ExportJobLogger writes one structured log line per export job lifecycle event
type ExportJobLogger struct {
	logger *zap.Logger
}

// NewExportJobLogger creates the export job audit handler
func NewExportJobLogger(l *zap.Logger) *ExportJobLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ExportJobLogger{logger: l.Named("export_jobs")}
}

// EventTypes implements shared.EventHandler
func (h *ExportJobLogger) EventTypes() []string {
	return []string{
		export.EventTypeExportJobCreated,
		export.EventTypeExportJobCompleted,
		export.EventTypeExportJobFailed,
	}
}

// Handle implements shared.EventHandler
func (h *ExportJobLogger) Handle(ctx context.Context, event shared.DomainEvent) error {
	l := logger.Enrich(ctx, h.logger).With(zap.String("event_id", event.EventID().String()))
	if logger.GetTenantID(ctx) == "" {
		l = l.With(zap.String("tenant_id", event.TenantID().String()))
	}

	switch e := event.(type) {
	case *export.ExportJobCreatedEvent:
		l.Info("export job created",
			zap.String("job_id", e.JobID.String()),
			zap.String("artifact_type", string(e.ArtifactType)),
			zap.String("reference", e.Reference),
		)
	case *export.ExportJobCompletedEvent:
		l.Info("export job completed",
			zap.String("job_id", e.JobID.String()),
			zap.String("artifact_type", string(e.ArtifactType)),
			zap.String("reference", e.Reference),
			zap.Int("width", e.Width),
			zap.Int("height", e.Height),
			zap.Int64("size_bytes", e.SizeBytes),
		)
	case *export.ExportJobFailedEvent:
		l.Warn("export job failed",
			zap.String("job_id", e.JobID.String()),
			zap.String("artifact_type", string(e.ArtifactType)),
			zap.String("reference", e.Reference),
			zap.String("error", e.ErrorMessage),
		)
	default:
		l.Debug("ignoring event", zap.String("event_type", event.EventType()))
	}
	return nil
}

var _ shared.EventHandler = (*ExportJobLogger)(nil)
