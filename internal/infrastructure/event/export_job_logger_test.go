package event

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/export"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newJob(t *testing.T) *export.ExportJob {
	t.Helper()
	job, err := export.NewExportJob(uuid.New(), export.ArtifactTypeWarrantyCard, "WC-1001",
		".warranty-card", export.DefaultRenderOptions(), uuid.Nil)
	require.NoError(t, err)
	return job
}

func TestExportJobLogger_ThroughBus(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	bus := NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(NewExportJobLogger(zap.New(core)))

	job := newJob(t)
	require.NoError(t, job.StartRendering())
	require.NoError(t, job.Complete(export.Artifact{Path: "a.png", URL: "/a.png", Width: 10, Height: 20, SizeBytes: 99}, false))

	failed := newJob(t)
	require.NoError(t, failed.Fail("chrome crashed"))

	ctx := logger.WithRequestID(context.Background(), "req-1")
	require.NoError(t, bus.Publish(ctx,
		export.NewExportJobCreatedEvent(job),
		export.NewExportJobStatusChangedEvent(job, export.JobStatusPending, export.JobStatusRendering),
		export.NewExportJobCompletedEvent(job),
		export.NewExportJobFailedEvent(failed),
	))

	require.Equal(t, 3, recorded.Len(), "status changes are not subscribed")

	completed := recorded.FilterMessage("export job completed").All()
	require.Len(t, completed, 1)
	fields := completed[0].ContextMap()
	assert.Equal(t, "WC-1001", fields["reference"])
	assert.Equal(t, int64(99), fields["size_bytes"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, job.TenantID.String(), fields["tenant_id"])
	assert.Equal(t, "export_jobs", completed[0].LoggerName)

	failedEntries := recorded.FilterMessage("export job failed").All()
	require.Len(t, failedEntries, 1)
	assert.Equal(t, zapcore.WarnLevel, failedEntries[0].Level)
	assert.Equal(t, "chrome crashed", failedEntries[0].ContextMap()["error"])
}

func TestExportJobLogger_UnknownEvent(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	h := NewExportJobLogger(zap.New(core))

	require.NoError(t, h.Handle(context.Background(), newTestEvent("Other")))
	assert.Equal(t, 1, recorded.FilterMessage("ignoring event").Len())
}
