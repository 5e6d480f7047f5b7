package export

import (
	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
)

// AggregateTypeExportJob is the aggregate type of export jobs
const AggregateTypeExportJob = "ExportJob"

// Event type constants for ExportJob
const (
	EventTypeExportJobCreated       = "ExportJobCreated"
	EventTypeExportJobStatusChanged = "ExportJobStatusChanged"
	EventTypeExportJobCompleted     = "ExportJobCompleted"
	EventTypeExportJobFailed        = "ExportJobFailed"
)

// ExportJobCreatedEvent is published when a new export job is created
type ExportJobCreatedEvent struct {
	shared.BaseDomainEvent
	JobID        uuid.UUID    `json:"job_id"`
	ArtifactType ArtifactType `json:"artifact_type"`
	Reference    string       `json:"reference"`
}

// NewExportJobCreatedEvent creates a new ExportJobCreatedEvent
func NewExportJobCreatedEvent(job *ExportJob) *ExportJobCreatedEvent {
	return &ExportJobCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(
			EventTypeExportJobCreated,
			AggregateTypeExportJob,
			job.ID,
			job.TenantID,
		),
		JobID:        job.ID,
		ArtifactType: job.ArtifactType,
		Reference:    job.Reference,
	}
}

// ExportJobStatusChangedEvent is published when an export job's status changes
type ExportJobStatusChangedEvent struct {
	shared.BaseDomainEvent
	JobID     uuid.UUID `json:"job_id"`
	Reference string    `json:"reference"`
	OldStatus JobStatus `json:"old_status"`
	NewStatus JobStatus `json:"new_status"`
}

// NewExportJobStatusChangedEvent creates a new ExportJobStatusChangedEvent
func NewExportJobStatusChangedEvent(job *ExportJob, oldStatus, newStatus JobStatus) *ExportJobStatusChangedEvent {
	return &ExportJobStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(
			EventTypeExportJobStatusChanged,
			AggregateTypeExportJob,
			job.ID,
			job.TenantID,
		),
		JobID:     job.ID,
		Reference: job.Reference,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	}
}

// ExportJobCompletedEvent is published when an export job stored its artifact
type ExportJobCompletedEvent struct {
	shared.BaseDomainEvent
	JobID        uuid.UUID    `json:"job_id"`
	ArtifactType ArtifactType `json:"artifact_type"`
	Reference    string       `json:"reference"`
	ArtifactURL  string       `json:"artifact_url"`
	Width        int          `json:"width"`
	Height       int          `json:"height"`
	SizeBytes    int64        `json:"size_bytes"`
}

// NewExportJobCompletedEvent creates a new ExportJobCompletedEvent
func NewExportJobCompletedEvent(job *ExportJob) *ExportJobCompletedEvent {
	return &ExportJobCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(
			EventTypeExportJobCompleted,
			AggregateTypeExportJob,
			job.ID,
			job.TenantID,
		),
		JobID:        job.ID,
		ArtifactType: job.ArtifactType,
		Reference:    job.Reference,
		ArtifactURL:  job.ArtifactURL,
		Width:        job.Width,
		Height:       job.Height,
		SizeBytes:    job.SizeBytes,
	}
}

// ExportJobFailedEvent is published when an export job fails
type ExportJobFailedEvent struct {
	shared.BaseDomainEvent
	JobID        uuid.UUID    `json:"job_id"`
	ArtifactType ArtifactType `json:"artifact_type"`
	Reference    string       `json:"reference"`
	ErrorMessage string       `json:"error_message"`
}

// NewExportJobFailedEvent creates a new ExportJobFailedEvent
func NewExportJobFailedEvent(job *ExportJob) *ExportJobFailedEvent {
	return &ExportJobFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(
			EventTypeExportJobFailed,
			AggregateTypeExportJob,
			job.ID,
			job.TenantID,
		),
		JobID:        job.ID,
		ArtifactType: job.ArtifactType,
		Reference:    job.Reference,
		ErrorMessage: job.ErrorMessage,
	}
}
