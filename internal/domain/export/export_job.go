package export

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
)

const maxReferenceLength = 100

// ExportJob represents one image export of a store document.
// A job is created PENDING, moves to RENDERING while the engine runs and
// ends COMPLETED (with an artifact) or FAILED (with an error message).
type ExportJob struct {
	shared.TenantAggregateRoot
	ArtifactType ArtifactType  // Kind of document exported
	Reference    string        // Business reference, e.g. a warranty card number
	Selector     string        // CSS selector of the exported element
	Options      RenderOptions // Engine options used for the export
	Status       JobStatus     // Current job status
	Fingerprint  string        // Content hash of the rendered input and options
	Width        int           // Exported image width in pixels
	Height       int           // Exported image height in pixels
	SizeBytes    int64         // Encoded PNG size
	StoragePath  string        // Artifact path relative to the storage root
	ArtifactURL  string        // URL to download the artifact
	FromCache    bool          // Artifact was served from the render cache
	ErrorMessage string        // Error message if job failed
	CompletedAt  *time.Time    // When the job completed
	RequestedBy  *uuid.UUID    // User who requested the export
}

// NewExportJob creates a new export job
func NewExportJob(
	tenantID uuid.UUID,
	artifactType ArtifactType,
	reference string,
	selector string,
	options RenderOptions,
	requestedBy uuid.UUID,
) (*ExportJob, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if !artifactType.IsValid() {
		return nil, shared.NewDomainError("INVALID_ARTIFACT_TYPE", "Invalid artifact type: "+string(artifactType))
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, shared.NewDomainError("INVALID_REFERENCE", "Reference cannot be empty")
	}
	if len(reference) > maxReferenceLength {
		return nil, shared.NewDomainError("INVALID_REFERENCE", "Reference cannot exceed 100 characters")
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}

	job := &ExportJob{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ArtifactType:        artifactType,
		Reference:           reference,
		Selector:            selector,
		Options:             options,
		Status:              JobStatusPending,
	}
	if requestedBy != uuid.Nil {
		job.RequestedBy = &requestedBy
		job.SetCreatedBy(requestedBy)
	}

	job.AddDomainEvent(NewExportJobCreatedEvent(job))

	return job, nil
}

// SetFingerprint records the content hash used for cache lookups
func (j *ExportJob) SetFingerprint(fingerprint string) {
	j.Fingerprint = fingerprint
	j.UpdatedAt = time.Now()
}

// StartRendering marks the job as rendering
func (j *ExportJob) StartRendering() error {
	if !j.Status.CanTransitionTo(JobStatusRendering) {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot start rendering from status: "+j.Status.String())
	}

	j.Status = JobStatusRendering
	j.UpdatedAt = time.Now()
	j.IncrementVersion()

	j.AddDomainEvent(NewExportJobStatusChangedEvent(j, JobStatusPending, JobStatusRendering))

	return nil
}

// Complete marks the job as completed with the stored artifact
func (j *ExportJob) Complete(artifact Artifact, fromCache bool) error {
	if !j.Status.CanTransitionTo(JobStatusCompleted) {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot complete from status: "+j.Status.String())
	}
	if artifact.Path == "" {
		return shared.NewDomainError("INVALID_ARTIFACT", "Artifact path cannot be empty")
	}
	if artifact.Width <= 0 || artifact.Height <= 0 {
		return shared.NewDomainError("INVALID_ARTIFACT", "Artifact dimensions must be positive")
	}

	oldStatus := j.Status
	j.Status = JobStatusCompleted
	j.StoragePath = artifact.Path
	j.ArtifactURL = artifact.URL
	j.Width = artifact.Width
	j.Height = artifact.Height
	j.SizeBytes = artifact.SizeBytes
	j.FromCache = fromCache
	now := time.Now()
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.IncrementVersion()

	j.AddDomainEvent(NewExportJobStatusChangedEvent(j, oldStatus, JobStatusCompleted))
	j.AddDomainEvent(NewExportJobCompletedEvent(j))

	return nil
}

// Fail marks the job as failed with an error message
func (j *ExportJob) Fail(errorMessage string) error {
	if j.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot fail a job that is already in terminal status: "+j.Status.String())
	}

	oldStatus := j.Status
	j.Status = JobStatusFailed
	j.ErrorMessage = errorMessage
	now := time.Now()
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.IncrementVersion()

	j.AddDomainEvent(NewExportJobStatusChangedEvent(j, oldStatus, JobStatusFailed))
	j.AddDomainEvent(NewExportJobFailedEvent(j))

	return nil
}

// IsPending returns true if the job is pending
func (j *ExportJob) IsPending() bool {
	return j.Status == JobStatusPending
}

// IsCompleted returns true if the job is completed
func (j *ExportJob) IsCompleted() bool {
	return j.Status == JobStatusCompleted
}

// IsFailed returns true if the job failed
func (j *ExportJob) IsFailed() bool {
	return j.Status == JobStatusFailed
}

// IsTerminal returns true if the job is in a terminal state
func (j *ExportJob) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// HasArtifact returns true if a PNG has been stored for the job
func (j *ExportJob) HasArtifact() bool {
	return j.StoragePath != ""
}
