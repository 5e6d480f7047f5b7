package export

import (
	"context"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
)

// ExportJobRepository defines the interface for export job persistence
type ExportJobRepository interface {
	// FindByIDForTenant finds a job by ID within a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ExportJob, error)

	// FindAllForTenant finds all jobs for a specific tenant
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter ExportJobFilter) ([]ExportJob, error)

	// CountForTenant returns the total count of jobs for a tenant
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter ExportJobFilter) (int64, error)

	// FindByFingerprint finds the latest completed job with the given fingerprint.
	// Returns shared.ErrNotFound if there is none.
	FindByFingerprint(ctx context.Context, tenantID uuid.UUID, fingerprint string) (*ExportJob, error)

	// Save saves a job (insert or update)
	Save(ctx context.Context, job *ExportJob) error

	// Delete deletes a job by ID
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// ExportJobFilter extends the standard filter with export job criteria
type ExportJobFilter struct {
	shared.Filter
	Status       *JobStatus    // Filter by status
	ArtifactType *ArtifactType // Filter by artifact type
	Reference    string        // Filter by exact reference
}
