package persistence

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/export"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormExportJobRepository implements export.ExportJobRepository using GORM
type GormExportJobRepository struct {
	db *gorm.DB
}

// NewGormExportJobRepository creates a new GormExportJobRepository
func NewGormExportJobRepository(db *gorm.DB) *GormExportJobRepository {
	return &GormExportJobRepository{db: db}
}

// FindByIDForTenant finds a job by ID within a specific tenant
func (r *GormExportJobRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*export.ExportJob, error) {
	var model models.ExportJobModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant lists jobs for a tenant, filtered, sorted and paginated
func (r *GormExportJobRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter export.ExportJobFilter) ([]export.ExportJob, error) {
	var jobModels []models.ExportJobModel
	query := r.scoped(ctx, tenantID, filter)
	query = r.applyPagination(query, filter.Filter)

	if err := query.Find(&jobModels).Error; err != nil {
		return nil, err
	}

	jobs := make([]export.ExportJob, len(jobModels))
	for i := range jobModels {
		jobs[i] = *jobModels[i].ToDomain()
	}
	return jobs, nil
}

// CountForTenant counts the jobs FindAllForTenant would return without pagination
func (r *GormExportJobRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter export.ExportJobFilter) (int64, error) {
	var count int64
	if err := r.scoped(ctx, tenantID, filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindByFingerprint returns the most recent completed job with fingerprint
func (r *GormExportJobRepository) FindByFingerprint(ctx context.Context, tenantID uuid.UUID, fingerprint string) (*export.ExportJob, error) {
	if fingerprint == "" {
		return nil, shared.ErrNotFound
	}
	var model models.ExportJobModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND fingerprint = ? AND status = ?", tenantID, fingerprint, string(export.JobStatusCompleted)).
		Order("completed_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save saves a job (insert or update)
func (r *GormExportJobRepository) Save(ctx context.Context, job *export.ExportJob) error {
	return r.db.WithContext(ctx).Save(models.ExportJobModelFromDomain(job)).Error
}

// Delete deletes a job by ID within a tenant
func (r *GormExportJobRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&models.ExportJobModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// scoped applies the tenant and the export criteria but no pagination
func (r *GormExportJobRepository) scoped(ctx context.Context, tenantID uuid.UUID, filter export.ExportJobFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.ExportJobModel{}).Where("tenant_id = ?", tenantID)

	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if filter.ArtifactType != nil {
		query = query.Where("artifact_type = ?", string(*filter.ArtifactType))
	}
	if filter.Reference != "" {
		query = query.Where("reference = ?", filter.Reference)
	}
	if filter.Search != "" {
		query = query.Where("reference LIKE ?", "%"+filter.Search+"%")
	}
	return query
}

func (r *GormExportJobRepository) applyPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = query.Order(orderBy(filter))

	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}
	return query
}

// exportJobSortColumns are the columns a list may be ordered by
var exportJobSortColumns = []string{
	"created_at", "updated_at", "completed_at",
	"artifact_type", "reference", "status", "size_bytes",
}

// orderBy maps the filter onto a whitelisted column, newest first unless
// "asc" is asked for
func orderBy(filter shared.Filter) clause.OrderByColumn {
	column := strings.TrimSpace(filter.OrderBy)
	if !slices.Contains(exportJobSortColumns, column) {
		column = "created_at"
	}
	return clause.OrderByColumn{
		Column: clause.Column{Name: column},
		Desc:   !strings.EqualFold(strings.TrimSpace(filter.OrderDir), "asc"),
	}
}

var _ export.ExportJobRepository = (*GormExportJobRepository)(nil)
