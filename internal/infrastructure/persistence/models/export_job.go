package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/export"
)

// ExportJobModel is the GORM model for the export_jobs table
type ExportJobModel struct {
	TenantAggregateModel
	ArtifactType   string     `gorm:"column:artifact_type;type:varchar(30);not null;index"`
	Reference      string     `gorm:"type:varchar(100);not null;index"`
	Selector       string     `gorm:"type:varchar(255);not null"`
	Scale          float64    `gorm:"not null"`
	Padding        int        `gorm:"not null"`
	WhiteThreshold int        `gorm:"column:white_threshold;not null"`
	SampleStep     int        `gorm:"column:sample_step;not null"`
	Background     string     `gorm:"type:varchar(9);not null"`
	Status         string     `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	Fingerprint    string     `gorm:"type:varchar(64);index"`
	Width          int        `gorm:"not null;default:0"`
	Height         int        `gorm:"not null;default:0"`
	SizeBytes      int64      `gorm:"column:size_bytes;not null;default:0"`
	StoragePath    string     `gorm:"column:storage_path;type:text"`
	ArtifactURL    string     `gorm:"column:artifact_url;type:text"`
	FromCache      bool       `gorm:"column:from_cache;not null;default:false"`
	ErrorMessage   string     `gorm:"column:error_message;type:text"`
	CompletedAt    *time.Time `gorm:"column:completed_at"`
	RequestedBy    *uuid.UUID `gorm:"column:requested_by;type:uuid"`
}

// TableName returns the table name for ExportJobModel
func (ExportJobModel) TableName() string {
	return "export_jobs"
}

// ToDomain converts ExportJobModel to domain ExportJob
func (m *ExportJobModel) ToDomain() *export.ExportJob {
	return &export.ExportJob{
		TenantAggregateRoot: m.ToDomainTenantAggregateRoot(),
		ArtifactType:        export.ArtifactType(m.ArtifactType),
		Reference:           m.Reference,
		Selector:            m.Selector,
		Options: export.RenderOptions{
			Scale:          m.Scale,
			Padding:        m.Padding,
			WhiteThreshold: m.WhiteThreshold,
			SampleStep:     m.SampleStep,
			Background:     m.Background,
		},
		Status:       export.JobStatus(m.Status),
		Fingerprint:  m.Fingerprint,
		Width:        m.Width,
		Height:       m.Height,
		SizeBytes:    m.SizeBytes,
		StoragePath:  m.StoragePath,
		ArtifactURL:  m.ArtifactURL,
		FromCache:    m.FromCache,
		ErrorMessage: m.ErrorMessage,
		CompletedAt:  m.CompletedAt,
		RequestedBy:  m.RequestedBy,
	}
}

// ExportJobModelFromDomain creates an ExportJobModel from domain ExportJob
func ExportJobModelFromDomain(j *export.ExportJob) *ExportJobModel {
	m := &ExportJobModel{
		ArtifactType:   string(j.ArtifactType),
		Reference:      j.Reference,
		Selector:       j.Selector,
		Scale:          j.Options.Scale,
		Padding:        j.Options.Padding,
		WhiteThreshold: j.Options.WhiteThreshold,
		SampleStep:     j.Options.SampleStep,
		Background:     j.Options.Background,
		Status:         string(j.Status),
		Fingerprint:    j.Fingerprint,
		Width:          j.Width,
		Height:         j.Height,
		SizeBytes:      j.SizeBytes,
		StoragePath:    j.StoragePath,
		ArtifactURL:    j.ArtifactURL,
		FromCache:      j.FromCache,
		ErrorMessage:   j.ErrorMessage,
		CompletedAt:    j.CompletedAt,
		RequestedBy:    j.RequestedBy,
	}
	m.FromDomainTenantAggregateRoot(j.TenantAggregateRoot)
	return m
}
