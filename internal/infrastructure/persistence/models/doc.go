// Package models contains the GORM persistence models. They are kept apart
// from the domain entities so the domain layer carries no ORM tags.
//
// Each model converts to its aggregate with ToDomain and back with a
// <Model>FromDomain constructor. Repositories only hand domain types to
// callers.
//
// Structure:
// - base.go: columns shared by tenant-scoped aggregate roots
// - export_job.go: the export_jobs table
package models
