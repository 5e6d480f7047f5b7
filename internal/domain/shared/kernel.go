// Package shared holds the building blocks every export aggregate is made of:
// identity, versioning, tenant scope and pending domain events.
package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries identity and timestamps
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

func newBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// BaseAggregateRoot adds an optimistic-locking version and the events raised
// since the aggregate was loaded. Events are never persisted.
type BaseAggregateRoot struct {
	BaseEntity
	Version int

	events []DomainEvent
}

// GetVersion returns the aggregate version
func (a *BaseAggregateRoot) GetVersion() int { return a.Version }

// IncrementVersion bumps the version after a state change
func (a *BaseAggregateRoot) IncrementVersion() { a.Version++ }

// AddDomainEvent queues an event for publishing
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.events = append(a.events, event)
}

// GetDomainEvents returns the queued events
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent { return a.events }

// ClearDomainEvents drops the queued events once they are published
func (a *BaseAggregateRoot) ClearDomainEvents() { a.events = nil }

// TenantAggregateRoot scopes an aggregate to a tenant and, optionally, the
// user that requested it.
type TenantAggregateRoot struct {
	BaseAggregateRoot
	TenantID  uuid.UUID
	CreatedBy *uuid.UUID
}

// NewTenantAggregateRoot starts a fresh aggregate at version 1
func NewTenantAggregateRoot(tenantID uuid.UUID) TenantAggregateRoot {
	return TenantAggregateRoot{
		BaseAggregateRoot: BaseAggregateRoot{BaseEntity: newBaseEntity(), Version: 1},
		TenantID:          tenantID,
	}
}

// SetCreatedBy records the requesting user
func (t *TenantAggregateRoot) SetCreatedBy(userID uuid.UUID) { t.CreatedBy = &userID }

// GetCreatedBy returns the requesting user, nil when anonymous
func (t *TenantAggregateRoot) GetCreatedBy() *uuid.UUID { return t.CreatedBy }
