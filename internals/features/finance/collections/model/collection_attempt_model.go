package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

/* ===================== Enums (string) ===================== */

const (
	AttemptStatusSubmitted     = "submitted"
	AttemptStatusBindingFailed = "binding_failed"
	AttemptStatusSubmitFailed  = "submit_failed"
)

const (
	OrphanStatusPending   = "pending"
	OrphanStatusSubmitted = "submitted"
)

/* ===================== Models ===================== */

// CollectionAttempt is an audit row per "complete" click. It is not the ledger.
type CollectionAttempt struct {
	CollectionAttemptID uuid.UUID `gorm:"column:collection_attempt_id;type:uuid;default:gen_random_uuid();primaryKey" json:"collection_attempt_id"`

	CollectionAttemptSessionID  uuid.UUID  `gorm:"column:collection_attempt_session_id;type:uuid;not null;index" json:"collection_attempt_session_id"`
	CollectionAttemptFlow       string     `gorm:"column:collection_attempt_flow;type:varchar(32);not null" json:"collection_attempt_flow"`
	CollectionAttemptStatus     string     `gorm:"column:collection_attempt_status;type:varchar(24);not null" json:"collection_attempt_status"`
	CollectionAttemptUserID     *uuid.UUID `gorm:"column:collection_attempt_user_id;type:uuid" json:"collection_attempt_user_id,omitempty"`
	CollectionAttemptLocationID *string    `gorm:"column:collection_attempt_location_id" json:"collection_attempt_location_id,omitempty"`
	CollectionAttemptCustomerID *string    `gorm:"column:collection_attempt_customer_id" json:"collection_attempt_customer_id,omitempty"`

	// minor units
	CollectionAttemptTotalMinor int64 `gorm:"column:collection_attempt_total_minor;not null;check:collection_attempt_total_minor >= 0" json:"collection_attempt_total_minor"`

	CollectionAttemptPayload   datatypes.JSON `gorm:"column:collection_attempt_payload;type:jsonb" json:"collection_attempt_payload,omitempty"`
	CollectionAttemptBoundRefs pq.StringArray `gorm:"column:collection_attempt_bound_refs;type:text[]" json:"collection_attempt_bound_refs,omitempty"`
	CollectionAttemptRecordID  *string        `gorm:"column:collection_attempt_record_id" json:"collection_attempt_record_id,omitempty"`
	CollectionAttemptError     *string        `gorm:"column:collection_attempt_error" json:"collection_attempt_error,omitempty"`

	CreatedAt time.Time `gorm:"column:collection_attempt_created_at;autoCreateTime" json:"collection_attempt_created_at"`
}

func (CollectionAttempt) TableName() string { return "collection_attempts" }

// OrphanedResource records an external resource created by the binder whose
// submission has not (yet) gone through. Nothing deletes it automatically.
type OrphanedResource struct {
	OrphanedResourceID uuid.UUID `gorm:"column:orphaned_resource_id;type:uuid;default:gen_random_uuid();primaryKey" json:"orphaned_resource_id"`

	OrphanedResourceSessionID   uuid.UUID `gorm:"column:orphaned_resource_session_id;type:uuid;not null;index" json:"orphaned_resource_session_id"`
	OrphanedResourceKind        string    `gorm:"column:orphaned_resource_kind;type:varchar(32);not null" json:"orphaned_resource_kind"`
	OrphanedResourceExternalRef string    `gorm:"column:orphaned_resource_external_ref;not null;uniqueIndex:uq_orphaned_resource_ref" json:"orphaned_resource_external_ref"`
	OrphanedResourceAmountMinor int64     `gorm:"column:orphaned_resource_amount_minor;not null" json:"orphaned_resource_amount_minor"`
	OrphanedResourceCustomerID  *string   `gorm:"column:orphaned_resource_customer_id" json:"orphaned_resource_customer_id,omitempty"`
	OrphanedResourceStatus      string    `gorm:"column:orphaned_resource_status;type:varchar(16);not null;default:'pending'" json:"orphaned_resource_status"`
	OrphanedResourceReason      *string   `gorm:"column:orphaned_resource_reason" json:"orphaned_resource_reason,omitempty"`

	CreatedAt  time.Time  `gorm:"column:orphaned_resource_created_at;autoCreateTime" json:"orphaned_resource_created_at"`
	UpdatedAt  time.Time  `gorm:"column:orphaned_resource_updated_at;autoUpdateTime" json:"orphaned_resource_updated_at"`
	ResolvedAt *time.Time `gorm:"column:orphaned_resource_resolved_at" json:"orphaned_resource_resolved_at,omitempty"`
}

func (OrphanedResource) TableName() string { return "orphaned_resources" }
