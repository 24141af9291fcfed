package dto

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"retailku_backend/internals/features/finance/collections/catalog"
	"retailku_backend/internals/features/finance/collections/model"
	"retailku_backend/internals/features/finance/collections/normalizer"
	"retailku_backend/internals/features/finance/collections/service"
)

/* =========================================================
   REQUEST DTOs
========================================================= */

// OpenSessionRequest: POST /sessions
type OpenSessionRequest struct {
	Flow        string      `json:"flow" validate:"required,oneof=customer_payment order_payment customer_refund advance_collection"`
	TotalAmount model.Money `json:"total_amount" validate:"gte=0"`
	CustomerID  string      `json:"customer_id" validate:"required,max=64"`
	ReferenceID string      `json:"reference_id" validate:"omitempty,max=64"`
}

func (r *OpenSessionRequest) Normalize() {
	r.Flow = strings.ToLower(strings.TrimSpace(r.Flow))
	r.CustomerID = strings.TrimSpace(r.CustomerID)
	r.ReferenceID = strings.TrimSpace(r.ReferenceID)
}

func (r OpenSessionRequest) ToInput(userID uuid.UUID, locationID string) service.OpenInput {
	return service.OpenInput{
		Flow:        model.Flow(r.Flow),
		TotalAmount: r.TotalAmount,
		CustomerID:  r.CustomerID,
		ReferenceID: r.ReferenceID,
		UserID:      userID,
		LocationID:  locationID,
	}
}

// AddEntryRequest: POST /sessions/:id/entries
// amount may be omitted for a gift voucher being spent; the voucher decides.
type AddEntryRequest struct {
	Kind   string         `json:"kind" validate:"required,oneof=cash card upi cheque bank_transfer advance gift_voucher"`
	Amount model.Money    `json:"amount" validate:"gte=0"`
	Fields map[string]any `json:"fields"`
}

func (r AddEntryRequest) ToInput() service.EntryInput {
	fields := r.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	return service.EntryInput{
		Kind:   model.MethodKind(strings.ToLower(strings.TrimSpace(r.Kind))),
		Amount: r.Amount,
		Fields: fields,
	}
}

// MutateAmountRequest: PATCH /sessions/:id/entries/:local_id
type MutateAmountRequest struct {
	Amount *model.Money `json:"amount" validate:"required"`
}

/* =========================================================
   RESPONSE DTOs
========================================================= */

type FieldSpecResponse struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type MethodResponse struct {
	Kind           model.MethodKind    `json:"kind"`
	Label          string              `json:"label"`
	RequiredFields []string            `json:"required_fields"`
	Fields         []FieldSpecResponse `json:"fields"`
	Optional       []FieldSpecResponse `json:"optional,omitempty"`
	Conditional    []ConditionalFields `json:"conditional,omitempty"`
	Singleton      bool                `json:"singleton"`
	CreatesRecord  bool                `json:"creates_record"`
	BindsExisting  bool                `json:"binds_existing"`
}

type ConditionalFields struct {
	When     string              `json:"when"`
	Required []FieldSpecResponse `json:"required"`
}

func specs(in []catalog.FieldSpec) []FieldSpecResponse {
	out := make([]FieldSpecResponse, 0, len(in))
	for _, f := range in {
		out = append(out, FieldSpecResponse{Name: f.Name, Type: string(f.Type)})
	}
	return out
}

func FromContracts(cs []catalog.Contract, dir model.Direction) []MethodResponse {
	out := make([]MethodResponse, 0, len(cs))
	for _, c := range cs {
		m := MethodResponse{
			Kind:           c.Kind,
			Label:          c.Label,
			RequiredFields: c.RequiredFields(),
			Fields:         specs(c.Required),
			Singleton:      c.Singleton,
			CreatesRecord:  c.RequiresCreation(dir),
			BindsExisting:  c.BindsExisting(dir),
		}
		if len(c.Optional) > 0 {
			m.Optional = specs(c.Optional)
		}
		for _, cond := range c.Conditional {
			m.Conditional = append(m.Conditional, ConditionalFields{When: cond.When, Required: specs(cond.Required)})
		}
		out = append(out, m)
	}
	return out
}

type EntryResponse struct {
	LocalID     string           `json:"local_id"`
	Kind        model.MethodKind `json:"kind"`
	Amount      model.Money      `json:"amount"`
	Fields      map[string]any   `json:"fields"`
	State       model.EntryState `json:"state"`
	ExternalRef string           `json:"external_ref,omitempty"`
	Locked      bool             `json:"locked"`
	MaxAmount   *model.Money     `json:"max_amount,omitempty"`
}

func FromEntry(e model.PaymentEntry) EntryResponse {
	r := EntryResponse{
		LocalID:     e.LocalID,
		Kind:        e.Kind,
		Amount:      e.Amount,
		Fields:      e.Fields,
		State:       e.State,
		ExternalRef: e.ExternalRef,
	}
	if e.Constraint != nil {
		r.Locked = e.Constraint.Locked()
		limit := e.Constraint.Cap
		r.MaxAmount = &limit
	}
	return r
}

type SessionResponse struct {
	SessionID   uuid.UUID       `json:"session_id"`
	Flow        model.Flow      `json:"flow"`
	Direction   model.Direction `json:"direction"`
	CustomerID  string          `json:"customer_id"`
	ReferenceID string          `json:"reference_id,omitempty"`
	TotalAmount model.Money     `json:"total_amount"`
	Allocated   model.Money     `json:"allocated"`
	Remaining   model.Money     `json:"remaining"`
	Submittable bool            `json:"submittable"`
	Completed   bool            `json:"completed"`
	RecordID    string          `json:"record_id,omitempty"`
	Entries     []EntryResponse `json:"entries"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

func FromSnapshot(s service.Snapshot) SessionResponse {
	entries := make([]EntryResponse, 0, len(s.Entries))
	for _, e := range s.Entries {
		entries = append(entries, FromEntry(e))
	}
	return SessionResponse{
		SessionID:   s.ID,
		Flow:        s.Flow,
		Direction:   s.Direction,
		CustomerID:  s.CustomerID,
		ReferenceID: s.ReferenceID,
		TotalAmount: s.Total,
		Allocated:   s.Allocated,
		Remaining:   s.Remaining,
		Submittable: s.Submittable,
		Completed:   s.Completed,
		RecordID:    s.RecordID,
		Entries:     entries,
		ExpiresAt:   s.ExpiresAt,
	}
}

type EntryMutationResponse struct {
	Entry   *EntryResponse  `json:"entry,omitempty"`
	Session SessionResponse `json:"session"`
}

type CompletionResponse struct {
	SessionID uuid.UUID                    `json:"session_id"`
	RecordID  string                       `json:"record_id"`
	BoundRefs []string                     `json:"bound_refs,omitempty"`
	Payload   normalizer.SubmissionPayload `json:"payload"`
}

func FromCompletion(r service.CompletionResult) CompletionResponse {
	return CompletionResponse{
		SessionID: r.SessionID,
		RecordID:  r.RecordID,
		BoundRefs: r.BoundRefs,
		Payload:   r.Payload,
	}
}

type OrphanResponse struct {
	ID          uuid.UUID   `json:"orphaned_resource_id"`
	SessionID   uuid.UUID   `json:"session_id"`
	Kind        string      `json:"kind"`
	ExternalRef string      `json:"external_ref"`
	Amount      model.Money `json:"amount"`
	CustomerID  *string     `json:"customer_id,omitempty"`
	Status      string      `json:"status"`
	Reason      *string     `json:"reason,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	ResolvedAt  *time.Time  `json:"resolved_at,omitempty"`
}

func FromOrphans(rows []model.OrphanedResource) []OrphanResponse {
	out := make([]OrphanResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, OrphanResponse{
			ID:          r.OrphanedResourceID,
			SessionID:   r.OrphanedResourceSessionID,
			Kind:        r.OrphanedResourceKind,
			ExternalRef: r.OrphanedResourceExternalRef,
			Amount:      model.Money(r.OrphanedResourceAmountMinor),
			CustomerID:  r.OrphanedResourceCustomerID,
			Status:      r.OrphanedResourceStatus,
			Reason:      r.OrphanedResourceReason,
			CreatedAt:   r.CreatedAt,
			ResolvedAt:  r.ResolvedAt,
		})
	}
	return out
}
