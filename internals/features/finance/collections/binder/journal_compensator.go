package binder

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"retailku_backend/internals/features/finance/collections/model"
)

// OrphanRecorder is implemented by the journal repository.
type OrphanRecorder interface {
	RecordOrphans(ctx context.Context, rows []model.OrphanedResource) error
}

// JournalCompensator does not delete anything at the collaborator. It writes
// each created-but-unsubmitted resource as a pending orphan so it can be
// reconciled by hand or claimed by a later successful submit.
type JournalCompensator struct {
	recorder   OrphanRecorder
	customerID func(sessionID string) string
}

func NewJournalCompensator(recorder OrphanRecorder, customerOf func(sessionID string) string) *JournalCompensator {
	return &JournalCompensator{recorder: recorder, customerID: customerOf}
}

func (c *JournalCompensator) Compensate(ctx context.Context, sessionID string, created []model.PaymentEntry, cause error) error {
	sid, err := uuid.Parse(sessionID)
	if err != nil {
		return fmt.Errorf("orphan journal: bad session id %q: %w", sessionID, err)
	}

	var customer *string
	if c.customerID != nil {
		if v := c.customerID(sessionID); v != "" {
			customer = &v
		}
	}
	var reason *string
	if cause != nil {
		r := cause.Error()
		reason = &r
	}

	rows := make([]model.OrphanedResource, 0, len(created))
	for _, e := range created {
		if e.ExternalRef == "" {
			continue
		}
		rows = append(rows, model.OrphanedResource{
			OrphanedResourceSessionID:   sid,
			OrphanedResourceKind:        string(e.Kind),
			OrphanedResourceExternalRef: e.ExternalRef,
			OrphanedResourceAmountMinor: int64(e.Amount),
			OrphanedResourceCustomerID:  customer,
			OrphanedResourceStatus:      model.OrphanStatusPending,
			OrphanedResourceReason:      reason,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return c.recorder.RecordOrphans(ctx, rows)
}
