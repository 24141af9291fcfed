package binder_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailku_backend/internals/features/finance/collections/binder"
	"retailku_backend/internals/features/finance/collections/model"
)

type memRecorder struct{ rows []model.OrphanedResource }

func (m *memRecorder) RecordOrphans(_ context.Context, rows []model.OrphanedResource) error {
	m.rows = append(m.rows, rows...)
	return nil
}

func TestJournalCompensator_WritesPendingOrphans(t *testing.T) {
	rec := &memRecorder{}
	c := binder.NewJournalCompensator(rec, func(string) string { return "C-1" })
	sid := uuid.New()

	created := []model.PaymentEntry{
		{LocalID: "a", Kind: model.MethodGiftVoucher, Amount: 1250, ExternalRef: "GV-1"},
		{LocalID: "b", Kind: model.MethodGiftVoucher, Amount: 10},
	}
	err := c.Compensate(context.Background(), sid.String(), created, errors.New("submit rejected"))
	require.NoError(t, err)

	require.Len(t, rec.rows, 1)
	row := rec.rows[0]
	assert.Equal(t, sid, row.OrphanedResourceSessionID)
	assert.Equal(t, "GV-1", row.OrphanedResourceExternalRef)
	assert.Equal(t, int64(1250), row.OrphanedResourceAmountMinor)
	assert.Equal(t, model.OrphanStatusPending, row.OrphanedResourceStatus)
	require.NotNil(t, row.OrphanedResourceCustomerID)
	assert.Equal(t, "C-1", *row.OrphanedResourceCustomerID)
	require.NotNil(t, row.OrphanedResourceReason)
	assert.Equal(t, "submit rejected", *row.OrphanedResourceReason)
}

func TestJournalCompensator_BadSessionID(t *testing.T) {
	c := binder.NewJournalCompensator(&memRecorder{}, nil)
	err := c.Compensate(context.Background(), "not-a-uuid", nil, nil)
	assert.Error(t, err)
}
