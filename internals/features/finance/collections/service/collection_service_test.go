package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailku_backend/internals/features/finance/collections/binder"
	"retailku_backend/internals/features/finance/collections/collaborator"
	"retailku_backend/internals/features/finance/collections/model"
)

/* ===================== fakes ===================== */

type stubIssuer struct {
	calls int
	err   error
}

func (s *stubIssuer) IssueGiftVoucher(_ context.Context, req model.VoucherIssueRequest) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "GV-" + req.VoucherCode, nil
}

type stubSubmitter struct {
	calls []collaborator.SubmitRequest
	err   error
}

func (s *stubSubmitter) Submit(_ context.Context, req collaborator.SubmitRequest) (string, error) {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return "", s.err
	}
	return "REC-1", nil
}

type stubVouchers struct {
	info model.VoucherInfo
	err  error
}

func (s stubVouchers) LookupGiftVoucher(context.Context, string, string) (model.VoucherInfo, error) {
	return s.info, s.err
}

type countingVouchers struct {
	calls int
	info  model.VoucherInfo
}

func (c *countingVouchers) LookupGiftVoucher(_ context.Context, code, _ string) (model.VoucherInfo, error) {
	c.calls++
	if code != "GV-300" {
		return model.VoucherInfo{}, collaborator.ErrNotFound
	}
	return c.info, nil
}

type stubJournal struct {
	attempts []model.CollectionAttempt
	orphans  []model.OrphanedResource
	resolved []string
}

func (j *stubJournal) RecordAttempt(_ context.Context, row *model.CollectionAttempt) error {
	j.attempts = append(j.attempts, *row)
	return nil
}

func (j *stubJournal) RecordOrphans(_ context.Context, rows []model.OrphanedResource) error {
	j.orphans = append(j.orphans, rows...)
	return nil
}

func (j *stubJournal) MarkOrphansSubmitted(_ context.Context, _ uuid.UUID, refs []string) (int64, error) {
	j.resolved = append(j.resolved, refs...)
	return int64(len(refs)), nil
}

type fixture struct {
	svc       *CollectionService
	store     *SessionStore
	issuer    *stubIssuer
	submitter *stubSubmitter
	journal   *stubJournal
	user      uuid.UUID
}

func newFixture(vouchers VoucherLookup) *fixture {
	f := &fixture{
		store:     NewSessionStore(0),
		issuer:    &stubIssuer{},
		submitter: &stubSubmitter{},
		journal:   &stubJournal{},
		user:      uuid.New(),
	}
	comp := binder.NewJournalCompensator(f.journal, f.store.CustomerOf)
	f.svc = NewCollectionService(Deps{
		Store:       f.store,
		Binder:      binder.New(f.issuer, comp, binder.Config{}, nil),
		Vouchers:    vouchers,
		Submitter:   f.submitter,
		Compensator: comp,
		Journal:     f.journal,
	})
	return f
}

func (f *fixture) open(t *testing.T, flow model.Flow, total string) Snapshot {
	t.Helper()
	snap, err := f.svc.Open(context.Background(), OpenInput{
		Flow:        flow,
		TotalAmount: model.MustMoney(total),
		CustomerID:  "C-1",
		ReferenceID: "DOC-1",
		UserID:      f.user,
		LocationID:  "L-1",
	})
	require.NoError(t, err)
	return snap
}

func (f *fixture) add(t *testing.T, id uuid.UUID, in EntryInput) model.PaymentEntry {
	t.Helper()
	e, _, err := f.svc.AddEntry(context.Background(), id, f.user, in)
	require.NoError(t, err)
	return e
}

func refundSession(t *testing.T, f *fixture) Snapshot {
	snap := f.open(t, model.FlowCustomerRefund, "400")
	f.add(t, snap.ID, EntryInput{Kind: model.MethodCash, Amount: model.MustMoney("200")})
	f.add(t, snap.ID, EntryInput{
		Kind:   model.MethodGiftVoucher,
		Amount: model.MustMoney("200"),
		Fields: map[string]any{"voucherCode": "RF"},
	})
	return snap
}

/* ===================== tests ===================== */

func TestComplete_CreationFailureSkipsSubmit(t *testing.T) {
	f := newFixture(nil)
	snap := refundSession(t, f)
	f.issuer.err = errors.New("voucher service down")

	_, err := f.svc.Complete(context.Background(), snap.ID, f.user)

	var cerr *model.ExternalResourceCreationError
	require.ErrorAs(t, err, &cerr)
	assert.Empty(t, f.submitter.calls)
	require.Len(t, f.journal.attempts, 1)
	assert.Equal(t, model.AttemptStatusBindingFailed, f.journal.attempts[0].CollectionAttemptStatus)

	got, err := f.svc.Snapshot(snap.ID, f.user)
	require.NoError(t, err)
	assert.Len(t, got.Entries, 2)
	assert.False(t, got.Completed)
	assert.True(t, got.Submittable)
}

func TestComplete_RetryAfterCreationFailure(t *testing.T) {
	f := newFixture(nil)
	snap := refundSession(t, f)

	f.issuer.err = errors.New("timeout")
	_, err := f.svc.Complete(context.Background(), snap.ID, f.user)
	require.Error(t, err)

	f.issuer.err = nil
	res, err := f.svc.Complete(context.Background(), snap.ID, f.user)
	require.NoError(t, err)

	assert.Equal(t, "REC-1", res.RecordID)
	require.NotNil(t, res.Payload.GiftVoucher)
	assert.Equal(t, "GV-RF", res.Payload.GiftVoucher.VoucherRef)
	require.Len(t, f.submitter.calls, 1)
	req := f.submitter.calls[0]
	assert.Equal(t, model.FlowCustomerRefund, req.Flow)
	assert.Equal(t, "DOC-1", req.ReferenceID)
	assert.Equal(t, f.user.String(), req.CreatedBy)
	assert.Equal(t, []string{"GV-RF"}, f.journal.resolved)

	_, err = f.svc.Complete(context.Background(), snap.ID, f.user)
	assert.ErrorIs(t, err, model.ErrSessionCompleted)
}

func TestComplete_SubmitFailureJournalsOrphanAndKeepsBinding(t *testing.T) {
	f := newFixture(nil)
	snap := refundSession(t, f)
	f.submitter.err = errors.New("502 bad gateway")

	_, err := f.svc.Complete(context.Background(), snap.ID, f.user)
	var serr *model.SubmissionError
	require.ErrorAs(t, err, &serr)
	require.Len(t, f.journal.orphans, 1)
	assert.Equal(t, "GV-RF", f.journal.orphans[0].OrphanedResourceExternalRef)
	assert.Equal(t, model.OrphanStatusPending, f.journal.orphans[0].OrphanedResourceStatus)

	f.submitter.err = nil
	_, err = f.svc.Complete(context.Background(), snap.ID, f.user)
	require.NoError(t, err)
	assert.Equal(t, 1, f.issuer.calls, "voucher must not be issued twice")
}

func TestComplete_BlockedWhileRemaining(t *testing.T) {
	f := newFixture(nil)
	snap := f.open(t, model.FlowCustomerPayment, "100")
	f.add(t, snap.ID, EntryInput{Kind: model.MethodCash, Amount: model.MustMoney("60")})

	_, err := f.svc.Complete(context.Background(), snap.ID, f.user)
	assert.ErrorIs(t, err, model.ErrSubmissionBlocked)
	assert.Empty(t, f.submitter.calls)
}

func TestAddEntry_CollectVoucherUsesLookup(t *testing.T) {
	f := newFixture(stubVouchers{info: model.VoucherInfo{ID: "77", Balance: model.MustMoney("300")}})
	snap := f.open(t, model.FlowCustomerPayment, "1000")

	e := f.add(t, snap.ID, EntryInput{
		Kind:   model.MethodGiftVoucher,
		Fields: map[string]any{"voucherCode": "GV-300"},
	})
	assert.Equal(t, model.MustMoney("300"), e.Amount)
	assert.Equal(t, "77", e.ExternalRef)

	_, _, err := f.svc.MutateAmount(snap.ID, f.user, e.LocalID, model.MustMoney("100"))
	assert.ErrorIs(t, err, model.ErrAmountLocked)
}

func TestAddEntry_UnknownVoucher(t *testing.T) {
	f := newFixture(stubVouchers{err: collaborator.ErrNotFound})
	snap := f.open(t, model.FlowCustomerPayment, "1000")

	_, _, err := f.svc.AddEntry(context.Background(), snap.ID, f.user, EntryInput{
		Kind:   model.MethodGiftVoucher,
		Fields: map[string]any{"voucherCode": "NOPE"},
	})
	assert.ErrorIs(t, err, model.ErrFieldValidation)

	f2 := newFixture(stubVouchers{err: collaborator.ErrUnavailable})
	snap2 := f2.open(t, model.FlowCustomerPayment, "1000")
	_, _, err = f2.svc.AddEntry(context.Background(), snap2.ID, f2.user, EntryInput{
		Kind:   model.MethodGiftVoucher,
		Fields: map[string]any{"voucherCode": "X"},
	})
	assert.ErrorIs(t, err, ErrLookupFailed)
}

func TestOpen_ValidatesInput(t *testing.T) {
	f := newFixture(nil)

	_, err := f.svc.Open(context.Background(), OpenInput{Flow: model.FlowOrderPayment, CustomerID: "C", TotalAmount: 100})
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "reference_id", ve.Fields[0].Field)

	_, err = f.svc.Open(context.Background(), OpenInput{Flow: "layaway", CustomerID: "C"})
	assert.ErrorIs(t, err, model.ErrFieldValidation)

	_, err = f.svc.Open(context.Background(), OpenInput{Flow: model.FlowCustomerPayment, CustomerID: "C", TotalAmount: -1})
	assert.ErrorIs(t, err, model.ErrFieldValidation)
}

func TestSession_OwnedByOpener(t *testing.T) {
	f := newFixture(nil)
	snap := f.open(t, model.FlowCustomerPayment, "10")

	_, err := f.svc.Snapshot(snap.ID, uuid.New())
	assert.ErrorIs(t, err, model.ErrSessionNotFound)

	require.NoError(t, f.svc.Abandon(snap.ID, f.user))
	_, err = f.svc.Snapshot(snap.ID, f.user)
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestRemoveEntry_UnknownLocalID(t *testing.T) {
	f := newFixture(nil)
	snap := f.open(t, model.FlowCustomerPayment, "10")
	_, err := f.svc.RemoveEntry(context.Background(), snap.ID, f.user, "missing")
	assert.ErrorIs(t, err, model.ErrEntryNotFound)
}

func TestRemoveEntry_IssuedVoucherStaysPending(t *testing.T) {
	f := newFixture(nil)
	snap := refundSession(t, f)

	f.submitter.err = errors.New("502 bad gateway")
	_, err := f.svc.Complete(context.Background(), snap.ID, f.user)
	require.Error(t, err)

	got, err := f.svc.Snapshot(snap.ID, f.user)
	require.NoError(t, err)
	var gvID string
	for _, e := range got.Entries {
		if e.Kind == model.MethodGiftVoucher {
			gvID = e.LocalID
		}
	}
	require.NotEmpty(t, gvID)

	// kasir ganti voucher dengan tunai
	_, err = f.svc.RemoveEntry(context.Background(), snap.ID, f.user, gvID)
	require.NoError(t, err)
	f.add(t, snap.ID, EntryInput{Kind: model.MethodCash, Amount: model.MustMoney("200")})

	f.submitter.err = nil
	res, err := f.svc.Complete(context.Background(), snap.ID, f.user)
	require.NoError(t, err)

	assert.Nil(t, res.Payload.GiftVoucher)
	require.NotNil(t, res.Payload.Cash)
	assert.Equal(t, model.MustMoney("400"), *res.Payload.Cash)
	assert.Empty(t, res.BoundRefs)
	assert.Empty(t, f.journal.resolved)

	require.NotEmpty(t, f.journal.orphans)
	for _, o := range f.journal.orphans {
		assert.Equal(t, "GV-RF", o.OrphanedResourceExternalRef)
		assert.Equal(t, model.OrphanStatusPending, o.OrphanedResourceStatus)
	}
	assert.Equal(t, 1, f.issuer.calls)
}

func TestRemoveEntry_UnissuedVoucherNotJournaled(t *testing.T) {
	f := newFixture(nil)
	snap := f.open(t, model.FlowCustomerRefund, "100")
	gv := f.add(t, snap.ID, EntryInput{
		Kind:   model.MethodGiftVoucher,
		Amount: model.MustMoney("100"),
		Fields: map[string]any{"voucherCode": "RF"},
	})

	_, err := f.svc.RemoveEntry(context.Background(), snap.ID, f.user, gv.LocalID)
	require.NoError(t, err)
	assert.Empty(t, f.journal.orphans)
	assert.Zero(t, f.issuer.calls)
}

func TestAddEntry_SecondVoucherRejectedBeforeLookup(t *testing.T) {
	vouchers := &countingVouchers{info: model.VoucherInfo{ID: "77", Balance: model.MustMoney("300"), PartPayment: true}}
	f := newFixture(vouchers)
	snap := f.open(t, model.FlowCustomerPayment, "1000")

	f.add(t, snap.ID, EntryInput{
		Kind:   model.MethodGiftVoucher,
		Amount: model.MustMoney("100"),
		Fields: map[string]any{"voucherCode": "GV-300"},
	})
	require.Equal(t, 1, vouchers.calls)

	// unknown code, still a singleton rejection
	_, _, err := f.svc.AddEntry(context.Background(), snap.ID, f.user, EntryInput{
		Kind:   model.MethodGiftVoucher,
		Fields: map[string]any{"voucherCode": "OTHER"},
	})
	assert.ErrorIs(t, err, model.ErrSingletonViolation)
	assert.NotErrorIs(t, err, model.ErrFieldValidation)
	assert.Equal(t, 1, vouchers.calls)

	got, err := f.svc.Snapshot(snap.ID, f.user)
	require.NoError(t, err)
	assert.Len(t, got.Entries, 1)
}
