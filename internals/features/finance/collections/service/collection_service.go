package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"retailku_backend/internals/features/finance/collections/binder"
	"retailku_backend/internals/features/finance/collections/catalog"
	"retailku_backend/internals/features/finance/collections/collaborator"
	"retailku_backend/internals/features/finance/collections/ledger"
	"retailku_backend/internals/features/finance/collections/model"
	"retailku_backend/internals/features/finance/collections/normalizer"
	"retailku_backend/internals/features/finance/collections/validator"
)

// ErrLookupFailed: the voucher lookup could not be answered (not a rejection).
var ErrLookupFailed = errors.New("gift voucher lookup failed")

/* =========================================================
   Ports
========================================================= */

type VoucherLookup interface {
	LookupGiftVoucher(ctx context.Context, code, customerID string) (model.VoucherInfo, error)
}

type Submitter interface {
	Submit(ctx context.Context, req collaborator.SubmitRequest) (string, error)
}

type ResourceBinder interface {
	Bind(ctx context.Context, sessionID string, l binder.Bindable, sess model.SessionContext) ([]model.PaymentEntry, error)
}

// Journal is optional; without it completions are only logged.
type Journal interface {
	RecordAttempt(ctx context.Context, row *model.CollectionAttempt) error
	MarkOrphansSubmitted(ctx context.Context, sessionID uuid.UUID, refs []string) (int64, error)
}

type Deps struct {
	Store       *SessionStore
	Validator   *validator.InstrumentValidator
	Binder      ResourceBinder
	Vouchers    VoucherLookup
	Submitter   Submitter
	Compensator binder.Compensator
	Journal     Journal
	Log         *zap.Logger
}

type CollectionService struct {
	store       *SessionStore
	validator   *validator.InstrumentValidator
	binder      ResourceBinder
	vouchers    VoucherLookup
	submitter   Submitter
	compensator binder.Compensator
	journal     Journal
	log         *zap.Logger
	now         func() time.Time
}

func NewCollectionService(d Deps) *CollectionService {
	if d.Store == nil {
		d.Store = NewSessionStore(0)
	}
	if d.Validator == nil {
		d.Validator = validator.New(validator.DefaultConfig())
	}
	if d.Compensator == nil {
		d.Compensator = binder.NopCompensator{}
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &CollectionService{
		store:       d.Store,
		validator:   d.Validator,
		binder:      d.Binder,
		vouchers:    d.Vouchers,
		submitter:   d.Submitter,
		compensator: d.Compensator,
		journal:     d.Journal,
		log:         d.Log,
		now:         time.Now,
	}
}

/* =========================================================
   Inputs / outputs
========================================================= */

type OpenInput struct {
	Flow        model.Flow
	TotalAmount model.Money
	CustomerID  string
	ReferenceID string
	UserID      uuid.UUID
	LocationID  string
	Timezone    *time.Location
}

type EntryInput struct {
	Kind   model.MethodKind
	Amount model.Money
	Fields map[string]any
}

type Snapshot struct {
	ID          uuid.UUID
	Flow        model.Flow
	Direction   model.Direction
	CustomerID  string
	ReferenceID string
	Total       model.Money
	Allocated   model.Money
	Remaining   model.Money
	Submittable bool
	Completed   bool
	RecordID    string
	Entries     []model.PaymentEntry
	ExpiresAt   time.Time
}

type CompletionResult struct {
	SessionID uuid.UUID
	RecordID  string
	Payload   normalizer.SubmissionPayload
	BoundRefs []string
}

/* =========================================================
   Session lifecycle
========================================================= */

// flows whose submission path is keyed by an existing document
func needsReference(f model.Flow) bool {
	return f == model.FlowOrderPayment || f == model.FlowCustomerRefund
}

func (s *CollectionService) Open(_ context.Context, in OpenInput) (Snapshot, error) {
	if !in.Flow.Valid() {
		return Snapshot{}, model.Reject(model.ErrFieldValidation, model.FieldError{
			Field: "flow", Code: "invalid", Message: fmt.Sprintf("unknown flow %q", in.Flow),
		})
	}
	var fes []model.FieldError
	if strings.TrimSpace(in.CustomerID) == "" {
		fes = append(fes, model.FieldError{Field: "customer_id", Code: "required", Message: "is required"})
	}
	if needsReference(in.Flow) && strings.TrimSpace(in.ReferenceID) == "" {
		fes = append(fes, model.FieldError{Field: "reference_id", Code: "required", Message: "is required for " + string(in.Flow)})
	}
	if len(fes) > 0 {
		return Snapshot{}, model.Reject(model.ErrFieldValidation, fes...)
	}

	target, err := model.NewPaymentTarget(in.TotalAmount, in.Flow.Direction())
	if err != nil {
		return Snapshot{}, model.Reject(model.ErrFieldValidation, model.FieldError{
			Field: "total_amount", Code: "out_of_range", Message: err.Error(),
		})
	}

	sc := model.SessionContext{
		UserID:      in.UserID,
		LocationID:  strings.TrimSpace(in.LocationID),
		CustomerID:  strings.TrimSpace(in.CustomerID),
		ReferenceID: strings.TrimSpace(in.ReferenceID),
		Flow:        in.Flow,
		Location:    in.Timezone,
	}
	sess := &Session{
		ID:      uuid.New(),
		Context: sc,
		Ledger:  ledger.New(target, s.validator, sc),
	}
	s.store.Put(sess)

	s.log.Info("collection session opened",
		zap.String("session_id", sess.ID.String()),
		zap.String("flow", string(in.Flow)),
		zap.String("total", in.TotalAmount.String()),
	)
	return s.snapshot(sess), nil
}

func (s *CollectionService) Snapshot(id, userID uuid.UUID) (Snapshot, error) {
	sess, err := s.store.Acquire(id, userID)
	if err != nil {
		return Snapshot{}, err
	}
	defer s.store.Release(sess)
	return s.snapshot(sess), nil
}

// Abandon forgets the session. Vouchers created by a failed completion were
// journaled when that completion failed, so nothing else is owed here.
func (s *CollectionService) Abandon(id, userID uuid.UUID) error {
	sess, err := s.store.Acquire(id, userID)
	if err != nil {
		return err
	}
	s.store.Delete(id)
	s.store.Release(sess)
	s.log.Info("collection session abandoned", zap.String("session_id", id.String()))
	return nil
}

/* =========================================================
   Ledger operations
========================================================= */

func (s *CollectionService) AddEntry(ctx context.Context, id, userID uuid.UUID, in EntryInput) (model.PaymentEntry, Snapshot, error) {
	sess, err := s.store.Acquire(id, userID)
	if err != nil {
		return model.PaymentEntry{}, Snapshot{}, err
	}
	defer s.store.Release(sess)
	if sess.completed {
		return model.PaymentEntry{}, Snapshot{}, model.ErrSessionCompleted
	}

	entry := model.PaymentEntry{Kind: in.Kind, Amount: in.Amount, Fields: in.Fields}

	if in.Kind == model.MethodGiftVoucher && sess.Ledger.Target().Direction == model.DirectionCollect {
		// a second voucher is refused before the lookup is spent on it
		if err := sess.Ledger.CheckSingleton(in.Kind); err != nil {
			return model.PaymentEntry{}, Snapshot{}, err
		}
		c, err := s.lookupVoucher(ctx, sess, in.Fields)
		if err != nil {
			return model.PaymentEntry{}, Snapshot{}, err
		}
		entry.Constraint = c
	}

	added, err := sess.Ledger.Add(entry)
	if err != nil {
		return model.PaymentEntry{}, Snapshot{}, err
	}
	return added, s.snapshot(sess), nil
}

// RemoveEntry drops an entry. If a voucher was already issued for it, the
// voucher goes to the orphan journal as pending; it will never be submitted.
func (s *CollectionService) RemoveEntry(ctx context.Context, id, userID uuid.UUID, localID string) (Snapshot, error) {
	sess, err := s.store.Acquire(id, userID)
	if err != nil {
		return Snapshot{}, err
	}
	defer s.store.Release(sess)
	if sess.completed {
		return Snapshot{}, model.ErrSessionCompleted
	}

	e, err := sess.Ledger.Entry(localID)
	if err != nil {
		return Snapshot{}, err
	}
	if err := sess.Ledger.Remove(localID); err != nil {
		return Snapshot{}, err
	}

	dir := sess.Ledger.Target().Direction
	if e.ExternalRef != "" && e.State == model.EntryBound && catalog.MustLookup(e.Kind).RequiresCreation(dir) {
		sess.dropCreated(localID)
		cause := fmt.Errorf("entry %s removed after %s was issued", localID, e.ExternalRef)
		if cerr := s.compensator.Compensate(context.WithoutCancel(ctx), id.String(), []model.PaymentEntry{e}, cause); cerr != nil {
			s.log.Error("orphan journal write failed", zap.String("session_id", id.String()), zap.Error(cerr))
		}
		s.log.Warn("issued voucher removed from session",
			zap.String("session_id", id.String()),
			zap.String("local_id", localID),
			zap.String("ref", e.ExternalRef),
		)
	}
	return s.snapshot(sess), nil
}

func (s *CollectionService) MutateAmount(id, userID uuid.UUID, localID string, amount model.Money) (model.PaymentEntry, Snapshot, error) {
	sess, err := s.store.Acquire(id, userID)
	if err != nil {
		return model.PaymentEntry{}, Snapshot{}, err
	}
	defer s.store.Release(sess)
	if sess.completed {
		return model.PaymentEntry{}, Snapshot{}, model.ErrSessionCompleted
	}
	e, err := sess.Ledger.MutateAmount(localID, amount)
	if err != nil {
		return model.PaymentEntry{}, Snapshot{}, err
	}
	return e, s.snapshot(sess), nil
}

func (s *CollectionService) lookupVoucher(ctx context.Context, sess *Session, fields map[string]any) (*model.GiftVoucherConstraint, error) {
	code, _ := fields[catalog.FieldVoucherCode].(string)
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, model.Reject(model.ErrFieldValidation, model.FieldError{
			Field: catalog.FieldVoucherCode, Code: "required", Message: "is required",
		})
	}
	if s.vouchers == nil {
		return nil, fmt.Errorf("%w: no voucher lookup configured", ErrLookupFailed)
	}

	info, err := s.vouchers.LookupGiftVoucher(ctx, code, sess.Context.CustomerID)
	switch {
	case errors.Is(err, collaborator.ErrNotFound):
		return nil, model.Reject(model.ErrFieldValidation, model.FieldError{
			Field: catalog.FieldVoucherCode, Code: "not_found", Message: "voucher not found for this customer",
		})
	case err != nil:
		s.log.Warn("gift voucher lookup failed",
			zap.String("session_id", sess.ID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	return info.Constraint(), nil
}

/* =========================================================
   Completion
========================================================= */

// Complete binds pending resources, normalizes and submits. A creation
// failure aborts before submit. Either failure keeps the ledger for retry.
func (s *CollectionService) Complete(ctx context.Context, id, userID uuid.UUID) (CompletionResult, error) {
	sess, err := s.store.Acquire(id, userID)
	if err != nil {
		return CompletionResult{}, err
	}
	defer s.store.Release(sess)
	if sess.completed {
		return CompletionResult{}, model.ErrSessionCompleted
	}

	l := sess.Ledger
	if !l.IsSubmittable() {
		return CompletionResult{}, model.Reject(model.ErrSubmissionBlocked, model.FieldError{
			Field:   "remaining",
			Code:    "not_zero",
			Message: fmt.Sprintf("%s still to allocate", l.Remaining()),
		})
	}

	sc := sess.Context
	sc.Now = s.now()

	if s.binder != nil {
		created, err := s.binder.Bind(ctx, id.String(), l, sc)
		sess.created = append(sess.created, created...)
		if err != nil {
			s.recordAttempt(ctx, sess, model.AttemptStatusBindingFailed, nil, "", err)
			return CompletionResult{}, err
		}
	}

	payload, err := normalizer.Normalize(l)
	if err != nil {
		return CompletionResult{}, err
	}

	req := collaborator.SubmitRequest{
		Flow:        sc.Flow,
		CustomerID:  sc.CustomerID,
		ReferenceID: sc.ReferenceID,
		CreatedBy:   sc.UserID.String(),
		LocationID:  sc.LocationID,
		Payment:     payload,
	}
	recordID, err := s.submitter.Submit(ctx, req)
	if err != nil {
		if len(sess.created) > 0 {
			if cerr := s.compensator.Compensate(context.WithoutCancel(ctx), id.String(), sess.created, err); cerr != nil {
				s.log.Error("orphan journal write failed", zap.String("session_id", id.String()), zap.Error(cerr))
			}
		}
		s.recordAttempt(ctx, sess, model.AttemptStatusSubmitFailed, &payload, "", err)
		return CompletionResult{}, &model.SubmissionError{Flow: sc.Flow, Err: err}
	}

	sess.completed = true
	sess.recordID = recordID
	// only what went out in this payload; removed vouchers stay pending
	refs := l.CreatedRefs()
	s.recordAttempt(ctx, sess, model.AttemptStatusSubmitted, &payload, recordID, nil)
	if s.journal != nil && len(refs) > 0 {
		if _, err := s.journal.MarkOrphansSubmitted(context.WithoutCancel(ctx), id, refs); err != nil {
			s.log.Error("resolve orphans failed", zap.String("session_id", id.String()), zap.Error(err))
		}
	}

	s.log.Info("collection submitted",
		zap.String("session_id", id.String()),
		zap.String("flow", string(sc.Flow)),
		zap.String("record_id", recordID),
		zap.String("total", payload.TotalAmount.String()),
	)
	return CompletionResult{SessionID: id, RecordID: recordID, Payload: payload, BoundRefs: refs}, nil
}

func (s *CollectionService) recordAttempt(ctx context.Context, sess *Session, status string, payload *normalizer.SubmissionPayload, recordID string, cause error) {
	if s.journal == nil {
		return
	}
	row := &model.CollectionAttempt{
		CollectionAttemptSessionID:  sess.ID,
		CollectionAttemptFlow:       string(sess.Context.Flow),
		CollectionAttemptStatus:     status,
		CollectionAttemptTotalMinor: int64(sess.Ledger.Target().TotalAmount),
		CollectionAttemptBoundRefs:  sess.createdRefs(),
	}
	if sess.Context.UserID != uuid.Nil {
		uid := sess.Context.UserID
		row.CollectionAttemptUserID = &uid
	}
	if v := sess.Context.LocationID; v != "" {
		row.CollectionAttemptLocationID = &v
	}
	if v := sess.Context.CustomerID; v != "" {
		row.CollectionAttemptCustomerID = &v
	}
	if payload != nil {
		if raw, err := sonic.Marshal(payload); err == nil {
			row.CollectionAttemptPayload = datatypes.JSON(raw)
		}
	}
	if recordID != "" {
		row.CollectionAttemptRecordID = &recordID
	}
	if cause != nil {
		msg := cause.Error()
		row.CollectionAttemptError = &msg
	}
	if err := s.journal.RecordAttempt(context.WithoutCancel(ctx), row); err != nil {
		s.log.Error("record collection attempt failed",
			zap.String("session_id", sess.ID.String()),
			zap.String("status", status),
			zap.Error(err),
		)
	}
}

func (s *CollectionService) snapshot(sess *Session) Snapshot {
	l := sess.Ledger
	return Snapshot{
		ID:          sess.ID,
		Flow:        sess.Context.Flow,
		Direction:   l.Target().Direction,
		CustomerID:  sess.Context.CustomerID,
		ReferenceID: sess.Context.ReferenceID,
		Total:       l.Target().TotalAmount,
		Allocated:   l.Allocated(),
		Remaining:   l.Remaining(),
		Submittable: l.IsSubmittable(),
		Completed:   sess.completed,
		RecordID:    sess.recordID,
		Entries:     l.Entries(),
		ExpiresAt:   s.now().Add(s.store.TTL()),
	}
}
