// Package binder creates the server-side records some entries need before the
// final submission, one at a time, and stops at the first failure.
package binder

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"retailku_backend/internals/features/finance/collections/catalog"
	"retailku_backend/internals/features/finance/collections/model"
)

// Bindable is the part of the ledger the binder touches.
type Bindable interface {
	Target() model.PaymentTarget
	PendingResources() []model.PaymentEntry
	Bind(localID, ref string) error
}

type VoucherIssuer interface {
	IssueGiftVoucher(ctx context.Context, req model.VoucherIssueRequest) (string, error)
}

// Compensator handles resources created in a run that was aborted.
type Compensator interface {
	Compensate(ctx context.Context, sessionID string, created []model.PaymentEntry, cause error) error
}

type NopCompensator struct{}

func (NopCompensator) Compensate(context.Context, string, []model.PaymentEntry, error) error {
	return nil
}

type Config struct {
	// used when the entry carries no validityDays
	DefaultValidityDays int64
}

type Binder struct {
	issuer      VoucherIssuer
	compensator Compensator
	cfg         Config
	log         *zap.Logger
}

func New(issuer VoucherIssuer, compensator Compensator, cfg Config, log *zap.Logger) *Binder {
	if compensator == nil {
		compensator = NopCompensator{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.DefaultValidityDays <= 0 {
		cfg.DefaultValidityDays = 365
	}
	return &Binder{issuer: issuer, compensator: compensator, cfg: cfg, log: log}
}

// Bind creates a record for every pending entry, sequentially. On the first
// failure the remaining entries are skipped, the entries created in this run
// go to the compensator, and an *ExternalResourceCreationError is returned.
// Entries bound in earlier runs are not pending, so a retry never re-creates
// them. Returns the entries bound in this run.
func (b *Binder) Bind(ctx context.Context, sessionID string, l Bindable, sess model.SessionContext) ([]model.PaymentEntry, error) {
	dir := l.Target().Direction
	var created []model.PaymentEntry

	for _, e := range l.PendingResources() {
		if err := ctx.Err(); err != nil {
			return created, b.abort(ctx, sessionID, created, e, err)
		}

		ref, err := b.create(ctx, e, dir, sess)
		if err != nil {
			return created, b.abort(ctx, sessionID, created, e, err)
		}
		if err := l.Bind(e.LocalID, ref); err != nil {
			// created but not recorded locally; still an orphan
			e.ExternalRef = ref
			created = append(created, e)
			return created, b.abort(ctx, sessionID, created, e, err)
		}

		e.ExternalRef = ref
		e.State = model.EntryBound
		created = append(created, e)
		b.log.Info("external resource bound",
			zap.String("session_id", sessionID),
			zap.String("local_id", e.LocalID),
			zap.String("kind", string(e.Kind)),
			zap.String("ref", ref),
		)
	}
	return created, nil
}

func (b *Binder) create(ctx context.Context, e model.PaymentEntry, dir model.Direction, sess model.SessionContext) (string, error) {
	if e.Kind != model.MethodGiftVoucher || !catalog.MustLookup(e.Kind).RequiresCreation(dir) {
		return "", fmt.Errorf("no creator for %s in %s direction", e.Kind, dir)
	}
	if b.issuer == nil {
		return "", errors.New("voucher issuer not configured")
	}

	days := e.Int(catalog.FieldValidityDays)
	if days <= 0 {
		days = b.cfg.DefaultValidityDays
	}
	ref, err := b.issuer.IssueGiftVoucher(ctx, model.VoucherIssueRequest{
		Amount:       e.Amount,
		ValidityDays: days,
		CustomerID:   sess.CustomerID,
		VoucherCode:  e.String(catalog.FieldVoucherCode),
		LocationID:   sess.LocationID,
	})
	if err != nil {
		return "", err
	}
	if ref == "" {
		return "", errors.New("collaborator returned an empty voucher id")
	}
	return ref, nil
}

func (b *Binder) abort(ctx context.Context, sessionID string, created []model.PaymentEntry, failed model.PaymentEntry, cause error) error {
	b.log.Warn("external resource creation failed",
		zap.String("session_id", sessionID),
		zap.String("local_id", failed.LocalID),
		zap.String("kind", string(failed.Kind)),
		zap.Int("created_in_run", len(created)),
		zap.Error(cause),
	)
	if len(created) > 0 {
		// ctx may be the reason we are here; the journal write must still happen
		if err := b.compensator.Compensate(context.WithoutCancel(ctx), sessionID, created, cause); err != nil {
			b.log.Error("compensation failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	return &model.ExternalResourceCreationError{LocalID: failed.LocalID, Kind: failed.Kind, Err: cause}
}
