// Package ledger holds the allocation of one target amount across payment
// entries. A Ledger is owned by a single session and is not safe for
// concurrent use; callers serialize access.
package ledger

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"retailku_backend/internals/features/finance/collections/catalog"
	"retailku_backend/internals/features/finance/collections/model"
	"retailku_backend/internals/features/finance/collections/validator"
)

type Ledger struct {
	target    model.PaymentTarget
	session   model.SessionContext
	validator *validator.InstrumentValidator
	entries   []model.PaymentEntry
	newID     func() string
}

type Option func(*Ledger)

// WithIDGenerator replaces the uuid-based local id generator.
func WithIDGenerator(fn func() string) Option {
	return func(l *Ledger) { l.newID = fn }
}

func New(target model.PaymentTarget, v *validator.InstrumentValidator, sess model.SessionContext, opts ...Option) *Ledger {
	l := &Ledger{
		target:    target,
		session:   sess,
		validator: v,
		newID:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

/* =========================================================
   Read side
========================================================= */

func (l *Ledger) Target() model.PaymentTarget   { return l.target }
func (l *Ledger) Session() model.SessionContext { return l.session }

func (l *Ledger) Entries() []model.PaymentEntry {
	out := make([]model.PaymentEntry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e.Clone())
	}
	return out
}

func (l *Ledger) Entry(localID string) (model.PaymentEntry, error) {
	i := l.indexOf(localID)
	if i < 0 {
		return model.PaymentEntry{}, fmt.Errorf("%w: %s", model.ErrEntryNotFound, localID)
	}
	return l.entries[i].Clone(), nil
}

func (l *Ledger) Allocated() model.Money {
	var sum model.Money
	for _, e := range l.entries {
		sum += e.Amount
	}
	return sum
}

func (l *Ledger) Remaining() model.Money {
	return l.target.TotalAmount - l.Allocated()
}

// IsSubmittable: nothing left to allocate, and at least one entry unless the
// target itself is zero.
func (l *Ledger) IsSubmittable() bool {
	if l.Remaining() != 0 {
		return false
	}
	return len(l.entries) > 0 || l.target.TotalAmount == 0
}

// CheckSingleton answers the singleton rule for kind without a candidate, so
// callers can refuse before spending a collaborator lookup.
func (l *Ledger) CheckSingleton(kind model.MethodKind) error {
	c, ok := catalog.Lookup(kind)
	if !ok {
		return nil
	}
	return validator.CheckSingleton(c, l.entries)
}

// CreatedRefs lists refs of records created for this ledger's entries that
// are still part of it.
func (l *Ledger) CreatedRefs() []string {
	var out []string
	for _, e := range l.entries {
		if e.ExternalRef == "" || e.State != model.EntryBound {
			continue
		}
		if catalog.MustLookup(e.Kind).RequiresCreation(l.target.Direction) {
			out = append(out, e.ExternalRef)
		}
	}
	return out
}

// PendingResources lists committed entries still waiting for a server-side
// record to be created.
func (l *Ledger) PendingResources() []model.PaymentEntry {
	var out []model.PaymentEntry
	for _, e := range l.entries {
		c := catalog.MustLookup(e.Kind)
		if c.RequiresCreation(l.target.Direction) && e.State == model.EntryCommitted && e.ExternalRef == "" {
			out = append(out, e.Clone())
		}
	}
	return out
}

/* =========================================================
   Mutations
========================================================= */

// Add validates and commits an entry. Cash merges into the existing cash
// entry instead of creating a second one. Returns the stored entry.
func (l *Ledger) Add(entry model.PaymentEntry) (model.PaymentEntry, error) {
	candidate := entry.Clone()
	candidate.State = model.EntryDraft
	candidate.ExternalRef = ""

	if candidate.Kind == model.MethodGiftVoucher && l.target.Direction == model.DirectionCollect {
		if err := l.applyVoucherConstraint(&candidate); err != nil {
			return entry, err
		}
	} else {
		candidate.Constraint = nil
	}

	validated, err := l.validator.Validate(candidate, l, l.session)
	if err != nil {
		return entry, err
	}
	contract := catalog.MustLookup(validated.Kind)

	if contract.Merge {
		for i := range l.entries {
			if l.entries[i].Kind == validated.Kind {
				l.entries[i].Amount += validated.Amount
				return l.entries[i].Clone(), nil
			}
		}
	}

	validated.LocalID = l.newID()
	validated.State = model.EntryCommitted
	if contract.BindsExisting(l.target.Direction) {
		validated.ExternalRef = existingRef(validated)
	}
	if validated.ExternalRef != "" {
		validated.State = model.EntryBound
	}

	l.entries = append(l.entries, validated)
	return validated.Clone(), nil
}

func (l *Ledger) Remove(localID string) error {
	i := l.indexOf(localID)
	if i < 0 {
		return fmt.Errorf("%w: %s", model.ErrEntryNotFound, localID)
	}
	l.entries = append(l.entries[:i], l.entries[i+1:]...)
	return nil
}

// MutateAmount re-checks the cap with the edited slot excluded.
func (l *Ledger) MutateAmount(localID string, amount model.Money) (model.PaymentEntry, error) {
	i := l.indexOf(localID)
	if i < 0 {
		return model.PaymentEntry{}, fmt.Errorf("%w: %s", model.ErrEntryNotFound, localID)
	}
	e := l.entries[i]
	contract := catalog.MustLookup(e.Kind)

	if e.Constraint != nil && e.Constraint.Locked() {
		return e.Clone(), model.Reject(model.ErrAmountLocked, model.FieldError{
			Field: catalog.FieldAmount, Code: "locked", Message: "voucher does not allow partial use",
		})
	}
	if contract.RequiresCreation(l.target.Direction) && e.State == model.EntryBound {
		return e.Clone(), model.Reject(model.ErrAmountLocked, model.FieldError{
			Field: catalog.FieldAmount, Code: "locked", Message: "voucher already issued for this amount",
		})
	}

	limit := l.Remaining() + e.Amount
	if e.Constraint != nil {
		limit = model.MinMoney(limit, e.Constraint.Cap)
	}
	if err := l.validator.CheckAmount(amount, limit); err != nil {
		return e.Clone(), err
	}

	l.entries[i].Amount = amount
	return l.entries[i].Clone(), nil
}

// Bind records the id of a server-side record created for the entry.
func (l *Ledger) Bind(localID, ref string) error {
	i := l.indexOf(localID)
	if i < 0 {
		return fmt.Errorf("%w: %s", model.ErrEntryNotFound, localID)
	}
	if ref == "" {
		return fmt.Errorf("bind %s: empty external reference", localID)
	}
	l.entries[i].ExternalRef = ref
	l.entries[i].State = model.EntryBound
	return nil
}

/* =========================================================
   Helpers
========================================================= */

// applyVoucherConstraint fixes or caps the amount of a voucher being spent.
func (l *Ledger) applyVoucherConstraint(e *model.PaymentEntry) error {
	if e.Constraint == nil || e.Constraint.VoucherID == "" {
		return model.Reject(model.ErrFieldValidation, model.FieldError{
			Field: catalog.FieldVoucherCode, Code: "unverified", Message: "voucher must be validated before use",
		})
	}
	if !e.Constraint.Balance.IsPositive() {
		return model.Reject(model.ErrFieldValidation, model.FieldError{
			Field: catalog.FieldVoucherCode, Code: "no_balance", Message: "voucher has no balance left",
		})
	}

	c := *e.Constraint
	c.Cap = model.MinMoney(c.Balance, l.Remaining())
	e.Constraint = &c

	switch {
	case c.Locked(), e.Amount == 0:
		e.Amount = c.Cap
	case e.Amount > c.Cap:
		return model.Reject(model.ErrAmountExceedsRemaining, model.FieldError{
			Field:   catalog.FieldAmount,
			Code:    "exceeds_voucher",
			Message: fmt.Sprintf("%s exceeds usable voucher amount %s", e.Amount, c.Cap),
		})
	}
	return nil
}

func existingRef(e model.PaymentEntry) string {
	switch e.Kind {
	case model.MethodAdvance:
		if id := e.Int(catalog.FieldAdvanceRecordID); id > 0 {
			return strconv.FormatInt(id, 10)
		}
	case model.MethodGiftVoucher:
		if e.Constraint != nil {
			return e.Constraint.VoucherID
		}
	}
	return ""
}

func (l *Ledger) indexOf(localID string) int {
	for i, e := range l.entries {
		if e.LocalID == localID {
			return i
		}
	}
	return -1
}
