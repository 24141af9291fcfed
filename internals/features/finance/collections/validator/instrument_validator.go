package validator

import (
	"fmt"
	"time"

	"retailku_backend/internals/features/finance/collections/catalog"
	"retailku_backend/internals/features/finance/collections/model"
)

// LedgerView is the read side of the allocation ledger the checks need.
type LedgerView interface {
	Target() model.PaymentTarget
	Remaining() model.Money
	Entries() []model.PaymentEntry
}

// ChequePolicy is the date window for cheques in one flow.
type ChequePolicy struct {
	TrailingDays int
	RejectFuture bool
}

type Config struct {
	ChequeTrailingDays int
	// Flows where a post-dated cheque is refused. The screens disagree on
	// this, so it stays per flow.
	RejectFutureChequeFlows map[model.Flow]bool
}

func DefaultConfig() Config {
	return Config{
		ChequeTrailingDays: 90,
		RejectFutureChequeFlows: map[model.Flow]bool{
			model.FlowOrderPayment: true,
		},
	}
}

type InstrumentValidator struct {
	cfg Config
}

func New(cfg Config) *InstrumentValidator {
	if cfg.ChequeTrailingDays <= 0 {
		cfg.ChequeTrailingDays = DefaultConfig().ChequeTrailingDays
	}
	if cfg.RejectFutureChequeFlows == nil {
		cfg.RejectFutureChequeFlows = map[model.Flow]bool{}
	}
	return &InstrumentValidator{cfg: cfg}
}

func (v *InstrumentValidator) ChequePolicy(flow model.Flow) ChequePolicy {
	return ChequePolicy{
		TrailingDays: v.cfg.ChequeTrailingDays,
		RejectFuture: v.cfg.RejectFutureChequeFlows[flow],
	}
}

// Validate runs the checks in order and stops at the first failing category,
// reporting every field error of that category. On success it returns the
// candidate with its fields coerced to canonical types.
func (v *InstrumentValidator) Validate(candidate model.PaymentEntry, view LedgerView, sess model.SessionContext) (model.PaymentEntry, error) {
	contract, fields, err := v.checkRequired(candidate, sess)
	if err != nil {
		return candidate, err
	}
	out := candidate.Clone()
	out.Fields = fields

	if err := v.CheckAmount(out.Amount, view.Remaining()); err != nil {
		return candidate, err
	}
	if out.Kind == model.MethodCheque {
		if err := v.checkChequeDate(out, sess); err != nil {
			return candidate, err
		}
	}
	if err := checkDuplicate(contract, out, view.Entries()); err != nil {
		return candidate, err
	}
	if err := CheckSingleton(contract, view.Entries()); err != nil {
		return candidate, err
	}
	return out, nil
}

// CheckAmount is the bound-2 rule: 0 < amount <= limit.
func (v *InstrumentValidator) CheckAmount(amount, limit model.Money) error {
	if !amount.IsPositive() {
		return model.Reject(model.ErrFieldValidation, model.FieldError{
			Field: catalog.FieldAmount, Code: "out_of_range", Message: "must be greater than zero",
		})
	}
	if amount > limit {
		return model.Reject(model.ErrAmountExceedsRemaining, model.FieldError{
			Field:   catalog.FieldAmount,
			Code:    "exceeds_remaining",
			Message: fmt.Sprintf("%s exceeds remaining %s", amount, limit),
		})
	}
	return nil
}

func (v *InstrumentValidator) checkRequired(candidate model.PaymentEntry, sess model.SessionContext) (catalog.Contract, map[string]any, error) {
	contract, ok := catalog.Lookup(candidate.Kind)
	if !ok {
		return catalog.Contract{}, nil, model.Reject(model.ErrFieldValidation, model.FieldError{
			Field: "kind", Code: "invalid", Message: fmt.Sprintf("unknown payment method %q", candidate.Kind),
		})
	}
	if sess.Flow != "" && !contract.AllowedIn(sess.Flow) {
		return contract, nil, model.Reject(model.ErrFieldValidation, model.FieldError{
			Field: "kind", Code: "not_allowed", Message: fmt.Sprintf("%s is not accepted for %s", contract.Label, sess.Flow),
		})
	}
	fields, errs := contract.Normalize(candidate.Fields)
	if len(errs) > 0 {
		return contract, nil, model.Reject(model.ErrFieldValidation, errs...)
	}
	return contract, fields, nil
}

func (v *InstrumentValidator) checkChequeDate(e model.PaymentEntry, sess model.SessionContext) error {
	policy := v.ChequePolicy(sess.Flow)
	today := sess.Today()

	d, err := time.ParseInLocation(catalog.DateLayout, e.String(catalog.FieldChequeDate), today.Location())
	if err != nil {
		return model.Reject(model.ErrFieldValidation, model.FieldError{
			Field: catalog.FieldChequeDate, Code: "invalid_type", Message: "must be a date in YYYY-MM-DD format",
		})
	}

	earliest := today.AddDate(0, 0, -policy.TrailingDays)
	if d.Before(earliest) {
		return model.Reject(model.ErrFieldValidation, model.FieldError{
			Field:   catalog.FieldChequeDate,
			Code:    "stale",
			Message: fmt.Sprintf("must not be earlier than %s", earliest.Format(catalog.DateLayout)),
		})
	}
	if policy.RejectFuture && d.After(today) {
		return model.Reject(model.ErrFieldValidation, model.FieldError{
			Field: catalog.FieldChequeDate, Code: "post_dated", Message: "post-dated cheques are not accepted",
		})
	}
	return nil
}

func checkDuplicate(contract catalog.Contract, candidate model.PaymentEntry, existing []model.PaymentEntry) error {
	key, ok := contract.Key(candidate.Fields)
	if !ok {
		return nil
	}
	for _, e := range existing {
		if e.Kind != candidate.Kind || e.State == model.EntryDraft {
			continue
		}
		if k, _ := contract.Key(e.Fields); k == key {
			fields := make([]model.FieldError, 0, len(contract.UniqueKey))
			for _, name := range contract.UniqueKey {
				fields = append(fields, model.FieldError{
					Field: name, Code: "duplicate", Message: "already used by entry " + e.LocalID,
				})
			}
			return model.Reject(model.ErrDuplicateInstrument, fields...)
		}
	}
	return nil
}

// CheckSingleton rejects a second entry of a singleton kind, whatever its fields.
func CheckSingleton(contract catalog.Contract, existing []model.PaymentEntry) error {
	if !contract.Singleton {
		return nil
	}
	for _, e := range existing {
		if e.Kind == contract.Kind {
			return model.Reject(model.ErrSingletonViolation, model.FieldError{
				Field: "kind", Code: "singleton", Message: contract.Label + " can only be used once",
			})
		}
	}
	return nil
}
