package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

/* ===================== Target & session ===================== */

type PaymentTarget struct {
	TotalAmount Money     `json:"total_amount"`
	Direction   Direction `json:"direction"`
}

func NewPaymentTarget(total Money, dir Direction) (PaymentTarget, error) {
	if total < 0 {
		return PaymentTarget{}, fmt.Errorf("%w: total amount cannot be negative", ErrInvalidMoney)
	}
	if dir != DirectionCollect && dir != DirectionRefund {
		return PaymentTarget{}, fmt.Errorf("unknown direction %q", dir)
	}
	return PaymentTarget{TotalAmount: total, Direction: dir}, nil
}

// SessionContext carries who/where/for-whom instead of reading ambient state.
type SessionContext struct {
	UserID      uuid.UUID
	LocationID  string
	CustomerID  string
	ReferenceID string
	Flow        Flow
	Now         time.Time
	// store timezone; cheque dates are judged against the store's calendar
	Location *time.Location
}

// Today falls back to the wall clock when Now was not pinned.
func (s SessionContext) Today() time.Time {
	now := s.Now
	if now.IsZero() {
		now = time.Now()
	}
	if s.Location != nil {
		now = now.In(s.Location)
	}
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

/* ===================== Entries ===================== */

// GiftVoucherConstraint comes from the voucher lookup at add time.
type GiftVoucherConstraint struct {
	VoucherID   string `json:"voucher_id"`
	Balance     Money  `json:"balance"`
	PartPayment bool   `json:"part_payment"`
	Cap         Money  `json:"cap"`
}

func (c GiftVoucherConstraint) Locked() bool { return !c.PartPayment }

type PaymentEntry struct {
	LocalID     string                 `json:"local_id"`
	Kind        MethodKind             `json:"kind"`
	Amount      Money                  `json:"amount"`
	Fields      map[string]any         `json:"fields"`
	ExternalRef string                 `json:"external_ref,omitempty"`
	State       EntryState             `json:"state"`
	Constraint  *GiftVoucherConstraint `json:"constraint,omitempty"`
}

func (e PaymentEntry) Clone() PaymentEntry {
	out := e
	if e.Fields != nil {
		out.Fields = make(map[string]any, len(e.Fields))
		for k, v := range e.Fields {
			out.Fields[k] = v
		}
	}
	if e.Constraint != nil {
		c := *e.Constraint
		out.Constraint = &c
	}
	return out
}

func (e PaymentEntry) String(field string) string {
	if s, ok := e.Fields[field].(string); ok {
		return s
	}
	return ""
}

func (e PaymentEntry) Int(field string) int64 {
	switch v := e.Fields[field].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

func (e PaymentEntry) Bool(field string) bool {
	b, _ := e.Fields[field].(bool)
	return b
}

func (e PaymentEntry) Has(field string) bool {
	_, ok := e.Fields[field]
	return ok
}
