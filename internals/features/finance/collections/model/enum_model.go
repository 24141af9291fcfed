package model

import (
	"fmt"
	"strings"
)

type MethodKind string
type Direction string
type EntryState string
type Flow string

const (
	MethodCash         MethodKind = "cash"
	MethodCard         MethodKind = "card"
	MethodUPI          MethodKind = "upi"
	MethodCheque       MethodKind = "cheque"
	MethodBankTransfer MethodKind = "bank_transfer"
	MethodAdvance      MethodKind = "advance"
	MethodGiftVoucher  MethodKind = "gift_voucher"
)

// AllMethodKinds in method-picker order.
var AllMethodKinds = []MethodKind{
	MethodCash,
	MethodCard,
	MethodUPI,
	MethodCheque,
	MethodBankTransfer,
	MethodAdvance,
	MethodGiftVoucher,
}

const (
	DirectionCollect Direction = "collect"
	DirectionRefund  Direction = "refund"
)

const (
	EntryDraft     EntryState = "draft"
	EntryCommitted EntryState = "committed"
	EntryBound     EntryState = "bound"
)

// ===== flows (screens yang memakai engine yang sama) =====
const (
	FlowCustomerPayment   Flow = "customer_payment"
	FlowOrderPayment      Flow = "order_payment"
	FlowCustomerRefund    Flow = "customer_refund"
	FlowAdvanceCollection Flow = "advance_collection"
)

var AllFlows = []Flow{
	FlowCustomerPayment,
	FlowOrderPayment,
	FlowCustomerRefund,
	FlowAdvanceCollection,
}

func (k MethodKind) Valid() bool {
	for _, it := range AllMethodKinds {
		if it == k {
			return true
		}
	}
	return false
}

func ParseMethodKind(s string) (MethodKind, error) {
	k := MethodKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown payment method %q", s)
	}
	return k, nil
}

func (f Flow) Valid() bool {
	for _, it := range AllFlows {
		if it == f {
			return true
		}
	}
	return false
}

func ParseFlow(s string) (Flow, error) {
	f := Flow(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("unknown collection flow %q", s)
	}
	return f, nil
}

// Direction: only the customer refund screen pays money out.
func (f Flow) Direction() Direction {
	if f == FlowCustomerRefund {
		return DirectionRefund
	}
	return DirectionCollect
}
