// Package normalizer turns a completed ledger into the submission payload.
package normalizer

import (
	"fmt"

	"retailku_backend/internals/features/finance/collections/catalog"
	"retailku_backend/internals/features/finance/collections/model"
)

/* =========================================================
   Payload shape
========================================================= */

type EMI struct {
	Months int64 `json:"months"`
	BankID int64 `json:"bankId"`
}

type CardPayment struct {
	Amount           model.Money `json:"amount"`
	PaymentMachineID int64       `json:"paymentMachineId"`
	ApprovalCode     string      `json:"approvalCode"`
	EMI              *EMI        `json:"emi,omitempty"`
}

type UPIPayment struct {
	Amount           model.Money `json:"amount"`
	PaymentMachineID int64       `json:"paymentMachineId"`
}

type ChequePayment struct {
	Amount       model.Money `json:"amount"`
	BankID       int64       `json:"bankId"`
	ChequeNumber string      `json:"chequeNumber"`
	ChequeDate   string      `json:"chequeDate"`
}

type BankPayment struct {
	Amount          model.Money `json:"amount"`
	BankAccountID   int64       `json:"bankAccountId"`
	ReferenceNumber string      `json:"referenceNumber"`
}

type AdvancePayment struct {
	Amount          model.Money `json:"amount"`
	AdvanceRecordID int64       `json:"advanceRecordId"`
}

type GiftVoucherPayment struct {
	Amount     model.Money `json:"amount"`
	VoucherRef string      `json:"voucherRef"`
}

type SubmissionPayload struct {
	TotalAmount model.Money         `json:"totalAmount"`
	Cash        *model.Money        `json:"cash,omitempty"`
	Card        []CardPayment       `json:"card,omitempty"`
	UPI         []UPIPayment        `json:"upi,omitempty"`
	Cheque      []ChequePayment     `json:"cheque,omitempty"`
	Bank        []BankPayment       `json:"bank,omitempty"`
	Advance     []AdvancePayment    `json:"advance,omitempty"`
	GiftVoucher *GiftVoucherPayment `json:"giftVoucher,omitempty"`
}

/* =========================================================
   Normalize
========================================================= */

// Source is the read side of a ledger ready for submission.
type Source interface {
	Target() model.PaymentTarget
	Entries() []model.PaymentEntry
	IsSubmittable() bool
}

// Normalize is deterministic: groups keep insertion order. It refuses a
// ledger that is not submittable or still has entries waiting on a record.
func Normalize(src Source) (SubmissionPayload, error) {
	if !src.IsSubmittable() {
		return SubmissionPayload{}, model.ErrNotSubmittable
	}
	dir := src.Target().Direction
	out := SubmissionPayload{TotalAmount: src.Target().TotalAmount}

	for _, e := range src.Entries() {
		contract := catalog.MustLookup(e.Kind)
		if (contract.RequiresCreation(dir) || contract.BindsExisting(dir)) && e.ExternalRef == "" {
			return SubmissionPayload{}, fmt.Errorf("%w: %s (%s)", model.ErrUnboundResource, e.LocalID, e.Kind)
		}

		switch e.Kind {
		case model.MethodCash:
			amt := e.Amount
			if out.Cash != nil {
				amt += *out.Cash
			}
			out.Cash = &amt

		case model.MethodCard:
			c := CardPayment{
				Amount:           e.Amount,
				PaymentMachineID: e.Int(catalog.FieldPaymentMachineID),
				ApprovalCode:     e.String(catalog.FieldApprovalCode),
			}
			if e.Bool(catalog.FieldEMI) {
				c.EMI = &EMI{
					Months: e.Int(catalog.FieldEMIMonths),
					BankID: e.Int(catalog.FieldEMIBankID),
				}
			}
			out.Card = append(out.Card, c)

		case model.MethodUPI:
			out.UPI = append(out.UPI, UPIPayment{
				Amount:           e.Amount,
				PaymentMachineID: e.Int(catalog.FieldPaymentMachineID),
			})

		case model.MethodCheque:
			out.Cheque = append(out.Cheque, ChequePayment{
				Amount:       e.Amount,
				BankID:       e.Int(catalog.FieldBankID),
				ChequeNumber: e.String(catalog.FieldChequeNumber),
				ChequeDate:   e.String(catalog.FieldChequeDate),
			})

		case model.MethodBankTransfer:
			out.Bank = append(out.Bank, BankPayment{
				Amount:          e.Amount,
				BankAccountID:   e.Int(catalog.FieldBankAccountID),
				ReferenceNumber: e.String(catalog.FieldReferenceNumber),
			})

		case model.MethodAdvance:
			out.Advance = append(out.Advance, AdvancePayment{
				Amount:          e.Amount,
				AdvanceRecordID: e.Int(catalog.FieldAdvanceRecordID),
			})

		case model.MethodGiftVoucher:
			out.GiftVoucher = &GiftVoucherPayment{Amount: e.Amount, VoucherRef: e.ExternalRef}
		}
	}
	return out, nil
}
