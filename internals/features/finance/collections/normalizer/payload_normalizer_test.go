package normalizer_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailku_backend/internals/features/finance/collections/ledger"
	"retailku_backend/internals/features/finance/collections/model"
	"retailku_backend/internals/features/finance/collections/normalizer"
	"retailku_backend/internals/features/finance/collections/validator"
)

func build(t *testing.T, total string, flow model.Flow, entries ...model.PaymentEntry) *ledger.Ledger {
	t.Helper()
	target, err := model.NewPaymentTarget(model.MustMoney(total), flow.Direction())
	require.NoError(t, err)
	sess := model.SessionContext{Flow: flow, Now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}

	l := ledger.New(target, validator.New(validator.DefaultConfig()), sess)
	for _, e := range entries {
		_, err := l.Add(e)
		require.NoError(t, err)
	}
	return l
}

func TestNormalize_Shape(t *testing.T) {
	l := build(t, "1000", model.FlowCustomerPayment,
		model.PaymentEntry{Kind: model.MethodCash, Amount: model.MustMoney("100")},
		model.PaymentEntry{Kind: model.MethodCard, Amount: model.MustMoney("200"),
			Fields: map[string]any{"paymentMachineId": 3, "approvalCode": "AP1"}},
		model.PaymentEntry{Kind: model.MethodCard, Amount: model.MustMoney("150.50"),
			Fields: map[string]any{"paymentMachineId": 3, "approvalCode": "AP2", "emi": true, "emiMonths": 6, "emiBankId": 12}},
		model.PaymentEntry{Kind: model.MethodCash, Amount: model.MustMoney("49.50")},
		model.PaymentEntry{Kind: model.MethodCheque, Amount: model.MustMoney("300"),
			Fields: map[string]any{"bankId": 4, "chequeNumber": "000123", "chequeDate": "2026-03-01"}},
		model.PaymentEntry{Kind: model.MethodAdvance, Amount: model.MustMoney("200"),
			Fields: map[string]any{"advanceRecordId": 88}},
	)

	p, err := normalizer.Normalize(l)
	require.NoError(t, err)

	require.NotNil(t, p.Cash)
	assert.Equal(t, model.MustMoney("149.50"), *p.Cash)
	require.Len(t, p.Card, 2)
	assert.Nil(t, p.Card[0].EMI)
	assert.Equal(t, &normalizer.EMI{Months: 6, BankID: 12}, p.Card[1].EMI)
	assert.Nil(t, p.UPI)
	assert.Nil(t, p.Bank)
	assert.Nil(t, p.GiftVoucher)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"totalAmount": 1000,
		"cash": 149.5,
		"card": [
			{"amount": 200, "paymentMachineId": 3, "approvalCode": "AP1"},
			{"amount": 150.5, "paymentMachineId": 3, "approvalCode": "AP2", "emi": {"months": 6, "bankId": 12}}
		],
		"cheque": [{"amount": 300, "bankId": 4, "chequeNumber": "000123", "chequeDate": "2026-03-01"}],
		"advance": [{"amount": 200, "advanceRecordId": 88}]
	}`, string(raw))
}

func TestNormalize_GiftVoucherSingleObject(t *testing.T) {
	l := build(t, "500", model.FlowCustomerPayment,
		model.PaymentEntry{Kind: model.MethodGiftVoucher, Fields: map[string]any{"voucherCode": "gv"},
			Constraint: &model.GiftVoucherConstraint{VoucherID: "V-1", Balance: model.MustMoney("200")}},
		model.PaymentEntry{Kind: model.MethodUPI, Amount: model.MustMoney("300"),
			Fields: map[string]any{"paymentMachineId": 2}},
	)

	p, err := normalizer.Normalize(l)
	require.NoError(t, err)
	assert.Equal(t, &normalizer.GiftVoucherPayment{Amount: model.MustMoney("200"), VoucherRef: "V-1"}, p.GiftVoucher)
	assert.Len(t, p.UPI, 1)
}

func TestNormalize_ZeroTarget(t *testing.T) {
	l := build(t, "0", model.FlowCustomerPayment)
	p, err := normalizer.Normalize(l)
	require.NoError(t, err)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"totalAmount": 0}`, string(raw))
}

func TestNormalize_RefusesIncompleteLedger(t *testing.T) {
	l := build(t, "100", model.FlowCustomerPayment,
		model.PaymentEntry{Kind: model.MethodCash, Amount: model.MustMoney("99.99")},
	)
	_, err := normalizer.Normalize(l)
	assert.ErrorIs(t, err, model.ErrNotSubmittable)
}

func TestNormalize_RefusesUnboundRefundVoucher(t *testing.T) {
	l := build(t, "100", model.FlowCustomerRefund,
		model.PaymentEntry{Kind: model.MethodGiftVoucher, Amount: model.MustMoney("100"),
			Fields: map[string]any{"voucherCode": "R"}},
	)
	_, err := normalizer.Normalize(l)
	require.ErrorIs(t, err, model.ErrUnboundResource)

	entries := l.Entries()
	require.NoError(t, l.Bind(entries[0].LocalID, "GV-5"))
	p, err := normalizer.Normalize(l)
	require.NoError(t, err)
	assert.Equal(t, "GV-5", p.GiftVoucher.VoucherRef)
}
