package model

// VoucherIssueRequest creates a gift voucher for a refund paid out as credit.
type VoucherIssueRequest struct {
	Amount       Money  `json:"amount"`
	ValidityDays int64  `json:"validityDays"`
	CustomerID   string `json:"customerId"`
	VoucherCode  string `json:"voucherCode"`
	LocationID   string `json:"locationId"`
}

// VoucherInfo is the lookup answer for a voucher being spent.
type VoucherInfo struct {
	ID          string `json:"id"`
	Balance     Money  `json:"balance"`
	PartPayment bool   `json:"partPayment"`
}

func (v VoucherInfo) Constraint() *GiftVoucherConstraint {
	return &GiftVoucherConstraint{
		VoucherID:   v.ID,
		Balance:     v.Balance,
		PartPayment: v.PartPayment,
	}
}
