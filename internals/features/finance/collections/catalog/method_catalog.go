// Package catalog is the static registry of payment methods and the fields
// each one needs. It has no mutable state.
package catalog

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"retailku_backend/internals/features/finance/collections/model"
)

type FieldType string

const (
	FieldString  FieldType = "string"
	FieldInteger FieldType = "integer"
	FieldDate    FieldType = "date"
	FieldBool    FieldType = "bool"
)

// Wire names, shared with the submission payload.
const (
	FieldAmount           = "amount"
	FieldPaymentMachineID = "paymentMachineId"
	FieldApprovalCode     = "approvalCode"
	FieldEMI              = "emi"
	FieldEMIMonths        = "emiMonths"
	FieldEMIBankID        = "emiBankId"
	FieldBankID           = "bankId"
	FieldChequeNumber     = "chequeNumber"
	FieldChequeDate       = "chequeDate"
	FieldBankAccountID    = "bankAccountId"
	FieldReferenceNumber  = "referenceNumber"
	FieldAdvanceRecordID  = "advanceRecordId"
	FieldVoucherCode      = "voucherCode"
	FieldValidityDays     = "validityDays"
)

const DateLayout = "2006-01-02"

type FieldSpec struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
	// FreeText parts of a uniqueness key compare case-insensitively.
	FreeText bool `json:"-"`
}

// Conditional requires extra fields when a bool field is true (card EMI).
type Conditional struct {
	When     string      `json:"when"`
	Required []FieldSpec `json:"required"`
}

type Contract struct {
	Kind        model.MethodKind `json:"kind"`
	Label       string           `json:"label"`
	Required    []FieldSpec      `json:"required"`
	Optional    []FieldSpec      `json:"optional,omitempty"`
	Conditional []Conditional    `json:"conditional,omitempty"`
	UniqueKey   []string         `json:"unique_key,omitempty"`
	Singleton   bool             `json:"singleton,omitempty"`
	Merge       bool             `json:"merge,omitempty"`

	bindsExisting map[model.Direction]bool
	createsIn     map[model.Direction]bool
	excludedFlows []model.Flow
}

var contracts = map[model.MethodKind]Contract{
	model.MethodCash: {
		Kind:  model.MethodCash,
		Label: "Cash",
		Merge: true,
	},
	model.MethodCard: {
		Kind:  model.MethodCard,
		Label: "Card",
		Required: []FieldSpec{
			{Name: FieldPaymentMachineID, Type: FieldInteger},
			{Name: FieldApprovalCode, Type: FieldString, FreeText: true},
		},
		Optional: []FieldSpec{
			{Name: FieldEMI, Type: FieldBool},
		},
		Conditional: []Conditional{{
			When: FieldEMI,
			Required: []FieldSpec{
				{Name: FieldEMIMonths, Type: FieldInteger},
				{Name: FieldEMIBankID, Type: FieldInteger},
			},
		}},
		UniqueKey: []string{FieldPaymentMachineID, FieldApprovalCode},
	},
	model.MethodUPI: {
		Kind:  model.MethodUPI,
		Label: "UPI",
		Required: []FieldSpec{
			{Name: FieldPaymentMachineID, Type: FieldInteger},
		},
	},
	model.MethodCheque: {
		Kind:  model.MethodCheque,
		Label: "Cheque",
		Required: []FieldSpec{
			{Name: FieldBankID, Type: FieldInteger},
			{Name: FieldChequeNumber, Type: FieldString, FreeText: true},
			{Name: FieldChequeDate, Type: FieldDate},
		},
		UniqueKey: []string{FieldBankID, FieldChequeNumber},
	},
	model.MethodBankTransfer: {
		Kind:  model.MethodBankTransfer,
		Label: "Bank transfer",
		Required: []FieldSpec{
			{Name: FieldBankAccountID, Type: FieldInteger},
			{Name: FieldReferenceNumber, Type: FieldString, FreeText: true},
		},
		UniqueKey: []string{FieldBankAccountID, FieldReferenceNumber},
	},
	model.MethodAdvance: {
		Kind:  model.MethodAdvance,
		Label: "Advance",
		Required: []FieldSpec{
			{Name: FieldAdvanceRecordID, Type: FieldInteger},
		},
		UniqueKey: []string{FieldAdvanceRecordID},
		bindsExisting: map[model.Direction]bool{
			model.DirectionCollect: true,
			model.DirectionRefund:  true,
		},
		// spending an advance only makes sense against an amount owed
		excludedFlows: []model.Flow{model.FlowCustomerRefund, model.FlowAdvanceCollection},
	},
	model.MethodGiftVoucher: {
		Kind:  model.MethodGiftVoucher,
		Label: "Gift voucher",
		Required: []FieldSpec{
			{Name: FieldVoucherCode, Type: FieldString, FreeText: true},
		},
		Optional: []FieldSpec{
			{Name: FieldValidityDays, Type: FieldInteger},
		},
		Singleton:     true,
		bindsExisting: map[model.Direction]bool{model.DirectionCollect: true},
		createsIn:     map[model.Direction]bool{model.DirectionRefund: true},
	},
}

func Lookup(kind model.MethodKind) (Contract, bool) {
	c, ok := contracts[kind]
	return c, ok
}

// MustLookup panics on kinds outside the closed enum.
func MustLookup(kind model.MethodKind) Contract {
	c, ok := contracts[kind]
	if !ok {
		panic("catalog: unknown method kind " + string(kind))
	}
	return c
}

// ForFlow lists the contracts a flow offers, in picker order.
func ForFlow(flow model.Flow) []Contract {
	out := make([]Contract, 0, len(model.AllMethodKinds))
	for _, k := range model.AllMethodKinds {
		c := contracts[k]
		if c.AllowedIn(flow) {
			out = append(out, c)
		}
	}
	return out
}

func (c Contract) AllowedIn(flow model.Flow) bool {
	for _, f := range c.excludedFlows {
		if f == flow {
			return false
		}
	}
	return true
}

// BindsExisting: the entry references a record that already exists server-side.
func (c Contract) BindsExisting(dir model.Direction) bool { return c.bindsExisting[dir] }

// RequiresCreation: the record must be created before submission.
func (c Contract) RequiresCreation(dir model.Direction) bool { return c.createsIn[dir] }

// RequiredFields lists wire names including amount, for the method picker.
func (c Contract) RequiredFields() []string {
	out := []string{FieldAmount}
	for _, f := range c.Required {
		out = append(out, f.Name)
	}
	return out
}

// Normalize checks presence and primitive type of every contract field and
// returns the fields coerced to canonical Go types (string, int64, bool,
// "YYYY-MM-DD" string). Unknown fields are dropped.
func (c Contract) Normalize(raw map[string]any) (map[string]any, []model.FieldError) {
	out := make(map[string]any, len(c.Required)+len(c.Optional))
	var errs []model.FieldError

	apply := func(spec FieldSpec, required bool) {
		v, present := raw[spec.Name]
		if !present || v == nil {
			if required {
				errs = append(errs, model.FieldError{Field: spec.Name, Code: "required", Message: "is required"})
			}
			return
		}
		cv, fe := coerce(spec, v)
		if fe != nil {
			errs = append(errs, *fe)
			return
		}
		out[spec.Name] = cv
	}

	for _, spec := range c.Required {
		apply(spec, true)
	}
	for _, spec := range c.Optional {
		apply(spec, false)
	}
	for _, cond := range c.Conditional {
		if on, _ := out[cond.When].(bool); on {
			for _, spec := range cond.Required {
				apply(spec, true)
			}
		}
	}
	return out, errs
}

// Key builds the uniqueness tuple. ok=false when the kind has no key.
func (c Contract) Key(fields map[string]any) (string, bool) {
	if len(c.UniqueKey) == 0 {
		return "", false
	}
	parts := make([]string, 0, len(c.UniqueKey))
	for _, name := range c.UniqueKey {
		var s string
		switch v := fields[name].(type) {
		case string:
			s = strings.TrimSpace(v)
		case int64:
			s = strconv.FormatInt(v, 10)
		case int:
			s = strconv.Itoa(v)
		default:
			s = ""
		}
		if c.isFreeText(name) {
			s = strings.ToLower(s)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "\x1f"), true
}

func (c Contract) isFreeText(name string) bool {
	for _, f := range c.Required {
		if f.Name == name {
			return f.FreeText
		}
	}
	return false
}

/* =========================================================
   Coercion
========================================================= */

func coerce(spec FieldSpec, v any) (any, *model.FieldError) {
	bad := func(msg string) *model.FieldError {
		return &model.FieldError{Field: spec.Name, Code: "invalid_type", Message: msg}
	}

	switch spec.Type {
	case FieldString:
		s, ok := v.(string)
		if !ok {
			return nil, bad("must be a string")
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, &model.FieldError{Field: spec.Name, Code: "required", Message: "is required"}
		}
		return s, nil

	case FieldInteger:
		n, ok := toInt64(v)
		if !ok {
			return nil, bad("must be an integer")
		}
		if n <= 0 {
			return nil, &model.FieldError{Field: spec.Name, Code: "out_of_range", Message: "must be greater than zero"}
		}
		return n, nil

	case FieldDate:
		switch t := v.(type) {
		case string:
			d, err := time.Parse(DateLayout, strings.TrimSpace(t))
			if err != nil {
				return nil, bad("must be a date in YYYY-MM-DD format")
			}
			return d.Format(DateLayout), nil
		case time.Time:
			return t.Format(DateLayout), nil
		}
		return nil, bad("must be a date in YYYY-MM-DD format")

	case FieldBool:
		switch t := v.(type) {
		case bool:
			return t, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(t))
			if err != nil {
				return nil, bad("must be a boolean")
			}
			return b, nil
		}
		return nil, bad("must be a boolean")
	}
	return nil, bad("unsupported field type")
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) || t != math.Trunc(t) || math.Abs(t) > 1<<53 {
			return 0, false
		}
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	}
	return 0, false
}
