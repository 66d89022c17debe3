package core

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Drafts are the raw command payloads accepted at the ledger boundary.
// Dates stay as strings until the canonicalizer has seen them.
type (
	ExpenseDraft struct {
		Amount      decimal.Decimal `json:"amount"`
		Purpose     string          `json:"purpose" validate:"required,max=500"`
		Date        string          `json:"date" validate:"required"`
		SpenderType string          `json:"spenderType" validate:"required,oneof=super_admin admin cso"`
		SpenderID   string          `json:"spenderId" validate:"required_unless=SpenderType super_admin"`
		ReceiptImg  string          `json:"receiptImg" validate:"required"`
	}

	HolidayDraft struct {
		Date        string `json:"date" validate:"required"`
		Reason      string `json:"reason" validate:"max=200"`
		IsRecurring bool   `json:"isRecurring"`
	}

	CashEntry struct {
		Date   string          `json:"date" validate:"required"`
		Amount decimal.Decimal `json:"amount"`
	}
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fromValidator turns the first field failure into a ValidationError.
func fromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required", "required_unless":
		return invalid(fe.Field(), "is required")
	case "oneof":
		return invalid(fe.Field(), "must be one of "+strings.ReplaceAll(fe.Param(), " ", ", "))
	case "max":
		return invalid(fe.Field(), "too long (max "+fe.Param()+" characters)")
	default:
		return invalid(fe.Field(), "failed "+fe.Tag()+" check")
	}
}

// Normalize trims surrounding whitespace from text fields.
func (d *ExpenseDraft) Normalize() {
	d.Purpose = strings.TrimSpace(d.Purpose)
	d.Date = strings.TrimSpace(d.Date)
	d.SpenderType = strings.TrimSpace(d.SpenderType)
	d.SpenderID = strings.TrimSpace(d.SpenderID)
	d.ReceiptImg = strings.TrimSpace(d.ReceiptImg)
}

func (d ExpenseDraft) Validate() error {
	if d.Amount.Sign() <= 0 {
		return invalid("amount", "must be greater than zero")
	}
	if err := validate.Struct(d); err != nil {
		return fromValidator(err)
	}
	return nil
}

func (d HolidayDraft) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fromValidator(err)
	}
	return nil
}

func (c CashEntry) Validate() error {
	if c.Amount.Sign() < 0 {
		return invalid("amount", "cannot be negative")
	}
	if err := validate.Struct(c); err != nil {
		return fromValidator(err)
	}
	return nil
}
