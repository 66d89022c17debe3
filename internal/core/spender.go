package core

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SpenderKind is the wire name of a spender variant.
type SpenderKind string

const (
	SpenderSuperAdmin SpenderKind = "super_admin"
	SpenderAdmin      SpenderKind = "admin"
	SpenderCSO        SpenderKind = "cso"
)

// Spender identifies who is accountable for an expense. The set of
// implementations is closed: SuperAdmin, Admin and CSO.
type Spender interface {
	Kind() SpenderKind
	StaffID() string
	isSpender()
}

type (
	SuperAdmin struct{}
	Admin      struct{ ID string }
	CSO        struct{ ID string }
)

func (SuperAdmin) Kind() SpenderKind { return SpenderSuperAdmin }
func (SuperAdmin) StaffID() string   { return "" }
func (SuperAdmin) isSpender()        {}

func (a Admin) Kind() SpenderKind { return SpenderAdmin }
func (a Admin) StaffID() string   { return a.ID }
func (Admin) isSpender()          {}

func (c CSO) Kind() SpenderKind { return SpenderCSO }
func (c CSO) StaffID() string   { return c.ID }
func (CSO) isSpender()          {}

// NewSpender builds a spender from its wire form. Staff ids are required for
// admin and cso spenders and ignored for super_admin.
func NewSpender(kind, id string) (Spender, error) {
	id = strings.TrimSpace(id)
	switch SpenderKind(strings.TrimSpace(kind)) {
	case SpenderSuperAdmin:
		return SuperAdmin{}, nil
	case SpenderAdmin:
		if id == "" {
			return nil, invalid("spenderId", "is required for admin spenders")
		}
		return Admin{ID: id}, nil
	case SpenderCSO:
		if id == "" {
			return nil, invalid("spenderId", "is required for cso spenders")
		}
		return CSO{ID: id}, nil
	case "":
		return nil, invalid("spenderType", "is required")
	default:
		return nil, invalid("spenderType", "must be one of super_admin, admin, cso")
	}
}

func ValidateSpender(s Spender) error {
	_, err := NewSpender(string(s.Kind()), s.StaffID())
	return err
}

type expenseJSON struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Purpose     string          `json:"purpose"`
	Date        DateKey         `json:"date"`
	SpenderType SpenderKind     `json:"spenderType"`
	SpenderID   string          `json:"spenderId,omitempty"`
	ReceiptImg  string          `json:"receiptImg"`
	SubmittedAt time.Time       `json:"submittedAt"`
	MovedAt     *time.Time      `json:"movedAt"`
}

func (e Expense) MarshalJSON() ([]byte, error) {
	out := expenseJSON{
		ID:          e.ID,
		Amount:      e.Amount,
		Purpose:     e.Purpose,
		Date:        e.Date,
		ReceiptImg:  e.ReceiptImg,
		SubmittedAt: e.SubmittedAt,
		MovedAt:     e.MovedAt,
	}
	if e.Spender != nil {
		out.SpenderType = e.Spender.Kind()
		out.SpenderID = e.Spender.StaffID()
	}
	return json.Marshal(out)
}

func (e *Expense) UnmarshalJSON(data []byte) error {
	var in expenseJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	sp, err := NewSpender(string(in.SpenderType), in.SpenderID)
	if err != nil {
		return err
	}
	*e = Expense{
		ID:          in.ID,
		Amount:      in.Amount,
		Purpose:     in.Purpose,
		Date:        in.Date,
		Spender:     sp,
		ReceiptImg:  in.ReceiptImg,
		SubmittedAt: in.SubmittedAt,
		MovedAt:     in.MovedAt,
	}
	return nil
}
