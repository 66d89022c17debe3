package memory

import (
	"context"
	"testing"
	"time"

	"cashbook/internal/core"
	"cashbook/internal/storage"
	"cashbook/internal/storage/storagetest"

	"github.com/shopspring/decimal"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(*testing.T) storage.Store { return New() })
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	e := core.Expense{
		ID:          "e1",
		Amount:      decimal.NewFromInt(5),
		Purpose:     "tea",
		Date:        "2024-03-04",
		Spender:     core.SuperAdmin{},
		ReceiptImg:  "r.jpg",
		SubmittedAt: time.Now(),
	}
	if err := s.InsertExpense(ctx, e); err != nil {
		t.Fatal(err)
	}
	moved, err := s.MoveExpense(ctx, core.ExpenseMove{ID: "m1", ExpenseID: "e1", ToDate: "2024-03-05", MovedAt: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	*moved.MovedAt = time.Time{}

	got, _ := s.GetExpense(ctx, "e1")
	if got.MovedAt.IsZero() {
		t.Fatal("caller mutation leaked into the store")
	}
}
