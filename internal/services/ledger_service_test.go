package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cashbook/internal/core"
	"cashbook/internal/datekey"
	"cashbook/internal/directory"
	"cashbook/internal/events"
	"cashbook/internal/storage/memory"

	"github.com/shopspring/decimal"
)

var wat = time.FixedZone("WAT", 60*60)

type fixture struct {
	svc    *LedgerService
	store  *memory.Store
	events *events.Recorder
	clock  *time.Time
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, wat)
	f := &fixture{store: memory.New(), events: &events.Recorder{}, clock: &now}

	var seq atomic.Int64
	base := []Option{
		WithPublisher(f.events),
		WithClock(func() time.Time { return *f.clock }),
		WithIDGenerator(func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }),
	}
	f.svc = NewLedgerService(f.store, datekey.New(wat, func() time.Time { return *f.clock }), append(base, opts...)...)
	return f
}

func fuelDraft(date string) core.ExpenseDraft {
	return core.ExpenseDraft{
		Amount:      decimal.NewFromInt(1000),
		Purpose:     "fuel",
		Date:        date,
		SpenderType: "admin",
		SpenderID:   "adm-001",
		ReceiptImg:  "receipts/fuel.jpg",
	}
}

func mustCreate(t *testing.T, f *fixture, d core.ExpenseDraft) core.Expense {
	t.Helper()
	e, err := f.svc.CreateExpense(context.Background(), d)
	if err != nil {
		t.Fatalf("CreateExpense(%s) error = %v", d.Date, err)
	}
	return e
}

func dailyTotal(t *testing.T, f *fixture, date string) decimal.Decimal {
	t.Helper()
	day, err := f.svc.DailyExpenses(context.Background(), date)
	if err != nil {
		t.Fatalf("DailyExpenses(%s) error = %v", date, err)
	}
	return day.TotalAmount
}

func TestLedgerService_FuelScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e := mustCreate(t, f, fuelDraft("2024-03-04"))
	if e.Date != "2024-03-04" || e.MovedAt != nil {
		t.Fatalf("unexpected created expense: %+v", e)
	}
	if got := dailyTotal(t, f, "2024-03-04"); !got.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("total on 03-04 = %s, want 1000", got)
	}

	if _, err := f.svc.MoveExpense(ctx, e.ID, "2024-03-09"); !errors.Is(err, core.ErrInvalidTargetDate) {
		t.Fatalf("move to Saturday: expected ErrInvalidTargetDate, got %v", err)
	}

	*f.clock = f.clock.Add(time.Hour)
	moved, err := f.svc.MoveExpense(ctx, e.ID, "2024-03-05")
	if err != nil {
		t.Fatalf("move to Tuesday: %v", err)
	}
	if moved.Date != "2024-03-05" || moved.MovedAt == nil || !moved.MovedAt.Equal(*f.clock) {
		t.Fatalf("unexpected moved expense: %+v", moved)
	}

	if got := dailyTotal(t, f, "2024-03-04"); !got.IsZero() {
		t.Errorf("total on 03-04 after move = %s, want 0", got)
	}
	if got := dailyTotal(t, f, "2024-03-05"); !got.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("total on 03-05 after move = %s, want 1000", got)
	}

	moves, err := f.svc.ExpenseMoves(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(moves) != 1 || moves[0].FromDate != "2024-03-04" || moves[0].ToDate != "2024-03-05" {
		t.Fatalf("unexpected move history: %+v", moves)
	}

	kinds := []events.Kind{}
	for _, ev := range f.events.Events() {
		kinds = append(kinds, ev.Kind)
	}
	if len(kinds) != 2 || kinds[0] != events.ExpenseCreated || kinds[1] != events.ExpenseMoved {
		t.Fatalf("published %v, want created then moved", kinds)
	}
	if last := f.events.Events()[1]; last.Move.FromDate != "2024-03-04" {
		t.Errorf("moved event from date = %s", last.Move.FromDate)
	}
}

func TestLedgerService_CreateExpense_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.CreateHoliday(ctx, core.HolidayDraft{Date: "2024-03-29", Reason: "Good Friday"}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func(*core.ExpenseDraft)
		target error
		field  string
	}{
		{"saturday", func(d *core.ExpenseDraft) { d.Date = "2024-03-09" }, core.ErrValidation, "date"},
		{"sunday", func(d *core.ExpenseDraft) { d.Date = "2024-03-10" }, core.ErrValidation, "date"},
		{"holiday", func(d *core.ExpenseDraft) { d.Date = "2024-03-29" }, core.ErrValidation, "date"},
		{"zero amount", func(d *core.ExpenseDraft) { d.Amount = decimal.Zero }, core.ErrValidation, "amount"},
		{"negative amount", func(d *core.ExpenseDraft) { d.Amount = decimal.NewFromInt(-5) }, core.ErrValidation, "amount"},
		{"blank purpose", func(d *core.ExpenseDraft) { d.Purpose = "   " }, core.ErrValidation, "purpose"},
		{"missing receipt", func(d *core.ExpenseDraft) { d.ReceiptImg = "" }, core.ErrValidation, "receiptImg"},
		{"admin without id", func(d *core.ExpenseDraft) { d.SpenderID = "" }, core.ErrValidation, "spenderId"},
		{"unknown spender type", func(d *core.ExpenseDraft) { d.SpenderType = "auditor" }, core.ErrValidation, "spenderType"},
		{"unparseable date", func(d *core.ExpenseDraft) { d.Date = "next tuesday" }, core.ErrInvalidDate, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := fuelDraft("2024-03-04")
			tt.mutate(&d)
			_, err := f.svc.CreateExpense(ctx, d)
			if !errors.Is(err, tt.target) {
				t.Fatalf("expected %v, got %v", tt.target, err)
			}
			if tt.field != "" {
				var ve *core.ValidationError
				if !errors.As(err, &ve) || ve.Field != tt.field {
					t.Fatalf("expected field %q, got %v", tt.field, err)
				}
			}
			if n, _ := f.store.CountExpenses(ctx); n != 0 {
				t.Fatalf("store changed: %d expenses", n)
			}
		})
	}
	if got := len(f.events.Events()); got != 1 {
		t.Errorf("expected only the holiday event, got %d events", got)
	}
}

func TestLedgerService_CreateExpense_SuperAdminNeedsNoID(t *testing.T) {
	f := newFixture(t, WithDirectory(directory.NewStatic(nil, nil)))
	d := fuelDraft("2024-03-04")
	d.SpenderType, d.SpenderID = "super_admin", ""

	e := mustCreate(t, f, d)
	if e.Spender != (core.SuperAdmin{}) {
		t.Fatalf("spender = %#v", e.Spender)
	}
}

func TestLedgerService_CreateExpense_UnknownStaff(t *testing.T) {
	f := newFixture(t, WithDirectory(directory.NewStatic([]string{"adm-001"}, []string{"cso-001"})))
	ctx := context.Background()

	mustCreate(t, f, fuelDraft("2024-03-04"))

	d := fuelDraft("2024-03-04")
	d.SpenderType, d.SpenderID = "cso", "cso-999"
	_, err := f.svc.CreateExpense(ctx, d)
	var ve *core.ValidationError
	if !errors.As(err, &ve) || ve.Field != "spenderId" {
		t.Fatalf("expected spenderId validation error, got %v", err)
	}
	if n, _ := f.store.CountExpenses(ctx); n != 1 {
		t.Fatalf("expected 1 expense, got %d", n)
	}
}

func TestLedgerService_CreateExpense_CanonicalizesTimestamps(t *testing.T) {
	f := newFixture(t)
	// 23:30 UTC on Monday is already Tuesday in Lagos.
	d := fuelDraft("2024-03-04T23:30:00Z")
	e := mustCreate(t, f, d)
	if e.Date != "2024-03-05" {
		t.Fatalf("date = %s, want 2024-03-05", e.Date)
	}

	d = fuelDraft("today")
	e = mustCreate(t, f, d)
	if e.Date != "2024-03-04" {
		t.Fatalf("today = %s, want 2024-03-04", e.Date)
	}
}

func TestLedgerService_MoveExpense_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := mustCreate(t, f, fuelDraft("2024-03-04"))
	if _, err := f.svc.CreateHoliday(ctx, core.HolidayDraft{Date: "2024-03-29", Reason: "Good Friday"}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		id     string
		target string
		want   error
	}{
		{"holiday target", e.ID, "2024-03-29", core.ErrInvalidTargetDate},
		{"weekend target", e.ID, "2024-03-10", core.ErrInvalidTargetDate},
		{"unparseable target", e.ID, "29/03/2024", core.ErrInvalidDate},
		{"unknown expense", "missing", "2024-03-05", core.ErrNotFound},
		{"unknown expense and bad target", "missing", "2024-03-09", core.ErrInvalidTargetDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.MoveExpense(ctx, tt.id, tt.target); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			got, err := f.svc.GetExpense(ctx, e.ID)
			if err != nil {
				t.Fatal(err)
			}
			if got.Date != "2024-03-04" || got.MovedAt != nil {
				t.Fatalf("expense changed: %+v", got)
			}
		})
	}
}

func TestLedgerService_MoveExpense_SameDateAndRepeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := mustCreate(t, f, fuelDraft("2024-03-04"))

	*f.clock = f.clock.Add(time.Minute)
	same, err := f.svc.MoveExpense(ctx, e.ID, "2024-03-04")
	if err != nil {
		t.Fatalf("same-date move: %v", err)
	}
	if same.Date != "2024-03-04" || same.MovedAt == nil {
		t.Fatalf("same-date move should stamp movedAt: %+v", same)
	}
	first := *same.MovedAt

	*f.clock = f.clock.Add(time.Minute)
	again, err := f.svc.MoveExpense(ctx, e.ID, "2024-03-06")
	if err != nil {
		t.Fatalf("repeat move: %v", err)
	}
	if !again.MovedAt.After(first) {
		t.Fatalf("movedAt not advanced: %v then %v", first, again.MovedAt)
	}

	moves, err := f.svc.ExpenseMoves(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(moves) != 2 || moves[1].FromDate != "2024-03-04" || moves[1].ToDate != "2024-03-06" {
		t.Fatalf("unexpected history: %+v", moves)
	}

	if _, err := f.svc.ExpenseMoves(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("history of unknown expense: %v", err)
	}
}

func TestLedgerService_CashSnapshots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, amount := range []int64{500, 750} {
		*f.clock = f.clock.Add(time.Minute)
		if _, err := f.svc.SetCashAtHand(ctx, core.CashEntry{Date: "2024-03-01", Amount: decimal.NewFromInt(amount)}); err != nil {
			t.Fatalf("SetCashAtHand(%d) error = %v", amount, err)
		}
	}

	snap, err := f.svc.GetCashSnapshot(ctx, "2024-03-01")
	if err != nil {
		t.Fatal(err)
	}
	if !snap.Amount.Equal(decimal.NewFromInt(750)) || !snap.UpdatedAt.Equal(*f.clock) {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	history, err := f.svc.CashHistory(ctx, 2024, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Fatalf("expected exactly one snapshot, got %+v", history)
	}

	// Weekends are fine for cash counts.
	if _, err := f.svc.SetCashAtHand(ctx, core.CashEntry{Date: "2024-03-02", Amount: decimal.Zero}); err != nil {
		t.Fatalf("weekend cash: %v", err)
	}

	_, err = f.svc.SetCashAtHand(ctx, core.CashEntry{Date: "2024-03-04", Amount: decimal.NewFromInt(-1)})
	var ve *core.ValidationError
	if !errors.As(err, &ve) || ve.Field != "amount" {
		t.Fatalf("negative cash: expected amount validation error, got %v", err)
	}
	if _, err := f.svc.GetCashSnapshot(ctx, "2024-03-04"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("rejected write must not be stored: %v", err)
	}

	all, err := f.svc.ListCashSnapshots(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Date != "2024-03-02" {
		t.Fatalf("unexpected list: %+v", all)
	}
	if total := CashTotal(all); !total.Equal(decimal.NewFromInt(750)) {
		t.Errorf("CashTotal() = %s", total)
	}
}

func TestLedgerService_ConcurrentCashWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 25; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			if _, err := f.svc.SetCashAtHand(ctx, core.CashEntry{Date: "2024-03-04", Amount: decimal.NewFromInt(n)}); err != nil {
				t.Errorf("SetCashAtHand: %v", err)
			}
		}(int64(i))
	}
	wg.Wait()

	history, err := f.svc.CashHistory(ctx, 2024, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one snapshot, got %d", len(history))
	}
	if got := len(f.events.Events()); got != 25 {
		t.Errorf("expected 25 events, got %d", got)
	}
}

func TestLedgerService_MonthlySummaryMatchesDailyTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	amounts := map[string][]string{
		"2024-03-01": {"100.10", "200.20"},
		"2024-03-04": {"1000"},
		"2024-03-15": {"0.10", "0.20", "0.30"},
		"2024-03-29": {"75.5"},
		"2024-04-01": {"999"},
	}
	for date, list := range amounts {
		for _, a := range list {
			d := fuelDraft(date)
			d.Amount = decimal.RequireFromString(a)
			mustCreate(t, f, d)
		}
	}

	summary, err := f.svc.MonthlyExpenseSummary(ctx, 2024, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(summary) != 4 || summary[0].Date != "2024-03-29" || summary[3].Date != "2024-03-01" {
		t.Fatalf("unexpected grouping: %+v", summary)
	}

	sumOfDays := decimal.Zero
	for d := 1; d <= 31; d++ {
		key := core.NewDateKey(2024, time.March, d)
		day, err := f.svc.BusinessDay(ctx, string(key))
		if err != nil {
			t.Fatal(err)
		}
		if day.BusinessDay {
			sumOfDays = sumOfDays.Add(dailyTotal(t, f, string(key)))
		}
	}

	monthTotal := decimal.Zero
	for _, s := range summary {
		monthTotal = monthTotal.Add(s.TotalAmount)
	}
	if !monthTotal.Equal(sumOfDays) || !monthTotal.Equal(decimal.RequireFromString("1376.4")) {
		t.Fatalf("month total %s, daily sum %s", monthTotal, sumOfDays)
	}
	if !summary[1].TotalAmount.Equal(decimal.RequireFromString("0.6")) {
		t.Errorf("0.1+0.2+0.3 = %s, want 0.6", summary[1].TotalAmount)
	}

	empty, err := f.svc.MonthlyExpenseSummary(ctx, 2024, 2)
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty month: %v %+v", err, empty)
	}
	if _, err := f.svc.MonthlyExpenseSummary(ctx, 2024, 13); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("month 13: %v", err)
	}
}

func TestLedgerService_HolidayResolution(t *testing.T) {
	tests := []struct {
		name      string
		recurring bool
		query     string
		want      bool
	}{
		{"recurring applies in later years", true, "2030-12-25", false},
		{"recurring applies in stored year", true, "2024-12-25", false},
		{"one-time ignored in later years", false, "2030-12-25", true},
		{"one-time applies on its date", false, "2024-12-25", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			if _, err := f.svc.CreateHoliday(ctx, core.HolidayDraft{Date: "2024-12-25", Reason: "Christmas", IsRecurring: tt.recurring}); err != nil {
				t.Fatal(err)
			}
			got, err := f.svc.BusinessDay(ctx, tt.query)
			if err != nil {
				t.Fatal(err)
			}
			if got.BusinessDay != tt.want {
				t.Fatalf("BusinessDay(%s) = %+v, want %v", tt.query, got, tt.want)
			}
			if !tt.want && got.Reason == "" {
				t.Error("closed day should carry a reason")
			}
		})
	}
}

func TestLedgerService_NextBusinessDayAcrossYears(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, d := range []core.HolidayDraft{
		{Date: "2027-12-31", Reason: "Year end"},
		{Date: "2024-01-01", Reason: "New Year", IsRecurring: true},
		{Date: "2028-01-03", Reason: "Bridge"},
	} {
		if _, err := f.svc.CreateHoliday(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	got, err := f.svc.BusinessDay(ctx, "2027-12-31")
	if err != nil {
		t.Fatal(err)
	}
	if got.BusinessDay || got.Next != "2028-01-04" {
		t.Fatalf("BusinessDay(2027-12-31) = %+v, want next 2028-01-04", got)
	}

	open, err := f.svc.BusinessDay(ctx, "2028-01-04")
	if err != nil {
		t.Fatal(err)
	}
	if !open.BusinessDay || open.Next != "" {
		t.Fatalf("open day should not carry a next day: %+v", open)
	}
}

func TestLedgerService_WeekendsNeverBusinessDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC); d.Year() == 2024; d = d.AddDate(0, 0, 1) {
		key := core.DateKey(d.Format(core.DateLayout))
		day, err := f.svc.BusinessDay(ctx, string(key))
		if err != nil {
			t.Fatal(err)
		}
		ok := day.BusinessDay
		weekend := d.Weekday() == time.Saturday || d.Weekday() == time.Sunday
		if weekend && ok {
			t.Fatalf("%s (%s) reported as business day", key, d.Weekday())
		}
		if !weekend && !ok {
			t.Fatalf("%s (%s) reported as closed without holidays", key, d.Weekday())
		}
	}
}

func TestLedgerService_HolidayWritesInvalidateCalendar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before, err := f.svc.BusinessDay(ctx, "2024-06-12")
	if err != nil || !before.BusinessDay {
		t.Fatalf("expected open day before holiday: %+v %v", before, err)
	}

	h, err := f.svc.CreateHoliday(ctx, core.HolidayDraft{Date: "2024-06-12", Reason: "Democracy Day", IsRecurring: true})
	if err != nil {
		t.Fatal(err)
	}
	during, _ := f.svc.BusinessDay(ctx, "2025-06-12")
	if during.BusinessDay {
		t.Fatal("recurring holiday not applied after create")
	}
	if _, err := f.svc.CreateExpense(ctx, fuelDraft("2024-06-12")); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expense on new holiday: %v", err)
	}

	if _, err := f.svc.CreateHoliday(ctx, core.HolidayDraft{Date: "2030-06-12", IsRecurring: true}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("duplicate recurring holiday: %v", err)
	}

	if err := f.svc.DeleteHoliday(ctx, h.ID); err != nil {
		t.Fatal(err)
	}
	after, _ := f.svc.BusinessDay(ctx, "2024-06-12")
	if !after.BusinessDay {
		t.Fatal("calendar still closed after delete")
	}
	if err := f.svc.DeleteHoliday(ctx, h.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestLedgerService_YearlyHolidays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	drafts := []core.HolidayDraft{
		{Date: "2020-01-01", Reason: "New Year", IsRecurring: true},
		{Date: "2024-04-10", Reason: "Eid al-Fitr"},
		{Date: "2025-03-31", Reason: "Eid al-Fitr"},
	}
	for _, d := range drafts {
		if _, err := f.svc.CreateHoliday(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	got, err := f.svc.YearlyHolidays(ctx, 2024)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Recurring) != 1 || len(got.OneTime) != 1 || got.OneTime[0].Holiday != "2024-04-10" {
		t.Fatalf("unexpected 2024 view: %+v", got)
	}

	all, err := f.svc.ListHolidays(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("ListHolidays() = %d, %v", len(all), err)
	}
}

func TestLedgerService_PublishFailureKeepsWrite(t *testing.T) {
	f := newFixture(t)
	f.events.Err = errors.New("broker unreachable")
	ctx := context.Background()

	e, err := f.svc.CreateExpense(ctx, fuelDraft("2024-03-04"))
	if err != nil {
		t.Fatalf("publish failure must not fail the write: %v", err)
	}
	if _, err := f.svc.GetExpense(ctx, e.ID); err != nil {
		t.Fatalf("expense not stored: %v", err)
	}
}

func TestLedgerService_Close(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

// stallingStore blocks the first holiday read after it has taken its
// snapshot, so a holiday write can land while that read is in flight.
type stallingStore struct {
	*memory.Store
	stalled atomic.Bool
	started chan struct{}
	release chan struct{}
}

func (s *stallingStore) ListHolidays(ctx context.Context) ([]core.Holiday, error) {
	hs, err := s.Store.ListHolidays(ctx)
	if s.stalled.CompareAndSwap(false, true) {
		close(s.started)
		<-s.release
	}
	return hs, err
}

func TestLedgerService_HolidayAddedDuringCalendarLoad(t *testing.T) {
	store := &stallingStore{Store: memory.New(), started: make(chan struct{}), release: make(chan struct{})}
	now := func() time.Time { return time.Date(2024, 3, 4, 9, 0, 0, 0, wat) }
	svc := NewLedgerService(store, datekey.New(wat, now), WithClock(now))
	ctx := context.Background()

	first := make(chan error, 1)
	go func() {
		_, err := svc.BusinessDay(ctx, "2024-06-12")
		first <- err
	}()
	select {
	case <-store.started:
	case <-time.After(2 * time.Second):
		t.Fatal("calendar load never started")
	}

	if _, err := svc.CreateHoliday(ctx, core.HolidayDraft{Date: "2024-06-12", Reason: "Democracy Day"}); err != nil {
		t.Fatal(err)
	}

	created := make(chan error, 1)
	go func() {
		_, err := svc.CreateExpense(ctx, fuelDraft("2024-06-12"))
		created <- err
	}()
	select {
	case err := <-created:
		var verr *core.ValidationError
		if !errors.As(err, &verr) || verr.Field != "date" {
			t.Fatalf("expense on new holiday: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("CreateExpense waited on a calendar load that started before the holiday")
	}

	close(store.release)
	if err := <-first; err != nil {
		t.Fatal(err)
	}
	day, err := svc.BusinessDay(ctx, "2024-06-12")
	if err != nil || day.BusinessDay {
		t.Fatalf("BusinessDay after load settled = %+v, %v", day, err)
	}
}

type sharedVersion struct {
	n   atomic.Int64
	err error
}

func (v *sharedVersion) Current(context.Context) (int64, error) {
	if v.err != nil {
		return 0, v.err
	}
	return v.n.Load(), nil
}

func (v *sharedVersion) Bump(context.Context) (int64, error) {
	if v.err != nil {
		return 0, v.err
	}
	return v.n.Add(1), nil
}

func TestLedgerService_HolidayVersionAcrossInstances(t *testing.T) {
	tests := []struct {
		name    string
		version *sharedVersion
	}{
		{"shared counter", &sharedVersion{}},
		{"counter unavailable", &sharedVersion{err: errors.New("redis down")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newFixture(t, WithHolidayVersion(tt.version))
			now := func() time.Time { return *a.clock }
			b := NewLedgerService(a.store, datekey.New(wat, now), WithClock(now), WithHolidayVersion(tt.version))
			ctx := context.Background()

			warm, err := b.BusinessDay(ctx, "2024-06-12")
			if err != nil || !warm.BusinessDay {
				t.Fatalf("expected open day before holiday: %+v %v", warm, err)
			}

			h, err := a.svc.CreateHoliday(ctx, core.HolidayDraft{Date: "2024-06-12", Reason: "Democracy Day"})
			if err != nil {
				t.Fatal(err)
			}
			if _, err := b.CreateExpense(ctx, fuelDraft("2024-06-12")); !errors.Is(err, core.ErrValidation) {
				t.Fatalf("other instance accepted expense on new holiday: %v", err)
			}

			if err := a.svc.DeleteHoliday(ctx, h.ID); err != nil {
				t.Fatal(err)
			}
			if _, err := b.CreateExpense(ctx, fuelDraft("2024-06-12")); err != nil {
				t.Fatalf("other instance still closed after delete: %v", err)
			}
		})
	}
}

func TestLedgerService_ListExpenses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty, err := f.svc.ListExpenses(ctx)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("ListExpenses() on empty ledger = %#v, %v", empty, err)
	}

	mustCreate(t, f, fuelDraft("2024-03-05"))
	mustCreate(t, f, fuelDraft("2024-03-04"))
	all, err := f.svc.ListExpenses(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Date != "2024-03-04" || all[1].Date != "2024-03-05" {
		t.Fatalf("unexpected listing: %+v", all)
	}
}

type pingStore struct {
	*memory.Store
	err   error
	calls int
}

func (s *pingStore) Ping(context.Context) error {
	s.calls++
	return s.err
}

func TestLedgerService_Ready(t *testing.T) {
	ctx := context.Background()
	dates := datekey.New(wat, time.Now)

	if err := NewLedgerService(memory.New(), dates).Ready(ctx); err != nil {
		t.Fatalf("Ready() without ping = %v", err)
	}

	down := errors.New("connection refused")
	store := &pingStore{Store: memory.New(), err: down}
	if err := NewLedgerService(store, dates).Ready(ctx); !errors.Is(err, down) {
		t.Fatalf("Ready() = %v, want ping error", err)
	}
	if store.calls != 1 {
		t.Fatalf("Ping called %d times, want 1", store.calls)
	}
}

func TestLedgerService_BusinessDayAtEndOfRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.CreateHoliday(ctx, core.HolidayDraft{Date: "9999-12-31", Reason: "End"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.BusinessDay(ctx, "9999-12-31"); !errors.Is(err, core.ErrInvalidDate) {
		t.Fatalf("BusinessDay(9999-12-31) = %v, want ErrInvalidDate", err)
	}
}
