// Package services orchestrates ledger commands and queries over storage,
// the business calendar and the event publisher.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"cashbook/internal/aggregate"
	"cashbook/internal/cache"
	"cashbook/internal/calendar"
	"cashbook/internal/core"
	"cashbook/internal/datekey"
	"cashbook/internal/directory"
	"cashbook/internal/events"
	"cashbook/internal/lock"
	"cashbook/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultCalendarTTL = 5 * time.Minute
	calendarCacheYears = 8
	firstKey           = core.DateKey("0001-01-01")
	lastKey            = core.DateKey("9999-12-31")
)

// LedgerService is the single entry point for ledger writes. Every write
// canonicalizes its dates, checks the business calendar where required,
// takes the per-key lock, commits to the store and then publishes an event.
type LedgerService struct {
	store     storage.Store
	dates     *datekey.Canonicalizer
	locks     lock.Locker
	events    events.Publisher
	staff     directory.Directory
	calendars *cache.LRU[*calendar.Calendar]
	holidays  HolidayVersion
	seen      atomic.Int64
	now       func() time.Time
	newID     func() string
}

// HolidayVersion counts holiday-table changes across every instance serving
// the same ledger, so a calendar cached on one instance is dropped when
// another instance adds or removes a holiday.
type HolidayVersion interface {
	Current(ctx context.Context) (int64, error)
	Bump(ctx context.Context) (int64, error)
}

// pinger is implemented by stores that can check their connection cheaply.
type pinger interface {
	Ping(ctx context.Context) error
}

// Option configures a LedgerService.
type Option func(*LedgerService)

// WithLocker replaces the in-process per-key lock.
func WithLocker(l lock.Locker) Option { return func(s *LedgerService) { s.locks = l } }

// WithPublisher sets where ledger events go after each committed write.
func WithPublisher(p events.Publisher) Option { return func(s *LedgerService) { s.events = p } }

// WithDirectory sets the staff directory used to check admin and CSO ids.
func WithDirectory(d directory.Directory) Option { return func(s *LedgerService) { s.staff = d } }

// WithCalendarTTL bounds how long a per-year calendar stays cached.
func WithCalendarTTL(ttl time.Duration) Option {
	return func(s *LedgerService) { s.calendars = cache.NewLRU[*calendar.Calendar](calendarCacheYears, ttl) }
}

// WithHolidayVersion shares holiday changes with other instances.
func WithHolidayVersion(v HolidayVersion) Option { return func(s *LedgerService) { s.holidays = v } }

// WithClock overrides time.Now for stamps such as submittedAt and movedAt.
func WithClock(now func() time.Time) Option { return func(s *LedgerService) { s.now = now } }

// WithIDGenerator overrides the UUID generator used for new records.
func WithIDGenerator(newID func() string) Option { return func(s *LedgerService) { s.newID = newID } }

// NewLedgerService builds the service over store. Without options it uses an
// in-process lock, no event publisher and accepts every staff id.
func NewLedgerService(store storage.Store, dates *datekey.Canonicalizer, opts ...Option) *LedgerService {
	s := &LedgerService{
		store:     store,
		dates:     dates,
		locks:     lock.NewKeyedMutex(),
		events:    events.Nop{},
		staff:     directory.AllowAll{},
		calendars: cache.NewLRU[*calendar.Calendar](calendarCacheYears, defaultCalendarTTL),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CalendarCache exposes the calendar cache so callers can register it for
// periodic expiry sweeps.
func (s *LedgerService) CalendarCache() cache.Cleaner { return s.calendars }

// calendarFor returns the calendar covering year: every recurring holiday
// plus the one-time holidays of that year.
func (s *LedgerService) calendarFor(ctx context.Context, year int) (*calendar.Calendar, error) {
	load := func(ctx context.Context) (*calendar.Calendar, error) {
		all, err := s.store.ListHolidays(ctx)
		if err != nil {
			return nil, fmt.Errorf("list holidays: %w", err)
		}
		view := aggregate.YearlyHolidays(year, all)
		return calendar.New(append(view.Recurring, view.OneTime...)), nil
	}
	if err := s.syncHolidayVersion(ctx); err != nil {
		slog.WarnContext(ctx, "Holiday version unavailable, reading calendar from storage", "error", err)
		return load(ctx)
	}
	return s.calendars.GetOrLoad(ctx, strconv.Itoa(year), load)
}

// syncHolidayVersion drops cached calendars when another instance changed
// the holiday table since the last check.
func (s *LedgerService) syncHolidayVersion(ctx context.Context) error {
	if s.holidays == nil {
		return nil
	}
	v, err := s.holidays.Current(ctx)
	if err != nil {
		return err
	}
	if s.seen.Swap(v) != v {
		s.calendars.Purge()
	}
	return nil
}

// holidaysChanged invalidates local calendars and tells other instances.
func (s *LedgerService) holidaysChanged(ctx context.Context) {
	s.calendars.Purge()
	if s.holidays == nil {
		return
	}
	if _, err := s.holidays.Bump(ctx); err != nil {
		slog.ErrorContext(ctx, "Failed to bump holiday version", "error", err)
	}
}

// checkBusinessDay returns nil for business days and a descriptive error
// otherwise. The second return value reports lookup failures.
func (s *LedgerService) checkBusinessDay(ctx context.Context, k core.DateKey) (closed error, err error) {
	cal, err := s.calendarFor(ctx, k.Year())
	if err != nil {
		return nil, err
	}
	return cal.Check(k), nil
}

// CreateExpense validates the draft, requires a business day and stores a
// new expense.
func (s *LedgerService) CreateExpense(ctx context.Context, draft core.ExpenseDraft) (core.Expense, error) {
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return core.Expense{}, err
	}

	date, err := s.dates.Canonicalize(draft.Date)
	if err != nil {
		return core.Expense{}, err
	}

	spender, err := core.NewSpender(draft.SpenderType, draft.SpenderID)
	if err != nil {
		return core.Expense{}, err
	}
	if err := s.checkSpender(ctx, spender); err != nil {
		return core.Expense{}, err
	}

	closed, err := s.checkBusinessDay(ctx, date)
	if err != nil {
		return core.Expense{}, err
	}
	if closed != nil {
		return core.Expense{}, &core.ValidationError{Field: "date", Reason: closed.Error()}
	}

	e := core.Expense{
		ID:          s.newID(),
		Amount:      draft.Amount,
		Purpose:     draft.Purpose,
		Date:        date,
		Spender:     spender,
		ReceiptImg:  draft.ReceiptImg,
		SubmittedAt: s.now().UTC(),
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	if err := s.store.InsertExpense(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense created",
		"expense_id", e.ID,
		"date_key", e.Date,
		"amount", core.FormatAmount(e.Amount),
		"spender_type", spender.Kind())

	s.publish(ctx, events.NewExpenseCreated(e, e.SubmittedAt))
	return e, nil
}

func (s *LedgerService) checkSpender(ctx context.Context, sp core.Spender) error {
	if sp.Kind() == core.SpenderSuperAdmin {
		return nil
	}
	ok, err := s.staff.Exists(ctx, sp.Kind(), sp.StaffID())
	if err != nil {
		return fmt.Errorf("look up spender: %w", err)
	}
	if !ok {
		return &core.ValidationError{Field: "spenderId", Reason: fmt.Sprintf("unknown %s %q", sp.Kind(), sp.StaffID())}
	}
	return nil
}

// GetExpense returns the expense with id or wraps core.ErrNotFound.
func (s *LedgerService) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

// MoveExpense relocates an expense to targetDate. The target must be a
// business day; moving to the current date is allowed and still stamps
// movedAt.
func (s *LedgerService) MoveExpense(ctx context.Context, id, targetDate string) (core.Expense, error) {
	target, err := s.dates.Canonicalize(targetDate)
	if err != nil {
		return core.Expense{}, err
	}

	closed, err := s.checkBusinessDay(ctx, target)
	if err != nil {
		return core.Expense{}, err
	}
	if closed != nil {
		return core.Expense{}, fmt.Errorf("%w: %v", core.ErrInvalidTargetDate, closed)
	}

	release, err := s.locks.Lock(ctx, lock.ExpenseKey(id))
	if err != nil {
		return core.Expense{}, fmt.Errorf("lock expense %s: %w", id, err)
	}
	defer release()

	before, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}

	move := core.ExpenseMove{
		ID:        s.newID(),
		ExpenseID: id,
		FromDate:  before.Date,
		ToDate:    target,
		MovedAt:   s.now().UTC(),
	}
	moved, err := s.store.MoveExpense(ctx, move)
	if err != nil {
		return core.Expense{}, fmt.Errorf("move expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense moved",
		"expense_id", id,
		"from", move.FromDate,
		"to", move.ToDate)

	s.publish(ctx, events.NewExpenseMoved(moved, move))
	return moved, nil
}

// ExpenseMoves returns the move history of an expense, oldest first.
func (s *LedgerService) ExpenseMoves(ctx context.Context, id string) ([]core.ExpenseMove, error) {
	if _, err := s.GetExpense(ctx, id); err != nil {
		return nil, err
	}
	moves, err := s.store.ListExpenseMoves(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list expense moves: %w", err)
	}
	return moves, nil
}

// DailyExpenses lists one day's expenses with their exact total.
func (s *LedgerService) DailyExpenses(ctx context.Context, date string) (core.DailyExpenses, error) {
	day, err := s.dates.Canonicalize(date)
	if err != nil {
		return core.DailyExpenses{}, err
	}
	items, err := s.store.ListExpensesByDate(ctx, day)
	if err != nil {
		return core.DailyExpenses{}, fmt.Errorf("list expenses: %w", err)
	}
	return aggregate.DailyExpenses(day, items), nil
}

// MonthExpenses returns the raw expenses dated within a month.
func (s *LedgerService) MonthExpenses(ctx context.Context, year, month int) ([]core.Expense, error) {
	if err := core.ValidatePeriod(year, month); err != nil {
		return nil, err
	}
	from, to := core.MonthBounds(year, time.Month(month))
	items, err := s.store.ListExpensesBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return items, nil
}

// MonthlyExpenseSummary groups the month's expenses per day, newest day
// first. Days without expenses are left out.
func (s *LedgerService) MonthlyExpenseSummary(ctx context.Context, year, month int) ([]core.DaySummary, error) {
	items, err := s.MonthExpenses(ctx, year, month)
	if err != nil {
		return nil, err
	}
	return aggregate.MonthlyExpenseSummary(year, time.Month(month), items), nil
}

// SetCashAtHand records the cash counted on a day, replacing any earlier
// figure for that day. Any calendar day is accepted.
func (s *LedgerService) SetCashAtHand(ctx context.Context, entry core.CashEntry) (core.CashSnapshot, error) {
	if err := entry.Validate(); err != nil {
		return core.CashSnapshot{}, err
	}
	date, err := s.dates.Canonicalize(entry.Date)
	if err != nil {
		return core.CashSnapshot{}, err
	}

	snap := core.CashSnapshot{Date: date, Amount: entry.Amount, UpdatedAt: s.now().UTC()}
	if err := snap.Validate(); err != nil {
		return core.CashSnapshot{}, err
	}

	release, err := s.locks.Lock(ctx, lock.CashKey(string(date)))
	if err != nil {
		return core.CashSnapshot{}, fmt.Errorf("lock cash %s: %w", date, err)
	}
	defer release()

	saved, err := s.store.UpsertCashSnapshot(ctx, snap)
	if err != nil {
		return core.CashSnapshot{}, fmt.Errorf("save cash snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Cash at hand set", "date_key", saved.Date, "amount", core.FormatAmount(saved.Amount))
	s.publish(ctx, events.NewCashSnapshotSet(saved))
	return saved, nil
}

// GetCashSnapshot returns the cash counted on date or wraps core.ErrNotFound.
func (s *LedgerService) GetCashSnapshot(ctx context.Context, date string) (core.CashSnapshot, error) {
	day, err := s.dates.Canonicalize(date)
	if err != nil {
		return core.CashSnapshot{}, err
	}
	snap, err := s.store.GetCashSnapshot(ctx, day)
	if err != nil {
		return core.CashSnapshot{}, fmt.Errorf("get cash snapshot: %w", err)
	}
	return snap, nil
}

// CashHistory returns the month's snapshots, newest first.
func (s *LedgerService) CashHistory(ctx context.Context, year, month int) ([]core.CashSnapshot, error) {
	if err := core.ValidatePeriod(year, month); err != nil {
		return nil, err
	}
	from, to := core.MonthBounds(year, time.Month(month))
	snaps, err := s.store.ListCashSnapshotsBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list cash snapshots: %w", err)
	}
	return aggregate.CashHistory(year, time.Month(month), snaps), nil
}

// ListCashSnapshots returns every snapshot, newest first.
func (s *LedgerService) ListCashSnapshots(ctx context.Context) ([]core.CashSnapshot, error) {
	snaps, err := s.store.ListCashSnapshotsBetween(ctx, firstKey, lastKey)
	if err != nil {
		return nil, fmt.Errorf("list cash snapshots: %w", err)
	}
	if snaps == nil {
		snaps = []core.CashSnapshot{}
	}
	return snaps, nil
}

// ListExpenses returns every expense in date order.
func (s *LedgerService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	exps, err := s.store.ListExpensesBetween(ctx, firstKey, lastKey)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	if exps == nil {
		exps = []core.Expense{}
	}
	return exps, nil
}

// CashTotal sums a list of snapshots. Handy for report footers.
func CashTotal(snaps []core.CashSnapshot) decimal.Decimal {
	total := decimal.Zero
	for _, s := range snaps {
		total = total.Add(s.Amount)
	}
	return total
}

// CreateHoliday adds a closed day. A second holiday matching the same day
// with the same recurrence is rejected.
func (s *LedgerService) CreateHoliday(ctx context.Context, draft core.HolidayDraft) (core.Holiday, error) {
	if err := draft.Validate(); err != nil {
		return core.Holiday{}, err
	}
	date, err := s.dates.Canonicalize(draft.Date)
	if err != nil {
		return core.Holiday{}, err
	}

	h := core.Holiday{
		ID:          s.newID(),
		Holiday:     date,
		Reason:      draft.Reason,
		IsRecurring: draft.IsRecurring,
	}
	if err := h.Validate(); err != nil {
		return core.Holiday{}, err
	}

	release, err := s.locks.Lock(ctx, lock.HolidayKey(date.MonthDay()))
	if err != nil {
		return core.Holiday{}, fmt.Errorf("lock holiday %s: %w", date, err)
	}
	defer release()

	existing, err := s.store.ListHolidays(ctx)
	if err != nil {
		return core.Holiday{}, fmt.Errorf("list holidays: %w", err)
	}
	for _, other := range existing {
		if other.IsRecurring == h.IsRecurring && other.Matches(h.Holiday) {
			return core.Holiday{}, &core.ValidationError{Field: "date", Reason: fmt.Sprintf("%s is already a holiday", date)}
		}
	}

	if err := s.store.InsertHoliday(ctx, h); err != nil {
		return core.Holiday{}, fmt.Errorf("save holiday: %w", err)
	}
	s.holidaysChanged(ctx)

	slog.InfoContext(ctx, "Holiday created", "holiday_id", h.ID, "date_key", h.Holiday, "recurring", h.IsRecurring)
	s.publish(ctx, events.NewHolidayCreated(h, s.now()))
	return h, nil
}

// DeleteHoliday removes a holiday and reopens its day.
func (s *LedgerService) DeleteHoliday(ctx context.Context, id string) error {
	h, err := s.store.GetHoliday(ctx, id)
	if err != nil {
		return fmt.Errorf("get holiday: %w", err)
	}

	release, err := s.locks.Lock(ctx, lock.HolidayKey(h.Holiday.MonthDay()))
	if err != nil {
		return fmt.Errorf("lock holiday %s: %w", h.Holiday, err)
	}
	defer release()

	if err := s.store.DeleteHoliday(ctx, id); err != nil {
		return fmt.Errorf("delete holiday: %w", err)
	}
	s.holidaysChanged(ctx)

	slog.InfoContext(ctx, "Holiday deleted", "holiday_id", id, "date_key", h.Holiday)
	s.publish(ctx, events.NewHolidayDeleted(h, s.now()))
	return nil
}

// ListHolidays returns the whole holiday table.
func (s *LedgerService) ListHolidays(ctx context.Context) ([]core.Holiday, error) {
	hs, err := s.store.ListHolidays(ctx)
	if err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	return hs, nil
}

// YearlyHolidays splits the holidays applying to year into recurring and
// one-time lists.
func (s *LedgerService) YearlyHolidays(ctx context.Context, year int) (core.YearlyHolidays, error) {
	if err := core.ValidatePeriod(year, 1); err != nil {
		return core.YearlyHolidays{}, err
	}
	hs, err := s.ListHolidays(ctx)
	if err != nil {
		return core.YearlyHolidays{}, err
	}
	return aggregate.YearlyHolidays(year, hs), nil
}

// BusinessDay reports whether date accepts expenses.
func (s *LedgerService) BusinessDay(ctx context.Context, date string) (core.BusinessDay, error) {
	day, err := s.dates.Canonicalize(date)
	if err != nil {
		return core.BusinessDay{}, err
	}
	closed, err := s.checkBusinessDay(ctx, day)
	if err != nil {
		return core.BusinessDay{}, err
	}
	out := core.BusinessDay{Date: day, BusinessDay: closed == nil}
	if closed != nil {
		out.Reason = closed.Error()
		if out.Next, err = s.nextBusinessDay(ctx, day); err != nil {
			return core.BusinessDay{}, err
		}
	}
	return out, nil
}

// nextBusinessDay walks forward from k, switching to the following year's
// calendar each time the walk leaves the current year.
func (s *LedgerService) nextBusinessDay(ctx context.Context, k core.DateKey) (core.DateKey, error) {
	from := k
	for {
		cal, err := s.calendarFor(ctx, from.Year())
		if err != nil {
			return "", err
		}
		next, err := cal.NextBusinessDay(from)
		if err != nil {
			return "", err
		}
		if next.Year() == from.Year() {
			return next, nil
		}
		cal, err = s.calendarFor(ctx, next.Year())
		if err != nil {
			return "", err
		}
		if cal.IsBusinessDay(next) {
			return next, nil
		}
		if next.Year()-k.Year() > 1 {
			return "", fmt.Errorf("%w: no business day within a year after %s", core.ErrInvalidDate, k)
		}
		from = next
	}
}

// Ready reports whether the store answers queries. Stores that can ping are
// pinged; others run a count.
func (s *LedgerService) Ready(ctx context.Context) error {
	if p, ok := s.store.(pinger); ok {
		return p.Ping(ctx)
	}
	_, err := s.store.CountExpenses(ctx)
	return err
}

// publish sends ev after a committed write. Failures are logged only: the
// write already happened.
func (s *LedgerService) publish(ctx context.Context, ev events.Event) {
	if err := s.events.Publish(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"event_id", ev.ID,
			"kind", ev.Kind,
			"key", ev.Key(),
			"error", err)
	}
}

// Close releases the store and the publisher.
func (s *LedgerService) Close() error {
	var errs []error
	if err := s.events.Close(); err != nil {
		errs = append(errs, fmt.Errorf("events: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("storage: %w", err))
	}
	return errors.Join(errs...)
}
