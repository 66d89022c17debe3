package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"cashbook/internal/events"
	"cashbook/internal/sheets"
)

// MirrorWorker copies ledger events into spreadsheet rows. Rows are
// buffered and appended in batches; event ids already present in column A
// are skipped so broker redeliveries do not duplicate rows.
type MirrorWorker struct {
	book          sheets.Workbook
	expensesSheet string
	cashSheet     string
	batchSize     int

	mu      sync.Mutex
	pending map[string][][]any
	queued  int
	seen    map[string]struct{}
}

func NewMirrorWorker(book sheets.Workbook, expensesSheet, cashSheet string, batchSize int) *MirrorWorker {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &MirrorWorker{
		book:          book,
		expensesSheet: expensesSheet,
		cashSheet:     cashSheet,
		batchSize:     batchSize,
		pending:       make(map[string][][]any),
		seen:          make(map[string]struct{}),
	}
}

// Warmup loads the event ids already mirrored and writes the header row
// into empty sheets. Call once before consuming.
func (w *MirrorWorker) Warmup(ctx context.Context) error {
	total := 0
	headers := map[string][]any{w.expensesSheet: sheets.ExpenseHeader, w.cashSheet: sheets.CashHeader}
	for _, sheet := range []string{w.expensesSheet, w.cashSheet} {
		ids, err := w.book.ReadColumn(ctx, sheet, "A")
		if err != nil {
			return fmt.Errorf("read mirrored ids from %s: %w", sheet, err)
		}
		if len(ids) == 0 {
			if _, err := w.book.AppendRows(ctx, sheet, [][]any{headers[sheet]}); err != nil {
				return fmt.Errorf("write %s header: %w", sheet, err)
			}
		}
		w.mu.Lock()
		for _, id := range ids {
			w.seen[id] = struct{}{}
		}
		w.mu.Unlock()
		total += len(ids)
	}
	slog.InfoContext(ctx, "Mirror worker warmed up", "known_rows", total)
	return nil
}

// Handle queues the row for ev and flushes once the batch is full.
func (w *MirrorWorker) Handle(ctx context.Context, ev events.Event) error {
	var (
		sheet string
		row   []any
		err   error
	)
	switch ev.Kind {
	case events.ExpenseCreated, events.ExpenseMoved:
		sheet = w.expensesSheet
		row, err = sheets.ExpenseRow(ev)
	case events.CashSnapshotSet:
		sheet = w.cashSheet
		row, err = sheets.CashRow(ev)
	default:
		slog.DebugContext(ctx, "Event not mirrored", "kind", ev.Kind, "event_id", ev.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("render row: %w", err)
	}

	w.mu.Lock()
	if _, dup := w.seen[ev.ID]; dup {
		w.mu.Unlock()
		slog.InfoContext(ctx, "Skipping already mirrored event", "event_id", ev.ID, "kind", ev.Kind)
		return nil
	}
	w.seen[ev.ID] = struct{}{}
	w.pending[sheet] = append(w.pending[sheet], row)
	w.queued++
	full := w.queued >= w.batchSize
	w.mu.Unlock()

	if full {
		return w.Flush(ctx)
	}
	return nil
}

// Flush appends every queued row. Rows of a sheet that fails stay queued
// for the next flush.
func (w *MirrorWorker) Flush(ctx context.Context) error {
	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[string][][]any)
	w.queued = 0
	w.mu.Unlock()

	names := make([]string, 0, len(batch))
	for name := range batch {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		rows := batch[name]
		if _, err := w.book.AppendRows(ctx, name, rows); err != nil {
			errs = append(errs, err)
			w.requeue(name, rows)
			continue
		}
		slog.InfoContext(ctx, "Mirrored ledger rows", "sheet", name, "rows", len(rows))
	}
	return errors.Join(errs...)
}

func (w *MirrorWorker) requeue(sheet string, rows [][]any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[sheet] = append(rows, w.pending[sheet]...)
	w.queued += len(rows)
}

// Pending reports how many rows wait for the next flush.
func (w *MirrorWorker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.queued
}

// Run flushes on every tick until ctx ends, then flushes once more with a
// short grace period.
func (w *MirrorWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.Flush(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic mirror flush failed", "error", err, "pending", w.Pending())
			}
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := w.Flush(flushCtx); err != nil {
				slog.Error("Final mirror flush failed", "error", err, "pending", w.Pending())
				return err
			}
			return nil
		}
	}
}
