// Package memory is an in-process workbook used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	ports "cashbook/internal/sheets"
)

type Workbook struct {
	mu     sync.Mutex
	sheets map[string][][]any
	// FailNext, when positive, makes that many AppendRows calls fail.
	FailNext int
}

var _ ports.Workbook = (*Workbook)(nil)

func New() *Workbook {
	return &Workbook{sheets: make(map[string][][]any)}
}

func (w *Workbook) AppendRows(_ context.Context, sheet string, rows [][]any) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.FailNext > 0 {
		w.FailNext--
		return "", fmt.Errorf("append to %s: simulated failure", sheet)
	}
	start := len(w.sheets[sheet]) + 1
	for _, r := range rows {
		w.sheets[sheet] = append(w.sheets[sheet], append([]any(nil), r...))
	}
	return fmt.Sprintf("%s!A%d:A%d", sheet, start, len(w.sheets[sheet])), nil
}

func (w *Workbook) ReadColumn(_ context.Context, sheet, column string) ([]string, error) {
	col := columnIndex(column)
	if col < 0 {
		return nil, fmt.Errorf("unsupported column %q", column)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []string
	for _, row := range w.sheets[sheet] {
		if col >= len(row) {
			continue
		}
		if v := strings.TrimSpace(fmt.Sprint(row[col])); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

// Rows returns a copy of the rows stored in sheet.
func (w *Workbook) Rows(sheet string) [][]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([][]any, len(w.sheets[sheet]))
	for i, r := range w.sheets[sheet] {
		out[i] = append([]any(nil), r...)
	}
	return out
}

// columnIndex maps single-letter columns A..Z to 0..25.
func columnIndex(column string) int {
	column = strings.ToUpper(strings.TrimSpace(column))
	if len(column) != 1 || column[0] < 'A' || column[0] > 'Z' {
		return -1
	}
	return int(column[0] - 'A')
}
