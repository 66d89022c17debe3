// Package sheets mirrors ledger records into spreadsheet rows for the
// back-office team. The ledger database stays the source of truth.
package sheets

import "context"

// Ports for outbound spreadsheet adapters.
type (
	RowAppender interface {
		// AppendRows adds rows after the last filled row of sheet and returns
		// the updated range.
		AppendRows(ctx context.Context, sheet string, rows [][]any) (string, error)
	}

	ColumnReader interface {
		// ReadColumn returns the non-empty cells of one column, top to bottom.
		ReadColumn(ctx context.Context, sheet, column string) ([]string, error)
	}

	Workbook interface {
		RowAppender
		ColumnReader
	}
)
