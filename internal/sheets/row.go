package sheets

import (
	"context"
	"fmt"
	"strconv"
)

// Writer is the part of Client a Row needs.
type Writer interface {
	LastRow(ctx context.Context, sheet string) (int, error)
	Update(ctx context.Context, sheet, cell string, values ...any) error
}

// Row is the first empty row of a sheet, resolved once. Every write of a
// report run goes to the same row, even after earlier writes filled it.
type Row struct {
	w      Writer
	sheet  string
	number int
}

// NextRow resolves the row below the last used one on sheet.
func NextRow(ctx context.Context, w Writer, sheet string) (*Row, error) {
	last, err := w.LastRow(ctx, sheet)
	if err != nil {
		return nil, fmt.Errorf("finding next row on %q: %w", sheet, err)
	}
	return &Row{w: w, sheet: sheet, number: last + 1}, nil
}

// Sheet and Number locate the row.
func (r *Row) Sheet() string { return r.sheet }

func (r *Row) Number() int { return r.number }

// Set writes values into the row starting at column.
func (r *Row) Set(ctx context.Context, column string, values ...any) error {
	return r.w.Update(ctx, r.sheet, column+strconv.Itoa(r.number), values...)
}
