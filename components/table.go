package components

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/sarchlab/cosim/coupling"
	"github.com/sarchlab/cosim/workspace"
)

// A Table replays rows of numbers, one row per tick. Every column is a
// producer, and every column can also be overwritten through a consumer.
type Table struct {
	*workspace.ComponentBase

	columns []string
	rows    [][]float64
	cursor  int
	loop    bool
}

// NewTable creates a table. Every row must have one value per column.
func NewTable(name string, columns []string, rows [][]float64) (*Table, error) {
	if len(columns) == 0 {
		return nil, errors.New("a table needs at least one column")
	}

	seen := make(map[string]bool)
	for _, c := range columns {
		if c == "row" || c == "" {
			return nil, fmt.Errorf("invalid column name %q", c)
		}

		if seen[c] {
			return nil, fmt.Errorf("duplicated column %q", c)
		}

		seen[c] = true
	}

	copied := make([][]float64, 0, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, want %d",
				i, len(row), len(columns))
		}

		copied = append(copied, append([]float64(nil), row...))
	}

	t := &Table{
		ComponentBase: workspace.NewComponentBase(name),
		columns:       append([]string(nil), columns...),
		rows:          copied,
		loop:          true,
	}

	for i, col := range columns {
		t.AddProducer(coupling.NewProducer(t, "table", col,
			func() float64 { return t.cell(i) }))
		t.AddConsumer(coupling.NewConsumer(t, "table", col,
			func(v float64) { t.setCell(i, v) }))
	}

	t.AddProducer(coupling.NewProducer(t, "table", "row",
		func() []float64 { return t.currentRow() },
		coupling.WithDescription("current row")))

	return t, nil
}

// ReadTableCSV creates a table from CSV data whose first record holds the
// column names.
func ReadTableCSV(name string, in io.Reader) (*Table, error) {
	records, err := csv.NewReader(in).ReadAll()
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, errors.New("csv data has no header")
	}

	rows := make([][]float64, 0, len(records)-1)
	for i, record := range records[1:] {
		row := make([]float64, len(record))
		for j, field := range record {
			row[j], err = strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", i, j, err)
			}
		}

		rows = append(rows, row)
	}

	return NewTable(name, records[0], rows)
}

// DefaultFormat is the format of the table's archive entry.
func (t *Table) DefaultFormat() string {
	return "csv"
}

// SetLoop sets whether the table starts over after the last row.
func (t *Table) SetLoop(loop bool) {
	t.Lock()
	defer t.Unlock()

	t.loop = loop
}

// Columns returns the column names.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Column returns the producer of a column.
func (t *Table) Column(name string) (coupling.Attribute, bool) {
	return t.FindProducer("table", name)
}

// Cursor returns the index of the current row.
func (t *Table) Cursor() int {
	t.Lock()
	defer t.Unlock()

	return t.cursor
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	t.Lock()
	defer t.Unlock()

	return len(t.rows)
}

// Row returns a copy of row i.
func (t *Table) Row(i int) []float64 {
	t.Lock()
	defer t.Unlock()

	return append([]float64(nil), t.rows[i]...)
}

// Update moves to the next row. A table that does not loop stays on its last
// row.
func (t *Table) Update() error {
	if len(t.rows) == 0 {
		return nil
	}

	switch {
	case t.cursor+1 < len(t.rows):
		t.cursor++
	case t.loop:
		t.cursor = 0
	}

	return nil
}

func (t *Table) cell(col int) float64 {
	if len(t.rows) == 0 {
		return 0
	}

	return t.rows[t.cursor][col]
}

func (t *Table) setCell(col int, v float64) {
	if len(t.rows) == 0 {
		t.rows = append(t.rows, make([]float64, len(t.columns)))
	}

	t.rows[t.cursor][col] = v
}

func (t *Table) currentRow() []float64 {
	if len(t.rows) == 0 {
		return make([]float64, len(t.columns))
	}

	return append([]float64(nil), t.rows[t.cursor]...)
}

// WriteCSV writes the table with a header row.
func (t *Table) WriteCSV(w io.Writer) error {
	t.Lock()
	defer t.Unlock()

	out := csv.NewWriter(w)
	if err := out.Write(t.columns); err != nil {
		return err
	}

	for _, row := range t.rows {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}

		if err := out.Write(record); err != nil {
			return err
		}
	}

	out.Flush()

	return out.Error()
}

// WriteData stores the table as CSV.
func (t *Table) WriteData(w io.Writer) error {
	return t.WriteCSV(w)
}
