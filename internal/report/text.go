// Package report renders human-readable summaries of a dataset.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/isaric/isaricdata/internal/dataset"
	"github.com/isaric/isaricdata/internal/schema"
)

// TextFormatter writes a compact text summary of a dataset
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes the dataset summary: project name, then one block per table
// with its fields as declared in the data dictionary.
func (f *TextFormatter) Format(d *dataset.Dataset) error {
	if name, ok := d.Metadata["name"].(string); ok && name != "" {
		_, _ = fmt.Fprintf(f.writer, "PROJECT %s\n\n", name)
	}

	first := true
	for _, name := range tableNames(d) {
		table, ok := d.Table(name)
		if !ok || table == nil {
			continue
		}
		if !first {
			_, _ = fmt.Fprintln(f.writer) // Blank line between tables
		}
		first = false
		f.formatTable(d, name, table)
	}
	return nil
}

func (f *TextFormatter) formatTable(d *dataset.Dataset, name string, table *dataset.Table) {
	_, _ = fmt.Fprintf(f.writer, "TABLE %s (%d rows, %d columns)\n", name, table.NumRows(), table.NumColumns())

	for _, col := range table.Columns() {
		row, err := d.Dictionary.Row(col)
		if err != nil {
			// Columns outside the dictionary are shown without type info.
			_, _ = fmt.Fprintf(f.writer, "  %s\n", col)
			continue
		}
		_, _ = fmt.Fprintf(f.writer, "  %s\n", f.formatField(row))
	}
}

func (f *TextFormatter) formatField(row schema.Row) string {
	parts := []string{row.FieldName + ":", string(row.FieldType)}

	if opts, err := row.Options(); err == nil && len(opts) > 0 {
		parts[1] = fmt.Sprintf("%s (%s)", row.FieldType, strings.Join(opts, "|"))
	}
	if row.FieldUnit != "" {
		parts = append(parts, fmt.Sprintf("[%s]", row.FieldUnit))
	}
	if row.ParentFieldName != "" {
		parts = append(parts, fmt.Sprintf("derived from %s", row.ParentFieldName))
	}
	if row.FieldSkipLogic != "" {
		parts = append(parts, "skip-logic")
	}

	return strings.Join(parts, " ")
}

// tableNames lists the dataset's tables in a stable order: the fixed tables
// first, then event tables sorted by name.
func tableNames(d *dataset.Dataset) []string {
	names := []string{dataset.PresentationName, dataset.OutcomeName, dataset.DailyName}

	eventNames := make([]string, 0, len(d.Events))
	for name := range d.Events {
		eventNames = append(eventNames, name)
	}
	sort.Strings(eventNames)
	return append(names, eventNames...)
}
