// Package dataset holds the schema-consistent container for one project's
// case report form data: project metadata, the data dictionary and the named
// data tables, with the invariants that keep them in step.
//
// A Dataset is constructed once from already-loaded parts and validated at
// construction; it is never observable in a partially valid state. Mutating
// transforms either operate in place or against a scoped deep copy (see
// Copy) so that the source is unaffected. A Dataset carries no internal
// locking: concurrent use of one instance requires external synchronization
// or independent copies.
package dataset

import (
	"errors"
	"fmt"

	"github.com/isaric/isaricdata/internal/schema"
)

// Required table attribute names. DictionaryName addresses the data
// dictionary in Copy selections, mirroring its place alongside the tables.
const (
	PresentationName = "presentation"
	OutcomeName      = "outcome"
	DailyName        = "daily"
	DictionaryName   = "data_dictionary"
)

var (
	// ErrStructural marks shape errors: a required part is absent or not
	// the expected container type. Never silently coerced.
	ErrStructural = errors.New("structural error")

	// ErrSchema marks dictionary/table mismatches: non-normalized field
	// names, ambiguous lookups, columns without matching dictionary rows.
	ErrSchema = errors.New("schema error")
)

// Dataset owns one project's metadata, data dictionary and named tables.
type Dataset struct {
	Metadata     map[string]any
	Dictionary   *schema.Dictionary
	Presentation *Table
	Outcome      *Table
	Daily        *Table            // optional
	Events       map[string]*Table // optional, keyed by event name
}

// New constructs a Dataset and validates it. Validation failure leaves no
// partially constructed dataset behind.
func New(metadata map[string]any, dictionary *schema.Dictionary, presentation, outcome, daily *Table, events map[string]*Table) (*Dataset, error) {
	d := &Dataset{
		Metadata:     metadata,
		Dictionary:   dictionary,
		Presentation: presentation,
		Outcome:      outcome,
		Daily:        daily,
		Events:       events,
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks the structural and schema invariants. It is called on
// construction and may be re-invoked after mutation.
func (d *Dataset) Validate() error {
	if d.Metadata == nil {
		return fmt.Errorf("%w: metadata must be a mapping", ErrStructural)
	}
	if d.Dictionary == nil {
		return fmt.Errorf("%w: data dictionary must be present", ErrStructural)
	}
	if d.Presentation == nil {
		return fmt.Errorf("%w: %s table must be present", ErrStructural, PresentationName)
	}
	if d.Outcome == nil {
		return fmt.Errorf("%w: %s table must be present", ErrStructural, OutcomeName)
	}
	for name, table := range d.Events {
		if table == nil {
			return fmt.Errorf("%w: event table %s must be present", ErrStructural, name)
		}
	}

	seen := make(map[string]bool, len(d.Dictionary.Rows))
	for _, row := range d.Dictionary.Rows {
		name := row.FieldName
		if name != schema.SanitiseString(name) || !startsWithLetter(name) {
			return fmt.Errorf("%w: field name %q is not in normal form", ErrSchema, name)
		}
		if seen[name] {
			return fmt.Errorf("%w: field name %q appears more than once in the data dictionary", ErrSchema, name)
		}
		seen[name] = true
	}

	for name, table := range d.tables() {
		if table == nil {
			continue
		}
		if err := d.validateTableColumns(name, table); err != nil {
			return err
		}
	}
	return nil
}

// validateTableColumns checks that every table column modeled by the
// dictionary belongs to this table. Columns the dictionary does not model
// (e.g. identifiers kept out of the dictionary) are allowed.
func (d *Dataset) validateTableColumns(tableName string, table *Table) error {
	for _, col := range table.Columns() {
		if !d.Dictionary.Has(col) {
			continue
		}
		row, err := d.Dictionary.Row(col)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSchema, err)
		}
		if row.TableName != tableName {
			return fmt.Errorf("%w: column %s of table %s is declared for table %s",
				ErrSchema, col, tableName, row.TableName)
		}
	}
	return nil
}

// tables returns all present tables keyed by attribute/event name.
func (d *Dataset) tables() map[string]*Table {
	out := map[string]*Table{
		PresentationName: d.Presentation,
		OutcomeName:      d.Outcome,
	}
	if d.Daily != nil {
		out[DailyName] = d.Daily
	}
	for name, table := range d.Events {
		out[name] = table
	}
	return out
}

// Table resolves a table by name: presentation, outcome, daily, or an event
// name. ok is false when the dataset has no such table.
func (d *Dataset) Table(name string) (*Table, bool) {
	switch name {
	case PresentationName:
		return d.Presentation, d.Presentation != nil
	case OutcomeName:
		return d.Outcome, d.Outcome != nil
	case DailyName:
		return d.Daily, d.Daily != nil
	}
	t, ok := d.Events[name]
	return t, ok
}

// FieldOptions returns the allowed display values of a field, parsed from
// its dictionary row. A blank options cell yields an empty slice. Zero or
// multiple matching rows is a schema error.
func (d *Dataset) FieldOptions(fieldName string) ([]string, error) {
	row, err := d.Dictionary.Row(fieldName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	opts, err := row.Options()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return opts, nil
}

// FieldNames returns every field whose type is in fieldTypes and whose table
// is in tableNames, in dictionary order.
func (d *Dataset) FieldNames(fieldTypes []schema.FieldType, tableNames []string) []string {
	return d.Dictionary.FieldNames(fieldTypes, tableNames)
}

// AddDerivedField adds a column derived from an existing field: the column
// goes directly after its parent in the table and the dictionary row
// directly after the parent's row, keeping the table/dictionary invariant.
func (d *Dataset) AddDerivedField(parentName string, row schema.Row, values []Cell) error {
	table, ok := d.Table(row.TableName)
	if !ok {
		return fmt.Errorf("%w: table %s not found", ErrStructural, row.TableName)
	}
	parent, err := d.Dictionary.Row(parentName)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if parent.TableName != row.TableName {
		return fmt.Errorf("%w: parent field %s lives in table %s, not %s",
			ErrSchema, parentName, parent.TableName, row.TableName)
	}
	row.ParentFieldName = parentName
	if err := table.AddColumnAfter(parentName, row.FieldName, values); err != nil {
		return err
	}
	return d.Dictionary.InsertAfter(parentName, []schema.Row{row})
}

// AddCustomField adds a free-standing column at the end of the table and the
// corresponding dictionary row at the end of the dictionary.
func (d *Dataset) AddCustomField(row schema.Row, values []Cell) error {
	table, ok := d.Table(row.TableName)
	if !ok {
		return fmt.Errorf("%w: table %s not found", ErrStructural, row.TableName)
	}
	if d.Dictionary.Has(row.FieldName) {
		return fmt.Errorf("%w: field %s already exists in the data dictionary", ErrSchema, row.FieldName)
	}
	if err := table.AddColumnAfter("", row.FieldName, values); err != nil {
		return err
	}
	d.Dictionary.Rows = append(d.Dictionary.Rows, row)
	return nil
}

// RemoveField drops a column and its dictionary row together.
func (d *Dataset) RemoveField(fieldName, tableName string) error {
	table, ok := d.Table(tableName)
	if !ok {
		return fmt.Errorf("%w: table %s not found", ErrStructural, tableName)
	}
	if err := table.RemoveColumn(fieldName); err != nil {
		return err
	}
	d.Dictionary.Remove(fieldName)
	return nil
}

// GetSubject returns the rows of a table belonging to one subject, matched
// on the subjid column.
func (d *Dataset) GetSubject(subjid, tableName string) (*Table, error) {
	table, ok := d.Table(tableName)
	if !ok {
		return nil, fmt.Errorf("%w: table %s not found", ErrStructural, tableName)
	}
	if !table.HasColumn("subjid") {
		return nil, fmt.Errorf("%w: table %s has no subjid column", ErrSchema, tableName)
	}
	keep := make([]bool, table.NumRows())
	for i := range keep {
		if s, ok := table.Cell(i, "subjid").AsString(); ok && s == subjid {
			keep[i] = true
		}
	}
	return table.FilterRows(keep)
}

// GetFields returns a view of a table restricted to the named columns.
func (d *Dataset) GetFields(fieldNames []string, tableName string) (*Table, error) {
	table, ok := d.Table(tableName)
	if !ok {
		return nil, fmt.Errorf("%w: table %s not found", ErrStructural, tableName)
	}
	return table.Select(fieldNames)
}

func startsWithLetter(s string) bool {
	return len(s) > 0 && s[0] >= 'a' && s[0] <= 'z'
}
