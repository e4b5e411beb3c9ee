package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FieldType classifies a field in the data dictionary.
type FieldType string

const (
	Categorical FieldType = "categorical"
	Boolean     FieldType = "boolean"
	Freetext    FieldType = "freetext"
	Datetime    FieldType = "datetime"
	Numeric     FieldType = "numeric"
	Other       FieldType = "other"
)

// ParseFieldType maps a dictionary cell to a FieldType. Unrecognized values
// fall through to Other rather than erroring, since dictionaries in the wild
// carry project-specific types the library does not interpret.
func ParseFieldType(s string) FieldType {
	switch FieldType(strings.ToLower(strings.TrimSpace(s))) {
	case Categorical:
		return Categorical
	case Boolean:
		return Boolean
	case Freetext:
		return Freetext
	case Datetime:
		return Datetime
	case Numeric:
		return Numeric
	default:
		return Other
	}
}

// Row is one data dictionary entry, describing a single field.
type Row struct {
	FieldName       string
	FieldLabel      string
	FieldType       FieldType
	FieldUnit       string
	FieldOptions    string // JSON array of display values, blank if none
	FieldSkipLogic  string // opaque rule reference, blank if none
	ParentFieldName string // set on derived fields, blank otherwise
	Section         string
	TableName       string
	Phase           string
}

// Options parses the row's FieldOptions cell as a JSON array of display
// values. A blank cell means the field has no enumerated options and yields
// an empty slice, not an error.
func (r Row) Options() ([]string, error) {
	if strings.TrimSpace(r.FieldOptions) == "" {
		return []string{}, nil
	}
	var opts []string
	if err := json.Unmarshal([]byte(r.FieldOptions), &opts); err != nil {
		return nil, fmt.Errorf("failed to parse field_options for %s: %w", r.FieldName, err)
	}
	return opts, nil
}

// Dictionary is the project data dictionary: an ordered sequence of rows, one
// per field. Order is meaningful: rows derived from a field are kept
// directly after their parent so that downstream consumers see siblings
// grouped together.
type Dictionary struct {
	Rows []Row
}

// FieldNames returns the names of every field whose type is in fieldTypes and
// whose table is in tableNames, in dictionary order.
func (d *Dictionary) FieldNames(fieldTypes []FieldType, tableNames []string) []string {
	typeSet := make(map[FieldType]bool, len(fieldTypes))
	for _, ft := range fieldTypes {
		typeSet[ft] = true
	}
	tableSet := make(map[string]bool, len(tableNames))
	for _, tn := range tableNames {
		tableSet[tn] = true
	}

	var names []string
	for _, row := range d.Rows {
		if typeSet[row.FieldType] && tableSet[row.TableName] {
			names = append(names, row.FieldName)
		}
	}
	return names
}

// Row returns the single dictionary row for fieldName. Zero or more than one
// matching row indicates a corrupt dictionary and is an error.
func (d *Dictionary) Row(fieldName string) (Row, error) {
	var found []Row
	for _, row := range d.Rows {
		if row.FieldName == fieldName {
			found = append(found, row)
		}
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return Row{}, fmt.Errorf("field %s not found in data dictionary", fieldName)
	default:
		return Row{}, fmt.Errorf("field %s matches %d dictionary rows, expected exactly one", fieldName, len(found))
	}
}

// Has reports whether fieldName appears in the dictionary.
func (d *Dictionary) Has(fieldName string) bool {
	for _, row := range d.Rows {
		if row.FieldName == fieldName {
			return true
		}
	}
	return false
}

// Replace overwrites the row named fieldName in place.
func (d *Dictionary) Replace(fieldName string, row Row) error {
	for i := range d.Rows {
		if d.Rows[i].FieldName == fieldName {
			d.Rows[i] = row
			return nil
		}
	}
	return fmt.Errorf("field %s not found in data dictionary", fieldName)
}

// InsertAfter inserts rows immediately after the row named fieldName,
// preserving the relative order of all other rows.
func (d *Dictionary) InsertAfter(fieldName string, rows []Row) error {
	idx := -1
	for i, row := range d.Rows {
		if row.FieldName == fieldName {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("field %s not found in data dictionary", fieldName)
	}

	out := make([]Row, 0, len(d.Rows)+len(rows))
	out = append(out, d.Rows[:idx+1]...)
	out = append(out, rows...)
	out = append(out, d.Rows[idx+1:]...)
	d.Rows = out
	return nil
}

// Remove deletes the row named fieldName, if present.
func (d *Dictionary) Remove(fieldName string) {
	out := d.Rows[:0]
	for _, row := range d.Rows {
		if row.FieldName != fieldName {
			out = append(out, row)
		}
	}
	d.Rows = out
}

// Copy returns an independent deep copy of the dictionary.
func (d *Dictionary) Copy() *Dictionary {
	rows := make([]Row, len(d.Rows))
	copy(rows, d.Rows)
	return &Dictionary{Rows: rows}
}
