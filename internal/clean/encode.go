package clean

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/isaric/isaricdata/internal/dataset"
	"github.com/isaric/isaricdata/internal/schema"
)

// Separator joins a field name and a sanitised option into a derived boolean
// column name. Sanitisation strips every character outside [0-9a-z_], so a
// sanitised option can never contain the full separator at a boundary that
// would forge another derived name.
const Separator = "___"

// EncodeSpec configures the encoding transforms. Each transform reads only
// the fields it understands and ignores the rest.
type EncodeSpec struct {
	// FieldNames restricts the transform to these fields. Nil means every
	// candidate field of the table. Names that are unknown or not
	// categorical are silently dropped.
	FieldNames []string

	// CollapseToOther enables option collapsing before encoding. It only
	// takes effect when CumulativeThreshold or MaxOptions is also set.
	CollapseToOther     bool
	CumulativeThreshold *float64
	MaxOptions          *int

	// Eligible supplies the per-field row eligibility mask used when
	// collapsing. Nil defaults to AllRowsEligible.
	Eligible EligibleFunc

	// Validate re-runs dataset validation before the transform returns;
	// a validation failure propagates and the input dataset is untouched.
	Validate bool

	Logger zerolog.Logger
}

// OneHotEncode expands each target categorical field of a table into one
// boolean column per distinct sanitised option, inserting a matching
// dictionary row directly after the field's own row.
//
// Rows where the field is missing get missing in every derived column, not
// false: not recorded is distinct from recorded-but-not-this-option. The
// transform operates against a scoped deep copy of the table and dictionary,
// so the input dataset is never partially mutated. An unknown table name is
// a logged no-op returning the input.
func OneHotEncode(d *dataset.Dataset, tableName string, spec EncodeSpec) (*dataset.Dataset, error) {
	logger := spec.Logger.With().Str("transform", string(MethodOneHotEncode)).Logger()

	if _, ok := d.Table(tableName); !ok {
		logger.Warn().Str("table", tableName).Msg("table not found, skipping one-hot encoding")
		return d, nil
	}

	targets := targetFields(d, tableName, spec.FieldNames)
	if len(targets) == 0 {
		logger.Debug().Str("table", tableName).Msg("no categorical fields to encode")
		return d, nil
	}

	eligible := spec.Eligible
	if eligible == nil {
		eligible = AllRowsEligible(logger)
	}

	work := d.Copy([]string{tableName, dataset.DictionaryName})
	table, _ := work.Table(tableName)

	for _, field := range targets {
		cells, err := table.Column(field)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", dataset.ErrSchema, err)
		}

		collapse := spec.CollapseToOther && (spec.CumulativeThreshold != nil || spec.MaxOptions != nil)
		if collapse {
			mask, err := eligible(work, field)
			if err != nil {
				return nil, err
			}
			cells = CollapseOptions(cells, CollapseSpec{
				CumulativeThreshold: spec.CumulativeThreshold,
				MaxOptions:          spec.MaxOptions,
				Eligible:            mask,
				Logger:              logger,
			})
			if err := table.SetColumn(field, cells); err != nil {
				return nil, err
			}
		}

		if err := expandField(work, table, field, cells); err != nil {
			return nil, err
		}
	}

	if spec.Validate {
		if err := work.Validate(); err != nil {
			return nil, err
		}
	}
	return work, nil
}

// expandField turns one categorical column into its boolean children and
// inserts the matching dictionary rows.
func expandField(work *dataset.Dataset, table *dataset.Table, field string, cells []dataset.Cell) error {
	// Distinct non-missing values in first-seen order. Sanitisation never
	// touches which rows are missing.
	var values []string
	for _, c := range cells {
		if !c.IsMissing() {
			values = append(values, c.String())
		}
	}
	_, mapping := schema.SanitiseField(values)

	parentRow, err := work.Dictionary.Row(field)
	if err != nil {
		return fmt.Errorf("%w: %v", dataset.ErrSchema, err)
	}

	var childNames []string
	var childRows []schema.Row
	after := field
	for _, original := range mapping.Keys() {
		clean, _ := mapping.Get(original)
		name := field + Separator + clean

		column := make([]dataset.Cell, len(cells))
		for i, c := range cells {
			if c.IsMissing() {
				column[i] = dataset.Missing()
				continue
			}
			column[i] = dataset.Bool(c.String() == original)
		}
		if err := table.AddColumnAfter(after, name, column); err != nil {
			return err
		}
		after = name

		childNames = append(childNames, name)
		childRows = append(childRows, schema.Row{
			FieldName:       name,
			FieldLabel:      fmt.Sprintf("%s: %s", parentRow.FieldLabel, original),
			FieldType:       schema.Boolean,
			FieldSkipLogic:  parentRow.FieldSkipLogic,
			ParentFieldName: field,
			Section:         parentRow.Section,
			TableName:       parentRow.TableName,
			Phase:           parentRow.Phase,
		})
	}

	if len(childRows) > 0 {
		if err := work.Dictionary.InsertAfter(field, childRows); err != nil {
			return fmt.Errorf("%w: %v", dataset.ErrSchema, err)
		}
	}

	// The sanitiser's mapping and the expansion above must agree; a gap
	// here means the dictionary and table have diverged.
	for _, name := range childNames {
		if !table.HasColumn(name) {
			return fmt.Errorf("%w: expected boolean column %s missing after expansion", dataset.ErrSchema, name)
		}
	}
	return nil
}

// InverseOneHotEncode rebuilds each target categorical field from its
// boolean children (matched on parent_field_name) and removes the children
// from both the table and the dictionary. The reconstructed values are the
// sanitised option names, since the display forms are not retained by the
// forward transform.
func InverseOneHotEncode(d *dataset.Dataset, tableName string, spec EncodeSpec) (*dataset.Dataset, error) {
	logger := spec.Logger.With().Str("transform", string(MethodInverseOneHotEncode)).Logger()

	if _, ok := d.Table(tableName); !ok {
		logger.Warn().Str("table", tableName).Msg("table not found, skipping inverse one-hot encoding")
		return d, nil
	}

	work := d.Copy([]string{tableName, dataset.DictionaryName})
	table, _ := work.Table(tableName)

	parents := targetFields(work, tableName, spec.FieldNames)
	for _, parent := range parents {
		var children []string
		for _, row := range work.Dictionary.Rows {
			if row.ParentFieldName == parent && row.FieldType == schema.Boolean &&
				row.TableName == tableName && table.HasColumn(row.FieldName) {
				children = append(children, row.FieldName)
			}
		}
		if len(children) == 0 {
			logger.Debug().Str("field", parent).Msg("no boolean children, skipping")
			continue
		}

		rebuilt := make([]dataset.Cell, table.NumRows())
		for i := range rebuilt {
			var set []string
			missing := 0
			for _, child := range children {
				c := table.Cell(i, child)
				if c.IsMissing() {
					missing++
					continue
				}
				if b, _ := c.AsBool(); b {
					set = append(set, child)
				}
			}
			switch {
			case missing == len(children):
				rebuilt[i] = dataset.Missing()
			case len(set) == 1:
				rebuilt[i] = dataset.String(strings.TrimPrefix(set[0], parent+Separator))
			case len(set) == 0:
				rebuilt[i] = dataset.Missing()
			default:
				return nil, fmt.Errorf("%w: row %d of %s has %d boolean fields set for %s",
					dataset.ErrSchema, i, tableName, len(set), parent)
			}
		}

		if table.HasColumn(parent) {
			if err := table.SetColumn(parent, rebuilt); err != nil {
				return nil, err
			}
		} else if err := table.AddColumnAfter("", parent, rebuilt); err != nil {
			return nil, err
		}

		for _, child := range children {
			if err := table.RemoveColumn(child); err != nil {
				return nil, err
			}
			work.Dictionary.Remove(child)
		}
	}

	if spec.Validate {
		if err := work.Validate(); err != nil {
			return nil, err
		}
	}
	return work, nil
}

// ynuTokens maps sanitised yes/no/unknown spellings to boolean cells.
// Unknown maps to missing, not false.
var ynuTokens = map[string]dataset.Cell{
	"yes":     dataset.Bool(true),
	"true":    dataset.Bool(true),
	"1":       dataset.Bool(true),
	"no":      dataset.Bool(false),
	"false":   dataset.Bool(false),
	"0":       dataset.Bool(false),
	"unknown": dataset.Missing(),
}

// CategoricalYNUToBoolean converts categorical fields whose values are all
// yes/no/unknown spellings into boolean fields, retyping their dictionary
// rows in step. Fields with any other value are skipped with a log line.
func CategoricalYNUToBoolean(d *dataset.Dataset, tableName string, spec EncodeSpec) (*dataset.Dataset, error) {
	logger := spec.Logger.With().Str("transform", string(MethodCategoricalYNUToBoolean)).Logger()

	if _, ok := d.Table(tableName); !ok {
		logger.Warn().Str("table", tableName).Msg("table not found, skipping boolean conversion")
		return d, nil
	}

	work := d.Copy([]string{tableName, dataset.DictionaryName})
	table, _ := work.Table(tableName)

	for _, field := range targetFields(work, tableName, spec.FieldNames) {
		cells, err := table.Column(field)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", dataset.ErrSchema, err)
		}

		converted := make([]dataset.Cell, len(cells))
		qualifies := true
		for i, c := range cells {
			if c.IsMissing() {
				converted[i] = dataset.Missing()
				continue
			}
			b, ok := ynuTokens[schema.SanitiseString(c.String())]
			if !ok {
				qualifies = false
				break
			}
			converted[i] = b
		}
		if !qualifies {
			logger.Debug().Str("field", field).Msg("values are not all yes/no/unknown, skipping")
			continue
		}

		if err := table.SetColumn(field, converted); err != nil {
			return nil, err
		}
		row, err := work.Dictionary.Row(field)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", dataset.ErrSchema, err)
		}
		row.FieldType = schema.Boolean
		row.FieldOptions = ""
		row.FieldUnit = ""
		if err := work.Dictionary.Replace(field, row); err != nil {
			return nil, fmt.Errorf("%w: %v", dataset.ErrSchema, err)
		}
	}

	if spec.Validate {
		if err := work.Validate(); err != nil {
			return nil, err
		}
	}
	return work, nil
}

// targetFields resolves the fields a transform should touch: all categorical
// fields of the table, intersected with the caller's names when given.
// Unknown and non-categorical names drop out silently.
func targetFields(d *dataset.Dataset, tableName string, requested []string) []string {
	categorical := d.FieldNames([]schema.FieldType{schema.Categorical}, []string{tableName})
	if requested == nil {
		return categorical
	}
	requestedSet := make(map[string]bool, len(requested))
	for _, name := range requested {
		requestedSet[name] = true
	}
	var out []string
	for _, name := range categorical {
		if requestedSet[name] {
			out = append(out, name)
		}
	}
	return out
}
