// Package isaricdata loads clinical case report form projects into a
// schema-consistent in-memory dataset and applies cleaning transforms that
// keep the data tables and the data dictionary synchronized.
//
// A project is a directory holding metadata.json, a data dictionary CSV and
// one CSV per data table (presentation and outcome are required; a daily
// table and keyed event tables are optional). The data dictionary describes
// every field's name, label, type, allowed options, skip logic and table
// membership, and drives how table cells are typed when loading.
//
// # Quick Start
//
// Load a project directory and one-hot encode its categorical presentation
// fields:
//
//	data, err := isaricdata.Load("examples/datasets/h5nx_synthetic", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	encoded, err := isaricdata.Clean(data, isaricdata.OneHotEncode, "presentation", nil)
//
// # Missing values
//
// Cells carry an explicit missing marker meaning "not recorded". Missing is
// distinct from every valid value: the empty string, false and the catch-all
// "other" are all recorded values. Transforms preserve missingness: a row
// where a categorical field was missing gets missing (not false) in every
// boolean field derived from it.
//
// # Copies and mutation
//
// Transforms never mutate their input: each operates against a scoped deep
// copy of the affected table and the dictionary, and the result is returned
// as a new dataset. Dataset.Copy exposes the same mechanism with an
// explicit, documented asymmetry: selected tables are deep copied,
// unselected tables are shared by reference to avoid copying large untouched
// tables.
//
// A dataset has no internal locking. Concurrent transforms must run against
// independent copies.
package isaricdata

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/isaric/isaricdata/internal/clean"
	"github.com/isaric/isaricdata/internal/dataset"
	"github.com/isaric/isaricdata/internal/loader"
	"github.com/isaric/isaricdata/internal/report"
	"github.com/isaric/isaricdata/internal/schema"
)

// Method names the cleaning transforms Clean can apply. The set is closed;
// ParseMethod resolves user-supplied names and enumerates the choices on a
// miss.
type Method = clean.Method

// Supported transform methods.
const (
	// OneHotEncode expands categorical fields into one boolean field per
	// distinct option, with matching dictionary rows inserted directly
	// after each parent field.
	OneHotEncode = clean.MethodOneHotEncode

	// InverseOneHotEncode rebuilds categorical fields from their boolean
	// children and removes the children.
	InverseOneHotEncode = clean.MethodInverseOneHotEncode

	// CategoricalYNUToBoolean converts yes/no/unknown categorical fields
	// into boolean fields (unknown becomes missing).
	CategoricalYNUToBoolean = clean.MethodCategoricalYNUToBoolean
)

// ParseMethod resolves a transform name. Unknown names get an error listing
// the valid choices.
func ParseMethod(name string) (Method, error) { return clean.ParseMethod(name) }

// LoadOptions configures project loading.
//
// All fields are optional. If not specified:
//   - Encoding: defaults to utf-8; latin-1 and windows-1252 are also
//     supported, and per-file encodings in metadata.json take precedence
//   - Logger: defaults to a disabled logger (no diagnostics output)
type LoadOptions struct {
	// Encoding is the default text encoding for JSON and CSV files when
	// metadata.json does not name one per file.
	Encoding string

	// Logger receives structured diagnostics (files loaded, tables
	// skipped). There is no process-global logger state; pass the logger
	// you want or leave it zero to silence diagnostics.
	Logger zerolog.Logger
}

// CleanOptions configures cleaning transforms.
//
// Each transform reads only the fields relevant to it and ignores the rest,
// so the same options value can be reused across methods.
type CleanOptions struct {
	// FieldNames restricts the transform to these fields. Nil means every
	// candidate (categorical) field of the table. Unknown and
	// non-categorical names are silently dropped.
	FieldNames []string

	// CollapseToOther enables frequency-based option collapsing before
	// one-hot encoding. Takes effect only when CumulativeThreshold or
	// MaxOptions is also set.
	CollapseToOther bool

	// CumulativeThreshold keeps the most frequent options for which the
	// cumulative share of strictly more frequent options stays at or
	// below the threshold, and collapses the rest into "other". Must be
	// in [0,1]; an out-of-range value is logged and skipped.
	CumulativeThreshold *float64

	// MaxOptions retains the MaxOptions+1 most frequent options and
	// collapses the rest into "other".
	MaxOptions *int

	// Eligible overrides the row-eligibility predicate (skip logic) used
	// when collapsing. The default marks every row eligible.
	Eligible EligibleFunc

	// Validate re-runs dataset validation before the transform returns.
	// A validation failure propagates and the input dataset is untouched.
	Validate bool

	// Logger receives structured diagnostics for soft conditions (unknown
	// table, skipped fields, out-of-range thresholds).
	Logger zerolog.Logger
}

// Dataset is the schema-consistent container: project metadata, the data
// dictionary and the named data tables.
type Dataset = dataset.Dataset

// Table is one named rectangular data table.
type Table = dataset.Table

// Cell is a single table value: missing, string, bool, number or time.
type Cell = dataset.Cell

// Cell constructors, for building table values by hand (e.g. for
// Dataset.AddCustomField or Table.SetCell).
var (
	Missing = dataset.Missing
	String  = dataset.String
	Bool    = dataset.Bool
	Number  = dataset.Number
	Time    = dataset.Time
)

// Dictionary is the ordered project data dictionary.
type Dictionary = schema.Dictionary

// Row is one data dictionary entry.
type Row = schema.Row

// FieldType classifies a dictionary field.
type FieldType = schema.FieldType

// EligibleFunc decides which rows a field applies to, per its skip logic.
type EligibleFunc = clean.EligibleFunc

// Structural and schema error markers, for errors.Is classification.
var (
	ErrStructural = dataset.ErrStructural
	ErrSchema     = dataset.ErrSchema
)

// Load reads a project directory into a validated Dataset.
//
// The directory must contain metadata.json; the metadata names the data
// dictionary and table files (with defaults of data_dictionary.csv and
// <table>.csv). Presentation and outcome tables are required, daily and
// event tables optional. Cell types are resolved from the dictionary:
// categorical and freetext columns are strings with the empty string read as
// missing, datetime and numeric columns are coerced with unparseable values
// becoming missing.
//
// Returns an error if:
//   - the directory or a required file is absent
//   - metadata.json or a CSV cannot be parsed
//   - validation fails (see Dataset.Validate)
func Load(path string, opts *LoadOptions) (*Dataset, error) {
	if opts == nil {
		opts = &LoadOptions{}
	}
	return loader.LoadProject(path, &loader.Config{
		Encoding: opts.Encoding,
		Logger:   opts.Logger,
	})
}

// Clean applies a cleaning transform to one table of a dataset and returns
// the result as a new dataset; the input is never mutated.
//
// Soft misconfiguration (an unknown table name, an out-of-range collapse
// threshold) is logged and treated as a no-op returning the input dataset.
// Structural and schema inconsistencies fail with errors matching
// ErrStructural or ErrSchema.
//
// Example (collapse rare options, then encode):
//
//	threshold := 0.9
//	encoded, err := isaricdata.Clean(data, isaricdata.OneHotEncode, "presentation",
//		&isaricdata.CleanOptions{
//			CollapseToOther:     true,
//			CumulativeThreshold: &threshold,
//			Validate:            true,
//		})
func Clean(d *Dataset, method Method, tableName string, opts *CleanOptions) (*Dataset, error) {
	if opts == nil {
		opts = &CleanOptions{}
	}
	return clean.Apply(d, method, tableName, clean.EncodeSpec{
		FieldNames:          opts.FieldNames,
		CollapseToOther:     opts.CollapseToOther,
		CumulativeThreshold: opts.CumulativeThreshold,
		MaxOptions:          opts.MaxOptions,
		Eligible:            opts.Eligible,
		Validate:            opts.Validate,
		Logger:              opts.Logger,
	})
}

// Describe writes a plain-text summary of the dataset (tables, row and
// column counts, fields with their dictionary types) to w.
func Describe(d *Dataset, w io.Writer) error {
	return report.NewTextFormatter(w).Format(d)
}
