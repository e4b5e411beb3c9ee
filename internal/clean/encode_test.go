package clean

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isaric/isaricdata/internal/dataset"
	"github.com/isaric/isaricdata/internal/schema"
)

// testDataset builds a small presentation/outcome dataset with one
// categorical field per table and a trailing numeric field, so that schema
// row insertion order can be checked around them.
func testDataset(t *testing.T) *dataset.Dataset {
	t.Helper()

	dictionary := &schema.Dictionary{Rows: []schema.Row{
		{FieldName: "subjid", FieldType: schema.Freetext, TableName: dataset.PresentationName},
		{FieldName: "sex", FieldType: schema.Categorical, TableName: dataset.PresentationName,
			FieldLabel: "Sex at birth", Section: "demographics", Phase: "presentation", FieldSkipLogic: "rule:consent"},
		{FieldName: "age", FieldType: schema.Numeric, TableName: dataset.PresentationName, FieldUnit: "years"},
		{FieldName: "outcome_status", FieldType: schema.Categorical, TableName: dataset.OutcomeName},
	}}

	presentation := dataset.NewTable("subjid", "sex", "age")
	presentation.AppendRow(map[string]dataset.Cell{
		"subjid": dataset.String("s1"), "sex": dataset.String("Male"), "age": dataset.Number(34),
	})
	presentation.AppendRow(map[string]dataset.Cell{
		"subjid": dataset.String("s2"), "sex": dataset.String("Female"), "age": dataset.Number(61),
	})
	presentation.AppendRow(map[string]dataset.Cell{
		"subjid": dataset.String("s3"), "sex": dataset.String("Male"), "age": dataset.Number(47),
	})
	presentation.AppendRow(map[string]dataset.Cell{
		"subjid": dataset.String("s4"), "sex": dataset.Missing(), "age": dataset.Missing(),
	})

	outcome := dataset.NewTable("subjid", "outcome_status")
	outcome.AppendRow(map[string]dataset.Cell{
		"subjid": dataset.String("s1"), "outcome_status": dataset.String("Discharged"),
	})
	outcome.AppendRow(map[string]dataset.Cell{
		"subjid": dataset.String("s2"), "outcome_status": dataset.String("Died"),
	})

	d, err := dataset.New(map[string]any{"name": "test"}, dictionary, presentation, outcome, nil, nil)
	require.NoError(t, err)
	return d
}

func TestOneHotEncode(t *testing.T) {
	d := testDataset(t)

	got, err := OneHotEncode(d, dataset.PresentationName, EncodeSpec{Validate: true, Logger: zerolog.Nop()})
	require.NoError(t, err)

	// One boolean column per distinct sanitised option, directly after the
	// parent column.
	assert.Equal(t, []string{"subjid", "sex", "sex___male", "sex___female", "age"}, got.Presentation.Columns())

	male, err := got.Presentation.Column("sex___male")
	require.NoError(t, err)
	female, err := got.Presentation.Column("sex___female")
	require.NoError(t, err)

	assert.True(t, male[0].Equal(dataset.Bool(true)))
	assert.True(t, female[0].Equal(dataset.Bool(false)))
	assert.True(t, male[1].Equal(dataset.Bool(false)))
	assert.True(t, female[1].Equal(dataset.Bool(true)))
	assert.True(t, male[2].Equal(dataset.Bool(true)))

	// A missing parent row is missing in every derived column, not false.
	assert.True(t, male[3].IsMissing())
	assert.True(t, female[3].IsMissing())
}

func TestOneHotEncodeSchemaRows(t *testing.T) {
	d := testDataset(t)

	got, err := OneHotEncode(d, dataset.PresentationName, EncodeSpec{Logger: zerolog.Nop()})
	require.NoError(t, err)

	var names []string
	for _, row := range got.Dictionary.Rows {
		names = append(names, row.FieldName)
	}
	// Exactly two new rows, directly after the parent, all other rows in
	// their original relative order.
	assert.Equal(t, []string{"subjid", "sex", "sex___male", "sex___female", "age", "outcome_status"}, names)

	row, err := got.Dictionary.Row("sex___male")
	require.NoError(t, err)
	assert.Equal(t, schema.Boolean, row.FieldType)
	assert.Equal(t, "sex", row.ParentFieldName)
	assert.Equal(t, dataset.PresentationName, row.TableName)
	// Skip logic, section and phase are copied from the parent.
	assert.Equal(t, "rule:consent", row.FieldSkipLogic)
	assert.Equal(t, "demographics", row.Section)
	assert.Equal(t, "presentation", row.Phase)
	assert.Empty(t, row.FieldUnit)
	assert.Empty(t, row.FieldOptions)
}

func TestOneHotEncodeDoesNotMutateInput(t *testing.T) {
	d := testDataset(t)
	columnsBefore := d.Presentation.Columns()
	rowsBefore := len(d.Dictionary.Rows)

	_, err := OneHotEncode(d, dataset.PresentationName, EncodeSpec{Logger: zerolog.Nop()})
	require.NoError(t, err)

	assert.Equal(t, columnsBefore, d.Presentation.Columns())
	assert.Len(t, d.Dictionary.Rows, rowsBefore)
}

func TestOneHotEncodeUnknownTable(t *testing.T) {
	d := testDataset(t)

	got, err := OneHotEncode(d, "daily", EncodeSpec{Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Same(t, d, got, "unknown table is a no-op returning the input")
}

func TestOneHotEncodeFieldSelection(t *testing.T) {
	d := testDataset(t)

	tests := []struct {
		name       string
		fieldNames []string
		wantCols   []string
	}{
		{
			name:       "explicit categorical field",
			fieldNames: []string{"sex"},
			wantCols:   []string{"subjid", "sex", "sex___male", "sex___female", "age"},
		},
		{
			name:       "non-categorical and unknown names dropped silently",
			fieldNames: []string{"age", "subjid", "nonexistent"},
			wantCols:   []string{"subjid", "sex", "age"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := OneHotEncode(d, dataset.PresentationName, EncodeSpec{
				FieldNames: tt.fieldNames, Logger: zerolog.Nop(),
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantCols, got.Presentation.Columns())
		})
	}
}

func TestOneHotEncodeWithCollapse(t *testing.T) {
	d := testDataset(t)

	got, err := OneHotEncode(d, dataset.PresentationName, EncodeSpec{
		CollapseToOther: true,
		MaxOptions:      intPtr(0),
		Logger:          zerolog.Nop(),
	})
	require.NoError(t, err)

	// Male (2 of 4) is the top category; Female collapses into other.
	assert.Equal(t, []string{"subjid", "sex", "sex___male", "sex___other", "age"}, got.Presentation.Columns())

	other, err := got.Presentation.Column("sex___other")
	require.NoError(t, err)
	assert.True(t, other[1].Equal(dataset.Bool(true)))
	assert.True(t, other[3].IsMissing(), "collapsing never rewrites missing values")
}

func TestOneHotEncodeCollapseFlagWithoutBounds(t *testing.T) {
	d := testDataset(t)

	// CollapseToOther without a threshold or bound encodes uncollapsed.
	got, err := OneHotEncode(d, dataset.PresentationName, EncodeSpec{
		CollapseToOther: true, Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"subjid", "sex", "sex___male", "sex___female", "age"}, got.Presentation.Columns())
}

func TestOneHotEncodeSanitisesOptions(t *testing.T) {
	d := testDataset(t)
	require.NoError(t, d.Presentation.SetColumn("sex", []dataset.Cell{
		dataset.String("Not Known!"),
		dataset.String("not known"),
		dataset.String("Male"),
		dataset.Missing(),
	}))

	got, err := OneHotEncode(d, dataset.PresentationName, EncodeSpec{Logger: zerolog.Nop()})
	require.NoError(t, err)

	// Colliding sanitised options are disambiguated with suffixes.
	assert.Equal(t, []string{
		"subjid", "sex", "sex___not_known", "sex___not_known__1", "sex___male", "age",
	}, got.Presentation.Columns())
}

func TestInverseOneHotEncode(t *testing.T) {
	d := testDataset(t)

	encoded, err := OneHotEncode(d, dataset.PresentationName, EncodeSpec{Logger: zerolog.Nop()})
	require.NoError(t, err)

	decoded, err := InverseOneHotEncode(encoded, dataset.PresentationName, EncodeSpec{Validate: true, Logger: zerolog.Nop()})
	require.NoError(t, err)

	// The boolean children are gone from both the table and the dictionary.
	assert.Equal(t, []string{"subjid", "sex", "age"}, decoded.Presentation.Columns())
	assert.False(t, decoded.Dictionary.Has("sex___male"))
	assert.False(t, decoded.Dictionary.Has("sex___female"))

	// Values come back in sanitised form; missing stays missing.
	sex, err := decoded.Presentation.Column("sex")
	require.NoError(t, err)
	assert.Equal(t, []string{"male", "female", "male", "<missing>"}, cellStrings(sex))
}

func TestInverseOneHotEncodeConflict(t *testing.T) {
	d := testDataset(t)
	encoded, err := OneHotEncode(d, dataset.PresentationName, EncodeSpec{Logger: zerolog.Nop()})
	require.NoError(t, err)

	// Two boolean fields set for one row is a schema error.
	require.NoError(t, encoded.Presentation.SetCell(0, "sex___female", dataset.Bool(true)))
	_, err = InverseOneHotEncode(encoded, dataset.PresentationName, EncodeSpec{Logger: zerolog.Nop()})
	require.Error(t, err)
	assert.ErrorIs(t, err, dataset.ErrSchema)
}

func TestCategoricalYNUToBoolean(t *testing.T) {
	d := testDataset(t)
	require.NoError(t, d.Presentation.SetColumn("sex", []dataset.Cell{
		dataset.String("Yes"),
		dataset.String("No"),
		dataset.String("Unknown"),
		dataset.Missing(),
	}))

	got, err := CategoricalYNUToBoolean(d, dataset.PresentationName, EncodeSpec{Validate: true, Logger: zerolog.Nop()})
	require.NoError(t, err)

	cells, err := got.Presentation.Column("sex")
	require.NoError(t, err)
	assert.True(t, cells[0].Equal(dataset.Bool(true)))
	assert.True(t, cells[1].Equal(dataset.Bool(false)))
	assert.True(t, cells[2].IsMissing(), "unknown becomes missing, not false")
	assert.True(t, cells[3].IsMissing())

	row, err := got.Dictionary.Row("sex")
	require.NoError(t, err)
	assert.Equal(t, schema.Boolean, row.FieldType)
	assert.Empty(t, row.FieldOptions)

	// The input dataset keeps its categorical typing.
	srcRow, err := d.Dictionary.Row("sex")
	require.NoError(t, err)
	assert.Equal(t, schema.Categorical, srcRow.FieldType)
}

func TestCategoricalYNUToBooleanSkipsOtherValues(t *testing.T) {
	d := testDataset(t)

	// sex holds Male/Female values, which are not yes/no/unknown tokens.
	got, err := CategoricalYNUToBoolean(d, dataset.PresentationName, EncodeSpec{Logger: zerolog.Nop()})
	require.NoError(t, err)

	cells, err := got.Presentation.Column("sex")
	require.NoError(t, err)
	assert.Equal(t, []string{"Male", "Female", "Male", "<missing>"}, cellStrings(cells))

	row, err := got.Dictionary.Row("sex")
	require.NoError(t, err)
	assert.Equal(t, schema.Categorical, row.FieldType)
}
