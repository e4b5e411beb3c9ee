package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isaric/isaricdata/internal/schema"
)

func testDictionary() *schema.Dictionary {
	return &schema.Dictionary{Rows: []schema.Row{
		{FieldName: "subjid", FieldType: schema.Freetext, TableName: PresentationName},
		{FieldName: "sex", FieldType: schema.Categorical, TableName: PresentationName, FieldOptions: `["Male", "Female"]`},
		{FieldName: "age", FieldType: schema.Numeric, TableName: PresentationName, FieldUnit: "years"},
		{FieldName: "outcome_status", FieldType: schema.Categorical, TableName: OutcomeName},
	}}
}

func testPresentation() *Table {
	t := NewTable("subjid", "sex", "age")
	t.AppendRow(map[string]Cell{"subjid": String("s1"), "sex": String("Male"), "age": Number(34)})
	t.AppendRow(map[string]Cell{"subjid": String("s2"), "sex": String("Female"), "age": Number(61)})
	t.AppendRow(map[string]Cell{"subjid": String("s1"), "sex": Missing(), "age": Missing()})
	return t
}

func testOutcome() *Table {
	t := NewTable("subjid", "outcome_status")
	t.AppendRow(map[string]Cell{"subjid": String("s1"), "outcome_status": String("Discharged")})
	t.AppendRow(map[string]Cell{"subjid": String("s2"), "outcome_status": String("Died")})
	return t
}

func testDataset(t *testing.T) *Dataset {
	t.Helper()
	d, err := New(map[string]any{"name": "test project"}, testDictionary(), testPresentation(), testOutcome(), nil, nil)
	require.NoError(t, err)
	return d
}

func TestNewValidates(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*map[string]any, **schema.Dictionary, **Table, **Table)
		wantErr error
	}{
		{
			name:    "nil metadata",
			mutate:  func(m *map[string]any, d **schema.Dictionary, p, o **Table) { *m = nil },
			wantErr: ErrStructural,
		},
		{
			name:    "nil dictionary",
			mutate:  func(m *map[string]any, d **schema.Dictionary, p, o **Table) { *d = nil },
			wantErr: ErrStructural,
		},
		{
			name:    "nil presentation",
			mutate:  func(m *map[string]any, d **schema.Dictionary, p, o **Table) { *p = nil },
			wantErr: ErrStructural,
		},
		{
			name:    "nil outcome",
			mutate:  func(m *map[string]any, d **schema.Dictionary, p, o **Table) { *o = nil },
			wantErr: ErrStructural,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metadata := map[string]any{"name": "test"}
			dictionary := testDictionary()
			presentation := testPresentation()
			outcome := testOutcome()
			tt.mutate(&metadata, &dictionary, &presentation, &outcome)

			_, err := New(metadata, dictionary, presentation, outcome, nil, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateFieldNames(t *testing.T) {
	tests := []struct {
		name      string
		fieldName string
	}{
		{name: "uppercase", fieldName: "Sex"},
		{name: "space", fieldName: "heart rate"},
		{name: "punctuation", fieldName: "o2.sat"},
		{name: "leading digit", fieldName: "28day"},
		{name: "leading underscore", fieldName: "_sex"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dictionary := testDictionary()
			dictionary.Rows = append(dictionary.Rows, schema.Row{
				FieldName: tt.fieldName, FieldType: schema.Freetext, TableName: PresentationName,
			})
			_, err := New(map[string]any{}, dictionary, testPresentation(), testOutcome(), nil, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSchema)
		})
	}
}

func TestValidateDuplicateFieldName(t *testing.T) {
	dictionary := testDictionary()
	dictionary.Rows = append(dictionary.Rows, schema.Row{
		FieldName: "sex", FieldType: schema.Categorical, TableName: OutcomeName,
	})
	_, err := New(map[string]any{}, dictionary, testPresentation(), testOutcome(), nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchema)
}

func TestValidateColumnTableMembership(t *testing.T) {
	// outcome_status is declared for the outcome table; a presentation
	// column with that name breaks the invariant.
	presentation := testPresentation()
	require.NoError(t, presentation.AddColumnAfter("", "outcome_status", []Cell{Missing(), Missing(), Missing()}))

	_, err := New(map[string]any{}, testDictionary(), presentation, testOutcome(), nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchema)
}

func TestValidateAllowsUndeclaredColumns(t *testing.T) {
	presentation := testPresentation()
	require.NoError(t, presentation.AddColumnAfter("", "internal_note", []Cell{Missing(), Missing(), Missing()}))

	_, err := New(map[string]any{}, testDictionary(), presentation, testOutcome(), nil, nil)
	assert.NoError(t, err)
}

func TestFieldOptions(t *testing.T) {
	d := testDataset(t)

	opts, err := d.FieldOptions("sex")
	require.NoError(t, err)
	assert.Equal(t, []string{"Male", "Female"}, opts)

	// A blank options cell is an empty sequence, not an error.
	opts, err = d.FieldOptions("age")
	require.NoError(t, err)
	assert.Empty(t, opts)

	_, err = d.FieldOptions("nonexistent")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchema)
}

func TestFieldNames(t *testing.T) {
	d := testDataset(t)

	got := d.FieldNames([]schema.FieldType{schema.Categorical}, []string{PresentationName})
	assert.Equal(t, []string{"sex"}, got)

	got = d.FieldNames([]schema.FieldType{schema.Categorical}, []string{PresentationName, OutcomeName})
	assert.Equal(t, []string{"sex", "outcome_status"}, got)
}

func TestAddDerivedField(t *testing.T) {
	d := testDataset(t)

	values := []Cell{Bool(true), Bool(false), Missing()}
	err := d.AddDerivedField("sex", schema.Row{
		FieldName: "sex___male",
		FieldType: schema.Boolean,
		TableName: PresentationName,
	}, values)
	require.NoError(t, err)

	// Column sits directly after its parent.
	assert.Equal(t, []string{"subjid", "sex", "sex___male", "age"}, d.Presentation.Columns())

	// Dictionary row sits directly after the parent's row with the back-reference.
	row, err := d.Dictionary.Row("sex___male")
	require.NoError(t, err)
	assert.Equal(t, "sex", row.ParentFieldName)
	assert.Equal(t, "sex___male", d.Dictionary.Rows[2].FieldName)

	// The invariant still holds.
	assert.NoError(t, d.Validate())
}

func TestAddCustomField(t *testing.T) {
	d := testDataset(t)

	err := d.AddCustomField(schema.Row{
		FieldName: "admission_ward",
		FieldType: schema.Freetext,
		TableName: PresentationName,
	}, []Cell{String("icu"), String("general"), Missing()})
	require.NoError(t, err)

	assert.Equal(t, []string{"subjid", "sex", "age", "admission_ward"}, d.Presentation.Columns())
	assert.NoError(t, d.Validate())

	// Duplicate names are rejected.
	err = d.AddCustomField(schema.Row{FieldName: "sex", TableName: PresentationName}, []Cell{Missing(), Missing(), Missing()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchema)
}

func TestRemoveField(t *testing.T) {
	d := testDataset(t)

	require.NoError(t, d.RemoveField("age", PresentationName))
	assert.Equal(t, []string{"subjid", "sex"}, d.Presentation.Columns())
	assert.False(t, d.Dictionary.Has("age"))
	assert.NoError(t, d.Validate())
}

func TestGetSubject(t *testing.T) {
	d := testDataset(t)

	got, err := d.GetSubject("s1", PresentationName)
	require.NoError(t, err)
	assert.Equal(t, 2, got.NumRows())
	s, _ := got.Cell(0, "subjid").AsString()
	assert.Equal(t, "s1", s)

	_, err = d.GetSubject("s1", "nonexistent")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStructural)
}

func TestGetFields(t *testing.T) {
	d := testDataset(t)

	got, err := d.GetFields([]string{"age", "subjid"}, PresentationName)
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "subjid"}, got.Columns())
	assert.Equal(t, 3, got.NumRows())

	_, err = d.GetFields([]string{"nonexistent"}, PresentationName)
	assert.Error(t, err)
}

func TestTableLookup(t *testing.T) {
	d := testDataset(t)
	daily := NewTable("subjid")
	events := map[string]*Table{"followup": NewTable("subjid")}
	d.Daily = daily
	d.Events = events

	tests := []struct {
		name   string
		wantOK bool
	}{
		{PresentationName, true},
		{OutcomeName, true},
		{DailyName, true},
		{"followup", true},
		{"nonexistent", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := d.Table(tt.name)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestCellSemantics(t *testing.T) {
	// Missing is distinct from every valid value, including falsy ones.
	assert.True(t, Missing().Equal(Missing()))
	assert.False(t, Missing().Equal(String("")))
	assert.False(t, Missing().Equal(String("other")))
	assert.False(t, Missing().Equal(Bool(false)))
	assert.False(t, Missing().Equal(Number(0)))

	assert.True(t, String("other").Equal(String("other")))
	assert.False(t, String("other").Equal(Bool(false)))
	assert.True(t, Missing().IsMissing())
	assert.False(t, String("").IsMissing())
}
