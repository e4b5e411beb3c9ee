package dataset

// Copy produces an independent Dataset without re-running construction-time
// validation.
//
// The sharing rule is asymmetric: table-valued attributes
// (presentation, outcome, daily, and the data dictionary under the name
// "data_dictionary") are deep copied only when selected (a nil selection
// selects all of them), while unselected tables are shared by reference so
// that large untouched tables are not copied. Mapping-valued attributes
// (metadata, events) are always deep copied. Mutating a copied table or
// mapping never affects the source; mutating a shared table does.
func (d *Dataset) Copy(tableNames []string) *Dataset {
	selected := func(name string) bool {
		if tableNames == nil {
			return true
		}
		for _, n := range tableNames {
			if n == name {
				return true
			}
		}
		return false
	}

	out := &Dataset{
		Metadata:     copyMetadata(d.Metadata),
		Dictionary:   d.Dictionary,
		Presentation: d.Presentation,
		Outcome:      d.Outcome,
		Daily:        d.Daily,
	}

	if selected(DictionaryName) && d.Dictionary != nil {
		out.Dictionary = d.Dictionary.Copy()
	}
	if selected(PresentationName) && d.Presentation != nil {
		out.Presentation = d.Presentation.Copy()
	}
	if selected(OutcomeName) && d.Outcome != nil {
		out.Outcome = d.Outcome.Copy()
	}
	if selected(DailyName) && d.Daily != nil {
		out.Daily = d.Daily.Copy()
	}

	// Events is mapping-valued, so it is always deep copied regardless of
	// the table selection, like metadata.
	if d.Events != nil {
		out.Events = make(map[string]*Table, len(d.Events))
		for name, table := range d.Events {
			if table != nil {
				out.Events[name] = table.Copy()
			} else {
				out.Events[name] = nil
			}
		}
	}
	return out
}

// copyMetadata deep copies the nested maps and slices JSON metadata is made
// of. Scalar leaves are immutable and assigned as-is.
func copyMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyMetadataValue(v)
	}
	return out
}

func copyMetadataValue(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		return copyMetadata(vv)
	case []any:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = copyMetadataValue(e)
		}
		return out
	default:
		return v
	}
}
