// Package clean provides schema-preserving cleaning transforms over a
// dataset: option collapsing, one-hot encoding and its inverse, and
// yes/no/unknown to boolean conversion. Every transform keeps the data
// tables and the data dictionary consistent with each other.
package clean

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/isaric/isaricdata/internal/dataset"
)

// DefaultReplacement is the catch-all category infrequent values collapse to.
const DefaultReplacement = "other"

// EligibleFunc decides which rows of a field's table the field is applicable
// to, per the field's skip logic. Implementations are swappable; the
// collapsing and encoding algorithms depend only on this signature.
type EligibleFunc func(d *dataset.Dataset, fieldName string) ([]bool, error)

// AllRowsEligible is the reference eligibility predicate: it resolves the
// field's table through the data dictionary and marks every row eligible.
// Skip logic rules are not evaluated yet.
func AllRowsEligible(logger zerolog.Logger) EligibleFunc {
	return func(d *dataset.Dataset, fieldName string) ([]bool, error) {
		row, err := d.Dictionary.Row(fieldName)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", dataset.ErrSchema, err)
		}
		table, ok := d.Table(row.TableName)
		if !ok {
			return nil, fmt.Errorf("%w: table %s not found", dataset.ErrStructural, row.TableName)
		}
		logger.Debug().
			Str("field", fieldName).
			Msg("skip logic evaluation not implemented, all rows eligible")
		mask := make([]bool, table.NumRows())
		for i := range mask {
			mask[i] = true
		}
		return mask, nil
	}
}

// CollapseSpec configures CollapseOptions.
type CollapseSpec struct {
	// CumulativeThreshold keeps the most frequent categories for which the
	// cumulative share of strictly more frequent categories stays at or
	// below the threshold. Must be in [0,1]; an out-of-range value makes
	// the whole call a logged no-op.
	CumulativeThreshold *float64

	// MaxOptions retains the MaxOptions+1 most frequent categories and
	// replaces the rest.
	MaxOptions *int

	// Replacement is the catch-all value; defaults to "other".
	Replacement string

	// Eligible restricts both frequency counting and replacement to the
	// marked rows. Nil means all rows are eligible.
	Eligible []bool

	Logger zerolog.Logger
}

// CollapseOptions reduces a categorical field's distinct values to a bounded
// set plus a catch-all. Missing values form a synthetic category for
// frequency purposes only and are never rewritten. When both reductions are
// requested they apply additively: a value replaced by either rule ends up
// replaced. Collapsing is best-effort: misconfiguration is logged and
// returns the field unchanged.
func CollapseOptions(cells []dataset.Cell, spec CollapseSpec) []dataset.Cell {
	if spec.CumulativeThreshold != nil {
		if t := *spec.CumulativeThreshold; t < 0 || t > 1 {
			spec.Logger.Warn().
				Float64("cumulative_threshold", t).
				Msg("cumulative threshold outside [0,1], skipping collapse")
			return cells
		}
	}
	if spec.CumulativeThreshold == nil && spec.MaxOptions == nil {
		return cells
	}
	if spec.Replacement == "" {
		spec.Replacement = DefaultReplacement
	}

	eligible := spec.Eligible
	if eligible == nil {
		eligible = make([]bool, len(cells))
		for i := range eligible {
			eligible[i] = true
		}
	}

	type category struct {
		key   dataset.Cell
		count int
	}
	var cats []category
	index := make(map[dataset.Cell]int)
	total := 0
	for i, c := range cells {
		if i < len(eligible) && !eligible[i] {
			continue
		}
		total++
		if j, ok := index[c]; ok {
			cats[j].count++
			continue
		}
		index[c] = len(cats)
		cats = append(cats, category{key: c, count: 1})
	}
	if total == 0 {
		return cells
	}

	// Sort by descending frequency; the stable sort keeps equal-frequency
	// categories in first-seen order.
	sort.SliceStable(cats, func(i, j int) bool { return cats[i].count > cats[j].count })

	replaced := make(map[dataset.Cell]bool)

	if spec.CumulativeThreshold != nil {
		// A category is kept while the cumulative share of strictly more
		// frequent categories has not yet exceeded the threshold; its own
		// share is excluded from the comparison.
		countAbove := make(map[int]int) // count -> rows in strictly more frequent categories
		acc := 0
		for i, c := range cats {
			if i > 0 && cats[i-1].count != c.count {
				countAbove[c.count] = acc
			} else if i == 0 {
				countAbove[c.count] = 0
			}
			acc += c.count
		}
		for _, c := range cats {
			before := float64(countAbove[c.count]) / float64(total)
			if before > *spec.CumulativeThreshold {
				replaced[c.key] = true
			}
		}
	}

	if spec.MaxOptions != nil {
		keep := *spec.MaxOptions + 1
		if keep < 0 {
			keep = 0
		}
		for i, c := range cats {
			if i >= keep {
				replaced[c.key] = true
			}
		}
	}

	out := make([]dataset.Cell, len(cells))
	copy(out, cells)
	for i, c := range cells {
		if i < len(eligible) && !eligible[i] {
			continue
		}
		if c.IsMissing() {
			continue
		}
		if replaced[c] {
			out[i] = dataset.String(spec.Replacement)
		}
	}
	return out
}
