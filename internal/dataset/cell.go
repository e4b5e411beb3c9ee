package dataset

import (
	"fmt"
	"time"
)

// CellKind discriminates the value held by a Cell.
type CellKind int

const (
	KindMissing CellKind = iota
	KindString
	KindBool
	KindNumber
	KindTime
)

// Cell is a single table value. The zero Cell is the missing marker, which
// denotes "not recorded" and is distinct from every valid value: an empty
// string, false and the catch-all "other" are all non-missing.
type Cell struct {
	kind CellKind
	s    string
	b    bool
	f    float64
	t    time.Time
}

// Missing returns the missing-value marker.
func Missing() Cell { return Cell{} }

// String returns a string-valued cell.
func String(s string) Cell { return Cell{kind: KindString, s: s} }

// Bool returns a boolean-valued cell.
func Bool(b bool) Cell { return Cell{kind: KindBool, b: b} }

// Number returns a numeric cell.
func Number(f float64) Cell { return Cell{kind: KindNumber, f: f} }

// Time returns a datetime cell.
func Time(t time.Time) Cell { return Cell{kind: KindTime, t: t} }

// Kind returns the cell's kind.
func (c Cell) Kind() CellKind { return c.kind }

// IsMissing reports whether the cell is the missing marker.
func (c Cell) IsMissing() bool { return c.kind == KindMissing }

// AsString returns the string value; ok is false for non-string cells.
func (c Cell) AsString() (string, bool) { return c.s, c.kind == KindString }

// AsBool returns the boolean value; ok is false for non-boolean cells.
func (c Cell) AsBool() (bool, bool) { return c.b, c.kind == KindBool }

// AsNumber returns the numeric value; ok is false for non-numeric cells.
func (c Cell) AsNumber() (float64, bool) { return c.f, c.kind == KindNumber }

// AsTime returns the datetime value; ok is false for non-datetime cells.
func (c Cell) AsTime() (time.Time, bool) { return c.t, c.kind == KindTime }

// Equal reports whether two cells hold the same kind and value. Missing
// equals only missing.
func (c Cell) Equal(o Cell) bool {
	if c.kind != o.kind {
		return false
	}
	switch c.kind {
	case KindMissing:
		return true
	case KindString:
		return c.s == o.s
	case KindBool:
		return c.b == o.b
	case KindNumber:
		return c.f == o.f
	case KindTime:
		return c.t.Equal(o.t)
	}
	return false
}

// String renders the cell for summaries and error messages.
func (c Cell) String() string {
	switch c.kind {
	case KindMissing:
		return "<missing>"
	case KindString:
		return c.s
	case KindBool:
		return fmt.Sprintf("%t", c.b)
	case KindNumber:
		return fmt.Sprintf("%g", c.f)
	case KindTime:
		return c.t.Format("2006-01-02")
	}
	return ""
}
