package clean

import (
	"fmt"
	"strings"

	"github.com/isaric/isaricdata/internal/dataset"
)

// Method identifies a cleaning transform. The set is closed: transforms are
// dispatched through a fixed table, not by reflection over names.
type Method string

const (
	MethodOneHotEncode            Method = "one-hot-encode"
	MethodInverseOneHotEncode     Method = "inverse-one-hot-encode"
	MethodCategoricalYNUToBoolean Method = "categorical-ynu-to-boolean"
)

// transformFunc is the common signature all transforms share. Options a
// transform does not understand are ignored rather than rejected, keeping
// the dispatch generic across transforms with different needs.
type transformFunc func(*dataset.Dataset, string, EncodeSpec) (*dataset.Dataset, error)

var methods = map[Method]transformFunc{
	MethodOneHotEncode:            OneHotEncode,
	MethodInverseOneHotEncode:     InverseOneHotEncode,
	MethodCategoricalYNUToBoolean: CategoricalYNUToBoolean,
}

// Methods returns the supported transform names in a stable order.
func Methods() []Method {
	return []Method{
		MethodOneHotEncode,
		MethodInverseOneHotEncode,
		MethodCategoricalYNUToBoolean,
	}
}

// ParseMethod resolves a transform name. Unknown names get an error that
// enumerates the valid choices.
func ParseMethod(name string) (Method, error) {
	m := Method(name)
	if _, ok := methods[m]; !ok {
		choices := make([]string, 0, len(methods))
		for _, known := range Methods() {
			choices = append(choices, string(known))
		}
		return "", fmt.Errorf("unknown transform method %q (must be one of: %s)",
			name, strings.Join(choices, ", "))
	}
	return m, nil
}

// Apply runs the named transform against a dataset.
func Apply(d *dataset.Dataset, method Method, tableName string, spec EncodeSpec) (*dataset.Dataset, error) {
	fn, ok := methods[method]
	if !ok {
		_, err := ParseMethod(string(method))
		return nil, err
	}
	return fn(d, tableName, spec)
}
