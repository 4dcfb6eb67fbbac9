package model

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// ValueKind tags a ParameterValue.
type ValueKind uint8

const (
	KindNone ValueKind = iota
	KindNumber
	KindText
)

// ParameterValue is a run parameter taken from the untyped metadata blob:
// either a number or a string.
type ParameterValue struct {
	kind ValueKind
	num  float64
	text string
}

// Number wraps a numeric parameter.
func Number(v float64) ParameterValue { return ParameterValue{kind: KindNumber, num: v} }

// Text wraps a categorical parameter.
func Text(s string) ParameterValue { return ParameterValue{kind: KindText, text: s} }

// Kind returns the variant tag.
func (v ParameterValue) Kind() ValueKind { return v.kind }

// IsNumber reports a numeric value that is not NaN.
func (v ParameterValue) IsNumber() bool { return v.kind == KindNumber && !math.IsNaN(v.num) }

// IsText reports a categorical value.
func (v ParameterValue) IsText() bool { return v.kind == KindText }

// Float returns the numeric value; ok is false for text or NaN.
func (v ParameterValue) Float() (float64, bool) {
	if !v.IsNumber() {
		return 0, false
	}
	return v.num, true
}

// Text returns the string value ("" for numbers).
func (v ParameterValue) Text() string { return v.text }

func (v ParameterValue) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindText:
		return v.text
	default:
		return ""
	}
}

// MarshalJSON writes the underlying number or string.
func (v ParameterValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.num)
	case KindText:
		return json.Marshal(v.text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts JSON numbers and strings; booleans become 0/1.
func (v *ParameterValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	pv, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = pv
	return nil
}

// FromAny converts a decoded JSON scalar into a ParameterValue.
func FromAny(raw interface{}) (ParameterValue, error) {
	switch t := raw.(type) {
	case float64:
		return Number(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return ParameterValue{}, err
		}
		return Number(f), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case string:
		return Text(t), nil
	case bool:
		if t {
			return Number(1), nil
		}
		return Number(0), nil
	case nil:
		return Number(math.NaN()), nil
	default:
		return ParameterValue{}, fmt.Errorf("unsupported parameter value %T", raw)
	}
}

// Parameters is the schema-less parameter map of a record.
type Parameters map[string]ParameterValue

// Keys returns the parameter names in sorted order.
func (p Parameters) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
