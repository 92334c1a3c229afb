package rules

import (
	"cmp"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Operator names a comparison applied between a resolved field value and a
// condition's rule value. The set is closed; see Operators.
type Operator string

const (
	OperatorEquals             Operator = "equals"
	OperatorNotEquals          Operator = "notEquals"
	OperatorGreaterThan        Operator = "greaterThan"
	OperatorLessThan           Operator = "lessThan"
	OperatorGreaterThanOrEqual Operator = "greaterThanOrEqual"
	OperatorLessThanOrEqual    Operator = "lessThanOrEqual"
	OperatorContains           Operator = "contains"
	OperatorNotContains        Operator = "notContains"
	OperatorIn                 Operator = "in"
	OperatorNotIn              Operator = "notIn"
	OperatorIsEmpty            Operator = "isEmpty"
	OperatorIsNotEmpty         Operator = "isNotEmpty"
)

type predicate func(resolved, ruleValue any) bool

var predicates = map[Operator]predicate{
	OperatorEquals:    equalValues,
	OperatorNotEquals: func(a, b any) bool { return !equalValues(a, b) },
	OperatorGreaterThan: func(a, b any) bool {
		c, ok := compareOrdered(a, b)
		return ok && c > 0
	},
	OperatorLessThan: func(a, b any) bool {
		c, ok := compareOrdered(a, b)
		return ok && c < 0
	},
	OperatorGreaterThanOrEqual: func(a, b any) bool {
		c, ok := compareOrdered(a, b)
		return ok && c >= 0
	},
	OperatorLessThanOrEqual: func(a, b any) bool {
		c, ok := compareOrdered(a, b)
		return ok && c <= 0
	},
	OperatorContains: contains,
	OperatorNotContains: func(a, b any) bool {
		if a == nil {
			return true
		}
		return !contains(a, b)
	},
	OperatorIn: in,
	OperatorNotIn: func(a, b any) bool {
		if _, ok := asSequence(b); !ok {
			return false
		}
		return !in(a, b)
	},
	OperatorIsEmpty:    func(a, _ any) bool { return isEmpty(a) },
	OperatorIsNotEmpty: func(a, _ any) bool { return !isEmpty(a) },
}

var operatorOrder = []Operator{
	OperatorEquals,
	OperatorNotEquals,
	OperatorGreaterThan,
	OperatorLessThan,
	OperatorGreaterThanOrEqual,
	OperatorLessThanOrEqual,
	OperatorContains,
	OperatorNotContains,
	OperatorIn,
	OperatorNotIn,
	OperatorIsEmpty,
	OperatorIsNotEmpty,
}

// Operators returns every supported operator in display order.
func Operators() []Operator {
	out := make([]Operator, len(operatorOrder))
	copy(out, operatorOrder)
	return out
}

func (o Operator) Valid() bool {
	_, ok := predicates[o]
	return ok
}

// RequiresValue reports whether a condition using o must carry a rule value.
func (o Operator) RequiresValue() bool {
	return o != OperatorIsEmpty && o != OperatorIsNotEmpty
}

// RequiresSequence reports whether o only matches when the rule value is a list.
func (o Operator) RequiresSequence() bool {
	return o == OperatorIn || o == OperatorNotIn
}

// Evaluate applies op to a resolved field value and a rule value. It never
// panics; an unknown operator evaluates to false.
func Evaluate(op Operator, resolved, ruleValue any) bool {
	p, ok := predicates[op]
	if !ok {
		return false
	}
	return p(normalize(resolved), normalize(ruleValue))
}

// normalize dereferences pointers so that a nil *T behaves like an absent value.
func normalize(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	as, aSeq := asSequence(a)
	bs, bSeq := asSequence(b)
	if aSeq || bSeq {
		if !aSeq || !bSeq || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !equalValues(normalize(as[i]), normalize(bs[i])) {
				return false
			}
		}
		return true
	}

	if c, ok := compareNumbers(a, b); ok {
		return c == 0
	}

	if at, ok := a.(time.Time); ok {
		if bt, ok := toTime(b); ok {
			return at.Equal(bt)
		}
	}

	return stringify(a) == stringify(b)
}

func compareOrdered(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}

	if at, ok := a.(time.Time); ok {
		bt, ok := toTime(b)
		if !ok {
			return 0, false
		}
		return at.Compare(bt), true
	}

	return compareNumbers(a, b)
}

// compareNumbers compares a and b by numeric value. Integers and numeric
// text compare exactly, so long IDs that share a float64 stay distinct; a
// float operand falls back to float64.
func compareNumbers(a, b any) (int, bool) {
	if ra, ok := exactNumber(a); ok {
		if rb, ok := exactNumber(b); ok {
			return ra.Cmp(rb), true
		}
	}

	an, ok := toNumber(a)
	if !ok {
		return 0, false
	}
	bn, ok := toNumber(b)
	if !ok {
		return 0, false
	}
	return cmp.Compare(an, bn), true
}

func exactNumber(v any) (*big.Rat, bool) {
	if s, ok := v.(string); ok {
		if _, ok := toNumber(s); !ok {
			return nil, false
		}
		return new(big.Rat).SetString(strings.TrimSpace(s))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return new(big.Rat).SetInt64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return new(big.Rat).SetUint64(rv.Uint()), true
	default:
		return nil, false
	}
}

func contains(resolved, ruleValue any) bool {
	if resolved == nil {
		return false
	}

	if items, ok := asSequence(resolved); ok {
		for _, item := range items {
			if equalValues(normalize(item), ruleValue) {
				return true
			}
		}
		return false
	}

	if ruleValue == nil {
		return false
	}
	return strings.Contains(stringify(resolved), stringify(ruleValue))
}

func in(resolved, ruleValue any) bool {
	options, ok := asSequence(ruleValue)
	if !ok || resolved == nil {
		return false
	}

	if items, ok := asSequence(resolved); ok {
		for _, item := range items {
			if member(normalize(item), options) {
				return true
			}
		}
		return false
	}

	return member(resolved, options)
}

func member(v any, options []any) bool {
	for _, option := range options {
		if equalValues(v, normalize(option)) {
			return true
		}
	}
	return false
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case bool:
		return !x
	case time.Time:
		return x.IsZero()
	}

	if items, ok := asSequence(v); ok {
		return len(items) == 0
	}

	if n, ok := numericKind(v); ok {
		return n == 0
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map {
		return rv.Len() == 0
	}
	return false
}

// asSequence reports whether v is a list (any slice or array, including
// driver-specific list types such as BSON arrays) and returns its elements.
func asSequence(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	switch x := v.(type) {
	case []any:
		return x, true
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, true
	case []byte:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func numericKind(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// toNumber coerces numeric kinds and numeric strings. Booleans and times do
// not coerce.
func toNumber(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return numericKind(v)
}

var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms), true
		}
		return time.Time{}, false
	}
	if n, ok := numericKind(v); ok {
		return time.UnixMilli(int64(n)), true
	}
	return time.Time{}, false
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return x.String()
	}
	if n, ok := numericKind(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
