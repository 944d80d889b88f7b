package stix2

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/threatline/stix2/timestamp"
)

// FilterOp is a comparison operator usable in a Filter.
type FilterOp string

const (
	OpEqual          FilterOp = "="
	OpNotEqual       FilterOp = "!="
	OpLess           FilterOp = "<"
	OpLessOrEqual    FilterOp = "<="
	OpGreater        FilterOp = ">"
	OpGreaterOrEqual FilterOp = ">="
	OpIn             FilterOp = "in"
	OpContains       FilterOp = "contains"
)

// Filter is a single stateless predicate: field path, operator, comparison
// value. A filter is reusable across queries and sources.
//
// The field is resolved by dotted-path lookup into the record; a missing
// path is simply no match, never an error.
type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

// NewFilter builds a filter predicate.
func NewFilter(field string, op FilterOp, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Match evaluates the filter against a record.
func (f Filter) Match(r *Record) bool {
	resolved, ok := resolvePath(r.props, f.Field)
	if !ok {
		return false
	}
	return compare(resolved, f.Op, f.Value)
}

// MatchAll reports whether the record satisfies every filter (logical AND).
// An empty filter set matches everything.
func MatchAll(r *Record, filters []Filter) bool {
	for _, f := range filters {
		if !f.Match(r) {
			return false
		}
	}
	return true
}

// resolvePath walks a dotted field path through nested mappings and records.
func resolvePath(props Properties, path string) (any, bool) {
	segments := strings.Split(path, ".")
	var current any = map[string]any(props)
	for _, seg := range segments {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			current = v
		case Properties:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			current = v
		case *Record:
			v, ok := node.props[seg]
			if !ok {
				return nil, false
			}
			current = v
		default:
			return nil, false
		}
	}
	return current, true
}

func compare(resolved any, op FilterOp, value any) bool {
	switch op {
	case OpEqual:
		return valuesEqual(resolved, value)
	case OpNotEqual:
		return !valuesEqual(resolved, value)
	case OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual:
		return ordered(resolved, op, value)
	case OpIn:
		return membership(value, resolved)
	case OpContains:
		return containment(resolved, value)
	default:
		return false
	}
}

// valuesEqual compares normalized forms so that, e.g., a time.Time field
// matches its formatted string representation and a json.Number matches the
// int it round-tripped from.
func valuesEqual(a, b any) bool {
	if eq, ok := timesEqual(a, b); ok {
		return eq
	}
	na, nb := normalize(a), normalize(b)
	if fa, aNum := asFloat(na); aNum {
		if fb, bNum := asFloat(nb); bNum {
			return fa == fb
		}
		return false
	}
	return reflect.DeepEqual(na, nb)
}

func ordered(resolved any, op FilterOp, value any) bool {
	var cmp int
	if ta, tb, ok := timePair(resolved, value); ok {
		// Instants compare as instants. The trimmed canonical text form
		// does not order chronologically ('.' sorts before 'Z'), so string
		// comparison is wrong whenever a fraction is present.
		switch {
		case ta.Before(tb):
			cmp = -1
		case ta.After(tb):
			cmp = 1
		}
	} else if fa, aNum := asFloat(normalize(resolved)); aNum {
		fb, bNum := asFloat(normalize(value))
		if !bNum {
			return false
		}
		switch {
		case fa < fb:
			cmp = -1
		case fa > fb:
			cmp = 1
		}
	} else {
		sa, aOK := normalize(resolved).(string)
		sb, bOK := normalize(value).(string)
		if !aOK || !bOK {
			return false
		}
		cmp = strings.Compare(sa, sb)
	}

	switch op {
	case OpLess:
		return cmp < 0
	case OpLessOrEqual:
		return cmp <= 0
	case OpGreater:
		return cmp > 0
	case OpGreaterOrEqual:
		return cmp >= 0
	}
	return false
}

// membership reports whether needle equals any element of haystack.
func membership(haystack, needle any) bool {
	items, err := toAnySlice(haystack)
	if err != nil {
		return false
	}
	for _, item := range items {
		if valuesEqual(item, needle) {
			return true
		}
	}
	return false
}

// containment: a list field contains the value, or a string field contains
// the substring.
func containment(resolved, value any) bool {
	if s, ok := resolved.(string); ok {
		sub, subOK := value.(string)
		return subOK && strings.Contains(s, sub)
	}
	return membership(resolved, value)
}

// timePair resolves both sides to instants when at least one side is a
// time.Time and the other side parses as a timestamp.
func timePair(a, b any) (time.Time, time.Time, bool) {
	ta, aIs := a.(time.Time)
	tb, bIs := b.(time.Time)
	switch {
	case aIs && bIs:
		return ta, tb, true
	case aIs:
		parsed, err := timestamp.Parse(b)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		return ta, parsed, true
	case bIs:
		parsed, err := timestamp.Parse(a)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		return parsed, tb, true
	}
	return time.Time{}, time.Time{}, false
}

// timesEqual reports instant equality when timePair applies; the second
// result is false when neither side is a timestamp.
func timesEqual(a, b any) (bool, bool) {
	ta, tb, ok := timePair(a, b)
	if !ok {
		return false, false
	}
	return ta.Equal(tb), true
}

// normalize collapses equivalent representations for comparison purposes.
func normalize(v any) any {
	switch val := v.(type) {
	case time.Time:
		return timestamp.Format(val)
	case json.Number:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case float64:
		return val
	default:
		return v
	}
}

func asFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
