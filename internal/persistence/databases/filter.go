package databases

import (
	"fmt"
	"strings"

	"rook/internal/ports"
)

// evaluateFilter applies the ports.Filter grammar against an in-memory
// payload map, used by the memory-backed vector store. Postgres/Qdrant
// backends translate the same tree into their own query language instead.
func evaluateFilter(f *ports.Filter, payload map[string]any) bool {
	if f == nil || f.Kind == "" {
		return true
	}
	switch f.Kind {
	case "and":
		for _, sub := range f.Filters {
			if !evaluateFilter(&sub, payload) {
				return false
			}
		}
		return true
	case "or":
		if len(f.Filters) == 0 {
			return true
		}
		for _, sub := range f.Filters {
			if evaluateFilter(&sub, payload) {
				return true
			}
		}
		return false
	case "not":
		if len(f.Filters) == 0 {
			return true
		}
		return !evaluateFilter(&f.Filters[0], payload)
	case "condition":
		return evaluateCondition(*f, payload)
	default:
		return true
	}
}

func evaluateCondition(f ports.Filter, payload map[string]any) bool {
	v, present := payload[f.Field]
	switch f.Op {
	case ports.OpExists:
		return present
	case ports.OpNotExists:
		return !present
	case ports.OpIsNull:
		return present && v == nil
	case ports.OpIsNotNull:
		return present && v != nil
	}
	if !present {
		return false
	}
	switch f.Op {
	case ports.OpEq:
		return fmt.Sprint(v) == fmt.Sprint(f.Value)
	case ports.OpNe:
		return fmt.Sprint(v) != fmt.Sprint(f.Value)
	case ports.OpGt, ports.OpGte, ports.OpLt, ports.OpLte:
		a, aok := toFloat(v)
		b, bok := toFloat(f.Value)
		if !aok || !bok {
			return false
		}
		switch f.Op {
		case ports.OpGt:
			return a > b
		case ports.OpGte:
			return a >= b
		case ports.OpLt:
			return a < b
		default:
			return a <= b
		}
	case ports.OpBetween:
		bounds, ok := f.Value.([2]any)
		if !ok {
			return false
		}
		a, aok := toFloat(v)
		lo, lok := toFloat(bounds[0])
		hi, hok := toFloat(bounds[1])
		return aok && lok && hok && a >= lo && a <= hi
	case ports.OpIn:
		return containsAny(f.Value, v)
	case ports.OpNin:
		return !containsAny(f.Value, v)
	case ports.OpContains:
		return strings.Contains(fmt.Sprint(v), fmt.Sprint(f.Value))
	case ports.OpIcontains:
		return strings.Contains(strings.ToLower(fmt.Sprint(v)), strings.ToLower(fmt.Sprint(f.Value)))
	case ports.OpWildcard:
		return matchWildcard(fmt.Sprint(f.Value), fmt.Sprint(v))
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func containsAny(set any, v any) bool {
	items, ok := set.([]any)
	if !ok {
		return false
	}
	target := fmt.Sprint(v)
	for _, item := range items {
		if fmt.Sprint(item) == target {
			return true
		}
	}
	return false
}

func matchWildcard(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	for _, p := range parts[1 : len(parts)-1] {
		idx := strings.Index(s, p)
		if idx < 0 {
			return false
		}
		s = s[idx+len(p):]
	}
	return strings.HasSuffix(s, parts[len(parts)-1])
}
