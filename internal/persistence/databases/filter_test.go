package databases

import (
	"testing"

	"rook/internal/ports"
)

func TestEvaluateFilter_NilPassesEverything(t *testing.T) {
	if !evaluateFilter(nil, map[string]any{"a": 1}) {
		t.Error("nil filter should match")
	}
}

func TestEvaluateFilter_AndOrNot(t *testing.T) {
	payload := map[string]any{"user_id": "u1", "score": 5.0}

	and := ports.And(ports.Cond("user_id", ports.OpEq, "u1"), ports.Cond("score", ports.OpGte, 5.0))
	if !evaluateFilter(&and, payload) {
		t.Error("and filter should match")
	}

	or := ports.Or(ports.Cond("user_id", ports.OpEq, "nope"), ports.Cond("score", ports.OpGte, 5.0))
	if !evaluateFilter(&or, payload) {
		t.Error("or filter should match")
	}

	not := ports.Not(ports.Cond("user_id", ports.OpEq, "nope"))
	if !evaluateFilter(&not, payload) {
		t.Error("not filter should match")
	}
}

func TestEvaluateFilter_Between(t *testing.T) {
	f := ports.Between("score", 1.0, 10.0)
	if !evaluateFilter(&f, map[string]any{"score": 5.0}) {
		t.Error("expected 5 to be within [1,10]")
	}
	if evaluateFilter(&f, map[string]any{"score": 20.0}) {
		t.Error("expected 20 to be outside [1,10]")
	}
}

func TestEvaluateFilter_ExistsAndNull(t *testing.T) {
	present := ports.Cond("tag", ports.OpExists, nil)
	if !evaluateFilter(&present, map[string]any{"tag": "x"}) {
		t.Error("expected tag to exist")
	}
	absent := ports.Cond("missing", ports.OpNotExists, nil)
	if !evaluateFilter(&absent, map[string]any{"tag": "x"}) {
		t.Error("expected missing field to satisfy not_exists")
	}
}

func TestEvaluateFilter_Wildcard(t *testing.T) {
	f := ports.Cond("path", ports.OpWildcard, "foo*bar")
	if !evaluateFilter(&f, map[string]any{"path": "foo-123-bar"}) {
		t.Error("expected wildcard to match")
	}
	if evaluateFilter(&f, map[string]any{"path": "nomatch"}) {
		t.Error("expected wildcard not to match")
	}
}

func TestMatchWildcard(t *testing.T) {
	cases := []struct {
		pattern, s string
		want       bool
	}{
		{"foo*", "foobar", true},
		{"*bar", "foobar", true},
		{"foo*bar", "foo123bar", true},
		{"exact", "exact", true},
		{"exact", "notexact", false},
	}
	for _, c := range cases {
		if got := matchWildcard(c.pattern, c.s); got != c.want {
			t.Errorf("matchWildcard(%q, %q) = %v, want %v", c.pattern, c.s, got, c.want)
		}
	}
}
