package testing

import (
	"fmt"
	"strings"
	"testing"
)

// AssertQueryLogged asserts that a logged query contains sqlPattern.
func AssertQueryLogged(t *testing.T, rec *RecordingQueryLogger, sqlPattern string) {
	t.Helper()
	for _, q := range rec.SQL() {
		if strings.Contains(q, sqlPattern) {
			return
		}
	}
	t.Errorf("expected query not logged: %q\nLogged queries:\n%s", sqlPattern, formatQueryLog(rec.SQL()))
}

// AssertQueryNotLogged asserts that no logged query contains sqlPattern.
func AssertQueryNotLogged(t *testing.T, rec *RecordingQueryLogger, sqlPattern string) {
	t.Helper()
	for _, q := range rec.SQL() {
		if strings.Contains(q, sqlPattern) {
			t.Errorf("unexpected query logged: %q\nQuery SQL: %s", sqlPattern, q)
			return
		}
	}
}

// AssertQueryCount asserts that exactly expected logged queries contain sqlPattern.
func AssertQueryCount(t *testing.T, rec *RecordingQueryLogger, sqlPattern string, expected int) {
	t.Helper()
	count := 0
	for _, q := range rec.SQL() {
		if strings.Contains(q, sqlPattern) {
			count++
		}
	}
	if count != expected {
		t.Errorf("expected %d queries matching %q, got %d\nLogged queries:\n%s",
			expected, sqlPattern, count, formatQueryLog(rec.SQL()))
	}
}

// AssertLoggedSequence asserts the logged SQL equals want exactly, in order.
func AssertLoggedSequence(t *testing.T, rec *RecordingQueryLogger, want ...string) {
	t.Helper()
	got := rec.SQL()
	if len(got) != len(want) {
		t.Errorf("expected %d logged queries, got %d\nLogged queries:\n%s", len(want), len(got), formatQueryLog(got))
		return
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("logged query %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func formatQueryLog(queries []string) string {
	if len(queries) == 0 {
		return "  (none)"
	}
	var b strings.Builder
	for i, q := range queries {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, q)
	}
	return b.String()
}
