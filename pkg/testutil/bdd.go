package testutil

import "testing"

// Scenario tests read top-down: each step runs as a subtest named after its
// keyword and description, e.g. "When_an_unknown_badge_is_scanned".

func step(t *testing.T, keyword, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run(keyword+" "+desc, fn)
}

func Given(t *testing.T, desc string, fn func(t *testing.T)) { t.Helper(); step(t, "Given", desc, fn) }
func When(t *testing.T, desc string, fn func(t *testing.T))  { t.Helper(); step(t, "When", desc, fn) }
func Then(t *testing.T, desc string, fn func(t *testing.T))  { t.Helper(); step(t, "Then", desc, fn) }
func And(t *testing.T, desc string, fn func(t *testing.T))   { t.Helper(); step(t, "And", desc, fn) }
