package testutil

import "testing"

// Scenario steps nest as subtests so `go test -run` can target a single
// Given/When/Then path and failures print the full sentence.

func Given(t *testing.T, context string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "Given", context, fn)
}

func When(t *testing.T, action string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "When", action, fn)
}

func Then(t *testing.T, outcome string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "Then", outcome, fn)
}

// And continues the previous step with another clause of the same kind.
func And(t *testing.T, clause string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "And", clause, fn)
}

func step(t *testing.T, keyword, text string, fn func(t *testing.T)) {
	t.Helper()
	if !t.Run(keyword+" "+text, fn) {
		t.Logf("%s %s: failed", keyword, text)
	}
}
