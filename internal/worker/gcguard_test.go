// SPDX-License-Identifier: MPL-2.0

package worker

import (
	"slices"
	"testing"
)

func TestGCGuard_NestedPauseRestoresOnce(t *testing.T) {
	t.Parallel()

	current := 100
	var calls []int
	g := &gcGuard{setter: func(p int) int {
		calls = append(calls, p)
		prev := current
		current = p
		return prev
	}}

	g.pause()
	g.pause()
	g.resume()
	if current != -1 {
		t.Fatalf("GC percent = %d after inner resume, want -1", current)
	}
	g.resume()
	if current != 100 {
		t.Errorf("GC percent = %d after outer resume, want 100", current)
	}
	if !slices.Equal(calls, []int{-1, 100}) {
		t.Errorf("setter calls = %v, want [-1 100]", calls)
	}

	g.resume()
	if len(calls) != 2 {
		t.Error("unbalanced resume touched the GC setting")
	}
}
