package cleanup

import "testing"

func TestCleanupRunsInReverseRegistrationOrder(t *testing.T) {
	r := New(nil)
	var order []string
	r.Register("first", func() { order = append(order, "first") })
	r.Register("second", func() { order = append(order, "second") })
	r.Register("third", func() { order = append(order, "third") })

	r.Cleanup()

	want := []string{"third", "second", "first"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestCleanupIsIdempotent(t *testing.T) {
	r := New(nil)
	calls := 0
	r.Register("once", func() { calls++ })
	r.Cleanup()
	r.Cleanup()
	if calls != 1 {
		t.Fatalf("expected teardown to run exactly once, ran %d times", calls)
	}
}

func TestCleanupIsolatesPanickingTeardown(t *testing.T) {
	r := New(nil)
	ranAfterPanic := false
	r.Register("panics", func() { panic("boom") })
	r.Register("after", func() { ranAfterPanic = true })

	r.Cleanup()

	if !ranAfterPanic {
		t.Fatal("expected teardown after a panicking one to still run")
	}
}
