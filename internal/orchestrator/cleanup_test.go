package orchestrator

import "testing"

func TestCleanupRunsLIFO(t *testing.T) {
	var order []string
	c := NewCleanupRegistry()
	c.Register("a", func() error { order = append(order, "a"); return nil })
	c.Register("b", func() error { order = append(order, "b"); return nil })
	c.Register("c", func() error { order = append(order, "c"); return nil })
	c.Run()
	want := []string{"c", "b", "a"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestCleanupRunsOnceEvenIfCalledTwice(t *testing.T) {
	calls := 0
	c := NewCleanupRegistry()
	c.Register("once", func() error { calls++; return nil })
	c.Run()
	c.Run()
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestCleanupCollectsErrorsWithoutStopping(t *testing.T) {
	ran := false
	c := NewCleanupRegistry()
	c.Register("failing", func() error { return errBoom })
	c.Register("other", func() error { ran = true; return nil })
	errsOut := c.Run()
	if len(errsOut) != 1 {
		t.Fatalf("expected one error, got %v", errsOut)
	}
	if !ran {
		t.Fatalf("expected other action to still run")
	}
}

var errBoom = errFixture("boom")

type errFixture string

func (e errFixture) Error() string { return string(e) }
