package field

import (
	"sync"
	"testing"
)

func TestCell_ConcurrentWritersLastWins(t *testing.T) {
	c := NewCell(0)

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			c.Set(v)
			_ = c.Get()
		}(i)
	}
	wg.Wait()

	if got := c.Get(); got < 1 || got > 50 {
		t.Fatalf("unexpected final value %d", got)
	}
}

func TestCell_ObserverMayReadCell(t *testing.T) {
	c := NewCell("a")
	var inside string
	c.Subscribe(func(_, _ string) { inside = c.Get() })

	if old := c.Set("b"); old != "a" {
		t.Fatalf("expected old value a, got %q", old)
	}
	if inside != "b" {
		t.Fatalf("observer saw %q, want b", inside)
	}
}

func TestCell_ObserversRunInSubscriptionOrder(t *testing.T) {
	c := NewCell(0)
	var order []int
	cancels := make([]func(), 0, 5)
	for i := 0; i < 5; i++ {
		cancels = append(cancels, c.Subscribe(func(_, _ int) { order = append(order, i) }))
	}
	cancels[2]()
	cancels[2]()

	c.Set(1)
	want := []int{0, 1, 3, 4}
	if len(order) != len(want) {
		t.Fatalf("observers ran %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("observers ran %v, want %v", order, want)
		}
	}
}
