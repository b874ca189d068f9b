package writer

import (
	"sync"
	"testing"
)

func TestBuffer_PushDrain(t *testing.T) {
	buf := NewBuffer[int](10, 0)

	if n := buf.Push(0, 1, 2, 3, 4); n != 5 {
		t.Fatalf("Push() = %d, want 5", n)
	}
	if buf.Len() != 5 {
		t.Errorf("Len() = %d, want 5", buf.Len())
	}

	got := buf.Drain(3)
	for i, v := range got {
		if v != i {
			t.Errorf("Drain()[%d] = %d, want %d", i, v, i)
		}
	}
	if rest := buf.Drain(0); len(rest) != 2 || rest[0] != 3 {
		t.Errorf("Drain(0) = %v, want [3 4]", rest)
	}
	if buf.Drain(0) != nil {
		t.Error("Drain() on empty buffer should return nil")
	}
}

func TestBuffer_GrowAt70Percent(t *testing.T) {
	buf := NewBuffer[int](10, 0)
	for i := 0; i < 7; i++ {
		buf.Push(i)
	}

	stats := buf.Stats()
	if stats.Capacity != 20 {
		t.Errorf("Capacity = %d, want 20", stats.Capacity)
	}
	if stats.Resizes != 1 {
		t.Errorf("Resizes = %d, want 1", stats.Resizes)
	}
}

func TestBuffer_GrowPreservesOrderAcrossWrap(t *testing.T) {
	buf := NewBuffer[int](4, 0)

	// Move head forward so the ring wraps before growing.
	buf.Push(0, 1)
	buf.Drain(2)
	for i := 0; i < 100; i++ {
		buf.Push(i)
	}

	got := buf.Drain(0)
	if len(got) != 100 {
		t.Fatalf("Drain() returned %d items, want 100", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("Drain()[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestBuffer_Limit(t *testing.T) {
	buf := NewBuffer[int](2, 5)

	if n := buf.Push(1, 2, 3, 4, 5, 6, 7); n != 5 {
		t.Errorf("Push() = %d, want 5", n)
	}

	stats := buf.Stats()
	if stats.Capacity > 5 {
		t.Errorf("Capacity = %d, want <= 5", stats.Capacity)
	}
	if stats.Dropped != 2 {
		t.Errorf("Dropped = %d, want 2", stats.Dropped)
	}
	if stats.Pushed != 5 {
		t.Errorf("Pushed = %d, want 5", stats.Pushed)
	}
}

func TestBuffer_Close(t *testing.T) {
	buf := NewBuffer[int](4, 0)
	buf.Push(1)
	buf.Close()

	if n := buf.Push(2); n != 0 {
		t.Errorf("Push() after Close = %d, want 0", n)
	}
	if got := buf.Drain(0); len(got) != 1 || got[0] != 1 {
		t.Errorf("Drain() after Close = %v, want [1]", got)
	}
}

func TestBuffer_Concurrent(t *testing.T) {
	buf := NewBuffer[int](4, 0)

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				buf.Push(i)
			}
		}()
	}
	wg.Wait()

	if buf.Len() != 2000 {
		t.Errorf("Len() = %d, want 2000", buf.Len())
	}
}
