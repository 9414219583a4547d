package queue

import (
	"sync"
	"testing"
)

type move struct {
	Seq  int
	X, Y int
}

func TestQueue_New(t *testing.T) {
	q := New[move]()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
}

func TestQueue_PopEmpty(t *testing.T) {
	q := New[move]()
	item, ok := q.Pop()
	if ok {
		t.Error("expected ok=false on empty queue")
	}
	if item != (move{}) {
		t.Errorf("expected zero value, got %+v", item)
	}
}

func TestQueue_FIFO(t *testing.T) {
	q := New[move]()
	for i := 0; i < 10; i++ {
		q.Push(move{Seq: i, X: i * 10})
	}
	if q.Len() != 10 {
		t.Fatalf("expected 10 items, got %d", q.Len())
	}

	for i := 0; i < 10; i++ {
		item, ok := q.Pop()
		if !ok || item.Seq != i {
			t.Fatalf("pop %d: got %+v ok=%v", i, item, ok)
		}
	}
	if !q.Empty() {
		t.Error("expected empty queue after draining")
	}
}

func TestQueue_Clear(t *testing.T) {
	q := New[move]()
	q.Push(move{Seq: 1}, move{Seq: 2}, move{Seq: 3})
	q.Clear()
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestQueue_GetAndEmpty(t *testing.T) {
	q := New[move]()
	q.Push(move{Seq: 1}, move{Seq: 2}, move{Seq: 3})

	result := q.GetAndEmpty()
	if len(result) != 3 || result[0].Seq != 1 || result[2].Seq != 3 {
		t.Errorf("unexpected items: %+v", result)
	}
	if !q.Empty() {
		t.Error("expected empty queue after GetAndEmpty")
	}
}

func TestQueue_ConcurrentPushPop(t *testing.T) {
	q := New[move]()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(seq int) {
			defer wg.Done()
			q.Push(move{Seq: seq})
		}(i)
	}
	wg.Wait()

	if q.Len() != 100 {
		t.Fatalf("expected 100 items, got %d", q.Len())
	}

	var popped sync.Map
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if item, ok := q.Pop(); ok {
				popped.Store(item.Seq, true)
			}
		}()
	}
	wg.Wait()

	count := 0
	popped.Range(func(_, _ any) bool { count++; return true })
	if count != 100 {
		t.Errorf("expected 100 distinct items popped, got %d", count)
	}
}
