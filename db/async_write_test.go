package db

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestAsyncWriter_ProcessesInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []any
	w := NewAsyncWriter(func(_ context.Context, op WriteOperation) error {
		mu.Lock()
		got = append(got, op.Data)
		mu.Unlock()
		return nil
	}, 10, nil)

	if w.Write("early") {
		t.Error("Write() before Start should be rejected")
	}
	w.Start()
	w.Start()
	for _, v := range []string{"a", "b", "c"} {
		if !w.Write(v) {
			t.Fatalf("Write(%s) rejected", v)
		}
	}
	if !w.Stop(time.Second) {
		t.Fatal("Stop() timed out")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("processed %v", got)
	}
	if w.Written() != 3 || w.Failed() != 0 {
		t.Errorf("written=%d failed=%d", w.Written(), w.Failed())
	}
	if w.IsStarted() || w.Write("late") {
		t.Error("stopped writer should reject writes")
	}
}

func TestAsyncWriter_FullQueue(t *testing.T) {
	release := make(chan struct{})
	var handled atomic.Int32
	w := NewAsyncWriter(func(context.Context, WriteOperation) error {
		<-release
		handled.Add(1)
		return nil
	}, 2, nil)
	w.Start()

	accepted := 0
	for i := 0; i < 10; i++ {
		if w.Write(i) {
			accepted++
		}
	}
	// One op may be in the handler and two buffered.
	if accepted < 2 || accepted > 3 {
		t.Errorf("accepted %d writes with capacity 2", accepted)
	}
	close(release)
	w.Stop(time.Second)
	if int(handled.Load()) != accepted {
		t.Errorf("handled %d of %d accepted writes", handled.Load(), accepted)
	}
}

func TestAsyncWriter_ErrorsAndShutdownContext(t *testing.T) {
	var errs []error
	var sawCancelled atomic.Bool
	w := NewAsyncWriter(func(ctx context.Context, op WriteOperation) error {
		if ctx.Err() != nil {
			sawCancelled.Store(true)
		}
		if op.Data == "bad" {
			return errors.New("constraint failed")
		}
		return nil
	}, 5, func(err error) { errs = append(errs, err) })
	w.Start()
	w.Write("ok")
	w.Write("bad")
	w.Stop(time.Second)

	if w.Failed() != 1 || len(errs) != 1 {
		t.Errorf("failed=%d errs=%v", w.Failed(), errs)
	}
	if sawCancelled.Load() {
		t.Error("handler context should not be cancelled during drain")
	}
}

func TestAsyncWriter_StopTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	w := NewAsyncWriter(func(context.Context, WriteOperation) error {
		<-block
		return nil
	}, 1, nil)
	w.Start()
	w.Write(1)
	time.Sleep(10 * time.Millisecond)
	if w.Stop(20 * time.Millisecond) {
		t.Error("Stop() should time out while the handler is blocked")
	}
}
