package queue

import (
	"errors"
	"testing"
	"time"
)

func TestBoundedPutGet(t *testing.T) {
	q := New[int](2)
	if !q.Put(1) {
		t.Fatal("Put(1) should succeed")
	}
	if !q.Put(2) {
		t.Fatal("Put(2) should succeed")
	}
	if q.Put(3) {
		t.Fatal("Put(3) should report false, queue is full")
	}
	v, err := q.Get(0)
	if err != nil || v != 1 {
		t.Fatalf("Get() = %d, %v, want 1, nil", v, err)
	}
}

func TestUnboundedPutNeverDrops(t *testing.T) {
	q := New[int](0)
	for i := 0; i < 1000; i++ {
		if !q.Put(i) {
			t.Fatalf("Put(%d) returned false on an unbounded queue", i)
		}
	}
	for i := 0; i < 1000; i++ {
		v, err := q.Get(time.Second)
		if err != nil {
			t.Fatalf("Get() #%d: %v", i, err)
		}
		if v != i {
			t.Fatalf("Get() #%d = %d, want %d (FIFO order)", i, v, i)
		}
	}
}

func TestGetTimesOutOnEmptyQueue(t *testing.T) {
	q := New[int](1)
	_, err := q.Get(10 * time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Get() error = %v, want ErrTimeout", err)
	}
}

func TestInterruptWakesBlockedGet(t *testing.T) {
	q := New[int](1)
	result := make(chan error, 1)
	go func() {
		_, err := q.Get(time.Minute)
		result <- err
	}()

	time.Sleep(10 * time.Millisecond)
	q.Interrupt()

	select {
	case err := <-result:
		if !errors.Is(err, ErrInterrupted) {
			t.Fatalf("blocked Get() returned %v, want ErrInterrupted", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Interrupt did not wake the blocked Get within 1s")
	}
}

func TestInterruptIsIdempotentAndSticky(t *testing.T) {
	q := New[int](1)
	q.Interrupt()
	q.Interrupt() // must not panic on double-close

	if _, err := q.Get(0); !errors.Is(err, ErrInterrupted) {
		t.Fatalf("Get() after Interrupt = %v, want ErrInterrupted", err)
	}
	if _, err := q.Get(0); !errors.Is(err, ErrInterrupted) {
		t.Fatalf("second Get() after Interrupt = %v, want ErrInterrupted", err)
	}
}

func TestInterruptOnUnboundedQueue(t *testing.T) {
	q := New[int](0)
	q.Interrupt()
	if _, err := q.Get(0); !errors.Is(err, ErrInterrupted) {
		t.Fatalf("Get() after Interrupt = %v, want ErrInterrupted", err)
	}
}
