package keylock

import (
	"sync"
	"testing"
)

func TestSerializesSameKey(t *testing.T) {
	m := New()

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock("user-1")
			counter++
			m.Unlock("user-1")
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("counter = %d, want 50", counter)
	}
}

func TestDifferentKeysIndependent(t *testing.T) {
	m := New()

	m.Lock("a")
	done := make(chan struct{})
	go func() {
		m.Lock("b")
		m.Unlock("b")
		close(done)
	}()
	<-done // must not deadlock while "a" is held
	m.Unlock("a")
}

func TestEntriesReleased(t *testing.T) {
	m := New()
	m.Lock("x")
	m.Unlock("x")
	if len(m.locks) != 0 {
		t.Fatalf("lock table holds %d entries after release", len(m.locks))
	}
}
