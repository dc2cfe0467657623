package registry

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestRegister_RunIDsIncrease(t *testing.T) {
	r := New()

	var last uint64
	for i := 0; i < 10; i++ {
		rec := r.Register("s", 100+i)
		if i == 0 && rec.RunID != FirstRunID {
			t.Errorf("first RunID = %d, want %d", rec.RunID, FirstRunID)
		}
		if i > 0 && rec.RunID <= last {
			t.Fatalf("RunID %d not greater than %d", rec.RunID, last)
		}
		last = rec.RunID
	}
}

func TestRegister_ReplacesSession(t *testing.T) {
	r := New()
	first := r.Register("alpha", 10)
	second := r.Register("alpha", 11)

	if second.RunID == first.RunID {
		t.Error("re-registration should issue a new run id")
	}
	rec, ok := r.Lookup("alpha")
	if !ok || rec.PID != 11 || rec.RunID != second.RunID {
		t.Errorf("Lookup(alpha) = %+v, %v; want pid 11 run %d", rec, ok, second.RunID)
	}
	if n := len(r.List()); n != 1 {
		t.Errorf("List() has %d records, want 1", n)
	}
}

func TestRegister_GeneratesSessionID(t *testing.T) {
	r := New()
	a := r.Register("", 1)
	b := r.Register("", 2)

	if _, err := uuid.Parse(a.SessionID); err != nil {
		t.Errorf("generated session id %q is not a uuid: %v", a.SessionID, err)
	}
	if a.SessionID == b.SessionID {
		t.Error("generated session ids should differ")
	}
}

func TestUnregister(t *testing.T) {
	r := New()
	r.Register("a", 1)
	r.Register("b", 2)

	if !r.Unregister("a") {
		t.Error("Unregister(a) = false, want true")
	}
	if r.Unregister("a") {
		t.Error("second Unregister(a) = true, want false")
	}
	if _, ok := r.Lookup("a"); ok {
		t.Error("a still registered")
	}

	// Run ids are never reused after removal.
	c := r.Register("c", 3)
	if c.RunID != FirstRunID+2 {
		t.Errorf("RunID = %d, want %d", c.RunID, FirstRunID+2)
	}
}

func TestList_OrderedByRunID(t *testing.T) {
	r := New()
	for _, id := range []string{"z", "y", "x", "w"} {
		r.Register(id, 1)
	}
	r.Register("y", 2)

	recs := r.List()
	want := []string{"z", "x", "w", "y"}
	if len(recs) != len(want) {
		t.Fatalf("List() = %+v", recs)
	}
	for i, rec := range recs {
		if rec.SessionID != want[i] {
			t.Errorf("List()[%d] = %s, want %s", i, rec.SessionID, want[i])
		}
	}
}

func TestRegister_Concurrent(t *testing.T) {
	r := New()
	const n = 200

	ids := make(chan uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids <- r.Register("", i).RunID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("run id %d issued twice", id)
		}
		if id < FirstRunID || id >= FirstRunID+n {
			t.Errorf("run id %d outside [%d, %d)", id, FirstRunID, FirstRunID+n)
		}
		seen[id] = true
	}
	if len(r.List()) != n {
		t.Errorf("List() has %d records, want %d", len(r.List()), n)
	}
}
