package ws

import "testing"

func TestSubscribeReplacesAffinity(t *testing.T) {
	r := NewRegistry()
	c := newConn(nil)

	r.Subscribe(c, 100)
	r.Subscribe(c, 200)

	if id, ok := r.MatchFor(c); !ok || id != 200 {
		t.Fatalf("MatchFor = (%d, %v), want (200, true)", id, ok)
	}
	if conns := r.ConnsFor(100); len(conns) != 0 {
		t.Errorf("old match still holds %d connections", len(conns))
	}
	if conns := r.ConnsFor(200); len(conns) != 1 || conns[0] != c {
		t.Errorf("new match group = %v", conns)
	}

	s := r.Snapshot()
	if s.MatchesWithConnections != 1 {
		t.Errorf("empty old group not pruned: %d matches with connections", s.MatchesWithConnections)
	}
}

func TestUnsubscribeOnlyDropsMatchingAffinity(t *testing.T) {
	r := NewRegistry()
	c := newConn(nil)

	r.Subscribe(c, 100)
	r.Unsubscribe(c, 999)
	if _, ok := r.MatchFor(c); !ok {
		t.Fatal("unsubscribe for a different match should not drop the affinity")
	}

	r.Unsubscribe(c, 100)
	if _, ok := r.MatchFor(c); ok {
		t.Fatal("affinity should be gone after matching unsubscribe")
	}
	if !r.Empty() {
		t.Fatal("registry should be empty with the group pruned")
	}
}

func TestRemoveKeepsDirectionsConsistent(t *testing.T) {
	r := NewRegistry()

	conns := make([]*Conn, 20)
	for i := range conns {
		conns[i] = newConn(nil)
		r.Subscribe(conns[i], int64(i%3+1))
	}

	// Interleave churn with removals; the two maps must stay mirrors of
	// each other throughout.
	for i, c := range conns {
		if i%2 == 0 {
			r.Subscribe(c, int64(i%5+1))
		}
		r.Remove(c)

		s := r.Snapshot()
		sum := 0
		for _, n := range s.PerMatch {
			sum += n
		}
		if sum != s.TotalConnections {
			t.Fatalf("per-match sum %d != total %d after %d removals", sum, s.TotalConnections, i+1)
		}
	}

	if !r.Empty() {
		t.Fatal("registry should be empty after removing every connection")
	}
}

func TestSnapshotCounts(t *testing.T) {
	r := NewRegistry()
	a, b, c := newConn(nil), newConn(nil), newConn(nil)
	r.Subscribe(a, 7)
	r.Subscribe(b, 7)
	r.Subscribe(c, 8)

	s := r.Snapshot()
	if s.TotalConnections != 3 {
		t.Errorf("total = %d, want 3", s.TotalConnections)
	}
	if s.MatchesWithConnections != 2 {
		t.Errorf("matches = %d, want 2", s.MatchesWithConnections)
	}
	if s.PerMatch[7] != 2 || s.PerMatch[8] != 1 {
		t.Errorf("per-match = %v, want {7:2 8:1}", s.PerMatch)
	}
}
