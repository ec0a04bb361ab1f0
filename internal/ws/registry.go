package ws

import "sync"

// Registry tracks which connections are interested in which match. The
// match→connections and connection→match maps are always kept consistent:
// removing a connection removes it from both directions and prunes empty
// match groups.
type Registry struct {
	mu      sync.RWMutex
	byMatch map[int64]map[*Conn]struct{}
	byConn  map[*Conn]int64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byMatch: make(map[int64]map[*Conn]struct{}),
		byConn:  make(map[*Conn]int64),
	}
}

// Subscribe records c's interest in matchID, replacing any previous
// affinity. One affinity per connection.
func (r *Registry) Subscribe(c *Conn, matchID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byConn[c]; ok {
		r.dropLocked(c, prev)
	}
	set, ok := r.byMatch[matchID]
	if !ok {
		set = make(map[*Conn]struct{})
		r.byMatch[matchID] = set
	}
	set[c] = struct{}{}
	r.byConn[c] = matchID
}

// Unsubscribe removes c's affinity for matchID if it holds one.
func (r *Registry) Unsubscribe(c *Conn, matchID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.byConn[c]; ok && cur == matchID {
		r.dropLocked(c, cur)
		delete(r.byConn, c)
	}
}

// Remove deletes the connection from both directions.
func (r *Registry) Remove(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if matchID, ok := r.byConn[c]; ok {
		r.dropLocked(c, matchID)
	}
	delete(r.byConn, c)
}

// dropLocked removes c from a match group, pruning the group when empty.
func (r *Registry) dropLocked(c *Conn, matchID int64) {
	if set, ok := r.byMatch[matchID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(r.byMatch, matchID)
		}
	}
}

// MatchFor returns the connection's current affinity.
func (r *Registry) MatchFor(c *Conn) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byConn[c]
	return id, ok
}

// ConnsFor snapshots the connections subscribed to matchID.
func (r *Registry) ConnsFor(matchID int64) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byMatch[matchID]
	out := make([]*Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// Stats summarizes the registry for the admin snapshot.
type Stats struct {
	TotalConnections       int           `json:"total_connections"`
	MatchesWithConnections int           `json:"matches_with_connections"`
	PerMatch               map[int64]int `json:"per_match"`
}

// Snapshot returns current subscriber counts.
func (r *Registry) Snapshot() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{
		TotalConnections:       len(r.byConn),
		MatchesWithConnections: len(r.byMatch),
		PerMatch:               make(map[int64]int, len(r.byMatch)),
	}
	for id, set := range r.byMatch {
		s.PerMatch[id] = len(set)
	}
	return s
}

// Empty reports whether both directions are empty. Used by tests and the
// hub's shutdown path.
func (r *Registry) Empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn) == 0 && len(r.byMatch) == 0
}
