package state

import (
	"maps"
	"sync"
	"sync/atomic"
)

// LinkStore maps peer addresses (canonical hex) to link snapshots. The whole
// map is replaced atomically on every mutation, so readers always observe a
// complete, consistent snapshot without locking. Writers serialize their
// read-modify-write through a single mutex to avoid lost updates.
type LinkStore struct {
	mu    sync.Mutex
	links atomic.Pointer[map[string]LinkState]

	subMu   sync.Mutex
	subs    map[int]chan map[string]LinkState
	nextSub int
}

func NewLinkStore() *LinkStore {
	s := &LinkStore{
		subs: make(map[int]chan map[string]LinkState),
	}
	empty := make(map[string]LinkState)
	s.links.Store(&empty)
	return s
}

// Snapshot returns the current published map. Callers must treat it as
// read-only.
func (s *LinkStore) Snapshot() map[string]LinkState {
	return *s.links.Load()
}

func (s *LinkStore) Get(peer PeerAddr) (LinkState, bool) {
	ls, ok := s.Snapshot()[peer.String()]
	return ls, ok
}

func (s *LinkStore) Len() int {
	return len(s.Snapshot())
}

// Update applies fn to the peer's current snapshot under the writer lock.
// fn returns the replacement state and whether to commit it; returning false
// leaves the store untouched, which is how callers implement conditional
// transitions like establishment dedup. The resulting state and whether a
// write happened are returned.
func (s *LinkStore) Update(peer PeerAddr, fn func(prev LinkState, exists bool) (LinkState, bool)) (LinkState, bool) {
	key := peer.String()
	s.mu.Lock()
	cur := *s.links.Load()
	prev, exists := cur[key]
	next, commit := fn(prev, exists)
	if !commit {
		s.mu.Unlock()
		return prev, false
	}
	m := make(map[string]LinkState, len(cur)+1)
	maps.Copy(m, cur)
	m[key] = next
	s.links.Store(&m)
	s.publish(m)
	s.mu.Unlock()
	return next, true
}

func (s *LinkStore) Set(peer PeerAddr, ls LinkState) {
	s.Update(peer, func(LinkState, bool) (LinkState, bool) {
		return ls, true
	})
}

// Delete removes the peer's entry and reports whether one existed.
func (s *LinkStore) Delete(peer PeerAddr) bool {
	key := peer.String()
	s.mu.Lock()
	cur := *s.links.Load()
	if _, ok := cur[key]; !ok {
		s.mu.Unlock()
		return false
	}
	m := make(map[string]LinkState, len(cur))
	maps.Copy(m, cur)
	delete(m, key)
	s.links.Store(&m)
	s.publish(m)
	s.mu.Unlock()
	return true
}

// Subscribe registers an observer of store snapshots. The current snapshot is
// delivered immediately; after that every mutation emits the full map, and a
// subscriber that falls behind is skipped forward to the latest snapshot
// rather than blocking writers. The returned function cancels the
// subscription and closes the channel.
func (s *LinkStore) Subscribe() (<-chan map[string]LinkState, func()) {
	ch := make(chan map[string]LinkState, 1)
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.Snapshot()
	s.subMu.Unlock()
	cancel := func() {
		s.subMu.Lock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
		s.subMu.Unlock()
	}
	return ch, cancel
}

// publish runs with mu held so that emissions reach subscribers in commit
// order; every send below is non-blocking.
func (s *LinkStore) publish(snap map[string]LinkState) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// drop the stale snapshot and replace with the latest
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
