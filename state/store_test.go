package state

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func testPeer(i int) PeerAddr {
	return MustParsePeerAddr(fmt.Sprintf("%032x", i))
}

func TestStoreSetGetDelete(t *testing.T) {
	s := NewLinkStore()
	p := testPeer(1)

	_, ok := s.Get(p)
	assert.False(t, ok)

	s.Set(p, LinkState{Active: true, LastSent: 42})
	ls, ok := s.Get(p)
	assert.True(t, ok)
	assert.True(t, ls.Active)
	assert.Equal(t, int64(42), ls.LastSent)
	assert.Equal(t, 1, s.Len())

	assert.True(t, s.Delete(p))
	assert.False(t, s.Delete(p))
	assert.Equal(t, 0, s.Len())
}

func TestStoreSnapshotImmutable(t *testing.T) {
	s := NewLinkStore()
	p1, p2 := testPeer(1), testPeer(2)
	s.Set(p1, LinkState{Active: true})

	before := s.Snapshot()
	s.Set(p2, LinkState{})
	s.Delete(p1)

	// the old snapshot is unaffected by later writes
	assert.Equal(t, 1, len(before))
	assert.True(t, before[p1.String()].Active)
	after := s.Snapshot()
	if diff := cmp.Diff(map[string]LinkState{p2.String(): {}}, after); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreUpdateConditional(t *testing.T) {
	s := NewLinkStore()
	p := testPeer(1)
	s.Set(p, LinkState{Active: true})

	prev, committed := s.Update(p, func(prev LinkState, exists bool) (LinkState, bool) {
		assert.True(t, exists)
		return LinkState{}, false
	})
	assert.False(t, committed)
	assert.True(t, prev.Active)

	next, committed := s.Update(p, func(prev LinkState, exists bool) (LinkState, bool) {
		prev.Err = "probe failed"
		return prev, true
	})
	assert.True(t, committed)
	assert.Equal(t, "probe failed", next.Err)
	ls, _ := s.Get(p)
	assert.Equal(t, "probe failed", ls.Err)
}

func TestStoreConcurrentWriters(t *testing.T) {
	s := NewLinkStore()
	n := 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := testPeer(i)
			for j := 0; j < 10; j++ {
				s.Update(p, func(prev LinkState, exists bool) (LinkState, bool) {
					prev.LastActivity++
					return prev, true
				})
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, n, s.Len())
	for i := 0; i < n; i++ {
		ls, ok := s.Get(testPeer(i))
		assert.True(t, ok)
		assert.Equal(t, int64(10), ls.LastActivity)
	}
}

func TestStoreSubscribe(t *testing.T) {
	s := NewLinkStore()
	p := testPeer(1)
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Set(p, LinkState{Active: true})
	snap := <-ch
	assert.True(t, snap[p.String()].Active)

	// a slow subscriber only ever sees the latest snapshot
	s.Set(p, LinkState{Active: false, Err: "first"})
	s.Set(p, LinkState{Active: false, Err: "second"})
	snap = <-ch
	assert.Equal(t, "second", snap[p.String()].Err)
}

func TestStoreSubscribeSeedsCurrentSnapshot(t *testing.T) {
	s := NewLinkStore()
	p := testPeer(1)
	s.Set(p, LinkState{Active: true})

	ch, cancel := s.Subscribe()
	defer cancel()
	select {
	case snap := <-ch:
		assert.True(t, snap[p.String()].Active)
	default:
		t.Fatal("subscription should start with the current snapshot")
	}
}

func TestStoreSubscribePublishOrder(t *testing.T) {
	// concurrent writers must reach subscribers in commit order, so the final
	// emission is always the store's latest snapshot
	for i := 0; i < 500; i++ {
		s := NewLinkStore()
		ch, cancel := s.Subscribe()
		var wg sync.WaitGroup
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func(j int) {
				defer wg.Done()
				s.Set(testPeer(j), LinkState{})
			}(j)
		}
		wg.Wait()
		var last map[string]LinkState
	drain:
		for {
			select {
			case snap := <-ch:
				last = snap
			default:
				break drain
			}
		}
		if !assert.Equal(t, 2, len(last), "iteration %d: final emission is stale", i) {
			break
		}
		cancel()
	}
}

func TestStoreSubscribeCancel(t *testing.T) {
	s := NewLinkStore()
	ch, cancel := s.Subscribe()
	<-ch // seeded snapshot
	cancel()
	_, open := <-ch
	assert.False(t, open)
	// publishing after cancel must not panic
	s.Set(testPeer(1), LinkState{})
	cancel()
}
