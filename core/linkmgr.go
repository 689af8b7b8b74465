package core

import (
	"context"
	"sync/atomic"

	"github.com/encodeous/weave/perf"
	"github.com/encodeous/weave/state"
	"github.com/google/uuid"
)

// LinkMgr owns the lifecycle of per-peer links: it drives establishment and
// teardown through the mesh transport, records peer activity, and lazily runs
// the two background loops that reconcile the link table against the
// transport's view.
type LinkMgr struct {
	env *state.Env

	monitorRunning   atomic.Bool
	refresherRunning atomic.Bool
}

func (m *LinkMgr) Init(s *state.State) error {
	s.Log.Debug("init link manager")
	m.env = s.Env
	s.Env.RepeatTask(logLinkTable, state.LinkTableLogDelay)
	return nil
}

func (m *LinkMgr) Cleanup(s *state.State) error {
	return nil
}

func logLinkTable(s *state.State) error {
	snap := s.Links.Snapshot()
	if len(snap) == 0 {
		return nil
	}
	active, establishing := 0, 0
	for _, ls := range snap {
		if ls.Active {
			active++
		}
		if ls.Establishing {
			establishing++
		}
	}
	s.Log.Debug("link table", "tracked", len(snap), "active", active, "establishing", establishing)
	return nil
}

// Open negotiates a link to the peer. A peer that is already active or mid
// establishment is left alone, so concurrent callers produce exactly one
// transport call. Blocks up to EstablishTimeout; failures are stored on the
// entry rather than returned.
func (m *LinkMgr) Open(peer state.PeerAddr) {
	e := m.env
	now := e.NowMillis()
	_, claimed := e.Links.Update(peer, func(prev state.LinkState, exists bool) (state.LinkState, bool) {
		if exists && (prev.Active || prev.Establishing) {
			return prev, false
		}
		next := prev
		next.Active = false
		next.Establishing = true
		next.Err = ""
		// a self-initiated link starts its own idle window
		next.LastSent = now
		if !exists {
			next.LastActivity = now
		}
		return next, true
	})
	if !claimed {
		return
	}
	m.startLoops()

	attempt := uuid.NewString()[:8]
	e.Log.Debug("establishing link", "peer", peer.Short(), "attempt", attempt)
	perf.EstablishesPerSecond.Add(1)
	start := e.Clock.Now()
	ctx, cancel := context.WithTimeout(e.Context, state.EstablishTimeout)
	info, err := e.Mesh.EstablishLink(ctx, peer)
	cancel()
	elapsed := e.Clock.Now().Sub(start)
	perf.EstablishLatency.Add(float64(elapsed.Milliseconds()))

	if err != nil {
		perf.EstablishFailures.Add(1)
		e.Log.Debug("link establishment failed", "peer", peer.Short(), "attempt", attempt, "err", err)
		e.Links.Update(peer, func(prev state.LinkState, exists bool) (state.LinkState, bool) {
			if !exists {
				// closed while the attempt was in flight, do not resurrect
				return prev, false
			}
			next := prev
			next.Active = false
			next.Establishing = false
			next.Err = err.Error()
			return next, true
		})
		return
	}

	e.Log.Debug("link established", "peer", peer.Short(), "attempt", attempt,
		"elapsed", elapsed, "existing", info.AlreadyExisted)
	e.Links.Update(peer, func(prev state.LinkState, exists bool) (state.LinkState, bool) {
		if !exists {
			return prev, false
		}
		next := prev.Merge(info)
		next.Active = info.Active
		next.Establishing = false
		next.Err = ""
		next.LastActivity = e.NowMillis()
		return next, true
	})
}

// Close tears the link down and stops tracking the peer. Transport failures
// are logged only; the local entry is removed regardless.
func (m *LinkMgr) Close(peer state.PeerAddr) {
	e := m.env
	wasActive, err := e.Mesh.CloseLink(e.Context, peer)
	if err != nil {
		e.Log.Warn("failed to close link", "peer", peer.Short(), "err", err)
	} else if wasActive {
		perf.ClosesPerSecond.Add(1)
	}
	if e.Links.Delete(peer) {
		e.Log.Debug("stopped tracking peer", "peer", peer.Short())
	}
}

// RecordActivity notes relevant peer activity (message received, proof
// received) at ts, or now when ts <= 0. An untracked peer gets a minimal
// inactive entry, so passive signals register presence without implying an
// open link.
func (m *LinkMgr) RecordActivity(peer state.PeerAddr, ts int64) {
	e := m.env
	if ts <= 0 {
		ts = e.NowMillis()
	}
	e.Links.Update(peer, func(prev state.LinkState, exists bool) (state.LinkState, bool) {
		if !exists {
			return state.LinkState{LastActivity: ts, LastSent: ts}, true
		}
		next := prev
		next.LastActivity = ts
		return next, true
	})
	m.startLoops()
}

// RecordSent notes a message sent by this node, resetting the inactivity
// timer for the peer's link.
func (m *LinkMgr) RecordSent(peer state.PeerAddr, ts int64) {
	e := m.env
	if ts <= 0 {
		ts = e.NowMillis()
	}
	e.Links.Update(peer, func(prev state.LinkState, exists bool) (state.LinkState, bool) {
		next := prev
		next.LastActivity = ts
		next.LastSent = ts
		return next, true
	})
	m.startLoops()
}

func (m *LinkMgr) GetState(peer state.PeerAddr) (state.LinkState, bool) {
	return m.env.Links.Get(peer)
}

// Refresh synchronously queries the transport's link status and folds the
// result into the store. Transport errors are stored on the entry, never
// returned.
func (m *LinkMgr) Refresh(peer state.PeerAddr) state.LinkState {
	e := m.env
	info, err := e.Mesh.LinkStatus(e.Context, peer)
	if err != nil {
		now := e.NowMillis()
		ls, _ := e.Links.Update(peer, func(prev state.LinkState, exists bool) (state.LinkState, bool) {
			if exists && prev.Establishing {
				// the in-flight attempt owns the next transition
				return prev, false
			}
			next := prev
			next.Active = false
			next.Err = err.Error()
			if !exists {
				next.LastActivity = now
				next.LastSent = now
			}
			return next, true
		})
		return ls
	}
	return m.applyStatus(peer, info)
}

// applyStatus merges a transport-reported status into the store. A peer mid
// establishment is skipped: the in-flight attempt owns its next transition.
// An inactive entry reported active means the peer opened a link toward us;
// that counts as peer activity but deliberately leaves the send timer alone,
// since we are not responsible for an incoming link's keep-alive.
func (m *LinkMgr) applyStatus(peer state.PeerAddr, info state.LinkInfo) state.LinkState {
	e := m.env
	now := e.NowMillis()
	ls, _ := e.Links.Update(peer, func(prev state.LinkState, exists bool) (state.LinkState, bool) {
		if exists && prev.Establishing {
			return prev, false
		}
		next := prev.Merge(info)
		if !exists {
			next.LastActivity = now
			next.LastSent = now
		}
		if info.Active && !prev.Active {
			next.LastActivity = now
			next.Err = ""
		}
		next.Active = info.Active
		next.Establishing = false
		return next, true
	})
	return ls
}
