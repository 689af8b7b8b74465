package core

import (
	"time"

	"github.com/encodeous/weave/state"
)

// startLoops lazily spawns the background loops. The CAS guards make sure
// concurrent callers opening links at the same time never spawn two copies of
// a loop.
func (m *LinkMgr) startLoops() {
	if m.monitorRunning.CompareAndSwap(false, true) {
		go m.inactivityMonitor()
	}
	if m.refresherRunning.CompareAndSwap(false, true) {
		go m.refresher()
	}
}

// inactivityMonitor closes links that have gone without an outbound send for
// longer than InactivityThreshold. Only messages sent by this node reset the
// timer, so a purely passive link is not kept alive indefinitely by its own
// idle traffic. The loop exits once the store empties; the next Open or
// recorded activity restarts it.
// monitorStopped releases the loop claim. An Open or recorded activity that
// raced the shutdown saw the claim still held and skipped its spawn, so the
// exiting loop restarts on their behalf when peers remain.
func (m *LinkMgr) monitorStopped() {
	m.monitorRunning.Store(false)
	if m.env.Context.Err() == nil && m.env.Links.Len() > 0 {
		m.startLoops()
	}
}

func (m *LinkMgr) inactivityMonitor() {
	defer m.monitorStopped()
	e := m.env
	e.Log.Debug("inactivity monitor start")
	ticker := e.Clock.Ticker(state.InactivityCheckDelay)
	defer ticker.Stop()
	for {
		select {
		case <-e.Context.Done():
			return
		case <-ticker.C:
			snap := e.Links.Snapshot()
			if len(snap) == 0 {
				e.Log.Debug("inactivity monitor stop, no tracked peers")
				return
			}
			now := e.NowMillis()
			for key, ls := range snap {
				if !ls.Active {
					continue
				}
				idle := now - ls.LastSent
				if idle <= state.InactivityThreshold.Milliseconds() {
					continue
				}
				peer, err := state.ParsePeerAddr(key)
				if err != nil {
					continue
				}
				e.Log.Info("closing idle link", "peer", peer.Short(),
					"idle", (time.Duration(idle) * time.Millisecond).Round(time.Second))
				m.Close(peer)
			}
		}
	}
}
