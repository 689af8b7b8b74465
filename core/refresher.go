package core

import (
	"github.com/encodeous/weave/perf"
	"github.com/encodeous/weave/state"
	"github.com/jellydator/ttlcache/v3"
)

// refresher polls the transport for every tracked peer not currently
// establishing. It detects links the peer opened toward us, notices active
// links the transport has silently expired, merges newly reported metrics,
// and evicts inactive entries nothing has touched for a long time. Peers
// whose status probe failed are skipped until a backoff TTL expires. Like the
// inactivity monitor, the loop exits once the store empties.
// refresherStopped mirrors monitorStopped for the refresher's claim.
func (m *LinkMgr) refresherStopped() {
	m.refresherRunning.Store(false)
	if m.env.Context.Err() == nil && m.env.Links.Len() > 0 {
		m.startLoops()
	}
}

func (m *LinkMgr) refresher() {
	defer m.refresherStopped()
	e := m.env
	e.Log.Debug("link refresher start")
	backoff := ttlcache.New[string, struct{}](
		ttlcache.WithTTL[string, struct{}](state.ProbeBackoffTTL),
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)
	ticker := e.Clock.Ticker(state.RefreshDelay)
	defer ticker.Stop()
	for {
		select {
		case <-e.Context.Done():
			return
		case <-ticker.C:
			snap := e.Links.Snapshot()
			if len(snap) == 0 {
				e.Log.Debug("link refresher stop, no tracked peers")
				return
			}
			backoff.DeleteExpired()
			now := e.NowMillis()
			for key, ls := range snap {
				if ls.Establishing {
					continue
				}
				peer, err := state.ParsePeerAddr(key)
				if err != nil {
					continue
				}
				if !ls.Active && now-ls.LastActivity > state.StaleCleanupThreshold.Milliseconds() {
					if e.Links.Delete(peer) {
						e.Log.Debug("evicted stale peer", "peer", peer.Short())
					}
					continue
				}
				if backoff.Has(key) {
					continue
				}
				info, err := e.Mesh.LinkStatus(e.Context, peer)
				if err != nil {
					// leave the entry untouched for this tick
					e.Log.Debug("link status probe failed", "peer", peer.Short(), "err", err)
					backoff.Set(key, struct{}{}, ttlcache.DefaultTTL)
					continue
				}
				perf.RefreshesPerSecond.Add(1)
				next := m.applyStatus(peer, info)
				if ls.Active && !next.Active {
					e.Log.Debug("link went stale", "peer", peer.Short())
				}
				if !ls.Active && next.Active {
					e.Log.Info("peer opened a link to us", "peer", peer.Short())
				}
			}
		}
	}
}
