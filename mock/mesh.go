package mock

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/encodeous/weave/state"
	"golang.org/x/crypto/blake2b"
)

// SimMesh is an in-memory mesh transport with per-peer path profiles. It lets
// weave run and be tested without a radio: links expire server-side after an
// idle period, peers can be flaky or unreachable, and a peer can originate
// links toward the local node.
type SimMesh struct {
	mu    sync.Mutex
	clk   clock.Clock
	rng   *rand.Rand
	peers map[state.PeerAddr]*simPeer
}

type simPeer struct {
	cfg     state.SimPeerCfg
	active  bool
	lastUse time.Time
}

// AddrForName derives a stable peer address from a sim peer name, the way the
// mesh derives destination hashes from identities.
func AddrForName(name string) state.PeerAddr {
	sum := blake2b.Sum256([]byte(name))
	var addr state.PeerAddr
	copy(addr[:], sum[:state.PeerAddrSize])
	return addr
}

func NewSimMesh(cfg state.SimCfg, clk clock.Clock) *SimMesh {
	seed := uint64(cfg.Seed)
	if seed == 0 {
		seed = 1
	}
	m := &SimMesh{
		clk:   clk,
		rng:   rand.New(rand.NewPCG(seed, seed)),
		peers: make(map[state.PeerAddr]*simPeer),
	}
	for _, p := range cfg.Peers {
		m.peers[AddrForName(p.Name)] = &simPeer{cfg: p}
	}
	return m
}

func (m *SimMesh) Peers() []state.PeerAddr {
	m.mu.Lock()
	defer m.mu.Unlock()
	addrs := make([]state.PeerAddr, 0, len(m.peers))
	for addr := range m.peers {
		addrs = append(addrs, addr)
	}
	return addrs
}

func (m *SimMesh) EstablishLink(ctx context.Context, peer state.PeerAddr) (state.LinkInfo, error) {
	m.mu.Lock()
	p, ok := m.peers[peer]
	if !ok {
		m.mu.Unlock()
		return state.LinkInfo{}, fmt.Errorf("no path to %s", peer.Short())
	}
	delay := p.cfg.EstablishDelay
	fail := p.cfg.Unreachable || m.rng.Float64() < p.cfg.FailRate
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return state.LinkInfo{}, ctx.Err()
		case <-m.clk.After(delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return state.LinkInfo{}, err
	}
	if fail {
		return state.LinkInfo{}, fmt.Errorf("link request to %s timed out", peer.Short())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	existed := p.active
	p.active = true
	p.lastUse = m.clk.Now()
	info := p.info()
	info.AlreadyExisted = existed
	return info, nil
}

func (m *SimMesh) CloseLink(ctx context.Context, peer state.PeerAddr) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.peers[peer]
	if !ok {
		return false, fmt.Errorf("no path to %s", peer.Short())
	}
	was := p.active
	p.active = false
	return was, nil
}

func (m *SimMesh) LinkStatus(ctx context.Context, peer state.PeerAddr) (state.LinkInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.peers[peer]
	if !ok {
		return state.LinkInfo{}, fmt.Errorf("unknown destination %s", peer.Short())
	}
	now := m.clk.Now()
	if p.active && p.cfg.LinkExpiry > 0 && now.Sub(p.lastUse) > p.cfg.LinkExpiry {
		p.active = false
	}
	if !p.active && p.cfg.Opens {
		// the peer re-opens a link toward us as soon as it notices ours is gone
		p.active = true
		p.lastUse = now
	}
	return p.info(), nil
}

// Touch marks data transfer on the link, refreshing the transport-side idle
// expiry.
func (m *SimMesh) Touch(peer state.PeerAddr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.peers[peer]; ok && p.active {
		p.lastUse = m.clk.Now()
	}
}

func (p *simPeer) info() state.LinkInfo {
	info := state.LinkInfo{Active: p.active}
	if p.cfg.EstablishmentRate > 0 {
		v := p.cfg.EstablishmentRate
		info.EstablishmentRate = &v
	}
	if p.cfg.ExpectedRate > 0 {
		v := p.cfg.ExpectedRate
		info.ExpectedRate = &v
	}
	if p.cfg.NextHopBitrate > 0 {
		v := p.cfg.NextHopBitrate
		info.NextHopBitrate = &v
	}
	hops := p.cfg.Hops
	if hops == 0 {
		hops = 1
	}
	info.Hops = &hops
	if p.cfg.RTT > 0 {
		v := p.cfg.RTT
		info.RTT = &v
	}
	if p.cfg.MTU > 0 {
		v := p.cfg.MTU
		info.MTU = &v
	}
	return info
}
