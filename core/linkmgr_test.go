package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/encodeous/weave/state"
	"github.com/stretchr/testify/assert"
)

// fakeMesh is a scriptable transport for exercising the link manager without
// the sim. Establishment can be gated to hold attempts in flight.
type fakeMesh struct {
	mu           sync.Mutex
	establishes  map[string]int
	info         map[string]state.LinkInfo
	establishErr map[string]error
	statusErr    map[string]error
	statusCalls  map[string]int
	closed       map[string]int
	closeErr     error

	gate    chan struct{} // when non-nil, establishment blocks until closed
	started chan struct{} // receives one token per establishment attempt
}

func newFakeMesh() *fakeMesh {
	return &fakeMesh{
		establishes:  make(map[string]int),
		info:         make(map[string]state.LinkInfo),
		establishErr: make(map[string]error),
		statusErr:    make(map[string]error),
		statusCalls:  make(map[string]int),
		closed:       make(map[string]int),
	}
}

func (f *fakeMesh) EstablishLink(ctx context.Context, peer state.PeerAddr) (state.LinkInfo, error) {
	f.mu.Lock()
	f.establishes[peer.String()]++
	gate, started := f.gate, f.started
	info := f.info[peer.String()]
	err := f.establishErr[peer.String()]
	f.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return state.LinkInfo{}, ctx.Err()
		}
	}
	if err != nil {
		return state.LinkInfo{}, err
	}
	return info, nil
}

func (f *fakeMesh) CloseLink(ctx context.Context, peer state.PeerAddr) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed[peer.String()]++
	return true, f.closeErr
}

func (f *fakeMesh) LinkStatus(ctx context.Context, peer state.PeerAddr) (state.LinkInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls[peer.String()]++
	if err := f.statusErr[peer.String()]; err != nil {
		return state.LinkInfo{}, err
	}
	return f.info[peer.String()], nil
}

func (f *fakeMesh) setInfo(peer state.PeerAddr, info state.LinkInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.info[peer.String()] = info
}

func (f *fakeMesh) establishCount(peer state.PeerAddr) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.establishes[peer.String()]
}

func (f *fakeMesh) closeCount(peer state.PeerAddr) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed[peer.String()]
}

func newTestMgr(t *testing.T, mesh *fakeMesh, clk clock.Clock) *LinkMgr {
	ctx, cancel := context.WithCancelCause(context.Background())
	t.Cleanup(func() { cancel(context.Canceled) })
	env := &state.Env{
		Links:   state.NewLinkStore(),
		Mesh:    mesh,
		Clock:   clk,
		Context: ctx,
		Cancel:  cancel,
		Log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return &LinkMgr{env: env}
}

func activeInfo() state.LinkInfo {
	rate := uint64(100_000)
	hops := uint32(1)
	return state.LinkInfo{Active: true, EstablishmentRate: &rate, Hops: &hops}
}

func peerA() state.PeerAddr { return state.MustParsePeerAddr("000102030405060708090a0b0c0d0e0f") }
func peerB() state.PeerAddr { return state.MustParsePeerAddr("f0f1f2f3f4f5f6f7f8f9fafbfcfdfeff") }

func TestOpenEstablishesLink(t *testing.T) {
	mesh := newFakeMesh()
	mesh.setInfo(peerA(), activeInfo())
	m := newTestMgr(t, mesh, clock.New())

	m.Open(peerA())
	ls, ok := m.GetState(peerA())
	assert.True(t, ok)
	assert.True(t, ls.Active)
	assert.False(t, ls.Establishing)
	assert.Equal(t, uint64(100_000), *ls.EstablishmentRate)
	assert.Equal(t, 1, mesh.establishCount(peerA()))
}

func TestOpenActivePeerIsNoop(t *testing.T) {
	mesh := newFakeMesh()
	mesh.setInfo(peerA(), activeInfo())
	m := newTestMgr(t, mesh, clock.New())

	m.Open(peerA())
	m.Open(peerA())
	assert.Equal(t, 1, mesh.establishCount(peerA()))
}

func TestConcurrentOpensSingleAttempt(t *testing.T) {
	mesh := newFakeMesh()
	mesh.setInfo(peerA(), activeInfo())
	mesh.gate = make(chan struct{})
	mesh.started = make(chan struct{}, 8)
	m := newTestMgr(t, mesh, clock.New())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Open(peerA())
		}()
	}
	<-mesh.started // one attempt is in flight
	ls, _ := m.GetState(peerA())
	assert.True(t, ls.Establishing)
	close(mesh.gate)
	wg.Wait()

	assert.Equal(t, 1, mesh.establishCount(peerA()))
	ls, _ = m.GetState(peerA())
	assert.True(t, ls.Active)
}

func TestOpenFailureStored(t *testing.T) {
	mesh := newFakeMesh()
	mesh.establishErr[peerA().String()] = errors.New("no route")
	m := newTestMgr(t, mesh, clock.New())

	m.Open(peerA())
	ls, ok := m.GetState(peerA())
	assert.True(t, ok)
	assert.False(t, ls.Active)
	assert.False(t, ls.Establishing)
	assert.Equal(t, "no route", ls.Err)

	// the failure does not block a retry
	m.Open(peerA())
	assert.Equal(t, 2, mesh.establishCount(peerA()))
}

func TestOpenAfterFailureClearsError(t *testing.T) {
	mesh := newFakeMesh()
	mesh.establishErr[peerA().String()] = errors.New("no route")
	m := newTestMgr(t, mesh, clock.New())
	m.Open(peerA())

	delete(mesh.establishErr, peerA().String())
	mesh.setInfo(peerA(), activeInfo())
	m.Open(peerA())
	ls, _ := m.GetState(peerA())
	assert.True(t, ls.Active)
	assert.Empty(t, ls.Err)
}

func TestCloseDuringEstablishNotResurrected(t *testing.T) {
	mesh := newFakeMesh()
	mesh.setInfo(peerA(), activeInfo())
	mesh.gate = make(chan struct{})
	mesh.started = make(chan struct{}, 1)
	m := newTestMgr(t, mesh, clock.New())

	done := make(chan struct{})
	go func() {
		m.Open(peerA())
		close(done)
	}()
	<-mesh.started
	m.Close(peerA())
	close(mesh.gate)
	<-done

	_, ok := m.GetState(peerA())
	assert.False(t, ok)
}

func TestCloseRemovesEntryDespiteTransportError(t *testing.T) {
	mesh := newFakeMesh()
	mesh.setInfo(peerA(), activeInfo())
	mesh.closeErr = errors.New("transport gone")
	m := newTestMgr(t, mesh, clock.New())

	m.Open(peerA())
	m.Close(peerA())
	_, ok := m.GetState(peerA())
	assert.False(t, ok)
	assert.Equal(t, 1, mesh.closeCount(peerA()))
}

func TestRecordActivityCreatesMinimalEntry(t *testing.T) {
	mesh := newFakeMesh()
	clk := clock.NewMock()
	clk.Add(time.Hour)
	m := newTestMgr(t, mesh, clk)

	m.RecordActivity(peerA(), 0)
	ls, ok := m.GetState(peerA())
	assert.True(t, ok)
	assert.False(t, ls.Active)
	assert.False(t, ls.Establishing)
	assert.Equal(t, clk.Now().UnixMilli(), ls.LastActivity)
	assert.Equal(t, clk.Now().UnixMilli(), ls.LastSent)
}

func TestRecordActivityDoesNotResetSendTimer(t *testing.T) {
	mesh := newFakeMesh()
	clk := clock.NewMock()
	clk.Add(time.Hour)
	m := newTestMgr(t, mesh, clk)

	m.RecordSent(peerA(), 0)
	sent := clk.Now().UnixMilli()
	clk.Add(time.Minute)
	m.RecordActivity(peerA(), 0)

	ls, _ := m.GetState(peerA())
	assert.Equal(t, clk.Now().UnixMilli(), ls.LastActivity)
	assert.Equal(t, sent, ls.LastSent)
}

func TestRecordActivityExplicitTimestamp(t *testing.T) {
	mesh := newFakeMesh()
	m := newTestMgr(t, mesh, clock.NewMock())

	m.RecordActivity(peerA(), 12345)
	ls, _ := m.GetState(peerA())
	assert.Equal(t, int64(12345), ls.LastActivity)
}

func TestRefreshMergesStatus(t *testing.T) {
	mesh := newFakeMesh()
	mesh.setInfo(peerA(), activeInfo())
	m := newTestMgr(t, mesh, clock.New())
	m.Open(peerA())

	// a later probe reports a measured rate but omits the handshake rate
	rate := uint64(42_000)
	mesh.setInfo(peerA(), state.LinkInfo{Active: true, ExpectedRate: &rate})
	ls := m.Refresh(peerA())
	assert.True(t, ls.Active)
	assert.Equal(t, uint64(42_000), *ls.ExpectedRate)
	assert.Equal(t, uint64(100_000), *ls.EstablishmentRate)
	assert.Equal(t, uint32(1), *ls.Hops)
}

func TestRefreshErrorStored(t *testing.T) {
	mesh := newFakeMesh()
	mesh.setInfo(peerA(), activeInfo())
	m := newTestMgr(t, mesh, clock.New())
	m.Open(peerA())

	mesh.statusErr[peerA().String()] = errors.New("unknown destination")
	ls := m.Refresh(peerA())
	assert.False(t, ls.Active)
	assert.Equal(t, "unknown destination", ls.Err)
	// metrics from before the failure survive
	assert.Equal(t, uint64(100_000), *ls.EstablishmentRate)
}

func TestRefreshIncomingLinkKeepsSendTimer(t *testing.T) {
	mesh := newFakeMesh()
	clk := clock.NewMock()
	clk.Add(time.Hour)
	m := newTestMgr(t, mesh, clk)

	m.RecordActivity(peerA(), 0)
	created := clk.Now().UnixMilli()
	clk.Add(time.Minute)

	// the peer opened a link toward us
	mesh.setInfo(peerA(), activeInfo())
	ls := m.Refresh(peerA())
	assert.True(t, ls.Active)
	assert.Equal(t, clk.Now().UnixMilli(), ls.LastActivity)
	assert.Equal(t, created, ls.LastSent)
}

func TestRefreshErrorSkipsEstablishingPeer(t *testing.T) {
	mesh := newFakeMesh()
	mesh.setInfo(peerA(), activeInfo())
	mesh.gate = make(chan struct{})
	mesh.started = make(chan struct{}, 1)
	m := newTestMgr(t, mesh, clock.New())

	done := make(chan struct{})
	go func() {
		m.Open(peerA())
		close(done)
	}()
	<-mesh.started

	mesh.mu.Lock()
	mesh.statusErr[peerA().String()] = errors.New("unknown destination")
	mesh.mu.Unlock()

	// a failing probe must not scribble an error over the in-flight attempt
	ls := m.Refresh(peerA())
	assert.True(t, ls.Establishing)
	assert.Empty(t, ls.Err)

	close(mesh.gate)
	<-done
	ls, _ = m.GetState(peerA())
	assert.True(t, ls.Active)
	assert.Empty(t, ls.Err)
}

func TestRefreshSkipsEstablishingPeer(t *testing.T) {
	mesh := newFakeMesh()
	mesh.setInfo(peerA(), activeInfo())
	mesh.gate = make(chan struct{})
	mesh.started = make(chan struct{}, 1)
	m := newTestMgr(t, mesh, clock.New())

	done := make(chan struct{})
	go func() {
		m.Open(peerA())
		close(done)
	}()
	<-mesh.started

	ls := m.Refresh(peerA())
	assert.True(t, ls.Establishing, "in-flight attempt owns the transition")
	close(mesh.gate)
	<-done
}
