package state

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/benbjohnson/clock"
)

type WvModule interface {
	Init(s *State) error
	Cleanup(s *State) error
}

// State access must be done only on the main Goroutine
type State struct {
	*Env
	Modules map[string]WvModule
}

// Env can be read from any Goroutine
type Env struct {
	DispatchChannel chan<- func(s *State) error
	LocalCfg
	// Links is the shared link table. Reads are lock-free snapshots.
	Links *LinkStore
	// Mesh is the external transport driving link establishment.
	Mesh    Mesh
	Clock   clock.Clock
	Context context.Context
	Cancel  context.CancelCauseFunc
	Log     *slog.Logger

	Started  atomic.Bool
	Stopping atomic.Bool
}

// NowMillis returns the current wall clock in unix milliseconds.
func (e *Env) NowMillis() int64 {
	return e.Clock.Now().UnixMilli()
}
