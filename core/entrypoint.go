package core

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"reflect"
	"runtime"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/encodeous/tint"
	"github.com/encodeous/weave/mock"
	"github.com/encodeous/weave/perf"
	"github.com/encodeous/weave/state"
	"github.com/goccy/go-yaml"
	slogmulti "github.com/samber/slog-multi"
)

func ReadLocalConfig(configPath string) (*state.LocalCfg, error) {
	var cfg state.LocalCfg
	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(file, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Bootstrap manages the lifetime of the whole application: it loads and
// validates the config, builds the transport, and runs the node until
// shutdown.
func Bootstrap(configPath, logPath string, verbose bool) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	cfg, err := ReadLocalConfig(configPath)
	if err != nil {
		return err
	}
	if logPath != "" {
		cfg.LogPath = logPath
	}
	err = state.LocalConfigValidator(cfg)
	if err != nil {
		return err
	}
	if cfg.Sim == nil {
		return errors.New("no transport configured: add a sim section to the config")
	}

	clk := clock.New()
	mesh := mock.NewSimMesh(*cfg.Sim, clk)
	return Start(*cfg, level, mesh, clk, nil)
}

// Start runs a weave node against the given transport until its context is
// cancelled. initState, when non-nil, receives the node's state before the
// main loop begins (used by tests and harnesses).
func Start(cfg state.LocalCfg, logLevel slog.Level, mesh state.Mesh, clk clock.Clock, initState **state.State) error {
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	dispatch := make(chan func(s *state.State) error, 128)

	handlers := make([]slog.Handler, 0)
	handlers = append(handlers,
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:        logLevel,
			AddSource:    false,
			CustomPrefix: string(cfg.Id),
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				if attr.Key == "time" {
					return slog.Attr{}
				}
				return attr
			},
		}))

	if cfg.LogPath != "" {
		err := os.MkdirAll(path.Dir(cfg.LogPath), 0700)
		if err != nil {
			return err
		}
		f, err := os.OpenFile(cfg.LogPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0700)
		if err != nil {
			return err
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: logLevel}))
	}

	logger := slog.New(
		slogmulti.Fanout(handlers...))

	cfg.ApplyTuning()
	if cfg.DebugBind == "" {
		cfg.DebugBind = state.DefaultDebugBind
	}

	s := state.State{
		Modules: make(map[string]state.WvModule),
		Env: &state.Env{
			Context:         ctx,
			Cancel:          cancel,
			DispatchChannel: dispatch,
			LocalCfg:        cfg,
			Links:           state.NewLinkStore(),
			Mesh:            mesh,
			Clock:           clk,
			Log:             logger,
		},
	}
	if initState != nil {
		*initState = &s
	}

	s.Log.Info("init modules")
	err := initModules(&s)
	if err != nil {
		return err
	}
	s.Log.Info("init modules complete")

	if cfg.Sim != nil {
		openSimPeers(&s)
	}

	s.Log.Info("Weave has been initialized. To gracefully exit, send SIGINT or Ctrl+C.")

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-c:
			s.Cancel(errors.New("received shutdown signal"))
		case <-ctx.Done():
			return
		}
	}()

	return MainLoop(&s, dispatch)
}

func initModules(s *state.State) error {
	var modules []state.WvModule
	modules = append(modules, &LinkMgr{})
	modules = append(modules, &DebugServer{})

	for _, module := range modules {
		s.Modules[reflect.TypeOf(module).String()] = module
		if err := module.Init(s); err != nil {
			return err
		}
	}
	return nil
}

// openSimPeers kicks off establishment toward every configured sim peer, the
// way the messenger opens links when conversations come into view.
func openSimPeers(s *state.State) {
	lm := Get[*LinkMgr](s)
	for _, peer := range s.Sim.Peers {
		addr := mock.AddrForName(peer.Name)
		s.Log.Info("opening link", "name", peer.Name, "peer", addr.Short())
		go lm.Open(addr)
	}
}

func MainLoop(s *state.State, dispatch <-chan func(*state.State) error) error {
	s.Log.Debug("started main loop")
	s.Started.Store(true)
	for {
		select {
		case fun := <-dispatch:
			if fun == nil {
				goto endLoop
			}
			start := time.Now()
			err := fun(s)
			if err != nil {
				s.Log.Error("error occurred during dispatch: ", "error", err)
				s.Cancel(err)
			}
			elapsed := time.Since(start)
			perf.DispatchLatency.Add(float64(elapsed.Microseconds()))
			if elapsed > time.Millisecond*4 {
				s.Log.Warn("dispatch took a long time!", "fun", runtime.FuncForPC(reflect.ValueOf(fun).Pointer()).Name(), "elapsed", elapsed, "len", len(dispatch))
			}
		case <-s.Context.Done():
			goto endLoop
		}
	}
endLoop:
	s.Log.Info("stopped main loop", "reason", context.Cause(s.Context).Error())
	Stop(s)
	return nil
}

func Stop(s *state.State) {
	if s.Stopping.Swap(true) {
		return // don't stop twice
	}
	s.Cancel(context.Canceled)
	if s.DispatchChannel != nil {
		close(s.DispatchChannel)
		s.DispatchChannel = nil
	}
	s.Log.Info("cleaning up modules")
	for moduleName, module := range s.Modules {
		err := module.Cleanup(s)
		if err != nil {
			s.Log.Error("error occurred during Stop: ", "module", moduleName, "error", err)
		}
	}
	s.Log.Info("stopped")
}
