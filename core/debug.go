package core

import (
	"errors"
	"expvar"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/encodeous/metric"
	"github.com/encodeous/weave/state"
)

// DebugServer exposes the link table, commands, and perf metrics over a local
// HTTP listener. This is the surface the messenger UI (and `weave inspect`)
// observe.
type DebugServer struct {
	env   *state.Env
	links *LinkMgr
	srv   *http.Server
}

func (d *DebugServer) Init(s *state.State) error {
	d.env = s.Env
	d.links = Get[*LinkMgr](s)

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/links", d.handleLinks)
	mux.HandleFunc("/debug/links/watch", d.handleWatch)
	mux.HandleFunc("/debug/links/open", d.command((*LinkMgr).Open))
	mux.HandleFunc("/debug/links/close", d.command((*LinkMgr).Close))
	mux.HandleFunc("/debug/links/activity", d.commandTs((*LinkMgr).RecordActivity))
	mux.HandleFunc("/debug/links/sent", d.commandTs((*LinkMgr).RecordSent))
	mux.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	mux.Handle("/debug/vars", expvar.Handler())

	ln, err := net.Listen("tcp", s.DebugBind)
	if err != nil {
		return err
	}
	d.srv = &http.Server{Handler: mux}
	go func() {
		err := d.srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Log.Error("debug server failed", "error", err)
		}
	}()
	s.Log.Info("debug endpoint listening", "addr", s.DebugBind)
	return nil
}

func (d *DebugServer) Cleanup(s *state.State) error {
	if d.srv != nil {
		return d.srv.Close()
	}
	return nil
}

func (d *DebugServer) peerArg(w http.ResponseWriter, r *http.Request) (state.PeerAddr, bool) {
	peer, err := state.ParsePeerAddr(r.URL.Query().Get("peer"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return state.PeerAddr{}, false
	}
	return peer, true
}

func (d *DebugServer) command(fn func(*LinkMgr, state.PeerAddr)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		peer, ok := d.peerArg(w, r)
		if !ok {
			return
		}
		go fn(d.links, peer)
		fmt.Fprintln(w, "ok")
	}
}

func (d *DebugServer) commandTs(fn func(*LinkMgr, state.PeerAddr, int64)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		peer, ok := d.peerArg(w, r)
		if !ok {
			return
		}
		fn(d.links, peer, 0)
		fmt.Fprintln(w, "ok")
	}
}

func (d *DebugServer) handleLinks(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(renderLinks(d.env.Links.Snapshot(), d.env.NowMillis())))
}

// handleWatch streams the link table to the client on every store mutation
// until the client goes away.
func (d *DebugServer) handleWatch(w http.ResponseWriter, r *http.Request) {
	ch, cancel := d.env.Links.Subscribe()
	defer cancel()
	flusher, _ := w.(http.Flusher)
	for {
		select {
		case <-r.Context().Done():
			return
		case <-d.env.Context.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			_, err := w.Write([]byte(renderLinks(snap, d.env.NowMillis())))
			if err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func renderLinks(snap map[string]state.LinkState, now int64) string {
	sb := strings.Builder{}
	sb.WriteString("Links:\n")
	if len(snap) == 0 {
		sb.WriteString(" (none)\n")
	}
	entries := make([]string, 0, len(snap))
	for key, ls := range snap {
		entries = append(entries, formatLink(key, ls, now))
	}
	slices.Sort(entries)
	sb.WriteString(strings.Join(entries, ""))
	return sb.String()
}

func formatLink(key string, ls state.LinkState, now int64) string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf(" - %s\n", key))
	sb.WriteString(fmt.Sprintf("   Status: %s\n", linkStatus(ls)))
	if rate, ok := ls.BestRate(); ok {
		sb.WriteString(fmt.Sprintf("   Best Rate: %d bps\n", rate))
	}
	sb.WriteString(fmt.Sprintf("   Preset: %s\n", state.RecommendPreset(ls)))
	if ls.Hops != nil {
		sb.WriteString(fmt.Sprintf("   Hops: %d\n", *ls.Hops))
	}
	if ls.RTT != nil {
		sb.WriteString(fmt.Sprintf("   RTT: %.3fs\n", *ls.RTT))
	}
	if ls.MTU != nil {
		sb.WriteString(fmt.Sprintf("   MTU: %d\n", *ls.MTU))
	}
	sb.WriteString(fmt.Sprintf("   Last Activity: %s ago\n", millisAgo(now, ls.LastActivity)))
	sb.WriteString(fmt.Sprintf("   Last Sent: %s ago\n", millisAgo(now, ls.LastSent)))
	return sb.String()
}

func linkStatus(ls state.LinkState) string {
	switch {
	case ls.Establishing:
		return "establishing"
	case ls.Active:
		return "active"
	case ls.Err != "":
		return fmt.Sprintf("failed (%s)", ls.Err)
	default:
		return "inactive"
	}
}

func millisAgo(now, then int64) string {
	if then == 0 {
		return "never"
	}
	return (time.Duration(now-then) * time.Millisecond).Round(time.Second).String()
}
