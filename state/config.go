package state

import "time"

type NodeId string

// LocalCfg represents local node-level configuration
type LocalCfg struct {
	Id        NodeId `yaml:"id"`
	DebugBind string `yaml:"debug_bind,omitempty"` // address of the local debug/inspect HTTP listener
	LogPath   string `yaml:"log_path,omitempty"`   // if not empty, weave will also write logs to this file

	// tuning overrides; zero values keep the defaults
	InactivityTimeout time.Duration `yaml:"inactivity_timeout,omitempty"`
	RefreshInterval   time.Duration `yaml:"refresh_interval,omitempty"`

	Sim *SimCfg `yaml:"sim,omitempty"` // simulated mesh used by `weave run`
}

// ApplyTuning folds config overrides into the package-level timing defaults.
func (c *LocalCfg) ApplyTuning() {
	if c.InactivityTimeout > 0 {
		InactivityThreshold = c.InactivityTimeout
	}
	if c.RefreshInterval > 0 {
		RefreshDelay = c.RefreshInterval
	}
}

// SimCfg describes an in-memory mesh for running weave without a real
// transport. Each peer gets a deterministic address derived from its name.
type SimCfg struct {
	Seed  int64        `yaml:"seed,omitempty"`
	Peers []SimPeerCfg `yaml:"peers"`
}

type SimPeerCfg struct {
	Name        string  `yaml:"name"`
	Unreachable bool    `yaml:"unreachable,omitempty"` // establishment always fails
	FailRate    float64 `yaml:"fail_rate,omitempty"`   // probability an establishment attempt fails

	Hops              uint32  `yaml:"hops,omitempty"`
	EstablishmentRate uint64  `yaml:"establishment_rate,omitempty"` // bps measured during handshake
	ExpectedRate      uint64  `yaml:"expected_rate,omitempty"`      // bps reported after data transfer
	NextHopBitrate    uint64  `yaml:"next_hop_bitrate,omitempty"`   // bps of the first-hop interface
	RTT               float64 `yaml:"rtt,omitempty"`                // seconds
	MTU               uint32  `yaml:"mtu,omitempty"`

	EstablishDelay time.Duration `yaml:"establish_delay,omitempty"` // simulated handshake latency
	LinkExpiry     time.Duration `yaml:"link_expiry,omitempty"`     // transport-side idle expiry
	Opens          bool          `yaml:"opens,omitempty"`           // peer opens links toward us
}
