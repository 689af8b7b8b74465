package state

import "time"

var (
	// EstablishTimeout bounds a single establishment attempt. An online peer
	// should answer quickly, so fail fast and let the caller retry.
	EstablishTimeout = time.Second * 5

	// InactivityCheckDelay is the inactivity monitor tick interval.
	InactivityCheckDelay = time.Second * 30
	// InactivityThreshold is how long a self-initiated link may go without an
	// outbound send before it is closed.
	InactivityThreshold = time.Minute * 5

	// RefreshDelay is the incoming-link detector tick interval.
	RefreshDelay = time.Second * 5
	// StaleCleanupThreshold is how long an inactive, untouched entry survives
	// before the refresher evicts it from the store entirely.
	StaleCleanupThreshold = time.Minute * 15
	// ProbeBackoffTTL is how long a peer is skipped by the refresher after a
	// failed status probe.
	ProbeBackoffTTL = time.Second * 30

	LinkTableLogDelay = time.Minute

	// Preset rate ceilings, in bits per second.
	LowRateCeiling    uint64 = 5_000
	MediumRateCeiling uint64 = 50_000
	HighRateCeiling   uint64 = 500_000

	// Hop-count fallbacks when no rate measurement exists.
	DirectHopCeiling uint32 = 1
	NearHopCeiling   uint32 = 3

	DefaultDebugBind  = "127.0.0.1:57190"
	DefaultConfigPath = "weave.yaml"
)
