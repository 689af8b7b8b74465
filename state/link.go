package state

// LinkState is an immutable snapshot of one peer's link. It is replaced
// wholesale on every update and must never be mutated in place once published
// to the store. Optional metrics are nil until a measurement exists.
type LinkState struct {
	// Active reports whether the link is currently usable.
	Active bool
	// Establishing is set while an establishment attempt is in flight.
	// An Active link is never Establishing.
	Establishing bool
	// EstablishmentRate is the throughput measured during the establishment
	// handshake, in bits per second.
	EstablishmentRate *uint64
	// ExpectedRate is the throughput measured from prior real data transfers,
	// in bits per second. Most trustworthy when present.
	ExpectedRate *uint64
	// NextHopBitrate is the raw interface bitrate of the first hop only.
	// Unreliable on multi-hop paths.
	NextHopBitrate *uint64
	// RTT is the round-trip time in seconds.
	RTT *float64
	// Hops is the number of relay traversals to the peer.
	Hops *uint32
	// MTU is the link MTU negotiated during establishment.
	MTU *uint32
	// Err holds the last establishment or refresh failure reason.
	Err string
	// LastActivity is the wall-clock time of the last relevant peer activity
	// (message sent or received, proof received), in unix milliseconds.
	LastActivity int64
	// LastSent is the wall-clock time of the last message sent by this node,
	// in unix milliseconds. Only outbound sends reset this timer; it drives
	// the inactivity monitor.
	LastSent int64
}

// LinkInfo is a transport-reported measurement of a link. Nil fields mean the
// transport did not report that metric on this call.
type LinkInfo struct {
	Active            bool
	AlreadyExisted    bool
	EstablishmentRate *uint64
	ExpectedRate      *uint64
	NextHopBitrate    *uint64
	RTT               *float64
	Hops              *uint32
	MTU               *uint32
}

// Merge folds a transport measurement into the snapshot. Non-nil incoming
// fields overwrite, nil fields preserve the previous value, so a status query
// that omits a metric never erases a previously known one. Active and the
// activity timers are lifecycle concerns and are left to the caller.
func (l LinkState) Merge(info LinkInfo) LinkState {
	next := l
	if info.EstablishmentRate != nil {
		next.EstablishmentRate = info.EstablishmentRate
	}
	if info.ExpectedRate != nil {
		next.ExpectedRate = info.ExpectedRate
	}
	if info.NextHopBitrate != nil {
		next.NextHopBitrate = info.NextHopBitrate
	}
	if info.RTT != nil {
		next.RTT = info.RTT
	}
	if info.Hops != nil {
		next.Hops = info.Hops
	}
	if info.MTU != nil {
		next.MTU = info.MTU
	}
	return next
}
