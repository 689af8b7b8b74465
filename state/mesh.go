package state

import "context"

// Mesh is the external mesh link protocol this subsystem drives. The
// implementation owns cryptographic identity, handshakes and packet routing;
// weave only tracks the lifecycle and quality of the links it negotiates.
type Mesh interface {
	// EstablishLink negotiates a link to the peer. The context bounds the
	// attempt; an online peer is expected to answer well within it.
	EstablishLink(ctx context.Context, peer PeerAddr) (LinkInfo, error)
	// CloseLink tears down the link to the peer and reports whether one was
	// active.
	CloseLink(ctx context.Context, peer PeerAddr) (bool, error)
	// LinkStatus queries the transport's view of the link, including links
	// the peer opened toward us.
	LinkStatus(ctx context.Context, peer PeerAddr) (LinkInfo, error)
}
