package state

import (
	"encoding/hex"
	"fmt"
)

// PeerAddrSize is the length of a mesh destination address in bytes.
const PeerAddrSize = 16

// PeerAddr is the fixed-length binary address of a conversation partner on the
// mesh network. Its canonical text form is lowercase hex.
type PeerAddr [PeerAddrSize]byte

func ParsePeerAddr(s string) (PeerAddr, error) {
	var addr PeerAddr
	raw, err := hex.DecodeString(s)
	if err != nil {
		return addr, fmt.Errorf("invalid peer address %q: %w", s, err)
	}
	if len(raw) != PeerAddrSize {
		return addr, fmt.Errorf("invalid peer address %q: expected %d bytes, got %d", s, PeerAddrSize, len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

func MustParsePeerAddr(s string) PeerAddr {
	addr, err := ParsePeerAddr(s)
	if err != nil {
		panic(err)
	}
	return addr
}

func (a PeerAddr) String() string {
	return hex.EncodeToString(a[:])
}

// Short returns a truncated form used in logs.
func (a PeerAddr) Short() string {
	return hex.EncodeToString(a[:4])
}
