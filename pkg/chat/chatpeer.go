package chat

import (
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
)

// Peer wraps a libp2p peer ID with a short display name. The short name is
// not unique; only the full ID may be used as a lookup key.
type Peer struct {
	id peer.ID
}

// NewPeer wraps the given peer ID.
func NewPeer(id peer.ID) Peer {
	return Peer{id: id}
}

// ID returns the full peer ID.
func (p Peer) ID() peer.ID {
	return p.id
}

// Name returns the last 8 characters of the peer ID, for display only.
func (p Peer) Name() string {
	s := p.id.String()
	if len(s) > 8 {
		return s[len(s)-8:]
	}
	return s
}

func (p Peer) String() string {
	return fmt.Sprintf("%s (%s)", p.id, p.Name())
}
