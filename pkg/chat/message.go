package chat

import "github.com/libp2p/go-libp2p/core/peer"

// Message is one unit of the channel protocol between the peer and the UI.
// The peer sends Chat, AddPeer, RemovePeer, AllPeers and Event messages to
// the UI; the UI sends Chat (a line to publish) and AllPeers (a request to
// enumerate mesh members) back. Each direction is FIFO on its own channel.
type Message interface {
	message()
}

// Chat carries one chat line. From is nil when the mesh did not attach a
// signed source to the message.
type Chat struct {
	From *Peer
	Data []byte
}

// AddPeer tells the UI a peer joined the chat.
type AddPeer struct {
	Peer Peer
}

// RemovePeer tells the UI a peer left the chat.
type RemovePeer struct {
	Peer Peer
}

// PeerTopics pairs a mesh member with the topics it subscribes to.
type PeerTopics struct {
	ID     peer.ID
	Topics []string
}

// AllPeers is a request for the mesh membership snapshot when sent by the
// UI, and the snapshot itself when sent by the peer.
type AllPeers struct {
	Peers []PeerTopics
}

// Event is best-effort diagnostic text for display.
type Event struct {
	Text string
}

func (Chat) message()       {}
func (AddPeer) message()    {}
func (RemovePeer) message() {}
func (AllPeers) message()   {}
func (Event) message()      {}
