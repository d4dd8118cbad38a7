package node

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"

	"meshchat/pkg/chat"
	"meshchat/pkg/config"
	"meshchat/pkg/discovery"
)

type messageKind int

const (
	kindChat messageKind = iota
	kindFileOffer
	kindPeerDiscovery
	kindUnknown
)

// routedMessage is one classified pub/sub message. Classification is purely
// by topic name; payload decoding failures degrade to diagnostics and never
// propagate to the caller.
type routedMessage struct {
	kind     messageKind
	from     peer.ID    // propagation source
	source   *chat.Peer // signed origin, nil when absent or invalid
	seqno    uint64
	hasSeqno bool
	topic    string
	data     []byte

	record discovery.Record // peer-discovery payload
	fields []string         // unknown payload, heuristically decoded
}

// topicRouter classifies received pub/sub messages. It is stateless and
// performs no I/O.
type topicRouter struct {
	chatTopic      string
	fileTopic      string
	discoveryTopic string
}

func newTopicRouter() *topicRouter {
	return &topicRouter{
		chatTopic:      config.ChatTopic,
		fileTopic:      config.FileTopic,
		discoveryTopic: config.PeerDiscoveryTopic,
	}
}

func (r *topicRouter) route(msg *pubsub.Message) routedMessage {
	rm := routedMessage{
		from:  msg.ReceivedFrom,
		topic: msg.GetTopic(),
		data:  msg.GetData(),
	}
	if len(msg.Message.GetFrom()) > 0 {
		if id, err := peer.IDFromBytes(msg.Message.GetFrom()); err == nil {
			p := chat.NewPeer(id)
			rm.source = &p
		}
	}
	if s := msg.Message.GetSeqno(); len(s) == 8 {
		rm.seqno = binary.BigEndian.Uint64(s)
		rm.hasSeqno = true
	}

	switch rm.topic {
	case r.chatTopic:
		rm.kind = kindChat
	case r.fileTopic:
		rm.kind = kindFileOffer
	case r.discoveryTopic:
		rm.kind = kindPeerDiscovery
		// a garbled record degrades to an empty one
		if rec, err := discovery.Decode(rm.data); err == nil {
			rm.record = rec
		}
	default:
		rm.kind = kindUnknown
		rm.fields = discovery.DecodeFields(rm.data)
	}
	return rm
}

// summary renders the message for the diagnostic event channel.
func (m routedMessage) summary() string {
	var b strings.Builder
	switch m.kind {
	case kindChat:
		b.WriteString("received chat message:")
	case kindFileOffer:
		b.WriteString("received file offer:")
	case kindPeerDiscovery:
		b.WriteString("received peer discovery:")
	default:
		b.WriteString("received unknown message:")
	}

	source := "unknown"
	if m.source != nil {
		source = m.source.String()
	}
	seqno := "unknown"
	if m.hasSeqno {
		seqno = fmt.Sprintf("%d", m.seqno)
	}
	fmt.Fprintf(&b, "\n\tpropagation source: %s\n\tsource: %s\n\tseq no: %s\n\ttopic: %s",
		chat.NewPeer(m.from), source, seqno, m.topic)

	switch m.kind {
	case kindChat:
		fmt.Fprintf(&b, "\n\tmsg: %s", displayUTF8(m.data))
	case kindFileOffer:
		fmt.Fprintf(&b, "\n\tfile id: %s", displayUTF8(m.data))
	case kindPeerDiscovery:
		discovered := "unknown"
		if m.record.HasPeer() {
			discovered = chat.NewPeer(m.record.Peer).String()
		}
		fmt.Fprintf(&b, "\n\tpeer: %s\n\tmultiaddrs: %d", discovered, len(m.record.Addrs))
	default:
		fmt.Fprintf(&b, "\n\tdata: %s", discovery.FormatFields(m.fields))
	}
	return b.String()
}

// fileOfferID validates an offer payload as a UTF-8 file identifier.
func fileOfferID(data []byte) (string, bool) {
	if !utf8.Valid(data) {
		return "", false
	}
	return string(data), true
}

// displayUTF8 renders payload bytes for display, replacing invalid UTF-8.
func displayUTF8(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return "invalid UTF-8"
}
