package node

import (
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"
)

// event is the tagged union delivered to the orchestrator's run loop.
// Adapter goroutines (connection notifiee, topic readers, DHT queries,
// file-exchange streams) are producers; the run loop is the only consumer.
type event interface {
	isEvent()
}

// connEvent reports a connection opened or closed.
type connEvent struct {
	peer      peer.ID
	connected bool
}

// pubsubEvent carries one message received on a subscribed topic.
type pubsubEvent struct {
	topic string
	msg   *pubsub.Message
}

// queryEvent reports progress of one outstanding DHT operation. Only the
// step with final set may advance the discovery chain.
type queryEvent struct {
	id    QueryID
	final bool
	err   error

	providers []peer.ID // get-providers results
	closest   []peer.ID // get-closest-peers results
	info      string    // progress detail for intermediate steps
}

// fileRequestEvent reports an inbound file request we acknowledged.
type fileRequestEvent struct {
	from   peer.ID
	fileID string
}

// fileResponseEvent reports a completed outbound file exchange.
type fileResponseEvent struct {
	from   peer.ID
	fileID string
	size   int
}

// diagEvent carries a diagnostic line from an adapter goroutine.
type diagEvent struct {
	text string
}

func (connEvent) isEvent()         {}
func (pubsubEvent) isEvent()       {}
func (queryEvent) isEvent()        {}
func (fileRequestEvent) isEvent()  {}
func (fileResponseEvent) isEvent() {}
func (diagEvent) isEvent()         {}
