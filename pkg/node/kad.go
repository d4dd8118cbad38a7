package node

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ipfs/go-cid"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multihash"

	"meshchat/pkg/config"
)

// QueryID identifies one outstanding DHT operation.
type QueryID uint64

// Kademlia is the slice of the DHT surface driven by the discovery chain.
// Every operation is asynchronous: it returns an identifier immediately and
// delivers progress and completion as query events carrying that identifier.
type Kademlia interface {
	// Bootstrap re-populates the routing table from known peers.
	Bootstrap() QueryID
	// StartProviding registers us as a provider of the agent key.
	StartProviding() QueryID
	// GetProviders looks up the other providers of the agent key.
	GetProviders() QueryID
	// GetClosestPeers resolves the peers closest to the given one.
	GetClosestPeers(p peer.ID) QueryID
	// RemovePeer evicts a disconnected peer from the routing table.
	RemovePeer(p peer.ID)
}

// dhtQueries adapts go-libp2p-kad-dht to the Kademlia interface, running
// each operation in its own goroutine and reporting on the events channel.
type dhtQueries struct {
	ctx    context.Context
	dht    *dht.IpfsDHT
	key    cid.Cid
	events chan<- event
	next   atomic.Uint64
}

func newDHTQueries(ctx context.Context, d *dht.IpfsDHT, events chan<- event) (*dhtQueries, error) {
	mh, err := multihash.Sum([]byte(config.Agent), multihash.SHA2_256, -1)
	if err != nil {
		return nil, fmt.Errorf("failed to hash agent key: %w", err)
	}
	return &dhtQueries{
		ctx:    ctx,
		dht:    d,
		key:    cid.NewCidV1(cid.Raw, mh),
		events: events,
	}, nil
}

func (q *dhtQueries) id() QueryID {
	return QueryID(q.next.Add(1))
}

func (q *dhtQueries) emit(ev queryEvent) {
	select {
	case q.events <- ev:
	case <-q.ctx.Done():
	}
}

func (q *dhtQueries) Bootstrap() QueryID {
	id := q.id()
	go func() {
		if err := q.dht.Bootstrap(q.ctx); err != nil {
			q.emit(queryEvent{id: id, final: true, err: err})
			return
		}
		select {
		case err := <-q.dht.RefreshRoutingTable():
			q.emit(queryEvent{id: id, final: true, err: err})
		case <-q.ctx.Done():
		}
	}()
	return id
}

func (q *dhtQueries) StartProviding() QueryID {
	id := q.id()
	go func() {
		err := q.dht.Provide(q.ctx, q.key, true)
		q.emit(queryEvent{id: id, final: true, err: err})
	}()
	return id
}

func (q *dhtQueries) GetProviders() QueryID {
	id := q.id()
	go func() {
		var providers []peer.ID
		for info := range q.dht.FindProvidersAsync(q.ctx, q.key, 0) {
			if info.ID == "" || info.ID == q.dht.PeerID() {
				continue
			}
			providers = append(providers, info.ID)
			q.emit(queryEvent{id: id, info: fmt.Sprintf("provider found: %s", info.ID)})
		}
		if q.ctx.Err() != nil {
			return
		}
		if len(providers) == 0 {
			// nobody provides the key yet; fall back to the peers
			// closest to it so the chain still has somewhere to go
			q.emit(queryEvent{id: id, info: "no providers found, falling back to closest peers"})
			closest, err := q.dht.GetClosestPeers(q.ctx, string(q.key.Hash()))
			if err != nil {
				q.emit(queryEvent{id: id, final: true, err: err})
				return
			}
			for _, p := range closest {
				if p != q.dht.PeerID() {
					providers = append(providers, p)
				}
			}
		}
		q.emit(queryEvent{id: id, final: true, providers: providers})
	}()
	return id
}

func (q *dhtQueries) GetClosestPeers(p peer.ID) QueryID {
	id := q.id()
	go func() {
		peers, err := q.dht.GetClosestPeers(q.ctx, string(p))
		q.emit(queryEvent{id: id, final: true, err: err, closest: peers})
	}()
	return id
}

func (q *dhtQueries) RemovePeer(p peer.ID) {
	q.dht.RoutingTable().RemovePeer(p)
}
