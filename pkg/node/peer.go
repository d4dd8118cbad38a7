// Package node implements the meshchat peer: a single event loop that owns
// the libp2p host, routes pub/sub traffic across the chat, file-offer and
// peer-discovery topics, walks the DHT discovery chain, and bridges
// everything to the UI over a pair of bounded message channels.
package node

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	logging "github.com/ipfs/go-log/v2"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"

	"meshchat/pkg/chat"
	"meshchat/pkg/config"
	"meshchat/pkg/discovery"
)

var log = logging.Logger("node")

// ErrUIClosed is returned by Run when the UI side of the channel pair goes
// away. The peer cannot function without a UI consumer.
var ErrUIClosed = errors.New("ui channel closed")

var topicNames = []string{config.ChatTopic, config.FileTopic, config.PeerDiscoveryTopic}

// Peer is the application peer. All mutable state is owned by the Run loop;
// adapter goroutines communicate with it only through the events channel.
type Peer struct {
	cfg  config.Config
	host host.Host
	dht  *dht.IpfsDHT // nil when the DHT capability is disabled
	ps   *pubsub.PubSub

	kad    Kademlia // nil when the DHT capability is disabled
	chain  *chain
	router *topicRouter

	topics map[string]*pubsub.Topic
	subs   []*pubsub.Subscription

	events chan event
	toUI   chan<- chat.Message
	fromUI <-chan chat.Message

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds the peer around a fresh libp2p host.
func New(cfg config.Config, priv crypto.PrivKey, toUI chan<- chat.Message, fromUI <-chan chat.Message) (*Peer, error) {
	ctx, cancel := context.WithCancel(context.Background())

	h, idht, ps, err := newHost(ctx, cfg, priv)
	if err != nil {
		cancel()
		return nil, err
	}

	p := &Peer{
		cfg:    cfg,
		host:   h,
		dht:    idht,
		ps:     ps,
		router: newTopicRouter(),
		topics: make(map[string]*pubsub.Topic),
		events: make(chan event, cfg.ChannelCapacity),
		toUI:   toUI,
		fromUI: fromUI,
		ctx:    ctx,
		cancel: cancel,
	}

	if idht != nil {
		kad, err := newDHTQueries(ctx, idht, p.events)
		if err != nil {
			cancel()
			_ = h.Close()
			return nil, err
		}
		p.kad = kad
		p.chain = newChain(kad)
	}

	h.SetStreamHandler(config.FileProtocolID, p.handleFileStream)
	h.Network().Notify(&network.NotifyBundle{
		ConnectedF: func(_ network.Network, c network.Conn) {
			p.emit(connEvent{peer: c.RemotePeer(), connected: true})
		},
		DisconnectedF: func(_ network.Network, c network.Conn) {
			p.emit(connEvent{peer: c.RemotePeer(), connected: false})
		},
	})

	return p, nil
}

// ID returns the local peer identity.
func (p *Peer) ID() peer.ID {
	return p.host.ID()
}

// Addrs returns the host's current listen addresses.
func (p *Peer) Addrs() []multiaddr.Multiaddr {
	return p.host.Addrs()
}

// Close shuts down the peer and its host.
func (p *Peer) Close() error {
	p.cancel()
	return p.host.Close()
}

// Run subscribes to the mesh topics and services events until Close is
// called or the UI goes away. All failures below the UI channel are
// reported as diagnostic events and do not stop the loop.
func (p *Peer) Run() error {
	for _, name := range topicNames {
		topic, err := p.ps.Join(name)
		if err != nil {
			return fmt.Errorf("failed to join topic %s: %w", name, err)
		}
		p.topics[name] = topic

		sub, err := topic.Subscribe()
		if err != nil {
			return fmt.Errorf("failed to subscribe to topic %s: %w", name, err)
		}
		p.subs = append(p.subs, sub)
		go p.readTopic(sub)
	}

	p.msg("peer id: " + chat.NewPeer(p.host.ID()).String())
	for _, addr := range p.host.Addrs() {
		p.msg(fmt.Sprintf("listening on %s/p2p/%s", addr, p.host.ID()))
	}

	p.dialStartup()

	if p.chain != nil {
		p.report(p.chain.begin())
	}
	p.advertise()

	ticker := time.NewTicker(p.cfg.BootstrapInterval)
	defer ticker.Stop()

	for {
		// at most one pending UI intent per iteration, never blocking:
		// the loop must keep servicing network events even when the UI
		// is slow or idle
		select {
		case m, ok := <-p.fromUI:
			if !ok {
				p.shutdownTopics()
				return ErrUIClosed
			}
			p.handleIntent(m)
		default:
		}

		select {
		case <-p.ctx.Done():
			p.shutdownTopics()
			return nil
		case <-ticker.C:
			p.onTick()
		case ev := <-p.events:
			p.handleEvent(ev)
		case m, ok := <-p.fromUI:
			if !ok {
				p.shutdownTopics()
				return ErrUIClosed
			}
			p.handleIntent(m)
		}
	}
}

// handleIntent translates one UI message into mesh operations.
func (p *Peer) handleIntent(m chat.Message) {
	switch m := m.(type) {
	case chat.Chat:
		if err := p.topics[config.ChatTopic].Publish(p.ctx, m.Data); err != nil {
			p.msg(fmt.Sprintf("failed to publish chat message: %v", err))
		} else {
			p.msg("sent chat message from you")
		}

	case chat.AllPeers:
		byPeer := make(map[peer.ID][]string)
		for _, name := range topicNames {
			for _, id := range p.ps.ListPeers(name) {
				byPeer[id] = append(byPeer[id], name)
			}
		}
		peers := make([]chat.PeerTopics, 0, len(byPeer))
		for id, topics := range byPeer {
			peers = append(peers, chat.PeerTopics{ID: id, Topics: topics})
		}
		p.send(chat.AllPeers{Peers: peers})

	default:
		log.Debugf("unhandled ui message: %T", m)
	}
}

// handleEvent dispatches one collaborator event.
func (p *Peer) handleEvent(ev event) {
	switch ev := ev.(type) {
	case connEvent:
		if ev.connected {
			p.send(chat.AddPeer{Peer: chat.NewPeer(ev.peer)})
			return
		}
		p.send(chat.RemovePeer{Peer: chat.NewPeer(ev.peer)})
		if p.kad != nil {
			p.kad.RemovePeer(ev.peer)
			log.Debugf("removed %s from the routing table", ev.peer)
		}

	case pubsubEvent:
		p.handlePubsub(ev.msg)

	case queryEvent:
		if p.chain != nil {
			p.report(p.chain.handle(ev))
		}

	case fileRequestEvent:
		p.msg(fmt.Sprintf("acknowledged file request for %q from %s", ev.fileID, chat.NewPeer(ev.from)))

	case fileResponseEvent:
		log.Infof("file response for %q from %s: %d bytes", ev.fileID, ev.from, ev.size)
		p.msg(fmt.Sprintf("received file %q from %s: %d bytes", ev.fileID, chat.NewPeer(ev.from), ev.size))

	case diagEvent:
		p.msg(ev.text)
	}
}

// handlePubsub routes one received topic message and acts on the variant.
func (p *Peer) handlePubsub(msg *pubsub.Message) {
	rm := p.router.route(msg)
	p.msg(rm.summary())

	switch rm.kind {
	case kindChat:
		p.send(chat.Chat{From: rm.source, Data: rm.data})
		if rm.source != nil {
			p.send(chat.AddPeer{Peer: *rm.source})
		}

	case kindFileOffer:
		if rm.source == nil {
			return
		}
		fileID, ok := fileOfferID(rm.data)
		if !ok {
			p.msg(fmt.Sprintf("ignoring file offer with a non-UTF-8 identifier from %s", rm.source))
			return
		}
		p.requestFile(rm.source.ID(), fileID)
		p.msg(fmt.Sprintf("sent file request to %s for %q", rm.source, fileID))

	case kindPeerDiscovery:
		p.dialDiscovered(rm.record)
		if rm.record.HasPeer() {
			p.send(chat.AddPeer{Peer: chat.NewPeer(rm.record.Peer)})
		}
	}
}

// dialDiscovered attempts to connect to a peer advertised on the discovery
// topic. Addresses without a recoverable identity are only dialable when
// they carry a trailing /p2p component.
func (p *Peer) dialDiscovered(rec discovery.Record) {
	if rec.HasPeer() {
		p.dial(peer.AddrInfo{ID: rec.Peer, Addrs: rec.Addrs})
		return
	}
	for _, addr := range rec.Addrs {
		transport, id := peer.SplitAddr(addr)
		if id == "" {
			log.Debugf("cannot dial %s: no peer identity", addr)
			continue
		}
		p.dial(peer.AddrInfo{ID: id, Addrs: []multiaddr.Multiaddr{transport}})
	}
}

// dial connects in the background; failures come back as diagnostics.
func (p *Peer) dial(info peer.AddrInfo) {
	go func() {
		ctx, cancel := context.WithTimeout(p.ctx, 15*time.Second)
		defer cancel()
		if err := p.host.Connect(ctx, info); err != nil {
			p.emit(diagEvent{text: fmt.Sprintf("failed to dial %s: %v", info.ID, err)})
		}
	}()
}

// dialStartup dials the addresses given on the command line. Multiaddrs
// carrying a peer identity also seed the peerstore so the DHT can reach
// them.
func (p *Peer) dialStartup() {
	for _, s := range p.cfg.ConnectAddrs {
		if ma, err := multiaddr.NewMultiaddr(s); err == nil {
			transport, id := peer.SplitAddr(ma)
			if id == "" {
				p.msg(fmt.Sprintf("cannot dial %s: no peer identity", s))
				continue
			}
			p.host.Peerstore().AddAddr(id, transport, peerstore.PermanentAddrTTL)
			p.dial(peer.AddrInfo{ID: id, Addrs: []multiaddr.Multiaddr{transport}})
			p.msg("dialing " + s)
			continue
		}
		if id, err := peer.Decode(s); err == nil {
			p.dial(peer.AddrInfo{ID: id})
			p.msg("dialing " + s)
			continue
		}
		p.msg("failed to parse " + s)
	}
}

// onTick restarts the discovery chain and re-advertises our presence.
func (p *Peer) onTick() {
	if p.chain != nil {
		p.report(p.chain.begin())
	}

	var lines []string
	for _, addr := range p.host.Addrs() {
		lines = append(lines, fmt.Sprintf("\t%s/p2p/%s", addr, p.host.ID()))
	}
	p.msg("current addresses:\n" + strings.Join(lines, "\n"))

	p.advertise()
}

// advertise publishes our discovery record (public key plus public listen
// addresses) on the peer-discovery topic.
func (p *Peer) advertise() {
	var addrs []multiaddr.Multiaddr
	for _, addr := range p.host.Addrs() {
		if !manet.IsPrivateAddr(addr) {
			addrs = append(addrs, addr)
		}
	}

	pub := p.host.Peerstore().PubKey(p.host.ID())
	rec, err := discovery.Encode(pub, addrs)
	if err != nil {
		log.Debugf("failed to encode discovery record: %v", err)
		return
	}
	if err := p.topics[config.PeerDiscoveryTopic].Publish(p.ctx, rec); err != nil {
		p.msg(fmt.Sprintf("failed to publish discovery record: %v", err))
	}
}

// readTopic forwards one subscription's messages onto the events channel,
// skipping our own.
func (p *Peer) readTopic(sub *pubsub.Subscription) {
	for {
		msg, err := sub.Next(p.ctx)
		if err != nil {
			return // subscription cancelled or shutting down
		}
		if msg.ReceivedFrom == p.host.ID() {
			continue
		}
		p.emit(pubsubEvent{topic: msg.GetTopic(), msg: msg})
	}
}

// shutdownTopics unsubscribes from all topics, best effort.
func (p *Peer) shutdownTopics() {
	for _, sub := range p.subs {
		sub.Cancel()
	}
	for name, topic := range p.topics {
		if err := topic.Close(); err != nil {
			log.Debugf("failed to close topic %s: %v", name, err)
		}
	}
}

// emit hands an event to the run loop without blocking past shutdown.
func (p *Peer) emit(ev event) {
	select {
	case p.events <- ev:
	case <-p.ctx.Done():
	}
}

// send delivers one message to the UI. The channel is bounded; a full
// queue blocks until the UI catches up or the peer shuts down.
func (p *Peer) send(m chat.Message) {
	select {
	case p.toUI <- m:
	case <-p.ctx.Done():
	}
}

func (p *Peer) msg(text string) {
	p.send(chat.Event{Text: text})
}

func (p *Peer) report(lines []string) {
	for _, line := range lines {
		p.msg(line)
	}
}
