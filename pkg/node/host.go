package node

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	pb "github.com/libp2p/go-libp2p-pubsub/pb"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/routing"
	"github.com/libp2p/go-libp2p/p2p/net/connmgr"
	"github.com/multiformats/go-multiaddr"

	"meshchat/pkg/config"
)

// newHost builds the libp2p host, the optional DHT and the gossipsub
// router. The DHT is nil when the capability is disabled; callers check
// presence before use.
func newHost(ctx context.Context, cfg config.Config, priv crypto.PrivKey) (host.Host, *dht.IpfsDHT, *pubsub.PubSub, error) {
	cm, err := connmgr.NewConnManager(50, 200, connmgr.WithGracePeriod(time.Minute))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create connection manager: %w", err)
	}

	bootstrappers := bootstrapAddrInfos(cfg.BootstrapPeers)

	opts := []libp2p.Option{
		libp2p.ListenAddrStrings(
			fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", cfg.TCPPort),
			fmt.Sprintf("/ip4/0.0.0.0/udp/%d/quic-v1", cfg.QUICPort),
		),
		libp2p.Identity(priv),
		libp2p.UserAgent(config.Agent),
		libp2p.ConnectionManager(cm),
		libp2p.NATPortMap(),
	}
	if len(cfg.ExternalAddrs) > 0 {
		external := make([]multiaddr.Multiaddr, 0, len(cfg.ExternalAddrs))
		for _, s := range cfg.ExternalAddrs {
			ma, err := multiaddr.NewMultiaddr(s)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("invalid external address %s: %w", s, err)
			}
			external = append(external, ma)
		}
		opts = append(opts, libp2p.AddrsFactory(func(addrs []multiaddr.Multiaddr) []multiaddr.Multiaddr {
			return append(addrs, external...)
		}))
	}
	if cfg.EnableHolePunching {
		opts = append(opts, libp2p.EnableHolePunching())
	}
	if cfg.EnableRelayService {
		opts = append(opts, libp2p.EnableRelayService())
	}
	if cfg.EnableNATService {
		opts = append(opts, libp2p.EnableNATService())
	}

	var idht *dht.IpfsDHT
	if cfg.EnableDHT {
		opts = append(opts, libp2p.Routing(func(h host.Host) (routing.PeerRouting, error) {
			var err error
			idht, err = dht.New(ctx, h,
				dht.Mode(dht.ModeServer),
				dht.BootstrapPeers(bootstrappers...),
			)
			return idht, err
		}))
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create libp2p host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h,
		pubsub.WithFloodPublish(true),
		pubsub.WithMessageIdFn(contentMessageID),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create pubsub: %w", err)
	}

	return h, idht, ps, nil
}

// contentMessageID derives message ids from content so the same payload is
// never propagated twice.
func contentMessageID(m *pb.Message) string {
	hash := sha256.Sum256(m.GetData())
	return string(hash[:])
}

// bootstrapAddrInfos parses the configured bootstrap multiaddrs, dropping
// any that do not carry a peer identity.
func bootstrapAddrInfos(addrs []string) []peer.AddrInfo {
	var infos []peer.AddrInfo
	for _, s := range addrs {
		ma, err := multiaddr.NewMultiaddr(s)
		if err != nil {
			log.Debugf("skipping bootstrap addr %s: %v", s, err)
			continue
		}
		info, err := peer.AddrInfoFromP2pAddr(ma)
		if err != nil {
			log.Debugf("skipping bootstrap addr %s: %v", s, err)
			continue
		}
		infos = append(infos, *info)
	}
	return infos
}
