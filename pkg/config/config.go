package config

import "time"

const (
	// Gossipsub topic names shared with every other mesh peer.
	ChatTopic          = "chat"
	FileTopic          = "file-offer"
	PeerDiscoveryTopic = "peer-discovery"

	// FileProtocolID is the stream protocol for the file-exchange
	// request/response pair. Agreed out-of-band with other peers.
	FileProtocolID = "/meshchat/file/1"

	// Agent doubles as the identify agent string and the well-known
	// DHT key every meshchat peer provides and looks up.
	Agent = "meshchat/0.1.0"
)

// Config is the process-wide configuration, resolved once at startup and
// injected into the components that need it.
type Config struct {
	// TCPPort and QUICPort are the listen ports. Zero picks a random port.
	TCPPort  int
	QUICPort int

	// ExternalAddrs are addresses others can reach us on, if known.
	ExternalAddrs []string

	// ConnectAddrs are multiaddrs (or bare peer IDs) to dial on startup.
	ConnectAddrs []string

	// BootstrapPeers seed the DHT routing table before the first bootstrap.
	BootstrapPeers []string

	// Optional capabilities. Call sites check presence before use.
	EnableDHT          bool
	EnableRelayService bool
	EnableNATService   bool
	EnableHolePunching bool

	// BootstrapInterval is how often the DHT discovery chain restarts.
	BootstrapInterval time.Duration

	// ChannelCapacity bounds the UI message channels in both directions.
	ChannelCapacity int

	// DataDir holds the identity key. Empty means ~/.meshchat.
	DataDir string
}

// Default returns the configuration used when no flags override it.
func Default() Config {
	return Config{
		TCPPort:            9092,
		QUICPort:           9091,
		BootstrapPeers:     defaultBootstrapPeers,
		EnableDHT:          true,
		EnableHolePunching: true,
		BootstrapInterval:  5 * time.Minute,
		ChannelCapacity:    64,
	}
}

// The public IPFS bootstrappers; any one of them is enough to join the DHT.
var defaultBootstrapPeers = []string{
	"/dnsaddr/bootstrap.libp2p.io/p2p/QmNnooDu7bfjPFoTZYxMNLWUQJyrVwtbZg5gBMjTezGAJN",
	"/dnsaddr/bootstrap.libp2p.io/p2p/QmQCU2EcMqAqQPR2i9bChDtGNJchTbq5TbXJJ16u19uLTa",
	"/dnsaddr/bootstrap.libp2p.io/p2p/QmbLHAnMoJPWSCR5Zhtx6BHJX9KiKNN6tpvbUcqanj75Nb",
	"/dnsaddr/bootstrap.libp2p.io/p2p/QmcZf59bWwK5XFi76CZX8cbJ4BhTzzA3gU1ZjYZcYW3dwt",
}
