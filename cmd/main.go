package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/errgroup"

	"meshchat/pkg/chat"
	"meshchat/pkg/config"
	"meshchat/pkg/node"
	"meshchat/pkg/ui"
)

// multiFlag collects a repeatable string flag.
type multiFlag []string

func (f *multiFlag) String() string     { return strings.Join(*f, ",") }
func (f *multiFlag) Set(s string) error { *f = append(*f, s); return nil }

func main() {
	cfg := config.Default()

	var connect, external, bootstrap multiFlag
	var logLevel string
	flag.IntVar(&cfg.TCPPort, "tcp-port", cfg.TCPPort, "TCP listen port (0 for random)")
	flag.IntVar(&cfg.QUICPort, "quic-port", cfg.QUICPort, "QUIC listen port (0 for random)")
	flag.StringVar(&cfg.DataDir, "data-dir", "", "Directory for the identity key (default ~/.meshchat)")
	flag.Var(&connect, "connect", "Multiaddr or peer ID to dial on startup (repeatable)")
	flag.Var(&external, "external-addr", "Externally reachable multiaddr to advertise (repeatable)")
	flag.Var(&bootstrap, "bootstrap-peer", "DHT bootstrap multiaddr, replaces the defaults (repeatable)")
	flag.BoolVar(&cfg.EnableDHT, "dht", cfg.EnableDHT, "Enable the Kademlia DHT")
	flag.BoolVar(&cfg.EnableRelayService, "relay-service", cfg.EnableRelayService, "Run a circuit relay service for other peers")
	flag.BoolVar(&cfg.EnableNATService, "nat-service", cfg.EnableNATService, "Answer AutoNAT dial-back probes for other peers")
	flag.BoolVar(&cfg.EnableHolePunching, "hole-punching", cfg.EnableHolePunching, "Attempt hole punching through relayed connections")
	flag.StringVar(&logLevel, "log-level", "error", "Log level: debug, info, warn or error")
	flag.Parse()

	cfg.ConnectAddrs = connect
	cfg.ExternalAddrs = external
	if len(bootstrap) > 0 {
		cfg.BootstrapPeers = bootstrap
	}

	if err := run(cfg, logLevel); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logLevel string) error {
	level, err := logging.LevelFromString(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	logging.SetAllLoggers(level)

	priv, err := node.LoadIdentity(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to load identity: %w", err)
	}

	toUI := make(chan chat.Message, cfg.ChannelCapacity)
	fromUI := make(chan chat.Message, cfg.ChannelCapacity)

	p, err := node.New(cfg, priv, toUI, fromUI)
	if err != nil {
		return fmt.Errorf("failed to start peer: %w", err)
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := p.Run()
		if errors.Is(err, node.ErrUIClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		defer p.Close()
		return ui.New(fromUI, toUI, os.Stdin, os.Stdout).Run(ctx)
	})

	return g.Wait()
}
