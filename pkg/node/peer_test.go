package node

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/stretchr/testify/require"

	"meshchat/pkg/chat"
	"meshchat/pkg/config"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.TCPPort = 0
	cfg.QUICPort = 0
	cfg.EnableDHT = false
	cfg.EnableHolePunching = false
	cfg.BootstrapInterval = time.Hour
	return cfg
}

func startPeer(t *testing.T, cfg config.Config) (*Peer, chan chat.Message, chan chat.Message, chan error) {
	t.Helper()
	priv, _, err := crypto.GenerateEd25519Key(rand.Reader)
	require.NoError(t, err)

	toUI := make(chan chat.Message, cfg.ChannelCapacity)
	fromUI := make(chan chat.Message, cfg.ChannelCapacity)

	p, err := New(cfg, priv, toUI, fromUI)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	done := make(chan error, 1)
	go func() { done <- p.Run() }()
	return p, toUI, fromUI, done
}

// waitFor drains the UI channel until pick accepts a message or the
// deadline passes.
func waitFor[T chat.Message](t *testing.T, ch <-chan chat.Message, pick func(T) bool, timeout time.Duration) T {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case m := <-ch:
			if v, ok := m.(T); ok && pick(v) {
				return v
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %T", *new(T))
		}
	}
}

func TestPeerReportsIdentityAndShutsDownWithUI(t *testing.T) {
	p, toUI, fromUI, done := startPeer(t, testConfig())

	waitFor(t, toUI, func(ev chat.Event) bool {
		return bytes.Contains([]byte(ev.Text), []byte(p.ID().String()))
	}, 10*time.Second)

	close(fromUI)
	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrUIClosed)
	case <-time.After(10 * time.Second):
		t.Fatal("peer did not stop after the ui went away")
	}
}

func TestTwoPeersExchangeChat(t *testing.T) {
	a, aUI, aIntents, _ := startPeer(t, testConfig())

	cfgB := testConfig()
	require.NotEmpty(t, a.Addrs())
	cfgB.ConnectAddrs = []string{fmt.Sprintf("%s/p2p/%s", a.Addrs()[0], a.ID())}
	b, bUI, bIntents, _ := startPeer(t, cfgB)
	defer close(aIntents)
	defer close(bIntents)

	// the startup dial surfaces as membership on both sides
	waitFor(t, aUI, func(m chat.AddPeer) bool { return m.Peer.ID() == b.ID() }, 15*time.Second)
	waitFor(t, bUI, func(m chat.AddPeer) bool { return m.Peer.ID() == a.ID() }, 15*time.Second)

	// publish until gossip propagation of the subscription catches up
	received := make(chan chat.Chat, 1)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case m := <-bUI:
				if c, ok := m.(chat.Chat); ok && string(c.Data) == "ping from a" {
					received <- c
					return
				}
			case <-stop:
				return
			}
		}
	}()

	deadline := time.After(30 * time.Second)
	for {
		select {
		case m := <-received:
			require.NotNil(t, m.From)
			require.Equal(t, a.ID(), m.From.ID())
			return
		case <-deadline:
			t.Fatal("chat message never reached peer b")
		case <-time.After(500 * time.Millisecond):
			aIntents <- chat.Chat{Data: []byte("ping from a")}
		}
	}
}

func TestAllPeersSnapshot(t *testing.T) {
	a, aUI, aIntents, _ := startPeer(t, testConfig())

	cfgB := testConfig()
	cfgB.ConnectAddrs = []string{fmt.Sprintf("%s/p2p/%s", a.Addrs()[0], a.ID())}
	b, _, bIntents, _ := startPeer(t, cfgB)
	defer close(aIntents)
	defer close(bIntents)

	waitFor(t, aUI, func(m chat.AddPeer) bool { return m.Peer.ID() == b.ID() }, 15*time.Second)

	// membership in the snapshot lags the connection while gossipsub
	// exchanges subscriptions, so poll
	deadline := time.After(30 * time.Second)
	for {
		aIntents <- chat.AllPeers{}
		snapshot := waitFor(t, aUI, func(chat.AllPeers) bool { return true }, 15*time.Second)
		for _, pt := range snapshot.Peers {
			if pt.ID == b.ID() && len(pt.Topics) > 0 {
				return
			}
		}
		select {
		case <-deadline:
			t.Fatal("peer b never appeared in the membership snapshot")
		case <-time.After(500 * time.Millisecond):
		}
	}
}
