package ui

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"

	"meshchat/pkg/chat"
)

func runUI(t *testing.T, input string) (chan chat.Message, chan chat.Message, *bytes.Buffer) {
	t.Helper()
	toPeer := make(chan chat.Message, 16)
	fromPeer := make(chan chat.Message, 16)
	var out bytes.Buffer

	u := New(toPeer, fromPeer, strings.NewReader(input), &out)
	require.NoError(t, u.Run(context.Background()))
	return toPeer, fromPeer, &out
}

func TestInputBecomesIntents(t *testing.T) {
	toPeer, _, out := runUI(t, "hello mesh\n/peers\n/bogus\n\n/quit\n")

	m, ok := <-toPeer
	require.True(t, ok)
	require.Equal(t, chat.Chat{Data: []byte("hello mesh")}, m)

	m, ok = <-toPeer
	require.True(t, ok)
	require.Equal(t, chat.AllPeers{}, m)

	// /quit closes the intents channel; blank lines and unknown commands
	// produce nothing
	_, ok = <-toPeer
	require.False(t, ok)

	require.Contains(t, out.String(), "unknown command /bogus")
}

func TestEOFClosesIntents(t *testing.T) {
	toPeer, _, _ := runUI(t, "")
	_, ok := <-toPeer
	require.False(t, ok)
}

func TestRender(t *testing.T) {
	var out bytes.Buffer
	u := New(make(chan chat.Message, 1), nil, strings.NewReader(""), &out)

	alice := chat.NewPeer(peer.ID("peer-alice"))
	bob := chat.NewPeer(peer.ID("peer-bobby"))

	u.render(chat.Chat{From: &alice, Data: []byte("hi")})
	u.render(chat.Chat{Data: []byte("anon line")})
	u.render(chat.AddPeer{Peer: bob})
	u.render(chat.RemovePeer{Peer: bob})
	u.render(chat.AllPeers{})
	u.render(chat.AllPeers{Peers: []chat.PeerTopics{
		{ID: bob.ID(), Topics: []string{"chat", "file-offer"}},
	}})
	u.render(chat.Event{Text: "bootstrapping the DHT"})

	s := out.String()
	require.Contains(t, s, "["+alice.Name()+"] hi")
	require.Contains(t, s, "[anonymous] anon line")
	require.Contains(t, s, "peer "+bob.Name()+" joined")
	require.Contains(t, s, "peer "+bob.Name()+" left")
	require.Contains(t, s, "no connected peers")
	require.Contains(t, s, "1 connected peers:")
	require.Contains(t, s, "chat, file-offer")
	require.Contains(t, s, "bootstrapping the DHT")
}
