// Package ui provides a line-oriented terminal front end for the meshchat
// peer. It reads commands and chat lines from standard input and renders
// mesh activity to standard output.
package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"meshchat/pkg/chat"
)

// UI is the headless terminal front end. It owns the sending side of the
// intents channel and closes it when the input stream ends.
type UI struct {
	toPeer   chan<- chat.Message
	fromPeer <-chan chat.Message

	in  io.Reader
	out io.Writer
}

// New wires a UI to the peer's channel pair.
func New(toPeer chan<- chat.Message, fromPeer <-chan chat.Message, in io.Reader, out io.Writer) *UI {
	return &UI{
		toPeer:   toPeer,
		fromPeer: fromPeer,
		in:       in,
		out:      out,
	}
}

// Run services input and peer messages until the context is cancelled or
// the input stream ends. The intents channel is closed on return, which
// tells the peer the UI is gone.
func (u *UI) Run(ctx context.Context) error {
	defer close(u.toPeer)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(u.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(u.out, "💬 meshchat ready — type a message, /peers to list peers, /quit to exit")

	for {
		select {
		case <-ctx.Done():
			return nil

		case m, ok := <-u.fromPeer:
			if !ok {
				return nil
			}
			u.render(m)

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if done := u.handleLine(strings.TrimSpace(line)); done {
				return nil
			}
		}
	}
}

// handleLine interprets one input line, returning true when the user asked
// to quit.
func (u *UI) handleLine(line string) bool {
	switch {
	case line == "":
		return false
	case line == "/quit":
		return true
	case line == "/peers":
		u.toPeer <- chat.AllPeers{}
		return false
	case strings.HasPrefix(line, "/"):
		fmt.Fprintf(u.out, "unknown command %s\n", line)
		return false
	default:
		u.toPeer <- chat.Chat{Data: []byte(line)}
		return false
	}
}

// render prints one peer message.
func (u *UI) render(m chat.Message) {
	switch m := m.(type) {
	case chat.Chat:
		from := "anonymous"
		if m.From != nil {
			from = m.From.Name()
		}
		fmt.Fprintf(u.out, "[%s] %s\n", from, string(m.Data))

	case chat.AddPeer:
		fmt.Fprintf(u.out, "➕ peer %s joined\n", m.Peer.Name())

	case chat.RemovePeer:
		fmt.Fprintf(u.out, "➖ peer %s left\n", m.Peer.Name())

	case chat.AllPeers:
		if len(m.Peers) == 0 {
			fmt.Fprintln(u.out, "no connected peers")
			return
		}
		sorted := make([]chat.PeerTopics, len(m.Peers))
		copy(sorted, m.Peers)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
		fmt.Fprintf(u.out, "%d connected peers:\n", len(sorted))
		for _, pt := range sorted {
			fmt.Fprintf(u.out, "\t%s (%s)\n", chat.NewPeer(pt.ID).Name(), strings.Join(pt.Topics, ", "))
		}

	case chat.Event:
		fmt.Fprintln(u.out, m.Text)
	}
}
