package node

import (
	"errors"
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"
)

// fakeKad records which operations the chain starts and hands out
// sequential identifiers.
type fakeKad struct {
	next       QueryID
	bootstraps int
	provides   int
	getProvs   int
	getClosest []peer.ID
	removed    []peer.ID
}

func (f *fakeKad) id() QueryID { f.next++; return f.next }

func (f *fakeKad) Bootstrap() QueryID      { f.bootstraps++; return f.id() }
func (f *fakeKad) StartProviding() QueryID { f.provides++; return f.id() }
func (f *fakeKad) GetProviders() QueryID   { f.getProvs++; return f.id() }
func (f *fakeKad) GetClosestPeers(p peer.ID) QueryID {
	f.getClosest = append(f.getClosest, p)
	return f.id()
}
func (f *fakeKad) RemovePeer(p peer.ID) { f.removed = append(f.removed, p) }

func TestChainAdvancesOnFinalStepsOnly(t *testing.T) {
	kad := &fakeKad{}
	c := newChain(kad)

	msgs := c.begin()
	require.NotEmpty(t, msgs)
	require.Equal(t, 1, kad.bootstraps)
	bootstrapID := kad.next

	// intermediate progress reports but does not advance
	msgs = c.handle(queryEvent{id: bootstrapID, info: "routing table updated"})
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0], "routing table updated")
	require.Equal(t, 0, kad.provides)

	msgs = c.handle(queryEvent{id: bootstrapID, final: true})
	require.NotEmpty(t, msgs)
	require.Equal(t, 1, kad.provides)
	provideID := kad.next

	// a duplicate completion for a finished query is ignored
	require.Nil(t, c.handle(queryEvent{id: bootstrapID, final: true}))
	require.Equal(t, 1, kad.provides)

	msgs = c.handle(queryEvent{id: provideID, final: true})
	require.NotEmpty(t, msgs)
	require.Equal(t, 1, kad.getProvs)
	getProvidersID := kad.next

	p1 := peer.ID("provider-1")
	p2 := peer.ID("provider-2")
	c.handle(queryEvent{id: getProvidersID, final: true, providers: []peer.ID{p1, p2}})
	require.Equal(t, []peer.ID{p1, p2}, kad.getClosest)
	closestID1 := kad.next - 1
	closestID2 := kad.next

	msgs = c.handle(queryEvent{id: closestID1, final: true, closest: []peer.ID{p2}})
	require.NotEmpty(t, msgs)
	msgs = c.handle(queryEvent{id: closestID2, final: true, closest: nil})
	require.NotEmpty(t, msgs)

	// the chain is fully drained; nothing further was started
	require.Equal(t, 1, kad.bootstraps)
	require.Equal(t, 1, kad.provides)
	require.Equal(t, 1, kad.getProvs)
}

func TestChainFailureDropsOnlyThatQuery(t *testing.T) {
	kad := &fakeKad{}
	c := newChain(kad)

	c.begin()
	c.handle(queryEvent{id: kad.next, final: true}) // bootstrap done
	c.handle(queryEvent{id: kad.next, final: true}) // provide done
	c.handle(queryEvent{id: kad.next, final: true, providers: []peer.ID{"a", "b"}})
	first := kad.next - 1
	second := kad.next

	msgs := c.handle(queryEvent{id: first, err: errors.New("boom")})
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0], "failed")

	// the sibling fan-out query still completes normally
	msgs = c.handle(queryEvent{id: second, final: true, closest: []peer.ID{"c"}})
	require.NotEmpty(t, msgs)
}

func TestChainRestartDiscardsStaleCompletions(t *testing.T) {
	kad := &fakeKad{}
	c := newChain(kad)

	c.begin()
	staleID := kad.next

	c.begin()
	require.Equal(t, 2, kad.bootstraps)

	// the superseded bootstrap finishing must not start a provide
	require.Nil(t, c.handle(queryEvent{id: staleID, final: true}))
	require.Equal(t, 0, kad.provides)

	// the live bootstrap advances as usual
	c.handle(queryEvent{id: kad.next, final: true})
	require.Equal(t, 1, kad.provides)
}

func TestChainUnknownQueryIgnored(t *testing.T) {
	c := newChain(&fakeKad{})
	require.Nil(t, c.handle(queryEvent{id: 999, final: true}))
}
