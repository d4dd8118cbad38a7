package node

import (
	"fmt"

	"meshchat/pkg/chat"
)

// The discovery chain walks the DHT in four stages after every bootstrap:
// bootstrap the routing table, advertise ourselves under the agent key,
// look up the other providers of that key, then resolve the closest peers
// to each provider. The last stage fans out one sub-query per provider.

type queryStage int

const (
	stageBootstrap queryStage = iota
	stageProvide
	stageGetProviders
	stageGetClosestPeers
)

func (s queryStage) String() string {
	switch s {
	case stageBootstrap:
		return "bootstrap"
	case stageProvide:
		return "provide"
	case stageGetProviders:
		return "get-providers"
	case stageGetClosestPeers:
		return "get-closest-peers"
	default:
		return fmt.Sprintf("stage-%d", int(s))
	}
}

// tracker owns the outstanding query identifiers of the current chain run.
// An identifier is removed exactly once: on its final progress step, on
// failure, or wholesale when a new bootstrap supersedes the run.
type tracker struct {
	stages map[QueryID]queryStage
}

func newTracker() *tracker {
	return &tracker{stages: make(map[QueryID]queryStage)}
}

func (t *tracker) track(id QueryID, s queryStage) {
	t.stages[id] = s
}

func (t *tracker) lookup(id QueryID) (queryStage, bool) {
	s, ok := t.stages[id]
	return s, ok
}

func (t *tracker) done(id QueryID) {
	delete(t.stages, id)
}

func (t *tracker) reset() {
	clear(t.stages)
}

// chain drives the staged workflow against a Kademlia collaborator and
// returns display lines for the event channel. It is not safe for
// concurrent use; the orchestrator loop is its only caller.
type chain struct {
	kad Kademlia
	t   *tracker
}

func newChain(kad Kademlia) *chain {
	return &chain{kad: kad, t: newTracker()}
}

// begin abandons any in-flight run and starts a new bootstrap. Completions
// of abandoned queries no longer match a tracked identifier and are
// ignored when they eventually arrive.
func (c *chain) begin() []string {
	c.t.reset()
	c.t.track(c.kad.Bootstrap(), stageBootstrap)
	return []string{"bootstrapping the DHT"}
}

// handle applies one query progress event. Intermediate steps are reported
// but never advance a stage; only the step flagged final does. A failing
// operation drops its own identifier without touching siblings.
func (c *chain) handle(ev queryEvent) []string {
	stage, ok := c.t.lookup(ev.id)
	if !ok {
		// stale: superseded by a later bootstrap
		return nil
	}

	if ev.err != nil {
		c.t.done(ev.id)
		return []string{fmt.Sprintf("DHT %s failed: %v", stage, ev.err)}
	}

	if !ev.final {
		if ev.info != "" {
			return []string{fmt.Sprintf("DHT %s: %s", stage, ev.info)}
		}
		return nil
	}

	c.t.done(ev.id)
	switch stage {
	case stageBootstrap:
		c.t.track(c.kad.StartProviding(), stageProvide)
		return []string{"DHT bootstrapped", "providing the agent key"}

	case stageProvide:
		c.t.track(c.kad.GetProviders(), stageGetProviders)
		return []string{"provider record registered", "getting providers of the agent key"}

	case stageGetProviders:
		for _, p := range ev.providers {
			c.t.track(c.kad.GetClosestPeers(p), stageGetClosestPeers)
		}
		return []string{fmt.Sprintf("found %d providers of the agent key", len(ev.providers))}

	case stageGetClosestPeers:
		msgs := []string{fmt.Sprintf("%d potential mesh peers:", len(ev.closest))}
		for _, p := range ev.closest {
			msgs = append(msgs, "\t"+chat.NewPeer(p).String())
		}
		return msgs
	}
	return nil
}
