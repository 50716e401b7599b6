package node

import (
	"context"
	"fmt"
	"slices"

	"github.com/ValentinKolb/dCRAQ/lib/applier"
	"github.com/ValentinKolb/dCRAQ/lib/chain"
	"github.com/ValentinKolb/dCRAQ/lib/lockmgr"
	"github.com/ValentinKolb/dCRAQ/lib/store"
	"github.com/ValentinKolb/dCRAQ/lib/store/lstore"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var log = logger.GetLogger("node")

// Node is the replication engine of one cluster member. It handles SET,
// GET and ACK requests, talks to other members through Peers and commits
// through its apply loop.
type Node struct {
	cfg     Config
	members []string
	peers   Peers

	st    store.IStore
	loop  *applier.Loop
	locks lockmgr.ILockManager

	// last sequence number handed out per key, authority only
	assigned *xsync.MapOf[string, uint64]

	metrics *nodeMetrics
}

// New creates the node and starts its apply loop
func New(cfg Config, peers Peers) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid node config: %w", err)
	}
	if peers == nil {
		return nil, fmt.Errorf("peers must not be nil")
	}

	st := cfg.Store
	if st == nil {
		st = lstore.NewLocalStore()
	}

	set := metrics.NewSet()
	n := &Node{
		cfg:      cfg,
		members:  slices.Clone(cfg.Members),
		peers:    peers,
		st:       st,
		loop:     applier.NewLoop(st, set),
		locks:    lockmgr.NewLockManager(),
		assigned: xsync.NewMapOf[string, uint64](),
	}
	n.metrics = newNodeMetrics(set, st, n.locks)

	log.Infof("node %s started (authority %s, members %v)", cfg.Self, cfg.Authority, cfg.Members)
	return n, nil
}

// Name returns the name of the node
func (n *Node) Name() string {
	return n.cfg.Self
}

// IsAuthority reports whether this node assigns version numbers
func (n *Node) IsAuthority() bool {
	return n.cfg.Self == n.cfg.Authority
}

// State exposes the replica state, mainly for inspection and tests
func (n *Node) State() store.IStore {
	return n.st
}

// Metrics returns the metric set of the node
func (n *Node) Metrics() *metrics.Set {
	return n.metrics.set
}

// Sync blocks until all commit events received so far are applied
func (n *Node) Sync(ctx context.Context) error {
	return n.loop.Sync(ctx)
}

// Close stops the apply loop after draining it
func (n *Node) Close() {
	n.loop.Close()
}

// --------------------------------------------------------------------------
// SET
// --------------------------------------------------------------------------

// Set handles a write. It returns once the write travelled down the rest
// of the chain; the ack travels back asynchronously.
func (n *Node) Set(ctx context.Context, req SetRequest) error {
	n.metrics.sets.Inc()

	if req.Chain.IsEmpty() {
		if req.Version.Assigned() {
			return n.violation("SET %s for key %q carries version %s but no chain", req.RequestID, req.Key, req.Version)
		}
		if err := n.checkRequestID("SET", req.Key, req.RequestID); err != nil {
			return err
		}

		// the topology may pin the chain head to another node
		if head := n.cfg.Builder.Receiver(n.cfg.Self); head != n.cfg.Self {
			log.Debugf("handing SET %s for key %q to chain head %s", req.RequestID, req.Key, head)
			if err := n.peers.Set(ctx, head, req); err != nil {
				n.metrics.forwardErrors.Inc()
				return fmt.Errorf("hand SET %s to head %s: %w", req.RequestID, head, err)
			}
			return nil
		}
		req.Chain = n.cfg.Builder.Build(n.members, n.cfg.Self)
	}

	if err := n.validateSet(req); err != nil {
		return err
	}

	if n.IsAuthority() {
		req.Version = n.assignVersion(req.Key, req.RequestID)
		log.Debugf("assigned version %s to key %q", req.Version, req.Key)
	} else {
		n.st.BufferPending(req.Key, req.RequestID, req.Version, req.Value)
	}

	if next, ok := req.Chain.NextOf(n.cfg.Self); ok {
		if err := n.peers.Set(ctx, next, req); err != nil {
			// the pending write stays, reads of the key keep asking the authority
			n.metrics.forwardErrors.Inc()
			log.Warningf("forwarding SET %s for key %q to %s failed: %v", req.RequestID, req.Key, next, err)
			return fmt.Errorf("forward SET %s to %s: %w", req.RequestID, next, err)
		}
		if n.IsAuthority() {
			n.commitDirect(req.Key, req.Version, req.Value)
		}
		return nil
	}

	// end of chain
	if n.IsAuthority() {
		n.commitDirect(req.Key, req.Version, req.Value)
	}
	n.sendAck(AckRequest{
		Key:       req.Key,
		Value:     req.Value,
		RequestID: req.RequestID,
		Version:   req.Version,
		Verified:  n.IsAuthority(),
		Chain:     req.Chain,
	})
	return nil
}

// validateSet checks a chained SET before any state is touched
func (n *Node) validateSet(req SetRequest) error {
	if err := n.checkRequestID("SET", req.Key, req.RequestID); err != nil {
		return err
	}
	if err := n.checkChain("SET", req.RequestID, req.Chain); err != nil {
		return err
	}

	// only nodes behind the authority may see an assigned version
	behind, err := n.behindAuthority(req.Chain)
	if err != nil {
		return err
	}
	switch {
	case n.IsAuthority() && req.Version.Assigned():
		return n.violation("SET %s reached the authority with version %s already assigned", req.RequestID, req.Version)
	case behind && !req.Version.Assigned():
		return n.violation("SET %s passed the authority without a version", req.RequestID)
	case !behind && !n.IsAuthority() && req.Version.Assigned():
		return n.violation("SET %s carries version %s before reaching the authority", req.RequestID, req.Version)
	case req.Version.Assigned() && req.Version.RequestID != req.RequestID:
		return n.violation("SET %s carries version of request %s", req.RequestID, req.Version.RequestID)
	}
	return nil
}

// assignVersion hands out the next sequence number for key. Numbers are
// unique even for writes that are not committed yet.
func (n *Node) assignVersion(key, requestID string) store.VersionTag {
	unlock := n.locks.Lock(key)
	defer unlock()

	var committed uint64
	if entry, found := n.st.Get(key); found {
		committed = entry.Tag.Seq
	}
	last, _ := n.assigned.Load(key)
	seq := max(last, committed) + 1
	n.assigned.Store(key, seq)

	n.metrics.versions.Inc()
	return store.VersionTag{RequestID: requestID, Seq: seq}
}

// commitDirect is the authority's synchronous commit
func (n *Node) commitDirect(key string, tag store.VersionTag, value string) {
	unlock := n.locks.Lock(key)
	defer unlock()

	if !n.st.ApplyCommitted(key, tag, value) {
		log.Debugf("authority commit of %s for key %q is stale", tag, key)
	}
}

// --------------------------------------------------------------------------
// GET
// --------------------------------------------------------------------------

// Get answers a read locally if that is safe and asks the authority otherwise
func (n *Node) Get(ctx context.Context, key string) (GetResult, error) {
	n.metrics.gets.Inc()

	entry, found := n.st.Get(key)
	if n.IsAuthority() || entry.State == store.StateClean {
		return GetResult{Found: found, Value: entry.Value, Version: entry.Tag}, nil
	}

	n.metrics.fallbacks.Inc()
	res, err := n.peers.Get(ctx, n.cfg.Authority, key)
	if err != nil {
		log.Warningf("read of key %q from authority %s failed: %v", key, n.cfg.Authority, err)
		return GetResult{}, fmt.Errorf("read %q from authority %s: %w", key, n.cfg.Authority, err)
	}
	if res.Found && res.Version.Assigned() {
		n.loop.Enqueue(applier.NewGetFallbackEvent(key, res.Version, res.Value))
	}
	return res, nil
}

// --------------------------------------------------------------------------
// ACK
// --------------------------------------------------------------------------

// Ack handles the confirmation of a write and passes it on upstream.
// It never waits for other nodes.
func (n *Node) Ack(_ context.Context, req AckRequest) error {
	n.metrics.acks.Inc()

	if err := n.checkRequestID("ACK", req.Key, req.RequestID); err != nil {
		return err
	}
	if !req.Version.Assigned() {
		return n.violation("ACK %s for key %q without version", req.RequestID, req.Key)
	}
	if err := n.checkChain("ACK", req.RequestID, req.Chain); err != nil {
		return err
	}

	switch {
	case req.Verified:
		n.loop.Enqueue(applier.NewAckEvent(req.Key, req.Version))
	case n.IsAuthority():
		// the write passed the authority on its way down, make sure it is
		// committed here before anybody upstream marks it clean
		n.commitDirect(req.Key, req.Version, req.Value)
		req.Verified = true
	}

	n.sendAck(req)
	return nil
}

func (n *Node) sendAck(req AckRequest) {
	if prev, ok := req.Chain.PrevOf(n.cfg.Self); ok {
		n.peers.Ack(prev, req)
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (n *Node) violation(format string, args ...any) error {
	n.metrics.violations.Inc()
	err := store.Errorf(store.RetCProtocolViolation, format, args...)
	log.Warningf("%s: %s", n.cfg.Self, err.Msg)
	return err
}

func (n *Node) checkRequestID(kind, key, requestID string) error {
	if requestID == "" {
		return n.violation("%s for key %q without request id", kind, key)
	}
	return nil
}

func (n *Node) checkChain(kind, requestID string, c chain.Chain) error {
	if !c.Valid() {
		return n.violation("%s %s carries a malformed chain", kind, requestID)
	}
	if !c.Contains(n.cfg.Self) {
		return n.violation("%s %s carries a chain without node %s", kind, requestID, n.cfg.Self)
	}
	if !c.Contains(n.cfg.Authority) {
		return n.violation("%s %s carries a chain without authority %s", kind, requestID, n.cfg.Authority)
	}
	return nil
}

// behindAuthority reports whether the authority comes before this node in c
func (n *Node) behindAuthority(c chain.Chain) (bool, error) {
	order := c.Order()
	self := slices.Index(order, n.cfg.Self)
	auth := slices.Index(order, n.cfg.Authority)
	if self < 0 || auth < 0 {
		return false, n.violation("chain %v misses node %s or authority %s", order, n.cfg.Self, n.cfg.Authority)
	}
	return auth < self, nil
}
