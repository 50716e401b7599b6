package applier

import (
	"context"

	"github.com/ValentinKolb/dCRAQ/lib/store"
	"github.com/ValentinKolb/dCRAQ/lib/util"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("applier")

// --------------------------------------------------------------------------
// Events
// --------------------------------------------------------------------------

type EventType uint8

const (
	EventTAck         EventType = iota // the authority confirmed a pending write
	EventTGetFallback                  // a read learned the committed value from the authority
	eventTBarrier                      // internal, see Loop.Sync
)

func (t EventType) String() string {
	switch t {
	case EventTAck:
		return "ack"
	case EventTGetFallback:
		return "get-fallback"
	case eventTBarrier:
		return "barrier"
	default:
		return "unknown"
	}
}

// Event is one commit instruction for the apply loop
type Event struct {
	Type  EventType
	Key   string
	Tag   store.VersionTag
	Value string // only used by EventTGetFallback

	done chan struct{}
}

// NewAckEvent commits the pending write tag.RequestID of key with tag.Seq
func NewAckEvent(key string, tag store.VersionTag) *Event {
	return &Event{Type: EventTAck, Key: key, Tag: tag}
}

// NewGetFallbackEvent commits value under tag, learned from the authority
func NewGetFallbackEvent(key string, tag store.VersionTag, value string) *Event {
	return &Event{Type: EventTGetFallback, Key: key, Tag: tag, Value: value}
}

// --------------------------------------------------------------------------
// Loop
// --------------------------------------------------------------------------

// Loop serializes all commits of one node. Producers (request handlers)
// enqueue events from any goroutine, a single goroutine applies them to
// the store in FIFO order.
type Loop struct {
	store   store.IStore
	queue   *util.LockFreeMPSC[Event]
	stopped chan struct{}

	applied   *metrics.Counter
	ignored   *metrics.Counter
	stale     *metrics.Counter
	fallbacks *metrics.Counter
}

// NewLoop starts the apply loop for st. Counters are registered in set.
func NewLoop(st store.IStore, set *metrics.Set) *Loop {
	if set == nil {
		set = metrics.NewSet()
	}

	l := &Loop{
		store:   st,
		queue:   util.NewLockFreeMPSC[Event](),
		stopped: make(chan struct{}),

		applied:   set.GetOrCreateCounter(`dcraq_commits_total{result="applied"}`),
		ignored:   set.GetOrCreateCounter(`dcraq_commits_total{result="no_pending"}`),
		stale:     set.GetOrCreateCounter(`dcraq_commits_total{result="stale"}`),
		fallbacks: set.GetOrCreateCounter(`dcraq_get_fallback_commits_total`),
	}

	set.GetOrCreateGauge("dcraq_apply_queue_length", func() float64 {
		return float64(l.queue.Len())
	})

	go l.run()
	return l
}

// Enqueue hands an event to the loop. It returns false if the loop is closed.
//
// Thread-safety: safe for concurrent use.
func (l *Loop) Enqueue(e *Event) bool {
	if e == nil || e.Type == eventTBarrier {
		return false
	}
	return l.queue.Push(e)
}

// Sync blocks until every event enqueued before the call has been applied
// or ctx is done
func (l *Loop) Sync(ctx context.Context) error {
	barrier := &Event{Type: eventTBarrier, done: make(chan struct{})}
	if !l.queue.Push(barrier) {
		return store.NewError(store.RetCInternalError, "apply loop is closed")
	}

	select {
	case <-barrier.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events and waits until the queued ones are applied
func (l *Loop) Close() {
	l.queue.Close()
	<-l.stopped
}

func (l *Loop) run() {
	defer close(l.stopped)

	for e := range l.queue.Recv() {
		l.apply(e)
	}
}

func (l *Loop) apply(e *Event) {
	switch e.Type {
	case EventTAck:
		_, applied, err := l.store.CommitPending(e.Key, e.Tag.RequestID, e.Tag.Seq)
		switch {
		case err != nil:
			// duplicate ack or the write was already superseded
			l.ignored.Inc()
			log.Debugf("ack %s for key %q without pending write", e.Tag, e.Key)
		case applied:
			l.applied.Inc()
		default:
			l.stale.Inc()
			log.Debugf("ack %s for key %q is stale", e.Tag, e.Key)
		}

	case EventTGetFallback:
		l.fallbacks.Inc()
		if l.store.ApplyCommitted(e.Key, e.Tag, e.Value) {
			l.applied.Inc()
		} else {
			l.stale.Inc()
		}

	case eventTBarrier:
		close(e.done)

	default:
		log.Warningf("dropping event of unknown type %d", e.Type)
	}
}
