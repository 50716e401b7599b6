package node

import (
	"github.com/ValentinKolb/dCRAQ/lib/lockmgr"
	"github.com/ValentinKolb/dCRAQ/lib/store"
	"github.com/VictoriaMetrics/metrics"
)

type nodeMetrics struct {
	set *metrics.Set

	sets          *metrics.Counter
	gets          *metrics.Counter
	acks          *metrics.Counter
	fallbacks     *metrics.Counter
	versions      *metrics.Counter
	violations    *metrics.Counter
	forwardErrors *metrics.Counter
}

func newNodeMetrics(set *metrics.Set, st store.IStore, locks lockmgr.ILockManager) *nodeMetrics {
	set.GetOrCreateGauge("dcraq_keys", func() float64 {
		return float64(st.Stats().Keys)
	})
	set.GetOrCreateGauge("dcraq_pending_writes", func() float64 {
		return float64(st.Stats().Pending)
	})
	set.GetOrCreateGauge("dcraq_locked_keys", func() float64 {
		return float64(locks.Held())
	})

	return &nodeMetrics{
		set:           set,
		sets:          set.GetOrCreateCounter(`dcraq_requests_total{type="set"}`),
		gets:          set.GetOrCreateCounter(`dcraq_requests_total{type="get"}`),
		acks:          set.GetOrCreateCounter(`dcraq_requests_total{type="ack"}`),
		fallbacks:     set.GetOrCreateCounter("dcraq_get_fallbacks_total"),
		versions:      set.GetOrCreateCounter("dcraq_versions_assigned_total"),
		violations:    set.GetOrCreateCounter("dcraq_protocol_violations_total"),
		forwardErrors: set.GetOrCreateCounter("dcraq_forward_errors_total"),
	}
}
