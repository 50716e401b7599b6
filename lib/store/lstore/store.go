package lstore

import (
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dCRAQ/lib/store"
	"github.com/puzpuzpuz/xsync/v3"
)

// keyRecord holds everything a node knows about one key
type keyRecord struct {
	mu        sync.Mutex
	committed bool
	value     string
	tag       store.VersionTag
	pending   map[string]store.PendingWrite // by request id
}

type storeImpl struct {
	records *xsync.MapOf[string, *keyRecord]
	keys    atomic.Int64
	pending atomic.Int64
}

// NewLocalStore creates a new, empty in-memory replica state.
// Every node owns exactly one store, nothing is shared between nodes.
func NewLocalStore() store.IStore {
	return &storeImpl{
		records: xsync.NewMapOf[string, *keyRecord](),
	}
}

// record returns the record for key, creating it if needed
func (s *storeImpl) record(key string) *keyRecord {
	r, _ := s.records.LoadOrCompute(key, func() *keyRecord {
		return &keyRecord{pending: make(map[string]store.PendingWrite)}
	})
	return r
}

// commitLocked stores value if seq is newer and prunes superseded pending writes.
//
// Thread-safety: r.mu must be held.
func (s *storeImpl) commitLocked(r *keyRecord, tag store.VersionTag, value string) bool {
	applied := !r.committed || tag.Seq > r.tag.Seq
	if applied {
		if !r.committed {
			s.keys.Add(1)
		}
		r.committed = true
		r.value = value
		r.tag = tag
	}

	// writes with a version up to the committed one can never become visible
	for id, w := range r.pending {
		if w.Tag.Assigned() && w.Tag.Seq <= r.tag.Seq {
			delete(r.pending, id)
			s.pending.Add(-1)
		}
	}
	return applied
}

// keepAssignedLocked decides whether a write with an assigned version is
// buffered. Only the highest assigned write per key is kept, older ones are
// dropped: they can only be cleared by a commit of at least their sequence
// number, and the highest one keeps the key dirty until then.
//
// Thread-safety: r.mu must be held.
func (s *storeImpl) keepAssignedLocked(r *keyRecord, requestID string, tag store.VersionTag) bool {
	if r.committed && tag.Seq <= r.tag.Seq {
		return false
	}
	for id, w := range r.pending {
		if id == requestID || !w.Tag.Assigned() {
			continue
		}
		if w.Tag.Seq >= tag.Seq {
			return false
		}
		delete(r.pending, id)
		s.pending.Add(-1)
	}
	return true
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(key string) (store.KeyEntry, bool) {
	r, ok := s.records.Load(key)
	if !ok {
		return store.KeyEntry{}, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry := store.KeyEntry{
		Value: r.value,
		Tag:   r.tag,
		State: store.StateClean,
	}
	if len(r.pending) > 0 {
		entry.State = store.StateDirty
	}
	return entry, r.committed
}

func (s *storeImpl) ApplyCommitted(key string, tag store.VersionTag, value string) bool {
	if !tag.Assigned() {
		return false
	}

	r := s.record(key)
	r.mu.Lock()
	defer r.mu.Unlock()

	return s.commitLocked(r, tag, value)
}

func (s *storeImpl) BufferPending(key, requestID string, tag store.VersionTag, value string) {
	r := s.record(key)
	r.mu.Lock()
	defer r.mu.Unlock()

	if tag.Assigned() && !s.keepAssignedLocked(r, requestID, tag) {
		return
	}

	if _, exists := r.pending[requestID]; !exists {
		s.pending.Add(1)
	}
	r.pending[requestID] = store.PendingWrite{
		Key:       key,
		RequestID: requestID,
		Tag:       tag,
		Value:     value,
	}
}

func (s *storeImpl) ResolvePending(key, requestID string) (store.PendingWrite, error) {
	r, ok := s.records.Load(key)
	if !ok {
		return store.PendingWrite{}, store.Errorf(store.RetCNotFound, "no pending write %s for key %q", requestID, key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.pending[requestID]
	if !ok {
		return store.PendingWrite{}, store.Errorf(store.RetCNotFound, "no pending write %s for key %q", requestID, key)
	}
	delete(r.pending, requestID)
	s.pending.Add(-1)
	return w, nil
}

func (s *storeImpl) HasPendingFor(key string) bool {
	r, ok := s.records.Load(key)
	if !ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.pending) > 0
}

func (s *storeImpl) CommitPending(key, requestID string, seq uint64) (store.PendingWrite, bool, error) {
	r, ok := s.records.Load(key)
	if !ok {
		return store.PendingWrite{}, false, store.Errorf(store.RetCNotFound, "no pending write %s for key %q", requestID, key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.pending[requestID]
	if !ok {
		return store.PendingWrite{}, false, store.Errorf(store.RetCNotFound, "no pending write %s for key %q", requestID, key)
	}
	delete(r.pending, requestID)
	s.pending.Add(-1)

	w.Tag = store.VersionTag{RequestID: requestID, Seq: seq}
	if !w.Tag.Assigned() {
		return w, false, nil
	}
	return w, s.commitLocked(r, w.Tag, w.Value), nil
}

func (s *storeImpl) Stats() store.Stats {
	return store.Stats{
		Keys:    uint64(max(s.keys.Load(), 0)),
		Pending: uint64(max(s.pending.Load(), 0)),
	}
}
