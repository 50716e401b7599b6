package util

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// item is one link of the queue
type item[T any] struct {
	value *T
	next  atomic.Pointer[item[T]]
}

// LockFreeMPSC is an unbounded multi-producer single-consumer queue.
// Producers append with CAS on the tail link, a single internal goroutine
// walks the list from the head and hands values to Recv() in link order.
type LockFreeMPSC[T any] struct {
	head   atomic.Pointer[item[T]]
	tail   atomic.Pointer[item[T]]
	out    chan *T
	done   sync.WaitGroup
	closed atomic.Bool

	// producers between their closed check and linking their item
	pushing atomic.Int64

	// wakeup for the consumer, Signal is always sent while holding mu
	// so a producer can never slip between the consumer's check and Wait
	mu   sync.Mutex
	cond *sync.Cond
}

// NewLockFreeMPSC creates the queue and starts its delivery goroutine
func NewLockFreeMPSC[T any]() *LockFreeMPSC[T] {
	sentinel := &item[T]{}

	q := &LockFreeMPSC[T]{
		out: make(chan *T),
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	q.done.Add(1)
	go q.deliver()

	return q
}

// Push appends a value. It returns false for nil values or when the
// queue is closed.
//
// Thread-safety: any number of goroutines may call Push concurrently.
func (q *LockFreeMPSC[T]) Push(value *T) bool {
	if value == nil {
		return false
	}

	// registered before the closed check, so the consumer can not exit
	// while an accepted item is still being linked
	q.pushing.Add(1)
	defer q.pushing.Add(-1)
	if q.closed.Load() {
		return false
	}

	n := &item[T]{value: value}
	var spins uint8

	for {
		last := q.tail.Load()
		next := last.next.Load()

		if next == nil {
			if last.next.CompareAndSwap(nil, n) {
				// losing this CAS is fine, whoever won already moved the tail
				q.tail.CompareAndSwap(last, n)
				q.wake()
				return true
			}
		} else {
			// another producer linked a node but did not move the tail yet
			q.tail.CompareAndSwap(last, next)
		}

		// spin a little under contention, then yield
		if spins < 10 {
			spins++
			for i := 0; i < 1<<spins; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

func (q *LockFreeMPSC[T]) wake() {
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// deliver moves values from the list to the out channel until the queue
// is closed and empty
func (q *LockFreeMPSC[T]) deliver() {
	defer q.done.Done()
	defer close(q.out)

	for {
		drained := true

		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			drained = false

			value := next.value
			q.head.Store(next)
			q.out <- value
			next.value = nil
		}

		if drained {
			if q.closed.Load() {
				if q.pushing.Load() > 0 {
					runtime.Gosched()
					continue
				}
				if q.head.Load().next.Load() == nil {
					return
				}
				continue
			}
			q.mu.Lock()
			if q.head.Load().next.Load() == nil && !q.closed.Load() {
				q.cond.Wait()
			}
			q.mu.Unlock()
		}
	}
}

// Recv returns the channel the single consumer reads from. The channel is
// closed once the queue is closed and every pushed value was delivered.
func (q *LockFreeMPSC[T]) Recv() <-chan *T {
	return q.out
}

// Close stops accepting new values. Values already pushed are still delivered.
func (q *LockFreeMPSC[T]) Close() {
	q.closed.Store(true)
	q.wake()
}

// Len counts the values not yet handed to the consumer. It walks the list, O(n).
func (q *LockFreeMPSC[T]) Len() int {
	count := 0
	for cur := q.head.Load().next.Load(); cur != nil; cur = cur.next.Load() {
		count++
	}
	return count
}
