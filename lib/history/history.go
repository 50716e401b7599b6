package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sync"
	"time"
)

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

type OpKind string

const (
	OpSet OpKind = "set"
	OpGet OpKind = "get"
)

// Operation is one completed client call. Call and Return are nanoseconds
// since the recorder was created. A write that failed may still have taken
// effect, its Return is set to math.MaxInt64.
type Operation struct {
	Client int    `json:"client"`
	Kind   OpKind `json:"op"`
	Key    string `json:"key"`
	Value  string `json:"value"`
	Found  bool   `json:"found,omitempty"`
	Call   int64  `json:"call"`
	Return int64  `json:"return"`
	Failed bool   `json:"failed,omitempty"`
}

func (o Operation) String() string {
	if o.Kind == OpSet {
		return fmt.Sprintf("client %d: set(%s, %s)", o.Client, o.Key, o.Value)
	}
	if !o.Found {
		return fmt.Sprintf("client %d: get(%s) -> <none>", o.Client, o.Key)
	}
	return fmt.Sprintf("client %d: get(%s) -> %s", o.Client, o.Key, o.Value)
}

// --------------------------------------------------------------------------
// Recorder
// --------------------------------------------------------------------------

// Recorder collects the operations of concurrent clients. If a writer is
// given every operation is also appended to it as one JSON line.
//
// Thread-safety: all methods are safe for concurrent use.
type Recorder struct {
	start time.Time

	mu  sync.Mutex
	ops []Operation
	enc *json.Encoder
	err error
}

// NewRecorder creates a recorder. w may be nil.
func NewRecorder(w io.Writer) *Recorder {
	r := &Recorder{start: time.Now()}
	if w != nil {
		r.enc = json.NewEncoder(w)
	}
	return r
}

// Now returns the recorder's clock, to be used as call time
func (r *Recorder) Now() int64 {
	return time.Since(r.start).Nanoseconds()
}

// RecordSet stores a write that was called at call. err is the outcome.
func (r *Recorder) RecordSet(client int, key, value string, call int64, err error) {
	op := Operation{Client: client, Kind: OpSet, Key: key, Value: value, Call: call, Return: r.Now()}
	if err != nil {
		op.Failed = true
		op.Return = math.MaxInt64
	}
	r.add(op)
}

// RecordGet stores a read that was called at call. Failed reads had no
// effect and are not recorded.
func (r *Recorder) RecordGet(client int, key, value string, found bool, call int64, err error) {
	if err != nil {
		return
	}
	r.add(Operation{Client: client, Kind: OpGet, Key: key, Value: value, Found: found, Call: call, Return: r.Now()})
}

func (r *Recorder) add(op Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ops = append(r.ops, op)
	if r.enc != nil && r.err == nil {
		r.err = r.enc.Encode(op)
	}
}

// Operations returns a copy of all recorded operations
func (r *Recorder) Operations() []Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Operation, len(r.ops))
	copy(out, r.ops)
	return out
}

// Err returns the first error writing the log
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// ReadLog parses a history written by a Recorder. Empty lines are skipped.
func ReadLog(in io.Reader) ([]Operation, error) {
	var ops []Operation

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var op Operation
		if err := json.Unmarshal(raw, &op); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if op.Kind != OpSet && op.Kind != OpGet {
			return nil, fmt.Errorf("line %d: unknown operation %q", line, op.Kind)
		}
		ops = append(ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ops, nil
}
