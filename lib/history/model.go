package history

import (
	"fmt"
	"io"
	"time"

	"github.com/anishathalye/porcupine"
)

// input and output are the porcupine views of an Operation
type input struct {
	kind  OpKind
	key   string
	value string
}

type output struct {
	found bool
	value string
}

// state is the value of one key, histories are partitioned per key
type state struct {
	set   bool
	value string
}

// Model describes a single register per key: a read returns the value of
// the latest write or nothing if the key was never written.
var Model = porcupine.Model{
	Partition: func(history []porcupine.Operation) [][]porcupine.Operation {
		byKey := make(map[string][]porcupine.Operation)
		var keys []string
		for _, op := range history {
			key := op.Input.(input).key
			if _, ok := byKey[key]; !ok {
				keys = append(keys, key)
			}
			byKey[key] = append(byKey[key], op)
		}
		out := make([][]porcupine.Operation, 0, len(keys))
		for _, key := range keys {
			out = append(out, byKey[key])
		}
		return out
	},

	Init: func() interface{} {
		return state{}
	},

	Step: func(s, in, out interface{}) (bool, interface{}) {
		cur := s.(state)
		i := in.(input)
		if i.kind == OpSet {
			return true, state{set: true, value: i.value}
		}
		o := out.(output)
		if !cur.set {
			return !o.found, cur
		}
		return o.found && o.value == cur.value, cur
	},

	Equal: func(a, b interface{}) bool {
		return a.(state) == b.(state)
	},

	DescribeOperation: func(in, out interface{}) string {
		i := in.(input)
		if i.kind == OpSet {
			return fmt.Sprintf("set(%s, %s)", i.key, i.value)
		}
		o := out.(output)
		if !o.found {
			return fmt.Sprintf("get(%s) -> <none>", i.key)
		}
		return fmt.Sprintf("get(%s) -> %s", i.key, o.value)
	},

	DescribeState: func(s interface{}) string {
		cur := s.(state)
		if !cur.set {
			return "<none>"
		}
		return cur.value
	},
}

// toPorcupine converts the recorded operations
func toPorcupine(ops []Operation) []porcupine.Operation {
	out := make([]porcupine.Operation, 0, len(ops))
	for _, op := range ops {
		out = append(out, porcupine.Operation{
			ClientId: op.Client,
			Input:    input{kind: op.Kind, key: op.Key, value: op.Value},
			Call:     op.Call,
			Output:   output{found: op.Found, value: op.Value},
			Return:   op.Return,
		})
	}
	return out
}

// Result of a linearizability check
type Result struct {
	Outcome porcupine.CheckResult
	Info    porcupine.LinearizationInfo
}

// Ok reports whether the history is linearizable
func (r Result) Ok() bool {
	return r.Outcome == porcupine.Ok
}

func (r Result) String() string {
	switch r.Outcome {
	case porcupine.Ok:
		return "linearizable"
	case porcupine.Illegal:
		return "not linearizable"
	default:
		return "unknown (timed out)"
	}
}

// Check tests whether ops are linearizable. A zero timeout means no limit.
func Check(ops []Operation, timeout time.Duration) Result {
	outcome, info := porcupine.CheckOperationsVerbose(Model, toPorcupine(ops), timeout)
	return Result{Outcome: outcome, Info: info}
}

// Visualize writes an HTML rendering of a check result
func Visualize(res Result, w io.Writer) error {
	return porcupine.Visualize(Model, res.Info, w)
}

// VisualizeFile writes the HTML rendering to path
func VisualizeFile(res Result, path string) error {
	return porcupine.VisualizePath(Model, res.Info, path)
}
