package history

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name string
		ops  []Operation
		ok   bool
	}{
		{
			name: "sequential",
			ops: []Operation{
				{Client: 0, Kind: OpSet, Key: "x", Value: "1", Call: 0, Return: 10},
				{Client: 1, Kind: OpGet, Key: "x", Value: "1", Found: true, Call: 20, Return: 30},
			},
			ok: true,
		},
		{
			name: "unknown key",
			ops: []Operation{
				{Client: 0, Kind: OpGet, Key: "x", Call: 0, Return: 10},
			},
			ok: true,
		},
		{
			name: "concurrent read may see either value",
			ops: []Operation{
				{Client: 0, Kind: OpSet, Key: "x", Value: "1", Call: 0, Return: 10},
				{Client: 0, Kind: OpSet, Key: "x", Value: "2", Call: 20, Return: 50},
				{Client: 1, Kind: OpGet, Key: "x", Value: "1", Found: true, Call: 25, Return: 30},
				{Client: 2, Kind: OpGet, Key: "x", Value: "2", Found: true, Call: 31, Return: 40},
			},
			ok: true,
		},
		{
			name: "stale read after write returned",
			ops: []Operation{
				{Client: 0, Kind: OpSet, Key: "x", Value: "1", Call: 0, Return: 10},
				{Client: 0, Kind: OpSet, Key: "x", Value: "2", Call: 20, Return: 30},
				{Client: 1, Kind: OpGet, Key: "x", Value: "1", Found: true, Call: 40, Return: 50},
			},
			ok: false,
		},
		{
			name: "value out of thin air",
			ops: []Operation{
				{Client: 0, Kind: OpSet, Key: "x", Value: "1", Call: 0, Return: 10},
				{Client: 1, Kind: OpGet, Key: "x", Value: "7", Found: true, Call: 20, Return: 30},
			},
			ok: false,
		},
		{
			name: "keys are independent",
			ops: []Operation{
				{Client: 0, Kind: OpSet, Key: "x", Value: "1", Call: 0, Return: 10},
				{Client: 1, Kind: OpGet, Key: "y", Call: 20, Return: 30},
			},
			ok: true,
		},
		{
			name: "failed write may take effect",
			ops: []Operation{
				{Client: 0, Kind: OpSet, Key: "x", Value: "1", Call: 0, Return: math.MaxInt64, Failed: true},
				{Client: 1, Kind: OpGet, Key: "x", Value: "1", Found: true, Call: 20, Return: 30},
			},
			ok: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Check(tt.ops, 5*time.Second)
			if res.Ok() != tt.ok {
				t.Errorf("expected ok=%v, got %s", tt.ok, res)
			}
		})
	}
}

func TestRecorderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	r := NewRecorder(&buf)

	call := r.Now()
	r.RecordSet(0, "x", "1", call, nil)
	call = r.Now()
	r.RecordGet(1, "x", "1", true, call, nil)
	r.RecordGet(1, "x", "", false, r.Now(), errors.New("unreachable"))
	r.RecordSet(2, "x", "2", r.Now(), errors.New("unreachable"))

	if err := r.Err(); err != nil {
		t.Fatalf("writing the log failed: %v", err)
	}

	ops, err := ReadLog(&buf)
	if err != nil {
		t.Fatalf("reading the log failed: %v", err)
	}
	if len(ops) != 3 {
		t.Fatalf("expected 3 operations (failed read dropped), got %d", len(ops))
	}
	if !ops[2].Failed || ops[2].Return != math.MaxInt64 {
		t.Errorf("failed write must stay open, got %+v", ops[2])
	}
	if ops[0].Return < ops[0].Call {
		t.Errorf("return before call: %+v", ops[0])
	}

	if res := Check(ops, 5*time.Second); !res.Ok() {
		t.Errorf("recorded history should be linearizable, got %s", res)
	}
	if len(r.Operations()) != 3 {
		t.Errorf("expected 3 operations in memory, got %d", len(r.Operations()))
	}
}

func TestReadLogErrors(t *testing.T) {
	if _, err := ReadLog(bytes.NewBufferString("{not json}\n")); err == nil {
		t.Error("expected parse error")
	}
	if _, err := ReadLog(bytes.NewBufferString(`{"op":"delete","key":"x"}` + "\n")); err == nil {
		t.Error("expected unknown operation error")
	}
	ops, err := ReadLog(bytes.NewBufferString("\n\n"))
	if err != nil || len(ops) != 0 {
		t.Errorf("empty log: ops=%v err=%v", ops, err)
	}
}

func TestVisualize(t *testing.T) {
	res := Check([]Operation{
		{Client: 0, Kind: OpSet, Key: "x", Value: "1", Call: 0, Return: 10},
		{Client: 1, Kind: OpGet, Key: "x", Value: "1", Found: true, Call: 20, Return: 30},
	}, time.Second)

	var buf bytes.Buffer
	if err := Visualize(res, &buf); err != nil {
		t.Fatalf("visualize failed: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("expected html output")
	}
}

func TestVisualizeFileOfIllegalHistory(t *testing.T) {
	res := Check([]Operation{
		{Client: 0, Kind: OpSet, Key: "x", Value: "1", Call: 0, Return: 10},
		{Client: 1, Kind: OpGet, Key: "x", Value: "7", Found: true, Call: 20, Return: 30},
	}, time.Second)
	if res.Ok() {
		t.Fatal("expected an illegal history")
	}

	path := filepath.Join(t.TempDir(), "history.html")
	if err := VisualizeFile(res, path); err != nil {
		t.Fatalf("visualize failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read visualization: %v", err)
	}
	if !bytes.Contains(data, []byte("html")) {
		t.Error("expected an html document")
	}
}
