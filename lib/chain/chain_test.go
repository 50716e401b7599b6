package chain

import (
	"encoding/json"
	"slices"
	"testing"
)

var members = []string{"a", "b", "c", "d"}

func TestFromOrder(t *testing.T) {
	c := FromOrder([]string{"a", "b", "c"})

	if c.Head() != "a" {
		t.Errorf("expected head a, got %q", c.Head())
	}
	if c.Tail() != "c" {
		t.Errorf("expected tail c, got %q", c.Tail())
	}
	if next, ok := c.NextOf("a"); !ok || next != "b" {
		t.Errorf("expected next of a to be b, got %q (%v)", next, ok)
	}
	if _, ok := c.NextOf("c"); ok {
		t.Error("tail must not have a successor")
	}
	if prev, ok := c.PrevOf("c"); !ok || prev != "b" {
		t.Errorf("expected prev of c to be b, got %q (%v)", prev, ok)
	}
	if _, ok := c.PrevOf("a"); ok {
		t.Error("head must not have a predecessor")
	}
	if c.Contains("x") {
		t.Error("x is not a member")
	}
	if !slices.Equal(c.Order(), []string{"a", "b", "c"}) {
		t.Errorf("unexpected order %v", c.Order())
	}
	if !c.Valid() {
		t.Error("chain should be valid")
	}
}

func TestSingleNodeChain(t *testing.T) {
	c := FromOrder([]string{"a"})
	if c.Head() != "a" || c.Tail() != "a" {
		t.Errorf("single node must be head and tail, got %q/%q", c.Head(), c.Tail())
	}
	if !c.Valid() {
		t.Error("single node chain should be valid")
	}
}

func TestInvalidChains(t *testing.T) {
	tests := []struct {
		name  string
		chain Chain
	}{
		{"empty", Chain{}},
		{"cycle", Chain{
			Next: Links{"a": "b", "b": "a"},
			Prev: Links{"a": "b", "b": "a"},
		}},
		{"disconnected", Chain{
			Next: Links{"a": "", "b": ""},
			Prev: Links{"a": "", "b": ""},
		}},
		{"asymmetric", Chain{
			Next: Links{"a": "b", "b": ""},
			Prev: Links{"a": "", "b": "c"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.chain.Valid() {
				t.Errorf("chain %v should be invalid", tt.chain)
			}
		})
	}
}

func TestLinksJSON(t *testing.T) {
	c := FromOrder([]string{"a", "b"})

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var raw map[string]map[string]*string
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw failed: %v", err)
	}
	if raw["next_chain"]["b"] != nil {
		t.Error("missing successor should be encoded as null")
	}
	if raw["prev_chain"]["a"] != nil {
		t.Error("missing predecessor should be encoded as null")
	}

	var back Chain
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !slices.Equal(back.Order(), []string{"a", "b"}) {
		t.Errorf("unexpected order after decoding: %v", back.Order())
	}
}

func TestFixedBuilder(t *testing.T) {
	b := NewFixedBuilder([]string{"a", "b", "c", "d"})

	for _, receiver := range members {
		c := b.Build(members, receiver)
		if c.Head() != "a" || c.Tail() != "d" {
			t.Errorf("receiver %s: expected a..d, got %v", receiver, c.Order())
		}
	}
	if b.Receiver("c") != "a" {
		t.Errorf("writes must be handed to the head, got %q", b.Receiver("c"))
	}
}

func TestStarBuilder(t *testing.T) {
	b := NewStarBuilder(42)

	for _, receiver := range members {
		t.Run(receiver, func(t *testing.T) {
			c := b.Build(members, receiver)

			if c.Head() != receiver {
				t.Errorf("receiver must be head, got %q", c.Head())
			}
			if !c.Valid() {
				t.Fatalf("chain invalid: %v", c)
			}

			order := c.Order()
			if len(order) != len(members) {
				t.Fatalf("expected %d members, got %v", len(members), order)
			}
			sorted := slices.Clone(order)
			slices.Sort(sorted)
			if !slices.Equal(sorted, members) {
				t.Errorf("chain must contain every member exactly once, got %v", order)
			}

			again := b.Build(members, receiver)
			if !slices.Equal(again.Order(), order) {
				t.Errorf("same receiver must build the same chain: %v vs %v", order, again.Order())
			}

			if b.Receiver(receiver) != receiver {
				t.Error("star receiver builds its own chain")
			}
		})
	}
}

func TestStarBuilderIgnoresMemberOrder(t *testing.T) {
	b := NewStarBuilder(7)
	c1 := b.Build([]string{"a", "b", "c", "d"}, "b")
	c2 := b.Build([]string{"d", "c", "b", "a"}, "b")
	if !slices.Equal(c1.Order(), c2.Order()) {
		t.Errorf("chain depends on member order: %v vs %v", c1.Order(), c2.Order())
	}
}

func TestFromPrev(t *testing.T) {
	full := FromOrder([]string{"c", "a", "d", "b"})

	rebuilt := FromPrev(full.Prev)
	if !rebuilt.Valid() {
		t.Fatalf("rebuilt chain invalid: %v", rebuilt)
	}
	if !slices.Equal(rebuilt.Order(), full.Order()) {
		t.Errorf("expected %v, got %v", full.Order(), rebuilt.Order())
	}
	if !FromPrev(nil).IsEmpty() {
		t.Error("no links must give an empty chain")
	}
}
