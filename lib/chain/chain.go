package chain

import (
	"encoding/json"
)

// --------------------------------------------------------------------------
// Links
// --------------------------------------------------------------------------

// Links maps a node name to its neighbour in one direction of the chain.
// An empty string means the node has no neighbour in that direction.
type Links map[string]string

// MarshalJSON encodes missing neighbours as null
func (l Links) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("null"), nil
	}
	out := make(map[string]*string, len(l))
	for k, v := range l {
		if v == "" {
			out[k] = nil
			continue
		}
		v := v
		out[k] = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes null neighbours into the empty string
func (l *Links) UnmarshalJSON(data []byte) error {
	var in map[string]*string
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in == nil {
		*l = nil
		return nil
	}
	out := make(Links, len(in))
	for k, v := range in {
		if v == nil {
			out[k] = ""
		} else {
			out[k] = *v
		}
	}
	*l = out
	return nil
}

// --------------------------------------------------------------------------
// Chain
// --------------------------------------------------------------------------

// Chain is the ordered list of nodes one write travels through, stored as
// forward (Next) and backward (Prev) links. The head has no Prev entry
// value, the tail has no Next entry value.
type Chain struct {
	Next Links `json:"next_chain"`
	Prev Links `json:"prev_chain"`
}

// FromOrder builds the chain for the given head to tail order
func FromOrder(order []string) Chain {
	c := Chain{
		Next: make(Links, len(order)),
		Prev: make(Links, len(order)),
	}
	for i, name := range order {
		c.Next[name] = ""
		c.Prev[name] = ""
		if i > 0 {
			c.Prev[name] = order[i-1]
		}
		if i < len(order)-1 {
			c.Next[name] = order[i+1]
		}
	}
	return c
}

// FromPrev rebuilds the chain from its backward links alone, as carried
// by ACK messages
func FromPrev(prev Links) Chain {
	if len(prev) == 0 {
		return Chain{}
	}
	c := Chain{
		Next: make(Links, len(prev)),
		Prev: make(Links, len(prev)),
	}
	for name, p := range prev {
		c.Prev[name] = p
		if _, ok := c.Next[name]; !ok {
			c.Next[name] = ""
		}
		if p != "" {
			c.Next[p] = name
		}
	}
	return c
}

// IsEmpty reports whether the chain has no members
func (c Chain) IsEmpty() bool {
	return len(c.Next) == 0
}

// Contains reports whether name is a member of the chain
func (c Chain) Contains(name string) bool {
	_, ok := c.Next[name]
	return ok
}

// NextOf returns the successor of name. ok is false if name is the tail
// or not a member.
func (c Chain) NextOf(name string) (string, bool) {
	next, ok := c.Next[name]
	return next, ok && next != ""
}

// PrevOf returns the predecessor of name. ok is false if name is the head
// or not a member.
func (c Chain) PrevOf(name string) (string, bool) {
	prev, ok := c.Prev[name]
	return prev, ok && prev != ""
}

// Head returns the node without predecessor
func (c Chain) Head() string {
	for name, prev := range c.Prev {
		if prev == "" {
			return name
		}
	}
	return ""
}

// Tail returns the node without successor
func (c Chain) Tail() string {
	for name, next := range c.Next {
		if next == "" {
			return name
		}
	}
	return ""
}

// Order walks the chain from head to tail. Walking stops at the first
// repeated node so a malformed chain can not loop forever.
func (c Chain) Order() []string {
	head := c.Head()
	if head == "" {
		return nil
	}
	order := make([]string, 0, len(c.Next))
	seen := make(map[string]struct{}, len(c.Next))
	for cur := head; cur != ""; cur = c.Next[cur] {
		if _, dup := seen[cur]; dup {
			break
		}
		seen[cur] = struct{}{}
		order = append(order, cur)
	}
	return order
}

// Valid reports whether the links form exactly one path covering every member
func (c Chain) Valid() bool {
	if len(c.Next) == 0 || len(c.Next) != len(c.Prev) {
		return false
	}
	order := c.Order()
	if len(order) != len(c.Next) {
		return false
	}
	return c.equalLinks(FromOrder(order))
}

func (c Chain) equalLinks(o Chain) bool {
	for k, v := range o.Next {
		if c.Next[k] != v {
			return false
		}
	}
	for k, v := range o.Prev {
		if c.Prev[k] != v {
			return false
		}
	}
	return true
}
