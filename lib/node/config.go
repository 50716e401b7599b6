package node

import (
	"fmt"
	"slices"

	"github.com/ValentinKolb/dCRAQ/lib/chain"
	"github.com/ValentinKolb/dCRAQ/lib/store"
)

// Config is the read-only cluster view of one node
type Config struct {
	// Self is the name of this node
	Self string
	// Authority is the node assigning version numbers (tail or leader)
	Authority string
	// Members are the names of all nodes in the cluster, Self included
	Members []string
	// Builder computes the chain for client writes
	Builder chain.Builder
	// Store holds the replica state, a fresh in-memory store is used if nil
	Store store.IStore
}

// Validate checks that the configuration describes a usable cluster
func (c Config) Validate() error {
	if c.Self == "" {
		return fmt.Errorf("node name must not be empty")
	}
	if c.Builder == nil {
		return fmt.Errorf("chain builder must be set")
	}
	if len(c.Members) == 0 {
		return fmt.Errorf("members must not be empty")
	}

	sorted := slices.Clone(c.Members)
	slices.Sort(sorted)
	for i, m := range sorted {
		if m == "" {
			return fmt.Errorf("member names must not be empty")
		}
		if i > 0 && sorted[i-1] == m {
			return fmt.Errorf("duplicate member %q", m)
		}
	}
	if !slices.Contains(c.Members, c.Self) {
		return fmt.Errorf("node %q is not a member of %v", c.Self, c.Members)
	}
	if !slices.Contains(c.Members, c.Authority) {
		return fmt.Errorf("authority %q is not a member of %v", c.Authority, c.Members)
	}

	receiver := c.Builder.Receiver(c.Self)
	if !slices.Contains(c.Members, receiver) {
		return fmt.Errorf("chain head %q is not a member", receiver)
	}
	built := c.Builder.Build(c.Members, receiver)
	if !built.Valid() {
		return fmt.Errorf("chain builder returned an invalid chain")
	}
	order := built.Order()
	slices.Sort(order)
	if !slices.Equal(order, sorted) {
		return fmt.Errorf("chain %v does not cover all members %v", built.Order(), c.Members)
	}
	return nil
}
