package chain

import (
	"math/rand/v2"
	"slices"

	"github.com/ValentinKolb/dCRAQ/lib/util"
)

// Builder computes the replication chain for a client write
type Builder interface {
	// Build returns the chain for a write first received by receiver.
	// members is the full, static cluster membership.
	Build(members []string, receiver string) Chain
	// Receiver returns the node that must build the chain for a write
	// received by receiver. It is receiver itself unless the topology
	// pins the chain head.
	Receiver(receiver string) string
}

// --------------------------------------------------------------------------
// Fixed (CRAQ)
// --------------------------------------------------------------------------

type fixedBuilder struct {
	order []string
}

// NewFixedBuilder returns a builder that always yields the same head to
// tail chain, independent of the receiver
func NewFixedBuilder(order []string) Builder {
	return &fixedBuilder{order: slices.Clone(order)}
}

func (b *fixedBuilder) Build(_ []string, _ string) Chain {
	return FromOrder(b.order)
}

func (b *fixedBuilder) Receiver(_ string) string {
	if len(b.order) == 0 {
		return ""
	}
	return b.order[0]
}

// --------------------------------------------------------------------------
// Star (dynamic)
// --------------------------------------------------------------------------

type starBuilder struct {
	seed uint64
}

// NewStarBuilder returns a builder that puts the receiver first and the
// remaining members in a pseudo random order. The order only depends on
// seed and the receiver name, so the same receiver always builds the same
// chain.
func NewStarBuilder(seed uint64) Builder {
	return &starBuilder{seed: seed}
}

func (b *starBuilder) Build(members []string, receiver string) Chain {
	rest := make([]string, 0, len(members))
	for _, m := range members {
		if m != receiver {
			rest = append(rest, m)
		}
	}
	slices.Sort(rest)

	rng := rand.New(rand.NewPCG(b.seed, util.HashString(receiver, 0)))
	rng.Shuffle(len(rest), func(i, j int) {
		rest[i], rest[j] = rest[j], rest[i]
	})

	return FromOrder(append([]string{receiver}, rest...))
}

func (b *starBuilder) Receiver(receiver string) string {
	return receiver
}
