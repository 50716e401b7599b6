package node

import (
	"context"

	"github.com/ValentinKolb/dCRAQ/lib/chain"
	"github.com/ValentinKolb/dCRAQ/lib/store"
)

// SetRequest is a write travelling down the chain. Version and Chain are
// zero on the first hop from a client.
type SetRequest struct {
	Key       string
	Value     string
	RequestID string
	Version   store.VersionTag
	Chain     chain.Chain
}

// AckRequest is the confirmation of a write travelling back up the chain
type AckRequest struct {
	Key       string
	Value     string
	RequestID string
	Version   store.VersionTag
	// Verified is set once the authority has committed the write
	Verified bool
	Chain    chain.Chain
}

// GetResult is the answer to a read. Found is false for unknown keys.
type GetResult struct {
	Found   bool
	Value   string
	Version store.VersionTag
}

// Peers sends requests to other nodes of the cluster
type Peers interface {
	// Set forwards a write to node `to` and blocks until it answered
	Set(ctx context.Context, to string, req SetRequest) error
	// Get reads key from node `to`
	Get(ctx context.Context, to string, key string) (GetResult, error)
	// Ack sends an ack to node `to` without waiting for an answer
	Ack(to string, req AckRequest)
}
