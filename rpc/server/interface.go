package server

import (
	"context"

	"github.com/ValentinKolb/dCRAQ/lib/node"
	"github.com/ValentinKolb/dCRAQ/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response
	// If an error occurs, it is returned as an error response
	Handle(ctx context.Context, req *common.Message) (resp *common.Message)
}

// ChainNode is the part of node.Node served over RPC
type ChainNode interface {
	Set(ctx context.Context, req node.SetRequest) error
	Get(ctx context.Context, key string) (node.GetResult, error)
	Ack(ctx context.Context, req node.AckRequest) error
}
