package client

import (
	"context"

	"github.com/ValentinKolb/dCRAQ/lib/node"
	"github.com/ValentinKolb/dCRAQ/rpc/common"
	"github.com/ValentinKolb/dCRAQ/rpc/serializer"
	"github.com/ValentinKolb/dCRAQ/rpc/transport"
)

// PeerSet implements node.Peers over RPC. Every peer gets its own transport,
// opened on the first request to it.
type PeerSet struct {
	self string
	pool *connPool
}

// NewPeerSet creates the peers of the node described by config. The transports
// use the socket options and timeout of the server configuration.
func NewPeerSet(config common.ServerConfig, factory transport.ClientTransportFactory, serializer serializer.IRPCSerializer) *PeerSet {
	clientConfig := config.PeerClientConfig("")
	clientConfig.Members = config.Members
	return &PeerSet{
		self: config.NodeName,
		pool: newConnPool(config.Members, clientConfig, factory, serializer),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see node.Peers)
// --------------------------------------------------------------------------

func (p *PeerSet) Set(ctx context.Context, to string, req node.SetRequest) error {
	a, err := p.pool.get(to)
	if err != nil {
		return err
	}
	_, err = a.invokeRPCRequest(ctx, common.NewSetRequest(req))
	return err
}

func (p *PeerSet) Get(ctx context.Context, to string, key string) (node.GetResult, error) {
	a, err := p.pool.get(to)
	if err != nil {
		return node.GetResult{}, err
	}
	resp, err := a.invokeRPCRequest(ctx, common.NewGetRequest(key))
	if err != nil {
		return node.GetResult{}, err
	}
	return resp.ToGetResult(), nil
}

func (p *PeerSet) Ack(to string, req node.AckRequest) {
	go func() {
		a, err := p.pool.get(to)
		if err == nil {
			_, err = a.invokeRPCRequest(context.Background(), common.NewAckRequest(req))
		}
		if err != nil {
			Logger.Warningf("%s: ack of %s for key %q to %s failed: %v", p.self, req.Version, req.Key, to, err)
		}
	}()
}

// Close closes the transports to all peers
func (p *PeerSet) Close() error {
	return p.pool.close()
}
