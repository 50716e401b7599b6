package client

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/dCRAQ/lib/store"
	"github.com/ValentinKolb/dCRAQ/rpc/common"
	"github.com/ValentinKolb/dCRAQ/rpc/serializer"
	"github.com/ValentinKolb/dCRAQ/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	Logger = logger.GetLogger("client")
)

// rpcClientAdapter is a struct that stores all data needed to talk to one node.
// Used by the Client and the PeerSet with composition pattern
type rpcClientAdapter struct {
	node       string
	timeout    time.Duration
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invokeRPCRequest is a helper function used for all RPC Clients to send requests
// It returns the response message or an error. Errors of the transport are
// reported with store.RetCTransportFailure, error responses keep the code the
// node sent. This method also checks that the type of the response is the
// expected type.
func (a *rpcClientAdapter) invokeRPCRequest(ctx context.Context, req *common.Message) (*common.Message, error) {
	reqBytes, err := a.serializer.Serialize(*req)
	if err != nil {
		return nil, store.Errorf(store.RetCInternalError, "failed to serialize %s request: %v", req.MsgType, err)
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	// Send the request, the transport may block until its own timeout
	type result struct {
		data []byte
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		data, err := a.transport.Send(reqBytes)
		resCh <- result{data, err}
	}()

	var respBytes []byte
	select {
	case res := <-resCh:
		if res.err != nil {
			return nil, store.Errorf(store.RetCTransportFailure, "%s request to %s failed: %v", req.MsgType, a.node, res.err)
		}
		respBytes = res.data
	case <-ctx.Done():
		return nil, store.Errorf(store.RetCTransportFailure, "%s request to %s failed: %v", req.MsgType, a.node, ctx.Err())
	}

	// Deserialize the response
	resp := &common.Message{}
	if err := a.serializer.Deserialize(respBytes, resp); err != nil {
		return nil, store.Errorf(store.RetCTransportFailure, "invalid response from %s: %v", a.node, err)
	}

	// Check if the response is an error response
	if err := resp.Err(); err != nil {
		return nil, err
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, store.Errorf(store.RetCInternalError, "unexpected message type from %s: %s, expected %s", a.node, resp.MsgType, req.MsgType)
	}

	return resp, nil
}

// --------------------------------------------------------------------------
// Connection pool
// --------------------------------------------------------------------------

// connPool lazily opens one transport per node and keeps it for later requests
type connPool struct {
	members    map[string]string
	config     common.ClientConfig
	factory    transport.ClientTransportFactory
	serializer serializer.IRPCSerializer
	adapters   *xsync.MapOf[string, *rpcClientAdapter]
}

func newConnPool(members map[string]string, config common.ClientConfig, factory transport.ClientTransportFactory, s serializer.IRPCSerializer) *connPool {
	return &connPool{
		members:    members,
		config:     config,
		factory:    factory,
		serializer: s,
		adapters:   xsync.NewMapOf[string, *rpcClientAdapter](),
	}
}

// get returns the adapter of node, connecting it on first use
func (p *connPool) get(node string) (*rpcClientAdapter, error) {
	if a, ok := p.adapters.Load(node); ok {
		return a, nil
	}

	endpoint, ok := p.members[node]
	if !ok {
		return nil, store.Errorf(store.RetCInternalError, "unknown node %q", node)
	}

	var connectErr error
	a, _ := p.adapters.Compute(node, func(old *rpcClientAdapter, loaded bool) (*rpcClientAdapter, bool) {
		if loaded {
			return old, false
		}
		t := p.factory()
		if err := t.Connect(p.config.ForEndpoint(endpoint)); err != nil {
			connectErr = err
			return nil, true
		}
		return &rpcClientAdapter{
			node:       node,
			timeout:    time.Duration(p.config.TimeoutSecond) * time.Second,
			transport:  t,
			serializer: p.serializer,
		}, false
	})
	if connectErr != nil {
		return nil, store.Errorf(store.RetCTransportFailure, "failed to connect to %s (%s): %v", node, endpoint, connectErr)
	}
	return a, nil
}

// close closes every open transport
func (p *connPool) close() error {
	var firstErr error
	p.adapters.Range(func(node string, a *rpcClientAdapter) bool {
		if err := a.transport.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close connection to %s: %v", node, err)
		}
		p.adapters.Delete(node)
		return true
	})
	return firstErr
}
