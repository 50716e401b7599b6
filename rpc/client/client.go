package client

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"

	"github.com/ValentinKolb/dCRAQ/lib/node"
	"github.com/ValentinKolb/dCRAQ/lib/store"
	"github.com/ValentinKolb/dCRAQ/rpc/common"
	"github.com/ValentinKolb/dCRAQ/rpc/serializer"
	"github.com/ValentinKolb/dCRAQ/rpc/transport"
	"github.com/google/uuid"
)

// Client reads and writes keys of a cluster. Requests without an explicit
// node go to a random member.
type Client struct {
	id      string
	seq     atomic.Uint64
	members []string
	pool    *connPool
}

// NewClient creates a client for the members of config. An empty clientID is
// replaced by a random one. Request ids are built from the client id and a
// counter, so two clients must never share an id.
func NewClient(
	clientID string,
	config common.ClientConfig,
	factory transport.ClientTransportFactory,
	serializer serializer.IRPCSerializer,
) (*Client, error) {
	if len(config.Members) == 0 {
		return nil, fmt.Errorf("no members configured")
	}
	if clientID == "" {
		clientID = uuid.NewString()
	}
	return &Client{
		id:      clientID,
		members: config.MemberNames(),
		pool:    newConnPool(config.Members, config, factory, serializer),
	}, nil
}

// ID returns the id of the client
func (c *Client) ID() string {
	return c.id
}

// Members returns the names of all nodes the client knows
func (c *Client) Members() []string {
	return c.members
}

// NextRequestID returns a new request id, unique for this client
func (c *Client) NextRequestID() string {
	return fmt.Sprintf("%s-%d", c.id, c.seq.Add(1))
}

// Set writes value to key through a random node
func (c *Client) Set(ctx context.Context, key, value string) error {
	return c.SetAt(ctx, c.randomNode(), key, value)
}

// SetAt writes value to key through the given node. It returns once the write
// was committed by the authority and passed the whole chain.
func (c *Client) SetAt(ctx context.Context, nodeName, key, value string) error {
	a, err := c.pool.get(nodeName)
	if err != nil {
		return err
	}
	req := common.NewSetRequest(node.SetRequest{
		Key:       key,
		Value:     value,
		RequestID: c.NextRequestID(),
	})
	_, err = a.invokeRPCRequest(ctx, req)
	return err
}

// Get reads key from a random node
func (c *Client) Get(ctx context.Context, key string) (value string, found bool, err error) {
	res, err := c.GetAt(ctx, c.randomNode(), key)
	if err != nil {
		return "", false, err
	}
	return res.Value, res.Found, nil
}

// GetAt reads key from the given node
func (c *Client) GetAt(ctx context.Context, nodeName, key string) (node.GetResult, error) {
	a, err := c.pool.get(nodeName)
	if err != nil {
		return node.GetResult{}, err
	}
	resp, err := a.invokeRPCRequest(ctx, common.NewGetRequest(key))
	if err != nil {
		return node.GetResult{}, err
	}
	return resp.ToGetResult(), nil
}

// Close closes all open connections
func (c *Client) Close() error {
	return c.pool.close()
}

func (c *Client) randomNode() string {
	return c.members[rand.IntN(len(c.members))]
}

// IsTransportFailure reports whether err means the node could not be reached
func IsTransportFailure(err error) bool {
	return store.HasCode(err, store.RetCTransportFailure)
}
