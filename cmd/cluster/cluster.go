package cluster

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	cmdUtil "github.com/ValentinKolb/dCRAQ/cmd/util"
	"github.com/ValentinKolb/dCRAQ/lib/workload"
	"github.com/ValentinKolb/dCRAQ/rpc/client"
	"github.com/ValentinKolb/dCRAQ/rpc/common"
	"github.com/ValentinKolb/dCRAQ/rpc/serializer"
	"github.com/ValentinKolb/dCRAQ/rpc/server"
	"github.com/ValentinKolb/dCRAQ/rpc/transport"
	"github.com/ValentinKolb/dCRAQ/rpc/transport/memory"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/sourcegraph/conc"
)

var Logger = logger.GetLogger("cluster")

// --------------------------------------------------------------------------
// Local cluster
// --------------------------------------------------------------------------

// options describe a cluster of nodes that all run in this process
type options struct {
	Nodes      []string
	Mode       common.ChainMode
	Authority  string
	ChainSeed  uint64
	Transport  string
	Serializer string
	Host       string
	BasePort   int
	// MetricsBasePort enables a metrics endpoint per node if > 0
	MetricsBasePort int
	TimeoutSecond   int
	LogLevel        string
}

// localCluster runs one RPCServer per node. Every server is served by its
// own goroutine of the wait group.
type localCluster struct {
	opts    options
	members map[string]string
	servers []*server.RPCServer
	wg      conc.WaitGroup
	errs    chan error
}

// endpoint returns the address of the i-th node for the transport
func (o options) endpoint(i int, name string) string {
	switch o.Transport {
	case "memory":
		return "cluster-" + name
	case "unix":
		return filepath.Join(os.TempDir(), fmt.Sprintf("dcraq-%s.sock", name))
	default:
		return fmt.Sprintf("%s:%d", o.Host, o.BasePort+i)
	}
}

// configs returns the server configuration of every node
func (o options) configs() ([]common.ServerConfig, map[string]string) {
	members := make(map[string]string, len(o.Nodes))
	for i, name := range o.Nodes {
		members[name] = o.endpoint(i, name)
	}

	configs := make([]common.ServerConfig, 0, len(o.Nodes))
	for i, name := range o.Nodes {
		config := common.ServerConfig{
			NodeName:      name,
			Members:       members,
			Authority:     o.Authority,
			Mode:          o.Mode,
			ChainSeed:     o.ChainSeed,
			TimeoutSecond: o.TimeoutSecond,
			LogLevel:      o.LogLevel,
			Transport: common.ServerTransportConfig{
				Endpoint:   members[name],
				BufferSize: 512 * 1024,
				SocketConf: common.SocketConf{TCPNoDelay: true, TCPLingerSec: -1},
			},
		}
		if o.Mode == common.ModeCRAQ {
			config.ChainOrder = o.Nodes
		}
		if o.MetricsBasePort > 0 {
			config.MetricsEndpoint = fmt.Sprintf("%s:%d", o.Host, o.MetricsBasePort+i)
		}
		cmdUtil.ResolveChain(&config)
		configs = append(configs, config)
	}
	return configs, members
}

// startCluster creates and serves all nodes and waits until every node accepts requests
func startCluster(ctx context.Context, opts options) (*localCluster, error) {
	if len(opts.Nodes) == 0 {
		return nil, fmt.Errorf("at least one node is required")
	}

	configs, members := opts.configs()
	c := &localCluster{
		opts:    opts,
		members: members,
		errs:    make(chan error, len(configs)),
	}

	for _, config := range configs {
		s, err := newServer(config, opts)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("node %s: %w", config.NodeName, err)
		}
		c.servers = append(c.servers, s)

		c.wg.Go(func() {
			if err := s.Serve(); err != nil {
				Logger.Errorf("node %s stopped: %v", config.NodeName, err)
				c.errs <- fmt.Errorf("node %s: %w", config.NodeName, err)
			}
		})
	}

	for _, config := range configs {
		if err := awaitEndpoint(ctx, opts.Transport, config.Transport.Endpoint); err != nil {
			c.Close()
			return nil, err
		}
	}

	Logger.Infof("Cluster of %d nodes is up (mode %s, authority %s, transport %s)",
		len(configs), opts.Mode, configs[0].Authority, opts.Transport)
	return c, nil
}

func newServer(config common.ServerConfig, opts options) (*server.RPCServer, error) {
	s, err := cmdUtil.NewSerializer(opts.Serializer)
	if err != nil {
		return nil, err
	}
	t, err := cmdUtil.NewServerTransport(opts.Transport)
	if err != nil {
		return nil, err
	}
	peers, err := cmdUtil.NewClientTransportFactory(opts.Transport)
	if err != nil {
		return nil, err
	}
	return server.NewRPCServer(config, t, s, peers)
}

// Errors returns the errors of nodes that stopped on their own
func (c *localCluster) Errors() <-chan error {
	return c.errs
}

// ClientConfig returns the client configuration for the cluster
func (c *localCluster) ClientConfig() common.ClientConfig {
	return common.ClientConfig{
		Members:       c.members,
		TimeoutSecond: c.opts.TimeoutSecond,
		Transport: common.ClientTransportConfig{
			SocketConf:             common.SocketConf{TCPNoDelay: true, TCPLingerSec: -1},
			ConnectionsPerEndpoint: 1,
		},
	}
}

// NewClients creates n clients of the cluster
func (c *localCluster) NewClients(n int) ([]*client.Client, error) {
	s, err := cmdUtil.NewSerializer(c.opts.Serializer)
	if err != nil {
		return nil, err
	}
	factory, err := cmdUtil.NewClientTransportFactory(c.opts.Transport)
	if err != nil {
		return nil, err
	}
	return newClients(n, c.ClientConfig(), factory, s)
}

// Close stops every node and waits for all of them
func (c *localCluster) Close() {
	for _, s := range c.servers {
		if err := s.Close(); err != nil {
			Logger.Warningf("failed to close node: %v", err)
		}
	}
	c.wg.Wait()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func newClients(n int, config common.ClientConfig, factory transport.ClientTransportFactory, s serializer.IRPCSerializer) ([]*client.Client, error) {
	clients := make([]*client.Client, 0, n)
	for i := 0; i < n; i++ {
		cl, err := client.NewClient(fmt.Sprintf("cluster-client-%d", i), config, factory, s)
		if err != nil {
			closeClients(clients)
			return nil, err
		}
		clients = append(clients, cl)
	}
	return clients, nil
}

func closeClients(clients []*client.Client) {
	for _, cl := range clients {
		_ = cl.Close()
	}
}

// asKV returns the clients as workload clients
func asKV(clients []*client.Client) []workload.KV {
	kv := make([]workload.KV, len(clients))
	for i, cl := range clients {
		kv[i] = cl
	}
	return kv
}

// awaitEndpoint blocks until a node listens on endpoint
func awaitEndpoint(ctx context.Context, transportName, endpoint string) error {
	if transportName == "memory" {
		return memory.DefaultNetwork().Await(ctx, endpoint)
	}

	network := "tcp"
	if transportName == "unix" {
		network = "unix"
	}

	for {
		conn, err := net.DialTimeout(network, endpoint, time.Second)
		if err == nil {
			return conn.Close()
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("node at %s did not start: %w", endpoint, err)
		case <-time.After(50 * time.Millisecond):
		}
	}
}
