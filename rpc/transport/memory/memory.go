package memory

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/dCRAQ/rpc/common"
	"github.com/ValentinKolb/dCRAQ/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Network
// --------------------------------------------------------------------------

// Network connects in memory client and server transports by endpoint name
type Network struct {
	servers *xsync.MapOf[string, *serverTransport]
	ready   *xsync.MapOf[string, chan struct{}]
}

// NewNetwork creates an empty network
func NewNetwork() *Network {
	return &Network{
		servers: xsync.NewMapOf[string, *serverTransport](),
		ready:   xsync.NewMapOf[string, chan struct{}](),
	}
}

// defaultNetwork is used by the transports created without an explicit network
var defaultNetwork = NewNetwork()

// DefaultNetwork returns the process wide network
func DefaultNetwork() *Network {
	return defaultNetwork
}

// Await blocks until a server listens on endpoint or ctx is done
func (n *Network) Await(ctx context.Context, endpoint string) error {
	ch, _ := n.ready.LoadOrCompute(endpoint, func() chan struct{} {
		return make(chan struct{})
	})
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s: %w", endpoint, ctx.Err())
	}
}

func (n *Network) register(endpoint string, s *serverTransport) error {
	if _, loaded := n.servers.LoadOrStore(endpoint, s); loaded {
		return fmt.Errorf("endpoint %s is already in use", endpoint)
	}
	n.ready.Compute(endpoint, func(ch chan struct{}, loaded bool) (chan struct{}, bool) {
		if !loaded {
			ch = make(chan struct{})
		}
		select {
		case <-ch:
		default:
			close(ch)
		}
		return ch, false
	})
	return nil
}

func (n *Network) unregister(endpoint string, s *serverTransport) {
	n.servers.Compute(endpoint, func(old *serverTransport, loaded bool) (*serverTransport, bool) {
		if !loaded || old != s {
			return old, !loaded
		}
		n.ready.Delete(endpoint)
		return old, true
	})
}

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// NewMemoryServerTransport creates a server transport on the default network
func NewMemoryServerTransport() transport.IRPCServerTransport {
	return defaultNetwork.NewServerTransport()
}

// NewServerTransport creates a server transport on this network
func (n *Network) NewServerTransport() transport.IRPCServerTransport {
	return &serverTransport{network: n, done: make(chan struct{})}
}

type serverTransport struct {
	network  *Network
	handler  transport.ServerHandleFunc
	endpoint string
	once     sync.Once
	done     chan struct{}
}

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}
	t.endpoint = config.Transport.Endpoint
	if err := t.network.register(t.endpoint, t); err != nil {
		return err
	}
	<-t.done
	t.network.unregister(t.endpoint, t)
	return nil
}

func (t *serverTransport) Close() error {
	t.once.Do(func() { close(t.done) })
	return nil
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// NewMemoryClientTransport creates a client transport on the default network
func NewMemoryClientTransport() transport.IRPCClientTransport {
	return defaultNetwork.NewClientTransport()
}

// NewClientTransport creates a client transport on this network
func (n *Network) NewClientTransport() transport.IRPCClientTransport {
	return &clientTransport{network: n}
}

// ClientFactory returns a factory for client transports on this network
func (n *Network) ClientFactory() transport.ClientTransportFactory {
	return n.NewClientTransport
}

type clientTransport struct {
	network  *Network
	endpoint string
	timeout  time.Duration
}

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) != 1 {
		return fmt.Errorf("memory transport needs exactly one endpoint, got %d", len(config.Transport.Endpoints))
	}
	t.endpoint = config.Transport.Endpoints[0]
	t.timeout = time.Duration(config.TimeoutSecond) * time.Second
	return nil
}

func (t *clientTransport) Send(req []byte) ([]byte, error) {
	server, ok := t.network.servers.Load(t.endpoint)
	if !ok {
		return nil, fmt.Errorf("no server listening on %s", t.endpoint)
	}

	// requests and responses are copied like on a real wire
	call := func() []byte {
		return bytes.Clone(server.handler(bytes.Clone(req)))
	}
	if t.timeout <= 0 {
		return call(), nil
	}

	respCh := make(chan []byte, 1)
	go func() { respCh <- call() }()

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()
	select {
	case resp := <-respCh:
		return resp, nil
	case <-timer.C:
		return nil, fmt.Errorf("request to %s timed out after %s", t.endpoint, t.timeout)
	}
}

func (t *clientTransport) Close() error {
	return nil
}
