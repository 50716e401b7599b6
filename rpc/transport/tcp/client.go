package tcp

import (
	"net"
	"strings"
	"time"

	"github.com/ValentinKolb/dCRAQ/rpc/common"
	"github.com/ValentinKolb/dCRAQ/rpc/transport"
	"github.com/ValentinKolb/dCRAQ/rpc/transport/base"
)

// dialTimeout bounds connection setup, request timeouts apply afterwards
const dialTimeout = 5 * time.Second

// clientConnector implements the IClientConnector interface for TCP sockets
type clientConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "tcp"
}

// Connect dials endpoint, an optional tcp:// prefix is ignored
func (c *clientConnector) Connect(endpoint string) (net.Conn, error) {
	return net.DialTimeout("tcp", strings.TrimPrefix(endpoint, "tcp://"), dialTimeout)
}

func (c *clientConnector) UpgradeConnection(conn net.Conn, config common.SocketConf) error {
	return upgradeConnection(conn, config)
}

// --------------------------------------------------------------------------
// Client Transport Factory Method
// --------------------------------------------------------------------------

// NewTCPClientTransport creates a TCP client transport. It is a
// transport.ClientTransportFactory, so nodes use it to reach their peers.
func NewTCPClientTransport() transport.IRPCClientTransport {
	return base.NewBaseClientTransport(&clientConnector{})
}
