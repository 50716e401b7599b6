package unix

import (
	"net"
	"strings"
	"time"

	"github.com/ValentinKolb/dCRAQ/rpc/common"
	"github.com/ValentinKolb/dCRAQ/rpc/transport"
	"github.com/ValentinKolb/dCRAQ/rpc/transport/base"
)

// dialTimeout bounds connection setup to a socket file
const dialTimeout = time.Second

// clientConnector implements the IClientConnector interface for Unix sockets
type clientConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "unix"
}

// Connect dials the socket file at endpoint, an optional unix:// prefix is ignored
func (c *clientConnector) Connect(endpoint string) (net.Conn, error) {
	return net.DialTimeout("unix", strings.TrimPrefix(endpoint, "unix://"), dialTimeout)
}

func (c *clientConnector) UpgradeConnection(conn net.Conn, config common.SocketConf) error {
	return upgradeConnection(conn, config)
}

// --------------------------------------------------------------------------
// Client Transport Factory Method
// --------------------------------------------------------------------------

// NewUnixClientTransport creates a Unix client transport. Only nodes on the
// same machine can be reached.
func NewUnixClientTransport() transport.IRPCClientTransport {
	return base.NewBaseClientTransport(&clientConnector{})
}
