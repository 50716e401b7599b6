package common

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Chain mode
// --------------------------------------------------------------------------

// ChainMode selects how replication chains are built
type ChainMode string

const (
	// ModeCRAQ uses one static chain for every write, the tail is the authority
	ModeCRAQ ChainMode = "craq"
	// ModeStar builds one chain per receiving node, the leader is the authority
	ModeStar ChainMode = "star"
)

// ParseChainMode converts a string to a ChainMode
func ParseChainMode(s string) (ChainMode, error) {
	switch ChainMode(strings.ToLower(s)) {
	case ModeCRAQ:
		return ModeCRAQ, nil
	case ModeStar:
		return ModeStar, nil
	default:
		return "", fmt.Errorf("invalid chain mode %q, must be one of craq, star", s)
	}
}

// --------------------------------------------------------------------------
// Transport configuration
// --------------------------------------------------------------------------

// SocketConf holds socket options shared by clients and servers
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int // negative keeps the system default
}

// ServerTransportConfig configures the listening side of a transport
type ServerTransportConfig struct {
	SocketConf
	// Endpoint is the address the server listens on
	Endpoint string
	// BufferSize of the per request read buffer (stream transports)
	BufferSize int
	// WorkersPerConn limits concurrent requests per connection, 0 means unbounded
	WorkersPerConn int
}

// ClientTransportConfig configures the connecting side of a transport
type ClientTransportConfig struct {
	SocketConf
	// Endpoints to connect to
	Endpoints []string
	// ConnectionsPerEndpoint opened by stream transports (minimum 1)
	ConnectionsPerEndpoint int
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of one node.
type ServerConfig struct {
	// NodeName is the name of this node, it must be a key of Members
	NodeName string
	// Members maps the name of every node to its endpoint
	Members map[string]string
	// Authority is the tail (craq) or leader (star) of the cluster
	Authority string

	// Mode selects the chain builder
	Mode ChainMode
	// ChainOrder is the static head to tail order (craq only)
	ChainOrder []string
	// ChainSeed seeds the per receiver chain permutation (star only)
	ChainSeed uint64

	// Transport settings of the server, peers connect with the same socket options
	Transport ServerTransportConfig

	// TimeoutSecond bounds requests to peers, 0 waits forever
	TimeoutSecond int

	// MetricsEndpoint serves /metrics and /health if not empty
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// MemberNames returns the sorted names of all members
func (c *ServerConfig) MemberNames() []string {
	names := make([]string, 0, len(c.Members))
	for name := range c.Members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the configuration for consistency
func (c *ServerConfig) Validate() error {
	if c.NodeName == "" {
		return fmt.Errorf("node name must not be empty")
	}
	if len(c.Members) == 0 {
		return fmt.Errorf("at least one member is required")
	}
	if _, ok := c.Members[c.NodeName]; !ok {
		return fmt.Errorf("node %q is not a member", c.NodeName)
	}
	if _, ok := c.Members[c.Authority]; !ok {
		return fmt.Errorf("authority %q is not a member", c.Authority)
	}
	for name, endpoint := range c.Members {
		if name == "" || endpoint == "" {
			return fmt.Errorf("member %q has no endpoint", name)
		}
	}
	if c.TimeoutSecond < 0 {
		return fmt.Errorf("timeout must not be negative")
	}

	switch c.Mode {
	case ModeCRAQ:
		order := slices.Clone(c.ChainOrder)
		slices.Sort(order)
		if !slices.Equal(order, c.MemberNames()) {
			return fmt.Errorf("chain order %v must list every member exactly once", c.ChainOrder)
		}
		if c.ChainOrder[len(c.ChainOrder)-1] != c.Authority {
			return fmt.Errorf("the authority %q must be the tail of the chain %v", c.Authority, c.ChainOrder)
		}
	case ModeStar:
	default:
		return fmt.Errorf("invalid chain mode %q", c.Mode)
	}
	return nil
}

// PeerClientConfig returns the client configuration used to reach endpoint
func (c *ServerConfig) PeerClientConfig(endpoint string) ClientConfig {
	return ClientConfig{
		TimeoutSecond: c.TimeoutSecond,
		Transport: ClientTransportConfig{
			SocketConf:             c.Transport.SocketConf,
			Endpoints:              []string{endpoint},
			ConnectionsPerEndpoint: 1,
		},
	}
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// Node identity
	addSection("Node")
	addField("Name", c.NodeName)
	addField("Authority", c.Authority)
	addField("Mode", string(c.Mode))
	switch c.Mode {
	case ModeCRAQ:
		addField("Chain", strings.Join(c.ChainOrder, " -> "))
	case ModeStar:
		addField("Chain Seed", strconv.FormatUint(c.ChainSeed, 10))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	if c.Transport.WorkersPerConn > 0 {
		addField("Workers Per Conn", strconv.Itoa(c.Transport.WorkersPerConn))
	} else {
		addField("Workers Per Conn", "unbounded")
	}
	if c.MetricsEndpoint != "" {
		addField("Metrics", c.MetricsEndpoint)
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Members
	addSection("Members")
	for _, name := range c.MemberNames() {
		addField(name, c.Members[name])
	}
	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	// Members maps node names to endpoints, used by clients choosing a node
	Members       map[string]string
	TimeoutSecond int
	Transport     ClientTransportConfig
}

// MemberNames returns the sorted names of all members
func (c *ClientConfig) MemberNames() []string {
	names := make([]string, 0, len(c.Members))
	for name := range c.Members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForEndpoint returns a copy of the configuration that connects to endpoint only
func (c *ClientConfig) ForEndpoint(endpoint string) ClientConfig {
	out := *c
	out.Transport.Endpoints = []string{endpoint}
	return out
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Connections Per Endpoint", strconv.Itoa(max(1, c.Transport.ConnectionsPerEndpoint)))

	// Members
	addSection("Members")
	for _, name := range c.MemberNames() {
		addField(name, c.Members[name])
	}

	return sb.String()
}
