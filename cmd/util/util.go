package util

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ValentinKolb/dCRAQ/lib/chain"
	"github.com/ValentinKolb/dCRAQ/rpc/client"
	"github.com/ValentinKolb/dCRAQ/rpc/common"
	"github.com/ValentinKolb/dCRAQ/rpc/serializer"
	"github.com/ValentinKolb/dCRAQ/rpc/transport"
	"github.com/ValentinKolb/dCRAQ/rpc/transport/http"
	"github.com/ValentinKolb/dCRAQ/rpc/transport/memory"
	"github.com/ValentinKolb/dCRAQ/rpc/transport/tcp"
	"github.com/ValentinKolb/dCRAQ/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (e.g. DCRAQ_TIMEOUT)
	EnvPrefix = "dcraq"

	// DefaultMembers is the four node topology used when no members are given
	DefaultMembers = "a=localhost:9900,b=localhost:9901,c=localhost:9902,d=localhost:9903"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupRPCClientFlags adds common RPC connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of the client (0 disables the timeout)"))

	key = "members"
	cmd.PersistentFlags().String(key, DefaultMembers, WrapString("The nodes of the chain as a comma-separated list in the format 'a=localhost:9900,b=localhost:9901,...'"))

	SetupSocketFlags(cmd)

	key = "transport-conn-per-endpoint"
	cmd.PersistentFlags().Int(key, 1, WrapString("Simultaneous connections per endpoint - for transports that support this feature"))
}

// SetupSocketFlags adds the socket tuning flags shared by clients and servers
func SetupSocketFlags(cmd *cobra.Command) {
	key := "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the write buffer for the transport (in KB, ignored for http)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the read buffer for the transport (in KB, ignored for http)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY for the transport (only for tcp)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval for the transport (in seconds, only for tcp)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, -1, WrapString("The linger time for the transport (in seconds, only for tcp, negative keeps the OS default)"))
}

// InitConfig initializes configuration from .env files and environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// ParseMembers parses a member list in the format 'a=host:port,b=host:port'
func ParseMembers(list string) (map[string]string, error) {
	members := make(map[string]string)
	for _, member := range strings.Split(list, ",") {
		member = strings.TrimSpace(member)
		if member == "" {
			continue
		}
		parts := strings.SplitN(member, "=", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
			return nil, fmt.Errorf("invalid member format: %s (expected NAME=ENDPOINT)", member)
		}
		name := strings.TrimSpace(parts[0])
		if _, ok := members[name]; ok {
			return nil, fmt.Errorf("duplicate member: %s", name)
		}
		members[name] = strings.TrimSpace(parts[1])
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("no members given")
	}
	return members, nil
}

// ParseList splits a comma-separated list and drops empty entries
func ParseList(list string) []string {
	var out []string
	for _, item := range strings.Split(list, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// GetSocketConf reads the socket settings from viper
func GetSocketConf() common.SocketConf {
	return common.SocketConf{
		WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
		ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
		TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
		TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
		TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
	}
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() (*common.ClientConfig, error) {
	members, err := ParseMembers(viper.GetString("members"))
	if err != nil {
		return nil, err
	}

	endpoints := make([]string, 0, len(members))
	for _, endpoint := range members {
		endpoints = append(endpoints, endpoint)
	}
	sort.Strings(endpoints)

	return &common.ClientConfig{
		Members:       members,
		TimeoutSecond: viper.GetInt("timeout"),
		Transport: common.ClientTransportConfig{
			SocketConf:             GetSocketConf(),
			Endpoints:              endpoints,
			ConnectionsPerEndpoint: viper.GetInt("transport-conn-per-endpoint"),
		},
	}, nil
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	return NewSerializer(viper.GetString("serializer"))
}

// NewSerializer creates the serializer with the given name
func NewSerializer(name string) (serializer.IRPCSerializer, error) {
	switch name {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", name)
	}
}

// GetClientTransportFactory returns a factory for the configured client transport
func GetClientTransportFactory() (transport.ClientTransportFactory, error) {
	return NewClientTransportFactory(viper.GetString("transport"))
}

// NewClientTransportFactory returns a factory for the client transport with
// the given name. The memory transport only reaches servers of this process.
func NewClientTransportFactory(name string) (transport.ClientTransportFactory, error) {
	switch name {
	case "http":
		return http.NewHttpClientTransport, nil
	case "tcp":
		return tcp.NewTCPClientTransport, nil
	case "unix":
		return unix.NewUnixClientTransport, nil
	case "memory":
		return memory.NewMemoryClientTransport, nil
	default:
		return nil, fmt.Errorf("invalid transport %s", name)
	}
}

// NewServerTransport creates the server transport with the given name
func NewServerTransport(name string) (transport.IRPCServerTransport, error) {
	switch name {
	case "http":
		return http.NewHttpServerTransport(), nil
	case "tcp":
		return tcp.NewTCPServerTransport(), nil
	case "unix":
		return unix.NewUnixServerTransport(), nil
	case "memory":
		return memory.NewMemoryServerTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", name)
	}
}

// NewClient creates a chain client from the flags of the current command
func NewClient(clientID string) (*client.Client, error) {
	config, err := GetClientConfig()
	if err != nil {
		return nil, err
	}

	s, err := GetSerializer()
	if err != nil {
		return nil, err
	}

	factory, err := GetClientTransportFactory()
	if err != nil {
		return nil, err
	}

	return client.NewClient(clientID, *config, factory, s)
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// ResolveChain fills in the chain defaults of config. The chain order
// defaults to the sorted member names, the authority to the last of them
// (the tail of the default chain).
func ResolveChain(config *common.ServerConfig) {
	names := config.MemberNames()
	if config.Mode == common.ModeCRAQ && len(config.ChainOrder) == 0 {
		config.ChainOrder = names
	}
	if config.Authority == "" {
		switch {
		case config.Mode == common.ModeCRAQ && len(config.ChainOrder) > 0:
			config.Authority = chain.FromOrder(config.ChainOrder).Tail()
		case len(names) > 0:
			config.Authority = names[len(names)-1]
		}
	}
}
