package serve

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cmdUtil "github.com/ValentinKolb/dCRAQ/cmd/util"
	"github.com/ValentinKolb/dCRAQ/lib/util"
	"github.com/ValentinKolb/dCRAQ/rpc/common"
	"github.com/ValentinKolb/dCRAQ/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start a dCRAQ node",
		Long:    `Start one node of a dCRAQ cluster with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DCRAQ_<flag> (e.g. DCRAQ_LOG_LEVEL=debug)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "name"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The name of this node, it must be one of the members"))

	key = "members"
	ServeCmd.PersistentFlags().String(key, cmdUtil.DefaultMembers, cmdUtil.WrapString("All nodes of the cluster as a comma-separated list in the format 'a=localhost:9900,b=localhost:9901,...'"))

	key = "mode"
	ServeCmd.PersistentFlags().String(key, string(common.ModeCRAQ), cmdUtil.WrapString("How writes are replicated: craq (one fixed chain, the tail is the authority) or star (one chain per receiving node, the leader is the authority)"))

	key = "authority"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The node that orders all writes. Defaults to the tail of the chain (craq) or the last member by name (star)"))

	key = "chain"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(craq) The comma-separated head to tail order of the chain. Defaults to the member names in sorted order"))

	key = "chain-seed"
	ServeCmd.PersistentFlags().Uint64(key, 0, cmdUtil.WrapString("(star) Seed of the chain permutation per receiving node, 0 picks a random seed"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The address on which the node will listen (e.g. 0.0.0.0:9900, /tmp/dcraq.sock, ...). Defaults to the endpoint of the node in the members list"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int(key, 5, cmdUtil.WrapString("Timeout in seconds for requests to other nodes (0 disables the timeout)"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Maximum number of concurrent requests per connection (0 means unbounded)"))

	key = "buffer-size"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("Size of the read buffer per request in KB. Requests must fit into this buffer (ignored for http)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("If set, /metrics and /health are served on this address (e.g. localhost:9100)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	cmdUtil.SetupSocketFlags(ServeCmd)
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	members, err := cmdUtil.ParseMembers(viper.GetString("members"))
	if err != nil {
		return err
	}

	mode, err := common.ParseChainMode(viper.GetString("mode"))
	if err != nil {
		return err
	}

	serveCmdConfig.NodeName = viper.GetString("name")
	serveCmdConfig.Members = members
	serveCmdConfig.Mode = mode
	serveCmdConfig.Authority = viper.GetString("authority")
	serveCmdConfig.ChainOrder = cmdUtil.ParseList(viper.GetString("chain"))
	serveCmdConfig.ChainSeed = viper.GetUint64("chain-seed")
	serveCmdConfig.TimeoutSecond = viper.GetInt("timeout")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport = common.ServerTransportConfig{
		SocketConf:     cmdUtil.GetSocketConf(),
		Endpoint:       viper.GetString("endpoint"),
		BufferSize:     viper.GetInt("buffer-size") * 1024,
		WorkersPerConn: viper.GetInt("workers-per-conn"),
	}

	if serveCmdConfig.NodeName == "" {
		return fmt.Errorf("the name of the node is required (--name)")
	}

	// the node listens on its own member endpoint unless told otherwise
	if serveCmdConfig.Transport.Endpoint == "" {
		serveCmdConfig.Transport.Endpoint = members[serveCmdConfig.NodeName]
	}

	if serveCmdConfig.Mode == common.ModeStar && serveCmdConfig.ChainSeed == 0 {
		serveCmdConfig.ChainSeed = util.GenerateSeed()
	}

	cmdUtil.ResolveChain(serveCmdConfig)

	return serveCmdConfig.Validate()
}

// run starts the node and blocks until it is stopped by a signal
func run(_ *cobra.Command, _ []string) error {
	if err := common.InitLoggers(serveCmdConfig.LogLevel); err != nil {
		return err
	}

	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	t, err := cmdUtil.NewServerTransport(viper.GetString("transport"))
	if err != nil {
		return err
	}

	peerTransport, err := cmdUtil.NewClientTransportFactory(viper.GetString("transport"))
	if err != nil {
		return err
	}

	serv, err := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
		peerTransport,
	)
	if err != nil {
		return err
	}

	// stop the node on SIGINT / SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		_ = serv.Close()
	}()

	return serv.Serve()
}
