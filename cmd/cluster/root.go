package cluster

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	cmdUtil "github.com/ValentinKolb/dCRAQ/cmd/util"
	"github.com/ValentinKolb/dCRAQ/lib/history"
	"github.com/ValentinKolb/dCRAQ/lib/util"
	"github.com/ValentinKolb/dCRAQ/lib/workload"
	"github.com/ValentinKolb/dCRAQ/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	clusterOpts = options{}

	// ClusterCmd starts a whole cluster inside this process
	ClusterCmd = &cobra.Command{
		Use:   "cluster",
		Short: "Run a local dCRAQ cluster in one process",
		Long: `Run all nodes of a cluster in this process. With --check-ops the cluster is driven by concurrent
clients, the recorded history is checked for linearizability and the command exits. Otherwise the
cluster serves until it is interrupted. The memory transport is only reachable from inside this process.`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cobra.OnInitialize(cmdUtil.InitConfig)

	key := "nodes"
	ClusterCmd.Flags().String(key, "a,b,c,d", cmdUtil.WrapString("Comma-separated names of the nodes, in chain order for craq"))

	key = "mode"
	ClusterCmd.Flags().String(key, string(common.ModeCRAQ), cmdUtil.WrapString("How writes are replicated (craq, star)"))

	key = "authority"
	ClusterCmd.Flags().String(key, "", cmdUtil.WrapString("The node that orders all writes. Defaults to the last node"))

	key = "chain-seed"
	ClusterCmd.Flags().Uint64(key, 0, cmdUtil.WrapString("(star) Seed of the chain permutation, 0 picks a random seed"))

	key = "host"
	ClusterCmd.Flags().String(key, "localhost", cmdUtil.WrapString("Host the nodes listen on (tcp, http)"))

	key = "base-port"
	ClusterCmd.Flags().Int(key, 9900, cmdUtil.WrapString("Port of the first node, the following nodes use the next ports (tcp, http)"))

	key = "metrics-base-port"
	ClusterCmd.Flags().Int(key, 0, cmdUtil.WrapString("If set, node i serves /metrics on this port + i"))

	key = "timeout"
	ClusterCmd.Flags().Int(key, 5, cmdUtil.WrapString("Timeout in seconds for requests between nodes and of the clients"))

	key = "log-level"
	ClusterCmd.Flags().String(key, "warn", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "check-ops"
	ClusterCmd.Flags().Int(key, 0, cmdUtil.WrapString("Requests per client of the linearizability check, 0 serves until interrupted"))

	key = "clients"
	ClusterCmd.Flags().Int(key, 4, cmdUtil.WrapString("Number of concurrent clients of the check"))

	key = "keys"
	ClusterCmd.Flags().Int(key, 5, cmdUtil.WrapString("Number of different keys of the check"))

	key = "write-ratio"
	ClusterCmd.Flags().Float64(key, 0.5, cmdUtil.WrapString("Share of sets of the check (0 to 1)"))

	key = "history"
	ClusterCmd.Flags().String(key, "", cmdUtil.WrapString("Optional path to write the history of the check as JSON lines"))

	key = "html"
	ClusterCmd.Flags().String(key, "", cmdUtil.WrapString("Optional path to write a visualization of the check"))
}

func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	mode, err := common.ParseChainMode(viper.GetString("mode"))
	if err != nil {
		return err
	}

	clusterOpts = options{
		Nodes:           cmdUtil.ParseList(viper.GetString("nodes")),
		Mode:            mode,
		Authority:       viper.GetString("authority"),
		ChainSeed:       viper.GetUint64("chain-seed"),
		Transport:       viper.GetString("transport"),
		Serializer:      viper.GetString("serializer"),
		Host:            viper.GetString("host"),
		BasePort:        viper.GetInt("base-port"),
		MetricsBasePort: viper.GetInt("metrics-base-port"),
		TimeoutSecond:   viper.GetInt("timeout"),
		LogLevel:        viper.GetString("log-level"),
	}
	if len(clusterOpts.Nodes) == 0 {
		return fmt.Errorf("at least one node is required")
	}
	if clusterOpts.Authority == "" {
		clusterOpts.Authority = clusterOpts.Nodes[len(clusterOpts.Nodes)-1]
	}
	if clusterOpts.Mode == common.ModeStar && clusterOpts.ChainSeed == 0 {
		clusterOpts.ChainSeed = util.GenerateSeed()
	}
	return nil
}

func run(_ *cobra.Command, _ []string) error {
	if err := common.InitLoggers(clusterOpts.LogLevel); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	c, err := startCluster(startCtx, clusterOpts)
	cancel()
	if err != nil {
		return err
	}
	defer c.Close()

	for name, endpoint := range c.members {
		fmt.Printf("node %s listens on %s\n", name, endpoint)
	}

	if ops := viper.GetInt("check-ops"); ops > 0 {
		return runCheck(ctx, c, workload.Config{
			Operations: ops,
			Keys:       viper.GetInt("keys"),
			WriteRatio: viper.GetFloat64("write-ratio"),
			KeyPrefix:  "key-",
			Seed:       util.GenerateSeed(),
		})
	}

	fmt.Println("cluster is running, press ctrl+c to stop")
	select {
	case <-ctx.Done():
		return nil
	case err := <-c.Errors():
		return err
	}
}

// runCheck drives the cluster with concurrent clients and checks the history
func runCheck(ctx context.Context, c *localCluster, config workload.Config) error {
	clients, err := c.NewClients(viper.GetInt("clients"))
	if err != nil {
		return err
	}
	defer closeClients(clients)

	var rec *history.Recorder
	if path := viper.GetString("history"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create history file: %w", err)
		}
		defer f.Close()
		rec = history.NewRecorder(f)
	} else {
		rec = history.NewRecorder(nil)
	}

	res, err := workload.Run(ctx, config, asKV(clients), rec)
	if err != nil {
		return err
	}
	if err := rec.Err(); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	fmt.Println(res.String())

	check := history.Check(rec.Operations(), time.Minute)
	fmt.Printf("linearizability: %s\n", check)

	if path := viper.GetString("html"); path != "" {
		if err := history.VisualizeFile(check, path); err != nil {
			return fmt.Errorf("failed to write visualization: %w", err)
		}
		fmt.Printf("visualization written to %s\n", path)
	}

	if !check.Ok() {
		return fmt.Errorf("history is not linearizable")
	}
	return nil
}
