package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dCRAQ/cmd/check"
	"github.com/ValentinKolb/dCRAQ/cmd/cluster"
	"github.com/ValentinKolb/dCRAQ/cmd/kv"
	"github.com/ValentinKolb/dCRAQ/cmd/serve"
	"github.com/ValentinKolb/dCRAQ/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dcraq",
		Short: "chain replicated key-value store",
		Long: fmt.Sprintf(`dCRAQ (v%s)

A replicated key-value store written in Go. Writes travel down a chain
of nodes and are ordered by one authority node, reads are served by
any node (chain replication with apportioned queries).`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dCRAQ",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dCRAQ v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(cluster.ClusterCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(check.CheckCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix, http, memory). memory only works inside one process (cluster command)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
