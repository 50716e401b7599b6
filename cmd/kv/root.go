package kv

import (
	"github.com/ValentinKolb/dCRAQ/cmd/util"
	"github.com/ValentinKolb/dCRAQ/rpc/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	rpcClient *client.Client

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Read and write keys of a dCRAQ cluster",
		PersistentPreRunE:  setupKVClient,
		PersistentPostRunE: closeKVClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common RPC flags to the KV command
	util.SetupRPCClientFlags(KeyValueCommands)

	KeyValueCommands.PersistentFlags().String("node", "", util.WrapString("Name of the node to send requests to, a random member is used if empty"))
	KeyValueCommands.PersistentFlags().String("client-id", "", util.WrapString("Id of the client, request ids are derived from it. A random id is used if empty"))

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVClient initializes the chain client
func setupKVClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	var err error
	rpcClient, err = util.NewClient(viper.GetString("client-id"))
	return err
}

func closeKVClient(_ *cobra.Command, _ []string) error {
	if rpcClient == nil {
		return nil
	}
	return rpcClient.Close()
}
