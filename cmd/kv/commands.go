package kv

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/ValentinKolb/dCRAQ/rpc/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := args[1]

			node := viper.GetString("node")
			if err := checkNode(node, rpcClient.Members()); err != nil {
				return err
			}

			var err error
			if node != "" {
				err = rpcClient.SetAt(context.Background(), node, key, value)
			} else {
				err = rpcClient.Set(context.Background(), key, value)
			}
			if err != nil {
				return describeError(err, rpcClient.Members())
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			node := viper.GetString("node")
			if err := checkNode(node, rpcClient.Members()); err != nil {
				return err
			}

			if node != "" {
				res, err := rpcClient.GetAt(context.Background(), node, key)
				if err != nil {
					return describeError(err, rpcClient.Members())
				}
				fmt.Printf("key=%s, found=%v, value=%s, version=%d (node %s)\n", key, res.Found, res.Value, res.Version.Seq, node)
				return nil
			}

			value, found, err := rpcClient.Get(context.Background(), key)
			if err != nil {
				return describeError(err, rpcClient.Members())
			}
			fmt.Printf("key=%s, found=%v, value=%s\n", key, found, value)
			return nil
		},
	}
)

// checkNode fails if node is set but not one of the members
func checkNode(node string, members []string) error {
	if node == "" || slices.Contains(members, node) {
		return nil
	}
	return fmt.Errorf("unknown node %s (members: %s)", node, strings.Join(members, ", "))
}

// describeError points out unreachable nodes, other errors are returned as is
func describeError(err error, members []string) error {
	if client.IsTransportFailure(err) {
		return fmt.Errorf("node not reachable, check --members (%s) and --transport: %w", strings.Join(members, ", "), err)
	}
	return err
}
