package check

import (
	"fmt"
	"os"
	"time"

	"github.com/ValentinKolb/dCRAQ/cmd/util"
	"github.com/ValentinKolb/dCRAQ/lib/history"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// CheckCmd checks a recorded history for linearizability
	CheckCmd = &cobra.Command{
		Use:   "check [history]",
		Short: "Check a recorded history for linearizability",
		Long:  "Reads a history written by 'kv perf --history' or 'cluster --history' (one JSON operation per line) and checks whether it is linearizable.",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return util.BindCommandFlags(cmd)
		},
		RunE: run,
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	key := "check-timeout"
	CheckCmd.Flags().Int(key, 60, util.WrapString("Time limit of the check in seconds (0 means no limit)"))

	key = "html"
	CheckCmd.Flags().String(key, "", util.WrapString("Optional path to write a visualization of the result"))
}

func run(_ *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer f.Close()

	ops, err := history.ReadLog(f)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	fmt.Printf("read %d operations\n", len(ops))

	start := time.Now()
	res := history.Check(ops, time.Duration(viper.GetInt("check-timeout"))*time.Second)
	fmt.Printf("history is %s (checked in %s)\n", res, time.Since(start).Round(time.Millisecond))

	if path := viper.GetString("html"); path != "" {
		if err := history.VisualizeFile(res, path); err != nil {
			return fmt.Errorf("failed to write visualization: %w", err)
		}
		fmt.Printf("visualization written to %s\n", path)
	}

	if !res.Ok() {
		return fmt.Errorf("history is %s", res)
	}
	return nil
}
