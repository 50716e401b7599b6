package kv

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/dCRAQ/cmd/util"
	"github.com/ValentinKolb/dCRAQ/lib/history"
	"github.com/ValentinKolb/dCRAQ/lib/workload"
	"github.com/ValentinKolb/dCRAQ/rpc/client"
	"github.com/ValentinKolb/dCRAQ/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for dCRAQ clusters",
		Long:    "Runs the set, set-large, get and mixed scenarios with concurrent clients against a running cluster and reports throughput and latencies.",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfOperations       = 1000
	perfWriteRatio       = 0.5
	perfSkip             = make([]string, 0)
)

// scenario is one perf run
type scenario struct {
	name   string
	config workload.Config
	// preload writes every key once before the run
	preload bool
}

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of concurrent clients to use for the benchmark"))
	key = "ops"
	perfTestCmd.Flags().Int(key, 1000, util.WrapString("Number of requests per client and benchmark"))
	key = "write-ratio"
	perfTestCmd.Flags().Float64(key, 0.5, util.WrapString("Share of sets of the mixed benchmark (0 to 1)"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "history"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to write the history of the mixed benchmark as JSON lines (see dcraq check)"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = viper.GetInt("keys")
	perfNumThreads = viper.GetInt("threads")
	perfOperations = viper.GetInt("ops")
	perfWriteRatio = viper.GetFloat64("write-ratio")
	perfSkip = util.ParseList(viper.GetString("skip"))

	if perfNumThreads <= 0 {
		return fmt.Errorf("threads must be positive")
	}
	return nil
}

func run(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for dCRAQ clusters")

	config, err := util.GetClientConfig()
	if err != nil {
		return err
	}

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	// every thread gets its own client and connections
	clients := make([]*client.Client, 0, perfNumThreads)
	defer func() {
		for _, c := range clients {
			_ = c.Close()
		}
	}()
	for i := 0; i < perfNumThreads; i++ {
		c, err := util.NewClient("")
		if err != nil {
			return err
		}
		clients = append(clients, c)
	}
	kv := make([]workload.KV, len(clients))
	for i, c := range clients {
		kv[i] = c
	}

	scenarios := []scenario{
		{name: "set", config: perfConfig("set", 1, 0)},
		{name: "set-large", config: perfConfig("set-large", 1, perfLargeValueSizeKB*1024)},
		{name: "get", config: perfConfig("get", 0, 0), preload: true},
		{name: "mixed", config: perfConfig("mixed", perfWriteRatio, 0), preload: true},
	}

	fmt.Println("starting tests...")

	results := make(map[string]*workload.Result)
	for _, s := range scenarios {
		if shouldSkip(s.name) {
			fmt.Printf("%-20sskipped\n", s.name)
			continue
		}

		var rec *history.Recorder
		if path := viper.GetString("history"); path != "" && s.name == "mixed" {
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("failed to create history file: %w", err)
			}
			rec = history.NewRecorder(f)
			defer f.Close()
		}

		if s.preload {
			if err := preload(clients[0], s.config, rec); err != nil {
				return fmt.Errorf("(%s) - failed to preload keys: %w", s.name, err)
			}
		}

		res, err := workload.Run(context.Background(), s.config, kv, rec)
		if err != nil {
			return fmt.Errorf("(%s) - %w", s.name, err)
		}
		if rec != nil {
			if err := rec.Err(); err != nil {
				return fmt.Errorf("failed to write history: %w", err)
			}
		}

		results[s.name] = res
		printResult(s.name, res)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, config); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func perfConfig(name string, writeRatio float64, valueSize int) workload.Config {
	return workload.Config{
		Operations: perfOperations,
		Keys:       perfKeySpread,
		WriteRatio: writeRatio,
		KeyPrefix:  fmt.Sprintf("%s-%s-", perfKeyPrefix, name),
		ValueSize:  valueSize,
		Seed:       uint64(time.Now().UnixNano()),
	}
}

func shouldSkip(test string) bool {
	return slices.Contains(perfSkip, test)
}

// preload writes every key of the scenario once, so reads find a value.
// The writes are part of the recorded history, if any.
func preload(c *client.Client, config workload.Config, rec *history.Recorder) error {
	for i := 0; i < config.Keys; i++ {
		key := fmt.Sprintf("%s%d", config.KeyPrefix, i)

		var call int64
		if rec != nil {
			call = rec.Now()
		}
		err := c.Set(context.Background(), key, "preload")
		if rec != nil {
			rec.RecordSet(perfNumThreads, key, "preload", call, err)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// printResult prints the result of a benchmark in a formatted way
func printResult(test string, res *workload.Result) {
	fmt.Printf("%-20s%.0f ops/sec in %s\n", test, res.Throughput(), res.Duration.Round(time.Millisecond))
	for _, line := range strings.Split(strings.TrimSpace(res.String()), "\n") {
		fmt.Printf("%-20s%s\n", "", line)
	}
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]*workload.Result, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "OpsPerSec", "Duration",
		"SetCount", "SetErrors", "SetMeanNs", "SetP99Ns",
		"GetCount", "GetErrors", "GetMeanNs", "GetP99Ns",
		"Endpoints", "TimeoutSec", "ConnectionsPerEndpoint",
		"Serializer", "Transport",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	slices.Sort(names)

	// Write test results
	for _, test := range names {
		res := results[test]
		sets := res.Sets.Snapshot()
		gets := res.Gets.Snapshot()

		row := []string{
			test,
			fmt.Sprintf("%.0f", res.Throughput()),
			res.Duration.String(),
			strconv.FormatInt(sets.Count(), 10),
			strconv.FormatInt(res.SetErrors.Count(), 10),
			fmt.Sprintf("%.0f", sets.Mean()),
			fmt.Sprintf("%.0f", sets.Percentile(0.99)),
			strconv.FormatInt(gets.Count(), 10),
			strconv.FormatInt(res.GetErrors.Count(), 10),
			fmt.Sprintf("%.0f", gets.Mean()),
			fmt.Sprintf("%.0f", gets.Percentile(0.99)),
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
