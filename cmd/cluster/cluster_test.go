package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/ValentinKolb/dCRAQ/lib/history"
	"github.com/ValentinKolb/dCRAQ/lib/workload"
	"github.com/ValentinKolb/dCRAQ/rpc/common"
)

func testOptions(mode common.ChainMode, nodes ...string) options {
	return options{
		Nodes:         nodes,
		Mode:          mode,
		Authority:     nodes[len(nodes)-1],
		ChainSeed:     42,
		Transport:     "memory",
		Serializer:    "binary",
		Host:          "localhost",
		BasePort:      9900,
		TimeoutSecond: 5,
		LogLevel:      "warn",
	}
}

func TestConfigs(t *testing.T) {
	opts := testOptions(common.ModeCRAQ, "a", "b", "c")
	opts.Transport = "tcp"
	opts.MetricsBasePort = 9100

	configs, members := opts.configs()
	if len(configs) != 3 {
		t.Fatalf("expected 3 configs, got %d", len(configs))
	}
	if members["b"] != "localhost:9901" {
		t.Errorf("unexpected endpoint of b: %s", members["b"])
	}
	for _, config := range configs {
		if err := config.Validate(); err != nil {
			t.Errorf("config of %s is invalid: %v", config.NodeName, err)
		}
		if config.Authority != "c" {
			t.Errorf("expected authority c, got %s", config.Authority)
		}
	}
	if configs[2].MetricsEndpoint != "localhost:9102" {
		t.Errorf("unexpected metrics endpoint: %s", configs[2].MetricsEndpoint)
	}

	star := testOptions(common.ModeStar, "x", "y")
	configs, _ = star.configs()
	for _, config := range configs {
		if len(config.ChainOrder) != 0 {
			t.Errorf("star config should not have a chain order: %v", config.ChainOrder)
		}
		if err := config.Validate(); err != nil {
			t.Errorf("config of %s is invalid: %v", config.NodeName, err)
		}
	}
}

func TestClusterIsLinearizable(t *testing.T) {
	tests := []struct {
		mode  common.ChainMode
		nodes []string
	}{
		{common.ModeCRAQ, []string{"craq-a", "craq-b", "craq-c", "craq-d"}},
		{common.ModeStar, []string{"star-a", "star-b", "star-c", "star-d"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			c, err := startCluster(ctx, testOptions(tt.mode, tt.nodes...))
			if err != nil {
				t.Fatalf("failed to start cluster: %v", err)
			}
			defer c.Close()

			clients, err := c.NewClients(4)
			if err != nil {
				t.Fatalf("failed to create clients: %v", err)
			}
			defer closeClients(clients)

			rec := history.NewRecorder(nil)
			res, err := workload.Run(context.Background(), workload.Config{
				Operations: 30,
				Keys:       3,
				WriteRatio: 0.5,
				Seed:       3,
			}, asKV(clients), rec)
			if err != nil {
				t.Fatalf("workload failed: %v", err)
			}
			if res.SetErrors.Count() != 0 || res.GetErrors.Count() != 0 {
				t.Fatalf("unexpected errors: %d sets, %d gets", res.SetErrors.Count(), res.GetErrors.Count())
			}

			if check := history.Check(rec.Operations(), 30*time.Second); !check.Ok() {
				t.Errorf("history is %s", check)
			}
		})
	}
}

func TestStartClusterWithoutNodes(t *testing.T) {
	if _, err := startCluster(context.Background(), options{Transport: "memory"}); err == nil {
		t.Fatal("expected an error for a cluster without nodes")
	}
}
