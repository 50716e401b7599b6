package workload

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/ValentinKolb/dCRAQ/lib/history"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/sourcegraph/conc/pool"
)

// KV is the part of a client the workload needs
type KV interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (value string, found bool, err error)
}

// Config describes one run
type Config struct {
	// Operations is the number of requests per client
	Operations int
	// Keys is the number of distinct keys, they are shared by all clients
	Keys int
	// WriteRatio is the share of sets, between 0 and 1
	WriteRatio float64
	// KeyPrefix is prepended to every key
	KeyPrefix string
	// ValueSize pads values to this many bytes, 0 keeps them short
	ValueSize int
	// Seed of the operation mix, runs with the same seed issue the same requests
	Seed uint64
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Operations <= 0 {
		return fmt.Errorf("operations must be positive")
	}
	if c.Keys <= 0 {
		return fmt.Errorf("keys must be positive")
	}
	if c.WriteRatio < 0 || c.WriteRatio > 1 {
		return fmt.Errorf("write ratio must be between 0 and 1")
	}
	if c.ValueSize < 0 {
		return fmt.Errorf("value size must not be negative")
	}
	return nil
}

// Result holds the latencies and error counts of a run
type Result struct {
	Duration  time.Duration
	Sets      gometrics.Timer
	Gets      gometrics.Timer
	SetErrors gometrics.Counter
	GetErrors gometrics.Counter
	Registry  gometrics.Registry
}

// Throughput returns the completed requests per second
func (r *Result) Throughput() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Sets.Count()+r.Gets.Count()) / r.Duration.Seconds()
}

// String returns a summary table of the run
func (r *Result) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "duration:   %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "throughput: %.0f ops/s\n", r.Throughput())
	fmt.Fprintf(&b, "%-5s %8s %8s %12s %12s %12s %12s\n", "op", "count", "errors", "mean", "p50", "p99", "max")
	row := func(name string, t gometrics.Timer, errs gometrics.Counter) {
		s := t.Snapshot()
		ps := s.Percentiles([]float64{0.5, 0.99})
		fmt.Fprintf(&b, "%-5s %8d %8d %12s %12s %12s %12s\n", name, s.Count(), errs.Count(),
			time.Duration(s.Mean()), time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(s.Max()))
	}
	row("set", r.Sets, r.SetErrors)
	row("get", r.Gets, r.GetErrors)
	return b.String()
}

// Run lets every client issue config.Operations requests concurrently.
// Failed requests are counted, not returned. If rec is not nil every
// request is recorded for a linearizability check, values of sets are
// unique so the history can be checked.
func Run(ctx context.Context, config Config, clients []KV, rec *history.Recorder) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("at least one client is required")
	}

	registry := gometrics.NewRegistry()
	res := &Result{
		Sets:      gometrics.GetOrRegisterTimer("set", registry),
		Gets:      gometrics.GetOrRegisterTimer("get", registry),
		SetErrors: gometrics.GetOrRegisterCounter("set.errors", registry),
		GetErrors: gometrics.GetOrRegisterCounter("get.errors", registry),
		Registry:  registry,
	}

	p := pool.New().WithMaxGoroutines(len(clients)).WithContext(ctx)

	start := time.Now()
	for i, c := range clients {
		p.Go(func(ctx context.Context) error {
			return runClient(ctx, config, i, c, res, rec)
		})
	}
	err := p.Wait()
	res.Duration = time.Since(start)

	return res, err
}

// runClient issues the requests of one client in sequence
func runClient(ctx context.Context, config Config, id int, c KV, res *Result, rec *history.Recorder) error {
	rnd := rand.New(rand.NewPCG(config.Seed, uint64(id)))

	for i := 0; i < config.Operations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		key := fmt.Sprintf("%s%d", config.KeyPrefix, rnd.IntN(config.Keys))

		var call int64
		if rec != nil {
			call = rec.Now()
		}
		start := time.Now()

		if rnd.Float64() < config.WriteRatio {
			value := Value(id, i, config.ValueSize)
			err := c.Set(ctx, key, value)
			res.Sets.UpdateSince(start)
			if err != nil {
				res.SetErrors.Inc(1)
			}
			if rec != nil {
				rec.RecordSet(id, key, value, call, err)
			}
		} else {
			value, found, err := c.Get(ctx, key)
			res.Gets.UpdateSince(start)
			if err != nil {
				res.GetErrors.Inc(1)
			}
			if rec != nil {
				rec.RecordGet(id, key, value, found, call, err)
			}
		}
	}
	return nil
}

// Value returns the value written by the n-th request of a client, padded
// to size bytes. Values of different requests never collide.
func Value(client, n, size int) string {
	v := fmt.Sprintf("%d-%d", client, n)
	if len(v) >= size {
		return v
	}
	return v + "-" + strings.Repeat("x", size-len(v)-1)
}
