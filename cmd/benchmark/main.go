package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"sort"

	"github.com/delaneyj/reactivity/pkg/metrics"
	"github.com/delaneyj/reactivity/reactivity"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
)

const (
	cpuProfileKey = "cpuprofile"
	metricsKey    = "metrics"
)

func main() {
	cmd := &cli.Command{
		Name:  "benchmark",
		Usage: "Benchmark the reactivity engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  cpuProfileKey,
				Usage: "Write a CPU profile to this file",
			},
			&cli.BoolFlag{
				Name:  metricsKey,
				Usage: "Collect engine metrics and print them after the run",
			},
		},
		Commands: []*cli.Command{
			propagateCommand(),
			graphCommand(),
		},
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// harness owns the profiling and metrics plumbing shared by every benchmark.
type harness struct {
	registry *prometheus.Registry
	profile  *os.File
	systems  int
}

func newHarness(cmd *cli.Command) (*harness, error) {
	h := &harness{}
	if path := cmd.String(cpuProfileKey); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, err
		}
		h.profile = f
	}
	if cmd.Bool(metricsKey) {
		h.registry = prometheus.NewRegistry()
	}
	return h, nil
}

func (h *harness) system() *reactivity.ReactiveSystem {
	opts := []reactivity.Option{
		reactivity.WithOnError(func(from *reactivity.Effect, err error) {
			log.Panic(err)
		}),
	}
	if h.registry != nil {
		// each system registers its own collectors, told apart by label
		h.systems++
		reg := prometheus.WrapRegistererWith(prometheus.Labels{"system": fmt.Sprint(h.systems)}, h.registry)
		opts = append(opts, reactivity.WithInstrument(metrics.New(metrics.WithRegistry(reg))))
	}
	return reactivity.CreateReactiveSystem(opts...)
}

func (h *harness) close() error {
	if h.profile != nil {
		pprof.StopCPUProfile()
		if err := h.profile.Close(); err != nil {
			return err
		}
	}
	if h.registry == nil {
		return nil
	}

	families, err := h.registry.Gather()
	if err != nil {
		return err
	}
	totals := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				totals[f.GetName()] += m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				totals[f.GetName()+"_count"] += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)

	tbl := table.NewWriter()
	tbl.SetTitle("Engine metrics")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"metric", "total"})
	for _, name := range names {
		tbl.AppendRow(table.Row{name, totals[name]})
	}
	tbl.Render()
	return nil
}
