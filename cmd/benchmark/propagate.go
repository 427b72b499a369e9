package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/delaneyj/reactivity/reactivity"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
)

const (
	widthsKey     = "width"
	heightsKey    = "height"
	iterationsKey = "iterations"
)

func propagateCommand() *cli.Command {
	return &cli.Command{
		Name:  "propagate",
		Usage: "Time a single source write fanned out to width chains of height computeds",
		Flags: []cli.Flag{
			&cli.IntSliceFlag{
				Name:  widthsKey,
				Usage: "Number of effects fed by the source",
				Value: []int64{1, 10, 100, 1_000},
			},
			&cli.IntSliceFlag{
				Name:  heightsKey,
				Usage: "Length of the computed chain behind each effect",
				Value: []int64{1, 10, 100, 1_000},
			},
			&cli.IntFlag{
				Name:  iterationsKey,
				Usage: "Writes per configuration",
				Value: 100,
			},
		},
		Action: propagate,
	}
}

func propagate(ctx context.Context, cmd *cli.Command) error {
	h, err := newHarness(cmd)
	if err != nil {
		return err
	}
	iters := int(cmd.Int(iterationsKey))
	log.Printf("propagate: %d writes per configuration", iters)

	tbl := table.NewWriter()
	tbl.SetTitle("Propagation")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max"})

	for _, w := range cmd.IntSlice(widthsKey) {
		for _, ht := range cmd.IntSlice(heightsKey) {
			tach := tachymeter.New(&tachymeter.Config{Size: iters})

			rs := h.system()
			src := reactivity.NewRef(rs, 1)
			for i := int64(0); i < w; i++ {
				last := src.Value
				for j := int64(0); j < ht; j++ {
					prev := last
					last = reactivity.NewComputed(rs, func(int) int {
						return prev() + 1
					}).Value
				}
				read := last
				if _, err := reactivity.NewEffect(rs, func() error {
					read()
					return nil
				}); err != nil {
					return err
				}
			}

			for i := 0; i < iters; i++ {
				start := time.Now()
				src.Set(src.Peek() + 1)
				tach.AddTime(time.Since(start))
			}

			calc := tach.Calc()
			tbl.AppendRow(table.Row{
				fmt.Sprintf("propagate: %d * %d", w, ht),
				calc.Time.Avg,
				calc.Time.Min,
				calc.Time.P75,
				calc.Time.P99,
				calc.Time.Max,
			})
		}
	}

	tbl.Render()
	return h.close()
}
