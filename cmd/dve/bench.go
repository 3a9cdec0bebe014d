package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/vidlang/dve/pkg/optimizer"
	"github.com/vidlang/dve/pkg/planner"
)

// runBench plans spec at both optimization levels and reports how long
// compilation took at each, mirroring the original CLI's Unoptimized vs
// Heuristic measurement pair (minus the dataset/warm-up machinery, which
// is out of scope here).
func runBench(args []string) error {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	datastore := fs.String("datastore", "", "catalog URI")
	specURI := fs.String("spec", "", "spec JSON URI")
	runs := fs.Int("runs", 5, "measured runs per optimization level")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *datastore == "" || *specURI == "" {
		return fmt.Errorf("bench: --datastore and --spec are required")
	}

	cat, spec, err := loadInputs(*datastore, *specURI)
	if err != nil {
		return err
	}
	p := planner.New(cat)

	for _, level := range []optLevel{optUnopt, optHeuristic} {
		var total time.Duration
		for i := 0; i < *runs; i++ {
			start := time.Now()
			plan, err := p.Plan(*spec)
			if err != nil {
				return fmt.Errorf("bench: compiling: %w", err)
			}
			if level == optHeuristic {
				plan, err = optimizer.OptimizeHeuristic(plan, cat, planner.DefaultScratchNamer)
				if err != nil {
					return fmt.Errorf("bench: optimizing: %w", err)
				}
			}
			total += time.Since(start)
		}
		avg := total / time.Duration(*runs)
		fmt.Printf("%-10s avg=%s over %d runs\n", level, avg, *runs)
	}
	return nil
}
