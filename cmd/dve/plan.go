package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/vidlang/dve/pkg/catalog"
	"github.com/vidlang/dve/pkg/executor"
	"github.com/vidlang/dve/pkg/expr"
	"github.com/vidlang/dve/pkg/fetch"
	"github.com/vidlang/dve/pkg/optimizer"
	"github.com/vidlang/dve/pkg/planner"
)

// optLevel mirrors the original CLI's OptimizerLevel enum.
type optLevel string

const (
	optUnopt     optLevel = "unopt"
	optHeuristic optLevel = "heuristic"
)

func runPlan(args []string) error {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	configPath := fs.String("config", "", "optional YAML file supplying defaults for --datastore/--opt-level")
	datastore := fs.String("datastore", "", "catalog URI (local://, http(s)://, s3://)")
	specURI := fs.String("spec", "", "spec JSON URI")
	level := fs.String("opt-level", "", "unopt|heuristic (default heuristic)")
	run := fs.Bool("run", false, "execute the compiled plan after printing it")
	parallel := fs.Bool("parallel", false, "run the plan's fan-out nodes concurrently")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	if *datastore == "" {
		*datastore = cfg.Datastore
	}
	if *level == "" {
		*level = cfg.OptLevel
	}
	if *level == "" {
		*level = string(optHeuristic)
	}
	if *datastore == "" || *specURI == "" {
		return fmt.Errorf("plan: --datastore and --spec are required")
	}

	cat, spec, err := loadInputs(*datastore, *specURI)
	if err != nil {
		return err
	}

	p := planner.New(cat)
	plan, err := p.Plan(*spec)
	if err != nil {
		return fmt.Errorf("plan: compiling spec: %w", err)
	}

	opt := optLevel(*level)
	switch opt {
	case optUnopt:
	case optHeuristic:
		plan, err = optimizer.OptimizeHeuristic(plan, cat, planner.DefaultScratchNamer)
		if err != nil {
			return fmt.Errorf("plan: optimizing: %w", err)
		}
	default:
		return fmt.Errorf("plan: unknown --opt-level %q (want unopt or heuristic)", *level)
	}

	fmt.Println(plan.String())

	if *run {
		e := executor.New()
		if *parallel {
			e.Mode = executor.Parallel
		}
		if err := e.Run(cmdContext(), plan); err != nil {
			return fmt.Errorf("plan: running: %w", err)
		}
	}
	return nil
}

// loadInputs fetches the catalog and spec JSON named by uri, dispatching
// on scheme (local/http(s)/s3) through pkg/fetch.
func loadInputs(datastoreURI, specURI string) (*catalog.Memory, *expr.Spec, error) {
	d := fetch.NewDispatcher()

	catBytes, err := readAll(d, datastoreURI)
	if err != nil {
		return nil, nil, fmt.Errorf("loading datastore: %w", err)
	}
	cat, err := catalog.LoadBytes(catBytes)
	if err != nil {
		return nil, nil, err
	}

	specBytes, err := readAll(d, specURI)
	if err != nil {
		return nil, nil, fmt.Errorf("loading spec: %w", err)
	}
	var spec expr.Spec
	if err := spec.UnmarshalJSON(specBytes); err != nil {
		return nil, nil, fmt.Errorf("parsing spec: %w", err)
	}

	return cat, &spec, nil
}

func readAll(d *fetch.Dispatcher, uri string) ([]byte, error) {
	rc, err := d.Get(cmdContext(), uri)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
