// Package executor walks a compiled plan bottom-up and invokes the
// command printer to launch each node's media-tool command. It follows
// the teacher's executeCommand idiom: exec.CommandContext, separate
// stderr/stdout pump goroutines synchronized with done channels, then a
// blocking Wait — generalized here to a tree with two traversal
// disciplines, sequential and parallel, instead of the teacher's single
// linear ExecutionOrder.
package executor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/vidlang/dve/pkg/dag"
	"github.com/vidlang/dve/pkg/pkgerr"
	"github.com/vidlang/dve/pkg/printer"
)

// Mode selects how a node's dependencies are traversed.
type Mode int

const (
	// Sequential runs each dependency fully before the next.
	Sequential Mode = iota
	// Parallel fans out all dependencies concurrently and joins before
	// running the node's own op.
	Parallel
)

// OnLog is called with each line of subprocess stderr/stdout, in no
// particular order across concurrent nodes. May be nil.
type OnLog func(nodeOutput string, line string)

// opPrinter is the subset of *printer.Printer the executor depends on;
// narrowed to an interface so tests can substitute a stub that avoids
// spawning a real media tool.
type opPrinter interface {
	Print(op dag.Op) (printer.Command, error)
}

// Executor runs a compiled plan by invoking an external media tool per
// node. Failure of any op aborts the plan: no op that depends on the
// failed one is started. In Parallel mode, sibling dependencies already
// running are waited for before the error is returned. Scratch files
// already created are left in place for diagnosis.
type Executor struct {
	Printer opPrinter
	Mode    Mode
	OnLog   OnLog
}

// New returns an Executor in Sequential mode using the default printer.
func New() *Executor {
	return &Executor{Printer: printer.New(), Mode: Sequential}
}

// Run executes plan's root node, and transitively every dependency, then
// returns. The context governs subprocess cancellation.
func (e *Executor) Run(ctx context.Context, plan dag.Plan) error {
	return e.runNode(ctx, plan.Root)
}

func (e *Executor) runNode(ctx context.Context, n *dag.DagNode) error {
	if e.Mode == Parallel {
		if err := e.runDepsParallel(ctx, n.Deps); err != nil {
			return err
		}
	} else {
		for _, dep := range n.Deps {
			if err := e.runNode(ctx, dep); err != nil {
				return err
			}
		}
	}

	return e.runOp(ctx, n.Op)
}

func (e *Executor) runDepsParallel(ctx context.Context, deps []*dag.DagNode) error {
	if len(deps) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	errs := make([]error, len(deps))
	for i, dep := range deps {
		wg.Add(1)
		go func(i int, dep *dag.DagNode) {
			defer wg.Done()
			errs[i] = e.runNode(ctx, dep)
		}(i, dep)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) runOp(ctx context.Context, op dag.Op) error {
	cmd, err := e.Printer.Print(op)
	if err != nil {
		return err
	}
	return e.runCommand(ctx, op.Out(), cmd)
}

func (e *Executor) runCommand(ctx context.Context, nodeOutput string, cmd printer.Command) error {
	execCmd := exec.CommandContext(ctx, cmd.Program, cmd.Args...)

	stderr, err := execCmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("executor: stderr pipe: %w", err)
	}
	stdout, err := execCmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("executor: stdout pipe: %w", err)
	}

	if err := execCmd.Start(); err != nil {
		return fmt.Errorf("executor: starting %s: %w", cmd.Program, err)
	}

	stderrDone := make(chan struct{})
	go func() {
		e.streamLines(nodeOutput, stderr)
		close(stderrDone)
	}()

	stdoutDone := make(chan struct{})
	go func() {
		e.streamLines(nodeOutput, stdout)
		close(stdoutDone)
	}()

	<-stderrDone
	<-stdoutDone
	cmdErr := execCmd.Wait()

	if cmdErr != nil {
		return pkgerr.ExternalToolFailuref(cmdErr, "%s failed producing %s", cmd.Program, nodeOutput)
	}
	return nil
}

func (e *Executor) streamLines(nodeOutput string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if e.OnLog != nil {
			e.OnLog(nodeOutput, scanner.Text())
		}
	}
}
