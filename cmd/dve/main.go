// Command dve compiles and runs declarative video-editing specs: a
// direct Go port of the original Rust CLI's plan/add-video/bench
// subcommands, using the standard flag package in the teacher's
// cmd/api/main.go style rather than a third-party CLI framework.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
)

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "plan":
		err = runPlan(os.Args[2:])
	case "add-video":
		err = runAddVideo(os.Args[2:])
	case "bench":
		err = runBench(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatalf("dve: %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: dve <plan|add-video|bench> [flags]")
}

func cmdContext() context.Context {
	return context.Background()
}
