// Command la64run loads a statically-linked LA64 Linux ELF binary and runs
// it to completion.
//
// Usage:
//
//	go run ./cmd/la64run [flags] <binary> [args...]
//
// Flags:
//
//	-max    Maximum instructions to retire before giving up (default: unlimited)
//	-trace  Write a per-instruction trace to stderr
//
// Example:
//
//	go run ./cmd/la64run ./testdata/hello.elf
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/larunner/la64vm/driver"
	"github.com/larunner/la64vm/emu"
)

var (
	maxInstructions = flag.Uint64("max", 0, "maximum instructions to retire (0 = unlimited)")
	trace           = flag.Bool("trace", false, "write a per-instruction trace to stderr")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: la64run [flags] <binary> [args...]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	path := flag.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "la64run: %v\n", err)
		os.Exit(1)
	}

	var opts []driver.MachineOption
	if *trace {
		opts = append(opts, driver.WithTrace(os.Stderr))
	}
	m, err := driver.New(data, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "la64run: %v\n", err)
		os.Exit(1)
	}

	argv := append([]string{path}, flag.Args()[1:]...)
	if err := m.SetupLinux(argv, os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "la64run: %v\n", err)
		os.Exit(1)
	}

	budget := *maxInstructions
	if budget == 0 {
		budget = ^uint64(0)
	}

	stopped, err := m.Simulate(budget)
	if err != nil {
		if fault, ok := err.(*emu.Fault); ok {
			fmt.Fprintf(os.Stderr, "la64run: %s\n", fault.Error())
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "la64run: %v\n", err)
		os.Exit(1)
	}
	if !stopped {
		fmt.Fprintln(os.Stderr, "la64run: instruction budget exhausted")
		os.Exit(1)
	}
}
