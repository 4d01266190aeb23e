/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Graphcursor is a command line driver for the transactional graph kernel.

Available commands:

generate - create a test graph with concurrent writer transactions.

scan - scan all nodes (or all nodes with a label) with a parallel partitioned scan.

trace - run periodic scans and stream their read events to websocket clients.

All commands read the configuration file (graphcursor.config.json by default)
which selects the storage and the defaults for partitioned scans.
*/
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"devt.de/krotik/graphcursor/config"
	"devt.de/krotik/graphcursor/graph"
	"devt.de/krotik/graphcursor/graph/graphstorage"
	"devt.de/krotik/graphcursor/graph/trace"

	ecalutil "devt.de/krotik/ecal/util"
	"github.com/alecthomas/kong"
)

type cmdGenerate struct {
	Nodes   int    `default:"1000" help:"Number of nodes to create."`
	Degree  int    `default:"2" help:"Number of outgoing relationships per node."`
	Writers int    `default:"4" help:"Number of concurrent writer transactions."`
	Label   string `default:"Node" help:"Label of the created nodes."`
	Type    string `default:"LINK" help:"Type of the created relationships."`
}

type cmdScan struct {
	Gen        cmdGenerate `embed:"" prefix:"gen-"`
	Label      string      `help:"Only scan nodes with this label."`
	Partitions int         `help:"Number of partitions (0 uses the configured default)."`
	Workers    int         `help:"Number of workers (0 uses the configured default)."`
	Batch      int         `help:"Batch size (0 uses the configured default)."`
}

type cmdTrace struct {
	Scan     cmdScan `embed:""`
	Rounds   int     `default:"0" help:"Number of scan rounds (0 runs until interrupted)."`
	Interval int     `default:"1000" help:"Milliseconds between two scan rounds."`
}

type cmdVersion struct{}

type cliArgs struct {
	Config   string      `short:"c" default:"graphcursor.config.json" help:"Configuration file."`
	Memory   bool        `help:"Use memory-only storage regardless of the configuration."`
	LogLevel string      `help:"Kernel log level (debug, info or error)."`
	Generate cmdGenerate `cmd:"" help:"Create a test graph."`
	Scan     cmdScan     `cmd:"" help:"Scan nodes with a parallel partitioned scan."`
	Trace    cmdTrace    `cmd:"" help:"Stream the read events of periodic scans to websocket clients."`
	Version  cmdVersion  `cmd:"" help:"Show the kernel version."`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Exit); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

/*
run parses the given arguments and executes the selected command.
*/
func run(ctx context.Context, args []string, stdout io.Writer, stderr io.Writer, exit func(int)) error {
	var cli cliArgs

	parser, err := kong.New(&cli,
		kong.Name("graphcursor"),
		kong.Description("Command line driver for the transactional graph kernel."),
		kong.Exit(exit),
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		return err
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	if kctx.Command() == "version" {
		fmt.Fprintln(stdout, "graphcursor kernel version", graph.VERSION)
		return nil
	}

	if err := config.LoadConfigFile(cli.Config); err != nil {
		return err
	}

	if cli.Memory {
		config.Config[config.MemoryOnlyStorage] = true
	}

	if cli.LogLevel != "" {
		config.Config[config.KernelLogLevel] = cli.LogLevel
	}

	k, recorder, err := openKernel()
	if err != nil {
		return err
	}

	defer k.Close()

	switch kctx.Command() {

	case "generate":
		err = generate(k, cli.Generate, stdout)

	case "scan":
		if err = generate(k, cli.Scan.Gen, stdout); err == nil {
			err = scan(ctx, k, cli.Scan, stdout)
		}

	case "trace":
		if err = generate(k, cli.Trace.Scan.Gen, stdout); err == nil {
			err = traceScans(ctx, k, cli.Trace, stdout)
		}
	}

	if err == nil && recorder != nil {
		fmt.Fprintf(stdout, "Traced %v node and %v relationship events\n",
			recorder.Count(trace.NodeEvent), recorder.Count(trace.RelationshipEvent))
	}

	return err
}

/*
openKernel creates a kernel as described by the configuration. Returns the
recording tracer of the kernel if read tracing is enabled.
*/
func openKernel() (*graph.Kernel, *trace.RecordingTracer, error) {
	var gs graphstorage.Storage
	var recorder *trace.RecordingTracer

	logger, err := ecalutil.NewLogLevelLogger(ecalutil.NewStdOutLogger(),
		config.Str(config.KernelLogLevel))
	if err != nil {
		return nil, nil, err
	}

	if config.Bool(config.MemoryOnlyStorage) {
		mgs, err := graphstorage.NewMemoryGraphStorage("memory")
		if err != nil {
			return nil, nil, err
		}
		gs = mgs
	} else {
		loc := config.Str(config.LocationDatastore)

		logger.LogInfo("Opening graph storage in ", loc)

		dgs, err := graphstorage.NewDiskGraphStorage(loc, false)
		if err != nil {
			return nil, nil, err
		}
		gs = dgs
	}

	graph.DefaultPartitions = int(config.Int(config.DefaultPartitions))
	graph.DefaultBatchSize = int(config.Int(config.DefaultBatchSize))

	k := graph.NewKernel(gs)

	k.SetLogger(logger)
	k.SetLeakCheck(config.Bool(config.EnableCursorLeakCheck))

	if config.Bool(config.EnableReadTracing) {
		recorder = trace.NewRecordingTracer(int(config.Int(config.TraceBufferSize)))
		k.SetReadTracer(recorder)
	}

	return k, recorder, nil
}
