/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"devt.de/krotik/graphcursor/config"
	"devt.de/krotik/graphcursor/graph"
	"devt.de/krotik/graphcursor/graph/data"
	"devt.de/krotik/graphcursor/graph/trace"
	"devt.de/krotik/graphcursor/graph/util"
)

/*
generate runs the generate command. Nothing is created if no nodes are
requested.
*/
func generate(k *graph.Kernel, cmd cmdGenerate, out io.Writer) error {
	if cmd.Nodes < 1 {
		return nil
	}

	g, err := newGenerator(k, cmd.Label, cmd.Type, cmd.Degree)

	if err == nil {
		start := time.Now()

		if err = g.run(cmd.Nodes, graph.DefaultBatchSize, max(cmd.Writers, 1)); err == nil {
			fmt.Fprintf(out, "Created %v nodes and %v relationships in %v\n",
				len(g.ids), len(g.ids)*cmd.Degree, time.Since(start))
		}
	}

	return err
}

/*
scanResult is the result of a parallel scan.
*/
type scanResult struct {
	nodes  atomic.Int64 // Number of visited nodes
	degree atomic.Int64 // Sum of all node degrees (all nodes scans only)
}

/*
scan runs the scan command.
*/
func scan(ctx context.Context, k *graph.Kernel, cmd cmdScan, out io.Writer) error {
	start := time.Now()

	res, err := parallelScan(ctx, k, cmd)

	if err == nil {
		fmt.Fprintf(out, "Scanned %v nodes (degree sum %v) in %v\n",
			res.nodes.Load(), res.degree.Load(), time.Since(start))
	}

	return err
}

/*
parallelScan scans all nodes or all nodes with a label with a number of
workers.
*/
func parallelScan(ctx context.Context, k *graph.Kernel, cmd cmdScan) (*scanResult, error) {
	res := &scanResult{}

	workers := cmd.Workers
	if workers < 1 {
		workers = int(config.Int(config.ParallelWorkers))
	}

	tx := k.BeginTransaction(ctx)
	defer tx.Rollback()

	if cmd.Label == "" {
		ps, err := tx.AllNodesScanPartitioned(cmd.Partitions)
		if err != nil {
			return nil, err
		}
		defer ps.Close()

		return res, graph.ParallelScan(ctx, tx, ps, workers, cmd.Batch,
			(*graph.CursorFactory).AllocateNodeCursor,
			func(c *graph.NodeCursor) error {
				degree, err := c.Degree(data.SelectAll())
				res.nodes.Add(1)
				res.degree.Add(degree)
				return err
			})
	}

	label := k.Tokens().Holder(util.LabelToken).ID(cmd.Label)
	if label == util.NoToken {
		return res, nil
	}

	ps, err := tx.NodeLabelScanPartitioned(cmd.Partitions, label)
	if err != nil {
		return nil, err
	}
	defer ps.Close()

	return res, graph.ParallelScan(ctx, tx, ps, workers, cmd.Batch,
		(*graph.CursorFactory).AllocateNodeLabelIndexCursor,
		func(c *graph.NodeLabelIndexCursor) error {
			res.nodes.Add(1)
			return nil
		})
}

/*
traceScans runs the trace command. The read events of all scans are streamed
to the websocket clients of the trace stream.
*/
func traceScans(ctx context.Context, k *graph.Kernel, cmd cmdTrace, out io.Writer) error {
	var err error

	st := trace.NewStreamTracer(k.Logger())
	defer st.Close()

	if recorder, ok := k.ReadTracer().(*trace.RecordingTracer); ok {
		k.SetReadTracer(trace.Multi(st, recorder))
	} else {
		k.SetReadTracer(st)
	}

	mux := http.NewServeMux()
	mux.Handle("/trace", st)

	srv := &http.Server{Addr: config.TraceStreamAddress(), Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			k.Logger().LogError("Trace stream stopped: ", err)
		}
	}()

	defer srv.Shutdown(context.Background())

	fmt.Fprintf(out, "Streaming trace events on ws://%v/trace\n", config.TraceStreamAddress())

	ticker := time.NewTicker(time.Duration(max(cmd.Interval, 1)) * time.Millisecond)
	defer ticker.Stop()

	for round := 1; cmd.Rounds == 0 || round <= cmd.Rounds; round++ {

		if err = scan(ctx, k, cmd.Scan, out); err != nil {
			if ctx.Err() != nil {
				err = nil
			}
			break
		}

		if cmd.Rounds != 0 && round == cmd.Rounds {
			break
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}

	return err
}
