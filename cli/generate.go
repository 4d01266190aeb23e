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
	"fmt"
	"sync"

	"devt.de/krotik/common/errorutil"
	"devt.de/krotik/common/pools"
	"devt.de/krotik/graphcursor/graph"
	"devt.de/krotik/graphcursor/graph/data"
)

/*
generator creates a test graph with a number of concurrent writer
transactions.
*/
type generator struct {
	kernel  *graph.Kernel
	label   int    // Label of all created nodes
	typ     int    // Type of all created relationships
	nameKey int    // Property key of the node name
	idxKey  int    // Property key of the node index
	degree  int    // Outgoing relationships per node
	lock    *sync.Mutex
	ids     []uint64                 // Ids of all created nodes
	errors  *errorutil.CompositeError // Errors of all writers
}

/*
newGenerator creates the tokens of a new generator.
*/
func newGenerator(k *graph.Kernel, label string, typ string, degree int) (*generator, error) {
	var err error

	g := &generator{kernel: k, degree: degree, lock: &sync.Mutex{},
		errors: errorutil.NewCompositeError()}

	tx := k.BeginTransaction(context.Background())
	defer tx.Rollback()

	if g.label, err = tx.LabelGetOrCreateForName(label); err == nil {
		if g.typ, err = tx.RelationshipTypeGetOrCreateForName(typ); err == nil {
			if g.nameKey, err = tx.PropertyKeyGetOrCreateForName("name"); err == nil {
				g.idxKey, err = tx.PropertyKeyGetOrCreateForName("idx")
			}
		}
	}

	return g, err
}

/*
run creates a number of nodes and then connects them. Every batch is written
by its own transaction.
*/
func (g *generator) run(nodes int, batchSize int, writers int) error {
	tp := pools.NewThreadPool()
	tp.SetWorkerCount(writers, false)

	for i := 0; i < nodes; i += batchSize {
		tp.AddTask(&nodeTask{g, i, min(i+batchSize, nodes)})
	}

	tp.WaitAll()

	if g.errors.HasErrors() {
		tp.JoinAll()
		return g.errors
	}

	for i := 0; i < len(g.ids); i += batchSize {
		tp.AddTask(&relationshipTask{g, i, min(i+batchSize, len(g.ids))})
	}

	tp.JoinAll()

	if g.errors.HasErrors() {
		return g.errors
	}

	return nil
}

/*
target returns the end node of the k-th relationship of the i-th node.
*/
func (g *generator) target(i int, k int) uint64 {
	return g.ids[(i*31+k*7+1)%len(g.ids)]
}

func (g *generator) handleError(e error) {
	g.lock.Lock()
	defer g.lock.Unlock()

	g.errors.Add(e)
}

/*
nodeTask creates a range of nodes.
*/
type nodeTask struct {
	g    *generator
	from int
	to   int
}

func (t *nodeTask) Run(tid uint64) error {
	tx := t.g.kernel.BeginTransaction(context.Background())

	ids := make([]uint64, 0, t.to-t.from)

	for i := t.from; i < t.to; i++ {
		id, err := tx.NodeCreateWithLabels(t.g.label)

		if err == nil {
			_, err = tx.NodeSetProperty(id, t.g.nameKey, data.StringValue(fmt.Sprintf("node%v", i)))
		}

		if err == nil {
			_, err = tx.NodeSetProperty(id, t.g.idxKey, data.IntValue(int64(i)))
		}

		if err != nil {
			tx.Rollback()
			return err
		}

		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	t.g.lock.Lock()
	t.g.ids = append(t.g.ids, ids...)
	t.g.lock.Unlock()

	return nil
}

func (t *nodeTask) HandleError(e error) {
	t.g.handleError(e)
}

/*
relationshipTask connects a range of nodes.
*/
type relationshipTask struct {
	g    *generator
	from int
	to   int
}

func (t *relationshipTask) Run(tid uint64) error {
	tx := t.g.kernel.BeginTransaction(context.Background())

	for i := t.from; i < t.to; i++ {
		for k := 0; k < t.g.degree; k++ {
			if _, err := tx.RelationshipCreate(t.g.ids[i], t.g.typ, t.g.target(i, k)); err != nil {
				tx.Rollback()
				return err
			}
		}
	}

	return tx.Commit()
}

func (t *relationshipTask) HandleError(e error) {
	t.g.handleError(e)
}
