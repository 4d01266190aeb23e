/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package graph

import (
	"context"

	"golang.org/x/sync/errgroup"
)

/*
ParallelScan consumes a partitioned scan with a number of workers. Each
worker runs in its own execution context with its own cursor (allocated with
alloc) and reserves batches of batchSize entities. The visit function is
called for every result; it must not keep the cursor. The first error stops
all workers.
*/
func ParallelScan[C batchCursor](ctx context.Context, tx *Transaction, scan *PartitionedScan[C],
	workers int, batchSize int, alloc func(cf *CursorFactory, ctx context.Context) C,
	visit func(c C) error) error {

	if err := tx.checkOpen(); err != nil {
		return err
	}

	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			c := alloc(tx.NewExecutionContext(), gctx)
			defer c.Close()

			for p, ok := scan.Reserve(); ok; p, ok = scan.Reserve() {
				for p.ReserveBatch(c, batchSize) {
					for c.Next() {
						if err := visit(c); err != nil {
							return err
						}
					}

					if err := c.Err(); err != nil {
						return err
					}

					if err := gctx.Err(); err != nil {
						return err
					}
				}

				if err := c.Err(); err != nil {
					return err
				}
			}

			return nil
		})
	}

	return g.Wait()
}
