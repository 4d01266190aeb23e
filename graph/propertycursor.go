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
	"sort"

	"devt.de/krotik/graphcursor/graph/data"
)

/*
PropertyCursor iterates over the properties of a node or relationship in
ascending key order. The properties are taken when the cursor is positioned.
*/
type PropertyCursor struct {
	*cursorBase
	key   int
	value data.Value
}

func (c *PropertyCursor) release() {
	c.key, c.value = 0, data.NoValue
}

/*
PropertyKey returns the key of the current property.
*/
func (c *PropertyCursor) PropertyKey() int {
	return c.key
}

/*
PropertyValue returns the value of the current property.
*/
func (c *PropertyCursor) PropertyValue() data.Value {
	return c.value
}

/*
positionOn positions the cursor on a map of properties.
*/
func (c *PropertyCursor) positionOn(props map[int]data.Value) {
	keys := make([]int, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	c.position(func() (bool, error) {
		if len(keys) == 0 {
			return false, nil
		}

		c.key, c.value = keys[0], props[keys[0]]
		keys = keys[1:]

		if c.tracer != nil {
			c.tracer.OnProperty(c.key)
		}

		return true, nil
	})
}
