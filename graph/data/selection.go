/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package data

import (
	"fmt"
	"sort"
	"strings"
)

/*
Direction is the direction of a relationship as seen from one of its nodes.
*/
type Direction int

/*
Relationship directions. A relationship whose start node is also its end node
is a loop and has only the Loop direction.
*/
const (
	Outgoing Direction = iota
	Incoming
	Loop
)

/*
Directions lists all directions in traversal order.
*/
var Directions = []Direction{Outgoing, Incoming, Loop}

func (d Direction) String() string {
	switch d {
	case Outgoing:
		return "OUTGOING"
	case Incoming:
		return "INCOMING"
	case Loop:
		return "LOOP"
	}
	return fmt.Sprintf("DIRECTION(%d)", int(d))
}

/*
DirectionOf returns the direction of a relationship from a given origin node.
*/
func DirectionOf(origin, start, end uint64) Direction {
	if start == end {
		return Loop
	} else if origin == start {
		return Outgoing
	}
	return Incoming
}

/*
Selection selects relationships by type and direction.
*/
type Selection struct {
	types      []int   // Selected types (nil means all types)
	directions [3]bool // Selected directions
}

/*
NewSelection creates a new selection for the given directions and types. No
types means all types.
*/
func NewSelection(dirs []Direction, types ...int) Selection {
	var s Selection

	for _, d := range dirs {
		s.directions[d] = true
	}

	if len(types) > 0 {
		s.types = append([]int(nil), types...)
		sort.Ints(s.types)
	}

	return s
}

/*
SelectAll selects relationships of all directions.
*/
func SelectAll(types ...int) Selection {
	return NewSelection(Directions, types...)
}

/*
SelectOutgoing selects outgoing relationships.
*/
func SelectOutgoing(types ...int) Selection {
	return NewSelection([]Direction{Outgoing}, types...)
}

/*
SelectIncoming selects incoming relationships.
*/
func SelectIncoming(types ...int) Selection {
	return NewSelection([]Direction{Incoming}, types...)
}

/*
SelectLoops selects loops.
*/
func SelectLoops(types ...int) Selection {
	return NewSelection([]Direction{Loop}, types...)
}

/*
IncludesDirection checks if a given direction is selected.
*/
func (s Selection) IncludesDirection(d Direction) bool {
	return d >= Outgoing && d <= Loop && s.directions[d]
}

/*
IncludesType checks if a given relationship type is selected.
*/
func (s Selection) IncludesType(t int) bool {
	if s.types == nil {
		return true
	}
	i := sort.SearchInts(s.types, t)
	return i < len(s.types) && s.types[i] == t
}

/*
AllTypes returns true if the selection is not restricted to certain types.
*/
func (s Selection) AllTypes() bool {
	return s.types == nil
}

/*
Types returns the selected types in ascending order (nil for all types).
*/
func (s Selection) Types() []int {
	if s.types == nil {
		return nil
	}
	return append([]int(nil), s.types...)
}

func (s Selection) String() string {
	var dirs []string

	for _, d := range Directions {
		if s.directions[d] {
			dirs = append(dirs, d.String())
		}
	}

	types := "*"
	if s.types != nil {
		types = fmt.Sprint(s.types)
	}

	return fmt.Sprintf("Selection(%v %v)", strings.Join(dirs, "|"), types)
}
