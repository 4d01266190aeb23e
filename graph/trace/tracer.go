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
Package trace contains read tracers for the graph kernel.

A ReadTracer can be attached to any cursor. The cursor reports exactly one
event for each logical visit (a node, a relationship, a relationship group or
a property) and one event for each scan or seek it starts.

Tracers in this package:

RecordingTracer - keeps the most recent events in a ring buffer and counts all events.

LoggingTracer - writes all events to a logger.

StreamTracer - streams all events as JSON to connected websocket clients.
*/
package trace

import (
	"fmt"
)

/*
EventType is the type of a trace event
*/
type EventType int

/*
Known trace events
*/
const (
	NodeEvent EventType = iota
	AllNodesScanEvent
	LabelScanEvent
	IndexSeekEvent
	RelationshipEvent
	AllRelationshipsScanEvent
	RelationshipTypeScanEvent
	RelationshipGroupEvent
	PropertyEvent
)

var eventNames = map[EventType]string{
	NodeEvent:                 "node",
	AllNodesScanEvent:         "allNodesScan",
	LabelScanEvent:            "labelScan",
	IndexSeekEvent:            "indexSeek",
	RelationshipEvent:         "relationship",
	AllRelationshipsScanEvent: "allRelationshipsScan",
	RelationshipTypeScanEvent: "relationshipTypeScan",
	RelationshipGroupEvent:    "relationshipGroup",
	PropertyEvent:             "property",
}

func (et EventType) String() string {
	if name, ok := eventNames[et]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(et))
}

/*
Event is a single trace event.
*/
type Event struct {
	Type  EventType // Type of the event
	ID    uint64    // Entity id (node and relationship events)
	Token int       // Token id (label, type, group and property events)
}

func (e Event) String() string {
	switch e.Type {
	case NodeEvent, RelationshipEvent:
		return fmt.Sprintf("%v %v", e.Type, e.ID)
	case LabelScanEvent, RelationshipTypeScanEvent, RelationshipGroupEvent, PropertyEvent:
		return fmt.Sprintf("%v %v", e.Type, e.Token)
	}
	return e.Type.String()
}

/*
Map returns this event as a JSON friendly map.
*/
func (e Event) Map() map[string]interface{} {
	return map[string]interface{}{
		"event": e.Type.String(),
		"id":    e.ID,
		"token": e.Token,
	}
}

/*
ReadTracer receives kernel read events.
*/
type ReadTracer interface {

	/*
		OnNode is called when a node is visited.
	*/
	OnNode(id uint64)

	/*
		OnAllNodesScan is called when a scan over all nodes is started.
	*/
	OnAllNodesScan()

	/*
		OnLabelScan is called when a label scan is started.
	*/
	OnLabelScan(label int)

	/*
		OnIndexSeek is called when a value index seek or scan is started.
	*/
	OnIndexSeek()

	/*
		OnRelationship is called when a relationship is visited.
	*/
	OnRelationship(id uint64)

	/*
		OnAllRelationshipsScan is called when a scan over all relationships is started.
	*/
	OnAllRelationshipsScan()

	/*
		OnRelationshipTypeScan is called when a relationship type scan is started.
	*/
	OnRelationshipTypeScan(typ int)

	/*
		OnRelationshipGroup is called when a relationship group is visited.
	*/
	OnRelationshipGroup(typ int)

	/*
		OnProperty is called when a property is visited.
	*/
	OnProperty(key int)
}

/*
SinkTracer is a ReadTracer which converts all calls into events and hands
them to a sink function.
*/
type SinkTracer struct {
	Sink func(e Event)
}

/*
NewSinkTracer creates a new tracer for a given sink function.
*/
func NewSinkTracer(sink func(e Event)) *SinkTracer {
	return &SinkTracer{sink}
}

// ReadTracer implementation
// =========================

func (st *SinkTracer) OnNode(id uint64) { st.Sink(Event{NodeEvent, id, -1}) }

func (st *SinkTracer) OnAllNodesScan() { st.Sink(Event{AllNodesScanEvent, 0, -1}) }

func (st *SinkTracer) OnLabelScan(label int) { st.Sink(Event{LabelScanEvent, 0, label}) }

func (st *SinkTracer) OnIndexSeek() { st.Sink(Event{IndexSeekEvent, 0, -1}) }

func (st *SinkTracer) OnRelationship(id uint64) { st.Sink(Event{RelationshipEvent, id, -1}) }

func (st *SinkTracer) OnAllRelationshipsScan() { st.Sink(Event{AllRelationshipsScanEvent, 0, -1}) }

func (st *SinkTracer) OnRelationshipTypeScan(typ int) {
	st.Sink(Event{RelationshipTypeScanEvent, 0, typ})
}

func (st *SinkTracer) OnRelationshipGroup(typ int) { st.Sink(Event{RelationshipGroupEvent, 0, typ}) }

func (st *SinkTracer) OnProperty(key int) { st.Sink(Event{PropertyEvent, 0, key}) }

/*
Multi creates a tracer which forwards all events to several tracers.
*/
func Multi(tracers ...ReadTracer) ReadTracer {
	return NewSinkTracer(func(e Event) {
		for _, t := range tracers {
			Replay(t, e)
		}
	})
}

/*
Replay delivers a given event to a tracer.
*/
func Replay(t ReadTracer, e Event) {
	switch e.Type {
	case NodeEvent:
		t.OnNode(e.ID)
	case AllNodesScanEvent:
		t.OnAllNodesScan()
	case LabelScanEvent:
		t.OnLabelScan(e.Token)
	case IndexSeekEvent:
		t.OnIndexSeek()
	case RelationshipEvent:
		t.OnRelationship(e.ID)
	case AllRelationshipsScanEvent:
		t.OnAllRelationshipsScan()
	case RelationshipTypeScanEvent:
		t.OnRelationshipTypeScan(e.Token)
	case RelationshipGroupEvent:
		t.OnRelationshipGroup(e.Token)
	case PropertyEvent:
		t.OnProperty(e.Token)
	}
}
