/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package trace

import (
	"sync"

	"devt.de/krotik/common/datautil"
	"devt.de/krotik/ecal/util"
)

/*
RecordingTracer records the most recent events and counts all events. It
can be shared between goroutines.
*/
type RecordingTracer struct {
	*SinkTracer
	buffer *datautil.RingBuffer // Most recent events
	lock   *sync.Mutex          // Lock for counts
	counts map[EventType]int    // Event counts
}

/*
NewRecordingTracer creates a new recording tracer which keeps the given number
of recent events.
*/
func NewRecordingTracer(size int) *RecordingTracer {
	rt := &RecordingTracer{nil, datautil.NewRingBuffer(size), &sync.Mutex{},
		make(map[EventType]int)}

	rt.SinkTracer = NewSinkTracer(rt.record)

	return rt
}

func (rt *RecordingTracer) record(e Event) {
	rt.lock.Lock()
	rt.counts[e.Type]++
	rt.lock.Unlock()

	rt.buffer.Add(e)
}

/*
Events returns the most recent events.
*/
func (rt *RecordingTracer) Events() []Event {
	var res []Event

	for _, e := range rt.buffer.Slice() {
		res = append(res, e.(Event))
	}

	return res
}

/*
Count returns the number of events of a given type.
*/
func (rt *RecordingTracer) Count(et EventType) int {
	rt.lock.Lock()
	defer rt.lock.Unlock()

	return rt.counts[et]
}

/*
Reset removes all recorded events and counts.
*/
func (rt *RecordingTracer) Reset() {
	rt.lock.Lock()
	defer rt.lock.Unlock()

	rt.buffer.Reset()
	rt.counts = make(map[EventType]int)
}

/*
LoggingTracer writes all events to a logger at debug level.
*/
type LoggingTracer struct {
	*SinkTracer
	Logger util.Logger
}

/*
NewLoggingTracer creates a new logging tracer.
*/
func NewLoggingTracer(logger util.Logger) *LoggingTracer {
	lt := &LoggingTracer{nil, logger}

	lt.SinkTracer = NewSinkTracer(func(e Event) {
		lt.Logger.LogDebug("trace: ", e)
	})

	return lt
}
