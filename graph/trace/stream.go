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
	"fmt"
	"net/http"
	"sync"
	"time"

	"devt.de/krotik/common/cryptutil"
	"devt.de/krotik/common/stringutil"
	"devt.de/krotik/ecal/util"
	"github.com/gorilla/websocket"
)

/*
writeTimeout is the maximum time a single event write may take. Clients which
are too slow are disconnected.
*/
var writeTimeout = 5 * time.Second

/*
streamUpgrader upgrades trace requests to websocket connections.
*/
var streamUpgrader = websocket.Upgrader{
	Subprotocols:    []string{"graph-trace"},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

/*
StreamTracer streams all events to connected websocket clients. It is an
http.Handler which accepts new clients.
*/
type StreamTracer struct {
	*SinkTracer
	Logger  util.Logger                     // Logger for connection errors
	lock    *sync.RWMutex                   // Lock for clients
	clients map[string]*WebsocketConnection // Connected clients
}

/*
NewStreamTracer creates a new stream tracer.
*/
func NewStreamTracer(logger util.Logger) *StreamTracer {
	st := &StreamTracer{nil, logger, &sync.RWMutex{},
		make(map[string]*WebsocketConnection)}

	st.SinkTracer = NewSinkTracer(st.broadcast)

	return st
}

/*
Clients returns the number of connected clients.
*/
func (st *StreamTracer) Clients() int {
	st.lock.RLock()
	defer st.lock.RUnlock()

	return len(st.clients)
}

/*
ServeHTTP upgrades a request to a websocket connection and streams events to
it until the client sends a close message or disconnects.
*/
func (st *StreamTracer) ServeHTTP(w http.ResponseWriter, r *http.Request) {

	// If the upgrade fails then the client gets an HTTP error response.

	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		st.Logger.LogError("Could not upgrade trace connection: ", err)
		return
	}

	wc := NewWebsocketConnection(fmt.Sprintf("%x", cryptutil.GenerateUUID()), conn)

	if err := wc.Init(); err != nil {
		conn.Close()
		return
	}

	st.lock.Lock()
	st.clients[wc.CommID] = wc
	st.lock.Unlock()

	st.Logger.LogDebug("Trace client connected: ", wc.CommID)

	defer st.remove(wc)

	for {
		data, fatal, err := wc.ReadData()

		if err != nil {
			if fatal {
				return
			}
			continue
		}

		if val, ok := data["close"]; ok && stringutil.IsTrueValue(fmt.Sprint(val)) {
			wc.Close("")
			return
		}
	}
}

/*
Close disconnects all clients.
*/
func (st *StreamTracer) Close() {
	st.lock.Lock()
	clients := st.clients
	st.clients = make(map[string]*WebsocketConnection)
	st.lock.Unlock()

	for _, wc := range clients {
		wc.Close("trace stream closed")
	}
}

func (st *StreamTracer) remove(wc *WebsocketConnection) {
	st.lock.Lock()
	defer st.lock.Unlock()

	if _, ok := st.clients[wc.CommID]; ok {
		delete(st.clients, wc.CommID)
		st.Logger.LogDebug("Trace client disconnected: ", wc.CommID)
	}
}

func (st *StreamTracer) broadcast(e Event) {
	st.lock.RLock()
	clients := make([]*WebsocketConnection, 0, len(st.clients))
	for _, wc := range st.clients {
		clients = append(clients, wc)
	}
	st.lock.RUnlock()

	for _, wc := range clients {
		if err := wc.WriteEvent(e); err != nil {
			st.Logger.LogError("Dropping trace client ", wc.CommID, ": ", err)
			wc.Conn.Close()
			st.remove(wc)
		}
	}
}
