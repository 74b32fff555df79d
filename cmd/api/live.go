package main

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"outsy/internal/domain/places"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = (livePongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type liveMessage struct {
	Places []places.Place `json:"places"`
}

// livePlacesHandler streams the filtered catalog over a websocket: once on
// connect and again after every catalog change. Query parameters are the
// same as for the list endpoint.
func (app *application) livePlacesHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := parseSearchFilter(r.URL.Query())
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		app.logger.Warnw("websocket upgrade failed", "error", err.Error())
		return
	}
	defer conn.Close()

	ctx := r.Context()
	// Yields the current catalog first.
	updates := app.catalog.Watch(ctx)

	// The read loop only handles control frames and notices a closed peer.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(livePongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(all []places.Place) error {
		_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
		return conn.WriteJSON(liveMessage{Places: places.Filter(all, filter)})
	}

	ping := time.NewTicker(livePingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-gone:
			return
		case all, ok := <-updates:
			if !ok {
				return
			}
			if err := send(all); err != nil {
				app.logger.Debugw("live client write failed", "error", err.Error())
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
