package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"journey-simulator/internal/fanout"
	"journey-simulator/internal/sim"
)

const (
	wsWriteWait = 10 * time.Second
	wsReadLimit = 512
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// wsFrame is one websocket text message.
type wsFrame struct {
	Event fanout.Kind  `json:"event"`
	Data  fanout.Event `json:"data"`
}

// open subscribes to the journey and returns the event describing its current
// state. The subscription exists before the state is read so nothing produced
// in between is lost.
func (s *Server) open(r *http.Request) (*fanout.Subscription, fanout.Event, error) {
	id := chi.URLParam(r, "id")
	if _, err := s.journeys.GetJourneyState(id); err != nil {
		return nil, fanout.Event{}, err
	}
	sub, err := s.streams.Subscribe(id, r.URL.Query().Get("subscriberId"))
	if err != nil {
		return nil, fanout.Event{}, err
	}
	snap, err := s.journeys.GetJourneyState(id)
	if err != nil {
		s.streams.Unsubscribe(sub, fanout.ReasonStopped)
		return nil, fanout.Event{}, err
	}
	kind := fanout.KindUpdate
	if snap.Status == sim.StatusCompleted {
		kind = fanout.KindCompleted
	}
	return sub, fanout.NewEvent(kind, snap, time.Now()), nil
}

// pending returns events already buffered for a finished subscription.
func pending(sub *fanout.Subscription) []fanout.Event {
	var out []fanout.Event
	for {
		select {
		case ev := <-sub.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, errors.New("stream unsupported"))
		return
	}
	sub, first, err := s.open(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	send := func(ev fanout.Event) error {
		b, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, b); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}
	fail := func(err error) {
		s.logger.Debug("sse write failed", "journey_id", sub.JourneyID(), "subscriber_id", sub.ID(), "error", err)
		s.streams.Unsubscribe(sub, fanout.ReasonFailed)
	}

	if err := send(first); err != nil {
		fail(err)
		return
	}
	if first.Kind == fanout.KindCompleted {
		s.streams.Unsubscribe(sub, fanout.ReasonCompleted)
		return
	}

	keepAlive := time.NewTicker(s.keepAlive)
	defer keepAlive.Stop()
	for {
		select {
		case <-r.Context().Done():
			s.streams.Unsubscribe(sub, fanout.ReasonClosed)
			return
		case ev := <-sub.Events():
			if err := send(ev); err != nil {
				fail(err)
				return
			}
		case <-sub.Done():
			for _, ev := range pending(sub) {
				if err := send(ev); err != nil {
					return
				}
			}
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				fail(err)
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sub, first, err := s.open(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client
		s.logger.Debug("websocket upgrade failed", "journey_id", sub.JourneyID(), "error", err)
		s.streams.Unsubscribe(sub, fanout.ReasonFailed)
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go s.readPump(conn, gone)

	send := func(ev fanout.Event) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(wsFrame{Event: ev.Kind, Data: ev})
	}
	closeNormally := func() {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(sub.Reason())))
	}
	fail := func(err error) {
		s.logger.Debug("websocket write failed", "journey_id", sub.JourneyID(), "subscriber_id", sub.ID(), "error", err)
		s.streams.Unsubscribe(sub, fanout.ReasonFailed)
	}

	if err := send(first); err != nil {
		fail(err)
		return
	}
	if first.Kind == fanout.KindCompleted {
		s.streams.Unsubscribe(sub, fanout.ReasonCompleted)
		closeNormally()
		return
	}

	ping := time.NewTicker(s.keepAlive)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			s.streams.Unsubscribe(sub, fanout.ReasonClosed)
			return
		case ev := <-sub.Events():
			if err := send(ev); err != nil {
				fail(err)
				return
			}
		case <-sub.Done():
			for _, ev := range pending(sub) {
				if err := send(ev); err != nil {
					return
				}
			}
			closeNormally()
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				fail(err)
				return
			}
		}
	}
}

// readPump consumes client frames so pongs and close frames are processed.
// gone is closed when the client goes away.
func (s *Server) readPump(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)
	pongWait := max(4*s.keepAlive, 60*time.Second)
	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Debug("websocket read error", "error", err)
			}
			return
		}
	}
}
