package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"editorsync/internal/events"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is served with permissive CORS; origins are not restricted
	// here either.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Outbound is a bus event relayed to clients.
type Outbound struct {
	Topic events.Topic `json:"topic"`
	Event events.Event `json:"event"`
}

// Inbound is a message from a client that owns media elements.
type Inbound struct {
	Type         string  `json:"type"`
	VideoID      string  `json:"videoId,omitempty"`
	SectorID     string  `json:"sectorId,omitempty"`
	Time         float64 `json:"time"`
	IsActiveOnly bool    `json:"isActiveOnly,omitempty"`
}

const (
	InboundTimeUpdate       = "timeupdate"
	InboundEnded            = "ended"
	InboundSectorTimeChange = "sector-time-change"
)

type reporter interface {
	Report(local float64)
}

// Events upgrades to a WebSocket that streams bus events out and accepts
// media element reports in.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	log := h.logger.With().Str("remote", r.RemoteAddr).Logger()
	log.Info().Msg("event client connected")

	send := make(chan []byte, sendBuffer)
	unsubscribe := h.Bus.SubscribeAll(func(ev events.Event) {
		data, err := json.Marshal(Outbound{Topic: ev.Topic(), Event: ev})
		if err != nil {
			log.Error().Err(err).Msg("failed to encode event")
			return
		}
		// Bus delivery is synchronous, so a slow client loses events
		// rather than stalling every publisher.
		select {
		case send <- data:
		default:
			log.Warn().Str("topic", string(ev.Topic())).Msg("event client too slow, dropping event")
		}
	})

	done := make(chan struct{})
	go h.writePump(conn, send, done)

	h.readPump(conn)

	unsubscribe()
	close(done)
	log.Info().Msg("event client disconnected")
}

func (h *Handler) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(64 * 1024)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Inbound
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Msg("event client read failed")
			}
			return
		}
		h.handleInbound(msg)
	}
}

func (h *Handler) writePump(conn *websocket.Conn, send <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case data := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// handleInbound applies one client message. Malformed messages are
// dropped.
func (h *Handler) handleInbound(msg Inbound) {
	switch msg.Type {
	case InboundTimeUpdate:
		el, ok := h.Bridge.Element(msg.VideoID)
		if !ok {
			return
		}
		if rep, ok := el.(reporter); ok {
			rep.Report(msg.Time)
			return
		}
		h.Bridge.TimeUpdate(msg.VideoID, msg.Time)
	case InboundEnded:
		h.Bridge.Ended(msg.VideoID)
	case InboundSectorTimeChange:
		h.Bridge.BroadcastSectorTime(events.SectorTimeChange{
			SectorID:     msg.SectorID,
			Time:         msg.Time,
			IsActiveOnly: msg.IsActiveOnly,
		})
	default:
		h.logger.Debug().Str("type", msg.Type).Msg("ignoring unknown client message")
	}
}
