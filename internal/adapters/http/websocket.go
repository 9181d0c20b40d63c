package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/safemap/internal/adapters/nats"
	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/ports"
	"github.com/samirrijal/safemap/internal/pkg/metrics"
)

// wsMessage is sent from client to server.
type wsMessage struct {
	Action string   `json:"action"` // "click" | "position" | "ping"
	Handle string   `json:"handle,omitempty"`
	Lat    *float64 `json:"lat,omitempty"`
	Lon    *float64 `json:"lon,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// WebSocketUpgrade rejects non-upgrade requests and unknown sessions before
// the connection is hijacked.
func WebSocketUpgrade(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		id := c.Query("session")
		if id == "" {
			return errBadRequest(c, "session query parameter is required")
		}
		if _, err := deps.Sessions.Get(id); err != nil {
			return errDomain(c, err)
		}
		c.Locals("session", id)
		return c.Next()
	}
}

// WebSocketHandler streams a session's render operations and state events.
// On connect the client receives {"type":"replay","ops":[...]} to rebuild
// the map, followed by live session events relayed from NATS. Clients send
// marker clicks {"action":"click","handle":"marker-3"} and device fixes
// {"action":"position","lat":..,"lon":..}.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		id, _ := c.Locals("session").(string)
		logger := slog.Default().With("component", "ws", "session", id, "remote", c.RemoteAddr().String())
		logger.Info("ws client connected")
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		// Subscribe before replaying so no op falls between the two; clients
		// drop live ops whose seq is not above the replay seq.
		var sub *nats.Subscription
		if deps.NATS != nil {
			var err error
			sub, err = deps.NATS.Subscribe(natsadapter.SessionSubject(id), func(msg *nats.Msg) {
				_ = writeJSON(json.RawMessage(msg.Data))
			})
			if err != nil {
				logger.Error("ws subscribe failed", "error", err)
				return
			}
			defer func() { _ = sub.Unsubscribe() }()
		}

		ops, err := deps.Sessions.Replay(id)
		if err != nil {
			_ = writeJSON(map[string]string{"error": "session not found"})
			return
		}
		if err := writeJSON(map[string]interface{}{"type": "replay", "ops": ops}); err != nil {
			return
		}

		// Keep-alive ping
		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			switch m.Action {
			case "click":
				if err := deps.Sessions.Click(id, ports.LayerHandle(m.Handle)); err != nil {
					_ = writeJSON(map[string]string{"error": "unknown marker: " + m.Handle})
				}
			case "position":
				report := domain.PositionReport{SessionID: id}
				if m.Error != "" {
					report.Error = domain.ParseGeolocationErrorKind(m.Error)
				} else if m.Lat != nil && m.Lon != nil {
					report.Position = &domain.Position{Location: domain.GeoPoint{Lat: *m.Lat, Lon: *m.Lon}}
				} else {
					_ = writeJSON(map[string]string{"error": "lat and lon or error required"})
					continue
				}
				if err := deps.Sessions.Report(report); err != nil {
					_ = writeJSON(map[string]string{"error": "session closed"})
					return
				}
			case "ping":
				_ = writeJSON(map[string]string{"type": "pong"})
			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		logger.Info("ws client disconnected")
	}
}
