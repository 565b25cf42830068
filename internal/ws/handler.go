package ws

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/ar-duel-backend/internal/hub"
	"github.com/DoyleJ11/ar-duel-backend/internal/types"
)

// Handler upgrades to a websocket and feeds the connection's events into h.
// Query params: session=<token> and host=true|false, both optional.
func (s *Server) Handler(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: s.opts.AllowedOrigins,
		})
		if err != nil {
			s.log.Debug("accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		c := &client{
			id:     randID(20),
			conn:   conn,
			out:    make(chan []byte, outboxSize),
			groups: make(map[string]struct{}),
		}
		log := s.log.With(zap.String("conn", c.id))
		s.register(c)
		log.Debug("connected", zap.String("remote", r.RemoteAddr))

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for payload := range c.out {
				ctx, cancel := context.WithTimeout(writeCtx, s.opts.WriteTimeout)
				err := conn.Write(ctx, websocket.MessageText, payload)
				cancel()
				if err != nil {
					log.Debug("write failed", zap.Error(err))
					return
				}
			}
		}()

		go s.keepAlive(writeCtx, conn, log)

		defer func() {
			s.unregister(c.id)
			h.Post(hub.Disconnect{ConnID: c.id})
			log.Debug("disconnected")
		}()

		if !h.Post(connectMsg(c.id, r)) {
			return
		}

		// Reader loop. Liveness is checked by keepAlive, so reads only end
		// with the connection.
		for {
			_, data, err := conn.Read(writeCtx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("read ended", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil || cm.Type == "" {
				s.Send(c.id, types.Error(types.EvError, "bad json"))
				continue
			}
			if !h.Post(hub.Inbound{ConnID: c.id, Msg: cm}) {
				return
			}
		}
	}
}

// keepAlive pings the peer until ctx ends. A peer that doesn't answer within
// ReadTimeout is closed, which ends the reader loop.
func (s *Server) keepAlive(ctx context.Context, conn *websocket.Conn, log *zap.Logger) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, s.opts.ReadTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					log.Debug("ping failed", zap.Error(err))
					conn.Close(websocket.StatusPolicyViolation, "ping timeout")
				}
				return
			}
		}
	}
}

func connectMsg(id string, r *http.Request) hub.Connect {
	q := r.URL.Query()
	m := hub.Connect{ConnID: id, Token: q.Get("session")}
	if v := q.Get("host"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			m.IsHost = &b
		}
	}
	return m
}

func randID(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.IntN(len(charset))]
	}
	return string(b)
}
