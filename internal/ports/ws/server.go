package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"tute/internal/app"
	"tute/internal/protocol"
	"tute/internal/session"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"
	"nhooyr.io/websocket"
)

const (
	pingInterval = 15 * time.Second
	writeTimeout = 10 * time.Second
	readLimit    = 1 << 16
)

var errAlreadySeated = fmt.Errorf("connection already holds a seat: %w", app.ErrBadRequest)

// Server accepts client connections for a relay.
type Server struct {
	hub          *Hub
	relay        *session.Relay
	logger       runtime.Logger
	allowOrigins map[string]bool
}

// NewServer serves relay over websockets. An empty allow list accepts any
// origin.
func NewServer(hub *Hub, relay *session.Relay, logger runtime.Logger, allow []string) *Server {
	m := map[string]bool{}
	for _, a := range allow {
		if a != "" {
			m[a] = true
		}
	}
	return &Server{hub: hub, relay: relay, logger: logger, allowOrigins: m}
}

// Handler mounts the websocket endpoint on /ws and a liveness probe on /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.ServeWS)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || len(s.allowOrigins) == 0 || s.allowOrigins[origin]
}

// ServeWS runs one client connection until it closes.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	if !s.originAllowed(r) {
		http.Error(w, "forbidden origin", http.StatusForbidden)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.logger.Warn("ServeWS: accept failed: %v", err)
		return
	}
	conn.SetReadLimit(readLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &client{id: uuid.NewString(), send: make(chan []byte, sendBuffer)}
	s.logger.Debug("ServeWS: client %s connected", c.id)

	go writeLoop(ctx, conn, c.send)

	var playerID string
	defer func() {
		if playerID != "" && s.hub.unbind(playerID, c) {
			if err := s.relay.Disconnect(context.Background(), playerID); err != nil && !errors.Is(err, app.ErrUnknownPlayer) {
				s.logger.Warn("ServeWS [Player:%s]: disconnect: %v", playerID, err)
			}
		}
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
		s.logger.Debug("ServeWS: client %s closed", c.id)
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		in, err := protocol.ParseIntent(data)
		if err != nil {
			s.reply(c, err)
			continue
		}
		bound, err := s.handle(ctx, c, playerID, in)
		if err != nil {
			s.reply(c, err)
			continue
		}
		playerID = bound
	}
}

// handle applies one intent and returns the player the connection is bound to
// afterwards.
func (s *Server) handle(ctx context.Context, c *client, playerID string, in protocol.Intent) (string, error) {
	switch in.Type {
	case protocol.TypeCreateRoom, protocol.TypeJoinRoom:
		if playerID != "" {
			return playerID, errAlreadySeated
		}
		var (
			res session.JoinResult
			err error
		)
		if in.Type == protocol.TypeCreateRoom {
			res, err = s.relay.CreateRoom(ctx, in.PlayerName)
		} else {
			res, err = s.relay.JoinRoom(ctx, in.RoomCode, in.PlayerName)
		}
		if err != nil {
			return "", err
		}
		s.hub.bind(res.PlayerID, c)
		s.logger.Info("ServeWS [Player:%s]: seated in room %s at %d", res.PlayerID, res.RoomCode, res.Position)
		return res.PlayerID, nil

	case protocol.TypeReconnect:
		if playerID != "" && playerID != in.PlayerID {
			return playerID, errAlreadySeated
		}
		// The seat's frames only move to this connection once the secret
		// matches; the ack then has to find it bound.
		if err := s.relay.Authenticate(ctx, in.PlayerID, in.PlayerSecret); err != nil {
			s.logger.Warn("ServeWS [Player:%s]: reconnect refused: %v", in.PlayerID, err)
			return playerID, err
		}
		prev := s.hub.bind(in.PlayerID, c)
		if _, err := s.relay.Reconnect(ctx, in.PlayerID, in.PlayerSecret); err != nil {
			s.hub.rebind(in.PlayerID, c, prev)
			return playerID, err
		}
		return in.PlayerID, nil
	}

	if playerID == "" {
		return "", app.ErrUnknownPlayer
	}
	if err := session.Dispatch(ctx, s.relay, playerID, in); err != nil {
		return playerID, err
	}
	if in.Type == protocol.TypeLeaveRoom {
		if _, seated := s.relay.RoomOf(playerID); !seated {
			s.hub.unbind(playerID, c)
			return "", nil
		}
	}
	return playerID, nil
}

// reply sends a rejection to the requesting connection only.
func (s *Server) reply(c *client, cause error) {
	frame, err := protocol.Encode(protocol.TypeError, protocol.ErrorFrom(cause))
	if err != nil {
		s.logger.Error("ServeWS: encode error reply: %v", err)
		return
	}
	s.hub.push(c, frame)
}

// writeLoop owns all writes of a connection and keeps it alive with pings.
func writeLoop(ctx context.Context, conn *websocket.Conn, send <-chan []byte) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				return
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
