package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"tute/internal/app"
	"tute/internal/bot"
	"tute/internal/domain"
	"tute/internal/protocol"

	"github.com/heroiclabs/nakama-common/runtime"
)

// HostPeerID addresses the mesh host from a peer.
const HostPeerID = "host"

// MeshTransport moves mesh frames between the host and its peers.
type MeshTransport interface {
	Send(ctx context.Context, peerID string, data []byte) error
	Broadcast(ctx context.Context, data []byte) error
}

// MeshHost owns the room of a peer mesh. Players sitting at the host machine
// act through the Coordinator methods and receive messages on the local sink;
// remote players arrive as peers through HandlePeer.
type MeshHost struct {
	mu        sync.Mutex
	room      *Room
	transport MeshTransport
	local     Sink
	logger    runtime.Logger
	clock     func() time.Time

	peers    map[string]string // peer id -> player id
	byPlayer map[string]string // player id -> peer id
	locals   map[string]bool
	wake     chan struct{}
}

// NewMeshHost creates the host of the room under code.
func NewMeshHost(code string, opts Options, transport MeshTransport, local Sink) *MeshHost {
	opts = opts.withDefaults()
	return &MeshHost{
		room:      NewRoom(code, opts),
		transport: transport,
		local:     local,
		logger:    opts.Logger,
		clock:     opts.Clock,
		peers:     make(map[string]string),
		byPlayer:  make(map[string]string),
		locals:    make(map[string]bool),
		wake:      make(chan struct{}, 1),
	}
}

// Code returns the room code peers must present.
func (h *MeshHost) Code() string { return h.room.Code }

func (h *MeshHost) CreateRoom(ctx context.Context, displayName string) (JoinResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.room.Humans() > 0 {
		return JoinResult{}, app.ErrRoomExists
	}
	res, out, err := h.room.Join(displayName, protocol.TypeRoomCreated)
	if err != nil {
		return JoinResult{}, err
	}
	h.locals[res.PlayerID] = true
	h.route(ctx, out)
	return res, nil
}

func (h *MeshHost) JoinRoom(ctx context.Context, code, displayName string) (JoinResult, error) {
	if protocol.NormalizeRoomCode(code) != h.room.Code {
		return JoinResult{}, app.ErrRoomNotFound
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	res, out, err := h.room.Join(displayName, protocol.TypeJoinedRoom)
	if err != nil {
		return JoinResult{}, err
	}
	h.locals[res.PlayerID] = true
	h.route(ctx, out)
	return res, nil
}

// AddBots fills up to n free seats with bots.
func (h *MeshHost) AddBots(ctx context.Context, n int, level bot.BotLevel) error {
	return h.mutate(ctx, func(r *Room) ([]Outbound, error) {
		var out []Outbound
		for i := 0; i < n; i++ {
			_, more, err := r.AddBot(level)
			if err != nil {
				if len(out) > 0 {
					break
				}
				return nil, err
			}
			out = append(out, more...)
		}
		return out, nil
	})
}

func (h *MeshHost) LeaveRoom(ctx context.Context, playerID string) error {
	return h.mutate(ctx, func(r *Room) ([]Outbound, error) { return r.Leave(playerID) })
}

func (h *MeshHost) StartGame(ctx context.Context, playerID string) error {
	return h.mutate(ctx, func(r *Room) ([]Outbound, error) { return r.StartGame(playerID) })
}

func (h *MeshHost) PlayCard(ctx context.Context, playerID, cardID string) error {
	return h.mutate(ctx, func(r *Room) ([]Outbound, error) { return r.PlayCard(playerID, cardID) })
}

func (h *MeshHost) Declare(ctx context.Context, playerID string, kind domain.DeclarationKind, suit domain.Suit) error {
	return h.mutate(ctx, func(r *Room) ([]Outbound, error) { return r.Declare(playerID, kind, suit) })
}

func (h *MeshHost) SkipDeclare(ctx context.Context, playerID string) error {
	return h.mutate(ctx, func(r *Room) ([]Outbound, error) { return r.SkipDeclare(playerID) })
}

func (h *MeshHost) Disconnect(ctx context.Context, playerID string) error {
	return h.mutate(ctx, func(r *Room) ([]Outbound, error) { return r.Disconnect(playerID) })
}

func (h *MeshHost) Reconnect(ctx context.Context, playerID, secret string) (app.View, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, out, err := h.room.Reconnect(playerID, secret)
	if err != nil {
		return app.View{}, err
	}
	h.route(ctx, out)
	h.signal()
	return v, nil
}

// HandlePeer applies one frame received from a peer. Rejections are sent
// back to the peer; only transport failures are returned.
func (h *MeshHost) HandlePeer(ctx context.Context, peerID string, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	msg, err := protocol.DecodeMesh(data)
	if err != nil {
		return h.reject(ctx, peerID, err)
	}

	switch msg.Type {
	case protocol.MeshPing:
		return h.send(ctx, peerID, protocol.MeshPong, 0, nil)

	case protocol.MeshSyncRequest:
		playerID, ok := h.peers[peerID]
		if !ok {
			return h.reject(ctx, peerID, app.ErrUnknownPlayer)
		}
		if err := h.send(ctx, peerID, protocol.MeshGameState, h.room.Version(), h.room.PublicView()); err != nil {
			return err
		}
		v, err := h.room.View(playerID)
		if err != nil {
			return h.reject(ctx, peerID, err)
		}
		return h.send(ctx, peerID, protocol.MeshPlayerAction, h.room.Version(), privateOf(v))

	case protocol.MeshPlayerJoined:
		var join protocol.MeshJoin
		if err := msg.Into(&join); err != nil {
			return h.reject(ctx, peerID, err)
		}
		return h.admit(ctx, peerID, join)

	case protocol.MeshPlayerLeft:
		playerID, ok := h.peers[peerID]
		if !ok {
			return nil
		}
		out, err := h.room.Leave(playerID)
		if err != nil {
			return h.reject(ctx, peerID, err)
		}
		if !h.room.Has(playerID) {
			delete(h.peers, peerID)
			delete(h.byPlayer, playerID)
		}
		h.route(ctx, out)

	case protocol.MeshPlayerAction:
		playerID, ok := h.peers[peerID]
		if !ok {
			return h.reject(ctx, peerID, app.ErrUnknownPlayer)
		}
		var env protocol.Envelope
		if err := msg.Into(&env); err != nil {
			return h.reject(ctx, peerID, err)
		}
		in, err := protocol.IntentFrom(env)
		if err != nil {
			return h.reject(ctx, peerID, err)
		}
		out, err := DispatchRoom(h.room, playerID, in)
		if err != nil {
			return h.reject(ctx, peerID, err)
		}
		h.route(ctx, out)

	default:
		return h.reject(ctx, peerID, app.ErrBadRequest)
	}
	h.signal()
	return nil
}

// PeerGone marks a peer's seat as disconnected after its link drops.
func (h *MeshHost) PeerGone(ctx context.Context, peerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	playerID, ok := h.peers[peerID]
	if !ok {
		return
	}
	delete(h.peers, peerID)
	delete(h.byPlayer, playerID)
	out, err := h.room.Disconnect(playerID)
	if err != nil {
		h.logger.Warn("MeshHost: disconnect %s: %v", playerID, err)
		return
	}
	h.route(ctx, out)
}

// Advance runs the tasks due at now.
func (h *MeshHost) Advance(ctx context.Context, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.route(ctx, h.room.Advance(now))
}

// Run drives the room's scheduled tasks until ctx ends, then closes the room.
func (h *MeshHost) Run(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		h.mu.Lock()
		due, ok := h.room.NextDue()
		h.mu.Unlock()
		timer.Stop()
		if ok {
			wait := due.Sub(h.clock())
			if wait < 0 {
				wait = 0
			}
			timer.Reset(wait)
		}

		select {
		case <-ctx.Done():
			h.mu.Lock()
			h.room.Close()
			h.mu.Unlock()
			return ctx.Err()
		case <-h.wake:
		case <-timer.C:
			h.Advance(ctx, h.clock())
		}
	}
}

// admit seats a new peer, or gives a returning one its seat back.
func (h *MeshHost) admit(ctx context.Context, peerID string, join protocol.MeshJoin) error {
	var (
		playerID string
		out      []Outbound
		err      error
	)
	if held, seated := h.peers[peerID]; seated {
		switch join.PlayerID {
		case "":
			return h.resendSeat(ctx, peerID, held)
		case held:
		default:
			h.logger.Warn("MeshHost: peer %s holds %s and asked for %s", peerID, held, join.PlayerID)
			return h.reject(ctx, peerID, app.ErrBadRequest)
		}
	}
	if join.PlayerID != "" {
		_, out, err = h.room.Reconnect(join.PlayerID, join.PlayerSecret)
		playerID = join.PlayerID
	} else {
		var res JoinResult
		res, out, err = h.room.Join(join.PlayerName, protocol.TypeJoinedRoom)
		playerID = res.PlayerID
	}
	if err != nil {
		return h.reject(ctx, peerID, err)
	}
	if old, ok := h.byPlayer[playerID]; ok && old != peerID {
		delete(h.peers, old)
	}
	h.peers[peerID] = playerID
	h.byPlayer[playerID] = peerID
	h.logger.Info("MeshHost: peer %s is player %s", peerID, playerID)
	h.route(ctx, out)
	h.signal()
	return nil
}

// resendSeat answers a repeated join with the credentials the peer already
// holds. A peer never takes a second seat.
func (h *MeshHost) resendSeat(ctx context.Context, peerID, playerID string) error {
	for _, seat := range h.room.Seats() {
		if seat == nil || seat.PlayerID != playerID {
			continue
		}
		joined := protocol.RoomJoined{RoomCode: h.room.Code, PlayerID: seat.PlayerID, PlayerSecret: seat.Secret, Position: seat.Position}
		return h.send(ctx, peerID, protocol.MeshPlayerAction, 0, protocol.MeshPrivate{Joined: &joined})
	}
	return h.reject(ctx, peerID, app.ErrUnknownPlayer)
}

func (h *MeshHost) mutate(ctx context.Context, fn func(r *Room) ([]Outbound, error)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	out, err := fn(h.room)
	if err != nil {
		return err
	}
	h.route(ctx, out)
	h.signal()
	return nil
}

// route sends each message to the local sink or to the owning peer, and
// broadcasts the public projection whenever the state moved on.
func (h *MeshHost) route(ctx context.Context, out []Outbound) {
	changed := false
	for _, o := range out {
		if o.Type == protocol.TypeGameState || o.Type == protocol.TypeRoomState {
			changed = true
		}
		for _, id := range o.To {
			if h.locals[id] {
				if h.local != nil {
					h.local.Deliver(id, o)
				}
				continue
			}
			peerID, ok := h.byPlayer[id]
			if !ok {
				continue
			}
			if err := h.forward(ctx, peerID, o); err != nil {
				h.logger.Warn("MeshHost: send to %s failed: %v", peerID, err)
			}
		}
	}
	if !changed {
		return
	}
	data, err := protocol.EncodeMesh(protocol.MeshGameState, h.room.Version(), h.room.PublicView())
	if err != nil {
		h.logger.Error("MeshHost: encode state: %v", err)
		return
	}
	if err := h.transport.Broadcast(ctx, data); err != nil {
		h.logger.Warn("MeshHost: broadcast failed: %v", err)
	}
}

// forward turns a room message into a private player_action delivery.
func (h *MeshHost) forward(ctx context.Context, peerID string, o Outbound) error {
	switch p := o.Payload.(type) {
	case protocol.GameState:
		return h.send(ctx, peerID, protocol.MeshPlayerAction, p.State.Version, privateOf(p.State))
	case protocol.RoomJoined:
		return h.send(ctx, peerID, protocol.MeshPlayerAction, 0, protocol.MeshPrivate{Joined: &p})
	}
	event, err := o.Encode()
	if err != nil {
		return err
	}
	return h.send(ctx, peerID, protocol.MeshPlayerAction, 0, protocol.MeshPrivate{Event: json.RawMessage(event)})
}

func (h *MeshHost) reject(ctx context.Context, peerID string, cause error) error {
	e := protocol.ErrorFrom(cause)
	return h.send(ctx, peerID, protocol.MeshPlayerAction, 0, protocol.MeshPrivate{Error: &e})
}

func (h *MeshHost) send(ctx context.Context, peerID string, t protocol.MeshType, version int, data any) error {
	frame, err := protocol.EncodeMesh(t, version, data)
	if err != nil {
		return err
	}
	return h.transport.Send(ctx, peerID, frame)
}

func (h *MeshHost) signal() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func privateOf(v app.View) protocol.MeshPrivate {
	return protocol.MeshPrivate{Hand: v.Hand, LegalMoves: v.LegalMoves, Cantes: v.Cantes, CanTute: v.CanTute}
}

var _ Coordinator = (*MeshHost)(nil)
