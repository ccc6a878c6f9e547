package session

import (
	"context"
	"fmt"
	"sync"

	"tute/internal/app"
	"tute/internal/protocol"
)

// MeshPeer is a player's side of a peer mesh. It keeps the newest public
// state broadcast by the host merged with the private data sent to it.
type MeshPeer struct {
	transport MeshTransport

	mu       sync.Mutex
	state    app.View
	version  int
	hasState bool
	private  protocol.MeshPrivate
	privVer  int
	joined   *protocol.RoomJoined
	lastErr  *protocol.Error
	events   []protocol.Envelope
	pongs    int
	updates  chan struct{}
}

// NewMeshPeer creates a peer talking to the host through transport.
func NewMeshPeer(transport MeshTransport) *MeshPeer {
	return &MeshPeer{transport: transport, updates: make(chan struct{}, 1)}
}

// Updates is signalled whenever the peer's state changes.
func (p *MeshPeer) Updates() <-chan struct{} { return p.updates }

// Join asks the host for a seat.
func (p *MeshPeer) Join(ctx context.Context, name string) error {
	return p.send(ctx, protocol.MeshPlayerJoined, protocol.MeshJoin{PlayerName: name})
}

// Rejoin takes back a seat with credentials from an earlier join.
func (p *MeshPeer) Rejoin(ctx context.Context, playerID, secret string) error {
	return p.send(ctx, protocol.MeshPlayerJoined, protocol.MeshJoin{PlayerID: playerID, PlayerSecret: secret})
}

// Act sends an in-room intent (PLAY_CARD, DECLARE_CANTE, ...).
func (p *MeshPeer) Act(ctx context.Context, in protocol.Intent) error {
	frame, err := protocol.EncodeIntent(in)
	if err != nil {
		return err
	}
	env, err := protocol.Decode(frame)
	if err != nil {
		return err
	}
	return p.send(ctx, protocol.MeshPlayerAction, env)
}

// Sync asks the host to resend the current state.
func (p *MeshPeer) Sync(ctx context.Context) error {
	return p.send(ctx, protocol.MeshSyncRequest, nil)
}

func (p *MeshPeer) Ping(ctx context.Context) error {
	return p.send(ctx, protocol.MeshPing, nil)
}

// Leave gives up the seat.
func (p *MeshPeer) Leave(ctx context.Context) error {
	return p.send(ctx, protocol.MeshPlayerLeft, nil)
}

// Handle applies a frame from the host. game_state broadcasts older than the
// newest one seen are ignored.
func (p *MeshPeer) Handle(data []byte) error {
	msg, err := protocol.DecodeMesh(data)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch msg.Type {
	case protocol.MeshGameState:
		if p.hasState && msg.Version <= p.version {
			return nil
		}
		var v app.View
		if err := msg.Into(&v); err != nil {
			return err
		}
		p.state, p.version, p.hasState = v, msg.Version, true

	case protocol.MeshPlayerAction:
		var priv protocol.MeshPrivate
		if err := msg.Into(&priv); err != nil {
			return err
		}
		switch {
		case priv.Joined != nil:
			j := *priv.Joined
			p.joined = &j
		case priv.Error != nil:
			e := *priv.Error
			p.lastErr = &e
		case len(priv.Event) > 0:
			env, err := protocol.Decode(priv.Event)
			if err != nil {
				return err
			}
			p.events = append(p.events, env)
		case msg.Version >= p.privVer:
			p.private, p.privVer = priv, msg.Version
		}

	case protocol.MeshPong:
		p.pongs++

	default:
		return fmt.Errorf("unexpected %s from host: %w", msg.Type, app.ErrBadRequest)
	}

	select {
	case p.updates <- struct{}{}:
	default:
	}
	return nil
}

// State returns the newest public state with this peer's private fields.
func (p *MeshPeer) State() (app.View, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasState {
		return app.View{}, false
	}
	v := p.state
	v.You = -1
	if p.joined != nil {
		v.You = p.joined.Position
	}
	v.Hand = p.private.Hand
	// Moves computed for an older state are not offered.
	if p.privVer >= p.version {
		v.LegalMoves = p.private.LegalMoves
		v.Cantes = p.private.Cantes
		v.CanTute = p.private.CanTute
	}
	return v, true
}

// Credentials returns the seat credentials once the host has admitted the peer.
func (p *MeshPeer) Credentials() (protocol.RoomJoined, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.joined == nil {
		return protocol.RoomJoined{}, false
	}
	return *p.joined, true
}

// TakeError returns and clears the last rejection from the host.
func (p *MeshPeer) TakeError() *protocol.Error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.lastErr
	p.lastErr = nil
	return e
}

// DrainEvents returns the informational messages received since the last call.
func (p *MeshPeer) DrainEvents() []protocol.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.events
	p.events = nil
	return out
}

// Pongs counts the host's answers to Ping.
func (p *MeshPeer) Pongs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pongs
}

func (p *MeshPeer) send(ctx context.Context, t protocol.MeshType, data any) error {
	frame, err := protocol.EncodeMesh(t, 0, data)
	if err != nil {
		return err
	}
	return p.transport.Send(ctx, HostPeerID, frame)
}
