package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"tute/internal/session"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"
	"nhooyr.io/websocket"
)

// PeerHandler receives what peers send to the mesh host.
type PeerHandler interface {
	HandlePeer(ctx context.Context, peerID string, data []byte) error
	PeerGone(ctx context.Context, peerID string)
}

// MeshHub is the host end of a peer mesh: every peer holds one websocket to
// it. It implements session.MeshTransport for the host.
type MeshHub struct {
	logger runtime.Logger

	mu      sync.RWMutex
	handler PeerHandler
	peers   map[string]*client
}

func NewMeshHub(logger runtime.Logger) *MeshHub {
	return &MeshHub{logger: logger, peers: make(map[string]*client)}
}

// Attach sets the handler peers talk to. It must be called before serving.
func (m *MeshHub) Attach(h PeerHandler) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

func (m *MeshHub) Send(_ context.Context, peerID string, data []byte) error {
	m.mu.RLock()
	c, ok := m.peers[peerID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("peer %s not connected", peerID)
	}
	select {
	case c.send <- data:
		return nil
	default:
		return fmt.Errorf("peer %s send buffer full", peerID)
	}
}

// Broadcast reaches every connected peer. Slow peers miss the frame and
// resync on the next one.
func (m *MeshHub) Broadcast(_ context.Context, data []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, c := range m.peers {
		select {
		case c.send <- data:
		default:
			m.logger.Warn("MeshHub: dropping broadcast to peer %s", id)
		}
	}
	return nil
}

// Peers returns how many peers are connected.
func (m *MeshHub) Peers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.peers)
}

// ServeWS runs one peer link until it closes.
func (m *MeshHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	h := m.handler
	m.mu.RUnlock()
	if h == nil {
		http.Error(w, "mesh host not ready", http.StatusServiceUnavailable)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		m.logger.Warn("MeshHub: accept failed: %v", err)
		return
	}
	conn.SetReadLimit(readLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &client{id: uuid.NewString(), send: make(chan []byte, sendBuffer)}
	m.mu.Lock()
	m.peers[c.id] = c
	m.mu.Unlock()
	m.logger.Info("MeshHub: peer %s connected", c.id)

	go writeLoop(ctx, conn, c.send)

	defer func() {
		m.mu.Lock()
		delete(m.peers, c.id)
		m.mu.Unlock()
		h.PeerGone(context.Background(), c.id)
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
		m.logger.Info("MeshHub: peer %s gone", c.id)
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if err := h.HandlePeer(ctx, c.id, data); err != nil {
			m.logger.Warn("MeshHub: peer %s: %v", c.id, err)
		}
	}
}

// Handler mounts the peer endpoint on /mesh and a liveness probe on /health.
func (m *MeshHub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/mesh", m.ServeWS)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

var _ session.MeshTransport = (*MeshHub)(nil)

// errNoBroadcast is returned when a peer tries to broadcast; only the host
// fans out.
var errNoBroadcast = errors.New("peers cannot broadcast")

// PeerConn is a peer's link to the mesh host.
type PeerConn struct {
	conn *websocket.Conn
}

// DialMesh connects to the host's /mesh endpoint at url.
func DialMesh(ctx context.Context, url string) (*PeerConn, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial mesh host: %w", err)
	}
	conn.SetReadLimit(readLimit)
	return &PeerConn{conn: conn}, nil
}

// Send writes to the host; peerID is ignored.
func (p *PeerConn) Send(ctx context.Context, _ string, data []byte) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return p.conn.Write(wctx, websocket.MessageText, data)
}

func (p *PeerConn) Broadcast(context.Context, []byte) error { return errNoBroadcast }

// Run feeds every frame from the host to handle until the link or ctx ends.
// Frames handle rejects are skipped.
func (p *PeerConn) Run(ctx context.Context, handle func([]byte) error) error {
	for {
		_, data, err := p.conn.Read(ctx)
		if err != nil {
			return err
		}
		_ = handle(data)
	}
}

func (p *PeerConn) Close() error {
	return p.conn.Close(websocket.StatusNormalClosure, "bye")
}

var _ session.MeshTransport = (*PeerConn)(nil)
