package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lizeren/Cabo/internal/game"
)

const (
	clientSendBuffer = 32
	writeTimeout     = 5 * time.Second
)

// client is one live socket, owned by its room.
type client struct {
	playerID uuid.UUID
	conn     *websocket.Conn
	send     chan []byte
	closed   chan struct{}
	once     sync.Once
}

func newClient(playerID uuid.UUID, conn *websocket.Conn) *client {
	return &client{
		playerID: playerID,
		conn:     conn,
		send:     make(chan []byte, clientSendBuffer),
		closed:   make(chan struct{}),
	}
}

// enqueue hands a message to the write pump; a full buffer drops the
// client rather than stalling the game loop.
func (c *client) enqueue(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	case <-c.closed:
		return false
	default:
		c.shutdown()
		return false
	}
}

func (c *client) shutdown() {
	c.once.Do(func() { close(c.closed) })
}

// writePump drains the send queue onto the socket.
func (c *client) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case msg := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				c.shutdown()
				return
			}
		}
	}
}

// room binds one session to its connected sockets. It owns the session's
// broadcast callbacks and the user-to-seat mapping that makes reconnects
// land on the same seat.
type room struct {
	session *game.Session
	log     *logrus.Entry

	mu    sync.Mutex
	conns map[uuid.UUID]*client   // playerID -> socket
	seats map[uuid.UUID]uuid.UUID // userID -> playerID
}

func newRoom(session *game.Session) *room {
	r := &room{
		session: session,
		log:     logrus.WithField("session", session.Code),
		conns:   make(map[uuid.UUID]*client),
		seats:   make(map[uuid.UUID]uuid.UUID),
	}
	session.BroadcastFn = r.broadcast
	session.BroadcastToPlayerFn = r.broadcastToPlayer
	return r
}

// broadcast fans an event out to every connected socket. Called from the
// session with its lock held, so it must never block.
func (r *room) broadcast(ev game.GameEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.log.WithError(err).Error("failed to marshal event")
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conns {
		c.enqueue(payload)
	}
}

// broadcastToPlayer sends an event to a single player's socket.
func (r *room) broadcastToPlayer(playerID uuid.UUID, ev game.GameEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.log.WithError(err).Error("failed to marshal event")
		return
	}
	r.mu.Lock()
	c := r.conns[playerID]
	r.mu.Unlock()
	if c != nil {
		c.enqueue(payload)
	}
}

// join seats a user in the session, or reattaches them to their existing
// seat after a disconnect.
func (r *room) join(userID uuid.UUID, name string) (uuid.UUID, error) {
	r.mu.Lock()
	playerID, seated := r.seats[userID]
	r.mu.Unlock()

	if seated {
		if r.session.Reconnect(playerID) {
			return playerID, nil
		}
		// Still connected elsewhere or the lobby seat was removed; fall
		// through to a fresh join for the latter.
		r.mu.Lock()
		_, connected := r.conns[playerID]
		r.mu.Unlock()
		if connected {
			return playerID, nil
		}
	}

	r.session.Lock()
	host := len(r.session.Players) == 0
	r.session.Unlock()

	p, err := r.session.AddPlayer(name, host)
	if err != nil {
		return uuid.Nil, err
	}
	r.mu.Lock()
	r.seats[userID] = p.ID
	r.mu.Unlock()
	return p.ID, nil
}

// attach registers a socket for a seated player, replacing any stale one.
func (r *room) attach(c *client) {
	r.mu.Lock()
	if old := r.conns[c.playerID]; old != nil {
		old.shutdown()
	}
	r.conns[c.playerID] = c
	r.mu.Unlock()
}

// detach drops a socket and tells the session the player is gone, unless a
// newer socket already took the seat over.
func (r *room) detach(c *client) {
	c.shutdown()
	r.mu.Lock()
	current := r.conns[c.playerID]
	if current == c {
		delete(r.conns, c.playerID)
	}
	r.mu.Unlock()
	if current == c {
		r.session.RemovePlayer(c.playerID)
	}
}

// serve runs the socket's read loop until the connection drops: decode each
// message, submit it to the session, reply with the outcome.
func (r *room) serve(ctx context.Context, c *client) {
	r.attach(c)
	defer r.detach(c)

	go c.writePump(ctx)

	// A fresh socket gets an immediate snapshot.
	r.session.Lock()
	view := game.BuildViewerState(r.session, c.playerID)
	r.session.Unlock()
	if snap, err := json.Marshal(game.GameEvent{Type: game.EventStateSync, State: &view}); err == nil {
		c.enqueue(snap)
	}

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}

		act, err := decodeAction(data)
		if err != nil {
			r.replyError(c, err.Error())
			continue
		}

		out := r.session.HandleAction(c.playerID, act)
		if reply, err := json.Marshal(encodeOutcome(out)); err == nil {
			c.enqueue(reply)
		}
	}
}

func (r *room) replyError(c *client, message string) {
	msg := OutcomeMessage{
		Type:         "action_result",
		Outcome:      string(game.OutcomeFailure),
		ErrorCode:    "malformedMessage",
		ErrorMessage: message,
	}
	if payload, err := json.Marshal(msg); err == nil {
		c.enqueue(payload)
	}
}
