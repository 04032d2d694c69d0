package game

import (
	"crypto/rand"
	"sync"

	"github.com/sirupsen/logrus"
)

// roomCodeAlphabet avoids easily confused characters.
const (
	roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	roomCodeLength   = 6
)

// Registry owns every live session, keyed by room code. It is safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// CreateRoom creates a new lobby-phase session under a fresh room code. The
// session removes itself from the registry when its last seat empties.
func (r *Registry) CreateRoom(rules Config) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	code := newRoomCode()
	for {
		if _, taken := r.sessions[code]; !taken {
			break
		}
		code = newRoomCode()
	}

	s := NewSession(code, rules)
	s.OnEmpty = r.Remove
	r.sessions[code] = s
	logrus.WithField("session", code).Info("room created")
	return s
}

// Get returns the session with the given room code.
func (r *Registry) Get(code string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return s, nil
}

// Remove drops a session from the registry.
func (r *Registry) Remove(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[code]; ok {
		delete(r.sessions, code)
		logrus.WithField("session", code).Info("room removed")
	}
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func newRoomCode() string {
	buf := make([]byte, roomCodeLength)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand never fails on supported platforms
	}
	for i, b := range buf {
		buf[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
	}
	return string(buf)
}
