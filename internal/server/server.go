package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lizeren/Cabo/internal/auth"
	"github.com/lizeren/Cabo/internal/cache"
	"github.com/lizeren/Cabo/internal/config"
	"github.com/lizeren/Cabo/internal/database"
	"github.com/lizeren/Cabo/internal/game"
)

// Server wires the HTTP surface to the game registry and the optional
// persistence backends.
type Server struct {
	cfg      config.Config
	registry *game.Registry
	db       *database.DB
	cache    *cache.Cache
	tokens   *auth.Tokens
	router   chi.Router
	log      *logrus.Entry

	mu    sync.Mutex
	rooms map[string]*room
}

// New builds the server. db and cache may be nil.
func New(cfg config.Config, registry *game.Registry, db *database.DB, c *cache.Cache) *Server {
	s := &Server{
		cfg:      cfg,
		registry: registry,
		db:       db,
		cache:    c,
		tokens:   auth.NewTokens(cfg.JWTSecret, cfg.JWTLifetime),
		log:      logrus.WithField("component", "server"),
		rooms:    make(map[string]*room),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/guest", s.handleGuest)
		r.Post("/rooms", s.handleCreateRoom)
		r.Get("/rooms/{code}", s.handleGetRoom)
	})
	r.Get("/ws/{code}", s.handleWebsocket)
	r.Get("/healthz", s.handleHealth)

	s.router = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

type credentialsRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token  string    `json:"token"`
	UserID uuid.UUID `json:"userId"`
	Name   string    `json:"name"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "badRequest", "name and password are required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to hash password")
		return
	}
	user, err := s.db.CreateUser(r.Context(), req.Name, hash)
	if err != nil {
		writeError(w, http.StatusConflict, "nameTaken", "that name is not available")
		return
	}

	s.issueToken(w, user.ID, user.Name)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "badRequest", "name and password are required")
		return
	}

	user, err := s.db.GetUserByName(r.Context(), req.Name)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalidCredentials", "wrong name or password")
		return
	}
	if err := auth.VerifyPassword(req.Password, user.PasswordHash); err != nil {
		writeError(w, http.StatusUnauthorized, "invalidCredentials", "wrong name or password")
		return
	}

	s.issueToken(w, user.ID, user.Name)
}

// handleGuest issues an ephemeral identity so a room can be joined without
// an account.
func (s *Server) handleGuest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "badRequest", "name is required")
		return
	}
	s.issueToken(w, uuid.New(), req.Name)
}

func (s *Server) issueToken(w http.ResponseWriter, userID uuid.UUID, name string) {
	token, err := s.tokens.Issue(userID, name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to sign token")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, UserID: userID, Name: name})
}

type roomResponse struct {
	Code    string `json:"code"`
	Phase   string `json:"phase"`
	Players int    `json:"players"`
	Max     int    `json:"maxPlayers"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	if _, err := s.authenticate(r); err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "a valid token is required")
		return
	}

	rules := game.DefaultConfig()
	rules.ReactionWindow = s.cfg.ReactionWindow
	rules.TurnTimer = s.cfg.TurnTimer
	rules.InitialPeekTimeout = s.cfg.InitialPeekTimeout

	session := s.registry.CreateRoom(rules)
	session.ActionLogFn = s.cache.PublishAction
	session.OnGameEnd = s.persistResult

	s.mu.Lock()
	s.rooms[session.Code] = newRoom(session)
	s.mu.Unlock()

	prevOnEmpty := session.OnEmpty
	session.OnEmpty = func(code string) {
		s.mu.Lock()
		delete(s.rooms, code)
		s.mu.Unlock()
		if prevOnEmpty != nil {
			prevOnEmpty(code)
		}
	}

	writeJSON(w, http.StatusCreated, s.describeRoom(session))
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	session, err := s.registry.Get(chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, http.StatusNotFound, "roomNotFound", "no room with that code exists")
		return
	}
	writeJSON(w, http.StatusOK, s.describeRoom(session))
}

func (s *Server) describeRoom(session *game.Session) roomResponse {
	session.Lock()
	defer session.Unlock()
	return roomResponse{
		Code:    session.Code,
		Phase:   session.Phase.String(),
		Players: len(session.Players),
		Max:     session.Rules.MaxPlayers,
	}
}

// persistResult stores a finished game, off the session's goroutine.
func (s *Server) persistResult(result game.GameResult) {
	scores := make(map[string]int, len(result.Scores))
	for id, score := range result.Scores {
		scores[id.String()] = score
	}
	row := database.GameResultRow{
		SessionCode:    result.Code,
		WinnerID:       result.WinnerID,
		CaboCallerID:   result.CaboCallerID,
		CaboSuccessful: result.WasCaboSuccessful,
		Scores:         scores,
	}
	go s.db.SaveGameResult(context.Background(), row)
}

// authenticate extracts the bearer token from the Authorization header or
// the token query parameter.
func (s *Server) authenticate(r *http.Request) (*auth.Claims, error) {
	token := r.URL.Query().Get("token")
	if h := r.Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
		token = h[7:]
	}
	if token == "" {
		return nil, errors.New("missing token")
	}
	return s.tokens.Verify(token)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	claims, err := s.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "a valid token is required")
		return
	}

	code := chi.URLParam(r, "code")
	s.mu.Lock()
	rm := s.rooms[code]
	s.mu.Unlock()
	if rm == nil {
		writeError(w, http.StatusNotFound, "roomNotFound", "no room with that code exists")
		return
	}

	// Upgrade before seating: a request that never becomes a socket must
	// not occupy a seat nobody will ever detach.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // origin policy is enforced upstream
	})
	if err != nil {
		s.log.WithError(err).Debug("websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	playerID, err := rm.join(claims.UserID, claims.Name)
	if err != nil {
		reason := "joinFailed"
		if gameErr, ok := err.(*game.GameError); ok {
			reason = gameErr.Code
		}
		conn.Close(websocket.StatusPolicyViolation, reason)
		return
	}

	s.log.WithFields(logrus.Fields{"session": code, "player": playerID}).Info("socket connected")
	rm.serve(r.Context(), newClient(playerID, conn))
	conn.Close(websocket.StatusNormalClosure, "bye")
}
