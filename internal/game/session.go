package game

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Phase is the session-level game phase.
type Phase uint8

const (
	PhaseLobby Phase = iota
	PhaseInitialPeek
	PhasePlaying
	PhaseReactionWindow
	PhaseFinalRound
	PhaseScoring
	PhaseGameOver
)

// String returns the wire name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseInitialPeek:
		return "initialPeek"
	case PhasePlaying:
		return "playing"
	case PhaseReactionWindow:
		return "reactionWindow"
	case PhaseFinalRound:
		return "finalRound"
	case PhaseScoring:
		return "scoring"
	case PhaseGameOver:
		return "gameOver"
	}
	return "unknown"
}

// TurnPhase is the within-turn phase, meaningful while the session phase is
// playing or finalRound.
type TurnPhase uint8

const (
	TurnWaiting TurnPhase = iota
	// TurnDrawing is part of the legacy vocabulary for a manual
	// draw-source choice; turn-start auto-draw transitions straight to
	// TurnDeciding, so this phase is never entered. See DESIGN.md.
	TurnDrawing
	TurnDeciding
	TurnUsingAbility
	TurnSelectingTarget
)

// String returns the wire name of the turn phase.
func (t TurnPhase) String() string {
	switch t {
	case TurnWaiting:
		return "waiting"
	case TurnDrawing:
		return "drawing"
	case TurnDeciding:
		return "deciding"
	case TurnUsingAbility:
		return "usingAbility"
	case TurnSelectingTarget:
		return "selectingTarget"
	}
	return "unknown"
}

// Config holds the tunable session rules.
type Config struct {
	MinPlayers       int
	MaxPlayers       int
	HandSize         int
	PenaltyDrawCount int

	// ReactionWindow is the duration of the timed matching contest that
	// follows every discard.
	ReactionWindow time.Duration

	// TurnTimer bounds each decision; 0 disables the timer.
	TurnTimer time.Duration

	// InitialPeekTimeout force-confirms stragglers after the deal; 0
	// disables it.
	InitialPeekTimeout time.Duration

	// Seed drives the deck shuffle and turn-order permutation; 0 picks an
	// arbitrary seed.
	Seed uint64
}

// DefaultConfig returns the standard Cabo rules.
func DefaultConfig() Config {
	return Config{
		MinPlayers:         2,
		MaxPlayers:         4,
		HandSize:           4,
		PenaltyDrawCount:   1,
		ReactionWindow:     5 * time.Second,
		TurnTimer:          15 * time.Second,
		InitialPeekTimeout: 10 * time.Second,
	}
}

// AbilityEntry is one queued ability-usage entitlement.
type AbilityEntry struct {
	PlayerID uuid.UUID
	Ability  Ability
}

// reactionState tracks an open reaction window.
type reactionState struct {
	Active         bool
	DiscarderID    uuid.UUID
	PendingAbility Ability
	ReturnPhase    Phase
	// Accepted holds reactors whose match was accepted, in acceptance
	// order, each with the ability of the card they matched with. With
	// first-valid-wins this holds at most one entry.
	Accepted []AbilityEntry
}

type timerKind uint8

const (
	timerNone timerKind = iota
	timerTurn
	timerReaction
	timerInitialPeek
)

// ActionRecord is one entry of the per-session action history, published
// fire-and-forget to the history sink when one is wired.
type ActionRecord struct {
	SessionCode string                 `json:"sessionCode"`
	ActionIndex int                    `json:"actionIndex"`
	ActorID     uuid.UUID              `json:"actorId"`
	ActionType  string                 `json:"actionType"`
	Payload     map[string]interface{} `json:"payload"`
	Timestamp   int64                  `json:"timestamp"`
}

// GameResult is the final outcome of a session.
type GameResult struct {
	Code              string
	Scores            map[uuid.UUID]int
	Winners           []uuid.UUID
	WinnerID          uuid.UUID
	CaboCallerID      uuid.UUID
	WasCaboSuccessful bool
}

// Session is the complete authoritative state for one room. All fields are
// guarded by mu; exported methods take the lock, unexported helpers assume
// it is held.
type Session struct {
	Code   string
	HostID uuid.UUID

	Players            []*Player
	TurnOrder          []uuid.UUID
	CurrentPlayerIndex int

	Phase     Phase
	TurnPhase TurnPhase

	Deck        *Deck
	DiscardPile []Card // ordered, top = last

	// DrawnCard is the ephemeral auto-drawn card, visible only to the
	// current player.
	DrawnCard *Card

	CaboCallerID   uuid.UUID
	FinalTurnTaken map[uuid.UUID]bool

	// Pending is the in-flight ability entitlement; AbilityQueue holds the
	// remaining entitled players and is non-empty only while Pending
	// processing is in flight.
	Pending      *AbilityEntry
	AbilityQueue []AbilityEntry

	Reaction         reactionState
	ReactionDeadline time.Time
	TurnDeadline     time.Time

	Rules Config

	mu          sync.Mutex
	timer       *time.Timer
	timerEpoch  uint64
	activeTimer timerKind
	actionIndex int

	log *logrus.Entry

	// Communication callbacks, owned by the transport layer.
	BroadcastFn         func(ev GameEvent)
	BroadcastToPlayerFn func(playerID uuid.UUID, ev GameEvent)

	// ActionLogFn receives the action history stream (optional).
	ActionLogFn func(rec ActionRecord)

	// OnGameEnd fires once when the session reaches gameOver.
	OnGameEnd func(result GameResult)

	// OnEmpty fires when the last seat empties so the registry can drop
	// the session.
	OnEmpty func(code string)
}

// NewSession creates a lobby-phase session with the given room code.
func NewSession(code string, rules Config) *Session {
	seed := rules.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Session{
		Code:           code,
		Phase:          PhaseLobby,
		TurnPhase:      TurnWaiting,
		Deck:           NewDeck(seed),
		FinalTurnTaken: make(map[uuid.UUID]bool),
		Rules:          rules,
		log:            logrus.WithField("session", code),
	}
}

// Lock and Unlock expose the session mutex for callers that need to read a
// consistent snapshot (e.g. building views for a just-connected player).
func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// AddPlayer seats a new player while the session is in the lobby.
func (s *Session) AddPlayer(name string, host bool) (*Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Phase != PhaseLobby {
		return nil, ErrGameAlreadyStarted
	}
	if len(s.Players) >= s.Rules.MaxPlayers {
		return nil, ErrRoomFull
	}
	p := NewPlayer(name, host)
	s.Players = append(s.Players, p)
	if host {
		s.HostID = p.ID
	}
	s.log.WithFields(logrus.Fields{"player": p.ID, "name": name}).Info("player joined")
	s.logAction(p.ID, string(EventPlayerJoined), map[string]interface{}{"name": name})
	s.fireEvent(GameEvent{Type: EventPlayerJoined, Actor: &p.ID, Payload: map[string]interface{}{"name": name}})
	s.broadcastState()
	return p, nil
}

// RemovePlayer handles a voluntary leave or a disconnect. In the lobby the
// seat is removed outright; mid-game the seat is kept as a disconnected
// placeholder so hands and turn order stay intact.
func (s *Session) RemovePlayer(playerID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.playerByID(playerID)
	if p == nil {
		return
	}

	if s.Phase == PhaseLobby {
		for i, seat := range s.Players {
			if seat.ID == playerID {
				s.Players = append(s.Players[:i], s.Players[i+1:]...)
				break
			}
		}
		s.log.WithField("player", playerID).Info("player left lobby")
		s.logAction(playerID, string(EventPlayerLeft), nil)
		s.fireEvent(GameEvent{Type: EventPlayerLeft, Actor: &p.ID})
		if len(s.Players) == 0 {
			s.teardown()
			return
		}
		if p.IsHost {
			// Promote the oldest remaining seat.
			s.Players[0].IsHost = true
			s.HostID = s.Players[0].ID
		}
		s.broadcastState()
		return
	}

	if p.Status == StatusDisconnected {
		return
	}
	p.Status = StatusDisconnected
	s.log.WithField("player", playerID).Info("player disconnected")
	s.logAction(playerID, string(EventPlayerDisconnected), nil)
	s.fireEvent(GameEvent{Type: EventPlayerDisconnected, Actor: &p.ID})

	if s.connectedCount() == 0 {
		s.teardown()
		return
	}

	switch s.Phase {
	case PhaseInitialPeek:
		// The departed seat may have been the last unconfirmed one.
		if s.allConnectedReady() {
			s.beginPlaying()
		}
	case PhasePlaying, PhaseFinalRound:
		// The acting player left mid-decision: resolve their step as a
		// timeout would and move on.
		if s.actingPlayerID() == playerID {
			s.resolveDecisionTimeout()
		}
	}
	s.broadcastState()
}

// Reconnect marks a disconnected seat as playing again.
func (s *Session) Reconnect(playerID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.playerByID(playerID)
	if p == nil || p.Status != StatusDisconnected {
		return false
	}
	p.Status = StatusPlaying
	s.log.WithField("player", playerID).Info("player reconnected")
	s.broadcastState()
	return true
}

// teardown cancels timers and notifies the registry that the session is
// finished. Assumes lock is held.
func (s *Session) teardown() {
	s.cancelTimer()
	if s.OnEmpty != nil {
		s.OnEmpty(s.Code)
	}
}

// playerByID returns the seat for the given player, or nil.
// Assumes lock is held.
func (s *Session) playerByID(id uuid.UUID) *Player {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// allConnectedReady reports whether every connected seat has confirmed the
// initial peek. Assumes lock is held.
func (s *Session) allConnectedReady() bool {
	for _, p := range s.Players {
		if p.Status != StatusDisconnected && !p.ReadyToPlay {
			return false
		}
	}
	return true
}

func (s *Session) connectedCount() int {
	n := 0
	for _, p := range s.Players {
		if p.Status != StatusDisconnected {
			n++
		}
	}
	return n
}

// currentPlayerID returns the turn owner.
// Assumes lock is held.
func (s *Session) currentPlayerID() uuid.UUID {
	if len(s.TurnOrder) == 0 {
		return uuid.Nil
	}
	return s.TurnOrder[s.CurrentPlayerIndex]
}

// actingPlayerID returns the player who must act next: the in-flight
// ability holder takes priority over the turn owner.
// Assumes lock is held.
func (s *Session) actingPlayerID() uuid.UUID {
	if s.Pending != nil {
		return s.Pending.PlayerID
	}
	return s.currentPlayerID()
}

// ---------------------------------------------------------------------------
// Timers
// ---------------------------------------------------------------------------

// scheduleTimer arms the session's single timer slot. Arming a new timer
// supersedes any outstanding one: at most one reaction timer and at most one
// turn timer are pending per session, and they are mutually exclusive. A
// late-firing stale callback checks the epoch and no-ops.
// Assumes lock is held.
func (s *Session) scheduleTimer(kind timerKind, d time.Duration) {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerEpoch++
	s.activeTimer = timerNone
	if d <= 0 {
		return
	}
	s.activeTimer = kind
	epoch := s.timerEpoch
	s.timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if epoch != s.timerEpoch {
			return // superseded
		}
		s.activeTimer = timerNone
		switch kind {
		case timerTurn:
			s.handleTurnTimeout()
		case timerReaction:
			s.handleReactionExpiry()
		case timerInitialPeek:
			s.handleInitialPeekTimeout()
		}
		s.broadcastState()
	})
}

// cancelTimer invalidates any outstanding timer.
// Assumes lock is held.
func (s *Session) cancelTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerEpoch++
	s.activeTimer = timerNone
}

// scheduleDecisionTimer arms the turn timer for the acting player's current
// decision. Assumes lock is held.
func (s *Session) scheduleDecisionTimer() {
	s.TurnDeadline = time.Now().Add(s.Rules.TurnTimer)
	s.scheduleTimer(timerTurn, s.Rules.TurnTimer)
}

// handleTurnTimeout resolves the acting player's pending decision as if no
// action had been taken. Assumes lock is held.
func (s *Session) handleTurnTimeout() {
	if s.Phase != PhasePlaying && s.Phase != PhaseFinalRound {
		return
	}
	actor := s.actingPlayerID()
	s.log.WithField("player", actor).Info("turn timed out")
	s.logAction(actor, "player_timeout", nil)
	s.resolveDecisionTimeout()
}

// resolveDecisionTimeout applies the implicit pass for the current
// decision: a held drawn card is discarded, an ability step is skipped.
// Assumes lock is held.
func (s *Session) resolveDecisionTimeout() {
	switch s.TurnPhase {
	case TurnUsingAbility, TurnSelectingTarget:
		s.finishAbilityStep()
	case TurnDeciding:
		if s.DrawnCard != nil {
			s.discardDrawn(s.currentPlayerID())
		} else {
			s.advanceTurn()
		}
	default:
		s.advanceTurn()
	}
}

// handleInitialPeekTimeout force-confirms any player who has not finished
// the initial peek. Assumes lock is held.
func (s *Session) handleInitialPeekTimeout() {
	if s.Phase != PhaseInitialPeek {
		return
	}
	for _, p := range s.Players {
		p.ReadyToPlay = true
	}
	s.log.Info("initial peek timed out, starting play")
	s.beginPlaying()
}

// ---------------------------------------------------------------------------
// Game start and turn flow
// ---------------------------------------------------------------------------

// startGame deals the opening hands and enters the initial peek phase.
// Assumes lock is held; validation happens in HandleAction.
func (s *Session) startGame() {
	s.Deck.Shuffle()
	for _, p := range s.Players {
		p.Status = StatusPlaying
		p.Hand = make([]HandSlot, 0, s.Rules.HandSize)
		for i := 0; i < s.Rules.HandSize; i++ {
			card, ok := s.Deck.Draw()
			if !ok {
				break
			}
			p.AppendCard(card)
		}
		// The bottom two positions are auto-known to their owner.
		for pos := s.Rules.HandSize - 2; pos < s.Rules.HandSize; pos++ {
			if pos >= 0 && pos < len(p.Hand) {
				p.PeekedPositions[pos] = true
			}
		}
	}
	s.Phase = PhaseInitialPeek
	s.log.WithField("players", len(s.Players)).Info("game started")
	s.logAction(uuid.Nil, string(EventGameStarted), nil)
	s.fireEvent(GameEvent{Type: EventGameStarted})

	// Privately reveal the auto-peeked cards.
	for _, p := range s.Players {
		ev := GameEvent{Type: EventPrivateInitialPeek}
		if slot, ok := p.SlotAt(s.Rules.HandSize - 2); ok {
			ev.Card1 = eventCardAt(slot.Card, slot.Position, p.ID)
		}
		if slot, ok := p.SlotAt(s.Rules.HandSize - 1); ok {
			ev.Card2 = eventCardAt(slot.Card, slot.Position, p.ID)
		}
		s.fireEventToPlayer(p.ID, ev)
	}

	s.scheduleTimer(timerInitialPeek, s.Rules.InitialPeekTimeout)
	s.broadcastState()
}

// beginPlaying fixes the turn order and starts the first turn.
// Assumes lock is held.
func (s *Session) beginPlaying() {
	s.TurnOrder = make([]uuid.UUID, len(s.Players))
	for i, p := range s.Players {
		s.TurnOrder[i] = p.ID
	}
	// Random permutation, fixed for the rest of the game.
	for i := len(s.TurnOrder) - 1; i > 0; i-- {
		j := s.Deck.rng.IntN(i + 1)
		s.TurnOrder[i], s.TurnOrder[j] = s.TurnOrder[j], s.TurnOrder[i]
	}
	s.CurrentPlayerIndex = 0
	s.Phase = PhasePlaying
	s.startTurn()
}

// startTurn begins the turn of TurnOrder[CurrentPlayerIndex]: auto-draw a
// card and hand the decision to the player. Assumes lock is held.
func (s *Session) startTurn() {
	current := s.currentPlayerID()
	s.TurnPhase = TurnDeciding
	s.DrawnCard = nil

	if card, ok := s.drawWithReshuffle(); ok {
		s.DrawnCard = &card
		s.fireEvent(GameEvent{
			Type:    EventPlayerDraw,
			Actor:   &s.TurnOrder[s.CurrentPlayerIndex],
			Payload: map[string]interface{}{"drawPileSize": s.Deck.Len()},
		})
		s.fireEventToPlayer(current, GameEvent{Type: EventPrivateDraw, Card: eventCard(card)})
	} else {
		// Both piles exhausted: proceed without a drawn card.
		s.log.Warn("no card available at turn start")
	}

	s.scheduleDecisionTimer()
	deadline := s.TurnDeadline
	s.fireEvent(GameEvent{Type: EventPlayerTurn, Actor: &s.TurnOrder[s.CurrentPlayerIndex], Deadline: &deadline})
	s.logAction(current, string(EventPlayerTurn), nil)
	s.broadcastState()
}

// drawWithReshuffle draws from the draw pile, recycling the discard pile
// (keeping its top card aside) when the draw pile is empty.
// Assumes lock is held.
func (s *Session) drawWithReshuffle() (Card, bool) {
	if s.Deck.Len() == 0 && len(s.DiscardPile) > 1 {
		top := s.DiscardPile[len(s.DiscardPile)-1]
		s.Deck.Refill(s.DiscardPile[:len(s.DiscardPile)-1])
		s.DiscardPile = []Card{top}
		s.fireEvent(GameEvent{Type: EventDeckReshuffled, Payload: map[string]interface{}{"drawPileSize": s.Deck.Len()}})
		s.logAction(uuid.Nil, string(EventDeckReshuffled), nil)
	}
	return s.Deck.Draw()
}

// advanceTurn ends the current turn and selects the next turn holder,
// skipping disconnected players. In the final round, players who have
// already taken their final turn are skipped, a skipped disconnected seat
// counts as done, and the round ends once every playing seat is done.
// Assumes lock is held.
func (s *Session) advanceTurn() {
	if s.Phase == PhaseGameOver || s.Phase == PhaseScoring {
		return
	}
	outgoing := s.currentPlayerID()
	if s.Phase == PhaseFinalRound && outgoing != uuid.Nil {
		s.FinalTurnTaken[outgoing] = true
	}

	s.TurnPhase = TurnWaiting
	s.DrawnCard = nil

	if s.Phase == PhaseFinalRound && s.allFinalTurnsTaken() {
		s.finishGame()
		return
	}

	n := len(s.TurnOrder)
	for step := 1; step <= n; step++ {
		idx := (s.CurrentPlayerIndex + step) % n
		p := s.playerByID(s.TurnOrder[idx])
		if p == nil {
			continue
		}
		if p.Status == StatusDisconnected {
			if s.Phase == PhaseFinalRound {
				s.FinalTurnTaken[p.ID] = true
			}
			continue
		}
		if s.Phase == PhaseFinalRound && s.FinalTurnTaken[p.ID] {
			continue
		}
		s.CurrentPlayerIndex = idx
		s.startTurn()
		return
	}

	// Nobody is eligible to act: settle the game with what we have.
	s.finishGame()
}

func (s *Session) allFinalTurnsTaken() bool {
	for _, p := range s.Players {
		if p.Status == StatusPlaying && !s.FinalTurnTaken[p.ID] {
			return false
		}
	}
	return true
}

// logAction publishes one entry of the action history to the configured
// sink. Assumes lock is held.
func (s *Session) logAction(actorID uuid.UUID, actionType string, payload map[string]interface{}) {
	s.actionIndex++
	if s.ActionLogFn == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	s.ActionLogFn(ActionRecord{
		SessionCode: s.Code,
		ActionIndex: s.actionIndex,
		ActorID:     actorID,
		ActionType:  actionType,
		Payload:     payload,
		Timestamp:   time.Now().UnixMilli(),
	})
}
