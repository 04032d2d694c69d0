package game

import (
	"time"

	"github.com/google/uuid"
)

// GameEventType represents the type of a game event delivered to clients.
type GameEventType string

// Event types. "Private" events go to a single player and may carry card
// values; public events never reveal hidden cards.
const (
	EventPlayerJoined       GameEventType = "player_joined"
	EventPlayerReady        GameEventType = "player_ready"
	EventPlayerLeft         GameEventType = "player_left"
	EventPlayerDisconnected GameEventType = "player_disconnected"
	EventGameStarted        GameEventType = "game_started"
	EventPrivateInitialPeek GameEventType = "private_initial_peek"
	EventPlayerTurn         GameEventType = "player_turn"
	EventPlayerDraw         GameEventType = "player_draw"
	EventPrivateDraw        GameEventType = "private_draw"
	EventDeckReshuffled     GameEventType = "deck_reshuffled"
	EventPlayerDiscard      GameEventType = "player_discard"
	EventReactionOpen       GameEventType = "reaction_open"
	EventReactionSuccess    GameEventType = "reaction_success"
	EventReactionFail       GameEventType = "reaction_fail"
	EventReactionPenalty    GameEventType = "reaction_penalty"
	EventPrivatePenalty     GameEventType = "private_penalty"
	EventAbilityPrompt      GameEventType = "ability_prompt"
	EventPlayerPeek         GameEventType = "player_peek"
	EventPrivatePeek        GameEventType = "private_peek"
	EventPlayerSwap         GameEventType = "player_swap"
	EventPlayerCabo         GameEventType = "player_cabo"
	EventGameEnd            GameEventType = "game_end"
	EventStateSync          GameEventType = "state_sync"
)

// EventCard identifies a card within an event payload. Suit/Rank are filled
// only when the recipient is entitled to see them.
type EventCard struct {
	Suit     string     `json:"suit,omitempty"`
	Rank     string     `json:"rank,omitempty"`
	Value    int        `json:"value,omitempty"`
	Position *int       `json:"position,omitempty"`
	Owner    *uuid.UUID `json:"owner,omitempty"`
}

// GameEvent is the standard structure for point-event notifications. It
// carries enough identifying information for a consumer to render feedback,
// never the hidden card values of uninvolved players.
type GameEvent struct {
	Type    GameEventType `json:"type"`
	Actor   *uuid.UUID    `json:"actor,omitempty"`
	Target  *uuid.UUID    `json:"target,omitempty"`
	Card    *EventCard    `json:"card,omitempty"`
	Card1   *EventCard    `json:"card1,omitempty"`
	Card2   *EventCard    `json:"card2,omitempty"`
	Ability string        `json:"ability,omitempty"`

	// Deadline is an absolute timestamp; clients compute remaining time
	// against their own clock.
	Deadline *time.Time `json:"deadline,omitempty"`

	Payload map[string]interface{} `json:"payload,omitempty"`

	// State carries the per-viewer sanitized snapshot on sync events.
	State *ViewerState `json:"state,omitempty"`
}

func eventCard(c Card) *EventCard {
	return &EventCard{Suit: c.Suit.String(), Rank: c.Rank.String(), Value: c.Score()}
}

func eventCardAt(c Card, pos int, owner uuid.UUID) *EventCard {
	ec := eventCard(c)
	ec.Position = &pos
	ec.Owner = &owner
	return ec
}

// hiddenCardAt identifies a slot without revealing its card.
func hiddenCardAt(pos int, owner uuid.UUID) *EventCard {
	return &EventCard{Position: &pos, Owner: &owner}
}

// fireEvent broadcasts an event to all seated players.
// Assumes lock is held by caller.
func (s *Session) fireEvent(ev GameEvent) {
	if s.BroadcastFn != nil {
		s.BroadcastFn(ev)
	}
}

// fireEventToPlayer sends an event to a single player.
// Assumes lock is held by caller.
func (s *Session) fireEventToPlayer(playerID uuid.UUID, ev GameEvent) {
	if s.BroadcastToPlayerFn != nil {
		s.BroadcastToPlayerFn(playerID, ev)
	}
}

// broadcastState sends every seated player a freshly sanitized snapshot.
// Assumes lock is held by caller.
func (s *Session) broadcastState() {
	if s.BroadcastToPlayerFn == nil {
		return
	}
	for _, p := range s.Players {
		if p.Status == StatusDisconnected {
			continue
		}
		view := BuildViewerState(s, p.ID)
		s.BroadcastToPlayerFn(p.ID, GameEvent{Type: EventStateSync, State: &view})
	}
}
