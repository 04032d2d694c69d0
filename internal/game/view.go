package game

import (
	"time"

	"github.com/google/uuid"
)

// ViewCard is one hand slot as seen by a specific viewer. Suit, rank and
// value are filled only when Known is true.
type ViewCard struct {
	Position int    `json:"position"`
	Known    bool   `json:"known"`
	Suit     string `json:"suit,omitempty"`
	Rank     string `json:"rank,omitempty"`
	Value    int    `json:"value,omitempty"`
}

// ViewPlayer is one seat as seen by a specific viewer.
type ViewPlayer struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	IsHost        bool       `json:"isHost"`
	Status        string     `json:"status"`
	HandSize      int        `json:"handSize"`
	Hand          []ViewCard `json:"hand"`
	HasCalledCabo bool       `json:"hasCalledCabo"`
	IsCurrent     bool       `json:"isCurrent"`
}

// ViewerState is the sanitized per-viewer snapshot of a session. It is safe
// to serialize directly to the viewer: hidden information belonging to
// other players never appears in it.
type ViewerState struct {
	SessionCode string    `json:"sessionCode"`
	ViewerID    uuid.UUID `json:"viewerId"`
	Phase       string    `json:"phase"`
	TurnPhase   string    `json:"turnPhase"`

	CurrentPlayerID uuid.UUID    `json:"currentPlayerId,omitempty"`
	Players         []ViewPlayer `json:"players"`

	// DrawnCard is set only when the viewer is the player holding it.
	DrawnCard *ViewCard `json:"drawnCard,omitempty"`

	DrawPileSize int        `json:"drawPileSize"`
	DiscardPile  []ViewCard `json:"discardPile"`

	CaboCallerID uuid.UUID `json:"caboCallerId,omitempty"`

	// PendingPlayerID and PendingAbility identify the in-flight ability
	// entitlement, when one exists.
	PendingPlayerID uuid.UUID `json:"pendingPlayerId,omitempty"`
	PendingAbility  string    `json:"pendingAbility,omitempty"`

	// Deadlines are absolute timestamps; clients compute remaining time
	// against their own clock.
	TurnDeadline     *time.Time `json:"turnDeadline,omitempty"`
	ReactionDeadline *time.Time `json:"reactionDeadline,omitempty"`
}

// knownCard renders a fully visible card.
func knownCard(c Card, pos int) ViewCard {
	return ViewCard{
		Position: pos,
		Known:    true,
		Suit:     c.Suit.String(),
		Rank:     c.Rank.String(),
		Value:    c.Score(),
	}
}

// BuildViewerState projects the session onto what viewerID may see: the
// viewer's own peeked cards and any face-up cards are revealed, everything
// else is position-and-count only. The discard pile is public knowledge and
// always fully visible. Assumes lock is held by caller.
func BuildViewerState(s *Session, viewerID uuid.UUID) ViewerState {
	current := s.currentPlayerID()

	view := ViewerState{
		SessionCode:     s.Code,
		ViewerID:        viewerID,
		Phase:           s.Phase.String(),
		TurnPhase:       s.TurnPhase.String(),
		CurrentPlayerID: current,
		DrawPileSize:    s.Deck.Len(),
		CaboCallerID:    s.CaboCallerID,
	}

	view.DiscardPile = make([]ViewCard, len(s.DiscardPile))
	for i, c := range s.DiscardPile {
		view.DiscardPile[i] = knownCard(c, i)
	}

	if s.Pending != nil {
		view.PendingPlayerID = s.Pending.PlayerID
		view.PendingAbility = s.Pending.Ability.String()
	}

	if s.DrawnCard != nil && viewerID == current {
		vc := knownCard(*s.DrawnCard, 0)
		view.DrawnCard = &vc
	}

	if !s.TurnDeadline.IsZero() && (s.Phase == PhasePlaying || s.Phase == PhaseFinalRound) {
		d := s.TurnDeadline
		view.TurnDeadline = &d
	}
	if !s.ReactionDeadline.IsZero() && s.Phase == PhaseReactionWindow {
		d := s.ReactionDeadline
		view.ReactionDeadline = &d
	}

	view.Players = make([]ViewPlayer, len(s.Players))
	for i, p := range s.Players {
		vp := ViewPlayer{
			ID:            p.ID,
			Name:          p.Name,
			IsHost:        p.IsHost,
			Status:        p.Status.String(),
			HandSize:      len(p.Hand),
			HasCalledCabo: p.HasCalledCabo,
			IsCurrent:     p.ID == current,
		}
		vp.Hand = make([]ViewCard, len(p.Hand))
		for j, slot := range p.Hand {
			visible := slot.FaceUp || (p.ID == viewerID && p.PeekedPositions[j])
			if visible {
				vp.Hand[j] = knownCard(slot.Card, j)
			} else {
				vp.Hand[j] = ViewCard{Position: j}
			}
		}
		view.Players[i] = vp
	}
	return view
}
