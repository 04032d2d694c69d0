package game

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// openReactionWindow starts the timed matching contest that follows every
// settled discard. discarderAbility is the ability the discarder earned by
// the discard (AbilityNone when a hand card was discarded via replace).
// Ability resolution is deferred until the window closes.
// Assumes lock is held.
func (s *Session) openReactionWindow(discarderID uuid.UUID, discarderAbility Ability) {
	s.Reaction = reactionState{
		Active:         true,
		DiscarderID:    discarderID,
		PendingAbility: discarderAbility,
		ReturnPhase:    s.Phase,
	}
	s.Phase = PhaseReactionWindow
	s.ReactionDeadline = time.Now().Add(s.Rules.ReactionWindow)
	s.scheduleTimer(timerReaction, s.Rules.ReactionWindow)

	deadline := s.ReactionDeadline
	s.fireEvent(GameEvent{Type: EventReactionOpen, Actor: &discarderID, Deadline: &deadline})
	s.broadcastState()
}

// handleReactWithCard resolves one reaction attempt. A matching rank wins
// the contest and closes the window; a wrong rank costs the reactor a blind
// penalty card and leaves the window open. Assumes lock is held.
func (s *Session) handleReactWithCard(actor *Player, a ReactWithCard) Outcome {
	if s.Phase != PhaseReactionWindow || !s.Reaction.Active {
		return reactionRejected(ErrReactionWindowClosed)
	}
	if actor.Status == StatusDisconnected {
		return reactionRejected(ErrInvalidPlayer)
	}
	slot, ok := actor.SlotAt(a.Position)
	if !ok {
		// Out-of-range attempts are rejected without a penalty.
		return reactionRejected(ErrInvalidCardPosition)
	}
	if len(s.DiscardPile) == 0 {
		return reactionRejected(ErrReactionWindowClosed)
	}

	top := s.DiscardPile[len(s.DiscardPile)-1]
	if slot.Card.Rank != top.Rank {
		s.applyReactionPenalty(actor, a.Position)
		return reactionRejected(ErrCardDoesNotMatch)
	}

	matched := actor.RemoveCardAt(a.Position)
	s.DiscardPile = append(s.DiscardPile, matched)
	s.Reaction.Accepted = append(s.Reaction.Accepted, AbilityEntry{
		PlayerID: actor.ID,
		Ability:  matched.Ability(),
	})

	s.log.WithFields(logrus.Fields{"player": actor.ID, "rank": matched.Rank.String()}).Info("reaction matched")
	s.fireEvent(GameEvent{
		Type:  EventReactionSuccess,
		Actor: &actor.ID,
		Card:  eventCard(matched),
	})

	// First valid match wins the contest outright.
	s.closeReactionWindow()
	return reactionAccepted()
}

// applyReactionPenalty charges a failed reactor with blind penalty cards.
// The attempted card stays in the hand and is not revealed.
// Assumes lock is held.
func (s *Session) applyReactionPenalty(actor *Player, attemptedPos int) {
	s.fireEvent(GameEvent{
		Type:  EventReactionFail,
		Actor: &actor.ID,
		Card:  hiddenCardAt(attemptedPos, actor.ID),
	})
	for i := 0; i < s.Rules.PenaltyDrawCount; i++ {
		card, ok := s.drawWithReshuffle()
		if !ok {
			s.log.Warn("no card available for reaction penalty")
			break
		}
		pos := actor.AppendCard(card)
		s.fireEvent(GameEvent{
			Type:  EventReactionPenalty,
			Actor: &actor.ID,
			Card:  hiddenCardAt(pos, actor.ID),
		})
		s.fireEventToPlayer(actor.ID, GameEvent{
			Type: EventPrivatePenalty,
			Card: hiddenCardAt(pos, actor.ID),
		})
	}
	s.logAction(actor.ID, string(EventReactionPenalty), map[string]interface{}{"position": attemptedPos})
	s.broadcastState()
}

// handleReactionExpiry fires when the window elapses with no winner.
// Assumes lock is held.
func (s *Session) handleReactionExpiry() {
	if s.Phase != PhaseReactionWindow || !s.Reaction.Active {
		return
	}
	s.closeReactionWindow()
}

// closeReactionWindow ends the contest and restores the pre-window phase.
// With a pending ability the deferred queue takes over; without one, a
// winning reactor who is not the turn owner earns a reward turn.
// Assumes lock is held.
func (s *Session) closeReactionWindow() {
	s.cancelTimer()
	s.Phase = s.Reaction.ReturnPhase
	s.ReactionDeadline = time.Time{}

	st := s.Reaction
	s.Reaction = reactionState{}

	s.AbilityQueue = buildAbilityQueue(
		st.DiscarderID,
		st.PendingAbility,
		st.Accepted,
		s.TurnOrder,
		s.CurrentPlayerIndex,
	)
	if len(s.AbilityQueue) > 0 {
		s.processNextAbility()
		return
	}

	if len(st.Accepted) > 0 {
		reactor := st.Accepted[len(st.Accepted)-1].PlayerID
		if reactor != s.currentPlayerID() {
			s.grantRewardTurn(reactor)
			return
		}
	}
	s.advanceTurn()
}

// grantRewardTurn hands the turn to a winning reactor. The interrupted
// player's turn is over, which in the final round counts as their final
// turn. Assumes lock is held.
func (s *Session) grantRewardTurn(reactorID uuid.UUID) {
	if s.Phase == PhaseFinalRound {
		s.FinalTurnTaken[s.currentPlayerID()] = true
	}
	for i, id := range s.TurnOrder {
		if id == reactorID {
			s.log.WithField("player", reactorID).Info("reward turn granted")
			s.CurrentPlayerIndex = i
			s.DrawnCard = nil
			s.startTurn()
			return
		}
	}
	s.advanceTurn()
}

// buildAbilityQueue orders the deferred ability entitlements after a
// reaction window: the original discarder goes first, then accepted
// reactors by ascending clockwise distance from the current turn holder,
// ties broken by acceptance order. Entries without an ability are dropped.
func buildAbilityQueue(discarderID uuid.UUID, discarderAbility Ability, accepted []AbilityEntry, turnOrder []uuid.UUID, currentIndex int) []AbilityEntry {
	queue := make([]AbilityEntry, 0, len(accepted)+1)
	if discarderAbility != AbilityNone {
		queue = append(queue, AbilityEntry{PlayerID: discarderID, Ability: discarderAbility})
	}

	reactors := make([]AbilityEntry, 0, len(accepted))
	for _, e := range accepted {
		if e.Ability != AbilityNone {
			reactors = append(reactors, e)
		}
	}
	dist := func(id uuid.UUID) int {
		n := len(turnOrder)
		for i, oid := range turnOrder {
			if oid == id {
				return (i - currentIndex + n) % n
			}
		}
		return n
	}
	sort.SliceStable(reactors, func(i, j int) bool {
		return dist(reactors[i].PlayerID) < dist(reactors[j].PlayerID)
	})
	return append(queue, reactors...)
}

// processNextAbility pops the next entitled player off the ability queue
// and prompts them; when the queue is empty the turn advances. Disconnected
// holders are skipped. Assumes lock is held.
func (s *Session) processNextAbility() {
	for len(s.AbilityQueue) > 0 {
		entry := s.AbilityQueue[0]
		s.AbilityQueue = s.AbilityQueue[1:]

		p := s.playerByID(entry.PlayerID)
		if p == nil || p.Status == StatusDisconnected {
			continue
		}

		s.Pending = &AbilityEntry{PlayerID: entry.PlayerID, Ability: entry.Ability}
		s.TurnPhase = TurnUsingAbility
		s.scheduleDecisionTimer()

		deadline := s.TurnDeadline
		s.fireEvent(GameEvent{
			Type:     EventAbilityPrompt,
			Actor:    &entry.PlayerID,
			Ability:  entry.Ability.String(),
			Deadline: &deadline,
		})
		s.broadcastState()
		return
	}

	s.Pending = nil
	s.advanceTurn()
	s.broadcastState()
}

// finishAbilityStep clears the in-flight entitlement and moves on.
// Assumes lock is held.
func (s *Session) finishAbilityStep() {
	s.Pending = nil
	s.cancelTimer()
	s.processNextAbility()
}
