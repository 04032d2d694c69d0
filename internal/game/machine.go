package game

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// HandleAction is the single entry point for player actions. It validates
// the action against the current phase, applies it atomically, and returns
// the outcome. Invalid actions never mutate state.
func (s *Session) HandleAction(actorID uuid.UUID, act Action) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	actor := s.playerByID(actorID)
	if actor == nil {
		return failure(ErrInvalidPlayer)
	}

	s.log.WithFields(logrus.Fields{"player": actorID, "action": act.Kind()}).Debug("action received")

	var out Outcome
	switch a := act.(type) {
	case SetReady:
		out = s.handleSetReady(actor, a)
	case StartGame:
		out = s.handleStartGame(actor)
	case PeekInitialCard:
		out = s.handlePeekInitialCard(actor, a)
	case FinishInitialPeek:
		out = s.handleFinishInitialPeek(actor)
	case DrawFromDeck, DrawFromDiscard:
		// Turn-start auto-draw makes manual draws unreachable.
		out = failure(ErrInvalidAction)
	case ReplaceCard:
		out = s.handleReplaceCard(actor, a)
	case DiscardDrawnCard:
		out = s.handleDiscardDrawnCard(actor)
	case UseAbility:
		out = s.handleUseAbility(actor)
	case SkipAbility:
		out = s.handleSkipAbility(actor)
	case PeekOwnCard:
		out = s.handlePeekOwnCard(actor, a)
	case PeekOpponentCard:
		out = s.handlePeekOpponentCard(actor, a)
	case SwapCards:
		out = s.handleSwapCards(actor, a)
	case ReactWithCard:
		out = s.handleReactWithCard(actor, a)
	case CallCabo:
		out = s.handleCallCabo(actor)
	default:
		out = failure(ErrInvalidAction)
	}

	if out.Kind == OutcomeFailure || out.Kind == OutcomeReactionRejected {
		s.log.WithFields(logrus.Fields{
			"player": actorID,
			"action": act.Kind(),
			"code":   out.Err.Code,
		}).Debug("action rejected")
	} else {
		s.logAction(actorID, string(act.Kind()), nil)
	}
	return out
}

// ---------------------------------------------------------------------------
// Lobby
// ---------------------------------------------------------------------------

func (s *Session) handleSetReady(actor *Player, a SetReady) Outcome {
	if s.Phase != PhaseLobby {
		return failure(ErrGameAlreadyStarted)
	}
	if a.Ready {
		actor.Status = StatusReady
	} else {
		actor.Status = StatusWaiting
	}
	s.fireEvent(GameEvent{Type: EventPlayerReady, Actor: &actor.ID, Payload: map[string]interface{}{"ready": a.Ready}})
	s.broadcastState()
	return success()
}

func (s *Session) handleStartGame(actor *Player) Outcome {
	if s.Phase != PhaseLobby {
		return failure(ErrGameAlreadyStarted)
	}
	if !actor.IsHost {
		return failure(ErrInvalidAction)
	}
	if len(s.Players) < s.Rules.MinPlayers {
		return failure(ErrNotEnoughPlayers)
	}
	for _, p := range s.Players {
		if !p.IsHost && p.Status != StatusReady {
			return failure(ErrInvalidAction)
		}
	}
	s.startGame()
	return success()
}

// ---------------------------------------------------------------------------
// Initial peek
// ---------------------------------------------------------------------------

func (s *Session) handlePeekInitialCard(actor *Player, a PeekInitialCard) Outcome {
	if s.Phase != PhaseInitialPeek {
		return failure(ErrInvalidAction)
	}
	if actor.ReadyToPlay {
		return failure(ErrInvalidAction)
	}
	// Only the two auto-known positions may be (re-)peeked before play.
	if a.Position != s.Rules.HandSize-2 && a.Position != s.Rules.HandSize-1 {
		return failure(ErrInvalidCardPosition)
	}
	slot, ok := actor.SlotAt(a.Position)
	if !ok {
		return failure(ErrInvalidCardPosition)
	}
	actor.PeekedPositions[a.Position] = true
	s.fireEventToPlayer(actor.ID, GameEvent{
		Type: EventPrivateInitialPeek,
		Card: eventCardAt(slot.Card, slot.Position, actor.ID),
	})
	return peekResult(slot.Card, slot.Position, actor.ID)
}

func (s *Session) handleFinishInitialPeek(actor *Player) Outcome {
	if s.Phase != PhaseInitialPeek {
		return failure(ErrInvalidAction)
	}
	actor.ReadyToPlay = true

	if !s.allConnectedReady() {
		s.broadcastState()
		return success()
	}
	s.beginPlaying()
	return success()
}

// ---------------------------------------------------------------------------
// Turn decisions
// ---------------------------------------------------------------------------

// requireTurnDecision checks that actor owns the live turn decision and a
// drawn card is held. Assumes lock is held.
func (s *Session) requireTurnDecision(actor *Player) *GameError {
	if s.Phase != PhasePlaying && s.Phase != PhaseFinalRound {
		return ErrInvalidAction
	}
	if s.currentPlayerID() != actor.ID || s.Pending != nil {
		return ErrNotYourTurn
	}
	if s.TurnPhase != TurnDeciding {
		return ErrInvalidAction
	}
	if s.DrawnCard == nil {
		return ErrNoCardDrawn
	}
	return nil
}

func (s *Session) handleReplaceCard(actor *Player, a ReplaceCard) Outcome {
	if err := s.requireTurnDecision(actor); err != nil {
		return failure(err)
	}
	if a.Position < 0 || a.Position >= len(actor.Hand) {
		return failure(ErrInvalidCardPosition)
	}

	drawn := *s.DrawnCard
	s.DrawnCard = nil
	replaced := actor.Hand[a.Position].Card
	actor.Hand[a.Position].Card = drawn
	// The player saw the drawn card, so its new slot is known.
	actor.PeekedPositions[a.Position] = true

	s.DiscardPile = append(s.DiscardPile, replaced)
	s.cancelTimer()
	s.fireEvent(GameEvent{
		Type:  EventPlayerDiscard,
		Actor: &actor.ID,
		Card:  eventCard(replaced),
		Payload: map[string]interface{}{
			"source":   "replace",
			"position": a.Position,
		},
	})
	// The landed card's ability is pending regardless of whether it came
	// from the hand or the draw.
	s.openReactionWindow(actor.ID, replaced.Ability())
	return success()
}

func (s *Session) handleDiscardDrawnCard(actor *Player) Outcome {
	if err := s.requireTurnDecision(actor); err != nil {
		return failure(err)
	}

	drawn := *s.DrawnCard
	s.DrawnCard = nil
	s.DiscardPile = append(s.DiscardPile, drawn)
	s.cancelTimer()
	s.fireEvent(GameEvent{
		Type:    EventPlayerDiscard,
		Actor:   &actor.ID,
		Card:    eventCard(drawn),
		Payload: map[string]interface{}{"source": "drawn"},
	})
	s.openReactionWindow(actor.ID, drawn.Ability())
	return success()
}

func (s *Session) handleCallCabo(actor *Player) Outcome {
	if s.Phase == PhaseFinalRound || s.CaboCallerID != uuid.Nil {
		return failure(ErrAlreadyCalledCabo)
	}
	if s.Phase != PhasePlaying {
		return failure(ErrCannotCallCaboNow)
	}
	if s.currentPlayerID() != actor.ID || s.Pending != nil || s.TurnPhase != TurnDeciding {
		return failure(ErrCannotCallCaboNow)
	}

	// The auto-drawn card goes back on top of the draw pile untouched; no
	// discard happens, so no reaction window opens.
	if s.DrawnCard != nil {
		s.Deck.Return(*s.DrawnCard)
		s.DrawnCard = nil
	}

	s.CaboCallerID = actor.ID
	actor.HasCalledCabo = true
	s.Phase = PhaseFinalRound
	s.FinalTurnTaken = map[uuid.UUID]bool{actor.ID: true}

	s.cancelTimer()
	s.log.WithField("player", actor.ID).Info("cabo called")
	s.fireEvent(GameEvent{Type: EventPlayerCabo, Actor: &actor.ID})
	s.advanceTurn()
	return success()
}

// ---------------------------------------------------------------------------
// Abilities
// ---------------------------------------------------------------------------

// requireAbilityHolder checks that actor holds the in-flight ability
// entitlement with the wanted ability. Assumes lock is held.
func (s *Session) requireAbilityHolder(actor *Player, want Ability) *GameError {
	if s.Pending == nil || s.Pending.PlayerID != actor.ID {
		return ErrAbilityNotAvailable
	}
	if s.TurnPhase != TurnUsingAbility && s.TurnPhase != TurnSelectingTarget {
		return ErrInvalidAction
	}
	if want != AbilityNone && s.Pending.Ability != want {
		return ErrAbilityNotAvailable
	}
	return nil
}

func (s *Session) handleUseAbility(actor *Player) Outcome {
	if err := s.requireAbilityHolder(actor, AbilityNone); err != nil {
		return failure(err)
	}
	if s.TurnPhase != TurnUsingAbility {
		return failure(ErrInvalidAction)
	}
	s.TurnPhase = TurnSelectingTarget
	s.scheduleDecisionTimer()
	s.broadcastState()
	return success()
}

func (s *Session) handleSkipAbility(actor *Player) Outcome {
	if err := s.requireAbilityHolder(actor, AbilityNone); err != nil {
		return failure(err)
	}
	s.finishAbilityStep()
	return success()
}

func (s *Session) handlePeekOwnCard(actor *Player, a PeekOwnCard) Outcome {
	if err := s.requireAbilityHolder(actor, AbilityPeekOwn); err != nil {
		return failure(err)
	}
	slot, ok := actor.SlotAt(a.Position)
	if !ok {
		return failure(ErrInvalidCardPosition)
	}
	actor.PeekedPositions[a.Position] = true

	s.fireEvent(GameEvent{
		Type:    EventPlayerPeek,
		Actor:   &actor.ID,
		Target:  &actor.ID,
		Card:    hiddenCardAt(slot.Position, actor.ID),
		Ability: AbilityPeekOwn.String(),
	})
	s.fireEventToPlayer(actor.ID, GameEvent{
		Type: EventPrivatePeek,
		Card: eventCardAt(slot.Card, slot.Position, actor.ID),
	})
	s.finishAbilityStep()
	return peekResult(slot.Card, slot.Position, actor.ID)
}

func (s *Session) handlePeekOpponentCard(actor *Player, a PeekOpponentCard) Outcome {
	if err := s.requireAbilityHolder(actor, AbilityPeekOther); err != nil {
		return failure(err)
	}
	if a.TargetID == actor.ID {
		return failure(ErrInvalidPlayer)
	}
	target := s.playerByID(a.TargetID)
	if target == nil {
		return failure(ErrInvalidPlayer)
	}
	slot, ok := target.SlotAt(a.Position)
	if !ok {
		return failure(ErrInvalidCardPosition)
	}

	s.fireEvent(GameEvent{
		Type:    EventPlayerPeek,
		Actor:   &actor.ID,
		Target:  &target.ID,
		Card:    hiddenCardAt(slot.Position, target.ID),
		Ability: AbilityPeekOther.String(),
	})
	s.fireEventToPlayer(actor.ID, GameEvent{
		Type: EventPrivatePeek,
		Card: eventCardAt(slot.Card, slot.Position, target.ID),
	})
	s.finishAbilityStep()
	return peekResult(slot.Card, slot.Position, target.ID)
}

func (s *Session) handleSwapCards(actor *Player, a SwapCards) Outcome {
	if err := s.requireAbilityHolder(actor, AbilitySwap); err != nil {
		return failure(err)
	}
	if a.TargetID == actor.ID {
		return failure(ErrInvalidPlayer)
	}
	target := s.playerByID(a.TargetID)
	if target == nil {
		return failure(ErrInvalidPlayer)
	}
	if a.MyPosition < 0 || a.MyPosition >= len(actor.Hand) {
		return failure(ErrInvalidCardPosition)
	}
	if a.TargetPosition < 0 || a.TargetPosition >= len(target.Hand) {
		return failure(ErrInvalidCardPosition)
	}

	// Blind swap: neither card is revealed, and both slots become unknown
	// to their owners.
	actor.Hand[a.MyPosition].Card, target.Hand[a.TargetPosition].Card =
		target.Hand[a.TargetPosition].Card, actor.Hand[a.MyPosition].Card
	delete(actor.PeekedPositions, a.MyPosition)
	delete(target.PeekedPositions, a.TargetPosition)

	s.fireEvent(GameEvent{
		Type:    EventPlayerSwap,
		Actor:   &actor.ID,
		Target:  &target.ID,
		Card1:   hiddenCardAt(a.MyPosition, actor.ID),
		Card2:   hiddenCardAt(a.TargetPosition, target.ID),
		Ability: AbilitySwap.String(),
	})
	s.finishAbilityStep()
	return success()
}

// discardDrawn is the timeout path for a held drawn card: discard it and
// run the normal settle flow. Assumes lock is held.
func (s *Session) discardDrawn(actorID uuid.UUID) {
	if s.DrawnCard == nil {
		s.advanceTurn()
		return
	}
	drawn := *s.DrawnCard
	s.DrawnCard = nil
	s.DiscardPile = append(s.DiscardPile, drawn)
	s.fireEvent(GameEvent{
		Type:    EventPlayerDiscard,
		Actor:   &actorID,
		Card:    eventCard(drawn),
		Payload: map[string]interface{}{"source": "timeout"},
	})
	s.openReactionWindow(actorID, drawn.Ability())
}
