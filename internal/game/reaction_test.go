package game

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openWindowWith discards a forced card for the current player and returns
// the discarder and a non-discarding player.
func openWindowWith(t *testing.T, s *Session, c Card) (discarder, other *Player) {
	t.Helper()
	discarder = currentPlayer(s)
	setDrawnCard(s, c)
	require.Equal(t, OutcomeSuccess, s.HandleAction(discarder.ID, DiscardDrawnCard{}).Kind)
	require.Equal(t, PhaseReactionWindow, s.Phase)
	for _, p := range s.Players {
		if p.ID != discarder.ID {
			other = p
			break
		}
	}
	return discarder, other
}

func TestReactionMatchWinsAndCloses(t *testing.T) {
	s, rec := newStartedSession(t, 2)
	_, reactor := openWindowWith(t, s, Card{Suit: SuitHearts, Rank: RankFive})

	s.mu.Lock()
	reactor.Hand[0].Card = Card{Suit: SuitDiamonds, Rank: RankFive}
	s.mu.Unlock()

	out := s.HandleAction(reactor.ID, ReactWithCard{Position: 0})
	require.Equal(t, OutcomeReactionAccepted, out.Kind)

	assert.Len(t, reactor.Hand, 3, "matched card left the hand")
	assert.Equal(t, RankFive, s.DiscardPile[len(s.DiscardPile)-1].Rank)
	assert.NotEqual(t, PhaseReactionWindow, s.Phase, "first valid match closes the window")
	assert.NotNil(t, rec.lastPublic(EventReactionSuccess))

	// The window is gone: a second reaction is rejected.
	out = s.HandleAction(reactor.ID, ReactWithCard{Position: 0})
	assert.Equal(t, ErrReactionWindowClosed, out.Err)
}

func TestReactionWrongRankPenalty(t *testing.T) {
	s, rec := newStartedSession(t, 2)
	_, reactor := openWindowWith(t, s, Card{Suit: SuitHearts, Rank: RankFive})

	s.mu.Lock()
	reactor.Hand[0].Card = Card{Suit: SuitDiamonds, Rank: RankSix}
	s.mu.Unlock()

	out := s.HandleAction(reactor.ID, ReactWithCard{Position: 0})
	require.Equal(t, OutcomeReactionRejected, out.Kind)
	assert.Equal(t, ErrCardDoesNotMatch, out.Err)

	assert.Len(t, reactor.Hand, 5, "one blind penalty card appended")
	assert.False(t, reactor.PeekedPositions[4], "the penalty card is unknown to its owner")
	assert.Equal(t, PhaseReactionWindow, s.Phase, "a failed attempt leaves the window open")
	assert.NotNil(t, rec.lastPublic(EventReactionFail))

	penalty := rec.lastPublic(EventReactionPenalty)
	require.NotNil(t, penalty)
	assert.Empty(t, penalty.Card.Rank, "penalty events never reveal the card")

	// The penalized player may try again with a correct card.
	s.mu.Lock()
	reactor.Hand[1].Card = Card{Suit: SuitClubs, Rank: RankFive}
	s.mu.Unlock()
	out = s.HandleAction(reactor.ID, ReactWithCard{Position: 1})
	assert.Equal(t, OutcomeReactionAccepted, out.Kind)
}

func TestReactionInvalidPositionNoPenalty(t *testing.T) {
	s, _ := newStartedSession(t, 2)
	_, reactor := openWindowWith(t, s, Card{Suit: SuitHearts, Rank: RankFive})

	out := s.HandleAction(reactor.ID, ReactWithCard{Position: 9})
	require.Equal(t, OutcomeReactionRejected, out.Kind)
	assert.Equal(t, ErrInvalidCardPosition, out.Err)
	assert.Len(t, reactor.Hand, 4, "no penalty for an out-of-range attempt")
}

func TestReactionPenaltySkippedWhenExhausted(t *testing.T) {
	s, _ := newStartedSession(t, 2)
	_, reactor := openWindowWith(t, s, Card{Suit: SuitHearts, Rank: RankFive})

	s.mu.Lock()
	s.Deck.cards = s.Deck.cards[:0]
	// Only the discard top remains, so there is nothing to recycle.
	s.DiscardPile = s.DiscardPile[len(s.DiscardPile)-1:]
	reactor.Hand[0].Card = Card{Suit: SuitDiamonds, Rank: RankSix}
	s.mu.Unlock()

	out := s.HandleAction(reactor.ID, ReactWithCard{Position: 0})
	require.Equal(t, OutcomeReactionRejected, out.Kind)
	assert.Equal(t, ErrCardDoesNotMatch, out.Err)
	assert.Len(t, reactor.Hand, 4, "no penalty card when both piles are exhausted")
	assert.Equal(t, PhaseReactionWindow, s.Phase, "the window stays open regardless")
}

func TestReactionConcurrentAttemptsSingleWinner(t *testing.T) {
	s, _ := newStartedSession(t, 4)
	discarder, _ := openWindowWith(t, s, Card{Suit: SuitHearts, Rank: RankFive})

	suits := []Suit{SuitDiamonds, SuitClubs, SuitSpades}
	var reactors []*Player
	s.mu.Lock()
	for _, p := range s.Players {
		if p.ID == discarder.ID {
			continue
		}
		p.Hand[0].Card = Card{Suit: suits[len(reactors)], Rank: RankFive}
		reactors = append(reactors, p)
	}
	s.mu.Unlock()

	outcomes := make(chan OutcomeKind, len(reactors))
	var wg sync.WaitGroup
	for _, p := range reactors {
		wg.Add(1)
		go func(p *Player) {
			defer wg.Done()
			outcomes <- s.HandleAction(p.ID, ReactWithCard{Position: 0}).Kind
		}(p)
	}
	wg.Wait()
	close(outcomes)

	accepted := 0
	for kind := range outcomes {
		if kind == OutcomeReactionAccepted {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted, "exactly one simultaneous match wins")
	assert.NotEqual(t, PhaseReactionWindow, s.Phase)
	assert.Equal(t, DeckSize, cardCount(s))
}

func TestReactionClosedOutsideWindow(t *testing.T) {
	s, _ := newStartedSession(t, 2)
	p := currentPlayer(s)

	out := s.HandleAction(p.ID, ReactWithCard{Position: 0})
	assert.Equal(t, OutcomeReactionRejected, out.Kind)
	assert.Equal(t, ErrReactionWindowClosed, out.Err)
}

func TestDiscarderOwnReactionAllowed(t *testing.T) {
	s, _ := newStartedSession(t, 2)
	discarder, _ := openWindowWith(t, s, Card{Suit: SuitHearts, Rank: RankFive})

	s.mu.Lock()
	discarder.Hand[0].Card = Card{Suit: SuitSpades, Rank: RankFive}
	s.mu.Unlock()

	out := s.HandleAction(discarder.ID, ReactWithCard{Position: 0})
	assert.Equal(t, OutcomeReactionAccepted, out.Kind)
	assert.Len(t, discarder.Hand, 3)
}

func TestRewardTurnForReactor(t *testing.T) {
	s, _ := newStartedSession(t, 3)
	// A five carries no ability, so an accepted reaction earns the reactor
	// the next turn outright.
	_, reactor := openWindowWith(t, s, Card{Suit: SuitHearts, Rank: RankFive})

	s.mu.Lock()
	reactor.Hand[0].Card = Card{Suit: SuitDiamonds, Rank: RankFive}
	s.mu.Unlock()

	require.Equal(t, OutcomeReactionAccepted, s.HandleAction(reactor.ID, ReactWithCard{Position: 0}).Kind)

	assert.Equal(t, reactor.ID, currentPlayer(s).ID)
	assert.Equal(t, TurnDeciding, s.TurnPhase)
	assert.NotNil(t, s.DrawnCard, "the reward turn auto-draws")
}

func TestNoRewardTurnWhenAbilityPending(t *testing.T) {
	s, _ := newStartedSession(t, 2)
	discarder, reactor := openWindowWith(t, s, Card{Suit: SuitHearts, Rank: RankNine})

	s.mu.Lock()
	reactor.Hand[0].Card = Card{Suit: SuitDiamonds, Rank: RankNine}
	s.mu.Unlock()

	require.Equal(t, OutcomeReactionAccepted, s.HandleAction(reactor.ID, ReactWithCard{Position: 0}).Kind)

	// The ability queue takes over instead of a reward turn, and normal
	// advancement resumes once it drains.
	require.NotNil(t, s.Pending)
	require.Equal(t, OutcomeSuccess, s.HandleAction(discarder.ID, SkipAbility{}).Kind)
	require.NotNil(t, s.Pending)
	require.Equal(t, OutcomeSuccess, s.HandleAction(reactor.ID, SkipAbility{}).Kind)

	assert.Equal(t, reactor.ID, currentPlayer(s).ID, "normal advancement: next player after the discarder")
}

func TestRewardTurnInFinalRoundMarksInterruptedPlayer(t *testing.T) {
	s, _ := newStartedSession(t, 3)
	caller := currentPlayer(s)
	require.Equal(t, OutcomeSuccess, s.HandleAction(caller.ID, CallCabo{}).Kind)
	require.Equal(t, PhaseFinalRound, s.Phase)

	interrupted, _ := openWindowWith(t, s, Card{Suit: SuitHearts, Rank: RankFive})
	var reactor *Player
	for _, p := range s.Players {
		if p.ID != interrupted.ID && p.ID != caller.ID {
			reactor = p
			break
		}
	}
	s.mu.Lock()
	reactor.Hand[0].Card = Card{Suit: SuitDiamonds, Rank: RankFive}
	s.mu.Unlock()

	require.Equal(t, OutcomeReactionAccepted, s.HandleAction(reactor.ID, ReactWithCard{Position: 0}).Kind)

	assert.True(t, s.FinalTurnTaken[interrupted.ID], "the interrupted turn counts as taken")
	assert.Equal(t, reactor.ID, currentPlayer(s).ID)
}

func TestReactorAbilityQueuedAfterDiscarder(t *testing.T) {
	s, _ := newStartedSession(t, 2)
	// A seven grants the discarder peekOwn; the reactor matches with
	// another seven, granting a second peekOwn.
	discarder, reactor := openWindowWith(t, s, Card{Suit: SuitHearts, Rank: RankSeven})

	s.mu.Lock()
	reactor.Hand[0].Card = Card{Suit: SuitDiamonds, Rank: RankSeven}
	s.mu.Unlock()
	require.Equal(t, OutcomeReactionAccepted, s.HandleAction(reactor.ID, ReactWithCard{Position: 0}).Kind)

	// The original discarder resolves first.
	require.NotNil(t, s.Pending)
	assert.Equal(t, discarder.ID, s.Pending.PlayerID)
	assert.Equal(t, AbilityPeekOwn, s.Pending.Ability)
	require.Equal(t, OutcomeSuccess, s.HandleAction(discarder.ID, SkipAbility{}).Kind)

	// Then the reactor.
	require.NotNil(t, s.Pending)
	assert.Equal(t, reactor.ID, s.Pending.PlayerID)
	assert.Equal(t, AbilityPeekOwn, s.Pending.Ability)
	require.Equal(t, OutcomeSuccess, s.HandleAction(reactor.ID, SkipAbility{}).Kind)

	assert.Nil(t, s.Pending)
	assert.NotEqual(t, discarder.ID, currentPlayer(s).ID)
}

func TestBuildAbilityQueueOrdering(t *testing.T) {
	ids := make([]uuid.UUID, 4)
	for i := range ids {
		ids[i] = uuid.New()
	}
	turnOrder := []uuid.UUID{ids[0], ids[1], ids[2], ids[3]}

	// Current player is ids[1]. Reactors accepted in the order: seat 3,
	// seat 0, seat 2. Clockwise distance from ids[1]: seat 2 is 1, seat 3
	// is 2, seat 0 is 3.
	accepted := []AbilityEntry{
		{PlayerID: ids[3], Ability: AbilityPeekOwn},
		{PlayerID: ids[0], Ability: AbilitySwap},
		{PlayerID: ids[2], Ability: AbilityPeekOther},
	}

	queue := buildAbilityQueue(ids[1], AbilityPeekOwn, accepted, turnOrder, 1)

	require.Len(t, queue, 4)
	assert.Equal(t, ids[1], queue[0].PlayerID, "discarder first")
	assert.Equal(t, ids[2], queue[1].PlayerID)
	assert.Equal(t, ids[3], queue[2].PlayerID)
	assert.Equal(t, ids[0], queue[3].PlayerID)
}

func TestBuildAbilityQueueDropsAbilityless(t *testing.T) {
	id := uuid.New()
	turnOrder := []uuid.UUID{id}

	queue := buildAbilityQueue(id, AbilityNone, []AbilityEntry{{PlayerID: id, Ability: AbilityNone}}, turnOrder, 0)
	assert.Empty(t, queue)

	queue = buildAbilityQueue(id, AbilityNone, []AbilityEntry{{PlayerID: id, Ability: AbilitySwap}}, turnOrder, 0)
	require.Len(t, queue, 1)
	assert.Equal(t, AbilitySwap, queue[0].Ability)
}

func TestReactionWindowAfterEveryDiscard(t *testing.T) {
	s, rec := newStartedSession(t, 2)

	// Direct discard of the drawn card.
	p := currentPlayer(s)
	require.Equal(t, OutcomeSuccess, s.HandleAction(p.ID, DiscardDrawnCard{}).Kind)
	assert.Equal(t, PhaseReactionWindow, s.Phase)
	expireReaction(s)
	for s.Pending != nil {
		s.HandleAction(s.Pending.PlayerID, SkipAbility{})
	}

	// Replace also settles a discard.
	opens := len(rec.publicTypes())
	p = currentPlayer(s)
	require.Equal(t, OutcomeSuccess, s.HandleAction(p.ID, ReplaceCard{Position: 0}).Kind)
	assert.Equal(t, PhaseReactionWindow, s.Phase)
	found := false
	for _, tp := range rec.publicTypes()[opens:] {
		if tp == EventReactionOpen {
			found = true
		}
	}
	assert.True(t, found)
}
