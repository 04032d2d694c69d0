package game

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setHand replaces a player's hand with the given ranks.
func setHand(p *Player, ranks ...Rank) {
	p.Hand = nil
	for _, r := range ranks {
		p.AppendCard(Card{Rank: r})
	}
}

func TestComputeResultLowestWins(t *testing.T) {
	s, _ := newStartedSession(t, 3)
	a, b, c := s.Players[0], s.Players[1], s.Players[2]
	setHand(a, RankKing, RankKing, RankKing, RankKing) // 40
	setHand(b, RankAce, RankTwo, RankThree, RankFour)  // 10
	setHand(c, RankFive, RankFive, RankFive, RankFive) // 20

	s.mu.Lock()
	result := s.computeResult()
	s.mu.Unlock()

	assert.Equal(t, 40, result.Scores[a.ID])
	assert.Equal(t, 10, result.Scores[b.ID])
	assert.Equal(t, 20, result.Scores[c.ID])
	assert.Equal(t, []uuid.UUID{b.ID}, result.Winners)
	assert.Equal(t, b.ID, result.WinnerID)
}

func TestComputeResultTie(t *testing.T) {
	s, _ := newStartedSession(t, 3)
	a, b, c := s.Players[0], s.Players[1], s.Players[2]
	setHand(a, RankAce, RankTwo, RankThree, RankFour) // 10
	setHand(b, RankKing, RankKing, RankKing, RankKing)
	setHand(c, RankFour, RankThree, RankTwo, RankAce) // 10

	s.mu.Lock()
	result := s.computeResult()
	s.mu.Unlock()

	assert.Equal(t, []uuid.UUID{a.ID, c.ID}, result.Winners)
	// Ties fall to the first minimal seat in seat order.
	assert.Equal(t, a.ID, result.WinnerID)
}

func TestComputeResultCaboTieLoses(t *testing.T) {
	s, _ := newStartedSession(t, 3)
	a, b, c := s.Players[0], s.Players[1], s.Players[2]
	setHand(a, RankAce, RankTwo, RankThree, RankFour) // 10
	setHand(b, RankKing, RankKing, RankKing, RankKing)
	setHand(c, RankFour, RankThree, RankTwo, RankAce) // 10

	// The caller ties the minimum but is not the first minimal seat.
	s.mu.Lock()
	s.CaboCallerID = c.ID
	result := s.computeResult()
	s.mu.Unlock()

	assert.Equal(t, a.ID, result.WinnerID)
	assert.False(t, result.WasCaboSuccessful)
}

func TestComputeResultCaboSuccess(t *testing.T) {
	s, _ := newStartedSession(t, 2)
	a, b := s.Players[0], s.Players[1]
	setHand(a, RankAce, RankAce, RankTwo, RankTwo) // 6
	setHand(b, RankNine, RankNine, RankNine, RankNine)

	s.mu.Lock()
	s.CaboCallerID = a.ID
	result := s.computeResult()
	s.mu.Unlock()

	assert.True(t, result.WasCaboSuccessful)
	assert.Equal(t, a.ID, result.WinnerID)
}

func TestComputeResultCaboFailure(t *testing.T) {
	s, _ := newStartedSession(t, 2)
	a, b := s.Players[0], s.Players[1]
	setHand(a, RankKing, RankKing, RankKing, RankKing)
	setHand(b, RankAce, RankAce, RankTwo, RankTwo)

	s.mu.Lock()
	s.CaboCallerID = a.ID
	result := s.computeResult()
	s.mu.Unlock()

	assert.False(t, result.WasCaboSuccessful)
	assert.Equal(t, b.ID, result.WinnerID)
}

func TestHandScoreMixedCourtCards(t *testing.T) {
	p := NewPlayer("p", false)
	p.AppendCard(Card{Suit: SuitDiamonds, Rank: RankAce})
	p.AppendCard(Card{Suit: SuitClubs, Rank: RankKing})
	p.AppendCard(Card{Suit: SuitHearts, Rank: RankSeven})
	p.AppendCard(Card{Suit: SuitSpades, Rank: RankQueen})

	// 1 + 10 + 7 + 10
	assert.Equal(t, 28, p.HandScore())
}

func TestPenaltyCardsCountInScore(t *testing.T) {
	p := NewPlayer("p", false)
	setHand(p, RankAce, RankTwo, RankThree, RankFour)
	require.Equal(t, 10, p.HandScore())

	p.AppendCard(Card{Rank: RankKing})
	assert.Equal(t, 20, p.HandScore())
}

func TestFinishGameIdempotent(t *testing.T) {
	s, _ := newStartedSession(t, 2)
	calls := 0
	s.OnGameEnd = func(GameResult) { calls++ }

	s.mu.Lock()
	s.finishGame()
	s.finishGame()
	s.mu.Unlock()

	assert.Equal(t, PhaseGameOver, s.Phase)
	assert.Equal(t, 1, calls)
}
