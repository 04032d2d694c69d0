package game

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// finishGame reveals every hand, computes the final result and moves the
// session to gameOver. Assumes lock is held.
func (s *Session) finishGame() {
	if s.Phase == PhaseGameOver {
		return
	}
	s.cancelTimer()
	s.Phase = PhaseScoring
	s.TurnPhase = TurnWaiting
	s.DrawnCard = nil
	s.Pending = nil
	s.AbilityQueue = nil

	for _, p := range s.Players {
		for i := range p.Hand {
			p.Hand[i].FaceUp = true
		}
	}

	result := s.computeResult()
	s.Phase = PhaseGameOver

	s.log.WithFields(logrus.Fields{
		"winner":  result.WinnerID,
		"scores":  result.Scores,
		"caboWon": result.WasCaboSuccessful,
	}).Info("game over")
	s.logAction(uuid.Nil, string(EventGameEnd), map[string]interface{}{"winner": result.WinnerID.String()})

	s.fireEvent(GameEvent{
		Type: EventGameEnd,
		Payload: map[string]interface{}{
			"scores":            scorePayload(result.Scores),
			"winners":           idStrings(result.Winners),
			"winnerId":          result.WinnerID.String(),
			"caboCallerId":      callerPayload(result.CaboCallerID),
			"wasCaboSuccessful": result.WasCaboSuccessful,
		},
	})
	s.broadcastState()

	if s.OnGameEnd != nil {
		s.OnGameEnd(result)
	}
}

// computeResult scores every seat. The lowest total wins; on a tie every
// minimal seat is a winner and the first in seat order is the nominal
// winner. The cabo call succeeded when the caller is that nominal winner.
// Assumes lock is held.
func (s *Session) computeResult() GameResult {
	result := GameResult{
		Code:         s.Code,
		Scores:       make(map[uuid.UUID]int, len(s.Players)),
		CaboCallerID: s.CaboCallerID,
	}

	min := -1
	for _, p := range s.Players {
		score := p.HandScore()
		result.Scores[p.ID] = score
		if min < 0 || score < min {
			min = score
		}
	}
	for _, p := range s.Players {
		if result.Scores[p.ID] == min {
			result.Winners = append(result.Winners, p.ID)
		}
	}
	if len(result.Winners) > 0 {
		result.WinnerID = result.Winners[0]
	}
	if s.CaboCallerID != uuid.Nil {
		result.WasCaboSuccessful = result.WinnerID == s.CaboCallerID
	}
	return result
}

func scorePayload(scores map[uuid.UUID]int) map[string]int {
	out := make(map[string]int, len(scores))
	for id, score := range scores {
		out[id.String()] = score
	}
	return out
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func callerPayload(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}
