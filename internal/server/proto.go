// Package server exposes the game over HTTP and WebSocket: account and room
// management as a small JSON API, gameplay as a per-room socket protocol.
package server

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/lizeren/Cabo/internal/game"
)

// ActionEnvelope is one inbound client message.
type ActionEnvelope struct {
	Action string `json:"action"`

	Ready          bool      `json:"ready,omitempty"`
	Position       int       `json:"position,omitempty"`
	TargetID       uuid.UUID `json:"targetId,omitempty"`
	MyPosition     int       `json:"myPosition,omitempty"`
	TargetPosition int       `json:"targetPosition,omitempty"`
}

// decodeAction parses one socket message into a typed action.
func decodeAction(data []byte) (game.Action, error) {
	var env ActionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed message: %w", err)
	}

	switch game.ActionKind(env.Action) {
	case game.KindSetReady:
		return game.SetReady{Ready: env.Ready}, nil
	case game.KindStartGame:
		return game.StartGame{}, nil
	case game.KindPeekInitialCard:
		return game.PeekInitialCard{Position: env.Position}, nil
	case game.KindFinishInitialPeek:
		return game.FinishInitialPeek{}, nil
	case game.KindDrawFromDeck:
		return game.DrawFromDeck{}, nil
	case game.KindDrawFromDiscard:
		return game.DrawFromDiscard{}, nil
	case game.KindReplaceCard:
		return game.ReplaceCard{Position: env.Position}, nil
	case game.KindDiscardDrawnCard:
		return game.DiscardDrawnCard{}, nil
	case game.KindUseAbility:
		return game.UseAbility{}, nil
	case game.KindSkipAbility:
		return game.SkipAbility{}, nil
	case game.KindPeekOwnCard:
		return game.PeekOwnCard{Position: env.Position}, nil
	case game.KindPeekOpponentCard:
		return game.PeekOpponentCard{TargetID: env.TargetID, Position: env.Position}, nil
	case game.KindSwapCards:
		return game.SwapCards{MyPosition: env.MyPosition, TargetID: env.TargetID, TargetPosition: env.TargetPosition}, nil
	case game.KindReactWithCard:
		return game.ReactWithCard{Position: env.Position}, nil
	case game.KindCallCabo:
		return game.CallCabo{}, nil
	}
	return nil, fmt.Errorf("unknown action %q", env.Action)
}

// OutcomeMessage is the direct reply to an action.
type OutcomeMessage struct {
	Type    string `json:"type"`
	Outcome string `json:"outcome"`

	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`

	Card     *game.EventCard `json:"card,omitempty"`
	Position *int            `json:"position,omitempty"`
	Owner    *uuid.UUID      `json:"owner,omitempty"`
}

// encodeOutcome renders an action outcome for the acting player.
func encodeOutcome(out game.Outcome) OutcomeMessage {
	msg := OutcomeMessage{Type: "action_result", Outcome: string(out.Kind)}
	if out.Err != nil {
		msg.ErrorCode = out.Err.Code
		msg.ErrorMessage = out.Err.Message
	}
	if out.Card != nil {
		msg.Card = &game.EventCard{
			Suit:  out.Card.Suit.String(),
			Rank:  out.Card.Rank.String(),
			Value: out.Card.Score(),
		}
		pos := out.Position
		owner := out.Owner
		msg.Position = &pos
		msg.Owner = &owner
	}
	return msg
}
