package game

import "github.com/google/uuid"

// ActionKind names one variant of the closed action set.
type ActionKind string

const (
	KindSetReady          ActionKind = "setReady"
	KindStartGame         ActionKind = "startGame"
	KindPeekInitialCard   ActionKind = "peekInitialCard"
	KindFinishInitialPeek ActionKind = "finishInitialPeek"
	KindDrawFromDeck      ActionKind = "drawFromDeck"
	KindDrawFromDiscard   ActionKind = "drawFromDiscard"
	KindReplaceCard       ActionKind = "replaceCard"
	KindDiscardDrawnCard  ActionKind = "discardDrawnCard"
	KindUseAbility        ActionKind = "useAbility"
	KindSkipAbility       ActionKind = "skipAbility"
	KindPeekOwnCard       ActionKind = "peekOwnCard"
	KindPeekOpponentCard  ActionKind = "peekOpponentCard"
	KindSwapCards         ActionKind = "swapCards"
	KindReactWithCard     ActionKind = "reactWithCard"
	KindCallCabo          ActionKind = "callCabo"
)

// Action is the closed sum of player-submitted actions. Each variant
// carries only the fields it needs; the state machine matches exhaustively.
type Action interface {
	Kind() ActionKind
}

type SetReady struct{ Ready bool }

type StartGame struct{}

type PeekInitialCard struct{ Position int }

type FinishInitialPeek struct{}

// DrawFromDeck and DrawFromDiscard are part of the action vocabulary but
// unreachable while turn-start auto-draw is in force; they are rejected
// with ErrInvalidAction. See DESIGN.md.
type DrawFromDeck struct{}

type DrawFromDiscard struct{}

type ReplaceCard struct{ Position int }

type DiscardDrawnCard struct{}

type UseAbility struct{}

type SkipAbility struct{}

type PeekOwnCard struct{ Position int }

type PeekOpponentCard struct {
	TargetID uuid.UUID
	Position int
}

type SwapCards struct {
	MyPosition     int
	TargetID       uuid.UUID
	TargetPosition int
}

type ReactWithCard struct{ Position int }

type CallCabo struct{}

func (SetReady) Kind() ActionKind          { return KindSetReady }
func (StartGame) Kind() ActionKind         { return KindStartGame }
func (PeekInitialCard) Kind() ActionKind   { return KindPeekInitialCard }
func (FinishInitialPeek) Kind() ActionKind { return KindFinishInitialPeek }
func (DrawFromDeck) Kind() ActionKind      { return KindDrawFromDeck }
func (DrawFromDiscard) Kind() ActionKind   { return KindDrawFromDiscard }
func (ReplaceCard) Kind() ActionKind       { return KindReplaceCard }
func (DiscardDrawnCard) Kind() ActionKind  { return KindDiscardDrawnCard }
func (UseAbility) Kind() ActionKind        { return KindUseAbility }
func (SkipAbility) Kind() ActionKind       { return KindSkipAbility }
func (PeekOwnCard) Kind() ActionKind       { return KindPeekOwnCard }
func (PeekOpponentCard) Kind() ActionKind  { return KindPeekOpponentCard }
func (SwapCards) Kind() ActionKind         { return KindSwapCards }
func (ReactWithCard) Kind() ActionKind     { return KindReactWithCard }
func (CallCabo) Kind() ActionKind          { return KindCallCabo }

// OutcomeKind names one variant of the action result.
type OutcomeKind string

const (
	OutcomeSuccess          OutcomeKind = "success"
	OutcomeFailure          OutcomeKind = "failure"
	OutcomePeekResult       OutcomeKind = "peekResult"
	OutcomeReactionAccepted OutcomeKind = "reactionAccepted"
	OutcomeReactionRejected OutcomeKind = "reactionRejected"
)

// Outcome is the result of submitting an action. Failure outcomes carry the
// typed GameError; peek outcomes carry the revealed card.
type Outcome struct {
	Kind OutcomeKind

	// Err is set for failure and reactionRejected outcomes.
	Err *GameError

	// Peeked card details, set for peekResult outcomes.
	Card     *Card
	Position int
	Owner    uuid.UUID
}

func success() Outcome { return Outcome{Kind: OutcomeSuccess} }

func failure(err *GameError) Outcome { return Outcome{Kind: OutcomeFailure, Err: err} }

func peekResult(c Card, pos int, owner uuid.UUID) Outcome {
	return Outcome{Kind: OutcomePeekResult, Card: &c, Position: pos, Owner: owner}
}

func reactionAccepted() Outcome { return Outcome{Kind: OutcomeReactionAccepted} }

func reactionRejected(err *GameError) Outcome {
	return Outcome{Kind: OutcomeReactionRejected, Err: err}
}
