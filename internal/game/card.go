// Package game implements the authoritative Cabo rules: the per-room
// session state machine, the timed reaction window, scoring, and the
// per-player sanitized views. All mutation of a Session happens under its
// mutex; timers re-acquire it and check an epoch before acting.
package game

import "math/rand/v2"

// Suit identifies one of the four French suits.
type Suit uint8

const (
	SuitHearts Suit = iota
	SuitDiamonds
	SuitClubs
	SuitSpades
)

// String returns the single-letter suit code used on the wire.
func (s Suit) String() string {
	switch s {
	case SuitHearts:
		return "H"
	case SuitDiamonds:
		return "D"
	case SuitClubs:
		return "C"
	case SuitSpades:
		return "S"
	}
	return "?"
}

// Rank identifies a card rank, Ace low.
type Rank uint8

const (
	RankAce Rank = iota + 1
	RankTwo
	RankThree
	RankFour
	RankFive
	RankSix
	RankSeven
	RankEight
	RankNine
	RankTen
	RankJack
	RankQueen
	RankKing
)

// String returns the single-character rank code used on the wire.
func (r Rank) String() string {
	switch r {
	case RankAce:
		return "A"
	case RankTen:
		return "T"
	case RankJack:
		return "J"
	case RankQueen:
		return "Q"
	case RankKing:
		return "K"
	default:
		if r >= RankTwo && r <= RankNine {
			return string(rune('0' + int(r)))
		}
	}
	return "?"
}

// Card is an immutable suit/rank pair.
type Card struct {
	Suit Suit
	Rank Rank
}

// Score returns the point value of the card: Ace 1, Two through Ten face
// value, Jack/Queen/King 10.
func (c Card) Score() int {
	switch {
	case c.Rank >= RankJack:
		return 10
	default:
		return int(c.Rank)
	}
}

// Ability is the special action granted by discarding a card.
type Ability uint8

const (
	AbilityNone      Ability = iota
	AbilityPeekOwn           // Seven, Eight
	AbilityPeekOther         // Nine, Ten
	AbilitySwap              // Jack, Queen
)

// String returns the wire identifier for the ability.
func (a Ability) String() string {
	switch a {
	case AbilityPeekOwn:
		return "peekOwn"
	case AbilityPeekOther:
		return "peekOther"
	case AbilitySwap:
		return "swap"
	}
	return "none"
}

// Ability returns the ability the card grants when it settles on the
// discard pile.
func (c Card) Ability() Ability {
	switch c.Rank {
	case RankSeven, RankEight:
		return AbilityPeekOwn
	case RankNine, RankTen:
		return AbilityPeekOther
	case RankJack, RankQueen:
		return AbilitySwap
	}
	return AbilityNone
}

// String returns the two-character card code, e.g. "7H" or "QS".
func (c Card) String() string { return c.Rank.String() + c.Suit.String() }

// DeckSize is the number of cards in a standard deck.
const DeckSize = 52

// Deck is an ordered pile of cards; the last element is the top.
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// NewDeck builds an unshuffled 52-card deck. The seed drives every shuffle
// performed by this deck.
func NewDeck(seed uint64) *Deck {
	d := &Deck{
		cards: make([]Card, 0, DeckSize),
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	for suit := SuitHearts; suit <= SuitSpades; suit++ {
		for rank := RankAce; rank <= RankKing; rank++ {
			d.cards = append(d.cards, Card{Suit: suit, Rank: rank})
		}
	}
	return d
}

// Shuffle permutes the deck in place (Fisher-Yates).
func (d *Deck) Shuffle() {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Len returns the number of cards remaining.
func (d *Deck) Len() int { return len(d.cards) }

// Draw removes and returns the top card. ok is false when the deck is empty.
func (d *Deck) Draw() (c Card, ok bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}
	c = d.cards[len(d.cards)-1]
	d.cards = d.cards[:len(d.cards)-1]
	return c, true
}

// Return places a card back on top of the deck.
func (d *Deck) Return(c Card) {
	d.cards = append(d.cards, c)
}

// Refill pushes cards onto the deck and shuffles. Used when the discard
// pile (minus its top card) is recycled into the draw pile.
func (d *Deck) Refill(cards []Card) {
	d.cards = append(d.cards, cards...)
	d.Shuffle()
}
