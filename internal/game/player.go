package game

import "github.com/google/uuid"

// PlayerStatus tracks a seat's lifecycle within a session.
type PlayerStatus uint8

const (
	StatusWaiting PlayerStatus = iota
	StatusReady
	StatusPlaying
	StatusDisconnected
)

// String returns the wire name of the status.
func (s PlayerStatus) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusReady:
		return "ready"
	case StatusPlaying:
		return "playing"
	case StatusDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// HandSlot is one position in a player's hand. Positions stay contiguous
// 0..n-1: penalty cards append, and removing a card reindexes the rest.
type HandSlot struct {
	Card     Card
	FaceUp   bool
	Position int
}

// Player is one seat in a session.
type Player struct {
	ID     uuid.UUID
	Name   string
	IsHost bool
	Status PlayerStatus

	Hand          []HandSlot
	HasCalledCabo bool

	// PeekedPositions holds the positions of the player's own hand that the
	// player has knowingly seen and may rely on memory for.
	PeekedPositions map[int]bool

	// ReadyToPlay is set once the player confirms the initial auto-peek.
	ReadyToPlay bool
}

// NewPlayer creates a seated player in the waiting state.
func NewPlayer(name string, host bool) *Player {
	return &Player{
		ID:              uuid.New(),
		Name:            name,
		IsHost:          host,
		Status:          StatusWaiting,
		PeekedPositions: make(map[int]bool),
	}
}

// SlotAt returns the slot at pos, or false when pos is out of range.
func (p *Player) SlotAt(pos int) (HandSlot, bool) {
	if pos < 0 || pos >= len(p.Hand) {
		return HandSlot{}, false
	}
	return p.Hand[pos], true
}

// AppendCard appends a card to the hand (penalty growth) and returns its
// position.
func (p *Player) AppendCard(c Card) int {
	pos := len(p.Hand)
	p.Hand = append(p.Hand, HandSlot{Card: c, Position: pos})
	return pos
}

// RemoveCardAt removes the card at pos, shifting later slots left and
// reindexing them so positions stay contiguous. The peeked-position set is
// shifted the same way.
func (p *Player) RemoveCardAt(pos int) Card {
	removed := p.Hand[pos].Card
	p.Hand = append(p.Hand[:pos], p.Hand[pos+1:]...)
	for i := range p.Hand {
		p.Hand[i].Position = i
	}
	shifted := make(map[int]bool, len(p.PeekedPositions))
	for known := range p.PeekedPositions {
		switch {
		case known < pos:
			shifted[known] = true
		case known > pos:
			shifted[known-1] = true
		}
	}
	p.PeekedPositions = shifted
	return removed
}

// HandScore sums the score values of every slot, penalty slots included.
func (p *Player) HandScore() int {
	total := 0
	for _, slot := range p.Hand {
		total += slot.Card.Score()
	}
	return total
}
