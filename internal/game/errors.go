package game

// GameError is a typed, recoverable validation failure. Errors never mutate
// session state and are reported only to the acting player.
type GameError struct {
	Code    string
	Message string
}

func (e *GameError) Error() string { return e.Message }

var (
	ErrNotYourTurn          = &GameError{"notYourTurn", "it is not your turn"}
	ErrInvalidAction        = &GameError{"invalidAction", "action is not valid in the current phase"}
	ErrInvalidCardPosition  = &GameError{"invalidCardPosition", "card position is out of range"}
	ErrInvalidPlayer        = &GameError{"invalidPlayer", "player is not part of this game"}
	ErrNoCardDrawn          = &GameError{"noCardDrawn", "no card has been drawn this turn"}
	ErrAbilityNotAvailable  = &GameError{"abilityNotAvailable", "no ability is available to use"}
	ErrCardDoesNotMatch     = &GameError{"cardDoesNotMatch", "card rank does not match the discard pile"}
	ErrReactionWindowClosed = &GameError{"reactionWindowClosed", "the reaction window is not open"}
	ErrRoomFull             = &GameError{"roomFull", "the room is full"}
	ErrRoomNotFound         = &GameError{"roomNotFound", "no room with that code exists"}
	ErrNotEnoughPlayers     = &GameError{"notEnoughPlayers", "not enough players to start"}
	ErrAlreadyCalledCabo    = &GameError{"alreadyCalledCabo", "cabo has already been called"}
	ErrCannotCallCaboNow    = &GameError{"cannotCallCaboNow", "cabo cannot be called right now"}
	ErrGameAlreadyStarted   = &GameError{"gameAlreadyStarted", "the game has already started"}
	ErrGameNotStarted       = &GameError{"gameNotStarted", "the game has not started"}
)
