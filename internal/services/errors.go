package services

import "errors"

// Every failed instruction maps to one of these. Handlers translate them
// to HTTP statuses with errors.Is; a failed call never leaves partial
// state behind (each instruction runs in a single DB transaction).
var (
	// Authorization
	ErrUnauthorizedDepositor = errors.New("caller is not a participant of this bet")
	ErrUnauthorizedArbiter   = errors.New("only the arbiter can declare the winner")
	ErrUnauthorizedWinner    = errors.New("caller is not the winner")
	ErrNotCreator            = errors.New("only the creator can start the game")
	ErrNotAParticipant       = errors.New("caller is not a participant of this game")

	// State
	ErrInvalidBetStatus  = errors.New("invalid bet status for this operation")
	ErrInvalidGameStatus = errors.New("invalid game status for this operation")
	ErrNoWinnerDeclared  = errors.New("no winner has been declared")
	ErrNotEnoughPlayers  = errors.New("not enough players to start")
	ErrWaitingForRolls   = errors.New("waiting for all players to roll")

	// Timing
	ErrMinimumTimeNotMet = errors.New("minimum decision time has not passed")
	ErrNotExpired        = errors.New("bet has not expired yet")

	// Duplicates
	ErrAlreadyDeposited = errors.New("participant already deposited")
	ErrAlreadyJoined    = errors.New("player already joined this game")
	ErrAlreadyRolled    = errors.New("player already rolled")
	ErrAlreadyBet       = errors.New("bettor already placed a group bet on this bet")
	ErrAlreadyWithdrawn = errors.New("winnings already withdrawn")
	ErrPrizeClaimed     = errors.New("prize already claimed")
	ErrAlreadyRefunded  = errors.New("entry fee already refunded")
	ErrArbiterFeePaid   = errors.New("arbiter fee already paid")
	ErrNothingToRefund  = errors.New("caller has no deposit to refund")
	ErrBetIDTaken       = errors.New("an escrow account with this id already exists")

	// Capacity
	ErrGameFull = errors.New("game is full")

	// Validation
	ErrInvalidWinner     = errors.New("winner must be one of the participants")
	ErrInvalidChoice     = errors.New("choice must be one of the participants")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidMaxPlayers = errors.New("max players must be between 2 and 6")
	ErrInvalidWallet     = errors.New("invalid wallet address")

	// Accounting
	ErrInsufficientEscrow = errors.New("transfer exceeds escrow balance")
	ErrUnconfirmedTx      = errors.New("transaction not confirmed on chain")
)
