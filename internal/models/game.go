package models

import (
	"time"

	"github.com/google/uuid"
)

type GameStatus string

const (
	GameStatusWaitingForPlayers GameStatus = "WAITING_FOR_PLAYERS"
	GameStatusActive            GameStatus = "ACTIVE"
	GameStatusCompleted         GameStatus = "COMPLETED"
	GameStatusCancelled         GameStatus = "CANCELLED"
)

const (
	MinPlayers = 2
	MaxPlayers = 6
)

// GameAccount is a multi-party dice game pooling equal entry fees.
// Resolution is arbiter-free: totals are compared the moment the last
// pending roll lands, or the stall path fires.
type GameAccount struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	GameID         uint64     `gorm:"uniqueIndex;not null" json:"game_id"`
	Creator        string     `gorm:"size:64;not null;index" json:"creator"`
	EntryFee       uint64     `gorm:"not null" json:"entry_fee"`
	MaxPlayers     int        `gorm:"not null" json:"max_players"`
	CurrentPlayers int        `gorm:"not null;default:0" json:"current_players"`
	TotalPool      uint64     `gorm:"not null;default:0" json:"total_pool"`
	Status         GameStatus `gorm:"size:50;not null;default:WAITING_FOR_PLAYERS;index" json:"status"`
	Winner         *string    `gorm:"size:64" json:"winner"`
	PrizeClaimed   bool       `gorm:"not null;default:false" json:"prize_claimed"`
	PDAAddress     string     `gorm:"size:64;not null" json:"pda_address"`
	PDABump        uint8      `gorm:"not null" json:"pda_bump"`
	CreatedAt      time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	StartedAt      *time.Time `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	UpdatedAt      time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`

	Players []GamePlayer `gorm:"foreignKey:GameID;references:GameID" json:"players,omitempty"`
}

func (GameAccount) TableName() string {
	return "game_accounts"
}

// GamePlayer is one occupied seat in a game. The roll columns are the
// player's slot: nil until the player rolls, set exactly once.
type GamePlayer struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	GameID    uint64     `gorm:"not null;index:idx_game_player,unique" json:"game_id"`
	Wallet    string     `gorm:"size:64;not null;index:idx_game_player,unique" json:"wallet"`
	SeatIndex int        `gorm:"not null" json:"seat_index"`
	Die1      *uint8     `json:"die1"`
	Die2      *uint8     `json:"die2"`
	Total     *uint8     `json:"total"`
	RolledAt  *time.Time `json:"rolled_at"`
	Refunded  bool       `gorm:"not null;default:false" json:"refunded"`
	JoinedAt  time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"joined_at"`
}

func (GamePlayer) TableName() string {
	return "game_players"
}

// HasRolled reports whether this seat's roll slot is occupied.
func (p *GamePlayer) HasRolled() bool {
	return p.Total != nil
}

// CreateGameRequest is the payload for creating a multi-party game.
// The creator takes seat 0 and pays the entry fee at creation.
type CreateGameRequest struct {
	GameID     uint64 `json:"game_id" binding:"required"`
	EntryFee   uint64 `json:"entry_fee" binding:"required"`
	MaxPlayers int    `json:"max_players" binding:"required"`
	Signature  string `json:"signature" binding:"required"`
}

// JoinGameRequest carries the entry-fee transfer signature.
type JoinGameRequest struct {
	Signature string `json:"signature" binding:"required"`
}

// RollResult is the outcome of a single dice roll.
type RollResult struct {
	Die1  uint8 `json:"die1"`
	Die2  uint8 `json:"die2"`
	Total uint8 `json:"total"`
}
