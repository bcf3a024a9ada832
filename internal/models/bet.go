package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BetStatus string

const (
	BetStatusWaitingForDeposits BetStatus = "WAITING_FOR_DEPOSITS"
	BetStatusActive             BetStatus = "ACTIVE"
	BetStatusCompleted          BetStatus = "COMPLETED"
	BetStatusRefunded           BetStatus = "REFUNDED"
	BetStatusCancelled          BetStatus = "CANCELLED"
)

// BetAccount is the canonical record for a two-party wager held in escrow.
// Funds live in the bet's PDA between deposit and settlement; this row is
// the single source of truth for its lifecycle.
type BetAccount struct {
	ID                    uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	BetID                 uint64     `gorm:"uniqueIndex;not null" json:"bet_id"`
	ParticipantA          string     `gorm:"size:64;not null;index" json:"participant_a"`
	ParticipantB          string     `gorm:"size:64;not null;index" json:"participant_b"`
	Arbiter               string     `gorm:"size:64;not null;index" json:"arbiter"`
	BetAmount             uint64     `gorm:"not null" json:"bet_amount"`
	MinDecisionTime       int64      `gorm:"not null" json:"min_decision_time"` // seconds after activation
	ParticipantADeposited bool       `gorm:"not null;default:false" json:"participant_a_deposited"`
	ParticipantBDeposited bool       `gorm:"not null;default:false" json:"participant_b_deposited"`
	TotalPool             uint64     `gorm:"not null;default:0" json:"total_pool"`
	Status                BetStatus  `gorm:"size:50;not null;default:WAITING_FOR_DEPOSITS;index" json:"status"`
	Winner                *string    `gorm:"size:64" json:"winner"`
	Withdrawn             bool       `gorm:"not null;default:false" json:"withdrawn"`
	ArbiterFeePaid        bool       `gorm:"not null;default:false" json:"arbiter_fee_paid"`
	GroupBetsSettled      bool       `gorm:"not null;default:false" json:"group_bets_settled"`
	PDAAddress            string     `gorm:"size:64;not null" json:"pda_address"`
	PDABump               uint8      `gorm:"not null" json:"pda_bump"`
	CreatedAt             time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	ActivatedAt           *time.Time `json:"activated_at"`
	CompletedAt           *time.Time `json:"completed_at"`
	UpdatedAt             time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (BetAccount) TableName() string {
	return "bet_accounts"
}

// DepositedCount returns how many of the two participants have funded.
func (b *BetAccount) DepositedCount() int {
	n := 0
	if b.ParticipantADeposited {
		n++
	}
	if b.ParticipantBDeposited {
		n++
	}
	return n
}

// IsParticipant reports whether wallet is one of the two named parties.
func (b *BetAccount) IsParticipant(wallet string) bool {
	return wallet == b.ParticipantA || wallet == b.ParticipantB
}

// GroupBetAccount is a side wager by a third party on one of the two
// participants of an active bet. One row per (bet_id, bettor).
type GroupBetAccount struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BetID     uint64    `gorm:"not null;index:idx_group_bet_bettor,unique" json:"bet_id"`
	Bettor    string    `gorm:"size:64;not null;index:idx_group_bet_bettor,unique" json:"bettor"`
	Choice    string    `gorm:"size:64;not null" json:"choice"`
	Amount    uint64    `gorm:"not null" json:"amount"`
	Claimed   bool      `gorm:"not null;default:false" json:"claimed"`
	Payout    uint64    `gorm:"not null;default:0" json:"payout"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	ClaimedAt *time.Time `json:"claimed_at"`
}

func (GroupBetAccount) TableName() string {
	return "group_bet_accounts"
}

// CreateBetRequest is the payload for creating a two-party bet.
type CreateBetRequest struct {
	BetID           uint64 `json:"bet_id" binding:"required"`
	ParticipantB    string `json:"participant_b" binding:"required"`
	Arbiter         string `json:"arbiter" binding:"required"`
	BetAmount       uint64 `json:"bet_amount" binding:"required"`
	MinDecisionTime int64  `json:"min_decision_time"`
}

// DepositRequest carries the on-chain transfer signature backing a deposit.
type DepositRequest struct {
	Signature string `json:"signature" binding:"required"`
}

// DeclareWinnerRequest names the winning participant.
type DeclareWinnerRequest struct {
	Winner string `json:"winner" binding:"required"`
}

// PlaceGroupBetRequest is the payload for a side bet on an active bet.
type PlaceGroupBetRequest struct {
	Choice    string `json:"choice" binding:"required"`
	Amount    uint64 `json:"amount" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// BetResponse is the API shape of a bet, with SOL-denominated amounts.
type BetResponse struct {
	ID              string          `json:"id"`
	BetID           uint64          `json:"bet_id"`
	ParticipantA    string          `json:"participant_a"`
	ParticipantB    string          `json:"participant_b"`
	Arbiter         string          `json:"arbiter"`
	BetAmount       uint64          `json:"bet_amount"`
	BetAmountSOL    decimal.Decimal `json:"bet_amount_sol"`
	TotalPool       uint64          `json:"total_pool"`
	TotalPoolSOL    decimal.Decimal `json:"total_pool_sol"`
	Status          BetStatus       `json:"status"`
	Winner          *string         `json:"winner"`
	PDAAddress      string          `json:"pda_address"`
	MinDecisionTime int64           `json:"min_decision_time"`
	CreatedAt       time.Time       `json:"created_at"`
	ActivatedAt     *time.Time      `json:"activated_at"`
	CompletedAt     *time.Time      `json:"completed_at"`
}

const lamportsPerSOL = 1_000_000_000

// LamportsToSOL converts an integer lamport amount to a SOL decimal for
// API responses. Custody math never uses this; it stays in lamports.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromUint64(lamports).Div(decimal.NewFromInt(lamportsPerSOL))
}

// ToResponse converts a BetAccount to its API representation.
func (b *BetAccount) ToResponse() *BetResponse {
	return &BetResponse{
		ID:              b.ID.String(),
		BetID:           b.BetID,
		ParticipantA:    b.ParticipantA,
		ParticipantB:    b.ParticipantB,
		Arbiter:         b.Arbiter,
		BetAmount:       b.BetAmount,
		BetAmountSOL:    LamportsToSOL(b.BetAmount),
		TotalPool:       b.TotalPool,
		TotalPoolSOL:    LamportsToSOL(b.TotalPool),
		Status:          b.Status,
		Winner:          b.Winner,
		PDAAddress:      b.PDAAddress,
		MinDecisionTime: b.MinDecisionTime,
		CreatedAt:       b.CreatedAt,
		ActivatedAt:     b.ActivatedAt,
		CompletedAt:     b.CompletedAt,
	}
}
