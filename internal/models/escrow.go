package models

import (
	"time"

	"github.com/google/uuid"
)

type EscrowEntryType string

const (
	EscrowEntryTypeDeposit    EscrowEntryType = "DEPOSIT"
	EscrowEntryTypePayout     EscrowEntryType = "PAYOUT"
	EscrowEntryTypeRefund     EscrowEntryType = "REFUND"
	EscrowEntryTypeFee        EscrowEntryType = "FEE"
	EscrowEntryTypeArbiterFee EscrowEntryType = "ARBITER_FEE"
	EscrowEntryTypeGroupStake EscrowEntryType = "GROUP_STAKE"
)

type EscrowAccountKind string

const (
	EscrowAccountKindBet   EscrowAccountKind = "BET"
	EscrowAccountKindGame  EscrowAccountKind = "GAME"
	EscrowAccountKindGroup EscrowAccountKind = "GROUP"
)

// EscrowEntry is one movement of lamports into or out of an escrow
// account. The signed ledger over these rows is the account's tracked
// balance; every payout path checks it before moving funds.
type EscrowEntry struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	AccountKind EscrowAccountKind `gorm:"size:20;not null;index:idx_escrow_account" json:"account_kind"`
	AccountID   uint64            `gorm:"not null;index:idx_escrow_account" json:"account_id"`
	EntryType   EscrowEntryType   `gorm:"size:50;not null" json:"entry_type"`
	Wallet      string            `gorm:"size:64;not null;index" json:"wallet"`
	Amount      uint64            `gorm:"not null" json:"amount"`
	TxSignature *string           `gorm:"size:128" json:"tx_signature"`
	CreatedAt   time.Time         `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (EscrowEntry) TableName() string {
	return "escrow_entries"
}

// Inbound reports whether this entry adds lamports to the escrow account.
func (e *EscrowEntry) Inbound() bool {
	switch e.EntryType {
	case EscrowEntryTypeDeposit, EscrowEntryTypeGroupStake:
		return true
	}
	return false
}

// PlayerStats tracks per-wallet lifetime wager outcomes across both
// two-party bets and dice games.
type PlayerStats struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Wallet       string    `gorm:"uniqueIndex;size:64;not null" json:"wallet"`
	TotalBets    int64     `gorm:"default:0" json:"total_bets"`
	Wins         int64     `gorm:"default:0" json:"wins"`
	Losses       int64     `gorm:"default:0" json:"losses"`
	TotalWagered int64     `gorm:"default:0" json:"total_wagered"`
	TotalWon     int64     `gorm:"default:0" json:"total_won"`
	WinRate      float64   `gorm:"type:decimal(5,2);default:0" json:"win_rate"`
	UpdatedAt    time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (PlayerStats) TableName() string {
	return "player_stats"
}
