package models

import (
	"time"
)

// User is an authenticated wallet. The wallet address is the identity
// used everywhere in the escrow engine; the row exists for auth and stats.
type User struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	WalletAddress string    `gorm:"uniqueIndex;size:64;not null" json:"wallet_address"`
	Nickname      string    `gorm:"uniqueIndex;not null" json:"nickname"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}
