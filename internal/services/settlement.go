package services

import (
	"context"
	"fmt"
	"log"
	"math/bits"

	"vault-betting/internal/models"
	"vault-betting/internal/repository"

	"github.com/google/uuid"
)

// Fee rates in basis points, applied at payout time with integer
// arithmetic on lamports. Rounding truncates toward zero; the remainder
// stays with the pool so a payout never creates a shortfall.
const (
	TwoPartyFeeBps uint16 = 2000 // 20%
	DiceFeeBps     uint16 = 250  // 2.5%
	ArbiterFeeBps  uint16 = 200  // 2%
	bpsDenominator uint64 = 10000
)

// SplitPool splits a pool into (payout, fee) such that payout+fee == pool
// exactly. The fee truncates toward zero. The product is taken in 128
// bits so lamport amounts never overflow.
func SplitPool(pool uint64, feeBps uint16) (payout uint64, fee uint64) {
	if uint64(feeBps) >= bpsDenominator {
		return 0, pool
	}
	hi, lo := bits.Mul64(pool, uint64(feeBps))
	fee, _ = bits.Div64(hi, lo, bpsDenominator)
	return pool - fee, fee
}

// ProRataShare computes floor(pool * stake / stakeTotal) in 128-bit
// arithmetic. Used for group-bet settlement; the truncated remainder
// stays with the treasury. A stake covering the whole winning side gets
// the whole pool.
func ProRataShare(pool, stake, stakeTotal uint64) uint64 {
	if stakeTotal == 0 {
		return 0
	}
	if stake >= stakeTotal {
		return pool
	}
	hi, lo := bits.Mul64(pool, stake)
	share, _ := bits.Div64(hi, lo, stakeTotal)
	return share
}

// SettlementService performs the irreversible transfers out of escrow.
// It is the only path that moves funds, and it fails closed: a transfer
// that would push the tracked escrow balance negative is rejected.
type SettlementService struct {
	repo *repository.Repository
}

func NewSettlementService(repo *repository.Repository) *SettlementService {
	return &SettlementService{repo: repo}
}

// WithTx returns a settlement service bound to a transactional repository,
// so ledger entries commit or roll back with the state change they settle.
func (ss *SettlementService) WithTx(repo *repository.Repository) *SettlementService {
	return &SettlementService{repo: repo}
}

// Transfer records an outbound escrow entry after checking that the
// account's ledger can cover it.
func (ss *SettlementService) Transfer(
	ctx context.Context,
	kind models.EscrowAccountKind,
	accountID uint64,
	entryType models.EscrowEntryType,
	wallet string,
	amount uint64,
) (*models.EscrowEntry, error) {
	balance, err := ss.repo.EscrowBalance(ctx, kind, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute escrow balance: %w", err)
	}

	if amount > balance {
		log.Printf("[Settlement] Rejected %s of %d lamports from %s/%d (balance %d)",
			entryType, amount, kind, accountID, balance)
		return nil, ErrInsufficientEscrow
	}

	entry := &models.EscrowEntry{
		ID:          uuid.New(),
		AccountKind: kind,
		AccountID:   accountID,
		EntryType:   entryType,
		Wallet:      wallet,
		Amount:      amount,
	}

	if err := ss.repo.CreateEscrowEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record escrow entry: %w", err)
	}

	log.Printf("[Settlement] %s %d lamports from %s/%d to %s",
		entryType, amount, kind, accountID, wallet)

	return entry, nil
}

// Deposit records an inbound escrow entry backed by a verified on-chain
// transfer signature.
func (ss *SettlementService) Deposit(
	ctx context.Context,
	kind models.EscrowAccountKind,
	accountID uint64,
	entryType models.EscrowEntryType,
	wallet string,
	amount uint64,
	signature string,
) (*models.EscrowEntry, error) {
	entry := &models.EscrowEntry{
		ID:          uuid.New(),
		AccountKind: kind,
		AccountID:   accountID,
		EntryType:   entryType,
		Wallet:      wallet,
		Amount:      amount,
		TxSignature: &signature,
	}

	if err := ss.repo.CreateEscrowEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record deposit: %w", err)
	}

	return entry, nil
}
