package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"vault-betting/internal/models"
	"vault-betting/internal/repository"
)

func TestSplitPool(t *testing.T) {
	tests := []struct {
		name   string
		pool   uint64
		feeBps uint16
		payout uint64
		fee    uint64
	}{
		{"two party 0.2 SOL pool", 200_000_000, TwoPartyFeeBps, 160_000_000, 40_000_000},
		{"dice 6 SOL pool", 6_000_000_000, DiceFeeBps, 5_850_000_000, 150_000_000},
		{"arbiter cut", 200_000_000, ArbiterFeeBps, 196_000_000, 4_000_000},
		{"zero pool", 0, TwoPartyFeeBps, 0, 0},
		{"truncation favors payout side", 3, TwoPartyFeeBps, 3, 0},
		{"odd lamports", 1001, DiceFeeBps, 976, 25},
		{"9.2M SOL pool", 1 << 63, TwoPartyFeeBps, 7_378_697_629_483_820_647, 1_844_674_407_370_955_161},
		{"max pool", math.MaxUint64, DiceFeeBps, 17_985_575_471_866_812_825, 461_168_601_842_738_790},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payout, fee := SplitPool(tt.pool, tt.feeBps)
			if payout != tt.payout || fee != tt.fee {
				t.Errorf("SplitPool(%d, %d) = (%d, %d), want (%d, %d)",
					tt.pool, tt.feeBps, payout, fee, tt.payout, tt.fee)
			}
			if payout+fee != tt.pool {
				t.Errorf("payout %d + fee %d != pool %d", payout, fee, tt.pool)
			}
		})
	}
}

func TestProRataShare(t *testing.T) {
	if got := ProRataShare(800, 100, 400); got != 200 {
		t.Errorf("ProRataShare(800, 100, 400) = %d, want 200", got)
	}
	if got := ProRataShare(800, 0, 400); got != 0 {
		t.Errorf("zero stake should pay zero, got %d", got)
	}
	if got := ProRataShare(800, 100, 0); got != 0 {
		t.Errorf("zero stake total should pay zero, got %d", got)
	}
	// Realistic lamport amounts: half the winning side of a 10 SOL pool
	// gets exactly 5 SOL. The product exceeds 64 bits.
	if got := ProRataShare(10_000_000_000, 5_000_000_000, 10_000_000_000); got != 5_000_000_000 {
		t.Errorf("ProRataShare(10e9, 5e9, 10e9) = %d, want 5000000000", got)
	}
	// A stake covering the whole winning side takes the whole pool.
	if got := ProRataShare(10_000_000_000, 4_000_000_000, 4_000_000_000); got != 10_000_000_000 {
		t.Errorf("full-side stake should take the pool, got %d", got)
	}
	if got := ProRataShare(math.MaxUint64, math.MaxUint64-1, math.MaxUint64); got != math.MaxUint64-1 {
		t.Errorf("max-value share = %d, want %d", got, uint64(math.MaxUint64-1))
	}
	// Truncated shares never sum above the pool.
	pool := uint64(1000)
	stakes := []uint64{333, 333, 334}
	var total, sum uint64
	for _, s := range stakes {
		total += s
	}
	for _, s := range stakes {
		sum += ProRataShare(pool, s, total)
	}
	if sum > pool {
		t.Errorf("pro rata shares sum %d exceeds pool %d", sum, pool)
	}
}

func TestTransferFailsClosed(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewRepository(db)
	ss := NewSettlementService(repo)
	ctx := context.Background()

	wallet := testWallet(1)

	if _, err := ss.Deposit(ctx, models.EscrowAccountKindBet, 1, models.EscrowEntryTypeDeposit, wallet, 100, "sig"); err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}

	// Exceeding the tracked balance is rejected.
	if _, err := ss.Transfer(ctx, models.EscrowAccountKindBet, 1, models.EscrowEntryTypePayout, wallet, 101); !errors.Is(err, ErrInsufficientEscrow) {
		t.Fatalf("expected ErrInsufficientEscrow, got %v", err)
	}

	// Exactly the balance drains the account.
	if _, err := ss.Transfer(ctx, models.EscrowAccountKindBet, 1, models.EscrowEntryTypePayout, wallet, 100); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	balance, err := repo.EscrowBalance(ctx, models.EscrowAccountKindBet, 1)
	if err != nil {
		t.Fatalf("EscrowBalance failed: %v", err)
	}
	if balance != 0 {
		t.Errorf("expected drained balance 0, got %d", balance)
	}

	// Drained account rejects even one lamport.
	if _, err := ss.Transfer(ctx, models.EscrowAccountKindBet, 1, models.EscrowEntryTypePayout, wallet, 1); !errors.Is(err, ErrInsufficientEscrow) {
		t.Fatalf("expected ErrInsufficientEscrow on drained account, got %v", err)
	}
}

func TestEscrowAccountsAreIsolated(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewRepository(db)
	ss := NewSettlementService(repo)
	ctx := context.Background()

	wallet := testWallet(2)

	// Same numeric id under different kinds must not share funds.
	if _, err := ss.Deposit(ctx, models.EscrowAccountKindBet, 7, models.EscrowEntryTypeDeposit, wallet, 500, "sig1"); err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}
	if _, err := ss.Deposit(ctx, models.EscrowAccountKindGroup, 7, models.EscrowEntryTypeGroupStake, wallet, 50, "sig2"); err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}

	if _, err := ss.Transfer(ctx, models.EscrowAccountKindGroup, 7, models.EscrowEntryTypePayout, wallet, 500); !errors.Is(err, ErrInsufficientEscrow) {
		t.Fatalf("group sub-pool paid out of the primary pool: %v", err)
	}

	betBalance, _ := repo.EscrowBalance(ctx, models.EscrowAccountKindBet, 7)
	groupBalance, _ := repo.EscrowBalance(ctx, models.EscrowAccountKindGroup, 7)
	if betBalance != 500 || groupBalance != 50 {
		t.Errorf("expected balances (500, 50), got (%d, %d)", betBalance, groupBalance)
	}
}

func TestPlayerStatsRowsPerWallet(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewRepository(db)
	ctx := context.Background()

	// First lookup creates an empty row.
	stats, err := repo.GetPlayerStats(ctx, testWallet(3))
	if err != nil {
		t.Fatalf("GetPlayerStats failed: %v", err)
	}
	if stats.TotalBets != 0 || stats.Wins != 0 {
		t.Errorf("fresh stats row not zeroed: %+v", stats)
	}

	// Upserts for distinct wallets must land on distinct rows.
	if err := repo.IncrementPlayerStats(ctx, testWallet(3), 1, 1, 0, 100, 80); err != nil {
		t.Fatalf("IncrementPlayerStats failed: %v", err)
	}
	if err := repo.IncrementPlayerStats(ctx, testWallet(4), 1, 0, 1, 100, 0); err != nil {
		t.Fatalf("IncrementPlayerStats for second wallet failed: %v", err)
	}

	first, err := repo.GetPlayerStats(ctx, testWallet(3))
	if err != nil {
		t.Fatalf("GetPlayerStats failed: %v", err)
	}
	second, err := repo.GetPlayerStats(ctx, testWallet(4))
	if err != nil {
		t.Fatalf("GetPlayerStats failed: %v", err)
	}
	if first.Wins != 1 || first.TotalWon != 80 {
		t.Errorf("first wallet stats wrong: %+v", first)
	}
	if second.Losses != 1 || second.TotalBets != 1 {
		t.Errorf("second wallet stats wrong: %+v", second)
	}
	if first.ID == second.ID {
		t.Errorf("stats rows share a primary key")
	}
}
