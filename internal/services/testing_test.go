package services

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"vault-betting/internal/models"
	"vault-betting/internal/repository"

	"github.com/mr-tron/base58"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter int64

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Each test gets its own named in-memory database; cache=shared keeps
	// it alive across the connections gorm pools.
	name := fmt.Sprintf("file:svc_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBCounter, 1))
	db, err := gorm.Open(sqlite.Open(name), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.PlayerStats{},
		&models.BetAccount{},
		&models.GroupBetAccount{},
		&models.GameAccount{},
		&models.GamePlayer{},
		&models.EscrowEntry{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

// testWallet returns a distinct valid base58 address per fill byte.
func testWallet(b byte) string {
	return base58.Encode(bytes.Repeat([]byte{b}, 32))
}

// fakeVault satisfies VaultBinding without touching the chain. Every
// deposit verifies unless confirm is flipped off.
type fakeVault struct {
	confirm bool
}

func newFakeVault() *fakeVault {
	return &fakeVault{confirm: true}
}

func (f *fakeVault) BetAddress(betID uint64) (string, uint8, error) {
	return fmt.Sprintf("bet-escrow-%d", betID), 255, nil
}

func (f *fakeVault) GroupBetAddress(betID uint64, bettor string) (string, uint8, error) {
	return fmt.Sprintf("group-escrow-%d-%s", betID, bettor), 254, nil
}

func (f *fakeVault) GameAddress(gameID uint64) (string, uint8, error) {
	return fmt.Sprintf("game-escrow-%d", gameID), 253, nil
}

func (f *fakeVault) VerifyEscrowDeposit(ctx context.Context, signature, wallet, escrowAddress string, amount uint64) (bool, error) {
	return f.confirm, nil
}

// testClock is a controllable time source for the timing gates.
type testClock struct {
	current time.Time
}

func newTestClock() *testClock {
	return &testClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	return c.current
}

func (c *testClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

type betFixture struct {
	repo       *repository.Repository
	settlement *SettlementService
	vault      *fakeVault
	clock      *testClock
	bets       *BetService
	groups     *GroupBetService
}

func newBetFixture(t *testing.T) *betFixture {
	t.Helper()

	db := setupTestDB(t)
	repo := repository.NewRepository(db)
	settlement := NewSettlementService(repo)
	vault := newFakeVault()
	clock := newTestClock()

	bets := NewBetService(repo, settlement, vault, DefaultBetExpiry)
	bets.now = clock.Now
	groups := NewGroupBetService(repo, settlement, vault)

	return &betFixture{
		repo:       repo,
		settlement: settlement,
		vault:      vault,
		clock:      clock,
		bets:       bets,
		groups:     groups,
	}
}

type gameFixture struct {
	repo       *repository.Repository
	settlement *SettlementService
	vault      *fakeVault
	clock      *testClock
	dice       *ScriptedDiceSource
	games      *GameService
}

func newGameFixture(t *testing.T, rolls ...models.RollResult) *gameFixture {
	t.Helper()

	db := setupTestDB(t)
	repo := repository.NewRepository(db)
	settlement := NewSettlementService(repo)
	vault := newFakeVault()
	clock := newTestClock()
	dice := &ScriptedDiceSource{Rolls: rolls}

	games := NewGameService(repo, settlement, vault, dice, DefaultGameExpiry, DefaultGameStallTimeout)
	games.now = clock.Now

	return &gameFixture{
		repo:       repo,
		settlement: settlement,
		vault:      vault,
		clock:      clock,
		dice:       dice,
		games:      games,
	}
}

// fundBet walks a fresh bet through creation and both deposits.
func (f *betFixture) fundBet(t *testing.T, betID uint64, a, b, arbiter string, amount uint64, minDecision int64) *models.BetAccount {
	t.Helper()
	ctx := context.Background()

	_, err := f.bets.CreateTwoPartyBet(ctx, a, &models.CreateBetRequest{
		BetID:           betID,
		ParticipantB:    b,
		Arbiter:         arbiter,
		BetAmount:       amount,
		MinDecisionTime: minDecision,
	})
	if err != nil {
		t.Fatalf("CreateTwoPartyBet failed: %v", err)
	}

	if _, err := f.bets.DepositBetFunds(ctx, a, betID, "sig-a"); err != nil {
		t.Fatalf("deposit A failed: %v", err)
	}
	bet, err := f.bets.DepositBetFunds(ctx, b, betID, "sig-b")
	if err != nil {
		t.Fatalf("deposit B failed: %v", err)
	}
	return bet
}
