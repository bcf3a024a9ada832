package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"vault-betting/internal/models"

	"gorm.io/gorm"
)

func TestCreateGameSeatsAndFundsCreator(t *testing.T) {
	f := newGameFixture(t)
	ctx := context.Background()

	creator := testWallet(1)

	game, err := f.games.CreateGame(ctx, creator, &models.CreateGameRequest{
		GameID:     1,
		EntryFee:   1_000_000_000,
		MaxPlayers: 4,
		Signature:  "sig-creator",
	})
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}

	if game.CurrentPlayers != 1 || game.TotalPool != 1_000_000_000 {
		t.Errorf("creator must be seated and funded: players %d, pool %d",
			game.CurrentPlayers, game.TotalPool)
	}
	if game.Status != models.GameStatusWaitingForPlayers {
		t.Errorf("expected WAITING_FOR_PLAYERS, got %s", game.Status)
	}

	loaded, err := f.games.GetGame(ctx, 1)
	if err != nil {
		t.Fatalf("GetGame failed: %v", err)
	}
	if len(loaded.Players) != 1 || loaded.Players[0].SeatIndex != 0 || loaded.Players[0].Wallet != creator {
		t.Errorf("creator not in seat 0: %+v", loaded.Players)
	}

	// Player count bounds.
	for _, max := range []int{1, 7} {
		_, err := f.games.CreateGame(ctx, creator, &models.CreateGameRequest{
			GameID:     99,
			EntryFee:   1,
			MaxPlayers: max,
			Signature:  "sig",
		})
		if !errors.Is(err, ErrInvalidMaxPlayers) {
			t.Errorf("max_players %d: expected ErrInvalidMaxPlayers, got %v", max, err)
		}
	}
}

func TestJoinGameAutoStart(t *testing.T) {
	f := newGameFixture(t)
	ctx := context.Background()

	creator, p2 := testWallet(1), testWallet(2)

	_, err := f.games.CreateGame(ctx, creator, &models.CreateGameRequest{
		GameID:     2,
		EntryFee:   500,
		MaxPlayers: 2,
		Signature:  "sig-1",
	})
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}

	// One seat per wallet.
	if _, err := f.games.JoinGame(ctx, creator, 2, "sig-dup"); !errors.Is(err, ErrAlreadyJoined) {
		t.Fatalf("expected ErrAlreadyJoined, got %v", err)
	}

	game, err := f.games.JoinGame(ctx, p2, 2, "sig-2")
	if err != nil {
		t.Fatalf("JoinGame failed: %v", err)
	}

	// Filling the last seat starts the game without a separate call.
	if game.Status != models.GameStatusActive {
		t.Errorf("expected auto-start at max players, got %s", game.Status)
	}
	if game.StartedAt == nil {
		t.Errorf("start must stamp the stall clock")
	}
	if game.TotalPool != 1000 {
		t.Errorf("expected pool 1000, got %d", game.TotalPool)
	}

	// A full, started game accepts no more joins.
	if _, err := f.games.JoinGame(ctx, testWallet(3), 2, "sig-3"); !errors.Is(err, ErrInvalidGameStatus) {
		t.Fatalf("expected ErrInvalidGameStatus, got %v", err)
	}
}

func TestStartGameEarly(t *testing.T) {
	f := newGameFixture(t)
	ctx := context.Background()

	creator, p2 := testWallet(1), testWallet(2)

	_, err := f.games.CreateGame(ctx, creator, &models.CreateGameRequest{
		GameID:     3,
		EntryFee:   500,
		MaxPlayers: 6,
		Signature:  "sig-1",
	})
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}

	// Two funded seats minimum.
	if _, err := f.games.StartGame(ctx, creator, 3); !errors.Is(err, ErrNotEnoughPlayers) {
		t.Fatalf("expected ErrNotEnoughPlayers, got %v", err)
	}

	if _, err := f.games.JoinGame(ctx, p2, 3, "sig-2"); err != nil {
		t.Fatalf("JoinGame failed: %v", err)
	}

	// Creator only.
	if _, err := f.games.StartGame(ctx, p2, 3); !errors.Is(err, ErrNotCreator) {
		t.Fatalf("expected ErrNotCreator, got %v", err)
	}

	game, err := f.games.StartGame(ctx, creator, 3)
	if err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}
	if game.Status != models.GameStatusActive {
		t.Errorf("expected ACTIVE, got %s", game.Status)
	}
}

func TestRollResolvesOnLastRoll(t *testing.T) {
	f := newGameFixture(t,
		models.RollResult{Die1: 2, Die2: 3, Total: 5},
		models.RollResult{Die1: 6, Die2: 5, Total: 11},
		models.RollResult{Die1: 1, Die2: 1, Total: 2},
	)
	ctx := context.Background()

	p1, p2, p3 := testWallet(1), testWallet(2), testWallet(3)

	_, err := f.games.CreateGame(ctx, p1, &models.CreateGameRequest{
		GameID:     4,
		EntryFee:   2_000_000_000,
		MaxPlayers: 3,
		Signature:  "sig-1",
	})
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	if _, err := f.games.JoinGame(ctx, p2, 4, "sig-2"); err != nil {
		t.Fatalf("JoinGame failed: %v", err)
	}
	if _, err := f.games.JoinGame(ctx, p3, 4, "sig-3"); err != nil {
		t.Fatalf("JoinGame failed: %v", err)
	}

	// Outsiders cannot roll.
	if _, _, err := f.games.RollDice(ctx, testWallet(9), 4); !errors.Is(err, ErrNotAParticipant) {
		t.Fatalf("expected ErrNotAParticipant, got %v", err)
	}

	roll, game, err := f.games.RollDice(ctx, p1, 4)
	if err != nil {
		t.Fatalf("RollDice failed: %v", err)
	}
	if roll.Total != 5 {
		t.Errorf("expected scripted total 5, got %d", roll.Total)
	}
	if game.Status != models.GameStatusActive {
		t.Errorf("game must stay active until all rolled, got %s", game.Status)
	}

	// One roll per seat.
	if _, _, err := f.games.RollDice(ctx, p1, 4); !errors.Is(err, ErrAlreadyRolled) {
		t.Fatalf("expected ErrAlreadyRolled, got %v", err)
	}

	// Finalize refuses while rolls are pending.
	if _, err := f.games.FinalizeGame(ctx, 4); !errors.Is(err, ErrWaitingForRolls) {
		t.Fatalf("expected ErrWaitingForRolls, got %v", err)
	}

	f.clock.Advance(time.Second)
	if _, _, err := f.games.RollDice(ctx, p2, 4); err != nil {
		t.Fatalf("RollDice failed: %v", err)
	}

	f.clock.Advance(time.Second)
	_, game, err = f.games.RollDice(ctx, p3, 4)
	if err != nil {
		t.Fatalf("RollDice failed: %v", err)
	}

	// Last roll resolves in the same call.
	if game.Status != models.GameStatusCompleted {
		t.Fatalf("expected COMPLETED after last roll, got %s", game.Status)
	}
	if game.Winner == nil || *game.Winner != p2 {
		t.Errorf("expected winner %s (total 11), got %v", p2, game.Winner)
	}
}

func TestTieBreakIsDeterministic(t *testing.T) {
	// Two players tie on total; the earlier roll wins.
	f := newGameFixture(t,
		models.RollResult{Die1: 4, Die2: 4, Total: 8},
		models.RollResult{Die1: 5, Die2: 3, Total: 8},
	)
	ctx := context.Background()

	p1, p2 := testWallet(1), testWallet(2)

	_, err := f.games.CreateGame(ctx, p1, &models.CreateGameRequest{
		GameID:     5,
		EntryFee:   100,
		MaxPlayers: 2,
		Signature:  "sig-1",
	})
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	if _, err := f.games.JoinGame(ctx, p2, 5, "sig-2"); err != nil {
		t.Fatalf("JoinGame failed: %v", err)
	}

	if _, _, err := f.games.RollDice(ctx, p2, 5); err != nil {
		t.Fatalf("RollDice failed: %v", err)
	}
	f.clock.Advance(time.Minute)
	_, game, err := f.games.RollDice(ctx, p1, 5)
	if err != nil {
		t.Fatalf("RollDice failed: %v", err)
	}

	if game.Winner == nil || *game.Winner != p2 {
		t.Errorf("tie must go to the earlier roll: got %v, want %s", game.Winner, p2)
	}
}

func TestTieBreakSeatIndexOnEqualTimestamps(t *testing.T) {
	// Identical totals and timestamps (the clock does not advance between
	// rolls): the lowest seat index wins.
	f := newGameFixture(t,
		models.RollResult{Die1: 3, Die2: 3, Total: 6},
		models.RollResult{Die1: 2, Die2: 4, Total: 6},
	)
	ctx := context.Background()

	p1, p2 := testWallet(1), testWallet(2)

	_, err := f.games.CreateGame(ctx, p1, &models.CreateGameRequest{
		GameID:     6,
		EntryFee:   100,
		MaxPlayers: 2,
		Signature:  "sig-1",
	})
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	if _, err := f.games.JoinGame(ctx, p2, 6, "sig-2"); err != nil {
		t.Fatalf("JoinGame failed: %v", err)
	}

	if _, _, err := f.games.RollDice(ctx, p2, 6); err != nil {
		t.Fatalf("RollDice failed: %v", err)
	}
	_, game, err := f.games.RollDice(ctx, p1, 6)
	if err != nil {
		t.Fatalf("RollDice failed: %v", err)
	}

	if game.Winner == nil || *game.Winner != p1 {
		t.Errorf("equal timestamps must fall back to seat order: got %v, want %s", game.Winner, p1)
	}
}

func TestClaimPrize(t *testing.T) {
	f := newGameFixture(t,
		models.RollResult{Die1: 6, Die2: 6, Total: 12},
		models.RollResult{Die1: 1, Die2: 2, Total: 3},
	)
	ctx := context.Background()

	p1, p2 := testWallet(1), testWallet(2)

	_, err := f.games.CreateGame(ctx, p1, &models.CreateGameRequest{
		GameID:     7,
		EntryFee:   1_000_000_000,
		MaxPlayers: 2,
		Signature:  "sig-1",
	})
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	if _, err := f.games.JoinGame(ctx, p2, 7, "sig-2"); err != nil {
		t.Fatalf("JoinGame failed: %v", err)
	}
	if _, _, err := f.games.RollDice(ctx, p1, 7); err != nil {
		t.Fatalf("RollDice failed: %v", err)
	}
	if _, _, err := f.games.RollDice(ctx, p2, 7); err != nil {
		t.Fatalf("RollDice failed: %v", err)
	}

	// Losers cannot claim.
	if _, err := f.games.ClaimPrize(ctx, p2, 7); !errors.Is(err, ErrUnauthorizedWinner) {
		t.Fatalf("expected ErrUnauthorizedWinner, got %v", err)
	}

	entry, err := f.games.ClaimPrize(ctx, p1, 7)
	if err != nil {
		t.Fatalf("ClaimPrize failed: %v", err)
	}

	// Pool 2 SOL, 2.5% fee: winner nets 1.95 SOL.
	if entry.Amount != 1_950_000_000 {
		t.Errorf("expected payout 1950000000, got %d", entry.Amount)
	}

	if _, err := f.games.ClaimPrize(ctx, p1, 7); !errors.Is(err, ErrPrizeClaimed) {
		t.Fatalf("expected ErrPrizeClaimed, got %v", err)
	}

	balance, _ := f.repo.EscrowBalance(ctx, models.EscrowAccountKindGame, 7)
	if balance != 50_000_000 {
		t.Errorf("expected retained fee 50000000, got %d", balance)
	}
}

func TestEmergencyWithdrawStalledGame(t *testing.T) {
	// 6-seat game started early with 3 players; only 2 roll. Past the
	// stall timeout every funded player gets exactly their entry back.
	f := newGameFixture(t,
		models.RollResult{Die1: 1, Die2: 2, Total: 3},
		models.RollResult{Die1: 3, Die2: 4, Total: 7},
	)
	ctx := context.Background()

	p1, p2, p3 := testWallet(1), testWallet(2), testWallet(3)
	entryFee := uint64(500_000_000)

	_, err := f.games.CreateGame(ctx, p1, &models.CreateGameRequest{
		GameID:     8,
		EntryFee:   entryFee,
		MaxPlayers: 6,
		Signature:  "sig-1",
	})
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	if _, err := f.games.JoinGame(ctx, p2, 8, "sig-2"); err != nil {
		t.Fatalf("JoinGame failed: %v", err)
	}
	if _, err := f.games.JoinGame(ctx, p3, 8, "sig-3"); err != nil {
		t.Fatalf("JoinGame failed: %v", err)
	}
	if _, err := f.games.StartGame(ctx, p1, 8); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}

	if _, _, err := f.games.RollDice(ctx, p1, 8); err != nil {
		t.Fatalf("RollDice failed: %v", err)
	}
	if _, _, err := f.games.RollDice(ctx, p2, 8); err != nil {
		t.Fatalf("RollDice failed: %v", err)
	}

	// Before the timeout the stall path stays closed.
	if _, err := f.games.EmergencyWithdraw(ctx, p1, 8); !errors.Is(err, ErrNotExpired) {
		t.Fatalf("expected ErrNotExpired, got %v", err)
	}

	f.clock.Advance(DefaultGameStallTimeout + time.Minute)

	// Players who already rolled can still recover their entry.
	for _, wallet := range []string{p1, p2, p3} {
		if _, err := f.games.EmergencyWithdraw(ctx, wallet, 8); err != nil {
			t.Fatalf("EmergencyWithdraw for %s failed: %v", wallet, err)
		}
	}

	// Once per player.
	if _, err := f.games.EmergencyWithdraw(ctx, p1, 8); !errors.Is(err, ErrAlreadyRefunded) {
		t.Fatalf("expected ErrAlreadyRefunded, got %v", err)
	}

	game, err := f.games.GetGame(ctx, 8)
	if err != nil {
		t.Fatalf("GetGame failed: %v", err)
	}
	if game.Status != models.GameStatusCancelled || game.TotalPool != 0 {
		t.Errorf("after full refund: status %s, pool %d", game.Status, game.TotalPool)
	}

	balance, _ := f.repo.EscrowBalance(ctx, models.EscrowAccountKindGame, 8)
	if balance != 0 {
		t.Errorf("expected empty escrow, got %d", balance)
	}
}

func TestEmergencyWithdrawUnavailableAfterCompletion(t *testing.T) {
	f := newGameFixture(t,
		models.RollResult{Die1: 5, Die2: 5, Total: 10},
		models.RollResult{Die1: 2, Die2: 2, Total: 4},
	)
	ctx := context.Background()

	p1, p2 := testWallet(1), testWallet(2)

	_, err := f.games.CreateGame(ctx, p1, &models.CreateGameRequest{
		GameID:     9,
		EntryFee:   100,
		MaxPlayers: 2,
		Signature:  "sig-1",
	})
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	if _, err := f.games.JoinGame(ctx, p2, 9, "sig-2"); err != nil {
		t.Fatalf("JoinGame failed: %v", err)
	}
	if _, _, err := f.games.RollDice(ctx, p1, 9); err != nil {
		t.Fatalf("RollDice failed: %v", err)
	}
	if _, _, err := f.games.RollDice(ctx, p2, 9); err != nil {
		t.Fatalf("RollDice failed: %v", err)
	}

	f.clock.Advance(48 * time.Hour)
	if _, err := f.games.EmergencyWithdraw(ctx, p2, 9); !errors.Is(err, ErrInvalidGameStatus) {
		t.Fatalf("completed game must not refund, got %v", err)
	}
}

func TestTransitionsReadGameUnderRowLock(t *testing.T) {
	// Every mutating transition loads the game through the locked read, so
	// the locked read must return the same seat view the plain read does.
	f := newGameFixture(t)
	ctx := context.Background()

	p1, p2, p3 := testWallet(1), testWallet(2), testWallet(3)

	_, err := f.games.CreateGame(ctx, p1, &models.CreateGameRequest{
		GameID:     11,
		EntryFee:   100,
		MaxPlayers: 4,
		Signature:  "sig-1",
	})
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	if _, err := f.games.JoinGame(ctx, p2, 11, "sig-2"); err != nil {
		t.Fatalf("JoinGame failed: %v", err)
	}
	if _, err := f.games.JoinGame(ctx, p3, 11, "sig-3"); err != nil {
		t.Fatalf("JoinGame failed: %v", err)
	}

	err = f.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		game, err := f.repo.WithTx(tx).GetGameForUpdate(ctx, 11)
		if err != nil {
			return err
		}
		if len(game.Players) != 3 {
			t.Errorf("locked read lost seats: got %d, want 3", len(game.Players))
		}
		for i, p := range game.Players {
			if p.SeatIndex != i {
				t.Errorf("seat %d out of order: index %d", i, p.SeatIndex)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("locked read failed: %v", err)
	}

	if _, err := f.repo.GetGameForUpdate(ctx, 999); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound for unknown game, got %v", err)
	}
}

func TestEmergencyWithdrawAbandonedLobby(t *testing.T) {
	f := newGameFixture(t)
	ctx := context.Background()

	creator := testWallet(1)

	_, err := f.games.CreateGame(ctx, creator, &models.CreateGameRequest{
		GameID:     10,
		EntryFee:   700,
		MaxPlayers: 4,
		Signature:  "sig-1",
	})
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}

	if _, err := f.games.EmergencyWithdraw(ctx, creator, 10); !errors.Is(err, ErrNotExpired) {
		t.Fatalf("expected ErrNotExpired, got %v", err)
	}

	f.clock.Advance(DefaultGameExpiry + time.Minute)

	game, err := f.games.EmergencyWithdraw(ctx, creator, 10)
	if err != nil {
		t.Fatalf("EmergencyWithdraw failed: %v", err)
	}
	if game.Status != models.GameStatusCancelled {
		t.Errorf("lobby with no funded players left should cancel, got %s", game.Status)
	}
}
