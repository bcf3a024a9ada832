package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"vault-betting/internal/models"
	"vault-betting/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Timeouts for the dice game refund paths. An unfilled lobby can be
// abandoned after GameExpiry; a started game that never finishes its
// rolls unlocks refunds after GameStallTimeout.
const (
	DefaultGameExpiry       = 24 * time.Hour
	DefaultGameStallTimeout = 1 * time.Hour
)

// GameService drives the multi-party dice game lifecycle. Resolution is
// arbiter-free: the game completes the moment the last pending roll
// lands, or stalls into per-player refunds.
type GameService struct {
	repo       *repository.Repository
	settlement *SettlementService
	vault      VaultBinding
	dice       DiceSource
	expiry     time.Duration
	stall      time.Duration
	now        func() time.Time
}

func NewGameService(
	repo *repository.Repository,
	settlement *SettlementService,
	vault VaultBinding,
	dice DiceSource,
	expiry, stall time.Duration,
) *GameService {
	if expiry <= 0 {
		expiry = DefaultGameExpiry
	}
	if stall <= 0 {
		stall = DefaultGameStallTimeout
	}
	return &GameService{
		repo:       repo,
		settlement: settlement,
		vault:      vault,
		dice:       dice,
		expiry:     expiry,
		stall:      stall,
		now:        time.Now,
	}
}

// CreateGame opens a new dice game. The creator takes seat 0 and pays
// the entry fee in the same call, so a game is never observable with an
// unfunded creator.
func (gs *GameService) CreateGame(
	ctx context.Context,
	creator string,
	req *models.CreateGameRequest,
) (*models.GameAccount, error) {
	if req.EntryFee == 0 {
		return nil, ErrInvalidAmount
	}
	if req.MaxPlayers < models.MinPlayers || req.MaxPlayers > models.MaxPlayers {
		return nil, ErrInvalidMaxPlayers
	}
	if !validWallet(creator) {
		return nil, ErrInvalidWallet
	}

	exists, err := gs.repo.GameIDExists(ctx, req.GameID)
	if err != nil {
		return nil, fmt.Errorf("failed to check game id: %w", err)
	}
	if exists {
		return nil, ErrBetIDTaken
	}

	pdaAddress, bump, err := gs.vault.GameAddress(req.GameID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive escrow address: %w", err)
	}

	ok, err := gs.vault.VerifyEscrowDeposit(ctx, req.Signature, creator, pdaAddress, req.EntryFee)
	if err != nil {
		return nil, fmt.Errorf("failed to verify entry fee: %w", err)
	}
	if !ok {
		return nil, ErrUnconfirmedTx
	}

	var game *models.GameAccount
	err = gs.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := gs.repo.WithTx(tx)

		game = &models.GameAccount{
			ID:             uuid.New(),
			GameID:         req.GameID,
			Creator:        creator,
			EntryFee:       req.EntryFee,
			MaxPlayers:     req.MaxPlayers,
			CurrentPlayers: 1,
			TotalPool:      req.EntryFee,
			Status:         models.GameStatusWaitingForPlayers,
			PDAAddress:     pdaAddress,
			PDABump:        bump,
			CreatedAt:      gs.now(),
		}
		if err := txRepo.CreateGame(ctx, game); err != nil {
			return fmt.Errorf("failed to create game: %w", err)
		}

		seat := &models.GamePlayer{
			ID:        uuid.New(),
			GameID:    req.GameID,
			Wallet:    creator,
			SeatIndex: 0,
			JoinedAt:  gs.now(),
		}
		if err := txRepo.CreateGamePlayer(ctx, seat); err != nil {
			return fmt.Errorf("failed to seat creator: %w", err)
		}

		_, err := gs.settlement.WithTx(txRepo).Deposit(
			ctx, models.EscrowAccountKindGame, req.GameID, models.EscrowEntryTypeDeposit,
			creator, req.EntryFee, req.Signature,
		)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[GameService] Created game %d: creator %s, entry %d lamports, max %d players",
		game.GameID, creator, req.EntryFee, req.MaxPlayers)

	return game, nil
}

// JoinGame seats a new player after verifying their entry-fee transfer.
// Funding and seating are atomic; filling the last seat starts the game.
func (gs *GameService) JoinGame(
	ctx context.Context,
	wallet string,
	gameID uint64,
	signature string,
) (*models.GameAccount, error) {
	game, err := gs.repo.GetGameByGameID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game.Status != models.GameStatusWaitingForPlayers {
		return nil, ErrInvalidGameStatus
	}
	if !validWallet(wallet) {
		return nil, ErrInvalidWallet
	}

	ok, err := gs.vault.VerifyEscrowDeposit(ctx, signature, wallet, game.PDAAddress, game.EntryFee)
	if err != nil {
		return nil, fmt.Errorf("failed to verify entry fee: %w", err)
	}
	if !ok {
		return nil, ErrUnconfirmedTx
	}

	var updated *models.GameAccount
	err = gs.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := gs.repo.WithTx(tx)

		locked, err := txRepo.GetGameForUpdate(ctx, gameID)
		if err != nil {
			return err
		}
		if locked.Status != models.GameStatusWaitingForPlayers {
			return ErrInvalidGameStatus
		}
		for _, p := range locked.Players {
			if p.Wallet == wallet {
				return ErrAlreadyJoined
			}
		}
		if locked.CurrentPlayers >= locked.MaxPlayers {
			return ErrGameFull
		}

		seat := &models.GamePlayer{
			ID:        uuid.New(),
			GameID:    gameID,
			Wallet:    wallet,
			SeatIndex: locked.CurrentPlayers,
			JoinedAt:  gs.now(),
		}
		if err := txRepo.CreateGamePlayer(ctx, seat); err != nil {
			return fmt.Errorf("failed to seat player: %w", err)
		}

		if _, err := gs.settlement.WithTx(txRepo).Deposit(
			ctx, models.EscrowAccountKindGame, gameID, models.EscrowEntryTypeDeposit,
			wallet, locked.EntryFee, signature,
		); err != nil {
			return err
		}

		locked.CurrentPlayers++
		locked.TotalPool += locked.EntryFee
		if locked.CurrentPlayers == locked.MaxPlayers {
			startedAt := gs.now()
			locked.Status = models.GameStatusActive
			locked.StartedAt = &startedAt
		}

		if err := txRepo.UpdateGame(ctx, locked); err != nil {
			return fmt.Errorf("failed to update game: %w", err)
		}

		updated = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	if updated.Status == models.GameStatusActive {
		log.Printf("[GameService] Game %d full at %d players, rolling phase started",
			gameID, updated.CurrentPlayers)
	} else {
		log.Printf("[GameService] Game %d: %s joined (%d/%d)",
			gameID, wallet, updated.CurrentPlayers, updated.MaxPlayers)
	}

	return updated, nil
}

// StartGame begins the rolling phase early, before the lobby is full.
// Only the creator may start, and only with at least two funded seats.
func (gs *GameService) StartGame(ctx context.Context, caller string, gameID uint64) (*models.GameAccount, error) {
	var updated *models.GameAccount
	err := gs.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := gs.repo.WithTx(tx)

		game, err := txRepo.GetGameForUpdate(ctx, gameID)
		if err != nil {
			return err
		}
		if game.Status != models.GameStatusWaitingForPlayers {
			return ErrInvalidGameStatus
		}
		if caller != game.Creator {
			return ErrNotCreator
		}
		if game.CurrentPlayers < models.MinPlayers {
			return ErrNotEnoughPlayers
		}

		startedAt := gs.now()
		game.Status = models.GameStatusActive
		game.StartedAt = &startedAt

		if err := txRepo.UpdateGame(ctx, game); err != nil {
			return fmt.Errorf("failed to update game: %w", err)
		}

		updated = game
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[GameService] Game %d started by creator with %d players",
		gameID, updated.CurrentPlayers)
	return updated, nil
}

// RollDice rolls for one seated player, once. The roll comes from the
// configured dice source; the last roll resolves the game in the same
// transaction.
func (gs *GameService) RollDice(ctx context.Context, wallet string, gameID uint64) (*models.RollResult, *models.GameAccount, error) {
	var (
		result  models.RollResult
		updated *models.GameAccount
	)
	err := gs.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := gs.repo.WithTx(tx)

		game, err := txRepo.GetGameForUpdate(ctx, gameID)
		if err != nil {
			return err
		}
		if game.Status != models.GameStatusActive {
			return ErrInvalidGameStatus
		}

		var seat *models.GamePlayer
		for i := range game.Players {
			if game.Players[i].Wallet == wallet {
				seat = &game.Players[i]
				break
			}
		}
		if seat == nil {
			return ErrNotAParticipant
		}
		if seat.HasRolled() {
			return ErrAlreadyRolled
		}

		result, err = gs.dice.Roll(gameID, wallet, gs.now().UnixNano())
		if err != nil {
			return fmt.Errorf("dice source failed: %w", err)
		}

		rolledAt := gs.now()
		seat.Die1 = &result.Die1
		seat.Die2 = &result.Die2
		seat.Total = &result.Total
		seat.RolledAt = &rolledAt

		if err := txRepo.UpdateGamePlayer(ctx, seat); err != nil {
			return fmt.Errorf("failed to record roll: %w", err)
		}

		if allRolled(game.Players) {
			if err := gs.resolve(ctx, txRepo, game); err != nil {
				return err
			}
		}

		updated = game
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	log.Printf("[GameService] Game %d: %s rolled %d+%d=%d",
		gameID, wallet, result.Die1, result.Die2, result.Total)
	return &result, updated, nil
}

// FinalizeGame resolves an active game once every seat has rolled. The
// last RollDice call already does this; the endpoint exists so anyone can
// nudge a game whose resolution was interrupted.
func (gs *GameService) FinalizeGame(ctx context.Context, gameID uint64) (*models.GameAccount, error) {
	var updated *models.GameAccount
	err := gs.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := gs.repo.WithTx(tx)

		game, err := txRepo.GetGameForUpdate(ctx, gameID)
		if err != nil {
			return err
		}
		if game.Status != models.GameStatusActive {
			return ErrInvalidGameStatus
		}
		if !allRolled(game.Players) {
			return ErrWaitingForRolls
		}

		if err := gs.resolve(ctx, txRepo, game); err != nil {
			return err
		}
		updated = game
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// resolve picks the winner and completes the game. Highest total wins;
// among equal totals the earliest roll wins, and equal timestamps fall
// back to the lowest seat index, so resolution is deterministic.
func (gs *GameService) resolve(ctx context.Context, txRepo *repository.Repository, game *models.GameAccount) error {
	var winner *models.GamePlayer
	for i := range game.Players {
		p := &game.Players[i]
		if !p.HasRolled() {
			return ErrWaitingForRolls
		}
		if winner == nil || beats(p, winner) {
			winner = p
		}
	}
	if winner == nil {
		return ErrNotEnoughPlayers
	}

	completedAt := gs.now()
	game.Winner = &winner.Wallet
	game.Status = models.GameStatusCompleted
	game.CompletedAt = &completedAt

	if err := txRepo.UpdateGame(ctx, game); err != nil {
		return fmt.Errorf("failed to complete game: %w", err)
	}

	payout, _ := SplitPool(game.TotalPool, DiceFeeBps)
	for i := range game.Players {
		p := &game.Players[i]
		if p.Wallet == winner.Wallet {
			if err := txRepo.IncrementPlayerStats(ctx, p.Wallet, 1, 1, 0, int64(game.EntryFee), int64(payout)); err != nil {
				return fmt.Errorf("failed to update winner stats: %w", err)
			}
		} else {
			if err := txRepo.IncrementPlayerStats(ctx, p.Wallet, 1, 0, 1, int64(game.EntryFee), 0); err != nil {
				return fmt.Errorf("failed to update player stats: %w", err)
			}
		}
	}

	log.Printf("[GameService] Game %d resolved: winner %s with total %d",
		game.GameID, winner.Wallet, *winner.Total)
	return nil
}

// beats reports whether candidate ranks above current in the resolution
// order: higher total, then earlier roll, then lower seat index.
func beats(candidate, current *models.GamePlayer) bool {
	if *candidate.Total != *current.Total {
		return *candidate.Total > *current.Total
	}
	if !candidate.RolledAt.Equal(*current.RolledAt) {
		return candidate.RolledAt.Before(*current.RolledAt)
	}
	return candidate.SeatIndex < current.SeatIndex
}

func allRolled(players []models.GamePlayer) bool {
	for i := range players {
		if !players[i].HasRolled() {
			return false
		}
	}
	return len(players) > 0
}

// ClaimPrize pays the winner their share of the pool, once. The platform
// fee is retained in the escrow ledger.
func (gs *GameService) ClaimPrize(ctx context.Context, caller string, gameID uint64) (*models.EscrowEntry, error) {
	var entry *models.EscrowEntry
	err := gs.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := gs.repo.WithTx(tx)

		game, err := txRepo.GetGameForUpdate(ctx, gameID)
		if err != nil {
			return err
		}
		if game.Status != models.GameStatusCompleted {
			return ErrInvalidGameStatus
		}
		if game.Winner == nil {
			return ErrNoWinnerDeclared
		}
		if caller != *game.Winner {
			return ErrUnauthorizedWinner
		}
		if game.PrizeClaimed {
			return ErrPrizeClaimed
		}

		payout, fee := SplitPool(game.TotalPool, DiceFeeBps)
		entry, err = gs.settlement.WithTx(txRepo).Transfer(
			ctx, models.EscrowAccountKindGame, gameID, models.EscrowEntryTypePayout, caller, payout,
		)
		if err != nil {
			return err
		}

		game.PrizeClaimed = true
		if err := txRepo.UpdateGame(ctx, game); err != nil {
			return fmt.Errorf("failed to update game: %w", err)
		}

		log.Printf("[GameService] Game %d: winner %s claimed %d lamports, fee %d retained",
			gameID, caller, payout, fee)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// EmergencyWithdraw returns the caller's entry fee from a game that
// cannot complete: a lobby that never filled past its expiry, or a
// started game stalled past the roll timeout. Never available once the
// game completed. When the last funded player withdraws the game is
// cancelled.
func (gs *GameService) EmergencyWithdraw(ctx context.Context, wallet string, gameID uint64) (*models.GameAccount, error) {
	var updated *models.GameAccount
	err := gs.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := gs.repo.WithTx(tx)

		game, err := txRepo.GetGameForUpdate(ctx, gameID)
		if err != nil {
			return err
		}

		switch game.Status {
		case models.GameStatusWaitingForPlayers:
			if gs.now().Sub(game.CreatedAt) < gs.expiry {
				return ErrNotExpired
			}
		case models.GameStatusActive:
			if game.StartedAt == nil || gs.now().Sub(*game.StartedAt) < gs.stall {
				return ErrNotExpired
			}
			if allRolled(game.Players) {
				// Fully rolled games resolve, they do not refund.
				return ErrInvalidGameStatus
			}
		case models.GameStatusCancelled:
			// Every seat was already refunded; fall through so a repeat
			// caller gets the per-seat error rather than a status error.
		default:
			return ErrInvalidGameStatus
		}

		var seat *models.GamePlayer
		for i := range game.Players {
			if game.Players[i].Wallet == wallet {
				seat = &game.Players[i]
				break
			}
		}
		if seat == nil {
			return ErrNotAParticipant
		}
		if seat.Refunded {
			return ErrAlreadyRefunded
		}

		if _, err := gs.settlement.WithTx(txRepo).Transfer(
			ctx, models.EscrowAccountKindGame, gameID, models.EscrowEntryTypeRefund, wallet, game.EntryFee,
		); err != nil {
			return err
		}

		seat.Refunded = true
		if err := txRepo.UpdateGamePlayer(ctx, seat); err != nil {
			return fmt.Errorf("failed to mark refund: %w", err)
		}

		game.TotalPool -= game.EntryFee
		remaining := 0
		for i := range game.Players {
			if !game.Players[i].Refunded {
				remaining++
			}
		}
		if remaining == 0 {
			game.Status = models.GameStatusCancelled
		}

		if err := txRepo.UpdateGame(ctx, game); err != nil {
			return fmt.Errorf("failed to update game: %w", err)
		}

		updated = game
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[GameService] Game %d: refunded %d lamports to %s", gameID, updated.EntryFee, wallet)
	return updated, nil
}

// GetGame returns a game with its seats, ordered by seat index.
func (gs *GameService) GetGame(ctx context.Context, gameID uint64) (*models.GameAccount, error) {
	return gs.repo.GetGameByGameID(ctx, gameID)
}

// GetOpenGames lists joinable games.
func (gs *GameService) GetOpenGames(ctx context.Context, limit, offset int) ([]*models.GameAccount, int64, error) {
	return gs.repo.GetOpenGames(ctx, limit, offset)
}
