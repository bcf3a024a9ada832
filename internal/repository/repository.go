package repository

import (
	"context"
	"time"

	"vault-betting/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DB exposes the underlying handle for callers that need to run several
// repository operations inside one transaction.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// WithTx returns a repository bound to the given transaction handle.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// ---------------------------------------------------------------------------
// Two-party bets

func (r *Repository) CreateBet(ctx context.Context, bet *models.BetAccount) error {
	return r.db.WithContext(ctx).Create(bet).Error
}

// GetBetByBetID retrieves a bet by its caller-chosen numeric id.
func (r *Repository) GetBetByBetID(ctx context.Context, betID uint64) (*models.BetAccount, error) {
	var bet models.BetAccount
	err := r.db.WithContext(ctx).Where("bet_id = ?", betID).First(&bet).Error
	if err != nil {
		return nil, err
	}
	return &bet, nil
}

// GetBetForUpdate retrieves a bet with a row lock inside a transaction.
func (r *Repository) GetBetForUpdate(ctx context.Context, betID uint64) (*models.BetAccount, error) {
	var bet models.BetAccount
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("bet_id = ?", betID).
		First(&bet).Error
	if err != nil {
		return nil, err
	}
	return &bet, nil
}

func (r *Repository) UpdateBet(ctx context.Context, bet *models.BetAccount) error {
	return r.db.WithContext(ctx).Save(bet).Error
}

func (r *Repository) BetIDExists(ctx context.Context, betID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.BetAccount{}).
		Where("bet_id = ?", betID).
		Count(&count).Error
	return count > 0, err
}

// GetWalletBets retrieves bets where the wallet is a participant or arbiter.
func (r *Repository) GetWalletBets(
	ctx context.Context,
	wallet string,
	limit, offset int,
) ([]*models.BetAccount, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.BetAccount{}).
		Where("participant_a = ? OR participant_b = ? OR arbiter = ?", wallet, wallet, wallet)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var bets []*models.BetAccount
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&bets).Error
	if err != nil {
		return nil, 0, err
	}

	return bets, total, nil
}

// GetExpiredWaitingBets returns WAITING_FOR_DEPOSITS bets created before
// the cutoff, for the sweeper's refund pass.
func (r *Repository) GetExpiredWaitingBets(ctx context.Context, cutoff time.Time, limit int) ([]*models.BetAccount, error) {
	var bets []*models.BetAccount
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.BetStatusWaitingForDeposits, cutoff).
		Limit(limit).
		Find(&bets).Error
	if err != nil {
		return nil, err
	}
	return bets, nil
}

// GetCompletedBetsWithUnsettledGroupBets lists completed bets whose group
// sub-pool still has unclaimed winning rows.
func (r *Repository) GetCompletedBetsWithUnsettledGroupBets(ctx context.Context, limit int) ([]*models.BetAccount, error) {
	var bets []*models.BetAccount
	err := r.db.WithContext(ctx).
		Where("status = ? AND group_bets_settled = ?", models.BetStatusCompleted, false).
		Limit(limit).
		Find(&bets).Error
	if err != nil {
		return nil, err
	}
	return bets, nil
}

// ---------------------------------------------------------------------------
// Group bets

func (r *Repository) CreateGroupBet(ctx context.Context, gb *models.GroupBetAccount) error {
	return r.db.WithContext(ctx).Create(gb).Error
}

func (r *Repository) GetGroupBet(ctx context.Context, betID uint64, bettor string) (*models.GroupBetAccount, error) {
	var gb models.GroupBetAccount
	err := r.db.WithContext(ctx).
		Where("bet_id = ? AND bettor = ?", betID, bettor).
		First(&gb).Error
	if err != nil {
		return nil, err
	}
	return &gb, nil
}

func (r *Repository) GetGroupBets(ctx context.Context, betID uint64) ([]*models.GroupBetAccount, error) {
	var bets []*models.GroupBetAccount
	err := r.db.WithContext(ctx).
		Where("bet_id = ?", betID).
		Order("created_at ASC").
		Find(&bets).Error
	if err != nil {
		return nil, err
	}
	return bets, nil
}

func (r *Repository) UpdateGroupBet(ctx context.Context, gb *models.GroupBetAccount) error {
	return r.db.WithContext(ctx).Save(gb).Error
}

// ---------------------------------------------------------------------------
// Dice games

func (r *Repository) CreateGame(ctx context.Context, game *models.GameAccount) error {
	return r.db.WithContext(ctx).Create(game).Error
}

func (r *Repository) GetGameByGameID(ctx context.Context, gameID uint64) (*models.GameAccount, error) {
	var game models.GameAccount
	err := r.db.WithContext(ctx).
		Preload("Players", func(db *gorm.DB) *gorm.DB {
			return db.Order("seat_index ASC")
		}).
		Where("game_id = ?", gameID).
		First(&game).Error
	if err != nil {
		return nil, err
	}
	return &game, nil
}

// GetGameForUpdate retrieves a game and its seats with a row lock on the
// game inside a transaction. The game row is the serialization point for
// every seat and status mutation.
func (r *Repository) GetGameForUpdate(ctx context.Context, gameID uint64) (*models.GameAccount, error) {
	var game models.GameAccount
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Players", func(db *gorm.DB) *gorm.DB {
			return db.Order("seat_index ASC")
		}).
		Where("game_id = ?", gameID).
		First(&game).Error
	if err != nil {
		return nil, err
	}
	return &game, nil
}

func (r *Repository) UpdateGame(ctx context.Context, game *models.GameAccount) error {
	return r.db.WithContext(ctx).Omit("Players").Save(game).Error
}

func (r *Repository) GameIDExists(ctx context.Context, gameID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.GameAccount{}).
		Where("game_id = ?", gameID).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) CreateGamePlayer(ctx context.Context, player *models.GamePlayer) error {
	return r.db.WithContext(ctx).Create(player).Error
}

func (r *Repository) UpdateGamePlayer(ctx context.Context, player *models.GamePlayer) error {
	return r.db.WithContext(ctx).Save(player).Error
}

// GetOpenGames lists games still waiting for players.
func (r *Repository) GetOpenGames(ctx context.Context, limit, offset int) ([]*models.GameAccount, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.GameAccount{}).
		Where("status = ?", models.GameStatusWaitingForPlayers)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var games []*models.GameAccount
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&games).Error
	if err != nil {
		return nil, 0, err
	}

	return games, total, nil
}

// GetStalledGames returns games that have been ACTIVE since before the
// cutoff without completing, for the sweeper's stall pass.
func (r *Repository) GetStalledGames(ctx context.Context, cutoff time.Time, limit int) ([]*models.GameAccount, error) {
	var games []*models.GameAccount
	err := r.db.WithContext(ctx).
		Preload("Players").
		Where("status = ? AND started_at < ?", models.GameStatusActive, cutoff).
		Limit(limit).
		Find(&games).Error
	if err != nil {
		return nil, err
	}
	return games, nil
}

// ---------------------------------------------------------------------------
// Escrow ledger

func (r *Repository) CreateEscrowEntry(ctx context.Context, entry *models.EscrowEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// EscrowBalance computes the tracked balance of one escrow account:
// inbound entries minus outbound entries.
func (r *Repository) EscrowBalance(ctx context.Context, kind models.EscrowAccountKind, accountID uint64) (uint64, error) {
	var entries []*models.EscrowEntry
	err := r.db.WithContext(ctx).
		Where("account_kind = ? AND account_id = ?", kind, accountID).
		Find(&entries).Error
	if err != nil {
		return 0, err
	}

	var in, out uint64
	for _, e := range entries {
		if e.Inbound() {
			in += e.Amount
		} else {
			out += e.Amount
		}
	}
	if out > in {
		// Ledger invariant violated upstream; report zero so callers fail closed.
		return 0, nil
	}
	return in - out, nil
}

func (r *Repository) GetEscrowEntries(ctx context.Context, kind models.EscrowAccountKind, accountID uint64) ([]*models.EscrowEntry, error) {
	var entries []*models.EscrowEntry
	err := r.db.WithContext(ctx).
		Where("account_kind = ? AND account_id = ?", kind, accountID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ---------------------------------------------------------------------------
// Player stats

// IncrementPlayerStats upserts per-wallet counters atomically.
func (r *Repository) IncrementPlayerStats(
	ctx context.Context,
	wallet string,
	betsIncr, winsIncr, lossesIncr, wageredIncr, wonIncr int64,
) error {
	initial := models.PlayerStats{
		ID:           uuid.New(),
		Wallet:       wallet,
		TotalBets:    betsIncr,
		Wins:         winsIncr,
		Losses:       lossesIncr,
		TotalWagered: wageredIncr,
		TotalWon:     wonIncr,
	}
	if initial.TotalBets > 0 {
		initial.WinRate = float64(initial.Wins) / float64(initial.TotalBets) * 100
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "wallet"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_bets":    gorm.Expr("player_stats.total_bets + ?", betsIncr),
			"wins":          gorm.Expr("player_stats.wins + ?", winsIncr),
			"losses":        gorm.Expr("player_stats.losses + ?", lossesIncr),
			"total_wagered": gorm.Expr("player_stats.total_wagered + ?", wageredIncr),
			"total_won":     gorm.Expr("player_stats.total_won + ?", wonIncr),
			// The column name refers to the OLD value in ON CONFLICT DO UPDATE,
			// so the increment is repeated inside the derived expression.
			"win_rate": gorm.Expr("CASE WHEN (player_stats.total_bets + ?) > 0 THEN (CAST((player_stats.wins + ?) AS NUMERIC) / (player_stats.total_bets + ?) * 100) ELSE 0 END",
				betsIncr, winsIncr, betsIncr),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&initial).Error
}

func (r *Repository) GetPlayerStats(ctx context.Context, wallet string) (*models.PlayerStats, error) {
	var stats models.PlayerStats
	err := r.db.WithContext(ctx).Where("wallet = ?", wallet).First(&stats).Error
	if err == gorm.ErrRecordNotFound {
		stats = models.PlayerStats{ID: uuid.New(), Wallet: wallet}
		if err := r.db.WithContext(ctx).Create(&stats).Error; err != nil {
			return nil, err
		}
		return &stats, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// ---------------------------------------------------------------------------
// Users

func (r *Repository) GetUserByWallet(ctx context.Context, wallet string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("wallet_address = ?", wallet).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}
