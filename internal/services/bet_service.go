package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"vault-betting/internal/models"
	"vault-betting/internal/repository"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"gorm.io/gorm"
)

// DefaultBetExpiry is how long a bet may sit unfunded before the
// deposited participant can pull their stake back out.
const DefaultBetExpiry = 24 * time.Hour

// VaultBinding is the slice of the on-chain program the services need:
// escrow address derivation and deposit verification.
type VaultBinding interface {
	BetAddress(betID uint64) (string, uint8, error)
	GroupBetAddress(betID uint64, bettor string) (string, uint8, error)
	GameAddress(gameID uint64) (string, uint8, error)
	VerifyEscrowDeposit(ctx context.Context, signature, wallet, escrowAddress string, amount uint64) (bool, error)
}

// BetService drives the two-party bet lifecycle: create, fund, declare,
// settle, refund. Every mutation runs inside one DB transaction with the
// bet row locked, so concurrent calls serialize and a failure leaves no
// partial state.
type BetService struct {
	repo       *repository.Repository
	settlement *SettlementService
	vault      VaultBinding
	expiry     time.Duration
	now        func() time.Time
}

func NewBetService(repo *repository.Repository, settlement *SettlementService, vault VaultBinding, expiry time.Duration) *BetService {
	if expiry <= 0 {
		expiry = DefaultBetExpiry
	}
	return &BetService{
		repo:       repo,
		settlement: settlement,
		vault:      vault,
		expiry:     expiry,
		now:        time.Now,
	}
}

// validWallet checks that an address decodes to a 32-byte ed25519 key.
func validWallet(address string) bool {
	raw, err := base58.Decode(address)
	return err == nil && len(raw) == 32
}

// CreateTwoPartyBet registers a new bet between creator and participant B
// with the named arbiter. The bet starts unfunded; no money moves here.
func (bs *BetService) CreateTwoPartyBet(
	ctx context.Context,
	creator string,
	req *models.CreateBetRequest,
) (*models.BetAccount, error) {
	if req.BetAmount == 0 {
		return nil, ErrInvalidAmount
	}
	if req.MinDecisionTime < 0 {
		return nil, ErrMinimumTimeNotMet
	}
	if !validWallet(creator) || !validWallet(req.ParticipantB) || !validWallet(req.Arbiter) {
		return nil, ErrInvalidWallet
	}
	if creator == req.ParticipantB {
		return nil, ErrInvalidWallet
	}

	exists, err := bs.repo.BetIDExists(ctx, req.BetID)
	if err != nil {
		return nil, fmt.Errorf("failed to check bet id: %w", err)
	}
	if exists {
		return nil, ErrBetIDTaken
	}

	pdaAddress, bump, err := bs.vault.BetAddress(req.BetID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive escrow address: %w", err)
	}

	bet := &models.BetAccount{
		ID:              uuid.New(),
		BetID:           req.BetID,
		ParticipantA:    creator,
		ParticipantB:    req.ParticipantB,
		Arbiter:         req.Arbiter,
		BetAmount:       req.BetAmount,
		MinDecisionTime: req.MinDecisionTime,
		Status:          models.BetStatusWaitingForDeposits,
		PDAAddress:      pdaAddress,
		PDABump:         bump,
		CreatedAt:       bs.now(),
	}

	if err := bs.repo.CreateBet(ctx, bet); err != nil {
		return nil, fmt.Errorf("failed to create bet: %w", err)
	}

	log.Printf("[BetService] Created bet %d: %s vs %s, arbiter %s, %d lamports each",
		bet.BetID, bet.ParticipantA, bet.ParticipantB, bet.Arbiter, bet.BetAmount)

	return bet, nil
}

// DepositBetFunds credits one participant's stake after verifying the
// on-chain transfer into the bet's escrow address. The second deposit
// activates the bet and starts the decision clock.
func (bs *BetService) DepositBetFunds(
	ctx context.Context,
	wallet string,
	betID uint64,
	signature string,
) (*models.BetAccount, error) {
	bet, err := bs.repo.GetBetByBetID(ctx, betID)
	if err != nil {
		return nil, err
	}

	if !bet.IsParticipant(wallet) {
		return nil, ErrUnauthorizedDepositor
	}
	if bet.Status != models.BetStatusWaitingForDeposits {
		return nil, ErrInvalidBetStatus
	}

	// Chain lookup stays outside the DB transaction; only the verified
	// result is applied under the row lock.
	ok, err := bs.vault.VerifyEscrowDeposit(ctx, signature, wallet, bet.PDAAddress, bet.BetAmount)
	if err != nil {
		return nil, fmt.Errorf("failed to verify deposit: %w", err)
	}
	if !ok {
		return nil, ErrUnconfirmedTx
	}

	var updated *models.BetAccount
	err = bs.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := bs.repo.WithTx(tx)

		locked, err := txRepo.GetBetForUpdate(ctx, betID)
		if err != nil {
			return err
		}
		if locked.Status != models.BetStatusWaitingForDeposits {
			return ErrInvalidBetStatus
		}

		switch wallet {
		case locked.ParticipantA:
			if locked.ParticipantADeposited {
				return ErrAlreadyDeposited
			}
			locked.ParticipantADeposited = true
		case locked.ParticipantB:
			if locked.ParticipantBDeposited {
				return ErrAlreadyDeposited
			}
			locked.ParticipantBDeposited = true
		default:
			return ErrUnauthorizedDepositor
		}

		if _, err := bs.settlement.WithTx(txRepo).Deposit(
			ctx, models.EscrowAccountKindBet, betID, models.EscrowEntryTypeDeposit,
			wallet, locked.BetAmount, signature,
		); err != nil {
			return err
		}

		locked.TotalPool += locked.BetAmount
		if locked.DepositedCount() == 2 {
			activatedAt := bs.now()
			locked.Status = models.BetStatusActive
			locked.ActivatedAt = &activatedAt
		}

		if err := txRepo.UpdateBet(ctx, locked); err != nil {
			return fmt.Errorf("failed to update bet: %w", err)
		}

		updated = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	if updated.Status == models.BetStatusActive {
		log.Printf("[BetService] Bet %d fully funded, pool %d lamports, decision window %ds",
			updated.BetID, updated.TotalPool, updated.MinDecisionTime)
	} else {
		log.Printf("[BetService] Bet %d: %s deposited %d lamports (%d/2)",
			updated.BetID, wallet, updated.BetAmount, updated.DepositedCount())
	}

	return updated, nil
}

// DeclareWinner resolves an active bet. Only the arbiter may call it, only
// for one of the two participants, and only after the minimum decision
// time has elapsed since activation.
func (bs *BetService) DeclareWinner(
	ctx context.Context,
	caller string,
	betID uint64,
	winner string,
) (*models.BetAccount, error) {
	var updated *models.BetAccount
	err := bs.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := bs.repo.WithTx(tx)

		bet, err := txRepo.GetBetForUpdate(ctx, betID)
		if err != nil {
			return err
		}

		if caller != bet.Arbiter {
			return ErrUnauthorizedArbiter
		}
		if bet.Status != models.BetStatusActive {
			return ErrInvalidBetStatus
		}
		if !bet.IsParticipant(winner) {
			return ErrInvalidWinner
		}
		if bet.ActivatedAt == nil {
			return ErrInvalidBetStatus
		}
		if bs.now().Sub(*bet.ActivatedAt) < time.Duration(bet.MinDecisionTime)*time.Second {
			return ErrMinimumTimeNotMet
		}

		completedAt := bs.now()
		bet.Winner = &winner
		bet.Status = models.BetStatusCompleted
		bet.CompletedAt = &completedAt

		if err := txRepo.UpdateBet(ctx, bet); err != nil {
			return fmt.Errorf("failed to update bet: %w", err)
		}

		payout, _ := SplitPool(bet.TotalPool, TwoPartyFeeBps)
		loser := bet.ParticipantA
		if winner == bet.ParticipantA {
			loser = bet.ParticipantB
		}
		if err := txRepo.IncrementPlayerStats(ctx, winner, 1, 1, 0, int64(bet.BetAmount), int64(payout)); err != nil {
			return fmt.Errorf("failed to update winner stats: %w", err)
		}
		if err := txRepo.IncrementPlayerStats(ctx, loser, 1, 0, 1, int64(bet.BetAmount), 0); err != nil {
			return fmt.Errorf("failed to update loser stats: %w", err)
		}

		updated = bet
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[BetService] Bet %d resolved by arbiter %s, winner %s", betID, caller, winner)
	return updated, nil
}

// WithdrawWinnings pays the declared winner their share of the pool, once.
// The platform fee is retained in the escrow ledger.
func (bs *BetService) WithdrawWinnings(
	ctx context.Context,
	caller string,
	betID uint64,
) (*models.EscrowEntry, error) {
	var entry *models.EscrowEntry
	err := bs.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := bs.repo.WithTx(tx)

		bet, err := txRepo.GetBetForUpdate(ctx, betID)
		if err != nil {
			return err
		}

		if bet.Status != models.BetStatusCompleted {
			return ErrInvalidBetStatus
		}
		if bet.Winner == nil {
			return ErrNoWinnerDeclared
		}
		if caller != *bet.Winner {
			return ErrUnauthorizedWinner
		}
		if bet.Withdrawn {
			return ErrAlreadyWithdrawn
		}

		payout, fee := SplitPool(bet.TotalPool, TwoPartyFeeBps)
		entry, err = bs.settlement.WithTx(txRepo).Transfer(
			ctx, models.EscrowAccountKindBet, betID, models.EscrowEntryTypePayout, caller, payout,
		)
		if err != nil {
			return err
		}

		bet.Withdrawn = true
		if err := txRepo.UpdateBet(ctx, bet); err != nil {
			return fmt.Errorf("failed to update bet: %w", err)
		}

		log.Printf("[BetService] Bet %d: winner %s withdrew %d lamports, fee %d retained",
			betID, caller, payout, fee)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// PayArbiterFee releases the arbiter's cut out of the retained platform
// fee of a completed bet. Callable by anyone, effective once.
func (bs *BetService) PayArbiterFee(ctx context.Context, betID uint64) (*models.EscrowEntry, error) {
	var entry *models.EscrowEntry
	err := bs.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := bs.repo.WithTx(tx)

		bet, err := txRepo.GetBetForUpdate(ctx, betID)
		if err != nil {
			return err
		}

		if bet.Status != models.BetStatusCompleted {
			return ErrInvalidBetStatus
		}
		if bet.ArbiterFeePaid {
			return ErrArbiterFeePaid
		}

		_, arbiterFee := SplitPool(bet.TotalPool, ArbiterFeeBps)
		entry, err = bs.settlement.WithTx(txRepo).Transfer(
			ctx, models.EscrowAccountKindBet, betID, models.EscrowEntryTypeArbiterFee, bet.Arbiter, arbiterFee,
		)
		if err != nil {
			return err
		}

		bet.ArbiterFeePaid = true
		if err := txRepo.UpdateBet(ctx, bet); err != nil {
			return fmt.Errorf("failed to update bet: %w", err)
		}

		log.Printf("[BetService] Bet %d: arbiter %s paid %d lamports", betID, bet.Arbiter, arbiterFee)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// RefundExpiredBet returns the caller's own stake from a bet that never
// activated within the expiry window. It is not available once the bet
// is active: a funded bet settles through the arbiter.
func (bs *BetService) RefundExpiredBet(
	ctx context.Context,
	caller string,
	betID uint64,
) (*models.BetAccount, error) {
	var updated *models.BetAccount
	err := bs.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := bs.repo.WithTx(tx)

		bet, err := txRepo.GetBetForUpdate(ctx, betID)
		if err != nil {
			return err
		}

		if bet.Status != models.BetStatusWaitingForDeposits {
			return ErrInvalidBetStatus
		}
		if !bet.IsParticipant(caller) {
			return ErrUnauthorizedDepositor
		}
		if bs.now().Sub(bet.CreatedAt) < bs.expiry {
			return ErrNotExpired
		}

		deposited := (caller == bet.ParticipantA && bet.ParticipantADeposited) ||
			(caller == bet.ParticipantB && bet.ParticipantBDeposited)
		if !deposited {
			return ErrNothingToRefund
		}

		if _, err := bs.settlement.WithTx(txRepo).Transfer(
			ctx, models.EscrowAccountKindBet, betID, models.EscrowEntryTypeRefund, caller, bet.BetAmount,
		); err != nil {
			return err
		}

		if caller == bet.ParticipantA {
			bet.ParticipantADeposited = false
		} else {
			bet.ParticipantBDeposited = false
		}
		bet.TotalPool -= bet.BetAmount
		if bet.DepositedCount() == 0 {
			bet.Status = models.BetStatusRefunded
		}

		if err := txRepo.UpdateBet(ctx, bet); err != nil {
			return fmt.Errorf("failed to update bet: %w", err)
		}

		updated = bet
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[BetService] Bet %d: refunded %d lamports to %s", betID, updated.BetAmount, caller)
	return updated, nil
}

// CancelUnfundedBet marks an expired bet with no deposits as cancelled.
// Used by the sweeper; no funds move.
func (bs *BetService) CancelUnfundedBet(ctx context.Context, betID uint64) error {
	return bs.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := bs.repo.WithTx(tx)

		bet, err := txRepo.GetBetForUpdate(ctx, betID)
		if err != nil {
			return err
		}
		if bet.Status != models.BetStatusWaitingForDeposits {
			return ErrInvalidBetStatus
		}
		if bet.DepositedCount() != 0 {
			return ErrInvalidBetStatus
		}
		if bs.now().Sub(bet.CreatedAt) < bs.expiry {
			return ErrNotExpired
		}

		bet.Status = models.BetStatusCancelled
		return txRepo.UpdateBet(ctx, bet)
	})
}

// GetBet returns a bet by its numeric id.
func (bs *BetService) GetBet(ctx context.Context, betID uint64) (*models.BetAccount, error) {
	return bs.repo.GetBetByBetID(ctx, betID)
}

// GetWalletBets lists bets where the wallet is a participant or arbiter.
func (bs *BetService) GetWalletBets(
	ctx context.Context,
	wallet string,
	limit, offset int,
) ([]*models.BetAccount, int64, error) {
	return bs.repo.GetWalletBets(ctx, wallet, limit, offset)
}
