package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"vault-betting/internal/models"
	"vault-betting/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GroupBetService handles third-party side bets on active two-party
// bets. Group stakes form a sub-pool per parent bet, tracked separately
// from the participants' own pool, and settle pro rata once the parent
// resolves.
type GroupBetService struct {
	repo       *repository.Repository
	settlement *SettlementService
	vault      VaultBinding
}

func NewGroupBetService(repo *repository.Repository, settlement *SettlementService, vault VaultBinding) *GroupBetService {
	return &GroupBetService{repo: repo, settlement: settlement, vault: vault}
}

// PlaceGroupBet records a side bet on one of the parent bet's two
// participants. The window is exactly the parent's ACTIVE phase, one bet
// per wallet per parent.
func (gbs *GroupBetService) PlaceGroupBet(
	ctx context.Context,
	bettor string,
	betID uint64,
	req *models.PlaceGroupBetRequest,
) (*models.GroupBetAccount, error) {
	if req.Amount == 0 {
		return nil, ErrInvalidAmount
	}
	if !validWallet(bettor) {
		return nil, ErrInvalidWallet
	}

	parent, err := gbs.repo.GetBetByBetID(ctx, betID)
	if err != nil {
		return nil, err
	}
	if parent.Status != models.BetStatusActive {
		return nil, ErrInvalidBetStatus
	}
	if req.Choice != parent.ParticipantA && req.Choice != parent.ParticipantB {
		return nil, ErrInvalidChoice
	}
	if parent.IsParticipant(bettor) || bettor == parent.Arbiter {
		// Parties to the bet wager through the primary pool only.
		return nil, ErrInvalidChoice
	}

	// Group stakes land in the parent bet's escrow address; the ledger
	// keeps them in a separate GROUP sub-account.
	ok, err := gbs.vault.VerifyEscrowDeposit(ctx, req.Signature, bettor, parent.PDAAddress, req.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to verify stake: %w", err)
	}
	if !ok {
		return nil, ErrUnconfirmedTx
	}

	var gb *models.GroupBetAccount
	err = gbs.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := gbs.repo.WithTx(tx)

		locked, err := txRepo.GetBetForUpdate(ctx, betID)
		if err != nil {
			return err
		}
		if locked.Status != models.BetStatusActive {
			return ErrInvalidBetStatus
		}

		if _, err := txRepo.GetGroupBet(ctx, betID, bettor); err == nil {
			return ErrAlreadyBet
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		gb = &models.GroupBetAccount{
			ID:     uuid.New(),
			BetID:  betID,
			Bettor: bettor,
			Choice: req.Choice,
			Amount: req.Amount,
		}
		if err := txRepo.CreateGroupBet(ctx, gb); err != nil {
			return fmt.Errorf("failed to create group bet: %w", err)
		}

		_, err = gbs.settlement.WithTx(txRepo).Deposit(
			ctx, models.EscrowAccountKindGroup, betID, models.EscrowEntryTypeGroupStake,
			bettor, req.Amount, req.Signature,
		)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[GroupBetService] Bet %d: %s staked %d lamports on %s",
		betID, bettor, req.Amount, req.Choice)

	return gb, nil
}

// SettleGroupBets distributes a completed parent bet's group sub-pool.
// Winning stakes split the after-fee pool pro rata; losing stakes are
// forfeited. Callable by anyone, idempotent: already-claimed rows are
// skipped, and a run that fails midway can be re-triggered.
func (gbs *GroupBetService) SettleGroupBets(ctx context.Context, betID uint64) error {
	return gbs.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := gbs.repo.WithTx(tx)

		parent, err := txRepo.GetBetForUpdate(ctx, betID)
		if err != nil {
			return err
		}
		if parent.Status != models.BetStatusCompleted {
			return ErrInvalidBetStatus
		}
		if parent.Winner == nil {
			return ErrNoWinnerDeclared
		}
		if parent.GroupBetsSettled {
			return nil
		}

		groupBets, err := txRepo.GetGroupBets(ctx, betID)
		if err != nil {
			return fmt.Errorf("failed to load group bets: %w", err)
		}

		if len(groupBets) == 0 {
			parent.GroupBetsSettled = true
			return txRepo.UpdateBet(ctx, parent)
		}

		var groupPool, winningStake uint64
		for _, gb := range groupBets {
			groupPool += gb.Amount
			if gb.Choice == *parent.Winner {
				winningStake += gb.Amount
			}
		}

		// Payouts are shares of the after-fee pool; truncated remainders
		// and the whole pool on a no-winner side stay with the treasury.
		distributable, fee := SplitPool(groupPool, TwoPartyFeeBps)
		txSettlement := gbs.settlement.WithTx(txRepo)

		claimedAt := parent.CompletedAt
		for _, gb := range groupBets {
			if gb.Claimed {
				continue
			}

			if gb.Choice == *parent.Winner && winningStake > 0 {
				payout := ProRataShare(distributable, gb.Amount, winningStake)
				if payout > 0 {
					if _, err := txSettlement.Transfer(
						ctx, models.EscrowAccountKindGroup, betID,
						models.EscrowEntryTypePayout, gb.Bettor, payout,
					); err != nil {
						return err
					}
				}
				gb.Payout = payout
			}

			gb.Claimed = true
			gb.ClaimedAt = claimedAt
			if err := txRepo.UpdateGroupBet(ctx, gb); err != nil {
				return fmt.Errorf("failed to settle group bet: %w", err)
			}
		}

		parent.GroupBetsSettled = true
		if err := txRepo.UpdateBet(ctx, parent); err != nil {
			return fmt.Errorf("failed to update bet: %w", err)
		}

		log.Printf("[GroupBetService] Bet %d: settled %d group bets, pool %d, fee %d retained",
			betID, len(groupBets), groupPool, fee)
		return nil
	})
}

// GetGroupBets lists all side bets on a parent bet in placement order.
func (gbs *GroupBetService) GetGroupBets(ctx context.Context, betID uint64) ([]*models.GroupBetAccount, error) {
	return gbs.repo.GetGroupBets(ctx, betID)
}
