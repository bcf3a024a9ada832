package jobs

import (
	"context"
	"log"
	"time"

	"vault-betting/internal/models"
	"vault-betting/internal/repository"
	"vault-betting/internal/services"
)

// Sweeper runs the periodic maintenance passes: refunding expired
// unfunded bets, finalizing fully-rolled games stuck in ACTIVE, and
// settling group sub-pools of completed bets.
type Sweeper struct {
	repo            *repository.Repository
	betService      *services.BetService
	gameService     *services.GameService
	groupBetService *services.GroupBetService
	interval        time.Duration
	betExpiry       time.Duration
	gameStall       time.Duration
	stopChan        chan struct{}
}

// NewSweeper creates a new sweeper job
func NewSweeper(
	repo *repository.Repository,
	betService *services.BetService,
	gameService *services.GameService,
	groupBetService *services.GroupBetService,
	interval, betExpiry, gameStall time.Duration,
) *Sweeper {
	return &Sweeper{
		repo:            repo,
		betService:      betService,
		gameService:     gameService,
		groupBetService: groupBetService,
		interval:        interval,
		betExpiry:       betExpiry,
		gameStall:       gameStall,
		stopChan:        make(chan struct{}),
	}
}

// Start begins the sweep loop
func (s *Sweeper) Start() {
	log.Printf("[Sweeper] Starting sweep job (interval: %v)", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepExpiredBets()
			s.sweepStalledGames()
			s.sweepGroupBets()
		case <-s.stopChan:
			log.Println("[Sweeper] Stopping sweep job")
			return
		}
	}
}

// Stop stops the sweep loop
func (s *Sweeper) Stop() {
	close(s.stopChan)
}

// sweepExpiredBets refunds deposited participants of bets that never
// activated within the expiry window, and cancels unfunded ones.
func (s *Sweeper) sweepExpiredBets() {
	ctx := context.Background()
	cutoff := time.Now().Add(-s.betExpiry)

	bets, err := s.repo.GetExpiredWaitingBets(ctx, cutoff, 100)
	if err != nil {
		log.Printf("[Sweeper] Error fetching expired bets: %v", err)
		return
	}

	for _, bet := range bets {
		if bet.DepositedCount() == 0 {
			if err := s.betService.CancelUnfundedBet(ctx, bet.BetID); err != nil {
				log.Printf("[Sweeper] Error cancelling bet %d: %v", bet.BetID, err)
			}
			continue
		}

		// Return each lone deposit to its owner.
		if bet.ParticipantADeposited {
			if _, err := s.betService.RefundExpiredBet(ctx, bet.ParticipantA, bet.BetID); err != nil {
				log.Printf("[Sweeper] Error refunding bet %d to %s: %v", bet.BetID, bet.ParticipantA, err)
			}
		}
		if bet.ParticipantBDeposited {
			if _, err := s.betService.RefundExpiredBet(ctx, bet.ParticipantB, bet.BetID); err != nil {
				log.Printf("[Sweeper] Error refunding bet %d to %s: %v", bet.BetID, bet.ParticipantB, err)
			}
		}
	}

	if len(bets) > 0 {
		log.Printf("[Sweeper] Processed %d expired bets", len(bets))
	}
}

// sweepStalledGames finalizes games where every seat has rolled but the
// resolving call was interrupted. Stalled games with missing rolls stay
// open for per-player emergency withdrawal.
func (s *Sweeper) sweepStalledGames() {
	ctx := context.Background()
	cutoff := time.Now().Add(-s.gameStall)

	games, err := s.repo.GetStalledGames(ctx, cutoff, 100)
	if err != nil {
		log.Printf("[Sweeper] Error fetching stalled games: %v", err)
		return
	}

	for _, game := range games {
		rolled := 0
		for i := range game.Players {
			if game.Players[i].HasRolled() {
				rolled++
			}
		}
		if rolled < len(game.Players) || len(game.Players) == 0 {
			continue
		}

		if _, err := s.gameService.FinalizeGame(ctx, game.GameID); err != nil {
			log.Printf("[Sweeper] Error finalizing game %d: %v", game.GameID, err)
			continue
		}
		log.Printf("[Sweeper] Finalized stuck game %d", game.GameID)
	}
}

// sweepGroupBets settles group sub-pools of completed bets.
func (s *Sweeper) sweepGroupBets() {
	ctx := context.Background()

	bets, err := s.repo.GetCompletedBetsWithUnsettledGroupBets(ctx, 100)
	if err != nil {
		log.Printf("[Sweeper] Error fetching unsettled group bets: %v", err)
		return
	}

	settled := 0
	for _, bet := range bets {
		if bet.Status != models.BetStatusCompleted {
			continue
		}
		if err := s.groupBetService.SettleGroupBets(ctx, bet.BetID); err != nil {
			log.Printf("[Sweeper] Error settling group bets for bet %d: %v", bet.BetID, err)
			continue
		}
		settled++
	}

	if settled > 0 {
		log.Printf("[Sweeper] Settled group bets for %d bets", settled)
	}
}
