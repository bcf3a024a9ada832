package handlers

import (
	"net/http"

	"vault-betting/internal/auth"
	"vault-betting/internal/blockchain"
	"vault-betting/internal/models"
	"vault-betting/internal/repository"

	"github.com/gin-gonic/gin"
)

// ChainHandler exposes read-only chain and ledger endpoints.
type ChainHandler struct {
	solana *blockchain.SolanaClient
	repo   *repository.Repository
}

func NewChainHandler(solana *blockchain.SolanaClient, repo *repository.Repository) *ChainHandler {
	return &ChainHandler{
		solana: solana,
		repo:   repo,
	}
}

// GetWalletBalance returns the caller's on-chain SOL balance
// GET /api/wallet/balance
func (h *ChainHandler) GetWalletBalance(c *gin.Context) {
	wallet, exists := auth.GetWalletAddress(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	balance, err := h.solana.GetSOLBalance(c.Request.Context(), wallet)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch balance"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"wallet":      wallet,
		"balance_sol": balance,
	})
}

// GetBetLedger lists the escrow ledger of a bet, primary pool and group
// sub-pool side by side
// GET /api/bets/:bet_id/ledger
func (h *ChainHandler) GetBetLedger(c *gin.Context) {
	betID, ok := parseBetID(c)
	if !ok {
		return
	}

	entries, err := h.repo.GetEscrowEntries(c.Request.Context(), models.EscrowAccountKindBet, betID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch ledger"})
		return
	}

	groupEntries, err := h.repo.GetEscrowEntries(c.Request.Context(), models.EscrowAccountKindGroup, betID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch ledger"})
		return
	}

	balance, err := h.repo.EscrowBalance(c.Request.Context(), models.EscrowAccountKindBet, betID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute balance"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries":       entries,
		"group_entries": groupEntries,
		"balance":       balance,
	})
}

// GetGameLedger lists the escrow ledger of a game
// GET /api/games/:game_id/ledger
func (h *ChainHandler) GetGameLedger(c *gin.Context) {
	gameID, ok := parseGameID(c)
	if !ok {
		return
	}

	entries, err := h.repo.GetEscrowEntries(c.Request.Context(), models.EscrowAccountKindGame, gameID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch ledger"})
		return
	}

	balance, err := h.repo.EscrowBalance(c.Request.Context(), models.EscrowAccountKindGame, gameID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute balance"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"balance": balance,
	})
}
