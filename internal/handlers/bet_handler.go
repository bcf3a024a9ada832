package handlers

import (
	"net/http"
	"strconv"

	"vault-betting/internal/auth"
	"vault-betting/internal/blockchain"
	"vault-betting/internal/models"
	"vault-betting/internal/services"

	"github.com/gin-gonic/gin"
)

type BetHandler struct {
	betService *services.BetService
	vault      *blockchain.VaultProgram
}

func NewBetHandler(betService *services.BetService, vault *blockchain.VaultProgram) *BetHandler {
	return &BetHandler{
		betService: betService,
		vault:      vault,
	}
}

// parseBetID reads the numeric bet id from the route.
func parseBetID(c *gin.Context) (uint64, bool) {
	betID, err := strconv.ParseUint(c.Param("bet_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bet id"})
		return 0, false
	}
	return betID, true
}

// CreateBet creates a new two-party bet with the caller as participant A
// POST /api/bets
func (h *BetHandler) CreateBet(c *gin.Context) {
	wallet, exists := auth.GetWalletAddress(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req models.CreateBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bet, err := h.betService.CreateTwoPartyBet(c.Request.Context(), wallet, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, bet.ToResponse())
}

// GetBet retrieves a bet by its numeric id
// GET /api/bets/:bet_id
func (h *BetHandler) GetBet(c *gin.Context) {
	betID, ok := parseBetID(c)
	if !ok {
		return
	}

	bet, err := h.betService.GetBet(c.Request.Context(), betID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, bet.ToResponse())
}

// GetMyBets lists the caller's bets as participant or arbiter
// GET /api/bets
func (h *BetHandler) GetMyBets(c *gin.Context) {
	wallet, exists := auth.GetWalletAddress(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit := 20
	offset := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	bets, total, err := h.betService.GetWalletBets(c.Request.Context(), wallet, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get bets"})
		return
	}

	responses := make([]*models.BetResponse, len(bets))
	for i, bet := range bets {
		responses[i] = bet.ToResponse()
	}

	c.JSON(http.StatusOK, gin.H{
		"bets":  responses,
		"total": total,
	})
}

// GetDepositInstruction returns the transfer parameters for funding the
// caller's side of a bet
// GET /api/bets/:bet_id/deposit-instruction
func (h *BetHandler) GetDepositInstruction(c *gin.Context) {
	wallet, exists := auth.GetWalletAddress(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	betID, ok := parseBetID(c)
	if !ok {
		return
	}

	bet, err := h.betService.GetBet(c.Request.Context(), betID)
	if err != nil {
		respondError(c, err)
		return
	}

	instruction, err := h.vault.DepositInstruction(betID, wallet, bet.BetAmount)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build instruction"})
		return
	}

	c.JSON(http.StatusOK, instruction)
}

// DepositFunds credits the caller's stake after on-chain verification
// POST /api/bets/:bet_id/deposit
func (h *BetHandler) DepositFunds(c *gin.Context) {
	wallet, exists := auth.GetWalletAddress(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	betID, ok := parseBetID(c)
	if !ok {
		return
	}

	var req models.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bet, err := h.betService.DepositBetFunds(c.Request.Context(), wallet, betID, req.Signature)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, bet.ToResponse())
}

// DeclareWinner resolves the bet; arbiter only
// POST /api/bets/:bet_id/declare-winner
func (h *BetHandler) DeclareWinner(c *gin.Context) {
	wallet, exists := auth.GetWalletAddress(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	betID, ok := parseBetID(c)
	if !ok {
		return
	}

	var req models.DeclareWinnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bet, err := h.betService.DeclareWinner(c.Request.Context(), wallet, betID, req.Winner)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, bet.ToResponse())
}

// Withdraw pays out the declared winner, once
// POST /api/bets/:bet_id/withdraw
func (h *BetHandler) Withdraw(c *gin.Context) {
	wallet, exists := auth.GetWalletAddress(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	betID, ok := parseBetID(c)
	if !ok {
		return
	}

	entry, err := h.betService.WithdrawWinnings(c.Request.Context(), wallet, betID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payout":     entry.Amount,
		"payout_sol": models.LamportsToSOL(entry.Amount),
	})
}

// PayArbiterFee releases the arbiter's cut of a completed bet
// POST /api/bets/:bet_id/arbiter-fee
func (h *BetHandler) PayArbiterFee(c *gin.Context) {
	betID, ok := parseBetID(c)
	if !ok {
		return
	}

	entry, err := h.betService.PayArbiterFee(c.Request.Context(), betID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"arbiter_fee":     entry.Amount,
		"arbiter_fee_sol": models.LamportsToSOL(entry.Amount),
	})
}

// Refund returns the caller's stake from an expired unfunded bet
// POST /api/bets/:bet_id/refund
func (h *BetHandler) Refund(c *gin.Context) {
	wallet, exists := auth.GetWalletAddress(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	betID, ok := parseBetID(c)
	if !ok {
		return
	}

	bet, err := h.betService.RefundExpiredBet(c.Request.Context(), wallet, betID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, bet.ToResponse())
}
