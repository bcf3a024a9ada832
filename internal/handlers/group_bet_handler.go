package handlers

import (
	"net/http"

	"vault-betting/internal/auth"
	"vault-betting/internal/models"
	"vault-betting/internal/services"

	"github.com/gin-gonic/gin"
)

type GroupBetHandler struct {
	groupBetService *services.GroupBetService
}

func NewGroupBetHandler(groupBetService *services.GroupBetService) *GroupBetHandler {
	return &GroupBetHandler{
		groupBetService: groupBetService,
	}
}

// PlaceGroupBet records a side bet on an active two-party bet
// POST /api/bets/:bet_id/group-bets
func (h *GroupBetHandler) PlaceGroupBet(c *gin.Context) {
	wallet, exists := auth.GetWalletAddress(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	betID, ok := parseBetID(c)
	if !ok {
		return
	}

	var req models.PlaceGroupBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	gb, err := h.groupBetService.PlaceGroupBet(c.Request.Context(), wallet, betID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gb)
}

// GetGroupBets lists all side bets on a parent bet
// GET /api/bets/:bet_id/group-bets
func (h *GroupBetHandler) GetGroupBets(c *gin.Context) {
	betID, ok := parseBetID(c)
	if !ok {
		return
	}

	groupBets, err := h.groupBetService.GetGroupBets(c.Request.Context(), betID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get group bets"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"group_bets": groupBets,
		"total":      len(groupBets),
	})
}

// SettleGroupBets distributes the group sub-pool of a completed bet.
// Callable by anyone, idempotent.
// POST /api/bets/:bet_id/group-bets/settle
func (h *GroupBetHandler) SettleGroupBets(c *gin.Context) {
	betID, ok := parseBetID(c)
	if !ok {
		return
	}

	if err := h.groupBetService.SettleGroupBets(c.Request.Context(), betID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "group bets settled"})
}
