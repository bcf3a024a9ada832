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

type GameHandler struct {
	gameService *services.GameService
	vault       *blockchain.VaultProgram
	fairness    *services.FairDiceSource
}

func NewGameHandler(gameService *services.GameService, vault *blockchain.VaultProgram, fairness *services.FairDiceSource) *GameHandler {
	return &GameHandler{
		gameService: gameService,
		vault:       vault,
		fairness:    fairness,
	}
}

func parseGameID(c *gin.Context) (uint64, bool) {
	gameID, err := strconv.ParseUint(c.Param("game_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
		return 0, false
	}
	return gameID, true
}

// CreateGame opens a new dice game with the caller in seat 0
// POST /api/games
func (h *GameHandler) CreateGame(c *gin.Context) {
	wallet, exists := auth.GetWalletAddress(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req models.CreateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	game, err := h.gameService.CreateGame(c.Request.Context(), wallet, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, game)
}

// GetGame retrieves a game with its seats
// GET /api/games/:game_id
func (h *GameHandler) GetGame(c *gin.Context) {
	gameID, ok := parseGameID(c)
	if !ok {
		return
	}

	game, err := h.gameService.GetGame(c.Request.Context(), gameID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, game)
}

// GetOpenGames lists joinable games
// GET /api/games
func (h *GameHandler) GetOpenGames(c *gin.Context) {
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

	games, total, err := h.gameService.GetOpenGames(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get games"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"games": games,
		"total": total,
	})
}

// GetJoinInstruction returns the transfer parameters for a game's entry fee
// GET /api/games/:game_id/join-instruction
func (h *GameHandler) GetJoinInstruction(c *gin.Context) {
	wallet, exists := auth.GetWalletAddress(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	gameID, ok := parseGameID(c)
	if !ok {
		return
	}

	game, err := h.gameService.GetGame(c.Request.Context(), gameID)
	if err != nil {
		respondError(c, err)
		return
	}

	instruction, err := h.vault.JoinGameInstruction(gameID, wallet, game.EntryFee)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build instruction"})
		return
	}

	c.JSON(http.StatusOK, instruction)
}

// JoinGame seats the caller after verifying their entry-fee transfer
// POST /api/games/:game_id/join
func (h *GameHandler) JoinGame(c *gin.Context) {
	wallet, exists := auth.GetWalletAddress(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	gameID, ok := parseGameID(c)
	if !ok {
		return
	}

	var req models.JoinGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	game, err := h.gameService.JoinGame(c.Request.Context(), wallet, gameID, req.Signature)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, game)
}

// StartGame begins the rolling phase early; creator only
// POST /api/games/:game_id/start
func (h *GameHandler) StartGame(c *gin.Context) {
	wallet, exists := auth.GetWalletAddress(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	gameID, ok := parseGameID(c)
	if !ok {
		return
	}

	game, err := h.gameService.StartGame(c.Request.Context(), wallet, gameID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, game)
}

// RollDice rolls for the caller's seat, once
// POST /api/games/:game_id/roll
func (h *GameHandler) RollDice(c *gin.Context) {
	wallet, exists := auth.GetWalletAddress(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	gameID, ok := parseGameID(c)
	if !ok {
		return
	}

	roll, game, err := h.gameService.RollDice(c.Request.Context(), wallet, gameID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"roll": roll,
		"game": game,
	})
}

// FinalizeGame resolves a fully-rolled game whose resolution was interrupted
// POST /api/games/:game_id/finalize
func (h *GameHandler) FinalizeGame(c *gin.Context) {
	gameID, ok := parseGameID(c)
	if !ok {
		return
	}

	game, err := h.gameService.FinalizeGame(c.Request.Context(), gameID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, game)
}

// ClaimPrize pays the winner their share of the pool, once
// POST /api/games/:game_id/claim
func (h *GameHandler) ClaimPrize(c *gin.Context) {
	wallet, exists := auth.GetWalletAddress(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	gameID, ok := parseGameID(c)
	if !ok {
		return
	}

	entry, err := h.gameService.ClaimPrize(c.Request.Context(), wallet, gameID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payout":     entry.Amount,
		"payout_sol": models.LamportsToSOL(entry.Amount),
	})
}

// EmergencyWithdraw returns the caller's entry fee from an abandoned or
// stalled game
// POST /api/games/:game_id/emergency-withdraw
func (h *GameHandler) EmergencyWithdraw(c *gin.Context) {
	wallet, exists := auth.GetWalletAddress(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	gameID, ok := parseGameID(c)
	if !ok {
		return
	}

	game, err := h.gameService.EmergencyWithdraw(c.Request.Context(), wallet, gameID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, game)
}

// GetFairness returns the server seed commitment players verify rolls
// against after reveal
// GET /api/games/fairness
func (h *GameHandler) GetFairness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"server_seed_hash": h.fairness.ServerSeedHash(),
		"algorithm":        "HMAC-SHA256(server_seed, game_id:wallet:nonce)",
	})
}
