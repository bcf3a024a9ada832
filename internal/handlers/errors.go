package handlers

import (
	"errors"
	"net/http"

	"vault-betting/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// respondError maps service errors to HTTP statuses: missing rows to 404,
// authorization failures to 403, state and duplicate conflicts to 409,
// validation to 400.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		status = http.StatusNotFound

	case errors.Is(err, services.ErrUnauthorizedDepositor),
		errors.Is(err, services.ErrUnauthorizedArbiter),
		errors.Is(err, services.ErrUnauthorizedWinner),
		errors.Is(err, services.ErrNotCreator),
		errors.Is(err, services.ErrNotAParticipant):
		status = http.StatusForbidden

	case errors.Is(err, services.ErrInvalidBetStatus),
		errors.Is(err, services.ErrInvalidGameStatus),
		errors.Is(err, services.ErrNoWinnerDeclared),
		errors.Is(err, services.ErrNotEnoughPlayers),
		errors.Is(err, services.ErrWaitingForRolls),
		errors.Is(err, services.ErrMinimumTimeNotMet),
		errors.Is(err, services.ErrNotExpired),
		errors.Is(err, services.ErrAlreadyDeposited),
		errors.Is(err, services.ErrAlreadyJoined),
		errors.Is(err, services.ErrAlreadyRolled),
		errors.Is(err, services.ErrAlreadyBet),
		errors.Is(err, services.ErrAlreadyWithdrawn),
		errors.Is(err, services.ErrPrizeClaimed),
		errors.Is(err, services.ErrAlreadyRefunded),
		errors.Is(err, services.ErrArbiterFeePaid),
		errors.Is(err, services.ErrNothingToRefund),
		errors.Is(err, services.ErrBetIDTaken),
		errors.Is(err, services.ErrGameFull),
		errors.Is(err, services.ErrInsufficientEscrow):
		status = http.StatusConflict

	case errors.Is(err, services.ErrInvalidWinner),
		errors.Is(err, services.ErrInvalidChoice),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidMaxPlayers),
		errors.Is(err, services.ErrInvalidWallet),
		errors.Is(err, services.ErrUnconfirmedTx):
		status = http.StatusBadRequest
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
