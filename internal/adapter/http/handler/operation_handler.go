package handler

import (
	"github.com/joaojf/banking-system/internal/adapter/http/dto"
	"github.com/joaojf/banking-system/internal/core/ports"
	"github.com/joaojf/banking-system/pkg/apperror"
	"github.com/joaojf/banking-system/pkg/response"

	"github.com/gin-gonic/gin"
)

// OperationHandler handles the mutating ledger endpoints.
type OperationHandler struct {
	ledgerSvc ports.LedgerService
}

// NewOperationHandler creates a new OperationHandler.
func NewOperationHandler(ledgerSvc ports.LedgerService) *OperationHandler {
	return &OperationHandler{ledgerSvc: ledgerSvc}
}

// Deposit handles POST /api/v1/operations/deposit.
func (h *OperationHandler) Deposit(c *gin.Context) {
	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	amount, err := dto.ParseAmount(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	account, err := h.ledgerSvc.Deposit(c.Request.Context(), req.Identifier, amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromAccount(account))
}

// Withdraw handles POST /api/v1/operations/withdraw.
func (h *OperationHandler) Withdraw(c *gin.Context) {
	var req dto.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	amount, err := dto.ParseAmount(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	account, err := h.ledgerSvc.Withdraw(c.Request.Context(), req.Identifier, amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromAccount(account))
}

// Transfer handles POST /api/v1/operations/transfer.
func (h *OperationHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	amount, err := dto.ParseAmount(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	if err := h.ledgerSvc.Transfer(c.Request.Context(), req.Origin, req.Destination, amount); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
