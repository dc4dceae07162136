package handler

import (
	"net/http"

	"github.com/joaojf/banking-system/internal/adapter/http/dto"
	"github.com/joaojf/banking-system/internal/core/ports"
	"github.com/joaojf/banking-system/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccountHandler handles account lifecycle and query endpoints.
type AccountHandler struct {
	accountSvc ports.AccountService
	ledgerSvc  ports.LedgerService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc ports.AccountService, ledgerSvc ports.LedgerService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc, ledgerSvc: ledgerSvc}
}

// Create handles POST /api/v1/accounts.
func (h *AccountHandler) Create(c *gin.Context) {
	account, err := h.accountSvc.Create(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.FromAccount(account))
}

// List handles GET /api/v1/accounts.
func (h *AccountHandler) List(c *gin.Context) {
	accounts, err := h.accountSvc.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]dto.AccountResponse, 0, len(accounts))
	for i := range accounts {
		out = append(out, dto.FromAccount(&accounts[i]))
	}
	response.OK(c, out)
}

// Get handles GET /api/v1/accounts/:identifier.
func (h *AccountHandler) Get(c *gin.Context) {
	account, err := h.accountSvc.Get(c.Request.Context(), c.Param("identifier"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromAccount(account))
}

// Delete handles DELETE /api/v1/accounts/:identifier.
func (h *AccountHandler) Delete(c *gin.Context) {
	if err := h.accountSvc.Delete(c.Request.Context(), c.Param("identifier")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Balance handles GET /api/v1/accounts/:identifier/balance.
func (h *AccountHandler) Balance(c *gin.Context) {
	identifier := c.Param("identifier")
	balance, err := h.ledgerSvc.BalanceOf(c.Request.Context(), identifier)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.BalanceResponse{
		Identifier: identifier,
		Balance:    balance.StringFixed(2),
	})
}

// Statement handles GET /api/v1/accounts/:identifier/statement.
func (h *AccountHandler) Statement(c *gin.Context) {
	identifier := c.Param("identifier")
	ops, err := h.ledgerSvc.Statement(c.Request.Context(), identifier)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromOperations(identifier, ops))
}

// Audit handles GET /api/v1/accounts/:identifier/audit.
func (h *AccountHandler) Audit(c *gin.Context) {
	audit, err := h.ledgerSvc.AuditBalance(c.Request.Context(), c.Param("identifier"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromAudit(audit))
}

// HealthCheck returns a handler that pings every dependency.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		type depStatus struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		}

		deps := make(map[string]depStatus)
		allHealthy := true

		for _, checker := range checkers {
			if err := checker.Ping(c.Request.Context()); err != nil {
				deps[checker.Name()] = depStatus{Status: "unhealthy", Error: err.Error()}
				allHealthy = false
			} else {
				deps[checker.Name()] = depStatus{Status: "healthy"}
			}
		}

		status := "healthy"
		httpCode := http.StatusOK
		if !allHealthy {
			status = "degraded"
			httpCode = http.StatusServiceUnavailable
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}
