package dto

import (
	"github.com/joaojf/banking-system/internal/core/domain"
	"github.com/joaojf/banking-system/internal/core/ports"
)

// DepositRequest is the request body for deposits. Accounts are addressed by
// the same display identifier the responses carry.
type DepositRequest struct {
	Identifier string `json:"identifier" binding:"required,account_identifier"`
	Amount     string `json:"amount" binding:"required,money"`
}

// WithdrawRequest is the request body for withdrawals.
type WithdrawRequest struct {
	Identifier string `json:"identifier" binding:"required,account_identifier"`
	Amount     string `json:"amount" binding:"required,money"`
}

// TransferRequest is the request body for transfers.
type TransferRequest struct {
	Origin      string `json:"origin" binding:"required,account_identifier"`
	Destination string `json:"destination" binding:"required,account_identifier"`
	Amount      string `json:"amount" binding:"required,money"`
}

// AccountResponse is the response body for account queries and mutations.
type AccountResponse struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
	Balance    string `json:"balance"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// BalanceResponse is the response body for balance queries.
type BalanceResponse struct {
	Identifier string `json:"identifier"`
	Balance    string `json:"balance"`
}

// OperationResponse is one statement line.
type OperationResponse struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Amount    string `json:"amount"`
	CreatedAt string `json:"created_at"`
}

// StatementResponse is the response body for statement queries.
type StatementResponse struct {
	Identifier string              `json:"identifier"`
	Operations []OperationResponse `json:"operations"`
}

// AuditResponse is the response body for balance audits.
type AuditResponse struct {
	Identifier string `json:"identifier"`
	Stored     string `json:"stored"`
	Replayed   string `json:"replayed"`
	Consistent bool   `json:"consistent"`
}

// FromAccount maps a domain account to its response body.
func FromAccount(account *domain.Account) AccountResponse {
	return AccountResponse{
		ID:         account.ID.String(),
		Identifier: account.Identifier,
		Balance:    account.Balance.StringFixed(2),
		CreatedAt:  account.CreatedAt.Format(timeFormat),
		UpdatedAt:  account.UpdatedAt.Format(timeFormat),
	}
}

// FromOperations maps a statement to its response body.
func FromOperations(identifier string, ops []domain.Operation) StatementResponse {
	out := StatementResponse{
		Identifier: identifier,
		Operations: make([]OperationResponse, 0, len(ops)),
	}
	for _, op := range ops {
		out.Operations = append(out.Operations, OperationResponse{
			ID:        op.ID.String(),
			Kind:      string(op.Kind),
			Amount:    op.Amount.StringFixed(2),
			CreatedAt: op.CreatedAt.Format(timeFormat),
		})
	}
	return out
}

// FromAudit maps a balance audit to its response body.
func FromAudit(audit *ports.BalanceAudit) AuditResponse {
	return AuditResponse{
		Identifier: audit.Identifier,
		Stored:     audit.Stored.StringFixed(2),
		Replayed:   audit.Replayed.StringFixed(2),
		Consistent: audit.Consistent,
	}
}

const timeFormat = "2006-01-02T15:04:05.000Z07:00"
