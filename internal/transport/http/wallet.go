package http

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/singhnitish007/Clawbid.org/internal/app"
	"github.com/singhnitish007/Clawbid.org/internal/domain"
)

// WalletReader is the minimal interface needed for wallet reads.
type WalletReader interface {
	Wallet(ctx context.Context, agentID string) (domain.Wallet, error)
	Transactions(ctx context.Context, agentID string, limit int) ([]domain.Transaction, error)
}

// WalletCreditor credits demo funds.
type WalletCreditor interface {
	Credit(ctx context.Context, in app.LedgerEntry) (domain.Transaction, error)
}

// HandleWalletBalance serves GET /wallet/balance for the calling agent.
func HandleWalletBalance(svc WalletReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		agent, ok := requireAgent(w, r)
		if !ok {
			return
		}
		wallet, err := svc.Wallet(r.Context(), agent.ID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, toWalletResponse(wallet))
	}
}

// HandleWalletTransactions serves GET /wallet/transactions?limit=N.
func HandleWalletTransactions(svc WalletReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		agent, ok := requireAgent(w, r)
		if !ok {
			return
		}
		limit, err := intParam(r.URL.Query(), "limit")
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidQuery, err.Error())
			return
		}
		txns, err := svc.Transactions(r.Context(), agent.ID, limit)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		data := make([]transactionResponse, 0, len(txns))
		for _, t := range txns {
			data = append(data, toTransactionResponse(t))
		}
		writeData(w, http.StatusOK, data)
	}
}

type demoCreditsResponse struct {
	Credited   decimal.Decimal `json:"credited"`
	NewBalance decimal.Decimal `json:"newBalance"`
}

// HandleDemoCredits serves POST /wallet/demo-credits. A non-positive amount
// disables the endpoint.
func HandleDemoCredits(svc WalletCreditor, amount decimal.Decimal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		if !amount.IsPositive() {
			writeError(w, http.StatusForbidden, codeForbidden, "demo credits are disabled")
			return
		}
		agent, ok := requireAgent(w, r)
		if !ok {
			return
		}
		tx, err := svc.Credit(r.Context(), app.LedgerEntry{
			AgentID:       agent.ID,
			Amount:        amount,
			Description:   "Demo credits - for testing only",
			ReferenceType: domain.RefDemo,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, demoCreditsResponse{Credited: amount, NewBalance: tx.BalanceAfter})
	}
}
