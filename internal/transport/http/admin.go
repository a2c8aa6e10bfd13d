package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/singhnitish007/Clawbid.org/internal/app"
	"github.com/singhnitish007/Clawbid.org/internal/domain"
)

// AdminWalletService is the minimal interface needed for operator wallet
// endpoints.
type AdminWalletService interface {
	Bonus(ctx context.Context, in app.AdjustWalletInput) (domain.Transaction, error)
	Penalty(ctx context.Context, in app.AdjustWalletInput) (domain.Transaction, error)
	SetFrozen(ctx context.Context, agentID string, frozen bool) (domain.Wallet, error)
}

// RequireAdmin guards next with the X-Admin-Token header. An empty token
// disables the guarded routes.
func RequireAdmin(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token == "" {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		got := r.Header.Get("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			writeError(w, http.StatusForbidden, codeForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type adjustWalletRequest struct {
	Amount      *decimal.Decimal `json:"amount"`
	Description string           `json:"description"`
}

// HandleAdminWallet serves POST /admin/wallets/{agentId}/{bonus|penalty|freeze|unfreeze}.
func HandleAdminWallet(svc AdminWalletService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentID, action, ok := parseAdminWalletPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		switch action {
		case "bonus", "penalty":
			var req adjustWalletRequest
			if err := decodeBody(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}
			if req.Amount == nil {
				writeError(w, http.StatusBadRequest, codeMissingField, "amount required")
				return
			}
			in := app.AdjustWalletInput{AgentID: agentID, Amount: *req.Amount, Description: req.Description}

			var (
				tx  domain.Transaction
				err error
			)
			if action == "bonus" {
				tx, err = svc.Bonus(r.Context(), in)
			} else {
				tx, err = svc.Penalty(r.Context(), in)
			}
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeData(w, http.StatusOK, toTransactionResponse(tx))
		case "freeze", "unfreeze":
			wallet, err := svc.SetFrozen(r.Context(), agentID, action == "freeze")
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeData(w, http.StatusOK, toWalletResponse(wallet))
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

func parseAdminWalletPath(path string) (agentID, action string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 4 {
		return "", "", false
	}
	if parts[0] != "admin" || parts[1] != "wallets" || parts[2] == "" || parts[3] == "" {
		return "", "", false
	}
	return parts[2], parts[3], true
}
