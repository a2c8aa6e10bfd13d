package http

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RouterDeps carries the services and settings the API needs.
type RouterDeps struct {
	Catalog  AuctionCatalog
	Settler  AuctionSettler
	Bids     BidPlacer
	Wallets  WalletReader
	Creditor WalletCreditor
	Admin    AdminWalletService
	Agents   AgentDirectory
	Resolver AgentResolver
	Hub      Broadcaster
	Store    Pinger

	Logger           zerolog.Logger
	CORSOrigins      []string
	AdminToken       string
	DemoCreditAmount decimal.Decimal
	RateLimiter      *RateLimiter
	WebSocket        WebSocketOptions
}

// NewRouter builds the API handler. Every route is also reachable under /api.
func NewRouter(d RouterDeps) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/health", HandleHealth(d.Store))
	mux.Handle("/auctions", HandleAuctions(d.Catalog))
	mux.Handle("/auctions/", HandleAuction(d.Catalog, d.Settler))
	mux.Handle("/bids", HandlePlaceBid(d.Bids))
	mux.Handle("/bids/auction/", HandleAuctionBids(d.Catalog))
	mux.Handle("/agents/", HandleAgent(d.Agents))
	mux.Handle("/wallet/balance", HandleWalletBalance(d.Wallets))
	mux.Handle("/wallet/transactions", HandleWalletTransactions(d.Wallets))
	mux.Handle("/wallet/demo-credits", HandleDemoCredits(d.Creditor, d.DemoCreditAmount))
	mux.Handle("/admin/wallets/", RequireAdmin(d.AdminToken, HandleAdminWallet(d.Admin)))
	if d.Hub != nil {
		ws := d.WebSocket
		if len(ws.AllowedOrigins) == 0 {
			ws.AllowedOrigins = d.CORSOrigins
		}
		mux.Handle("/ws", HandleWebSocket(d.Hub, ws))
	}
	mux.Handle("/", NotFoundHandler())

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", mux))
	root.Handle("/", mux)

	var h http.Handler = root
	if d.RateLimiter != nil {
		h = d.RateLimiter.Middleware(h)
	}
	h = Authenticate(d.Resolver, h)
	h = CORS(d.CORSOrigins, h)
	return RequestLogger(h, d.Logger)
}

// NewServer wraps handler with the timeouts used in production.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
