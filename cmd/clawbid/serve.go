package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/singhnitish007/Clawbid.org/internal/app"
	"github.com/singhnitish007/Clawbid.org/internal/auth"
	"github.com/singhnitish007/Clawbid.org/internal/clock"
	"github.com/singhnitish007/Clawbid.org/internal/config"
	"github.com/singhnitish007/Clawbid.org/internal/notify"
	"github.com/singhnitish007/Clawbid.org/internal/storage/memory"
	"github.com/singhnitish007/Clawbid.org/internal/storage/postgres"
	transporthttp "github.com/singhnitish007/Clawbid.org/internal/transport/http"
	"github.com/singhnitish007/Clawbid.org/migrations"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var store, port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, websocket feed and expiry sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := root.load(cmd)
			if err != nil {
				return err
			}
			if store != "" {
				cfg.Store = store
			}
			if port != "" {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, log)
		},
	}
	cmd.Flags().StringVar(&store, "store", "", `storage backend, "memory" or "postgres"`)
	cmd.Flags().StringVar(&port, "port", "", "listen port")
	return cmd
}

// repositories is the storage a running service needs.
type repositories struct {
	auctions app.AuctionRepository
	ledger   app.LedgerRepository
	admin    app.AdminRepository
	agents   app.AgentRepository
	health   transporthttp.Pinger
	close    func()
}

func openRepositories(ctx context.Context, cfg config.Config, log zerolog.Logger) (repositories, error) {
	if cfg.Store == config.StoreMemory {
		s := memory.New()
		log.Warn().Msg("using in-memory store, data is lost on restart")
		return repositories{auctions: s, ledger: s, admin: s, agents: s, close: func() {}}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return repositories{}, fmt.Errorf("connect to db: %w", err)
	}
	applied, err := migrations.Apply(ctx, pool)
	if err != nil {
		pool.Close()
		return repositories{}, fmt.Errorf("apply migrations: %w", err)
	}
	for _, name := range applied {
		log.Info().Str("migration", name).Msg("applied migration")
	}

	auctions := postgres.NewAuctionRepository(pool, postgres.WithLockTimeout(cfg.Database.LockTimeout))
	ledger := postgres.NewLedgerRepository(pool, postgres.WithLockTimeout(cfg.Database.LockTimeout))
	return repositories{
		auctions: auctions,
		ledger:   ledger,
		admin:    ledger,
		agents:   auctions,
		health:   pool,
		close:    pool.Close,
	}, nil
}

func serve(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	repos, err := openRepositories(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer repos.close()

	clk := clock.NewSystem()
	hub := notify.NewHub(log)

	ledger := app.NewLedgerService(repos.ledger, clk,
		app.WithWalletLockWait(cfg.Auction.LockWait),
		app.WithLedgerLogger(log),
	)
	auctions := app.NewAuctionService(repos.auctions, clk,
		app.WithDefaultMinIncrement(cfg.Auction.MinIncrement()),
		app.WithMaxDuration(cfg.Auction.MaxDuration),
		app.WithAuctionLogger(log),
	)
	settlement := app.NewSettlementService(repos.auctions, ledger, hub, clk,
		app.WithAuctionLockWait(cfg.Auction.LockWait),
		app.WithSelfBidding(cfg.Auction.AllowSelfBid),
		app.WithSettlementLogger(log),
	)
	admin := app.NewAdminService(repos.admin, ledger)
	sweeper := app.NewSweeper(repos.auctions, settlement, clk,
		app.WithSweepInterval(cfg.Sweeper.Interval),
		app.WithSweepBatch(cfg.Sweeper.Batch),
		app.WithSweepWorkers(cfg.Sweeper.Workers),
		app.WithSweeperLogger(log),
	)
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret,
		auth.WithAPIKeys(cfg.Auth.AllowAPIKeys),
		auth.WithLogger(log),
	)

	demo := decimal.Zero
	if cfg.Wallet.DemoCredits {
		demo = cfg.Wallet.DemoAmount()
	}
	if cfg.Auth.AdminToken == "" {
		log.Warn().Msg("CLAWBID_ADMIN_TOKEN not set, admin routes are disabled")
	}

	handler := transporthttp.NewRouter(transporthttp.RouterDeps{
		Catalog:          auctions,
		Settler:          settlement,
		Bids:             settlement,
		Wallets:          ledger,
		Creditor:         ledger,
		Admin:            admin,
		Agents:           app.NewAgentService(repos.agents),
		Resolver:         verifier,
		Hub:              hub,
		Store:            repos.health,
		Logger:           log,
		CORSOrigins:      cfg.Server.CORSOrigins,
		AdminToken:       cfg.Auth.AdminToken,
		DemoCreditAmount: demo,
		RateLimiter:      transporthttp.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst),
		WebSocket: transporthttp.WebSocketOptions{
			ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
			WriteBufferSize: cfg.WebSocket.WriteBufferSize,
			SendBuffer:      cfg.WebSocket.SendBuffer,
			PingPeriod:      cfg.WebSocket.PingPeriod,
		},
	})
	server := transporthttp.NewServer(":"+cfg.Server.Port, handler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Str("store", cfg.Store).Msg("api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutdown signal received, stopping server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	log.Info().Msg("server stopped")
	return err
}
