package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rahulvdm/auction-engine/internal/auction"
	"github.com/rahulvdm/auction-engine/internal/clock"
	"github.com/rahulvdm/auction-engine/internal/config"
	"github.com/rahulvdm/auction-engine/internal/health"
	"github.com/rahulvdm/auction-engine/internal/leader"
	"github.com/rahulvdm/auction-engine/internal/notify"
	"github.com/rahulvdm/auction-engine/internal/prediction"
	"github.com/rahulvdm/auction-engine/internal/store"
	"github.com/rahulvdm/auction-engine/internal/telemetry"

	// Register store drivers so they are available via store.Open.
	_ "github.com/rahulvdm/auction-engine/internal/store/memory"
	_ "github.com/rahulvdm/auction-engine/internal/store/postgres"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load configuration.
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup telemetry.
	tp, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without OTEL export", slog.Any("error", err))
		tp = telemetry.NewNopProvider()
	}
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	logger := tp.Logger
	clk := clock.Real{}

	// Open store using the configured driver (sqlx or memory).
	repos, err := store.Open(ctx, cfg.Database, clk)
	if err != nil {
		return fmt.Errorf("opening store (driver=%s): %w", cfg.Database.Driver, err)
	}
	defer repos.Closer.Close()

	logger.InfoContext(ctx, "connected to database", slog.String("driver", cfg.Database.Driver))

	metrics, err := telemetry.NewBidMetrics(tp.MeterProvider)
	if err != nil {
		return fmt.Errorf("creating bid metrics: %w", err)
	}

	hub := notify.NewHub(0, logger)
	mgr := auction.NewManager(repos, hub, logger, tp.TracerProvider, clk, cfg.Auction.CommitWait, metrics)

	var enhancer prediction.Enhancer
	if cfg.Prediction.EnhancerURL != "" {
		enhancer = prediction.NewHTTPEnhancer(cfg.Prediction.EnhancerURL, cfg.Prediction.EnhancerTimeout)
	}
	predictor := prediction.NewEngine(cfg.Prediction, enhancer, logger, tp.TracerProvider)

	// Setup health checks.
	healthHandler := health.NewHandler(clk,
		health.Checker{
			Name:  "database",
			Check: repos.Ping,
		},
	)
	healthHandler.SetStats(mgr.Stats)

	// HTTP server: health probes plus the read-only prediction endpoint
	// (runs on all replicas; predictions read a snapshot, never the gate).
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler.LivenessHandler())
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler())
	mux.HandleFunc("GET /v1/predictions", predictionHandler(mgr, predictor, cfg.Prediction.EnhancerURL != ""))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.InfoContext(ctx, "starting http server", slog.Int("port", cfg.Server.Port))
		if listenErr := httpServer.ListenAndServe(); listenErr != nil && listenErr != http.ErrServerClosed {
			logger.ErrorContext(ctx, "http server error", slog.Any("error", listenErr))
		}
	}()

	// runAuctioneer is the core work that only the leader should run.
	runAuctioneer := func(ctx context.Context) {
		// Recover in-flight auctions from the event store so that they
		// survive leader failover.
		if n, recoverErr := mgr.RecoverLiveAuctions(ctx); recoverErr != nil {
			logger.ErrorContext(ctx, "auction recovery failed", slog.Any("error", recoverErr))
			return
		} else if n > 0 {
			logger.InfoContext(ctx, "recovered live auctions", slog.Int("count", n))
		}

		notifications, unsubscribe := hub.Subscribe()
		defer unsubscribe()

		healthHandler.SetReady(true)
		logger.InfoContext(ctx, "auctiond is running (leader)", slog.String("version", version))

		// Block until leadership is lost or the process is shutting down,
		// logging auction activity as it happens.
		for {
			select {
			case <-ctx.Done():
				healthHandler.SetReady(false)
				return
			case n, ok := <-notifications:
				if !ok {
					return
				}
				logger.InfoContext(ctx, "auction activity",
					slog.String("kind", string(n.Kind)),
					slog.String("auction_id", n.AuctionID),
					slog.String("player_id", n.PlayerID),
					slog.String("bidder_id", n.BidderID),
					slog.Int64("amount", n.Amount))
			}
		}
	}

	if cfg.LeaderElection.Enabled {
		logger.InfoContext(ctx, "leader election enabled, waiting for leadership...")

		if leaderErr := leader.Run(ctx, cfg.LeaderElection, logger, runAuctioneer, func() {
			logger.Info("lost leadership, shutting down...")
			cancel()
		}); leaderErr != nil {
			return fmt.Errorf("leader election: %w", leaderErr)
		}
	} else {
		// No leader election, run directly.
		runAuctioneer(ctx)
		logger.Info("shutting down...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", slog.Any("error", err))
	}

	logger.Info("shutdown complete")
	return nil
}

// predictionHandler serves bid predictions for an open lot. It reads a
// point-in-time snapshot, so responses may trail the latest accepted bid.
func predictionHandler(mgr *auction.Manager, predictor *prediction.Engine, enhancerConfigured bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		auctionID := q.Get("auction")
		playerID := q.Get("player")
		bidderID := q.Get("bidder")
		if auctionID == "" || playerID == "" || bidderID == "" {
			http.Error(w, "auction, player and bidder are required", http.StatusBadRequest)
			return
		}

		snap, err := mgr.Snapshot(auctionID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		opts := prediction.Options{
			UseExternalEnhancement: enhancerConfigured && q.Get("enhance") == "true",
		}
		result, err := predictor.Predict(r.Context(), snap, playerID, bidderID, opts)
		if err != nil {
			code := http.StatusBadRequest
			if errors.Is(err, auction.ErrPlayerNotFound) || errors.Is(err, auction.ErrBidderNotFound) {
				code = http.StatusNotFound
			}
			http.Error(w, err.Error(), code)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if encodeErr := json.NewEncoder(w).Encode(result); encodeErr != nil {
			slog.Error("encoding prediction response", slog.Any("error", encodeErr))
		}
	}
}
