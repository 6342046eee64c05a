package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"soliver/bridge"
	"soliver/config"
	"soliver/core/events"
	"soliver/core/state"
	"soliver/core/types"
	"soliver/native/vault"
	"soliver/observability/logging"
	"soliver/rpc"
	"soliver/rpc/modules"
	"soliver/storage"
)

const (
	envEnv          = "SOLIVER_ENV"
	relayerTokenEnv = "SOLIVER_RELAYER_TOKEN"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envEnv))
	logger := logging.Setup("soliverd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if strings.TrimSpace(cfg.LogFile) != "" {
		logger = logging.Setup("soliverd", env, logging.Options{FilePath: cfg.LogFile})
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		panic(fmt.Sprintf("Failed to prepare data directory: %v", err))
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "vaults"))
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifier, outbox, err := buildNotifier(ctx, cfg, logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to configure notifier: %v", err))
	}
	if outbox != nil {
		defer func() {
			_ = outbox.Close()
		}()
	}

	liquidator, err := cfg.Liquidator()
	if err != nil {
		panic(fmt.Sprintf("Failed to decode liquidator address: %v", err))
	}
	if liquidator.IsZero() {
		logger.Warn("no liquidator authority configured; vault_liquidate is disabled")
	}

	engine := vault.NewEngine()
	engine.SetState(state.NewManager(db))
	engine.SetNotifier(notifier)
	engine.SetPauses(state.NewPauseSet(cfg.PausedModules))
	engine.SetLiquidator(liquidator)
	engine.SetEmitter(logEmitter{logger: logger})

	go serveMetrics(cfg.MetricsAddress, logger)

	server := rpc.NewServer(modules.NewVaultModule(engine))
	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("starting JSON-RPC server", slog.String("address", cfg.RPCAddress))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("RPC server failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// buildNotifier assembles the cross-chain notifier chain: a relayer client
// when configured (a dry-run recorder otherwise), optionally fronted by the
// durable outbox.
func buildNotifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (bridge.Notifier, *bridge.Outbox, error) {
	var notifier bridge.Notifier
	if trimmed := strings.TrimSpace(cfg.RelayerURL); trimmed != "" {
		relayer, err := bridge.NewRelayer(trimmed,
			bridge.WithRelayerTimeout(time.Duration(cfg.RelayerTimeout)*time.Second),
			bridge.WithRelayerAuthToken(os.Getenv(relayerTokenEnv)),
		)
		if err != nil {
			return nil, nil, err
		}
		notifier = relayer
	} else {
		logger.Warn("no relayer configured; notices are recorded in memory only")
		notifier = bridge.NewRecorder()
	}

	if !cfg.OutboxEnabled {
		return notifier, nil, nil
	}
	outbox, err := bridge.NewOutbox(cfg.OutboxPath, notifier, logger,
		bridge.WithDispatchInterval(time.Duration(cfg.DispatchInterval)*time.Second))
	if err != nil {
		return nil, nil, err
	}
	go outbox.Run(ctx)
	return outbox, outbox, nil
}

func serveMetrics(addr string, logger *slog.Logger) {
	if strings.TrimSpace(addr) == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("starting metrics server", slog.String("address", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server failed", slog.Any("error", err))
	}
}

// logEmitter mirrors ledger events into the structured log so operators can
// follow transitions without an indexer.
type logEmitter struct {
	logger *slog.Logger
}

func (l logEmitter) Emit(evt events.Event) {
	attrs := []any{slog.String("type", evt.EventType())}
	if wire, ok := evt.(interface{ Event() *types.Event }); ok {
		if converted := wire.Event(); converted != nil {
			for key, value := range converted.Attributes {
				attrs = append(attrs, slog.String(key, value))
			}
		}
	}
	l.logger.Info("vault event", attrs...)
}
