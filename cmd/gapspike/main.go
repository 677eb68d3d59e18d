package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/minhvq/gapspike/internal/config"
	"github.com/minhvq/gapspike/internal/engine"
	"github.com/minhvq/gapspike/internal/ingest"
	"github.com/minhvq/gapspike/internal/logger"
	"github.com/minhvq/gapspike/internal/models"
	"github.com/minhvq/gapspike/internal/storage"
	"github.com/minhvq/gapspike/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	store, err := storage.New(cfg.Storage.MaxAlerts, cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	overrides := mergeOverrides(cfg, store)

	eng := engine.New(engine.Config{
		GapPercentDefault:   cfg.Engine.GapPercentDefault,
		SpikePercentDefault: cfg.Engine.SpikePercentDefault,
		GracePeriod:         cfg.Engine.GracePeriod,
		StaleAfter:          cfg.Engine.StaleAfter,
		DelayAfter:          cfg.Engine.DelayAfter,
		RequireMarketOpen:   cfg.Engine.RequireMarketOpen,
		IgnoreAfterOpen:     cfg.Engine.IgnoreAfterOpen,
		FilterEnabled:       cfg.SymbolFilter.Enabled,
		FilterSelection:     cfg.SymbolFilter.Selection,
	}, cfg.Symbols, overrides)

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      ingest.NewServer(eng).Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Listening on %s", cfg.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed: %v", err)
		}
	}()

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown failed: %v", err)
		}
		cancel()
	}()

	if cfg.Telegram.Enabled && telegramClient != nil {
		telegramClient.ListenForCommands(ctx)
	}

	logger.Info("Detection engine started (gap: %.2f%%, spike: %.2f%%, grace: %v, symbols: %d)",
		cfg.Engine.GapPercentDefault,
		cfg.Engine.SpikePercentDefault,
		cfg.Engine.GracePeriod,
		len(cfg.Symbols),
	)

	runAlertLoop(ctx, eng, store, telegramClient, cfg.Engine.PollInterval)
	logger.Info("Service stopped")
}

// mergeOverrides combines file-configured overrides with persisted ones.
// Persisted edits win over the config file. Keys are lower-cased so the two
// sources collide instead of coexisting.
func mergeOverrides(cfg *config.Config, store *storage.Storage) map[string]models.ThresholdOverride {
	merged := make(map[string]models.ThresholdOverride, len(cfg.Overrides))
	for key, ov := range cfg.Overrides {
		merged[strings.ToLower(key)] = ov
	}
	stored, err := store.LoadOverrides()
	if err != nil {
		logger.Warn("Failed to load persisted overrides: %v", err)
		return merged
	}
	for key, ov := range stored {
		merged[strings.ToLower(key)] = ov
	}
	return merged
}

// runAlertLoop polls the alert board and, on each newly activated entry,
// appends it to the history log and notifies Telegram. Entries in grace stay
// marked as notified so re-detection within grace does not re-alert.
func runAlertLoop(ctx context.Context, eng *engine.Engine, store *storage.Storage, telegramClient *telegram.Client, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	notified := make(map[string]bool)
	consecutiveFailures := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			board := eng.AlertBoard()

			var fresh []models.DetectionResult
			for key, entry := range board {
				if !notified[key] {
					fresh = append(fresh, entry.Result)
					notified[key] = true
				}
			}
			for key := range notified {
				if _, ok := board[key]; !ok {
					delete(notified, key)
				}
			}
			if len(fresh) == 0 {
				continue
			}
			sort.Slice(fresh, func(i, j int) bool {
				return fresh[i].Key() < fresh[j].Key()
			})

			logger.Info("%d new alert(s) activated", len(fresh))
			now := time.Now()
			var persistErr error
			for i := range fresh {
				logger.Info("Alert: %s", fresh[i].Summary())
				if err := store.AddAlert(&fresh[i], now); err != nil {
					logger.Warn("Failed to persist alert %s: %v", fresh[i].Key(), err)
					persistErr = err
				}
			}
			handlePersistResult(persistErr, &consecutiveFailures, telegramClient)

			if telegramClient != nil {
				if err := telegramClient.Send(fresh); err != nil {
					logger.Error("Failed to send Telegram notification: %v", err)
				}
			}
		}
	}
}

// handlePersistResult tracks consecutive alert-persistence failures and
// raises a Telegram error notice on the first one, so a broken database
// surfaces once instead of once per poll.
func handlePersistResult(err error, consecutiveFailures *int, telegramClient *telegram.Client) {
	if err == nil {
		if *consecutiveFailures > 0 {
			logger.Info("Alert persistence recovered after %d failed cycle(s)", *consecutiveFailures)
		}
		*consecutiveFailures = 0
		return
	}
	*consecutiveFailures++
	logger.Warn("Alert persistence failing (%d consecutive cycle(s)): %v", *consecutiveFailures, err)
	if *consecutiveFailures == 1 && telegramClient != nil {
		if sendErr := telegramClient.SendError(err); sendErr != nil {
			logger.Error("Failed to send error notification: %v", sendErr)
		}
	}
}
