package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auto_post_scheduler/config"
	"auto_post_scheduler/internal/browser"
	deliverycron "auto_post_scheduler/internal/delivery/cron"
	"auto_post_scheduler/internal/delivery/httpapi"
	"auto_post_scheduler/internal/domain"
	"auto_post_scheduler/internal/logger"
	"auto_post_scheduler/internal/repository/sqlite"
	"auto_post_scheduler/internal/storage"
	"auto_post_scheduler/internal/usecase"
)

func main() {
	loginHandle := flag.String("login", "", "open a visible browser to capture cookies for the given account handle, then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if _, err := logger.Initialize(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	db, err := sqlite.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Error().Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	accountRepo := sqlite.NewAccountRepository(db)
	scheduleRepo := sqlite.NewScheduleRepository(db)
	jobRepo := sqlite.NewJobRepository(db)
	claimRepo := sqlite.NewClaimRepository(db)

	if err := bootstrapAccounts(cfg, accountRepo, scheduleRepo); err != nil {
		logger.Error().Fatalf("Failed to bootstrap accounts: %v", err)
	}

	if *loginHandle != "" {
		if err := runLoginMode(cfg, accountRepo, *loginHandle); err != nil {
			logger.Error().Fatalf("Login capture failed: %v", err)
		}
		return
	}

	artifacts, err := storage.NewManager(cfg.PendingDir, cfg.PostedDir, cfg.FailedDir,
		claimOwner(), jobRepo, claimRepo)
	if err != nil {
		logger.Error().Fatalf("Failed to initialize artifact storage: %v", err)
	}

	// Resolve anything a previous run left behind before the first tick.
	if err := artifacts.RecoverWorking(); err != nil {
		logger.Error().Fatalf("Failed to recover interrupted jobs: %v", err)
	}
	if err := artifacts.Reconcile(cfg.ClaimTimeout); err != nil {
		logger.Error().Fatalf("Failed to reconcile stale claims: %v", err)
	}

	sessions := browser.NewSessionManager(cfg)
	executor := browser.NewStageExecutor(cfg)

	matcher := usecase.NewMatcher(accountRepo, scheduleRepo, jobRepo)
	runner := usecase.NewRunner(cfg, jobRepo, accountRepo, sessions, executor, artifacts)
	dispatcher := usecase.NewDispatcher(matcher, runner, scheduleRepo, jobRepo, cfg.WorkerPool)

	scheduler := deliverycron.NewScheduler(cfg, dispatcher)
	if err := scheduler.Start(); err != nil {
		logger.Error().Fatalf("Failed to start scheduler: %v", err)
	}

	server := httpapi.NewServer(cfg, accountRepo, jobRepo, artifacts, dispatcher)
	if err := server.Start(); err != nil {
		logger.Error().Fatalf("Failed to start HTTP server: %v", err)
	}

	logger.Info().Println("Posting scheduler started")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Println("Shutting down...")

	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Printf("HTTP server shutdown error: %v", err)
	}

	logger.Info().Println("Shutdown complete")
}

// bootstrapAccounts upserts accounts and schedule slots declared in the
// config file. Existing cookie sets are never overwritten from disk; the
// cookies file is only read for accounts that have none stored yet.
func bootstrapAccounts(cfg *config.Config, accounts domain.AccountRepository, schedule domain.ScheduleRepository) error {
	for _, entry := range cfg.BootstrapAccounts {
		if entry.Handle == "" {
			return fmt.Errorf("bootstrap account with empty handle")
		}

		account, err := accounts.GetByHandle(entry.Handle)
		if err != nil {
			return fmt.Errorf("look up account %s: %w", entry.Handle, err)
		}
		if account == nil {
			account = &domain.Account{
				Handle:   entry.Handle,
				IsActive: true,
			}
		}

		account.DailyQuota = entry.DailyQuota
		if entry.IsActive != nil {
			account.IsActive = *entry.IsActive
		}

		if len(account.CookieSet) == 0 && entry.CookiesPath != "" {
			cookieSet, err := os.ReadFile(entry.CookiesPath)
			if err != nil {
				logger.Error().Printf("Cookies file for account %s not readable, account will need login: %v", entry.Handle, err)
			} else {
				account.CookieSet = cookieSet
			}
		}

		if err := accounts.Save(account); err != nil {
			return fmt.Errorf("save account %s: %w", entry.Handle, err)
		}

		for _, timeOfDay := range entry.Slots {
			slot := &domain.ScheduleSlot{
				AccountID: account.ID,
				TimeOfDay: timeOfDay,
			}
			if err := schedule.Save(slot); err != nil {
				return fmt.Errorf("save slot %s for account %s: %w", timeOfDay, entry.Handle, err)
			}
		}

		logger.Info().Printf("Bootstrapped account %s with %d slots", entry.Handle, len(entry.Slots))
	}

	return nil
}

// runLoginMode opens a visible browser for the operator to log in to the
// account and stores the captured cookies.
func runLoginMode(cfg *config.Config, accounts domain.AccountRepository, handle string) error {
	account, err := accounts.GetByHandle(handle)
	if err != nil {
		return fmt.Errorf("look up account %s: %w", handle, err)
	}
	if account == nil {
		return fmt.Errorf("account %s not found; declare it in the config file first", handle)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return browser.CaptureLogin(ctx, account, accounts, cfg.UserAgent)
}

// claimOwner identifies this process instance in the durable claim table.
func claimOwner() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}
