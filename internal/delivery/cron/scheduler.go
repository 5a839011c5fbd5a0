package cron

import (
	"context"
	"fmt"
	"strings"
	"time"

	cron "github.com/robfig/cron/v3"

	"auto_post_scheduler/config"
	"auto_post_scheduler/internal/logger"
	"auto_post_scheduler/internal/usecase"
)

// Scheduler drives the posting loop: each tick performs one full
// matching+dispatch pass. Ticks are independent; a stuck job in one account
// never blocks ticks serving other accounts.
type Scheduler struct {
	cron       *cron.Cron
	config     *config.Config
	dispatcher *usecase.Dispatcher
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewScheduler creates a new cron scheduler
func NewScheduler(cfg *config.Config, dispatcher *usecase.Dispatcher) *Scheduler {
	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())

	// Create cron with seconds support
	c := cron.New(cron.WithSeconds())

	return &Scheduler{
		cron:       c,
		config:     cfg,
		dispatcher: dispatcher,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start starts the cron scheduler
func (s *Scheduler) Start() error {
	tickSchedule := normalizeSchedule(s.config.TickSchedule)
	tickJobID, err := s.cron.AddFunc(tickSchedule, s.tickJob)
	if err != nil {
		return fmt.Errorf("failed to schedule tick job: %w", err)
	}
	logger.Info().Printf("Scheduled posting tick with ID: %d, schedule: %s", tickJobID, tickSchedule)

	s.cron.Start()
	logger.Info().Println("Scheduler started")

	// Run an initial tick immediately
	go s.tickJob()

	return nil
}

// Stop stops the cron scheduler gracefully and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	logger.Info().Println("Stopping scheduler...")
	s.cancel()
	s.cron.Stop()
	s.dispatcher.Wait()
	logger.Info().Println("Scheduler stopped")
}

// tickJob runs one matching+dispatch pass. Store-level errors are logged
// and retried on the next tick with no extra backoff.
func (s *Scheduler) tickJob() {
	if s.ctx.Err() != nil {
		return
	}

	startTime := time.Now()
	if err := s.dispatcher.Tick(s.ctx); err != nil {
		logger.Error().Printf("Tick failed (will retry next tick): %v", err)
		return
	}

	logger.Info().Printf("Tick completed in %v", time.Since(startTime))
}

// normalizeSchedule ensures cron expressions are compatible with cron.WithSeconds
func normalizeSchedule(expr string) string {
	fields := strings.Fields(expr)
	if len(fields) == 5 {
		return "0 " + expr
	}
	return expr
}
