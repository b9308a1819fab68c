package worker

import (
	"context"
	"fmt"

	"rewards-ledger/config"
	"rewards-ledger/internal/core/ports"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper runs the scheduled maintenance jobs: unlocking matured coin
// grants and auto-promoting small pending withdrawals. Both jobs are
// idempotent, so overlapping or missed runs are harmless.
type Sweeper struct {
	cron          *cron.Cron
	coinSvc       ports.CoinService
	withdrawalSvc ports.WithdrawalService
	cfg           config.WorkerConfig
	log           zerolog.Logger
}

func NewSweeper(
	coinSvc ports.CoinService,
	withdrawalSvc ports.WithdrawalService,
	cfg config.WorkerConfig,
	log zerolog.Logger,
) *Sweeper {
	return &Sweeper{
		cron:          cron.New(),
		coinSvc:       coinSvc,
		withdrawalSvc: withdrawalSvc,
		cfg:           cfg,
		log:           log,
	}
}

// Start registers the jobs and begins the schedule. Jobs run in the
// cron goroutine; each invocation gets a fresh background context.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.UnlockSpec, s.runUnlock); err != nil {
		return fmt.Errorf("scheduling coin unlock sweep: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.AutoApproveSpec, s.runAutoProcess); err != nil {
		return fmt.Errorf("scheduling withdrawal auto-process: %w", err)
	}

	s.cron.Start()
	s.log.Info().
		Str("unlock_spec", s.cfg.UnlockSpec).
		Str("auto_approve_spec", s.cfg.AutoApproveSpec).
		Msg("Background sweeper started")
	return nil
}

// Stop halts the schedule and waits for running jobs to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Background sweeper stopped")
}

func (s *Sweeper) runUnlock() {
	ctx := context.Background()
	if err := s.coinSvc.SweepLocked(ctx); err != nil {
		s.log.Error().Err(err).Msg("Coin unlock sweep failed")
	}
}

func (s *Sweeper) runAutoProcess() {
	ctx := context.Background()
	n, err := s.withdrawalSvc.AutoProcess(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Withdrawal auto-process sweep failed")
		return
	}
	if n > 0 {
		s.log.Info().Int("promoted", n).Msg("Withdrawals promoted to processing")
	}
}
