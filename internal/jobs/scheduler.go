// Package jobs runs the periodic maintenance tasks.
package jobs

import (
	"context"
	"time"

	"github.com/mroshb/reward_engine/internal/repositories"
	"github.com/mroshb/reward_engine/pkg/logger"
	"github.com/robfig/cron/v3"
)

// MarketSweeper moves markets whose open or close time has passed.
type MarketSweeper interface {
	SweepSchedules(ctx context.Context) (opened, closed int)
}

// LedgerAuditor compares cached balances with their ledger sums.
type LedgerAuditor interface {
	VerifyAll() ([]repositories.Mismatch, error)
}

type Scheduler struct {
	cron    *cron.Cron
	markets MarketSweeper
	ledger  LedgerAuditor
}

func NewScheduler(markets MarketSweeper, ledger LedgerAuditor, loc *time.Location) *Scheduler {
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cron.VerbosePrintfLogger(logger.Printf{})),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger), cron.Recover(cron.DiscardLogger)),
	)
	return &Scheduler{cron: c, markets: markets, ledger: ledger}
}

// Start registers the jobs on their cron specs and starts the scheduler.
func (s *Scheduler) Start(ctx context.Context, sweepSpec, auditSpec string) error {
	if _, err := s.cron.AddFunc(sweepSpec, func() { s.SweepMarkets(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(auditSpec, func() { s.AuditLedger() }); err != nil {
		return err
	}

	s.cron.Start()
	logger.Info("Scheduler started", "sweep", sweepSpec, "audit", auditSpec)
	return nil
}

func (s *Scheduler) SweepMarkets(ctx context.Context) {
	opened, closed := s.markets.SweepSchedules(ctx)
	if opened > 0 || closed > 0 {
		logger.Info("[CRON] Market schedules applied", "opened", opened, "closed", closed)
	}
}

// AuditLedger returns the number of mismatched accounts, or -1 when the
// audit itself failed.
func (s *Scheduler) AuditLedger() int {
	mismatches, err := s.ledger.VerifyAll()
	if err != nil {
		logger.Error("[CRON] Ledger audit failed", "error", err)
		return -1
	}
	if len(mismatches) > 0 {
		logger.Error("[CRON] Ledger audit found mismatches", "accounts", len(mismatches))
	} else {
		logger.Info("[CRON] Ledger audit clean")
	}
	return len(mismatches)
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logger.Info("Scheduler stopped")
}
