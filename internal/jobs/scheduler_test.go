package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mroshb/reward_engine/internal/repositories"
)

type fakeSweeper struct{ calls int }

func (f *fakeSweeper) SweepSchedules(ctx context.Context) (int, int) {
	f.calls++
	return 1, 2
}

type fakeAuditor struct {
	mismatches []repositories.Mismatch
	err        error
}

func (f fakeAuditor) VerifyAll() ([]repositories.Mismatch, error) {
	return f.mismatches, f.err
}

func TestAuditLedger(t *testing.T) {
	tests := []struct {
		name    string
		auditor fakeAuditor
		want    int
	}{
		{"clean", fakeAuditor{}, 0},
		{"drift", fakeAuditor{mismatches: []repositories.Mismatch{{AccountID: 1, Balance: 10, LedgerSum: 5}}}, 1},
		{"query failure", fakeAuditor{err: errors.New("db down")}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheduler(&fakeSweeper{}, tt.auditor, time.UTC)
			if got := s.AuditLedger(); got != tt.want {
				t.Errorf("AuditLedger() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := NewScheduler(&fakeSweeper{}, fakeAuditor{}, time.UTC)
	if err := s.Start(context.Background(), "not a spec", "30 3 * * *"); err == nil {
		s.Stop()
		t.Fatal("Start() accepted an invalid spec")
	}
}

func TestSweepMarkets(t *testing.T) {
	sweeper := &fakeSweeper{}
	s := NewScheduler(sweeper, fakeAuditor{}, time.UTC)
	s.SweepMarkets(context.Background())
	if sweeper.calls != 1 {
		t.Errorf("SweepSchedules called %d times, want 1", sweeper.calls)
	}
}
