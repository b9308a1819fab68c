package worker

import (
	"testing"

	"rewards-ledger/config"
	"rewards-ledger/internal/core/ports/mocks"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestSweeper(t *testing.T, cfg config.WorkerConfig) (*Sweeper, *mocks.MockCoinService, *mocks.MockWithdrawalService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	coinSvc := mocks.NewMockCoinService(ctrl)
	withdrawalSvc := mocks.NewMockWithdrawalService(ctrl)
	return NewSweeper(coinSvc, withdrawalSvc, cfg, zerolog.Nop()), coinSvc, withdrawalSvc
}

func TestSweeper_StartStop(t *testing.T) {
	s, _, _ := newTestSweeper(t, config.WorkerConfig{
		UnlockSpec:      "@every 5m",
		AutoApproveSpec: "@every 1m",
	})

	require.NoError(t, s.Start())
	s.Stop()
}

func TestSweeper_Start_InvalidSpec(t *testing.T) {
	s, _, _ := newTestSweeper(t, config.WorkerConfig{
		UnlockSpec:      "not a cron spec",
		AutoApproveSpec: "@every 1m",
	})

	err := s.Start()
	assert.Error(t, err)
}

func TestSweeper_RunUnlock_LogsFailure(t *testing.T) {
	s, coinSvc, _ := newTestSweeper(t, config.WorkerConfig{})

	coinSvc.EXPECT().SweepLocked(gomock.Any()).Return(assert.AnError)

	// Must not panic, failure is logged and the schedule continues
	s.runUnlock()
}

func TestSweeper_RunAutoProcess(t *testing.T) {
	s, _, withdrawalSvc := newTestSweeper(t, config.WorkerConfig{})

	withdrawalSvc.EXPECT().AutoProcess(gomock.Any()).Return(3, nil)

	s.runAutoProcess()
}
