package integration

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"rewards-ledger/internal/core/domain"
	"rewards-ledger/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentWithdrawals_NoOverdraw fires concurrent withdrawal
// requests whose total exceeds the withdrawable balance. The per-wallet
// row lock serializes the reserve step, so exactly the affordable
// number succeed and the pending hold never exceeds what was funded.
func TestConcurrentWithdrawals_NoOverdraw(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	user := app.registerAndLogin(t, "overdraw_user", nil)
	app.fund(t, user.ID, 100000)

	// 10 concurrent requests of 20000 against 100000: 5 fit, 5 do not.
	concurrency := 10
	amount := int64(20000)

	var wg sync.WaitGroup
	var successCount atomic.Int64
	var insufficientCount atomic.Int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			resp := app.do(t, http.MethodPost, "/api/v1/wallet/withdraw", user.Token, map[string]any{
				"amount": amount,
				"upi_id": "race@okaxis",
			})
			switch resp.StatusCode {
			case http.StatusCreated:
				successCount.Add(1)
				resp.Body.Close()
			case http.StatusBadRequest:
				if errorCode(t, resp) == "WAL_001" {
					insufficientCount.Add(1)
				}
			default:
				resp.Body.Close()
			}
		}()
	}
	wg.Wait()

	t.Logf("concurrent withdrawals: %d succeeded, %d rejected for insufficient funds",
		successCount.Load(), insufficientCount.Load())

	assert.Equal(t, int64(5), successCount.Load())
	assert.Equal(t, int64(5), insufficientCount.Load())

	w := app.getWallet(t, user.Token)
	assert.Zero(t, w.Withdrawable)
	assert.Equal(t, int64(100000), w.PendingAmount)
	assert.Equal(t, int64(100000), w.Balance)
}

// TestConcurrentWebhookReplays_SettleOnce delivers the same processed
// event many times in parallel. The dedup store plus the terminal-row
// guard must let exactly one delivery settle the hold; every delivery
// still gets a 200 so the provider stops retrying.
func TestConcurrentWebhookReplays_SettleOnce(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	user := app.registerAndLogin(t, "replay_user", nil)
	app.fund(t, user.ID, 50000)

	resp := app.do(t, http.MethodPost, "/api/v1/wallet/withdraw", user.Token, map[string]any{
		"amount": 20000,
		"upi_id": "replay@ybl",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var wd withdrawalBody
	decodeData(t, resp, &wd)

	concurrency := 20
	var wg sync.WaitGroup
	var okCount atomic.Int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			resp := app.postWebhook(t, map[string]any{
				"event_id":     "evt_replay_race_001",
				"reference_id": wd.PayoutRef,
				"status":       "processed",
				"utr":          "UTRRACE001",
			})
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				okCount.Add(1)
			}
		}()
	}
	wg.Wait()

	t.Logf("webhook replays: %d of %d returned 200", okCount.Load(), concurrency)
	assert.Equal(t, int64(concurrency), okCount.Load())

	// The hold settled exactly once.
	w := app.getWallet(t, user.Token)
	assert.Equal(t, int64(30000), w.Withdrawable)
	assert.Zero(t, w.PendingAmount)

	withdrawalID, err := domain.ParsePayoutRef(wd.PayoutRef)
	require.NoError(t, err)
	stored, err := app.withdrawalRepo.GetByID(context.Background(), withdrawalID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, domain.WithdrawalCompleted, stored.Status)

	wallet, err := app.walletRepo.GetByUserID(context.Background(), user.ID)
	require.NoError(t, err)
	sum, err := app.ledgerRepo.SumByWallet(context.Background(), wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, wallet.Balance, sum)
}

// TestConcurrentCredits_LedgerStaysConsistent hammers one wallet with
// parallel credits through the service layer. Every credit pairs a
// balance move with a ledger entry under the wallet's row lock, so the
// replayed ledger must land exactly on the stored balance.
func TestConcurrentCredits_LedgerStaysConsistent(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	user := app.registerAndLogin(t, "hot_wallet_user", nil)
	ctx := context.Background()

	concurrency := 50
	amount := int64(100)

	var wg sync.WaitGroup
	var failCount atomic.Int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := app.walletSvc.Credit(ctx, ports.CreditRequest{
				UserID: user.ID,
				Amount: amount,
				Kind:   domain.KindTaskReward,
			})
			if err != nil {
				failCount.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Zero(t, failCount.Load(), "no credit should fail")

	expected := int64(concurrency) * amount
	w := app.getWallet(t, user.Token)
	assert.Equal(t, expected, w.Balance)
	assert.Equal(t, expected, w.Withdrawable)
	assert.Equal(t, expected, w.TotalEarned)

	wallet, err := app.walletRepo.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	entries, total, err := app.ledgerRepo.ListByWallet(ctx, wallet.ID, 1, concurrency+10)
	require.NoError(t, err)
	assert.Equal(t, int64(concurrency), total)
	assert.Len(t, entries, concurrency)

	sum, err := app.ledgerRepo.SumByWallet(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, wallet.Balance, sum)
}
