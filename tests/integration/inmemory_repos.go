package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"rewards-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory User Repo ---

type inMemoryUserRepo struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*domain.User
}

func newInMemoryUserRepo() *inMemoryUserRepo {
	return &inMemoryUserRepo{users: make(map[uuid.UUID]*domain.User)}
}

func (r *inMemoryUserRepo) Create(ctx context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username {
			return fmt.Errorf("username already exists")
		}
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *inMemoryUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *inMemoryUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryUserRepo) GetByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.ReferralCode == code {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// --- In-Memory Wallet Repo ---

type inMemoryWalletRepo struct {
	mu      sync.Mutex
	wallets map[uuid.UUID]*domain.Wallet // keyed by user id
	// rowLocks serializes per-wallet mutation the way FOR UPDATE does.
	rowLocks map[uuid.UUID]*sync.Mutex
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{
		wallets:  make(map[uuid.UUID]*domain.Wallet),
		rowLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (r *inMemoryWalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *w
	r.wallets[w.UserID] = &cp
	r.rowLocks[w.UserID] = &sync.Mutex{}
	return nil
}

func (r *inMemoryWalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[userID]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	r.mu.Lock()
	lock, ok := r.rowLocks[userID]
	r.mu.Unlock()
	if ok {
		if ltx, isLtx := tx.(*lockingTx); isLtx {
			ltx.acquire(lock)
		}
	}
	return r.GetByUserID(ctx, userID)
}

func (r *inMemoryWalletRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.wallets[w.UserID]
	if !ok {
		return fmt.Errorf("wallet not found: %s", w.ID)
	}
	stored.Balance = w.Balance
	stored.Withdrawable = w.Withdrawable
	stored.PendingAmount = w.PendingAmount
	stored.LockedAmount = w.LockedAmount
	stored.Coins = w.Coins
	stored.LockedCoins = w.LockedCoins
	stored.TotalEarned = w.TotalEarned
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *inMemoryWalletRepo) ListUserIDsWithLockedCoins(ctx context.Context, limit int) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	for _, w := range r.wallets {
		if w.LockedCoins > 0 {
			ids = append(ids, w.UserID)
		}
		if len(ids) >= limit {
			break
		}
	}
	return ids, nil
}

// --- In-Memory Ledger Repo ---

type inMemoryLedgerRepo struct {
	mu      sync.RWMutex
	entries []domain.LedgerEntry
}

func newInMemoryLedgerRepo() *inMemoryLedgerRepo {
	return &inMemoryLedgerRepo{}
}

func (r *inMemoryLedgerRepo) Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *inMemoryLedgerRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.LedgerEntry, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.LedgerEntry
	for _, e := range r.entries {
		if e.WalletID == walletID {
			result = append(result, e)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	total := int64(len(result))

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	start := (page - 1) * pageSize
	if start >= len(result) {
		return []domain.LedgerEntry{}, total, nil
	}
	end := start + pageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

func (r *inMemoryLedgerRepo) SumByWallet(ctx context.Context, walletID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int64
	for _, e := range r.entries {
		if e.WalletID == walletID && !e.Kind.Informational() {
			sum += e.Amount
		}
	}
	return sum, nil
}

// --- In-Memory Coin Repo ---

type inMemoryCoinRepo struct {
	mu  sync.RWMutex
	txs map[uuid.UUID]*domain.CoinTransaction
}

func newInMemoryCoinRepo() *inMemoryCoinRepo {
	return &inMemoryCoinRepo{txs: make(map[uuid.UUID]*domain.CoinTransaction)}
}

func (r *inMemoryCoinRepo) Create(ctx context.Context, tx pgx.Tx, ct *domain.CoinTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *ct
	r.txs[ct.ID] = &cp
	return nil
}

func (r *inMemoryCoinRepo) ListMaturedLocked(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, now time.Time) ([]domain.CoinTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.CoinTransaction
	for _, ct := range r.txs {
		if ct.WalletID == walletID && ct.Matured(now) {
			result = append(result, *ct)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].UnlocksAt.Before(*result[j].UnlocksAt)
	})
	return result, nil
}

func (r *inMemoryCoinRepo) MarkCompleted(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		ct, ok := r.txs[id]
		if !ok {
			return fmt.Errorf("coin transaction not found: %s", id)
		}
		ct.Status = domain.CoinTxCompleted
	}
	return nil
}

func (r *inMemoryCoinRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.CoinTransaction, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.CoinTransaction
	for _, ct := range r.txs {
		if ct.WalletID == walletID {
			result = append(result, *ct)
		}
	}
	return result, int64(len(result)), nil
}

// --- In-Memory Referral Repo ---

type inMemoryReferralRepo struct {
	mu        sync.RWMutex
	referrals map[uuid.UUID]*domain.Referral
}

func newInMemoryReferralRepo() *inMemoryReferralRepo {
	return &inMemoryReferralRepo{referrals: make(map[uuid.UUID]*domain.Referral)}
}

func (r *inMemoryReferralRepo) Create(ctx context.Context, tx pgx.Tx, ref *domain.Referral) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *ref
	r.referrals[ref.ID] = &cp
	return nil
}

func (r *inMemoryReferralRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Referral, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.referrals[id]
	if !ok {
		return nil, nil
	}
	cp := *ref
	return &cp, nil
}

func (r *inMemoryReferralRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Referral, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryReferralRepo) GetChainForUpdate(ctx context.Context, tx pgx.Tx, referredUserID uuid.UUID) ([]domain.Referral, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var chain []domain.Referral
	for _, ref := range r.referrals {
		if ref.ReferredUserID == referredUserID {
			chain = append(chain, *ref)
		}
	}
	sort.SliceStable(chain, func(i, j int) bool {
		return chain[i].Level < chain[j].Level
	})
	return chain, nil
}

func (r *inMemoryReferralRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.ReferralStatus, commissionAmount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.referrals[id]
	if !ok {
		return fmt.Errorf("referral not found: %s", id)
	}
	ref.Status = status
	ref.CommissionAmount = commissionAmount
	if status == domain.ReferralVerified {
		now := time.Now()
		ref.VerifiedAt = &now
	}
	return nil
}

// --- In-Memory Submission Repo ---

type inMemorySubmissionRepo struct {
	mu          sync.RWMutex
	submissions map[uuid.UUID]*domain.TaskSubmission
	tasks       map[uuid.UUID]*domain.Task
}

func newInMemorySubmissionRepo() *inMemorySubmissionRepo {
	return &inMemorySubmissionRepo{
		submissions: make(map[uuid.UUID]*domain.TaskSubmission),
		tasks:       make(map[uuid.UUID]*domain.Task),
	}
}

func (r *inMemorySubmissionRepo) addTask(t *domain.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.tasks[t.ID] = &cp
}

func (r *inMemorySubmissionRepo) Create(ctx context.Context, sub *domain.TaskSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *sub
	r.submissions[sub.ID] = &cp
	return nil
}

func (r *inMemorySubmissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.TaskSubmission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.submissions[id]
	if !ok {
		return nil, nil
	}
	cp := *sub
	return &cp, nil
}

func (r *inMemorySubmissionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.TaskSubmission, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemorySubmissionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.SubmissionStatus, reason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.submissions[id]
	if !ok {
		return fmt.Errorf("submission not found: %s", id)
	}
	sub.Status = status
	sub.RejectReason = reason
	now := time.Now()
	sub.ReviewedAt = &now
	return nil
}

func (r *inMemorySubmissionRepo) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

// --- In-Memory Withdrawal Repo ---

type inMemoryWithdrawalRepo struct {
	mu          sync.RWMutex
	withdrawals map[uuid.UUID]*domain.Withdrawal
}

func newInMemoryWithdrawalRepo() *inMemoryWithdrawalRepo {
	return &inMemoryWithdrawalRepo{withdrawals: make(map[uuid.UUID]*domain.Withdrawal)}
}

func (r *inMemoryWithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Withdrawal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *w
	r.withdrawals[w.ID] = &cp
	return nil
}

func (r *inMemoryWithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.withdrawals[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWithdrawalRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Withdrawal, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryWithdrawalRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.WithdrawalStatus, txID *string, processedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.withdrawals[id]
	if !ok {
		return fmt.Errorf("withdrawal not found: %s", id)
	}
	w.Status = status
	if txID != nil {
		w.TxID = txID
	}
	if processedAt != nil {
		w.ProcessedAt = processedAt
	}
	return nil
}

func (r *inMemoryWithdrawalRepo) ListPendingBelow(ctx context.Context, maxAmount int64, limit int) ([]domain.Withdrawal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Withdrawal
	for _, w := range r.withdrawals {
		if w.Status == domain.WithdrawalPending && w.Amount <= maxAmount {
			result = append(result, *w)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].RequestedAt.Before(result[j].RequestedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// --- In-Memory Transactor ---

// inMemoryTransactor hands out lockingTx values. Row locks taken via
// GetByUserIDForUpdate are held until Commit/Rollback, mirroring
// FOR UPDATE semantics closely enough for concurrency scenarios.
type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &lockingTx{}, nil
}

type lockingTx struct {
	noopTx
	mu   sync.Mutex
	held []*sync.Mutex
	done bool
}

func (t *lockingTx) acquire(lock *sync.Mutex) {
	// A tx that already holds a row lock can re-lock it freely, the
	// same way repeated FOR UPDATE selects succeed within one tx.
	t.mu.Lock()
	for _, held := range t.held {
		if held == lock {
			t.mu.Unlock()
			return
		}
	}
	t.mu.Unlock()
	lock.Lock()
	t.mu.Lock()
	t.held = append(t.held, lock)
	t.mu.Unlock()
}

func (t *lockingTx) release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.done = true
	for i := len(t.held) - 1; i >= 0; i-- {
		t.held[i].Unlock()
	}
	t.held = nil
}

func (t *lockingTx) Commit(ctx context.Context) error {
	t.release()
	return nil
}

func (t *lockingTx) Rollback(ctx context.Context) error {
	t.release()
	return nil
}

// noopTx is a no-op pgx.Tx implementation for in-memory testing.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }
