// Package memory is an in-process implementation of the repository
// interfaces. It gives the same unit-of-work guarantees as the Postgres
// store: per-account exclusive locks held until the unit ends, and writes
// that become visible all at once on commit.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/honeynil/UsersLedgerService/internal/models"
	"github.com/honeynil/UsersLedgerService/internal/repository"
	pkgerrors "github.com/honeynil/UsersLedgerService/pkg/errors"
)

type Store struct {
	mu       sync.RWMutex
	accounts map[int64]*models.Account
	locks    map[int64]chan struct{}
	records  []models.Transaction
	lastAcc  int64
	lastTx   int64
}

var (
	_ repository.Store                 = (*Store)(nil)
	_ repository.AccountRepository     = (*Store)(nil)
	_ repository.TransactionRepository = (*TransactionView)(nil)
)

func NewStore() *Store {
	return &Store{
		accounts: make(map[int64]*models.Account),
		locks:    make(map[int64]chan struct{}),
	}
}

// Transactions returns the read side of the ledger held by s.
func (s *Store) Transactions() *TransactionView {
	return &TransactionView{s: s}
}

// lock acquires the exclusive lock of account id. It reports false if the
// account does not exist.
func (s *Store) lock(ctx context.Context, id int64) (bool, error) {
	s.mu.RLock()
	l, ok := s.locks[id]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	select {
	case l <- struct{}{}:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (s *Store) unlock(id int64) {
	s.mu.RLock()
	l := s.locks[id]
	s.mu.RUnlock()
	<-l
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) (err error) {
	t := &memTx{s: s, staged: make(map[int64]*models.Account)}
	defer t.release()

	if err = ctx.Err(); err != nil {
		return err
	}
	if err = fn(ctx, t); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", pkgerrors.ErrCommit, err)
	}

	t.commit()
	return nil
}

func (s *Store) Create(ctx context.Context, account *models.Account) error {
	if account == nil {
		return pkgerrors.ErrNilAccount
	}
	if !account.Role.Valid() {
		return fmt.Errorf("%w: %q", pkgerrors.ErrInvalidRole, account.Role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAcc++
	account.ID = s.lastAcc
	account.CreatedAt = time.Now().UTC()
	stored := *account
	s.accounts[stored.ID] = &stored
	s.locks[stored.ID] = make(chan struct{}, 1)

	slog.Info("account created", "method", "Create", "account_id", account.ID)
	return nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", pkgerrors.ErrAccountNotFound, id)
	}
	account := *a
	return &account, nil
}

// ToggleAutoBuy takes the account lock so that it serializes with units of
// work that hold the same account.
func (s *Store) ToggleAutoBuy(ctx context.Context, id int64) error {
	ok, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", pkgerrors.ErrAccountNotFound, id)
	}
	defer s.unlock(id)

	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[id]
	a.AutoBuyEnabled = !a.AutoBuyEnabled
	return nil
}

func (s *Store) Top(ctx context.Context, currency models.Currency, limit int) ([]models.Account, error) {
	if !currency.Valid() {
		return nil, fmt.Errorf("%w: %q", pkgerrors.ErrInvalidCurrency, currency)
	}
	if limit <= 0 || limit > repository.TopLimit {
		limit = repository.TopLimit
	}

	accounts, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(accounts, func(i, j int) bool {
		bi, _ := accounts[i].Balance(currency)
		bj, _ := accounts[j].Balance(currency)
		if bi != bj {
			return bi > bj
		}
		return accounts[i].ID < accounts[j].ID
	})
	if len(accounts) > limit {
		accounts = accounts[:limit]
	}
	return accounts, nil
}

func (s *Store) All(ctx context.Context) ([]models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	accounts := make([]models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		accounts = append(accounts, *a)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

// TransactionView reads committed ledger records.
type TransactionView struct {
	s *Store
}

func (v *TransactionView) GetByID(ctx context.Context, id int64) (*models.Transaction, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	// ids are assigned sequentially from 1 at commit.
	if id <= 0 || id > int64(len(v.s.records)) {
		return nil, fmt.Errorf("%w: %d", pkgerrors.ErrTransactionNotFound, id)
	}
	tx := copyTransaction(v.s.records[id-1])
	return &tx, nil
}

func (v *TransactionView) History(ctx context.Context, accountID int64) ([]models.Transaction, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	txs := make([]models.Transaction, 0)
	for _, tx := range v.s.records {
		if tx.Touches(accountID) {
			txs = append(txs, copyTransaction(tx))
		}
	}
	return txs, nil
}

func (v *TransactionView) All(ctx context.Context) ([]models.Transaction, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	txs := make([]models.Transaction, 0, len(v.s.records))
	for _, tx := range v.s.records {
		txs = append(txs, copyTransaction(tx))
	}
	return txs, nil
}

func copyTransaction(tx models.Transaction) models.Transaction {
	if tx.Sender != nil {
		leg := *tx.Sender
		tx.Sender = &leg
	}
	if tx.Receiver != nil {
		leg := *tx.Receiver
		tx.Receiver = &leg
	}
	return tx
}

// memTx stages account copies and records until commit.
type memTx struct {
	s       *Store
	held    []int64
	staged  map[int64]*models.Account
	pending []*models.Transaction
}

func (t *memTx) GetAccountForUpdate(ctx context.Context, id int64) (*models.Account, error) {
	if a, ok := t.staged[id]; ok {
		account := *a
		return &account, nil
	}

	ok, err := t.s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", pkgerrors.ErrAccountNotFound, id)
	}
	t.held = append(t.held, id)

	t.s.mu.RLock()
	staged := *t.s.accounts[id]
	t.s.mu.RUnlock()
	t.staged[id] = &staged

	account := staged
	return &account, nil
}

func (t *memTx) SaveAccount(ctx context.Context, account *models.Account) error {
	if account == nil {
		return pkgerrors.ErrNilAccount
	}
	if _, ok := t.staged[account.ID]; !ok {
		return fmt.Errorf("account %d is not locked by this transaction", account.ID)
	}
	if account.Credits < 0 || account.Stocks < 0 {
		return fmt.Errorf("%w: account %d", pkgerrors.ErrInsufficientFunds, account.ID)
	}
	saved := *account
	t.staged[account.ID] = &saved
	return nil
}

func (t *memTx) AppendTransaction(ctx context.Context, record *models.Transaction) error {
	if record == nil {
		return pkgerrors.ErrNilTransaction
	}
	if err := record.Validate(); err != nil {
		return err
	}
	t.pending = append(t.pending, record)
	return nil
}

func (t *memTx) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for id, a := range t.staged {
		stored := *a
		t.s.accounts[id] = &stored
	}
	now := time.Now().UTC()
	for _, record := range t.pending {
		t.s.lastTx++
		record.ID = t.s.lastTx
		record.CreatedAt = now
		t.s.records = append(t.s.records, copyTransaction(*record))
	}
}

func (t *memTx) release() {
	for _, id := range t.held {
		t.s.unlock(id)
	}
	t.held = nil
}
