package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"github.com/honeynil/UsersLedgerService/internal/models"
	"github.com/honeynil/UsersLedgerService/internal/repository"
	pkgerrors "github.com/honeynil/UsersLedgerService/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultFarmReward   int64 = 10
	DefaultFarmCooldown       = time.Hour
)

type FarmConfig struct {
	Reward   int64
	Cooldown time.Duration
}

// TransactionProcessor is the only path that mutates balances.
type TransactionProcessor struct {
	store  repository.Store
	policy *AuthorizationPolicy
	guard  BlockGuard
	farm   FarmConfig
	now    func() time.Time
}

func NewTransactionProcessor(store repository.Store, policy *AuthorizationPolicy, farm FarmConfig) *TransactionProcessor {
	if farm.Reward <= 0 {
		farm.Reward = DefaultFarmReward
	}
	if farm.Cooldown <= 0 {
		farm.Cooldown = DefaultFarmCooldown
	}
	return &TransactionProcessor{
		store:  store,
		policy: policy,
		farm:   farm,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Execute validates req, applies it atomically and returns the committed record.
func (p *TransactionProcessor) Execute(ctx context.Context, req models.TransactionRequest) (*models.Transaction, error) {
	tracer := otel.Tracer("transaction-processor")
	ctx, span := tracer.Start(ctx, "Execute")
	defer span.End()
	span.SetAttributes(attribute.String("type", string(req.Type)))

	record := req.Record()
	if err := record.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	err := p.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return p.apply(ctx, tx, record)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int64("transaction_id", record.ID))
	return record, nil
}

func (p *TransactionProcessor) apply(ctx context.Context, tx repository.Tx, record *models.Transaction) error {
	accounts := newAccountSet(tx)
	if err := accounts.lockAll(ctx, record); err != nil {
		return err
	}

	if record.Sender != nil {
		if err := p.guard.CheckNotBlocked(ctx, accounts, record.Sender.AccountID); err != nil {
			return asLegBlocked(err, pkgerrors.ErrSenderBlocked, record.Sender.AccountID)
		}
	}
	if record.Receiver != nil {
		if err := p.guard.CheckNotBlocked(ctx, accounts, record.Receiver.AccountID); err != nil {
			return asLegBlocked(err, pkgerrors.ErrReceiverBlocked, record.Receiver.AccountID)
		}
	}

	var sender, receiver *models.Account
	var err error
	if record.Sender != nil {
		if sender, err = accounts.GetAccountForUpdate(ctx, record.Sender.AccountID); err != nil {
			return err
		}
	}
	if record.Receiver != nil {
		if receiver, err = accounts.GetAccountForUpdate(ctx, record.Receiver.AccountID); err != nil {
			return err
		}
	}

	if sender != nil {
		if err := p.policy.Authorize(sender.Role, record.Type); err != nil {
			return err
		}
		balance, err := sender.Balance(record.Sender.Currency)
		if err != nil {
			return err
		}
		if balance < record.Sender.Amount {
			return fmt.Errorf("%w: account %d has %d %s, needs %d",
				pkgerrors.ErrInsufficientFunds, sender.ID, balance, record.Sender.Currency, record.Sender.Amount)
		}
		if err := sender.Adjust(record.Sender.Currency, -record.Sender.Amount); err != nil {
			return err
		}
	}
	if receiver != nil {
		if err := receiver.Adjust(record.Receiver.Currency, record.Receiver.Amount); err != nil {
			return err
		}
	}

	if err := accounts.saveAll(ctx); err != nil {
		return err
	}
	return tx.AppendTransaction(ctx, record)
}

// Farm credits the farm reward to accountID once per cooldown.
func (p *TransactionProcessor) Farm(ctx context.Context, accountID int64) (*models.Transaction, error) {
	tracer := otel.Tracer("transaction-processor")
	ctx, span := tracer.Start(ctx, "Farm")
	defer span.End()
	span.SetAttributes(attribute.Int64("account_id", accountID))

	record := &models.Transaction{
		Receiver: &models.Leg{AccountID: accountID, Amount: p.farm.Reward, Currency: models.CurrencyCredits},
		Type:     models.TypeFarm,
	}

	err := p.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		account, err := tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if account.Role.IsBlocked() {
			return fmt.Errorf("%w: %d", pkgerrors.ErrReceiverBlocked, accountID)
		}

		now := p.now()
		if next := account.LastFarmingAt.Add(p.farm.Cooldown); now.Before(next) {
			return fmt.Errorf("%w: next farm at %s", pkgerrors.ErrFarmCooldown, next.Format(time.RFC3339))
		}

		if err := account.Adjust(models.CurrencyCredits, p.farm.Reward); err != nil {
			return err
		}
		account.LastFarmingAt = now
		if err := tx.SaveAccount(ctx, account); err != nil {
			return err
		}
		return tx.AppendTransaction(ctx, record)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return record, nil
}

func asLegBlocked(err, legErr error, id int64) error {
	if stderrors.Is(err, pkgerrors.ErrAccountBlocked) {
		return fmt.Errorf("%w: %d", legErr, id)
	}
	return err
}

// accountSet loads each account at most once per unit of work, so a
// sender that is also the receiver shares one in-memory copy.
type accountSet struct {
	tx      repository.Tx
	loaded  map[int64]*models.Account
	missing map[int64]error
	order   []int64
}

func newAccountSet(tx repository.Tx) *accountSet {
	return &accountSet{
		tx:      tx,
		loaded:  make(map[int64]*models.Account),
		missing: make(map[int64]error),
	}
}

// lockAll locks every account the record touches in ascending id order.
func (s *accountSet) lockAll(ctx context.Context, record *models.Transaction) error {
	ids := make([]int64, 0, 2)
	for _, leg := range []*models.Leg{record.Sender, record.Receiver} {
		if leg != nil {
			ids = append(ids, leg.AccountID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		_, err := s.GetAccountForUpdate(ctx, id)
		if err != nil && !stderrors.Is(err, pkgerrors.ErrAccountNotFound) {
			return err
		}
	}
	return nil
}

func (s *accountSet) GetAccountForUpdate(ctx context.Context, id int64) (*models.Account, error) {
	if a, ok := s.loaded[id]; ok {
		return a, nil
	}
	if err, ok := s.missing[id]; ok {
		return nil, err
	}
	a, err := s.tx.GetAccountForUpdate(ctx, id)
	if stderrors.Is(err, pkgerrors.ErrAccountNotFound) {
		s.missing[id] = err
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	s.loaded[id] = a
	s.order = append(s.order, id)
	return a, nil
}

func (s *accountSet) saveAll(ctx context.Context) error {
	for _, id := range s.order {
		if err := s.tx.SaveAccount(ctx, s.loaded[id]); err != nil {
			return err
		}
	}
	return nil
}
