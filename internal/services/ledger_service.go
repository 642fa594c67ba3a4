package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/honeynil/UsersLedgerService/internal/infrastructure/observability"
	"github.com/honeynil/UsersLedgerService/internal/infrastructure/redis"
	"github.com/honeynil/UsersLedgerService/internal/models"
	"github.com/honeynil/UsersLedgerService/internal/repository"
	pkgerrors "github.com/honeynil/UsersLedgerService/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type LedgerService interface {
	CreateAccount(ctx context.Context) (*models.Account, error)
	ChangeAutoBuy(ctx context.Context, id int64) (*models.Account, error)
	GetAccount(ctx context.Context, id int64) (*models.Account, error)
	GetTopAccounts(ctx context.Context, currency models.Currency) ([]models.Account, error)
	GetAllAccounts(ctx context.Context) ([]models.Account, error)
	ChangeRole(ctx context.Context, actorID, targetID int64, role models.Role) (*models.Account, error)
	Farm(ctx context.Context, id int64) (*models.Transaction, error)
	SendTransaction(ctx context.Context, req models.TransactionRequest) (*models.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (*models.Transaction, error)
	GetTransactionHistory(ctx context.Context, accountID int64) ([]models.Transaction, error)
	GetAllTransactions(ctx context.Context) ([]models.Transaction, error)
}

// TopCache holds leaderboards between commits. GetTop reports the cache
// generation even on a miss; a leaderboard stored with SetTop under a
// generation that InvalidateTop has since advanced is never returned.
type TopCache interface {
	GetTop(ctx context.Context, currency models.Currency) ([]models.Account, int64, error)
	SetTop(ctx context.Context, currency models.Currency, generation int64, accounts []models.Account) error
	InvalidateTop(ctx context.Context) error
}

// EventPublisher announces committed ledger records.
type EventPublisher interface {
	PublishCommitted(ctx context.Context, tx *models.Transaction) error
}

type ledgerService struct {
	store        repository.Store
	accounts     repository.AccountRepository
	transactions repository.TransactionRepository
	processor    *TransactionProcessor
	cache        TopCache
	publisher    EventPublisher
}

// NewLedgerService wires the ledger. cache and publisher may be nil.
func NewLedgerService(
	store repository.Store,
	accounts repository.AccountRepository,
	transactions repository.TransactionRepository,
	processor *TransactionProcessor,
	cache TopCache,
	publisher EventPublisher,
) *ledgerService {
	return &ledgerService{
		store:        store,
		accounts:     accounts,
		transactions: transactions,
		processor:    processor,
		cache:        cache,
		publisher:    publisher,
	}
}

func (s *ledgerService) CreateAccount(ctx context.Context) (*models.Account, error) {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, "CreateAccount")
	defer span.End()

	account := models.NewAccount()
	if err := s.accounts.Create(ctx, account); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int64("account_id", account.ID))
	s.invalidateTop(ctx)
	return account, nil
}

func (s *ledgerService) ChangeAutoBuy(ctx context.Context, id int64) (*models.Account, error) {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, "ChangeAutoBuy")
	defer span.End()
	span.SetAttributes(attribute.Int64("account_id", id))

	if err := s.accounts.ToggleAutoBuy(ctx, id); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	s.invalidateTop(ctx)
	return s.accounts.GetByID(ctx, id)
}

func (s *ledgerService) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, "GetAccount")
	defer span.End()
	span.SetAttributes(attribute.Int64("account_id", id))

	return s.accounts.GetByID(ctx, id)
}

func (s *ledgerService) GetTopAccounts(ctx context.Context, currency models.Currency) ([]models.Account, error) {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, "GetTopAccounts")
	defer span.End()
	span.SetAttributes(attribute.String("currency", string(currency)))

	if !currency.Valid() {
		err := fmt.Errorf("%w: %q", pkgerrors.ErrInvalidCurrency, currency)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// The generation is taken before the store read, so a commit that lands
	// in between makes the stored entry unreachable.
	cacheable := false
	var generation int64
	if s.cache != nil {
		top, gen, err := s.cache.GetTop(ctx, currency)
		switch {
		case err == nil:
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return top, nil
		case stderrors.Is(err, redis.ErrKeyNotFound):
			cacheable, generation = true, gen
		default:
			slog.Warn("failed to read leaderboard cache", "currency", currency, "error", err)
		}
	}

	top, err := s.accounts.Top(ctx, currency, repository.TopLimit)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if cacheable {
		if err := s.cache.SetTop(ctx, currency, generation, top); err != nil {
			slog.Warn("failed to cache leaderboard", "currency", currency, "error", err)
		}
	}
	return top, nil
}

func (s *ledgerService) GetAllAccounts(ctx context.Context) ([]models.Account, error) {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, "GetAllAccounts")
	defer span.End()

	return s.accounts.All(ctx)
}

// ChangeRole lets a moderator or creator set the role of another account.
// Only a creator may grant creator, and nobody but a creator may touch an
// account ranked at or above themselves.
func (s *ledgerService) ChangeRole(ctx context.Context, actorID, targetID int64, role models.Role) (*models.Account, error) {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, "ChangeRole")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("actor_id", actorID),
		attribute.Int64("target_id", targetID),
		attribute.String("role", string(role)),
	)

	if !role.Valid() {
		err := fmt.Errorf("%w: %q", pkgerrors.ErrInvalidRole, role)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var target *models.Account
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		accounts := newAccountSet(tx)
		if err := accounts.lockAll(ctx, &models.Transaction{
			Sender:   &models.Leg{AccountID: actorID},
			Receiver: &models.Leg{AccountID: targetID},
		}); err != nil {
			return err
		}

		actor, err := accounts.GetAccountForUpdate(ctx, actorID)
		if err != nil {
			return err
		}
		if actor.Role.IsBlocked() {
			return fmt.Errorf("%w: %d", pkgerrors.ErrAccountBlocked, actorID)
		}
		if !actor.Role.AtLeast(models.RoleModerator) {
			return fmt.Errorf("%w: role %q may not change roles", pkgerrors.ErrForbidden, actor.Role)
		}
		if role == models.RoleCreator && actor.Role != models.RoleCreator {
			return pkgerrors.ErrRoleTooBig
		}

		target, err = accounts.GetAccountForUpdate(ctx, targetID)
		if err != nil {
			return err
		}
		if actor.Role != models.RoleCreator {
			actorRank, _ := actor.Role.Rank()
			targetRank, ranked := target.Role.Rank()
			if !ranked {
				targetRank, _ = models.RoleNormal.Rank()
			}
			if targetRank >= actorRank {
				return fmt.Errorf("%w: account %d outranks or equals actor %d", pkgerrors.ErrForbidden, targetID, actorID)
			}
		}

		target.Role = role
		return tx.SaveAccount(ctx, target)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	slog.Info("role changed", "actor_id", actorID, "target_id", targetID, "role", role)
	s.invalidateTop(ctx)
	return target, nil
}

func (s *ledgerService) Farm(ctx context.Context, id int64) (*models.Transaction, error) {
	tx, err := s.processor.Farm(ctx, id)
	s.afterExecute(ctx, models.TypeFarm, tx, err)
	return tx, err
}

func (s *ledgerService) SendTransaction(ctx context.Context, req models.TransactionRequest) (*models.Transaction, error) {
	tx, err := s.processor.Execute(ctx, req)
	s.afterExecute(ctx, req.Type, tx, err)
	return tx, err
}

// afterExecute runs the side effects of a processor call. They never
// change the outcome returned to the caller.
func (s *ledgerService) afterExecute(ctx context.Context, t models.TransactionType, tx *models.Transaction, err error) {
	logger := observability.LoggerFromContext(ctx)

	outcome := "committed"
	switch {
	case err == nil:
	case pkgerrors.IsDomain(err):
		outcome = "rejected"
	default:
		outcome = "failed"
	}
	label := string(t)
	if !t.Valid() {
		label = "unknown"
	}
	observability.LedgerTransactions.WithLabelValues(label, outcome).Inc()

	if err != nil {
		if outcome == "failed" {
			logger.Error("transaction failed", "type", t, "error", err)
		} else {
			logger.Info("transaction rejected", "type", t, "reason", err)
		}
		return
	}

	logger.Info("transaction committed", "id", tx.ID, "type", tx.Type)
	s.invalidateTop(ctx)
	if s.publisher != nil {
		if err := s.publisher.PublishCommitted(ctx, tx); err != nil {
			logger.Error("failed to publish committed transaction", "id", tx.ID, "error", err)
		}
	}
}

func (s *ledgerService) invalidateTop(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateTop(ctx); err != nil {
		slog.Warn("failed to invalidate leaderboard cache", "error", err)
	}
}

func (s *ledgerService) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, "GetTransaction")
	defer span.End()
	span.SetAttributes(attribute.Int64("transaction_id", id))

	return s.transactions.GetByID(ctx, id)
}

func (s *ledgerService) GetTransactionHistory(ctx context.Context, accountID int64) ([]models.Transaction, error) {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, "GetTransactionHistory")
	defer span.End()
	span.SetAttributes(attribute.Int64("account_id", accountID))

	return s.transactions.History(ctx, accountID)
}

func (s *ledgerService) GetAllTransactions(ctx context.Context) ([]models.Transaction, error) {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, "GetAllTransactions")
	defer span.End()

	return s.transactions.All(ctx)
}
