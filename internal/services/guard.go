package service

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/honeynil/UsersLedgerService/internal/repository"
	pkgerrors "github.com/honeynil/UsersLedgerService/pkg/errors"
)

type BlockGuard struct{}

// CheckNotBlocked returns ErrAccountBlocked if account id is blocked.
// A missing account is not blocked; existence is checked by the caller.
func (BlockGuard) CheckNotBlocked(ctx context.Context, lookup repository.AccountLookup, id int64) error {
	account, err := lookup.GetAccountForUpdate(ctx, id)
	if stderrors.Is(err, pkgerrors.ErrAccountNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if account.Role.IsBlocked() {
		return fmt.Errorf("%w: %d", pkgerrors.ErrAccountBlocked, id)
	}
	return nil
}
