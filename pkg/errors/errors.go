package errors

import (
	"errors"
	"fmt"
)

var (
	ErrAccountNotFound        = errors.New("account not found")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrEmptyTransaction       = errors.New("transaction has neither sender nor receiver")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInvalidCurrency        = errors.New("invalid currency")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrInvalidRole            = errors.New("invalid role")
	ErrSenderBlocked          = errors.New("sender is blocked")
	ErrReceiverBlocked        = errors.New("receiver is blocked")
	ErrAccountBlocked         = errors.New("account is blocked")
	ErrForbidden              = errors.New("forbidden")
	ErrRoleTooBig             = errors.New("role is too big to grant")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrFarmCooldown           = errors.New("farming is on cooldown")
	ErrNilAccount             = errors.New("account is nil")
	ErrNilTransaction         = errors.New("transaction is nil")
	ErrInvalidInput           = fmt.Errorf("invalid input")
	ErrUnauthenticated        = fmt.Errorf("unauthenticated")
	ErrInternal               = fmt.Errorf("internal error")
	ErrCommit                 = fmt.Errorf("failed to commit transaction")
	ErrRollback               = fmt.Errorf("failed to rollback transaction")
)

// Kind is the caller-visible class of an error.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidArgument
	KindNotFound
	KindPermissionDenied
	KindFailedPrecondition
	KindUnauthenticated
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindFailedPrecondition:
		return "failed_precondition"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "internal"
	}
}

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrEmptyTransaction, KindInvalidArgument},
	{ErrInvalidAmount, KindInvalidArgument},
	{ErrInvalidCurrency, KindInvalidArgument},
	{ErrInvalidTransactionType, KindInvalidArgument},
	{ErrInvalidRole, KindInvalidArgument},
	{ErrInvalidInput, KindInvalidArgument},
	{ErrAccountNotFound, KindNotFound},
	{ErrTransactionNotFound, KindNotFound},
	{ErrSenderBlocked, KindPermissionDenied},
	{ErrReceiverBlocked, KindPermissionDenied},
	{ErrAccountBlocked, KindPermissionDenied},
	{ErrForbidden, KindPermissionDenied},
	{ErrRoleTooBig, KindPermissionDenied},
	{ErrInsufficientFunds, KindFailedPrecondition},
	{ErrFarmCooldown, KindFailedPrecondition},
	{ErrUnauthenticated, KindUnauthenticated},
}

// KindOf classifies err. Anything that is not a known domain error is internal.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// IsDomain reports whether err is an expected business outcome rather than a fault.
func IsDomain(err error) bool {
	return err != nil && KindOf(err) != KindInternal
}
