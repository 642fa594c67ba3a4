package models

import (
	"fmt"
	"math"
	"time"

	pkgerrors "github.com/honeynil/UsersLedgerService/pkg/errors"
)

const (
	DefaultCredits        int64 = 100
	DefaultStocks         int64 = 0
	DefaultAutoBuyEnabled       = true
)

type Account struct {
	ID             int64     `json:"id"`
	Credits        int64     `json:"credits"`
	Stocks         int64     `json:"stocks"`
	Role           Role      `json:"role"`
	AutoBuyEnabled bool      `json:"auto_buy_enabled"`
	LastFarmingAt  time.Time `json:"last_farming_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewAccount returns an account with the creation defaults. ID and CreatedAt are set by the store.
func NewAccount() *Account {
	return &Account{
		Credits:        DefaultCredits,
		Stocks:         DefaultStocks,
		Role:           RoleNormal,
		AutoBuyEnabled: DefaultAutoBuyEnabled,
	}
}

// Balance returns the balance held in c.
func (a *Account) Balance(c Currency) (int64, error) {
	switch c {
	case CurrencyCredits:
		return a.Credits, nil
	case CurrencyStocks:
		return a.Stocks, nil
	default:
		return 0, fmt.Errorf("%w: %q", pkgerrors.ErrInvalidCurrency, c)
	}
}

// Adjust adds delta to the balance held in c. A credit that would overflow
// the balance is rejected with ErrInvalidAmount and leaves a unchanged.
func (a *Account) Adjust(c Currency, delta int64) error {
	var balance *int64
	switch c {
	case CurrencyCredits:
		balance = &a.Credits
	case CurrencyStocks:
		balance = &a.Stocks
	default:
		return fmt.Errorf("%w: %q", pkgerrors.ErrInvalidCurrency, c)
	}
	if delta > 0 && *balance > math.MaxInt64-delta {
		return fmt.Errorf("%w: crediting %d %s to account %d overflows its balance", pkgerrors.ErrInvalidAmount, delta, c, a.ID)
	}
	*balance += delta
	return nil
}

type Currency string

const (
	CurrencyCredits Currency = "credits"
	CurrencyStocks  Currency = "stocks"
)

func (c Currency) Valid() bool {
	return c == CurrencyCredits || c == CurrencyStocks
}

func ParseCurrency(s string) (Currency, error) {
	c := Currency(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", pkgerrors.ErrInvalidCurrency, s)
	}
	return c, nil
}

// Role is the privilege tier of an account. RoleBlocked sits outside the
// privilege scale and must be tested with IsBlocked, never by comparing ranks.
type Role string

const (
	RoleNormal    Role = "normal"
	RoleModerator Role = "moderator"
	RoleCreator   Role = "creator"
	RoleBlocked   Role = "blocked"
)

var roleRanks = map[Role]int{
	RoleNormal:    0,
	RoleModerator: 1,
	RoleCreator:   2,
}

// Rank returns the position of r on the privilege scale. ok is false for
// RoleBlocked and for unknown roles.
func (r Role) Rank() (rank int, ok bool) {
	rank, ok = roleRanks[r]
	return rank, ok
}

func (r Role) IsBlocked() bool {
	return r == RoleBlocked
}

// AtLeast reports whether r is on the privilege scale and not below min.
func (r Role) AtLeast(min Role) bool {
	have, ok := r.Rank()
	if !ok {
		return false
	}
	need, ok := min.Rank()
	if !ok {
		return false
	}
	return have >= need
}

func (r Role) Valid() bool {
	_, ranked := r.Rank()
	return ranked || r.IsBlocked()
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", pkgerrors.ErrInvalidRole, s)
	}
	return r, nil
}
