package service

import (
	"fmt"

	"github.com/honeynil/UsersLedgerService/internal/models"
	pkgerrors "github.com/honeynil/UsersLedgerService/pkg/errors"
)

// AuthorizationPolicy maps every transaction type to the minimum role
// allowed to send it.
type AuthorizationPolicy struct {
	minRole map[models.TransactionType]models.Role
}

func NewAuthorizationPolicy() *AuthorizationPolicy {
	p := &AuthorizationPolicy{minRole: make(map[models.TransactionType]models.Role)}
	p.allow(models.RoleNormal,
		models.TypeTransfer,
		models.TypePurchase,
		models.TypeActivatePromoCode,
		models.TypeCreateCheck,
		models.TypeActivateCheck,
		models.TypeFarm,
	)
	p.allow(models.RoleModerator,
		models.TypeBlock,
		models.TypeWarn,
		models.TypeBan,
		models.TypeUnwarn,
		models.TypeUnban,
		models.TypeRoleChange,
	)
	p.allow(models.RoleCreator,
		models.TypeSet,
		models.TypeGet,
		models.TypeCreatePromoCode,
		models.TypeDeletePromoCode,
	)
	return p
}

func (p *AuthorizationPolicy) allow(role models.Role, types ...models.TransactionType) {
	for _, t := range types {
		if prev, ok := p.minRole[t]; ok {
			panic(fmt.Sprintf("transaction type %q already allowed for %q", t, prev))
		}
		p.minRole[t] = role
	}
}

// MinRole returns the least privileged role allowed to send t.
func (p *AuthorizationPolicy) MinRole(t models.TransactionType) (models.Role, bool) {
	role, ok := p.minRole[t]
	return role, ok
}

// Authorize reports whether role may send a transaction of type t.
// Blocked accounts are denied everything.
func (p *AuthorizationPolicy) Authorize(role models.Role, t models.TransactionType) error {
	min, ok := p.minRole[t]
	if !ok {
		return fmt.Errorf("%w: %q", pkgerrors.ErrInvalidTransactionType, t)
	}
	if role.IsBlocked() {
		return fmt.Errorf("%w: role %q may not send %q", pkgerrors.ErrForbidden, role, t)
	}
	if !role.AtLeast(min) {
		return fmt.Errorf("%w: role %q may not send %q", pkgerrors.ErrForbidden, role, t)
	}
	return nil
}
