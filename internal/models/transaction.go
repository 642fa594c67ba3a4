package models

import (
	"fmt"
	"time"

	pkgerrors "github.com/honeynil/UsersLedgerService/pkg/errors"
)

// Leg is one side of a transfer.
type Leg struct {
	AccountID int64    `json:"account_id"`
	Amount    int64    `json:"amount"`
	Currency  Currency `json:"currency"`
}

func (l *Leg) Validate() error {
	if l.Amount <= 0 {
		return fmt.Errorf("%w: got %d for account %d", pkgerrors.ErrInvalidAmount, l.Amount, l.AccountID)
	}
	if !l.Currency.Valid() {
		return fmt.Errorf("%w: %q", pkgerrors.ErrInvalidCurrency, l.Currency)
	}
	return nil
}

// Transaction is an immutable ledger record. Sender is present iff a debit
// occurred, Receiver iff a credit occurred.
type Transaction struct {
	ID        int64           `json:"id"`
	Sender    *Leg            `json:"sender,omitempty"`
	Receiver  *Leg            `json:"receiver,omitempty"`
	Type      TransactionType `json:"type"`
	CreatedAt time.Time       `json:"created_at"`
}

// Validate checks that the record is well formed before it is persisted.
func (t *Transaction) Validate() error {
	if t.Sender == nil && t.Receiver == nil {
		return pkgerrors.ErrEmptyTransaction
	}
	if !t.Type.Valid() {
		return fmt.Errorf("%w: %q", pkgerrors.ErrInvalidTransactionType, t.Type)
	}
	for _, leg := range []*Leg{t.Sender, t.Receiver} {
		if leg == nil {
			continue
		}
		if err := leg.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Touches reports whether accountID appears on either leg.
func (t *Transaction) Touches(accountID int64) bool {
	return (t.Sender != nil && t.Sender.AccountID == accountID) ||
		(t.Receiver != nil && t.Receiver.AccountID == accountID)
}

type TransactionRequest struct {
	Type     TransactionType `json:"type"`
	Sender   *Leg            `json:"sender,omitempty"`
	Receiver *Leg            `json:"receiver,omitempty"`
}

// Record builds the ledger record the request would produce.
func (r TransactionRequest) Record() *Transaction {
	tx := &Transaction{Type: r.Type}
	if r.Sender != nil {
		leg := *r.Sender
		tx.Sender = &leg
	}
	if r.Receiver != nil {
		leg := *r.Receiver
		tx.Receiver = &leg
	}
	return tx
}

type TransactionType string

const (
	TypeTransfer          TransactionType = "transfer"
	TypePurchase          TransactionType = "purchase"
	TypeActivatePromoCode TransactionType = "activate_promo_code"
	TypeCreateCheck       TransactionType = "create_check"
	TypeActivateCheck     TransactionType = "activate_check"
	TypeFarm              TransactionType = "farm"

	TypeBlock      TransactionType = "block"
	TypeWarn       TransactionType = "warn"
	TypeBan        TransactionType = "ban"
	TypeUnwarn     TransactionType = "unwarn"
	TypeUnban      TransactionType = "unban"
	TypeRoleChange TransactionType = "role_change"

	TypeSet             TransactionType = "set"
	TypeGet             TransactionType = "get"
	TypeCreatePromoCode TransactionType = "create_promo_code"
	TypeDeletePromoCode TransactionType = "delete_promo_code"
)

// TransactionTypes lists every known type.
var TransactionTypes = []TransactionType{
	TypeTransfer, TypePurchase, TypeActivatePromoCode, TypeCreateCheck, TypeActivateCheck, TypeFarm,
	TypeBlock, TypeWarn, TypeBan, TypeUnwarn, TypeUnban, TypeRoleChange,
	TypeSet, TypeGet, TypeCreatePromoCode, TypeDeletePromoCode,
}

func (t TransactionType) Valid() bool {
	for _, known := range TransactionTypes {
		if t == known {
			return true
		}
	}
	return false
}
