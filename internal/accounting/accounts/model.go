package accounts

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/money"
)

// AccountType enumerates CoA classifications.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether the classification is known.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// NormalSide returns the default balance side for the classification.
// Contra-accounts override this on the account record.
func (t AccountType) NormalSide() money.Side {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return money.SideDebit
	default:
		return money.SideCredit
	}
}

// Account models a chart of accounts node. Balance is a projection owned
// by the posting engine; it is never written from outside.
type Account struct {
	ID         int64
	Code       string
	Name       string
	Type       AccountType
	NormalSide money.Side
	ParentID   *int64
	IsActive   bool
	Balance    decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Signed converts raw debit/credit totals into a balance signed by the
// account's normal side.
func (a Account) Signed(debit, credit decimal.Decimal) decimal.Decimal {
	if a.NormalSide == money.SideDebit {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// TreeNode is an account with its children in insertion order.
type TreeNode struct {
	Account
	Children []*TreeNode
}

// CreateAccountInput captures fields for a new account.
type CreateAccountInput struct {
	Code       string      `validate:"required"`
	Name       string      `validate:"required"`
	Type       AccountType `validate:"required"`
	NormalSide money.Side
	ParentID   *int64
	ActorID    int64
}

// UpdateAccountInput captures mutable account fields.
type UpdateAccountInput struct {
	ID       int64
	Name     *string
	ParentID *int64
	ActorID  int64
}

// ReconcileReport compares the stored projection against the aggregate of
// posted lines for one account.
type ReconcileReport struct {
	AccountID int64
	Code      string
	Stored    decimal.Decimal
	Computed  decimal.Decimal
	Drift     decimal.Decimal
}

// Clean reports whether the projection matches the line aggregate.
func (r ReconcileReport) Clean() bool {
	return r.Drift.IsZero()
}

var (
	// ErrDuplicateCode indicates the account code is taken.
	ErrDuplicateCode = errors.New("accounts: code already exists")
	// ErrParentClassification indicates the parent has a different type.
	ErrParentClassification = errors.New("accounts: parent classification differs")
	// ErrParentCycle indicates the parent chain revisits the account.
	ErrParentCycle = errors.New("accounts: parent chain forms a cycle")
)

// Validate normalises and checks the input.
func (in *CreateAccountInput) Validate() error {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if in.Code == "" {
		return errors.New("accounts: code required")
	}
	if in.Name == "" {
		return errors.New("accounts: name required")
	}
	if !in.Type.Valid() {
		return errors.New("accounts: unknown classification")
	}
	if in.NormalSide == "" {
		in.NormalSide = in.Type.NormalSide()
	}
	if !in.NormalSide.Valid() {
		return errors.New("accounts: unknown normal side")
	}
	return nil
}
