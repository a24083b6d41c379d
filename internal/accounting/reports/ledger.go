package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/money"
)

// LedgerMovement is one posted line feeding an account ledger.
type LedgerMovement struct {
	EntryID     int64
	Number      string
	Date        time.Time
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// LedgerRow is a movement with the running balance carried forward.
type LedgerRow struct {
	LedgerMovement
	Balance decimal.Decimal
}

// Ledger lists an account's movements inside a date range with the
// balance brought forward from before the range.
type Ledger struct {
	AccountID      int64
	Code           string
	Name           string
	From           time.Time
	To             time.Time
	OpeningBalance decimal.Decimal
	Rows           []LedgerRow
	ClosingBalance decimal.Decimal
}

// BuildLedger threads the running balance through the movements.
// Movements must be ordered by date then entry number.
func BuildLedger(accountID int64, code, name string, normalSide money.Side, from, to time.Time, opening decimal.Decimal, movements []LedgerMovement) Ledger {
	ledger := Ledger{
		AccountID:      accountID,
		Code:           code,
		Name:           name,
		From:           from,
		To:             to,
		OpeningBalance: opening,
	}
	balance := opening
	for _, mv := range movements {
		if normalSide == money.SideDebit {
			balance = balance.Add(mv.Debit).Sub(mv.Credit)
		} else {
			balance = balance.Add(mv.Credit).Sub(mv.Debit)
		}
		ledger.Rows = append(ledger.Rows, LedgerRow{LedgerMovement: mv, Balance: balance})
	}
	ledger.ClosingBalance = balance
	return ledger
}
