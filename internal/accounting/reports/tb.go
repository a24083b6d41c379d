package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/money"
)

// AccountActivity carries the aggregated posted debit/credit totals for
// one account at a cutoff date.
type AccountActivity struct {
	AccountID  int64
	Code       string
	Name       string
	Type       accounts.AccountType
	NormalSide money.Side
	Debit      decimal.Decimal
	Credit     decimal.Decimal
}

// Net returns the activity signed by the account's normal side.
func (a AccountActivity) Net() decimal.Decimal {
	if a.NormalSide == money.SideDebit {
		return a.Debit.Sub(a.Credit)
	}
	return a.Credit.Sub(a.Debit)
}

// TrialBalanceRow is one account's line on the trial balance. The net
// sits in the column matching the account's normal side.
type TrialBalanceRow struct {
	AccountID int64
	Code      string
	Name      string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// TrialBalance is the date-cut snapshot proving debits equal credits.
type TrialBalance struct {
	AsOf        time.Time
	Rows        []TrialBalanceRow
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// Balanced reports whether the column totals agree within tolerance.
func (tb TrialBalance) Balanced() bool {
	return money.WithinEpsilon(tb.TotalDebit, tb.TotalCredit, money.BaseScale)
}

// BuildTrialBalance produces trial balance rows for accounts with
// non-zero activity, ordered by code.
func BuildTrialBalance(asOf time.Time, activity []AccountActivity) TrialBalance {
	tb := TrialBalance{AsOf: asOf}
	for _, act := range activity {
		net := act.Net()
		if net.IsZero() {
			continue
		}
		row := TrialBalanceRow{AccountID: act.AccountID, Code: act.Code, Name: act.Name}
		if act.NormalSide == money.SideDebit {
			row.Debit = net
		} else {
			row.Credit = net
		}
		tb.Rows = append(tb.Rows, row)
		tb.TotalDebit = tb.TotalDebit.Add(row.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(row.Credit)
	}
	sort.Slice(tb.Rows, func(i, j int) bool { return tb.Rows[i].Code < tb.Rows[j].Code })
	return tb
}
