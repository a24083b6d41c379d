package reports

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/money"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func activity(code, name string, typ accounts.AccountType, debit, credit string) AccountActivity {
	return AccountActivity{
		Code: code, Name: name, Type: typ,
		NormalSide: typ.NormalSide(),
		Debit:      dec(debit), Credit: dec(credit),
	}
}

func TestBuildTrialBalance(t *testing.T) {
	asOf := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	tb := BuildTrialBalance(asOf, []AccountActivity{
		activity("4000", "Sales", accounts.AccountTypeRevenue, "0", "500.00"),
		activity("1000", "Cash", accounts.AccountTypeAsset, "500.00", "300.00"),
		activity("5000", "Rent", accounts.AccountTypeExpense, "300.00", "0"),
		// Fully offset activity nets to zero and is suppressed.
		activity("1100", "Clearing", accounts.AccountTypeAsset, "75.00", "75.00"),
	})

	require.True(t, tb.Balanced())
	require.Len(t, tb.Rows, 3)
	// Rows come back ordered by code.
	require.Equal(t, "1000", tb.Rows[0].Code)
	require.Equal(t, "4000", tb.Rows[1].Code)
	require.Equal(t, "5000", tb.Rows[2].Code)

	// Each net sits in the column of the account's normal side.
	require.True(t, tb.Rows[0].Debit.Equal(dec("200.00")))
	require.True(t, tb.Rows[0].Credit.IsZero())
	require.True(t, tb.Rows[1].Credit.Equal(dec("500.00")))
	require.True(t, tb.Rows[2].Debit.Equal(dec("300.00")))

	require.True(t, tb.TotalDebit.Equal(dec("500.00")))
	require.True(t, tb.TotalCredit.Equal(dec("500.00")))
}

func TestTrialBalanceContraAccount(t *testing.T) {
	// A contra-asset carries a credit normal side and lands in the credit
	// column even though its classification is ASSET.
	contra := AccountActivity{
		Code: "1500", Name: "Accumulated Depreciation",
		Type: accounts.AccountTypeAsset, NormalSide: money.SideCredit,
		Debit: dec("0"), Credit: dec("120.00"),
	}
	tb := BuildTrialBalance(time.Now(), []AccountActivity{
		activity("5100", "Depreciation Expense", accounts.AccountTypeExpense, "120.00", "0"),
		contra,
	})
	require.True(t, tb.Balanced())
	require.True(t, tb.Rows[0].Credit.Equal(dec("120.00")))
	require.True(t, tb.Rows[1].Debit.Equal(dec("120.00")))
}

func TestBuildProfitAndLoss(t *testing.T) {
	pl := BuildProfitAndLoss([]AccountActivity{
		activity("1000", "Cash", accounts.AccountTypeAsset, "800.00", "0"),
		activity("4000", "Sales", accounts.AccountTypeRevenue, "0", "800.00"),
		activity("4100", "Service Fees", accounts.AccountTypeRevenue, "0", "200.00"),
		activity("5000", "Rent", accounts.AccountTypeExpense, "300.00", "0"),
	})

	require.Len(t, pl.Revenue.Accounts, 2)
	require.Len(t, pl.Expense.Accounts, 1)
	require.True(t, pl.Revenue.Total.Equal(dec("1000.00")))
	require.True(t, pl.Expense.Total.Equal(dec("300.00")))
	require.True(t, pl.NetIncome.Equal(dec("700.00")))
}

func TestBuildBalanceSheetFoldsNetIncome(t *testing.T) {
	bs := BuildBalanceSheet([]AccountActivity{
		activity("1000", "Cash", accounts.AccountTypeAsset, "1000.00", "300.00"),
		activity("2000", "Accounts Payable", accounts.AccountTypeLiability, "0", "200.00"),
		activity("3000", "Share Capital", accounts.AccountTypeEquity, "0", "100.00"),
		activity("4000", "Sales", accounts.AccountTypeRevenue, "0", "700.00"),
		activity("5000", "Rent", accounts.AccountTypeExpense, "300.00", "0"),
	})

	require.True(t, bs.Assets.Total.Equal(dec("700.00")))
	require.True(t, bs.Liabilities.Total.Equal(dec("200.00")))
	// Equity carries share capital plus current-period net income.
	require.True(t, bs.Equity.Total.Equal(dec("500.00")))
	require.True(t, bs.TotalLiabilitiesAndEquity.Equal(bs.Assets.Total))
}
