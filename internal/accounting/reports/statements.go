package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
)

// StatementLine is one account row on a financial statement.
type StatementLine struct {
	Code   string
	Name   string
	Amount decimal.Decimal
}

// StatementSection groups accounts by nature.
type StatementSection struct {
	Label    string
	Accounts []StatementLine
	Total    decimal.Decimal
}

func (s *StatementSection) add(act AccountActivity) {
	amount := act.Net()
	s.Accounts = append(s.Accounts, StatementLine{Code: act.Code, Name: act.Name, Amount: amount})
	s.Total = s.Total.Add(amount)
}

func (s *StatementSection) sorted() {
	sort.Slice(s.Accounts, func(i, j int) bool { return s.Accounts[i].Code < s.Accounts[j].Code })
}

// ProfitAndLoss is the structured income statement.
type ProfitAndLoss struct {
	Revenue   StatementSection
	Expense   StatementSection
	NetIncome decimal.Decimal
}

// BuildProfitAndLoss aggregates revenue and expense activity.
func BuildProfitAndLoss(activity []AccountActivity) ProfitAndLoss {
	pl := ProfitAndLoss{
		Revenue: StatementSection{Label: "Revenue"},
		Expense: StatementSection{Label: "Expense"},
	}
	for _, act := range activity {
		switch act.Type {
		case accounts.AccountTypeRevenue:
			pl.Revenue.add(act)
		case accounts.AccountTypeExpense:
			pl.Expense.add(act)
		}
	}
	pl.Revenue.sorted()
	pl.Expense.sorted()
	pl.NetIncome = pl.Revenue.Total.Sub(pl.Expense.Total)
	return pl
}

// BalanceSheet is the structured statement of financial position.
type BalanceSheet struct {
	Assets                    StatementSection
	Liabilities               StatementSection
	Equity                    StatementSection
	TotalLiabilitiesAndEquity decimal.Decimal
}

// BuildBalanceSheet aggregates asset, liability, and equity activity.
// Current-period net income is folded into equity so the sheet balances.
func BuildBalanceSheet(activity []AccountActivity) BalanceSheet {
	bs := BalanceSheet{
		Assets:      StatementSection{Label: "Assets"},
		Liabilities: StatementSection{Label: "Liabilities"},
		Equity:      StatementSection{Label: "Equity"},
	}
	var netIncome decimal.Decimal
	for _, act := range activity {
		switch act.Type {
		case accounts.AccountTypeAsset:
			bs.Assets.add(act)
		case accounts.AccountTypeLiability:
			bs.Liabilities.add(act)
		case accounts.AccountTypeEquity:
			bs.Equity.add(act)
		case accounts.AccountTypeRevenue:
			netIncome = netIncome.Add(act.Net())
		case accounts.AccountTypeExpense:
			netIncome = netIncome.Sub(act.Net())
		}
	}
	bs.Assets.sorted()
	bs.Liabilities.sorted()
	bs.Equity.sorted()
	bs.Equity.Total = bs.Equity.Total.Add(netIncome)
	bs.TotalLiabilitiesAndEquity = bs.Liabilities.Total.Add(bs.Equity.Total)
	return bs
}
