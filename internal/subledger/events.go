package subledger

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// DistributionLine spreads an event amount across concrete accounts.
// Callers supply account ids, never account-type hints.
type DistributionLine struct {
	AccountID   int64           `validate:"required"`
	Amount      decimal.Decimal `validate:"required"`
	Description string
}

// APInvoiceReceived records a vendor invoice. Distribution lines are
// debited and the AP control account is credited for the total.
type APInvoiceReceived struct {
	VendorCode     string    `validate:"required"`
	InvoiceNumber  string    `validate:"required"`
	Date           time.Time `validate:"required"`
	Description    string
	IdempotencyKey string             `validate:"required"`
	Lines          []DistributionLine `validate:"required,min=1,dive"`
	ActorID        int64              `validate:"required"`
}

// ARInvoiceIssued records a customer invoice. The AR control account is
// debited and distribution lines are credited.
type ARInvoiceIssued struct {
	CustomerCode   string    `validate:"required"`
	InvoiceNumber  string    `validate:"required"`
	Date           time.Time `validate:"required"`
	Description    string
	IdempotencyKey string             `validate:"required"`
	Lines          []DistributionLine `validate:"required,min=1,dive"`
	ActorID        int64              `validate:"required"`
}

// PayrollRunProcessed records gross payroll cost. Expense lines are
// debited and the payroll clearing account is credited.
type PayrollRunProcessed struct {
	RunLabel       string    `validate:"required"`
	Date           time.Time `validate:"required"`
	IdempotencyKey string    `validate:"required"`
	ExpenseLines   []DistributionLine `validate:"required,min=1,dive"`
	ActorID        int64              `validate:"required"`
}

// InventoryReceipt records goods received not yet invoiced. The
// inventory control account is debited against GRNI clearing.
type InventoryReceipt struct {
	GRNNumber      string          `validate:"required"`
	Date           time.Time       `validate:"required"`
	Amount         decimal.Decimal `validate:"required"`
	Description    string
	IdempotencyKey string `validate:"required"`
	ActorID        int64  `validate:"required"`
}

// InventoryAdjustment records a stock revaluation. A negative delta is a
// write-down: the adjustment account is debited and inventory credited.
// A positive delta reverses the sides.
type InventoryAdjustment struct {
	Reference           string          `validate:"required"`
	Date                time.Time       `validate:"required"`
	Delta               decimal.Decimal `validate:"required"`
	AdjustmentAccountID int64           `validate:"required"`
	Description         string
	IdempotencyKey      string `validate:"required"`
	ActorID             int64  `validate:"required"`
}

// TaxAccrual records a tax liability. The supplied expense account is
// debited and the tax payable account is credited.
type TaxAccrual struct {
	Reference        string          `validate:"required"`
	Date             time.Time       `validate:"required"`
	Amount           decimal.Decimal `validate:"required"`
	ExpenseAccountID int64           `validate:"required"`
	Description      string
	IdempotencyKey   string `validate:"required"`
	ActorID          int64  `validate:"required"`
}
