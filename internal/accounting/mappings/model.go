package mappings

import "time"

// Well-known mapping keys used by the sub-ledger posting adapter.
const (
	KeyAPControl        = "AP_CONTROL"
	KeyARControl        = "AR_CONTROL"
	KeyPayrollClearing  = "PAYROLL_CLEARING"
	KeyInventoryControl = "INVENTORY_CONTROL"
	KeyGRNIClearing     = "GRNI_CLEARING"
	KeyTaxPayable       = "TAX_PAYABLE"
)

// AccountMapping links a sub-ledger policy key to a ledger account.
type AccountMapping struct {
	Module    string
	Key       string
	AccountID int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
