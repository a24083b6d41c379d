package subledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/accounting/mappings"
	"github.com/meridian-erp/meridian-erp/internal/money"
)

// ErrNonPositiveAmount indicates an event amount that is zero or negative.
var ErrNonPositiveAmount = errors.New("subledger: amount must be positive")

// JournalPort is the slice of the posting engine the adapter drives.
type JournalPort interface {
	CreateAndPost(ctx context.Context, in journals.DraftInput, actorID int64) (journals.JournalEntry, error)
}

// MappingSource resolves control and clearing accounts by policy key.
type MappingSource interface {
	Get(ctx context.Context, module, key string) (mappings.AccountMapping, error)
}

// PostingResult is what callers get back from a translated event.
type PostingResult struct {
	EntryID int64
	Number  string
	Status  journals.JournalStatus
}

// Adapter translates typed business events into balanced journal
// entries. It owns only account-selection policy and reference formats;
// the posting engine knows nothing of sub-ledgers.
type Adapter struct {
	journal JournalPort
	maps    MappingSource
}

func NewAdapter(journal JournalPort, maps MappingSource) *Adapter {
	return &Adapter{journal: journal, maps: maps}
}

// APInvoice posts a vendor invoice against the AP control account.
func (a *Adapter) APInvoice(ctx context.Context, ev APInvoiceReceived) (PostingResult, error) {
	if err := validate.Struct(ev); err != nil {
		return PostingResult{}, err
	}
	total, lines, err := distribute(ev.Lines, money.SideDebit)
	if err != nil {
		return PostingResult{}, err
	}
	control, err := a.maps.Get(ctx, string(journals.SourceAP), mappings.KeyAPControl)
	if err != nil {
		return PostingResult{}, err
	}
	lines = append(lines, journals.LineInput{AccountID: control.AccountID, Credit: total, Description: "Vendor " + ev.VendorCode})
	return a.post(ctx, journals.DraftInput{
		Date:           ev.Date,
		Source:         journals.SourceAP,
		Description:    orDefault(ev.Description, "Vendor invoice "+ev.InvoiceNumber),
		Reference:      fmt.Sprintf("AP/%s/%s", ev.VendorCode, ev.InvoiceNumber),
		IdempotencyKey: ev.IdempotencyKey,
		Lines:          lines,
	}, ev.ActorID)
}

// ARInvoice posts a customer invoice against the AR control account.
func (a *Adapter) ARInvoice(ctx context.Context, ev ARInvoiceIssued) (PostingResult, error) {
	if err := validate.Struct(ev); err != nil {
		return PostingResult{}, err
	}
	total, lines, err := distribute(ev.Lines, money.SideCredit)
	if err != nil {
		return PostingResult{}, err
	}
	control, err := a.maps.Get(ctx, string(journals.SourceAR), mappings.KeyARControl)
	if err != nil {
		return PostingResult{}, err
	}
	lines = append([]journals.LineInput{{AccountID: control.AccountID, Debit: total, Description: "Customer " + ev.CustomerCode}}, lines...)
	return a.post(ctx, journals.DraftInput{
		Date:           ev.Date,
		Source:         journals.SourceAR,
		Description:    orDefault(ev.Description, "Customer invoice "+ev.InvoiceNumber),
		Reference:      fmt.Sprintf("AR/%s/%s", ev.CustomerCode, ev.InvoiceNumber),
		IdempotencyKey: ev.IdempotencyKey,
		Lines:          lines,
	}, ev.ActorID)
}

// PayrollRun posts gross payroll cost against the payroll clearing
// account.
func (a *Adapter) PayrollRun(ctx context.Context, ev PayrollRunProcessed) (PostingResult, error) {
	if err := validate.Struct(ev); err != nil {
		return PostingResult{}, err
	}
	total, lines, err := distribute(ev.ExpenseLines, money.SideDebit)
	if err != nil {
		return PostingResult{}, err
	}
	clearing, err := a.maps.Get(ctx, string(journals.SourcePayroll), mappings.KeyPayrollClearing)
	if err != nil {
		return PostingResult{}, err
	}
	lines = append(lines, journals.LineInput{AccountID: clearing.AccountID, Credit: total, Description: "Payroll clearing"})
	return a.post(ctx, journals.DraftInput{
		Date:           ev.Date,
		Source:         journals.SourcePayroll,
		Description:    "Payroll run " + ev.RunLabel,
		Reference:      "PR/" + ev.RunLabel,
		IdempotencyKey: ev.IdempotencyKey,
		Lines:          lines,
	}, ev.ActorID)
}

// GoodsReceipt posts goods received not yet invoiced.
func (a *Adapter) GoodsReceipt(ctx context.Context, ev InventoryReceipt) (PostingResult, error) {
	if err := validate.Struct(ev); err != nil {
		return PostingResult{}, err
	}
	if !money.IsPositive(ev.Amount) {
		return PostingResult{}, ErrNonPositiveAmount
	}
	inventory, err := a.maps.Get(ctx, string(journals.SourceInventory), mappings.KeyInventoryControl)
	if err != nil {
		return PostingResult{}, err
	}
	grni, err := a.maps.Get(ctx, string(journals.SourceInventory), mappings.KeyGRNIClearing)
	if err != nil {
		return PostingResult{}, err
	}
	return a.post(ctx, journals.DraftInput{
		Date:           ev.Date,
		Source:         journals.SourceInventory,
		Description:    orDefault(ev.Description, "Goods receipt "+ev.GRNNumber),
		Reference:      "INV/GRN/" + ev.GRNNumber,
		IdempotencyKey: ev.IdempotencyKey,
		Lines: []journals.LineInput{
			{AccountID: inventory.AccountID, Debit: ev.Amount},
			{AccountID: grni.AccountID, Credit: ev.Amount},
		},
	}, ev.ActorID)
}

// StockAdjustment posts a revaluation of inventory. The sign of the
// delta decides which side the inventory control account takes.
func (a *Adapter) StockAdjustment(ctx context.Context, ev InventoryAdjustment) (PostingResult, error) {
	if err := validate.Struct(ev); err != nil {
		return PostingResult{}, err
	}
	if ev.Delta.IsZero() {
		return PostingResult{}, ErrNonPositiveAmount
	}
	inventory, err := a.maps.Get(ctx, string(journals.SourceInventory), mappings.KeyInventoryControl)
	if err != nil {
		return PostingResult{}, err
	}
	amount := ev.Delta.Abs()
	var lines []journals.LineInput
	if ev.Delta.Sign() > 0 {
		lines = []journals.LineInput{
			{AccountID: inventory.AccountID, Debit: amount},
			{AccountID: ev.AdjustmentAccountID, Credit: amount},
		}
	} else {
		lines = []journals.LineInput{
			{AccountID: ev.AdjustmentAccountID, Debit: amount},
			{AccountID: inventory.AccountID, Credit: amount},
		}
	}
	return a.post(ctx, journals.DraftInput{
		Date:           ev.Date,
		Source:         journals.SourceInventory,
		Description:    orDefault(ev.Description, "Stock adjustment "+ev.Reference),
		Reference:      "INV/ADJ/" + ev.Reference,
		IdempotencyKey: ev.IdempotencyKey,
		Lines:          lines,
	}, ev.ActorID)
}

// TaxAccrual posts a tax liability against the tax payable account.
func (a *Adapter) TaxAccrual(ctx context.Context, ev TaxAccrual) (PostingResult, error) {
	if err := validate.Struct(ev); err != nil {
		return PostingResult{}, err
	}
	if !money.IsPositive(ev.Amount) {
		return PostingResult{}, ErrNonPositiveAmount
	}
	payable, err := a.maps.Get(ctx, string(journals.SourceTax), mappings.KeyTaxPayable)
	if err != nil {
		return PostingResult{}, err
	}
	return a.post(ctx, journals.DraftInput{
		Date:           ev.Date,
		Source:         journals.SourceTax,
		Description:    orDefault(ev.Description, "Tax accrual "+ev.Reference),
		Reference:      "TAX/" + ev.Reference,
		IdempotencyKey: ev.IdempotencyKey,
		Lines: []journals.LineInput{
			{AccountID: ev.ExpenseAccountID, Debit: ev.Amount},
			{AccountID: payable.AccountID, Credit: ev.Amount},
		},
	}, ev.ActorID)
}

func (a *Adapter) post(ctx context.Context, in journals.DraftInput, actorID int64) (PostingResult, error) {
	in.CreatedBy = actorID
	entry, err := a.journal.CreateAndPost(ctx, in, actorID)
	if err != nil {
		return PostingResult{}, err
	}
	return PostingResult{EntryID: entry.ID, Number: entry.Number, Status: entry.Status}, nil
}

// distribute turns distribution lines into journal lines on one side and
// returns their total.
func distribute(dist []DistributionLine, side money.Side) (decimal.Decimal, []journals.LineInput, error) {
	var total decimal.Decimal
	lines := make([]journals.LineInput, 0, len(dist)+1)
	for _, d := range dist {
		if !money.IsPositive(d.Amount) {
			return decimal.Decimal{}, nil, ErrNonPositiveAmount
		}
		li := journals.LineInput{AccountID: d.AccountID, Description: d.Description}
		if side == money.SideDebit {
			li.Debit = d.Amount
		} else {
			li.Credit = d.Amount
		}
		lines = append(lines, li)
		total = total.Add(d.Amount)
	}
	return total, lines, nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
