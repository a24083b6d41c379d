package subledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/accounting/mappings"
	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

type fakeEngine struct {
	inputs []journals.DraftInput
}

func (f *fakeEngine) CreateAndPost(_ context.Context, in journals.DraftInput, _ int64) (journals.JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return journals.JournalEntry{}, err
	}
	f.inputs = append(f.inputs, in)
	return journals.JournalEntry{
		ID:     int64(len(f.inputs)),
		Number: journals.FormatNumber(in.Source.Prefix(), in.Date.Year(), int64(len(f.inputs))),
		Status: journals.JournalStatusPosted,
	}, nil
}

type fakeMappings map[string]int64

func (f fakeMappings) Get(_ context.Context, module, key string) (mappings.AccountMapping, error) {
	id, ok := f[module+"/"+key]
	if !ok {
		return mappings.AccountMapping{}, shared.ErrMappingNotFound
	}
	return mappings.AccountMapping{Module: module, Key: key, AccountID: id}, nil
}

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testAdapter() (*Adapter, *fakeEngine) {
	engine := &fakeEngine{}
	maps := fakeMappings{
		"AP/AP_CONTROL":            200,
		"AR/AR_CONTROL":            120,
		"PAYROLL/PAYROLL_CLEARING": 210,
		"INVENTORY/INVENTORY_CONTROL": 130,
		"INVENTORY/GRNI_CLEARING":     220,
		"TAX/TAX_PAYABLE":             230,
	}
	return NewAdapter(engine, maps), engine
}

func TestAPInvoiceBalancesAgainstControl(t *testing.T) {
	adapter, engine := testAdapter()

	res, err := adapter.APInvoice(context.Background(), APInvoiceReceived{
		VendorCode:     "ACME",
		InvoiceNumber:  "INV-881",
		Date:           time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC),
		IdempotencyKey: "ap-inv-881",
		ActorID:        7,
		Lines: []DistributionLine{
			{AccountID: 610, Amount: amount("750.00"), Description: "Office supplies"},
			{AccountID: 620, Amount: amount("250.00"), Description: "Freight"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, journals.JournalStatusPosted, res.Status)
	require.NotEmpty(t, res.Number)

	require.Len(t, engine.inputs, 1)
	in := engine.inputs[0]
	require.Equal(t, journals.SourceAP, in.Source)
	require.Equal(t, "AP/ACME/INV-881", in.Reference)
	require.Equal(t, "ap-inv-881", in.IdempotencyKey)
	require.Len(t, in.Lines, 3)
	require.Equal(t, int64(200), in.Lines[2].AccountID)
	require.True(t, in.Lines[2].Credit.Equal(amount("1000.00")))
}

func TestARInvoiceDebitsControl(t *testing.T) {
	adapter, engine := testAdapter()

	_, err := adapter.ARInvoice(context.Background(), ARInvoiceIssued{
		CustomerCode:   "CUST9",
		InvoiceNumber:  "S-100",
		Date:           time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC),
		IdempotencyKey: "ar-s-100",
		ActorID:        7,
		Lines:          []DistributionLine{{AccountID: 400, Amount: amount("320.00")}},
	})
	require.NoError(t, err)

	in := engine.inputs[0]
	require.Equal(t, journals.SourceAR, in.Source)
	require.Equal(t, int64(120), in.Lines[0].AccountID)
	require.True(t, in.Lines[0].Debit.Equal(amount("320.00")))
	require.True(t, in.Lines[1].Credit.Equal(amount("320.00")))
}

func TestPayrollRunCreditsClearing(t *testing.T) {
	adapter, engine := testAdapter()

	_, err := adapter.PayrollRun(context.Background(), PayrollRunProcessed{
		RunLabel:       "2026-03",
		Date:           time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC),
		IdempotencyKey: "pr-2026-03",
		ActorID:        7,
		ExpenseLines: []DistributionLine{
			{AccountID: 640, Amount: amount("9000.00"), Description: "Salaries"},
			{AccountID: 641, Amount: amount("1000.00"), Description: "Employer taxes"},
		},
	})
	require.NoError(t, err)

	in := engine.inputs[0]
	require.Equal(t, "PR/2026-03", in.Reference)
	last := in.Lines[len(in.Lines)-1]
	require.Equal(t, int64(210), last.AccountID)
	require.True(t, last.Credit.Equal(amount("10000.00")))
}

func TestGoodsReceiptUsesBothMappings(t *testing.T) {
	adapter, engine := testAdapter()

	_, err := adapter.GoodsReceipt(context.Background(), InventoryReceipt{
		GRNNumber:      "GRN-55",
		Date:           time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
		Amount:         amount("480.00"),
		IdempotencyKey: "grn-55",
		ActorID:        7,
	})
	require.NoError(t, err)

	in := engine.inputs[0]
	require.Equal(t, int64(130), in.Lines[0].AccountID)
	require.Equal(t, int64(220), in.Lines[1].AccountID)
}

func TestStockAdjustmentFlipsSides(t *testing.T) {
	adapter, engine := testAdapter()

	_, err := adapter.StockAdjustment(context.Background(), InventoryAdjustment{
		Reference:           "COUNT-3",
		Date:                time.Date(2026, time.March, 11, 0, 0, 0, 0, time.UTC),
		Delta:               amount("-75.00"),
		AdjustmentAccountID: 650,
		IdempotencyKey:      "adj-count-3",
		ActorID:             7,
	})
	require.NoError(t, err)

	in := engine.inputs[0]
	require.Equal(t, int64(650), in.Lines[0].AccountID)
	require.True(t, in.Lines[0].Debit.Equal(amount("75.00")))
	require.Equal(t, int64(130), in.Lines[1].AccountID)
	require.True(t, in.Lines[1].Credit.Equal(amount("75.00")))
}

func TestTaxAccrualCreditsPayable(t *testing.T) {
	adapter, engine := testAdapter()

	_, err := adapter.TaxAccrual(context.Background(), TaxAccrual{
		Reference:        "VAT-2026Q1",
		Date:             time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC),
		Amount:           amount("1250.00"),
		ExpenseAccountID: 660,
		IdempotencyKey:   "tax-vat-q1",
		ActorID:          7,
	})
	require.NoError(t, err)

	in := engine.inputs[0]
	require.Equal(t, int64(230), in.Lines[1].AccountID)
	require.True(t, in.Lines[1].Credit.Equal(amount("1250.00")))
}

func TestAdapterRejectsBadEvents(t *testing.T) {
	adapter, engine := testAdapter()

	_, err := adapter.APInvoice(context.Background(), APInvoiceReceived{
		VendorCode: "ACME",
	})
	require.Error(t, err)
	require.Empty(t, engine.inputs)

	_, err = adapter.TaxAccrual(context.Background(), TaxAccrual{
		Reference:        "NEG",
		Date:             time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		Amount:           amount("-5.00"),
		ExpenseAccountID: 660,
		IdempotencyKey:   "neg",
		ActorID:          7,
	})
	require.ErrorIs(t, err, ErrNonPositiveAmount)

	_, err = adapter.StockAdjustment(context.Background(), InventoryAdjustment{
		Reference:           "ZERO",
		Date:                time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		Delta:               amount("0.00"),
		AdjustmentAccountID: 650,
		IdempotencyKey:      "zero",
		ActorID:             7,
	})
	require.Error(t, err)
	require.Empty(t, engine.inputs)
}

func TestMissingMappingSurfaces(t *testing.T) {
	engine := &fakeEngine{}
	adapter := NewAdapter(engine, fakeMappings{})

	_, err := adapter.GoodsReceipt(context.Background(), InventoryReceipt{
		GRNNumber:      "GRN-1",
		Date:           time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		Amount:         amount("10.00"),
		IdempotencyKey: "grn-1",
		ActorID:        7,
	})
	require.ErrorIs(t, err, shared.ErrMappingNotFound)
	require.Empty(t, engine.inputs)
}
