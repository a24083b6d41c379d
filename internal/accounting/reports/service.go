package reports

import (
	"context"
	"errors"
	"time"
)

// Service answers reporting queries from posted lines. The balance
// projection on accounts is deliberately not consulted here; the posted
// lines are authoritative for historical cuts.
type Service struct {
	repo Repository
}

// NewService constructs the reporting service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// TrialBalance snapshots every non-zero account at the cutoff.
func (s *Service) TrialBalance(ctx context.Context, asOf time.Time) (TrialBalance, error) {
	activity, err := s.repo.ActivityAsOf(ctx, asOf)
	if err != nil {
		return TrialBalance{}, err
	}
	return BuildTrialBalance(asOf, activity), nil
}

// ProfitAndLoss builds the income statement at the cutoff.
func (s *Service) ProfitAndLoss(ctx context.Context, asOf time.Time) (ProfitAndLoss, error) {
	activity, err := s.repo.ActivityAsOf(ctx, asOf)
	if err != nil {
		return ProfitAndLoss{}, err
	}
	return BuildProfitAndLoss(activity), nil
}

// BalanceSheet builds the statement of financial position at the cutoff.
func (s *Service) BalanceSheet(ctx context.Context, asOf time.Time) (BalanceSheet, error) {
	activity, err := s.repo.ActivityAsOf(ctx, asOf)
	if err != nil {
		return BalanceSheet{}, err
	}
	return BuildBalanceSheet(activity), nil
}

// AccountLedger lists an account's movements in a date range with the
// running balance carried forward from before the range.
func (s *Service) AccountLedger(ctx context.Context, accountID int64, from, to time.Time) (Ledger, error) {
	if from.After(to) {
		return Ledger{}, errors.New("reports: from must not be after to")
	}
	id, code, name, side, err := s.repo.AccountHeader(ctx, accountID)
	if err != nil {
		return Ledger{}, err
	}
	opening, err := s.repo.OpeningBalance(ctx, accountID, from)
	if err != nil {
		return Ledger{}, err
	}
	movements, err := s.repo.Movements(ctx, accountID, from, to)
	if err != nil {
		return Ledger{}, err
	}
	return BuildLedger(id, code, name, side, from, to, opening, movements), nil
}
