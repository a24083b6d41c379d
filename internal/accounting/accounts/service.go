package accounts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	accshared "github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// AuditPort records administrative account actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// maxCutoff stands in for "no cutoff" when aggregating posted lines.
var maxCutoff = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// Service manages the chart of accounts.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the CoA service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create inserts a new account after validating the parent link.
func (s *Service) Create(ctx context.Context, in CreateAccountInput) (Account, error) {
	if err := in.Validate(); err != nil {
		return Account{}, err
	}
	var created Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if in.ParentID != nil {
			parent, err := tx.Get(ctx, *in.ParentID)
			if err != nil {
				return err
			}
			if !parent.IsActive {
				return accshared.ErrInactiveAccount
			}
			if parent.Type != in.Type {
				return ErrParentClassification
			}
		}
		var err error
		created, err = tx.Insert(ctx, in)
		return err
	})
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, in.ActorID, "account.create", created.ID, map[string]any{"code": created.Code})
	return created, nil
}

// Update renames or reparents an account.
func (s *Service) Update(ctx context.Context, in UpdateAccountInput) (Account, error) {
	if in.ID == 0 {
		return Account{}, errors.New("accounts: id required")
	}
	var updated Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		acc, err := tx.Get(ctx, in.ID)
		if err != nil {
			return err
		}
		if in.Name != nil {
			acc.Name = *in.Name
		}
		if in.ParentID != nil {
			parent, err := tx.Get(ctx, *in.ParentID)
			if err != nil {
				return err
			}
			if !parent.IsActive {
				return accshared.ErrInactiveAccount
			}
			if parent.Type != acc.Type {
				return ErrParentClassification
			}
			if err := ensureNoCycle(ctx, tx, acc.ID, parent); err != nil {
				return err
			}
			acc.ParentID = in.ParentID
		}
		if err := tx.Update(ctx, acc); err != nil {
			return err
		}
		updated = acc
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, in.ActorID, "account.update", updated.ID, nil)
	return updated, nil
}

// ensureNoCycle walks the ancestor chain from the proposed parent and
// rejects any chain that revisits the account being linked.
func ensureNoCycle(ctx context.Context, tx TxRepository, accountID int64, parent Account) error {
	seen := map[int64]bool{accountID: true}
	current := parent
	for {
		if seen[current.ID] {
			return ErrParentCycle
		}
		seen[current.ID] = true
		if current.ParentID == nil {
			return nil
		}
		next, err := tx.Get(ctx, *current.ParentID)
		if err != nil {
			return err
		}
		current = next
	}
}

// Deactivate retires an account. It fails while the account or any
// descendant still carries balance or is referenced by a draft line.
func (s *Service) Deactivate(ctx context.Context, id, actorID int64) error {
	if id == 0 {
		return errors.New("accounts: id required")
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		subtree, err := tx.Descendants(ctx, id)
		if err != nil {
			return err
		}
		if len(subtree) == 0 {
			return accshared.ErrAccountNotFound
		}
		ids := make([]int64, 0, len(subtree))
		for _, node := range subtree {
			if !node.Balance.IsZero() {
				return fmt.Errorf("%w: account %s has non-zero balance", accshared.ErrAccountInUse, node.Code)
			}
			ids = append(ids, node.ID)
		}
		hasDrafts, err := tx.HasDraftLines(ctx, ids)
		if err != nil {
			return err
		}
		if hasDrafts {
			return fmt.Errorf("%w: draft journal lines reference subtree", accshared.ErrAccountInUse)
		}
		target := subtree[0]
		for _, node := range subtree {
			if node.ID == id {
				target = node
			}
		}
		target.IsActive = false
		return tx.Update(ctx, target)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "account.deactivate", id, nil)
	return nil
}

// Get fetches one account by id.
func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.Get(ctx, id)
}

// GetByCode fetches one account by its code.
func (s *Service) GetByCode(ctx context.Context, code string) (Account, error) {
	return s.repo.GetByCode(ctx, code)
}

// List returns all accounts ordered by code.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}

// Tree returns the account forest. Roots and sibling groups keep
// insertion order.
func (s *Service) Tree(ctx context.Context) ([]*TreeNode, error) {
	accounts, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return BuildTree(accounts), nil
}

// BuildTree assembles a forest from a flat account list.
func BuildTree(accounts []Account) []*TreeNode {
	nodes := make(map[int64]*TreeNode, len(accounts))
	for _, acc := range accounts {
		nodes[acc.ID] = &TreeNode{Account: acc}
	}
	var roots []*TreeNode
	ordered := append([]Account(nil), accounts...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	for _, acc := range ordered {
		node := nodes[acc.ID]
		if acc.ParentID != nil {
			if parent, ok := nodes[*acc.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}

// FlattenBFS walks the forest breadth-first.
func FlattenBFS(roots []*TreeNode) []Account {
	var out []Account
	queue := append([]*TreeNode(nil), roots...)
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		out = append(out, node.Account)
		queue = append(queue, node.Children...)
	}
	return out
}

// RunningBalance returns the maintained projection, or, when asOf is
// supplied, recomputes the signed balance from posted lines dated at or
// before the cutoff.
func (s *Service) RunningBalance(ctx context.Context, id int64, asOf *time.Time) (decimal.Decimal, error) {
	acc, err := s.repo.Get(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	if asOf == nil {
		return acc.Balance, nil
	}
	debit, credit, err := s.repo.SumPostedLines(ctx, id, *asOf)
	if err != nil {
		return decimal.Zero, err
	}
	return acc.Signed(debit, credit), nil
}

// Reconcile compares the projection with the authoritative line aggregate.
// Drift is zero on a correctly running system.
func (s *Service) Reconcile(ctx context.Context, id int64) (ReconcileReport, error) {
	acc, err := s.repo.Get(ctx, id)
	if err != nil {
		return ReconcileReport{}, err
	}
	debit, credit, err := s.repo.SumPostedLines(ctx, id, maxCutoff)
	if err != nil {
		return ReconcileReport{}, err
	}
	computed := acc.Signed(debit, credit)
	return ReconcileReport{
		AccountID: acc.ID,
		Code:      acc.Code,
		Stored:    acc.Balance,
		Computed:  computed,
		Drift:     acc.Balance.Sub(computed),
	}, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "account",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
		At:       s.now(),
	})
}
