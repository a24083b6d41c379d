package journals

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/periods"
	accshared "github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/events"
	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// AuditPort records journal actions for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts posting activity.
type MetricsPort interface {
	EntryPosted(source string, elapsed time.Duration)
	EntryVoided()
	EntryReversed()
}

// Service is the journal engine: draft lifecycle, atomic posting with
// balance projection, voiding, and reversal.
type Service struct {
	repo    Repository
	audit   AuditPort
	emitter events.Publisher
	metrics MetricsPort
	now     func() time.Time
}

// NewService constructs the journal engine.
func NewService(repo Repository, audit AuditPort, emitter events.Publisher) *Service {
	if emitter == nil {
		emitter = events.NopPublisher{}
	}
	return &Service{repo: repo, audit: audit, emitter: emitter, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithMetrics attaches posting metrics.
func (s *Service) WithMetrics(m MetricsPort) {
	s.metrics = m
}

// Get fetches an entry with its lines.
func (s *Service) Get(ctx context.Context, id int64) (JournalEntry, error) {
	return s.repo.Get(ctx, id)
}

// List returns entries matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]JournalEntry, error) {
	return s.repo.List(ctx, filter)
}

// Validate runs the full validation set against the store without
// writing anything.
func (s *Service) Validate(ctx context.Context, in DraftInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, err := s.checkReferences(ctx, tx, in)
		return err
	})
}

// CreateDraft validates and persists a new draft entry. When the caller
// omits the number the engine assigns the next sequence for the source
// prefix and entry year.
func (s *Service) CreateDraft(ctx context.Context, in DraftInput) (JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = s.insertDraft(ctx, tx, in)
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, in.CreatedBy, "journal.create_draft", entry.ID, map[string]any{"number": entry.Number})
	return entry, nil
}

// UpdateDraft replaces the header fields and lines of a draft entry.
func (s *Service) UpdateDraft(ctx context.Context, entryID int64, in DraftInput) (JournalEntry, error) {
	if entryID == 0 {
		return JournalEntry{}, errors.New("journals: entry id required")
	}
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if current.Status != JournalStatusDraft {
			return accshared.ErrInvalidStatus
		}
		if _, err := s.checkReferences(ctx, tx, in); err != nil {
			return err
		}
		if in.Number != "" && in.Number != current.Number {
			exists, err := tx.NumberExists(ctx, in.Number)
			if err != nil {
				return err
			}
			if exists {
				return accshared.ErrDuplicateEntryNumber
			}
			current.Number = in.Number
		}
		current.Date = in.Date
		current.Description = in.Description
		current.Reference = in.Reference
		current.TotalDebit, current.TotalCredit = in.Totals()
		if err := tx.UpdateEntryHeader(ctx, current); err != nil {
			return err
		}
		if err := tx.DeleteLines(ctx, current.ID); err != nil {
			return err
		}
		lines := in.toLines()
		if err := tx.InsertLines(ctx, current.ID, lines); err != nil {
			return err
		}
		current.Lines = lines
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, in.CreatedBy, "journal.update_draft", entry.ID, nil)
	return entry, nil
}

// Post atomically commits a draft: validation re-runs under row locks,
// account projections are updated, and the entry becomes immutable.
func (s *Service) Post(ctx context.Context, in PostInput) (JournalEntry, error) {
	if in.EntryID == 0 {
		return JournalEntry{}, errors.New("journals: entry id required")
	}
	started := s.now()
	var entry JournalEntry
	var ev events.Event
	var replayed bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		replayed = false
		if in.IdempotencyKey != "" {
			hash, err := shared.PayloadHash(in.EntryID)
			if err != nil {
				return err
			}
			if done, rec, err := s.replay(ctx, tx, in.IdempotencyKey, hash); err != nil {
				return err
			} else if done {
				replayed = true
				entry, err = s.loadEntry(ctx, tx, rec.EntryID)
				return err
			}
		}
		current, err := tx.GetEntryForUpdate(ctx, in.EntryID)
		if err != nil {
			return err
		}
		current.Lines, err = tx.GetLines(ctx, current.ID)
		if err != nil {
			return err
		}
		ev, err = s.postLocked(ctx, tx, &current, in.ActorID)
		if err != nil {
			return err
		}
		if in.IdempotencyKey != "" {
			if err := s.saveKey(ctx, tx, in.IdempotencyKey, in.EntryID, current.ID); err != nil {
				return err
			}
		}
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	if replayed {
		return entry, nil
	}
	s.emitter.Publish(ctx, ev)
	if s.metrics != nil {
		s.metrics.EntryPosted(string(entry.Source), s.now().Sub(started))
	}
	s.record(ctx, in.ActorID, "journal.post", entry.ID, map[string]any{"number": entry.Number})
	return entry, nil
}

// CreateAndPost creates a draft and posts it inside a single transaction.
// Sub-ledger adapters and the recurring scheduler feed this path; the
// idempotency key on the input guards against replays.
func (s *Service) CreateAndPost(ctx context.Context, in DraftInput, actorID int64) (JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}
	started := s.now()
	var entry JournalEntry
	var ev events.Event
	var replayed bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		replayed = false
		if in.IdempotencyKey != "" {
			hash, err := shared.PayloadHash(in)
			if err != nil {
				return err
			}
			if done, rec, err := s.replay(ctx, tx, in.IdempotencyKey, hash); err != nil {
				return err
			} else if done {
				replayed = true
				entry, err = s.loadEntry(ctx, tx, rec.EntryID)
				return err
			}
		}
		created, err := s.insertDraft(ctx, tx, in)
		if err != nil {
			return err
		}
		ev, err = s.postLocked(ctx, tx, &created, actorID)
		if err != nil {
			return err
		}
		if in.IdempotencyKey != "" {
			hash, err := shared.PayloadHash(in)
			if err != nil {
				return err
			}
			if err := tx.SaveIdempotency(ctx, shared.IdempotencyRecord{
				Key:         in.IdempotencyKey,
				Module:      "journals",
				PayloadHash: hash,
				EntryID:     created.ID,
				CreatedAt:   s.now(),
			}); err != nil {
				return err
			}
		}
		entry = created
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	if replayed {
		return entry, nil
	}
	s.emitter.Publish(ctx, ev)
	if s.metrics != nil {
		s.metrics.EntryPosted(string(entry.Source), s.now().Sub(started))
	}
	s.record(ctx, actorID, "journal.post", entry.ID, map[string]any{"number": entry.Number})
	return entry, nil
}

// Void discards a draft. Posted entries cannot be voided; they are undone
// with Reverse.
func (s *Service) Void(ctx context.Context, in VoidInput) (JournalEntry, error) {
	if in.EntryID == 0 {
		return JournalEntry{}, errors.New("journals: entry id required")
	}
	var entry JournalEntry
	var ev events.Event
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, in.EntryID)
		if err != nil {
			return err
		}
		if current.Status != JournalStatusDraft {
			return accshared.ErrInvalidStatus
		}
		current.Status = JournalStatusVoid
		if err := tx.UpdateEntryHeader(ctx, current); err != nil {
			return err
		}
		ev = events.JournalVoided(current.ID, s.now())
		if err := tx.AppendEvent(ctx, ev); err != nil {
			return err
		}
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.emitter.Publish(ctx, ev)
	if s.metrics != nil {
		s.metrics.EntryVoided()
	}
	s.record(ctx, in.ActorID, "journal.void", entry.ID, map[string]any{"reason": in.Reason})
	return entry, nil
}

// Reverse posts a fresh entry whose lines negate the original. The
// original stays posted; the reversal carries a back-reference and must
// be dated inside an open period.
func (s *Service) Reverse(ctx context.Context, in ReverseInput) (JournalEntry, error) {
	if in.EntryID == 0 {
		return JournalEntry{}, errors.New("journals: entry id required")
	}
	if in.ReversalDate.IsZero() {
		return JournalEntry{}, errors.New("journals: reversal date required")
	}
	started := s.now()
	var reversal JournalEntry
	var ev events.Event
	var replayed bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		replayed = false
		if in.IdempotencyKey != "" {
			hash, err := shared.PayloadHash(in)
			if err != nil {
				return err
			}
			if done, rec, err := s.replay(ctx, tx, in.IdempotencyKey, hash); err != nil {
				return err
			} else if done {
				replayed = true
				reversal, err = s.loadEntry(ctx, tx, rec.EntryID)
				return err
			}
		}
		original, err := tx.GetEntryForUpdate(ctx, in.EntryID)
		if err != nil {
			return err
		}
		if original.Status != JournalStatusPosted {
			return accshared.ErrInvalidStatus
		}
		originalLines, err := tx.GetLines(ctx, original.ID)
		if err != nil {
			return err
		}
		draft := DraftInput{
			Date:            in.ReversalDate,
			Source:          original.Source,
			Description:     reversalDescription(in.Description, original.Number),
			Reference:       original.Reference,
			ReversesEntryID: &original.ID,
			CreatedBy:       in.ActorID,
			Lines:           flipLines(originalLines),
		}
		created, err := s.insertDraft(ctx, tx, draft)
		if err != nil {
			return err
		}
		ev, err = s.postLocked(ctx, tx, &created, in.ActorID)
		if err != nil {
			return err
		}
		if in.IdempotencyKey != "" {
			if err := s.saveKey(ctx, tx, in.IdempotencyKey, in, created.ID); err != nil {
				return err
			}
		}
		reversal = created
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	if replayed {
		return reversal, nil
	}
	s.emitter.Publish(ctx, ev)
	if s.metrics != nil {
		s.metrics.EntryPosted(string(reversal.Source), s.now().Sub(started))
		s.metrics.EntryReversed()
	}
	s.record(ctx, in.ActorID, "journal.reverse", in.EntryID, map[string]any{
		"reversal_id":     reversal.ID,
		"reversal_number": reversal.Number,
	})
	return reversal, nil
}

// insertDraft checks references, assigns the entry number, and persists
// header plus lines in DRAFT status.
func (s *Service) insertDraft(ctx context.Context, tx TxRepository, in DraftInput) (JournalEntry, error) {
	if _, err := s.checkReferences(ctx, tx, in); err != nil {
		return JournalEntry{}, err
	}
	number, err := s.assignNumber(ctx, tx, in)
	if err != nil {
		return JournalEntry{}, err
	}
	debit, credit := in.Totals()
	entry := JournalEntry{
		Number:              number,
		Date:                in.Date,
		Description:         in.Description,
		Reference:           in.Reference,
		Status:              JournalStatusDraft,
		Source:              in.Source,
		RecurringTemplateID: in.RecurringTemplateID,
		OccurrenceDate:      in.OccurrenceDate,
		ReversesEntryID:     in.ReversesEntryID,
		CreatedBy:           in.CreatedBy,
		TotalDebit:          debit,
		TotalCredit:         credit,
	}
	inserted, err := tx.InsertEntry(ctx, entry)
	if err != nil {
		return JournalEntry{}, err
	}
	lines := in.toLines()
	if err := tx.InsertLines(ctx, inserted.ID, lines); err != nil {
		return JournalEntry{}, err
	}
	inserted.Lines = lines
	return inserted, nil
}

// checkReferences verifies the entry date falls in an open period and
// every line references an existing, active account.
func (s *Service) checkReferences(ctx context.Context, tx TxRepository, in DraftInput) (periods.Period, error) {
	period, err := tx.FindPeriodByDate(ctx, in.Date)
	if err != nil {
		return periods.Period{}, err
	}
	if period.Status != periods.PeriodStatusOpen {
		return periods.Period{}, accshared.ErrClosedPeriod
	}
	accts, err := tx.GetAccounts(ctx, accountIDs(linesOf(in)))
	if err != nil {
		return periods.Period{}, err
	}
	for _, line := range in.Lines {
		acc, ok := accts[line.AccountID]
		if !ok {
			return periods.Period{}, fmt.Errorf("%w: id %d", accshared.ErrAccountNotFound, line.AccountID)
		}
		if !acc.IsActive {
			return periods.Period{}, fmt.Errorf("%w: %s", accshared.ErrInactiveAccount, acc.Code)
		}
	}
	return period, nil
}

// postLocked runs the posting protocol under the transaction: status
// check, period re-check, balance re-check, account locks in ascending id
// order, projection updates, status flip, and event append.
func (s *Service) postLocked(ctx context.Context, tx TxRepository, entry *JournalEntry, actorID int64) (events.Event, error) {
	if entry.Status != JournalStatusDraft {
		return events.Event{}, accshared.ErrInvalidStatus
	}
	if len(entry.Lines) < 2 {
		return events.Event{}, accshared.ErrTooFewLines
	}
	period, err := tx.FindPeriodByDate(ctx, entry.Date)
	if err != nil {
		return events.Event{}, err
	}
	if period.Status != periods.PeriodStatusOpen {
		return events.Event{}, accshared.ErrClosedPeriod
	}
	var debit, credit decimal.Decimal
	for _, line := range entry.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !money.WithinEpsilon(debit, credit, money.BaseScale) {
		return events.Event{}, accshared.ErrUnbalanced
	}
	accts, err := tx.LockAccounts(ctx, accountIDs(entry.Lines))
	if err != nil {
		return events.Event{}, err
	}
	for _, line := range entry.Lines {
		acc, ok := accts[line.AccountID]
		if !ok {
			return events.Event{}, fmt.Errorf("%w: id %d", accshared.ErrAccountNotFound, line.AccountID)
		}
		if !acc.IsActive {
			return events.Event{}, fmt.Errorf("%w: %s", accshared.ErrInactiveAccount, acc.Code)
		}
	}
	postedLines := make([]events.PostedLine, 0, len(entry.Lines))
	for _, line := range entry.Lines {
		acc := accts[line.AccountID]
		delta := acc.Signed(line.Debit, line.Credit)
		if !delta.IsZero() {
			if err := tx.ApplyBalance(ctx, line.AccountID, delta); err != nil {
				return events.Event{}, err
			}
		}
		postedLines = append(postedLines, events.PostedLine{
			AccountID: line.AccountID,
			Debit:     line.Debit.StringFixed(money.BaseScale),
			Credit:    line.Credit.StringFixed(money.BaseScale),
		})
	}
	now := s.now()
	entry.Status = JournalStatusPosted
	entry.PostedBy = &actorID
	entry.PostedAt = &now
	if err := tx.UpdateEntryHeader(ctx, *entry); err != nil {
		return events.Event{}, err
	}
	ev := events.JournalPosted(entry.ID, entry.Number, entry.Date, postedLines, now)
	if err := tx.AppendEvent(ctx, ev); err != nil {
		return events.Event{}, err
	}
	return ev, nil
}

func (s *Service) assignNumber(ctx context.Context, tx TxRepository, in DraftInput) (string, error) {
	if in.Number != "" {
		exists, err := tx.NumberExists(ctx, in.Number)
		if err != nil {
			return "", err
		}
		if exists {
			return "", accshared.ErrDuplicateEntryNumber
		}
		return in.Number, nil
	}
	prefix := in.Source.Prefix()
	if in.ReversesEntryID != nil {
		prefix = ReversalPrefix(prefix)
	}
	year := in.Date.Year()
	seq, err := tx.NextSequence(ctx, prefix, year)
	if err != nil {
		return "", err
	}
	return FormatNumber(prefix, year, seq), nil
}

// replay checks the idempotency ledger. A hit with a matching hash means
// the original result should be returned; a differing hash is a caller
// error.
func (s *Service) replay(ctx context.Context, tx TxRepository, key, hash string) (bool, shared.IdempotencyRecord, error) {
	rec, found, err := tx.LookupIdempotency(ctx, key)
	if err != nil {
		return false, shared.IdempotencyRecord{}, err
	}
	if !found {
		return false, shared.IdempotencyRecord{}, nil
	}
	if rec.PayloadHash != hash {
		return false, shared.IdempotencyRecord{}, shared.ErrIdempotencyConflict
	}
	return true, rec, nil
}

func (s *Service) saveKey(ctx context.Context, tx TxRepository, key string, payload any, entryID int64) error {
	hash, err := shared.PayloadHash(payload)
	if err != nil {
		return err
	}
	return tx.SaveIdempotency(ctx, shared.IdempotencyRecord{
		Key:         key,
		Module:      "journals",
		PayloadHash: hash,
		EntryID:     entryID,
		CreatedAt:   s.now(),
	})
}

func (s *Service) loadEntry(ctx context.Context, tx TxRepository, id int64) (JournalEntry, error) {
	entry, err := tx.GetEntryForUpdate(ctx, id)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines, err = tx.GetLines(ctx, id)
	return entry, err
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entryID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entryID),
		Meta:     meta,
		At:       s.now(),
	})
}

func reversalDescription(desc, number string) string {
	if desc != "" {
		return desc
	}
	return fmt.Sprintf("Reversal of %s", number)
}

func flipLines(lines []JournalLine) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		flipped := LineInput{
			AccountID:   line.AccountID,
			Description: line.Description,
			Debit:       line.Credit,
			Credit:      line.Debit,
		}
		if line.Currency != nil {
			flipped.Currency = *line.Currency
			flipped.ForeignAmount = line.ForeignAmount
			flipped.ExchangeRate = line.ExchangeRate
		}
		out = append(out, flipped)
	}
	return out
}

func linesOf(in DraftInput) []JournalLine {
	return in.toLines()
}

// accountIDs returns the distinct account ids in ascending order, the
// lock acquisition order that avoids deadlocks between concurrent posts.
func accountIDs(lines []JournalLine) []int64 {
	seen := make(map[int64]bool, len(lines))
	var ids []int64
	for _, line := range lines {
		if !seen[line.AccountID] {
			seen[line.AccountID] = true
			ids = append(ids, line.AccountID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
