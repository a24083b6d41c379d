package shared

import "errors"

var (
	// ErrUnbalanced indicates debit != credit beyond tolerance.
	ErrUnbalanced = errors.New("accounting: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: journal requires at least two lines")
	// ErrClosedPeriod indicates the entry date falls in a closing or closed period.
	ErrClosedPeriod = errors.New("accounting: period is not open for posting")
	// ErrPeriodNotFound indicates no period covers the requested date.
	ErrPeriodNotFound = errors.New("accounting: no period covers date")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = errors.New("accounting: journal entry not found")
	// ErrAccountNotFound indicates a referenced account does not exist.
	ErrAccountNotFound = errors.New("accounting: account not found")
	// ErrInactiveAccount indicates a line references a deactivated account.
	ErrInactiveAccount = errors.New("accounting: account is not active")
	// ErrAccountInUse indicates the account or a descendant still carries
	// balance or draft references.
	ErrAccountInUse = errors.New("accounting: account in use")
	// ErrDuplicateEntryNumber indicates the entry number is already taken.
	ErrDuplicateEntryNumber = errors.New("accounting: duplicate entry number")
	// ErrInvalidStatus indicates a forbidden status transition.
	ErrInvalidStatus = errors.New("accounting: invalid status transition")
	// ErrForeignCurrencyMismatch indicates an inconsistent currency triple.
	ErrForeignCurrencyMismatch = errors.New("accounting: foreign currency triple inconsistent")
	// ErrDraftsInPeriod indicates a close cannot finalize while drafts remain.
	ErrDraftsInPeriod = errors.New("accounting: draft entries remain in period")
	// ErrMappingNotFound indicates account mapping missing.
	ErrMappingNotFound = errors.New("accounting: account mapping not found")
)
