package ledger

import "errors"

var (
	// ErrUserNotFound indicates a referenced user does not exist.
	ErrUserNotFound = errors.New("ledger: user not found")
	// ErrPayerNotParticipant indicates the payer is not among the bill participants.
	ErrPayerNotParticipant = errors.New("ledger: payer is not a participant")
	// ErrNoOutstandingDebt indicates the pair has no positive balance to settle.
	ErrNoOutstandingDebt = errors.New("ledger: no outstanding debt")
	// ErrInvalidAmount indicates a zero or negative settlement amount.
	ErrInvalidAmount = errors.New("ledger: amount must be positive")
)
