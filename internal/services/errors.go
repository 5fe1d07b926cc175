// Package services defines the business logic for recipients, schedules,
// transactions, wallet auth, and intent resolution. This file centralizes
// common service-level error values so that they can be consistently
// returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

// Recipient-related errors.
var (
	// ErrRecipientNotFound indicates the requested recipient does not exist
	// in the user's shard.
	ErrRecipientNotFound = errors.New("recipient not found")

	// ErrDuplicateWallet is returned when adding or updating a recipient to
	// a wallet the user already has.
	ErrDuplicateWallet = errors.New("recipient wallet already exists")

	// ErrRecipientMissing is returned when an intent names a payee that
	// matches nothing in the user's address book.
	ErrRecipientMissing = errors.New("recipient not in address book")

	// ErrInvalidWallet is returned for payloads carrying a malformed
	// wallet address.
	ErrInvalidWallet = errors.New("invalid wallet address")

	// ErrEmptyName is returned when a recipient name is blank.
	ErrEmptyName = errors.New("recipient name is empty")
)

// Auth-related errors.
var (
	// ErrNoNonce indicates a signature verify with no outstanding nonce
	// (never issued, expired by overwrite, or already consumed).
	ErrNoNonce = errors.New("no login nonce outstanding")

	// ErrInvalidSignature indicates the signature does not recover to the
	// claimed wallet address.
	ErrInvalidSignature = errors.New("invalid signature")
)

// Schedule-related errors.
var (
	// ErrScheduleNotFound indicates the schedule does not exist in the
	// user's shard.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrInvalidSchedule is returned when a recurring intent fails
	// validation (missing recipient, non-positive amount, bad interval or
	// start date).
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrIndexWrite is returned when the shard accepted the schedule but
	// the index entry could not be written. The shard record remains in
	// place; the reconcile pass repairs the index.
	ErrIndexWrite = errors.New("schedule index write failed")
)

// Transaction and intent errors.
var (
	// ErrInvalidTransaction is returned when a stored transaction record
	// fails validation.
	ErrInvalidTransaction = errors.New("invalid transaction")

	// ErrInvalidIntent is returned when the parsed intent is unusable
	// (no amount, no intent kind, or no payee).
	ErrInvalidIntent = errors.New("invalid intent")
)
