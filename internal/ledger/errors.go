package ledger

import (
	"errors"
	"fmt"
	"time"
)

// Code categorizes ledger failures.
type Code string

const (
	// CodeInvalidAmount indicates a non-positive amount.
	CodeInvalidAmount Code = "INVALID_AMOUNT"

	// CodeInsufficientFunds indicates the balance cannot cover the amount.
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"

	// CodeSameAccount indicates both sides of a two-account operation are the same id.
	CodeSameAccount Code = "SAME_ACCOUNT"

	// CodeAlreadyPaired indicates one side already has a partner.
	CodeAlreadyPaired Code = "ALREADY_PAIRED"

	// CodeNotPaired indicates the account has no partner.
	CodeNotPaired Code = "NOT_PAIRED"

	// CodeCooldownActive indicates a rate-limited action was attempted too early.
	CodeCooldownActive Code = "COOLDOWN_ACTIVE"

	// CodeInvalidMedia indicates a paired media reference that is not an http(s) URL.
	CodeInvalidMedia Code = "INVALID_MEDIA"

	// CodeBalanceOverflow indicates a credit would push a balance past the int64 range.
	CodeBalanceOverflow Code = "BALANCE_OVERFLOW"

	// CodeLoadError indicates an account could not be read from the store.
	// Nothing was changed.
	CodeLoadError Code = "LOAD_ERROR"

	// CodeStoreError indicates the account store failed to save a change
	// that is already applied in memory.
	CodeStoreError Code = "STORE_ERROR"

	// CodePartialTransfer indicates the sender was debited and saved but the
	// receiver's credit could not be saved.
	CodePartialTransfer Code = "PARTIAL_TRANSFER_FAILURE"
)

// Error is a typed ledger failure.
//
// Compare with errors.Is against the exported sentinels (ErrInsufficientFunds,
// ...): two *Error values match when their codes are equal.
type Error struct {
	Code Code

	Message string

	// AccountID is the account the failure is attributed to, if any.
	AccountID string

	// RetryAfter is set for CodeCooldownActive.
	RetryAfter time.Duration

	// Err is the underlying cause (store errors).
	Err error
}

// Sentinels for errors.Is.
var (
	ErrInvalidAmount     = &Error{Code: CodeInvalidAmount, Message: "amount must be positive"}
	ErrInsufficientFunds = &Error{Code: CodeInsufficientFunds, Message: "insufficient funds"}
	ErrSameAccount       = &Error{Code: CodeSameAccount, Message: "accounts must differ"}
	ErrAlreadyPaired     = &Error{Code: CodeAlreadyPaired, Message: "account already paired"}
	ErrNotPaired         = &Error{Code: CodeNotPaired, Message: "account not paired"}
	ErrCooldownActive    = &Error{Code: CodeCooldownActive, Message: "cooldown active"}
	ErrInvalidMedia      = &Error{Code: CodeInvalidMedia, Message: "media reference must be an http(s) URL"}
	ErrBalanceOverflow   = &Error{Code: CodeBalanceOverflow, Message: "balance limit exceeded"}
	ErrLoad              = &Error{Code: CodeLoadError, Message: "load failure"}
	ErrStore             = &Error{Code: CodeStoreError, Message: "store failure"}
	ErrPartialTransfer   = &Error{Code: CodePartialTransfer, Message: "transfer partially persisted"}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.AccountID != "" {
		msg = fmt.Sprintf("%s: %s (account=%s)", e.Code, msg, e.AccountID)
	} else {
		msg = fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the ledger code carried by err, or "" if err is not a ledger error.
func CodeOf(err error) Code {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// IsStoreFailure reports whether err is a durability failure (StoreError or
// PartialTransferFailure): the change is applied in memory but not saved.
// Load failures are not store failures; they abort before any mutation.
func IsStoreFailure(err error) bool {
	switch CodeOf(err) {
	case CodeStoreError, CodePartialTransfer:
		return true
	}
	return false
}

func fail(code Code, accountID, message string) *Error {
	return &Error{Code: code, AccountID: accountID, Message: message}
}

func loadFailure(accountID string, err error) *Error {
	return &Error{Code: CodeLoadError, AccountID: accountID, Message: "load account", Err: err}
}

func storeFailure(accountID string, err error) *Error {
	return &Error{Code: CodeStoreError, AccountID: accountID, Message: "save account", Err: err}
}
