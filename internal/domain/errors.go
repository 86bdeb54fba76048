package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by services and repositories. Controllers map them to HTTP status codes.
var (
	ErrNotFound              = errors.New("not found")
	ErrForbidden             = errors.New("forbidden")
	ErrInvalidInput          = errors.New("invalid input")
	ErrDuplicateSKU          = errors.New("sku already in use")
	ErrLocked                = errors.New("operation already in progress")
	ErrPartialTransaction    = errors.New("transaction recorded but stock update incomplete")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrInvalidRole           = errors.New("invalid role")
	ErrNotPending            = errors.New("user has no pending role request")
	ErrEmailDomainNotAllowed = errors.New("email domain not allowed")
)

// PartialTransactionError reports a sale whose record was written but whose stock
// updates stopped at item Index. It matches ErrPartialTransaction and the cause.
type PartialTransactionError struct {
	TransactionID string
	Index         int
	Err           error
}

func (e *PartialTransactionError) Error() string {
	return fmt.Sprintf("%s: transaction %s, item %d: %v", ErrPartialTransaction, e.TransactionID, e.Index, e.Err)
}

func (e *PartialTransactionError) Unwrap() []error {
	return []error{ErrPartialTransaction, e.Err}
}
