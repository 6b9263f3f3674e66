package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrLoanNotFound and ErrTransactionNotFound are returned by repositories at
// the persistence boundary; the in-memory core never produces them.
var (
	ErrLoanNotFound        = errors.New("loan not found")
	ErrTransactionNotFound = errors.New("loan transaction not found")
	ErrChargeNotFound      = errors.New("loan charge not found")
)

// StateTransitionError reports a violated lifecycle or date-ordering rule.
// The Action/Rule pair identifies which ordering constraint failed; Dates
// carries the offending values.
type StateTransitionError struct {
	Action string
	Rule   string
	Dates  []time.Time
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("loan %s: %s", e.Action, e.Rule)
}

func newStateTransitionError(action, rule string, dates ...time.Time) error {
	return &StateTransitionError{Action: action, Rule: rule, Dates: dates}
}

// TransactionTypeError reports an operation attempted with a transaction of
// the wrong type, or against a loan whose state disallows it.
type TransactionTypeError struct {
	Rule    string
	Message string
}

func (e *TransactionTypeError) Error() string {
	return e.Message
}

func newTransactionTypeError(rule, message string) error {
	return &TransactionTypeError{Rule: rule, Message: message}
}

// IsDomainError reports whether err is a loan-accounting rule violation, as
// opposed to a not-found or infrastructure failure.
func IsDomainError(err error) bool {
	var ste *StateTransitionError
	var tte *TransactionTypeError
	return errors.As(err, &ste) || errors.As(err, &tte)
}
