package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger transaction against a loan.
type TransactionType string

const (
	TransactionTypeDisbursement            TransactionType = "disbursement"
	TransactionTypeRepayment               TransactionType = "repayment"
	TransactionTypeRepaymentAtDisbursement TransactionType = "repayment_at_disbursement"
	TransactionTypeWaiveInterest           TransactionType = "waive_interest"
	TransactionTypeWaiveCharges            TransactionType = "waive_charges"
	TransactionTypeWriteOff                TransactionType = "write_off"
	TransactionTypeRecoveryRepayment       TransactionType = "recovery_repayment"
	TransactionTypeRefund                  TransactionType = "refund"
	TransactionTypeRefundForActiveLoan     TransactionType = "refund_for_active_loan"
	TransactionTypeContra                  TransactionType = "contra"
)

// ChargePayment links a transaction to a charge it settled, recording how
// much of the transaction went to that charge.
type ChargePayment struct {
	ChargeID string          `json:"charge_id"`
	Amount   decimal.Decimal `json:"amount"`
}

// Transaction is a monetary event against a loan. The allocation driver
// derives the principal/interest/fee/penalty portions; they always sum to at
// most Amount, with any excess recorded as the overpayment portion.
type Transaction struct {
	ID     string          `json:"id"`
	Type   TransactionType `json:"type"`
	Date   time.Time       `json:"date"`
	Amount decimal.Decimal `json:"amount"`

	PrincipalPortion   decimal.Decimal `json:"principal_portion"`
	InterestPortion    decimal.Decimal `json:"interest_portion"`
	FeePortion         decimal.Decimal `json:"fee_portion"`
	PenaltyPortion     decimal.Decimal `json:"penalty_portion"`
	OverpaymentPortion decimal.Decimal `json:"overpayment_portion"`

	ChargePayments []ChargePayment `json:"charge_payments,omitempty"`

	Reversed bool `json:"reversed"`
	// ContraID links a reversing contra entry back to the transaction it
	// negates, and vice versa.
	ContraID string `json:"contra_id,omitempty"`

	// Modified marks transactions whose derived portions changed during the
	// latest processing run, for downstream accounting consumers.
	Modified bool `json:"-"`
}

func NewTransaction(id string, txType TransactionType, date time.Time, amount decimal.Decimal) *Transaction {
	return &Transaction{
		ID:                 id,
		Type:               txType,
		Date:               ToDate(date),
		Amount:             amount,
		PrincipalPortion:   decimal.Zero,
		InterestPortion:    decimal.Zero,
		FeePortion:         decimal.Zero,
		PenaltyPortion:     decimal.Zero,
		OverpaymentPortion: decimal.Zero,
	}
}

func (t *Transaction) AmountOf(currency Currency) Money {
	return NewMoney(currency, t.Amount)
}

func (t *Transaction) IsRepaymentLike() bool {
	switch t.Type {
	case TransactionTypeRepayment, TransactionTypeRepaymentAtDisbursement, TransactionTypeRecoveryRepayment:
		return true
	}
	return false
}

func (t *Transaction) IsWaiver() bool {
	return t.Type == TransactionTypeWaiveInterest || t.Type == TransactionTypeWaiveCharges
}

func (t *Transaction) IsRepaymentOrWaiver() bool {
	return t.IsRepaymentLike() || t.IsWaiver()
}

func (t *Transaction) IsNotReversed() bool {
	return !t.Reversed
}

func (t *Transaction) OccurredOn(date time.Time) bool {
	return dateEqual(t.Date, date)
}

// ResetDerivedComponents clears every driver-derived field ahead of a replay.
func (t *Transaction) ResetDerivedComponents() {
	t.PrincipalPortion = decimal.Zero
	t.InterestPortion = decimal.Zero
	t.FeePortion = decimal.Zero
	t.PenaltyPortion = decimal.Zero
	t.OverpaymentPortion = decimal.Zero
	t.ChargePayments = nil
}

// UpdateComponents accumulates driver-derived portions onto the transaction.
func (t *Transaction) UpdateComponents(principal, interest, fee, penalty Money) {
	t.PrincipalPortion = t.PrincipalPortion.Add(principal.Amount())
	t.InterestPortion = t.InterestPortion.Add(interest.Amount())
	t.FeePortion = t.FeePortion.Add(fee.Amount())
	t.PenaltyPortion = t.PenaltyPortion.Add(penalty.Amount())
}

// UpdateComponentsAndTotal accumulates portions and grows the transaction
// amount by the same total, for transactions whose amount is derived rather
// than user-supplied.
func (t *Transaction) UpdateComponentsAndTotal(principal, interest, fee, penalty Money) {
	t.UpdateComponents(principal, interest, fee, penalty)
	t.Amount = t.Amount.
		Add(principal.Amount()).
		Add(interest.Amount()).
		Add(fee.Amount()).
		Add(penalty.Amount())
}

func (t *Transaction) UpdateOverpaymentPortion(overpayment Money) {
	t.OverpaymentPortion = overpayment.Amount()
}

func (t *Transaction) RecordChargePayment(chargeID string, amount Money) {
	t.ChargePayments = append(t.ChargePayments, ChargePayment{ChargeID: chargeID, Amount: amount.Amount()})
}

// AllocatedTotal is the sum of the four component portions, excluding any
// overpayment.
func (t *Transaction) AllocatedTotal(currency Currency) Money {
	return NewMoney(currency, t.PrincipalPortion.Add(t.InterestPortion).Add(t.FeePortion).Add(t.PenaltyPortion))
}

// Unallocated is what remains of the transaction amount after component
// allocation, the candidate overpayment.
func (t *Transaction) Unallocated(currency Currency) Money {
	return t.AmountOf(currency).Minus(t.AllocatedTotal(currency))
}

// Reverse marks the transaction reversed and returns the contra entry that
// negates it. The contra carries the same amount on the same date and links
// both ways through ContraID.
func (t *Transaction) Reverse(contraID string) *Transaction {
	t.Reversed = true
	t.ContraID = contraID
	contra := NewTransaction(contraID, TransactionTypeContra, t.Date, t.Amount)
	contra.Reversed = true
	contra.ContraID = t.ID
	return contra
}
