package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Installment is one scheduled repayment period of a loan. Each of the four
// monetary components (principal, interest, fee, penalty) carries a due amount
// plus derived paid/waived/written-off sub-ledgers. The core invariant is
// due == paid + waived + writtenOff + outstanding for every component, and
// Completed is true exactly when the summed outstanding of all components is
// zero. Derived fields are always present and zero-valued, never absent.
type Installment struct {
	Number   int       `json:"number"`
	FromDate time.Time `json:"from_date"`
	DueDate  time.Time `json:"due_date"`

	PrincipalDue decimal.Decimal `json:"principal_due"`
	InterestDue  decimal.Decimal `json:"interest_due"`
	FeeDue       decimal.Decimal `json:"fee_due"`
	PenaltyDue   decimal.Decimal `json:"penalty_due"`

	PrincipalPaid decimal.Decimal `json:"principal_paid"`
	InterestPaid  decimal.Decimal `json:"interest_paid"`
	FeePaid       decimal.Decimal `json:"fee_paid"`
	PenaltyPaid   decimal.Decimal `json:"penalty_paid"`

	InterestWaived decimal.Decimal `json:"interest_waived"`
	FeeWaived      decimal.Decimal `json:"fee_waived"`
	PenaltyWaived  decimal.Decimal `json:"penalty_waived"`

	PrincipalWrittenOff decimal.Decimal `json:"principal_written_off"`
	InterestWrittenOff  decimal.Decimal `json:"interest_written_off"`
	FeeWrittenOff       decimal.Decimal `json:"fee_written_off"`
	PenaltyWrittenOff   decimal.Decimal `json:"penalty_written_off"`

	Completed bool `json:"completed"`
}

func NewInstallment(number int, fromDate, dueDate time.Time, principal, interest, fee, penalty decimal.Decimal) *Installment {
	return &Installment{
		Number:              number,
		FromDate:            ToDate(fromDate),
		DueDate:             ToDate(dueDate),
		PrincipalDue:        principal,
		InterestDue:         interest,
		FeeDue:              fee,
		PenaltyDue:          penalty,
		PrincipalPaid:       decimal.Zero,
		InterestPaid:        decimal.Zero,
		FeePaid:             decimal.Zero,
		PenaltyPaid:         decimal.Zero,
		InterestWaived:      decimal.Zero,
		FeeWaived:           decimal.Zero,
		PenaltyWaived:       decimal.Zero,
		PrincipalWrittenOff: decimal.Zero,
		InterestWrittenOff:  decimal.Zero,
		FeeWrittenOff:       decimal.Zero,
		PenaltyWrittenOff:   decimal.Zero,
	}
}

func (i *Installment) PrincipalOutstanding(currency Currency) Money {
	return NewMoney(currency, i.PrincipalDue.Sub(i.PrincipalPaid).Sub(i.PrincipalWrittenOff))
}

func (i *Installment) InterestOutstanding(currency Currency) Money {
	return NewMoney(currency, i.InterestDue.Sub(i.InterestPaid).Sub(i.InterestWaived).Sub(i.InterestWrittenOff))
}

func (i *Installment) FeeOutstanding(currency Currency) Money {
	return NewMoney(currency, i.FeeDue.Sub(i.FeePaid).Sub(i.FeeWaived).Sub(i.FeeWrittenOff))
}

func (i *Installment) PenaltyOutstanding(currency Currency) Money {
	return NewMoney(currency, i.PenaltyDue.Sub(i.PenaltyPaid).Sub(i.PenaltyWaived).Sub(i.PenaltyWrittenOff))
}

func (i *Installment) TotalOutstanding(currency Currency) Money {
	return i.PrincipalOutstanding(currency).
		Plus(i.InterestOutstanding(currency)).
		Plus(i.FeeOutstanding(currency)).
		Plus(i.PenaltyOutstanding(currency))
}

func (i *Installment) TotalDue(currency Currency) Money {
	return NewMoney(currency, i.PrincipalDue.Add(i.InterestDue).Add(i.FeeDue).Add(i.PenaltyDue))
}

func (i *Installment) TotalPaid(currency Currency) Money {
	return NewMoney(currency, i.PrincipalPaid.Add(i.InterestPaid).Add(i.FeePaid).Add(i.PenaltyPaid))
}

func (i *Installment) IsOverdueOn(date time.Time) bool {
	return dateAfter(date, i.DueDate)
}

// PayPrincipal consumes up to the principal outstanding from amount and
// returns the portion actually consumed.
func (i *Installment) PayPrincipal(currency Currency, amount Money) Money {
	consumed := amount.Min(i.PrincipalOutstanding(currency))
	i.PrincipalPaid = i.PrincipalPaid.Add(consumed.Amount())
	i.checkCompleted(currency)
	return consumed
}

func (i *Installment) PayInterest(currency Currency, amount Money) Money {
	consumed := amount.Min(i.InterestOutstanding(currency))
	i.InterestPaid = i.InterestPaid.Add(consumed.Amount())
	i.checkCompleted(currency)
	return consumed
}

func (i *Installment) PayFee(currency Currency, amount Money) Money {
	consumed := amount.Min(i.FeeOutstanding(currency))
	i.FeePaid = i.FeePaid.Add(consumed.Amount())
	i.checkCompleted(currency)
	return consumed
}

func (i *Installment) PayPenalty(currency Currency, amount Money) Money {
	consumed := amount.Min(i.PenaltyOutstanding(currency))
	i.PenaltyPaid = i.PenaltyPaid.Add(consumed.Amount())
	i.checkCompleted(currency)
	return consumed
}

func (i *Installment) WaiveInterest(currency Currency, amount Money) Money {
	waived := amount.Min(i.InterestOutstanding(currency))
	i.InterestWaived = i.InterestWaived.Add(waived.Amount())
	i.checkCompleted(currency)
	return waived
}


// RefundPrincipal takes back up to amount of already-paid principal and
// returns the portion actually refunded. The period reopens if it was
// completed.
func (i *Installment) RefundPrincipal(currency Currency, amount Money) Money {
	refunded := amount.Min(NewMoney(currency, i.PrincipalPaid))
	i.PrincipalPaid = i.PrincipalPaid.Sub(refunded.Amount())
	i.checkCompleted(currency)
	return refunded
}

func (i *Installment) RefundInterest(currency Currency, amount Money) Money {
	refunded := amount.Min(NewMoney(currency, i.InterestPaid))
	i.InterestPaid = i.InterestPaid.Sub(refunded.Amount())
	i.checkCompleted(currency)
	return refunded
}

func (i *Installment) RefundFee(currency Currency, amount Money) Money {
	refunded := amount.Min(NewMoney(currency, i.FeePaid))
	i.FeePaid = i.FeePaid.Sub(refunded.Amount())
	i.checkCompleted(currency)
	return refunded
}

func (i *Installment) RefundPenalty(currency Currency, amount Money) Money {
	refunded := amount.Min(NewMoney(currency, i.PenaltyPaid))
	i.PenaltyPaid = i.PenaltyPaid.Sub(refunded.Amount())
	i.checkCompleted(currency)
	return refunded
}

// RecoverPrincipal moves up to amount of written-off principal back to the
// paid ledger, recording money collected after a write-off. Returns the
// portion actually recovered.
func (i *Installment) RecoverPrincipal(currency Currency, amount Money) Money {
	recovered := amount.Min(NewMoney(currency, i.PrincipalWrittenOff))
	i.PrincipalWrittenOff = i.PrincipalWrittenOff.Sub(recovered.Amount())
	i.PrincipalPaid = i.PrincipalPaid.Add(recovered.Amount())
	i.checkCompleted(currency)
	return recovered
}

func (i *Installment) RecoverInterest(currency Currency, amount Money) Money {
	recovered := amount.Min(NewMoney(currency, i.InterestWrittenOff))
	i.InterestWrittenOff = i.InterestWrittenOff.Sub(recovered.Amount())
	i.InterestPaid = i.InterestPaid.Add(recovered.Amount())
	i.checkCompleted(currency)
	return recovered
}

// WriteOffOutstandingPrincipal moves the entire principal outstanding to the
// written-off ledger and returns the amount moved.
func (i *Installment) WriteOffOutstandingPrincipal(currency Currency) Money {
	writtenOff := i.PrincipalOutstanding(currency)
	i.PrincipalWrittenOff = i.PrincipalWrittenOff.Add(writtenOff.Amount())
	i.checkCompleted(currency)
	return writtenOff
}

func (i *Installment) WriteOffOutstandingInterest(currency Currency) Money {
	writtenOff := i.InterestOutstanding(currency)
	i.InterestWrittenOff = i.InterestWrittenOff.Add(writtenOff.Amount())
	i.checkCompleted(currency)
	return writtenOff
}

// ResetDerivedComponents clears every paid/waived/written-off ledger ahead of
// a full reprocessing replay. Due amounts are untouched.
func (i *Installment) ResetDerivedComponents() {
	i.PrincipalPaid = decimal.Zero
	i.InterestPaid = decimal.Zero
	i.FeePaid = decimal.Zero
	i.PenaltyPaid = decimal.Zero
	i.InterestWaived = decimal.Zero
	i.FeeWaived = decimal.Zero
	i.PenaltyWaived = decimal.Zero
	i.PrincipalWrittenOff = decimal.Zero
	i.InterestWrittenOff = decimal.Zero
	i.FeeWrittenOff = decimal.Zero
	i.PenaltyWrittenOff = decimal.Zero
	i.Completed = false
}

// UpdateChargePortion overwrites this period's view of charge-derived due
// amounts. Called by the charge-to-period attribution pass, never by the
// transaction driver.
func (i *Installment) UpdateChargePortion(currency Currency, feeDue, feeWaived, feeWrittenOff, penaltyDue, penaltyWaived, penaltyWrittenOff Money) {
	i.FeeDue = feeDue.Amount()
	i.FeeWaived = feeWaived.Amount()
	i.FeeWrittenOff = feeWrittenOff.Amount()
	i.PenaltyDue = penaltyDue.Amount()
	i.PenaltyWaived = penaltyWaived.Amount()
	i.PenaltyWrittenOff = penaltyWrittenOff.Amount()
	i.checkCompleted(currency)
}

func (i *Installment) checkCompleted(currency Currency) {
	i.Completed = i.TotalOutstanding(currency).IsZero()
}
