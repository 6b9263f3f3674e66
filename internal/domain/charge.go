package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChargeTiming says when a charge falls due relative to the loan lifecycle.
type ChargeTiming string

const (
	ChargeTimingDisbursement  ChargeTiming = "disbursement"
	ChargeTimingSpecifiedDate ChargeTiming = "specified_date"
)

// ChargeCalculation says how a charge amount is derived.
type ChargeCalculation string

const (
	ChargeCalculationFlat                          ChargeCalculation = "flat"
	ChargeCalculationPercentOfPrincipal            ChargeCalculation = "percent_of_principal"
	ChargeCalculationPercentOfInterest             ChargeCalculation = "percent_of_interest"
	ChargeCalculationPercentOfPrincipalAndInterest ChargeCalculation = "percent_of_principal_and_interest"
)

// Charge is a fee or penalty attached to a loan. Like installments it keeps
// an always-present derived ledger: amount == paid + waived + writtenOff +
// outstanding.
type Charge struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Timing      ChargeTiming      `json:"timing"`
	Calculation ChargeCalculation `json:"calculation"`
	IsPenalty   bool              `json:"is_penalty"`
	DueDate     time.Time         `json:"due_date"`

	// Percentage holds the rate for percentage calculations, e.g. 2.5 for
	// 2.5 percent. Unused for flat charges.
	Percentage decimal.Decimal `json:"percentage"`

	Amount     decimal.Decimal `json:"amount"`
	Paid       decimal.Decimal `json:"paid"`
	Waived     decimal.Decimal `json:"waived"`
	WrittenOff decimal.Decimal `json:"written_off"`

	FullyPaid bool `json:"fully_paid"`
	IsWaived  bool `json:"is_waived"`
}

func NewFlatCharge(id, name string, timing ChargeTiming, isPenalty bool, dueDate time.Time, amount decimal.Decimal) *Charge {
	return &Charge{
		ID:          id,
		Name:        name,
		Timing:      timing,
		Calculation: ChargeCalculationFlat,
		IsPenalty:   isPenalty,
		DueDate:     ToDate(dueDate),
		Amount:      amount,
		Paid:        decimal.Zero,
		Waived:      decimal.Zero,
		WrittenOff:  decimal.Zero,
	}
}

func NewPercentageCharge(id, name string, timing ChargeTiming, calculation ChargeCalculation, isPenalty bool, dueDate time.Time, percentage decimal.Decimal) *Charge {
	return &Charge{
		ID:          id,
		Name:        name,
		Timing:      timing,
		Calculation: calculation,
		IsPenalty:   isPenalty,
		DueDate:     ToDate(dueDate),
		Percentage:  percentage,
		Paid:        decimal.Zero,
		Waived:      decimal.Zero,
		WrittenOff:  decimal.Zero,
	}
}

// RecalculateAmount derives the charge amount from its percentage base. Flat
// charges are left as entered.
func (c *Charge) RecalculateAmount(principal, interest decimal.Decimal) {
	var base decimal.Decimal
	switch c.Calculation {
	case ChargeCalculationPercentOfPrincipal:
		base = principal
	case ChargeCalculationPercentOfInterest:
		base = interest
	case ChargeCalculationPercentOfPrincipalAndInterest:
		base = principal.Add(interest)
	default:
		return
	}
	c.Amount = base.Mul(c.Percentage).Div(decimal.NewFromInt(100))
}

func (c *Charge) AmountOutstanding(currency Currency) Money {
	return NewMoney(currency, c.Amount.Sub(c.Paid).Sub(c.Waived).Sub(c.WrittenOff))
}

func (c *Charge) IsPaidOrWaived(currency Currency) bool {
	return c.FullyPaid || c.IsWaived || c.AmountOutstanding(currency).IsZero()
}

func (c *Charge) IsDueAtDisbursement() bool {
	return c.Timing == ChargeTimingDisbursement
}

// IsDueForCollectionBetween reports whether the charge due date falls in the
// half-open period (from, to], which is how charges are attributed to
// installment periods.
func (c *Charge) IsDueForCollectionBetween(from, to time.Time) bool {
	return dateAfter(c.DueDate, from) && dateOnOrBefore(c.DueDate, to)
}

// UpdatePaidAmountBy consumes up to the charge outstanding from amount and
// returns the portion actually consumed.
func (c *Charge) UpdatePaidAmountBy(currency Currency, amount Money) Money {
	consumed := amount.Min(c.AmountOutstanding(currency))
	c.Paid = c.Paid.Add(consumed.Amount())
	if c.AmountOutstanding(currency).IsZero() {
		c.FullyPaid = true
	}
	return consumed
}

// UndoPaidAmountBy hands back up to the amount already paid and returns the
// portion actually undone.
func (c *Charge) UndoPaidAmountBy(currency Currency, amount Money) Money {
	undone := amount.Min(NewMoney(currency, c.Paid))
	c.Paid = c.Paid.Sub(undone.Amount())
	c.FullyPaid = c.AmountOutstanding(currency).IsZero()
	return undone
}

// Waive moves the full outstanding amount to the waived ledger and returns
// the amount waived.
func (c *Charge) Waive(currency Currency) Money {
	waived := c.AmountOutstanding(currency)
	c.Waived = c.Waived.Add(waived.Amount())
	c.IsWaived = true
	return waived
}

// WriteOff moves the full outstanding amount to the written-off ledger.
func (c *Charge) WriteOff(currency Currency) Money {
	writtenOff := c.AmountOutstanding(currency)
	c.WrittenOff = c.WrittenOff.Add(writtenOff.Amount())
	return writtenOff
}

// ResetPaidAmount clears the paid ledger ahead of a full reprocessing replay.
// Waived and written-off state survives a replay, it is not rebuilt from
// transactions.
func (c *Charge) ResetPaidAmount() {
	c.Paid = decimal.Zero
	c.FullyPaid = false
}

// ResetToOriginal clears the whole derived ledger, including waiver and
// write-off state, returning the charge to its as-created shape.
func (c *Charge) ResetToOriginal() {
	c.Paid = decimal.Zero
	c.Waived = decimal.Zero
	c.WrittenOff = decimal.Zero
	c.FullyPaid = false
	c.IsWaived = false
}

func (c *Charge) MarkAsFullyPaid(currency Currency) {
	c.Paid = c.Amount.Sub(c.Waived).Sub(c.WrittenOff)
	c.FullyPaid = true
}
