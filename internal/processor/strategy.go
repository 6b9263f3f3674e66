package processor

import (
	"time"

	"loan-engine/internal/domain"
)

// Classification is how a transaction date relates to an installment.
type Classification int

const (
	OnTime Classification = iota
	Advance
	Late
)

func (c Classification) String() string {
	switch c {
	case Advance:
		return "advance"
	case Late:
		return "late"
	}
	return "on-time"
}

// Strategy is one allocation policy. Strategies differ in how they classify
// a transaction date against an installment and in the component order each
// classification pays. The shared driver in this package walks the schedule
// and dispatches to these handlers; strategies hold no state of their own.
type Strategy interface {
	Code() string
	Name() string

	// Classify judges the transaction date against either this installment's
	// due date or the previous installment's, depending on the strategy.
	Classify(transactionDate time.Time, installment *domain.Installment, previousDueDate time.Time) Classification

	// HandleAdvance, HandleOnTime and HandleLate consume as much of remaining
	// as the installment needs for the components this strategy pays in this
	// classification, and return what is left.
	HandleAdvance(tx *domain.Transaction, currency domain.Currency, installment *domain.Installment, remaining domain.Money) domain.Money
	HandleOnTime(tx *domain.Transaction, currency domain.Currency, installment *domain.Installment, remaining domain.Money) domain.Money
	HandleLate(tx *domain.Transaction, currency domain.Currency, installment *domain.Installment, remaining domain.Money) domain.Money

	// HandleOverpayment is invoked with whatever remains once every
	// installment and charge is satisfied. The stock strategies take no
	// action; the driver has already recorded the overpayment portion.
	HandleOverpayment(tx *domain.Transaction, currency domain.Currency, overpayment domain.Money)
}

// component identifies one of the four monetary components of an installment.
type component int

const (
	principal component = iota
	interest
	fee
	penalty
)

// payComponents pays the installment's components in the given order out of
// remaining, accumulating the consumed amounts onto the transaction.
func payComponents(order []component, tx *domain.Transaction, currency domain.Currency, installment *domain.Installment, remaining domain.Money) domain.Money {
	zero := domain.MoneyZero(currency)
	for _, comp := range order {
		if !remaining.IsGreaterThanZero() {
			break
		}
		switch comp {
		case principal:
			consumed := installment.PayPrincipal(currency, remaining)
			tx.UpdateComponents(consumed, zero, zero, zero)
			remaining = remaining.Minus(consumed)
		case interest:
			consumed := installment.PayInterest(currency, remaining)
			tx.UpdateComponents(zero, consumed, zero, zero)
			remaining = remaining.Minus(consumed)
		case fee:
			consumed := installment.PayFee(currency, remaining)
			tx.UpdateComponents(zero, zero, consumed, zero)
			remaining = remaining.Minus(consumed)
		case penalty:
			consumed := installment.PayPenalty(currency, remaining)
			tx.UpdateComponents(zero, zero, zero, consumed)
			remaining = remaining.Minus(consumed)
		}
	}
	return remaining
}

// waiveInterestComponent applies an interest-waiver transaction to the
// installment, touching no other component.
func waiveInterestComponent(tx *domain.Transaction, currency domain.Currency, installment *domain.Installment, remaining domain.Money) domain.Money {
	zero := domain.MoneyZero(currency)
	waived := installment.WaiveInterest(currency, remaining)
	tx.UpdateComponents(zero, waived, zero, zero)
	return remaining.Minus(waived)
}
