package processor

import (
	"time"

	"loan-engine/internal/domain"
)

// HeavensFamilyStrategy puts principal ahead of everything else and rewards
// full principal settlement of a period by forgiving that period's remaining
// interest. A payment counts as in advance only when made on or before the
// previous installment's due date (the period's opening date for the first
// installment); in-advance payments go to principal alone.
type HeavensFamilyStrategy struct{}

func NewHeavensFamilyStrategy() HeavensFamilyStrategy {
	return HeavensFamilyStrategy{}
}

func (HeavensFamilyStrategy) Code() string { return "heavensfamily" }

func (HeavensFamilyStrategy) Name() string { return "HeavensFamily Unique" }

func (HeavensFamilyStrategy) Classify(transactionDate time.Time, installment *domain.Installment, previousDueDate time.Time) Classification {
	if !transactionDate.After(previousDueDate) {
		return Advance
	}
	if transactionDate.After(installment.DueDate) {
		return Late
	}
	return OnTime
}

func (s HeavensFamilyStrategy) HandleAdvance(tx *domain.Transaction, currency domain.Currency, installment *domain.Installment, remaining domain.Money) domain.Money {
	if tx.Type == domain.TransactionTypeWaiveInterest {
		return waiveInterestComponent(tx, currency, installment, remaining)
	}
	remaining = payComponents([]component{principal}, tx, currency, installment, remaining)
	s.waiveInterestIfPrincipalSettled(currency, installment)
	return remaining
}

func (s HeavensFamilyStrategy) HandleLate(tx *domain.Transaction, currency domain.Currency, installment *domain.Installment, remaining domain.Money) domain.Money {
	return s.HandleOnTime(tx, currency, installment, remaining)
}

func (s HeavensFamilyStrategy) HandleOnTime(tx *domain.Transaction, currency domain.Currency, installment *domain.Installment, remaining domain.Money) domain.Money {
	if tx.Type == domain.TransactionTypeWaiveInterest {
		return waiveInterestComponent(tx, currency, installment, remaining)
	}
	remaining = payComponents([]component{principal}, tx, currency, installment, remaining)
	s.waiveInterestIfPrincipalSettled(currency, installment)
	return payComponents([]component{interest, fee, penalty}, tx, currency, installment, remaining)
}

func (HeavensFamilyStrategy) HandleOverpayment(*domain.Transaction, domain.Currency, domain.Money) {}

// waiveInterestIfPrincipalSettled forgives whatever interest remains on a
// period once its principal is fully covered. The waiver lives on the
// installment ledger only; no money moved, so the transaction breakdown is
// untouched.
func (HeavensFamilyStrategy) waiveInterestIfPrincipalSettled(currency domain.Currency, installment *domain.Installment) {
	if installment.PrincipalOutstanding(currency).IsZero() {
		installment.WaiveInterest(currency, installment.InterestOutstanding(currency))
	}
}
