package processor

import (
	"time"

	"loan-engine/internal/domain"
)

// CreocoreStrategy pays principal first, then interest, then penalty, then
// fee, in every classification. The advance test mirrors the standard
// strategy: strictly before the installment's own due date.
type CreocoreStrategy struct{}

func NewCreocoreStrategy() CreocoreStrategy {
	return CreocoreStrategy{}
}

func (CreocoreStrategy) Code() string { return "creocore" }

func (CreocoreStrategy) Name() string { return "Creocore Unique" }

func (CreocoreStrategy) Classify(transactionDate time.Time, installment *domain.Installment, _ time.Time) Classification {
	if transactionDate.Before(installment.DueDate) {
		return Advance
	}
	if transactionDate.After(installment.DueDate) {
		return Late
	}
	return OnTime
}

func (s CreocoreStrategy) HandleAdvance(tx *domain.Transaction, currency domain.Currency, installment *domain.Installment, remaining domain.Money) domain.Money {
	return s.HandleOnTime(tx, currency, installment, remaining)
}

func (s CreocoreStrategy) HandleLate(tx *domain.Transaction, currency domain.Currency, installment *domain.Installment, remaining domain.Money) domain.Money {
	return s.HandleOnTime(tx, currency, installment, remaining)
}

func (CreocoreStrategy) HandleOnTime(tx *domain.Transaction, currency domain.Currency, installment *domain.Installment, remaining domain.Money) domain.Money {
	if tx.Type == domain.TransactionTypeWaiveInterest {
		return waiveInterestComponent(tx, currency, installment, remaining)
	}
	return payComponents([]component{principal, interest, penalty, fee}, tx, currency, installment, remaining)
}

func (CreocoreStrategy) HandleOverpayment(*domain.Transaction, domain.Currency, domain.Money) {}
