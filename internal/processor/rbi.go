package processor

import (
	"time"

	"loan-engine/internal/domain"
)

// RBIIndiaStrategy settles interest ahead of principal, then penalty, then
// fee. Like the HeavensFamily policy it judges advance payments against the
// previous installment's due date.
type RBIIndiaStrategy struct{}

func NewRBIIndiaStrategy() RBIIndiaStrategy {
	return RBIIndiaStrategy{}
}

func (RBIIndiaStrategy) Code() string { return "rbi-india" }

func (RBIIndiaStrategy) Name() string { return "Overdue/Due Fee/Int,Principal (RBI India)" }

func (RBIIndiaStrategy) Classify(transactionDate time.Time, installment *domain.Installment, previousDueDate time.Time) Classification {
	if !transactionDate.After(previousDueDate) {
		return Advance
	}
	if transactionDate.After(installment.DueDate) {
		return Late
	}
	return OnTime
}

func (s RBIIndiaStrategy) HandleAdvance(tx *domain.Transaction, currency domain.Currency, installment *domain.Installment, remaining domain.Money) domain.Money {
	return s.HandleOnTime(tx, currency, installment, remaining)
}

func (s RBIIndiaStrategy) HandleLate(tx *domain.Transaction, currency domain.Currency, installment *domain.Installment, remaining domain.Money) domain.Money {
	return s.HandleOnTime(tx, currency, installment, remaining)
}

func (RBIIndiaStrategy) HandleOnTime(tx *domain.Transaction, currency domain.Currency, installment *domain.Installment, remaining domain.Money) domain.Money {
	if tx.Type == domain.TransactionTypeWaiveInterest {
		return waiveInterestComponent(tx, currency, installment, remaining)
	}
	return payComponents([]component{interest, principal, penalty, fee}, tx, currency, installment, remaining)
}

func (RBIIndiaStrategy) HandleOverpayment(*domain.Transaction, domain.Currency, domain.Money) {}
