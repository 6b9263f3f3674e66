package processor

import (
	"time"

	"loan-engine/internal/domain"
)

// StandardStrategy is the default allocation policy: payments settle penalty,
// then fee, then interest, then principal, regardless of whether the payment
// is early, on time or late. A payment is in advance when it lands strictly
// before the installment's own due date.
type StandardStrategy struct{}

func NewStandardStrategy() StandardStrategy {
	return StandardStrategy{}
}

func (StandardStrategy) Code() string { return "mifos-standard" }

func (StandardStrategy) Name() string { return "Penalties, Fees, Interest, Principal order" }

func (StandardStrategy) Classify(transactionDate time.Time, installment *domain.Installment, _ time.Time) Classification {
	if transactionDate.Before(installment.DueDate) {
		return Advance
	}
	if transactionDate.After(installment.DueDate) {
		return Late
	}
	return OnTime
}

func (s StandardStrategy) HandleAdvance(tx *domain.Transaction, currency domain.Currency, installment *domain.Installment, remaining domain.Money) domain.Money {
	return s.HandleOnTime(tx, currency, installment, remaining)
}

func (s StandardStrategy) HandleLate(tx *domain.Transaction, currency domain.Currency, installment *domain.Installment, remaining domain.Money) domain.Money {
	return s.HandleOnTime(tx, currency, installment, remaining)
}

func (StandardStrategy) HandleOnTime(tx *domain.Transaction, currency domain.Currency, installment *domain.Installment, remaining domain.Money) domain.Money {
	if tx.Type == domain.TransactionTypeWaiveInterest {
		return waiveInterestComponent(tx, currency, installment, remaining)
	}
	return payComponents([]component{penalty, fee, interest, principal}, tx, currency, installment, remaining)
}

func (StandardStrategy) HandleOverpayment(*domain.Transaction, domain.Currency, domain.Money) {}
