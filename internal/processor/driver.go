package processor

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"loan-engine/internal/domain"
)

// Processor runs the shared allocation driver with one strategy plugged in.
// It implements domain.TransactionProcessor.
type Processor struct {
	strategy Strategy
}

func New(strategy Strategy) *Processor {
	return &Processor{strategy: strategy}
}

func (p *Processor) Strategy() Strategy {
	return p.strategy
}

// ProcessLatest allocates one transaction against the schedule. Installments
// are walked in order, completed ones skipped; the strategy classifies the
// transaction against each and its handler consumes what that installment
// needs. Leftover money settles outstanding charges, and anything beyond
// that is recorded as an overpayment.
func (p *Processor) ProcessLatest(tx *domain.Transaction, currency domain.Currency, installments []*domain.Installment, charges []*domain.Charge) {
	if tx.Type == domain.TransactionTypeRepaymentAtDisbursement {
		p.handleRepaymentAtDisbursement(tx, currency, charges)
		return
	}
	// Charge waivers are booked on the charge ledger and reach the schedule
	// through attribution; they take no part in the installment sweep.
	if tx.Type == domain.TransactionTypeWaiveCharges {
		return
	}

	remaining := tx.AmountOf(currency)
	for idx, installment := range installments {
		if !remaining.IsGreaterThanZero() {
			break
		}
		if installment.Completed {
			continue
		}
		previousDue := installment.FromDate
		if idx > 0 {
			previousDue = installments[idx-1].DueDate
		}
		switch p.strategy.Classify(tx.Date, installment, previousDue) {
		case Advance:
			remaining = p.strategy.HandleAdvance(tx, currency, installment, remaining)
		case Late:
			remaining = p.strategy.HandleLate(tx, currency, installment, remaining)
		default:
			remaining = p.strategy.HandleOnTime(tx, currency, installment, remaining)
		}
	}

	if tx.IsRepaymentLike() {
		mirrorPortionsToCharges(tx, currency, charges)
		remaining = payOutstandingCharges(tx, currency, charges, remaining)

		// only payments can overpay; a waiver's surplus is a validation
		// failure upstream, never client money
		if remaining.IsGreaterThanZero() {
			tx.UpdateOverpaymentPortion(remaining)
			p.strategy.HandleOverpayment(tx, currency, remaining)
		}
	}
}

// replayRank fixes the order of same-date transactions during a replay:
// waivers first, then repayments, then the transactions that can only undo
// or absorb what an earlier one produced.
func replayRank(tx *domain.Transaction) int {
	switch tx.Type {
	case domain.TransactionTypeRefundForActiveLoan:
		return 2
	case domain.TransactionTypeWriteOff:
		return 3
	case domain.TransactionTypeRecoveryRepayment:
		return 4
	}
	if tx.IsWaiver() {
		return 0
	}
	return 1
}

// Reprocess throws away all derived state and replays history in
// chronological order, so the final state is independent of storage order.
// Charge waivers are skipped: their effect lives on the charge ledger, which
// survives the replay, and their portions are primary data set at creation.
func (p *Processor) Reprocess(disbursementDate time.Time, transactions []*domain.Transaction, currency domain.Currency, installments []*domain.Installment, charges []*domain.Charge) {
	for _, installment := range installments {
		installment.ResetDerivedComponents()
	}
	for _, charge := range charges {
		if !charge.IsDueAtDisbursement() {
			charge.ResetPaidAmount()
		}
	}
	p.AttributeCharges(disbursementDate, currency, installments, charges)

	replay := make([]*domain.Transaction, len(transactions))
	copy(replay, transactions)
	sort.SliceStable(replay, func(i, j int) bool {
		a, b := replay[i], replay[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if replayRank(a) != replayRank(b) {
			return replayRank(a) < replayRank(b)
		}
		return a.ID < b.ID
	})

	for _, tx := range replay {
		if tx.Type == domain.TransactionTypeWaiveCharges {
			continue
		}
		tx.ResetDerivedComponents()
		tx.Modified = true
		switch tx.Type {
		case domain.TransactionTypeRefundForActiveLoan:
			p.ProcessRefund(tx, currency, installments, charges)
		case domain.TransactionTypeWriteOff:
			tx.Amount = decimal.Zero
			p.ProcessWriteOff(tx, currency, installments)
		case domain.TransactionTypeRecoveryRepayment:
			p.ProcessRecovery(tx, currency, installments)
		default:
			p.ProcessLatest(tx, currency, installments, charges)
		}
	}
}

// ProcessWriteOff moves every incomplete installment's outstanding principal
// and interest to written off. Fees and penalties stay collectible. The
// transaction's amount and breakdown are set to the totals moved.
func (p *Processor) ProcessWriteOff(tx *domain.Transaction, currency domain.Currency, installments []*domain.Installment) {
	zero := domain.MoneyZero(currency)
	for _, installment := range installments {
		if installment.Completed {
			continue
		}
		principalWrittenOff := installment.WriteOffOutstandingPrincipal(currency)
		interestWrittenOff := installment.WriteOffOutstandingInterest(currency)
		tx.UpdateComponentsAndTotal(principalWrittenOff, interestWrittenOff, zero, zero)
	}
}

// ProcessRecovery allocates money received after a write-off by moving
// written-off principal and interest back to paid, earliest period first.
// The written-off fees were never moved by the write-off, so only principal
// and interest are recoverable here.
func (p *Processor) ProcessRecovery(tx *domain.Transaction, currency domain.Currency, installments []*domain.Installment) {
	zero := domain.MoneyZero(currency)
	remaining := tx.AmountOf(currency)
	for _, installment := range installments {
		if !remaining.IsGreaterThanZero() {
			break
		}
		principal := installment.RecoverPrincipal(currency, remaining)
		remaining = remaining.Minus(principal)
		interest := installment.RecoverInterest(currency, remaining)
		remaining = remaining.Minus(interest)
		tx.UpdateComponents(principal, interest, zero, zero)
	}
}

// ProcessRefund hands received money back, undoing payments on the latest
// paid periods first. Within a period the undo order is the reverse of the
// standard allocation order. Refunded fee and penalty money is also handed
// back on the charge ledgers so the two views stay consistent.
func (p *Processor) ProcessRefund(tx *domain.Transaction, currency domain.Currency, installments []*domain.Installment, charges []*domain.Charge) {
	zero := domain.MoneyZero(currency)
	remaining := tx.AmountOf(currency)
	feeRefunded := zero
	penaltyRefunded := zero
	for idx := len(installments) - 1; idx >= 0; idx-- {
		if !remaining.IsGreaterThanZero() {
			break
		}
		installment := installments[idx]
		if installment.TotalPaid(currency).IsZero() {
			continue
		}
		principal := installment.RefundPrincipal(currency, remaining)
		remaining = remaining.Minus(principal)
		interest := installment.RefundInterest(currency, remaining)
		remaining = remaining.Minus(interest)
		fee := installment.RefundFee(currency, remaining)
		remaining = remaining.Minus(fee)
		penalty := installment.RefundPenalty(currency, remaining)
		remaining = remaining.Minus(penalty)
		feeRefunded = feeRefunded.Plus(fee)
		penaltyRefunded = penaltyRefunded.Plus(penalty)
		tx.UpdateComponents(principal, interest, fee, penalty)
	}
	undoChargePayments(currency, charges, feeRefunded, penaltyRefunded)
}

func (p *Processor) handleRepaymentAtDisbursement(tx *domain.Transaction, currency domain.Currency, charges []*domain.Charge) {
	zero := domain.MoneyZero(currency)
	remaining := tx.AmountOf(currency)
	for _, charge := range charges {
		if !remaining.IsGreaterThanZero() {
			break
		}
		if !charge.IsDueAtDisbursement() || charge.IsPaidOrWaived(currency) {
			continue
		}
		consumed := charge.UpdatePaidAmountBy(currency, remaining)
		tx.RecordChargePayment(charge.ID, consumed)
		if charge.IsPenalty {
			tx.UpdateComponents(zero, zero, zero, consumed)
		} else {
			tx.UpdateComponents(zero, zero, consumed, zero)
		}
		remaining = remaining.Minus(consumed)
	}
}
