package processor

import (
	"sort"
	"time"

	"loan-engine/internal/domain"
)

// AttributeCharges recomputes each installment's fee and penalty due amounts
// from the loan-level charge set. A charge due in the half-open span
// (previous due date, this due date] belongs to that period; the first period
// opens at the disbursement date and charges falling beyond the final due
// date land on the last period. Due-at-disbursement charges are settled
// outside the schedule and are never attributed.
func (p *Processor) AttributeCharges(disbursementDate time.Time, currency domain.Currency, installments []*domain.Installment, charges []*domain.Charge) {
	if len(installments) == 0 {
		return
	}
	type portions struct {
		feeDue, feeWaived, feeWrittenOff             domain.Money
		penaltyDue, penaltyWaived, penaltyWrittenOff domain.Money
	}
	zero := domain.MoneyZero(currency)
	perPeriod := make([]portions, len(installments))
	for i := range perPeriod {
		perPeriod[i] = portions{zero, zero, zero, zero, zero, zero}
	}

	for _, charge := range charges {
		if charge.IsDueAtDisbursement() {
			continue
		}
		idx := len(installments) - 1
		from := disbursementDate
		for i, installment := range installments {
			if charge.IsDueForCollectionBetween(from, installment.DueDate) {
				idx = i
				break
			}
			from = installment.DueDate
		}
		pp := &perPeriod[idx]
		amount := domain.NewMoney(currency, charge.Amount)
		waived := domain.NewMoney(currency, charge.Waived)
		writtenOff := domain.NewMoney(currency, charge.WrittenOff)
		if charge.IsPenalty {
			pp.penaltyDue = pp.penaltyDue.Plus(amount)
			pp.penaltyWaived = pp.penaltyWaived.Plus(waived)
			pp.penaltyWrittenOff = pp.penaltyWrittenOff.Plus(writtenOff)
		} else {
			pp.feeDue = pp.feeDue.Plus(amount)
			pp.feeWaived = pp.feeWaived.Plus(waived)
			pp.feeWrittenOff = pp.feeWrittenOff.Plus(writtenOff)
		}
	}

	for i, installment := range installments {
		pp := perPeriod[i]
		installment.UpdateChargePortion(currency, pp.feeDue, pp.feeWaived, pp.feeWrittenOff, pp.penaltyDue, pp.penaltyWaived, pp.penaltyWrittenOff)
	}
}

// mirrorPortionsToCharges pushes the fee and penalty portions a repayment
// consumed during the installment sweep down onto the charge ledgers,
// settling the earliest-due unpaid charge first.
func mirrorPortionsToCharges(tx *domain.Transaction, currency domain.Currency, charges []*domain.Charge) {
	feePaid := domain.NewMoney(currency, tx.FeePortion)
	penaltyPaid := domain.NewMoney(currency, tx.PenaltyPortion)
	for _, charge := range sortedByDueDate(charges) {
		if charge.IsDueAtDisbursement() || charge.IsPaidOrWaived(currency) {
			continue
		}
		if charge.IsPenalty {
			if penaltyPaid.IsGreaterThanZero() {
				consumed := charge.UpdatePaidAmountBy(currency, penaltyPaid)
				tx.RecordChargePayment(charge.ID, consumed)
				penaltyPaid = penaltyPaid.Minus(consumed)
			}
			continue
		}
		if feePaid.IsGreaterThanZero() {
			consumed := charge.UpdatePaidAmountBy(currency, feePaid)
			tx.RecordChargePayment(charge.ID, consumed)
			feePaid = feePaid.Minus(consumed)
		}
	}
}

// payOutstandingCharges applies leftover repayment money directly to charges
// the installment sweep could not reach, fees before penalties, earliest due
// date first. Returns what remains after all charges are satisfied.
func payOutstandingCharges(tx *domain.Transaction, currency domain.Currency, charges []*domain.Charge, remaining domain.Money) domain.Money {
	zero := domain.MoneyZero(currency)
	for _, penaltyPass := range []bool{false, true} {
		for _, charge := range sortedByDueDate(charges) {
			if !remaining.IsGreaterThanZero() {
				return remaining
			}
			if charge.IsDueAtDisbursement() || charge.IsPenalty != penaltyPass || charge.IsPaidOrWaived(currency) {
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
	return remaining
}

// undoChargePayments takes refunded fee and penalty money back off the
// charge ledgers, latest due date first, mirroring a refund's installment
// sweep.
func undoChargePayments(currency domain.Currency, charges []*domain.Charge, fee, penalty domain.Money) {
	sorted := sortedByDueDate(charges)
	for i := len(sorted) - 1; i >= 0; i-- {
		charge := sorted[i]
		if charge.IsDueAtDisbursement() {
			continue
		}
		if charge.IsPenalty {
			if penalty.IsGreaterThanZero() {
				penalty = penalty.Minus(charge.UndoPaidAmountBy(currency, penalty))
			}
			continue
		}
		if fee.IsGreaterThanZero() {
			fee = fee.Minus(charge.UndoPaidAmountBy(currency, fee))
		}
	}
}

func sortedByDueDate(charges []*domain.Charge) []*domain.Charge {
	out := make([]*domain.Charge, len(charges))
	copy(out, charges)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DueDate.Before(out[j].DueDate)
	})
	return out
}
