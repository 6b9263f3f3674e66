package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionProcessor allocates monetary transactions across a loan's
// repayment schedule. Implementations carry the allocation strategy; the
// Loan aggregate stays strategy-agnostic and hands over its collections by
// reference.
type TransactionProcessor interface {
	// ProcessLatest allocates a single transaction known to be the
	// chronologically latest repayment or waiver against the loan.
	ProcessLatest(tx *Transaction, currency Currency, installments []*Installment, charges []*Charge)

	// Reprocess resets all derived installment and charge state, reattributes
	// charge dues to periods, and replays the given transactions in
	// chronological order.
	Reprocess(disbursementDate time.Time, transactions []*Transaction, currency Currency, installments []*Installment, charges []*Charge)

	// ProcessWriteOff moves outstanding principal and interest of every
	// incomplete installment to written off and fills the transaction's
	// component breakdown.
	ProcessWriteOff(tx *Transaction, currency Currency, installments []*Installment)

	// ProcessRefund hands received money back by undoing payments, latest
	// period first, reopening the affected periods.
	ProcessRefund(tx *Transaction, currency Currency, installments []*Installment, charges []*Charge)

	// ProcessRecovery allocates money received after a write-off, moving
	// written-off amounts back to paid, earliest period first.
	ProcessRecovery(tx *Transaction, currency Currency, installments []*Installment)

	// AttributeCharges recomputes per-period fee and penalty due amounts from
	// the loan-level charge set.
	AttributeCharges(disbursementDate time.Time, currency Currency, installments []*Installment, charges []*Charge)
}

// Loan is the aggregate root. It is the sole owner of its installments,
// charges and transactions; nothing in those collections points back at the
// loan. Not safe for concurrent mutation, callers serialize per loan.
type Loan struct {
	ID               string          `json:"id"`
	ClientID         string          `json:"client_id"`
	ExternalID       string          `json:"external_id,omitempty"`
	Currency         Currency        `json:"currency"`
	Principal        decimal.Decimal `json:"principal"`
	ArrearsTolerance decimal.Decimal `json:"arrears_tolerance"`
	StrategyCode     string          `json:"strategy_code"`
	Status           LoanStatus      `json:"status"`

	SubmittedDate            time.Time `json:"submitted_date"`
	ApprovedDate             time.Time `json:"approved_date,omitempty"`
	ExpectedDisbursementDate time.Time `json:"expected_disbursement_date"`
	DisbursementDate         time.Time `json:"disbursement_date,omitempty"`
	RejectedDate             time.Time `json:"rejected_date,omitempty"`
	WithdrawnDate            time.Time `json:"withdrawn_date,omitempty"`
	ClosedDate               time.Time `json:"closed_date,omitempty"`
	WrittenOffDate           time.Time `json:"written_off_date,omitempty"`
	RescheduledDate          time.Time `json:"rescheduled_date,omitempty"`
	MaturityDate             time.Time `json:"maturity_date,omitempty"`

	Installments []*Installment `json:"installments"`
	Charges      []*Charge      `json:"charges"`
	Transactions []*Transaction `json:"transactions"`
}

// SubmitApplication creates a loan in its initial lifecycle state. The
// repayment schedule is attached separately via UpdateSchedule once the
// schedule generator has produced it.
func SubmitApplication(id, clientID string, currency Currency, principal, arrearsTolerance decimal.Decimal, strategyCode string, submittedDate, expectedDisbursementDate time.Time) (*Loan, error) {
	if dateAfter(submittedDate, expectedDisbursementDate) {
		return nil, newStateTransitionError("submit", "submittal.date.after.expected.disbursement.date", submittedDate, expectedDisbursementDate)
	}
	return &Loan{
		ID:                       id,
		ClientID:                 clientID,
		Currency:                 currency,
		Principal:                principal,
		ArrearsTolerance:         arrearsTolerance,
		StrategyCode:             strategyCode,
		Status:                   Transition(EventLoanCreated, ""),
		SubmittedDate:            ToDate(submittedDate),
		ExpectedDisbursementDate: ToDate(expectedDisbursementDate),
	}, nil
}

// UpdateSchedule replaces the installment list wholesale. Used at submission,
// on schedule regeneration at disbursement, and by batch reschedule jobs.
func (l *Loan) UpdateSchedule(installments []*Installment) error {
	if l.Status.IsClosed() {
		return newTransactionTypeError("loan.is.closed", "cannot modify the schedule of a closed loan")
	}
	l.Installments = installments
	if n := len(installments); n > 0 {
		l.MaturityDate = installments[n-1].DueDate
	}
	return nil
}

func (l *Loan) Approve(approvedDate time.Time) error {
	if !l.Status.IsSubmittedAndPendingApproval() {
		return newTransactionTypeError("loan.approval.invalid.state", fmt.Sprintf("cannot approve a loan in state %s", l.Status))
	}
	if dateBefore(approvedDate, l.SubmittedDate) {
		return newStateTransitionError("approve", "approval.date.before.submittal.date", approvedDate, l.SubmittedDate)
	}
	if err := l.validateNotInFuture("approve", approvedDate); err != nil {
		return err
	}
	l.Status = Transition(EventLoanApproved, l.Status)
	l.ApprovedDate = ToDate(approvedDate)
	return nil
}

func (l *Loan) UndoApproval() error {
	if !l.Status.IsApproved() {
		return newTransactionTypeError("loan.undo.approval.invalid.state", fmt.Sprintf("cannot undo approval of a loan in state %s", l.Status))
	}
	l.Status = Transition(EventLoanApprovalUndone, l.Status)
	l.ApprovedDate = time.Time{}
	return nil
}

func (l *Loan) Reject(rejectedDate time.Time) error {
	if !l.Status.IsSubmittedAndPendingApproval() {
		return newTransactionTypeError("loan.rejection.invalid.state", fmt.Sprintf("cannot reject a loan in state %s", l.Status))
	}
	if dateBefore(rejectedDate, l.SubmittedDate) {
		return newStateTransitionError("reject", "rejection.date.before.submittal.date", rejectedDate, l.SubmittedDate)
	}
	if err := l.validateNotInFuture("reject", rejectedDate); err != nil {
		return err
	}
	l.Status = Transition(EventLoanRejected, l.Status)
	l.RejectedDate = ToDate(rejectedDate)
	l.ClosedDate = ToDate(rejectedDate)
	return nil
}

func (l *Loan) Withdraw(withdrawnDate time.Time) error {
	if !l.Status.IsSubmittedAndPendingApproval() {
		return newTransactionTypeError("loan.withdrawal.invalid.state", fmt.Sprintf("cannot withdraw a loan in state %s", l.Status))
	}
	if dateBefore(withdrawnDate, l.SubmittedDate) {
		return newStateTransitionError("withdraw", "withdrawal.date.before.submittal.date", withdrawnDate, l.SubmittedDate)
	}
	if err := l.validateNotInFuture("withdraw", withdrawnDate); err != nil {
		return err
	}
	l.Status = Transition(EventLoanWithdrawn, l.Status)
	l.WithdrawnDate = ToDate(withdrawnDate)
	l.ClosedDate = ToDate(withdrawnDate)
	return nil
}

// RequiresScheduleRegenerationOn reports whether disbursing on the given date
// invalidates the schedule generated against the expected disbursement date.
func (l *Loan) RequiresScheduleRegenerationOn(disbursedOn time.Time) bool {
	return !dateEqual(disbursedOn, l.ExpectedDisbursementDate)
}

// Disburse activates the loan: records the disbursement transaction and
// auto-settles any due-at-disbursement charges through a synthetic repayment
// posted on the disbursement date.
func (l *Loan) Disburse(transactionID string, disbursedOn time.Time, processor TransactionProcessor) error {
	if !l.Status.IsApproved() {
		return newTransactionTypeError("loan.disbursal.invalid.state", fmt.Sprintf("cannot disburse a loan in state %s", l.Status))
	}
	if dateBefore(disbursedOn, l.ApprovedDate) {
		return newStateTransitionError("disburse", "disbursal.date.before.approval.date", disbursedOn, l.ApprovedDate)
	}
	if err := l.validateNotInFuture("disburse", disbursedOn); err != nil {
		return err
	}
	if len(l.Installments) > 0 && !dateBefore(disbursedOn, l.Installments[0].DueDate) {
		return newStateTransitionError("disburse", "disbursal.date.on.or.after.first.repayment.due.date", disbursedOn, l.Installments[0].DueDate)
	}

	l.Status = Transition(EventLoanDisbursed, l.Status)
	l.DisbursementDate = ToDate(disbursedOn)

	tx := NewTransaction(transactionID, TransactionTypeDisbursement, disbursedOn, l.Principal)
	tx.PrincipalPortion = l.Principal
	tx.Modified = true
	l.Transactions = append(l.Transactions, tx)

	processor.AttributeCharges(l.DisbursementDate, l.Currency, l.Installments, l.Charges)

	if due := l.totalChargesDueAtDisbursement(); due.IsGreaterThanZero() {
		settle := NewTransaction(uuid.New().String(), TransactionTypeRepaymentAtDisbursement, disbursedOn, due.Amount())
		settle.Modified = true
		l.Transactions = append(l.Transactions, settle)
		processor.ProcessLatest(settle, l.Currency, l.Installments, l.Charges)
	}
	return nil
}

// UndoDisbursal rolls an active loan back to approved. Only legal while the
// disbursement is the sole monetary event besides its charge settlement.
func (l *Loan) UndoDisbursal() error {
	if !l.Status.IsActive() {
		return newTransactionTypeError("loan.undo.disbursal.invalid.state", fmt.Sprintf("cannot undo disbursal of a loan in state %s", l.Status))
	}
	for _, tx := range l.Transactions {
		if tx.IsNotReversed() && tx.Type != TransactionTypeDisbursement && tx.Type != TransactionTypeRepaymentAtDisbursement {
			return newTransactionTypeError("loan.undo.disbursal.payments.exist", "cannot undo disbursal once repayments have been made")
		}
	}
	l.Status = Transition(EventLoanDisbursalUndone, l.Status)
	l.DisbursementDate = time.Time{}
	l.Transactions = nil
	for _, installment := range l.Installments {
		installment.ResetDerivedComponents()
	}
	for _, charge := range l.Charges {
		charge.ResetToOriginal()
	}
	return nil
}

// MakeRepayment posts a repayment and allocates it through the configured
// strategy, replaying history when the payment arrives out of order.
func (l *Loan) MakeRepayment(transactionID string, transactionDate time.Time, amount decimal.Decimal, processor TransactionProcessor) (*Transaction, error) {
	tx := NewTransaction(transactionID, TransactionTypeRepayment, transactionDate, amount)
	if err := l.handleRepaymentOrWaiver(tx, processor); err != nil {
		return nil, err
	}
	return tx, nil
}

// WaiveInterest forgives part of the outstanding interest. The amount must
// not exceed the total interest outstanding across the whole schedule.
func (l *Loan) WaiveInterest(transactionID string, transactionDate time.Time, amount decimal.Decimal, processor TransactionProcessor) (*Transaction, error) {
	outstanding := l.TotalInterestOutstanding()
	waive := NewMoney(l.Currency, amount)
	if waive.IsGreaterThan(outstanding) {
		return nil, newTransactionTypeError("loan.waive.interest.exceeds.outstanding",
			fmt.Sprintf("cannot waive %s interest, only %s is outstanding", waive, outstanding))
	}
	tx := NewTransaction(transactionID, TransactionTypeWaiveInterest, transactionDate, amount)
	if err := l.handleRepaymentOrWaiver(tx, processor); err != nil {
		return nil, err
	}
	return tx, nil
}

func (l *Loan) handleRepaymentOrWaiver(tx *Transaction, processor TransactionProcessor) error {
	if l.DisbursementDate.IsZero() {
		return newTransactionTypeError("loan.not.disbursed", "cannot post a repayment or waiver before disbursement")
	}
	if dateBefore(tx.Date, l.DisbursementDate) {
		return newStateTransitionError("repayment.or.waiver", "transaction.date.before.disbursement.date", tx.Date, l.DisbursementDate)
	}
	if err := l.validateNotInFuture("repayment.or.waiver", tx.Date); err != nil {
		return err
	}
	next := Transition(EventRepaymentOrWaiver, l.Status)
	if !next.IsActive() {
		return newTransactionTypeError("loan.repayment.invalid.state", fmt.Sprintf("cannot post a repayment or waiver against a loan in state %s", l.Status))
	}
	l.Status = next

	tx.Modified = true
	l.Transactions = append(l.Transactions, tx)

	if l.isChronologicallyLatestRepaymentOrWaiver(tx) {
		processor.ProcessLatest(tx, l.Currency, l.Installments, l.Charges)
	} else {
		l.reprocess(processor)
	}
	l.doPostTransactionChecks(tx.Date)
	return nil
}

// AdjustTransaction reverses an earlier repayment or waiver through a linked
// contra entry and, when a replacement amount is given, posts a fresh
// transaction of the same type in its place. History is always replayed.
func (l *Loan) AdjustTransaction(originalID, replacementID string, transactionDate time.Time, amount decimal.Decimal, processor TransactionProcessor) (*Transaction, error) {
	original := l.FindTransaction(originalID)
	if original == nil {
		return nil, ErrTransactionNotFound
	}
	if !original.IsRepaymentOrWaiver() || original.Reversed {
		return nil, newTransactionTypeError("loan.adjust.invalid.transaction", "only unreversed repayments and waivers can be adjusted")
	}
	if l.Status == StatusClosedWrittenOff {
		return nil, newTransactionTypeError("loan.adjust.invalid.state", "transactions on a written-off loan cannot be adjusted")
	}
	if err := l.validateNotInFuture("adjust", transactionDate); err != nil {
		return nil, err
	}

	contra := original.Reverse(uuid.New().String())
	contra.Modified = true
	original.Modified = true
	l.Transactions = append(l.Transactions, contra)

	// A closed loan reopens before replay; the final status is recomputed
	// from scratch afterwards.
	l.Status = Transition(EventLoanAdjusted, l.Status)

	var replacement *Transaction
	if amount.IsPositive() {
		if dateBefore(transactionDate, l.DisbursementDate) {
			return nil, newStateTransitionError("adjust", "transaction.date.before.disbursement.date", transactionDate, l.DisbursementDate)
		}
		replacement = NewTransaction(replacementID, original.Type, transactionDate, amount)
		replacement.Modified = true
		l.Transactions = append(l.Transactions, replacement)
	}

	l.reprocess(processor)
	l.doPostTransactionChecks(transactionDate)
	return replacement, nil
}

// AddCharge attaches a charge to an open loan. Percentage charges are priced
// against the current principal and scheduled interest, then charge dues are
// reattributed to periods; loans with posted repayments replay history so the
// new due amounts are settled out of already-received money.
func (l *Loan) AddCharge(charge *Charge, processor TransactionProcessor) error {
	if l.Status.IsClosed() {
		return newTransactionTypeError("loan.charge.on.closed.loan", "cannot add a charge to a closed loan")
	}
	charge.RecalculateAmount(l.Principal, l.TotalScheduledInterest().Amount())
	l.Charges = append(l.Charges, charge)
	l.reattributeOrReprocess(processor)
	return nil
}

// RemoveCharge detaches a charge that has not yet been paid or waived.
func (l *Loan) RemoveCharge(chargeID string, processor TransactionProcessor) error {
	idx := -1
	for i, charge := range l.Charges {
		if charge.ID == chargeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrChargeNotFound
	}
	charge := l.Charges[idx]
	if charge.FullyPaid || charge.IsWaived || charge.Paid.IsPositive() {
		return newTransactionTypeError("loan.charge.already.paid.or.waived", "cannot remove a charge that has been paid or waived")
	}
	l.Charges = append(l.Charges[:idx], l.Charges[idx+1:]...)
	l.reattributeOrReprocess(processor)
	return nil
}

// WaiveCharge forgives the outstanding balance of a charge. The waiver is
// booked on the charge ledger and projected onto the schedule through charge
// attribution; the transaction's portions are set here from the charge and
// stay primary data, a replay never recomputes them.
func (l *Loan) WaiveCharge(chargeID, transactionID string, transactionDate time.Time, processor TransactionProcessor) (*Transaction, error) {
	charge := l.FindCharge(chargeID)
	if charge == nil {
		return nil, ErrChargeNotFound
	}
	if charge.IsPaidOrWaived(l.Currency) {
		return nil, newTransactionTypeError("loan.charge.already.paid.or.waived", "cannot waive a charge that is already settled")
	}
	waived := charge.AmountOutstanding(l.Currency)

	tx := NewTransaction(transactionID, TransactionTypeWaiveCharges, transactionDate, waived.Amount())
	zero := MoneyZero(l.Currency)
	if charge.IsPenalty {
		tx.UpdateComponents(zero, zero, zero, waived)
	} else {
		tx.UpdateComponents(zero, zero, waived, zero)
	}
	tx.RecordChargePayment(charge.ID, waived)
	if err := l.handleRepaymentOrWaiver(tx, processor); err != nil {
		return nil, err
	}

	charge.Waive(l.Currency)
	processor.AttributeCharges(l.DisbursementDate, l.Currency, l.Installments, l.Charges)
	l.doPostTransactionChecks(tx.Date)
	return tx, nil
}

// CloseAsWrittenOff ends collection on the loan: all outstanding principal
// and interest moves to written off, fees and penalties stay collectible.
func (l *Loan) CloseAsWrittenOff(transactionID string, writtenOffOn time.Time, processor TransactionProcessor) (*Transaction, error) {
	if !l.Status.IsActive() {
		return nil, newTransactionTypeError("loan.write.off.invalid.state", fmt.Sprintf("cannot write off a loan in state %s", l.Status))
	}
	if dateBefore(writtenOffOn, l.DisbursementDate) {
		return nil, newStateTransitionError("write.off", "write.off.date.before.disbursement.date", writtenOffOn, l.DisbursementDate)
	}
	if err := l.validateNotInFuture("write.off", writtenOffOn); err != nil {
		return nil, err
	}

	tx := NewTransaction(transactionID, TransactionTypeWriteOff, writtenOffOn, decimal.Zero)
	tx.Modified = true
	processor.ProcessWriteOff(tx, l.Currency, l.Installments)
	l.Transactions = append(l.Transactions, tx)

	l.Status = Transition(EventLoanWrittenOff, l.Status)
	l.WrittenOffDate = ToDate(writtenOffOn)
	l.ClosedDate = ToDate(writtenOffOn)
	return tx, nil
}

// Close settles the loan on the given date. A residue no larger than the
// arrears tolerance is written off; anything larger blocks the close.
func (l *Loan) Close(transactionID string, closedOn time.Time, processor TransactionProcessor) (*Transaction, error) {
	if dateBefore(closedOn, l.lastTransactionDate()) {
		return nil, newStateTransitionError("close", "closure.date.before.last.transaction.date", closedOn, l.lastTransactionDate())
	}
	if err := l.validateNotInFuture("close", closedOn); err != nil {
		return nil, err
	}

	outstanding := l.TotalOutstanding()
	tolerance := NewMoney(l.Currency, l.ArrearsTolerance)
	switch {
	case outstanding.IsZero():
		l.Status = Transition(EventLoanClosed, l.Status)
		l.ClosedDate = ToDate(closedOn)
		return nil, nil
	case outstanding.IsGreaterThanZero() && !outstanding.IsGreaterThan(tolerance):
		// the residue is small enough to forgive, recorded as a write-off
		// transaction but closing the loan as obligations met
		tx := NewTransaction(transactionID, TransactionTypeWriteOff, closedOn, decimal.Zero)
		tx.Modified = true
		processor.ProcessWriteOff(tx, l.Currency, l.Installments)
		l.Transactions = append(l.Transactions, tx)

		// any fee or penalty residue is forgiven on the charge ledger, which
		// the write-off sweep leaves alone
		for _, charge := range l.Charges {
			if !charge.IsDueAtDisbursement() && !charge.IsPaidOrWaived(l.Currency) {
				charge.WriteOff(l.Currency)
			}
		}
		processor.AttributeCharges(l.DisbursementDate, l.Currency, l.Installments, l.Charges)

		l.Status = Transition(EventLoanClosed, l.Status)
		l.ClosedDate = ToDate(closedOn)
		return tx, nil
	default:
		return nil, newTransactionTypeError("loan.close.outstanding.balance",
			fmt.Sprintf("cannot close loan, outstanding balance %s exceeds tolerance %s", outstanding, tolerance))
	}
}

// CloseAsRescheduled closes a fully settled loan whose balance moves to a
// replacement loan contract.
func (l *Loan) CloseAsRescheduled(closedOn time.Time) error {
	if !l.Status.IsActive() {
		return newTransactionTypeError("loan.reschedule.invalid.state", fmt.Sprintf("cannot reschedule a loan in state %s", l.Status))
	}
	if l.TotalOutstanding().IsGreaterThanZero() {
		return newTransactionTypeError("loan.reschedule.outstanding.balance", "cannot mark a loan with an outstanding balance as rescheduled")
	}
	if err := l.validateNotInFuture("reschedule", closedOn); err != nil {
		return err
	}
	l.Status = Transition(EventLoanRescheduled, l.Status)
	l.ClosedDate = ToDate(closedOn)
	l.RescheduledDate = ToDate(closedOn)
	return nil
}

// RecoveryPayment records money received after a write-off. It allocates
// against the written-off ledgers, earliest period first, moving recovered
// amounts back to paid; the loan stays written off.
func (l *Loan) RecoveryPayment(transactionID string, transactionDate time.Time, amount decimal.Decimal, processor TransactionProcessor) (*Transaction, error) {
	if l.Status != StatusClosedWrittenOff {
		return nil, newTransactionTypeError("loan.recovery.invalid.state", "recovery payments are only accepted against written-off loans")
	}
	if dateBefore(transactionDate, l.WrittenOffDate) {
		return nil, newStateTransitionError("recovery", "recovery.date.before.write.off.date", transactionDate, l.WrittenOffDate)
	}
	if err := l.validateNotInFuture("recovery", transactionDate); err != nil {
		return nil, err
	}
	recovered := NewMoney(l.Currency, amount)
	writtenOff := l.totalWrittenOff()
	if recovered.IsGreaterThan(writtenOff) {
		return nil, newTransactionTypeError("loan.recovery.exceeds.written.off",
			fmt.Sprintf("cannot recover %s, only %s was written off", recovered, writtenOff))
	}
	tx := NewTransaction(transactionID, TransactionTypeRecoveryRepayment, transactionDate, amount)
	tx.Modified = true
	processor.ProcessRecovery(tx, l.Currency, l.Installments)
	l.Transactions = append(l.Transactions, tx)
	return tx, nil
}

func (l *Loan) totalWrittenOff() Money {
	total := MoneyZero(l.Currency)
	for _, installment := range l.Installments {
		total = total.Plus(NewMoney(l.Currency, installment.PrincipalWrittenOff)).
			Plus(NewMoney(l.Currency, installment.InterestWrittenOff))
	}
	return total
}

// Refund returns money to the client. On an overpaid loan it pays out of the
// overpayment. On an active loan it undoes received payments latest period
// first, reopening the affected periods.
func (l *Loan) Refund(transactionID string, transactionDate time.Time, amount decimal.Decimal, processor TransactionProcessor) (*Transaction, error) {
	if err := l.validateNotInFuture("refund", transactionDate); err != nil {
		return nil, err
	}
	refund := NewMoney(l.Currency, amount)

	switch {
	case l.Status.IsOverpaid():
		overpaid := l.TotalOverpaid()
		if refund.IsGreaterThan(overpaid) {
			return nil, newTransactionTypeError("loan.refund.exceeds.overpayment",
				fmt.Sprintf("cannot refund %s, only %s was overpaid", refund, overpaid))
		}
		tx := NewTransaction(transactionID, TransactionTypeRefund, transactionDate, amount)
		tx.OverpaymentPortion = amount.Neg()
		tx.Modified = true
		l.Transactions = append(l.Transactions, tx)

		if l.TotalOverpaid().IsZero() {
			l.Status = Transition(EventLoanRepaidInFull, l.Status)
			l.ClosedDate = ToDate(transactionDate)
		}
		return tx, nil

	case l.Status.IsActive():
		if dateBefore(transactionDate, l.DisbursementDate) {
			return nil, newStateTransitionError("refund", "transaction.date.before.disbursement.date", transactionDate, l.DisbursementDate)
		}
		repaid := l.totalRepaid()
		if refund.IsGreaterThan(repaid) {
			return nil, newTransactionTypeError("loan.refund.exceeds.paid",
				fmt.Sprintf("cannot refund %s, only %s has been repaid", refund, repaid))
		}
		tx := NewTransaction(transactionID, TransactionTypeRefundForActiveLoan, transactionDate, amount)
		tx.Modified = true
		processor.ProcessRefund(tx, l.Currency, l.Installments, l.Charges)
		l.Transactions = append(l.Transactions, tx)
		l.doPostTransactionChecks(transactionDate)
		return tx, nil

	default:
		return nil, newTransactionTypeError("loan.refund.invalid.state",
			fmt.Sprintf("refunds are only accepted against active or overpaid loans, not %s", l.Status))
	}
}

func (l *Loan) FindTransaction(id string) *Transaction {
	for _, tx := range l.Transactions {
		if tx.ID == id {
			return tx
		}
	}
	return nil
}

func (l *Loan) FindCharge(id string) *Charge {
	for _, charge := range l.Charges {
		if charge.ID == id {
			return charge
		}
	}
	return nil
}

func (l *Loan) TotalOutstanding() Money {
	total := MoneyZero(l.Currency)
	for _, installment := range l.Installments {
		total = total.Plus(installment.TotalOutstanding(l.Currency))
	}
	return total
}

func (l *Loan) TotalInterestOutstanding() Money {
	total := MoneyZero(l.Currency)
	for _, installment := range l.Installments {
		total = total.Plus(installment.InterestOutstanding(l.Currency))
	}
	return total
}

func (l *Loan) TotalScheduledInterest() Money {
	total := MoneyZero(l.Currency)
	for _, installment := range l.Installments {
		total = total.Plus(NewMoney(l.Currency, installment.InterestDue))
	}
	return total
}

// TotalOverpaid is the net overpayment across all surviving transactions,
// refunds counted negatively.
func (l *Loan) TotalOverpaid() Money {
	total := MoneyZero(l.Currency)
	for _, tx := range l.Transactions {
		if tx.IsNotReversed() {
			total = total.Plus(NewMoney(l.Currency, tx.OverpaymentPortion))
		}
	}
	return total
}

// InArrearsOn reports whether any incomplete installment is past due on the
// given date by more than the arrears tolerance.
func (l *Loan) InArrearsOn(date time.Time) bool {
	overdue := MoneyZero(l.Currency)
	for _, installment := range l.Installments {
		if !installment.Completed && installment.IsOverdueOn(date) {
			overdue = overdue.Plus(installment.TotalOutstanding(l.Currency))
		}
	}
	return overdue.IsGreaterThan(NewMoney(l.Currency, l.ArrearsTolerance))
}

// NextRepaymentDate is the due date of the earliest incomplete installment.
func (l *Loan) NextRepaymentDate() (time.Time, bool) {
	for _, installment := range l.Installments {
		if !installment.Completed {
			return installment.DueDate, true
		}
	}
	return time.Time{}, false
}

// NextRepaymentAmount is the total outstanding on the next incomplete period,
// zero once everything is settled.
func (l *Loan) NextRepaymentAmount() Money {
	for _, installment := range l.Installments {
		if !installment.Completed {
			return installment.TotalOutstanding(l.Currency)
		}
	}
	return MoneyZero(l.Currency)
}

// DeriveDefaultInterestWaiver builds, without posting, the interest-waiver
// transaction that would clear all outstanding interest as of the given date.
func (l *Loan) DeriveDefaultInterestWaiver(transactionID string, on time.Time) *Transaction {
	return NewTransaction(transactionID, TransactionTypeWaiveInterest, on, l.TotalInterestOutstanding().Amount())
}

// ChangedTransactions returns the transactions whose derived state changed
// during the most recent operation, for the accounting bridge to post.
func (l *Loan) ChangedTransactions() []*Transaction {
	var changed []*Transaction
	for _, tx := range l.Transactions {
		if tx.Modified {
			changed = append(changed, tx)
		}
	}
	return changed
}

// MarkChangesFlushed clears the changed-transaction markers once the
// accounting bridge has consumed them.
func (l *Loan) MarkChangesFlushed() {
	for _, tx := range l.Transactions {
		tx.Modified = false
	}
}

// RepaymentsAndWaivers returns the surviving post-disbursement monetary
// history that a replay must process. Active-loan refunds and write-offs are
// included since they move installment ledgers; overpayment payouts are not,
// they never touch the schedule.
func (l *Loan) RepaymentsAndWaivers() []*Transaction {
	var out []*Transaction
	for _, tx := range l.Transactions {
		if !tx.IsNotReversed() {
			continue
		}
		if tx.IsRepaymentOrWaiver() ||
			tx.Type == TransactionTypeRefundForActiveLoan ||
			tx.Type == TransactionTypeWriteOff {
			out = append(out, tx)
		}
	}
	return out
}

// ReprocessTransactions rebuilds all derived state from the transaction
// history and recomputes the lifecycle state. Batch jobs call this after
// anything that invalidates derived balances, such as a due-date shift.
func (l *Loan) ReprocessTransactions(processor TransactionProcessor) {
	if l.DisbursementDate.IsZero() {
		return
	}
	l.Status = Transition(EventRepaymentOrWaiver, l.Status)
	l.reprocess(processor)
	l.doPostTransactionChecks(time.Now())
}

func (l *Loan) reprocess(processor TransactionProcessor) {
	processor.Reprocess(l.DisbursementDate, l.RepaymentsAndWaivers(), l.Currency, l.Installments, l.Charges)
}

func (l *Loan) reattributeOrReprocess(processor TransactionProcessor) {
	if l.DisbursementDate.IsZero() {
		processor.AttributeCharges(l.ExpectedDisbursementDate, l.Currency, l.Installments, l.Charges)
		return
	}
	if len(l.RepaymentsAndWaivers()) == 0 {
		processor.AttributeCharges(l.DisbursementDate, l.Currency, l.Installments, l.Charges)
		return
	}
	l.reprocess(processor)
	l.doPostTransactionChecks(time.Now())
}

// doPostTransactionChecks recomputes the lifecycle state from derived
// balances after any allocation run.
func (l *Loan) doPostTransactionChecks(on time.Time) {
	if l.TotalOutstanding().IsZero() {
		if l.TotalOverpaid().IsGreaterThanZero() {
			l.Status = Transition(EventLoanOverpayment, l.Status)
			l.ClosedDate = time.Time{}
			return
		}
		l.Status = Transition(EventLoanRepaidInFull, l.Status)
		l.ClosedDate = ToDate(on)
		return
	}
	l.ClosedDate = time.Time{}
}

func (l *Loan) isChronologicallyLatestRepaymentOrWaiver(candidate *Transaction) bool {
	for _, tx := range l.Transactions {
		if tx == candidate || !tx.IsNotReversed() || !tx.IsRepaymentOrWaiver() {
			continue
		}
		if dateBefore(candidate.Date, tx.Date) {
			return false
		}
		// A repayment posted on the same date as an existing waiver still
		// sorts after it; the reverse does not.
		if dateEqual(candidate.Date, tx.Date) && candidate.IsWaiver() && !tx.IsWaiver() {
			return false
		}
	}
	return true
}

func (l *Loan) totalRepaid() Money {
	total := MoneyZero(l.Currency)
	for _, installment := range l.Installments {
		total = total.Plus(installment.TotalPaid(l.Currency))
	}
	return total
}

func (l *Loan) totalChargesDueAtDisbursement() Money {
	total := MoneyZero(l.Currency)
	for _, charge := range l.Charges {
		if charge.IsDueAtDisbursement() {
			total = total.Plus(charge.AmountOutstanding(l.Currency))
		}
	}
	return total
}

func (l *Loan) lastTransactionDate() time.Time {
	last := l.DisbursementDate
	for _, tx := range l.Transactions {
		if tx.IsNotReversed() && dateAfter(tx.Date, last) {
			last = tx.Date
		}
	}
	return last
}

func (l *Loan) validateNotInFuture(action string, date time.Time) error {
	if dateAfter(date, time.Now()) {
		return newStateTransitionError(action, "date.in.future", date)
	}
	return nil
}
