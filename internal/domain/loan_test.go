package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"loan-engine/internal/domain"
	"loan-engine/internal/processor"
)

var usd = domain.NewCurrency("USD", 2)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func standardProcessor() *processor.Processor {
	return processor.New(processor.NewStandardStrategy())
}

// submittedLoan is a 160 principal, 60 interest loan over two monthly
// periods, submitted 2012-01-01.
func submittedLoan(t *testing.T) *domain.Loan {
	t.Helper()
	loan, err := domain.SubmitApplication("L1", "C1", usd, dec("160"), dec("0"), "mifos-standard", date(2012, 1, 1), date(2012, 1, 1))
	assert.NoError(t, err)
	err = loan.UpdateSchedule([]*domain.Installment{
		domain.NewInstallment(1, date(2012, 1, 1), date(2012, 2, 1), dec("80"), dec("30"), dec("0"), dec("0")),
		domain.NewInstallment(2, date(2012, 2, 1), date(2012, 3, 1), dec("80"), dec("30"), dec("0"), dec("0")),
	})
	assert.NoError(t, err)
	return loan
}

func activeLoan(t *testing.T) *domain.Loan {
	t.Helper()
	loan := submittedLoan(t)
	assert.NoError(t, loan.Approve(date(2012, 1, 1)))
	assert.NoError(t, loan.Disburse("d1", date(2012, 1, 1), standardProcessor()))
	return loan
}

func TestLoan_SubmitApplication(t *testing.T) {
	loan := submittedLoan(t)
	assert.Equal(t, domain.StatusSubmittedAndPendingApproval, loan.Status)
	assert.Equal(t, date(2012, 3, 1), loan.MaturityDate)

	_, err := domain.SubmitApplication("L2", "C1", usd, dec("100"), dec("0"), "mifos-standard", date(2012, 2, 1), date(2012, 1, 1))
	assert.Error(t, err, "submission after expected disbursement is rejected")
}

func TestLoan_ApprovalDateRules(t *testing.T) {
	loan := submittedLoan(t)

	err := loan.Approve(date(2011, 12, 31))
	assert.Error(t, err)
	var ste *domain.StateTransitionError
	assert.ErrorAs(t, err, &ste)
	assert.Equal(t, "approval.date.before.submittal.date", ste.Rule)

	assert.Error(t, loan.Approve(time.Now().AddDate(0, 0, 1)), "future dates are rejected")

	assert.NoError(t, loan.Approve(date(2012, 1, 1)))
	assert.Equal(t, domain.StatusApproved, loan.Status)

	assert.Error(t, loan.Approve(date(2012, 1, 2)), "double approval is rejected")
}

func TestLoan_RejectAndWithdraw(t *testing.T) {
	loan := submittedLoan(t)
	assert.NoError(t, loan.Reject(date(2012, 1, 2)))
	assert.Equal(t, domain.StatusRejected, loan.Status)
	assert.Equal(t, date(2012, 1, 2), loan.ClosedDate)

	loan = submittedLoan(t)
	assert.NoError(t, loan.Withdraw(date(2012, 1, 2)))
	assert.Equal(t, domain.StatusWithdrawnByClient, loan.Status)
}

func TestLoan_UndoApproval(t *testing.T) {
	loan := submittedLoan(t)
	assert.NoError(t, loan.Approve(date(2012, 1, 1)))
	assert.NoError(t, loan.UndoApproval())
	assert.Equal(t, domain.StatusSubmittedAndPendingApproval, loan.Status)
	assert.True(t, loan.ApprovedDate.IsZero())
}

func TestLoan_Disburse(t *testing.T) {
	loan := activeLoan(t)
	assert.Equal(t, domain.StatusActive, loan.Status)
	assert.Equal(t, date(2012, 1, 1), loan.DisbursementDate)
	assert.Len(t, loan.Transactions, 1)
	assert.Equal(t, domain.TransactionTypeDisbursement, loan.Transactions[0].Type)
	assert.True(t, loan.Transactions[0].PrincipalPortion.Equal(dec("160")))
}

func TestLoan_DisburseSettlesDisbursementCharges(t *testing.T) {
	loan := submittedLoan(t)
	proc := standardProcessor()
	charge := domain.NewFlatCharge("c1", "upfront fee", domain.ChargeTimingDisbursement, false, date(2012, 1, 1), dec("50"))
	assert.NoError(t, loan.AddCharge(charge, proc))
	assert.NoError(t, loan.Approve(date(2012, 1, 1)))
	assert.NoError(t, loan.Disburse("d1", date(2012, 1, 1), proc))

	assert.True(t, charge.FullyPaid)
	assert.Len(t, loan.Transactions, 2)
	settle := loan.Transactions[1]
	assert.Equal(t, domain.TransactionTypeRepaymentAtDisbursement, settle.Type)
	assert.True(t, settle.FeePortion.Equal(dec("50")))
}

func TestLoan_DisburseDateRules(t *testing.T) {
	loan := submittedLoan(t)
	proc := standardProcessor()
	assert.NoError(t, loan.Approve(date(2012, 1, 5)))

	assert.Error(t, loan.Disburse("d1", date(2012, 1, 4), proc), "before approval date")
	assert.Error(t, loan.Disburse("d1", date(2012, 2, 1), proc), "on or after first repayment due date")
	assert.NoError(t, loan.Disburse("d1", date(2012, 1, 5), proc))
}

func TestLoan_UndoDisbursal(t *testing.T) {
	loan := activeLoan(t)
	assert.NoError(t, loan.UndoDisbursal())
	assert.Equal(t, domain.StatusApproved, loan.Status)
	assert.True(t, loan.DisbursementDate.IsZero())
	assert.Empty(t, loan.Transactions)

	loan = activeLoan(t)
	_, err := loan.MakeRepayment("r1", date(2012, 2, 1), dec("50"), standardProcessor())
	assert.NoError(t, err)
	assert.Error(t, loan.UndoDisbursal(), "repayments block undo")
}

func TestLoan_RepaymentInFullClosesLoan(t *testing.T) {
	loan := activeLoan(t)
	proc := standardProcessor()

	_, err := loan.MakeRepayment("r1", date(2012, 2, 1), dec("110"), proc)
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusActive, loan.Status)

	_, err = loan.MakeRepayment("r2", date(2012, 3, 1), dec("110"), proc)
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusClosedObligationsMet, loan.Status)
	assert.Equal(t, date(2012, 3, 1), loan.ClosedDate)
	assert.True(t, loan.TotalOutstanding().IsZero())
}

func TestLoan_RepaymentDateRules(t *testing.T) {
	loan := activeLoan(t)
	proc := standardProcessor()

	_, err := loan.MakeRepayment("r1", date(2011, 12, 31), dec("50"), proc)
	assert.Error(t, err, "before disbursement")

	_, err = loan.MakeRepayment("r1", time.Now().AddDate(0, 0, 1), dec("50"), proc)
	assert.Error(t, err, "in the future")

	pending := submittedLoan(t)
	_, err = pending.MakeRepayment("r1", date(2012, 2, 1), dec("50"), proc)
	assert.Error(t, err, "not yet disbursed")
}

func TestLoan_Overpayment(t *testing.T) {
	loan := activeLoan(t)

	_, err := loan.MakeRepayment("r1", date(2012, 2, 1), dec("300"), standardProcessor())
	assert.NoError(t, err)

	assert.Equal(t, domain.StatusOverpaid, loan.Status)
	assert.True(t, loan.TotalOutstanding().IsZero())
	assert.True(t, loan.TotalOverpaid().Equal(domain.NewMoney(usd, dec("80"))))
	assert.True(t, loan.ClosedDate.IsZero(), "an overpaid loan is not closed")
}

func TestLoan_RefundClearsOverpayment(t *testing.T) {
	loan := activeLoan(t)
	proc := standardProcessor()
	_, err := loan.MakeRepayment("r1", date(2012, 2, 1), dec("300"), proc)
	assert.NoError(t, err)

	_, err = loan.Refund("rf1", date(2012, 2, 2), dec("100"), proc)
	assert.Error(t, err, "refund above the overpayment is rejected")

	_, err = loan.Refund("rf1", date(2012, 2, 2), dec("80"), proc)
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusClosedObligationsMet, loan.Status)
	assert.True(t, loan.TotalOverpaid().IsZero())
}

func TestLoan_RefundOnActiveLoanReopensPeriods(t *testing.T) {
	loan := activeLoan(t)
	proc := standardProcessor()
	_, err := loan.MakeRepayment("r1", date(2012, 2, 1), dec("110"), proc)
	assert.NoError(t, err)
	assert.True(t, loan.Installments[0].Completed)

	_, err = loan.Refund("rf1", date(2012, 2, 2), dec("120"), proc)
	assert.Error(t, err, "refund above what was repaid is rejected")

	tx, err := loan.Refund("rf1", date(2012, 2, 2), dec("90"), proc)
	assert.NoError(t, err)
	assert.Equal(t, domain.TransactionTypeRefundForActiveLoan, tx.Type)
	assert.True(t, tx.PrincipalPortion.Equal(dec("80")), "principal comes back first")
	assert.True(t, tx.InterestPortion.Equal(dec("10")))
	assert.False(t, loan.Installments[0].Completed)
	assert.True(t, loan.TotalOutstanding().Equal(domain.NewMoney(usd, dec("200"))))
}

func TestLoan_OutOfOrderRepaymentTriggersReplay(t *testing.T) {
	loan := activeLoan(t)
	proc := standardProcessor()

	_, err := loan.MakeRepayment("r1", date(2012, 3, 1), dec("110"), proc)
	assert.NoError(t, err)

	// An earlier-dated payment arrives afterwards; history replays and both
	// periods end up settled.
	_, err = loan.MakeRepayment("r2", date(2012, 2, 1), dec("110"), proc)
	assert.NoError(t, err)

	assert.Equal(t, domain.StatusClosedObligationsMet, loan.Status)
	for _, inst := range loan.Installments {
		assert.True(t, inst.Completed)
	}
}

func TestLoan_WaiveInterestValidation(t *testing.T) {
	loan := activeLoan(t)
	proc := standardProcessor()

	_, err := loan.WaiveInterest("w1", date(2012, 2, 1), dec("61"), proc)
	assert.Error(t, err, "only 60 interest is outstanding")
	var tte *domain.TransactionTypeError
	assert.ErrorAs(t, err, &tte)

	tx, err := loan.WaiveInterest("w1", date(2012, 2, 1), dec("30"), proc)
	assert.NoError(t, err)
	assert.True(t, tx.InterestPortion.Equal(dec("30")))
	assert.True(t, loan.TotalInterestOutstanding().Equal(domain.NewMoney(usd, dec("30"))))
}

func TestLoan_AdjustmentReopensClosedLoan(t *testing.T) {
	loan := activeLoan(t)
	proc := standardProcessor()

	_, err := loan.MakeRepayment("r1", date(2012, 2, 1), dec("110"), proc)
	assert.NoError(t, err)
	_, err = loan.MakeRepayment("r2", date(2012, 3, 1), dec("110"), proc)
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusClosedObligationsMet, loan.Status)

	// Shrink the second repayment; the contra reverses it and the
	// replacement replays, leaving a balance outstanding again.
	replacement, err := loan.AdjustTransaction("r2", "r3", date(2012, 3, 1), dec("50"), proc)
	assert.NoError(t, err)
	assert.NotNil(t, replacement)
	assert.Equal(t, domain.StatusActive, loan.Status)
	assert.True(t, loan.FindTransaction("r2").Reversed)
	assert.True(t, loan.TotalOutstanding().Equal(domain.NewMoney(usd, dec("60"))))
}

func TestLoan_AdjustmentWithZeroAmountReversesOnly(t *testing.T) {
	loan := activeLoan(t)
	proc := standardProcessor()

	_, err := loan.MakeRepayment("r1", date(2012, 2, 1), dec("110"), proc)
	assert.NoError(t, err)

	replacement, err := loan.AdjustTransaction("r1", "r2", date(2012, 2, 1), dec("0"), proc)
	assert.NoError(t, err)
	assert.Nil(t, replacement)
	assert.True(t, loan.TotalOutstanding().Equal(domain.NewMoney(usd, dec("220"))))

	_, err = loan.AdjustTransaction("r1", "r3", date(2012, 2, 1), dec("10"), proc)
	assert.Error(t, err, "an already reversed transaction cannot be adjusted again")
}

func TestLoan_WriteOff(t *testing.T) {
	loan := activeLoan(t)
	proc := standardProcessor()

	_, err := loan.MakeRepayment("r1", date(2012, 2, 1), dec("110"), proc)
	assert.NoError(t, err)

	tx, err := loan.CloseAsWrittenOff("w1", date(2012, 3, 15), proc)
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusClosedWrittenOff, loan.Status)
	assert.Equal(t, date(2012, 3, 15), loan.WrittenOffDate)
	assert.True(t, tx.Amount.Equal(dec("110")), "remaining principal and interest")

	_, err = loan.MakeRepayment("r2", date(2012, 3, 16), dec("10"), proc)
	assert.Error(t, err, "written-off loans take no repayments")
}

func TestLoan_AdjustTransactionRejectedAfterWriteOff(t *testing.T) {
	loan := activeLoan(t)
	proc := standardProcessor()

	_, err := loan.MakeRepayment("r1", date(2012, 2, 1), dec("110"), proc)
	assert.NoError(t, err)
	_, err = loan.CloseAsWrittenOff("w1", date(2012, 3, 15), proc)
	assert.NoError(t, err)

	_, err = loan.AdjustTransaction("r1", "r2", date(2012, 2, 1), dec("50"), proc)
	assert.Error(t, err, "written-off ledgers cannot be rebuilt by an adjustment")
	assert.Equal(t, domain.StatusClosedWrittenOff, loan.Status)
	assert.True(t, loan.Installments[1].PrincipalWrittenOff.Equal(dec("80")), "ledgers stand untouched")
	assert.False(t, loan.Transactions[1].Reversed)
}

func TestLoan_RecoveryPayment(t *testing.T) {
	loan := activeLoan(t)
	proc := standardProcessor()

	_, err := loan.RecoveryPayment("rc1", date(2012, 3, 16), dec("10"), proc)
	assert.Error(t, err, "recovery requires a written-off loan")

	_, err = loan.CloseAsWrittenOff("w1", date(2012, 3, 15), proc)
	assert.NoError(t, err)

	tx, err := loan.RecoveryPayment("rc1", date(2012, 3, 16), dec("10"), proc)
	assert.NoError(t, err)
	assert.Equal(t, domain.TransactionTypeRecoveryRepayment, tx.Type)
	assert.True(t, tx.PrincipalPortion.Equal(dec("10")), "recovery settles principal first")
	assert.Equal(t, domain.StatusClosedWrittenOff, loan.Status)
	assert.True(t, loan.Installments[0].PrincipalWrittenOff.Equal(dec("70")), "the earliest ledger shrinks")
	assert.True(t, loan.Installments[0].PrincipalPaid.Equal(dec("10")))
	assert.True(t, loan.Installments[1].PrincipalWrittenOff.Equal(dec("80")), "later periods untouched")

	_, err = loan.RecoveryPayment("rc2", date(2012, 3, 14), dec("10"), proc)
	assert.Error(t, err, "before the write-off date")

	_, err = loan.RecoveryPayment("rc3", date(2012, 3, 17), dec("300"), proc)
	assert.Error(t, err, "more than was ever written off")
}

func TestLoan_RecoveryPaymentSpansPeriods(t *testing.T) {
	loan := activeLoan(t)
	proc := standardProcessor()

	_, err := loan.CloseAsWrittenOff("w1", date(2012, 3, 15), proc)
	assert.NoError(t, err)

	tx, err := loan.RecoveryPayment("rc1", date(2012, 3, 16), dec("120"), proc)
	assert.NoError(t, err)
	assert.True(t, tx.PrincipalPortion.Equal(dec("90")), "period one settles in full before period two starts")
	assert.True(t, tx.InterestPortion.Equal(dec("30")))
	assert.True(t, loan.Installments[0].PrincipalWrittenOff.IsZero())
	assert.True(t, loan.Installments[0].InterestWrittenOff.IsZero())
	assert.True(t, loan.Installments[1].PrincipalWrittenOff.Equal(dec("70")))
	assert.True(t, loan.Installments[1].PrincipalPaid.Equal(dec("10")))
}

func TestLoan_CloseWithinTolerance(t *testing.T) {
	loan := submittedLoan(t)
	loan.ArrearsTolerance = dec("5")
	proc := standardProcessor()
	assert.NoError(t, loan.Approve(date(2012, 1, 1)))
	assert.NoError(t, loan.Disburse("d1", date(2012, 1, 1), proc))

	_, err := loan.MakeRepayment("r1", date(2012, 2, 1), dec("110"), proc)
	assert.NoError(t, err)
	_, err = loan.MakeRepayment("r2", date(2012, 3, 1), dec("107"), proc)
	assert.NoError(t, err)

	tx, err := loan.Close("cl1", date(2012, 3, 2), proc)
	assert.NoError(t, err)
	assert.NotNil(t, tx, "the 3 residue is written off")
	assert.Equal(t, domain.StatusClosedObligationsMet, loan.Status)
	assert.True(t, loan.TotalOutstanding().IsZero())
}

func TestLoan_CloseWithinToleranceForgivesChargeResidue(t *testing.T) {
	loan := submittedLoan(t)
	loan.ArrearsTolerance = dec("5")
	proc := processor.New(processor.NewCreocoreStrategy())
	charge := domain.NewFlatCharge("c1", "service fee", domain.ChargeTimingSpecifiedDate, false, date(2012, 2, 20), dec("20"))
	assert.NoError(t, loan.AddCharge(charge, proc))
	assert.NoError(t, loan.Approve(date(2012, 1, 1)))
	assert.NoError(t, loan.Disburse("d1", date(2012, 1, 1), proc))

	// creocore pays the fee last, so shorting the final payment leaves the
	// residue entirely on the charge
	_, err := loan.MakeRepayment("r1", date(2012, 3, 1), dec("236"), proc)
	assert.NoError(t, err)
	assert.True(t, loan.TotalOutstanding().Equal(domain.NewMoney(usd, dec("4"))))

	_, err = loan.Close("cl1", date(2012, 3, 2), proc)
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusClosedObligationsMet, loan.Status)
	assert.True(t, loan.TotalOutstanding().IsZero(), "the fee residue is forgiven with the rest")
	assert.True(t, charge.WrittenOff.Equal(dec("4")))
	assert.True(t, loan.Installments[1].FeeWrittenOff.Equal(dec("4")))
}

func TestLoan_ToleranceClosedLoanReplaysCleanly(t *testing.T) {
	loan := submittedLoan(t)
	loan.ArrearsTolerance = dec("5")
	proc := standardProcessor()
	assert.NoError(t, loan.Approve(date(2012, 1, 1)))
	assert.NoError(t, loan.Disburse("d1", date(2012, 1, 1), proc))

	_, err := loan.MakeRepayment("r1", date(2012, 2, 1), dec("110"), proc)
	assert.NoError(t, err)
	_, err = loan.MakeRepayment("r2", date(2012, 3, 1), dec("107"), proc)
	assert.NoError(t, err)
	tx, err := loan.Close("cl1", date(2012, 3, 2), proc)
	assert.NoError(t, err)

	// the nightly reprocess picks up obligations-met loans too
	loan.ReprocessTransactions(proc)
	assert.Equal(t, domain.StatusClosedObligationsMet, loan.Status)
	assert.True(t, loan.TotalOutstanding().IsZero())
	assert.True(t, tx.Amount.Equal(dec("3")), "the write-off rebuilds to the same residue")
	assert.True(t, tx.PrincipalPortion.Equal(dec("3")))
}

func TestLoan_CloseRejectsLargeBalance(t *testing.T) {
	loan := activeLoan(t)
	_, err := loan.Close("cl1", date(2012, 3, 2), standardProcessor())
	assert.Error(t, err)
}

func TestLoan_CloseAsRescheduled(t *testing.T) {
	loan := activeLoan(t)
	assert.Error(t, loan.CloseAsRescheduled(date(2012, 3, 1)), "outstanding balance blocks reschedule closure")

	// The balance has been carried to a replacement contract, so nothing is
	// outstanding here anymore.
	for _, inst := range loan.Installments {
		inst.WriteOffOutstandingPrincipal(loan.Currency)
		inst.WriteOffOutstandingInterest(loan.Currency)
	}
	assert.NoError(t, loan.CloseAsRescheduled(date(2012, 3, 1)))
	assert.Equal(t, domain.StatusClosedRescheduled, loan.Status)
	assert.Equal(t, date(2012, 3, 1), loan.RescheduledDate)
}

func TestLoan_ChargeManagement(t *testing.T) {
	loan := activeLoan(t)
	proc := standardProcessor()

	charge := domain.NewFlatCharge("c1", "late fee", domain.ChargeTimingSpecifiedDate, false, date(2012, 2, 15), dec("20"))
	assert.NoError(t, loan.AddCharge(charge, proc))
	assert.True(t, loan.Installments[1].FeeDue.Equal(dec("20")), "the charge lands in its due period")
	assert.True(t, loan.TotalOutstanding().Equal(domain.NewMoney(usd, dec("240"))))

	assert.NoError(t, loan.RemoveCharge("c1", proc))
	assert.True(t, loan.TotalOutstanding().Equal(domain.NewMoney(usd, dec("220"))))
	assert.Error(t, loan.RemoveCharge("c1", proc), "already removed")
}

func TestLoan_RemoveChargeRejectedOncePaid(t *testing.T) {
	loan := activeLoan(t)
	proc := standardProcessor()
	charge := domain.NewFlatCharge("c1", "late fee", domain.ChargeTimingSpecifiedDate, false, date(2012, 1, 15), dec("20"))
	assert.NoError(t, loan.AddCharge(charge, proc))

	_, err := loan.MakeRepayment("r1", date(2012, 2, 1), dec("130"), proc)
	assert.NoError(t, err)
	assert.True(t, charge.FullyPaid)

	assert.Error(t, loan.RemoveCharge("c1", proc))
}

func TestLoan_WaiveCharge(t *testing.T) {
	loan := activeLoan(t)
	proc := standardProcessor()
	charge := domain.NewFlatCharge("c1", "late fee", domain.ChargeTimingSpecifiedDate, false, date(2012, 2, 15), dec("20"))
	assert.NoError(t, loan.AddCharge(charge, proc))

	tx, err := loan.WaiveCharge("c1", "wc1", date(2012, 2, 16), proc)
	assert.NoError(t, err)
	assert.True(t, charge.IsWaived)
	assert.Equal(t, domain.TransactionTypeWaiveCharges, tx.Type)
	assert.True(t, tx.FeePortion.Equal(dec("20")), "the waiver carries the forgiven fee")
	assert.True(t, tx.OverpaymentPortion.IsZero(), "a waiver is not client money")
	assert.True(t, tx.Amount.Equal(tx.FeePortion))
	assert.True(t, loan.TotalOutstanding().Equal(domain.NewMoney(usd, dec("220"))))
}

func TestLoan_WaiveChargeThenFullRepaymentClosesLoan(t *testing.T) {
	loan := activeLoan(t)
	proc := standardProcessor()
	charge := domain.NewFlatCharge("c1", "late fee", domain.ChargeTimingSpecifiedDate, false, date(2012, 2, 15), dec("20"))
	assert.NoError(t, loan.AddCharge(charge, proc))

	_, err := loan.WaiveCharge("c1", "wc1", date(2012, 2, 16), proc)
	assert.NoError(t, err)

	_, err = loan.MakeRepayment("r1", date(2012, 3, 1), dec("220"), proc)
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusClosedObligationsMet, loan.Status)
	assert.True(t, loan.TotalOverpaid().IsZero(), "the waived fee is not booked as an overpayment")
}

func TestLoan_WaiveChargeSurvivesReplay(t *testing.T) {
	loan := activeLoan(t)
	proc := standardProcessor()
	charge := domain.NewFlatCharge("c1", "late fee", domain.ChargeTimingSpecifiedDate, false, date(2012, 2, 15), dec("20"))
	assert.NoError(t, loan.AddCharge(charge, proc))

	tx, err := loan.WaiveCharge("c1", "wc1", date(2012, 2, 20), proc)
	assert.NoError(t, err)

	// posting an earlier-dated repayment forces a full replay
	_, err = loan.MakeRepayment("r1", date(2012, 2, 1), dec("110"), proc)
	assert.NoError(t, err)

	assert.True(t, tx.FeePortion.Equal(dec("20")), "the waiver's portions are primary data")
	assert.True(t, charge.IsWaived)
	assert.True(t, loan.Installments[1].FeeWaived.Equal(dec("20")))
	assert.True(t, loan.TotalOverpaid().IsZero())
	assert.True(t, loan.TotalOutstanding().Equal(domain.NewMoney(usd, dec("110"))))
}

func TestLoan_AddChargeRejectedOnClosedLoan(t *testing.T) {
	loan := activeLoan(t)
	proc := standardProcessor()
	_, err := loan.MakeRepayment("r1", date(2012, 2, 1), dec("220"), proc)
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusClosedObligationsMet, loan.Status)

	charge := domain.NewFlatCharge("c1", "late fee", domain.ChargeTimingSpecifiedDate, false, date(2012, 2, 15), dec("20"))
	assert.Error(t, loan.AddCharge(charge, proc))
}

func TestLoan_ChangedTransactionsForAccounting(t *testing.T) {
	loan := activeLoan(t)
	proc := standardProcessor()

	changed := loan.ChangedTransactions()
	assert.Len(t, changed, 1, "the disbursement is pending for accounting")
	loan.MarkChangesFlushed()
	assert.Empty(t, loan.ChangedTransactions())

	_, err := loan.MakeRepayment("r1", date(2012, 2, 1), dec("50"), proc)
	assert.NoError(t, err)
	changed = loan.ChangedTransactions()
	assert.Len(t, changed, 1)
	assert.Equal(t, "r1", changed[0].ID)
}

func TestLoan_NextRepaymentDate(t *testing.T) {
	loan := activeLoan(t)
	proc := standardProcessor()

	next, ok := loan.NextRepaymentDate()
	assert.True(t, ok)
	assert.Equal(t, date(2012, 2, 1), next)

	_, err := loan.MakeRepayment("r1", date(2012, 2, 1), dec("110"), proc)
	assert.NoError(t, err)
	next, ok = loan.NextRepaymentDate()
	assert.True(t, ok)
	assert.Equal(t, date(2012, 3, 1), next)
}

func TestLoan_NextRepaymentAmount(t *testing.T) {
	loan := activeLoan(t)
	proc := standardProcessor()
	assert.True(t, loan.NextRepaymentAmount().Equal(domain.NewMoney(usd, dec("110"))))

	_, err := loan.MakeRepayment("r1", date(2012, 2, 1), dec("50"), proc)
	assert.NoError(t, err)
	assert.True(t, loan.NextRepaymentAmount().Equal(domain.NewMoney(usd, dec("60"))))

	_, err = loan.MakeRepayment("r2", date(2012, 3, 1), dec("170"), proc)
	assert.NoError(t, err)
	assert.True(t, loan.NextRepaymentAmount().IsZero())
}

func TestLoan_DeriveDefaultInterestWaiver(t *testing.T) {
	loan := activeLoan(t)
	proc := standardProcessor()
	_, err := loan.MakeRepayment("r1", date(2012, 2, 1), dec("110"), proc)
	assert.NoError(t, err)

	tx := loan.DeriveDefaultInterestWaiver("w1", date(2012, 2, 15))
	assert.Equal(t, domain.TransactionTypeWaiveInterest, tx.Type)
	assert.True(t, tx.Amount.Equal(dec("30")), "only the second period's interest remains")
	assert.Nil(t, loan.FindTransaction("w1"), "derivation does not post")
}

func TestLoan_InArrears(t *testing.T) {
	loan := activeLoan(t)
	assert.False(t, loan.InArrearsOn(date(2012, 2, 1)))
	assert.True(t, loan.InArrearsOn(date(2012, 2, 2)))
}
