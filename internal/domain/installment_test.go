package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testInstallment() *Installment {
	return NewInstallment(1, date(2012, 1, 1), date(2012, 2, 1), dec("80"), dec("30"), dec("10"), dec("5"))
}

// assertConservation checks due == paid + waived + writtenOff + outstanding
// for every component.
func assertConservation(t *testing.T, inst *Installment) {
	t.Helper()
	assert.True(t, inst.PrincipalDue.Equal(
		inst.PrincipalPaid.Add(inst.PrincipalWrittenOff).Add(inst.PrincipalOutstanding(usd).Amount())))
	assert.True(t, inst.InterestDue.Equal(
		inst.InterestPaid.Add(inst.InterestWaived).Add(inst.InterestWrittenOff).Add(inst.InterestOutstanding(usd).Amount())))
	assert.True(t, inst.FeeDue.Equal(
		inst.FeePaid.Add(inst.FeeWaived).Add(inst.FeeWrittenOff).Add(inst.FeeOutstanding(usd).Amount())))
	assert.True(t, inst.PenaltyDue.Equal(
		inst.PenaltyPaid.Add(inst.PenaltyWaived).Add(inst.PenaltyWrittenOff).Add(inst.PenaltyOutstanding(usd).Amount())))
}

func TestInstallment_PayClampsToOutstanding(t *testing.T) {
	inst := testInstallment()

	consumed := inst.PayPrincipal(usd, money("100"))
	assert.True(t, consumed.Equal(money("80")), "only the outstanding principal is consumed")
	assert.True(t, inst.PrincipalOutstanding(usd).IsZero())
	assertConservation(t, inst)

	consumed = inst.PayInterest(usd, money("12.50"))
	assert.True(t, consumed.Equal(money("12.50")))
	assert.True(t, inst.InterestOutstanding(usd).Equal(money("17.50")))
	assertConservation(t, inst)
}

func TestInstallment_CompletionTracksOutstanding(t *testing.T) {
	inst := testInstallment()
	assert.False(t, inst.Completed)

	inst.PayPrincipal(usd, money("80"))
	inst.PayInterest(usd, money("30"))
	inst.PayFee(usd, money("10"))
	assert.False(t, inst.Completed, "penalty still outstanding")

	inst.PayPenalty(usd, money("5"))
	assert.True(t, inst.Completed)
	assert.True(t, inst.TotalOutstanding(usd).IsZero())
}

func TestInstallment_RefundClampsToPaid(t *testing.T) {
	inst := testInstallment()
	inst.PayPrincipal(usd, money("80"))
	inst.PayInterest(usd, money("30"))
	inst.PayFee(usd, money("10"))
	inst.PayPenalty(usd, money("5"))
	assert.True(t, inst.Completed)

	refunded := inst.RefundPrincipal(usd, money("100"))
	assert.True(t, refunded.Equal(money("80")), "only what was paid comes back")
	assert.True(t, inst.PrincipalPaid.IsZero())
	assert.False(t, inst.Completed, "a refund reopens the period")
	assertConservation(t, inst)

	refunded = inst.RefundInterest(usd, money("12.50"))
	assert.True(t, refunded.Equal(money("12.50")))
	assert.True(t, inst.InterestPaid.Equal(dec("17.5")))

	assert.True(t, inst.RefundFee(usd, money("10")).Equal(money("10")))
	assert.True(t, inst.RefundPenalty(usd, money("5")).Equal(money("5")))
	assertConservation(t, inst)
}

func TestInstallment_WaiveClampsToOutstanding(t *testing.T) {
	inst := testInstallment()
	inst.PayInterest(usd, money("20"))

	waived := inst.WaiveInterest(usd, money("50"))
	assert.True(t, waived.Equal(money("10")))
	assert.True(t, inst.InterestOutstanding(usd).IsZero())
	assertConservation(t, inst)
}

func TestInstallment_WriteOffMovesWholeOutstanding(t *testing.T) {
	inst := testInstallment()
	inst.PayPrincipal(usd, money("30"))

	writtenOff := inst.WriteOffOutstandingPrincipal(usd)
	assert.True(t, writtenOff.Equal(money("50")))
	assert.True(t, inst.PrincipalOutstanding(usd).IsZero())

	interestOff := inst.WriteOffOutstandingInterest(usd)
	assert.True(t, interestOff.Equal(money("30")))
	assert.False(t, inst.Completed, "fee and penalty remain collectible")
	assertConservation(t, inst)
}

func TestInstallment_ResetDerivedComponents(t *testing.T) {
	inst := testInstallment()
	inst.PayPrincipal(usd, money("80"))
	inst.PayInterest(usd, money("30"))
	inst.PayFee(usd, money("10"))
	inst.PayPenalty(usd, money("5"))
	assert.True(t, inst.Completed)

	inst.ResetDerivedComponents()
	assert.False(t, inst.Completed)
	assert.True(t, inst.PrincipalPaid.IsZero())
	assert.True(t, inst.FeeWaived.IsZero())
	assert.True(t, inst.TotalOutstanding(usd).Equal(money("125")))
	assert.True(t, inst.PrincipalDue.Equal(dec("80")), "due amounts survive a reset")
}

func TestInstallment_UpdateChargePortion(t *testing.T) {
	inst := NewInstallment(1, date(2012, 1, 1), date(2012, 2, 1), dec("100"), dec("0"), dec("0"), dec("0"))
	inst.PayPrincipal(usd, money("100"))
	assert.True(t, inst.Completed)

	inst.UpdateChargePortion(usd, money("20"), money("5"), money("0"), money("8"), money("0"), money("0"))
	assert.True(t, inst.FeeDue.Equal(dec("20")))
	assert.True(t, inst.FeeWaived.Equal(dec("5")))
	assert.True(t, inst.PenaltyDue.Equal(dec("8")))
	assert.False(t, inst.Completed, "new charge dues reopen the period")
	assert.True(t, inst.TotalOutstanding(usd).Equal(money("23")))
}

func TestInstallment_IsOverdueOn(t *testing.T) {
	inst := testInstallment()
	assert.False(t, inst.IsOverdueOn(date(2012, 2, 1)))
	assert.True(t, inst.IsOverdueOn(date(2012, 2, 2)))
}
