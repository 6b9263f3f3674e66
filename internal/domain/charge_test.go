package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCharge_FlatLedger(t *testing.T) {
	charge := NewFlatCharge("c1", "processing fee", ChargeTimingSpecifiedDate, false, date(2012, 2, 1), dec("100"))

	consumed := charge.UpdatePaidAmountBy(usd, money("60"))
	assert.True(t, consumed.Equal(money("60")))
	assert.False(t, charge.FullyPaid)
	assert.True(t, charge.AmountOutstanding(usd).Equal(money("40")))

	consumed = charge.UpdatePaidAmountBy(usd, money("75"))
	assert.True(t, consumed.Equal(money("40")), "payment clamps to outstanding")
	assert.True(t, charge.FullyPaid)
	assert.True(t, charge.AmountOutstanding(usd).IsZero())
}

func TestCharge_PercentageCalculation(t *testing.T) {
	cases := []struct {
		calculation ChargeCalculation
		expected    string
	}{
		{ChargeCalculationPercentOfPrincipal, "25"},
		{ChargeCalculationPercentOfInterest, "5"},
		{ChargeCalculationPercentOfPrincipalAndInterest, "30"},
	}
	for _, tc := range cases {
		charge := NewPercentageCharge("c1", "fee", ChargeTimingSpecifiedDate, tc.calculation, false, date(2012, 2, 1), dec("2.5"))
		charge.RecalculateAmount(dec("1000"), dec("200"))
		assert.True(t, charge.Amount.Equal(dec(tc.expected)), "calculation %s", tc.calculation)
	}
}

func TestCharge_FlatAmountSurvivesRecalculation(t *testing.T) {
	charge := NewFlatCharge("c1", "fee", ChargeTimingSpecifiedDate, false, date(2012, 2, 1), dec("100"))
	charge.RecalculateAmount(dec("1000"), dec("200"))
	assert.True(t, charge.Amount.Equal(dec("100")))
}

func TestCharge_WaiveTakesFullOutstanding(t *testing.T) {
	charge := NewFlatCharge("c1", "fee", ChargeTimingSpecifiedDate, false, date(2012, 2, 1), dec("100"))
	charge.UpdatePaidAmountBy(usd, money("30"))

	waived := charge.Waive(usd)
	assert.True(t, waived.Equal(money("70")))
	assert.True(t, charge.IsWaived)
	assert.True(t, charge.IsPaidOrWaived(usd))
	assert.True(t, charge.AmountOutstanding(usd).IsZero())
}

func TestCharge_WriteOff(t *testing.T) {
	charge := NewFlatCharge("c1", "penalty", ChargeTimingSpecifiedDate, true, date(2012, 2, 1), dec("50"))
	writtenOff := charge.WriteOff(usd)
	assert.True(t, writtenOff.Equal(money("50")))
	assert.True(t, charge.AmountOutstanding(usd).IsZero())
}

func TestCharge_ResetPaidAmount(t *testing.T) {
	charge := NewFlatCharge("c1", "fee", ChargeTimingSpecifiedDate, false, date(2012, 2, 1), dec("100"))
	charge.UpdatePaidAmountBy(usd, money("100"))
	assert.True(t, charge.FullyPaid)

	charge.ResetPaidAmount()
	assert.False(t, charge.FullyPaid)
	assert.True(t, charge.Paid.IsZero())
	assert.True(t, charge.AmountOutstanding(usd).Equal(money("100")))
}

func TestCharge_ResetToOriginal(t *testing.T) {
	charge := NewFlatCharge("c1", "fee", ChargeTimingSpecifiedDate, false, date(2012, 2, 1), dec("100"))
	charge.UpdatePaidAmountBy(usd, money("30"))
	charge.Waive(usd)

	charge.ResetToOriginal()
	assert.False(t, charge.IsWaived, "unlike a replay reset, the waiver is undone too")
	assert.True(t, charge.Paid.IsZero())
	assert.True(t, charge.Waived.IsZero())
	assert.True(t, charge.AmountOutstanding(usd).Equal(money("100")))
}

func TestCharge_IsDueForCollectionBetween(t *testing.T) {
	charge := NewFlatCharge("c1", "fee", ChargeTimingSpecifiedDate, false, date(2012, 2, 1), dec("10"))

	assert.True(t, charge.IsDueForCollectionBetween(date(2012, 1, 1), date(2012, 2, 1)), "due date at period end is included")
	assert.False(t, charge.IsDueForCollectionBetween(date(2012, 2, 1), date(2012, 3, 1)), "period start is excluded")
	assert.False(t, charge.IsDueForCollectionBetween(date(2012, 2, 2), date(2012, 3, 1)))
}
