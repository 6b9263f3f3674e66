package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransition_HappyPath(t *testing.T) {
	status := Transition(EventLoanCreated, "")
	assert.Equal(t, StatusSubmittedAndPendingApproval, status)

	status = Transition(EventLoanApproved, status)
	assert.Equal(t, StatusApproved, status)

	status = Transition(EventLoanDisbursed, status)
	assert.Equal(t, StatusActive, status)

	status = Transition(EventLoanRepaidInFull, status)
	assert.Equal(t, StatusClosedObligationsMet, status)
}

func TestTransition_Table(t *testing.T) {
	cases := []struct {
		event    LoanEvent
		from     LoanStatus
		expected LoanStatus
	}{
		{EventLoanRejected, StatusSubmittedAndPendingApproval, StatusRejected},
		{EventLoanWithdrawn, StatusSubmittedAndPendingApproval, StatusWithdrawnByClient},
		{EventLoanApprovalUndone, StatusApproved, StatusSubmittedAndPendingApproval},
		{EventLoanDisbursalUndone, StatusActive, StatusApproved},
		{EventRepaymentOrWaiver, StatusActive, StatusActive},
		{EventRepaymentOrWaiver, StatusClosedObligationsMet, StatusActive},
		{EventRepaymentOrWaiver, StatusOverpaid, StatusActive},
		{EventLoanOverpayment, StatusActive, StatusOverpaid},
		{EventLoanOverpayment, StatusClosedObligationsMet, StatusOverpaid},
		{EventLoanWrittenOff, StatusActive, StatusClosedWrittenOff},
		{EventLoanRescheduled, StatusActive, StatusClosedRescheduled},
		{EventLoanAdjusted, StatusClosedObligationsMet, StatusActive},
		{EventLoanAdjusted, StatusOverpaid, StatusActive},
		{EventLoanClosed, StatusActive, StatusClosedObligationsMet},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, Transition(tc.event, tc.from), "%s from %s", tc.event, tc.from)
	}
}

// Disallowed transitions are a quiet no-op: the input state comes back.
func TestTransition_DisallowedIsNoOp(t *testing.T) {
	cases := []struct {
		event LoanEvent
		from  LoanStatus
	}{
		{EventLoanApproved, StatusActive},
		{EventLoanDisbursed, StatusSubmittedAndPendingApproval},
		{EventRepaymentOrWaiver, StatusSubmittedAndPendingApproval},
		{EventRepaymentOrWaiver, StatusClosedWrittenOff},
		{EventLoanAdjusted, StatusClosedWrittenOff},
		{EventLoanWrittenOff, StatusClosedObligationsMet},
		{EventLoanRejected, StatusActive},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.from, Transition(tc.event, tc.from), "%s from %s", tc.event, tc.from)
	}
}

func TestLoanStatus_Predicates(t *testing.T) {
	assert.True(t, StatusActive.IsActive())
	assert.True(t, StatusOverpaid.IsOverpaid())
	assert.True(t, StatusClosedObligationsMet.IsClosed())
	assert.True(t, StatusClosedWrittenOff.IsClosed())
	assert.True(t, StatusClosedRescheduled.IsClosed())
	assert.False(t, StatusActive.IsClosed())
	assert.True(t, StatusSubmittedAndPendingApproval.IsSubmittedAndPendingApproval())
	assert.True(t, StatusApproved.IsApproved())
}
