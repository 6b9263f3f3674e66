package domain

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	StatusSubmittedAndPendingApproval LoanStatus = "submitted_and_pending_approval"
	StatusApproved                    LoanStatus = "approved"
	StatusActive                      LoanStatus = "active"
	StatusRejected                    LoanStatus = "rejected"
	StatusWithdrawnByClient           LoanStatus = "withdrawn_by_client"
	StatusClosedObligationsMet        LoanStatus = "closed_obligations_met"
	StatusClosedWrittenOff            LoanStatus = "closed_written_off"
	StatusClosedRescheduled           LoanStatus = "closed_rescheduled"
	StatusOverpaid                    LoanStatus = "overpaid"
)

// LoanEvent is something that happens to a loan which may move it between
// lifecycle states.
type LoanEvent string

const (
	EventLoanCreated         LoanEvent = "loan_created"
	EventLoanRejected        LoanEvent = "loan_rejected"
	EventLoanApproved        LoanEvent = "loan_approved"
	EventLoanWithdrawn       LoanEvent = "loan_withdrawn"
	EventLoanApprovalUndone  LoanEvent = "loan_approval_undone"
	EventLoanDisbursed       LoanEvent = "loan_disbursed"
	EventLoanDisbursalUndone LoanEvent = "loan_disbursal_undone"
	EventRepaymentOrWaiver   LoanEvent = "loan_repayment_or_waiver"
	EventLoanRepaidInFull    LoanEvent = "loan_repaid_in_full"
	EventLoanWrittenOff      LoanEvent = "loan_written_off"
	EventLoanRescheduled     LoanEvent = "loan_rescheduled"
	EventLoanOverpayment     LoanEvent = "loan_overpayment"
	EventLoanClosed          LoanEvent = "loan_closed"
	EventLoanAdjusted        LoanEvent = "loan_adjusted"
)

// transitions maps an event to the set of states it moves, keyed by the
// current state. Pairs absent from the table leave the state unchanged.
var transitions = map[LoanEvent]map[LoanStatus]LoanStatus{
	EventLoanRejected: {
		StatusSubmittedAndPendingApproval: StatusRejected,
	},
	EventLoanApproved: {
		StatusSubmittedAndPendingApproval: StatusApproved,
	},
	EventLoanWithdrawn: {
		StatusSubmittedAndPendingApproval: StatusWithdrawnByClient,
	},
	EventLoanApprovalUndone: {
		StatusApproved: StatusSubmittedAndPendingApproval,
	},
	EventLoanDisbursed: {
		StatusApproved: StatusActive,
	},
	EventLoanDisbursalUndone: {
		StatusActive: StatusApproved,
	},
	EventRepaymentOrWaiver: {
		StatusActive:               StatusActive,
		StatusClosedObligationsMet: StatusActive,
		StatusOverpaid:             StatusActive,
	},
	EventLoanRepaidInFull: {
		StatusActive:               StatusClosedObligationsMet,
		StatusOverpaid:             StatusClosedObligationsMet,
		StatusClosedObligationsMet: StatusClosedObligationsMet,
	},
	EventLoanWrittenOff: {
		StatusActive: StatusClosedWrittenOff,
	},
	EventLoanRescheduled: {
		StatusActive: StatusClosedRescheduled,
	},
	EventLoanOverpayment: {
		StatusActive:               StatusOverpaid,
		StatusClosedObligationsMet: StatusOverpaid,
	},
	EventLoanClosed: {
		StatusActive:   StatusClosedObligationsMet,
		StatusOverpaid: StatusClosedObligationsMet,
	},
	EventLoanAdjusted: {
		StatusClosedObligationsMet: StatusActive,
		StatusClosedRescheduled:    StatusActive,
		StatusOverpaid:             StatusActive,
	},
}

// Transition returns the state a loan in from moves to when event occurs.
// Events not allowed in the current state are a quiet no-op, the input state
// comes back unchanged. EventLoanCreated always yields the initial state.
func Transition(event LoanEvent, from LoanStatus) LoanStatus {
	if event == EventLoanCreated {
		return StatusSubmittedAndPendingApproval
	}
	if to, ok := transitions[event][from]; ok {
		return to
	}
	return from
}

func (s LoanStatus) IsActive() bool {
	return s == StatusActive
}

func (s LoanStatus) IsOverpaid() bool {
	return s == StatusOverpaid
}

func (s LoanStatus) IsClosed() bool {
	switch s {
	case StatusClosedObligationsMet, StatusClosedWrittenOff, StatusClosedRescheduled:
		return true
	}
	return false
}

func (s LoanStatus) IsSubmittedAndPendingApproval() bool {
	return s == StatusSubmittedAndPendingApproval
}

func (s LoanStatus) IsApproved() bool {
	return s == StatusApproved
}
