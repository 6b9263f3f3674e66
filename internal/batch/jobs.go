package batch

import (
	"context"
	"io"
	"time"

	"loan-engine/internal/domain"
	"loan-engine/internal/parser"
	"loan-engine/internal/processor"
	"loan-engine/internal/repository"
	"loan-engine/internal/service"
	"loan-engine/pkg/logger"
)

// JobError records one loan a batch job could not process.
type JobError struct {
	LoanID string
	Err    error
}

// JobResult summarizes a batch run. Jobs never abort on a single bad loan;
// every failure is accumulated here and the run continues.
type JobResult struct {
	Processed int
	Errors    []JobError
}

func (r *JobResult) fail(loanID string, err error) {
	r.Errors = append(r.Errors, JobError{LoanID: loanID, Err: err})
}

// Holiday describes a period during which repayments cannot be collected.
// Due dates falling inside the period move either to the next scheduled
// repayment date or to a fixed replacement date.
type Holiday struct {
	FromDate            time.Time
	ToDate              time.Time
	RepaymentsScheduledTo time.Time
	MoveToNextRepayment bool
}

// ApplyHoliday shifts affected due dates on every open loan and replays each
// loan's history so derived balances follow the new dates.
func ApplyHoliday(ctx context.Context, repo repository.LoanRepository, registry *processor.Registry, holiday Holiday) JobResult {
	log := logger.GetLogger()
	var result JobResult

	ids, err := repo.FindIDsByStatus(ctx, domain.StatusActive, domain.StatusApproved)
	if err != nil {
		result.fail("", err)
		return result
	}

	for _, id := range ids {
		if err := applyHolidayToLoan(ctx, repo, registry, id, holiday); err != nil {
			result.fail(id, err)
			continue
		}
		result.Processed++
	}

	log.WithFields(map[string]interface{}{
		"holiday_from": holiday.FromDate.Format("2006-01-02"),
		"holiday_to":   holiday.ToDate.Format("2006-01-02"),
		"processed":    result.Processed,
		"failed":       len(result.Errors),
	}).Info("Holiday reschedule job finished")
	return result
}

func applyHolidayToLoan(ctx context.Context, repo repository.LoanRepository, registry *processor.Registry, loanID string, holiday Holiday) error {
	loan, err := repo.FindByID(ctx, loanID)
	if err != nil {
		return err
	}

	shifted := false
	for i, installment := range loan.Installments {
		due := installment.DueDate
		if due.Before(holiday.FromDate) || due.After(holiday.ToDate) {
			continue
		}
		if holiday.MoveToNextRepayment {
			if i+1 < len(loan.Installments) {
				installment.DueDate = loan.Installments[i+1].DueDate
			} else {
				installment.DueDate = domain.ToDate(holiday.ToDate.AddDate(0, 0, 1))
			}
		} else {
			installment.DueDate = domain.ToDate(holiday.RepaymentsScheduledTo)
		}
		shifted = true
	}
	if !shifted {
		return nil
	}

	proc, err := registry.ProcessorFor(loan.StrategyCode)
	if err != nil {
		return err
	}
	loan.ReprocessTransactions(proc)
	return repo.Save(ctx, loan)
}

// ReprocessLoans replays the full transaction history of every active or
// overpaid loan, repairing derived state after data fixes.
func ReprocessLoans(ctx context.Context, repo repository.LoanRepository, registry *processor.Registry) JobResult {
	log := logger.GetLogger()
	var result JobResult

	ids, err := repo.FindIDsByStatus(ctx, domain.StatusActive, domain.StatusOverpaid, domain.StatusClosedObligationsMet)
	if err != nil {
		result.fail("", err)
		return result
	}

	for _, id := range ids {
		loan, err := repo.FindByID(ctx, id)
		if err != nil {
			result.fail(id, err)
			continue
		}
		proc, err := registry.ProcessorFor(loan.StrategyCode)
		if err != nil {
			result.fail(id, err)
			continue
		}
		loan.ReprocessTransactions(proc)
		if err := repo.Save(ctx, loan); err != nil {
			result.fail(id, err)
			continue
		}
		result.Processed++
	}

	log.WithFields(map[string]interface{}{
		"processed": result.Processed,
		"failed":    len(result.Errors),
	}).Info("Loan reprocessing job finished")
	return result
}

// ImportRepayments posts every repayment instruction in a bulk CSV file.
// Parse failures and posting failures are accumulated; good rows always go
// through.
func ImportRepayments(ctx context.Context, transactions service.TransactionService, file io.Reader) JobResult {
	log := logger.GetLogger()
	var result JobResult

	instructions, parseErrs := parser.ParseRepaymentCSV(file)
	for _, err := range parseErrs {
		result.fail("", err)
	}

	for _, instruction := range instructions {
		if _, err := transactions.MakeRepayment(ctx, instruction.LoanID, instruction.TransactionDate, instruction.Amount); err != nil {
			result.fail(instruction.LoanID, err)
			continue
		}
		result.Processed++
	}

	log.WithFields(map[string]interface{}{
		"processed": result.Processed,
		"failed":    len(result.Errors),
	}).Info("Bulk repayment import finished")
	return result
}
