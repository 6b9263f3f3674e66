package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"loan-engine/internal/domain"
	"loan-engine/internal/processor"
	"loan-engine/internal/repository"
	"loan-engine/pkg/logger"
)

// TransactionService posts monetary events against active loans.
type TransactionService interface {
	MakeRepayment(ctx context.Context, loanID string, transactionDate time.Time, amount decimal.Decimal) (*domain.Transaction, error)
	WaiveInterest(ctx context.Context, loanID string, transactionDate time.Time, amount decimal.Decimal) (*domain.Transaction, error)
	AdjustTransaction(ctx context.Context, loanID, transactionID string, transactionDate time.Time, amount decimal.Decimal) (*domain.Transaction, error)
	WriteOff(ctx context.Context, loanID string, writtenOffOn time.Time) (*domain.Transaction, error)
	Close(ctx context.Context, loanID string, closedOn time.Time) (*domain.Loan, error)
	CloseAsRescheduled(ctx context.Context, loanID string, closedOn time.Time) (*domain.Loan, error)
	RecoveryPayment(ctx context.Context, loanID string, transactionDate time.Time, amount decimal.Decimal) (*domain.Transaction, error)
	Refund(ctx context.Context, loanID string, transactionDate time.Time, amount decimal.Decimal) (*domain.Transaction, error)
}

type transactionService struct {
	repo       repository.LoanRepository
	registry   *processor.Registry
	accounting AccountingBridge
}

func NewTransactionService(repo repository.LoanRepository, registry *processor.Registry, accounting AccountingBridge) TransactionService {
	return &transactionService{repo: repo, registry: registry, accounting: accounting}
}

func (s *transactionService) MakeRepayment(ctx context.Context, loanID string, transactionDate time.Time, amount decimal.Decimal) (*domain.Transaction, error) {
	return s.post(ctx, loanID, "Repayment posted", func(loan *domain.Loan, proc *processor.Processor) (*domain.Transaction, error) {
		return loan.MakeRepayment(uuid.New().String(), transactionDate, amount, proc)
	})
}

func (s *transactionService) WaiveInterest(ctx context.Context, loanID string, transactionDate time.Time, amount decimal.Decimal) (*domain.Transaction, error) {
	return s.post(ctx, loanID, "Interest waived", func(loan *domain.Loan, proc *processor.Processor) (*domain.Transaction, error) {
		return loan.WaiveInterest(uuid.New().String(), transactionDate, amount, proc)
	})
}

func (s *transactionService) AdjustTransaction(ctx context.Context, loanID, transactionID string, transactionDate time.Time, amount decimal.Decimal) (*domain.Transaction, error) {
	return s.post(ctx, loanID, "Transaction adjusted", func(loan *domain.Loan, proc *processor.Processor) (*domain.Transaction, error) {
		return loan.AdjustTransaction(transactionID, uuid.New().String(), transactionDate, amount, proc)
	})
}

func (s *transactionService) WriteOff(ctx context.Context, loanID string, writtenOffOn time.Time) (*domain.Transaction, error) {
	return s.post(ctx, loanID, "Loan written off", func(loan *domain.Loan, proc *processor.Processor) (*domain.Transaction, error) {
		return loan.CloseAsWrittenOff(uuid.New().String(), writtenOffOn, proc)
	})
}

func (s *transactionService) Close(ctx context.Context, loanID string, closedOn time.Time) (*domain.Loan, error) {
	var result *domain.Loan
	_, err := s.post(ctx, loanID, "Loan closed", func(loan *domain.Loan, proc *processor.Processor) (*domain.Transaction, error) {
		result = loan
		return loan.Close(uuid.New().String(), closedOn, proc)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *transactionService) CloseAsRescheduled(ctx context.Context, loanID string, closedOn time.Time) (*domain.Loan, error) {
	var result *domain.Loan
	_, err := s.post(ctx, loanID, "Loan closed as rescheduled", func(loan *domain.Loan, _ *processor.Processor) (*domain.Transaction, error) {
		result = loan
		return nil, loan.CloseAsRescheduled(closedOn)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *transactionService) RecoveryPayment(ctx context.Context, loanID string, transactionDate time.Time, amount decimal.Decimal) (*domain.Transaction, error) {
	return s.post(ctx, loanID, "Recovery payment posted", func(loan *domain.Loan, proc *processor.Processor) (*domain.Transaction, error) {
		return loan.RecoveryPayment(uuid.New().String(), transactionDate, amount, proc)
	})
}

func (s *transactionService) Refund(ctx context.Context, loanID string, transactionDate time.Time, amount decimal.Decimal) (*domain.Transaction, error) {
	return s.post(ctx, loanID, "Refund posted", func(loan *domain.Loan, proc *processor.Processor) (*domain.Transaction, error) {
		return loan.Refund(uuid.New().String(), transactionDate, amount, proc)
	})
}

func (s *transactionService) post(ctx context.Context, loanID, event string, fn func(*domain.Loan, *processor.Processor) (*domain.Transaction, error)) (*domain.Transaction, error) {
	log := logger.GetLogger()
	loan, err := s.repo.FindByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	proc, err := s.registry.ProcessorFor(loan.StrategyCode)
	if err != nil {
		return nil, err
	}
	tx, err := fn(loan, proc)
	if err != nil {
		log.WithFields(map[string]interface{}{
			"loan_id": loanID,
			"error":   err.Error(),
		}).Warn("Transaction rejected")
		return nil, err
	}
	if err := s.repo.Save(ctx, loan); err != nil {
		return nil, err
	}
	if err := s.accounting.PostChangedTransactions(ctx, loan.ID, loan.ChangedTransactions()); err != nil {
		return nil, err
	}
	loan.MarkChangesFlushed()

	fields := map[string]interface{}{
		"loan_id": loanID,
		"status":  string(loan.Status),
	}
	if tx != nil {
		fields["transaction_id"] = tx.ID
		fields["amount"] = tx.Amount.String()
	}
	log.WithFields(fields).Info(event)
	return tx, nil
}
