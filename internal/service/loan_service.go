package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"loan-engine/internal/domain"
	"loan-engine/internal/processor"
	"loan-engine/internal/repository"
	"loan-engine/internal/schedule"
	"loan-engine/pkg/logger"
)

// SubmitLoanRequest carries everything needed to open a loan application.
type SubmitLoanRequest struct {
	ClientID                 string            `json:"client_id" binding:"required"`
	ExternalID               string            `json:"external_id"`
	CurrencyCode             string            `json:"currency_code"`
	CurrencyDecimalPlaces    int32             `json:"currency_decimal_places"`
	Principal                decimal.Decimal   `json:"principal" binding:"required"`
	AnnualNominalRate        decimal.Decimal   `json:"annual_nominal_rate"`
	NumberOfInstallments     int               `json:"number_of_installments" binding:"required"`
	RepayEvery               int               `json:"repay_every" binding:"required"`
	Frequency                string            `json:"frequency" binding:"required"`
	AmortizationMethod       string            `json:"amortization_method"`
	StrategyCode             string            `json:"strategy_code"`
	ArrearsTolerance         decimal.Decimal   `json:"arrears_tolerance"`
	SubmittedDate            time.Time         `json:"submitted_date" binding:"required"`
	ExpectedDisbursementDate time.Time         `json:"expected_disbursement_date" binding:"required"`
	FirstRepaymentDate       time.Time         `json:"first_repayment_date"`
	Charges                  []ChargeRequest   `json:"charges"`
}

// ChargeRequest describes one charge to attach to a loan.
type ChargeRequest struct {
	Name        string          `json:"name" binding:"required"`
	Timing      string          `json:"timing" binding:"required"`
	Calculation string          `json:"calculation"`
	IsPenalty   bool            `json:"is_penalty"`
	DueDate     time.Time       `json:"due_date"`
	Amount      decimal.Decimal `json:"amount"`
	Percentage  decimal.Decimal `json:"percentage"`
}

// LoanService drives the loan lifecycle up to and including disbursement,
// plus charge management.
type LoanService interface {
	SubmitApplication(ctx context.Context, req SubmitLoanRequest) (*domain.Loan, error)
	GetLoan(ctx context.Context, loanID string) (*domain.Loan, error)
	Approve(ctx context.Context, loanID string, approvedDate time.Time) (*domain.Loan, error)
	UndoApproval(ctx context.Context, loanID string) (*domain.Loan, error)
	Reject(ctx context.Context, loanID string, rejectedDate time.Time) (*domain.Loan, error)
	Withdraw(ctx context.Context, loanID string, withdrawnDate time.Time) (*domain.Loan, error)
	Disburse(ctx context.Context, loanID string, disbursedOn time.Time) (*domain.Loan, error)
	UndoDisbursal(ctx context.Context, loanID string) (*domain.Loan, error)
	AddCharge(ctx context.Context, loanID string, req ChargeRequest) (*domain.Loan, error)
	RemoveCharge(ctx context.Context, loanID, chargeID string) (*domain.Loan, error)
	WaiveCharge(ctx context.Context, loanID, chargeID string, transactionDate time.Time) (*domain.Loan, error)
	Strategies() []string
}

type loanService struct {
	repo            repository.LoanRepository
	registry        *processor.Registry
	accounting      AccountingBridge
	defaultCurrency domain.Currency
}

func NewLoanService(repo repository.LoanRepository, registry *processor.Registry, accounting AccountingBridge, defaultCurrency domain.Currency) LoanService {
	return &loanService{repo: repo, registry: registry, accounting: accounting, defaultCurrency: defaultCurrency}
}

func (s *loanService) SubmitApplication(ctx context.Context, req SubmitLoanRequest) (*domain.Loan, error) {
	log := logger.GetLogger()

	currency := domain.Currency{Code: req.CurrencyCode, DecimalPlaces: req.CurrencyDecimalPlaces}
	if currency.Code == "" {
		currency = s.defaultCurrency
	}
	if currency.DecimalPlaces == 0 {
		currency.DecimalPlaces = 2
	}
	strategyCode := req.StrategyCode
	if strategyCode == "" {
		strategyCode = processor.DefaultStrategyCode
	}
	if _, err := s.registry.Lookup(strategyCode); err != nil {
		return nil, err
	}

	loan, err := domain.SubmitApplication(uuid.New().String(), req.ClientID, currency,
		req.Principal, req.ArrearsTolerance, strategyCode, req.SubmittedDate, req.ExpectedDisbursementDate)
	if err != nil {
		return nil, err
	}
	loan.ExternalID = req.ExternalID

	generator, err := schedule.ForMethod(req.AmortizationMethod)
	if err != nil {
		return nil, err
	}
	installments, err := generator.Generate(currency, schedule.Terms{
		Principal:            req.Principal,
		AnnualNominalRate:    req.AnnualNominalRate,
		NumberOfInstallments: req.NumberOfInstallments,
		RepayEvery:           req.RepayEvery,
		Frequency:            schedule.PeriodFrequency(req.Frequency),
		DisbursementDate:     req.ExpectedDisbursementDate,
		FirstRepaymentDate:   req.FirstRepaymentDate,
	})
	if err != nil {
		return nil, err
	}
	if err := loan.UpdateSchedule(installments); err != nil {
		return nil, err
	}

	proc, err := s.registry.ProcessorFor(strategyCode)
	if err != nil {
		return nil, err
	}
	for _, cr := range req.Charges {
		if err := loan.AddCharge(buildCharge(cr), proc); err != nil {
			return nil, err
		}
	}

	if err := s.persist(ctx, loan); err != nil {
		return nil, err
	}
	log.WithFields(map[string]interface{}{
		"loan_id":      loan.ID,
		"client_id":    loan.ClientID,
		"principal":    loan.Principal.String(),
		"strategy":     loan.StrategyCode,
		"installments": len(loan.Installments),
	}).Info("Loan application submitted")
	return loan, nil
}

func (s *loanService) GetLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	return s.repo.FindByID(ctx, loanID)
}

func (s *loanService) Approve(ctx context.Context, loanID string, approvedDate time.Time) (*domain.Loan, error) {
	return s.mutate(ctx, loanID, "Loan approved", func(loan *domain.Loan, _ *processor.Processor) error {
		return loan.Approve(approvedDate)
	})
}

func (s *loanService) UndoApproval(ctx context.Context, loanID string) (*domain.Loan, error) {
	return s.mutate(ctx, loanID, "Loan approval undone", func(loan *domain.Loan, _ *processor.Processor) error {
		return loan.UndoApproval()
	})
}

func (s *loanService) Reject(ctx context.Context, loanID string, rejectedDate time.Time) (*domain.Loan, error) {
	return s.mutate(ctx, loanID, "Loan rejected", func(loan *domain.Loan, _ *processor.Processor) error {
		return loan.Reject(rejectedDate)
	})
}

func (s *loanService) Withdraw(ctx context.Context, loanID string, withdrawnDate time.Time) (*domain.Loan, error) {
	return s.mutate(ctx, loanID, "Loan withdrawn", func(loan *domain.Loan, _ *processor.Processor) error {
		return loan.Withdraw(withdrawnDate)
	})
}

func (s *loanService) Disburse(ctx context.Context, loanID string, disbursedOn time.Time) (*domain.Loan, error) {
	return s.mutate(ctx, loanID, "Loan disbursed", func(loan *domain.Loan, proc *processor.Processor) error {
		if loan.RequiresScheduleRegenerationOn(disbursedOn) {
			if err := s.regenerateSchedule(loan, disbursedOn); err != nil {
				return err
			}
		}
		return loan.Disburse(uuid.New().String(), disbursedOn, proc)
	})
}

func (s *loanService) UndoDisbursal(ctx context.Context, loanID string) (*domain.Loan, error) {
	return s.mutate(ctx, loanID, "Loan disbursal undone", func(loan *domain.Loan, _ *processor.Processor) error {
		return loan.UndoDisbursal()
	})
}

func (s *loanService) AddCharge(ctx context.Context, loanID string, req ChargeRequest) (*domain.Loan, error) {
	return s.mutate(ctx, loanID, "Charge added", func(loan *domain.Loan, proc *processor.Processor) error {
		return loan.AddCharge(buildCharge(req), proc)
	})
}

func (s *loanService) RemoveCharge(ctx context.Context, loanID, chargeID string) (*domain.Loan, error) {
	return s.mutate(ctx, loanID, "Charge removed", func(loan *domain.Loan, proc *processor.Processor) error {
		return loan.RemoveCharge(chargeID, proc)
	})
}

func (s *loanService) WaiveCharge(ctx context.Context, loanID, chargeID string, transactionDate time.Time) (*domain.Loan, error) {
	return s.mutate(ctx, loanID, "Charge waived", func(loan *domain.Loan, proc *processor.Processor) error {
		_, err := loan.WaiveCharge(chargeID, uuid.New().String(), transactionDate, proc)
		return err
	})
}

func (s *loanService) Strategies() []string {
	return s.registry.Codes()
}

// regenerateSchedule rebuilds the installment list against the actual
// disbursement date, inferring the original terms from the stored schedule.
func (s *loanService) regenerateSchedule(loan *domain.Loan, disbursedOn time.Time) error {
	if len(loan.Installments) == 0 {
		return nil
	}
	shift := domain.ToDate(disbursedOn).Sub(loan.ExpectedDisbursementDate)
	installments := make([]*domain.Installment, len(loan.Installments))
	from := domain.ToDate(disbursedOn)
	for i, old := range loan.Installments {
		due := domain.ToDate(old.DueDate.Add(shift))
		installments[i] = domain.NewInstallment(old.Number, from, due, old.PrincipalDue, old.InterestDue, old.FeeDue, old.PenaltyDue)
		from = due
	}
	loan.ExpectedDisbursementDate = domain.ToDate(disbursedOn)
	return loan.UpdateSchedule(installments)
}

func (s *loanService) mutate(ctx context.Context, loanID, event string, fn func(*domain.Loan, *processor.Processor) error) (*domain.Loan, error) {
	log := logger.GetLogger()
	loan, err := s.repo.FindByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	proc, err := s.registry.ProcessorFor(loan.StrategyCode)
	if err != nil {
		return nil, err
	}
	if err := fn(loan, proc); err != nil {
		log.WithFields(map[string]interface{}{
			"loan_id": loanID,
			"error":   err.Error(),
		}).Warn("Loan operation rejected")
		return nil, err
	}
	if err := s.persist(ctx, loan); err != nil {
		return nil, err
	}
	log.WithFields(map[string]interface{}{
		"loan_id": loanID,
		"status":  string(loan.Status),
	}).Info(event)
	return loan, nil
}

func (s *loanService) persist(ctx context.Context, loan *domain.Loan) error {
	if err := s.repo.Save(ctx, loan); err != nil {
		return err
	}
	if err := s.accounting.PostChangedTransactions(ctx, loan.ID, loan.ChangedTransactions()); err != nil {
		return err
	}
	loan.MarkChangesFlushed()
	return nil
}

func buildCharge(req ChargeRequest) *domain.Charge {
	id := uuid.New().String()
	timing := domain.ChargeTiming(req.Timing)
	calculation := domain.ChargeCalculation(req.Calculation)
	if calculation == "" || calculation == domain.ChargeCalculationFlat {
		return domain.NewFlatCharge(id, req.Name, timing, req.IsPenalty, req.DueDate, req.Amount)
	}
	return domain.NewPercentageCharge(id, req.Name, timing, calculation, req.IsPenalty, req.DueDate, req.Percentage)
}
