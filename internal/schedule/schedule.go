package schedule

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"loan-engine/internal/domain"
)

// PeriodFrequency is the unit of the repayment interval.
type PeriodFrequency string

const (
	FrequencyDays   PeriodFrequency = "days"
	FrequencyWeeks  PeriodFrequency = "weeks"
	FrequencyMonths PeriodFrequency = "months"
)

// Terms are the loan parameters a schedule is generated from.
type Terms struct {
	Principal            decimal.Decimal `json:"principal"`
	AnnualNominalRate    decimal.Decimal `json:"annual_nominal_rate"`
	NumberOfInstallments int             `json:"number_of_installments"`
	RepayEvery           int             `json:"repay_every"`
	Frequency            PeriodFrequency `json:"frequency"`
	DisbursementDate     time.Time       `json:"disbursement_date"`
	// FirstRepaymentDate overrides the derived first due date when set.
	FirstRepaymentDate time.Time `json:"first_repayment_date,omitempty"`
}

func (t Terms) validate() error {
	if !t.Principal.IsPositive() {
		return fmt.Errorf("schedule terms: principal must be positive, got %s", t.Principal)
	}
	if t.NumberOfInstallments <= 0 {
		return fmt.Errorf("schedule terms: number of installments must be positive, got %d", t.NumberOfInstallments)
	}
	if t.RepayEvery <= 0 {
		return fmt.Errorf("schedule terms: repayment interval must be positive, got %d", t.RepayEvery)
	}
	switch t.Frequency {
	case FrequencyDays, FrequencyWeeks, FrequencyMonths:
	default:
		return fmt.Errorf("schedule terms: unknown repayment frequency %q", t.Frequency)
	}
	if t.AnnualNominalRate.IsNegative() {
		return fmt.Errorf("schedule terms: rate cannot be negative, got %s", t.AnnualNominalRate)
	}
	return nil
}

// periodRate converts the annual nominal percentage rate to the fractional
// rate of one repayment period.
func (t Terms) periodRate() decimal.Decimal {
	periodsPerYear := decimal.NewFromInt(12)
	switch t.Frequency {
	case FrequencyDays:
		periodsPerYear = decimal.NewFromInt(365)
	case FrequencyWeeks:
		periodsPerYear = decimal.NewFromInt(52)
	}
	return t.AnnualNominalRate.
		Div(decimal.NewFromInt(100)).
		Div(periodsPerYear).
		Mul(decimal.NewFromInt(int64(t.RepayEvery)))
}

func (t Terms) dueDate(number int) time.Time {
	if !t.FirstRepaymentDate.IsZero() {
		return advance(t.FirstRepaymentDate, t.Frequency, t.RepayEvery*(number-1))
	}
	return advance(t.DisbursementDate, t.Frequency, t.RepayEvery*number)
}

func advance(from time.Time, frequency PeriodFrequency, amount int) time.Time {
	switch frequency {
	case FrequencyDays:
		return from.AddDate(0, 0, amount)
	case FrequencyWeeks:
		return from.AddDate(0, 0, 7*amount)
	default:
		return from.AddDate(0, amount, 0)
	}
}

// Generator produces an ordered installment list from loan terms. The loan
// aggregate treats the result as opaque.
type Generator interface {
	Generate(currency domain.Currency, terms Terms) ([]*domain.Installment, error)
}

// DecliningBalanceGenerator builds an annuity schedule: equal total
// repayments, interest on the reducing balance, principal making up the
// difference. Rounding residue lands on the final installment.
type DecliningBalanceGenerator struct{}

func NewDecliningBalanceGenerator() DecliningBalanceGenerator {
	return DecliningBalanceGenerator{}
}

func (DecliningBalanceGenerator) Generate(currency domain.Currency, terms Terms) ([]*domain.Installment, error) {
	if err := terms.validate(); err != nil {
		return nil, err
	}
	n := terms.NumberOfInstallments
	rate := terms.periodRate()
	places := currency.DecimalPlaces

	payment := terms.Principal.Div(decimal.NewFromInt(int64(n)))
	if rate.IsPositive() {
		// payment = P * r * (1+r)^n / ((1+r)^n - 1)
		compound := decimal.NewFromInt(1).Add(rate).Pow(decimal.NewFromInt(int64(n)))
		payment = terms.Principal.Mul(rate).Mul(compound).Div(compound.Sub(decimal.NewFromInt(1)))
	}
	payment = payment.Round(places)

	installments := make([]*domain.Installment, 0, n)
	balance := terms.Principal
	from := domain.ToDate(terms.DisbursementDate)
	for number := 1; number <= n; number++ {
		due := domain.ToDate(terms.dueDate(number))
		interest := balance.Mul(rate).Round(places)
		principal := payment.Sub(interest)
		if number == n {
			// the last installment clears whatever balance rounding left
			principal = balance
		}
		installments = append(installments, domain.NewInstallment(number, from, due, principal, interest, decimal.Zero, decimal.Zero))
		balance = balance.Sub(principal)
		from = due
	}
	return installments, nil
}

// FlatGenerator charges interest on the original principal for the whole
// term and spreads principal and interest evenly across installments.
type FlatGenerator struct{}

func NewFlatGenerator() FlatGenerator {
	return FlatGenerator{}
}

func (FlatGenerator) Generate(currency domain.Currency, terms Terms) ([]*domain.Installment, error) {
	if err := terms.validate(); err != nil {
		return nil, err
	}
	n := terms.NumberOfInstallments
	count := decimal.NewFromInt(int64(n))
	places := currency.DecimalPlaces

	totalInterest := terms.Principal.Mul(terms.periodRate()).Mul(count)
	principalPer := terms.Principal.Div(count).Round(places)
	interestPer := totalInterest.Div(count).Round(places)

	installments := make([]*domain.Installment, 0, n)
	from := domain.ToDate(terms.DisbursementDate)
	principalLeft := terms.Principal
	interestLeft := totalInterest.Round(places)
	for number := 1; number <= n; number++ {
		due := domain.ToDate(terms.dueDate(number))
		principal, interest := principalPer, interestPer
		if number == n {
			principal = principalLeft
			interest = interestLeft
		}
		installments = append(installments, domain.NewInstallment(number, from, due, principal, interest, decimal.Zero, decimal.Zero))
		principalLeft = principalLeft.Sub(principal)
		interestLeft = interestLeft.Sub(interest)
		from = due
	}
	return installments, nil
}

// ForMethod returns the generator for an amortization method name.
func ForMethod(method string) (Generator, error) {
	switch method {
	case "", "declining-balance":
		return NewDecliningBalanceGenerator(), nil
	case "flat":
		return NewFlatGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown amortization method %q", method)
	}
}
