package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"loan-engine/pkg/logger"
)

// RepaymentInstruction is one row of a bulk repayment file, as delivered by
// branch back offices or a payment gateway settlement report.
type RepaymentInstruction struct {
	LoanID          string          `json:"loan_id"`
	TransactionDate time.Time       `json:"transaction_date"`
	Amount          decimal.Decimal `json:"amount"`
	Reference       string          `json:"reference"`
}

// ParseRepaymentCSV reads a bulk repayment file with the header
// loan_id,transaction_date,amount,reference. Dates are yyyy-mm-dd. Rows that
// fail to parse are collected as errors; valid rows are still returned so a
// partially bad file can be processed.
func ParseRepaymentCSV(r io.Reader) ([]RepaymentInstruction, []error) {
	log := logger.GetLogger()
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, []error{fmt.Errorf("reading header: %w", err)}
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"loan_id", "transaction_date", "amount"} {
		if _, ok := col[required]; !ok {
			return nil, []error{fmt.Errorf("missing required column %q", required)}
		}
	}

	var instructions []RepaymentInstruction
	var errs []error
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		instruction, err := parseRecord(record, col)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		instructions = append(instructions, instruction)
	}

	log.WithFields(map[string]interface{}{
		"rows_parsed": len(instructions),
		"rows_failed": len(errs),
	}).Info("Parsed bulk repayment file")
	return instructions, errs
}

func parseRecord(record []string, col map[string]int) (RepaymentInstruction, error) {
	var instruction RepaymentInstruction

	instruction.LoanID = strings.TrimSpace(record[col["loan_id"]])
	if instruction.LoanID == "" {
		return instruction, fmt.Errorf("empty loan_id")
	}

	date, err := time.Parse("2006-01-02", strings.TrimSpace(record[col["transaction_date"]]))
	if err != nil {
		return instruction, fmt.Errorf("invalid transaction_date: %w", err)
	}
	instruction.TransactionDate = date

	amount, err := decimal.NewFromString(strings.TrimSpace(record[col["amount"]]))
	if err != nil {
		return instruction, fmt.Errorf("invalid amount: %w", err)
	}
	if !amount.IsPositive() {
		return instruction, fmt.Errorf("amount must be positive, got %s", amount)
	}
	instruction.Amount = amount

	if idx, ok := col["reference"]; ok && idx < len(record) {
		instruction.Reference = strings.TrimSpace(record[idx])
	}
	return instruction, nil
}
