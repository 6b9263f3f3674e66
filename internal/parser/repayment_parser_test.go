package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseRepaymentCSV_ValidFile(t *testing.T) {
	file := `loan_id,transaction_date,amount,reference
L1,2012-02-01,110.00,BR-001
L2,2012-02-01,57.50,BR-002
`
	instructions, errs := ParseRepaymentCSV(strings.NewReader(file))
	assert.Empty(t, errs)
	assert.Len(t, instructions, 2)

	assert.Equal(t, "L1", instructions[0].LoanID)
	assert.Equal(t, time.Date(2012, 2, 1, 0, 0, 0, 0, time.UTC), instructions[0].TransactionDate)
	assert.True(t, instructions[0].Amount.Equal(decimal.RequireFromString("110")))
	assert.Equal(t, "BR-001", instructions[0].Reference)
	assert.Equal(t, "BR-002", instructions[1].Reference)
}

func TestParseRepaymentCSV_BadRowsAreCollected(t *testing.T) {
	file := `loan_id,transaction_date,amount,reference
L1,2012-02-01,110.00,ok
,2012-02-01,50.00,missing loan
L2,01/02/2012,50.00,bad date
L3,2012-02-01,abc,bad amount
L4,2012-02-01,-5,negative
L5,2012-02-03,25.00,ok
`
	instructions, errs := ParseRepaymentCSV(strings.NewReader(file))
	assert.Len(t, errs, 4)
	assert.Len(t, instructions, 2)
	assert.Equal(t, "L1", instructions[0].LoanID)
	assert.Equal(t, "L5", instructions[1].LoanID)

	assert.ErrorContains(t, errs[0], "line 3")
	assert.ErrorContains(t, errs[0], "loan_id")
	assert.ErrorContains(t, errs[1], "transaction_date")
	assert.ErrorContains(t, errs[2], "amount")
	assert.ErrorContains(t, errs[3], "positive")
}

func TestParseRepaymentCSV_MissingColumn(t *testing.T) {
	file := `loan_id,reference
L1,BR-001
`
	instructions, errs := ParseRepaymentCSV(strings.NewReader(file))
	assert.Nil(t, instructions)
	assert.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], "transaction_date")
}

func TestParseRepaymentCSV_HeaderCaseAndReferenceOptional(t *testing.T) {
	file := `Loan_ID, Transaction_Date, Amount
L1, 2012-02-01, 110.00
`
	instructions, errs := ParseRepaymentCSV(strings.NewReader(file))
	assert.Empty(t, errs)
	assert.Len(t, instructions, 1)
	assert.Equal(t, "", instructions[0].Reference)
}

func TestParseRepaymentCSV_EmptyFile(t *testing.T) {
	_, errs := ParseRepaymentCSV(strings.NewReader(""))
	assert.Len(t, errs, 1)
}
