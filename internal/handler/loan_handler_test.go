package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"loan-engine/internal/domain"
	"loan-engine/internal/processor"
	"loan-engine/internal/service"
)

type memoryLoanRepository struct {
	loans map[string]*domain.Loan
}

func (r *memoryLoanRepository) Save(_ context.Context, loan *domain.Loan) error {
	r.loans[loan.ID] = loan
	return nil
}

func (r *memoryLoanRepository) FindByID(_ context.Context, id string) (*domain.Loan, error) {
	loan, ok := r.loans[id]
	if !ok {
		return nil, domain.ErrLoanNotFound
	}
	return loan, nil
}

func (r *memoryLoanRepository) FindIDsByStatus(_ context.Context, statuses ...domain.LoanStatus) ([]string, error) {
	var ids []string
	for id, loan := range r.loans {
		for _, status := range statuses {
			if loan.Status == status {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids, nil
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	repo := &memoryLoanRepository{loans: make(map[string]*domain.Loan)}
	registry := processor.NewRegistry()
	accounting := service.NewLoggingAccountingBridge()
	defaultCurrency := domain.NewCurrency("USD", 2)

	loans := NewLoanHandler(service.NewLoanService(repo, registry, accounting, defaultCurrency))
	transactions := NewTransactionHandler(service.NewTransactionService(repo, registry, accounting))

	router := gin.New()
	v1 := router.Group("/api/v1")
	v1.GET("/strategies", loans.ListStrategies)
	v1.POST("/loans", loans.SubmitApplication)
	v1.GET("/loans/:loan_id", loans.GetLoan)
	v1.POST("/loans/:loan_id/approve", loans.Approve)
	v1.POST("/loans/:loan_id/disburse", loans.Disburse)
	v1.POST("/loans/:loan_id/repayments", transactions.MakeRepayment)
	return router
}

func do(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = bytes.NewBuffer(raw)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var parsed map[string]interface{}
	if len(rec.Body.Bytes()) > 0 {
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	}
	return rec, parsed
}

func submitBody() map[string]interface{} {
	return map[string]interface{}{
		"client_id":                  "C1",
		"principal":                  "1200",
		"number_of_installments":     12,
		"repay_every":                1,
		"frequency":                  "months",
		"submitted_date":             "2012-01-01T00:00:00Z",
		"expected_disbursement_date": "2012-01-01T00:00:00Z",
	}
}

func submitLoan(t *testing.T, router *gin.Engine) string {
	t.Helper()
	rec, parsed := do(t, router, http.MethodPost, "/api/v1/loans", submitBody())
	assert.Equal(t, http.StatusCreated, rec.Code)
	data := parsed["data"].(map[string]interface{})
	return data["id"].(string)
}

func TestSubmitApplicationEndpoint(t *testing.T) {
	router := newTestRouter()
	rec, parsed := do(t, router, http.MethodPost, "/api/v1/loans", submitBody())

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, parsed["success"])
	data := parsed["data"].(map[string]interface{})
	assert.NotEmpty(t, data["id"])
	assert.Equal(t, "submitted_and_pending_approval", data["status"])
	assert.Len(t, data["installments"], 12)
}

func TestSubmitApplicationEndpoint_MissingFields(t *testing.T) {
	router := newTestRouter()
	rec, parsed := do(t, router, http.MethodPost, "/api/v1/loans", map[string]interface{}{
		"client_id": "C1",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, false, parsed["success"])
}

func TestGetLoanEndpoint_NotFound(t *testing.T) {
	router := newTestRouter()
	rec, parsed := do(t, router, http.MethodGet, "/api/v1/loans/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, parsed["success"])
}

func TestApproveEndpoint(t *testing.T) {
	router := newTestRouter()
	loanID := submitLoan(t, router)

	rec, parsed := do(t, router, http.MethodPost, fmt.Sprintf("/api/v1/loans/%s/approve", loanID), map[string]interface{}{
		"date": "2012-01-01",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	data := parsed["data"].(map[string]interface{})
	assert.Equal(t, "approved", data["status"])
}

func TestApproveEndpoint_BadDate(t *testing.T) {
	router := newTestRouter()
	loanID := submitLoan(t, router)

	rec, _ := do(t, router, http.MethodPost, fmt.Sprintf("/api/v1/loans/%s/approve", loanID), map[string]interface{}{
		"date": "01/01/2012",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApproveEndpoint_DateBeforeSubmittal(t *testing.T) {
	router := newTestRouter()
	loanID := submitLoan(t, router)

	rec, parsed := do(t, router, http.MethodPost, fmt.Sprintf("/api/v1/loans/%s/approve", loanID), map[string]interface{}{
		"date": "2011-12-25",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	errDetail := parsed["error"].(map[string]interface{})
	assert.Equal(t, "approval.date.before.submittal.date", errDetail["code"])
}

func TestRepaymentEndpoint(t *testing.T) {
	router := newTestRouter()
	loanID := submitLoan(t, router)

	rec, _ := do(t, router, http.MethodPost, fmt.Sprintf("/api/v1/loans/%s/approve", loanID), map[string]interface{}{"date": "2012-01-01"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, router, http.MethodPost, fmt.Sprintf("/api/v1/loans/%s/disburse", loanID), map[string]interface{}{"date": "2012-01-01"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, parsed := do(t, router, http.MethodPost, fmt.Sprintf("/api/v1/loans/%s/repayments", loanID), map[string]interface{}{
		"date":   "2012-02-01",
		"amount": "100",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	data := parsed["data"].(map[string]interface{})
	assert.Equal(t, "repayment", data["type"])

	rec, parsed = do(t, router, http.MethodGet, fmt.Sprintf("/api/v1/loans/%s", loanID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	data = parsed["data"].(map[string]interface{})
	assert.Len(t, data["transactions"], 2)
}

func TestRepaymentEndpoint_BeforeDisbursement(t *testing.T) {
	router := newTestRouter()
	loanID := submitLoan(t, router)

	rec, parsed := do(t, router, http.MethodPost, fmt.Sprintf("/api/v1/loans/%s/repayments", loanID), map[string]interface{}{
		"date":   "2012-02-01",
		"amount": "100",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	errDetail := parsed["error"].(map[string]interface{})
	assert.Equal(t, "loan.not.disbursed", errDetail["code"])
}

func TestListStrategiesEndpoint(t *testing.T) {
	router := newTestRouter()
	rec, parsed := do(t, router, http.MethodGet, "/api/v1/strategies", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, parsed["data"], "mifos-standard")
}
