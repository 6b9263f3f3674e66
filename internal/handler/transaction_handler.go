package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"loan-engine/internal/domain"
	"loan-engine/internal/service"
	"loan-engine/pkg/response"
)

type TransactionHandler struct {
	service service.TransactionService
}

func NewTransactionHandler(service service.TransactionService) *TransactionHandler {
	return &TransactionHandler{service: service}
}

type transactionRequest struct {
	Date   string          `json:"date" binding:"required"`
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// MakeRepayment godoc
// @Summary Post a repayment
// @Description Allocate a repayment across the loan schedule using its configured strategy
// @Tags transactions
// @Accept json
// @Produce json
// @Param loan_id path string true "Loan ID"
// @Param request body transactionRequest true "Repayment"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/loans/{loan_id}/repayments [post]
func (h *TransactionHandler) MakeRepayment(c *gin.Context) {
	h.post(c, "Repayment posted", h.service.MakeRepayment)
}

// WaiveInterest godoc
// @Summary Waive outstanding interest
// @Tags transactions
// @Accept json
// @Produce json
// @Param loan_id path string true "Loan ID"
// @Param request body transactionRequest true "Interest waiver"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/loans/{loan_id}/waive-interest [post]
func (h *TransactionHandler) WaiveInterest(c *gin.Context) {
	h.post(c, "Interest waived", h.service.WaiveInterest)
}

// AdjustTransaction godoc
// @Summary Adjust a posted transaction
// @Description Reverse a repayment or waiver through a contra entry and replay history; amount zero reverses without replacement
// @Tags transactions
// @Accept json
// @Produce json
// @Param loan_id path string true "Loan ID"
// @Param transaction_id path string true "Transaction ID"
// @Param request body transactionRequest true "Replacement transaction"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/loans/{loan_id}/transactions/{transaction_id}/adjust [post]
func (h *TransactionHandler) AdjustTransaction(c *gin.Context) {
	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		response.BadRequest(c, "Invalid date format", "Use YYYY-MM-DD format")
		return
	}
	tx, err := h.service.AdjustTransaction(c.Request.Context(), c.Param("loan_id"), c.Param("transaction_id"), date, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Transaction adjusted", tx)
}

// WriteOff godoc
// @Summary Write off a loan
// @Description Move all outstanding principal and interest to written off; fees and penalties stay collectible
// @Tags transactions
// @Accept json
// @Produce json
// @Param loan_id path string true "Loan ID"
// @Param request body dateRequest true "Write-off date"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/loans/{loan_id}/write-off [post]
func (h *TransactionHandler) WriteOff(c *gin.Context) {
	date, ok := bindDate(c)
	if !ok {
		return
	}
	tx, err := h.service.WriteOff(c.Request.Context(), c.Param("loan_id"), date)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Loan written off", tx)
}

// Close godoc
// @Summary Close a loan
// @Description Close a settled loan; a residue within the arrears tolerance is written off
// @Tags transactions
// @Accept json
// @Produce json
// @Param loan_id path string true "Loan ID"
// @Param request body dateRequest true "Closure date"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/loans/{loan_id}/close [post]
func (h *TransactionHandler) Close(c *gin.Context) {
	date, ok := bindDate(c)
	if !ok {
		return
	}
	loan, err := h.service.Close(c.Request.Context(), c.Param("loan_id"), date)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Loan closed", loan)
}

// CloseAsRescheduled godoc
// @Summary Close a loan whose balance moves to a new contract
// @Tags transactions
// @Accept json
// @Produce json
// @Param loan_id path string true "Loan ID"
// @Param request body dateRequest true "Closure date"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/loans/{loan_id}/close-rescheduled [post]
func (h *TransactionHandler) CloseAsRescheduled(c *gin.Context) {
	date, ok := bindDate(c)
	if !ok {
		return
	}
	loan, err := h.service.CloseAsRescheduled(c.Request.Context(), c.Param("loan_id"), date)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Loan closed as rescheduled", loan)
}

// RecoveryPayment godoc
// @Summary Post a recovery payment against a written-off loan
// @Tags transactions
// @Accept json
// @Produce json
// @Param loan_id path string true "Loan ID"
// @Param request body transactionRequest true "Recovery payment"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/loans/{loan_id}/recovery-payments [post]
func (h *TransactionHandler) RecoveryPayment(c *gin.Context) {
	h.post(c, "Recovery payment posted", h.service.RecoveryPayment)
}

// Refund godoc
// @Summary Refund an overpayment
// @Tags transactions
// @Accept json
// @Produce json
// @Param loan_id path string true "Loan ID"
// @Param request body transactionRequest true "Refund"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/loans/{loan_id}/refunds [post]
func (h *TransactionHandler) Refund(c *gin.Context) {
	h.post(c, "Refund posted", h.service.Refund)
}

func (h *TransactionHandler) post(c *gin.Context, message string, fn func(ctx context.Context, loanID string, date time.Time, amount decimal.Decimal) (*domain.Transaction, error)) {
	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		response.BadRequest(c, "Invalid date format", "Use YYYY-MM-DD format")
		return
	}
	if !req.Amount.IsPositive() {
		response.BadRequest(c, "Invalid amount", "Amount must be positive")
		return
	}
	tx, err := fn(c.Request.Context(), c.Param("loan_id"), date, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, message, tx)
}
