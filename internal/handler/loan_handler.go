package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"loan-engine/internal/domain"
	"loan-engine/internal/service"
	"loan-engine/pkg/logger"
	"loan-engine/pkg/response"
)

type LoanHandler struct {
	service service.LoanService
}

func NewLoanHandler(service service.LoanService) *LoanHandler {
	return &LoanHandler{service: service}
}

type dateRequest struct {
	Date string `json:"date" binding:"required"`
}

// SubmitApplication godoc
// @Summary Submit a loan application
// @Description Open a new loan application with its repayment schedule and charges
// @Tags loans
// @Accept json
// @Produce json
// @Param request body service.SubmitLoanRequest true "Loan application"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/loans [post]
func (h *LoanHandler) SubmitApplication(c *gin.Context) {
	var req service.SubmitLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.GetLogger().WithError(err).Error("Invalid request")
		response.ValidationError(c, err.Error())
		return
	}

	loan, err := h.service.SubmitApplication(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, "Loan application submitted", loan)
}

// GetLoan godoc
// @Summary Get a loan
// @Description Fetch a loan aggregate with its schedule, charges and transactions
// @Tags loans
// @Produce json
// @Param loan_id path string true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/loans/{loan_id} [get]
func (h *LoanHandler) GetLoan(c *gin.Context) {
	loan, err := h.service.GetLoan(c.Request.Context(), c.Param("loan_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Loan retrieved", loan)
}

// Approve godoc
// @Summary Approve a loan
// @Tags loans
// @Accept json
// @Produce json
// @Param loan_id path string true "Loan ID"
// @Param request body dateRequest true "Approval date"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/loans/{loan_id}/approve [post]
func (h *LoanHandler) Approve(c *gin.Context) {
	h.lifecycle(c, "Loan approved", h.service.Approve)
}

// Reject godoc
// @Summary Reject a loan application
// @Tags loans
// @Accept json
// @Produce json
// @Param loan_id path string true "Loan ID"
// @Param request body dateRequest true "Rejection date"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/loans/{loan_id}/reject [post]
func (h *LoanHandler) Reject(c *gin.Context) {
	h.lifecycle(c, "Loan rejected", h.service.Reject)
}

// Withdraw godoc
// @Summary Withdraw a loan application
// @Tags loans
// @Accept json
// @Produce json
// @Param loan_id path string true "Loan ID"
// @Param request body dateRequest true "Withdrawal date"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/loans/{loan_id}/withdraw [post]
func (h *LoanHandler) Withdraw(c *gin.Context) {
	h.lifecycle(c, "Loan withdrawn", h.service.Withdraw)
}

// UndoApproval godoc
// @Summary Undo loan approval
// @Tags loans
// @Produce json
// @Param loan_id path string true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/loans/{loan_id}/undo-approval [post]
func (h *LoanHandler) UndoApproval(c *gin.Context) {
	loan, err := h.service.UndoApproval(c.Request.Context(), c.Param("loan_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Loan approval undone", loan)
}

// Disburse godoc
// @Summary Disburse a loan
// @Description Activate an approved loan, settling due-at-disbursement charges
// @Tags loans
// @Accept json
// @Produce json
// @Param loan_id path string true "Loan ID"
// @Param request body dateRequest true "Disbursement date"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/loans/{loan_id}/disburse [post]
func (h *LoanHandler) Disburse(c *gin.Context) {
	h.lifecycle(c, "Loan disbursed", h.service.Disburse)
}

// UndoDisbursal godoc
// @Summary Undo loan disbursal
// @Tags loans
// @Produce json
// @Param loan_id path string true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/loans/{loan_id}/undo-disbursal [post]
func (h *LoanHandler) UndoDisbursal(c *gin.Context) {
	loan, err := h.service.UndoDisbursal(c.Request.Context(), c.Param("loan_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Loan disbursal undone", loan)
}

// AddCharge godoc
// @Summary Add a charge to a loan
// @Tags charges
// @Accept json
// @Produce json
// @Param loan_id path string true "Loan ID"
// @Param request body service.ChargeRequest true "Charge"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/loans/{loan_id}/charges [post]
func (h *LoanHandler) AddCharge(c *gin.Context) {
	var req service.ChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}
	loan, err := h.service.AddCharge(c.Request.Context(), c.Param("loan_id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Charge added", loan)
}

// RemoveCharge godoc
// @Summary Remove an unpaid charge from a loan
// @Tags charges
// @Produce json
// @Param loan_id path string true "Loan ID"
// @Param charge_id path string true "Charge ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/loans/{loan_id}/charges/{charge_id} [delete]
func (h *LoanHandler) RemoveCharge(c *gin.Context) {
	loan, err := h.service.RemoveCharge(c.Request.Context(), c.Param("loan_id"), c.Param("charge_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Charge removed", loan)
}

// WaiveCharge godoc
// @Summary Waive the outstanding balance of a charge
// @Tags charges
// @Accept json
// @Produce json
// @Param loan_id path string true "Loan ID"
// @Param charge_id path string true "Charge ID"
// @Param request body dateRequest true "Waiver date"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/loans/{loan_id}/charges/{charge_id}/waive [post]
func (h *LoanHandler) WaiveCharge(c *gin.Context) {
	date, ok := bindDate(c)
	if !ok {
		return
	}
	loan, err := h.service.WaiveCharge(c.Request.Context(), c.Param("loan_id"), c.Param("charge_id"), date)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Charge waived", loan)
}

// ListStrategies godoc
// @Summary List transaction processing strategies
// @Tags loans
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/strategies [get]
func (h *LoanHandler) ListStrategies(c *gin.Context) {
	response.Success(c, http.StatusOK, "Strategies retrieved", h.service.Strategies())
}

func (h *LoanHandler) lifecycle(c *gin.Context, message string, fn func(ctx context.Context, loanID string, date time.Time) (*domain.Loan, error)) {
	date, ok := bindDate(c)
	if !ok {
		return
	}
	loan, err := fn(c.Request.Context(), c.Param("loan_id"), date)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, message, loan)
}

func bindDate(c *gin.Context) (time.Time, bool) {
	var req dateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return time.Time{}, false
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		response.BadRequest(c, "Invalid date format", "Use YYYY-MM-DD format")
		return time.Time{}, false
	}
	return date, true
}

// writeError maps service and domain errors to HTTP responses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrLoanNotFound):
		response.NotFound(c, "Loan not found")
	case errors.Is(err, domain.ErrTransactionNotFound):
		response.NotFound(c, "Transaction not found")
	case errors.Is(err, domain.ErrChargeNotFound):
		response.NotFound(c, "Charge not found")
	case domain.IsDomainError(err):
		var ste *domain.StateTransitionError
		if errors.As(err, &ste) {
			response.DomainError(c, ste.Rule, "Loan rule violated", err.Error())
			return
		}
		var tte *domain.TransactionTypeError
		if errors.As(err, &tte) {
			response.DomainError(c, tte.Rule, "Loan rule violated", err.Error())
			return
		}
		response.DomainError(c, "DOMAIN_ERROR", "Loan rule violated", err.Error())
	default:
		logger.GetLogger().WithError(err).Error("Request failed")
		response.InternalError(c, "Request failed", err.Error())
	}
}
