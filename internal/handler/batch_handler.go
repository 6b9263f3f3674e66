package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"loan-engine/internal/batch"
	"loan-engine/internal/processor"
	"loan-engine/internal/repository"
	"loan-engine/internal/service"
	"loan-engine/pkg/response"
)

// BatchHandler exposes the back-office jobs. Each job processes loans
// independently and reports per-loan failures instead of aborting.
type BatchHandler struct {
	repo         repository.LoanRepository
	registry     *processor.Registry
	transactions service.TransactionService
}

func NewBatchHandler(repo repository.LoanRepository, registry *processor.Registry, transactions service.TransactionService) *BatchHandler {
	return &BatchHandler{repo: repo, registry: registry, transactions: transactions}
}

type holidayRequest struct {
	FromDate              string `json:"from_date" binding:"required"`
	ToDate                string `json:"to_date" binding:"required"`
	RepaymentsScheduledTo string `json:"repayments_scheduled_to"`
	MoveToNextRepayment   bool   `json:"move_to_next_repayment"`
}

type jobResponse struct {
	Processed int      `json:"processed"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

func toJobResponse(result batch.JobResult) jobResponse {
	resp := jobResponse{Processed: result.Processed, Failed: len(result.Errors)}
	for _, jobErr := range result.Errors {
		msg := jobErr.Err.Error()
		if jobErr.LoanID != "" {
			msg = jobErr.LoanID + ": " + msg
		}
		resp.Errors = append(resp.Errors, msg)
	}
	return resp
}

// ApplyHoliday godoc
// @Summary Shift due dates falling in a holiday period
// @Tags batch
// @Accept json
// @Produce json
// @Param request body holidayRequest true "Holiday period"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/v1/batch/holidays [post]
func (h *BatchHandler) ApplyHoliday(c *gin.Context) {
	var req holidayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}
	from, err := time.Parse("2006-01-02", req.FromDate)
	if err != nil {
		response.BadRequest(c, "Invalid from_date format", "Use YYYY-MM-DD format")
		return
	}
	to, err := time.Parse("2006-01-02", req.ToDate)
	if err != nil {
		response.BadRequest(c, "Invalid to_date format", "Use YYYY-MM-DD format")
		return
	}
	holiday := batch.Holiday{FromDate: from, ToDate: to, MoveToNextRepayment: req.MoveToNextRepayment}
	if !req.MoveToNextRepayment {
		scheduledTo, err := time.Parse("2006-01-02", req.RepaymentsScheduledTo)
		if err != nil {
			response.BadRequest(c, "Invalid repayments_scheduled_to format", "Use YYYY-MM-DD format")
			return
		}
		holiday.RepaymentsScheduledTo = scheduledTo
	}

	result := batch.ApplyHoliday(c.Request.Context(), h.repo, h.registry, holiday)
	response.Success(c, http.StatusOK, "Holiday reschedule finished", toJobResponse(result))
}

// ReprocessLoans godoc
// @Summary Replay transaction history for all open loans
// @Tags batch
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/batch/reprocess [post]
func (h *BatchHandler) ReprocessLoans(c *gin.Context) {
	result := batch.ReprocessLoans(c.Request.Context(), h.repo, h.registry)
	response.Success(c, http.StatusOK, "Reprocessing finished", toJobResponse(result))
}

// ImportRepayments godoc
// @Summary Import a bulk repayment CSV file
// @Description Post one repayment per row; bad rows are reported and skipped
// @Tags batch
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file with loan_id,transaction_date,amount,reference"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/v1/batch/repayments [post]
func (h *BatchHandler) ImportRepayments(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "Missing file", "Upload the CSV under the file field")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.InternalError(c, "Failed to open upload", err.Error())
		return
	}
	defer file.Close()

	result := batch.ImportRepayments(c.Request.Context(), h.transactions, file)
	response.Success(c, http.StatusOK, "Bulk repayment import finished", toJobResponse(result))
}
