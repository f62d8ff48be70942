package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/coursehub/coursehub-api/internal/models"
	"github.com/coursehub/coursehub-api/internal/service"
	"github.com/coursehub/coursehub-api/pkg/response"
)

// ReportHandler exposes admin export endpoints.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Enrollments godoc
// @Summary Export enrollments as CSV or PDF
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Param courseId query string false "Filter by course"
// @Param active query bool false "Filter by active flag"
// @Security BearerAuth
// @Success 200 {file} binary
// @Router /reports/enrollments [get]
func (h *ReportHandler) Enrollments(c *gin.Context) {
	var filter models.EnrollmentFilter
	filter.CourseID = c.Query("courseId")
	filter.StudentID = c.Query("studentId")
	if raw := c.Query("active"); raw != "" {
		if active, err := strconv.ParseBool(raw); err == nil {
			filter.Active = &active
		}
	}

	report, err := h.reports.EnrollmentReport(c.Request.Context(), filter, c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	serveReport(c, report)
}

// Payments godoc
// @Summary Export payments as CSV or PDF
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Param courseId query string false "Filter by course"
// @Param status query string false "Filter by status"
// @Security BearerAuth
// @Success 200 {file} binary
// @Router /reports/payments [get]
func (h *ReportHandler) Payments(c *gin.Context) {
	var filter models.PaymentFilter
	filter.CourseID = c.Query("courseId")
	filter.UserID = c.Query("userId")
	filter.Status = models.PaymentStatus(strings.ToUpper(c.Query("status")))

	report, err := h.reports.PaymentReport(c.Request.Context(), filter, c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	serveReport(c, report)
}

func serveReport(c *gin.Context, report *service.Report) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename))
	c.Data(http.StatusOK, report.ContentType, report.Data)
}
