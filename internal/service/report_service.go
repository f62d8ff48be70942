package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/export"
)

// Report formats supported by the admin export endpoints.
const (
	ReportFormatCSV = "csv"
	ReportFormatPDF = "pdf"
)

const reportPageSize = 1000

type reportEnrollmentLister interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

type reportPaymentLister interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error)
}

// Report is a rendered export document.
type Report struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ReportService renders admin exports of enrollments and payments.
type ReportService struct {
	enrollments reportEnrollmentLister
	payments    reportPaymentLister
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
	now         func() time.Time
}

// NewReportService constructs a ReportService instance.
func NewReportService(enrollments reportEnrollmentLister, payments reportPaymentLister, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		enrollments: enrollments,
		payments:    payments,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// EnrollmentReport exports enrollments matching the filter.
func (s *ReportService) EnrollmentReport(ctx context.Context, filter models.EnrollmentFilter, format string) (*Report, error) {
	filter.Page = 1
	filter.PageSize = reportPageSize
	enrollments, _, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}

	dataset := export.Dataset{
		Headers: []string{"Student", "Course", "Enrolled", "Subscription", "Progress", "Completed", "Active", "Expires"},
	}
	for _, e := range enrollments {
		expires := "never"
		if e.ExpiresAt != nil {
			expires = e.ExpiresAt.Format("2006-01-02")
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student":      e.StudentName,
			"Course":       e.CourseTitle,
			"Enrolled":     e.EnrolledAt.Format("2006-01-02"),
			"Subscription": string(e.SubscriptionType),
			"Progress":     fmt.Sprintf("%.1f%%", e.Progress),
			"Completed":    strconv.FormatBool(e.Completed),
			"Active":       strconv.FormatBool(e.Active),
			"Expires":      expires,
		})
	}
	return s.render(dataset, "enrollments", "Enrollment Report", format)
}

// PaymentReport exports payments matching the filter.
func (s *ReportService) PaymentReport(ctx context.Context, filter models.PaymentFilter, format string) (*Report, error) {
	filter.Page = 1
	filter.PageSize = reportPageSize
	payments, _, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}

	dataset := export.Dataset{
		Headers: []string{"User", "Course", "Amount", "Method", "Status", "Created"},
	}
	for _, p := range payments {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"User":    p.UserName,
			"Course":  p.CourseTitle,
			"Amount":  fmt.Sprintf("%.2f", p.Amount),
			"Method":  p.Method,
			"Status":  string(p.Status),
			"Created": p.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	return s.render(dataset, "payments", "Payment Report", format)
}

func (s *ReportService) render(dataset export.Dataset, name, title, format string) (*Report, error) {
	stamp := s.now().Format("20060102-150405")
	switch format {
	case "", ReportFormatCSV:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &Report{
			Filename:    fmt.Sprintf("%s-%s.csv", name, stamp),
			ContentType: "text/csv",
			Data:        data,
		}, nil
	case ReportFormatPDF:
		data, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &Report{
			Filename:    fmt.Sprintf("%s-%s.pdf", name, stamp),
			ContentType: "application/pdf",
			Data:        data,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported report format")
	}
}
