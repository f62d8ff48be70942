package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// CertificateData carries the fields printed on a completion certificate.
type CertificateData struct {
	CertificateCode string
	StudentName     string
	CourseTitle     string
	InstructorName  string
	IssuerName      string
	IssuedAt        time.Time
}

// CertificatePDF renders course completion certificates.
type CertificatePDF struct{}

// NewCertificatePDF constructs a certificate renderer.
func NewCertificatePDF() *CertificatePDF {
	return &CertificatePDF{}
}

// Render produces a landscape A4 certificate document.
func (e *CertificatePDF) Render(data CertificateData) ([]byte, error) {
	if data.StudentName == "" || data.CourseTitle == "" {
		return nil, fmt.Errorf("certificate requires student name and course title")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(20, 25, 20)
	pdf.AddPage()

	pdf.SetLineWidth(1.2)
	pdf.Rect(10, 10, 277, 190, "D")

	pdf.SetFont("Times", "B", 30)
	pdf.CellFormat(0, 18, "Certificate of Completion", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 13)
	pdf.CellFormat(0, 8, "This certifies that", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Times", "B", 24)
	pdf.CellFormat(0, 14, data.StudentName, "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 13)
	pdf.CellFormat(0, 8, "has successfully completed the course", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Times", "B", 20)
	pdf.CellFormat(0, 12, data.CourseTitle, "", 1, "C", false, 0, "")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 11)
	if data.InstructorName != "" {
		pdf.CellFormat(0, 7, fmt.Sprintf("Instructor: %s", data.InstructorName), "", 1, "C", false, 0, "")
	}
	issued := data.IssuedAt
	if issued.IsZero() {
		issued = time.Now().UTC()
	}
	pdf.CellFormat(0, 7, fmt.Sprintf("Issued on %s by %s", issued.Format("January 2, 2006"), data.IssuerName), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(0, 6, fmt.Sprintf("Verification code: %s", data.CertificateCode), "", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate pdf: %w", err)
	}
	return buf.Bytes(), nil
}
