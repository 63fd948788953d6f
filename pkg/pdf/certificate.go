package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// CertificateData is everything printed on a retirement certificate.
type CertificateData struct {
	SerialNumber string
	ProjectName  string
	Quantity     float64
	Vintage      int
	RetiredBy    string
	Reason       string
	RetiredAt    time.Time
}

// CertificateGenerator renders retirement certificates.
type CertificateGenerator struct{}

func NewCertificateGenerator() *CertificateGenerator {
	return &CertificateGenerator{}
}

// Generate renders the certificate as a single-page A4 landscape PDF.
func (g *CertificateGenerator) Generate(data CertificateData) ([]byte, error) {
	doc := gofpdf.New("L", "mm", "A4", "")
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 28)
	doc.CellFormat(0, 25, "Certificate of Carbon Credit Retirement", "", 1, "C", false, 0, "")

	doc.SetFont("Helvetica", "", 13)
	doc.CellFormat(0, 10, "This certifies that the following carbon credits have been permanently retired", "", 1, "C", false, 0, "")
	doc.Ln(8)

	rows := [][2]string{
		{"Serial Number", data.SerialNumber},
		{"Project", data.ProjectName},
		{"Quantity Retired", fmt.Sprintf("%.3f tCO2e", data.Quantity)},
		{"Vintage", fmt.Sprintf("%d", data.Vintage)},
		{"Retired By", data.RetiredBy},
		{"Retirement Reason", data.Reason},
		{"Retirement Date", data.RetiredAt.Format("2 January 2006")},
	}
	for _, row := range rows {
		doc.SetFont("Helvetica", "B", 12)
		doc.CellFormat(70, 10, row[0], "", 0, "R", false, 0, "")
		doc.SetFont("Helvetica", "", 12)
		doc.CellFormat(0, 10, "  "+row[1], "", 1, "L", false, 0, "")
	}

	doc.Ln(10)
	doc.SetFont("Helvetica", "I", 10)
	doc.CellFormat(0, 8, "Retired credits are permanently removed from circulation and cannot be transferred or reused.", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render certificate: %w", err)
	}
	return buf.Bytes(), nil
}
