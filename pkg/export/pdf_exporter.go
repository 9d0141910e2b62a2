package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfPageWidth = 277.0 // A4 landscape less 10mm margins
	pdfRowHeight = 7.0
)

// PDFExporter renders datasets into a landscape roster table.
type PDFExporter struct {
	// Weights scales column widths by header; unlisted headers weigh 1.
	Weights map[string]float64
	// HighlightColumn marks rows whose value in this column is "true".
	HighlightColumn string
}

// NewPDFExporter constructs a PDF exporter tuned for procedure rosters.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{
		Weights: map[string]float64{
			"Surgery":   2.4,
			"Surgeon":   1.6,
			"Location":  1.4,
			"Accepted":  1.8,
			"Confirmed": 1.2,
		},
		HighlightColumn: "Priority",
	}
}

// Render creates a PDF document with an optional title and table body. The
// header row repeats on every page.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	widths := e.columnWidths(data.Headers)

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	header := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for i, h := range data.Headers {
			pdf.CellFormat(widths[i], 8, tr(h), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	}
	pdf.SetHeaderFunc(func() {
		if pdf.PageNo() > 1 {
			header()
		}
	})

	pdf.AddPage()
	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(strings.ToUpper(title)), "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}
	header()

	for _, row := range data.Rows {
		fill := e.HighlightColumn != "" && row[e.HighlightColumn] == "true"
		for i, h := range data.Headers {
			if fill {
				pdf.SetFillColor(255, 243, 205)
			}
			pdf.CellFormat(widths[i], pdfRowHeight, tr(fitCell(pdf, row[h], widths[i])), "1", 0, "", fill, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) columnWidths(headers []string) []float64 {
	total := 0.0
	weights := make([]float64, len(headers))
	for i, h := range headers {
		w, ok := e.Weights[h]
		if !ok || w <= 0 {
			w = 1
		}
		weights[i] = w
		total += w
	}
	for i := range weights {
		weights[i] = pdfPageWidth * weights[i] / total
	}
	return weights
}

// fitCell truncates value with an ellipsis so it stays inside width.
func fitCell(pdf *gofpdf.Fpdf, value string, width float64) string {
	limit := width - 2
	if pdf.GetStringWidth(value) <= limit {
		return value
	}
	runes := []rune(value)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > limit {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
