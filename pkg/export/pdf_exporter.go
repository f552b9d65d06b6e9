package export

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/elim-assembly/attendance-api/internal/models"
)

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// PDFExporter renders datasets into a basic tabular PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	pdf.SetFont("Arial", "B", 10)
	colWidth := 190.0 / float64(len(data.Headers))
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		for _, header := range data.Headers {
			value := row[header]
			pdf.CellFormat(colWidth, 7, value, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// StatsDataset flattens an aggregation result into export rows ordered by
// breakdown then label, so repeated exports of the same window are
// byte-stable.
func StatsDataset(stats *models.AggregatedStats) Dataset {
	headers := []string{"Breakdown", "Value", "Count"}
	rows := []map[string]string{
		{"Breakdown": "total", "Value": "all", "Count": strconv.Itoa(stats.Total)},
	}
	rows = append(rows, sortedRows("gender", genderKeys(stats.ByGender))...)
	rows = append(rows, sortedRows("age_bracket", bracketKeys(stats.ByAgeBracket))...)
	rows = append(rows, sortedRows("group", stats.ByGroup)...)
	return Dataset{Headers: headers, Rows: rows}
}

func sortedRows(breakdown string, counts map[string]int) []map[string]string {
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	rows := make([]map[string]string, 0, len(labels))
	for _, label := range labels {
		rows = append(rows, map[string]string{
			"Breakdown": breakdown,
			"Value":     label,
			"Count":     strconv.Itoa(counts[label]),
		})
	}
	return rows
}

func genderKeys(in map[models.Gender]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[string(k)] = v
	}
	return out
}

func bracketKeys(in map[models.AgeBracket]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[string(k)] = v
	}
	return out
}
