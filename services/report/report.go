// Package reportsvc renders report cards (PDF) and class result sheets (XLSX).
package reportsvc

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/matokeo/core"
	"github.com/trezcool/matokeo/core/grading"
	"github.com/trezcool/matokeo/core/pupil"
)

// Formats
const (
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

const (
	resultsSheet = "results"
	summarySheet = "summary"
)

type Service struct {
	school  core.SchoolConfig
	scale   *grading.Scale
	metrics core.Metrics
}

func NewService(school core.SchoolConfig, scale *grading.Scale, metrics core.Metrics) *Service {
	if scale == nil {
		scale = grading.DefaultScale()
	}
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	return &Service{school: school, scale: scale, metrics: metrics}
}

// ReportCards renders one A4 page per pupil. classSize is the "of m" in each pupil's position.
func (svc *Service) ReportCards(pupils []pupil.Pupil, classSize int) ([]byte, error) {
	start := time.Now()
	data, err := ReportCardsPDF(svc.school, pupils, classSize, svc.scale)
	svc.metrics.ObserveExport(FormatPDF, time.Since(start), err)
	return data, err
}

// ClassSheet renders the results and summary sheets of a class.
func (svc *Service) ClassSheet(summary pupil.ClassSummary, pupils []pupil.Pupil) ([]byte, error) {
	start := time.Now()
	data, err := ClassSheetXLSX(svc.school, summary, pupils)
	svc.metrics.ObserveExport(FormatXLSX, time.Since(start), err)
	return data, err
}

func schoolName(school core.SchoolConfig) string {
	if school.Name == "" {
		return "School Report"
	}
	return strings.ToUpper(school.Name)
}

func termLine(school core.SchoolConfig) string {
	var parts []string
	if school.Term != "" {
		parts = append(parts, "Term: "+school.Term)
	}
	if school.AcademicYear != "" {
		parts = append(parts, "Year: "+school.AcademicYear)
	}
	return strings.Join(parts, "    ")
}

// ReportCardsPDF renders report cards for pupils, one page each.
func ReportCardsPDF(school core.SchoolConfig, pupils []pupil.Pupil, classSize int, scale *grading.Scale) ([]byte, error) {
	if len(pupils) == 0 {
		return nil, errors.New("no pupils to report")
	}
	if scale == nil {
		scale = grading.DefaultScale()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Report Cards", true)
	writeReportCards(pdf, school, pupils, classSize, scale)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "rendering report cards")
	}
	return buf.Bytes(), nil
}

// writeReportCards adds one page per pupil. The core fonts are cp1252, so free text goes through tr.
func writeReportCards(pdf *gofpdf.Fpdf, school core.SchoolConfig, pupils []pupil.Pupil, classSize int, scale *grading.Scale) {
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, p := range pupils {
		reportCard(pdf, tr, school, p, classSize, scale)
	}
}

func reportCard(pdf *gofpdf.Fpdf, tr func(string) string, school core.SchoolConfig, p pupil.Pupil, classSize int, scale *grading.Scale) {
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 8, tr(schoolName(school)), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 7, "PUPIL'S REPORT CARD", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 6, "Name: "+tr(p.Name))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Class: %s", p.Class))
	pdf.Ln(6)
	if line := termLine(school); line != "" {
		pdf.Cell(0, 6, tr(line))
		pdf.Ln(6)
	}
	pdf.Ln(4)

	// marks table
	widths := []float64{45, 20, 20, 20, 35, 50}
	pdf.SetFont("Arial", "B", 10)
	for i, h := range []string{"Subject", "Marks", "Grade", "Points", "Remark", "Teacher"} {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, s := range pupil.Subjects {
		m, ok := p.Marks.Get(s)
		cells := []string{s.Name(), "-", "-", "-", "-", ""}
		if ok {
			cells = []string{
				s.Name(),
				fmt.Sprintf("%d", m.Marks),
				m.Grade,
				fmt.Sprintf("%d", m.Points),
				grading.Remark(m.Grade),
				tr(m.TeacherName),
			}
		}
		for i, c := range cells {
			align := "C"
			if i == 0 || i == 5 {
				align = "L"
			}
			pdf.CellFormat(widths[i], 7, c, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	// results
	pdf.SetFont("Arial", "B", 11)
	if res := p.Results; res != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Total Marks: %d    Aggregate: %d", res.TotalMarks, res.TotalAggregate))
		pdf.Ln(6)
		pdf.Cell(0, 6, fmt.Sprintf("Division: %s", res.Division))
		pdf.Ln(6)
		pdf.Cell(0, 6, fmt.Sprintf("Position: %d of %d", res.Position, classSize))
		pdf.Ln(6)
	} else {
		pdf.Cell(0, 6, "Results not yet calculated")
		pdf.Ln(6)
	}
	pdf.Ln(4)

	var division string
	if p.Results != nil {
		division = p.Results.Division
	}
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, "Class Teacher's Comment:")
	pdf.Ln(6)
	pdf.MultiCell(0, 5, tr(pupil.Remark(division, p.Name)), "", "L", false)
	pdf.Ln(6)

	// grading scale
	pdf.SetFont("Arial", "B", 9)
	pdf.Cell(0, 5, "Grading Scale")
	pdf.Ln(5)
	pdf.SetFont("Arial", "", 8)
	bandWidth := 190 / float64(len(scale.Grades)+1)
	for _, band := range scale.Grades {
		pdf.CellFormat(bandWidth, 5, fmt.Sprintf("%s: %d-%d", band.Grade, band.Min, band.Max), "1", 0, "C", false, 0, "")
	}
	pdf.CellFormat(bandWidth, 5, fmt.Sprintf("%s: below", scale.FallbackGrade), "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// sheetWriter writes cells of one sheet, keeping the first error.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (w *sheetWriter) set(col, row int, value interface{}) {
	if w.err != nil {
		return
	}
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetCellValue(w.sheet, name, value)
}

// ClassSheetXLSX renders a "results" sheet (one row per pupil) and a "summary" sheet.
func ClassSheetXLSX(school core.SchoolConfig, summary pupil.ClassSummary, pupils []pupil.Pupil) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return nil, errors.Wrap(err, "naming results sheet")
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, errors.Wrap(err, "adding summary sheet")
	}

	header := []interface{}{"Position", "Name"}
	for _, s := range pupil.Subjects {
		header = append(header, s.String())
	}
	header = append(header, "Total", "Aggregate", "Division")
	if err := f.SetSheetRow(resultsSheet, "A1", &header); err != nil {
		return nil, errors.Wrap(err, "writing header")
	}

	for i, p := range pupils {
		row := []interface{}{"", p.Name}
		if p.Results != nil {
			row[0] = p.Results.Position
		}
		for _, s := range pupil.Subjects {
			if m, ok := p.Marks.Get(s); ok {
				row = append(row, m.Marks)
			} else {
				row = append(row, "")
			}
		}
		if res := p.Results; res != nil {
			row = append(row, res.TotalMarks, res.TotalAggregate, res.Division)
		} else {
			row = append(row, "", "", "")
		}
		if err := f.SetSheetRow(resultsSheet, cell(1, i+2), &row); err != nil {
			return nil, errors.Wrapf(err, "writing row of %s", p.Name)
		}
	}

	w := &sheetWriter{f: f, sheet: summarySheet}
	w.set(1, 1, schoolName(school))
	w.set(1, 2, "Class")
	w.set(2, 2, summary.Class)
	w.set(1, 3, "Pupils")
	w.set(2, 3, summary.TotalPupils)
	w.set(1, 4, "With results")
	w.set(2, 4, summary.WithResults)
	w.set(1, 5, "Class average")
	w.set(2, 5, summary.ClassAverage)

	row := 7
	w.set(1, row, "Subject")
	w.set(2, row, "Average")
	for _, avg := range summary.SubjectAverages {
		row++
		w.set(1, row, avg.Name)
		w.set(2, row, avg.Average)
	}

	row += 2
	w.set(1, row, "Division")
	w.set(2, row, "Pupils")
	for _, div := range grading.Divisions {
		row++
		w.set(1, row, div)
		w.set(2, row, summary.DivisionCounts[div])
	}
	if w.err != nil {
		return nil, errors.Wrap(w.err, "writing summary sheet")
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, errors.Wrap(err, "writing class sheet")
	}
	return buf.Bytes(), nil
}
