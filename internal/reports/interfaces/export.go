package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	reports "railwatch/internal/reports/domain"
)

const dayLayout = "2006-01-02"

// BuildStationReportPDF renders a station report as a PDF.
func BuildStationReportPDF(report reports.StationReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	title := report.CRS
	if report.StationName != "" {
		title = fmt.Sprintf("%s (%s)", report.StationName, report.CRS)
	}
	pdf.Cell(0, 8, "Station Performance Report: "+title)
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s to %s", report.From.Format(dayLayout), report.To.Format(dayLayout)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", report.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.Cell(0, 6, fmt.Sprintf("Arrivals: %d", report.Totals.ArrivalCount))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Delayed over 1 min: %d (%.2f%%)", report.Totals.Delay1mCount, report.DelayedPercent()))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Delayed over 5 min: %d", report.Totals.Delay5mCount))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Average delay (min): %.2f", report.Totals.AvgDelayMin))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Cancellations: %d (%.2f%%)", report.Totals.CancellationCount, report.CancelledPercent()))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(30, 6, "Day", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Arrivals", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Delay > 1m", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Delay > 5m", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Avg delay (min)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Cancelled", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, day := range report.Days {
		pdf.CellFormat(30, 6, day.Day.Format(dayLayout), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%d", day.ArrivalCount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", day.Delay1mCount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", day.Delay5mCount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", day.AvgDelayMin), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", day.CancellationCount), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	if len(report.HourlyDelay) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(25, 6, "Hour", "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, "Delayed", "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, "Avg delay (min)", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, hour := range report.HourlyDelay {
			pdf.CellFormat(25, 6, fmt.Sprintf("%02d:00", hour.Hour), "1", 0, "C", false, 0, "")
			pdf.CellFormat(25, 6, fmt.Sprintf("%d", hour.Delayed), "1", 0, "R", false, 0, "")
			pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", hour.AvgDelayMin), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	if len(report.CancellationReasons) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(120, 6, "Cancellation reason", "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, "Count", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, reason := range report.CancellationReasons {
			pdf.CellFormat(120, 6, reason.Reason, "1", 0, "L", false, 0, "")
			pdf.CellFormat(25, 6, fmt.Sprintf("%d", reason.Count), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildStationReportXLSX renders a station report as a workbook with
// summary, days, hours and reasons sheets.
func BuildStationReportXLSX(report reports.StationReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	daysSheet := "days"
	hoursSheet := "hours"
	reasonsSheet := "reasons"
	_ = f.SetSheetName("Sheet1", summarySheet)
	for _, name := range []string{daysSheet, hoursSheet, reasonsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	_ = f.SetCellValue(summarySheet, "A1", "Station Performance Report")
	_ = f.SetCellValue(summarySheet, "A3", "Station")
	_ = f.SetCellValue(summarySheet, "B3", report.CRS)
	_ = f.SetCellValue(summarySheet, "A4", "Name")
	_ = f.SetCellValue(summarySheet, "B4", report.StationName)
	_ = f.SetCellValue(summarySheet, "A5", "From")
	_ = f.SetCellValue(summarySheet, "B5", report.From.Format(dayLayout))
	_ = f.SetCellValue(summarySheet, "A6", "To")
	_ = f.SetCellValue(summarySheet, "B6", report.To.Format(dayLayout))
	_ = f.SetCellValue(summarySheet, "A7", "Arrivals")
	_ = f.SetCellValue(summarySheet, "B7", report.Totals.ArrivalCount)
	_ = f.SetCellValue(summarySheet, "A8", "Delayed over 1 min")
	_ = f.SetCellValue(summarySheet, "B8", report.Totals.Delay1mCount)
	_ = f.SetCellValue(summarySheet, "A9", "Delayed over 5 min")
	_ = f.SetCellValue(summarySheet, "B9", report.Totals.Delay5mCount)
	_ = f.SetCellValue(summarySheet, "A10", "Average delay (min)")
	_ = f.SetCellValue(summarySheet, "B10", report.Totals.AvgDelayMin)
	_ = f.SetCellValue(summarySheet, "A11", "Cancellations")
	_ = f.SetCellValue(summarySheet, "B11", report.Totals.CancellationCount)

	_ = f.SetCellValue(daysSheet, "A1", "Day")
	_ = f.SetCellValue(daysSheet, "B1", "Arrivals")
	_ = f.SetCellValue(daysSheet, "C1", "Delay > 1m")
	_ = f.SetCellValue(daysSheet, "D1", "Delay > 5m")
	_ = f.SetCellValue(daysSheet, "E1", "Avg delay (min)")
	_ = f.SetCellValue(daysSheet, "F1", "Cancelled")
	for i, day := range report.Days {
		row := i + 2
		_ = f.SetCellValue(daysSheet, fmt.Sprintf("A%d", row), day.Day.Format(dayLayout))
		_ = f.SetCellValue(daysSheet, fmt.Sprintf("B%d", row), day.ArrivalCount)
		_ = f.SetCellValue(daysSheet, fmt.Sprintf("C%d", row), day.Delay1mCount)
		_ = f.SetCellValue(daysSheet, fmt.Sprintf("D%d", row), day.Delay5mCount)
		_ = f.SetCellValue(daysSheet, fmt.Sprintf("E%d", row), day.AvgDelayMin)
		_ = f.SetCellValue(daysSheet, fmt.Sprintf("F%d", row), day.CancellationCount)
	}

	_ = f.SetCellValue(hoursSheet, "A1", "Hour")
	_ = f.SetCellValue(hoursSheet, "B1", "Delayed")
	_ = f.SetCellValue(hoursSheet, "C1", "Avg delay (min)")
	for i, hour := range report.HourlyDelay {
		row := i + 2
		_ = f.SetCellValue(hoursSheet, fmt.Sprintf("A%d", row), hour.Hour)
		_ = f.SetCellValue(hoursSheet, fmt.Sprintf("B%d", row), hour.Delayed)
		_ = f.SetCellValue(hoursSheet, fmt.Sprintf("C%d", row), hour.AvgDelayMin)
	}

	_ = f.SetCellValue(reasonsSheet, "A1", "Reason")
	_ = f.SetCellValue(reasonsSheet, "B1", "Count")
	for i, reason := range report.CancellationReasons {
		row := i + 2
		_ = f.SetCellValue(reasonsSheet, fmt.Sprintf("A%d", row), reason.Reason)
		_ = f.SetCellValue(reasonsSheet, fmt.Sprintf("B%d", row), reason.Count)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
