package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/limaJavier/timetabler/pkg/model"
)

const (
	pageWidth   = 277.0 // A4 landscape minus margins
	labelWidth  = 16.0
	headerSize  = 8.0
	lessonLines = 3
)

// PDFExporter renders one weekly grid per division, days as columns and slots as rows
type PDFExporter struct{}

func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render draws the timetable. Failed divisions get their diagnostic under the title
func (e *PDFExporter) Render(timetable model.Timetable, title string) ([]byte, error) {
	if len(timetable.Divisions) == 0 {
		return nil, fmt.Errorf("pdf requires at least one division")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(false, 10)
	columnWidth := (pageWidth - labelWidth) / model.DaysPerWeek

	for _, division := range timetable.Divisions {
		pdf.AddPage()
		pdf.SetFont("Arial", "B", 14)
		heading := division.Name
		if title != "" {
			heading = title + " - " + division.Name
		}
		pdf.CellFormat(0, 10, heading, "", 1, "C", false, 0, "")

		pdf.SetFont("Arial", "", 9)
		subtitle := fmt.Sprintf("Division %s, status %s", division.Division, division.Status)
		pdf.CellFormat(0, 6, subtitle, "", 1, "C", false, 0, "")
		if division.Failure != nil {
			pdf.MultiCell(0, 5, division.Failure.Diagnostic, "", "C", false)
		}
		pdf.Ln(3)

		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(labelWidth, headerSize, "", "1", 0, "C", false, 0, "")
		for _, day := range model.Days() {
			pdf.CellFormat(columnWidth, headerSize, day.String(), "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 8)
		rowHeight := 4.0 * lessonLines
		for slot := range scheduleSlots(division.Schedule) {
			x, y := pdf.GetXY()
			pdf.CellFormat(labelWidth, rowHeight, model.SlotLabel(slot), "1", 0, "C", false, 0, "")
			for day := range model.DaysPerWeek {
				text := ""
				if lesson, ok := division.Schedule.Lesson(model.Day(day), slot); ok {
					text = fmt.Sprintf("%s\n%s\n%s", lesson.Subject, lesson.Teacher, lesson.Room)
				}
				cellX := x + labelWidth + float64(day)*columnWidth
				pdf.Rect(cellX, y, columnWidth, rowHeight, "D")
				pdf.SetXY(cellX, y)
				pdf.MultiCell(columnWidth, rowHeight/lessonLines, text, "", "C", false)
			}
			pdf.SetXY(x, y+rowHeight)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// scheduleSlots is the number of slot rows to draw: one past the last filled slot
func scheduleSlots(schedule model.WeeklySchedule) int {
	slots := 0
	for _, day := range model.Days() {
		if filled := schedule.Slots(day); len(filled) > 0 {
			slots = max(slots, filled[len(filled)-1]+1)
		}
	}
	return slots
}
