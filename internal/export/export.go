package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/limaJavier/timetabler/pkg/model"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
	FormatJSON Format = "json"
)

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

var lessonHeaders = []string{"Division", "Name", "Day", "Slot", "Subject", "Teacher", "Room"}

func ParseFormat(value string) (Format, error) {
	switch format := Format(strings.ToLower(strings.TrimSpace(value))); format {
	case FormatCSV, FormatPDF, FormatJSON:
		return format, nil
	case "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", value)
	}
}

// ContentType returns the MIME type of an export in the given format
func ContentType(format Format) string {
	switch format {
	case FormatCSV:
		return "text/csv"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/json"
	}
}

// LessonDataset flattens a timetable into one row per lesson, divisions in input order and lessons
// in week order
func LessonDataset(timetable model.Timetable) Dataset {
	dataset := Dataset{Headers: lessonHeaders, Rows: make([]map[string]string, 0)}
	for _, division := range timetable.Divisions {
		for _, day := range model.Days() {
			for _, slot := range division.Schedule.Slots(day) {
				lesson, _ := division.Schedule.Lesson(day, slot)
				dataset.Rows = append(dataset.Rows, map[string]string{
					"Division": division.Division,
					"Name":     division.Name,
					"Day":      day.String(),
					"Slot":     model.SlotLabel(slot),
					"Subject":  lesson.Subject,
					"Teacher":  lesson.Teacher,
					"Room":     lesson.Room,
				})
			}
		}
	}
	return dataset
}

// Render encodes the timetable in the requested format
func Render(timetable model.Timetable, format Format, title string) ([]byte, error) {
	switch format {
	case FormatCSV:
		return NewCSVExporter().Render(LessonDataset(timetable))
	case FormatPDF:
		return NewPDFExporter().Render(timetable, title)
	case FormatJSON:
		return json.MarshalIndent(timetable, "", "  ")
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
