package export

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limaJavier/timetabler/pkg/model"
)

func exportTimetable() model.Timetable {
	first := model.NewWeeklySchedule()
	first[model.Tuesday][model.SlotLabel(1)] = model.Lesson{Subject: "s2", Teacher: "t2", Room: "r1"}
	first[model.Monday][model.SlotLabel(0)] = model.Lesson{Subject: "s1", Teacher: "t1", Room: "r1"}
	first[model.Monday][model.SlotLabel(1)] = model.Lesson{Subject: "s1", Teacher: "t1", Room: "r2"}

	return model.Timetable{Divisions: []model.DivisionTimetable{
		{Division: "d1", Name: "10a", Status: model.StatusComplete, Schedule: first},
		{
			Division: "d2",
			Name:     "10b",
			Status:   model.StatusUnsatisfiable,
			Schedule: model.NewWeeklySchedule(),
			Failure:  &model.DivisionFailure{Division: "d2", Kind: model.KindUnsatisfiable, Diagnostic: "subject s3 needs 1 more lessons"},
		},
	}}
}

func TestLessonDataset(t *testing.T) {
	dataset := LessonDataset(exportTimetable())

	require.Len(t, dataset.Rows, 3)
	assert.Equal(t, lessonHeaders, dataset.Headers)
	assert.Equal(t, map[string]string{
		"Division": "d1", "Name": "10a", "Day": "Monday", "Slot": "1", "Subject": "s1", "Teacher": "t1", "Room": "r1",
	}, dataset.Rows[0])
	assert.Equal(t, "r2", dataset.Rows[1]["Room"])
	assert.Equal(t, "Tuesday", dataset.Rows[2]["Day"])
}

func TestRender(t *testing.T) {
	t.Run("CSV", func(t *testing.T) {
		content, err := Render(exportTimetable(), FormatCSV, "")

		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(content)), "\n")
		require.Len(t, lines, 4)
		assert.Equal(t, "Division,Name,Day,Slot,Subject,Teacher,Room", lines[0])
		assert.Equal(t, "d1,10a,Monday,1,s1,t1,r1", lines[1])
		assert.Equal(t, "d1,10a,Tuesday,2,s2,t2,r1", lines[3])
	})

	t.Run("PDF", func(t *testing.T) {
		content, err := Render(exportTimetable(), FormatPDF, "Spring term")

		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(content), "%PDF"))
	})

	t.Run("JSON", func(t *testing.T) {
		content, err := Render(exportTimetable(), FormatJSON, "")

		require.NoError(t, err)
		var decoded model.Timetable
		require.NoError(t, json.Unmarshal(content, &decoded))
		assert.Equal(t, exportTimetable(), decoded)
	})

	t.Run("Rejects empty timetables as PDF", func(t *testing.T) {
		_, err := Render(model.Timetable{}, FormatPDF, "")

		assert.Error(t, err)
	})
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"csv": FormatCSV, " PDF ": FormatPDF, "": FormatJSON, "json": FormatJSON}
	for value, expected := range cases {
		format, err := ParseFormat(value)
		require.NoError(t, err)
		assert.Equal(t, expected, format)
	}

	_, err := ParseFormat("xlsx")
	assert.EqualError(t, err, `unsupported export format "xlsx"`)
	assert.Equal(t, "text/csv", ContentType(FormatCSV))
}
