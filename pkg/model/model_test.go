package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessRawInput(t *testing.T) {
	t.Run("Reports every issue at once", func(t *testing.T) {
		//** Arrange
		raw := RawModelInput{
			Teachers: []Teacher{
				{Id: "t1", Name: "One"},
				{Id: "t1", Name: "Duplicate"},
			},
			Subjects: []Subject{
				{Id: "math", Code: "M", AssignedTeachers: []string{"t1", "ghost"}},
				{Id: "art", Code: "A"},
				{Id: "math", Code: "M2", AssignedTeachers: []string{"t1"}},
			},
			Rooms: []Room{
				{Id: "r1", Capacity: -1},
			},
			Divisions: []Division{
				{Id: "d1", Subjects: []string{"chemistry"}},
			},
		}

		//** Act
		_, err := ProcessRawInput(raw, DefaultModelOptions())

		//** Assert
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidInput))
		var invalid *InvalidInputError
		require.True(t, errors.As(err, &invalid))
		assert.Equal(t, KindInvalidInput, KindOf(err))
		assert.ElementsMatch(t, []InputIssue{
			{Collection: "teachers", Id: "t1", Field: "id", Message: "duplicate id"},
			{Collection: "subjects", Id: "math", Field: "id", Message: "duplicate id"},
			{Collection: "subjects", Id: "math", Field: "assignedTeachers", Message: `unknown teacher "ghost"`},
			{Collection: "subjects", Id: "art", Field: "assignedTeachers", Message: "at least one eligible teacher is required"},
			{Collection: "rooms", Id: "r1", Field: "capacity", Message: "must not be negative: -1"},
			{Collection: "divisions", Id: "d1", Field: "subjects", Message: `unknown subject "chemistry"`},
		}, invalid.Issues)
	})

	t.Run("Rejects duplicate subject codes and cells outside the grid", func(t *testing.T) {
		//** Arrange
		raw := RawModelInput{
			Teachers: []Teacher{{Id: "t1", Unavailable: []TimeCell{{Day: Saturday, Slot: 3}}}},
			Subjects: []Subject{
				{Id: "a", Code: "SAME", AssignedTeachers: []string{"t1"}},
				{Id: "b", Code: "SAME", AssignedTeachers: []string{"t1"}},
			},
			Options: RawOptions{SlotsPerDay: 2},
		}

		//** Act
		_, err := ProcessRawInput(raw, DefaultModelOptions())

		//** Assert
		var invalid *InvalidInputError
		require.True(t, errors.As(err, &invalid))
		assert.Len(t, invalid.Issues, 2)
		assert.Equal(t, "code", invalid.Issues[1].Field)
		assert.Equal(t, "unavailable", invalid.Issues[0].Field)
	})

	t.Run("Indexes entities sorted by id", func(t *testing.T) {
		//** Arrange
		raw := RawModelInput{
			Teachers: []Teacher{{Id: "zed"}, {Id: "amy"}},
			Subjects: []Subject{
				{Id: "s2", AssignedTeachers: []string{"zed", "amy", "zed"}, Frequency: 2},
				{Id: "s1", AssignedTeachers: []string{"zed"}},
			},
			Rooms:     []Room{{Id: "small", Capacity: 10}, {Id: "big", Capacity: 50}, {Id: "aula", Capacity: 30}},
			Divisions: []Division{{Id: "d1"}, {Id: "d2", Size: 45, Subjects: []string{"s2"}}},
		}

		//** Act
		input, err := ProcessRawInput(raw, DefaultModelOptions())

		//** Assert
		require.NoError(t, err)
		assert.Equal(t, []int{1, 0}, input.Eligible[0])
		assert.Equal(t, []int{1, 0}, input.Curriculum[0])
		assert.Equal(t, []int{0}, input.Curriculum[1])
		assert.Equal(t, []int{2, 1}, input.FittingRooms[0])
		assert.Equal(t, []int{1}, input.FittingRooms[1])
		assert.Equal(t, []int{DefaultDivisionSize, 45}, input.DivisionSizes)
		assert.Equal(t, []int{2, 6}, input.Frequencies[0])
		assert.Equal(t, []int{2, 0}, input.Frequencies[1])
	})

	t.Run("Validation is pure and idempotent", func(t *testing.T) {
		//** Arrange
		raw, err := InputFromFile(satisfiableTestDirectory + "school_unavailable.yaml")
		require.NoError(t, err)
		before, err := InputFromFile(satisfiableTestDirectory + "school_unavailable.yaml")
		require.NoError(t, err)

		//** Act
		first, err := ProcessRawInput(raw, DefaultModelOptions())
		require.NoError(t, err)
		second, err := ProcessRawInput(first.Raw(), DefaultModelOptions())

		//** Assert
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, before, raw)
	})
}

func TestRequiredFrequency(t *testing.T) {
	grid := Grid{SlotsPerDay: 6}

	assert.Equal(t, 6, requiredFrequency(Subject{}, 4, grid))
	assert.Equal(t, 4, requiredFrequency(Subject{}, 8, grid))
	assert.Equal(t, 1, requiredFrequency(Subject{}, 50, grid))
	assert.Equal(t, 9, requiredFrequency(Subject{Frequency: 9}, 4, grid))
	assert.Equal(t, 1, requiredFrequency(Subject{}, 40, Grid{SlotsPerDay: 1}))
}

func TestInputFromBytes(t *testing.T) {
	t.Run("Decodes JSON", func(t *testing.T) {
		//** Arrange
		data := []byte(`{
			"teachers": [{"id": "t1", "name": "T", "email": "t@x.test", "unavailable": [{"day": "tuesday", "slot": 2}, {"day": 4, "slot": 1}]}],
			"subjects": [{"id": "s1", "code": "S1", "name": "S", "assignedTeachers": ["t1"]}],
			"rooms": [{"id": "r1", "name": "R", "capacity": 30}],
			"divisions": [{"id": "d1", "name": "D"}]
		}`)

		//** Act
		raw, err := InputFromBytes(data, FormatJSON)

		//** Assert
		require.NoError(t, err)
		assert.Equal(t, []TimeCell{{Day: Tuesday, Slot: 2}, {Day: Friday, Slot: 1}}, raw.Teachers[0].Unavailable)
		assert.Equal(t, []string{"t1"}, raw.Subjects[0].AssignedTeachers)
		assert.Equal(t, 30, raw.Rooms[0].Capacity)
	})

	t.Run("Decodes YAML files", func(t *testing.T) {
		//** Act
		raw, err := InputFromFile(satisfiableTestDirectory + "school_unavailable.yaml")

		//** Assert
		require.NoError(t, err)
		assert.Len(t, raw.Teachers, 2)
		assert.Equal(t, []string{"lit", "math"}, raw.Divisions[1].Subjects)
		assert.Equal(t, RawOptions{SlotsPerDay: 3, MaxDailyLessons: 1}, raw.Options)
		assert.Equal(t, Monday, raw.Teachers[0].Unavailable[0].Day)
	})

	t.Run("Fails on unknown days", func(t *testing.T) {
		//** Act
		_, err := InputFromBytes([]byte(`{"teachers": [{"id": "t1", "unavailable": [{"day": "Sunday", "slot": 1}]}]}`), FormatJSON)

		//** Assert
		assert.Error(t, err)
	})

	t.Run("Rejects fractional numbers in integer fields", func(t *testing.T) {
		//** Arrange
		data := []byte(`{
			"teachers": [{"id": "t1", "name": "T"}],
			"subjects": [{"id": "s1", "code": "S1", "name": "S", "assignedTeachers": ["t1"], "frequency": 1.9}],
			"rooms": [{"id": "r1", "name": "R", "capacity": 29.9}],
			"divisions": [{"id": "d1", "name": "D", "size": 29.5}]
		}`)

		//** Act
		_, err := InputFromBytes(data, FormatJSON)

		//** Assert
		var invalid *InvalidInputError
		require.ErrorAs(t, err, &invalid)
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Len(t, invalid.Issues, 3)
		assert.Contains(t, err.Error(), "subjects[0].frequency")
		assert.Contains(t, err.Error(), "rooms[0].capacity")
		assert.Contains(t, err.Error(), "divisions[0].size")
	})

	t.Run("Accepts integral floats", func(t *testing.T) {
		raw, err := InputFromBytes([]byte(`{"rooms": [{"id": "r1", "name": "R", "capacity": 30.0}]}`), FormatJSON)

		require.NoError(t, err)
		assert.Equal(t, 30, raw.Rooms[0].Capacity)
	})

	t.Run("Rejects unknown keys", func(t *testing.T) {
		//** Arrange
		data := []byte(`
teachers: [{id: t1, name: T}]
subjects: [{id: s1, code: S1, name: S, assignedTeachers: [t1], freq: 3}]
rooms: [{id: r1, name: R, capacity: 30}]
divisions: [{id: d1, name: D}]
`)

		//** Act
		_, err := InputFromBytes(data, FormatYAML)

		//** Assert
		var invalid *InvalidInputError
		require.ErrorAs(t, err, &invalid)
		require.Len(t, invalid.Issues, 1)
		assert.Contains(t, invalid.Issues[0].Message, "freq")
	})
}
