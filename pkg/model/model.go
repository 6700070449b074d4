package model

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/samber/lo"
)

type ModelOptions struct {
	SlotsPerDay         int
	DefaultDivisionSize int
	MaxDailyLessons     int // Lessons of the same subject a division may take per day, 0 disables the limit
}

func DefaultModelOptions() ModelOptions {
	return ModelOptions{
		SlotsPerDay:         DefaultSlotsPerDay,
		DefaultDivisionSize: DefaultDivisionSize,
	}
}

// ModelInput is the validated, indexed form of a RawModelInput. Entities are addressed by their
// position in the input collections; every derived list is sorted by entity id
type ModelInput struct {
	Teachers  []Teacher
	Subjects  []Subject
	Rooms     []Room
	Divisions []Division

	Grid                Grid
	DefaultDivisionSize int
	MaxDailyLessons     int

	DivisionSizes []int    // Effective size per division
	Curriculum    [][]int  // Subjects per division
	Frequencies   [][]int  // Required weekly lessons per division and subject, 0 when the subject does not apply
	Eligible      [][]int  // Eligible teachers per subject
	FittingRooms  [][]int  // Rooms whose capacity fits each division
	Unavailable   [][]bool // Unavailable cells per teacher

	teacherIndex  map[string]int
	subjectIndex  map[string]int
	roomIndex     map[string]int
	divisionIndex map[string]int
}

func (input ModelInput) TeacherIndex(id string) (int, bool) {
	index, ok := input.teacherIndex[id]
	return index, ok
}

func (input ModelInput) SubjectIndex(id string) (int, bool) {
	index, ok := input.subjectIndex[id]
	return index, ok
}

func (input ModelInput) RoomIndex(id string) (int, bool) {
	index, ok := input.roomIndex[id]
	return index, ok
}

func (input ModelInput) DivisionIndex(id string) (int, bool) {
	index, ok := input.divisionIndex[id]
	return index, ok
}

// Raw returns the input the model was built from with every option resolved
func (input ModelInput) Raw() RawModelInput {
	return RawModelInput{
		Teachers:  cloneTeachers(input.Teachers),
		Subjects:  cloneSubjects(input.Subjects),
		Rooms:     slices.Clone(input.Rooms),
		Divisions: cloneDivisions(input.Divisions),
		Options: RawOptions{
			SlotsPerDay:         input.Grid.SlotsPerDay,
			DefaultDivisionSize: input.DefaultDivisionSize,
			MaxDailyLessons:     input.MaxDailyLessons,
		},
	}
}

// ProcessRawInput validates the raw input and indexes it. Every problem found is reported at once
// through an *InvalidInputError; the raw input is never modified
func ProcessRawInput(rawInput RawModelInput, options ModelOptions) (ModelInput, error) {
	options = resolveOptions(rawInput.Options, options)
	validator := inputValidator{}

	//** Options
	if options.SlotsPerDay < 1 {
		validator.add("options", "", "slotsPerDay", fmt.Sprintf("must be at least 1: %v", options.SlotsPerDay))
	}
	if options.DefaultDivisionSize < 0 {
		validator.add("options", "", "defaultDivisionSize", fmt.Sprintf("must not be negative: %v", options.DefaultDivisionSize))
	}
	if options.MaxDailyLessons < 0 {
		validator.add("options", "", "maxDailyLessons", fmt.Sprintf("must not be negative: %v", options.MaxDailyLessons))
	}
	grid := Grid{SlotsPerDay: max(options.SlotsPerDay, 0)}

	input := ModelInput{
		Teachers:            cloneTeachers(rawInput.Teachers),
		Subjects:            cloneSubjects(rawInput.Subjects),
		Rooms:               slices.Clone(rawInput.Rooms),
		Divisions:           cloneDivisions(rawInput.Divisions),
		Grid:                grid,
		DefaultDivisionSize: options.DefaultDivisionSize,
		MaxDailyLessons:     options.MaxDailyLessons,
	}

	//** Identities
	input.teacherIndex = validator.index("teachers", lo.Map(input.Teachers, func(teacher Teacher, _ int) string { return teacher.Id }))
	input.subjectIndex = validator.index("subjects", lo.Map(input.Subjects, func(subject Subject, _ int) string { return subject.Id }))
	input.roomIndex = validator.index("rooms", lo.Map(input.Rooms, func(room Room, _ int) string { return room.Id }))
	input.divisionIndex = validator.index("divisions", lo.Map(input.Divisions, func(division Division, _ int) string { return division.Id }))

	//** Teachers
	input.Unavailable = make([][]bool, len(input.Teachers))
	for i, teacher := range input.Teachers {
		input.Unavailable[i] = make([]bool, grid.Cells())
		for _, cell := range teacher.Unavailable {
			if !grid.Contains(cell.Day, cell.Slot-1) {
				validator.add("teachers", teacher.Id, "unavailable", fmt.Sprintf("cell %v slot %v is outside the %v×%v grid", cell.Day, cell.Slot, DaysPerWeek, grid.SlotsPerDay))
				continue
			}
			input.Unavailable[i][grid.Cell(cell.Day, cell.Slot-1)] = true
		}
	}

	//** Subjects
	codes := make(map[string]string)
	input.Eligible = make([][]int, len(input.Subjects))
	for i, subject := range input.Subjects {
		if subject.Code != "" {
			if owner, ok := codes[subject.Code]; ok {
				validator.add("subjects", subject.Id, "code", fmt.Sprintf("code %q is already used by subject %q", subject.Code, owner))
			} else {
				codes[subject.Code] = subject.Id
			}
		}
		if subject.Frequency < 0 {
			validator.add("subjects", subject.Id, "frequency", fmt.Sprintf("must not be negative: %v", subject.Frequency))
		}
		if len(subject.AssignedTeachers) == 0 {
			validator.add("subjects", subject.Id, "assignedTeachers", "at least one eligible teacher is required")
		}

		eligible := make([]int, 0, len(subject.AssignedTeachers))
		for _, teacherId := range lo.Uniq(subject.AssignedTeachers) {
			teacher, ok := input.teacherIndex[teacherId]
			if !ok {
				validator.add("subjects", subject.Id, "assignedTeachers", fmt.Sprintf("unknown teacher %q", teacherId))
				continue
			}
			eligible = append(eligible, teacher)
		}
		input.Eligible[i] = sortedByID(eligible, func(teacher int) string { return input.Teachers[teacher].Id })
	}

	//** Rooms
	for _, room := range input.Rooms {
		if room.Capacity < 0 {
			validator.add("rooms", room.Id, "capacity", fmt.Sprintf("must not be negative: %v", room.Capacity))
		}
	}

	//** Divisions
	input.DivisionSizes = make([]int, len(input.Divisions))
	input.Curriculum = make([][]int, len(input.Divisions))
	input.FittingRooms = make([][]int, len(input.Divisions))
	input.Frequencies = make([][]int, len(input.Divisions))
	for i, division := range input.Divisions {
		size := division.Size
		if size < 0 {
			validator.add("divisions", division.Id, "size", fmt.Sprintf("must not be negative: %v", division.Size))
		} else if size == 0 {
			size = options.DefaultDivisionSize
		}
		input.DivisionSizes[i] = size

		var curriculum []int
		if len(division.Subjects) == 0 {
			curriculum = lo.Range(len(input.Subjects))
		} else {
			for _, subjectId := range lo.Uniq(division.Subjects) {
				subject, ok := input.subjectIndex[subjectId]
				if !ok {
					validator.add("divisions", division.Id, "subjects", fmt.Sprintf("unknown subject %q", subjectId))
					continue
				}
				curriculum = append(curriculum, subject)
			}
		}
		input.Curriculum[i] = sortedByID(curriculum, func(subject int) string { return input.Subjects[subject].Id })

		fitting := lo.Filter(lo.Range(len(input.Rooms)), func(room int, _ int) bool {
			return input.Rooms[room].Capacity >= size
		})
		input.FittingRooms[i] = sortedByID(fitting, func(room int) string { return input.Rooms[room].Id })

		input.Frequencies[i] = make([]int, len(input.Subjects))
		for _, subject := range input.Curriculum[i] {
			input.Frequencies[i][subject] = requiredFrequency(input.Subjects[subject], len(input.Curriculum[i]), grid)
		}
	}

	if err := validator.err(); err != nil {
		return ModelInput{}, err
	}
	return input, nil
}

// Subjects without an explicit frequency get one lesson per day, capped by the division's fair share of the grid
func requiredFrequency(subject Subject, subjects int, grid Grid) int {
	if subject.Frequency > 0 {
		return subject.Frequency
	}
	share := 1
	if subjects > 0 {
		share = max(1, grid.Cells()/subjects)
	}
	return min(DaysPerWeek, share)
}

func resolveOptions(raw RawOptions, options ModelOptions) ModelOptions {
	if raw.SlotsPerDay != 0 {
		options.SlotsPerDay = raw.SlotsPerDay
	}
	if raw.DefaultDivisionSize != 0 {
		options.DefaultDivisionSize = raw.DefaultDivisionSize
	}
	if raw.MaxDailyLessons != 0 {
		options.MaxDailyLessons = raw.MaxDailyLessons
	}
	return options
}

func sortedByID(indexes []int, id func(int) string) []int {
	if indexes == nil {
		indexes = []int{}
	}
	slices.SortStableFunc(indexes, func(a, b int) int {
		return cmp.Compare(id(a), id(b))
	})
	return indexes
}

type inputValidator struct {
	issues []InputIssue
}

func (validator *inputValidator) add(collection, id, field, message string) {
	validator.issues = append(validator.issues, InputIssue{
		Collection: collection,
		Id:         id,
		Field:      field,
		Message:    message,
	})
}

// Builds the id lookup of a collection, reporting empty and duplicate ids. The first occurrence wins
func (validator *inputValidator) index(collection string, ids []string) map[string]int {
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		if id == "" {
			validator.add(collection, "", "id", fmt.Sprintf("entry %d has an empty id", i))
			continue
		}
		if _, ok := index[id]; ok {
			validator.add(collection, id, "id", "duplicate id")
			continue
		}
		index[id] = i
	}
	return index
}

func (validator *inputValidator) err() error {
	if len(validator.issues) == 0 {
		return nil
	}
	return &InvalidInputError{Issues: validator.issues}
}

func cloneTeachers(teachers []Teacher) []Teacher {
	return lo.Map(teachers, func(teacher Teacher, _ int) Teacher {
		teacher.Unavailable = slices.Clone(teacher.Unavailable)
		return teacher
	})
}

func cloneSubjects(subjects []Subject) []Subject {
	return lo.Map(subjects, func(subject Subject, _ int) Subject {
		subject.AssignedTeachers = slices.Clone(subject.AssignedTeachers)
		return subject
	})
}

func cloneDivisions(divisions []Division) []Division {
	return lo.Map(divisions, func(division Division, _ int) Division {
		division.Subjects = slices.Clone(division.Subjects)
		return division
	})
}
