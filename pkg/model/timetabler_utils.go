package model

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/onsi/gomega/matchers/support/goraph/bipartitegraph"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// VerificationError lists every hard constraint a timetable breaks
type VerificationError struct {
	Violations []string
}

func (err *VerificationError) Error() string {
	return fmt.Sprintf("timetable breaks %d constraints:\n\t%v", len(err.Violations), strings.Join(err.Violations, "\n\t"))
}

func searchDivisions(ctx context.Context, store *ConstraintStore, placement roomPlacement, strategy Strategy, options SearchOptions) []error {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	outcomes := make([]error, len(store.input.Divisions))
	for division, entity := range store.input.Divisions {
		search := newDivisionSearch(ctx, store, placement, division, options)
		err := search.run()
		outcomes[division] = err

		status := statusOf(err)
		fields := []zap.Field{
			zap.String("division", entity.Id),
			zap.String("strategy", string(strategy)),
			zap.String("status", string(status)),
			zap.Uint64("steps", search.stats.Steps),
			zap.Uint64("backtracks", search.stats.Backtracks),
			zap.Duration("elapsed", search.stats.Elapsed),
		}
		if err != nil {
			logger.Warn("division_not_scheduled", append(fields, zap.Error(err))...)
		} else {
			logger.Info("division_scheduled", fields...)
		}
		if options.Observer != nil {
			options.Observer.ObserveDivision(strategy, status, search.stats)
		}
	}
	return outcomes
}

func statusOf(err error) Status {
	switch {
	case err == nil:
		return StatusComplete
	case errors.Is(err, ErrSearchExhausted):
		return StatusExhausted
	default:
		return StatusUnsatisfiable
	}
}

// Reads the committed state of the store out into one weekly schedule per division
func buildTimetable(store *ConstraintStore, outcomes []error) Timetable {
	input := store.input
	timetable := Timetable{Divisions: make([]DivisionTimetable, 0, len(input.Divisions))}

	for division, entity := range input.Divisions {
		schedule := NewWeeklySchedule()
		for _, assignment := range store.Assignments(division) {
			lesson := Lesson{
				Subject: input.Subjects[assignment.Subject].Id,
				Teacher: input.Teachers[assignment.Teacher].Id,
			}
			if assignment.Room != noRoom {
				lesson.Room = input.Rooms[assignment.Room].Id
			}
			schedule[assignment.Day][SlotLabel(assignment.Slot)] = lesson
		}

		divisionTimetable := DivisionTimetable{
			Division: entity.Id,
			Name:     entity.Name,
			Status:   statusOf(outcomes[division]),
			Schedule: schedule,
		}
		if outcomes[division] != nil {
			divisionTimetable.Failure = newDivisionFailure(entity.Id, outcomes[division])
		}
		timetable.Divisions = append(timetable.Divisions, divisionTimetable)
	}

	return timetable
}

func verify(timetable Timetable, modelInput ModelInput) error {
	//** Initialize dependencies
	grid := modelInput.Grid
	evaluator := newPredicateEvaluator(modelInput)
	indexer := newIndexer(grid)

	violations := make([]string, 0)
	report := func(format string, args ...any) {
		violations = append(violations, fmt.Sprintf(format, args...))
	}

	//** Initialize teacher-assistance and room-assistance (division holding each cell)
	teacherAssistance := make([]string, indexer.Size(len(modelInput.Teachers)))
	roomAssistance := make([]string, indexer.Size(len(modelInput.Rooms)))

	verified := make(map[string]bool)
	for _, divisionTimetable := range timetable.Divisions {
		division, ok := modelInput.DivisionIndex(divisionTimetable.Division)
		if !ok {
			report("unknown division %q", divisionTimetable.Division)
			continue
		} else if verified[divisionTimetable.Division] {
			report("division %q appears more than once", divisionTimetable.Division)
			continue
		}
		verified[divisionTimetable.Division] = true

		lessonsTaught := make([]int, len(modelInput.Subjects))
		dailyTaught := make([]int, len(modelInput.Subjects)*DaysPerWeek)

		for _, day := range Days() {
			for _, label := range slices.Sorted(maps.Keys(divisionTimetable.Schedule[day])) {
				lesson := divisionTimetable.Schedule[day][label]
				where := fmt.Sprintf("division %q at %v slot %v", divisionTimetable.Division, day, label)

				slot, err := ParseSlotLabel(label)
				if err != nil || !grid.Contains(day, slot) {
					report("%v: slot is outside the grid", where)
					continue
				}
				subject, subjectOk := modelInput.SubjectIndex(lesson.Subject)
				teacher, teacherOk := modelInput.TeacherIndex(lesson.Teacher)
				room, roomOk := modelInput.RoomIndex(lesson.Room)
				if !subjectOk || !teacherOk || !roomOk {
					report("%v: unknown subject, teacher or room in %+v", where, lesson)
					continue
				}

				// Check that:
				// - Subject belongs to the division
				// - Teacher is eligible for the subject
				// - Teacher is available at the day and slot
				// - Teacher is not already assisting at the day and slot
				// - Division fits in the room
				// - Room is not already assigned at the day and slot
				// - Subject does not exceed the daily limit
				if !evaluator.Teaches(division, subject) {
					report("%v: subject %q is not taught to the division", where, lesson.Subject)
				}
				if !evaluator.Eligible(subject, teacher) {
					report("%v: teacher %q is not eligible for subject %q", where, lesson.Teacher, lesson.Subject)
				}
				if !evaluator.TeacherAvailable(teacher, day, slot) {
					report("%v: teacher %q is unavailable", where, lesson.Teacher)
				}
				if other := teacherAssistance[indexer.Index(teacher, day, slot)]; other != "" {
					report("%v: teacher %q already teaches division %q", where, lesson.Teacher, other)
				}
				if !evaluator.Fits(division, room) {
					report("%v: room %q is too small", where, lesson.Room)
				}
				if other := roomAssistance[indexer.Index(room, day, slot)]; other != "" {
					report("%v: room %q is already used by division %q", where, lesson.Room, other)
				}
				dailyTaught[subject*DaysPerWeek+int(day)]++
				if modelInput.MaxDailyLessons > 0 && dailyTaught[subject*DaysPerWeek+int(day)] > modelInput.MaxDailyLessons {
					report("%v: subject %q exceeds %d lessons per day", where, lesson.Subject, modelInput.MaxDailyLessons)
				}

				teacherAssistance[indexer.Index(teacher, day, slot)] = divisionTimetable.Division // Store teacher assistance
				roomAssistance[indexer.Index(room, day, slot)] = divisionTimetable.Division       // Store room assistance
				lessonsTaught[subject]++                                                          // Store lesson taught
			}
		}

		// Check the lessons taught against the required frequencies; complete divisions must match them exactly
		for _, subject := range modelInput.Curriculum[division] {
			required := evaluator.Frequency(division, subject)
			if lessonsTaught[subject] > required {
				report("division %q: subject %q taught %d times, more than the required %d", divisionTimetable.Division, modelInput.Subjects[subject].Id, lessonsTaught[subject], required)
			} else if divisionTimetable.Status == StatusComplete && lessonsTaught[subject] < required {
				report("division %q: subject %q taught %d times, less than the required %d", divisionTimetable.Division, modelInput.Subjects[subject].Id, lessonsTaught[subject], required)
			}
		}
		if divisionTimetable.Status == StatusUnsatisfiable && divisionTimetable.Schedule.Lessons() > 0 {
			report("division %q is unsatisfiable but holds a partial schedule", divisionTimetable.Division)
		}
	}

	for _, division := range modelInput.Divisions {
		if !verified[division.Id] {
			report("division %q is missing", division.Id)
		}
	}

	if len(violations) > 0 {
		return &VerificationError{Violations: violations}
	}
	return nil
}

// Finds distinct free fitting rooms for every division sharing (day, slot), in the order of divisions
func (store *ConstraintStore) matchRooms(divisions []int, day Day, slot int) ([]int, error) {
	rooms := lo.Filter(lo.Range(len(store.input.Rooms)), func(room int, _ int) bool {
		return store.roomFree(room, day, slot)
	})
	relationships := make(map[[2]int]bool)
	for _, division := range divisions {
		for _, room := range store.input.FittingRooms[division] {
			relationships[[2]int{division, room}] = true
		}
	}

	assignments, err := assignRooms(divisions, rooms, relationships)
	if err != nil {
		return nil, err
	}

	matched := make([]int, len(divisions))
	for _, assignment := range assignments {
		matched[slices.Index(divisions, assignment[0])] = assignment[1]
	}
	return matched, nil
}

func assignRooms(divisions []int, rooms []int, relationships map[[2]int]bool) ([][2]int, error) {
	assignments := make([][2]int, 0, len(divisions))

	// Build neighbors predicate based on relationships
	neighbors := func(divisionAny any, roomAny any) (bool, error) {
		division := divisionAny.(int)
		room := roomAny.(int)

		return relationships[[2]int{division, room}], nil
	}

	// Transform divisions and rooms to slices of any
	divisionsAny, roomsAny := lo.Map(divisions, func(division int, _ int) any { return division }), lo.Map(rooms, func(room int, _ int) any { return room })

	graph, err := bipartitegraph.NewBipartiteGraph(divisionsAny, roomsAny, neighbors)
	if err != nil {
		return nil, err
	}

	matching := graph.LargestMatching()

	// Check the matching covers every division
	if len(matching) < len(divisions) {
		return nil, unassignableError{}
	}

	for _, edge := range matching {
		divisionIndex, roomIndex := edge.Node1, edge.Node2-len(divisions)
		division, room := divisions[divisionIndex], rooms[roomIndex]

		assignments = append(assignments, [2]int{division, room})
	}

	return assignments, nil
}
