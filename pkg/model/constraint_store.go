package model

import (
	"fmt"
	"math"
	"slices"

	"github.com/samber/lo"
)

const noRoom = -1

// Assignment is a committed cell. Entities are ModelInput positions; Room is -1 while a
// deferred commit waits for its room
type Assignment struct {
	Division int
	Day      Day
	Slot     int
	Subject  int
	Teacher  int
	Room     int
}

// Shortfall explains why a division can no longer reach the weekly frequency of a subject
type Shortfall struct {
	Subject  int
	Needed   int
	Teachers []int
	Reason   string
}

type cellAssignment struct {
	subject, teacher, room int
}

// ConstraintStore tracks the teacher-slot, room-slot and division-slot conflict sets of a run
// together with the lessons each division still needs. It is not safe for concurrent use
type ConstraintStore struct {
	input     ModelInput
	evaluator predicateEvaluator
	indexer   indexer

	teacherBusy  []bool
	roomBusy     []bool
	divisionBusy []bool
	assignments  []cellAssignment
	remaining    [][]int // Lessons still needed per division and subject
	daily        [][]int // Lessons taught per division, subject and day
	deferred     [][]int // Divisions committed without a room per cell

	commits uint64
}

func NewConstraintStore(input ModelInput) *ConstraintStore {
	indexer := newIndexer(input.Grid)
	store := &ConstraintStore{
		input:        input,
		evaluator:    newPredicateEvaluator(input),
		indexer:      indexer,
		teacherBusy:  make([]bool, indexer.Size(len(input.Teachers))),
		roomBusy:     make([]bool, indexer.Size(len(input.Rooms))),
		divisionBusy: make([]bool, indexer.Size(len(input.Divisions))),
		assignments:  make([]cellAssignment, indexer.Size(len(input.Divisions))),
		remaining:    make([][]int, len(input.Divisions)),
		daily:        make([][]int, len(input.Divisions)),
		deferred:     make([][]int, input.Grid.Cells()),
	}
	for division := range input.Divisions {
		store.remaining[division] = slices.Clone(input.Frequencies[division])
		store.daily[division] = make([]int, len(input.Subjects)*DaysPerWeek)
	}
	return store
}

func (store *ConstraintStore) Input() ModelInput {
	return store.input
}

// TryCommit records the assignment in every tracking structure, or rejects it with a *CommitError
// leaving the store untouched
func (store *ConstraintStore) TryCommit(division int, day Day, slot int, subject, teacher, room int) error {
	if err := store.checkRange(division, day, slot, subject, teacher); err != nil {
		return err
	}
	if room < 0 || room >= len(store.input.Rooms) {
		return fmt.Errorf("%w: room %d", ErrOutOfRange, room)
	}
	if reason, ok := store.check(division, day, slot, subject, teacher); !ok {
		return store.commitError(reason, division, day, slot, subject, teacher, room)
	}
	if !store.evaluator.Fits(division, room) {
		return store.commitError(KindCapacityExceeded, division, day, slot, subject, teacher, room)
	}
	if store.roomBusy[store.indexer.Index(room, day, slot)] {
		return store.commitError(KindRoomConflict, division, day, slot, subject, teacher, room)
	}

	store.roomBusy[store.indexer.Index(room, day, slot)] = true
	store.record(division, day, slot, subject, teacher, room)
	return nil
}

// TryCommitDeferred is TryCommit without a room: it is rejected with RoomConflict when the divisions
// sharing (day, slot) could no longer be matched to distinct fitting rooms
func (store *ConstraintStore) TryCommitDeferred(division int, day Day, slot int, subject, teacher int) error {
	if err := store.checkRange(division, day, slot, subject, teacher); err != nil {
		return err
	}
	if reason, ok := store.check(division, day, slot, subject, teacher); !ok {
		return store.commitError(reason, division, day, slot, subject, teacher, noRoom)
	}
	if len(store.input.FittingRooms[division]) == 0 {
		return store.commitError(KindCapacityExceeded, division, day, slot, subject, teacher, noRoom)
	}
	cell := store.input.Grid.Cell(day, slot)
	sharing := append(slices.Clone(store.deferred[cell]), division)
	if _, err := store.matchRooms(sharing, day, slot); err != nil {
		return store.commitError(KindRoomConflict, division, day, slot, subject, teacher, noRoom)
	}

	store.deferred[cell] = sharing
	store.record(division, day, slot, subject, teacher, noRoom)
	return nil
}

// Uncommit removes the assignment of the division at (day, slot) and restores the counters
func (store *ConstraintStore) Uncommit(division int, day Day, slot int) error {
	if division < 0 || division >= len(store.input.Divisions) || !store.input.Grid.Contains(day, slot) {
		return fmt.Errorf("%w: division %d at %v slot %d", ErrOutOfRange, division, day, slot)
	}
	divisionIndex := store.indexer.Index(division, day, slot)
	if !store.divisionBusy[divisionIndex] {
		return store.commitError(KindNotCommitted, division, day, slot, noRoom, noRoom, noRoom)
	}
	assignment := store.assignments[divisionIndex]

	if assignment.room == noRoom {
		cell := store.input.Grid.Cell(day, slot)
		store.deferred[cell] = slices.DeleteFunc(store.deferred[cell], func(other int) bool { return other == division })
	} else {
		store.roomBusy[store.indexer.Index(assignment.room, day, slot)] = false
	}
	store.teacherBusy[store.indexer.Index(assignment.teacher, day, slot)] = false
	store.divisionBusy[divisionIndex] = false
	store.remaining[division][assignment.subject]++
	store.daily[division][assignment.subject*DaysPerWeek+int(day)]--
	return nil
}

// IsComplete reports whether every subject of the division reached its weekly frequency
func (store *ConstraintStore) IsComplete(division int) bool {
	for _, subject := range store.input.Curriculum[division] {
		if store.remaining[division][subject] > 0 {
			return false
		}
	}
	return true
}

func (store *ConstraintStore) Remaining(division, subject int) int {
	return store.remaining[division][subject]
}

// Pending lists the subjects the division still needs, most needed first and by subject id on ties
func (store *ConstraintStore) Pending(division int) []int {
	pending := make([]int, 0, len(store.input.Curriculum[division]))
	for _, subject := range store.input.Curriculum[division] {
		if store.remaining[division][subject] > 0 {
			pending = append(pending, subject)
		}
	}
	// Curriculum is sorted by id, so a stable sort keeps the tie-break
	slices.SortStableFunc(pending, func(a, b int) int {
		return store.remaining[division][b] - store.remaining[division][a]
	})
	return pending
}

// Feasible looks at the cells from fromCell onwards and returns nil when the division may still reach
// every weekly frequency, otherwise the subject it provably cannot complete
func (store *ConstraintStore) Feasible(division, fromCell int) *Shortfall {
	pending := store.Pending(division)
	if len(pending) == 0 {
		return nil
	}
	grid := store.input.Grid

	//** Free cells of the division that some fitting room could still host
	free := make([]int, 0, max(grid.Cells()-fromCell, 0))
	for cell := fromCell; cell < grid.Cells(); cell++ {
		day, slot := grid.DaySlot(cell)
		if !store.divisionBusy[store.indexer.Index(division, day, slot)] && store.roomPossible(division, day, slot) {
			free = append(free, cell)
		}
	}

	//** Total demand
	needed := 0
	for _, subject := range pending {
		needed += store.remaining[division][subject]
	}
	if needed > len(free) {
		last := pending[len(pending)-1]
		return store.shortfall(division, last, store.input.Eligible[last],
			fmt.Sprintf("%d lessons are still needed but only %d cells are free", needed, len(free)))
	}

	//** Per subject supply
	usable := make([]bool, len(store.input.Teachers)*len(free))
	for i, cell := range free {
		day, slot := grid.DaySlot(cell)
		for teacher := range store.input.Teachers {
			usable[teacher*len(free)+i] = store.teacherFree(teacher, day, slot)
		}
	}
	for _, subject := range pending {
		perDay := [DaysPerWeek]int{}
		for i, cell := range free {
			for _, teacher := range store.input.Eligible[subject] {
				if usable[teacher*len(free)+i] {
					day, _ := grid.DaySlot(cell)
					perDay[day]++
					break
				}
			}
		}
		supply := 0
		for day, cells := range perDay {
			supply += min(cells, store.dailyCapacity(division, subject, Day(day)))
		}
		if supply < store.remaining[division][subject] {
			return store.shortfall(division, subject, store.input.Eligible[subject],
				fmt.Sprintf("only %d usable cells remain", supply))
		}
	}

	//** Teachers who alone carry several subjects
	demand := make(map[int]int)
	last := make(map[int]int)
	for _, subject := range pending {
		if eligible := store.input.Eligible[subject]; len(eligible) == 1 {
			demand[eligible[0]] += store.remaining[division][subject]
			last[eligible[0]] = subject
		}
	}
	teachers := lo.Keys(demand)
	slices.Sort(teachers)
	for _, teacher := range teachers {
		supply := 0
		for i := range free {
			if usable[teacher*len(free)+i] {
				supply++
			}
		}
		if demand[teacher] > supply {
			return store.shortfall(division, last[teacher], []int{teacher},
				fmt.Sprintf("teacher is the only option for %d lessons but is free in %d cells", demand[teacher], supply))
		}
	}

	return nil
}

// Assignments returns the committed cells of the division in schedule order
func (store *ConstraintStore) Assignments(division int) []Assignment {
	assignments := make([]Assignment, 0)
	for cell := range store.input.Grid.Cells() {
		day, slot := store.input.Grid.DaySlot(cell)
		index := store.indexer.Index(division, day, slot)
		if !store.divisionBusy[index] {
			continue
		}
		assignment := store.assignments[index]
		assignments = append(assignments, Assignment{
			Division: division,
			Day:      day,
			Slot:     slot,
			Subject:  assignment.subject,
			Teacher:  assignment.teacher,
			Room:     assignment.room,
		})
	}
	return assignments
}

// Committed returns how many commits the store accepted over its lifetime
func (store *ConstraintStore) Committed() uint64 {
	return store.commits
}

// AssignDeferredRooms gives every deferred commit a concrete room through a maximum matching per cell
func (store *ConstraintStore) AssignDeferredRooms() error {
	grid := store.input.Grid
	for cell, divisions := range store.deferred {
		if len(divisions) == 0 {
			continue
		}
		day, slot := grid.DaySlot(cell)
		rooms, err := store.matchRooms(divisions, day, slot)
		if err != nil {
			return fmt.Errorf("cannot assign rooms at %v slot %v: %w", day, SlotLabel(slot), err)
		}
		for i, division := range divisions {
			index := store.indexer.Index(division, day, slot)
			store.assignments[index].room = rooms[i]
			store.roomBusy[store.indexer.Index(rooms[i], day, slot)] = true
		}
		store.deferred[cell] = nil
	}
	return nil
}

func (store *ConstraintStore) checkRange(division int, day Day, slot int, subject, teacher int) error {
	switch {
	case division < 0 || division >= len(store.input.Divisions):
		return fmt.Errorf("%w: division %d", ErrOutOfRange, division)
	case !store.input.Grid.Contains(day, slot):
		return fmt.Errorf("%w: %v slot %d", ErrOutOfRange, day, slot)
	case subject < 0 || subject >= len(store.input.Subjects):
		return fmt.Errorf("%w: subject %d", ErrOutOfRange, subject)
	case teacher < 0 || teacher >= len(store.input.Teachers):
		return fmt.Errorf("%w: teacher %d", ErrOutOfRange, teacher)
	}
	return nil
}

// Checks every constraint of a commit that does not involve the room
func (store *ConstraintStore) check(division int, day Day, slot int, subject, teacher int) (ErrorKind, bool) {
	switch {
	case store.divisionBusy[store.indexer.Index(division, day, slot)]:
		return KindDivisionSlotTaken, false
	case !store.evaluator.Eligible(subject, teacher):
		return KindIneligibleTeacher, false
	case !store.evaluator.TeacherAvailable(teacher, day, slot):
		return KindTeacherUnavailable, false
	case store.teacherBusy[store.indexer.Index(teacher, day, slot)]:
		return KindTeacherConflict, false
	case store.remaining[division][subject] <= 0:
		return KindFrequencyExceeded, false
	case store.dailyCapacity(division, subject, day) <= 0:
		return KindDailyLimitExceeded, false
	}
	return "", true
}

func (store *ConstraintStore) record(division int, day Day, slot int, subject, teacher, room int) {
	divisionIndex := store.indexer.Index(division, day, slot)
	store.teacherBusy[store.indexer.Index(teacher, day, slot)] = true
	store.divisionBusy[divisionIndex] = true
	store.assignments[divisionIndex] = cellAssignment{subject: subject, teacher: teacher, room: room}
	store.remaining[division][subject]--
	store.daily[division][subject*DaysPerWeek+int(day)]++
	store.commits++
}

func (store *ConstraintStore) teacherFree(teacher int, day Day, slot int) bool {
	return !store.teacherBusy[store.indexer.Index(teacher, day, slot)] && store.evaluator.TeacherAvailable(teacher, day, slot)
}

func (store *ConstraintStore) roomFree(room int, day Day, slot int) bool {
	return !store.roomBusy[store.indexer.Index(room, day, slot)]
}

// Whether the division could still get a room at (day, slot)
func (store *ConstraintStore) roomPossible(division int, day Day, slot int) bool {
	fitting := store.input.FittingRooms[division]
	if len(fitting) == 0 {
		return false
	}
	deferred := store.deferred[store.input.Grid.Cell(day, slot)]
	if len(deferred) > 0 {
		return len(deferred) < len(store.input.Rooms)
	}
	return slices.ContainsFunc(fitting, func(room int) bool { return store.roomFree(room, day, slot) })
}

func (store *ConstraintStore) dailyCapacity(division, subject int, day Day) int {
	if store.input.MaxDailyLessons == 0 {
		return math.MaxInt
	}
	return store.input.MaxDailyLessons - store.daily[division][subject*DaysPerWeek+int(day)]
}

func (store *ConstraintStore) shortfall(division, subject int, teachers []int, reason string) *Shortfall {
	return &Shortfall{
		Subject:  subject,
		Needed:   store.remaining[division][subject],
		Teachers: slices.Clone(teachers),
		Reason:   reason,
	}
}

func (store *ConstraintStore) commitError(reason ErrorKind, division int, day Day, slot int, subject, teacher, room int) *CommitError {
	err := &CommitError{
		Reason:   reason,
		Division: store.input.Divisions[division].Id,
		Day:      day,
		Slot:     slot,
	}
	if subject >= 0 {
		err.Subject = store.input.Subjects[subject].Id
	}
	if teacher >= 0 {
		err.Teacher = store.input.Teachers[teacher].Id
	}
	if room >= 0 {
		err.Room = store.input.Rooms[room].Id
	}
	return err
}
