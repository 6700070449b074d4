package model

import (
	"context"
	"errors"
	"fmt"
)

// isolatedRoomTimetabler leaves rooms out of the search: each commit only has to keep the divisions of its
// slot matchable to distinct fitting rooms, and the concrete rooms come from the final matchings
type isolatedRoomTimetabler struct {
	options SearchOptions
}

func NewIsolatedRoomTimetabler(options SearchOptions) Timetabler {
	return &isolatedRoomTimetabler{
		options: options,
	}
}

func (timetabler *isolatedRoomTimetabler) Build(ctx context.Context, modelInput ModelInput) (Timetable, error) {
	//** Initialize dependencies
	store := NewConstraintStore(modelInput)

	//** Search every division against the shared store
	outcomes := searchDivisions(ctx, store, isolatedPlacement{}, StrategyPostponed, timetabler.options)

	//** Room assignment
	if err := store.AssignDeferredRooms(); err != nil {
		return Timetable{}, fmt.Errorf("room assignment failed: %w", err)
	}

	return buildTimetable(store, outcomes), nil
}

func (timetabler *isolatedRoomTimetabler) Verify(timetable Timetable, modelInput ModelInput) error {
	return verify(timetable, modelInput)
}

type isolatedPlacement struct{}

func (isolatedPlacement) Place(store *ConstraintStore, division int, day Day, slot int, subject int) bool {
	if store.dailyCapacity(division, subject, day) <= 0 {
		return false
	}
	for _, teacher := range store.input.Eligible[subject] {
		if !store.teacherFree(teacher, day, slot) {
			continue
		}
		err := store.TryCommitDeferred(division, day, slot, subject, teacher)
		if err == nil {
			return true
		}
		// Room matching does not depend on the teacher
		var commitErr *CommitError
		if errors.As(err, &commitErr) && (commitErr.Reason == KindRoomConflict || commitErr.Reason == KindCapacityExceeded) {
			return false
		}
	}
	return false
}
