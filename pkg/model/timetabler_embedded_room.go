package model

import "context"

type embeddedRoomTimetabler struct {
	options SearchOptions
}

func NewEmbeddedRoomTimetabler(options SearchOptions) Timetabler {
	return &embeddedRoomTimetabler{
		options: options,
	}
}

func (timetabler *embeddedRoomTimetabler) Build(ctx context.Context, modelInput ModelInput) (Timetable, error) {
	//** Initialize dependencies
	store := NewConstraintStore(modelInput)

	//** Search every division against the shared store
	outcomes := searchDivisions(ctx, store, embeddedPlacement{}, StrategyEmbedded, timetabler.options)

	return buildTimetable(store, outcomes), nil
}

func (timetabler *embeddedRoomTimetabler) Verify(timetable Timetable, modelInput ModelInput) error {
	return verify(timetable, modelInput)
}

// Tries eligible teachers and fitting rooms in id order and keeps the first combination the store accepts
type embeddedPlacement struct{}

func (embeddedPlacement) Place(store *ConstraintStore, division int, day Day, slot int, subject int) bool {
	if store.dailyCapacity(division, subject, day) <= 0 {
		return false
	}
	for _, teacher := range store.input.Eligible[subject] {
		if !store.teacherFree(teacher, day, slot) {
			continue
		}
		for _, room := range store.input.FittingRooms[division] {
			if !store.roomFree(room, day, slot) {
				continue
			}
			if store.TryCommit(division, day, slot, subject, teacher, room) == nil {
				return true
			}
		}
	}
	return false
}
