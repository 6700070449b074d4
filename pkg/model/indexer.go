package model

// indexer gives every (entity, day, slot) triple of a conflict table its own position
type indexer interface {
	// Returns a unique index for the entity at the given day and slot
	Index(entity int, day Day, slot int) int
	// Returns the size of a table holding entities
	Size(entities int) int
}

func newIndexer(grid Grid) indexer {
	return &indexerImplementation{
		days:  DaysPerWeek,
		slots: grid.SlotsPerDay,
	}
}
