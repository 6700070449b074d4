package model

import (
	"context"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	DefaultStepBudget = 2_000_000
	cancellationCheck = 1024 // Steps between context and deadline checks
)

type SearchOptions struct {
	StepBudget uint64        // Cells visited per division before giving up, 0 means unbounded
	TimeBudget time.Duration // Wall time per division, 0 means unbounded
	Logger     *zap.Logger
	Observer   SearchObserver
}

func DefaultSearchOptions() SearchOptions {
	return SearchOptions{StepBudget: DefaultStepBudget}
}

// SearchObserver receives the outcome of every division search
type SearchObserver interface {
	ObserveDivision(strategy Strategy, status Status, stats SearchStats)
}

type SearchStats struct {
	Steps      uint64
	Backtracks uint64
	Elapsed    time.Duration
}

// roomPlacement commits a lesson of the subject at a cell, choosing the teacher (and the room when the
// strategy places rooms during search)
type roomPlacement interface {
	Place(store *ConstraintStore, division int, day Day, slot int, subject int) bool
}

type divisionSearch struct {
	ctx       context.Context
	store     *ConstraintStore
	placement roomPlacement
	division  int
	cells     int

	stepBudget uint64
	deadline   time.Time
	stats      SearchStats
	aborted    error

	deepest      *Shortfall
	deepestCell  int
	deepestFound bool
}

func newDivisionSearch(ctx context.Context, store *ConstraintStore, placement roomPlacement, division int, options SearchOptions) *divisionSearch {
	search := &divisionSearch{
		ctx:        ctx,
		store:      store,
		placement:  placement,
		division:   division,
		cells:      store.input.Grid.Cells(),
		stepBudget: options.StepBudget,
	}
	if options.TimeBudget > 0 {
		search.deadline = time.Now().Add(options.TimeBudget)
	}
	return search
}

// run searches the division and reports the outcome. Unsatisfiable searches leave the store as they
// found it; aborted searches keep their partial commits
func (search *divisionSearch) run() error {
	start := time.Now()
	defer func() { search.stats.Elapsed = time.Since(start) }()

	if search.assign(0) {
		return nil
	}
	division := search.store.input.Divisions[search.division].Id
	if search.aborted != nil {
		return &SearchExhaustedError{Division: division, Steps: search.stats.Steps, Cause: search.aborted}
	}
	return search.unsatisfiable(division)
}

func (search *divisionSearch) assign(cell int) bool {
	if !search.step() {
		return false
	}
	if search.store.IsComplete(search.division) {
		return true
	}
	if cell == search.cells {
		search.fail(cell, search.store.Feasible(search.division, cell))
		return false
	}
	if shortfall := search.store.Feasible(search.division, cell); shortfall != nil {
		search.fail(cell, shortfall)
		return false
	}

	day, slot := search.store.input.Grid.DaySlot(cell)
	for _, subject := range search.store.Pending(search.division) {
		if !search.placement.Place(search.store, search.division, day, slot, subject) {
			continue
		}
		if search.assign(cell + 1) {
			return true
		}
		if search.aborted != nil {
			return false
		}
		lo.Must0(search.store.Uncommit(search.division, day, slot))
		search.stats.Backtracks++
	}

	// Leave the cell empty
	return search.assign(cell + 1)
}

func (search *divisionSearch) step() bool {
	if search.aborted != nil {
		return false
	}
	search.stats.Steps++
	if search.stepBudget > 0 && search.stats.Steps > search.stepBudget {
		search.aborted = errStepBudget
		return false
	}
	if (search.stats.Steps-1)%cancellationCheck == 0 {
		if err := search.ctx.Err(); err != nil {
			search.aborted = err
			return false
		}
		if !search.deadline.IsZero() && time.Now().After(search.deadline) {
			search.aborted = context.DeadlineExceeded
			return false
		}
	}
	return true
}

// Keeps the failure found furthest into the week
func (search *divisionSearch) fail(cell int, shortfall *Shortfall) {
	if shortfall == nil {
		return
	}
	if !search.deepestFound || cell > search.deepestCell {
		search.deepest, search.deepestCell, search.deepestFound = shortfall, cell, true
	}
}

func (search *divisionSearch) unsatisfiable(division string) *UnsatisfiableError {
	input := search.store.input
	shortfall := search.deepest
	if shortfall == nil {
		// Every branch ended without a provable shortfall, blame the most demanding subject
		pending := search.store.Pending(search.division)
		if len(pending) == 0 {
			pending = input.Curriculum[search.division]
		}
		subject := pending[0]
		shortfall = &Shortfall{Subject: subject, Needed: input.Frequencies[search.division][subject], Teachers: input.Eligible[subject]}
	}
	return &UnsatisfiableError{
		Division:        division,
		Subject:         input.Subjects[shortfall.Subject].Id,
		RemainingNeeded: shortfall.Needed,
		Teachers:        lo.Map(shortfall.Teachers, func(teacher int, _ int) string { return input.Teachers[teacher].Id }),
	}
}
