package model

import (
	"context"
	"fmt"
	"strings"
)

type Timetabler interface {
	// Build searches every division of the model in input order. Divisions that cannot be completed
	// are reported inside the timetable; the error is reserved for failures of the run itself
	Build(
		ctx context.Context,
		modelInput ModelInput,
	) (Timetable, error)

	// Verify re-checks every hard constraint on a built timetable
	Verify(
		timetable Timetable,
		modelInput ModelInput,
	) error
}

type Strategy string

const (
	// Rooms are chosen during search
	StrategyEmbedded Strategy = "embedded"
	// Rooms are matched per slot once every division has been searched
	StrategyPostponed Strategy = "postponed"
)

func Strategies() []Strategy {
	return []Strategy{StrategyEmbedded, StrategyPostponed}
}

func ParseStrategy(value string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(StrategyEmbedded), "pure":
		return StrategyEmbedded, nil
	case string(StrategyPostponed), "isolated":
		return StrategyPostponed, nil
	}
	return "", fmt.Errorf("%v is not a valid strategy", value)
}

func NewTimetabler(strategy Strategy, options SearchOptions) (Timetabler, error) {
	switch strategy {
	case StrategyEmbedded:
		return NewEmbeddedRoomTimetabler(options), nil
	case StrategyPostponed:
		return NewIsolatedRoomTimetabler(options), nil
	}
	return nil, fmt.Errorf("%v is not a valid strategy", strategy)
}
