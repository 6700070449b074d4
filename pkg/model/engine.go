package model

import (
	"context"
	"fmt"
)

type Options struct {
	Strategy Strategy
	Model    ModelOptions
	Search   SearchOptions
}

func DefaultOptions() Options {
	return Options{
		Strategy: StrategyEmbedded,
		Model:    DefaultModelOptions(),
		Search:   DefaultSearchOptions(),
	}
}

// Generate validates the raw input, builds the timetable with a fresh store and verifies the result.
// Invalid input fails with *InvalidInputError before any search starts; divisions that could not be
// completed are reported through Timetable.Failures
func Generate(ctx context.Context, rawInput RawModelInput, options Options) (Timetable, error) {
	input, err := ProcessRawInput(rawInput, options.Model)
	if err != nil {
		return Timetable{}, err
	}

	timetabler, err := NewTimetabler(options.Strategy, options.Search)
	if err != nil {
		return Timetable{}, err
	}

	timetable, err := timetabler.Build(ctx, input)
	if err != nil {
		return Timetable{}, fmt.Errorf("an error occurred during timetable construction: %w", err)
	}

	if err := timetabler.Verify(timetable, input); err != nil {
		return Timetable{}, fmt.Errorf("built timetable is not valid: %w", err)
	}
	return timetable, nil
}
