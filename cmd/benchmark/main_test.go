package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limaJavier/timetabler/pkg/model"
)

func TestSyntheticSchool(t *testing.T) {
	for _, divisions := range []int{1, 5, 40} {
		input := syntheticSchool(divisions)

		_, err := model.ProcessRawInput(input, model.DefaultModelOptions())

		require.NoError(t, err)
		assert.Len(t, input.Divisions, divisions)
		assert.Len(t, input.Subjects, 5)
		for _, subject := range input.Subjects {
			assert.NotEqual(t, subject.AssignedTeachers[0], subject.AssignedTeachers[1])
		}
	}
}

func TestGetTests(t *testing.T) {
	tests, err := getTests("../../pkg/model/testdata")
	require.NoError(t, err)
	assert.Len(t, tests, 3)
	for _, test := range tests {
		assert.False(t, test.Synthetic)
		assert.Positive(t, test.Divisions)
	}

	_, err = getTests(t.TempDir())
	assert.Error(t, err)
}

func TestMeasure(t *testing.T) {
	t.Run("Small synthetic school is solved", func(t *testing.T) {
		test := syntheticTests([]int{2})[0]

		result := measure(context.Background(), model.StrategyEmbedded, model.DefaultStepBudget, test)

		assert.Equal(t, solved, result.Result)
		assert.Positive(t, result.Steps)
		assert.Zero(t, result.Failures)
	})

	t.Run("Unsatisfiable fixture is partial", func(t *testing.T) {
		input, err := model.InputFromFile("../../pkg/model/testdata/unsatisfiable/overloaded_teacher.json")
		require.NoError(t, err)

		result := measure(context.Background(), model.StrategyPostponed, model.DefaultStepBudget, newTestMetadata("overloaded", false, input))

		assert.Equal(t, partial, result.Result)
		assert.Equal(t, 1, result.Failures)
	})

	t.Run("Invalid input", func(t *testing.T) {
		input := syntheticSchool(1)
		input.Subjects[0].AssignedTeachers = []string{"ghost"}

		result := measure(context.Background(), model.StrategyEmbedded, model.DefaultStepBudget, newTestMetadata("invalid", true, input))

		assert.Equal(t, invalid, result.Result)
	})
}

func TestToCsv(t *testing.T) {
	//** Arrange
	out := filepath.Join(t.TempDir(), "results.csv")
	test := newTestMetadata("synthetic-1", true, syntheticSchool(1))
	results := []BenchmarkResult{
		{Strategy: model.StrategyPostponed, Test: test, Duration: 1500 * time.Microsecond, Steps: 20, Result: solved},
		{Strategy: model.StrategyEmbedded, Test: test, Duration: 2 * time.Millisecond, Steps: 16, Result: partial, Failures: 1},
	}

	//** Act
	err := toCsv(out, results)

	//** Assert
	require.NoError(t, err)
	content, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Strategy,Test,Synthetic,"))
	assert.Equal(t, "embedded,synthetic-1,true,2,5,1,1,2.000,0.0,16,0,1,partial", lines[1])
	assert.Equal(t, "postponed,synthetic-1,true,2,5,1,1,1.500,0.0,20,0,0,solved", lines[2])
}
