package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/limaJavier/timetabler/internal/export"
	"github.com/limaJavier/timetabler/pkg/model"
)

const (
	defaultTestDirectory = "pkg/model/testdata/"
	MB           float32 = 1024 * 1024
)

type ResultType int

const (
	solved ResultType = iota
	partial
	invalid
)

var resultTypes = map[ResultType]string{
	solved:  "solved",
	partial: "partial",
	invalid: "invalid",
}

type TestMetadata struct {
	Name      string
	Synthetic bool
	Teachers  int
	Subjects  int
	Rooms     int
	Divisions int
	Input     model.RawModelInput
}

type BenchmarkResult struct {
	Strategy   model.Strategy
	Test       TestMetadata
	Duration   time.Duration
	Memory     float32
	Steps      uint64
	Backtracks uint64
	Failures   int
	Result     ResultType
}

// statsObserver adds up the search statistics of every division of a run
type statsObserver struct {
	steps      uint64
	backtracks uint64
}

func (observer *statsObserver) ObserveDivision(_ model.Strategy, _ model.Status, stats model.SearchStats) {
	observer.steps += stats.Steps
	observer.backtracks += stats.Backtracks
}

func main() {
	var (
		directory string
		out       string
		sizes     []int
		budget    uint64
	)

	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Measure both room strategies over the fixture files and synthetic schools",
		RunE: func(cmd *cobra.Command, args []string) error {
			tests, err := getTests(directory)
			if err != nil {
				return err
			}
			tests = append(tests, syntheticTests(sizes)...)

			results := make([]BenchmarkResult, 0, len(tests)*len(model.Strategies()))
			for _, test := range tests {
				for _, strategy := range model.Strategies() {
					fmt.Fprintf(cmd.OutOrStdout(), "Benchmarking test %q with strategy %q\n", test.Name, strategy)
					results = append(results, measure(cmd.Context(), strategy, budget, test))
				}
			}
			return toCsv(out, results)
		},
	}
	cmd.Flags().StringVar(&directory, "dir", defaultTestDirectory, "Directory holding satisfiable/ and unsatisfiable/ input files")
	cmd.Flags().StringVar(&out, "out", "benchmark_results.csv", "CSV file to write")
	cmd.Flags().IntSliceVar(&sizes, "sizes", []int{5, 10, 20, 40}, "Division counts of the synthetic schools")
	cmd.Flags().Uint64Var(&budget, "step-budget", model.DefaultStepBudget, "Step budget per division")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func getTests(directory string) ([]TestMetadata, error) {
	tests := make([]TestMetadata, 0)
	for _, subdirectory := range []string{"satisfiable", "unsatisfiable"} {
		files, err := os.ReadDir(filepath.Join(directory, subdirectory))
		if err != nil {
			return nil, fmt.Errorf("cannot read directory: %w", err)
		}
		for _, file := range files {
			filename := filepath.Join(directory, subdirectory, file.Name())
			input, err := model.InputFromFile(filename)
			if err != nil {
				return nil, fmt.Errorf("cannot parse input file %s: %w", filename, err)
			}
			tests = append(tests, newTestMetadata(filename, false, input))
		}
	}
	return tests, nil
}

func syntheticTests(sizes []int) []TestMetadata {
	return lo.Map(sizes, func(divisions int, _ int) TestMetadata {
		return newTestMetadata(fmt.Sprintf("synthetic-%d", divisions), true, syntheticSchool(divisions))
	})
}

func newTestMetadata(name string, synthetic bool, input model.RawModelInput) TestMetadata {
	return TestMetadata{
		Name:      name,
		Synthetic: synthetic,
		Teachers:  len(input.Teachers),
		Subjects:  len(input.Subjects),
		Rooms:     len(input.Rooms),
		Divisions: len(input.Divisions),
		Input:     input,
	}
}

// syntheticSchool builds a school of the given number of divisions sharing five subjects (16 weekly
// lessons each), two eligible teachers per subject and one room per division
func syntheticSchool(divisions int) model.RawModelInput {
	frequencies := []int{4, 4, 3, 3, 2}
	teachers := max(2, divisions*16/20+1)

	input := model.RawModelInput{}
	for t := range teachers {
		id := "t" + strconv.Itoa(t)
		input.Teachers = append(input.Teachers, model.Teacher{Id: id, Name: "Teacher " + id, Email: id + "@school.test"})
	}
	for s, frequency := range frequencies {
		id := "s" + strconv.Itoa(s)
		input.Subjects = append(input.Subjects, model.Subject{
			Id:               id,
			Code:             "SUB" + strconv.Itoa(s),
			Name:             "Subject " + id,
			AssignedTeachers: []string{"t" + strconv.Itoa((2*s)%teachers), "t" + strconv.Itoa((2*s+1)%teachers)},
			Frequency:        frequency,
		})
	}
	for d := range divisions {
		id := strconv.Itoa(d)
		input.Rooms = append(input.Rooms, model.Room{Id: "r" + id, Name: "Room " + id, Capacity: 30 + 5*(d%3)})
		input.Divisions = append(input.Divisions, model.Division{Id: "d" + id, Name: "Division " + id, Size: 25 + d%6})
	}
	return input
}

func measure(ctx context.Context, strategy model.Strategy, budget uint64, test TestMetadata) BenchmarkResult {
	observer := &statsObserver{}
	options := model.DefaultOptions()
	options.Strategy = strategy
	options.Search.StepBudget = budget
	options.Search.Observer = observer

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	start := time.Now()
	timetable, err := model.Generate(ctx, test.Input, options)
	duration := time.Since(start)
	runtime.ReadMemStats(&after)

	result := BenchmarkResult{
		Strategy:   strategy,
		Test:       test,
		Duration:   duration,
		Memory:     float32(after.TotalAlloc-before.TotalAlloc) / MB,
		Steps:      observer.steps,
		Backtracks: observer.backtracks,
	}
	switch {
	case err != nil:
		result.Result = invalid
	case timetable.Complete():
		result.Result = solved
	default:
		result.Result = partial
		result.Failures = len(timetable.Failures())
	}
	return result
}

func resultsDataset(results []BenchmarkResult) export.Dataset {
	headers := []string{"Strategy", "Test", "Synthetic", "Teachers", "Subjects", "Rooms", "Divisions", "Duration(ms)", "Allocated(MB)", "Steps", "Backtracks", "Failures", "Result"}
	sorted := append([]BenchmarkResult(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Strategy < sorted[j].Strategy })

	rows := lo.Map(sorted, func(result BenchmarkResult, _ int) map[string]string {
		return map[string]string{
			"Strategy":      string(result.Strategy),
			"Test":          result.Test.Name,
			"Synthetic":     strconv.FormatBool(result.Test.Synthetic),
			"Teachers":      strconv.Itoa(result.Test.Teachers),
			"Subjects":      strconv.Itoa(result.Test.Subjects),
			"Rooms":         strconv.Itoa(result.Test.Rooms),
			"Divisions":     strconv.Itoa(result.Test.Divisions),
			"Duration(ms)":  fmt.Sprintf("%.3f", float64(result.Duration.Microseconds())/1000),
			"Allocated(MB)": fmt.Sprintf("%.1f", result.Memory),
			"Steps":         strconv.FormatUint(result.Steps, 10),
			"Backtracks":    strconv.FormatUint(result.Backtracks, 10),
			"Failures":      strconv.Itoa(result.Failures),
			"Result":        resultTypes[result.Result],
		}
	})
	return export.Dataset{Headers: headers, Rows: rows}
}

func toCsv(path string, results []BenchmarkResult) error {
	content, err := export.NewCSVExporter().Render(resultsDataset(results))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("cannot write CSV file: %w", err)
	}
	return nil
}
