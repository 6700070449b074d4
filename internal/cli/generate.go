package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/limaJavier/timetabler/internal/service"
	"github.com/limaJavier/timetabler/pkg/model"
)

type generateFlags struct {
	file       string
	out        string
	strategy   string
	slots      int
	maxDaily   int
	stepBudget uint64
	timeout    time.Duration
}

func newGenerateCmd(a *app) *cobra.Command {
	flags := generateFlags{}

	cmd := &cobra.Command{
		Use:   "generate --file <input>",
		Short: "Build the timetable of every division in an input file",
		Long: `Reads a JSON or YAML input, schedules every division in input order and writes
the timetables as JSON. Exits with 2 when some division could not be completed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options, err := a.engineOptions(cmd, flags)
			if err != nil {
				return err
			}
			raw, err := model.InputFromFile(flags.file)
			if err != nil {
				reportIssues(cmd.ErrOrStderr(), err)
				return err
			}

			ctx := cmd.Context()
			if flags.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, flags.timeout)
				defer cancel()
			}

			timetable, err := model.Generate(ctx, raw, options)
			if err != nil {
				reportIssues(cmd.ErrOrStderr(), err)
				return err
			}

			if err := writeJSON(cmd.OutOrStdout(), flags.out, timetable); err != nil {
				return err
			}
			return incomplete(cmd.ErrOrStderr(), timetable)
		},
	}

	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "Input file (.json, .yaml or .yml)")
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "Output file; standard output when empty")
	cmd.Flags().StringVar(&flags.strategy, "strategy", "", "Room strategy: embedded or postponed (default from config)")
	cmd.Flags().IntVar(&flags.slots, "slots", 0, "Slots per day (default from config)")
	cmd.Flags().IntVar(&flags.maxDaily, "max-daily", -1, "Lessons of one subject per division and day, 0 disables the limit (default from config)")
	cmd.Flags().Uint64Var(&flags.stepBudget, "step-budget", 0, "Cells visited per division before giving up (default from config)")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "Wall time for the whole run, 0 means no limit")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// engineOptions starts from the configured engine and applies the flags that were set
func (a *app) engineOptions(cmd *cobra.Command, flags generateFlags) (model.Options, error) {
	engine := a.cfg.Engine
	if flags.strategy != "" {
		engine.Strategy = flags.strategy
	}
	if flags.slots > 0 {
		engine.SlotsPerDay = flags.slots
	}
	if cmd.Flags().Changed("max-daily") {
		engine.MaxDailyLessons = flags.maxDaily
	}
	if flags.stepBudget > 0 {
		engine.StepBudget = flags.stepBudget
	}

	options, err := service.EngineOptions(engine)
	if err != nil {
		return model.Options{}, err
	}
	options.Search.Logger = a.logger
	return options, nil
}

func reportIssues(w io.Writer, err error) {
	var invalid *model.InvalidInputError
	if !errors.As(err, &invalid) {
		return
	}
	for _, issue := range invalid.Issues {
		fmt.Fprintln(w, issue.String())
	}
}

// incomplete prints the failed divisions and turns them into exit code 2
func incomplete(w io.Writer, timetable model.Timetable) error {
	failures := timetable.Failures()
	if len(failures) == 0 {
		return nil
	}
	for _, failure := range failures {
		fmt.Fprintf(w, "%s: %s: %s\n", failure.Division, failure.Kind, failure.Diagnostic)
	}
	return &ExitError{
		Code: ExitIncomplete,
		Err:  fmt.Errorf("%d of %d divisions could not be scheduled", len(failures), len(timetable.Divisions)),
	}
}

func writeJSON(stdout io.Writer, path string, value any) error {
	content, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	content = append(content, '\n')
	return writeOutput(stdout, path, content)
}

func writeOutput(stdout io.Writer, path string, content []byte) error {
	if path == "" {
		_, err := stdout.Write(content)
		return err
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	return nil
}
