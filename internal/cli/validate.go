package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/limaJavier/timetabler/pkg/model"
)

func newValidateCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate --file <input>",
		Short: "Check an input file and print every issue found",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := model.InputFromFile(file)
			if err != nil {
				reportIssues(cmd.OutOrStdout(), err)
				return err
			}
			options := model.ModelOptions{
				SlotsPerDay:         a.cfg.Engine.SlotsPerDay,
				DefaultDivisionSize: a.cfg.Engine.DefaultDivisionSize,
				MaxDailyLessons:     a.cfg.Engine.MaxDailyLessons,
			}
			input, err := model.ProcessRawInput(raw, options)
			if err != nil {
				reportIssues(cmd.OutOrStdout(), err)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "input is valid: %d teachers, %d subjects, %d rooms, %d divisions, %d×%d grid\n",
				len(raw.Teachers), len(raw.Subjects), len(raw.Rooms), len(raw.Divisions), model.DaysPerWeek, input.Grid.SlotsPerDay)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Input file (.json, .yaml or .yml)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
