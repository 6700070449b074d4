package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/limaJavier/timetabler/internal/export"
	"github.com/limaJavier/timetabler/pkg/model"
)

func newExportCmd(a *app) *cobra.Command {
	var file, format, out, title string

	cmd := &cobra.Command{
		Use:   "export --file <result.json> --format csv|pdf",
		Short: "Convert a generated timetable to CSV or PDF",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			content, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read result file: %w", err)
			}
			var timetable model.Timetable
			if err := json.Unmarshal(content, &timetable); err != nil {
				return fmt.Errorf("parse result file: %w", err)
			}

			if title == "" {
				title = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
			}
			rendered, err := export.Render(timetable, parsed, title)
			if err != nil {
				return err
			}
			a.logger.Debug("timetable exported",
				zap.String("format", string(parsed)),
				zap.Int("divisions", len(timetable.Divisions)),
				zap.Int("bytes", len(rendered)),
			)
			return writeOutput(cmd.OutOrStdout(), out, rendered)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Timetable JSON written by generate")
	cmd.Flags().StringVar(&format, "format", string(export.FormatCSV), "Output format: csv, pdf or json")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file; standard output when empty")
	cmd.Flags().StringVar(&title, "title", "", "PDF page title; defaults to the input file name")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
