package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/limaJavier/timetabler/internal/config"
	"github.com/limaJavier/timetabler/internal/logger"
)

const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitIncomplete = 2 // Some division could not be fully scheduled
)

// ExitError carries the process exit code of a failed command
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps the error returned by Execute to a process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCmd creates the root cobra command for the timetabler CLI.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "timetabler",
		Short: "Weekly timetable generator for school divisions",
		Long: `timetabler assigns subjects, teachers and rooms to the weekly time grid of every
division, never double-booking a teacher, a room or a division.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (JSON or YAML); defaults to $TIMETABLER_CONFIG")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config")

	root.AddCommand(
		newGenerateCmd(a),
		newValidateCmd(a),
		newExportCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) init() error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.logLevel != "" {
		a.cfg.Log.Level = a.logLevel
	}

	a.logger, err = logger.New(a.cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	return nil
}
