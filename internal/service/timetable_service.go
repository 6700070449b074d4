package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/limaJavier/timetabler/internal/apperrors"
	"github.com/limaJavier/timetabler/internal/cache"
	"github.com/limaJavier/timetabler/internal/config"
	"github.com/limaJavier/timetabler/internal/export"
	"github.com/limaJavier/timetabler/internal/store"
	"github.com/limaJavier/timetabler/pkg/model"
)

// RunRepository abstracts the run history; *store.RunRepository implements it
type RunRepository interface {
	Create(ctx context.Context, run *store.Run) error
	Get(ctx context.Context, id string) (*store.Run, error)
	List(ctx context.Context, limit int) ([]*store.Run, error)
}

// GenerateResult is the outcome of one generation request
type GenerateResult struct {
	RunID     string
	Digest    string
	Cached    bool
	Strategy  model.Strategy
	Duration  time.Duration
	Timetable model.Timetable
}

// TimetableService runs the engine for the adapters, consulting the cache and recording runs
type TimetableService struct {
	options        model.Options
	requestTimeout time.Duration
	cache          *cache.TimetableCache
	runs           RunRepository
	logger         *zap.Logger
}

// EngineOptions turns the engine configuration into model options
func EngineOptions(cfg config.EngineConfig) (model.Options, error) {
	strategy, err := model.ParseStrategy(cfg.Strategy)
	if err != nil {
		return model.Options{}, err
	}
	options := model.DefaultOptions()
	options.Strategy = strategy
	options.Model = model.ModelOptions{
		SlotsPerDay:         cfg.SlotsPerDay,
		DefaultDivisionSize: cfg.DefaultDivisionSize,
		MaxDailyLessons:     cfg.MaxDailyLessons,
	}
	options.Search.StepBudget = cfg.StepBudget
	options.Search.TimeBudget = cfg.TimeBudget
	return options, nil
}

// NewTimetableService wires the service. A nil cache or repository disables that feature; observer may be nil
func NewTimetableService(cfg config.EngineConfig, timetableCache *cache.TimetableCache, runs RunRepository, observer model.SearchObserver, logger *zap.Logger) (*TimetableService, error) {
	options, err := EngineOptions(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	options.Search.Logger = logger
	options.Search.Observer = observer

	return &TimetableService{
		options:        options,
		requestTimeout: cfg.RequestTimeout,
		cache:          timetableCache,
		runs:           runs,
		logger:         logger,
	}, nil
}

// Generate builds the timetable of raw. An empty strategy keeps the configured one
func (s *TimetableService) Generate(ctx context.Context, raw model.RawModelInput, strategy string) (*GenerateResult, error) {
	options := s.options
	if strategy != "" {
		parsed, err := model.ParseStrategy(strategy)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, err.Error())
		}
		options.Strategy = parsed
	}

	digest, err := cache.Digest(raw, options)
	if err != nil {
		return nil, err
	}
	result := &GenerateResult{Digest: digest, Strategy: options.Strategy}

	start := time.Now()
	if timetable, hit := s.cache.Get(ctx, digest); hit {
		result.Cached = true
		result.Timetable = timetable
	} else {
		timetable, err := s.generate(ctx, raw, options)
		if err != nil {
			return nil, err
		}
		result.Timetable = timetable
		s.cache.Put(ctx, digest, timetable)
	}
	result.Duration = time.Since(start)

	if s.runs != nil {
		run := store.NewRun(options.Strategy, digest, result.Timetable, result.Duration)
		if err := s.runs.Create(ctx, run); err != nil {
			s.logger.Warn("run not recorded", zap.String("digest", digest), zap.Error(err))
		} else {
			result.RunID = run.ID
		}
	}

	s.logger.Info("timetable_generated",
		zap.String("run_id", result.RunID),
		zap.String("strategy", string(options.Strategy)),
		zap.Bool("cached", result.Cached),
		zap.Bool("complete", result.Timetable.Complete()),
		zap.Int("divisions", len(result.Timetable.Divisions)),
		zap.Duration("elapsed", result.Duration),
	)
	return result, nil
}

func (s *TimetableService) generate(ctx context.Context, raw model.RawModelInput, options model.Options) (model.Timetable, error) {
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}
	return model.Generate(ctx, raw, options)
}

// Validate checks raw against the configured grid without searching
func (s *TimetableService) Validate(raw model.RawModelInput) error {
	_, err := model.ProcessRawInput(raw, s.options.Model)
	return err
}

func (s *TimetableService) Run(ctx context.Context, id string) (*store.Run, error) {
	if s.runs == nil {
		return nil, apperrors.ErrStoreDisabled
	}
	run, err := s.runs.Get(ctx, id)
	if errors.Is(err, store.ErrRunNotFound) {
		return nil, apperrors.Clone(apperrors.ErrNotFound, fmt.Sprintf("run %s not found", id))
	}
	return run, err
}

func (s *TimetableService) Runs(ctx context.Context, limit int) ([]*store.Run, error) {
	if s.runs == nil {
		return nil, apperrors.ErrStoreDisabled
	}
	return s.runs.List(ctx, limit)
}

// Export renders a stored run in the requested format
func (s *TimetableService) Export(ctx context.Context, id string, format string) ([]byte, export.Format, error) {
	parsed, err := export.ParseFormat(format)
	if err != nil {
		return nil, "", apperrors.Clone(apperrors.ErrUnsupportedFormat, err.Error())
	}
	run, err := s.Run(ctx, id)
	if err != nil {
		return nil, "", err
	}
	content, err := export.Render(run.Timetable, parsed, "Run "+run.ID)
	if err != nil {
		return nil, "", err
	}
	return content, parsed, nil
}
