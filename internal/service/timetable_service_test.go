package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limaJavier/timetabler/internal/apperrors"
	"github.com/limaJavier/timetabler/internal/cache"
	"github.com/limaJavier/timetabler/internal/config"
	"github.com/limaJavier/timetabler/internal/export"
	"github.com/limaJavier/timetabler/internal/store"
	"github.com/limaJavier/timetabler/pkg/model"
)

type memoryRuns struct {
	runs []*store.Run
	err  error
}

func (r *memoryRuns) Create(_ context.Context, run *store.Run) error {
	if r.err != nil {
		return r.err
	}
	run.ID = "run-" + string(rune('a'+len(r.runs)))
	run.CreatedAt = time.Now().UTC()
	r.runs = append(r.runs, run)
	return nil
}

func (r *memoryRuns) Get(_ context.Context, id string) (*store.Run, error) {
	for _, run := range r.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return nil, store.ErrRunNotFound
}

func (r *memoryRuns) List(_ context.Context, limit int) ([]*store.Run, error) {
	return r.runs[:min(limit, len(r.runs))], nil
}

type memoryCache map[string][]byte

func (c memoryCache) Get(_ context.Context, key string, dest any) error {
	raw, ok := c[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c memoryCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	c[key] = raw
	return err
}

type countingObserver struct {
	divisions int
}

func (o *countingObserver) ObserveDivision(model.Strategy, model.Status, model.SearchStats) {
	o.divisions++
}

func engineConfig() config.EngineConfig {
	return config.EngineConfig{
		Strategy:            "embedded",
		SlotsPerDay:         6,
		DefaultDivisionSize: 30,
		StepBudget:          100_000,
	}
}

func singleLessonInput() model.RawModelInput {
	return model.RawModelInput{
		Teachers:  []model.Teacher{{Id: "t1", Name: "Ada", Email: "ada@school.test"}},
		Subjects:  []model.Subject{{Id: "s1", Code: "MATH", Name: "Math", AssignedTeachers: []string{"t1"}, Frequency: 1}},
		Rooms:     []model.Room{{Id: "r1", Name: "Lab", Capacity: 30}},
		Divisions: []model.Division{{Id: "d1", Name: "10a"}},
	}
}

func newService(t *testing.T, runs RunRepository, observer model.SearchObserver) *TimetableService {
	t.Helper()
	timetableCache := cache.NewTimetableCache(memoryCache{}, nil, time.Minute, nil)
	service, err := NewTimetableService(engineConfig(), timetableCache, runs, observer, nil)
	require.NoError(t, err)
	return service
}

func TestGenerate(t *testing.T) {
	t.Run("Builds, records and caches", func(t *testing.T) {
		//** Arrange
		runs := &memoryRuns{}
		observer := &countingObserver{}
		service := newService(t, runs, observer)

		//** Act
		first, err := service.Generate(context.Background(), singleLessonInput(), "")
		require.NoError(t, err)
		second, err := service.Generate(context.Background(), singleLessonInput(), "")
		require.NoError(t, err)

		//** Assert
		assert.False(t, first.Cached)
		assert.True(t, second.Cached)
		assert.Equal(t, "run-a", first.RunID)
		assert.Equal(t, "run-b", second.RunID)
		assert.Equal(t, first.Digest, second.Digest)
		assert.Equal(t, model.StrategyEmbedded, first.Strategy)
		assert.Equal(t, 1, observer.divisions)

		lesson, ok := second.Timetable.Divisions[0].Schedule.Lesson(model.Monday, 0)
		require.True(t, ok)
		assert.Equal(t, model.Lesson{Subject: "s1", Teacher: "t1", Room: "r1"}, lesson)
		assert.Equal(t, store.RunComplete, runs.runs[1].Status)
	})

	t.Run("Overrides the strategy", func(t *testing.T) {
		service := newService(t, nil, nil)

		result, err := service.Generate(context.Background(), singleLessonInput(), "postponed")

		require.NoError(t, err)
		assert.Equal(t, model.StrategyPostponed, result.Strategy)
		assert.Empty(t, result.RunID)
	})

	t.Run("Rejects unknown strategies", func(t *testing.T) {
		service := newService(t, nil, nil)

		_, err := service.Generate(context.Background(), singleLessonInput(), "genetic")

		assert.Equal(t, http.StatusBadRequest, apperrors.FromError(err).Status)
	})

	t.Run("Rejects invalid input", func(t *testing.T) {
		service := newService(t, nil, nil)
		input := singleLessonInput()
		input.Subjects[0].AssignedTeachers = []string{"ghost"}

		_, err := service.Generate(context.Background(), input, "")

		assert.ErrorIs(t, err, model.ErrInvalidInput)
		assert.Equal(t, http.StatusUnprocessableEntity, apperrors.FromError(err).Status)
	})

	t.Run("Still answers when the history fails", func(t *testing.T) {
		service := newService(t, &memoryRuns{err: errors.New("database is locked")}, nil)

		result, err := service.Generate(context.Background(), singleLessonInput(), "")

		require.NoError(t, err)
		assert.Empty(t, result.RunID)
		assert.True(t, result.Timetable.Complete())
	})
}

func TestRunsAndExport(t *testing.T) {
	//** Arrange
	runs := &memoryRuns{}
	service := newService(t, runs, nil)
	result, err := service.Generate(context.Background(), singleLessonInput(), "")
	require.NoError(t, err)

	t.Run("Reads a stored run", func(t *testing.T) {
		run, err := service.Run(context.Background(), result.RunID)

		require.NoError(t, err)
		assert.Equal(t, result.Digest, run.InputDigest)
	})

	t.Run("Reports unknown runs", func(t *testing.T) {
		_, err := service.Run(context.Background(), "nope")

		appErr := apperrors.FromError(err)
		assert.Equal(t, http.StatusNotFound, appErr.Status)
		assert.Equal(t, "run nope not found", appErr.Message)
	})

	t.Run("Lists runs", func(t *testing.T) {
		list, err := service.Runs(context.Background(), 10)

		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("Exports CSV", func(t *testing.T) {
		content, format, err := service.Export(context.Background(), result.RunID, "csv")

		require.NoError(t, err)
		assert.Equal(t, export.FormatCSV, format)
		assert.Equal(t, "Division,Name,Day,Slot,Subject,Teacher,Room\nd1,10a,Monday,1,s1,t1,r1", strings.TrimSpace(string(content)))
	})

	t.Run("Rejects unknown formats", func(t *testing.T) {
		_, _, err := service.Export(context.Background(), result.RunID, "xlsx")

		assert.Equal(t, apperrors.ErrUnsupportedFormat.Code, apperrors.FromError(err).Code)
	})

	t.Run("Needs the store", func(t *testing.T) {
		_, err := newService(t, nil, nil).Run(context.Background(), result.RunID)

		assert.ErrorIs(t, err, apperrors.ErrStoreDisabled)
	})
}

func TestValidate(t *testing.T) {
	service := newService(t, nil, nil)
	input := singleLessonInput()
	input.Rooms = append(input.Rooms, model.Room{Id: "r1", Name: "Copy", Capacity: 10})

	err := service.Validate(input)

	var invalid *model.InvalidInputError
	require.ErrorAs(t, err, &invalid)
	assert.NotEmpty(t, invalid.Issues)
	assert.NoError(t, service.Validate(singleLessonInput()))
}

func TestEngineOptions(t *testing.T) {
	cfg := engineConfig()
	cfg.Strategy = "isolated"
	cfg.MaxDailyLessons = 1
	cfg.TimeBudget = time.Second

	options, err := EngineOptions(cfg)

	require.NoError(t, err)
	assert.Equal(t, model.StrategyPostponed, options.Strategy)
	assert.Equal(t, model.ModelOptions{SlotsPerDay: 6, DefaultDivisionSize: 30, MaxDailyLessons: 1}, options.Model)
	assert.Equal(t, uint64(100_000), options.Search.StepBudget)
	assert.Equal(t, time.Second, options.Search.TimeBudget)
}
