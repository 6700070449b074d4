package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/limaJavier/timetabler/internal/apperrors"
	"github.com/limaJavier/timetabler/internal/config"
	"github.com/limaJavier/timetabler/internal/export"
	"github.com/limaJavier/timetabler/internal/metrics"
	"github.com/limaJavier/timetabler/internal/service"
	"github.com/limaJavier/timetabler/internal/store"
	"github.com/limaJavier/timetabler/pkg/model"
)

type timetableServiceMock struct {
	raw      model.RawModelInput
	strategy string
	err      error
}

func (m *timetableServiceMock) Generate(_ context.Context, raw model.RawModelInput, strategy string) (*service.GenerateResult, error) {
	m.raw = raw
	m.strategy = strategy
	if m.err != nil {
		return nil, m.err
	}
	schedule := model.NewWeeklySchedule()
	schedule[model.Monday][model.SlotLabel(0)] = model.Lesson{Subject: "s1", Teacher: "t1", Room: "r1"}
	return &service.GenerateResult{
		RunID:    "run-1",
		Digest:   "abc",
		Strategy: model.StrategyEmbedded,
		Duration: 5 * time.Millisecond,
		Timetable: model.Timetable{Divisions: []model.DivisionTimetable{
			{Division: "d1", Name: "10a", Status: model.StatusComplete, Schedule: schedule},
		}},
	}, nil
}

func (m *timetableServiceMock) Run(_ context.Context, id string) (*store.Run, error) {
	if id != "run-1" {
		return nil, apperrors.Clone(apperrors.ErrNotFound, "run "+id+" not found")
	}
	return &store.Run{ID: "run-1", Strategy: model.StrategyEmbedded, Status: store.RunComplete}, nil
}

func (m *timetableServiceMock) Runs(_ context.Context, limit int) ([]*store.Run, error) {
	return []*store.Run{{ID: "run-1", Status: store.RunComplete, Duration: 1500 * time.Millisecond}}, nil
}

func (m *timetableServiceMock) Export(_ context.Context, id string, format string) ([]byte, export.Format, error) {
	if format != "csv" {
		return nil, "", apperrors.ErrUnsupportedFormat
	}
	return []byte("Division,Name\n"), export.FormatCSV, nil
}

const validPayload = `{
	"teachers": [{"id": "t1", "name": "Ada", "email": "ada@school.test", "unavailable": [{"day": "friday", "slot": 2}]}],
	"subjects": [{"id": "s1", "code": "MATH", "name": "Math", "assignedTeachers": ["t1"], "frequency": 2}],
	"rooms": [{"id": "r1", "name": "Lab", "capacity": 30}],
	"divisions": [{"id": "d1", "name": "10a"}],
	"options": {"slotsPerDay": 4},
	"strategy": "postponed"
}`

func newTestHandler(mock *timetableServiceMock) *TimetableHandler {
	return &TimetableHandler{service: mock, validator: validator.New()}
}

func post(handler gin.HandlerFunc, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/timetables", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	handler(c)
	return w
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Status  int             `json:"status"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
	Meta map[string]any `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var body envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestGenerateHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Generates from a valid payload", func(t *testing.T) {
		//** Arrange
		mock := &timetableServiceMock{}
		handler := newTestHandler(mock)

		//** Act
		w := post(handler.Generate, validPayload)

		//** Assert
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "postponed", mock.strategy)
		assert.Equal(t, []model.TimeCell{{Day: model.Friday, Slot: 2}}, mock.raw.Teachers[0].Unavailable)
		assert.Equal(t, 4, mock.raw.Options.SlotsPerDay)
		assert.Equal(t, 2, mock.raw.Subjects[0].Frequency)

		body := decode(t, w)
		var data struct {
			RunID      string            `json:"runId"`
			Complete   bool              `json:"complete"`
			Timetables []json.RawMessage `json:"timetables"`
			Failures   []json.RawMessage `json:"failures"`
		}
		require.NoError(t, json.Unmarshal(body.Data, &data))
		assert.Equal(t, "run-1", data.RunID)
		assert.True(t, data.Complete)
		assert.Len(t, data.Timetables, 1)
		assert.NotNil(t, data.Failures)
		assert.Empty(t, data.Failures)
		assert.Equal(t, "abc", body.Meta["digest"])
	})

	t.Run("Rejects malformed JSON", func(t *testing.T) {
		w := post(newTestHandler(&timetableServiceMock{}).Generate, `{"teachers":`)

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", decode(t, w).Error.Code)
	})

	t.Run("Reports every invalid field", func(t *testing.T) {
		w := post(newTestHandler(&timetableServiceMock{}).Generate, `{
			"teachers": [{"id": "t1", "email": "not-an-email"}],
			"subjects": [], "rooms": [], "divisions": []
		}`)

		require.Equal(t, http.StatusBadRequest, w.Code)
		var issues []fieldIssue
		require.NoError(t, json.Unmarshal(decode(t, w).Error.Details, &issues))
		rules := map[string]string{}
		for _, issue := range issues {
			rules[issue.Field] = issue.Rule
		}
		assert.Equal(t, map[string]string{
			"GenerateRequest.Teachers[0].Name":  "required",
			"GenerateRequest.Teachers[0].Email": "email",
			"GenerateRequest.Divisions":         "min",
		}, rules)
	})

	t.Run("Rejects unknown days", func(t *testing.T) {
		w := post(newTestHandler(&timetableServiceMock{}).Generate, `{
			"teachers": [{"id": "t1", "name": "Ada", "unavailable": [{"day": "sunday", "slot": 1}]}],
			"subjects": [], "rooms": [], "divisions": [{"id": "d1", "name": "10a"}]
		}`)

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decode(t, w).Error.Message, "teacher t1")
	})

	t.Run("Maps invalid input to 422", func(t *testing.T) {
		issues := []model.InputIssue{{Collection: "subjects", Id: "s1", Field: "assignedTeachers", Message: `unknown teacher "t9"`}}
		mock := &timetableServiceMock{err: &model.InvalidInputError{Issues: issues}}

		w := post(newTestHandler(mock).Generate, validPayload)

		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		body := decode(t, w)
		var details []model.InputIssue
		require.NoError(t, json.Unmarshal(body.Error.Details, &details))
		assert.Equal(t, issues, details)
	})

	t.Run("Hides internal failures", func(t *testing.T) {
		mock := &timetableServiceMock{err: errors.New("boom")}

		w := post(newTestHandler(mock).Generate, validPayload)

		require.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "internal server error", decode(t, w).Error.Message)
	})
}

func testRouter(readiness ...ReadinessCheck) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(RouterDeps{
		Config:    &config.Config{APIPrefix: "/api/v1"},
		Logger:    zap.NewNop(),
		Metrics:   metrics.New(),
		Handler:   newTestHandler(&timetableServiceMock{}),
		Readiness: readiness,
	})
}

func TestRouter(t *testing.T) {
	t.Run("Serves the legacy path", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/generate-timetable", bytes.NewReader([]byte(validPayload)))
		req.Header.Set("Content-Type", "application/json")

		testRouter().ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("Reads runs", func(t *testing.T) {
		router := testRouter()

		found := httptest.NewRecorder()
		router.ServeHTTP(found, httptest.NewRequest(http.MethodGet, "/api/v1/timetables/run-1", nil))
		missing := httptest.NewRecorder()
		router.ServeHTTP(missing, httptest.NewRequest(http.MethodGet, "/api/v1/timetables/run-2", nil))
		list := httptest.NewRecorder()
		router.ServeHTTP(list, httptest.NewRequest(http.MethodGet, "/api/v1/timetables?limit=5", nil))
		badLimit := httptest.NewRecorder()
		router.ServeHTTP(badLimit, httptest.NewRequest(http.MethodGet, "/api/v1/timetables?limit=zero", nil))

		assert.Equal(t, http.StatusOK, found.Code)
		assert.Equal(t, http.StatusNotFound, missing.Code)
		assert.Equal(t, "run run-2 not found", decode(t, missing).Error.Message)
		assert.Equal(t, http.StatusOK, list.Code)
		assert.Contains(t, list.Body.String(), `"durationMs":1500`)
		assert.Equal(t, http.StatusBadRequest, badLimit.Code)
	})

	t.Run("Exports runs", func(t *testing.T) {
		router := testRouter()

		csv := httptest.NewRecorder()
		router.ServeHTTP(csv, httptest.NewRequest(http.MethodGet, "/api/v1/timetables/run-1/export?format=csv", nil))
		xlsx := httptest.NewRecorder()
		router.ServeHTTP(xlsx, httptest.NewRequest(http.MethodGet, "/api/v1/timetables/run-1/export?format=xlsx", nil))

		assert.Equal(t, http.StatusOK, csv.Code)
		assert.Equal(t, "text/csv", csv.Header().Get("Content-Type"))
		assert.Equal(t, "attachment; filename=timetable-run-1.csv", csv.Header().Get("Content-Disposition"))
		assert.Equal(t, "Division,Name\n", csv.Body.String())
		assert.Equal(t, http.StatusBadRequest, xlsx.Code)
	})

	t.Run("Reports readiness", func(t *testing.T) {
		ready := httptest.NewRecorder()
		testRouter(func(context.Context) error { return nil }).
			ServeHTTP(ready, httptest.NewRequest(http.MethodGet, "/ready", nil))
		unavailable := httptest.NewRecorder()
		testRouter(func(context.Context) error { return errors.New("store down") }).
			ServeHTTP(unavailable, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusOK, ready.Code)
		assert.Equal(t, http.StatusServiceUnavailable, unavailable.Code)
		assert.Contains(t, unavailable.Body.String(), "store down")
	})

	t.Run("Exposes metrics", func(t *testing.T) {
		router := testRouter()
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `path="/health"`)
	})
}
