package http_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adapterHTTP "github.com/comitanigiacomo/kanso-quit-engine/internal/adapters/handler/http"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/adapters/handler/http/middleware"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/adapters/repository"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/progress"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/services"
)

// fixedNow is 2024-03-10 in UTC and already 2024-03-11 in UTC+14.
var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

const planBody = `{
	"start_date": "2024-03-01",
	"initial_daily_cigarettes": 20,
	"pack_price": 20000,
	"phases": [
		{"index": 1, "target_daily_cigarettes": 10},
		{"index": 2, "target_daily_cigarettes": 5}
	]
}`

type testEnv struct {
	router *gin.Engine
	plans  *repository.InMemoryPlanRepository
	local  *repository.InMemoryCheckinStore
	remote *repository.InMemoryCheckinStore
}

func newServices(env *testEnv) (*services.PlanService, *services.CheckinService, *services.ProgressService) {
	return services.NewPlanService(env.plans),
		services.NewCheckinService(env.local, env.remote, env.plans, time.Second),
		services.NewProgressService(env.plans, env.local, env.remote, progress.NewAggregator(0, ""), time.Second)
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		plans:  repository.NewInMemoryPlanRepository(),
		local:  repository.NewInMemoryCheckinStore(),
		remote: repository.NewInMemoryCheckinStore(),
	}
	planSvc, checkinSvc, progressSvc := newServices(env)
	days := adapterHTTP.DayResolver{Default: time.UTC, Now: func() time.Time { return fixedNow }}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID := c.GetHeader("X-User-ID"); userID != "" {
			c.Set(middleware.ContextUserIDKey, userID)
		}
		c.Next()
	})

	api := r.Group("/api/v1")
	adapterHTTP.NewPlanHandler(planSvc, days).RegisterRoutes(api)
	adapterHTTP.NewCheckinHandler(checkinSvc, days).RegisterRoutes(api)
	adapterHTTP.NewProgressHandler(progressSvc, days).RegisterRoutes(api)

	env.router = r
	return env
}

func (env *testEnv) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestPlanHandler(t *testing.T) {
	env := setupRouter(t)

	t.Run("Fail: no plan yet is 404", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/plan", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Success: create plan", func(t *testing.T) {
		w := env.do(http.MethodPut, "/api/v1/plan", planBody)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		plan := decode[domain.Plan](t, w)
		assert.Equal(t, "user-1", plan.UserID)
		assert.Equal(t, domain.MustParseCalendarDate("2024-03-01"), plan.StartDate)
		assert.Equal(t, 1, plan.Version)
		assert.Len(t, plan.Phases, 2)
	})

	t.Run("Success: read it back", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/plan", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 20000.0, decode[domain.Plan](t, w).PackPrice)
	})

	t.Run("Fail: stale version is 409", func(t *testing.T) {
		body := `{"start_date":"2024-03-01","phases":[{"index":1,"target_daily_cigarettes":3}],"version":7}`
		w := env.do(http.MethodPut, "/api/v1/plan", body)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "version conflict")
	})

	t.Run("Fail: invalid bodies are 400", func(t *testing.T) {
		bodies := []string{
			`{"start_date":"2024-03-01","phases":[]}`,
			`{"start_date":"2024-03-01","phases":[{"index":0,"target_daily_cigarettes":3}]}`,
			`{"start_date":"2024-03-01","pack_price":-1,"phases":[{"index":1}]}`,
			`{"start_date":"03/01/2024","phases":[{"index":1}]}`,
			`{"start_date":"1980-01-01","phases":[{"index":1,"target_daily_cigarettes":3}]}`,
			`{"phases":[{"index":1,"target_daily_cigarettes":3}]}`,
			`not json`,
		}
		for _, body := range bodies {
			w := env.do(http.MethodPut, "/api/v1/plan", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
		}
	})

	t.Run("Fail: missing user context is 500", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/plan", nil)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestCheckinHandler_Record(t *testing.T) {
	env := setupRouter(t)
	require.Equal(t, http.StatusOK, env.do(http.MethodPut, "/api/v1/plan", planBody).Code)

	t.Run("Success: draft with target from the plan", func(t *testing.T) {
		w := env.do(http.MethodPut, "/api/v1/checkins/2024-03-09", `{"actual_cigarettes":3,"notes":"stressful day"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		rec := decode[domain.CheckinRecord](t, w)
		assert.Equal(t, domain.StateDraft, rec.State)
		assert.Equal(t, 5, rec.TargetCigarettes)
		assert.Equal(t, 3, rec.ActualCigarettes)
	})

	t.Run("Success: GET returns the draft", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/checkins/2024-03-09", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "stressful day", decode[domain.CheckinRecord](t, w).Notes)
	})

	t.Run("Success: user timezone decides today", func(t *testing.T) {
		w := env.do(http.MethodPut, "/api/v1/checkins/2024-03-11", `{"actual_cigarettes":1}`, "X-Timezone", "Pacific/Kiritimati")
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = env.do(http.MethodPut, "/api/v1/checkins/2024-03-11?tz=UTC", `{"actual_cigarettes":1}`)
		assert.Equal(t, http.StatusBadRequest, w.Code, "still tomorrow in UTC")
	})

	tests := []struct {
		name string
		path string
		body string
		hdr  []string
	}{
		{"Future date", "/api/v1/checkins/2024-03-12", `{"actual_cigarettes":1}`, nil},
		{"Negative count", "/api/v1/checkins/2024-03-05", `{"actual_cigarettes":-1}`, nil},
		{"Missing count", "/api/v1/checkins/2024-03-05", `{"notes":"forgot"}`, nil},
		{"Bad date", "/api/v1/checkins/yesterday", `{"actual_cigarettes":1}`, nil},
		{"Before plan start", "/api/v1/checkins/2024-02-20", `{"actual_cigarettes":1}`, nil},
		{"Unknown timezone", "/api/v1/checkins/2024-03-05", `{"actual_cigarettes":1}`, []string{"X-Timezone", "Mars/Olympus"}},
	}
	for _, tt := range tests {
		t.Run("Fail: "+tt.name, func(t *testing.T) {
			w := env.do(http.MethodPut, tt.path, tt.body, tt.hdr...)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}

	t.Run("Fail: unknown day is 404", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/checkins/2024-03-02", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

type commitBody struct {
	Record   domain.CheckinRecord `json:"record"`
	Queued   bool                 `json:"queued"`
	Warnings []string             `json:"warnings"`
}

func TestCheckinHandler_Commit(t *testing.T) {
	env := setupRouter(t)
	require.Equal(t, http.StatusOK, env.do(http.MethodPut, "/api/v1/plan", planBody).Code)

	t.Run("Success: synchronous save commits", func(t *testing.T) {
		require.Equal(t, http.StatusOK, env.do(http.MethodPut, "/api/v1/checkins/2024-03-02", `{"actual_cigarettes":4}`).Code)

		w := env.do(http.MethodPost, "/api/v1/checkins/2024-03-02/commit", "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		body := decode[commitBody](t, w)
		assert.Equal(t, domain.StateCommitted, body.Record.State)
		assert.Empty(t, body.Warnings)
	})

	t.Run("Remote down keeps the draft and answers 202", func(t *testing.T) {
		env.remote.Fail(errors.New("connection refused"))
		defer env.remote.Fail(nil)

		require.Equal(t, http.StatusOK, env.do(http.MethodPut, "/api/v1/checkins/2024-03-03", `{"actual_cigarettes":2}`).Code)

		w := env.do(http.MethodPost, "/api/v1/checkins/2024-03-03/commit", "")
		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

		body := decode[commitBody](t, w)
		assert.Equal(t, domain.StateDraft, body.Record.State)
		require.Len(t, body.Warnings, 1)
	})

	t.Run("Async without a queue keeps the draft", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/v1/checkins/2024-03-03/commit?async=true", "")
		require.Equal(t, http.StatusAccepted, w.Code)

		body := decode[commitBody](t, w)
		assert.False(t, body.Queued)
		assert.NotEmpty(t, body.Warnings)
	})

	t.Run("Already committed is a no-op", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/v1/checkins/2024-03-02/commit?async=true", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, domain.StateCommitted, decode[commitBody](t, w).Record.State)
	})

	t.Run("Fail: nothing to commit is 404", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/v1/checkins/2024-03-08/commit", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestProgressHandler(t *testing.T) {
	env := setupRouter(t)
	require.Equal(t, http.StatusOK, env.do(http.MethodPut, "/api/v1/plan", planBody).Code)

	for date, n := range map[string]string{"2024-03-01": "4", "2024-03-02": "10", "2024-03-08": "2"} {
		require.Equal(t, http.StatusOK, env.do(http.MethodPut, "/api/v1/checkins/"+date, `{"actual_cigarettes":`+n+`}`).Code)
	}
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/v1/checkins/2024-03-01/commit", "").Code)

	t.Run("Success: full series through today", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/progress/series", "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		res := decode[services.SeriesResult](t, w)
		require.Len(t, res.Days, 10)
		assert.False(t, res.Degraded)
		assert.Equal(t, domain.SourceRemote, res.Days[0].Source)
		assert.Equal(t, 6, res.Days[0].Saved)
		assert.Equal(t, domain.SourceDraft, res.Days[1].Source)
		assert.Nil(t, res.Days[2].Actual)
		assert.Equal(t, 5, res.Days[7].Target)
	})

	t.Run("Success: windowed series", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/progress/series?from=2024-03-02&to=2024-03-04", "")
		require.Equal(t, http.StatusOK, w.Code)

		res := decode[services.SeriesResult](t, w)
		require.Len(t, res.Days, 3)
		assert.Equal(t, domain.MustParseCalendarDate("2024-03-02"), res.Days[0].Date)
	})

	t.Run("Fail: inverted or malformed range is 400", func(t *testing.T) {
		for _, q := range []string{"from=2024-03-05&to=2024-03-02", "from=bad", "to=03-02"} {
			w := env.do(http.MethodGet, "/api/v1/progress/series?"+q, "")
			assert.Equal(t, http.StatusBadRequest, w.Code, q)
		}
	})

	t.Run("Success: statistics", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/progress/stats", "")
		require.Equal(t, http.StatusOK, w.Code)

		res := decode[services.StatsResult](t, w)
		assert.Equal(t, 3, res.Statistics.DaysTracked)
		assert.Equal(t, 6+0+3, res.Statistics.CigarettesAvoided)
		assert.Equal(t, 9000.0, res.Statistics.MoneySaved)
		assert.Equal(t, 0, res.Statistics.CurrentStreak)
		assert.Len(t, res.Statistics.HealthMilestones, 7)
	})

	t.Run("Remote down degrades to local data", func(t *testing.T) {
		env.remote.Fail(errors.New("timeout"))
		defer env.remote.Fail(nil)

		w := env.do(http.MethodGet, "/api/v1/progress/stats?as_of=2024-03-08", "")
		require.Equal(t, http.StatusOK, w.Code)

		res := decode[services.StatsResult](t, w)
		assert.True(t, res.Degraded)
		assert.Equal(t, []string{services.WarnRemoteUnavailable}, res.Warnings)
		assert.Equal(t, 3, res.Statistics.DaysTracked)
	})

	t.Run("Far-future to is capped at today", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/progress/series?to=9999-12-31", "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		res := decode[services.SeriesResult](t, w)
		require.Len(t, res.Days, 10)
		assert.Equal(t, domain.MustParseCalendarDate("2024-03-10"), res.Days[9].Date)
	})

	t.Run("Far-future as_of is capped at today", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/progress/stats?as_of=9999-12-31", "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		res := decode[services.StatsResult](t, w)
		assert.Equal(t, 3, res.Statistics.DaysTracked)
		assert.Equal(t, 6+0+3, res.Statistics.CigarettesAvoided)
	})

	t.Run("Fail: window entirely in the future is 400", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/progress/series?from=9999-01-01&to=9999-12-31", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("No plan still answers with zero targets", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/progress/stats", nil)
		req.Header.Set("X-User-ID", "user-without-plan")
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		res := decode[services.StatsResult](t, w)
		assert.Equal(t, 0, res.Statistics.DaysTracked)
		for _, m := range res.Statistics.HealthMilestones {
			assert.False(t, m.Achieved)
		}
	})
}
