package sweeper

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/snip/pkg/snip/database"
	"github.com/mikepea/snip/pkg/snip/models"
	"github.com/mikepea/snip/pkg/snip/store"
	"github.com/mikepea/snip/pkg/snip/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.Connect(":memory:")
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	t.Cleanup(func() { database.Close(db) })
	return db
}

func setupStore(t *testing.T) (*gorm.DB, *store.Links) {
	db := setupTestDB(t)
	return db, store.NewLinks(db, store.WithClock(func() time.Time { return now }))
}

// seed creates a link; a nil lastUsed leaves it never used.
func seed(t *testing.T, db *gorm.DB, s *store.Links, code string, lastUsed *time.Time) {
	link, err := s.Create(context.Background(), store.CreateParams{
		OriginalURL: "https://example.com/" + code,
		ShortCode:   code,
	})
	require.NoError(t, err)
	if lastUsed != nil {
		require.NoError(t, db.Model(link).Update("last_used_at", lastUsed.UTC()).Error)
	}
}

func daysAgo(n int) *time.Time {
	t := now.Add(-time.Duration(n) * 24 * time.Hour)
	return &t
}

func liveCodes(t *testing.T, db *gorm.DB) []string {
	var codes []string
	require.NoError(t, db.Model(&models.Link{}).Order("short_code").Pluck("short_code", &codes).Error)
	return codes
}

func archivedCodes(t *testing.T, db *gorm.DB) []string {
	var codes []string
	require.NoError(t, db.Model(&models.LinkArchive{}).Order("short_code").Pluck("short_code", &codes).Error)
	return codes
}

func TestSweepArchivesIdleLinks(t *testing.T) {
	db, s := setupStore(t)
	seed(t, db, s, "idle40", daysAgo(40))
	seed(t, db, s, "idle31", daysAgo(31))
	seed(t, db, s, "recent", daysAgo(2))
	seed(t, db, s, "never", nil)

	var observed []string
	sw := New(s, WithObserver(func(status string, archived int) {
		observed = append(observed, status)
	}))

	res, err := sw.Sweep(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Archived)
	assert.True(t, res.Cutoff.Equal(*daysAgo(30)))

	assert.Equal(t, []string{"never", "recent"}, liveCodes(t, db))
	assert.Equal(t, []string{"idle31", "idle40"}, archivedCodes(t, db))
	assert.Equal(t, []string{"done"}, observed)

	var row models.LinkArchive
	require.NoError(t, db.Where("short_code = ?", "idle40").First(&row).Error)
	assert.Equal(t, models.ArchiveReasonUnused, row.Reason)
	assert.Equal(t, "https://example.com/idle40", row.OriginalURL)
	assert.True(t, now.Equal(row.DeletedAt))
}

func TestSweepZeroDaysKeepsNeverUsed(t *testing.T) {
	db, s := setupStore(t)
	seed(t, db, s, "used1", daysAgo(1))
	seed(t, db, s, "used2", daysAgo(0))
	seed(t, db, s, "never", nil)

	// used2 was last used exactly at the cutoff, which is not strictly before it.
	res, err := New(s).Sweep(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Archived)
	assert.Equal(t, []string{"never", "used2"}, liveCodes(t, db))
}

func TestSweepNothingToDo(t *testing.T) {
	db, s := setupStore(t)
	seed(t, db, s, "never", nil)

	res, err := New(s).Sweep(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Archived)
	assert.Empty(t, archivedCodes(t, db))
}

func TestSweepRejectsOutOfRangeDays(t *testing.T) {
	db, s := setupStore(t)
	seed(t, db, s, "today", daysAgo(0))
	seed(t, db, s, "yesterday", daysAgo(1))

	for _, days := range []int{-1, MaxDays + 1, 1_000_000, math.MaxInt} {
		_, err := New(s).Sweep(context.Background(), days)
		assert.ErrorIs(t, err, ErrInvalidDays, days)
	}
	assert.Equal(t, []string{"today", "yesterday"}, liveCodes(t, db))
	assert.Empty(t, archivedCodes(t, db))
}

func TestSweepMaxDaysKeepsRecentLinks(t *testing.T) {
	db, s := setupStore(t)
	seed(t, db, s, "today", daysAgo(0))
	seed(t, db, s, "ancient", daysAgo(MaxDays+1))

	res, err := New(s).Sweep(context.Background(), MaxDays)
	require.NoError(t, err)
	assert.True(t, res.Cutoff.Before(now))
	assert.Equal(t, 1, res.Archived)
	assert.Equal(t, []string{"today"}, liveCodes(t, db))
}

func TestSweepUsesOwnTimeout(t *testing.T) {
	db := setupTestDB(t)
	s := store.NewLinks(db, store.WithTimeout(time.Nanosecond), store.WithClock(func() time.Time { return now }))
	seed(t, db, store.NewLinks(db, store.WithClock(func() time.Time { return now })), "idle", daysAgo(40))

	res, err := New(s, WithTimeout(time.Minute)).Sweep(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Archived)
}

func TestSweepIsAtomic(t *testing.T) {
	db, s := setupStore(t)
	seed(t, db, s, "idle1", daysAgo(60))
	seed(t, db, s, "idle2", daysAgo(50))

	require.NoError(t, db.Callback().Delete().Before("gorm:delete").Register("test:fail_delete", func(tx *gorm.DB) {
		tx.AddError(errors.New("injected delete failure"))
	}))

	var observed []string
	sw := New(s, WithObserver(func(status string, _ int) { observed = append(observed, status) }))
	_, err := sw.Sweep(context.Background(), 30)
	require.Error(t, err)

	assert.Equal(t, []string{"idle1", "idle2"}, liveCodes(t, db))
	assert.Empty(t, archivedCodes(t, db))
	assert.Equal(t, []string{"failed"}, observed)
}

func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB, *store.Links) {
	db, s := setupStore(t)
	q := tasks.NewQueue(db, 1, 4)
	New(s).Register(q)
	require.NoError(t, q.Start(context.Background()))
	t.Cleanup(q.Stop)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(q).RegisterRoutes(r.Group("/links"))
	return r, db, s
}

func TestSubmitAndPoll(t *testing.T) {
	r, db, s := setupRouter(t)
	seed(t, db, s, "old", daysAgo(10))
	seed(t, db, s, "never", nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/links/delete-unused-links?days=0", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var submitted TaskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &submitted))
	require.NotEmpty(t, submitted.TaskID)
	assert.Equal(t, models.TaskPending, submitted.Status)

	var status map[string]interface{}
	require.Eventually(t, func() bool {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/links/task-status/"+submitted.TaskID, nil))
		if w.Code != http.StatusOK {
			return false
		}
		status = nil
		if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
			return false
		}
		return status["status"] == string(models.TaskDone)
	}, 5*time.Second, 20*time.Millisecond)

	result, ok := status["result"].(map[string]interface{})
	require.True(t, ok, "expected a result object, got %v", status["result"])
	assert.Equal(t, float64(1), result["archived"])
	assert.Equal(t, []string{"never"}, liveCodes(t, db))
}

func TestSubmitInvalidDays(t *testing.T) {
	r, _, _ := setupRouter(t)

	for _, q := range []string{"", "?days=-3", "?days=abc", "?days=36501", "?days=1000000"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/links/delete-unused-links"+q, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestTaskStatusNotFound(t *testing.T) {
	r, _, _ := setupRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/links/task-status/does-not-exist", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
