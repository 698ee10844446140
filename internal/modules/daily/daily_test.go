package daily

import (
	"context"
	"testing"
	"time"

	"github.com/launchpad-go/launchpad/internal/bus"
	"github.com/launchpad-go/launchpad/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClockModule(t time.Time) *Module {
	m := New()
	m.now = func() time.Time { return t }
	return m
}

func TestModule_Info(t *testing.T) {
	m := New()
	info := m.Info()
	assert.Equal(t, ID, info.ID)
	assert.True(t, info.Enabled)
}

func TestModule_Search_EmptyQueryReturnsFullCatalogue(t *testing.T) {
	m := fixedClockModule(time.Date(2026, 7, 31, 10, 30, 0, 0, time.UTC))

	results, err := m.Search(context.Background(), bus.SearchQueryPayload{Text: "", MaxResults: 100, TimeoutMS: 1000})
	require.NoError(t, err)
	assert.NotEmpty(t, results)

	ids := make(map[string]bool)
	for _, r := range results {
		ids[r.ID] = true
	}
	assert.True(t, ids["daily.current-time"])
	assert.True(t, ids["daily.terminal"])
}

func TestModule_Search_MatchesTitle(t *testing.T) {
	m := fixedClockModule(time.Date(2026, 7, 31, 10, 30, 0, 0, time.UTC))

	results, err := m.Search(context.Background(), bus.SearchQueryPayload{Text: "terminal", MaxResults: 10, TimeoutMS: 1000})
	require.NoError(t, err)

	found := false
	for _, r := range results {
		if r.ID == "daily.terminal" {
			found = true
			assert.Greater(t, r.Score, 0.0)
		}
	}
	assert.True(t, found)
}

func TestModule_Search_NoMatchReturnsEmpty(t *testing.T) {
	m := fixedClockModule(time.Date(2026, 7, 31, 10, 30, 0, 0, time.UTC))

	results, err := m.Search(context.Background(), bus.SearchQueryPayload{Text: "zzzzznomatch", MaxResults: 10, TimeoutMS: 1000})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestModule_Search_CalculatorExpression(t *testing.T) {
	m := New()

	results, err := m.Search(context.Background(), bus.SearchQueryPayload{Text: "12 + 30", MaxResults: 10, TimeoutMS: 1000})
	require.NoError(t, err)

	require.NotEmpty(t, results)
	assert.Equal(t, "daily.calculator", results[0].ID)
	assert.Equal(t, "42", results[0].Title)
}

func TestModule_Search_CacheRebuildsWhenStale(t *testing.T) {
	start := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	m := New()
	m.cacheUpdateInterval = time.Millisecond
	current := start
	m.now = func() time.Time { return current }

	first, err := m.Search(context.Background(), bus.SearchQueryPayload{Text: "", MaxResults: 100, TimeoutMS: 1000})
	require.NoError(t, err)

	var firstTime string
	for _, r := range first {
		if r.ID == "daily.current-time" {
			firstTime = r.Title
		}
	}

	current = start.Add(2 * time.Hour)
	second, err := m.Search(context.Background(), bus.SearchQueryPayload{Text: "", MaxResults: 100, TimeoutMS: 1000})
	require.NoError(t, err)

	var secondTime string
	for _, r := range second {
		if r.ID == "daily.current-time" {
			secondTime = r.Title
		}
	}

	assert.NotEqual(t, firstTime, secondTime)
}

func TestModule_ExecuteAction_UnknownIDReturnsUnhandled(t *testing.T) {
	m := New()
	err := m.ExecuteAction(context.Background(), "not-a-real-id", "copy")
	assert.ErrorIs(t, err, registry.ErrActionUnhandled)
}

func TestModule_ExecuteAction_CalculatorIsNoOp(t *testing.T) {
	m := New()
	err := m.ExecuteAction(context.Background(), "daily.calculator", "copy")
	assert.NoError(t, err)
}

func TestModule_UpdateSettings_ParsesCacheInterval(t *testing.T) {
	m := New()
	require.NoError(t, m.UpdateSettings(map[string]string{"cache_update_interval_ms": "5000"}))
	assert.Equal(t, 5*time.Second, m.cacheUpdateInterval)
}

func TestModule_HealthCheck(t *testing.T) {
	m := New()
	ok, err := m.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}
