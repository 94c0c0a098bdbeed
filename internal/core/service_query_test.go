package core_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/natijti/internal/core"
	"github.com/JonMunkholm/natijti/internal/store/memory"
)

func newQueryFixture(t *testing.T) (*core.Service, *memory.Store, *mapCache, map[string]uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, st.CreateSession(ctx, &core.ExamSession{ID: 1, Year: 2024, ExamType: core.ExamBAC, Name: "BAC 2024", Published: true}))
	require.NoError(t, st.CreateSession(ctx, &core.ExamSession{ID: 2, Year: 2023, ExamType: core.ExamBEPC, Name: "BEPC 2023", Published: true}))
	require.NoError(t, st.CreateSession(ctx, &core.ExamSession{ID: 3, Year: 2025, ExamType: core.ExamBAC, Name: "BAC 2025"}))

	est := ptr(int64(1))
	ids := seedRecords(t, st, 1,
		seed{nni: "11111111", score: ptr(14.5), decision: "Admis", est: est, published: true},
		seed{nni: "22222222", score: ptr(16.0), decision: "Admis", est: est, published: true},
		seed{nni: "33333333", score: ptr(8.0), decision: "Ajourné", est: est, published: true},
		seed{nni: "44444444", decision: "Absent", published: true},
		seed{nni: "55555555", score: ptr(19.0), decision: "Admis", published: false},
	)
	cache := newMapCache()
	return core.NewService(st, cache, core.Options{DefaultPageSize: 2}), st, cache, ids
}

func TestGetResult(t *testing.T) {
	svc, st, _, ids := newQueryFixture(t)
	ctx := context.Background()

	view, err := svc.GetResult(ctx, ids["11111111"])
	require.NoError(t, err)
	assert.Equal(t, "11111111", view.NationalID)
	assert.Equal(t, "BAC 2024", view.Session.Name)
	require.NotNil(t, view.Establishment)
	assert.Equal(t, 2, *view.Establishment)
	assert.Equal(t, 2, *view.National)
	assert.Nil(t, view.Region)
	assert.EqualValues(t, 1, view.ViewCount)

	stored, err := st.GetRecord(ctx, ids["11111111"])
	require.NoError(t, err)
	assert.EqualValues(t, 1, stored.ViewCount)

	failed, err := svc.GetResult(ctx, ids["33333333"])
	require.NoError(t, err)
	assert.Nil(t, failed.National)

	_, err = svc.GetResult(ctx, ids["55555555"])
	assert.ErrorIs(t, err, core.ErrResultNotFound)

	_, err = svc.GetResult(ctx, uuid.New())
	assert.ErrorIs(t, err, core.ErrResultNotFound)
}

func TestSearch(t *testing.T) {
	svc, _, cache, _ := newQueryFixture(t)
	ctx := context.Background()

	page, err := svc.Search(ctx, core.SearchParams{})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 2, page.Size)
	assert.Equal(t, 2, page.TotalPages)
	assert.True(t, page.HasNext)
	assert.False(t, page.HasPrev)
	require.Len(t, page.Results, 2)
	assert.Equal(t, "22222222", page.Results[0].NationalID)
	assert.Equal(t, "11111111", page.Results[1].NationalID)

	page2, err := svc.Search(ctx, core.SearchParams{Page: 2})
	require.NoError(t, err)
	require.Len(t, page2.Results, 2)
	assert.Equal(t, "33333333", page2.Results[0].NationalID)
	assert.Equal(t, "44444444", page2.Results[1].NationalID, "null scores sort last")
	assert.True(t, page2.HasPrev)

	byName, err := svc.Search(ctx, core.SearchParams{Name: "candidat 2222"})
	require.NoError(t, err)
	require.Equal(t, 1, byName.Total)

	none, err := svc.Search(ctx, core.SearchParams{ExamType: core.ExamBEPC})
	require.NoError(t, err)
	assert.Equal(t, 0, none.Total)
	assert.NotNil(t, none.Results)

	cache.mu.Lock()
	entries := 0
	for k := range cache.data {
		if strings.HasPrefix(k, "search:0:") {
			entries++
		}
	}
	cache.mu.Unlock()
	assert.Equal(t, 4, entries)
}

func TestSearch_ServesFromCache(t *testing.T) {
	svc, st, _, _ := newQueryFixture(t)
	ctx := context.Background()

	first, err := svc.Search(ctx, core.SearchParams{Decision: "Admis"})
	require.NoError(t, err)
	require.Equal(t, 2, first.Total)

	// A record added after the first search is not visible until expiry.
	seedRecords(t, st, 1, seed{nni: "66666666", score: ptr(17.0), decision: "Admis", published: true})
	again, err := svc.Search(ctx, core.SearchParams{Decision: " Admis "})
	require.NoError(t, err)
	assert.Equal(t, 2, again.Total)
	assert.Equal(t, first.Results[0].ID, again.Results[0].ID)

	fresh, err := svc.Search(ctx, core.SearchParams{Decision: "admis"})
	require.NoError(t, err)
	assert.Equal(t, 3, fresh.Total)
}

func TestSearch_EachNationalIDGetsItsOwnPage(t *testing.T) {
	svc, _, _, _ := newQueryFixture(t)
	ctx := context.Background()

	for _, nni := range []string{"11111111", "22222222", "11111111", "33333333"} {
		page, err := svc.Search(ctx, core.SearchParams{NationalID: nni})
		require.NoError(t, err)
		require.Len(t, page.Results, 1, nni)
		assert.Equal(t, nni, page.Results[0].NationalID)
	}
}

func TestListSessions(t *testing.T) {
	svc, _, cache, _ := newQueryFixture(t)
	ctx := context.Background()

	sessions, err := svc.ListSessions(ctx, core.SessionFilter{})
	require.NoError(t, err)
	require.Len(t, sessions, 2, "unpublished sessions are hidden")
	assert.Equal(t, "BAC 2024", sessions[0].Name)
	assert.EqualValues(t, 4, sessions[0].TotalCandidates)
	assert.EqualValues(t, 2, sessions[0].TotalPassed)
	assert.Equal(t, 50.0, sessions[0].PassRate)
	assert.EqualValues(t, 0, sessions[1].TotalCandidates)
	assert.True(t, cache.has("stats:session:1"))

	bac, err := svc.ListSessions(ctx, core.SessionFilter{ExamType: core.ExamBAC, Year: 2024})
	require.NoError(t, err)
	require.Len(t, bac, 1)
	assert.EqualValues(t, 1, bac[0].ExamSession.ID)

	_, err = svc.SessionStats(ctx, 42)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}
