// Package storetest checks that a core.Store backend behaves the way the
// ingestion engine and the read path expect. Each backend's tests call Run
// with a function that opens an empty, migrated store.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/natijti/internal/core"
)

// Fixture is a store that tests can seed.
type Fixture interface {
	core.Store
	CreateSession(ctx context.Context, sess *core.ExamSession) error
	AddReference(ctx context.Context, kind core.RefKind, e *core.RefEntry) error
}

// Opener returns an empty store. It registers its own cleanup.
type Opener func(t *testing.T) Fixture

// Run executes the conformance suite against stores made by open.
func Run(t *testing.T, open Opener) {
	t.Run("Sessions", func(t *testing.T) { testSessions(t, open(t)) })
	t.Run("References", func(t *testing.T) { testReferences(t, open(t)) })
	t.Run("BatchInsertCommit", func(t *testing.T) { testBatchInsertCommit(t, open(t)) })
	t.Run("BatchRollback", func(t *testing.T) { testBatchRollback(t, open(t)) })
	t.Run("BatchUpdate", func(t *testing.T) { testBatchUpdate(t, open(t)) })
	t.Run("BatchSurvivesFailedInsert", func(t *testing.T) { testBatchSurvivesFailedInsert(t, open(t)) })
	t.Run("Search", func(t *testing.T) { testSearch(t, open(t)) })
	t.Run("Counts", func(t *testing.T) { testCounts(t, open(t)) })
	t.Run("ViewCount", func(t *testing.T) { testViewCount(t, open(t)) })
}

var base = time.Date(2024, 7, 20, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func session(t *testing.T, s Fixture, year int, exam core.ExamType, published bool) *core.ExamSession {
	t.Helper()
	sess := &core.ExamSession{Year: year, ExamType: exam, Name: string(exam) + " session", Published: published}
	require.NoError(t, s.CreateSession(context.Background(), sess))
	require.NotZero(t, sess.ID)
	return sess
}

func record(sessionID int64, nni string, score *float64, decision string) *core.Record {
	return &core.Record{
		ID:         uuid.New(),
		SessionID:  sessionID,
		NationalID: nni,
		NameLatin:  "Candidate " + nni,
		NameArabic: "مترشح",
		Score:      score,
		Decision:   decision,
		Outcome:    core.ClassifyDecision(decision),
		Published:  true,
		Verified:   true,
		CreatedAt:  base,
		UpdatedAt:  base,
	}
}

func insertAll(t *testing.T, s core.Store, recs ...*core.Record) {
	t.Helper()
	ctx := context.Background()
	b, err := s.Begin(ctx)
	require.NoError(t, err)
	for _, r := range recs {
		require.NoError(t, b.InsertRecord(ctx, r), "insert %s", r.NationalID)
	}
	require.NoError(t, b.Commit(ctx))
}

func testSessions(t *testing.T, s Fixture) {
	ctx := context.Background()
	bac23 := session(t, s, 2023, core.ExamBAC, true)
	bac24 := session(t, s, 2024, core.ExamBAC, true)
	session(t, s, 2024, core.ExamBEPC, false)
	conc := session(t, s, 2024, core.ExamConcours, true)

	got, err := s.FindSession(ctx, bac24.ID)
	require.NoError(t, err)
	assert.Equal(t, 2024, got.Year)
	assert.Equal(t, core.ExamBAC, got.ExamType)
	assert.True(t, got.Published)

	_, err = s.FindSession(ctx, 999999)
	assert.True(t, errors.Is(err, core.ErrSessionNotFound), "err = %v", err)

	all, err := s.ListSessions(ctx, core.SessionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 2024, all[0].Year)
	assert.Equal(t, bac23.ID, all[2].ID)

	bac, err := s.ListSessions(ctx, core.SessionFilter{ExamType: core.ExamBAC})
	require.NoError(t, err)
	assert.Len(t, bac, 2)

	y, err := s.ListSessions(ctx, core.SessionFilter{Year: 2024})
	require.NoError(t, err)
	ids := []int64{y[0].ID, y[1].ID}
	assert.ElementsMatch(t, []int64{bac24.ID, conc.ID}, ids)
}

func testReferences(t *testing.T, s Fixture) {
	ctx := context.Background()

	lycee := &core.RefEntry{Code: "LYC-01", NameFr: "Lycée de Rosso", NameAr: "ثانوية روصو"}
	require.NoError(t, s.AddReference(ctx, core.RefEstablishment, lycee))
	require.NotZero(t, lycee.ID)

	again := &core.RefEntry{Code: "LYC-01", NameFr: "Lycée national de Rosso"}
	require.NoError(t, s.AddReference(ctx, core.RefEstablishment, again))
	assert.Equal(t, lycee.ID, again.ID, "same code must keep its id")

	sn := &core.RefEntry{Code: "SN", NameFr: "Sciences naturelles"}
	require.NoError(t, s.AddReference(ctx, core.RefSeries, sn))

	trarza := &core.RefEntry{Code: "06", NameFr: "Trarza", NameAr: "اترارزة"}
	require.NoError(t, s.AddReference(ctx, core.RefRegion, trarza))

	est, err := s.ListEstablishments(ctx)
	require.NoError(t, err)
	require.Len(t, est, 1)
	assert.Equal(t, "Lycée national de Rosso", est[0].NameFr)

	series, err := s.ListSeries(ctx)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, sn.ID, series[0].ID)

	regions, err := s.ListRegions(ctx)
	require.NoError(t, err)
	var found bool
	for _, r := range regions {
		if r.Code == "06" {
			found = true
			assert.Equal(t, trarza.ID, r.ID)
		}
	}
	assert.True(t, found, "region 06 missing from %v", regions)

	assert.Error(t, s.AddReference(ctx, core.RefKind("planet"), &core.RefEntry{Code: "X"}))
}

func testBatchInsertCommit(t *testing.T, s Fixture) {
	ctx := context.Background()
	sess := session(t, s, 2024, core.ExamBAC, true)
	region := &core.RefEntry{Code: "06", NameFr: "Trarza"}
	require.NoError(t, s.AddReference(ctx, core.RefRegion, region))

	rec := record(sess.ID, "1234567890", ptr(13.25), "Admis")
	rec.FileNumber = "D-77"
	rec.BirthDate = ptr(time.Date(2005, 3, 14, 0, 0, 0, 0, time.UTC))
	rec.BirthPlace = "Rosso"
	rec.Sex = "F"
	rec.RegionID = ptr(region.ID)
	rec.District = "Rosso"
	rec.ExamCenter = "Centre 3"
	rec.CandidateType = "Officiel"

	b, err := s.Begin(ctx)
	require.NoError(t, err)

	missing, err := b.FindRecord(ctx, rec.Key())
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, b.InsertRecord(ctx, rec))

	seen, err := b.FindRecord(ctx, rec.Key())
	require.NoError(t, err)
	require.NotNil(t, seen, "batch must see its own insert")
	assert.Equal(t, rec.ID, seen.ID)

	require.NoError(t, b.Commit(ctx))

	got, err := s.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "1234567890", got.NationalID)
	assert.Equal(t, "D-77", got.FileNumber)
	assert.Equal(t, "مترشح", got.NameArabic)
	require.NotNil(t, got.Score)
	assert.InDelta(t, 13.25, *got.Score, 1e-9)
	require.NotNil(t, got.BirthDate)
	assert.Equal(t, "2005-03-14", got.BirthDate.Format("2006-01-02"))
	require.NotNil(t, got.RegionID)
	assert.Equal(t, region.ID, *got.RegionID)
	assert.Nil(t, got.EstablishmentID)
	assert.Equal(t, core.DecisionAdmitted, got.Outcome)
	assert.True(t, got.Published)
	assert.True(t, got.Verified)
	assert.True(t, got.CreatedAt.Equal(base), "CreatedAt = %v", got.CreatedAt)

	_, err = s.GetRecord(ctx, uuid.New())
	assert.True(t, errors.Is(err, core.ErrResultNotFound), "err = %v", err)
}

func testBatchRollback(t *testing.T, s Fixture) {
	ctx := context.Background()
	sess := session(t, s, 2024, core.ExamBEPC, true)
	rec := record(sess.ID, "42", ptr(11.0), "Admis")

	b, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, b.InsertRecord(ctx, rec))
	require.NoError(t, b.Rollback(ctx))

	_, err = s.GetRecord(ctx, rec.ID)
	assert.True(t, errors.Is(err, core.ErrResultNotFound), "rolled back record visible: %v", err)
}

func testBatchUpdate(t *testing.T, s Fixture) {
	ctx := context.Background()
	sess := session(t, s, 2024, core.ExamBAC, true)
	rec := record(sess.ID, "1234567890", ptr(9.0), "Ajourné")
	insertAll(t, s, rec)

	b, err := s.Begin(ctx)
	require.NoError(t, err)
	existing, err := b.FindRecord(ctx, rec.Key())
	require.NoError(t, err)
	require.NotNil(t, existing)
	assert.Equal(t, rec.ID, existing.ID)

	existing.CopyPayload(record(sess.ID, "1234567890", ptr(12.5), "Admis"))
	existing.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, b.UpdateRecord(ctx, existing))
	require.NoError(t, b.Commit(ctx))

	got, err := s.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, *got.Score, 1e-9)
	assert.Equal(t, "Admis", got.Decision)
	assert.Equal(t, core.DecisionAdmitted, got.Outcome)
	assert.True(t, got.UpdatedAt.Equal(base.Add(time.Hour)), "UpdatedAt = %v", got.UpdatedAt)
}

func testBatchSurvivesFailedInsert(t *testing.T, s Fixture) {
	ctx := context.Background()
	sess := session(t, s, 2024, core.ExamBAC, true)
	dup := record(sess.ID, "1111111111", ptr(10.0), "Admis")
	insertAll(t, s, dup)

	a := record(sess.ID, "2222222222", ptr(11.0), "Admis")
	c := record(sess.ID, "3333333333", ptr(12.0), "Admis")

	b, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, b.InsertRecord(ctx, a))
	err = b.InsertRecord(ctx, record(sess.ID, "1111111111", ptr(1.0), "Ajourné"))
	require.Error(t, err, "duplicate (nni, session) accepted")
	assert.Equal(t, "DB001", core.MapError(err).Code, "err = %v", err)
	require.NoError(t, b.InsertRecord(ctx, c))
	require.NoError(t, b.Commit(ctx))

	for _, r := range []*core.Record{a, c} {
		_, err := s.GetRecord(ctx, r.ID)
		assert.NoError(t, err, "record %s lost after a failed sibling insert", r.NationalID)
	}
	got, err := s.GetRecord(ctx, dup.ID)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, *got.Score, 1e-9)
}

func testSearch(t *testing.T, s Fixture) {
	ctx := context.Background()
	bac := session(t, s, 2024, core.ExamBAC, true)
	bepc := session(t, s, 2023, core.ExamBEPC, true)
	sn := &core.RefEntry{Code: "SN", NameFr: "Sciences naturelles"}
	require.NoError(t, s.AddReference(ctx, core.RefSeries, sn))

	top := record(bac.ID, "1000000001", ptr(17.0), "Admis")
	top.NameLatin = "Aminetou Salem"
	top.SeriesID = ptr(sn.ID)
	top.FileNumber = "F-1"
	mid := record(bac.ID, "1000000002", ptr(14.0), "Admis")
	low := record(bac.ID, "1000000003", ptr(8.0), "Ajourné")
	noScoreOld := record(bac.ID, "1000000004", nil, "Absent")
	noScoreNew := record(bac.ID, "1000000005", nil, "Absent")
	noScoreNew.CreatedAt = base.Add(time.Minute)
	hidden := record(bac.ID, "1000000006", ptr(19.0), "Admis")
	hidden.Published = false
	other := record(bepc.ID, "1000000001", ptr(15.0), "Admis")
	insertAll(t, s, top, mid, low, noScoreOld, noScoreNew, hidden, other)

	search := func(p core.SearchParams) ([]core.Record, int) {
		t.Helper()
		if p.Size == 0 {
			p.Size = 50
		}
		if p.Page == 0 {
			p.Page = 1
		}
		recs, total, err := s.SearchRecords(ctx, p)
		require.NoError(t, err)
		return recs, total
	}
	nnis := func(recs []core.Record) []string {
		out := make([]string, len(recs))
		for i, r := range recs {
			out[i] = r.NationalID
		}
		return out
	}

	recs, total := search(core.SearchParams{ExamType: core.ExamBAC})
	assert.Equal(t, 5, total)
	assert.Equal(t, []string{"1000000001", "1000000002", "1000000003", "1000000005", "1000000004"}, nnis(recs))

	recs, total = search(core.SearchParams{ExamType: core.ExamBAC, Page: 2, Size: 2})
	assert.Equal(t, 5, total)
	assert.Equal(t, []string{"1000000003", "1000000005"}, nnis(recs))

	recs, total = search(core.SearchParams{NationalID: "1000000001"})
	assert.Equal(t, 2, total)
	assert.Len(t, recs, 2)

	recs, _ = search(core.SearchParams{NationalID: "1000000001", Year: 2023})
	require.Len(t, recs, 1)
	assert.Equal(t, bepc.ID, recs[0].SessionID)

	recs, _ = search(core.SearchParams{Name: "aminetou"})
	assert.Equal(t, []string{"1000000001"}, nnis(recs))

	recs, _ = search(core.SearchParams{SeriesCode: "SN"})
	assert.Equal(t, []string{"1000000001"}, nnis(recs))
	recs, _ = search(core.SearchParams{SeriesID: sn.ID})
	assert.Equal(t, []string{"1000000001"}, nnis(recs))
	recs, total = search(core.SearchParams{SeriesCode: "ZZ"})
	assert.Empty(t, recs)
	assert.Zero(t, total)

	recs, _ = search(core.SearchParams{FileNumber: "F-1"})
	assert.Equal(t, []string{"1000000001"}, nnis(recs))

	_, total = search(core.SearchParams{Decision: "admis"})
	assert.Equal(t, 3, total)

	recs, total = search(core.SearchParams{ExamType: core.ExamBAC, Page: 9, Size: 2})
	assert.Equal(t, 5, total)
	assert.Empty(t, recs)
}

func testCounts(t *testing.T, s Fixture) {
	ctx := context.Background()
	sess := session(t, s, 2024, core.ExamBAC, true)
	estA := &core.RefEntry{Code: "A"}
	estB := &core.RefEntry{Code: "B"}
	require.NoError(t, s.AddReference(ctx, core.RefEstablishment, estA))
	require.NoError(t, s.AddReference(ctx, core.RefEstablishment, estB))
	reg := &core.RefEntry{Code: "01", NameFr: "Hodh Ech Chargui"}
	require.NoError(t, s.AddReference(ctx, core.RefRegion, reg))

	mk := func(nni string, score float64, decision string, est *core.RefEntry) *core.Record {
		r := record(sess.ID, nni, ptr(score), decision)
		r.EstablishmentID = ptr(est.ID)
		r.RegionID = ptr(reg.ID)
		return r
	}
	hidden := mk("9", 20, "Admis", estA)
	hidden.Published = false
	insertAll(t, s,
		mk("1", 18, "Admis", estA),
		mk("2", 15, "Admis", estA),
		mk("3", 16, "Admis", estB),
		mk("4", 19, "Ajourné", estA),
		hidden,
	)

	candidates, passed, err := s.SessionCounts(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), candidates)
	assert.Equal(t, int64(3), passed)

	count := func(q core.RankQuery) int64 {
		t.Helper()
		q.SessionID = sess.ID
		n, err := s.CountHigherScores(ctx, q)
		require.NoError(t, err)
		return n
	}
	assert.Equal(t, int64(2), count(core.RankQuery{Scope: core.ScopeNational, Score: 15}))
	assert.Equal(t, int64(1), count(core.RankQuery{Scope: core.ScopeEstablishment, GroupID: estA.ID, Score: 15}))
	assert.Equal(t, int64(2), count(core.RankQuery{Scope: core.ScopeRegion, GroupID: reg.ID, Score: 15}))
	assert.Equal(t, int64(0), count(core.RankQuery{Scope: core.ScopeNational, Score: 18}))
}

func testViewCount(t *testing.T, s Fixture) {
	ctx := context.Background()
	sess := session(t, s, 2024, core.ExamBAC, true)
	rec := record(sess.ID, "77777777", ptr(12.0), "Admis")
	insertAll(t, s, rec)

	require.NoError(t, s.IncrementViewCount(ctx, rec.ID))
	require.NoError(t, s.IncrementViewCount(ctx, rec.ID))
	got, err := s.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ViewCount)

	err = s.IncrementViewCount(ctx, uuid.New())
	assert.True(t, errors.Is(err, core.ErrResultNotFound), "err = %v", err)
}
