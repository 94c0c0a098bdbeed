package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/natijti/internal/core"
	"github.com/JonMunkholm/natijti/internal/store/memory"
)

func ptr[T any](v T) *T { return &v }

type seed struct {
	nni       string
	score     *float64
	decision  string
	est, reg  *int64
	published bool
}

func seedRecords(t *testing.T, st *memory.Store, sessionID int64, rows ...seed) map[string]uuid.UUID {
	t.Helper()
	ctx := context.Background()
	b, err := st.Begin(ctx)
	require.NoError(t, err)
	ids := make(map[string]uuid.UUID, len(rows))
	created := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	for i, r := range rows {
		rec := &core.Record{
			ID:              uuid.New(),
			SessionID:       sessionID,
			NationalID:      r.nni,
			NameLatin:       "Candidat " + r.nni,
			Score:           r.score,
			Decision:        r.decision,
			Outcome:         core.ClassifyDecision(r.decision),
			EstablishmentID: r.est,
			RegionID:        r.reg,
			Published:       r.published,
			CreatedAt:       created.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, b.InsertRecord(ctx, rec))
		ids[r.nni] = rec.ID
	}
	require.NoError(t, b.Commit(ctx))
	return ids
}

func TestRanker_Compute(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	est1, est2 := ptr(int64(1)), ptr(int64(2))
	reg := ptr(int64(6))

	seedRecords(t, st, 1,
		seed{nni: "A", score: ptr(18.0), decision: "Admis", est: est1, reg: reg, published: true},
		seed{nni: "C", score: ptr(12.0), decision: "Admis", est: est1, reg: reg, published: true},
		seed{nni: "D", score: ptr(19.0), decision: "Admis", est: est2, reg: reg, published: true},
		// Never counted as peers.
		seed{nni: "E", score: ptr(17.0), decision: "Ajourné", est: est1, reg: reg, published: true},
		seed{nni: "F", score: ptr(17.5), decision: "Admis", est: est1, reg: reg, published: false},
		seed{nni: "G", score: ptr(20.0), decision: "Admis", est: est1, reg: reg, published: true},
	)
	// G is in another session.
	seedRecords(t, st, 2, seed{nni: "G", score: ptr(20.0), decision: "Admis", est: est1, reg: reg, published: true})

	ranker := core.NewRanker(st)

	t.Run("strictly higher admitted peers", func(t *testing.T) {
		rec := &core.Record{SessionID: 1, Score: ptr(15.0), Outcome: core.DecisionAdmitted, EstablishmentID: est1, RegionID: reg}
		ranks, err := ranker.Compute(ctx, rec, core.ExamBAC)
		require.NoError(t, err)
		require.NotNil(t, ranks.Establishment)
		assert.Equal(t, 3, *ranks.Establishment) // A and G
		assert.Equal(t, 4, *ranks.Region)        // A, D and G
		assert.Equal(t, 4, *ranks.National)
	})

	t.Run("ties share a rank", func(t *testing.T) {
		rec := &core.Record{SessionID: 1, Score: ptr(18.0), Outcome: core.DecisionAdmitted, EstablishmentID: est1}
		ranks, err := ranker.Compute(ctx, rec, core.ExamBAC)
		require.NoError(t, err)
		assert.Equal(t, 2, *ranks.Establishment) // only G is strictly higher
		assert.Nil(t, ranks.Region)
	})

	t.Run("absent score yields no ranks", func(t *testing.T) {
		rec := &core.Record{SessionID: 1, Outcome: core.DecisionAdmitted, EstablishmentID: est1, RegionID: reg}
		ranks, err := ranker.Compute(ctx, rec, core.ExamBAC)
		require.NoError(t, err)
		assert.Equal(t, core.Ranks{}, ranks)
	})

	t.Run("not admitted yields no ranks", func(t *testing.T) {
		rec := &core.Record{SessionID: 1, Score: ptr(17.0), Outcome: core.DecisionFailed, EstablishmentID: est1}
		ranks, err := ranker.Compute(ctx, rec, core.ExamBAC)
		require.NoError(t, err)
		assert.Equal(t, core.Ranks{}, ranks)
	})

	t.Run("zero score is absent for bac", func(t *testing.T) {
		rec := &core.Record{SessionID: 1, Score: ptr(0.0), Outcome: core.DecisionAdmitted}
		ranks, err := ranker.Compute(ctx, rec, core.ExamBAC)
		require.NoError(t, err)
		assert.Equal(t, core.Ranks{}, ranks)
	})

	t.Run("zero score is ranked for concours", func(t *testing.T) {
		rec := &core.Record{SessionID: 1, Score: ptr(0.0), Outcome: core.DecisionAdmitted}
		ranks, err := ranker.Compute(ctx, rec, core.ExamConcours)
		require.NoError(t, err)
		require.NotNil(t, ranks.National)
		assert.Equal(t, 5, *ranks.National) // A, C, D, G
	})
}

func TestRanker_ThreeScores(t *testing.T) {
	st := memory.New()
	est := ptr(int64(3))
	seedRecords(t, st, 1,
		seed{nni: "1", score: ptr(18.0), decision: "Admis", est: est, published: true},
		seed{nni: "2", score: ptr(15.0), decision: "Admis", est: est, published: true},
		seed{nni: "3", score: ptr(12.0), decision: "Admis", est: est, published: true},
	)
	rec := &core.Record{SessionID: 1, Score: ptr(15.0), Outcome: core.DecisionAdmitted, EstablishmentID: est}

	ranks, err := core.NewRanker(st).Compute(context.Background(), rec, core.ExamBAC)
	require.NoError(t, err)
	assert.Equal(t, 2, *ranks.Establishment)
	assert.Equal(t, 2, *ranks.National)
	assert.Nil(t, ranks.Region)
}
