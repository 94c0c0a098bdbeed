package core

import (
	"context"
	"fmt"
)

// Ranks are a result's positions among admitted peers of the same session.
// A nil rank means the rank does not apply.
type Ranks struct {
	Establishment *int `json:"rang_etablissement"`
	Region        *int `json:"rang_wilaya"`
	National      *int `json:"rang_national"`
}

// Ranker computes ranks on demand from the store. Nothing is persisted.
type Ranker struct {
	store Store
}

// NewRanker returns a Ranker reading from store.
func NewRanker(store Store) *Ranker {
	return &Ranker{store: store}
}

// Compute ranks rec within its establishment, its region and nationally.
//
// A rank is one plus the number of admitted, published peers in the same
// session (and group) with a strictly higher score, so ties share a rank.
// Every rank is nil when rec has no score, is not admitted, or scored 0 in an
// exam where 0 means absent. A group rank is nil when rec has no group.
func (r *Ranker) Compute(ctx context.Context, rec *Record, examType ExamType) (Ranks, error) {
	var ranks Ranks
	if rec.Score == nil || !rec.Admitted() {
		return ranks, nil
	}
	score := *rec.Score
	if score == 0 && examType.ZeroScoreIsAbsent() {
		return ranks, nil
	}

	rank := func(scope RankScope, group int64) (*int, error) {
		n, err := r.store.CountHigherScores(ctx, RankQuery{
			Scope:     scope,
			SessionID: rec.SessionID,
			GroupID:   group,
			Score:     score,
		})
		if err != nil {
			return nil, fmt.Errorf("%s rank: %w", scope, err)
		}
		v := int(n) + 1
		return &v, nil
	}

	var err error
	if rec.EstablishmentID != nil {
		if ranks.Establishment, err = rank(ScopeEstablishment, *rec.EstablishmentID); err != nil {
			return Ranks{}, err
		}
	}
	if rec.RegionID != nil {
		if ranks.Region, err = rank(ScopeRegion, *rec.RegionID); err != nil {
			return Ranks{}, err
		}
	}
	if ranks.National, err = rank(ScopeNational, 0); err != nil {
		return Ranks{}, err
	}
	return ranks, nil
}
