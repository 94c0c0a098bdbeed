package core

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ExamType identifies the kind of examination a session administers.
type ExamType string

const (
	ExamBAC      ExamType = "bac"
	ExamBEPC     ExamType = "bepc"
	ExamConcours ExamType = "concours"
)

// Valid reports whether t is one of the known exam types.
func (t ExamType) Valid() bool {
	switch t {
	case ExamBAC, ExamBEPC, ExamConcours:
		return true
	}
	return false
}

// ZeroScoreIsAbsent reports whether a score of exactly zero means "no score".
// BAC and BEPC averages are never legitimately zero; concours totals can be.
func (t ExamType) ZeroScoreIsAbsent() bool {
	return t != ExamConcours
}

// Decision is the classified outcome of a candidate. The source label is kept
// on Record.Decision; Outcome is what ranking and statistics filter on.
type Decision string

const (
	DecisionAdmitted  Decision = "admitted"
	DecisionFailed    Decision = "failed"
	DecisionPostponed Decision = "postponed"
	DecisionUnknown   Decision = "unknown"
)

var decisionLabels = map[string]Decision{
	"admis":        DecisionAdmitted,
	"admise":       DecisionAdmitted,
	"admitted":     DecisionAdmitted,
	"ناجح":         DecisionAdmitted,
	"refuse":       DecisionFailed,
	"refusee":      DecisionFailed,
	"echec":        DecisionFailed,
	"failed":       DecisionFailed,
	"راسب":         DecisionFailed,
	"ajourne":      DecisionPostponed,
	"ajournee":     DecisionPostponed,
	"sessionnaire": DecisionPostponed,
	"postponed":    DecisionPostponed,
	"مؤجل":         DecisionPostponed,
}

func init() {
	folded := make(map[string]Decision, len(decisionLabels))
	for label, d := range decisionLabels {
		folded[decisionKey(label)] = d
	}
	decisionLabels = folded
}

func decisionKey(label string) string {
	return strings.ToLower(foldLatin(strings.TrimSpace(label)))
}

// ClassifyDecision maps a free-text decision label onto a Decision.
// Matching ignores case, accents and surrounding whitespace.
func ClassifyDecision(label string) Decision {
	if d, ok := decisionLabels[decisionKey(label)]; ok {
		return d
	}
	return DecisionUnknown
}

// Record is one candidate's result for one exam session.
// The pair (NationalID, SessionID) is unique.
type Record struct {
	ID              uuid.UUID  `json:"id"`
	SessionID       int64      `json:"session_id"`
	NationalID      string     `json:"nni"`
	FileNumber      string     `json:"numero_dossier,omitempty"`
	NameLatin       string     `json:"nom_complet_fr"`
	NameArabic      string     `json:"nom_complet_ar,omitempty"`
	BirthPlace      string     `json:"lieu_naissance,omitempty"`
	BirthDate       *time.Time `json:"date_naissance,omitempty"`
	Sex             string     `json:"sexe,omitempty"`
	Score           *float64   `json:"moyenne_generale,omitempty"`
	Decision        string     `json:"decision"`
	Outcome         Decision   `json:"outcome"`
	EstablishmentID *int64     `json:"etablissement_id,omitempty"`
	SeriesID        *int64     `json:"serie_id,omitempty"`
	RegionID        *int64     `json:"wilaya_id,omitempty"`
	District        string     `json:"moughataa,omitempty"`
	ExamCenter      string     `json:"centre_examen,omitempty"`
	CandidateType   string     `json:"type_candidat,omitempty"`
	Published       bool       `json:"is_published"`
	Verified        bool       `json:"is_verified"`
	ViewCount       int64      `json:"view_count"`
	ShareCount      int64      `json:"share_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Admitted reports whether the record's decision is a pass.
func (r *Record) Admitted() bool {
	return r.Outcome == DecisionAdmitted
}

// CopyPayload overwrites every ingested field of r with src's values.
// Identity, timestamps and counters are left untouched.
func (r *Record) CopyPayload(src *Record) {
	r.FileNumber = src.FileNumber
	r.NameLatin = src.NameLatin
	r.NameArabic = src.NameArabic
	r.BirthPlace = src.BirthPlace
	r.BirthDate = src.BirthDate
	r.Sex = src.Sex
	r.Score = src.Score
	r.Decision = src.Decision
	r.Outcome = src.Outcome
	r.EstablishmentID = src.EstablishmentID
	r.SeriesID = src.SeriesID
	r.RegionID = src.RegionID
	r.District = src.District
	r.ExamCenter = src.ExamCenter
	r.CandidateType = src.CandidateType
	r.Published = src.Published
	r.Verified = src.Verified
}

// ExamSession is one (year, exam type) administration.
type ExamSession struct {
	ID              int64      `json:"id"`
	Year            int        `json:"year"`
	ExamType        ExamType   `json:"exam_type"`
	Name            string     `json:"session_name"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	PublicationDate *time.Time `json:"publication_date,omitempty"`
	Published       bool       `json:"is_published"`
}

// SessionStats are aggregate counts derived from a session's published records.
type SessionStats struct {
	SessionID       int64   `json:"session_id"`
	TotalCandidates int64   `json:"total_candidates"`
	TotalPassed     int64   `json:"total_passed"`
	PassRate        float64 `json:"pass_rate"`
}

// NewSessionStats computes the pass rate as a percentage rounded to two decimals.
func NewSessionStats(sessionID, candidates, passed int64) SessionStats {
	st := SessionStats{SessionID: sessionID, TotalCandidates: candidates, TotalPassed: passed}
	if candidates > 0 {
		st.PassRate = float64(int64(float64(passed)*10000/float64(candidates)+0.5)) / 100
	}
	return st
}

// SessionSummary is a session together with its derived statistics.
type SessionSummary struct {
	ExamSession
	SessionStats
}

// RefEntry is one row of reference data (establishment, region or series).
type RefEntry struct {
	ID     int64  `json:"id"`
	Code   string `json:"code"`
	NameFr string `json:"name_fr,omitempty"`
	NameAr string `json:"name_ar,omitempty"`
}

// RefKind names a reference table.
type RefKind string

const (
	RefEstablishment RefKind = "establishment"
	RefRegion        RefKind = "region"
	RefSeries        RefKind = "series"
)

// Valid reports whether k is a known reference table.
func (k RefKind) Valid() bool {
	return k == RefEstablishment || k == RefRegion || k == RefSeries
}

// RecordKey is the upsert key of a Record.
type RecordKey struct {
	NationalID string
	SessionID  int64
}

// Key returns the record's upsert key.
func (r *Record) Key() RecordKey {
	return RecordKey{NationalID: r.NationalID, SessionID: r.SessionID}
}

// Batch is a unit of work against the store. Writes become durable on Commit.
// A Batch sees its own uncommitted writes.
type Batch interface {
	FindRecord(ctx context.Context, key RecordKey) (*Record, error)
	InsertRecord(ctx context.Context, rec *Record) error
	UpdateRecord(ctx context.Context, rec *Record) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// RankScope selects the peer group a rank is computed in.
type RankScope int

const (
	ScopeEstablishment RankScope = iota
	ScopeRegion
	ScopeNational
)

func (s RankScope) String() string {
	switch s {
	case ScopeEstablishment:
		return "establishment"
	case ScopeRegion:
		return "region"
	default:
		return "national"
	}
}

// RankQuery asks for the number of admitted, published peers of a session
// scoring strictly above Score. GroupID is the establishment or region id
// for the narrower scopes and ignored for ScopeNational.
type RankQuery struct {
	Scope     RankScope
	SessionID int64
	GroupID   int64
	Score     float64
}

// SearchParams filters the public result search.
type SearchParams struct {
	NationalID      string   `json:"nni,omitempty"`
	FileNumber      string   `json:"numero_dossier,omitempty"`
	Name            string   `json:"nom,omitempty"`
	RegionID        int64    `json:"wilaya_id,omitempty"`
	EstablishmentID int64    `json:"etablissement_id,omitempty"`
	SeriesID        int64    `json:"serie_id,omitempty"`
	SeriesCode      string   `json:"serie_code,omitempty"`
	Decision        string   `json:"decision,omitempty"`
	Year            int      `json:"year,omitempty"`
	ExamType        ExamType `json:"exam_type,omitempty"`
	Page            int      `json:"page"`
	Size            int      `json:"size"`
}

// Offset returns the number of rows to skip for the requested page.
func (p SearchParams) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Size
}

// SearchPage is one page of search results.
type SearchPage struct {
	Results    []Record `json:"results"`
	Total      int      `json:"total"`
	Page       int      `json:"page"`
	Size       int      `json:"size"`
	TotalPages int      `json:"total_pages"`
	HasNext    bool     `json:"has_next"`
	HasPrev    bool     `json:"has_prev"`
}

// SessionFilter narrows the published session listing.
type SessionFilter struct {
	ExamType ExamType `json:"exam_type,omitempty"`
	Year     int      `json:"year,omitempty"`
}

// Store is the durable collaborator behind ingestion, ranking and search.
type Store interface {
	FindSession(ctx context.Context, id int64) (*ExamSession, error)
	ListEstablishments(ctx context.Context) ([]RefEntry, error)
	ListRegions(ctx context.Context) ([]RefEntry, error)
	ListSeries(ctx context.Context) ([]RefEntry, error)
	Begin(ctx context.Context) (Batch, error)

	GetRecord(ctx context.Context, id uuid.UUID) (*Record, error)
	SearchRecords(ctx context.Context, p SearchParams) ([]Record, int, error)
	ListSessions(ctx context.Context, f SessionFilter) ([]ExamSession, error)
	SessionCounts(ctx context.Context, sessionID int64) (candidates, passed int64, err error)
	CountHigherScores(ctx context.Context, q RankQuery) (int64, error)
	IncrementViewCount(ctx context.Context, id uuid.UUID) error

	Close() error
}

// Cache is a byte-oriented key/value store with expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
