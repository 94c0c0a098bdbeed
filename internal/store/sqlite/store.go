// Package sqlite is a core.Store on SQLite through the pure-Go modernc driver.
// It suits single-node deployments and the CLI; the schema mirrors the
// postgres backend.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/natijti/internal/core"
)

//go:embed schema.sql
var schema string

const dateLayout = "2006-01-02"

var refTables = map[core.RefKind]string{
	core.RefEstablishment: "ref_etablissements",
	core.RefRegion:        "ref_wilayas",
	core.RefSeries:        "ref_series",
}

// Store is a SQLite-backed core.Store.
type Store struct {
	db *sql.DB
}

var _ core.Store = (*Store)(nil)

// Open connects to dsn, e.g. "natijti.db" or "file::memory:". SQLite allows a
// single writer, so the pool holds one connection; this also keeps an
// in-memory database alive for the life of the Store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: pragmas: %w", err)
	}
	return &Store{db: db}, nil
}

// Migrate creates the tables and seeds the wilaya reference rows.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Close implements core.Store.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// CreateSession inserts sess and sets its id.
func (s *Store) CreateSession(ctx context.Context, sess *core.ExamSession) error {
	var id any
	if sess.ID != 0 {
		id = sess.ID
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO exam_sessions (id, year, exam_type, session_name, start_date, end_date, publication_date, is_published)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		id, sess.Year, string(sess.ExamType), sess.Name,
		dateArg(sess.StartDate), dateArg(sess.EndDate), timeArg(sess.PublicationDate), sess.Published,
	).Scan(&sess.ID)
	if err != nil {
		return fmt.Errorf("sqlite: create session: %w", err)
	}
	return nil
}

// AddReference upserts e by code and sets its id.
func (s *Store) AddReference(ctx context.Context, kind core.RefKind, e *core.RefEntry) error {
	table, ok := refTables[kind]
	if !ok {
		return fmt.Errorf("sqlite: unknown reference kind %q", kind)
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO `+table+` (code, name_fr, name_ar) VALUES (?, ?, ?)
		ON CONFLICT (code) DO UPDATE SET name_fr = excluded.name_fr, name_ar = excluded.name_ar
		RETURNING id`,
		e.Code, e.NameFr, e.NameAr,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("sqlite: add %s: %w", kind, err)
	}
	return nil
}

// FindSession implements core.Store.
func (s *Store) FindSession(ctx context.Context, id int64) (*core.ExamSession, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM exam_sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: find session: %w", err)
	}
	return sess, nil
}

// ListSessions implements core.Store.
func (s *Store) ListSessions(ctx context.Context, f core.SessionFilter) ([]core.ExamSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM exam_sessions WHERE is_published = 1`
	var args []any
	if f.ExamType != "" {
		q += ` AND exam_type = ?`
		args = append(args, string(f.ExamType))
	}
	if f.Year != 0 {
		q += ` AND year = ?`
		args = append(args, f.Year)
	}
	q += ` ORDER BY year DESC, id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list sessions: %w", err)
	}
	defer rows.Close()

	out := []core.ExamSession{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan session: %w", err)
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

// ListEstablishments implements core.Store.
func (s *Store) ListEstablishments(ctx context.Context) ([]core.RefEntry, error) {
	return s.listRefs(ctx, core.RefEstablishment)
}

// ListRegions implements core.Store.
func (s *Store) ListRegions(ctx context.Context) ([]core.RefEntry, error) {
	return s.listRefs(ctx, core.RefRegion)
}

// ListSeries implements core.Store.
func (s *Store) ListSeries(ctx context.Context) ([]core.RefEntry, error) {
	return s.listRefs(ctx, core.RefSeries)
}

func (s *Store) listRefs(ctx context.Context, kind core.RefKind) ([]core.RefEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, code, name_fr, name_ar FROM `+refTables[kind]+` ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list %s: %w", kind, err)
	}
	defer rows.Close()

	var out []core.RefEntry
	for rows.Next() {
		var e core.RefEntry
		if err := rows.Scan(&e.ID, &e.Code, &e.NameFr, &e.NameAr); err != nil {
			return nil, fmt.Errorf("sqlite: scan %s: %w", kind, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Begin implements core.Store.
func (s *Store) Begin(ctx context.Context) (core.Batch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin: %w", err)
	}
	return &batch{tx: tx}, nil
}

// GetRecord implements core.Store.
func (s *Store) GetRecord(ctx context.Context, id uuid.UUID) (*core.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns("")+` FROM exam_results WHERE id = ?`, id.String())
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get result: %w", err)
	}
	return rec, nil
}

// SearchRecords implements core.Store.
func (s *Store) SearchRecords(ctx context.Context, p core.SearchParams) ([]core.Record, int, error) {
	where, args := searchFilter(p)
	from := ` FROM exam_results r
		JOIN exam_sessions es ON es.id = r.session_id
		LEFT JOIN ref_series rs ON rs.id = r.serie_id
		WHERE ` + where

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*)`+from, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: count results: %w", err)
	}

	q := `SELECT ` + recordColumns("r.") + from +
		` ORDER BY r.moyenne_generale IS NULL, r.moyenne_generale DESC, r.created_at DESC`
	if p.Size > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, p.Size, p.Offset())
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: search results: %w", err)
	}
	defer rows.Close()

	out := []core.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: scan result: %w", err)
		}
		out = append(out, *rec)
	}
	return out, total, rows.Err()
}

func searchFilter(p core.SearchParams) (string, []any) {
	conds := []string{"r.is_published = 1"}
	var args []any
	add := func(cond string, vals ...any) {
		conds = append(conds, cond)
		args = append(args, vals...)
	}
	if p.NationalID != "" {
		add("r.nni = ?", p.NationalID)
	}
	if p.FileNumber != "" {
		add("r.numero_dossier = ?", p.FileNumber)
	}
	if p.Name != "" {
		pattern := "%" + escapeLike(p.Name) + "%"
		add(`(r.nom_complet_fr LIKE ? ESCAPE '\' OR r.nom_complet_ar LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	if p.RegionID != 0 {
		add("r.wilaya_id = ?", p.RegionID)
	}
	if p.EstablishmentID != 0 {
		add("r.etablissement_id = ?", p.EstablishmentID)
	}
	if p.SeriesID != 0 {
		add("r.serie_id = ?", p.SeriesID)
	}
	if p.SeriesCode != "" {
		add("rs.code = ? COLLATE NOCASE", p.SeriesCode)
	}
	if p.Decision != "" {
		add("lower(r.decision) = lower(?)", p.Decision)
	}
	if p.Year != 0 {
		add("es.year = ?", p.Year)
	}
	if p.ExamType != "" {
		add("es.exam_type = ?", string(p.ExamType))
	}
	return strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// SessionCounts implements core.Store.
func (s *Store) SessionCounts(ctx context.Context, sessionID int64) (int64, int64, error) {
	var candidates, passed int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0)
		FROM exam_results WHERE session_id = ? AND is_published = 1`,
		string(core.DecisionAdmitted), sessionID,
	).Scan(&candidates, &passed)
	if err != nil {
		return 0, 0, fmt.Errorf("sqlite: session counts: %w", err)
	}
	return candidates, passed, nil
}

// CountHigherScores implements core.Store.
func (s *Store) CountHigherScores(ctx context.Context, q core.RankQuery) (int64, error) {
	query := `SELECT COUNT(*) FROM exam_results
		WHERE session_id = ? AND outcome = ? AND is_published = 1 AND moyenne_generale > ?`
	args := []any{q.SessionID, string(core.DecisionAdmitted), q.Score}
	switch q.Scope {
	case core.ScopeEstablishment:
		query += ` AND etablissement_id = ?`
		args = append(args, q.GroupID)
	case core.ScopeRegion:
		query += ` AND wilaya_id = ?`
		args = append(args, q.GroupID)
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count higher scores: %w", err)
	}
	return n, nil
}

// IncrementViewCount implements core.Store.
func (s *Store) IncrementViewCount(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE exam_results SET view_count = view_count + 1 WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("sqlite: increment view count: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrResultNotFound
	}
	return nil
}

func dateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
