// Package postgres is the production core.Store, backed by a pgx connection
// pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/natijti/internal/core"
)

//go:embed schema.sql
var schema string

var refTables = map[core.RefKind]string{
	core.RefEstablishment: "ref_etablissements",
	core.RefRegion:        "ref_wilayas",
	core.RefSeries:        "ref_series",
}

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Store is a Postgres-backed core.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

// Open connects and pings the database.
func Open(ctx context.Context, cfg PoolConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Migrate creates the tables and seeds the wilaya reference rows.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// Close implements core.Store.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// CreateSession inserts sess and sets its id.
func (s *Store) CreateSession(ctx context.Context, sess *core.ExamSession) error {
	const cols = `year, exam_type, session_name, start_date, end_date, publication_date, is_published`
	args := []any{sess.Year, string(sess.ExamType), sess.Name, sess.StartDate, sess.EndDate, sess.PublicationDate, sess.Published}

	q := `INSERT INTO exam_sessions (` + cols + `) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	if sess.ID != 0 {
		q = `INSERT INTO exam_sessions (id, ` + cols + `) VALUES ($8, $1, $2, $3, $4, $5, $6, $7) RETURNING id`
		args = append(args, sess.ID)
	}
	if err := s.pool.QueryRow(ctx, q, args...).Scan(&sess.ID); err != nil {
		return fmt.Errorf("postgres: create session: %w", err)
	}
	return nil
}

// AddReference upserts e by code and sets its id.
func (s *Store) AddReference(ctx context.Context, kind core.RefKind, e *core.RefEntry) error {
	table, ok := refTables[kind]
	if !ok {
		return fmt.Errorf("postgres: unknown reference kind %q", kind)
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO `+table+` (code, name_fr, name_ar) VALUES ($1, $2, $3)
		ON CONFLICT (code) DO UPDATE SET name_fr = EXCLUDED.name_fr, name_ar = EXCLUDED.name_ar
		RETURNING id`,
		e.Code, e.NameFr, e.NameAr,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("postgres: add %s: %w", kind, err)
	}
	return nil
}

// FindSession implements core.Store.
func (s *Store) FindSession(ctx context.Context, id int64) (*core.ExamSession, error) {
	sess, err := scanSession(s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: find session: %w", err)
	}
	return sess, nil
}

// ListSessions implements core.Store.
func (s *Store) ListSessions(ctx context.Context, f core.SessionFilter) ([]core.ExamSession, error) {
	var w where
	w.add("is_published")
	if f.ExamType != "" {
		w.add("exam_type = $?", string(f.ExamType))
	}
	if f.Year != 0 {
		w.add("year = $?", f.Year)
	}

	rows, err := s.pool.Query(ctx, `SELECT `+sessionColumns+` FROM exam_sessions WHERE `+w.String()+` ORDER BY year DESC, id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list sessions: %w", err)
	}
	defer rows.Close()

	out := []core.ExamSession{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan session: %w", err)
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
	rows, err := s.pool.Query(ctx, `SELECT id, code, name_fr, name_ar FROM `+refTables[kind]+` ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list %s: %w", kind, err)
	}
	defer rows.Close()

	var out []core.RefEntry
	for rows.Next() {
		var e core.RefEntry
		if err := rows.Scan(&e.ID, &e.Code, &e.NameFr, &e.NameAr); err != nil {
			return nil, fmt.Errorf("postgres: scan %s: %w", kind, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Begin implements core.Store.
func (s *Store) Begin(ctx context.Context) (core.Batch, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	return &batch{tx: tx}, nil
}

// GetRecord implements core.Store.
func (s *Store) GetRecord(ctx context.Context, id uuid.UUID) (*core.Record, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx, `SELECT `+recordColumns("")+` FROM exam_results WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get result: %w", err)
	}
	return rec, nil
}

// SearchRecords implements core.Store.
func (s *Store) SearchRecords(ctx context.Context, p core.SearchParams) ([]core.Record, int, error) {
	w := searchFilter(p)
	from := ` FROM exam_results r
		JOIN exam_sessions es ON es.id = r.session_id
		LEFT JOIN ref_series rs ON rs.id = r.serie_id
		WHERE ` + w.String()

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*)`+from, w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: count results: %w", err)
	}

	q := `SELECT ` + recordColumns("r.") + from + ` ORDER BY r.moyenne_generale DESC NULLS LAST, r.created_at DESC`
	args := w.args
	if p.Size > 0 {
		q += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
		args = append(args, p.Size, p.Offset())
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: search results: %w", err)
	}
	defer rows.Close()

	out := []core.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres: scan result: %w", err)
		}
		out = append(out, *rec)
	}
	return out, total, rows.Err()
}

func searchFilter(p core.SearchParams) *where {
	w := &where{}
	w.add("r.is_published")
	if p.NationalID != "" {
		w.add("r.nni = $?", p.NationalID)
	}
	if p.FileNumber != "" {
		w.add("r.numero_dossier = $?", p.FileNumber)
	}
	if p.Name != "" {
		w.add("(r.nom_complet_fr ILIKE $? OR r.nom_complet_ar ILIKE $?)", "%"+escapeLike(p.Name)+"%")
	}
	if p.RegionID != 0 {
		w.add("r.wilaya_id = $?", p.RegionID)
	}
	if p.EstablishmentID != 0 {
		w.add("r.etablissement_id = $?", p.EstablishmentID)
	}
	if p.SeriesID != 0 {
		w.add("r.serie_id = $?", p.SeriesID)
	}
	if p.SeriesCode != "" {
		w.add("lower(rs.code) = lower($?)", p.SeriesCode)
	}
	if p.Decision != "" {
		w.add("lower(r.decision) = lower($?)", p.Decision)
	}
	if p.Year != 0 {
		w.add("es.year = $?", p.Year)
	}
	if p.ExamType != "" {
		w.add("es.exam_type = $?", string(p.ExamType))
	}
	return w
}

// where collects AND-ed conditions. Each "$?" in a condition becomes the
// next positional parameter; all of a condition's "$?" share its one value.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, val ...any) {
	if len(val) > 0 {
		w.args = append(w.args, val[0])
		cond = strings.ReplaceAll(cond, "$?", "$"+strconv.Itoa(len(w.args)))
	}
	w.conds = append(w.conds, cond)
}

func (w *where) String() string { return strings.Join(w.conds, " AND ") }

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// SessionCounts implements core.Store.
func (s *Store) SessionCounts(ctx context.Context, sessionID int64) (int64, int64, error) {
	var candidates, passed int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE outcome = $2)
		FROM exam_results WHERE session_id = $1 AND is_published`,
		sessionID, string(core.DecisionAdmitted),
	).Scan(&candidates, &passed)
	if err != nil {
		return 0, 0, fmt.Errorf("postgres: session counts: %w", err)
	}
	return candidates, passed, nil
}

// CountHigherScores implements core.Store.
func (s *Store) CountHigherScores(ctx context.Context, q core.RankQuery) (int64, error) {
	query := `SELECT COUNT(*) FROM exam_results
		WHERE session_id = $1 AND outcome = $2 AND is_published AND moyenne_generale > $3`
	args := []any{q.SessionID, string(core.DecisionAdmitted), q.Score}
	switch q.Scope {
	case core.ScopeEstablishment:
		query += ` AND etablissement_id = $4`
		args = append(args, q.GroupID)
	case core.ScopeRegion:
		query += ` AND wilaya_id = $4`
		args = append(args, q.GroupID)
	}

	var n int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count higher scores: %w", err)
	}
	return n, nil
}

// IncrementViewCount implements core.Store.
func (s *Store) IncrementViewCount(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE exam_results SET view_count = view_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: increment view count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrResultNotFound
	}
	return nil
}
