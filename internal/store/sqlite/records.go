package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/natijti/internal/core"
)

const sessionColumns = `id, year, exam_type, session_name, start_date, end_date, publication_date, is_published`

func recordColumns(prefix string) string {
	cols := []string{
		"id", "session_id", "nni", "numero_dossier", "nom_complet_fr", "nom_complet_ar",
		"lieu_naissance", "date_naissance", "sexe", "moyenne_generale", "decision", "outcome",
		"etablissement_id", "serie_id", "wilaya_id", "moughataa", "centre_examen", "type_candidat",
		"is_published", "is_verified", "view_count", "share_count", "created_at", "updated_at",
	}
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += prefix + c
	}
	return out
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*core.ExamSession, error) {
	var (
		sess                    core.ExamSession
		examType                string
		start, end, publication sql.NullString
	)
	if err := row.Scan(&sess.ID, &sess.Year, &examType, &sess.Name, &start, &end, &publication, &sess.Published); err != nil {
		return nil, err
	}
	sess.ExamType = core.ExamType(examType)
	sess.StartDate = parseDate(start)
	sess.EndDate = parseDate(end)
	if publication.Valid {
		if t, err := time.Parse(time.RFC3339Nano, publication.String); err == nil {
			sess.PublicationDate = &t
		}
	}
	return &sess, nil
}

func scanRecord(row scanner) (*core.Record, error) {
	var (
		rec                       core.Record
		id, outcome               string
		birthDate                 sql.NullString
		score                     sql.NullFloat64
		establishment, series, wl sql.NullInt64
		created, updated          int64
	)
	err := row.Scan(
		&id, &rec.SessionID, &rec.NationalID, &rec.FileNumber, &rec.NameLatin, &rec.NameArabic,
		&rec.BirthPlace, &birthDate, &rec.Sex, &score, &rec.Decision, &outcome,
		&establishment, &series, &wl, &rec.District, &rec.ExamCenter, &rec.CandidateType,
		&rec.Published, &rec.Verified, &rec.ViewCount, &rec.ShareCount, &created, &updated,
	)
	if err != nil {
		return nil, err
	}
	if rec.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse result id %q: %w", id, err)
	}
	rec.Outcome = core.Decision(outcome)
	rec.BirthDate = parseDate(birthDate)
	if score.Valid {
		rec.Score = &score.Float64
	}
	rec.EstablishmentID = nullID(establishment)
	rec.SeriesID = nullID(series)
	rec.RegionID = nullID(wl)
	rec.CreatedAt = time.Unix(0, created).UTC()
	rec.UpdatedAt = time.Unix(0, updated).UTC()
	return &rec, nil
}

func parseDate(v sql.NullString) *time.Time {
	if !v.Valid {
		return nil
	}
	t, err := time.Parse(dateLayout, v.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullID(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func idArg(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func scoreArg(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

// batch wraps one transaction. SQLite rolls back only the failing statement
// on a constraint error, so the transaction stays usable after a bad row.
type batch struct {
	tx *sql.Tx
}

func (b *batch) FindRecord(ctx context.Context, key core.RecordKey) (*core.Record, error) {
	row := b.tx.QueryRowContext(ctx,
		`SELECT `+recordColumns("")+` FROM exam_results WHERE nni = ? AND session_id = ?`,
		key.NationalID, key.SessionID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: find result: %w", err)
	}
	return rec, nil
}

func (b *batch) InsertRecord(ctx context.Context, rec *core.Record) error {
	_, err := b.tx.ExecContext(ctx, `
		INSERT INTO exam_results (`+recordColumns("")+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.SessionID, rec.NationalID, rec.FileNumber, rec.NameLatin, rec.NameArabic,
		rec.BirthPlace, dateArg(rec.BirthDate), rec.Sex, scoreArg(rec.Score), rec.Decision, string(rec.Outcome),
		idArg(rec.EstablishmentID), idArg(rec.SeriesID), idArg(rec.RegionID), rec.District, rec.ExamCenter, rec.CandidateType,
		rec.Published, rec.Verified, rec.ViewCount, rec.ShareCount, rec.CreatedAt.UnixNano(), rec.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert result: %w", err)
	}
	return nil
}

func (b *batch) UpdateRecord(ctx context.Context, rec *core.Record) error {
	res, err := b.tx.ExecContext(ctx, `
		UPDATE exam_results SET
			numero_dossier = ?, nom_complet_fr = ?, nom_complet_ar = ?, lieu_naissance = ?,
			date_naissance = ?, sexe = ?, moyenne_generale = ?, decision = ?, outcome = ?,
			etablissement_id = ?, serie_id = ?, wilaya_id = ?, moughataa = ?, centre_examen = ?,
			type_candidat = ?, is_published = ?, is_verified = ?, updated_at = ?
		WHERE id = ?`,
		rec.FileNumber, rec.NameLatin, rec.NameArabic, rec.BirthPlace,
		dateArg(rec.BirthDate), rec.Sex, scoreArg(rec.Score), rec.Decision, string(rec.Outcome),
		idArg(rec.EstablishmentID), idArg(rec.SeriesID), idArg(rec.RegionID), rec.District, rec.ExamCenter,
		rec.CandidateType, rec.Published, rec.Verified, rec.UpdatedAt.UnixNano(),
		rec.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: update result: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sqlite: update result %s: %w", rec.ID, core.ErrResultNotFound)
	}
	return nil
}

func (b *batch) Commit(context.Context) error {
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

func (b *batch) Rollback(context.Context) error {
	if err := b.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("sqlite: rollback: %w", err)
	}
	return nil
}
