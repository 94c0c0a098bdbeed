package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/natijti/internal/core"
)

const sessionColumns = `id, year, exam_type, session_name, start_date, end_date, publication_date, is_published`

var resultColumns = []string{
	"id", "session_id", "nni", "numero_dossier", "nom_complet_fr", "nom_complet_ar",
	"lieu_naissance", "date_naissance", "sexe", "moyenne_generale", "decision", "outcome",
	"etablissement_id", "serie_id", "wilaya_id", "moughataa", "centre_examen", "type_candidat",
	"is_published", "is_verified", "view_count", "share_count", "created_at", "updated_at",
}

func recordColumns(prefix string) string {
	if prefix == "" {
		return strings.Join(resultColumns, ", ")
	}
	return prefix + strings.Join(resultColumns, ", "+prefix)
}

func scanSession(row pgx.Row) (*core.ExamSession, error) {
	var (
		sess     core.ExamSession
		examType string
	)
	err := row.Scan(&sess.ID, &sess.Year, &examType, &sess.Name,
		&sess.StartDate, &sess.EndDate, &sess.PublicationDate, &sess.Published)
	if err != nil {
		return nil, err
	}
	sess.ExamType = core.ExamType(examType)
	return &sess, nil
}

func scanRecord(row pgx.Row) (*core.Record, error) {
	var (
		rec     core.Record
		outcome string
	)
	err := row.Scan(
		&rec.ID, &rec.SessionID, &rec.NationalID, &rec.FileNumber, &rec.NameLatin, &rec.NameArabic,
		&rec.BirthPlace, &rec.BirthDate, &rec.Sex, &rec.Score, &rec.Decision, &outcome,
		&rec.EstablishmentID, &rec.SeriesID, &rec.RegionID, &rec.District, &rec.ExamCenter, &rec.CandidateType,
		&rec.Published, &rec.Verified, &rec.ViewCount, &rec.ShareCount, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Outcome = core.Decision(outcome)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

// batch wraps one transaction. Postgres aborts the whole transaction on any
// statement error, so every statement runs inside its own savepoint and a
// failed row is rolled back to it.
type batch struct {
	tx  pgx.Tx
	seq int
}

func (b *batch) FindRecord(ctx context.Context, key core.RecordKey) (*core.Record, error) {
	var rec *core.Record
	err := b.savepoint(ctx, func() error {
		found, err := scanRecord(b.tx.QueryRow(ctx,
			`SELECT `+recordColumns("")+` FROM exam_results WHERE nni = $1 AND session_id = $2`,
			key.NationalID, key.SessionID))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("postgres: find result: %w", err)
		}
		rec = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (b *batch) InsertRecord(ctx context.Context, rec *core.Record) error {
	return b.savepoint(ctx, func() error {
		_, err := b.tx.Exec(ctx, `
			INSERT INTO exam_results (`+recordColumns("")+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			        $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`,
			rec.ID, rec.SessionID, rec.NationalID, rec.FileNumber, rec.NameLatin, rec.NameArabic,
			rec.BirthPlace, rec.BirthDate, rec.Sex, rec.Score, rec.Decision, string(rec.Outcome),
			rec.EstablishmentID, rec.SeriesID, rec.RegionID, rec.District, rec.ExamCenter, rec.CandidateType,
			rec.Published, rec.Verified, rec.ViewCount, rec.ShareCount, rec.CreatedAt, rec.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert result: %w", err)
		}
		return nil
	})
}

func (b *batch) UpdateRecord(ctx context.Context, rec *core.Record) error {
	return b.savepoint(ctx, func() error {
		tag, err := b.tx.Exec(ctx, `
			UPDATE exam_results SET
				numero_dossier = $2, nom_complet_fr = $3, nom_complet_ar = $4, lieu_naissance = $5,
				date_naissance = $6, sexe = $7, moyenne_generale = $8, decision = $9, outcome = $10,
				etablissement_id = $11, serie_id = $12, wilaya_id = $13, moughataa = $14,
				centre_examen = $15, type_candidat = $16, is_published = $17, is_verified = $18,
				updated_at = $19
			WHERE id = $1`,
			rec.ID, rec.FileNumber, rec.NameLatin, rec.NameArabic, rec.BirthPlace,
			rec.BirthDate, rec.Sex, rec.Score, rec.Decision, string(rec.Outcome),
			rec.EstablishmentID, rec.SeriesID, rec.RegionID, rec.District,
			rec.ExamCenter, rec.CandidateType, rec.Published, rec.Verified,
			rec.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("postgres: update result: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("postgres: update result %s: %w", rec.ID, core.ErrResultNotFound)
		}
		return nil
	})
}

// savepoint runs write between SAVEPOINT and RELEASE, rolling back to the
// savepoint when write fails so the transaction stays usable.
func (b *batch) savepoint(ctx context.Context, write func() error) error {
	b.seq++
	name := fmt.Sprintf("sp_%d", b.seq)
	if _, err := b.tx.Exec(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("postgres: create savepoint: %w", err)
	}
	if err := write(); err != nil {
		if _, rbErr := b.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("postgres: rollback savepoint after %v: %w", err, rbErr)
		}
		return err
	}
	if _, err := b.tx.Exec(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("postgres: release savepoint: %w", err)
	}
	return nil
}

func (b *batch) Commit(ctx context.Context) error {
	if err := b.tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (b *batch) Rollback(ctx context.Context) error {
	if err := b.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("postgres: rollback: %w", err)
	}
	return nil
}
