// Package memory is an in-process core.Store. It backs the "memory" database
// driver and the engine tests, which use its fault hooks to fail chosen
// writes and commits.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/JonMunkholm/natijti/internal/core"
)

// Faults lets tests make individual operations fail. Nil hooks never fail.
type Faults struct {
	// Insert is consulted before a record is inserted.
	Insert func(rec *core.Record) error
	// Commit is consulted before the nth commit (starting at 1) is applied.
	Commit func(n int) error
}

// Store keeps everything in maps guarded by one mutex.
type Store struct {
	mu             sync.RWMutex
	sessions       map[int64]core.ExamSession
	establishments []core.RefEntry
	regions        []core.RefEntry
	series         []core.RefEntry
	records        map[uuid.UUID]*core.Record
	byKey          map[core.RecordKey]uuid.UUID
	nextSessionID  int64
	nextRefID      int64
	commits        int
	faults         Faults
}

var _ core.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		sessions: make(map[int64]core.ExamSession),
		records:  make(map[uuid.UUID]*core.Record),
		byKey:    make(map[core.RecordKey]uuid.UUID),
	}
}

// SetFaults installs fault hooks.
func (s *Store) SetFaults(f Faults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = f
}

// CreateSession stores sess, assigning an id when it has none.
func (s *Store) CreateSession(_ context.Context, sess *core.ExamSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.ID == 0 {
		s.nextSessionID++
		sess.ID = s.nextSessionID
	} else if sess.ID > s.nextSessionID {
		s.nextSessionID = sess.ID
	}
	s.sessions[sess.ID] = *sess
	return nil
}

// SetReferences replaces the reference tables.
func (s *Store) SetReferences(establishments, regions, series []core.RefEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.establishments = append([]core.RefEntry(nil), establishments...)
	s.regions = append([]core.RefEntry(nil), regions...)
	s.series = append([]core.RefEntry(nil), series...)
}

// AddReference inserts e into the kind table, or updates the entry with the
// same code. e.ID is set to the stored id.
func (s *Store) AddReference(_ context.Context, kind core.RefKind, e *core.RefEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var table *[]core.RefEntry
	switch kind {
	case core.RefEstablishment:
		table = &s.establishments
	case core.RefRegion:
		table = &s.regions
	case core.RefSeries:
		table = &s.series
	default:
		return fmt.Errorf("memory: unknown reference kind %q", kind)
	}
	for i := range *table {
		if (*table)[i].Code == e.Code {
			e.ID = (*table)[i].ID
			(*table)[i] = *e
			return nil
		}
	}
	s.nextRefID++
	e.ID = s.nextRefID
	*table = append(*table, *e)
	return nil
}

// Records returns copies of all committed records.
func (s *Store) Records() []core.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, *r)
	}
	return out
}

// FindSession implements core.Store.
func (s *Store) FindSession(_ context.Context, id int64) (*core.ExamSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	return &sess, nil
}

// ListEstablishments implements core.Store.
func (s *Store) ListEstablishments(context.Context) ([]core.RefEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.RefEntry(nil), s.establishments...), nil
}

// ListRegions implements core.Store.
func (s *Store) ListRegions(context.Context) ([]core.RefEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.RefEntry(nil), s.regions...), nil
}

// ListSeries implements core.Store.
func (s *Store) ListSeries(context.Context) ([]core.RefEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.RefEntry(nil), s.series...), nil
}

// Begin implements core.Store.
func (s *Store) Begin(context.Context) (core.Batch, error) {
	return &batch{store: s, pending: make(map[core.RecordKey]*core.Record)}, nil
}

// GetRecord implements core.Store.
func (s *Store) GetRecord(_ context.Context, id uuid.UUID) (*core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, core.ErrResultNotFound
	}
	cp := *r
	return &cp, nil
}

// SearchRecords implements core.Store.
func (s *Store) SearchRecords(_ context.Context, p core.SearchParams) ([]core.Record, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var seriesByCode int64
	if p.SeriesCode != "" {
		for _, e := range s.series {
			if strings.EqualFold(e.Code, p.SeriesCode) {
				seriesByCode = e.ID
			}
		}
		if seriesByCode == 0 {
			return []core.Record{}, 0, nil
		}
	}

	name := strings.ToLower(p.Name)
	var matched []core.Record
	for _, r := range s.records {
		if !r.Published {
			continue
		}
		sess := s.sessions[r.SessionID]
		switch {
		case p.NationalID != "" && r.NationalID != p.NationalID,
			p.FileNumber != "" && r.FileNumber != p.FileNumber,
			name != "" && !strings.Contains(strings.ToLower(r.NameLatin), name) &&
				!strings.Contains(strings.ToLower(r.NameArabic), name),
			p.RegionID != 0 && !eq(r.RegionID, p.RegionID),
			p.EstablishmentID != 0 && !eq(r.EstablishmentID, p.EstablishmentID),
			p.SeriesID != 0 && !eq(r.SeriesID, p.SeriesID),
			seriesByCode != 0 && !eq(r.SeriesID, seriesByCode),
			p.Decision != "" && !strings.EqualFold(r.Decision, p.Decision),
			p.Year != 0 && sess.Year != p.Year,
			p.ExamType != "" && sess.ExamType != p.ExamType:
			continue
		}
		matched = append(matched, *r)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch {
		case a.Score == nil && b.Score != nil:
			return false
		case a.Score != nil && b.Score == nil:
			return true
		case a.Score != nil && b.Score != nil && *a.Score != *b.Score:
			return *a.Score > *b.Score
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	total := len(matched)
	start := min(p.Offset(), total)
	end := total
	if p.Size > 0 {
		end = min(start+p.Size, total)
	}
	return matched[start:end], total, nil
}

// ListSessions implements core.Store.
func (s *Store) ListSessions(_ context.Context, f core.SessionFilter) ([]core.ExamSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.ExamSession
	for _, sess := range s.sessions {
		if !sess.Published ||
			(f.ExamType != "" && sess.ExamType != f.ExamType) ||
			(f.Year != 0 && sess.Year != f.Year) {
			continue
		}
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SessionCounts implements core.Store.
func (s *Store) SessionCounts(_ context.Context, sessionID int64) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var candidates, passed int64
	for _, r := range s.records {
		if r.SessionID != sessionID || !r.Published {
			continue
		}
		candidates++
		if r.Admitted() {
			passed++
		}
	}
	return candidates, passed, nil
}

// CountHigherScores implements core.Store.
func (s *Store) CountHigherScores(_ context.Context, q core.RankQuery) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, r := range s.records {
		if r.SessionID != q.SessionID || !r.Published || !r.Admitted() || r.Score == nil || *r.Score <= q.Score {
			continue
		}
		switch q.Scope {
		case core.ScopeEstablishment:
			if !eq(r.EstablishmentID, q.GroupID) {
				continue
			}
		case core.ScopeRegion:
			if !eq(r.RegionID, q.GroupID) {
				continue
			}
		}
		n++
	}
	return n, nil
}

// IncrementViewCount implements core.Store.
func (s *Store) IncrementViewCount(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return core.ErrResultNotFound
	}
	r.ViewCount++
	return nil
}

// Close implements core.Store.
func (s *Store) Close() error { return nil }

func eq(p *int64, v int64) bool { return p != nil && *p == v }

// batch buffers writes until Commit.
type batch struct {
	store   *Store
	pending map[core.RecordKey]*core.Record
	order   []core.RecordKey
	done    bool
}

var errBatchDone = errors.New("memory: batch already finished")

func (b *batch) FindRecord(_ context.Context, key core.RecordKey) (*core.Record, error) {
	if b.done {
		return nil, errBatchDone
	}
	if r, ok := b.pending[key]; ok {
		cp := *r
		return &cp, nil
	}
	b.store.mu.RLock()
	defer b.store.mu.RUnlock()
	id, ok := b.store.byKey[key]
	if !ok {
		return nil, nil
	}
	cp := *b.store.records[id]
	return &cp, nil
}

func (b *batch) InsertRecord(_ context.Context, rec *core.Record) error {
	if b.done {
		return errBatchDone
	}
	b.store.mu.RLock()
	hook := b.store.faults.Insert
	b.store.mu.RUnlock()
	if hook != nil {
		if err := hook(rec); err != nil {
			return err
		}
	}
	key := rec.Key()
	_, pending := b.pending[key]
	b.store.mu.RLock()
	_, committed := b.store.byKey[key]
	b.store.mu.RUnlock()
	if pending || committed {
		return fmt.Errorf("memory: duplicate key value violates unique constraint (nni=%s, session_id=%d)", key.NationalID, key.SessionID)
	}
	b.put(rec)
	return nil
}

func (b *batch) UpdateRecord(_ context.Context, rec *core.Record) error {
	if b.done {
		return errBatchDone
	}
	b.put(rec)
	return nil
}

func (b *batch) put(rec *core.Record) {
	key := rec.Key()
	if _, ok := b.pending[key]; !ok {
		b.order = append(b.order, key)
	}
	cp := *rec
	b.pending[key] = &cp
}

func (b *batch) Commit(context.Context) error {
	if b.done {
		return errBatchDone
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	b.store.commits++
	if hook := b.store.faults.Commit; hook != nil {
		if err := hook(b.store.commits); err != nil {
			return err
		}
	}
	for _, key := range b.order {
		rec := b.pending[key]
		if id, ok := b.store.byKey[key]; ok && id != rec.ID {
			delete(b.store.records, id)
		}
		b.store.records[rec.ID] = rec
		b.store.byKey[key] = rec.ID
	}
	b.done = true
	return nil
}

func (b *batch) Rollback(context.Context) error {
	b.pending = nil
	b.order = nil
	b.done = true
	return nil
}
