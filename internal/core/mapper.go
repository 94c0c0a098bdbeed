package core

// mapper.go turns one source row into a Record, or rejects it.

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Row rejection causes. MapRow wraps them in a *RowError.
var (
	ErrMissingNationalID  = errors.New("missing national id")
	ErrNationalIDTooShort = errors.New("national id too short")
	ErrMissingName        = errors.New("missing candidate name")
	ErrMissingDecision    = errors.New("missing decision")
	ErrInvalidScore       = errors.New("invalid score")
)

// RowError explains why a row was rejected.
type RowError struct {
	Err    error
	Detail string
}

func (e *RowError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Detail
}

func (e *RowError) Unwrap() error { return e.Err }

// ReferenceCaches resolve source codes and names to reference ids. They are
// built once per task and only read afterwards.
type ReferenceCaches struct {
	establishments map[string]int64
	regions        map[string]int64
	series         map[string]int64
}

// NewReferenceCaches indexes reference rows. Establishments are found by code
// or either name, series by code, regions by their two-digit code.
func NewReferenceCaches(establishments, regions, series []RefEntry) *ReferenceCaches {
	c := &ReferenceCaches{
		establishments: make(map[string]int64, len(establishments)*3),
		regions:        make(map[string]int64, len(regions)),
		series:         make(map[string]int64, len(series)),
	}
	for _, e := range establishments {
		for _, k := range []string{e.Code, e.NameFr, e.NameAr} {
			if key := foldName(k); key != "" {
				if _, dup := c.establishments[key]; !dup {
					c.establishments[key] = e.ID
				}
			}
		}
	}
	for _, r := range regions {
		c.regions[strings.TrimSpace(r.Code)] = r.ID
	}
	for _, s := range series {
		if key := foldName(s.Code); key != "" {
			c.series[key] = s.ID
		}
	}
	return c
}

// Establishment returns the id of the establishment with this code or name.
func (c *ReferenceCaches) Establishment(v string) (int64, bool) {
	id, ok := c.establishments[foldName(v)]
	return id, ok
}

// Series returns the id of the series with this code.
func (c *ReferenceCaches) Series(code string) (int64, bool) {
	id, ok := c.series[foldName(code)]
	return id, ok
}

// RegionCodes returns the region code to id map.
func (c *ReferenceCaches) RegionCodes() map[string]int64 {
	return c.regions
}

// Size returns the number of entries per cache, for logging.
func (c *ReferenceCaches) Size() (establishments, regions, series int) {
	return len(c.establishments), len(c.regions), len(c.series)
}

// MapRow builds a Record for sessionID from row using layout. When layout is
// LayoutUnknown it is detected from the row's own header. refs may be nil, in
// which case no reference ids are resolved.
//
// A rejected row returns a *RowError and a nil Record.
func MapRow(row Row, sessionID int64, layout Layout, refs *ReferenceCaches) (*Record, error) {
	if layout == LayoutUnknown {
		layout = DetectLayout(row.Header().Names())
	}
	spec := layout.Spec()
	get := func(f Field) string {
		v, _ := ExtractField(row, spec, f)
		return v
	}

	nni := cleanIdentifier(get(FieldNationalID))
	if nni == "" {
		return nil, &RowError{Err: ErrMissingNationalID}
	}
	if n := utf8.RuneCountInString(nni); n < spec.MinNationalIDLength {
		return nil, &RowError{
			Err:    ErrNationalIDTooShort,
			Detail: fmt.Sprintf("%q has %d characters, %s requires %d", nni, n, spec.Key, spec.MinNationalIDLength),
		}
	}

	latin, arabic := get(FieldNameLatin), get(FieldNameArabic)
	if latin == "" {
		latin = arabic
	}
	if latin == "" {
		return nil, &RowError{Err: ErrMissingName}
	}

	rec := &Record{
		SessionID:     sessionID,
		NationalID:    nni,
		FileNumber:    cleanIdentifier(get(FieldFileNumber)),
		NameLatin:     latin,
		NameArabic:    arabic,
		BirthPlace:    get(FieldBirthPlace),
		Sex:           get(FieldSex),
		District:      get(FieldDistrict),
		ExamCenter:    get(FieldExamCenter),
		CandidateType: get(FieldCandidateType),
		Published:     true,
		Verified:      true,
	}

	if d, ok := ParseDate(get(FieldBirthDate)); ok {
		rec.BirthDate = &d
	} else if d, ok := BirthYearDate(get(FieldBirthYear)); ok {
		rec.BirthDate = &d
	}

	rawScore := get(FieldScore)
	if score, ok := ParseDecimal(rawScore); ok {
		rec.Score = &score
	}

	if rule, ok := spec.Rule(FieldDecision); ok && rule.AutoCalculate {
		switch {
		case rec.Score != nil:
			rec.Decision = spec.Decision.Decide(*rec.Score)
		case rawScore == "":
			// An absent score counts as zero.
			rec.Decision = spec.Decision.Decide(0)
		default:
			return nil, &RowError{Err: ErrInvalidScore, Detail: fmt.Sprintf("%q is not a number", rawScore)}
		}
	} else {
		rec.Decision = get(FieldDecision)
	}
	if rec.Decision == "" {
		return nil, &RowError{Err: ErrMissingDecision}
	}
	rec.Outcome = ClassifyDecision(rec.Decision)

	if refs != nil {
		if code := get(FieldSeries); code != "" {
			if id, ok := refs.Series(code); ok {
				rec.SeriesID = &id
			}
		}
		if name := get(FieldEstablishment); name != "" {
			if id, ok := refs.Establishment(name); ok {
				rec.EstablishmentID = &id
			}
		}
		if id, ok := ResolveRegion(get(FieldRegionArabic), get(FieldRegionLatin), refs.RegionCodes()); ok {
			rec.RegionID = &id
		}
	}

	return rec, nil
}
