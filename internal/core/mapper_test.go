package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testRefs() *ReferenceCaches {
	return NewReferenceCaches(
		[]RefEntry{
			{ID: 1, Code: "LYC-01", NameFr: "Lycée de Rosso", NameAr: "ثانوية روصو"},
			{ID: 2, Code: "ECO-02", NameAr: "مدرسة النجاح"},
		},
		[]RefEntry{{ID: 6, Code: "06"}, {ID: 14, Code: "14"}},
		[]RefEntry{{ID: 3, Code: "SN"}, {ID: 4, Code: "M"}},
	)
}

func bacRow(values map[int]string) Row {
	header := LayoutBAC.Spec().SampleColumns
	row := make([]string, len(header))
	for i, v := range values {
		row[i] = v
	}
	return NewRow(NewHeader(header), row)
}

func TestMapRow_BAC(t *testing.T) {
	row := bacRow(map[int]string{
		1:  "Trarza",
		3:  "Lycée de Rosso",
		10: "SN",
		13: "12345678.0",
		14: "Mohamed Salem",
		15: "Rosso",
		16: "15-janv-05",
		17: "12,75",
		18: "Admis",
	})

	rec, err := MapRow(row, 9, LayoutBAC, testRefs())
	if err != nil {
		t.Fatalf("MapRow() error = %v", err)
	}

	if rec.NationalID != "12345678" {
		t.Errorf("NationalID = %q", rec.NationalID)
	}
	if rec.SessionID != 9 || rec.NameLatin != "Mohamed Salem" || rec.BirthPlace != "Rosso" {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.BirthDate == nil || !rec.BirthDate.Equal(time.Date(2005, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("BirthDate = %v", rec.BirthDate)
	}
	if rec.Score == nil || *rec.Score != 12.75 {
		t.Errorf("Score = %v", rec.Score)
	}
	if rec.Decision != "Admis" || rec.Outcome != DecisionAdmitted {
		t.Errorf("Decision = %q / %q", rec.Decision, rec.Outcome)
	}
	if rec.SeriesID == nil || *rec.SeriesID != 3 {
		t.Errorf("SeriesID = %v", rec.SeriesID)
	}
	if rec.RegionID == nil || *rec.RegionID != 6 {
		t.Errorf("RegionID = %v", rec.RegionID)
	}
	if rec.EstablishmentID == nil || *rec.EstablishmentID != 1 {
		t.Errorf("EstablishmentID = %v", rec.EstablishmentID)
	}
	if !rec.Published || !rec.Verified {
		t.Error("ingested records must be published and verified")
	}
}

func TestMapRow_Concours(t *testing.T) {
	header := []string{"Numéro_C1AS", "NODOSS", "NOM_AR", "ANNEE_NAISS", "WILAYA_AR", "MOUGHATAA_AR", "Centre Examen_AR", "Ecole_AR", "TYPE", "TOTAL"}
	mk := func(total string) Row {
		return NewRow(NewHeader(header), []string{"42", "D-17", "فاطمة", "2011", "انواكشوط الغربية", "تفرغ زينة", "مركز 3", "ECO-02", "رسمي", total})
	}

	rec, err := MapRow(mk("91,5"), 2, LayoutUnknown, testRefs())
	if err != nil {
		t.Fatalf("MapRow() error = %v", err)
	}
	if rec.NameLatin != "فاطمة" || rec.NameArabic != "فاطمة" {
		t.Errorf("names = %q / %q, latin should fall back to arabic", rec.NameLatin, rec.NameArabic)
	}
	if rec.FileNumber != "D-17" || rec.District != "تفرغ زينة" || rec.ExamCenter != "مركز 3" || rec.CandidateType != "رسمي" {
		t.Errorf("concours extras not mapped: %+v", rec)
	}
	if rec.BirthDate == nil || rec.BirthDate.Year() != 2011 || rec.BirthDate.YearDay() != 1 {
		t.Errorf("BirthDate = %v, want 2011-01-01", rec.BirthDate)
	}
	if rec.Decision != "Admis" || !rec.Admitted() {
		t.Errorf("Decision = %q, want Admis", rec.Decision)
	}
	if rec.RegionID == nil || *rec.RegionID != 14 {
		t.Errorf("RegionID = %v", rec.RegionID)
	}
	if rec.EstablishmentID == nil || *rec.EstablishmentID != 2 {
		t.Errorf("EstablishmentID = %v (lookup by code)", rec.EstablishmentID)
	}

	low, err := MapRow(mk("84.99"), 2, LayoutConcours1AS, nil)
	if err != nil {
		t.Fatalf("MapRow() error = %v", err)
	}
	if low.Decision != "Ajourné" || low.Outcome != DecisionPostponed {
		t.Errorf("Decision = %q / %q, want Ajourné", low.Decision, low.Outcome)
	}
	if low.RegionID != nil || low.EstablishmentID != nil {
		t.Error("nil refs must not resolve ids")
	}

	absent, err := MapRow(mk(""), 2, LayoutConcours1AS, nil)
	if err != nil {
		t.Fatalf("no score: MapRow() error = %v", err)
	}
	if absent.Score != nil || absent.Decision != "Ajourné" || absent.Outcome != DecisionPostponed {
		t.Errorf("no score: Score = %v, Decision = %q, want nil and Ajourné", absent.Score, absent.Decision)
	}
	if absent, err := MapRow(mk("nan"), 2, LayoutConcours1AS, nil); err != nil || absent.Decision != "Ajourné" {
		t.Errorf("nan score: rec = %+v, err = %v, want Ajourné", absent, err)
	}

	_, err = MapRow(mk("dix-huit"), 2, LayoutConcours1AS, nil)
	if !errors.Is(err, ErrInvalidScore) {
		t.Errorf("bad score: err = %v, want ErrInvalidScore", err)
	}
	var rowErr *RowError
	if !errors.As(err, &rowErr) || !strings.Contains(rowErr.Error(), "dix-huit") {
		t.Errorf("bad score: err = %v, want the raw value in the detail", err)
	}
}

func TestMapRow_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		values  map[int]string
		wantErr error
	}{
		{name: "missing national id", values: map[int]string{14: "A", 18: "Admis"}, wantErr: ErrMissingNationalID},
		{name: "national id token nan", values: map[int]string{13: "nan", 14: "A", 18: "Admis"}, wantErr: ErrMissingNationalID},
		{name: "national id too short", values: map[int]string{13: "1234", 14: "A", 18: "Admis"}, wantErr: ErrNationalIDTooShort},
		{name: "missing name", values: map[int]string{13: "12345678", 18: "Admis"}, wantErr: ErrMissingName},
		{name: "missing decision", values: map[int]string{13: "12345678", 14: "A"}, wantErr: ErrMissingDecision},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := MapRow(bacRow(tt.values), 1, LayoutBAC, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			var rowErr *RowError
			if !errors.As(err, &rowErr) {
				t.Errorf("err = %T, want *RowError", err)
			}
			if rec != nil {
				t.Errorf("rec = %+v, want nil", rec)
			}
		})
	}
}

func TestMapRow_UnresolvedReferencesStayEmpty(t *testing.T) {
	row := bacRow(map[int]string{1: "Atlantis", 3: "Unknown school", 10: "ZZ", 13: "12345678", 14: "A", 18: "Refusé"})
	rec, err := MapRow(row, 1, LayoutBAC, testRefs())
	if err != nil {
		t.Fatalf("MapRow() error = %v", err)
	}
	if rec.RegionID != nil || rec.EstablishmentID != nil || rec.SeriesID != nil {
		t.Errorf("unexpected ids: %+v", rec)
	}
	if rec.Outcome != DecisionFailed {
		t.Errorf("Outcome = %q, want failed", rec.Outcome)
	}
	if rec.Score != nil {
		t.Errorf("Score = %v, want nil", *rec.Score)
	}
}

func TestReferenceCaches_EstablishmentByNameOrCode(t *testing.T) {
	refs := testRefs()
	for _, key := range []string{"LYC-01", "lyc-01", "Lycee de Rosso", "ثانوية روصو"} {
		if id, ok := refs.Establishment(key); !ok || id != 1 {
			t.Errorf("Establishment(%q) = %d, %v", key, id, ok)
		}
	}
	if _, ok := refs.Establishment("nope"); ok {
		t.Error("unknown establishment resolved")
	}
	if e, r, s := refs.Size(); e != 5 || r != 2 || s != 2 {
		t.Errorf("Size() = %d, %d, %d", e, r, s)
	}
}

func TestClassifyDecision(t *testing.T) {
	tests := map[string]Decision{
		"Admis":        DecisionAdmitted,
		" ADMISE ":     DecisionAdmitted,
		"ناجح":         DecisionAdmitted,
		"Refusé":       DecisionFailed,
		"Echec":        DecisionFailed,
		"Ajourné":      DecisionPostponed,
		"Sessionnaire": DecisionPostponed,
		"مؤجل":         DecisionPostponed,
		"Absent":       DecisionUnknown,
		"":             DecisionUnknown,
	}
	for label, want := range tests {
		if got := ClassifyDecision(label); got != want {
			t.Errorf("ClassifyDecision(%q) = %q, want %q", label, got, want)
		}
	}
}

func TestNewSessionStats(t *testing.T) {
	st := NewSessionStats(1, 3, 2)
	if st.PassRate != 66.67 {
		t.Errorf("PassRate = %v, want 66.67", st.PassRate)
	}
	if NewSessionStats(1, 0, 0).PassRate != 0 {
		t.Error("empty session must have a zero pass rate")
	}
}
