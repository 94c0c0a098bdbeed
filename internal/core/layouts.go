package core

// layouts.go describes the spreadsheet layouts the importer understands.
//
// Each Layout is a closed enum value paired with a LayoutSpec in layoutSpecs.
// A new layout needs a constant, a table entry and, if it should be picked
// automatically, diagnostic columns or a wide-file marker.

import "fmt"

// Field is a logical field of a result record as found in source files.
type Field string

const (
	FieldNationalID    Field = "nni"
	FieldFileNumber    Field = "numero_dossier"
	FieldNameLatin     Field = "nom_complet_fr"
	FieldNameArabic    Field = "nom_complet_ar"
	FieldBirthPlace    Field = "lieu_naissance"
	FieldBirthDate     Field = "date_naissance"
	FieldBirthYear     Field = "annee_naissance"
	FieldSex           Field = "sexe"
	FieldScore         Field = "moyenne_generale"
	FieldDecision      Field = "decision"
	FieldSeries        Field = "serie_code"
	FieldRegionLatin   Field = "wilaya_fr"
	FieldRegionArabic  Field = "wilaya_ar"
	FieldEstablishment Field = "etablissement"
	FieldDistrict      Field = "moughataa"
	FieldExamCenter    Field = "centre_examen"
	FieldCandidateType Field = "type_candidat"
)

// NoPosition marks a FieldRule without a positional fallback.
const NoPosition = -1

// FieldRule says where a logical field lives in a source row. Resolution
// tries Column, then Position, then Alternatives in order.
type FieldRule struct {
	Column        string
	Position      int
	Alternatives  []string
	AutoCalculate bool
}

// HasPosition reports whether the rule carries a positional index.
func (r FieldRule) HasPosition() bool { return r.Position >= 0 }

func byColumn(column string, alternatives ...string) FieldRule {
	return FieldRule{Column: column, Position: NoPosition, Alternatives: alternatives}
}

func byPosition(pos int, alternatives ...string) FieldRule {
	return FieldRule{Position: pos, Alternatives: alternatives}
}

func byAlternatives(alternatives ...string) FieldRule {
	return FieldRule{Position: NoPosition, Alternatives: alternatives}
}

func autoCalculated() FieldRule {
	return FieldRule{Position: NoPosition, AutoCalculate: true}
}

// DecisionRule derives a decision from the score when the file has none.
type DecisionRule struct {
	Threshold float64
	PassLabel string
	FailLabel string
}

// Decide returns the label for score.
func (d DecisionRule) Decide(score float64) string {
	if score >= d.Threshold {
		return d.PassLabel
	}
	return d.FailLabel
}

// LayoutSpec is the static description of one layout.
type LayoutSpec struct {
	Key         string
	Description string

	// SampleColumns documents a typical header row.
	SampleColumns []string

	// DiagnosticColumns select this layout when any is present verbatim.
	DiagnosticColumns []string

	// WideMarker selects this layout when a file has more than WideMinColumns
	// columns and the joined headers contain the marker.
	WideMinColumns int
	WideMarker     string

	// MinNationalIDLength rejects identifiers shorter than this.
	MinNationalIDLength int

	// Fields lists the logical fields in report order.
	Fields []Field
	Rules  map[Field]FieldRule

	// Decision is used when Rules[FieldDecision] is auto-calculated.
	Decision DecisionRule
}

// Rule returns the rule for f and whether the layout maps it.
func (s *LayoutSpec) Rule(f Field) (FieldRule, bool) {
	r, ok := s.Rules[f]
	return r, ok
}

// Layout identifies a known source layout.
type Layout int

const (
	// LayoutUnknown asks the mapper to detect the layout from the row itself.
	LayoutUnknown Layout = iota
	LayoutConcours1AS
	LayoutBAC
)

// DefaultLayout is chosen when detection finds no evidence.
const DefaultLayout = LayoutConcours1AS

var layoutSpecs = map[Layout]*LayoutSpec{
	LayoutConcours1AS: {
		Key:         "CONCOURS_1AS",
		Description: "Concours d'entrée en 1AS",
		SampleColumns: []string{
			"Noreg", "Numéro_C1AS", "NODOSS", "NOM_AR", "LIEU NAISS_AR", "TYPE", "Ecole_AR",
			"ANNEE_NAISS", "WILAYA_AR", "MOUGHATAA_AR", "Centre Examen_AR", "TOTAL",
		},
		DiagnosticColumns:   []string{"Numéro_C1AS", "NOM_AR", "WILAYA_AR", "MOUGHATAA_AR"},
		MinNationalIDLength: 1,
		Fields: []Field{
			FieldNationalID, FieldFileNumber, FieldNameArabic, FieldBirthPlace, FieldBirthYear,
			FieldSex, FieldScore, FieldDecision, FieldRegionArabic, FieldDistrict, FieldExamCenter,
			FieldEstablishment, FieldCandidateType,
		},
		Rules: map[Field]FieldRule{
			FieldNationalID:    byColumn("Numéro_C1AS", "NNI", "Numero"),
			FieldFileNumber:    byColumn("NODOSS"),
			FieldNameArabic:    byColumn("NOM_AR", "NOM_AR", "Nom_AR"),
			FieldBirthPlace:    byColumn("LIEU NAISS_AR", "LIEU_NAISSANCE", "Lieu"),
			FieldBirthYear:     byColumn("ANNEE_NAISS", "ANNEE", "Annee"),
			FieldSex:           byAlternatives("Sexe", "SEXE"),
			FieldScore:         byColumn("TOTAL", "TOTAL", "Moyenne", "Note"),
			FieldDecision:      autoCalculated(),
			FieldRegionArabic:  byColumn("WILAYA_AR", "WILAYA"),
			FieldDistrict:      byColumn("MOUGHATAA_AR"),
			FieldExamCenter:    byColumn("Centre Examen_AR", "Centre"),
			FieldEstablishment: byColumn("Ecole_AR", "Ecole"),
			FieldCandidateType: byColumn("TYPE", "Type"),
		},
		Decision: DecisionRule{Threshold: 85, PassLabel: "Admis", FailLabel: "Ajourné"},
	},
	LayoutBAC: {
		Key:         "BAC",
		Description: "Format BAC 2024",
		SampleColumns: []string{
			"Unnamed: 0", "WILAYA_FR", "Centre", "Etablissement", "Mathématiques", "Physique Chimie",
			"Sciences Naturelles", "Français", "Arabe", "Anglais", "SERIE", "Philosophie",
			"Instruction Islamique", "NNI", "NOMPL", "LIEUN", "DATN", "MOYBAC", "Decision",
		},
		WideMinColumns:      15,
		WideMarker:          "Sciences Naturelles",
		MinNationalIDLength: 8,
		Fields: []Field{
			FieldNationalID, FieldNameLatin, FieldNameArabic, FieldBirthPlace, FieldBirthDate,
			FieldSex, FieldScore, FieldDecision, FieldSeries, FieldRegionLatin, FieldEstablishment,
		},
		Rules: map[Field]FieldRule{
			FieldNationalID:    byPosition(13, "NNI"),
			FieldNameLatin:     byPosition(14, "Nom", "NOMPL"),
			FieldNameArabic:    byAlternatives("NOM_AR"),
			FieldBirthPlace:    byPosition(15, "Lieu", "LIEUN"),
			FieldBirthDate:     byPosition(16, "Date", "DATN"),
			FieldSex:           byAlternatives("Sexe", "SEXE", "Sex"),
			FieldScore:         byPosition(17, "Moyenne", "MOYBAC", "MOYG", "Total"),
			FieldDecision:      byPosition(18, "Decision", "Resultat"),
			FieldSeries:        byPosition(10, "SERIE", "Serie"),
			FieldRegionLatin:   byPosition(1, "WILAYA_FR"),
			FieldEstablishment: byPosition(3, "Etablissement", "Lycee"),
		},
	},
}

// detectionOrder is the priority in which layouts claim a file.
var detectionOrder = []Layout{LayoutConcours1AS, LayoutBAC}

// AllLayouts returns every known layout in detection order.
func AllLayouts() []Layout {
	out := make([]Layout, len(detectionOrder))
	copy(out, detectionOrder)
	return out
}

// Spec returns the static description of l. It panics for LayoutUnknown or an
// out-of-range value, which indicates a programming error.
func (l Layout) Spec() *LayoutSpec {
	spec, ok := layoutSpecs[l]
	if !ok {
		panic(fmt.Sprintf("core: no spec for layout %d", int(l)))
	}
	return spec
}

// String returns the layout key, e.g. "BAC".
func (l Layout) String() string {
	if spec, ok := layoutSpecs[l]; ok {
		return spec.Key
	}
	return "UNKNOWN"
}

// ParseLayout looks a layout up by key.
func ParseLayout(key string) (Layout, bool) {
	for l, spec := range layoutSpecs {
		if spec.Key == key {
			return l, true
		}
	}
	return LayoutUnknown, false
}

// MarshalText encodes the layout as its key.
func (l Layout) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}
