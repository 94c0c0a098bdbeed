package core

// regions.go resolves wilaya names written in Arabic or Latin script to the
// region codes used by the reference tables.

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// arabicRegionCodes maps Arabic wilaya spellings to region codes.
var arabicRegionCodes = map[string]string{
	"الحوض الشرقي":       "01",
	"الحوض الغربي":       "02",
	"لعصابه":             "03",
	"لعصابة":             "03",
	"كوركول":             "04",
	"لبراكنة":            "05",
	"لبراكنه":            "05",
	"اترارزه":            "06",
	"اترارزة":            "06",
	"آدرار":              "07",
	"ادرار":              "07",
	"داخلت انواذيبو":     "08",
	"داخلة انواذيبو":     "08",
	"تكانت":              "09",
	"كيدي ماغه":          "10",
	"كيدي ماغة":          "10",
	"تيرس ازمور":         "11",
	"تيرس زمور":          "11",
	"اينشيري":            "12",
	"انشيري":             "12",
	"انواكشوط الشمالية":  "13",
	"انواكشوط الغربية":   "14",
	"انواكشوط الجنوبية":  "15",
}

// latinRegionCodes maps folded Latin wilaya spellings to region codes.
var latinRegionCodes = map[string]string{
	"hod charghy":        "01",
	"hodh ech chargui":   "01",
	"hod gharby":         "02",
	"hodh el gharbi":     "02",
	"assaba":             "03",
	"gorgol":             "04",
	"brakna":             "05",
	"trarza":             "06",
	"adrar":              "07",
	"dakhlet nouadhibou": "08",
	"nouadhibou":         "08",
	"tagant":             "09",
	"guidimaka":          "10",
	"guidimakha":         "10",
	"tiris zemour":       "11",
	"tiris zemmour":      "11",
	"inchiri":            "12",
	"nouakchott nord":    "13",
	"nouakchott ouest":   "14",
	"nouakchott sud":     "15",
}

func init() {
	arabic := make(map[string]string, len(arabicRegionCodes))
	for name, code := range arabicRegionCodes {
		arabic[foldName(name)] = code
	}
	arabicRegionCodes = arabic
}

// RegionCode returns the region code for an Arabic or Latin wilaya name.
func RegionCode(name string) (string, bool) {
	key := foldName(name)
	if key == "" {
		return "", false
	}
	if code, ok := arabicRegionCodes[key]; ok {
		return code, true
	}
	code, ok := latinRegionCodes[key]
	return code, ok
}

// ResolveRegion returns the region id for a row, preferring the Arabic name
// over the Latin one. codeToID comes from the region reference table; a name
// whose code is not loaded there resolves to nothing.
func ResolveRegion(arabic, latin string, codeToID map[string]int64) (int64, bool) {
	for _, name := range []string{arabic, latin} {
		if IsMissing(name) {
			continue
		}
		code, ok := RegionCode(name)
		if !ok {
			continue
		}
		if id, ok := codeToID[code]; ok {
			return id, true
		}
	}
	return 0, false
}

// foldName normalizes a name for lookup: NFKC, Latin diacritics and Arabic
// tatweel removed, lower case, hyphens treated as spaces, whitespace collapsed.
func foldName(s string) string {
	s = foldLatin(norm.NFKC.String(s))
	s = strings.Map(func(r rune) rune {
		switch {
		case r == 'ـ':
			return -1
		case r == '-' || r == '_':
			return ' '
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// foldLatin strips combining marks, turning "Décision" into "Decision".
func foldLatin(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
