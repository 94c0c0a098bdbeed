package core

import (
	"fmt"
	"strings"
	"testing"
)

// BenchmarkParseDate covers the date shapes found in BAC exports.
func BenchmarkParseDate(b *testing.B) {
	cases := []string{"2005-03-14", "14/03/2005", "14-Mar-05", "38425", "3/14/05"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, c := range cases {
			ParseDate(c)
		}
	}
}

// BenchmarkParseDecimal covers comma and dot decimals.
func BenchmarkParseDecimal(b *testing.B) {
	cases := []string{"12,45", "9.5", " 101 ", "N/A"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, c := range cases {
			ParseDecimal(c)
		}
	}
}

// BenchmarkResolveRegion measures the folded Arabic lookup.
func BenchmarkResolveRegion(b *testing.B) {
	ids := map[string]int64{"01": 1, "06": 6, "13": 13}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ResolveRegion("انواكشوط الغربية", "", ids)
		ResolveRegion("", "Trarza", ids)
	}
}

// BenchmarkMapRow_Concours maps one Concours row per iteration.
func BenchmarkMapRow_Concours(b *testing.B) {
	header := NewHeader(LayoutConcours1AS.Spec().SampleColumns)
	row := NewRow(header, []string{
		"1", "204518", "77", "محمد سالم", "روصو", "F", "مدرسة 1", "2012", "اترارزة", "روصو", "مركز 3", "96,5",
	})
	refs := NewReferenceCaches(nil, []RefEntry{{ID: 6, Code: "06"}}, nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := MapRow(row, 1, LayoutConcours1AS, refs); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkReadTable_CSV parses a 10k row semicolon file.
func BenchmarkReadTable_CSV(b *testing.B) {
	var sb strings.Builder
	sb.WriteString("Numéro_C1AS;NOM_AR;WILAYA_AR;TOTAL\n")
	for i := 0; i < 10000; i++ {
		fmt.Fprintf(&sb, "%d;طالب %d;اترارزة;%d,5\n", 100000+i, i, i%120)
	}
	data := sb.String()

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ReadTable("bench.csv", strings.NewReader(data), int64(len(data)), FileRules{}); err != nil {
			b.Fatal(err)
		}
	}
}
