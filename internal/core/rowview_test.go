package core

import "testing"

func testRow(header []string, values ...string) Row {
	return NewRow(NewHeader(header), values)
}

func TestExtract(t *testing.T) {
	row := testRow(
		[]string{"NNI", "Nom", "moyenne", "Decision", "Vide"},
		"12345678", "Sidi Ahmed", "12,5", "Admis", "nan",
	)

	tests := []struct {
		name       string
		rule       FieldRule
		wantValue  string
		wantMethod MatchMethod
		wantOK     bool
	}{
		{name: "column name", rule: byColumn("NNI"), wantValue: "12345678", wantMethod: MethodColumnName, wantOK: true},
		{name: "column name ignores case", rule: byColumn("MOYENNE"), wantValue: "12,5", wantMethod: MethodColumnName, wantOK: true},
		{name: "position", rule: byPosition(1), wantValue: "Sidi Ahmed", wantMethod: MethodPosition, wantOK: true},
		{name: "position out of range", rule: byPosition(17, "Decision"), wantValue: "Admis", wantMethod: MethodAlternative, wantOK: true},
		{name: "missing token falls through", rule: FieldRule{Column: "Vide", Position: 0}, wantValue: "12345678", wantMethod: MethodPosition, wantOK: true},
		{name: "alternatives in order", rule: byAlternatives("Absent", "Nom", "NNI"), wantValue: "Sidi Ahmed", wantMethod: MethodAlternative, wantOK: true},
		{name: "column beats position", rule: FieldRule{Column: "Decision", Position: 0}, wantValue: "Admis", wantMethod: MethodColumnName, wantOK: true},
		{name: "nothing matches", rule: byColumn("Absent", "AlsoAbsent"), wantOK: false},
		{name: "only missing values", rule: byColumn("Vide"), wantOK: false},
		{name: "auto calculated never extracts", rule: autoCalculated(), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, method, ok := Extract(row, tt.rule)
			if ok != tt.wantOK {
				t.Fatalf("Extract ok = %v, want %v", ok, tt.wantOK)
			}
			if v != tt.wantValue || method != tt.wantMethod {
				t.Errorf("Extract = %q via %q, want %q via %q", v, method, tt.wantValue, tt.wantMethod)
			}
		})
	}
}

func TestRow_ShortRowsReadAsMissing(t *testing.T) {
	row := testRow([]string{"A", "B", "C"}, "1")
	if _, ok := row.ByName("C"); ok {
		t.Error("ByName past the end of the row should be missing")
	}
	if _, ok := row.ByPosition(-1); ok {
		t.Error("negative position should be missing")
	}
	if got := row.Map(); got["A"] != "1" || got["C"] != "" {
		t.Errorf("Map() = %v", got)
	}
}

func TestHeader_FirstDuplicateWins(t *testing.T) {
	row := testRow([]string{"Nom", " nom ", "Nom"}, "first", "second", "third")
	if v, _ := row.ByName("Nom"); v != "first" {
		t.Errorf("ByName(Nom) = %q, want first", v)
	}
	if v, _ := row.ByName("NOM"); v != "first" {
		t.Errorf("ByName(NOM) = %q, want first", v)
	}
	if n := row.Header().Len(); n != 3 {
		t.Errorf("Len() = %d, want 3", n)
	}
}

func TestRow_CleansValues(t *testing.T) {
	row := testRow([]string{"NNI"}, `="00123456"`)
	if v, ok := row.ByName("NNI"); !ok || v != "00123456" {
		t.Errorf("ByName(NNI) = %q, %v", v, ok)
	}
}
