package core

import "strings"

// MatchMethod records how a field value was found in a row.
type MatchMethod string

const (
	MethodColumnName  MatchMethod = "column_name"
	MethodPosition    MatchMethod = "position"
	MethodAlternative MatchMethod = "alternative"
)

// Header is the column row of a table with name lookups prepared once.
type Header struct {
	names  []string
	exact  map[string]int
	folded map[string]int
}

// NewHeader indexes a header row. When a name repeats, the first column wins.
func NewHeader(names []string) *Header {
	h := &Header{
		names:  make([]string, len(names)),
		exact:  make(map[string]int, len(names)),
		folded: make(map[string]int, len(names)),
	}
	for i, n := range names {
		n = CleanCell(n)
		h.names[i] = n
		if n == "" {
			continue
		}
		if _, dup := h.exact[n]; !dup {
			h.exact[n] = i
		}
		key := strings.ToLower(n)
		if _, dup := h.folded[key]; !dup {
			h.folded[key] = i
		}
	}
	return h
}

// Names returns the cleaned column names in file order.
func (h *Header) Names() []string {
	out := make([]string, len(h.names))
	copy(out, h.names)
	return out
}

// Len returns the number of columns.
func (h *Header) Len() int { return len(h.names) }

// Index returns the position of a column, matching exactly first and then
// ignoring case.
func (h *Header) Index(name string) (int, bool) {
	name = strings.TrimSpace(name)
	if i, ok := h.exact[name]; ok {
		return i, true
	}
	i, ok := h.folded[strings.ToLower(name)]
	return i, ok
}

// Row is a read-only view over one data row.
type Row struct {
	header *Header
	values []string
}

// NewRow binds values to header. Short rows read as missing past their end.
func NewRow(header *Header, values []string) Row {
	return Row{header: header, values: values}
}

// Header returns the row's header.
func (r Row) Header() *Header { return r.header }

// ByName returns the value of the named column.
func (r Row) ByName(name string) (string, bool) {
	if r.header == nil || name == "" {
		return "", false
	}
	i, ok := r.header.Index(name)
	if !ok {
		return "", false
	}
	return r.ByPosition(i)
}

// ByPosition returns the value at a zero-based column index.
func (r Row) ByPosition(pos int) (string, bool) {
	if pos < 0 || pos >= len(r.values) {
		return "", false
	}
	v := CleanCell(r.values[pos])
	if IsMissing(v) {
		return "", false
	}
	return v, true
}

// ByAlternatives returns the first non-missing value among the named columns.
func (r Row) ByAlternatives(names ...string) (string, bool) {
	for _, n := range names {
		if v, ok := r.ByName(n); ok {
			return v, true
		}
	}
	return "", false
}

// Map returns the row as column name to raw value, for previews.
func (r Row) Map() map[string]string {
	out := make(map[string]string, r.header.Len())
	for i, name := range r.header.names {
		if name == "" {
			continue
		}
		if _, dup := out[name]; dup {
			continue
		}
		v := ""
		if i < len(r.values) {
			v = CleanCell(r.values[i])
		}
		out[name] = v
	}
	return out
}

// Extract resolves one field rule against a row: column name, then position,
// then each alternative. ok is false when every source is absent or missing.
func Extract(row Row, rule FieldRule) (string, MatchMethod, bool) {
	if rule.AutoCalculate {
		return "", "", false
	}
	if rule.Column != "" {
		if v, ok := row.ByName(rule.Column); ok {
			return v, MethodColumnName, true
		}
	}
	if rule.HasPosition() {
		if v, ok := row.ByPosition(rule.Position); ok {
			return v, MethodPosition, true
		}
	}
	if v, ok := row.ByAlternatives(rule.Alternatives...); ok {
		return v, MethodAlternative, true
	}
	return "", "", false
}

// ExtractField looks up f in spec and extracts it from row.
func ExtractField(row Row, spec *LayoutSpec, f Field) (string, bool) {
	rule, ok := spec.Rule(f)
	if !ok {
		return "", false
	}
	v, _, ok := Extract(row, rule)
	return v, ok
}
