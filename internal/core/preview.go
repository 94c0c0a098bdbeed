package core

// preview.go shows how an upload would be read without writing anything.

import (
	"context"
	"io"
	"strconv"
)

// PreviewRows is the number of rows a preview shows.
const PreviewRows = 5

// FieldSource says which column a logical field was read from and how.
type FieldSource struct {
	Source string      `json:"source"`
	Method MatchMethod `json:"method"`
}

// MappingInfo summarizes how a layout's fields resolved against the sample.
type MappingInfo struct {
	MappedFields   map[Field]FieldSource `json:"mapped_fields"`
	MissingFields  []Field               `json:"missing_fields"`
	AutoCalculated []Field               `json:"auto_calculated"`
}

// PreviewResult describes a file as the importer would see it.
type PreviewResult struct {
	FileName          string              `json:"file_name"`
	DetectedFormat    Layout              `json:"detected_format"`
	FormatDescription string              `json:"format_description"`
	TotalRows         int                 `json:"total_rows"`
	Columns           []string            `json:"columns"`
	PreviewData       []map[string]string `json:"preview_data"`
	SampleRecords     []map[Field]string  `json:"sample_records"`
	MappingInfo       MappingInfo         `json:"mapping_info"`
}

// Preview reads an upload with the service's file rules and describes it.
func (s *Service) Preview(ctx context.Context, fileName string, r io.Reader, size int64) (*PreviewResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	table, err := ReadTable(fileName, r, size, s.opts.FileRules)
	if err != nil {
		return nil, err
	}
	return BuildPreview(table), nil
}

// BuildPreview detects the layout of table and extracts its first rows.
//
// A field counts as mapped when it resolved in at least one sample row; the
// source recorded is the first one that matched.
func BuildPreview(table *Table) *PreviewResult {
	layout := DetectLayout(table.Columns())
	spec := layout.Spec()

	res := &PreviewResult{
		FileName:          table.FileName,
		DetectedFormat:    layout,
		FormatDescription: spec.Description,
		TotalRows:         table.Len(),
		Columns:           table.Columns(),
		PreviewData:       []map[string]string{},
		SampleRecords:     []map[Field]string{},
		MappingInfo: MappingInfo{
			MappedFields:   map[Field]FieldSource{},
			MissingFields:  []Field{},
			AutoCalculated: []Field{},
		},
	}

	n := min(table.Len(), PreviewRows)
	for i := 0; i < n; i++ {
		row := table.Row(i)
		res.PreviewData = append(res.PreviewData, row.Map())

		sample := make(map[Field]string, len(spec.Fields))
		for _, f := range spec.Fields {
			rule := spec.Rules[f]
			v, method, ok := Extract(row, rule)
			if !ok {
				continue
			}
			sample[f] = v
			if _, seen := res.MappingInfo.MappedFields[f]; !seen {
				res.MappingInfo.MappedFields[f] = FieldSource{Source: sourceName(row, rule, method), Method: method}
			}
		}
		res.SampleRecords = append(res.SampleRecords, sample)
	}

	for _, f := range spec.Fields {
		if spec.Rules[f].AutoCalculate {
			res.MappingInfo.AutoCalculated = append(res.MappingInfo.AutoCalculated, f)
			continue
		}
		if _, ok := res.MappingInfo.MappedFields[f]; !ok {
			res.MappingInfo.MissingFields = append(res.MappingInfo.MissingFields, f)
		}
	}
	return res
}

// sourceName names the column Extract read for rule.
func sourceName(row Row, rule FieldRule, method MatchMethod) string {
	names := row.Header().Names()
	switch method {
	case MethodColumnName:
		if i, ok := row.Header().Index(rule.Column); ok {
			return names[i]
		}
		return rule.Column
	case MethodPosition:
		if rule.Position < len(names) && names[rule.Position] != "" {
			return names[rule.Position]
		}
		return "column " + strconv.Itoa(rule.Position)
	case MethodAlternative:
		for _, alt := range rule.Alternatives {
			if _, ok := row.ByName(alt); ok {
				if i, ok := row.Header().Index(alt); ok {
					return names[i]
				}
				return alt
			}
		}
	}
	return ""
}
