package core

import "strings"

// DetectLayout classifies a file by its header row.
//
// A layout whose diagnostic column is present wins, in detectionOrder. Failing
// that, a layout whose wide-file rule matches wins. Otherwise DefaultLayout.
func DetectLayout(headers []string) Layout {
	names := make([]string, len(headers))
	present := make(map[string]bool, len(headers))
	for i, h := range headers {
		names[i] = strings.TrimSpace(h)
		present[names[i]] = true
	}

	for _, l := range detectionOrder {
		for _, col := range l.Spec().DiagnosticColumns {
			if present[col] {
				return l
			}
		}
	}

	joined := strings.Join(names, " ")
	for _, l := range detectionOrder {
		spec := l.Spec()
		if spec.WideMarker == "" {
			continue
		}
		if len(headers) > spec.WideMinColumns && strings.Contains(joined, spec.WideMarker) {
			return l
		}
	}

	return DefaultLayout
}
