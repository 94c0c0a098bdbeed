package core

import (
	"fmt"
	"strings"
	"testing"
)

func TestSearchCacheKey_DistinctNationalIDs(t *testing.T) {
	seen := make(map[string]string, 100000)
	for n := 4000000000; n < 4000100000; n++ {
		nni := fmt.Sprint(n)
		key := searchCacheKey("0", SearchParams{NationalID: nni, Page: 1, Size: 50})
		if prev, ok := seen[key]; ok {
			t.Fatalf("nni %s and %s share key %s", prev, nni, key)
		}
		seen[key] = nni
	}
}

func TestSearchCacheKey_Generation(t *testing.T) {
	p := SearchParams{NationalID: "12345678", Page: 1, Size: 50}
	a, b := searchCacheKey("0", p), searchCacheKey("1", p)
	if a == b {
		t.Fatalf("generations share key %s", a)
	}
	if !strings.HasPrefix(a, "search:0:") {
		t.Errorf("key = %s, want search:0: prefix", a)
	}
	if got := searchCacheKey("0", p); got != a {
		t.Errorf("key not stable: %s != %s", got, a)
	}
}
