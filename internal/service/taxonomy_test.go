package service

import (
	"reflect"
	"testing"
)

func TestResolveCategory(t *testing.T) {
	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"Ethics", CategoryEthics, true},
		{"  Éthique ", CategoryEthics, true},
		{"ETHIQUE", CategoryEthics, true},
		{"FRA", CategoryFinancialReporting, true},
		{"financial   reporting and analysis", CategoryFinancialReporting, true},
		{"Dérivés", CategoryDerivatives, true},
		{"Corp. Fin.", CategoryCorporateFinance, true},
		{"qm", CategoryQuantitativeMethods, true},
		{"  Behavioral Finance ", "Behavioral Finance", true},
		{"   ", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ResolveCategory(tc.raw)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ResolveCategory(%q) = %q, %v; want %q, %v", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestFoldKey(t *testing.T) {
	if got := FoldKey("  Économie  Générale "); got != "economie generale" {
		t.Fatalf("FoldKey = %q", got)
	}
}

func TestCategoryResolverKeepsFirstSpelling(t *testing.T) {
	r := NewCategoryResolver("Behavioral Finance")

	for _, raw := range []string{"behavioral finance", "BEHAVIORAL  FINANCE", "Béhavioral Finance"} {
		got, ok := r.Resolve(raw)
		if !ok || got != "Behavioral Finance" {
			t.Fatalf("Resolve(%q) = %q, %v", raw, got, ok)
		}
	}

	if got, _ := r.Resolve("éco"); got != CategoryEconomics {
		t.Fatalf("alias lost through resolver: %q", got)
	}

	want := []string{CategoryEconomics, "Behavioral Finance"}
	if got := r.Categories(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Categories = %v, want %v", got, want)
	}
}
