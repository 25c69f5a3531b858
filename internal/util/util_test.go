package util

import (
	"testing"
	"time"
)

func TestAdminTokenRoundTrip(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"
	token, err := GenerateAdminToken("ops", secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAdminToken: %v", err)
	}
	claims, err := ParseJWT(token, secret)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.Role != RoleAdmin || claims.Subject != "ops" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if _, err := ParseJWT(token, "another-secret-another-secret-xx"); err == nil {
		t.Fatal("expected signature error with wrong secret")
	}
}

func TestExpiredToken(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"
	token, err := GenerateAdminToken("ops", secret, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseJWT(token, secret); err == nil {
		t.Fatal("expected expiry error")
	}
}

func TestParseOptionalInt(t *testing.T) {
	cases := map[string]*int{
		"":    nil,
		" 3 ": Ptr(3),
		"x":   nil,
		"-1":  Ptr(-1),
	}
	for in, want := range cases {
		got := ParseOptionalInt(in)
		if (got == nil) != (want == nil) || (got != nil && *got != *want) {
			t.Errorf("ParseOptionalInt(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestImportFileFilter(t *testing.T) {
	if !IsImportFile("Bank.CSV") || !IsImportFile("pack.zip") || IsImportFile("notes.txt") {
		t.Fatal("unexpected import file filter result")
	}
	if !IsImageFile("a/b/Graph.PNG") || IsImageFile("graph.svgz") {
		t.Fatal("unexpected image filter result")
	}
}

func TestDetectContentType(t *testing.T) {
	if ct := DetectContentType("x.png", nil); ct != "image/png" {
		t.Fatalf("png content type = %q", ct)
	}
	if ct := DetectContentType("noext", []byte("%PDF-1.4")); ct != "application/pdf" {
		t.Fatalf("sniffed content type = %q", ct)
	}
}
