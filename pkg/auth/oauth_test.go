package auth

import (
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestLocalRedirect(t *testing.T) {
	cases := map[string]string{
		"urn:ietf:wg:oauth:2.0:oob":           "http://localhost:6789/oauth2callback",
		"http://localhost":                    "http://localhost:6789",
		"http://localhost:1234/callback":      "http://localhost:6789/callback",
		"http://127.0.0.1/cb":                 "http://127.0.0.1:6789/cb",
		"https://example.com/oauth2/callback": "https://example.com/oauth2/callback",
	}
	for in, want := range cases {
		if got := localRedirect(in); got != want {
			t.Errorf("localRedirect(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", TokenFile)
	want := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := saveToken(path, want); err != nil {
		t.Fatalf("saveToken failed: %v", err)
	}
	got, err := tokenFromFile(path)
	if err != nil {
		t.Fatalf("tokenFromFile failed: %v", err)
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken || !got.Expiry.Equal(want.Expiry) {
		t.Errorf("unexpected token %+v", got)
	}

	if _, err := tokenFromFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected an error for a missing token file")
	}
}
