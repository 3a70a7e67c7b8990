package i18n

import (
	"net/http/httptest"
	"testing"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   Language
	}{
		{"absent header defaults to french", "", French},
		{"blank header defaults to french", "   ", French},
		{"plain french", "fr", French},
		{"regional french", "fr-CA,fr;q=0.9", French},
		{"french anywhere wins", "en-US,fr;q=0.5", French},
		{"uppercase french", "FR-FR", French},
		{"english", "en-US,en;q=0.9", English},
		{"unsupported language", "de-DE", English},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tc.header != "" {
				r.Header.Set("Accept-Language", tc.header)
			}
			if got := Resolve(r); got != tc.want {
				t.Fatalf("Resolve(%q) = %v, want %v", tc.header, got, tc.want)
			}
		})
	}
}

func TestTranslationLookup(t *testing.T) {
	if got := T(French, "INVALID_CREDENTIALS"); got != "Adresse e-mail ou mot de passe incorrect." {
		t.Fatalf("french lookup = %q", got)
	}
	if got := T(English, "INVALID_CREDENTIALS"); got != "Incorrect email address or password." {
		t.Fatalf("english lookup = %q", got)
	}

	// Unknown keys surface as themselves instead of breaking the envelope.
	if got := T(English, "NO_SUCH_KEY"); got != "NO_SUCH_KEY" {
		t.Fatalf("unknown key = %q", got)
	}
}

func TestCatalogIsComplete(t *testing.T) {
	for key, entry := range catalog {
		if entry.fr == "" || entry.en == "" {
			t.Fatalf("catalog entry %q missing a translation", key)
		}
	}
}
