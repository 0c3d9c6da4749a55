package textkit

import "testing"

func TestNormalizeKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Blue Harbor Health Alliance", "blue-harbor-health-alliance"},
		{"  Müller & Söhne GmbH ", "muller-sohne-gmbh"},
		{"ACME, Inc.", "acme-inc"},
		{"---", ""},
		{"", ""},
		{"A  B", "a-b"},
	}

	for _, tc := range cases {
		if got := NormalizeKey(tc.in); got != tc.want {
			t.Fatalf("NormalizeKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Ops@Example.COM "); got != "ops@example.com" {
		t.Fatalf("NormalizeEmail = %q", got)
	}
}
