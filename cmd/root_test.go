package cmd

import "testing"

func TestSplitAllowSpec(t *testing.T) {
	cases := []struct {
		name     string
		spec     string
		wantScan string
		wantKey  string
		wantErr  bool
	}{
		{"valid", "process-census=/usr/bin/tool", "process-census", "/usr/bin/tool", false},
		{"no_equals", "process-census", "", "", true},
		{"empty_scanner", "=somekey", "", "", true},
		{"empty_key", "process-census=", "", "", true},
		{"empty_string", "", "", "", true},
		{"key_contains_equals", "tcc-monitor=a=b", "tcc-monitor", "a=b", false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			scanner, key, err := splitAllowSpec(c.spec)
			if c.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got nil", c.spec)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if scanner != c.wantScan || key != c.wantKey {
				t.Errorf("got (%q, %q), want (%q, %q)", scanner, key, c.wantScan, c.wantKey)
			}
		})
	}
}
