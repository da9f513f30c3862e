package probes

import "testing"

func TestIsDGA(t *testing.T) {
	tests := []struct {
		domain string
		want   bool
	}{
		{"xkf93jdl2nqpwert.com", true},
		{"google.com", false},
		{"www.google.com", false},
		{"amazon.com", false},
	}
	for _, tc := range tests {
		if got := IsDGA(tc.domain); got != tc.want {
			t.Errorf("IsDGA(%q) = %v, want %v", tc.domain, got, tc.want)
		}
	}
}
