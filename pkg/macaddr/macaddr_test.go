// Copyright (c) 2025 Chris Kempo
// Licensed under the MIT License

package macaddr

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "colon separated uppercase",
			in:   "AA:BB:CC:DD:EE:FF",
			want: "aabbccddeeff",
		},
		{
			name: "dash separated lowercase",
			in:   "aa-bb-cc-dd-ee-ff",
			want: "aabbccddeeff",
		},
		{
			name: "already normalized",
			in:   "aabbccddeeff",
			want: "aabbccddeeff",
		},
		{
			name: "mixed separators and case",
			in:   "Aa:bB-Cc:Dd-Ee:Ff",
			want: "aabbccddeeff",
		},
		{
			name: "empty string",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"AA:BB:CC:DD:EE:FF", "aa-bb-cc-dd-ee-ff", "AABBCCDDEEFF"}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestNormalizeFormatInvariant(t *testing.T) {
	a := Normalize("AA:BB:CC:DD:EE:FF")
	b := Normalize("aa-bb-cc-dd-ee-ff")
	if a != b {
		t.Errorf("differently formatted MACs normalize differently: %q vs %q", a, b)
	}
	if a != "aabbccddeeff" {
		t.Errorf("normalized form = %q, want %q", a, "aabbccddeeff")
	}
}
