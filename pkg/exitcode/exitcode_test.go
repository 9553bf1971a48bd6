/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package exitcode

import (
	"testing"
)

func TestExitCodeConstants(t *testing.T) {
	tests := []struct {
		name string
		got  int
		want int
	}{
		{"Success", Success, 0},
		{"GeneralError", GeneralError, 1},
		{"ConfigError", ConfigError, 2},
		{"ManifestError", ManifestError, 3},
		{"NetworkError", NetworkError, 4},
		{"Interrupted", Interrupted, 130},
		{"Different", Different, 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, expected %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{Success, "Success"},
		{GeneralError, "General error"},
		{ConfigError, "Configuration error"},
		{ManifestError, "Manifest error"},
		{NetworkError, "Network error"},
		{Interrupted, "Interrupted"},
	}
	for _, tt := range tests {
		if got := String(tt.code); got != tt.want {
			t.Errorf("String(%d) = %v, expected %v", tt.code, got, tt.want)
		}
	}
}

func TestStringUnknownCodes(t *testing.T) {
	for _, code := range []int{-1, 5, 100, 9999} {
		if result := String(code); result != "Unknown error" {
			t.Errorf("String(%d) = %v, expected 'Unknown error'", code, result)
		}
	}
}

func TestExitCodeUniqueness(t *testing.T) {
	codes := []int{Success, GeneralError, ConfigError, ManifestError, NetworkError, Interrupted}

	seen := make(map[int]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("Exit code %d is not unique", code)
		}
		seen[code] = true
	}
}
