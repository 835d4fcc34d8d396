package plates

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFormats(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		canonical string
		valid     bool
	}{
		{"modern", "WPCA1234", "WP CA-1234", true},
		{"modern three letters", "WPCAB1234", "WP CAB-1234", true},
		{"modern already formatted", "WP CA-1234", "WP CA-1234", true},
		{"modern lowercase", "wp ca-1234", "WP CA-1234", true},
		{"provincial numeric", "WP1234", "WP 1234", true},
		{"old format", "123456", "12-3456", true},
		{"old format long prefix", "1234567", "123-4567", true},
		{"special", "CAR1234", "CAR 1234", true},
		{"special gov", "GOV 1234", "GOV 1234", true},
		{"unknown province stays special-shaped", "XXAB1234", "XXAB1234", false},
		{"too short", "XX99", "XX99", false},
		{"empty", "", "", false},
		{"noise only", "--  ..", "", false},
		{"noise around plate", "[WP] CA.1234!", "WP CA-1234", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			canonical, valid := Normalize(tt.raw)
			assert.Equal(t, tt.canonical, canonical)
			assert.Equal(t, tt.valid, valid)
		})
	}
}

func TestNormalizeOCRCorrection(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		canonical string
	}{
		// Digit positions read back as letters.
		{"I for 1 in modern", "WPCAI234", "WP CA-1234"},
		{"O for 0 in provincial", "WPI23O", "WP 1230"},
		{"S for 5 in special", "CARS234", "CAR 5234"},
		// Letter positions read back as digits.
		{"5 for S in province", "5P1234", "SP 1234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			canonical, valid := Normalize(tt.raw)
			assert.True(t, valid, "expected %q to validate", tt.raw)
			assert.Equal(t, tt.canonical, canonical)
		})
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	inputs := []string{"WPCA1234", "XX99", "", "garbage-input", "WP CAB 1234"}
	for _, in := range inputs {
		first, firstValid := Normalize(in)
		for i := 0; i < 50; i++ {
			got, gotValid := Normalize(in)
			assert.Equal(t, first, got)
			assert.Equal(t, firstValid, gotValid)
		}
	}
}

func TestProvinceName(t *testing.T) {
	assert.Equal(t, "Western Province", ProvinceName("WP CA-1234"))
	assert.Equal(t, "Southern Province", ProvinceName("sp 1234"))
	assert.Empty(t, ProvinceName("12-3456"))
	assert.Empty(t, ProvinceName(""))
}
