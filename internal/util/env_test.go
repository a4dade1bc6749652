package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	cases := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"no", true, false},
		{"OFF", true, false},
		{"", true, true},
		{"", false, false},
		{"maybe", true, true},
		{"maybe", false, false},
		{" true ", false, true},
	}
	for _, tc := range cases {
		t.Setenv("ZAPDESK_TEST_BOOL", tc.value)
		if got := ParseBoolEnv("ZAPDESK_TEST_BOOL", tc.def); got != tc.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tc.value, tc.def, got, tc.want)
		}
	}
}

func TestParseIntEnv(t *testing.T) {
	cases := []struct {
		value string
		def   int
		want  int
	}{
		{"42", 0, 42},
		{"-7", 0, -7},
		{" 300 ", 0, 300},
		{"", 15, 15},
		{"abc", 15, 15},
		{"3.14", 15, 15},
	}
	for _, tc := range cases {
		t.Setenv("ZAPDESK_TEST_INT", tc.value)
		if got := ParseIntEnv("ZAPDESK_TEST_INT", tc.def); got != tc.want {
			t.Errorf("ParseIntEnv(%q, %d) = %d, want %d", tc.value, tc.def, got, tc.want)
		}
	}
}
