package timecodec

import "testing"

func TestRoundTrip(t *testing.T) {
	for s := 0; s <= 7199; s++ {
		if got := Parse(Format(s)); got != s {
			t.Fatalf("Parse(Format(%d)) = %d", s, got)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"plain", "30:00", 1800},
		{"mixed", "45:30", 2730},
		{"long minutes", "125:05", 7505},
		{"missing seconds", "12", 720},
		{"empty", "", 0},
		{"non numeric minutes", "ab:10", 10},
		{"non numeric seconds", "02:xx", 120},
		{"negative segment", "-5:10", 10},
		{"padded spaces", " 01 : 02 ", 62},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Parse(tc.in); got != tc.want {
				t.Errorf("Parse(%q) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "00:00"},
		{59, "00:59"},
		{60, "01:00"},
		{4530, "75:30"},
		{7500, "125:00"},
		{-3, "00:00"},
	}
	for _, tc := range tests {
		if got := Format(tc.in); got != tc.want {
			t.Errorf("Format(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSetMinutesClampsIndependently(t *testing.T) {
	tests := []struct {
		name string
		time string
		raw  string
		want string
	}{
		{"in range", "30:15", "45", "45:15"},
		{"above max", "30:15", "500", "120:15"},
		{"garbage", "30:15", "x", "00:15"},
		{"negative", "30:15", "-4", "00:15"},
		{"keeps seconds", "30:59", "1", "01:59"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := SetMinutes(tc.time, tc.raw); got != tc.want {
				t.Errorf("SetMinutes(%q, %q) = %q, want %q", tc.time, tc.raw, got, tc.want)
			}
		})
	}
}

func TestSetSecondsClampsIndependently(t *testing.T) {
	tests := []struct {
		name string
		time string
		raw  string
		want string
	}{
		{"in range", "30:00", "7", "30:07"},
		{"above max", "30:00", "75", "30:59"},
		{"garbage", "30:10", "", "30:00"},
		{"keeps minutes", "120:00", "30", "120:30"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := SetSeconds(tc.time, tc.raw); got != tc.want {
				t.Errorf("SetSeconds(%q, %q) = %q, want %q", tc.time, tc.raw, got, tc.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("5:7"); got != "05:07" {
		t.Errorf("Normalize = %q", got)
	}
	if got := Normalize("999:99"); got != "120:59" {
		t.Errorf("Normalize = %q", got)
	}
}
