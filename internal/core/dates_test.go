package core

import "testing"

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"iso dash", "2024-03-15", "15-03-2024"},
		{"iso dash single digits", "2024-3-5", "05-03-2024"},
		{"day first dash", "15-03-2024", "15-03-2024"},
		{"day first dash single digits", "5-3-2024", "05-03-2024"},
		{"day first slash", "15/03/2024", "15-03-2024"},
		{"ambiguous slash is day first", "03/04/2024", "03-04-2024"},
		{"iso slash", "2024/03/15", "15-03-2024"},
		{"day first dot", "15.03.2024", "15-03-2024"},
		{"iso dot", "2024.03.15", "15-03-2024"},
		{"embedded in text", "sold on 2024-03-15 (pm)", "15-03-2024"},
		{"iso with time", "2024-03-15T10:30:00Z", "15-03-2024"},
		{"serial number", "45366", "15-03-2024"},
		{"serial number with time fraction", "45366.75", "15-03-2024"},
		{"serial day one", "2", "01-01-1900"},
		{"month name", "Mar 15, 2024", "15-03-2024"},
		{"long month name", "March 15, 2024", "15-03-2024"},
		{"korean", "2024년 3월 15일", "15-03-2024"},
		{"surrounding whitespace", "  2024-03-15  ", "15-03-2024"},
		{"unrecognized kept", "next tuesday", "next tuesday"},
		{"empty kept", "", ""},
		{"impossible date kept", "2024-02-30", "2024-02-30"},
		{"year out of range kept", "15/03/1850", "15/03/1850"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeDate(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeDate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeDate_Idempotent(t *testing.T) {
	inputs := []string{
		"2024-03-15",
		"15-03-2024",
		"5/3/2024",
		"2024/12/31",
		"31.12.2024",
		"2024.1.2",
		"45366",
		"1",
		"2024년 3월 15일",
		"Jan 2, 2006",
		"garbage",
	}

	for _, in := range inputs {
		once := NormalizeDate(in)
		twice := NormalizeDate(once)
		if once != twice {
			t.Errorf("NormalizeDate not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestNormalizeDate_SerialBoundaries(t *testing.T) {
	// 1 and below are not treated as serial dates.
	for _, in := range []string{"0", "1", "-5", "1.0"} {
		if got := NormalizeDate(in); got != in {
			t.Errorf("NormalizeDate(%q) = %q, want input unchanged", in, got)
		}
	}

	if got := NormalizeDate("99999999"); got != "99999999" {
		t.Errorf("NormalizeDate(huge serial) = %q, want unchanged", got)
	}
}

func TestIsCanonicalDate(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"15-03-2024", true},
		{"5-03-2024", false},
		{"2024-03-15", false},
		{"15/03/2024", false},
		{" 15-03-2024", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsCanonicalDate(tt.input); got != tt.want {
			t.Errorf("IsCanonicalDate(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
