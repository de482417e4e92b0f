package core

import "testing"

func TestCleanString(t *testing.T) {
	tests := []struct {
		name  string
		s     string
		lower []bool
		want  string
	}{
		{name: "trims padding", s: "  Jane Doe  ", want: "Jane Doe"},
		{name: "keeps inner whitespace", s: "Jane  Doe", want: "Jane  Doe"},
		{name: "keeps case by default", s: " ABC234 ", want: "ABC234"},
		{name: "lowers on demand", s: " Prof@Test.CD ", lower: []bool{true}, want: "prof@test.cd"},
		{name: "blank to empty", s: " \t\n ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanString(tt.s, tt.lower...); got != tt.want {
				t.Errorf("CleanString() = %q, want %q", got, tt.want)
			}
		})
	}
}
