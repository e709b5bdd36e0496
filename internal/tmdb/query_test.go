package tmdb

import (
	"reflect"
	"testing"
)

func TestSimplifyQuery(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"Friends", []string{"Friends"}},
		{
			"The Office (US)",
			[]string{"The Office (US)", "The Office"},
		},
		{
			"Star Trek: Picard",
			[]string{"Star Trek: Picard", "Star Trek", "Star Trek:"},
		},
		{
			"One Two Three Four Five",
			[]string{
				"One Two Three Four Five",
				"One Two Three Four",
				"One Two Three",
				"One Two",
			},
		},
		{"", nil},
		{"   ", nil},
	}
	for _, c := range cases {
		got := SimplifyQuery(c.in)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("SimplifyQuery(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestSimplifyQueryDash(t *testing.T) {
	got := SimplifyQuery("Avatar - The Last Airbender")
	if len(got) == 0 || got[0] != "Avatar - The Last Airbender" {
		t.Fatalf("got %v", got)
	}
	if got[1] != "Avatar" {
		t.Errorf("second candidate = %q, want before-dash text", got[1])
	}
}

func TestSimplifyQueryCap(t *testing.T) {
	got := SimplifyQuery("a1 b2 c3 d4 e5 f6 g7 h8 i9 j10")
	if len(got) > maxQueryCandidates {
		t.Fatalf("%d candidates, cap is %d: %v", len(got), maxQueryCandidates, got)
	}
}
