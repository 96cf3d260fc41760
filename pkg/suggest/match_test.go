package suggest

import (
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func init() {
	log.SetLevel(log.ErrorLevel)
}

var sortedTags = []string{"Archive", "project", "projecta", "reproject", "subprojects", "urgentcare", "work"}

func TestMatchers(t *testing.T) {
	tests := []struct {
		name  string
		fn    func([]string, string, int) []string
		query string
		limit int
		want  []string
	}{
		{"prefix", MatchPrefix, "proj", 0, []string{"project", "projecta"}},
		{"prefix hash", MatchPrefix, "#proj", 0, []string{"project", "projecta"}},
		{"prefix case", MatchPrefix, "PROJ", 0, []string{"project", "projecta"}},
		{"prefix limit", MatchPrefix, "proj", 1, []string{"project"}},
		{"prefix upper tag", MatchPrefix, "arch", 0, []string{"Archive"}},
		{"suffix", MatchSuffix, "project", 0, []string{"project", "reproject"}},
		{"suffix case", MatchSuffix, "#CARE", 0, []string{"urgentcare"}},
		{"substring", MatchSubstring, "roject", 0, []string{"project", "projecta", "reproject", "subprojects"}},
		{"substring limit", MatchSubstring, "roject", 2, []string{"project", "projecta"}},
		{"no match", MatchSubstring, "zzz", 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fn(sortedTags, tt.query, tt.limit)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEmptyQueryMatchesNothing(t *testing.T) {
	for _, q := range []string{"", "#"} {
		if got := MatchPrefix(sortedTags, q, 0); len(got) != 0 {
			t.Errorf("MatchPrefix(%q) = %v", q, got)
		}
		if got := MatchSuffix(sortedTags, q, 0); len(got) != 0 {
			t.Errorf("MatchSuffix(%q) = %v", q, got)
		}
		if got := MatchSubstring(sortedTags, q, 0); len(got) != 0 {
			t.Errorf("MatchSubstring(%q) = %v", q, got)
		}
	}
}

func TestMatchPrefixProperties(t *testing.T) {
	queries := []string{"p", "pro", "w", "a", "#u", "x"}
	for _, q := range queries {
		for _, limit := range []int{1, 2, 5} {
			got := MatchPrefix(sortedTags, q, limit)
			if len(got) > limit {
				t.Errorf("len(%v) > %d", got, limit)
			}
			if !sort.StringsAreSorted(got) {
				t.Errorf("MatchPrefix(%q) not sorted: %v", q, got)
			}
			lq := strings.ToLower(strings.TrimPrefix(q, "#"))
			for _, tag := range got {
				if !strings.HasPrefix(strings.ToLower(tag), lq) {
					t.Errorf("%q does not start with %q", tag, lq)
				}
			}
		}
	}
}

func TestMergeOrdered(t *testing.T) {
	got := MergeOrdered([]string{"a", "b"}, []string{"b", "c"}, []string{"c", "d", "a"}, 0)
	want := []string{"a", "b", "c", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MergeOrdered = %v, want %v", got, want)
	}

	got = MergeOrdered([]string{"a", "b"}, []string{"b", "c"}, []string{"c", "d", "a"}, 3)
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("capped MergeOrdered = %v", got)
	}

	again := MergeOrdered([]string{"a", "b"}, []string{"b", "c"}, []string{"c", "d", "a"}, 0)
	if !reflect.DeepEqual(again, want) {
		t.Errorf("MergeOrdered is not reproducible: %v", again)
	}
}

func TestMergeTiersRanksAndTiers(t *testing.T) {
	got := mergeTiers(0,
		tierResult{TierPrefix, []string{"x"}},
		tierResult{TierSubstring, []string{"x", "y"}},
	)
	want := []Suggestion{
		{Tag: "x", Rank: 1, Tier: TierPrefix},
		{Tag: "y", Rank: 2, Tier: TierSubstring},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("mergeTiers = %+v, want %+v", got, want)
	}
}
