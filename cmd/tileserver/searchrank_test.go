// SPDX-License-Identifier: MIT

package main

import (
	"math"
	"strings"
	"testing"
)

func TestRewriteQuery(t *testing.T) {
	for _, tc := range []struct {
		in           string
		autocomplete bool
		want         string
	}{
		{"Golden Gate", false, `"golden" AND "gate"*`},
		{"pizza store", false, `"pizza"*`},
		{"coffee near me", false, `(coffee) OR (cafe)`},
		{"bike", false, `(bike OR bicycle) NOT (rental OR parking)`},
		{"Mt Whitney", false, `(mt OR mount) AND "whitney"*`},
		{"gol", true, `{name name_en}: "gol"*`},
		{"!station", false, `tags: "station"`},
		{"  ", false, ``},
	} {
		if got := rewriteQuery(tc.in, tc.autocomplete); got != tc.want {
			t.Errorf("rewriteQuery(%q, %v) = %q, want %q", tc.in, tc.autocomplete, got, tc.want)
		}
	}
}

func TestRewriteQueryCategory(t *testing.T) {
	got := rewriteQuery("restaurant", false)
	for _, want := range []string{"(restaurant)", "(fast AND food)", "(food AND court)"} {
		if !strings.Contains(got, want) {
			t.Errorf("rewriteQuery(restaurant) = %q, missing %q", got, want)
		}
	}
}

func TestQueryPhrases(t *testing.T) {
	phrases := queryPhrases(`"golden" AND "gate"* OR (mt OR mount)`)
	want := []phrase{
		{text: "golden"},
		{text: "gate", prefix: true},
		{text: "mt"},
		{text: "mount"},
	}
	if len(phrases) != len(want) {
		t.Fatalf("got %v, want %v", phrases, want)
	}
	for i := range want {
		if phrases[i] != want[i] {
			t.Errorf("phrase %d = %v, want %v", i, phrases[i], want[i])
		}
	}
}

func TestQueryPhrasesSkipsColumnFilters(t *testing.T) {
	phrases := queryPhrases(`{name name_en}: "gol"*`)
	if len(phrases) != 1 || phrases[0].text != "gol" || !phrases[0].prefix {
		t.Errorf("got %v, want only the prefix phrase gol", phrases)
	}
	phrases = queryPhrases(`tags: "station"`)
	if len(phrases) != 1 || phrases[0].text != "station" {
		t.Errorf("got %v, want only station", phrases)
	}
}

func TestIDFScore(t *testing.T) {
	if rare, common := idfScore(10000, 3), idfScore(10000, 5000); rare <= common {
		t.Errorf("rare term idf %f should exceed common term idf %f", rare, common)
	}
	// Terms matching almost everything are floored, not negative.
	if got := idfScore(100, 99); got != 1e-6 {
		t.Errorf("idf floor = %g, want 1e-6", got)
	}
}

func TestScoreRowPrefixBoost(t *testing.T) {
	phrases := []phrase{{text: "gate"}}
	idf := []float64{2.0}
	leading := scoreRow(phrases, idf, [4]string{"Gate Bridge", "", "", ""})
	trailing := scoreRow(phrases, idf, [4]string{"Golden Gate", "", "", ""})
	if leading >= trailing {
		t.Errorf("leading match %f should score better (more negative) than trailing %f",
			leading, trailing)
	}
}

func TestScoreRowColumnWeights(t *testing.T) {
	phrases := []phrase{{text: "museum"}}
	idf := []float64{1.0}
	// Second position in the name column avoids the prefix boost, which
	// would mask the column weighting.
	inName := scoreRow(phrases, idf, [4]string{"City Museum", "", "", ""})
	inTags := scoreRow(phrases, idf, [4]string{"Someplace Else", "", "", "museum"})
	if inName >= inTags {
		t.Errorf("name match %f should outrank tags match %f", inName, inTags)
	}
}

func TestRankRowTagPriority(t *testing.T) {
	base := -1.0
	city := rankRow(base, "city wikipedia", 0, false, false)
	bench := rankRow(base, "bench", 0, false, false)
	empty := rankRow(base, "", 0, false, false)
	if city >= bench {
		t.Errorf("city rank %f should beat bench rank %f", city, bench)
	}
	if empty != base*0.5 {
		t.Errorf("empty tags rank = %f, want %f", empty, base*0.5)
	}
	if empty <= city {
		t.Errorf("empty tags rank %f should sort after city rank %f", empty, city)
	}
}

func TestRankRowDistance(t *testing.T) {
	near := rankRow(-1.0, "cafe", 1, true, false)
	far := rankRow(-1.0, "cafe", 5000, true, false)
	if near >= far {
		t.Errorf("near rank %f should beat far rank %f", near, far)
	}
	// Distance scoring is logarithmic, so the swing stays moderate.
	if math.Abs(near-far) > 0.2 {
		t.Errorf("distance swing %f too large", math.Abs(near-far))
	}
}

func TestRankRowBoundedSkipsTags(t *testing.T) {
	if got := rankRow(-1.0, "city", 0, false, true); got != -1.0 {
		t.Errorf("bounded search must skip tag scoring, got %f", got)
	}
}
