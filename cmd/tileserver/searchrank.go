// SPDX-License-Identifier: MIT

package main

import (
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Query rewriting and result ranking for the search endpoint. FTS5
// finds candidate rows; scoring runs here because database/sql gives no
// way to register FTS5 auxiliary functions.

var lowercaser = cases.Lower(language.Und)

// Trailing filler words stripped before rewriting.
var fillerSuffixes = []string{" me", " near", " nearby", " store", " shop"}

// categoryMap expands a whole-query category word into alternates that
// are ORed with the original. Tokens joined by " + " must co-occur. An
// entry whose first element is empty replaces the query with the second
// element verbatim.
var categoryMap = map[string][]string{
	"restaurant": {"fast + food", "food + court"},
	"food":       {"restaurant", "fast + food", "food + court"},
	"coffee":     {"cafe"},
	"grocery":    {"supermarket", "greengrocer", "convenience"},
	"groceries":  {"supermarket", "greengrocer", "convenience"},
	"hotel":      {"motel", "hostel", "guest + house"},
	"gas":        {"fuel"},
	"petrol":     {"fuel"},
	"bike":       {"", "(bike OR bicycle) NOT (rental OR parking)"},
	"bicycle":    {"", "(bike OR bicycle) NOT (rental OR parking)"},
}

// replacementMap rewrites individual tokens to OR groups covering
// common abbreviations and US/UK spelling differences.
var replacementMap = map[string]string{
	"mt":      `(mt OR mount)`,
	"mtn":     `(mtn OR mountain)`,
	"st":      `(st OR saint OR street)`,
	"ft":      `(ft OR fort)`,
	"n":       `(n OR north)`,
	"s":       `(s OR south)`,
	"e":       `(e OR east)`,
	"w":       `(w OR west)`,
	"center":  `(center OR centre)`,
	"centre":  `(center OR centre)`,
	"harbor":  `(harbor OR harbour)`,
	"harbour": `(harbor OR harbour)`,
	"theater": `(theater OR theatre)`,
	"theatre": `(theater OR theatre)`,
}

// rewriteQuery turns a user query into an FTS5 MATCH expression.
func rewriteQuery(q string, autocomplete bool) string {
	q = strings.TrimSpace(lowercaser.String(q))
	if q == "" {
		return ""
	}
	// Categorical queries search the tags column as-is.
	if strings.HasPrefix(q, "!") {
		return `tags: "` + strings.TrimSpace(q[1:]) + `"`
	}
	for _, suffix := range fillerSuffixes {
		q = strings.TrimSuffix(q, suffix)
	}
	if alts, ok := categoryMap[q]; ok {
		if alts[0] == "" {
			return alts[1]
		}
		parts := []string{"(" + q + ")"}
		for _, alt := range alts {
			parts = append(parts, "("+strings.ReplaceAll(alt, " + ", " AND ")+")")
		}
		return strings.Join(parts, " OR ")
	}
	tokens := strings.Fields(q)
	if len(tokens) == 0 {
		return ""
	}
	if autocomplete && len(tokens) == 1 {
		return `{name name_en}: "` + tokens[0] + `"*`
	}
	parts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if repl, ok := replacementMap[tok]; ok {
			parts = append(parts, repl)
		} else {
			parts = append(parts, `"`+tok+`"`)
		}
	}
	if last := parts[len(parts)-1]; strings.HasSuffix(last, `"`) {
		parts[len(parts)-1] = last + "*"
	}
	return strings.Join(parts, " AND ")
}

// queryPhrases extracts the searchable phrases from a MATCH expression,
// for scoring. Operators and column filters are skipped; a trailing *
// marks a prefix phrase.
type phrase struct {
	text   string
	prefix bool
}

func queryPhrases(match string) []phrase {
	var phrases []phrase
	seen := map[string]bool{}
	i := 0
	for i < len(match) {
		c := match[i]
		switch {
		case c == '"':
			end := strings.IndexByte(match[i+1:], '"')
			if end < 0 {
				return phrases
			}
			p := phrase{text: match[i+1 : i+1+end]}
			i += end + 2
			if i < len(match) && match[i] == '*' {
				p.prefix = true
				i++
			}
			if p.text != "" && !seen[p.text] {
				seen[p.text] = true
				phrases = append(phrases, p)
			}
		case c == '{':
			end := strings.IndexByte(match[i:], '}')
			if end < 0 {
				return phrases
			}
			i += end + 1
		case isWordByte(c):
			j := i
			for j < len(match) && isWordByte(match[j]) {
				j++
			}
			word := match[i:j]
			i = j
			// A word followed by a colon names a column filter.
			if i < len(match) && match[i] == ':' {
				i++
				continue
			}
			p := phrase{text: word}
			if i < len(match) && match[i] == '*' {
				p.prefix = true
				i++
			}
			if word != "AND" && word != "OR" && word != "NOT" && !seen[word] {
				seen[word] = true
				phrases = append(phrases, p)
			}
		default:
			i++
		}
	}
	return phrases
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '_' || c >= 0x80
}

// Column weights for {name, name_en, admin, tags}.
var searchColumnWeights = [4]float64{1.0, 1.0, 0.4, 0.6}

// scoreRow is the BM25 variant: per phrase, IDF weighted by the best
// single occurrence. The first phrase doubles its weight when it opens
// a name column, which favors prefix matches during autocomplete.
func scoreRow(phrases []phrase, idf []float64, columns [4]string) float64 {
	score := 0.0
	for pi, p := range phrases {
		freq := 0.0
		for ci, col := range columns {
			if col == "" {
				continue
			}
			tokens := strings.Fields(lowercaser.String(col))
			for pos, tok := range tokens {
				if !phraseMatches(p, tok) {
					continue
				}
				w := searchColumnWeights[ci]
				if pi == 0 && ci <= 1 && pos == 0 {
					w *= 2
				}
				w -= 0.1 * math.Log10(float64(len(tokens)+1))
				if w > freq {
					freq = w
				}
			}
		}
		score -= idf[pi] * freq
	}
	return score
}

func phraseMatches(p phrase, token string) bool {
	token = strings.Trim(token, `",().!?`)
	if p.prefix {
		return strings.HasPrefix(token, p.text)
	}
	return token == p.text
}

func idfScore(total, matching int64) float64 {
	idf := math.Log((float64(total) - float64(matching) + 0.5) / (float64(matching) + 0.5))
	if idf < 1e-6 {
		return 1e-6
	}
	return idf
}

// tagPriority ranks the leading tag of a row's tag string. Positive
// values boost, negative values bury.
var tagPriority = map[string]int{
	"country":         90,
	"state":           85,
	"province":        85,
	"city":            80,
	"town":            75,
	"island":          72,
	"village":         70,
	"suburb":          66,
	"heritage":        64,
	"wikipedia":       63,
	"national_park":   62,
	"park":            61,
	"peak":            61,
	"hamlet":          60,
	"attraction":      58,
	"aerodrome":       56,
	"museum":          55,
	"station":         52,
	"university":      50,
	"hospital":        46,
	"stadium":         45,
	"supermarket":     40,
	"hotel":           38,
	"restaurant":      35,
	"cafe":            30,
	"bar":             26,
	"fast_food":       22,
	"fuel":            20,
	"parking":         -20,
	"bench":           -60,
	"waste_basket":    -90,
	"vending":         -100,
	"vending_machine": -100,
}

// rankRow applies tag and distance scoring on top of the text score.
// More negative is better. Rows with no tags lose half their score;
// distance pulls nearby rows up on a log scale.
func rankRow(score float64, tags string, distKm float64, haveDist bool, skipTags bool) float64 {
	if !skipTags {
		if tags == "" {
			score *= 0.5
		} else {
			first := tags
			if i := strings.IndexByte(tags, ' '); i >= 0 {
				first = tags[:i]
			}
			score -= float64(tagPriority[first]) / 100.0
		}
	}
	if haveDist {
		score += 0.01 * math.Log2(0.001+distKm/20000)
	}
	return score
}
