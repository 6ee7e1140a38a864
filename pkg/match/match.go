package match

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/devraulu/rjmeta/pkg/dlsite"
)

// Scored wraps a search candidate with its match score and the numeric
// id used to break score ties. Discarded after selection.
type Scored struct {
	dlsite.Candidate
	Score float64 `json:"score"`
	ID    int64   `json:"id"`
}

// Score rates how well a candidate title matches the query, case
// insensitively. The base is normalized edit-distance similarity in
// [0,1]; an exact title match adds 0.2, otherwise containment of the
// query adds 0.1. The exact bonus always outranks any non-exact score:
// non-exact similarity tops out below 1, so with its 0.1 bonus it stays
// under the 1.2 an exact match earns.
func Score(query, title string) float64 {
	q := strings.ToLower(query)
	t := strings.ToLower(title)

	score := similarity(q, t)
	switch {
	case q == t:
		score += 0.2
	case strings.Contains(t, q):
		score += 0.1
	}
	return score
}

func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

var digitRun = regexp.MustCompile(`[0-9]+`)

// NumericID parses the first run of digits in href. Hrefs without
// digits (or with a run too long for int64) sort last.
func NumericID(href string) int64 {
	m := digitRun.FindString(href)
	if m == "" {
		return math.MaxInt64
	}
	id, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		return math.MaxInt64
	}
	return id
}

// Rank orders candidates by descending score, ties by ascending numeric
// id and then href. The order depends only on the candidate set, never
// on the order the site returned it in.
func Rank(query string, candidates []dlsite.Candidate) []Scored {
	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, Scored{
			Candidate: c,
			Score:     Score(query, c.Title),
			ID:        NumericID(c.Href),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].ID != scored[j].ID {
			return scored[i].ID < scored[j].ID
		}
		return scored[i].Href < scored[j].Href
	})
	return scored
}

// Best returns the top-ranked candidate, for unattended selection.
func Best(query string, candidates []dlsite.Candidate) (Scored, bool) {
	ranked := Rank(query, candidates)
	if len(ranked) == 0 {
		return Scored{}, false
	}
	return ranked[0], true
}
