package phrase

import (
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
	"golang.org/x/text/unicode/norm"
)

// defaultSearchThreshold is the minimum Jaro-Winkler score for a fuzzy hit.
const defaultSearchThreshold = 0.80

// Dictionary is the immutable, flattened rule catalog handed to the matcher.
type Dictionary struct {
	rules      []Rule
	categories []string
	// origin maps a rule index to its category name.
	origin []string
}

// New flattens categories into a [Dictionary] in category order, then rule
// order. Phrases are normalised to NFC. Rules that fail [Rule.Check] are
// skipped with a warning; New never fails.
func New(categories ...Category) *Dictionary {
	d := &Dictionary{}
	for _, c := range categories {
		d.categories = append(d.categories, c.Name)
		for i, r := range c.Rules {
			r = normalizeRule(r)
			if err := r.Check(); err != nil {
				slog.Warn("phrase: dropping malformed rule",
					"category", c.Name,
					"index", i,
					"before", r.Before,
					"err", err,
				)
				continue
			}
			d.rules = append(d.rules, r)
			d.origin = append(d.origin, c.Name)
		}
	}
	return d
}

// AllRules returns every rule in scan order. The returned slice is a copy;
// mutating it does not affect the dictionary.
func (d *Dictionary) AllRules() []Rule {
	out := make([]Rule, len(d.rules))
	for i, r := range d.rules {
		r.After = slices.Clone(r.After)
		out[i] = r
	}
	return out
}

// Len returns the number of usable rules.
func (d *Dictionary) Len() int { return len(d.rules) }

// Categories returns the category names in the order they were supplied.
func (d *Dictionary) Categories() []string { return slices.Clone(d.categories) }

// Match is a fuzzy search hit returned by [Dictionary.Search].
type Match struct {
	Rule     Rule    `json:"rule"`
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

// Search ranks rules whose Before phrase resembles query. A rule whose
// Before contains query (or vice versa) scores 1.0; otherwise the
// Jaro-Winkler similarity is used and hits below 0.80 are discarded.
// Results are ordered by score, then by scan order. limit <= 0 means no
// limit.
func (d *Dictionary) Search(query string, limit int) []Match {
	q := strings.ToLower(strings.TrimSpace(normalize(query)))
	if q == "" {
		return nil
	}

	type hit struct {
		idx   int
		score float64
	}
	var hits []hit
	for i, r := range d.rules {
		b := strings.ToLower(r.Before)
		var score float64
		if strings.Contains(b, q) || strings.Contains(q, b) {
			score = 1
		} else {
			score = matchr.JaroWinkler(q, b, false)
		}
		if score >= defaultSearchThreshold {
			hits = append(hits, hit{idx: i, score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]Match, len(hits))
	for i, h := range hits {
		r := d.rules[h.idx]
		r.After = slices.Clone(r.After)
		out[i] = Match{Rule: r, Category: d.origin[h.idx], Score: h.score}
	}
	return out
}

// normalize returns s in Unicode NFC form so that phrases typed with
// differently ordered Hebrew points compare equal.
func normalize(s string) string {
	return norm.NFC.String(s)
}

func normalizeRule(r Rule) Rule {
	out := Rule{
		Before:  strings.TrimSpace(normalize(r.Before)),
		Comment: r.Comment,
		After:   make([]string, len(r.After)),
	}
	for i, a := range r.After {
		out.After[i] = normalize(a)
	}
	return out
}
