package categorization

import (
	"sort"

	"github.com/cloudflare/ahocorasick"
)

// Engine matches descriptions against a keyword list in one pass per description
// using the Aho-Corasick algorithm. Keywords are ranked by descending priority,
// ties keeping their input order; the best-ranked keyword found in a description
// wins, which is the same answer as testing keywords one by one in that order.
// An Engine is immutable after construction and safe for concurrent use.
type Engine struct {
	matcher  *ahocorasick.Matcher
	results  []Result // per pattern, from its best-ranked keyword
	ranks    []int    // per pattern
	patterns int
}

// NewEngine normalizes the active keywords once and builds the matcher.
// Keywords that normalize to an empty string never match.
func NewEngine(keywords []Keyword) *Engine {
	ranked := make([]Keyword, 0, len(keywords))
	for _, k := range keywords {
		if k.IsActive {
			ranked = append(ranked, k)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Priority > ranked[j].Priority
	})

	e := &Engine{}
	index := make(map[string]int, len(ranked))
	var dictionary []string

	for rank, k := range ranked {
		pattern := Normalize(k.Text)
		if pattern == "" {
			continue
		}
		if _, seen := index[pattern]; seen {
			// an earlier keyword with the same text already outranks this one
			continue
		}
		index[pattern] = len(dictionary)
		dictionary = append(dictionary, pattern)

		categoryID := k.CategoryID
		e.results = append(e.results, Result{CategoryID: &categoryID, SupplierID: k.SupplierID, KeywordID: &k.ID})
		e.ranks = append(e.ranks, rank)
	}

	e.patterns = len(dictionary)
	if e.patterns > 0 {
		e.matcher = ahocorasick.NewStringMatcher(dictionary)
	}
	return e
}

// Match returns the result of the best-ranked keyword contained in description,
// or an empty Result when none is.
func (e *Engine) Match(description string) Result {
	if e.matcher == nil {
		return Result{}
	}

	hits := e.matcher.MatchThreadSafe([]byte(Normalize(description)))
	best := -1
	for _, idx := range hits {
		if idx < 0 || idx >= e.patterns {
			continue
		}
		if best < 0 || e.ranks[idx] < e.ranks[best] {
			best = idx
		}
	}
	if best < 0 {
		return Result{}
	}
	return e.results[best]
}

// MatchBatch matches every description against the same keyword set.
func (e *Engine) MatchBatch(descriptions []string) []Result {
	results := make([]Result, len(descriptions))
	for i, d := range descriptions {
		results[i] = e.Match(d)
	}
	return results
}

// PatternCount returns the number of distinct normalized keywords loaded.
func (e *Engine) PatternCount() int {
	return e.patterns
}
