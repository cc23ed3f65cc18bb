// Package similarity compares observations by the terms they share.
package similarity

import (
	"path/filepath"
	"strings"

	"github.com/GoSecreto/UniMem/pkg/models"
)

var stopWords = map[string]bool{
	"the": true, "and": true, "are": true, "was": true, "were": true,
	"been": true, "being": true, "have": true, "has": true, "had": true,
	"does": true, "did": true, "will": true, "would": true, "could": true,
	"should": true, "may": true, "might": true, "must": true, "shall": true,
	"this": true, "that": true, "these": true, "those": true, "but": true,
	"then": true, "for": true, "from": true, "with": true, "about": true,
	"into": true, "its": true, "which": true, "who": true, "what": true,
	"when": true, "where": true, "how": true, "why": true,
}

// Terms extracts the lowercased words of at least three characters from the
// observation's title, narrative and facts, plus the base names of its files.
func Terms(obs *models.Observation) map[string]bool {
	terms := make(map[string]bool)
	addTerms(terms, obs.Title.String)
	addTerms(terms, obs.Narrative.String)
	for _, fact := range obs.Facts {
		addTerms(terms, fact)
	}
	for _, files := range [][]string{obs.FilesRead, obs.FilesModified} {
		for _, f := range files {
			terms[strings.ToLower(filepath.Base(f))] = true
		}
	}
	return terms
}

func addTerms(terms map[string]bool, text string) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_')
	})
	for _, w := range words {
		if len(w) >= 3 && !stopWords[w] {
			terms[w] = true
		}
	}
}

// Jaccard returns |a∩b| / |a∪b|. Two empty sets are identical.
func Jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for t := range a {
		if b[t] {
			shared++
		}
	}
	return float64(shared) / float64(len(a)+len(b)-shared)
}

// MostSimilar returns the observation in existing closest to obs when its
// similarity reaches threshold, else nil. Observations without terms never
// match.
func MostSimilar(obs *models.Observation, existing []*models.Observation, threshold float64) *models.Observation {
	terms := Terms(obs)
	if len(terms) == 0 {
		return nil
	}
	var best *models.Observation
	bestScore := threshold
	for _, e := range existing {
		if score := Jaccard(terms, Terms(e)); score >= bestScore {
			best, bestScore = e, score
		}
	}
	return best
}
