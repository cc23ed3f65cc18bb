package search

import "sort"

// DocType names the kind of record a ranked hit points at.
type DocType string

const (
	DocObservation DocType = "observation"
	DocSummary     DocType = "summary"
)

// ScoredID pairs a row ID with a fused score and document type.
type ScoredID struct {
	DocType DocType
	Score   float64
	ID      int64
}

// rrfK is the rank damping constant.
const rrfK = 60.0

// RRF fuses ranked lists with Reciprocal Rank Fusion.
// Each input list must already be ordered best first. A hit present in several
// lists accumulates their contributions. Equal scores keep first-seen order.
func RRF(lists ...[]ScoredID) []ScoredID {
	type key struct {
		docType DocType
		id      int64
	}
	scores := make(map[key]float64)
	var order []key

	for _, list := range lists {
		for rank, item := range list {
			k := key{docType: item.DocType, id: item.ID}
			if _, exists := scores[k]; !exists {
				order = append(order, k)
			}
			scores[k] += 1.0 / (rrfK + float64(rank) + 1)
		}
	}

	result := make([]ScoredID, 0, len(order))
	for _, k := range order {
		result = append(result, ScoredID{ID: k.id, DocType: k.docType, Score: scores[k]})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Score > result[j].Score
	})
	return result
}
