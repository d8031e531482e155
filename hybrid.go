package pocketrag

import "sort"

// scoreEpsilon guards division by zero when a vector distance is exactly 0:
// a perfect match yields a very large but finite score of 1/scoreEpsilon.
const scoreEpsilon = 1e-6

// Default fusion weights. The vector signal dominates except when it is weak
// (large distance, score near 0), in which case a keyword hit can still
// surface a result. vectorScore is unbounded as distance approaches 0, so
// the two weights are not on comparable scales; tune them per embedding
// distance distribution rather than treating them as probabilities.
const (
	DefaultVectorWeight  = 100
	DefaultKeywordWeight = 0.3
)

// Fuse merges a vector result set and a keyword result set for the same
// query into one ranked list of at most k hits.
//
// For every identifier in the union of both sets:
//
//	vectorScore  = 1/(distance+1e-6) if a vector hit exists, else 0
//	keywordScore = 1 if a keyword hit exists, else 0 (presence only)
//	hybridScore  = vectorWeight*vectorScore + keywordWeight*keywordScore
//
// Content fields are taken from the vector hit when both exist. Results are
// sorted by hybridScore descending with ascending identifier as the
// tie-break, so identical inputs always produce identical output order.
// Hits without a positive identifier are dropped. k < 0 is treated as 0.
func Fuse(vectorHits []VectorHit, keywordHits []KeywordHit, k int, vectorWeight, keywordWeight float64) []SearchHit {
	// Duplicate identifiers within one set overwrite; the source sets are
	// already deduplicated by construction, so last-wins is acceptable.
	vectorByID := make(map[int64]VectorHit, len(vectorHits))
	for _, h := range vectorHits {
		if h.TextUnitID <= 0 {
			continue
		}
		vectorByID[h.TextUnitID] = h
	}
	keywordByID := make(map[int64]KeywordHit, len(keywordHits))
	for _, h := range keywordHits {
		if h.ID <= 0 {
			continue
		}
		keywordByID[h.ID] = h
	}

	ids := make(map[int64]struct{}, len(vectorByID)+len(keywordByID))
	for id := range vectorByID {
		ids[id] = struct{}{}
	}
	for id := range keywordByID {
		ids[id] = struct{}{}
	}

	results := make([]SearchHit, 0, len(ids))
	for id := range ids {
		hit := SearchHit{ID: id}

		v, hasVector := vectorByID[id]
		kw, hasKeyword := keywordByID[id]

		if hasVector {
			hit.VectorScore = 1.0 / (v.Distance + scoreEpsilon)
		}
		if hasKeyword {
			hit.KeywordScore = 1.0
		}

		// The vector hit supplies the pass-through payload when both exist.
		if hasVector {
			hit.Content = v.Content
			hit.DocumentContent = v.DocumentContent
		} else {
			hit.Content = kw.Content
			hit.DocumentID = kw.DocumentID
			hit.Sequence = kw.Sequence
			hit.ContentType = kw.ContentType
		}

		hit.HybridScore = vectorWeight*hit.VectorScore + keywordWeight*hit.KeywordScore
		results = append(results, hit)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].HybridScore != results[j].HybridScore {
			return results[i].HybridScore > results[j].HybridScore
		}
		return results[i].ID < results[j].ID
	})

	if k < 0 {
		k = 0
	}
	if len(results) > k {
		results = results[:k]
	}
	return results
}
