package search

import (
	"sort"

	"github.com/nooikko/nightreign-query/internal/domain/search/result"
)

// Weights control score fusion. A chunk found by both paths scores
// Lexical*normLex + Vector*normVec; a chunk found by one path scores
// SingleList*norm. Each norm divides by the best score of its list.
type Weights struct {
	Lexical    float64
	Vector     float64
	SingleList float64
}

// DefaultWeights returns equal weighting.
func DefaultWeights() Weights {
	return Weights{Lexical: 0.5, Vector: 0.5, SingleList: 0.5}
}

// fuse merges both lists by chunk ID. Raw scores are kept on the result.
func fuse(lexical, vector []result.Hit, w Weights) []result.Scored {
	maxLex := maxScore(lexical)
	maxVec := maxScore(vector)

	byID := make(map[string]*result.Scored, len(lexical)+len(vector))
	order := make([]string, 0, len(lexical)+len(vector))

	for _, h := range lexical {
		if _, ok := byID[h.ID()]; ok {
			continue
		}
		s := result.FromHit(h)
		score := h.Score()
		s.LexicalScore = &score
		byID[h.ID()] = &s
		order = append(order, h.ID())
	}
	for _, h := range vector {
		score := h.Score()
		if s, ok := byID[h.ID()]; ok {
			if s.VectorScore == nil {
				s.VectorScore = &score
			}
			continue
		}
		s := result.FromHit(h)
		s.VectorScore = &score
		byID[h.ID()] = &s
		order = append(order, h.ID())
	}

	out := make([]result.Scored, 0, len(order))
	for _, id := range order {
		s := byID[id]
		switch {
		case s.LexicalScore != nil && s.VectorScore != nil:
			s.FusedScore = w.Lexical*normalize(*s.LexicalScore, maxLex) + w.Vector*normalize(*s.VectorScore, maxVec)
		case s.LexicalScore != nil:
			s.FusedScore = w.SingleList * normalize(*s.LexicalScore, maxLex)
		default:
			s.FusedScore = w.SingleList * normalize(*s.VectorScore, maxVec)
		}
		out = append(out, *s)
	}
	return out
}

// rawLexical ranks lexical hits by their raw BM25 score.
func rawLexical(hits []result.Hit) []result.Scored {
	return raw(hits, func(s *result.Scored, score float64) { s.LexicalScore = &score })
}

// rawVector ranks vector hits by their raw similarity.
func rawVector(hits []result.Hit) []result.Scored {
	return raw(hits, func(s *result.Scored, score float64) { s.VectorScore = &score })
}

func raw(hits []result.Hit, set func(*result.Scored, float64)) []result.Scored {
	seen := make(map[string]struct{}, len(hits))
	out := make([]result.Scored, 0, len(hits))
	for _, h := range hits {
		if _, ok := seen[h.ID()]; ok {
			continue
		}
		seen[h.ID()] = struct{}{}
		s := result.FromHit(h)
		set(&s, h.Score())
		s.FusedScore = h.Score()
		out = append(out, s)
	}
	return out
}

// rank sorts by fused score descending with ID ascending as tie-break,
// then truncates to limit.
func rank(results []result.Scored, limit int) []result.Scored {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].FusedScore != results[j].FusedScore {
			return results[i].FusedScore > results[j].FusedScore
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func maxScore(hits []result.Hit) float64 {
	best := 0.0
	for _, h := range hits {
		if h.Score() > best {
			best = h.Score()
		}
	}
	return best
}

func normalize(score, best float64) float64 {
	if best <= 0 {
		return 0
	}
	return score / best
}
