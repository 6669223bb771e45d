package redis

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/redis/rueidis"

	"github.com/nooikko/nightreign-query/internal/db"
	"github.com/nooikko/nightreign-query/internal/domain/search/filter"
)

// minTermLen drops single-character tokens from lexical queries.
const minTermLen = 2

// SearchKNN finds the K nearest chunks to q.Vector. Scores are cosine
// similarity, 1 - distance, floored at zero.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	switch {
	case q.IndexName == "":
		return nil, errors.New("knn: index name is required")
	case len(q.Vector) == 0:
		return nil, errors.New("knn: vector is required")
	case q.K <= 0:
		return nil, errors.New("knn: k must be positive")
	}

	prefilter := "*"
	if f := buildFilter(q.Filters); f != "" {
		prefilter = "(" + f + ")"
	}
	query := fmt.Sprintf("%s=>[KNN %d @%s $BLOB]", prefilter, q.K, db.VectorAlias)

	args := append([]string{q.IndexName, query}, returnArgs(q.ReturnFields)...)
	// Without LIMIT, FT.SEARCH stops at 10 rows even for larger K.
	args = append(args,
		"PARAMS", "2", "BLOB", vectorToBytes(q.Vector),
		"LIMIT", "0", strconv.Itoa(q.K),
		"DIALECT", "2",
	)

	raw, err := s.ftSearch(ctx, q.IndexName, args)
	if err != nil {
		return nil, err
	}
	res, err := parseReply(raw, false)
	if err != nil {
		return nil, err
	}
	for i := range res.Entries {
		e := &res.Entries[i]
		if d, ok := e.Fields[db.FieldVectorScore]; ok {
			if dist, err := strconv.ParseFloat(d, 64); err == nil {
				e.Score = max(0, 1-dist)
			}
			delete(e.Fields, db.FieldVectorScore)
		}
	}
	return res, nil
}

// SearchBM25 ranks chunks by BM25 over title and content. A query with no
// usable terms returns an empty result without a round trip.
func (s *Store) SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	switch {
	case q.IndexName == "":
		return nil, errors.New("bm25: index name is required")
	case q.Query == "":
		return nil, errors.New("bm25: query is required")
	case q.TopK <= 0:
		return nil, errors.New("bm25: topK must be positive")
	}

	terms := buildTextTerms(q.Query)
	if terms == "" {
		return &db.SearchResult{}, nil
	}
	query := fmt.Sprintf("@%s|%s:(%s)", db.FieldTitle, db.FieldContent, terms)
	if f := buildFilter(q.Filters); f != "" {
		query = f + " " + query
	}

	args := append([]string{q.IndexName, query}, returnArgs(q.ReturnFields)...)
	args = append(args, "WITHSCORES", "LIMIT", "0", strconv.Itoa(q.TopK), "DIALECT", "2")

	raw, err := s.ftSearch(ctx, q.IndexName, args)
	if err != nil {
		return nil, err
	}
	return parseReply(raw, true)
}

// SearchCount returns how many documents match query.
func (s *Store) SearchCount(ctx context.Context, index, query string) (int, error) {
	raw, err := s.ftSearch(ctx, index, []string{index, query, "LIMIT", "0", "0"})
	if err != nil {
		return 0, err
	}
	if len(raw) == 0 {
		return 0, nil
	}
	n, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("count reply: %w", err)
	}
	return int(n), nil
}

func (s *Store) ftSearch(ctx context.Context, index string, args []string) ([]rueidis.RedisMessage, error) {
	raw, err := s.do(ctx, s.b().Arbitrary("FT.SEARCH").Args(args...).Build()).ToArray()
	if err != nil {
		return nil, db.Wrap(db.OpSearch, index, err)
	}
	return raw, nil
}

func returnArgs(fields []string) []string {
	if len(fields) == 0 {
		return nil
	}
	return append([]string{"RETURN", strconv.Itoa(len(fields))}, fields...)
}

// parseReply decodes a RESP2 FT.SEARCH reply:
//
//	total, key, [score,] [field, value, ...], key, ...
//
// Malformed entries are skipped.
func parseReply(raw []rueidis.RedisMessage, withScores bool) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("search reply total: %w", err)
	}

	stride := 2
	if withScores {
		stride = 3
	}
	res := &db.SearchResult{Total: int(total)}
	for i := 1; i+stride <= len(raw); i += stride {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		entry := db.SearchEntry{Key: key}
		if withScores {
			score, err := raw[i+1].AsFloat64()
			if err != nil {
				continue
			}
			entry.Score = score
		}
		pairs, err := raw[i+stride-1].ToArray()
		if err != nil {
			continue
		}
		entry.Fields = fieldMap(pairs)
		res.Entries = append(res.Entries, entry)
	}
	return res, nil
}

func fieldMap(pairs []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		k, kerr := pairs[i].ToString()
		v, verr := pairs[i+1].ToString()
		if kerr == nil && verr == nil {
			m[k] = v
		}
	}
	return m
}

// buildFilter renders a category pre-filter such as "@category:{boss | weapon}".
func buildFilter(f filter.Filters) string {
	if f.IsEmpty() {
		return ""
	}
	values := make([]string, len(f.Types()))
	for i, t := range f.Types() {
		values[i] = escapeTag(string(t))
	}
	return fmt.Sprintf("@%s:{%s}", db.FieldCategory, strings.Join(values, " | "))
}

// escapeTag backslash-escapes everything in a TAG value but letters, digits
// and underscores.
func escapeTag(s string) string {
	var b strings.Builder
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// buildTextTerms turns free text into an OR of its distinct lowercase word
// tokens, so BM25 ranks partial matches. Tokens hold only letters and
// digits, leaving nothing to escape.
func buildTextTerms(s string) string {
	tokens := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(tokens))
	terms := tokens[:0]
	for _, t := range tokens {
		if len([]rune(t)) < minTermLen {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	return strings.Join(terms, " | ")
}

// vectorToBytes packs v as little-endian FLOAT32, the layout of the
// indexed vector field.
func vectorToBytes(v []float32) string {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return rueidis.BinaryString(buf)
}
