package redis

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/nooikko/nightreign-query/internal/db"
	"github.com/nooikko/nightreign-query/internal/domain/category"
	"github.com/nooikko/nightreign-query/internal/domain/search/filter"
)

func captureSearch(t *testing.T, c *mock.Client, got *[]string, reply mockReply) {
	t.Helper()
	c.EXPECT().Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
		*got = cmd
		return cmd[0] == "FT.SEARCH"
	})).Return(reply())
}

func emptyReply() mockReply {
	return func() rueidis.RedisResult { return mock.Result(mock.RedisArray(mock.RedisInt64(0))) }
}

func TestSearchKNN_ScoresAreSimilarities(t *testing.T) {
	s, c := newMockStore(t)
	var cmd []string
	captureSearch(t, c, &cmd, func() rueidis.RedisResult {
		return mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("chunk:1"),
			mock.RedisArray(
				mock.RedisString(db.FieldVectorScore), mock.RedisString("0.25"),
				mock.RedisString(db.FieldTitle), mock.RedisString("Gladius"),
			),
			mock.RedisString("chunk:2"),
			mock.RedisArray(
				mock.RedisString(db.FieldVectorScore), mock.RedisString("1.5"),
			),
		))
	})

	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName:    "idx",
		Vector:       []float32{0.5, -1},
		K:            2,
		ReturnFields: []string{db.FieldTitle, db.FieldVectorScore},
	})
	if err != nil {
		t.Fatalf("SearchKNN: %v", err)
	}

	if cmd[2] != "*=>[KNN 2 @vector $BLOB]" {
		t.Errorf("query = %q", cmd[2])
	}
	if cmd[3] != "RETURN" || cmd[4] != "2" {
		t.Errorf("RETURN clause missing: %v", cmd)
	}
	if res.Total != 2 || len(res.Entries) != 2 {
		t.Fatalf("result = %+v", res)
	}
	first := res.Entries[0]
	if first.Key != "chunk:1" || math.Abs(first.Score-0.75) > 1e-9 {
		t.Errorf("first = %+v", first)
	}
	if _, ok := first.Fields[db.FieldVectorScore]; ok {
		t.Error("distance field should be consumed")
	}
	if first.Fields[db.FieldTitle] != "Gladius" {
		t.Errorf("fields = %v", first.Fields)
	}
	if res.Entries[1].Score != 0 {
		t.Errorf("distance beyond 1 should floor at 0, got %v", res.Entries[1].Score)
	}
}

func TestSearchKNN_LimitCoversK(t *testing.T) {
	s, c := newMockStore(t)
	var cmd []string
	captureSearch(t, c, &cmd, emptyReply())

	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", Vector: []float32{1}, K: 40})
	if err != nil {
		t.Fatalf("SearchKNN: %v", err)
	}
	want := []string{"LIMIT", "0", "40", "DIALECT", "2"}
	tail := cmd[len(cmd)-len(want):]
	for i := range want {
		if tail[i] != want[i] {
			t.Fatalf("trailing args = %v, want %v", tail, want)
		}
	}
}

func TestSearchKNN_Prefiltered(t *testing.T) {
	s, c := newMockStore(t)
	var cmd []string
	captureSearch(t, c, &cmd, emptyReply())

	f, _ := filter.New(category.Relic, category.Boss)
	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "idx", Vector: []float32{1}, K: 4, Filters: f,
	})
	if err != nil {
		t.Fatalf("SearchKNN: %v", err)
	}
	if want := "(@category:{boss | relic})=>[KNN 4 @vector $BLOB]"; cmd[2] != want {
		t.Errorf("query = %q, want %q", cmd[2], want)
	}
}

func TestSearchKNN_RejectsBadInput(t *testing.T) {
	s := &Store{}
	for name, q := range map[string]*db.KNNQuery{
		"no index":  {Vector: []float32{1}, K: 1},
		"no vector": {IndexName: "idx", K: 1},
		"zero k":    {IndexName: "idx", Vector: []float32{1}},
	} {
		if _, err := s.SearchKNN(context.Background(), q); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestSearchBM25_QueryAndScores(t *testing.T) {
	s, c := newMockStore(t)
	var cmd []string
	captureSearch(t, c, &cmd, func() rueidis.RedisResult {
		return mock.Result(mock.RedisArray(
			mock.RedisInt64(1),
			mock.RedisString("chunk:7"),
			mock.RedisString("3.5"),
			mock.RedisArray(mock.RedisString(db.FieldContent), mock.RedisString("weak to fire")),
		))
	})

	f, _ := filter.New(category.Boss)
	res, err := s.SearchBM25(context.Background(), &db.TextQuery{
		IndexName: "idx", Query: "Gladius weakness", Filters: f, TopK: 20,
	})
	if err != nil {
		t.Fatalf("SearchBM25: %v", err)
	}

	if want := "@category:{boss} @title|__content:(gladius | weakness)"; cmd[2] != want {
		t.Errorf("query = %q, want %q", cmd[2], want)
	}
	want := []string{"WITHSCORES", "LIMIT", "0", "20", "DIALECT", "2"}
	tail := cmd[len(cmd)-len(want):]
	for i := range want {
		if tail[i] != want[i] {
			t.Fatalf("trailing args = %v, want %v", tail, want)
		}
	}
	if len(res.Entries) != 1 || res.Entries[0].Score != 3.5 || res.Entries[0].Fields[db.FieldContent] != "weak to fire" {
		t.Errorf("result = %+v", res)
	}
}

func TestSearchBM25_NoTermsSkipsRoundTrip(t *testing.T) {
	s, _ := newMockStore(t)
	res, err := s.SearchBM25(context.Background(), &db.TextQuery{IndexName: "idx", Query: "? !", TopK: 5})
	if err != nil {
		t.Fatalf("SearchBM25: %v", err)
	}
	if len(res.Entries) != 0 {
		t.Errorf("entries = %v", res.Entries)
	}
}

func TestSearchBM25_RejectsBadInput(t *testing.T) {
	s := &Store{}
	for name, q := range map[string]*db.TextQuery{
		"no index": {Query: "x", TopK: 1},
		"no query": {IndexName: "idx", TopK: 1},
		"zero k":   {IndexName: "idx", Query: "x"},
	} {
		if _, err := s.SearchBM25(context.Background(), q); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestSearchCount(t *testing.T) {
	tests := []struct {
		name  string
		reply mockReply
		want  int
	}{
		{"total", func() rueidis.RedisResult { return mock.Result(mock.RedisArray(mock.RedisInt64(42))) }, 42},
		{"empty reply", func() rueidis.RedisResult { return mock.Result(mock.RedisArray()) }, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, c := newMockStore(t)
			c.EXPECT().Do(gomock.Any(), mock.Match("FT.SEARCH", "idx", "*", "LIMIT", "0", "0")).Return(tt.reply())

			n, err := s.SearchCount(context.Background(), "idx", "*")
			if err != nil || n != tt.want {
				t.Errorf("SearchCount = %d, %v; want %d", n, err, tt.want)
			}
		})
	}
}

func TestSearchCount_Failure(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), matchCmd("FT.SEARCH")).Return(mock.ErrorResult(context.Canceled))

	if _, err := s.SearchCount(context.Background(), "idx", "*"); err == nil {
		t.Fatal("expected error")
	}
}

func TestBuildTextTerms(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Margit the Fell Omen", "margit | the | fell | omen"},
		{"how do I beat gladius?", "how | do | beat | gladius"},
		{"fire fire FIRE", "fire"},
		{"@category:{boss} -(x)", "category | boss"},
		{"!!", ""},
	}
	for _, tt := range tests {
		if got := buildTextTerms(tt.in); got != tt.want {
			t.Errorf("buildTextTerms(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildFilter(t *testing.T) {
	if got := buildFilter(filter.Filters{}); got != "" {
		t.Errorf("empty filter = %q", got)
	}
	if got := escapeTag("a-b c"); got != `a\-b\ c` {
		t.Errorf("escapeTag = %q", got)
	}
}

func TestVectorToBytes(t *testing.T) {
	b := []byte(vectorToBytes([]float32{1, -2.5}))
	if len(b) != 8 {
		t.Fatalf("len = %d", len(b))
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(b[4:])); got != -2.5 {
		t.Errorf("second element = %v", got)
	}
}
