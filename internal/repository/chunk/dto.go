package chunk

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/nooikko/nightreign-query/internal/db"
	"github.com/nooikko/nightreign-query/internal/domain/category"
	domchunk "github.com/nooikko/nightreign-query/internal/domain/chunk"
)

// buildHashFields converts a chunk into a flat map[string]string for HSET.
func buildHashFields(c *domchunk.Chunk) map[string]string {
	return map[string]string{
		db.FieldURL:      c.URL,
		db.FieldTitle:    c.Title,
		db.FieldCategory: string(c.Category),
		db.FieldOrdinal:  strconv.Itoa(c.Ordinal),
		db.FieldContent:  c.Content,
		db.FieldVector:   vectorToBytes(c.Vector),
	}
}

// parseHashFields converts a flat hash map back into a chunk.
func parseHashFields(id string, m map[string]string) domchunk.Chunk {
	ordinal, _ := strconv.Atoi(m[db.FieldOrdinal])
	return domchunk.Chunk{
		ID:       id,
		URL:      m[db.FieldURL],
		Title:    m[db.FieldTitle],
		Category: category.ParseLenient(m[db.FieldCategory]),
		Ordinal:  ordinal,
		Content:  m[db.FieldContent],
		Vector:   bytesToVector(m[db.FieldVector]),
	}
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
