package ingest

import (
	"strings"
	"unicode/utf8"
)

// Chunker splits Markdown into pieces of at most Size runes. Headings start a
// new piece and stay attached to the text under them; oversized sections are
// split at paragraph boundaries, oversized paragraphs at word boundaries.
type Chunker struct {
	Size int
}

// NewChunker creates a Chunker. Non-positive sizes select 1500 runes.
func NewChunker(size int) *Chunker {
	if size <= 0 {
		size = 1500
	}
	return &Chunker{Size: size}
}

// Split returns the non-empty chunks of md in document order.
func (c *Chunker) Split(md string) []string {
	var out []string
	for _, section := range sections(md) {
		if runeLen(section) <= c.Size {
			out = append(out, section)
			continue
		}
		out = append(out, c.pack(paragraphs(section))...)
	}
	return out
}

// pack joins consecutive paragraphs while they fit.
func (c *Chunker) pack(paras []string) []string {
	var (
		out []string
		buf strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			out = append(out, s)
		}
		buf.Reset()
	}
	for _, p := range paras {
		if runeLen(p) > c.Size {
			flush()
			out = append(out, c.wrap(p)...)
			continue
		}
		if buf.Len() > 0 && runeLen(buf.String())+2+runeLen(p) > c.Size {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(p)
	}
	flush()
	return out
}

// wrap splits a single long paragraph at word boundaries. A word longer than
// Size is cut.
func (c *Chunker) wrap(p string) []string {
	var (
		out []string
		cur []rune
	)
	for _, word := range strings.Fields(p) {
		w := []rune(word)
		for len(w) > c.Size {
			if len(cur) > 0 {
				out = append(out, string(cur))
				cur = cur[:0]
			}
			out = append(out, string(w[:c.Size]))
			w = w[c.Size:]
		}
		if len(cur) > 0 && len(cur)+1+len(w) > c.Size {
			out = append(out, string(cur))
			cur = cur[:0]
		}
		if len(cur) > 0 {
			cur = append(cur, ' ')
		}
		cur = append(cur, w...)
	}
	if len(cur) > 0 {
		out = append(out, string(cur))
	}
	return out
}

// sections splits md before every ATX heading line.
func sections(md string) []string {
	var (
		out []string
		cur []string
	)
	flush := func() {
		if s := strings.TrimSpace(strings.Join(cur, "\n")); s != "" {
			out = append(out, s)
		}
		cur = cur[:0]
	}
	for _, line := range strings.Split(md, "\n") {
		if isHeading(line) {
			flush()
		}
		cur = append(cur, line)
	}
	flush()
	return out
}

func paragraphs(section string) []string {
	var out []string
	for _, p := range strings.Split(section, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isHeading(line string) bool {
	t := strings.TrimLeft(line, " ")
	if !strings.HasPrefix(t, "#") {
		return false
	}
	t = strings.TrimLeft(t, "#")
	return t == "" || t[0] == ' '
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
