package urlnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nooikko/nightreign-query/internal/domain"
)

const base = "https://eldenringnightreign.wiki.fextralife.com"

func newTestNormalizer(t *testing.T, opts ...Option) *Normalizer {
	t.Helper()
	n, err := New(base, opts...)
	require.NoError(t, err)
	return n
}

func TestNew_RejectsBadBase(t *testing.T) {
	for _, raw := range []string{"", "/Bosses", "ftp://example.com", "http://[::1"} {
		_, err := New(raw)
		assert.ErrorIs(t, err, domain.ErrInvalidURL, raw)
	}
}

func TestNormalize(t *testing.T) {
	n := newTestNormalizer(t)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already canonical", base + "/Bosses", base + "/Bosses"},
		{"lowercases scheme and host", "HTTPS://EldenRingNightreign.Wiki.Fextralife.COM/Bosses", base + "/Bosses"},
		{"keeps path case", base + "/Margit+the+Fell+Omen", base + "/Margit+the+Fell+Omen"},
		{"strips trailing slash", base + "/Bosses/", base + "/Bosses"},
		{"root becomes bare origin", base + "/", base},
		{"drops fragment", base + "/Bosses#Nightlords", base + "/Bosses"},
		{"drops default port", "https://eldenringnightreign.wiki.fextralife.com:443/Bosses", base + "/Bosses"},
		{"collapses dot segments", base + "/a/./b/../Bosses", base + "/a/Bosses"},
		{"collapses duplicate slashes", base + "//Bosses//Gladius", base + "/Bosses/Gladius"},
		{"strips utm params", base + "/Bosses?utm_source=x&UTM_Medium=y", base + "/Bosses"},
		{"strips click ids keeps others", base + "/Search?q=wylder&fbclid=abc&gclid=def", base + "/Search?q=wylder"},
		{"sorts query params", base + "/Search?b=2&a=1", base + "/Search?a=1&b=2"},
		{"resolves root relative", "/Weapons", base + "/Weapons"},
		{"resolves protocol relative", "//eldenringnightreign.wiki.fextralife.com/Relics", base + "/Relics"},
		{"trims whitespace", "  " + base + "/Bosses  ", base + "/Bosses"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	n := newTestNormalizer(t)
	variants := []string{
		base + "/Bosses",
		base + "/Bosses/",
		"HTTPS://ELDENRINGNIGHTREIGN.WIKI.FEXTRALIFE.COM/Bosses?utm_campaign=z",
		base + "/x/../Bosses#top",
		"/Bosses",
	}
	first, err := n.Normalize(variants[0])
	require.NoError(t, err)
	for _, v := range variants {
		got, err := n.Normalize(v)
		require.NoError(t, err)
		assert.Equal(t, first, got, v)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	n := newTestNormalizer(t)
	once, err := n.Normalize(base + "/Search?z=1&a=2&utm_x=3#frag")
	require.NoError(t, err)
	twice, err := n.Normalize(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestNormalize_KeepsEncodedSlash(t *testing.T) {
	n := newTestNormalizer(t)

	encoded, err := n.Normalize(base + "/AC%2FDC")
	require.NoError(t, err)
	plain, err := n.Normalize(base + "/AC/DC")
	require.NoError(t, err)

	assert.Equal(t, base+"/AC%2FDC", encoded)
	assert.Equal(t, base+"/AC/DC", plain)
	assert.NotEqual(t, encoded, plain)

	lower, err := n.Normalize(base + "/AC%2fDC/")
	require.NoError(t, err)
	assert.Equal(t, encoded, lower, "escape case and trailing slash are not significant")

	again, err := n.Normalize(encoded)
	require.NoError(t, err)
	assert.Equal(t, encoded, again)
}

func TestNormalize_Invalid(t *testing.T) {
	n := newTestNormalizer(t)
	for _, raw := range []string{"", "   ", "http://[::1", "mailto:someone@example.com", "javascript:void(0)", "ftp://example.com/file"} {
		_, err := n.Normalize(raw)
		assert.ErrorIs(t, err, domain.ErrInvalidURL, raw)
	}
}

func TestToAbsolute(t *testing.T) {
	n := newTestNormalizer(t)

	got, err := n.ToAbsolute("/Nightlords")
	require.NoError(t, err)
	assert.Equal(t, base+"/Nightlords", got)

	got, err = n.ToAbsolute("https://other.example/x")
	require.NoError(t, err)
	assert.Equal(t, "https://other.example/x", got)

	_, err = n.ToAbsolute("")
	assert.ErrorIs(t, err, domain.ErrInvalidURL)
}

func TestIsInScope(t *testing.T) {
	n := newTestNormalizer(t, WithExcluded("/file:", "/Special:"))

	assert.True(t, n.IsInScope(base+"/Bosses"))
	assert.True(t, n.IsInScope("/Wylder"))
	assert.True(t, n.IsInScope(base))
	assert.False(t, n.IsInScope("https://www.reddit.com/r/Nightreign"))
	assert.False(t, n.IsInScope(base+"/file:Nightreign_Logo.png"))
	assert.False(t, n.IsInScope(base+"/FILE:map"))
	assert.False(t, n.IsInScope(base+"/special:RecentChanges"))
	assert.False(t, n.IsInScope(base+"/images/gladius.jpg"))
	assert.False(t, n.IsInScope("http://[::1"))
}

func TestIsInScope_WithScopePrefixes(t *testing.T) {
	n := newTestNormalizer(t, WithScope("Bosses", "/Weapons"))

	assert.True(t, n.IsInScope(base+"/Bosses"))
	assert.True(t, n.IsInScope(base+"/Bosses/Gladius"))
	assert.True(t, n.IsInScope(base+"/Weapons"))
	assert.False(t, n.IsInScope(base+"/BossesList"))
	assert.False(t, n.IsInScope(base+"/Relics"))
}
