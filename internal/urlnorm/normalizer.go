// Package urlnorm canonicalizes wiki URLs so every reference to the same
// page produces an identical string.
package urlnorm

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/nooikko/nightreign-query/internal/domain"
)

// trackingParams are dropped from every query string.
var trackingParams = map[string]struct{}{
	"fbclid":  {},
	"gclid":   {},
	"dclid":   {},
	"msclkid": {},
	"mc_cid":  {},
	"mc_eid":  {},
	"ref":     {},
	"_ga":     {},
	"_gl":     {},
}

// assetExtensions mark links that never point at an article.
var assetExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {}, ".svg": {}, ".ico": {},
	".css": {}, ".js": {}, ".json": {}, ".xml": {}, ".pdf": {}, ".zip": {}, ".mp4": {}, ".webm": {},
}

// Normalizer resolves and canonicalizes URLs against a fixed base origin.
// It is immutable after construction and safe for concurrent use.
type Normalizer struct {
	base     *url.URL
	scope    []string
	excluded []string
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithScope restricts IsInScope to paths under any of the given prefixes.
func WithScope(prefixes ...string) Option {
	return func(n *Normalizer) {
		n.scope = append(n.scope, cleanPrefixes(prefixes)...)
	}
}

// WithExcluded rejects paths under any of the given prefixes in IsInScope.
// Matching is case-insensitive.
func WithExcluded(prefixes ...string) Option {
	return func(n *Normalizer) {
		for _, p := range cleanPrefixes(prefixes) {
			n.excluded = append(n.excluded, strings.ToLower(p))
		}
	}
}

// New creates a Normalizer rooted at baseURL (scheme and host are used).
func New(baseURL string, opts ...Option) (*Normalizer, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w: %w", domain.ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute http(s): %w", baseURL, domain.ErrInvalidURL)
	}
	n := &Normalizer{
		base: &url.URL{Scheme: strings.ToLower(u.Scheme), Host: canonicalHost(u.Scheme, u.Host)},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Base returns the canonical base origin.
func (n *Normalizer) Base() string { return n.base.String() }

// ToAbsolute resolves a relative, root-relative or protocol-relative reference
// against the base origin. Absolute input is returned resolved but otherwise untouched.
func (n *Normalizer) ToAbsolute(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty reference: %w", domain.ErrInvalidURL)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w: %w", ref, domain.ErrInvalidURL, err)
	}
	return n.base.ResolveReference(r).String(), nil
}

// Normalize returns the canonical form of raw. Relative input is resolved
// against the base origin first. Only http and https URLs are accepted.
func (n *Normalizer) Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty url: %w", domain.ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w: %w", raw, domain.ErrInvalidURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		u = n.base.ResolveReference(u)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q: %w", u.Scheme, domain.ErrInvalidURL)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("missing host in %q: %w", raw, domain.ErrInvalidURL)
	}

	// Clean the escaped form so an encoded slash stays part of its segment.
	rawPath := upperEscapes(canonicalPath(u.EscapedPath()))
	decoded, err := url.PathUnescape(rawPath)
	if err != nil {
		return "", fmt.Errorf("path of %q: %w: %w", raw, domain.ErrInvalidURL, err)
	}
	out := url.URL{
		Scheme:   scheme,
		Host:     canonicalHost(scheme, u.Host),
		Path:     decoded,
		RawPath:  rawPath,
		RawQuery: canonicalQuery(u.Query()),
	}
	return out.String(), nil
}

// upperEscapes rewrites percent escapes with uppercase hex, so "%2f" and
// "%2F" normalize alike.
func upperEscapes(p string) string {
	if !strings.Contains(p, "%") {
		return p
	}
	b := []byte(p)
	for i := 0; i+2 < len(b); i++ {
		if b[i] == '%' {
			b[i+1] = upperHex(b[i+1])
			b[i+2] = upperHex(b[i+2])
			i += 2
		}
	}
	return string(b)
}

func upperHex(c byte) byte {
	if c >= 'a' && c <= 'f' {
		return c - ('a' - 'A')
	}
	return c
}

// IsInScope reports whether raw points at an article on the base host under
// the configured scope. Unparseable input is out of scope.
func (n *Normalizer) IsInScope(raw string) bool {
	norm, err := n.Normalize(raw)
	if err != nil {
		return false
	}
	u, err := url.Parse(norm)
	if err != nil || u.Host != n.base.Host {
		return false
	}
	p := u.Path
	if p == "" {
		p = "/"
	}
	if _, ok := assetExtensions[strings.ToLower(path.Ext(p))]; ok {
		return false
	}
	lower := strings.ToLower(p)
	for _, ex := range n.excluded {
		if hasPathPrefix(lower, ex) {
			return false
		}
	}
	if len(n.scope) == 0 {
		return true
	}
	for _, s := range n.scope {
		if hasPathPrefix(p, s) {
			return true
		}
	}
	return false
}

func canonicalHost(scheme, host string) string {
	host = strings.ToLower(host)
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	return strings.TrimSuffix(host, ".")
}

// canonicalPath collapses dot segments and duplicate slashes and drops the
// trailing slash. The root path becomes empty.
func canonicalPath(p string) string {
	if p == "" || p == "/" {
		return ""
	}
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	cleaned := path.Clean("/" + p)
	if cleaned == "/" {
		return ""
	}
	return strings.TrimSuffix(cleaned, "/")
}

func canonicalQuery(q url.Values) string {
	for key := range q {
		lk := strings.ToLower(key)
		if strings.HasPrefix(lk, "utm_") {
			delete(q, key)
			continue
		}
		if _, ok := trackingParams[lk]; ok {
			delete(q, key)
		}
	}
	// Encode sorts by key.
	return q.Encode()
}

// hasPathPrefix matches whole path segments: "/Bosses" matches "/Bosses" and
// "/Bosses/x" but not "/BossesList".
func hasPathPrefix(p, prefix string) bool {
	if prefix == "/" {
		return true
	}
	if !strings.HasPrefix(p, prefix) {
		return false
	}
	rest := p[len(prefix):]
	return rest == "" || rest[0] == '/' || strings.HasSuffix(prefix, "/") || strings.HasSuffix(prefix, ":")
}

func cleanPrefixes(prefixes []string) []string {
	out := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		out = append(out, p)
	}
	return out
}
