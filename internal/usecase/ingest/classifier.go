package ingest

import (
	"net/url"
	"sort"
	"strings"

	"github.com/nooikko/nightreign-query/internal/domain/category"
)

// Rule maps an URL path prefix to a category.
type Rule struct {
	Prefix   string
	Category category.Category
}

// Classifier assigns a category by the longest matching path prefix.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a Classifier. Prefixes match whole path segments,
// case-insensitively.
func NewClassifier(rules []Rule) *Classifier {
	cleaned := make([]Rule, 0, len(rules))
	for _, r := range rules {
		p := strings.ToLower(strings.TrimRight(strings.TrimSpace(r.Prefix), "/"))
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		cleaned = append(cleaned, Rule{Prefix: p, Category: r.Category})
	}
	sort.SliceStable(cleaned, func(i, j int) bool { return len(cleaned[i].Prefix) > len(cleaned[j].Prefix) })
	return &Classifier{rules: cleaned}
}

// RulesFromMap turns a category -> prefixes table into rules.
func RulesFromMap(m map[category.Category][]string) []Rule {
	var rules []Rule
	for c, prefixes := range m {
		for _, p := range prefixes {
			rules = append(rules, Rule{Prefix: p, Category: c})
		}
	}
	// stable order for equal-length prefixes
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Prefix != rules[j].Prefix {
			return rules[i].Prefix < rules[j].Prefix
		}
		return rules[i].Category < rules[j].Category
	})
	return rules
}

// Classify returns the category of rawURL, or category.Unknown.
func (c *Classifier) Classify(rawURL string) category.Category {
	u, err := url.Parse(rawURL)
	if err != nil {
		return category.Unknown
	}
	p := strings.ToLower(u.Path)
	for _, r := range c.rules {
		if p == r.Prefix || strings.HasPrefix(p, r.Prefix+"/") {
			return r.Category
		}
	}
	return category.Unknown
}
