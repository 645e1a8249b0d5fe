// Package helpers holds small shared utilities for cleaning
// model-generated content before it is persisted or published.
package helpers

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/contentpilot/contentpilot/models"
)

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy
)

// StrictHTMLPolicy returns a singleton bluemonday policy that strips
// every HTML element and attribute. Model output destined for titles
// and summaries is treated as plain text.
func StrictHTMLPolicy() *bluemonday.Policy {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// SanitizeText removes every HTML tag from s and trims surrounding
// whitespace.
func SanitizeText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return strings.TrimSpace(StrictHTMLPolicy().Sanitize(s))
}

// CleanArticle sanitizes the plain-text fields of a generated article.
// The markdown body is left as-is: WordPress and webhook consumers
// render it themselves, and HTML-escaping markdown would corrupt it.
func CleanArticle(a models.Article) models.Article {
	a.Title = SanitizeText(a.Title)
	a.Summary = SanitizeText(a.Summary)
	return a
}
