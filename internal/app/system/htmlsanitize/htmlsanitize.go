// Package htmlsanitize cleans user-supplied text for display: paper
// abstracts may contain light formatting, and keywords may mark a span for
// italics with *asterisks* (species names and the like).
package htmlsanitize

import (
	"html"
	"html/template"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	abstractPolicy = newAbstractPolicy()
	keywordPolicy  = newKeywordPolicy()

	emphasis = regexp.MustCompile(`\*([^*]+)\*`)
)

func newAbstractPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "strong", "b", "em", "i", "u", "sub", "sup",
		"ul", "ol", "li", "blockquote")
	p.AllowAttrs("href").OnElements("a")
	p.AllowStandardURLs()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

func newKeywordPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("em")
	return p
}

// Sanitize strips everything except the abstract formatting allowlist.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return abstractPolicy.Sanitize(s)
}

// SanitizeToHTML is Sanitize typed for templates.
func SanitizeToHTML(s string) template.HTML {
	return template.HTML(Sanitize(s))
}

// IsPlainText reports whether s contains no tag-like markup.
func IsPlainText(s string) bool {
	return !(strings.Contains(s, "<") && strings.Contains(s, ">"))
}

// PlainTextToHTML escapes s and turns newlines into <br> inside a paragraph.
func PlainTextToHTML(s string) string {
	if s == "" {
		return ""
	}
	escaped := html.EscapeString(strings.ReplaceAll(s, "\r\n", "\n"))
	return "<p>" + strings.ReplaceAll(escaped, "\n", "<br>") + "</p>"
}

// PrepareForDisplay renders an abstract: plain text is escaped and wrapped,
// markup is sanitized.
func PrepareForDisplay(s string) template.HTML {
	if s == "" {
		return ""
	}
	if IsPlainText(s) {
		return template.HTML(PlainTextToHTML(s))
	}
	return SanitizeToHTML(s)
}

// KeywordHTML renders a keyword, turning *span* into <em>span</em>. All
// other markup is escaped or removed.
func KeywordHTML(word string) template.HTML {
	escaped := html.EscapeString(strings.TrimSpace(word))
	withEm := emphasis.ReplaceAllString(escaped, "<em>$1</em>")
	return template.HTML(keywordPolicy.Sanitize(withEm))
}
