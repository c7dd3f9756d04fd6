// Package names renders author names for internal and public display.
package names

import (
	"strings"
	"unicode"

	"github.com/dalemusser/scholarhub/internal/domain/models"
)

// Anonymous is shown when an author has no usable name.
const Anonymous = "Anonymous"

// Full renders "First M. Last, Suffix" for staff-facing pages.
func Full(a models.Author) string {
	first := strings.TrimSpace(a.FirstName)
	last := strings.TrimSpace(a.LastName)
	if first == "" && last == "" {
		return Anonymous
	}

	var b strings.Builder
	b.WriteString(first)
	if mi := strings.TrimSpace(a.MiddleInitial); mi != "" {
		b.WriteString(" " + mi + ".")
	}
	if last != "" {
		b.WriteString(" " + last)
	}
	if suf := strings.TrimSpace(a.Suffix); suf != "" {
		b.WriteString(", " + suf)
	}
	return strings.TrimSpace(b.String())
}

// Public renders the name shown on papers. Authors whose account consented
// are shown in full; everyone else as "Last, F. M. Suffix" with one initial
// per given name.
func Public(a models.Author, consent models.ConsentStatus) string {
	if consent == models.ConsentConsented {
		return Full(a)
	}

	last := strings.TrimSpace(a.LastName)
	initials := Initials(a.FirstName)
	if last == "" && initials == "" {
		return Anonymous
	}

	parts := make([]string, 0, 4)
	if last != "" {
		parts = append(parts, last+",")
	}
	if initials != "" {
		parts = append(parts, initials)
	}
	if mi := strings.TrimSpace(a.MiddleInitial); mi != "" {
		parts = append(parts, strings.ToUpper(mi)+".")
	}
	name := strings.TrimSuffix(strings.Join(parts, " "), ",")
	if suf := strings.TrimSpace(a.Suffix); suf != "" {
		name += " " + suf
	}
	return name
}

// Initials turns "juan carlos" into "J. C.".
func Initials(first string) string {
	fields := strings.Fields(first)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		r := []rune(f)
		out = append(out, string(unicode.ToUpper(r[0]))+".")
	}
	return strings.Join(out, " ")
}

// Resolver returns the consent status governing an author's public name.
// Unclaimed authors have no account and are never shown in full.
type Resolver func(a models.Author) models.ConsentStatus

// PublicAll renders every author in order with the given resolver.
func PublicAll(authors []models.Author, consent Resolver) []string {
	out := make([]string, len(authors))
	for i, a := range authors {
		status := models.ConsentNotConsented
		if consent != nil && a.Claimed() {
			status = consent(a)
		}
		out[i] = Public(a, status)
	}
	return out
}
