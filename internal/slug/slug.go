// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package slug derives URL path segments from titles.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldMarks strips combining marks after canonical decomposition, turning
// "é" into "e".
var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Generate lowercases s, folds accents and joins the remaining runs of
// ASCII letters and digits with single hyphens.
// Example: "Café Déjà Vu, 2026!" → "cafe-deja-vu-2026"
func Generate(s string) string {
	folded, _, err := transform.String(foldMarks, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		if unicode.IsSpace(r) || r == '-' || r == '_' || r == '/' || r == '.' {
			pendingHyphen = true
		}
	}
	return b.String()
}

// Valid reports whether s is already in the form Generate produces.
func Valid(s string) bool {
	return s != "" && Generate(s) == s
}
