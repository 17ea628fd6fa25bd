// Package provider canonicalizes noisy utility provider names onto a fixed
// set of canonical identities per utility category.
package provider

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/utility-cli/internal/model"
)

// legalSuffixes lists common legal entity suffixes to strip during cleaning.
var legalSuffixes = []string{
	" LLC", " L.L.C.", " L.L.C",
	" INC", " INC.", " INCORPORATED",
	" CORP", " CORP.", " CORPORATION",
	" LTD", " LTD.", " LIMITED",
	" LP", " L.P.", " L.P",
	" LLP", " L.L.P.", " L.L.P",
	" CO", " CO.",
	" PLC", " P.L.C.",
	" NA", " N.A.", " N.A",
	" DBA", " D/B/A",
	" UTILITIES", " UTILITY",
	" SERVICES", " SERVICE",
	" COMPANY",
}

var (
	multiSpaceRe  = regexp.MustCompile(`\s{2,}`)
	ofStateRe     = regexp.MustCompile(` OF (?:TEXAS|OHIO|PENNSYLVANIA|ILLINOIS|NEW JERSEY|MARYLAND|CONNECTICUT|MASSACHUSETTS|NEW YORK|MAINE|NEW HAMPSHIRE|RHODE ISLAND|DELAWARE|MICHIGAN|CALIFORNIA|FLORIDA|GEORGIA|NORTH CAROLINA|VIRGINIA|COLORADO|MISSOURI|MINNESOTA)$`)
	stateAbbrRe   = regexp.MustCompile(` (?:TX|OH|PA|IL|NJ|MD|CT|MA|NY|ME|NH|RI|DE|MI|CA|FL|GA|NC|VA|MO|MN|AZ|NV)$`)
	minAliasChars = 5 // containment matching requires aliases longer than this
)

// aliasPattern is one ordered containment rule: pattern → canonical name.
type aliasPattern struct {
	pattern   string
	canonical string
}

// Canonicalizer maps raw provider-name strings to canonical identities.
// Construct once via New and share; all methods are read-only after build.
type Canonicalizer struct {
	exact  map[model.Category]map[string]string
	long   map[model.Category][]aliasPattern
	titler cases.Caser
}

// New builds a Canonicalizer from the embedded alias tables.
func New() (*Canonicalizer, error) {
	table, err := loadAliasTable()
	if err != nil {
		return nil, err
	}

	c := &Canonicalizer{
		exact:  make(map[model.Category]map[string]string),
		long:   make(map[model.Category][]aliasPattern),
		titler: cases.Title(language.AmericanEnglish),
	}

	for cat, entries := range table {
		c.exact[cat] = make(map[string]string)
		for _, e := range entries {
			names := append([]string{e.Canonical}, e.Aliases...)
			for _, name := range names {
				cleaned := CleanName(name)
				if cleaned == "" {
					continue
				}
				if _, dup := c.exact[cat][cleaned]; !dup {
					c.exact[cat][cleaned] = e.Canonical
				}
				// Containment rules stay in table order so precedence is
				// auditable; short tokens are excluded to limit false hits.
				if len(cleaned) > minAliasChars {
					c.long[cat] = append(c.long[cat], aliasPattern{pattern: cleaned, canonical: e.Canonical})
				}
			}
		}
	}

	return c, nil
}

// CleanName standardizes a provider name for matching:
//  1. Trim whitespace and uppercase
//  2. Strip one trailing legal suffix (LLC, Inc, Corp, ...)
//  3. Strip punctuation (& becomes AND)
//  4. Strip a trailing state qualifier ("OF TEXAS", " TX")
//  5. Collapse repeated spaces
func CleanName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	name = strings.ToUpper(name)

	for _, suffix := range legalSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}

	name = strings.NewReplacer(
		",", "",
		".", "",
		"'", "",
		"\"", "",
		"&", "AND",
		"-", " ",
		"/", " ",
	).Replace(name)

	name = multiSpaceRe.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)

	name = ofStateRe.ReplaceAllString(name, "")
	name = stateAbbrRe.ReplaceAllString(name, "")

	return strings.TrimSpace(name)
}

// Canonicalize maps a raw provider name to its canonical identity for the
// category. Deterministic and idempotent: feeding the output back in returns
// the same value.
func (c *Canonicalizer) Canonicalize(raw string, category model.Category) string {
	cleaned := CleanName(raw)
	if cleaned == "" {
		return ""
	}

	if canonical, ok := c.exact[category][cleaned]; ok {
		return canonical
	}

	for _, p := range c.long[category] {
		if strings.Contains(cleaned, p.pattern) {
			return p.canonical
		}
	}

	// No alias match: return a cleaned, title-cased rendition of the input.
	return c.titler.String(strings.ToLower(cleaned))
}

// ProvidersMatch reports whether two raw names resolve to the same provider.
// Equality of canonical forms matches, and so does one canonical form
// containing the other. The containment arm has no minimum length on either
// side, which can false-positive on very short canonical names; downstream
// consumers rely on this loose behavior, so it is kept as-is.
func (c *Canonicalizer) ProvidersMatch(a, b string, category model.Category) bool {
	ca := c.Canonicalize(a, category)
	cb := c.Canonicalize(b, category)
	if ca == "" || cb == "" {
		return false
	}
	if ca == cb {
		return true
	}
	ua, ub := strings.ToUpper(ca), strings.ToUpper(cb)
	return strings.Contains(ua, ub) || strings.Contains(ub, ua)
}
