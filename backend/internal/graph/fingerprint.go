package graph

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// companyForms maps spelled-out legal forms to the abbreviation used in
// fingerprints so that "Acme Limited" and "ACME Ltd." collapse to one node.
var companyForms = map[string]string{
	"limited":      "ltd",
	"incorporated": "inc",
	"corporation":  "corp",
	"company":      "co",
	"gesellschaft": "ges",
	"sociedad":     "soc",
	"societe":      "soc",
	"anonyme":      "anon",
	"anonima":      "anon",
	"holdings":     "holding",
	"partnership":  "partners",
}

// Fingerprint normalises a name into the key used for graph nodes: accents
// stripped, lower-cased, punctuation removed, legal forms abbreviated and
// whitespace collapsed. Names without letters or digits yield "".
func Fingerprint(name string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}

	folded = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, folded)

	tokens := strings.Fields(folded)
	for i, tok := range tokens {
		if short, ok := companyForms[tok]; ok {
			tokens[i] = short
		}
	}
	return strings.Join(tokens, " ")
}
