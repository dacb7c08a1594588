package catalog

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.Und)

// SplitWords tokenizes an identifier into lower-case words, splitting on
// underscores, hyphens and case boundaries. Acronym runs stay one word:
// "HTTPServer" splits into "http", "server".
func SplitWords(ident string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	runes := []rune(ident)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ':
			flush()
		case isUpper(r):
			prevLower := i > 0 && isLower(runes[i-1])
			nextLower := i+1 < len(runes) && isLower(runes[i+1])
			if prevLower || (len(cur) > 0 && nextLower) {
				flush()
			}
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return words
}

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
func isLower(r rune) bool { return r >= 'a' && r <= 'z' }

// Recase rejoins an identifier's words in the target convention.
func Recase(ident string, style CaseStyle) string {
	words := SplitWords(ident)
	if len(words) == 0 {
		return ident
	}
	switch style {
	case SnakeCase:
		return strings.Join(words, "_")
	case CamelCase:
		out := words[0]
		for _, w := range words[1:] {
			out += titleCaser.String(w)
		}
		return out
	case PascalCase:
		var out string
		for _, w := range words {
			out += titleCaser.String(w)
		}
		return out
	default:
		return ident
	}
}

var irregularSingulars = map[string]string{
	"people":   "person",
	"children": "child",
	"men":      "man",
	"women":    "woman",
	"feet":     "foot",
	"teeth":    "tooth",
	"geese":    "goose",
	"mice":     "mouse",
	"statuses": "status",
	"indices":  "index",
	"indexes":  "index",
}

var irregularPlurals = map[string]string{
	"person": "people",
	"child":  "children",
	"man":    "men",
	"woman":  "women",
	"foot":   "feet",
	"tooth":  "teeth",
	"goose":  "geese",
	"mouse":  "mice",
	"status": "statuses",
	"index":  "indexes",
}

// Singular converts a plural noun to singular form with the small rule set
// table naming conventions rely on.
func Singular(word string) string {
	lower := strings.ToLower(word)
	if s, ok := irregularSingulars[lower]; ok {
		return matchCase(word, s)
	}
	switch {
	case strings.HasSuffix(lower, "ies") && len(lower) > 3:
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(lower, "sses"),
		strings.HasSuffix(lower, "shes"),
		strings.HasSuffix(lower, "ches"),
		strings.HasSuffix(lower, "xes"):
		return word[:len(word)-2]
	case strings.HasSuffix(lower, "ss"):
		return word
	case strings.HasSuffix(lower, "s") && len(lower) > 1:
		return word[:len(word)-1]
	default:
		return word
	}
}

// Plural converts a singular noun to plural form.
func Plural(word string) string {
	lower := strings.ToLower(word)
	if p, ok := irregularPlurals[lower]; ok {
		return matchCase(word, p)
	}
	switch {
	case strings.HasSuffix(lower, "y") && len(lower) > 1 && !isVowel(rune(lower[len(lower)-2])):
		return word[:len(word)-1] + "ies"
	case strings.HasSuffix(lower, "s"),
		strings.HasSuffix(lower, "sh"),
		strings.HasSuffix(lower, "ch"),
		strings.HasSuffix(lower, "x"),
		strings.HasSuffix(lower, "z"):
		return word + "es"
	default:
		return word + "s"
	}
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

func matchCase(src, repl string) string {
	if src != "" && isUpper(rune(src[0])) {
		return titleCaser.String(repl)
	}
	return repl
}

// ModelName derives a framework's model or entity name from a table name:
// "order_items" becomes "OrderItem" under PascalCase singular models.
func (f *Framework) ModelName(table string) string {
	words := SplitWords(table)
	if len(words) == 0 {
		return table
	}
	if f.SingularModels {
		words[len(words)-1] = Singular(words[len(words)-1])
	}
	return Recase(strings.Join(words, "_"), f.ModelCasing)
}

// TableName derives a table name from a model or entity name: "OrderItem"
// becomes "order_items".
func TableName(model string) string {
	words := SplitWords(model)
	if len(words) == 0 {
		return model
	}
	words[len(words)-1] = Plural(words[len(words)-1])
	return strings.Join(words, "_")
}

// FieldName recases a column name into the framework's field convention.
func (f *Framework) FieldName(column string) string {
	return Recase(column, f.Casing)
}

// ColumnName recases a framework field name into its column spelling.
func ColumnName(field string) string {
	return Recase(field, SnakeCase)
}
