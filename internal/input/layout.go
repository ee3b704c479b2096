// Package input translates host keyboard and mouse state into the form the
// core consumes.
package input

import (
	"strings"
)

// DefaultLayout is the DOS layout code used when the host layout is unknown
const DefaultLayout = "us"

// layouts maps host keyboard layout identifiers to DOS KEYB layout codes.
// Keys are lower case. macOS identifiers are stored without their
// "com.apple.keylayout." prefix.
var layouts = map[string]string{
	"us":                 "us",
	"us-extended":        "us",
	"abc":                "us",
	"usinternational-pc": "us",
	"british":            "uk",
	"british-pc":         "uk",
	"gb":                 "uk",
	"irish":              "uk",
	"canadian":           "cf",
	"canadian-csa":       "cf",
	"french":             "fr",
	"french-pc":          "fr",
	"fr":                 "fr",
	"belgian":            "be",
	"german":             "gr",
	"de":                 "gr",
	"austrian":           "gr",
	"swissgerman":        "sg",
	"swissfrench":        "sf",
	"italian":            "it",
	"italian-pro":        "it",
	"it":                 "it",
	"spanish":            "sp",
	"spanish-iso":        "sp",
	"es":                 "sp",
	"latinamerican":      "la",
	"portuguese":         "po",
	"brazilian":          "br",
	"brazilian-pro":      "br",
	"dutch":              "nl",
	"danish":             "dk",
	"norwegian":          "no",
	"swedish":            "sv",
	"swedish-pro":        "sv",
	"finnish":            "su",
	"icelandic":          "is",
	"polish":             "pl",
	"polishpro":          "pl",
	"czech":              "cz",
	"czech-qwerty":       "cz",
	"slovak":             "sk",
	"hungarian":          "hu",
	"russian":            "ru",
	"russian-phonetic":   "ru",
	"ukrainian":          "ur",
	"greek":              "gk",
	"turkish":            "tr",
	"turkish-qwerty":     "tr",
	"hebrew":             "il",
	"croatian":           "yu",
	"slovenian":          "yu",
	"serbian":            "yu",
	"japanese":           "jp",
}

const macPrefix = "com.apple.keylayout."

// Layouts translates host layout identifiers into DOS layout codes.
// Overrides take precedence over the built-in table.
type Layouts struct {
	overrides map[string]string
}

// NewLayouts creates a translation table with optional overrides
func NewLayouts(overrides map[string]string) *Layouts {
	l := &Layouts{overrides: make(map[string]string, len(overrides))}
	for k, v := range overrides {
		l.overrides[normalize(k)] = strings.ToLower(v)
	}
	return l
}

// Code returns the DOS layout code for a host layout identifier, or
// DefaultLayout if there is no mapping
func (l *Layouts) Code(hostLayout string) string {
	key := normalize(hostLayout)
	if l != nil {
		if code, ok := l.overrides[key]; ok {
			return code
		}
	}
	if code, ok := layouts[key]; ok {
		return code
	}
	return DefaultLayout
}

// LayoutCode translates with the built-in table only
func LayoutCode(hostLayout string) string {
	return (*Layouts)(nil).Code(hostLayout)
}

func normalize(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	return strings.TrimPrefix(id, macPrefix)
}
