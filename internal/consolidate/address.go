package consolidate

import (
	"regexp"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

var ownerAddressPattern = regexp.MustCompile(`(?P<address>.+?)\r?\n(?P<city>[A-Z\s]+) (?P<state>[A-Z]{2}) (?P<postal_code>\d{5})`)

// OwnerAddress is an owner mailing address split into its parts.
type OwnerAddress struct {
	Street     string
	City       string
	State      string
	PostalCode string
}

// ParseOwnerAddress splits a "<street>\n<CITY> <ST> <ZIP>" mailing address,
// ok is false when the text does not have that shape.
func ParseOwnerAddress(text string) (OwnerAddress, bool) {
	m := ownerAddressPattern.FindStringSubmatch(text)
	if m == nil {
		return OwnerAddress{}, false
	}
	return OwnerAddress{
		Street:     strings.TrimSpace(m[ownerAddressPattern.SubexpIndex("address")]),
		City:       strings.TrimSpace(m[ownerAddressPattern.SubexpIndex("city")]),
		State:      m[ownerAddressPattern.SubexpIndex("state")],
		PostalCode: m[ownerAddressPattern.SubexpIndex("postal_code")],
	}, true
}

func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// OwnerLivesAtProperty compares the house numbers (first tokens) of the
// property address and the owner's mailing street.
func OwnerLivesAtProperty(situs string, owner OwnerAddress) bool {
	first := firstToken(situs)
	return first != "" && first == firstToken(owner.Street)
}

var spelledNumbers = map[string]bool{
	"zero": true, "one": true, "two": true, "three": true, "four": true,
	"five": true, "six": true, "seven": true, "eight": true, "nine": true,
	"ten": true, "eleven": true, "twelve": true, "thirteen": true,
	"fourteen": true, "fifteen": true, "sixteen": true, "seventeen": true,
	"eighteen": true, "nineteen": true, "twenty": true,
}

var (
	numericToken      = regexp.MustCompile(`^\d+$`)
	alphanumericToken = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	hasDigit          = regexp.MustCompile(`[0-9]`)
	hasLetter         = regexp.MustCompile(`[A-Za-z]`)
	ordinalToken      = regexp.MustCompile(`(?i)^\d+(st|nd|rd|th)$`)
)

// SitusParts is a property address broken into house number, unit and
// street name.
type SitusParts struct {
	Number string
	Unit   string
	Street string
}

func isUnitToken(token string) bool {
	if spelledNumbers[strings.ToLower(token)] || ordinalToken.MatchString(token) {
		return false
	}
	if numericToken.MatchString(token) {
		return true
	}
	return alphanumericToken.MatchString(token) && hasDigit.MatchString(token) && hasLetter.MatchString(token)
}

// TagAddress splits a situs address: a leading number is the house number,
// a numeric or alphanumeric second token is the unit and the remaining
// tokens are the street.
func TagAddress(address string) SitusParts {
	tokens := strings.Fields(address)
	var parts SitusParts
	i := 0
	if i < len(tokens) && numericToken.MatchString(tokens[i]) {
		parts.Number = tokens[i]
		i++
		if i < len(tokens) && isUnitToken(tokens[i]) {
			parts.Unit = tokens[i]
			i++
		}
	}
	if i < len(tokens) {
		parts.Street = strings.Join(tokens[i:], " ")
	}
	return parts
}

// StreetTypeReplacer rewrites street type words (ex. "DR") with their
// replacement, matching whole words only.
type StreetTypeReplacer struct {
	pattern *regexp.Regexp
	types   map[string]string
}

func NewStreetTypeReplacer(types map[string]string) StreetTypeReplacer {
	if len(types) == 0 {
		return StreetTypeReplacer{}
	}
	keys := make([]string, 0, len(types))
	for k := range types {
		keys = append(keys, regexp.QuoteMeta(k))
	}
	// longest first, alternation is leftmost-first
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return StreetTypeReplacer{
		pattern: regexp.MustCompile(`\b(` + strings.Join(keys, "|") + `)\b`),
		types:   types,
	}
}

func (r StreetTypeReplacer) Replace(address string) string {
	if r.pattern == nil {
		return address
	}
	return r.pattern.ReplaceAllStringFunc(address, func(m string) string {
		return r.types[m]
	})
}

// StreetCorrector snaps misspelled street names onto a list of known
// street names using Jaro-Winkler similarity.
type StreetCorrector struct {
	known  []string
	cutoff float64
}

func NewStreetCorrector(known []string, cutoff float64) StreetCorrector {
	if cutoff <= 0 {
		cutoff = 0.9
	}
	upper := make([]string, len(known))
	for i, k := range known {
		upper[i] = strings.ToUpper(strings.TrimSpace(k))
	}
	return StreetCorrector{known: upper, cutoff: cutoff}
}

// Correct returns the closest known street at or above the cutoff, or the
// street unchanged.
func (c StreetCorrector) Correct(street string) string {
	if street == "" || len(c.known) == 0 {
		return street
	}
	target := strings.ToUpper(street)
	best := ""
	bestScore := 0.0
	for _, k := range c.known {
		if k == target {
			return k
		}
		score := matchr.JaroWinkler(target, k, false)
		if score > bestScore {
			best, bestScore = k, score
		}
	}
	if bestScore >= c.cutoff {
		return best
	}
	return street
}
