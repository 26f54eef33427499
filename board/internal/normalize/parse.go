// CLAUDE:SUMMARY Field parsers: money, distance, weight, locations, dates — all tolerant of board formatting noise.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	dollarRe   = regexp.MustCompile(`\$\s?(\d[\d,. ]*)`)
	numberRe   = regexp.MustCompile(`\d[\d,.]*`)
	mileRe     = regexp.MustCompile(`(?i)\b(\d[\d,]*(?:\.\d+)?)\s*(?:mi|mile|miles)\b`)
	deadheadRe = regexp.MustCompile(`(?i)(?:deadhead|dead head|dh)\W{0,3}(\d[\d,]*(?:\.\d+)?)|(\d[\d,]*(?:\.\d+)?)\s*(?:mi|miles)?\s*(?:deadhead|dead head|dh)\b`)
	weightRe   = regexp.MustCompile(`(?i)\b(\d[\d,]*(?:\.\d+)?)\s*(k?\s?lbs?|pounds)\b`)
	locationRe = regexp.MustCompile(`\b[A-Z][a-zA-Z.\- ]+?,\s*[A-Z]{2}\b(?:\s+\d{5})?`)
	dateRe     = regexp.MustCompile(`(?i)\b(?:\d{1,2}/\d{1,2}(?:/\d{2,4})?|(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2})\b`)
	equipRe    = regexp.MustCompile(`(?i)\b(?:dry van|box truck|power only|step ?deck|van|reefer|flatbed|hotshot|conestoga|lowboy)\b`)
	labelRe    = regexp.MustCompile(`(?i)^\s*(?:origin|from|pick ?up|dest(?:ination)?|to|delivery|drop(?: ?off)?)\s*[:\-]\s*`)
	letterRe   = regexp.MustCompile(`[A-Za-z]`)
	cityRe     = regexp.MustCompile(`^(.+?),\s*([A-Za-z]{2})(?:\s+(\d{5}))?$`)
)

// parseNumber turns a digit string with separators into a float. The last
// separator is decimal when one or two digits follow it, otherwise all
// separators are thousands grouping. Boards mix both conventions.
func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return 0, false
	}
	if idx := strings.LastIndexAny(s, ".,"); idx >= 0 {
		digitsAfter := len(s) - idx - 1
		intPart := stripSeparators(s[:idx])
		if digitsAfter >= 1 && digitsAfter <= 2 {
			s = intPart + "." + s[idx+1:]
		} else {
			s = intPart + stripSeparators(s[idx:])
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

func stripSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ',' || r == '.' {
			return -1
		}
		return r
	}, s)
}

// parseAmount reads a dollar value from a narrow cell or attribute. A
// $-prefixed token wins; a bare number is accepted because attribute
// values like data-rate="720" carry no currency mark. Zero or anything
// above the ceiling is rejected as corrupt.
func parseAmount(raw string, max float64) (float64, bool) {
	var token string
	if m := dollarRe.FindStringSubmatch(raw); m != nil {
		token = m[1]
	} else {
		token = numberRe.FindString(raw)
	}
	v, ok := parseNumber(token)
	if !ok || v <= 0 || v > max {
		return 0, false
	}
	return v, true
}

// parseMoneyStrict reads a dollar value from free-flowing row text. Here
// a bare number could be anything (miles, a zip, a phone fragment), so
// the $ prefix is mandatory.
func parseMoneyStrict(text string, max float64) (float64, bool) {
	m := dollarRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, ok := parseNumber(m[1])
	if !ok || v <= 0 || v > max {
		return 0, false
	}
	return v, true
}

// parseMileage reads a distance from a narrow cell or attribute:
// mile-marked token preferred, bare number accepted.
func parseMileage(raw string, max float64) (float64, bool) {
	token := numberRe.FindString(raw)
	if m := mileRe.FindStringSubmatch(raw); m != nil {
		token = m[1]
	}
	v, ok := parseNumber(token)
	if !ok || v <= 0 || v > max {
		return 0, false
	}
	return v, true
}

// parseDistance reads the linehaul distance from free-flowing row text.
// Only mile-marked tokens qualify. skip is a half-open byte range already
// claimed by the deadhead parser, so "15 mi deadhead" is never read as
// the linehaul figure.
func parseDistance(text string, max float64, skip [2]int) (float64, bool) {
	for _, m := range mileRe.FindAllStringSubmatchIndex(text, -1) {
		if m[0] >= skip[0] && m[0] < skip[1] {
			continue
		}
		if v, ok := parseNumber(text[m[2]:m[3]]); ok && v > 0 && v <= max {
			return v, true
		}
	}
	return 0, false
}

// parseDeadhead finds a labeled deadhead figure and the byte span it
// occupied. Works on both narrow cells and full row text: the label is
// what disambiguates it.
func parseDeadhead(text string, max float64) (float64, [2]int, bool) {
	m := deadheadRe.FindStringSubmatchIndex(text)
	if m == nil {
		return 0, [2]int{}, false
	}
	var token string
	if m[2] >= 0 {
		token = text[m[2]:m[3]]
	} else if m[4] >= 0 {
		token = text[m[4]:m[5]]
	}
	v, ok := parseNumber(token)
	if !ok || v > max {
		return 0, [2]int{}, false
	}
	return v, [2]int{m[0], m[1]}, true
}

func parseWeight(text string, max float64) (float64, bool) {
	m := weightRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, ok := parseNumber(m[1])
	if !ok || v <= 0 {
		return 0, false
	}
	// "42k lbs" shorthand.
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(m[2])), "k") && v < 1000 {
		v *= 1000
	}
	if v > max {
		return 0, false
	}
	return v, true
}

// locationParts is a parsed "City, ST 12345" triple.
type locationParts struct {
	city, state, zip string
}

// cleanLocation strips a leading field label and validates that the rest
// still looks like a place. Returns "" when it does not.
func cleanLocation(s string) string {
	s = labelRe.ReplaceAllString(strings.TrimSpace(s), "")
	s = strings.TrimSpace(s)
	if !letterRe.MatchString(s) {
		return ""
	}
	return s
}

// splitLocation parses "City, ST" or "City, ST 12345". ok is false when
// the text does not follow that shape — the free text is still kept.
func splitLocation(s string) (locationParts, bool) {
	m := cityRe.FindStringSubmatch(s)
	if m == nil {
		return locationParts{}, false
	}
	city := strings.TrimSpace(m[1])
	if !letterRe.MatchString(city) {
		return locationParts{}, false
	}
	return locationParts{
		city:  city,
		state: strings.ToUpper(m[2]),
		zip:   m[3],
	}, true
}
