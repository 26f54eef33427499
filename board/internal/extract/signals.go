package extract

import "regexp"

// Content signal detectors. A candidate row is expected to show at least
// two distinct kinds of freight data; a nav bar or an ad block rarely
// carries more than one.
var (
	moneyRe    = regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d+)?`)
	distanceRe = regexp.MustCompile(`(?i)\b\d[\d,]*\s*(?:mi|mile|miles)\b`)
	locationRe = regexp.MustCompile(`\b[A-Z][a-zA-Z.\- ]+,\s*[A-Z]{2}\b`)
	dateRe     = regexp.MustCompile(`(?i)\b(?:\d{1,2}/\d{1,2}(?:/\d{2,4})?|(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2})\b`)
	equipRe    = regexp.MustCompile(`(?i)\b(?:dry van|box truck|power only|step ?deck|van|reefer|flatbed|hotshot|conestoga|lowboy)\b`)
)

// countSignals counts how many distinct freight-data categories appear in
// a flattened text run.
func countSignals(text string) int {
	n := 0
	if moneyRe.MatchString(text) {
		n++
	}
	if distanceRe.MatchString(text) {
		n++
	}
	if locationRe.MatchString(text) {
		n++
	}
	if dateRe.MatchString(text) {
		n++
	}
	if equipRe.MatchString(text) {
		n++
	}
	return n
}
