package extract

import (
	"regexp"
	"strings"

	"github.com/sss97133/nuke-sub008/internal/domain"
)

// VIN charset excludes I, O, and Q.
var (
	vinPattern = regexp.MustCompile(`\b[A-HJ-NPR-Z0-9]{17}\b`)

	// chassisPattern matches labeled chassis/serial identifiers of 6-17
	// characters, allowing the * and - separators vintage plates carry.
	chassisPattern = regexp.MustCompile(`(?i)(?:chassis|serial)(?:\s*(?:no|number|#))?\.?\s*:?\s*([A-Z0-9*\-]{6,17})`)
)

// wmiFirstChars lists world-manufacturer-identifier leading characters the
// modern-VIN strategy accepts before falling back to the generic scan.
const wmiFirstChars = "12345JKLSVWYZ"

func (e *Engine) extractVIN(p *page, result *domain.ExtractionResult) {
	chain := []strategy[string]{
		{name: "wmi-prefixed-vin", fn: func(p *page) (string, bool) {
			return mostFrequentVIN(p.raw, func(v string) bool {
				return vinValid(v) && strings.ContainsRune(wmiFirstChars, rune(v[0]))
			})
		}},
		{name: "generic-17char-vin", fn: func(p *page) (string, bool) {
			return mostFrequentVIN(p.raw, vinValid)
		}},
		{name: "labeled-chassis-essentials", fn: func(p *page) (string, bool) {
			return labeledChassis(p.essentials)
		}},
		{name: "labeled-chassis-document", fn: func(p *page) (string, bool) {
			return labeledChassis(p.text)
		}},
	}

	if vin, ok := runChain(e.log, p, "vin", chain); ok {
		result.VIN = &vin
	}
}

// mostFrequentVIN scans the whole document for VIN-shaped candidates and
// returns the most frequently occurring one. Repetition separates the real
// VIN from stray part or reference numbers; ties go to first occurrence.
func mostFrequentVIN(text string, valid func(string) bool) (string, bool) {
	matches := vinPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return "", false
	}

	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	for i, m := range matches {
		m = strings.ToUpper(m)
		if !valid(m) {
			continue
		}
		counts[m]++
		if _, seen := firstSeen[m]; !seen {
			firstSeen[m] = i
		}
	}
	if len(counts) == 0 {
		return "", false
	}

	best := ""
	for vin, n := range counts {
		if best == "" {
			best = vin
			continue
		}
		if n > counts[best] || (n == counts[best] && firstSeen[vin] < firstSeen[best]) {
			best = vin
		}
	}
	return best, true
}

// vinValid gates 17-character candidates: correct charset is enforced by
// the pattern, so the remaining check is that the token looks like a VIN
// rather than an all-letter word or all-digit number.
func vinValid(v string) bool {
	if len(v) != 17 {
		return false
	}
	hasDigit, hasLetter := false, false
	for _, c := range v {
		switch {
		case c >= '0' && c <= '9':
			hasDigit = true
		case c >= 'A' && c <= 'Z':
			hasLetter = true
		}
	}
	return hasDigit && hasLetter
}

// labeledChassis pulls a chassis/serial identifier out of labeled text.
func labeledChassis(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	m := chassisPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	id := strings.ToUpper(m[1])
	if len(id) < 6 {
		return "", false
	}
	// All-punctuation or all-digit captures are labels gone wrong, not ids.
	if strings.Trim(id, "*-") == "" {
		return "", false
	}
	return id, true
}
