package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sss97133/nuke-sub008/internal/domain"
)

// Spec fields are derived from the free-text description only. A field
// with no pattern match stays null; drivetrain, transmission, and color
// are never inferred from make/model defaults.

var (
	mileagePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)odometer\s+(?:shows|reads|indicates)\s+([\d,]+)\s*(k\b)?\s*miles`),
		regexp.MustCompile(`(?i)\b([\d,]+)\s*(k\b)?\s*(?:indicated\s+)?miles\b`),
		regexp.MustCompile(`(?i)\b(\d+)(k)\s+miles\b`),
	}

	exteriorColorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:finished|refinished|repainted)\s+in\s+([A-Za-z][A-Za-z ]{2,30}?)(?:\s+over\b|\s+with\b|\s+metallic\b|[,.]|$)`),
		regexp.MustCompile(`(?i)\bexterior(?:\s+color)?\s*:\s*([A-Za-z][A-Za-z ]{2,30}?)(?:[,.\n]|$)`),
	}

	interiorColorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bover\s+(?:a\s+)?([A-Za-z][A-Za-z ]{2,30}?)\s+(?:leather|cloth|vinyl|alcantara|upholstery|interior)`),
		regexp.MustCompile(`(?i)\binterior(?:\s+color)?\s*:\s*([A-Za-z][A-Za-z ]{2,30}?)(?:[,.\n]|$)`),
	}

	transmissionSpeed = regexp.MustCompile(`(?i)\b(\d)-speed\s+(manual|automatic|dual-clutch|automated|sequential)`)

	enginePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)-liter\s+(?:[a-z\- ]{0,24}?)?\b(v6|v8|v10|v12|inline-(?:three|four|five|six)|inline-\d|flat-(?:four|six)|flat-\d|single|twin|triple|four)\b`),
		regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)l\s+(v6|v8|v10|v12)\b`),
		regexp.MustCompile(`(?i)\b(\d+)ci\s+(v8|v6|inline-six)\b`),
	}

	drivetrainAbbrevs = []struct {
		value string
		re    *regexp.Regexp
	}{
		{"awd", regexp.MustCompile(`\bAWD\b`)},
		{"4wd", regexp.MustCompile(`\b4WD\b|\b4x4\b`)},
		{"rwd", regexp.MustCompile(`\bRWD\b`)},
		{"fwd", regexp.MustCompile(`\bFWD\b`)},
	}

	bodyStyleKeywords = []string{
		"convertible", "cabriolet", "roadster", "coupe", "sedan", "wagon",
		"hatchback", "fastback", "pickup", "limousine", "targa", "speedster",
	}
	bodyStylePattern = regexp.MustCompile(`\b(` + strings.Join(bodyStyleKeywords, "|") + `)\b`)
)

func (e *Engine) extractSpecs(p *page, result *domain.ExtractionResult) {
	text := p.specText()
	if text == "" {
		return
	}

	if miles, ok := extractMileage(text); ok {
		result.Mileage = &miles
	}
	if color, ok := firstColorMatch(exteriorColorPatterns, text); ok {
		result.ExteriorColor = &color
	}
	if color, ok := firstColorMatch(interiorColorPatterns, text); ok {
		result.InteriorColor = &color
	}
	if trans, ok := extractTransmission(text); ok {
		result.Transmission = &trans
	}
	if drive, ok := extractDrivetrain(text); ok {
		result.Drivetrain = &drive
	}
	if engine, ok := extractEngine(text); ok {
		result.Engine = &engine
	}
	if body, ok := extractBodyStyle(text); ok {
		result.BodyStyle = &body
	}
}

func extractMileage(text string) (int, bool) {
	for _, re := range mileagePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
		if err != nil {
			continue
		}
		if len(m) > 2 && strings.EqualFold(strings.TrimSpace(m[2]), "k") {
			n *= 1000
		}
		// Gate: odometer readings above a million miles are noise.
		if n <= 0 || n > 1_000_000 {
			continue
		}
		return n, true
	}
	return 0, false
}

func firstColorMatch(patterns []*regexp.Regexp, text string) (string, bool) {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			color := strings.TrimSpace(strings.ToLower(m[1]))
			if color != "" && len(color) <= 30 {
				return color, true
			}
		}
	}
	return "", false
}

func extractTransmission(text string) (string, bool) {
	if m := transmissionSpeed.FindStringSubmatch(text); m != nil {
		return strings.ToLower(m[1] + "-speed " + m[2]), true
	}
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "dual-clutch"):
		return "dual-clutch", true
	case strings.Contains(lower, "manual transmission") || strings.Contains(lower, "manual gearbox"):
		return "manual", true
	case strings.Contains(lower, "automatic transmission") || strings.Contains(lower, "automatic gearbox"):
		return "automatic", true
	}
	return "", false
}

// drivetrainPhrases maps spelled-out drivetrain wording to the stored value.
var drivetrainPhrases = []struct {
	phrase string
	value  string
}{
	{"all-wheel drive", "awd"},
	{"four-wheel drive", "4wd"},
	{"rear-wheel drive", "rwd"},
	{"front-wheel drive", "fwd"},
}

func extractDrivetrain(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, d := range drivetrainPhrases {
		if strings.Contains(lower, d.phrase) {
			return d.value, true
		}
	}
	for _, d := range drivetrainAbbrevs {
		if d.re.MatchString(text) {
			return d.value, true
		}
	}
	return "", false
}

func extractEngine(text string) (string, bool) {
	for _, re := range enginePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.ToLower(strings.TrimSpace(m[0])), true
		}
	}
	return "", false
}

func extractBodyStyle(text string) (string, bool) {
	if m := bodyStylePattern.FindString(strings.ToLower(text)); m != "" {
		return m, true
	}
	return "", false
}
