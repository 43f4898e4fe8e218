package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sss97133/nuke-sub008/internal/domain"
)

var yearToken = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

// boilerplateSuffixes are site-specific tails stripped from headings before
// the year/make/model split.
var boilerplateSuffixes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s+for sale on bat auctions.*$`),
	regexp.MustCompile(`(?i)\s*\|\s*bring a trailer.*$`),
	regexp.MustCompile(`(?i)\s*[-|]\s*cars\s*&\s*bids.*$`),
	regexp.MustCompile(`(?i)\s+at auction.*$`),
	regexp.MustCompile(`(?i)\s+sold for \$[\d,]+.*$`),
}

// extractIdentity parses year, make, and model from the primary heading.
// The first plausible 4-digit year anchors the split: everything before it
// is discarded (listing prefixes like "No Reserve:"), the next token is
// the make, and the remainder is the model.
func (e *Engine) extractIdentity(p *page, result *domain.ExtractionResult) {
	heading := p.heading
	for _, suffix := range boilerplateSuffixes {
		heading = suffix.ReplaceAllString(heading, "")
	}
	heading = strings.TrimSpace(heading)
	if heading == "" {
		return
	}

	year, rest, ok := splitOnYear(heading)
	if !ok {
		return
	}
	result.Year = &year

	tokens := strings.Fields(rest)
	if len(tokens) == 0 {
		return
	}
	makeName := tokens[0]
	result.Make = &makeName

	if len(tokens) > 1 {
		model := strings.Join(tokens[1:], " ")
		result.Model = &model
	}
}

// splitOnYear finds the first 4-digit token in [1900, currentYear+1] and
// returns it with the text that follows.
func splitOnYear(heading string) (int, string, bool) {
	maxYear := time.Now().Year() + 1
	for _, loc := range yearToken.FindAllStringIndex(heading, -1) {
		year, err := strconv.Atoi(heading[loc[0]:loc[1]])
		if err != nil || year < 1900 || year > maxYear {
			continue
		}
		return year, strings.TrimSpace(heading[loc[1]:]), true
	}
	return 0, "", false
}
