package extract

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/sss97133/nuke-sub008/internal/domain"
)

// commentBlob is the defensive intermediate shape embedded comment objects
// are decoded into. Platforms disagree on key names, so each field has
// aliases and everything is optional.
type commentBlob struct {
	Author     string `json:"author"`
	AuthorName string `json:"author_name"`
	Username   string `json:"username"`
	Text       string `json:"text"`
	Markup     string `json:"markup"`
	Body       string `json:"body"`
	Timestamp  any    `json:"timestamp"`
	CreatedAt  any    `json:"created_at"`
	BidAmount  any    `json:"bid_amount"`
	Amount     any    `json:"amount"`
	IsSeller   bool   `json:"is_seller"`
	Likes      int    `json:"likes"`
	LikeCount  int    `json:"like_count"`
}

// candidateObjectPattern finds standalone JSON objects in raw HTML for the
// fallback scan. Nested objects are not matched; a well-formed comment
// object is flat.
var candidateObjectPattern = regexp.MustCompile(`\{[^{}]+\}`)

// extractComments parses the comment/bid feed. The embedded JSON array is
// preferred; when no array decodes, the raw document is scanned for
// individually well-formed comment-shaped objects.
func (e *Engine) extractComments(p *page, seller *string) []domain.Comment {
	chain := []strategy[[]domain.Comment]{
		{name: "embedded-json-array", fn: func(p *page) ([]domain.Comment, bool) {
			return commentsFromBlobArray(p, seller)
		}},
		{name: "scanned-json-objects", fn: func(p *page) ([]domain.Comment, bool) {
			return commentsFromRawScan(p.raw, seller)
		}},
	}
	comments, _ := runChain(e.log, p, "comments", chain)
	return comments
}

func commentsFromBlobArray(p *page, seller *string) ([]domain.Comment, bool) {
	v, ok := lookupValue(p.jsonBlobs(), "comments", "comment_list")
	if !ok {
		return nil, false
	}
	items, isList := v.([]any)
	if !isList || len(items) == 0 {
		return nil, false
	}

	var comments []domain.Comment
	for _, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			continue
		}
		var blob commentBlob
		if err := json.Unmarshal(raw, &blob); err != nil {
			continue
		}
		if c, valid := blob.toComment(seller); valid {
			comments = append(comments, c)
		}
	}
	return comments, len(comments) > 0
}

func commentsFromRawScan(raw string, seller *string) ([]domain.Comment, bool) {
	var comments []domain.Comment
	for _, candidate := range candidateObjectPattern.FindAllString(raw, -1) {
		var blob commentBlob
		if err := json.Unmarshal([]byte(candidate), &blob); err != nil {
			continue
		}
		if c, valid := blob.toComment(seller); valid {
			comments = append(comments, c)
		}
	}
	return comments, len(comments) > 0
}

// toComment converts a decoded blob into a classified domain comment.
// A blob with no recognizable author or text is not a comment.
func (b *commentBlob) toComment(seller *string) (domain.Comment, bool) {
	author := firstNonEmpty(b.Author, b.AuthorName, b.Username)
	text := strings.TrimSpace(stripTags(firstNonEmpty(b.Text, b.Markup, b.Body)))
	if author == "" || text == "" {
		return domain.Comment{}, false
	}

	c := domain.Comment{
		Author:    author,
		IsSeller:  b.IsSeller,
		Text:      text,
		LikeCount: max(b.Likes, b.LikeCount),
	}

	if amount, ok := blobAmount(b); ok {
		c.BidAmount = &amount
	}
	if ts, ok := firstInstant(b.Timestamp, b.CreatedAt); ok {
		c.PostedAt = &ts
	}
	if seller != nil && strings.EqualFold(author, *seller) {
		c.IsSeller = true
	}

	c.Type = classifyComment(c)
	return c, true
}

// classifyComment applies the classification order: a numeric bid amount
// makes a bid; a seller author makes a seller response; a question mark
// makes a question; everything else is an observation.
func classifyComment(c domain.Comment) string {
	switch {
	case c.BidAmount != nil:
		return domain.CommentTypeBid
	case c.IsSeller:
		return domain.CommentTypeSellerResponse
	case strings.Contains(c.Text, "?"):
		return domain.CommentTypeQuestion
	default:
		return domain.CommentTypeObservation
	}
}

func blobAmount(b *commentBlob) (int64, bool) {
	for _, v := range []any{b.BidAmount, b.Amount} {
		if v == nil {
			continue
		}
		if n, ok := asInt(v); ok && n > 0 {
			return n, true
		}
	}
	return 0, false
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string {
	return tagPattern.ReplaceAllString(s, "")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func firstInstant(values ...any) (t time.Time, ok bool) {
	for _, v := range values {
		if v == nil {
			continue
		}
		if t, ok = asInstant(v); ok {
			return t, true
		}
	}
	return time.Time{}, false
}
