package domain

import "time"

// Comment type constants.
const (
	CommentTypeBid            = "bid"
	CommentTypeObservation    = "observation"
	CommentTypeQuestion       = "question"
	CommentTypeSellerResponse = "seller_response"
)

// Comment is one comment or bid parsed from a listing page.
type Comment struct {
	Type      string     `db:"type"       json:"type"`
	Author    string     `db:"author"     json:"author"`
	IsSeller  bool       `db:"is_seller"  json:"is_seller"`
	PostedAt  *time.Time `db:"posted_at"  json:"posted_at,omitempty"`
	Text      string     `db:"text"       json:"text"`
	BidAmount *int64     `db:"bid_amount" json:"bid_amount,omitempty"`
	LikeCount int        `db:"like_count" json:"like_count"`
}

// ExtractionResult holds everything recovered from one listing page.
// Every field is independently nullable: extraction is best-effort per
// field and a page that yields nothing is still a valid (empty) result.
type ExtractionResult struct {
	SourceURL string `json:"source_url"`

	// Vehicle identity
	VIN   *string `json:"vin,omitempty"`
	Year  *int    `json:"year,omitempty"`
	Make  *string `json:"make,omitempty"`
	Model *string `json:"model,omitempty"`

	// Specs
	Mileage       *int    `json:"mileage,omitempty"`
	ExteriorColor *string `json:"exterior_color,omitempty"`
	InteriorColor *string `json:"interior_color,omitempty"`
	Transmission  *string `json:"transmission,omitempty"`
	Drivetrain    *string `json:"drivetrain,omitempty"`
	Engine        *string `json:"engine,omitempty"`
	BodyStyle     *string `json:"body_style,omitempty"`

	// Auction facts
	Seller       *string    `json:"seller,omitempty"`
	Buyer        *string    `json:"buyer,omitempty"`
	SalePrice    *int64     `json:"sale_price,omitempty"`
	HighBid      *int64     `json:"high_bid,omitempty"`
	BidCount     *int       `json:"bid_count,omitempty"`
	CommentCount *int       `json:"comment_count,omitempty"`
	ViewCount    *int       `json:"view_count,omitempty"`
	WatcherCount *int       `json:"watcher_count,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	// EndDateCandidates are additional end-date-shaped instants found in
	// embedded data. Reconciliation picks among them; EndDate (an explicit
	// countdown value) always wins when present.
	EndDateCandidates []time.Time `json:"end_date_candidates,omitempty"`
	// AuctionEnded is set when the page carries an ended marker with no
	// sale price. A sale price always wins over this flag.
	AuctionEnded bool `json:"auction_ended"`

	Description string    `json:"description,omitempty"`
	ImageURLs   []string  `json:"image_urls,omitempty"`
	Comments    []Comment `json:"comments,omitempty"`
}
