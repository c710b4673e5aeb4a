package marketplace

// etsyMoney is Etsy's fixed-point money representation
type etsyMoney struct {
	Amount  int64 `json:"amount"`
	Divisor int64 `json:"divisor"`
}

// etsyListing is one listing as the Etsy Open API reports it
type etsyListing struct {
	ListingID int64     `json:"listing_id"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	Quantity  int       `json:"quantity"`
	Price     etsyMoney `json:"price"`
	SKUs      []string  `json:"skus"`
}

// etsyListingsResponse is the paged listings envelope
type etsyListingsResponse struct {
	Count   int           `json:"count"`
	Results []etsyListing `json:"results"`
}

// etsyTransaction is one sold line item on a receipt
type etsyTransaction struct {
	ListingID int64 `json:"listing_id"`
	Quantity  int   `json:"quantity"`
}

// etsyReceipt is one order as the Etsy Open API reports it
type etsyReceipt struct {
	ReceiptID    int64             `json:"receipt_id"`
	CreatedTime  int64             `json:"created_timestamp"`
	Transactions []etsyTransaction `json:"transactions"`
}

// etsyReceiptsResponse is the paged receipts envelope
type etsyReceiptsResponse struct {
	Count   int           `json:"count"`
	Results []etsyReceipt `json:"results"`
}

// etsyCreateListingResponse carries the id of a freshly created listing
type etsyCreateListingResponse struct {
	ListingID int64 `json:"listing_id"`
}
