package marketplace

// ebayListing is one listing as the eBay Sell API reports it
type ebayListing struct {
	ListingID string    `json:"listingId"`
	SKU       string    `json:"sku"`
	Title     string    `json:"title"`
	Price     ebayPrice `json:"price"`
	Quantity  int       `json:"availableQuantity"`
	Status    string    `json:"listingStatus"`
}

// ebayPrice is eBay's money representation
type ebayPrice struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// ebayListingsResponse is the paged listings envelope
type ebayListingsResponse struct {
	Listings []ebayListing `json:"listings"`
	Total    int           `json:"total"`
	Offset   int           `json:"offset"`
	Limit    int           `json:"limit"`
}

// ebayOrderLineItem is one line of an order
type ebayOrderLineItem struct {
	ListingID string `json:"listingId"`
	Quantity  int    `json:"quantity"`
}

// ebayOrder is one order as the Fulfillment API reports it
type ebayOrder struct {
	OrderID      string              `json:"orderId"`
	CreationDate string              `json:"creationDate"`
	LineItems    []ebayOrderLineItem `json:"lineItems"`
}

// ebayOrdersResponse is the paged orders envelope
type ebayOrdersResponse struct {
	Orders []ebayOrder `json:"orders"`
	Total  int         `json:"total"`
}

// ebayCreateListingResponse carries the id of a freshly created listing
type ebayCreateListingResponse struct {
	ListingID string `json:"listingId"`
}
