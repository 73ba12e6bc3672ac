package quote

import (
	"time"

	"github.com/shopspring/decimal"
)

// FarmerQuoteStatus is the lifecycle of a farmer's produce quote. Farmer
// acceptance is a soft commitment; the quote only leaves the market once a
// settlement contract is recorded.
type FarmerQuoteStatus string

const (
	FarmerQuoteOpen            FarmerQuoteStatus = "open"
	FarmerQuoteClosed          FarmerQuoteStatus = "closed"
	FarmerQuoteAwarded         FarmerQuoteStatus = "awarded"
	FarmerQuoteAccepted        FarmerQuoteStatus = "accepted"
	FarmerQuoteContractCreated FarmerQuoteStatus = "contract_created"
)

// FPOQuoteStatus is the lifecycle of an FPO's sourcing quote. Awarding
// closes the market immediately.
type FPOQuoteStatus string

const (
	FPOQuoteOpen    FPOQuoteStatus = "open"
	FPOQuoteClosed  FPOQuoteStatus = "closed"
	FPOQuoteAwarded FPOQuoteStatus = "awarded"
)

// FarmerQuote mirrors the farmer_quotes table plus owner display fields
// joined in for presentation.
type FarmerQuote struct {
	ID                string
	FarmerID          string
	ProductName       string
	Category          string
	Description       string
	Quantity          decimal.Decimal
	Unit              string
	PricePerUnit      *decimal.Decimal
	Status            FarmerQuoteStatus
	Deadline          time.Time
	AcceptedBidID     *string
	ContractAddress   *string
	ContractCreatedAt *time.Time
	CreatedAt         time.Time
	FarmerName        string
	FarmerEmail       string
	Bids              []BidSummary
}

// FPOQuote mirrors the fpo_quotes table plus owner display fields.
type FPOQuote struct {
	ID            string
	FPOID         string
	ProductName   string
	Category      string
	Description   string
	Quantity      decimal.Decimal
	Unit          string
	PricePerUnit  *decimal.Decimal
	Status        FPOQuoteStatus
	Deadline      time.Time
	AcceptedBidID *string
	CreatedAt     time.Time
	FPOName       string
	FPOEmail      string
	Bids          []BidSummary
}

// BidSummary is the compact bid representation embedded in quote detail
// responses.
type BidSummary struct {
	ID               string
	BidderName       string
	BidAmount        decimal.Decimal
	DeliveryTimeDays int
	Status           string
	SubmittedAt      time.Time
}

// CreateParams contains the caller-supplied fields for a new quote of
// either variant.
type CreateParams struct {
	ProductName  string
	Category     string
	Description  string
	Quantity     decimal.Decimal
	Unit         string
	PricePerUnit *decimal.Decimal
	Deadline     time.Time
}

// ContractDetails is the public view of a settled farmer quote resolved by
// its contract address.
type ContractDetails struct {
	Quote           FarmerQuote
	ContractAddress string
	FarmerName      string
	FarmerLocation  string
	// Counterparty display info from the accepted bid, nil when no bid has
	// been accepted yet.
	FPOName  *string
	FPOEmail *string
}

// FarmerDashboard aggregates counts shown on the farmer's landing page.
type FarmerDashboard struct {
	MyQuotesCount     int
	BidsReceivedCount int
	ActiveQuotes      int
	AwardedQuotes     int
}

// FPODashboard aggregates counts shown on the FPO's landing page.
type FPODashboard struct {
	AvailableFarmerQuotesCount int
	MyBidsCount                int
	MyQuotesCount              int
	RetailerBidsCount          int
}

// RetailerDashboard aggregates counts shown on the retailer's landing page.
type RetailerDashboard struct {
	AvailableFPOQuotesCount int
	MyBidsCount             int
	AcceptedBidsCount       int
}
