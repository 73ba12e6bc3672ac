package bid

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status represents the lifecycle of a bid record.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
)

// PaymentStatus tracks settlement of an accepted bid. Nothing in this
// service moves it past pending; it exists for external payment flows.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Kind is the closed enumeration of bid variants a Ref may point at. The
// wire values keep the <app>.<model> shape clients already send, but only
// these two are ever resolved.
type Kind string

const (
	KindFPOBid      Kind = "fpo.fpobid"
	KindRetailerBid Kind = "retailer.retailerbid"
)

// ParseKind maps a wire string onto the closed Kind set.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindFPOBid:
		return KindFPOBid, nil
	case KindRetailerBid:
		return KindRetailerBid, nil
	default:
		return "", fmt.Errorf("%w: unknown bid kind %q", ErrNotFound, s)
	}
}

// Ref is the tagged union identifying one bid row in one of the two bid
// tables. It is the key a negotiation attaches to.
type Ref struct {
	Kind Kind
	ID   string
}

// FPOBid mirrors the fpo_bids table plus display fields joined in for
// presentation.
type FPOBid struct {
	ID               string
	FPOID            string
	QuoteID          string
	BidAmount        decimal.Decimal
	DeliveryTimeDays int
	Comments         string
	Status           Status
	PaymentStatus    PaymentStatus
	TransactionHash  *string
	SubmittedAt      time.Time
	FPOName          string
	QuoteProductName string
}

// RetailerBid mirrors the retailer_bids table plus display fields.
type RetailerBid struct {
	ID               string
	RetailerID       string
	QuoteID          string
	BidAmount        decimal.Decimal
	DeliveryTimeDays int
	Comments         string
	Status           Status
	PaymentStatus    PaymentStatus
	TransactionHash  *string
	SubmittedAt      time.Time
	RetailerName     string
	QuoteProductName string
}

// CreateParams contains the caller-supplied fields for a new bid of either
// variant.
type CreateParams struct {
	BidAmount        decimal.Decimal
	DeliveryTimeDays int
	Comments         string
}

// Participant is a resolved marketplace actor on one side of a bid.
type Participant struct {
	ID   string
	Role string
	Name string
}

// Resolved is the kind-independent view of a bid produced by the resolver.
// It is the only representation the negotiation engine ever sees; both bid
// shapes are understood here and nowhere else.
type Resolved struct {
	Ref       Ref
	QuoteID   string
	Product   string
	BidAmount decimal.Decimal
	Status    Status
	// Owner is the principal who created the quote the bid was placed on:
	// the farmer for an FPO bid, the FPO for a retailer bid.
	Owner Participant
	// Bidder is the principal who placed the bid.
	Bidder Participant
}
