package negotiation

import (
	"time"

	"github.com/shopspring/decimal"

	"agrichain/bid"
)

// Status is the lifecycle of a negotiation. Only open is ever reached:
// threads accumulate messages and are never explicitly closed, even when
// the underlying bid is resolved.
type Status string

const StatusOpen Status = "open"

// Negotiation is the persistent back-and-forth thread attached to exactly
// one bid reference. One row exists per distinct reference.
type Negotiation struct {
	ID        string
	BidRef    bid.Ref
	Status    Status
	CreatedAt time.Time
}

// Message is one entry in a negotiation's append-only thread. The first
// message of every thread is the system-style narration written at start;
// later ones are participant counter-offers or free text. Seq is assigned
// at insert time and is the sole ordering authority.
type Message struct {
	ID                      string
	NegotiationID           string
	Seq                     int
	SenderRole              string
	SenderID                string
	SenderName              string
	Text                    string
	CounterAmount           *decimal.Decimal
	CounterDeliveryTimeDays *int
	CreatedAt               time.Time
}

// Thread bundles a negotiation with its ordered message sequence.
type Thread struct {
	Negotiation Negotiation
	Messages    []Message
}

// CounterOffer is the participant-supplied payload for a new thread entry.
type CounterOffer struct {
	Message                 string
	CounterAmount           decimal.Decimal
	CounterDeliveryTimeDays int
}
