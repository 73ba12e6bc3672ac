package main

import (
	"time"

	"github.com/shopspring/decimal"

	"agrichain/auth"
	"agrichain/bid"
	"agrichain/negotiation"
	"agrichain/quote"
)

// Decimal amounts render as strings so clients never lose precision to
// float parsing.

type accountResponse struct {
	ID            string `json:"id"`
	Role          string `json:"role"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	RegistryNo    string `json:"registryNo,omitempty"`
	WalletAddress string `json:"walletAddress,omitempty"`
	City          string `json:"city,omitempty"`
	State         string `json:"state,omitempty"`
	Approval      string `json:"approval"`
	CreatedAt     string `json:"createdAt"`
}

func toAccountResponse(a auth.Account) accountResponse {
	resp := accountResponse{
		ID:        a.ID,
		Role:      string(a.Role),
		Name:      a.Name,
		Email:     a.Email,
		City:      a.City,
		State:     a.State,
		Approval:  string(a.Approval),
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
	if a.RegistryNo != nil {
		resp.RegistryNo = *a.RegistryNo
	}
	if a.WalletAddress != nil {
		resp.WalletAddress = *a.WalletAddress
	}
	return resp
}

type bidSummaryResponse struct {
	ID               string `json:"id"`
	BidderName       string `json:"bidderName"`
	BidAmount        string `json:"bidAmount"`
	DeliveryTimeDays int    `json:"deliveryTimeDays"`
	Status           string `json:"status"`
	SubmittedAt      string `json:"submittedAt"`
}

func toBidSummaryResponses(bids []quote.BidSummary) []bidSummaryResponse {
	out := make([]bidSummaryResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, bidSummaryResponse{
			ID:               b.ID,
			BidderName:       b.BidderName,
			BidAmount:        b.BidAmount.String(),
			DeliveryTimeDays: b.DeliveryTimeDays,
			Status:           b.Status,
			SubmittedAt:      b.SubmittedAt.Format(time.RFC3339),
		})
	}
	return out
}

type farmerQuoteResponse struct {
	ID              string               `json:"id"`
	FarmerID        string               `json:"farmerId"`
	FarmerName      string               `json:"farmerName"`
	ProductName     string               `json:"productName"`
	Category        string               `json:"category,omitempty"`
	Description     string               `json:"description,omitempty"`
	Quantity        string               `json:"quantity"`
	Unit            string               `json:"unit"`
	PricePerUnit    string               `json:"pricePerUnit,omitempty"`
	Status          string               `json:"status"`
	Deadline        string               `json:"deadline"`
	AcceptedBidID   string               `json:"acceptedBidId,omitempty"`
	ContractAddress string               `json:"contractAddress,omitempty"`
	CreatedAt       string               `json:"createdAt"`
	Bids            []bidSummaryResponse `json:"bids"`
}

func toFarmerQuoteResponse(q quote.FarmerQuote) farmerQuoteResponse {
	resp := farmerQuoteResponse{
		ID:          q.ID,
		FarmerID:    q.FarmerID,
		FarmerName:  q.FarmerName,
		ProductName: q.ProductName,
		Category:    q.Category,
		Description: q.Description,
		Quantity:    q.Quantity.String(),
		Unit:        q.Unit,
		Status:      string(q.Status),
		Deadline:    q.Deadline.Format("2006-01-02"),
		CreatedAt:   q.CreatedAt.Format(time.RFC3339),
		Bids:        toBidSummaryResponses(q.Bids),
	}
	if q.PricePerUnit != nil {
		resp.PricePerUnit = q.PricePerUnit.String()
	}
	if q.AcceptedBidID != nil {
		resp.AcceptedBidID = *q.AcceptedBidID
	}
	if q.ContractAddress != nil {
		resp.ContractAddress = *q.ContractAddress
	}
	return resp
}

func toFarmerQuoteResponses(quotes []quote.FarmerQuote) []farmerQuoteResponse {
	out := make([]farmerQuoteResponse, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, toFarmerQuoteResponse(q))
	}
	return out
}

type fpoQuoteResponse struct {
	ID            string               `json:"id"`
	FPOID         string               `json:"fpoId"`
	FPOName       string               `json:"fpoName"`
	ProductName   string               `json:"productName"`
	Category      string               `json:"category,omitempty"`
	Description   string               `json:"description,omitempty"`
	Quantity      string               `json:"quantity"`
	Unit          string               `json:"unit"`
	PricePerUnit  string               `json:"pricePerUnit,omitempty"`
	Status        string               `json:"status"`
	Deadline      string               `json:"deadline"`
	AcceptedBidID string               `json:"acceptedBidId,omitempty"`
	CreatedAt     string               `json:"createdAt"`
	Bids          []bidSummaryResponse `json:"bids"`
}

func toFPOQuoteResponse(q quote.FPOQuote) fpoQuoteResponse {
	resp := fpoQuoteResponse{
		ID:          q.ID,
		FPOID:       q.FPOID,
		FPOName:     q.FPOName,
		ProductName: q.ProductName,
		Category:    q.Category,
		Description: q.Description,
		Quantity:    q.Quantity.String(),
		Unit:        q.Unit,
		Status:      string(q.Status),
		Deadline:    q.Deadline.Format("2006-01-02"),
		CreatedAt:   q.CreatedAt.Format(time.RFC3339),
		Bids:        toBidSummaryResponses(q.Bids),
	}
	if q.PricePerUnit != nil {
		resp.PricePerUnit = q.PricePerUnit.String()
	}
	if q.AcceptedBidID != nil {
		resp.AcceptedBidID = *q.AcceptedBidID
	}
	return resp
}

func toFPOQuoteResponses(quotes []quote.FPOQuote) []fpoQuoteResponse {
	out := make([]fpoQuoteResponse, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, toFPOQuoteResponse(q))
	}
	return out
}

type bidResponse struct {
	ID               string `json:"id"`
	QuoteID          string `json:"quoteId"`
	BidderID         string `json:"bidderId"`
	BidderName       string `json:"bidderName"`
	QuoteProductName string `json:"quoteProductName,omitempty"`
	BidAmount        string `json:"bidAmount"`
	DeliveryTimeDays int    `json:"deliveryTimeDays"`
	Comments         string `json:"comments,omitempty"`
	Status           string `json:"status"`
	PaymentStatus    string `json:"paymentStatus"`
	SubmittedAt      string `json:"submittedAt"`
}

func toFPOBidResponse(b bid.FPOBid) bidResponse {
	return bidResponse{
		ID:               b.ID,
		QuoteID:          b.QuoteID,
		BidderID:         b.FPOID,
		BidderName:       b.FPOName,
		QuoteProductName: b.QuoteProductName,
		BidAmount:        b.BidAmount.String(),
		DeliveryTimeDays: b.DeliveryTimeDays,
		Comments:         b.Comments,
		Status:           string(b.Status),
		PaymentStatus:    string(b.PaymentStatus),
		SubmittedAt:      b.SubmittedAt.Format(time.RFC3339),
	}
}

func toRetailerBidResponse(b bid.RetailerBid) bidResponse {
	return bidResponse{
		ID:               b.ID,
		QuoteID:          b.QuoteID,
		BidderID:         b.RetailerID,
		BidderName:       b.RetailerName,
		QuoteProductName: b.QuoteProductName,
		BidAmount:        b.BidAmount.String(),
		DeliveryTimeDays: b.DeliveryTimeDays,
		Comments:         b.Comments,
		Status:           string(b.Status),
		PaymentStatus:    string(b.PaymentStatus),
		SubmittedAt:      b.SubmittedAt.Format(time.RFC3339),
	}
}

type messageResponse struct {
	ID                      string `json:"id"`
	Seq                     int    `json:"seq"`
	SenderRole              string `json:"senderRole"`
	SenderID                string `json:"senderId"`
	SenderName              string `json:"senderName"`
	Text                    string `json:"text,omitempty"`
	CounterAmount           string `json:"counterAmount,omitempty"`
	CounterDeliveryTimeDays *int   `json:"counterDeliveryTimeDays,omitempty"`
	CreatedAt               string `json:"createdAt"`
}

type threadResponse struct {
	ID        string            `json:"id"`
	BidKind   string            `json:"bidKind"`
	BidID     string            `json:"bidId"`
	Status    string            `json:"status"`
	CreatedAt string            `json:"createdAt"`
	Messages  []messageResponse `json:"messages"`
}

func toThreadResponse(t negotiation.Thread) threadResponse {
	msgs := make([]messageResponse, 0, len(t.Messages))
	for _, m := range t.Messages {
		msg := messageResponse{
			ID:                      m.ID,
			Seq:                     m.Seq,
			SenderRole:              m.SenderRole,
			SenderID:                m.SenderID,
			SenderName:              m.SenderName,
			Text:                    m.Text,
			CounterDeliveryTimeDays: m.CounterDeliveryTimeDays,
			CreatedAt:               m.CreatedAt.Format(time.RFC3339),
		}
		if m.CounterAmount != nil {
			msg.CounterAmount = m.CounterAmount.String()
		}
		msgs = append(msgs, msg)
	}
	return threadResponse{
		ID:        t.Negotiation.ID,
		BidKind:   string(t.Negotiation.BidRef.Kind),
		BidID:     t.Negotiation.BidRef.ID,
		Status:    string(t.Negotiation.Status),
		CreatedAt: t.Negotiation.CreatedAt.Format(time.RFC3339),
		Messages:  msgs,
	}
}

type contractDetailsResponse struct {
	ContractAddress string              `json:"contractAddress"`
	FarmerName      string              `json:"farmerName"`
	FarmerLocation  string              `json:"farmerLocation"`
	FPOName         *string             `json:"fpoName"`
	FPOEmail        *string             `json:"fpoEmail"`
	Quote           farmerQuoteResponse `json:"quote"`
}

func toContractDetailsResponse(d quote.ContractDetails) contractDetailsResponse {
	return contractDetailsResponse{
		ContractAddress: d.ContractAddress,
		FarmerName:      d.FarmerName,
		FarmerLocation:  d.FarmerLocation,
		FPOName:         d.FPOName,
		FPOEmail:        d.FPOEmail,
		Quote:           toFarmerQuoteResponse(d.Quote),
	}
}

func parseDecimal(s string) (decimal.Decimal, bool) {
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
