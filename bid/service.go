package bid

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidInput signals malformed or out-of-range bid data.
var ErrInvalidInput = errors.New("bid: invalid input")

// Service exposes bid ledger operations for both bid variants.
type Service struct {
	repo Repository
}

// NewService builds a Service using the provided repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func validateCreate(params CreateParams) error {
	if !params.BidAmount.IsPositive() {
		return fmt.Errorf("%w: bid amount must be greater than zero", ErrInvalidInput)
	}
	if params.DeliveryTimeDays <= 0 {
		return fmt.Errorf("%w: delivery time must be greater than zero", ErrInvalidInput)
	}
	return nil
}

// CreateFPOBid places an FPO's bid on an open farmer quote.
func (s *Service) CreateFPOBid(ctx context.Context, fpoID, quoteID string, params CreateParams) (FPOBid, error) {
	if fpoID == "" || quoteID == "" {
		return FPOBid{}, fmt.Errorf("bid: missing fpo or quote id")
	}
	if err := validateCreate(params); err != nil {
		return FPOBid{}, err
	}
	return s.repo.InsertFPOBid(ctx, fpoID, quoteID, params)
}

// CreateRetailerBid places a retailer's bid on an open FPO quote.
func (s *Service) CreateRetailerBid(ctx context.Context, retailerID, quoteID string, params CreateParams) (RetailerBid, error) {
	if retailerID == "" || quoteID == "" {
		return RetailerBid{}, fmt.Errorf("bid: missing retailer or quote id")
	}
	if err := validateCreate(params); err != nil {
		return RetailerBid{}, err
	}
	return s.repo.InsertRetailerBid(ctx, retailerID, quoteID, params)
}

// AcceptFPOBid lets a farmer accept an FPO bid on their own open quote.
func (s *Service) AcceptFPOBid(ctx context.Context, farmerID, bidID string) (FPOBid, error) {
	if farmerID == "" || bidID == "" {
		return FPOBid{}, fmt.Errorf("bid: missing farmer or bid id")
	}
	return s.repo.AcceptFPOBid(ctx, farmerID, bidID)
}

// AcceptRetailerBid lets an FPO award their own open quote to a retailer
// bid, rejecting all siblings.
func (s *Service) AcceptRetailerBid(ctx context.Context, fpoID, bidID string) (RetailerBid, error) {
	if fpoID == "" || bidID == "" {
		return RetailerBid{}, fmt.Errorf("bid: missing fpo or bid id")
	}
	return s.repo.AcceptRetailerBid(ctx, fpoID, bidID)
}

// ListMyRetailerBids returns the retailer's own bids, newest first.
func (s *Service) ListMyRetailerBids(ctx context.Context, retailerID string) ([]RetailerBid, error) {
	return s.repo.ListRetailerBidsByBidder(ctx, retailerID)
}
